package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/storage/minio"
	"github.com/turtacn/insurance-derivatives/internal/testutil"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// obligationBody is the part of ObligationResponse the tests read back;
// Details is an interface and does not decode.
type obligationBody struct {
	ID              int64             `json:"id"`
	Type            obligation.Type   `json:"type"`
	Status          obligation.Status `json:"status"`
	RiskLevel       float64           `json:"risk_level"`
	CalculatedValue float64           `json:"calculated_value"`
}

type derivativeBody struct {
	ID                int64            `json:"id"`
	ObligationDetails []obligationBody `json:"obligation_details"`
}

func decode(t *testing.T, body []byte, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, v))
}

func TestRiskHandler(t *testing.T) {
	repo := new(mockRiskRepo)
	h := NewRiskHandler(repo, testutil.NewMockLogger())
	routes := func(r *gin.Engine) {
		r.GET("/risks", h.List)
		r.GET("/risks/:code", h.Get)
		r.POST("/risks/seed", h.Seed)
	}

	fire := risk.MustStandard(risk.CodeFire)
	repo.On("FindByCategory", mock.Anything, fire.Category).Return([]risk.Risk{fire}, nil)
	repo.On("FindAll", mock.Anything).Return(nil, nil)
	repo.On("FindByCode", mock.Anything, "NOPE01").Return(risk.Risk{}, errors.New(errors.ErrCodeRiskNotFound, "risk not found"))
	repo.On("SeedStandard", mock.Anything).Return(4, nil)

	w := serve(http.MethodGet, "/risks?category="+string(fire.Category), routes)
	assert.Equal(t, http.StatusOK, w.Code)
	var list []risk.Risk
	decode(t, w.Body.Bytes(), &list)
	assert.Equal(t, []risk.Risk{fire}, list)

	w = serve(http.MethodGet, "/risks", routes)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = serve(http.MethodGet, "/risks?category=WEATHER", routes)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(http.MethodGet, "/risks/NOPE01", routes)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(http.MethodPost, "/risks/seed", routes)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"seeded":4,"standard":9}`, w.Body.String())
}

type ObligationHandlerSuite struct {
	suite.Suite
	repo   *mockObligationRepo
	log    *testutil.MockLogger
	routes func(*gin.Engine)
}

func (s *ObligationHandlerSuite) SetupTest() {
	s.repo = new(mockObligationRepo)
	s.log = testutil.NewMockLogger()
	h := NewObligationHandler(s.repo, s.log)
	s.routes = func(r *gin.Engine) {
		r.GET("/obligations", h.List)
		r.GET("/obligations/:id", h.Get)
		r.DELETE("/obligations/:id", h.Delete)
	}
}

func (s *ObligationHandlerSuite) TestGet() {
	o := testutil.Health(s.T(), 0.3, 50000, 6)
	o.SetID(5)
	o.CalculateValue()
	s.repo.On("FindByID", mock.Anything, int64(5)).Return(o, nil)

	w := serve(http.MethodGet, "/obligations/5", s.routes)
	s.Equal(http.StatusOK, w.Code)
	var got obligationBody
	decode(s.T(), w.Body.Bytes(), &got)
	s.Equal(int64(5), got.ID)
	s.Equal(obligation.TypeHealth, got.Type)
	s.InDelta(o.CalculatedValue(), got.CalculatedValue, 1e-9)
}

func (s *ObligationHandlerSuite) TestGet_BadID() {
	w := serve(http.MethodGet, "/obligations/zero", s.routes)
	s.Equal(http.StatusBadRequest, w.Code)
	s.repo.AssertNotCalled(s.T(), "FindByID", mock.Anything, mock.Anything)
}

func (s *ObligationHandlerSuite) TestList_TypeAndStatus() {
	draft := testutil.Life(s.T(), 0.5, 1000, 12)
	active := testutil.Life(s.T(), 0.5, 1000, 12)
	active.Activate()
	s.repo.On("FindByType", mock.Anything, obligation.TypeLife).
		Return([]obligation.Obligation{draft, active}, nil)

	w := serve(http.MethodGet, "/obligations?type=life&status=active", s.routes)
	s.Equal(http.StatusOK, w.Code)
	var got []obligationBody
	decode(s.T(), w.Body.Bytes(), &got)
	s.Require().Len(got, 1)
	s.Equal(obligation.StatusActive, got[0].Status)
}

func (s *ObligationHandlerSuite) TestList_UnknownType() {
	w := serve(http.MethodGet, "/obligations?type=MARINE", s.routes)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ObligationHandlerSuite) TestList_InternalErrorIsMasked() {
	s.repo.On("FindAll", mock.Anything).Return(nil, stderrors.New("pq: connection reset"))

	w := serve(http.MethodGet, "/obligations", s.routes)
	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(w.Body.String(), "pq:")
	s.True(s.log.HasMessage("error", "request failed"))
}

func (s *ObligationHandlerSuite) TestDelete() {
	s.repo.On("Delete", mock.Anything, int64(3)).Return(true, nil).Once()
	s.repo.On("Delete", mock.Anything, int64(3)).Return(false, nil).Once()

	s.Equal(http.StatusNoContent, serve(http.MethodDelete, "/obligations/3", s.routes).Code)
	s.Equal(http.StatusNotFound, serve(http.MethodDelete, "/obligations/3", s.routes).Code)
}

func TestObligationHandlerSuite(t *testing.T) {
	suite.Run(t, new(ObligationHandlerSuite))
}

type DerivativeHandlerSuite struct {
	suite.Suite
	repo      *mockDerivativeRepo
	snapshots *mockSnapshots
	routes    func(*gin.Engine)
	book      *derivative.Derivative
}

func (s *DerivativeHandlerSuite) SetupTest() {
	s.repo = new(mockDerivativeRepo)
	s.snapshots = new(mockSnapshots)
	s.routes = s.routesFor(NewDerivativeHandler(s.repo, s.snapshots, testutil.NewMockLogger()))

	low := testutil.Life(s.T(), 0.2, 1000, 12)
	high := testutil.Health(s.T(), 0.9, 2000, 6)
	high.Activate()
	s.book = testutil.Derivative(s.T(), "Book", low, high)
	s.book.SetID(1)
	s.book.RecalculateTotal()
}

func (s *DerivativeHandlerSuite) routesFor(h *DerivativeHandler) func(*gin.Engine) {
	return func(r *gin.Engine) {
		r.GET("/derivatives", h.List)
		r.GET("/derivatives/:id", h.Get)
		r.DELETE("/derivatives/:id", h.Delete)
		r.GET("/derivatives/:id/snapshots", h.ListSnapshots)
		r.POST("/derivatives/:id/snapshots", h.TakeSnapshot)
	}
}

func (s *DerivativeHandlerSuite) TestList_Range() {
	s.repo.On("FindByTotalValueRange", mock.Anything, 10.0, 1e9).Return([]*derivative.Derivative{s.book}, nil)

	w := serve(http.MethodGet, "/derivatives?min=10&max=1e9&name=boo", s.routes)
	s.Equal(http.StatusOK, w.Code)
	var got []DerivativeSummary
	decode(s.T(), w.Body.Bytes(), &got)
	s.Require().Len(got, 1)
	s.Equal(2, got[0].Obligations)
}

func (s *DerivativeHandlerSuite) TestList_Validation() {
	s.Equal(http.StatusBadRequest, serve(http.MethodGet, "/derivatives?min=10", s.routes).Code)
	s.Equal(http.StatusBadRequest, serve(http.MethodGet, "/derivatives?min=x&max=2", s.routes).Code)
}

func (s *DerivativeHandlerSuite) TestList_ByName() {
	s.repo.On("FindByName", mock.Anything, "Bo").Return([]*derivative.Derivative{s.book}, nil)
	s.Equal(http.StatusOK, serve(http.MethodGet, "/derivatives?name=Bo", s.routes).Code)
}

func (s *DerivativeHandlerSuite) TestGet_ActiveSortedByRisk() {
	s.repo.On("FindByID", mock.Anything, int64(1)).Return(s.book, nil)

	w := serve(http.MethodGet, "/derivatives/1?sort=risk", s.routes)
	s.Equal(http.StatusOK, w.Code)
	var sorted derivativeBody
	decode(s.T(), w.Body.Bytes(), &sorted)
	s.Require().Len(sorted.ObligationDetails, 2)
	s.Equal(0.9, sorted.ObligationDetails[0].RiskLevel)

	w = serve(http.MethodGet, "/derivatives/1?active=true", s.routes)
	var active derivativeBody
	decode(s.T(), w.Body.Bytes(), &active)
	s.Require().Len(active.ObligationDetails, 1)
	s.Equal(obligation.StatusActive, active.ObligationDetails[0].Status)

	s.Equal(http.StatusBadRequest, serve(http.MethodGet, "/derivatives/1?sort=name", s.routes).Code)
}

func (s *DerivativeHandlerSuite) TestDelete_NotFound() {
	s.repo.On("Delete", mock.Anything, int64(8)).Return(false, nil)
	s.Equal(http.StatusNotFound, serve(http.MethodDelete, "/derivatives/8", s.routes).Code)
}

func (s *DerivativeHandlerSuite) TestTakeSnapshot() {
	s.repo.On("FindByID", mock.Anything, int64(1)).Return(s.book, nil)
	taken := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s.snapshots.On("Save", mock.Anything, s.book).
		Return(&minio.SnapshotInfo{Key: "k.json", DerivativeID: 1, TakenAt: taken}, nil)

	w := serve(http.MethodPost, "/derivatives/1/snapshots", s.routes)
	s.Equal(http.StatusCreated, w.Code)
	var info minio.SnapshotInfo
	decode(s.T(), w.Body.Bytes(), &info)
	s.Equal("k.json", info.Key)
}

func (s *DerivativeHandlerSuite) TestListSnapshots() {
	s.snapshots.On("List", mock.Anything, int64(1)).Return(nil, nil)
	s.snapshots.On("Latest", mock.Anything, int64(1)).
		Return(&minio.DerivativeSnapshot{DerivativeID: 1, Name: "Book"}, nil)

	w := serve(http.MethodGet, "/derivatives/1/snapshots", s.routes)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq("[]", w.Body.String())

	w = serve(http.MethodGet, "/derivatives/1/snapshots?latest=1", s.routes)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"name":"Book"`)
}

func (s *DerivativeHandlerSuite) TestSnapshotsDisabled() {
	routes := s.routesFor(NewDerivativeHandler(s.repo, nil, testutil.NewMockLogger()))
	s.Equal(http.StatusNotFound, serve(http.MethodGet, "/derivatives/1/snapshots", routes).Code)
	s.Equal(http.StatusNotFound, serve(http.MethodPost, "/derivatives/1/snapshots", routes).Code)
}

func TestDerivativeHandlerSuite(t *testing.T) {
	suite.Run(t, new(DerivativeHandlerSuite))
}

func TestHealthHandler(t *testing.T) {
	ok := CheckFunc("postgres", func(context.Context) error { return nil })
	down := CheckFunc("redis", func(context.Context) error { return stderrors.New("connection refused") })

	h := NewHealthHandler("1.2.3", ok)
	routes := func(r *gin.Engine) {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}
	w := serve(http.MethodGet, "/healthz", routes)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)

	w = serve(http.MethodGet, "/readyz", routes)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewHealthHandler("1.2.3", ok, down)
	w = serve(http.MethodGet, "/readyz", routes)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ReadinessResponse
	decode(t, w.Body.Bytes(), &resp)
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "healthy", resp.Components["postgres"].Status)
	assert.Equal(t, "connection refused", resp.Components["redis"].Error)
}
