package handlers

import (
	"context"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/storage/minio"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockRiskRepo struct {
	risk.Repository
	mock.Mock
}

func (m *mockRiskRepo) FindAll(ctx context.Context) ([]risk.Risk, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]risk.Risk)
	return list, args.Error(1)
}

func (m *mockRiskRepo) FindByCategory(ctx context.Context, c risk.Category) ([]risk.Risk, error) {
	args := m.Called(ctx, c)
	list, _ := args.Get(0).([]risk.Risk)
	return list, args.Error(1)
}

func (m *mockRiskRepo) FindByCode(ctx context.Context, code string) (risk.Risk, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(risk.Risk), args.Error(1)
}

func (m *mockRiskRepo) SeedStandard(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockObligationRepo struct {
	mock.Mock
}

func (m *mockObligationRepo) Save(ctx context.Context, o obligation.Obligation) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockObligationRepo) FindByID(ctx context.Context, id int64) (obligation.Obligation, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(obligation.Obligation)
	return o, args.Error(1)
}

func (m *mockObligationRepo) FindAll(ctx context.Context) ([]obligation.Obligation, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]obligation.Obligation)
	return list, args.Error(1)
}

func (m *mockObligationRepo) FindByStatus(ctx context.Context, s obligation.Status) ([]obligation.Obligation, error) {
	args := m.Called(ctx, s)
	list, _ := args.Get(0).([]obligation.Obligation)
	return list, args.Error(1)
}

func (m *mockObligationRepo) FindByType(ctx context.Context, t obligation.Type) ([]obligation.Obligation, error) {
	args := m.Called(ctx, t)
	list, _ := args.Get(0).([]obligation.Obligation)
	return list, args.Error(1)
}

func (m *mockObligationRepo) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type mockDerivativeRepo struct {
	mock.Mock
}

func (m *mockDerivativeRepo) Save(ctx context.Context, d *derivative.Derivative) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDerivativeRepo) FindByID(ctx context.Context, id int64) (*derivative.Derivative, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*derivative.Derivative)
	return d, args.Error(1)
}

func (m *mockDerivativeRepo) FindAll(ctx context.Context) ([]*derivative.Derivative, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*derivative.Derivative)
	return list, args.Error(1)
}

func (m *mockDerivativeRepo) FindByName(ctx context.Context, s string) ([]*derivative.Derivative, error) {
	args := m.Called(ctx, s)
	list, _ := args.Get(0).([]*derivative.Derivative)
	return list, args.Error(1)
}

func (m *mockDerivativeRepo) FindByTotalValueRange(ctx context.Context, lo, hi float64) ([]*derivative.Derivative, error) {
	args := m.Called(ctx, lo, hi)
	list, _ := args.Get(0).([]*derivative.Derivative)
	return list, args.Error(1)
}

func (m *mockDerivativeRepo) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type mockSnapshots struct {
	mock.Mock
}

func (m *mockSnapshots) Save(ctx context.Context, d *derivative.Derivative) (*minio.SnapshotInfo, error) {
	args := m.Called(ctx, d)
	info, _ := args.Get(0).(*minio.SnapshotInfo)
	return info, args.Error(1)
}

func (m *mockSnapshots) List(ctx context.Context, id int64) ([]minio.SnapshotInfo, error) {
	args := m.Called(ctx, id)
	list, _ := args.Get(0).([]minio.SnapshotInfo)
	return list, args.Error(1)
}

func (m *mockSnapshots) Latest(ctx context.Context, id int64) (*minio.DerivativeSnapshot, error) {
	args := m.Called(ctx, id)
	snap, _ := args.Get(0).(*minio.DerivativeSnapshot)
	return snap, args.Error(1)
}

func serve(method, path string, register func(r *gin.Engine)) *httptest.ResponseRecorder {
	r := gin.New()
	register(r)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}
