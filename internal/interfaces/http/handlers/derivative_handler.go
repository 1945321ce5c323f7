package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/storage/minio"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// SnapshotArchive is the part of the snapshot store the API exposes.
type SnapshotArchive interface {
	Save(ctx context.Context, d *derivative.Derivative) (*minio.SnapshotInfo, error)
	List(ctx context.Context, id int64) ([]minio.SnapshotInfo, error)
	Latest(ctx context.Context, id int64) (*minio.DerivativeSnapshot, error)
}

type DerivativeHandler struct {
	repo      derivative.Repository
	snapshots SnapshotArchive
	logger    logging.Logger
}

// NewDerivativeHandler builds the handler; snapshots may be nil, in which
// case the snapshot routes answer 404.
func NewDerivativeHandler(repo derivative.Repository, snapshots SnapshotArchive, log logging.Logger) *DerivativeHandler {
	return &DerivativeHandler{repo: repo, snapshots: snapshots, logger: log}
}

// List handles GET /derivatives. ?min and ?max select a total value range
// and must come together; ?name filters by substring.
func (h *DerivativeHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	minTotal, hasMin, err := queryFloat(c, "min")
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	maxTotal, hasMax, err := queryFloat(c, "max")
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	if hasMin != hasMax {
		writeAppError(c, h.logger, errors.NewValidation("min and max must be given together"))
		return
	}
	name := c.Query("name")

	var list []*derivative.Derivative
	switch {
	case hasMin:
		list, err = h.repo.FindByTotalValueRange(ctx, minTotal, maxTotal)
		if err == nil && name != "" {
			list = derivative.Filter(list, derivative.Criteria{NameContains: name})
		}
	case name != "":
		list, err = h.repo.FindByName(ctx, name)
	default:
		list, err = h.repo.FindAll(ctx)
	}
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newDerivativeList(list))
}

// Get handles GET /derivatives/:id. ?active=true lists only active
// obligations and ?sort=risk orders them by risk level.
func (h *DerivativeHandler) Get(c *gin.Context) {
	d, ok := h.load(c)
	if !ok {
		return
	}
	switch order := c.Query("sort"); order {
	case "":
	case "risk":
		d.SortByRiskLevel()
	default:
		writeAppError(c, h.logger, errors.Validationf("unknown sort %q", order))
		return
	}
	var shown []obligation.Obligation
	if queryBool(c, "active") {
		shown = d.ActiveObligations()
	} else {
		shown = d.Obligations()
	}
	c.JSON(http.StatusOK, DerivativeResponse{
		DerivativeSummary: newDerivativeSummary(d),
		ObligationDetails: newObligationList(shown),
	})
}

// Delete handles DELETE /derivatives/:id. Obligations are kept.
func (h *DerivativeHandler) Delete(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	ok, err := h.repo.Delete(c.Request.Context(), id)
	if err == nil && !ok {
		err = errors.New(errors.ErrCodeDerivativeNotFound, fmt.Sprintf("derivative %d not found", id))
	}
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TakeSnapshot handles POST /derivatives/:id/snapshots.
func (h *DerivativeHandler) TakeSnapshot(c *gin.Context) {
	if !h.snapshotsEnabled(c) {
		return
	}
	d, ok := h.load(c)
	if !ok {
		return
	}
	info, err := h.snapshots.Save(c.Request.Context(), d)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// ListSnapshots handles GET /derivatives/:id/snapshots; ?latest=true
// returns the newest snapshot document instead of the listing.
func (h *DerivativeHandler) ListSnapshots(c *gin.Context) {
	if !h.snapshotsEnabled(c) {
		return
	}
	id, err := pathID(c)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	if queryBool(c, "latest") {
		snap, err := h.snapshots.Latest(c.Request.Context(), id)
		if err != nil {
			writeAppError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, snap)
		return
	}
	list, err := h.snapshots.List(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []minio.SnapshotInfo{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *DerivativeHandler) snapshotsEnabled(c *gin.Context) bool {
	if h.snapshots == nil {
		writeAppError(c, h.logger, errors.NotFound("the snapshot archive is not enabled"))
		return false
	}
	return true
}

func (h *DerivativeHandler) load(c *gin.Context) (*derivative.Derivative, bool) {
	id, err := pathID(c)
	if err != nil {
		writeAppError(c, h.logger, err)
		return nil, false
	}
	d, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, h.logger, err)
		return nil, false
	}
	return d, true
}
