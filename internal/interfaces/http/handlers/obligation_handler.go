package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

type ObligationHandler struct {
	repo   obligation.Repository
	logger logging.Logger
}

func NewObligationHandler(repo obligation.Repository, log logging.Logger) *ObligationHandler {
	return &ObligationHandler{repo: repo, logger: log}
}

// List handles GET /obligations with optional ?type= and ?status= filters.
// With both set the type query runs in the store and status is applied here.
func (h *ObligationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		typ    obligation.Type
		status obligation.Status
		err    error
	)
	if raw := c.Query("type"); raw != "" {
		if typ, err = obligation.ParseType(raw); err != nil {
			writeAppError(c, h.logger, err)
			return
		}
	}
	if raw := c.Query("status"); raw != "" {
		if status, err = obligation.ParseStatus(raw); err != nil {
			writeAppError(c, h.logger, err)
			return
		}
	}

	var list []obligation.Obligation
	switch {
	case typ != "":
		list, err = h.repo.FindByType(ctx, typ)
		if err == nil && status != "" {
			kept := list[:0]
			for _, o := range list {
				if o.Status() == status {
					kept = append(kept, o)
				}
			}
			list = kept
		}
	case status != "":
		list, err = h.repo.FindByStatus(ctx, status)
	default:
		list, err = h.repo.FindAll(ctx)
	}
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newObligationList(list))
}

// Get handles GET /obligations/:id.
func (h *ObligationHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	o, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newObligationResponse(o))
}

// Delete handles DELETE /obligations/:id.
func (h *ObligationHandler) Delete(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	ok, err := h.repo.Delete(c.Request.Context(), id)
	if err == nil && !ok {
		err = errors.New(errors.ErrCodeObligationNotFound, fmt.Sprintf("obligation %d not found", id))
	}
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
