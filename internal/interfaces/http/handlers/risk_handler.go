package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
)

type RiskHandler struct {
	repo   risk.Repository
	logger logging.Logger
}

func NewRiskHandler(repo risk.Repository, log logging.Logger) *RiskHandler {
	return &RiskHandler{repo: repo, logger: log}
}

// List handles GET /risks with an optional ?category= filter.
func (h *RiskHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		list []risk.Risk
		err  error
	)
	if raw := c.Query("category"); raw != "" {
		var cat risk.Category
		if cat, err = risk.ParseCategory(raw); err == nil {
			list, err = h.repo.FindByCategory(ctx, cat)
		}
	} else {
		list, err = h.repo.FindAll(ctx)
	}
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []risk.Risk{}
	}
	c.JSON(http.StatusOK, list)
}

// Get handles GET /risks/:code.
func (h *RiskHandler) Get(c *gin.Context) {
	r, err := h.repo.FindByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// Seed handles POST /risks/seed.
func (h *RiskHandler) Seed(c *gin.Context) {
	n, err := h.repo.SeedStandard(c.Request.Context())
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seeded": n, "standard": len(risk.Standard())})
}
