// Package handlers implements the ledger's HTTP endpoints on gin. Handlers
// only translate between HTTP and the repository ports.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeAppError maps application errors to HTTP status codes. Anything
// unclassified is logged and masked as a 500.
func writeAppError(c *gin.Context, log logging.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsValidation(err), errors.IsUnknownType(err):
		status = http.StatusBadRequest
	case errors.IsConflict(err):
		status = http.StatusConflict
	}
	_ = c.Error(err)

	if status == http.StatusInternalServerError {
		log.Error("request failed", logging.String("path", c.FullPath()), logging.Err(err))
		c.JSON(status, ErrorResponse{Code: http.StatusText(status), Message: "internal server error"})
		return
	}
	c.JSON(status, ErrorResponse{Code: http.StatusText(status), Message: err.Error()})
}

// pathID parses the :id path parameter as a positive integer.
func pathID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validationf("id %q must be a positive integer", raw)
	}
	return id, nil
}

// queryFloat parses an optional float query parameter.
func queryFloat(c *gin.Context, name string) (float64, bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, errors.Validationf("%s %q is not a number", name, raw)
	}
	return v, true, nil
}

// queryBool treats "1", "true" and similar as true; a missing value is false.
func queryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}
