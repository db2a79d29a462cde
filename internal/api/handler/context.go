package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// callerIdentity returns the escrow identity the Auth middleware took from
// the token. A token without one is valid JWT but cannot act on projects.
func callerIdentity(c echo.Context) (domain.Identity, error) {
	raw, _ := c.Get("identity").(string)
	id := domain.Identity(raw)
	if id.IsZero() {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "token missing escrow identity")
	}
	return id, nil
}

// projectID parses the :id path parameter.
func projectID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "project id must be a non-negative integer")
	}
	return id, nil
}
