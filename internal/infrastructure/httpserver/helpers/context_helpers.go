package helpers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/licitafacil/api/internal/core/domain/quota"
)

// GetIdentityFromContext returns the resolved caller identity set by the
// identity middleware.
func GetIdentityFromContext(c echo.Context) (quota.Identity, error) {
	id, ok := GetIdentityRaw(c)
	if !ok {
		return quota.Identity{}, echo.NewHTTPError(http.StatusInternalServerError, "identity not resolved")
	}
	return id, nil
}

// GetVerdictFromContext returns the quota verdict set by the gate for the
// current request. Only available on gated routes.
func GetVerdictFromContext(c echo.Context) (quota.Verdict, error) {
	v, ok := GetVerdictRaw(c)
	if !ok {
		return quota.Verdict{}, echo.NewHTTPError(http.StatusInternalServerError, "quota verdict not available")
	}
	return v, nil
}

// IsAdmin reports whether the caller's token carried the admin role.
func IsAdmin(c echo.Context) bool {
	if b, ok := GetIsAdminRaw(c); ok {
		return b
	}
	return false
}
