package helpers

import (
	"github.com/labstack/echo/v4"

	"github.com/licitafacil/api/internal/core/domain/quota"
)

type ctxKey string

const (
	keyIdentity ctxKey = "identity"
	keyVerdict  ctxKey = "quota_verdict"
	keyIsAdmin  ctxKey = "is_admin"
)

func SetIdentity(c echo.Context, id quota.Identity) { c.Set(string(keyIdentity), id) }
func GetIdentityRaw(c echo.Context) (quota.Identity, bool) {
	v := c.Get(string(keyIdentity))
	id, ok := v.(quota.Identity)
	return id, ok
}

func SetVerdict(c echo.Context, v quota.Verdict) { c.Set(string(keyVerdict), v) }
func GetVerdictRaw(c echo.Context) (quota.Verdict, bool) {
	v := c.Get(string(keyVerdict))
	verdict, ok := v.(quota.Verdict)
	return verdict, ok
}

func SetIsAdmin(c echo.Context, admin bool) { c.Set(string(keyIsAdmin), admin) }
func GetIsAdminRaw(c echo.Context) (bool, bool) {
	v := c.Get(string(keyIsAdmin))
	b, ok := v.(bool)
	return b, ok
}
