package sessions

import "github.com/jrsteele09/minu-sso/services"

// Keys of the current session. They mirror the per-service record of whichever
// service logged in last.
const (
	KeyAccessToken = "minu_access_token"
	KeyService     = "minu_service"
	KeyExpiresAt   = "minu_expires_at"
)

// Per-service field names. The stored key is "<field>_<service>", e.g. minu_access_token_find.
const (
	fieldAccessToken  = "minu_access_token"
	fieldExpiresAt    = "minu_expires_at"
	fieldRefreshToken = "minu_refresh_token"
	fieldUserID       = "minu_user_id"
	fieldPlan         = "minu_plan"
	fieldStatus       = "minu_status"
)

var serviceFields = []string{
	fieldAccessToken,
	fieldExpiresAt,
	fieldRefreshToken,
	fieldUserID,
	fieldPlan,
	fieldStatus,
}

// ServiceKey returns the storage key of field for service.
func ServiceKey(field string, service services.ID) string {
	return field + "_" + string(service)
}
