package constants

// Static route constants
const (
	InternalAPIRoute = "/api/internal"
	AdminAPIRoute    = "/api/admin/billing"
	HealthRoute      = "/up"
)
