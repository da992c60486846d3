package config

// EnvPrefix is passed to envconfig.Process; individual fields carry explicit
// GUIDEPORT_* names so the prefix only matters for unannotated additions.
const EnvPrefix = "guideport"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "GUIDEPORT_APP_ENV"
	EnvPort       = "GUIDEPORT_APP_PORT"
	EnvDBDSN      = "GUIDEPORT_DB_DSN"
	EnvDBHost     = "GUIDEPORT_DB_HOST"
	EnvDBUser     = "GUIDEPORT_DB_USER"
	EnvDBName     = "GUIDEPORT_DB_NAME"
	EnvRedisURL   = "GUIDEPORT_REDIS_URL"
	EnvJWTSecret  = "GUIDEPORT_JWT_SECRET"
	EnvJWTIssuer  = "GUIDEPORT_JWT_ISSUER"
	EnvJWTExpMins = "GUIDEPORT_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
