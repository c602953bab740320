package config

const (
	EnvPrefix = "FRANCHISEPOS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "FRANCHISEPOS_APP_ENV"
	EnvPort         = "FRANCHISEPOS_APP_PORT"
	EnvDBDSN        = "FRANCHISEPOS_DB_DSN"
	EnvDBHost       = "FRANCHISEPOS_DB_HOST"
	EnvDBUser       = "FRANCHISEPOS_DB_USER"
	EnvDBName       = "FRANCHISEPOS_DB_NAME"
	EnvDBSQLitePath = "FRANCHISEPOS_DB_SQLITE_PATH"
	EnvUseSQLite    = "FRANCHISEPOS_USE_SQLITE"
	EnvRedisURL     = "FRANCHISEPOS_REDIS_URL"
	EnvJWTSecret    = "FRANCHISEPOS_JWT_SECRET"
	EnvJWTIssuer    = "FRANCHISEPOS_JWT_ISSUER"
	EnvAuditTopic   = "FRANCHISEPOS_AUDIT_TOPIC"
	EnvGCPProjectID = "FRANCHISEPOS_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
