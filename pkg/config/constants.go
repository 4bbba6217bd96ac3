package config

// EnvPrefix is intentionally empty: each field names its full env var.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "KAMISHOP_DB_DSN"
	EnvDBHost = "KAMISHOP_DB_HOST"
	EnvDBUser = "KAMISHOP_DB_USER"
	EnvDBName = "KAMISHOP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
