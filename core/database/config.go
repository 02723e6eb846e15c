package database

const (
	// DriverPostgres selects the lib/pq driver.
	DriverPostgres = "postgres"
	// DriverSQLite selects the mattn/go-sqlite3 driver.
	DriverSQLite = "sqlite3"
	// DriverMemory disables SQL storage; callers fall back to in-process stores.
	DriverMemory = "memory"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	DSN            string `yaml:"dsn" envconfig:"DB_DSN"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// SQL reports whether the config points at a SQL backend.
func (c Config) SQL() bool {
	return c.Driver == DriverPostgres || c.Driver == DriverSQLite
}
