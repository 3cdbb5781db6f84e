package sql

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds relational database settings
type Config struct {
	// Driver selects the gorm dialector: sqlite or postgres
	Driver string
	// DSN is passed to the driver unchanged
	DSN string
	// MaxOpenConns caps the connection pool. SQLite is always limited to one.
	MaxOpenConns int
}

// DefaultConfig returns a file-backed SQLite configuration
func DefaultConfig() Config {
	return Config{
		Driver:       DriverSQLite,
		DSN:          "file:chess.db?_busy_timeout=5000",
		MaxOpenConns: 10,
	}
}
