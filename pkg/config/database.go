package config

// DatabaseConfig controls agent profile persistence. When URL is empty the
// application runs with the in-memory profile store.
type DatabaseConfig struct {
	// URL is a postgres:// connection URL. Usually supplied via the
	// DATABASE_URL environment variable rather than the file.
	URL string `yaml:"url,omitempty"`
}

// DefaultDatabaseConfig returns the built-in database defaults: no database,
// in-memory profiles.
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{}
}

// Enabled reports whether a Postgres store is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}
