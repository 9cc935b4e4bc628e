package sqlite

import (
	"strings"

	"api-gateway/internal/common/errors"
)

const storageType = "sqlite"

type Config struct {
	// DatabasePath is a file path or ":memory:". Driver options may follow
	// a "?".
	DatabasePath string
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return errors.ConfigurationError("DATABASE_PATH is required for sqlite storage")
	}
	return nil
}

func (c *Config) GetType() string { return storageType }

// dsn enables foreign keys and a busy timeout unless the path already
// carries driver options.
func (c *Config) dsn() string {
	if strings.Contains(c.DatabasePath, "?") {
		return c.DatabasePath
	}
	return c.DatabasePath + "?_busy_timeout=5000&_foreign_keys=on"
}
