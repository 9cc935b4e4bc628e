package postgres

import (
	"net"
	"net/url"
	"strconv"

	"api-gateway/internal/common/errors"
)

const storageType = "postgres"

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// Validate fills the default port and sslmode.
func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return errors.ConfigurationError("POSTGRES_HOST is required")
	case c.Database == "":
		return errors.ConfigurationError("POSTGRES_DB is required")
	case c.Username == "":
		return errors.ConfigurationError("POSTGRES_USER is required")
	}
	if c.Port <= 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}
	return nil
}

func (c *Config) GetType() string { return storageType }

// GetConnectionString renders the postgres:// URL pgx expects.
func (c *Config) GetConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// NewConfigFromURL parses a postgres:// connection URL.
func NewConfigFromURL(raw string) (*Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.ConfigurationError("invalid PostgreSQL URL").WithCause(err)
	}
	if len(u.Path) < 2 {
		return nil, errors.ConfigurationError("PostgreSQL URL has no database name")
	}

	c := &Config{
		Host:     u.Hostname(),
		Port:     5432,
		Database: u.Path[1:],
		Username: u.User.Username(),
		SSLMode:  "prefer",
	}
	if p := u.Port(); p != "" {
		if c.Port, err = strconv.Atoi(p); err != nil {
			return nil, errors.ConfigurationError("invalid PostgreSQL port " + strconv.Quote(p))
		}
	}
	c.Password, _ = u.User.Password()
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.SSLMode = mode
	}
	return c, nil
}
