package db

import (
	"fmt"
	"net/url"
)

const sslModeDisable = "disable"

// DefaultConfig returns the default configuration of the database.
func DefaultConfig() *Config {
	return &Config{
		Host:    "localhost",
		Port:    "5432",
		Name:    "hyperband",
		SSLMode: sslModeDisable,
	}
}

// Config hosts configuration fields of the database.
type Config struct {
	User        string `json:"user"`
	Password    string `json:"password"`
	Host        string `json:"host"`
	Port        string `json:"port"`
	Name        string `json:"name"`
	SSLMode     string `json:"ssl_mode"`
	SSLRootCert string `json:"ssl_root_cert"`
}

// URL returns the connection string for the configured database.
func (c Config) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:   c.Name,
	}
	q := url.Values{}
	q.Set("application_name", "hyperband")
	q.Set("sslmode", c.SSLMode)
	if c.SSLRootCert != "" {
		q.Set("sslrootcert", c.SSLRootCert)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Printable returns a copy of the config with the password hidden.
func (c Config) Printable() Config {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}
