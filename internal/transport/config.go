package transport

import (
	"errors"
	"fmt"
	"time"
)

// Config describes one delivery backend.
type Config struct {
	// Type selects the implementation: "smtp", "sendgrid", "mailgun",
	// "stdout" or "file".
	Type string `mapstructure:"type"`

	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	TLS                string        `mapstructure:"tls"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	LocalName          string        `mapstructure:"local_name"`
	Timeout            time.Duration `mapstructure:"timeout"`

	// Path is the output directory of the file transport.
	Path string `mapstructure:"path"`

	// APIKey, Endpoint and Domain configure the HTTP API transports.
	// An empty Endpoint selects the provider's public API.
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	Domain   string `mapstructure:"domain"`
}

const (
	defaultTimeout   = 30 * time.Second
	defaultLocalName = "localhost"
	defaultOutputDir = "./mail_output"
)

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.Type == "" {
		return errors.New("transport type is required")
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	switch c.Type {
	case "smtp":
		if c.Host == "" {
			return errors.New("smtp: host is required")
		}
		if c.Port == 0 {
			c.Port = 25
		}
		if c.LocalName == "" {
			c.LocalName = defaultLocalName
		}
		switch c.TLS {
		case "":
			c.TLS = TLSNone
		case TLSNone, TLSStartTLS, TLSImplicit:
		default:
			return fmt.Errorf("smtp: unknown tls mode %q", c.TLS)
		}
		if c.Username != "" && c.TLS == TLSNone && !c.InsecureSkipVerify {
			return errors.New("smtp: refusing to send credentials without tls")
		}
	case "sendgrid":
		if c.APIKey == "" {
			return errors.New("sendgrid: api_key is required")
		}
	case "mailgun":
		if c.APIKey == "" {
			return errors.New("mailgun: api_key is required")
		}
		if c.Domain == "" {
			return errors.New("mailgun: domain is required")
		}
	case "stdout":
	case "file":
		if c.Path == "" {
			c.Path = defaultOutputDir
		}
	default:
		return errors.New("unknown transport type: " + c.Type)
	}
	return nil
}
