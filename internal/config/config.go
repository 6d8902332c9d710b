// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	OAuth   OAuth   `yaml:"oauth"`
	Session Session `yaml:"session"`
	CORS    CORS    `yaml:"cors"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":5175"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

// OAuth configures the relying-party client for the Kerliix identity
// service. ClientSecret may stay empty for PKCE-only public clients.
type OAuth struct {
	BaseURL      string              `yaml:"baseURL" default:"https://api.kerliix.com"`
	RedirectURI  string              `yaml:"redirectURI" default:"http://localhost:5175/callback"`
	ClientID     commoncfg.SourceRef `yaml:"clientID"`
	ClientSecret commoncfg.SourceRef `yaml:"clientSecret"`
	Scopes       []string            `yaml:"scopes"`
}

type Session struct {
	Duration      time.Duration `yaml:"duration" default:"12h"`
	StateDuration time.Duration `yaml:"stateDuration" default:"10m"`
	IdleTimeout   time.Duration `yaml:"idleTimeout" default:"1h"`

	// CleanupInterval paces both the housekeeper and the store's eviction
	// of expired entries.
	CleanupInterval time.Duration `yaml:"cleanupInterval" default:"5m"`

	// FrontendURL is where the callback redirects the user agent after a
	// successful login.
	FrontendURL string `yaml:"frontendURL" default:"http://localhost:5176"`

	CSRFSecret commoncfg.SourceRef `yaml:"csrfSecret"`

	SessionCookieTemplate CookieTemplate `yaml:"sessionCookie"`
	CSRFCookieTemplate    CookieTemplate `yaml:"csrfCookie"`
}

type CORS struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials" default:"true"`
}
