package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/flashdeck/internal/assets"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Source kinds.
const (
	SourceDrive = "drive"
	SourceLocal = "local"
)

// Session backends.
const (
	SessionsMemory = "memory"
	SessionsRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Source   SourceConfig      `yaml:"source"`
	Drive    DriveConfig       `yaml:"drive"`
	Local    LocalConfig       `yaml:"local"`
	Sessions SessionsConfig    `yaml:"sessions"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Gallery  GalleryConfig     `yaml:"gallery"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	switch c.Source.Kind {
	case SourceDrive:
		if err := c.Drive.Validate(); err != nil {
			return err
		}
	case SourceLocal:
		if err := c.Local.Validate(); err != nil {
			return err
		}
	}
	if err := c.Sessions.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Gallery.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig selects the image folder and how it is listed.
type SourceConfig struct {
	Kind     string      `yaml:"kind"`
	FolderID string      `yaml:"folder_id"`
	PageSize int         `yaml:"page_size"`
	URLForm  string      `yaml:"url_form"`
	Retry    RetryConfig `yaml:"retry"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	if c.URLForm == "" {
		c.URLForm = string(assets.FormThumbnail)
		if c.Kind == SourceLocal {
			c.URLForm = string(assets.FormLocal)
		}
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(SourceDrive, SourceLocal)),
		validation.Field(&c.PageSize, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.URLForm, validation.In(string(assets.FormThumbnail), string(assets.FormView), string(assets.FormLocal))),
	); err != nil {
		return err
	}
	if c.Kind == SourceDrive && c.FolderID == "" {
		return fmt.Errorf("source: folder_id is required for the %s source", SourceDrive)
	}
	if (c.Kind == SourceLocal) != (c.URLForm == string(assets.FormLocal)) {
		return fmt.Errorf("source: url form %q does not fit the %s source", c.URLForm, c.Kind)
	}
	return c.Retry.Validate()
}

// Form returns the configured card URL form.
func (c *SourceConfig) Form() assets.URLForm {
	form, err := assets.ParseURLForm(c.URLForm)
	if err != nil {
		return assets.FormThumbnail
	}
	return form
}

// RetryConfig bounds retries of a failed listing page.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// Validate validates the retry configuration.
func (c *RetryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&c.InitialInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxInterval, validation.Min(c.InitialInterval)),
	)
}

// Policy converts the configuration to a resolver retry policy.
func (c *RetryConfig) Policy() assets.RetryPolicy {
	return assets.RetryPolicy{
		MaxAttempts:     c.MaxAttempts,
		InitialInterval: c.InitialInterval,
		MaxInterval:     c.MaxInterval,
	}
}

// DriveConfig holds the Google Drive service credential.
type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

// Validate validates the Drive configuration.
func (c *DriveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CredentialsFile, validation.Required),
	)
}

// LocalConfig holds the local image folder used instead of Drive.
type LocalConfig struct {
	Root  string `yaml:"root"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the local source configuration.
func (c *LocalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// SessionsConfig selects where session state lives.
type SessionsConfig struct {
	Backend  string        `yaml:"backend"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Validate validates the session configuration.
func (c *SessionsConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = SessionsMemory
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(SessionsMemory, SessionsRedis)),
		validation.Field(&c.RedisURL, validation.When(c.Backend == SessionsRedis, validation.Required)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	)
}

// SQLiteConfig holds the resolution history database configuration.
// An empty path disables history. Records older than Retention are pruned;
// zero keeps them forever.
type SQLiteConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Retention, validation.Min(time.Duration(0))),
	)
}

// Enabled reports whether history is recorded.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

// GalleryConfig holds page layout settings.
type GalleryConfig struct {
	Title   string `yaml:"title"`
	Columns int    `yaml:"columns"`
}

// Validate validates the gallery configuration.
func (c *GalleryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Columns, validation.Required, validation.Min(1), validation.Max(16)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication on /api; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	retry := assets.DefaultRetryPolicy()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			Kind:     SourceDrive,
			PageSize: assets.DefaultPageSize,
			Retry: RetryConfig{
				MaxAttempts:     retry.MaxAttempts,
				InitialInterval: retry.InitialInterval,
				MaxInterval:     retry.MaxInterval,
			},
		},
		Drive: DriveConfig{
			CredentialsFile: "./credentials.json",
		},
		Local: LocalConfig{
			Root: "./cards",
		},
		Sessions: SessionsConfig{
			Backend: SessionsMemory,
			TTL:     12 * time.Hour,
		},
		SQLite: SQLiteConfig{
			Path:      "./flashdeck.db",
			Retention: 30 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Gallery: GalleryConfig{
			Title:   "BCA Flashcards",
			Columns: 8,
		},
	}
}
