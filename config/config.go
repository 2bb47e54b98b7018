// Package config loads rollcall configuration from TOML files and
// ROLLCALL_-prefixed environment variables via Viper.
package config

// Config represents the core rollcall configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	ClubHub  ClubHubConfig  `mapstructure:"clubhub"`
	Checkin  CheckinConfig  `mapstructure:"checkin"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the rollcall HTTP control surface
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ClubHubConfig configures the external club management service.
// How the token is obtained is out of scope here; it is supplied ready-made.
type ClubHubConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Token          string `mapstructure:"token"`
	ClubID         int    `mapstructure:"club_id"`
	DoorID         int    `mapstructure:"door_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // per-request timeout for directory reads and submissions
	PageSize       int    `mapstructure:"page_size"`       // directory fetch page size
}

// CheckinConfig configures the bulk check-in engine
type CheckinConfig struct {
	// PaceDelayMillis is the fixed delay between accounts. Rate limiting
	// for the external service, not correctness-critical.
	PaceDelayMillis int `mapstructure:"pace_delay_millis"`

	// ProgressWriteInterval is how many accounts are processed between
	// best-effort registry progress writes.
	ProgressWriteInterval int `mapstructure:"progress_write_interval"`
}

// DefaultServerPort is the default control-surface port
const DefaultServerPort = 8742
