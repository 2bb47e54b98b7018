package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SetDefaults establishes default values for all configuration keys
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", defaultDatabasePath())

	v.SetDefault("server.port", DefaultServerPort)

	v.SetDefault("clubhub.base_url", "")
	v.SetDefault("clubhub.token", "")
	v.SetDefault("clubhub.club_id", 0)
	v.SetDefault("clubhub.door_id", 0)
	v.SetDefault("clubhub.timeout_seconds", 30)
	v.SetDefault("clubhub.page_size", 200)

	v.SetDefault("checkin.pace_delay_millis", 250)
	v.SetDefault("checkin.progress_write_interval", 10)
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rollcall.db"
	}
	return filepath.Join(home, ".rollcall", "rollcall.db")
}
