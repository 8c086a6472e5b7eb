package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Address string `mapstructure:"address"`
		Port    string `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		Dir  string `mapstructure:"dir"`
		File string `mapstructure:"file"`
	} `mapstructure:"database"`

	Auth struct {
		JWTSecret     string `mapstructure:"jwt_secret"`
		TokenTTLHours int    `mapstructure:"token_ttl_hours"`
		AdminUsername string `mapstructure:"admin_username"`
		AdminPassword string `mapstructure:"admin_password"`
	} `mapstructure:"auth"`

	SheetSync struct {
		Enabled        bool   `mapstructure:"enabled"`
		CredentialFile string `mapstructure:"credential_file"`
		SpreadsheetID  string `mapstructure:"spreadsheet_id"`
		SheetName      string `mapstructure:"sheet_name"`
	} `mapstructure:"sheet_sync"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
	} `mapstructure:"logs"`
}

// Load reads configuration from the environment and an optional yaml file,
// applying defaults for everything but the JWT secret.
func Load() (*Config, error) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.address", "0.0.0.0")
	viper.SetDefault("server.port", "8080")

	viper.SetDefault("database.dir", "data")
	viper.SetDefault("database.file", "licenses.db")

	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.token_ttl_hours", 24)
	viper.SetDefault("auth.admin_username", "admin")
	viper.SetDefault("auth.admin_password", "admin")

	viper.SetDefault("sheet_sync.enabled", false)
	viper.SetDefault("sheet_sync.sheet_name", "Licenses")

	viper.SetDefault("logs.level", "info")
	viper.SetDefault("logs.format", "text")

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/license-activation-service")
	}

	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret must be set")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.port must not be empty")
	}
	if c.SheetSync.Enabled {
		if c.SheetSync.CredentialFile == "" || c.SheetSync.SpreadsheetID == "" {
			return errors.New("sheet_sync requires credential_file and spreadsheet_id")
		}
	}
	return nil
}
