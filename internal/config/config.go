package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"govee-client/internal/constants"
)

type Config struct {
	// APIKey is the Govee developer API key, required.
	APIKey string `mapstructure:"apiKey"`

	// RateLimitThreshold is the remaining-request count below which API
	// calls are delayed until the limit window resets.
	RateLimitThreshold int `mapstructure:"rateLimitThreshold"`

	// OfflineIsOff, when set, globally overrides whether an unreachable
	// device is treated as powered off.
	OfflineIsOff *bool `mapstructure:"offlineIsOff"`

	// IgnoreAttributes lists state fields to exclude from updates, e.g.
	// "API:brightness;History:power_state".
	IgnoreAttributes string `mapstructure:"ignoreAttributes"`

	// LearningDB is the path of the sqlite file holding learned device
	// quirks. Empty disables persistence.
	LearningDB string `mapstructure:"learningDb"`

	// PollIntervalSeconds is how often every device's state is refreshed.
	PollIntervalSeconds int `mapstructure:"pollIntervalSeconds"`

	LogFile string `mapstructure:"logFile"`
}

func ReadConfig() (*Config, error) {
	viper.SetConfigName("govee")
	viper.SetConfigType("json")
	viper.AddConfigPath("/etc/govee/")
	viper.AddConfigPath("$HOME/.config/govee/")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("govee")
	viper.BindEnv("apiKey", "GOVEE_API_KEY")
	viper.AutomaticEnv()

	viper.SetDefault("rateLimitThreshold", constants.DefaultRateLimitThreshold)
	viper.SetDefault("pollIntervalSeconds", 30)
	viper.SetDefault("learningDb", "govee_learning.db")

	if err := viper.ReadInConfig(); err != nil {
		// config may come entirely from the environment
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	config := Config{}
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if config.APIKey == "" {
		return nil, errors.New("no API key configured, set apiKey or GOVEE_API_KEY")
	}
	return &config, nil
}
