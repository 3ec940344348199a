package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyHost          = "device.host"
	KeyTimeout       = "device.timeout"
	KeyMinAPIVersion = "device.min_api_version"
	KeyLogLevel      = "log.level"
)

// Defaults applied when neither the config file nor the environment sets a value.
const (
	DefaultHost          = "192.168.1.29"
	DefaultTimeout       = 10 * time.Second
	DefaultMinAPIVersion = "1.9"
	DefaultLogLevel      = "info"
)

// Load initializes viper with defaults, the optional configs/config.yml file,
// and REW2SM_* environment overrides. A missing config file is not an error;
// an unreadable or malformed one is.
func Load() error {
	setDefaults()

	viper.SetEnvPrefix("REW2SM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if os.IsNotExist(err) || errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault(KeyHost, DefaultHost)
	viper.SetDefault(KeyTimeout, DefaultTimeout)
	viper.SetDefault(KeyMinAPIVersion, DefaultMinAPIVersion)
	viper.SetDefault(KeyLogLevel, DefaultLogLevel)
}

// Host returns the configured device address.
func Host() string { return viper.GetString(KeyHost) }

// Timeout returns the wall-clock budget for one device session.
func Timeout() time.Duration { return viper.GetDuration(KeyTimeout) }

// MinAPIVersion returns the protocol version floor the device must meet.
func MinAPIVersion() string { return viper.GetString(KeyMinAPIVersion) }

// LogLevel returns the configured log level string.
func LogLevel() string { return viper.GetString(KeyLogLevel) }
