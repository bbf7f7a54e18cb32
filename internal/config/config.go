package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	// MinPollIntervalMillis guards the inverter from poll storms. Values
	// below this are a config error, not something to silently clamp.
	MinPollIntervalMillis = 2000
	// DefaultPollIntervalMillis matches the inverter vendor's recommended
	// scan interval.
	DefaultPollIntervalMillis = 30000
)

type Config struct {
	LogLevel          zapcore.Level
	InverterModbusTcp InverterModbusTCPConfig `mapstructure:"inverter_modbus_tcp"`
	MQTT              MQTTConfig              `mapstructure:"mqtt"`

	MonitorConfig MonitorConfig `mapstructure:"monitor"`
	Port          uint          `mapstructure:"port"`
	HttpLog       bool          `mapstructure:"http_log"`
}

type InverterModbusTCPConfig struct {
	Host          string
	Port          uint
	UnitId        uint   `mapstructure:"unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	// StaleAfterMillis marks the published snapshot stale once its age
	// passes this threshold. 0 means one poll interval, so a single
	// missed cycle already flags the data.
	StaleAfterMillis uint32 `mapstructure:"stale_after_millis"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (c Config) Validate() error {
	if c.InverterModbusTcp.Host == "" {
		return errors.New("inverter host is required")
	}
	if c.InverterModbusTcp.UnitId > 247 {
		return errors.New("inverter unit id must be 0..247")
	}
	if c.MonitorConfig.PollIntervalMillis < MinPollIntervalMillis {
		return errors.New("poll interval must be at least 2000 ms")
	}
	return nil
}

// ResolvedStaleAfterMillis applies the stale threshold default of one
// poll interval.
func (c MonitorConfig) ResolvedStaleAfterMillis() uint32 {
	if c.StaleAfterMillis > 0 {
		return c.StaleAfterMillis
	}
	return c.PollIntervalMillis
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
