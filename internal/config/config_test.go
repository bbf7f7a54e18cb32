package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvedStaleAfterDefault(t *testing.T) {

	assert := assert.New(t)

	// unset threshold resolves to one poll interval, so a single missed
	// cycle marks the snapshot stale
	monitor := MonitorConfig{PollIntervalMillis: 30000}
	assert.Equal(uint32(30000), monitor.ResolvedStaleAfterMillis(), "default threshold")

	// an explicit threshold wins over the default
	monitor.StaleAfterMillis = 45000
	assert.Equal(uint32(45000), monitor.ResolvedStaleAfterMillis(), "explicit threshold")
}

func TestConfigValidate(t *testing.T) {

	assert := assert.New(t)

	cfg := Config{
		InverterModbusTcp: InverterModbusTCPConfig{
			Host:   "192.168.1.10",
			Port:   502,
			UnitId: 3,
		},
		MonitorConfig: MonitorConfig{PollIntervalMillis: DefaultPollIntervalMillis},
	}
	assert.NoError(cfg.Validate(), "valid config")

	noHost := cfg
	noHost.InverterModbusTcp.Host = ""
	assert.Error(noHost.Validate(), "missing host")

	badUnit := cfg
	badUnit.InverterModbusTcp.UnitId = 300
	assert.Error(badUnit.Validate(), "unit id out of range")

	fastPoll := cfg
	fastPoll.MonitorConfig.PollIntervalMillis = MinPollIntervalMillis - 1
	assert.Error(fastPoll.Validate(), "poll interval too low")
}
