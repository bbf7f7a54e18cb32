package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

func TestSnapshotToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	catalog := voltx_modbus.DefaultCatalog()
	snapshot := voltx_modbus.NewSnapshot(time.Now(), map[string]voltx_modbus.Value{
		"vac":       voltx_modbus.NumericValue(233.1, 2331),
		"bst":       {Kind: voltx_modbus.ValueEnum, Raw: 2, Label: "Charging", Known: true},
		"work_mode": {Kind: voltx_modbus.ValueEnum, Raw: 3, Label: "Reserve Power", Known: true},
		"chpwr":     voltx_modbus.NumericValue(540, 540),
		"tmp":       voltx_modbus.UnavailableValue(),
	})

	events := SnapshotToUpdateEvents(catalog, snapshot)

	byId := map[string]any{}
	for _, ev := range events {
		byId[ev.(domain.SensorUpdateEvent).SensorId()] = ev
	}

	// read only numeric register maps to a plain sensor
	vac, ok := byId["vac"].(domain.FloatSensorUpdateEvent)
	assert.True(ok, "vac event type")
	assert.InDelta(233.1, vac.Value, 0.001, "vac value")

	// read only enum register maps to a text sensor
	bst, ok := byId["bst"].(domain.TextSensorUpdateEvent)
	assert.True(ok, "bst event type")
	assert.Equal("Charging", bst.Value, "bst label")

	// writable enum register maps to a select
	workMode, ok := byId["work_mode"].(domain.SelectSensorUpdateEvent)
	assert.True(ok, "work_mode event type")
	assert.Equal("Reserve Power", workMode.Value, "work_mode label")

	// writable numeric register maps to a number entity
	chpwr, ok := byId["chpwr"].(domain.InputNumberSensorUpdateEvent)
	assert.True(ok, "chpwr event type")
	assert.InDelta(540, chpwr.Value, 0.001, "chpwr value")

	// sentinel readings are announced as unavailable, not skipped
	_, ok = byId["tmp"].(domain.SensorUnavailableEvent)
	assert.True(ok, "tmp event type")

	// registers absent from the snapshot read as unavailable too
	_, ok = byId["soc"].(domain.SensorUnavailableEvent)
	assert.True(ok, "soc event type")
}

func TestEnumOptionsStableOrder(t *testing.T) {

	assert := assert.New(t)

	catalog := voltx_modbus.DefaultCatalog()
	desc, err := catalog.Lookup("work_mode")
	if err != nil {
		t.Fatal(err)
	}

	options := EnumOptions(desc)
	assert.Len(options, len(desc.Enum), "all labels present")
	assert.Equal(options, EnumOptions(desc), "deterministic order")
}
