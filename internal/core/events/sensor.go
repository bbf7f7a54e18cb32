package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/carlmjohnson/versioninfo"

	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"

	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"

	DEVICE_CLASS_APPARENT_POWER = "apparent_power"
	DEVICE_CLASS_BATTERY        = "battery"
	DEVICE_CLASS_CURRENT        = "current"
	DEVICE_CLASS_DURATION       = "duration"
	DEVICE_CLASS_ENERGY         = "energy"
	DEVICE_CLASS_FREQUENCY      = "frequency"
	DEVICE_CLASS_POWER          = "power"
	DEVICE_CLASS_REACTIVE_POWER = "reactive_power"
	DEVICE_CLASS_TEMPERATURE    = "temperature"
	DEVICE_CLASS_VOLTAGE        = "voltage"
	DEVICE_CLASS_CONNECTIVITY   = "connectivity"

	ENTITY_CLASS_DIAGNOSTIC = "diagnostic"
	ENTITY_CLASS_CONFIG     = "config"

	INPUT_NUMBER_MODE_BOX = "box"
)

func BridgeDevice(baseTopic string) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("voltx_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "stuart-jjj",
		Model:        "Voltx2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Voltx2mqtt %s", md5HashShort(baseTopic)),
	}
}

// InverterDevice identifies the inverter by its modbus endpoint. The Voltx
// register map has no readable serial number.
func InverterDevice(host string, unitId uint) domain.Device {
	endpoint := fmt.Sprintf("%s#%d", host, unitId)
	return domain.Device{
		Id:           fmt.Sprintf("voltx_inverter_%s", md5HashShort(endpoint)),
		Manufacturer: "Solplanet",
		Model:        "ASW hybrid inverter",
		Name:         fmt.Sprintf("Solplanet ASW %s", md5HashShort(endpoint)),
	}
}

func IdDevice(device domain.Device) domain.Device {
	return domain.Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

// CatalogSensors builds plain sensor discovery entries for every readable
// register that is not writable.
func CatalogSensors(inverterDevice domain.Device, catalog *voltx_modbus.Catalog) []domain.GenericSensor {
	var sensors []domain.GenericSensor
	for _, key := range catalog.Keys() {
		desc, err := catalog.Lookup(key)
		if err != nil || !desc.Readable() || desc.Writable() {
			continue
		}
		sensor := domain.GenericSensor{
			Device:            inverterDevice,
			Id:                desc.Key,
			SensorType:        "sensor",
			Name:              desc.Name,
			UnitOfMeasurement: desc.Unit,
			UniqueId:          uniqueId(inverterDevice.Id, desc.Key),
		}
		if desc.Encoding != voltx_modbus.Enum16 {
			sensor.StateClass = stateClassFor(desc)
			sensor.DeviceClass = deviceClassFor(desc)
		}
		sensors = append(sensors, sensor)
	}
	return sensors
}

// CatalogSelects builds select discovery entries for the writable enums.
func CatalogSelects(inverterDevice domain.Device, catalog *voltx_modbus.Catalog) []domain.GenericSelect {
	var selects []domain.GenericSelect
	for _, key := range catalog.Keys() {
		desc, err := catalog.Lookup(key)
		if err != nil || !desc.Writable() || desc.Encoding != voltx_modbus.Enum16 {
			continue
		}
		selects = append(selects, domain.GenericSelect{
			Device:   inverterDevice,
			Id:       desc.Key,
			Name:     desc.Name,
			UniqueId: uniqueId(inverterDevice.Id, desc.Key),
			Icon:     "mdi:cog",
			Options:  EnumOptions(desc),
		})
	}
	return selects
}

// CatalogInputNumbers builds number discovery entries for the writable
// numeric registers, with min/max/step derived from the raw range and
// scale.
func CatalogInputNumbers(inverterDevice domain.Device, catalog *voltx_modbus.Catalog) []domain.GenericInputNumber {
	var numbers []domain.GenericInputNumber
	for _, key := range catalog.Keys() {
		desc, err := catalog.Lookup(key)
		if err != nil || !desc.Writable() || desc.Encoding == voltx_modbus.Enum16 {
			continue
		}
		if desc.Range == nil {
			continue
		}
		scale := desc.Scale
		if scale == 0 {
			scale = 1
		}
		numbers = append(numbers, domain.GenericInputNumber{
			Device:   inverterDevice,
			Id:       desc.Key,
			Name:     desc.Name,
			UniqueId: uniqueId(inverterDevice.Id, desc.Key),
			Icon:     "mdi:battery-charging",
			Min:      float64(desc.Range.Min) * scale,
			Max:      float64(desc.Range.Max) * scale,
			Step:     step(desc.Decimals, scale),
			Mode:     INPUT_NUMBER_MODE_BOX,
			Unit:     desc.Unit,
		})
	}
	return numbers
}

func BridgeSensors(bridgeDevice domain.Device) []domain.GenericSensor {
	var sensors []domain.GenericSensor

	// bridge connectivity
	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     "binary_sensor",
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func stateClassFor(desc voltx_modbus.RegisterDescriptor) string {
	if desc.Unit == "kWh" {
		return STATE_CLASS_TOTAL_INCREASING
	}
	return STATE_CLASS_MEASUREMENT
}

func deviceClassFor(desc voltx_modbus.RegisterDescriptor) string {
	switch desc.Unit {
	case "W":
		return DEVICE_CLASS_POWER
	case "VA":
		return DEVICE_CLASS_APPARENT_POWER
	case "var":
		return DEVICE_CLASS_REACTIVE_POWER
	case "V":
		return DEVICE_CLASS_VOLTAGE
	case "A":
		return DEVICE_CLASS_CURRENT
	case "Hz":
		return DEVICE_CLASS_FREQUENCY
	case "°C":
		return DEVICE_CLASS_TEMPERATURE
	case "kWh":
		return DEVICE_CLASS_ENERGY
	case "h":
		return DEVICE_CLASS_DURATION
	case "%":
		if desc.Key == "soc" {
			return DEVICE_CLASS_BATTERY
		}
		return ""
	default:
		return ""
	}
}

func step(decimals uint, scale float64) float64 {
	if decimals > 0 {
		return math.Pow(10, -float64(decimals))
	}
	if scale < 1 && scale > 0 {
		return scale
	}
	return 1
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
