package events

import (
	"sort"

	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

// SnapshotToUpdateEvents maps a published snapshot to per-register sensor
// update events. The register key doubles as sensor id.
func SnapshotToUpdateEvents(catalog *voltx_modbus.Catalog, snapshot *voltx_modbus.Snapshot) []any {
	var events []any
	for _, key := range catalog.Keys() {
		desc, err := catalog.Lookup(key)
		if err != nil || !desc.Readable() {
			continue
		}
		value := snapshot.Get(key)
		if !value.Available() {
			events = append(events, domain.SensorUnavailableEvent{
				SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: key},
			})
			continue
		}
		events = append(events, valueToUpdateEvent(desc, value))
	}
	return events
}

func valueToUpdateEvent(desc voltx_modbus.RegisterDescriptor, value voltx_modbus.Value) any {
	mixin := domain.SensorUpdateEventMixIn{Id: desc.Key}
	switch value.Kind {
	case voltx_modbus.ValueEnum:
		if desc.Writable() {
			return domain.SelectSensorUpdateEvent{
				SensorUpdateEventMixIn: mixin,
				Value:                  value.String(),
			}
		}
		return domain.TextSensorUpdateEvent{
			SensorUpdateEventMixIn: mixin,
			Value:                  value.String(),
		}
	case voltx_modbus.ValueText:
		return domain.TextSensorUpdateEvent{
			SensorUpdateEventMixIn: mixin,
			Value:                  value.Text,
		}
	default:
		if desc.Writable() {
			return domain.InputNumberSensorUpdateEvent{
				SensorUpdateEventMixIn: mixin,
				Value:                  value.Num,
				Decimals:               desc.Decimals,
			}
		}
		return domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: mixin,
			Value:                  value.Num,
			Decimals:               desc.Decimals,
		}
	}
}

// EnumOptions returns the enum labels of a descriptor in a stable order for
// HA select discovery.
func EnumOptions(desc voltx_modbus.RegisterDescriptor) []string {
	raws := make([]int, 0, len(desc.Enum))
	for raw := range desc.Enum {
		raws = append(raws, int(raw))
	}
	sort.Ints(raws)
	options := make([]string, 0, len(raws))
	for _, raw := range raws {
		options = append(options, desc.Enum[uint16(raw)])
	}
	return options
}
