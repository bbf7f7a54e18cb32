package domain

import "github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MODBUS       = "modbus"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_COMMAND      = "command"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// modbus actor

type ReadSnapshotRequest struct {
	ActorRequestMixIn
}

type ReadSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot *voltx_modbus.Snapshot
}

type ReadRegistersRequest struct {
	ActorRequestMixIn
	Keys []string
}

type ReadRegistersResponse struct {
	ActorResponseMixIn
	Snapshot *voltx_modbus.Snapshot
}

type WriteRegisterRequest struct {
	ActorRequestMixIn
	Key   string
	Value float64
}

type WriteRegisterResponse struct {
	ActorResponseMixIn
}

// poller

type GetSnapshotRequest struct {
	ActorRequestMixIn
}

type GetSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot *voltx_modbus.Snapshot
	// Polled is false until the first successful poll cycle.
	Polled bool
	// Stale means the snapshot outlived the configured freshness threshold.
	Stale bool
}

// RefreshKeysRequest asks the poller for an out-of-cycle partial read. The
// result is merged over the current snapshot and republished.
type RefreshKeysRequest struct {
	ActorRequestMixIn
	Keys []string
}

// SnapshotPublishedEvent is broadcast on the actor system event stream
// every time the poller produces a new snapshot.
type SnapshotPublishedEvent struct {
	Snapshot *voltx_modbus.Snapshot
	Stale    bool
}

// command gateway

type WriteOutcome uint8

const (
	// WriteApplied means the device acknowledged the write.
	WriteApplied WriteOutcome = iota
	// WriteRejected means validation failed before any I/O.
	WriteRejected
	// WriteTransportFailed means the wire operation failed; the register
	// state is unknown and the caller decides whether to retry.
	WriteTransportFailed
)

func (o WriteOutcome) String() string {
	switch o {
	case WriteApplied:
		return "applied"
	case WriteRejected:
		return "rejected"
	case WriteTransportFailed:
		return "transport_failed"
	default:
		return "unknown"
	}
}

type SubmitWriteRequest struct {
	RegisterWriteRequestMixIn
	Key   string
	Value float64
}

type SubmitWriteResponse struct {
	ActorResponseMixIn
	Key     string
	Outcome WriteOutcome
}

// mqtt actor

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Selects      []GenericSelect
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
