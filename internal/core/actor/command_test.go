package actor

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	adactor "github.com/stuart-jjj/voltx2mqtt/internal/adapter/actor"
	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/internal/util"
	"github.com/stuart-jjj/voltx2mqtt/internal/util/actorutil"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

type commandTestRig struct {
	as      *actor.ActorSystem
	context *actor.RootContext
	device  *voltx_modbus.TestDeviceClient
	modbus  *actor.PID
	poller  *actor.PID
	command *actor.PID
}

func newCommandTestRig(t *testing.T) *commandTestRig {
	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	catalog := voltx_modbus.DefaultCatalog()
	device := voltx_modbus.CreateTestDeviceClient()

	modbusPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewModbusActor(device, 10*time.Second, logger)
	}))
	pollerPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, modbusPID, &eventstream.EventStream{}, catalog, logger)
	}))
	commandPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewCommandGatewayActor(&cfg, modbusPID, pollerPID, catalog, logger)
	}))

	time.Sleep(1 * time.Second)

	return &commandTestRig{
		as:      as,
		context: context,
		device:  device,
		modbus:  modbusPID,
		poller:  pollerPID,
		command: commandPID,
	}
}

func (rig *commandTestRig) stop() {
	rig.context.Stop(rig.command)
	rig.context.Stop(rig.poller)
	rig.context.Stop(rig.modbus)
	rig.as.Shutdown()
}

func (rig *commandTestRig) submit(t *testing.T, key string, value float64) domain.SubmitWriteResponse {
	res, err := rig.context.RequestFuture(rig.command, domain.SubmitWriteRequest{
		Key:   key,
		Value: value,
	}, 10*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	return res.(domain.SubmitWriteResponse)
}

func TestCommandGatewayAppliedWrite(t *testing.T) {

	assert := assert.New(t)

	rig := newCommandTestRig(t)
	defer rig.stop()

	resp := rig.submit(t, "soc_max", 95)

	assert.Equal(domain.WriteApplied, resp.Outcome, "outcome")
	assert.False(resp.HasResponseError(), "no error")
	writes := rig.device.Writes()
	assert.Len(writes, 1, "one device write")
	assert.Equal("soc_max", writes[0].Key, "written key")
	assert.Equal([]uint16{9500}, writes[0].Words, "written words")

	// the gateway asked the poller to refresh the written register
	time.Sleep(1 * time.Second)
	res, err := rig.context.RequestFuture(rig.poller, domain.GetSnapshotRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	snapResp := res.(domain.GetSnapshotResponse)
	assert.InDelta(95, snapResp.Snapshot.Get("soc_max").Num, 0.001, "refreshed setpoint")
}

func TestCommandGatewayRejectsBeforeIO(t *testing.T) {

	assert := assert.New(t)

	rig := newCommandTestRig(t)
	defer rig.stop()

	// out of range
	resp := rig.submit(t, "chpwr", -15000)
	assert.Equal(domain.WriteRejected, resp.Outcome, "outcome")
	assert.ErrorIs(resp.GetResponseError(), voltx_modbus.ErrOutOfRange, "error kind")

	// unknown register
	resp = rig.submit(t, "nope", 1)
	assert.Equal(domain.WriteRejected, resp.Outcome, "outcome")
	assert.ErrorIs(resp.GetResponseError(), voltx_modbus.ErrUnknownRegister, "error kind")

	// invalid enum state
	resp = rig.submit(t, "work_mode", 7)
	assert.Equal(domain.WriteRejected, resp.Outcome, "outcome")
	assert.ErrorIs(resp.GetResponseError(), voltx_modbus.ErrInvalidEnum, "error kind")

	// read only register
	resp = rig.submit(t, "soc", 50)
	assert.Equal(domain.WriteRejected, resp.Outcome, "outcome")
	assert.ErrorIs(resp.GetResponseError(), voltx_modbus.ErrNotWritable, "error kind")

	// nothing reached the device
	assert.Len(rig.device.Writes(), 0, "no device writes")
}

func TestCommandGatewayTransportFailure(t *testing.T) {

	assert := assert.New(t)

	rig := newCommandTestRig(t)
	defer rig.stop()

	rig.device.FailWrites(fmt.Errorf("%w: connection reset", voltx_modbus.ErrTransport))

	resp := rig.submit(t, "soc_max", 90)

	assert.Equal(domain.WriteTransportFailed, resp.Outcome, "outcome")
	assert.ErrorIs(resp.GetResponseError(), voltx_modbus.ErrTransport, "error kind")
}

func TestCommandGatewaySerializesSubmissions(t *testing.T) {

	assert := assert.New(t)

	rig := newCommandTestRig(t)
	defer rig.stop()

	first := rig.context.RequestFuture(rig.command, domain.SubmitWriteRequest{Key: "soc_max", Value: 90}, 10*time.Second)
	second := rig.context.RequestFuture(rig.command, domain.SubmitWriteRequest{Key: "soc_min", Value: 20}, 10*time.Second)

	res1, err := first.Result()
	if err != nil {
		t.Fatal(err)
	}
	res2, err := second.Result()
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(domain.WriteApplied, res1.(domain.SubmitWriteResponse).Outcome, "first outcome")
	assert.Equal(domain.WriteApplied, res2.(domain.SubmitWriteResponse).Outcome, "second outcome")

	writes := rig.device.Writes()
	assert.Len(writes, 2, "both writes reached the device")
	assert.Equal("soc_max", writes[0].Key, "submission order")
	assert.Equal("soc_min", writes[1].Key, "submission order")
}

func TestCommandGatewayWriteNeverInterleavesPollCycle(t *testing.T) {

	assert := assert.New(t)

	rig := newCommandTestRig(t)
	defer rig.stop()

	rig.device.SetReadDelay(1 * time.Second)

	// start a slow poll cycle, then submit while its read is in flight
	rig.context.Send(rig.poller, pollTick{})
	time.Sleep(200 * time.Millisecond)

	resp := rig.submit(t, "soc_max", 90)
	assert.Equal(domain.WriteApplied, resp.Outcome, "outcome")

	ops := rig.device.Ops()
	inCycle := false
	cycles := 0
	wroteAt := -1
	for i, op := range ops {
		switch {
		case op == "snapshot:start":
			inCycle = true
			cycles++
		case op == "snapshot:end":
			inCycle = false
		case strings.HasPrefix(op, "write:"):
			assert.False(inCycle, "write landed inside a poll cycle: %v", ops)
			wroteAt = i
		}
	}
	assert.GreaterOrEqual(cycles, 2, "the slow cycle ran alongside the submit")
	assert.Greater(wroteAt, 0, "the write reached the device")
}
