package actor

import (
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/internal/util/actorutil"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

func TestReadSnapshotModbusActor(t *testing.T) {

	assert := assert.New(t)

	device := voltx_modbus.CreateTestDeviceClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewModbusActor(device, 10*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.ReadSnapshotRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.ReadSnapshotResponse)

	assert.False(resp.HasResponseError(), "snapshot error")
	assert.NotNil(resp.Snapshot, "snapshot")
	assert.InDelta(233.1, resp.Snapshot.Get("vac").Num, 0.001, "grid voltage")
	assert.Equal("Charging", resp.Snapshot.Get("bst").Label, "battery state")
	assert.InDelta(76, resp.Snapshot.Get("soc").Num, 0.001, "state of charge")

	context.Stop(pid)

	as.Shutdown()
}

func TestReadRegistersModbusActor(t *testing.T) {

	assert := assert.New(t)

	device := voltx_modbus.CreateTestDeviceClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewModbusActor(device, 10*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.ReadRegistersRequest{Keys: []string{"chpwr", "pb"}}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.ReadRegistersResponse)

	assert.False(resp.HasResponseError(), "read error")
	assert.InDelta(540, resp.Snapshot.Get("chpwr").Num, 0.001, "charge power setpoint")
	assert.InDelta(540, resp.Snapshot.Get("pb").Num, 0.001, "battery power")
	assert.False(resp.Snapshot.Get("soc").Available(), "unread register")

	context.Stop(pid)

	as.Shutdown()
}

func TestWriteRegisterModbusActor(t *testing.T) {

	assert := assert.New(t)

	device := voltx_modbus.CreateTestDeviceClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewModbusActor(device, 10*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	// valid write reaches the device
	result, err := context.RequestFuture(pid, domain.WriteRegisterRequest{Key: "soc_min", Value: 15}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.WriteRegisterResponse)
	assert.False(resp.HasResponseError(), "write error")
	writes := device.Writes()
	assert.Len(writes, 1, "writes")
	assert.Equal("soc_min", writes[0].Key, "written key")
	assert.Equal([]uint16{1500}, writes[0].Words, "written words")

	// out of range write comes back as a typed error, not a dead letter
	result, err = context.RequestFuture(pid, domain.WriteRegisterRequest{Key: "chpwr", Value: 50000}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp = result.(domain.WriteRegisterResponse)
	assert.True(resp.HasResponseError(), "write error expected")
	assert.ErrorIs(resp.GetResponseError(), voltx_modbus.ErrOutOfRange, "error kind")
	assert.Len(device.Writes(), 1, "no extra writes")

	context.Stop(pid)

	as.Shutdown()
}
