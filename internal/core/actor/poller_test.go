package actor

import (
	"sync/atomic"
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

func TestPollerActorSnapshot(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	catalog := voltx_modbus.DefaultCatalog()
	device := voltx_modbus.CreateTestDeviceClient()

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewModbusActor(device, 10*time.Second, logger)
	})
	modbusPID := context.Spawn(modbusProps)

	es := &eventstream.EventStream{}
	var published atomic.Int32
	es.Subscribe(func(value any) {
		if _, ok := value.(domain.SnapshotPublishedEvent); ok {
			published.Add(1)
		}
	})

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, modbusPID, es, catalog, logger)
	})
	pollerPID := context.Spawn(pollerProps)

	time.Sleep(1 * time.Second)

	res, err := context.RequestFuture(pollerPID, domain.GetSnapshotRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := res.(domain.GetSnapshotResponse)

	assert.True(resp.Polled, "polled")
	assert.False(resp.Stale, "not stale")
	assert.InDelta(233.1, resp.Snapshot.Get("vac").Num, 0.001, "grid voltage")
	assert.InDelta(76, resp.Snapshot.Get("soc").Num, 0.001, "state of charge")
	assert.GreaterOrEqual(published.Load(), int32(1), "snapshot published")

	context.Stop(pollerPID)
	context.Stop(modbusPID)

	as.Shutdown()
}

func TestPollerActorRefreshMerge(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	catalog := voltx_modbus.DefaultCatalog()
	device := voltx_modbus.CreateTestDeviceClient()

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewModbusActor(device, 10*time.Second, logger)
	})
	modbusPID := context.Spawn(modbusProps)

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, modbusPID, &eventstream.EventStream{}, catalog, logger)
	})
	pollerPID := context.Spawn(pollerProps)

	time.Sleep(1 * time.Second)

	// the device moves, a partial refresh picks it up
	device.SetRaw("soc", 50)
	context.Send(pollerPID, domain.RefreshKeysRequest{Keys: []string{"soc"}})

	time.Sleep(1 * time.Second)

	res, err := context.RequestFuture(pollerPID, domain.GetSnapshotRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := res.(domain.GetSnapshotResponse)

	assert.InDelta(50, resp.Snapshot.Get("soc").Num, 0.001, "refreshed state of charge")
	// the rest of the snapshot survives the merge
	assert.InDelta(233.1, resp.Snapshot.Get("vac").Num, 0.001, "grid voltage")

	context.Stop(pollerPID)
	context.Stop(modbusPID)

	as.Shutdown()
}

func TestPollerActorDropsTicksWhileCycleInFlight(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	// keep the scheduler out of the way, the test drives the ticks
	cfg.MonitorConfig.PollIntervalMillis = 60000
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	catalog := voltx_modbus.DefaultCatalog()
	device := voltx_modbus.CreateTestDeviceClient()
	device.SetReadDelay(1500 * time.Millisecond)

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewModbusActor(device, 10*time.Second, logger)
	})
	modbusPID := context.Spawn(modbusProps)

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, modbusPID, &eventstream.EventStream{}, catalog, logger)
	})
	pollerPID := context.Spawn(pollerProps)

	// the startup cycle is now stuck on the slow device
	time.Sleep(200 * time.Millisecond)
	for i := 0; i < 5; i++ {
		context.Send(pollerPID, pollTick{})
	}

	// long enough for the cycle to resolve and for any queued tick to have
	// started another device read
	time.Sleep(3500 * time.Millisecond)

	assert.Equal(1, device.SnapshotReads(), "ticks during the cycle are dropped, not queued")

	res, err := context.RequestFuture(pollerPID, domain.GetSnapshotRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := res.(domain.GetSnapshotResponse)
	assert.True(resp.Polled, "the slow cycle still landed")

	context.Stop(pollerPID)
	context.Stop(modbusPID)

	as.Shutdown()
}

func TestPollerActorStaleMark(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.MonitorConfig.PollIntervalMillis = 60000
	cfg.MonitorConfig.StaleAfterMillis = 100
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	catalog := voltx_modbus.DefaultCatalog()
	device := voltx_modbus.CreateTestDeviceClient()

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewModbusActor(device, 10*time.Second, logger)
	})
	modbusPID := context.Spawn(modbusProps)

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, modbusPID, &eventstream.EventStream{}, catalog, logger)
	})
	pollerPID := context.Spawn(pollerProps)

	// wait well past the stale threshold with no new cycle due
	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pollerPID, domain.GetSnapshotRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := res.(domain.GetSnapshotResponse)

	assert.True(resp.Polled, "polled")
	assert.True(resp.Stale, "stale after threshold")
	// stale data is still served, not dropped
	assert.InDelta(76, resp.Snapshot.Get("soc").Num, 0.001, "state of charge")

	context.Stop(pollerPID)
	context.Stop(modbusPID)

	as.Shutdown()
}
