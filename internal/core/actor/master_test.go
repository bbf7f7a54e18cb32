package actor

import (
	"fmt"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	adactor "github.com/stuart-jjj/voltx2mqtt/internal/adapter/actor"
	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/internal/util"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	catalog := voltx_modbus.DefaultCatalog()
	device := voltx_modbus.CreateTestDeviceClient()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, catalog, func() *adactor.ModbusActor {
			return adactor.NewModbusActor(device, 10*time.Second, logger)
		}, func() *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	// the poller's first cycle has run by now, so the snapshot route works
	res, err = context.RequestFuture(pid, domain.GetSnapshotRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	snapResp, ok := res.(domain.GetSnapshotResponse)
	assert.True(t, ok)
	assert.True(t, snapResp.Polled, "polled")
	assert.False(t, snapResp.Stale, "not stale")
	assert.InDelta(t, 76, snapResp.Snapshot.Get("soc").Num, 0.001, "state of charge")

	// writes route through the command gateway
	res, err = context.RequestFuture(pid, domain.SubmitWriteRequest{Key: "soc_min", Value: 12}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	writeResp, ok := res.(domain.SubmitWriteResponse)
	assert.True(t, ok)
	assert.Equal(t, domain.WriteApplied, writeResp.Outcome, "write applied")

	context.Stop(pid)

	as.Shutdown()
}
