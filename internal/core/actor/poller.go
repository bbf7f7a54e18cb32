package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"

	"github.com/stuart-jjj/voltx2mqtt/internal/config"
	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/internal/core/events"
	"github.com/stuart-jjj/voltx2mqtt/internal/util/actorutil"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

// PollerActor drives the poll cycle. It keeps the latest snapshot, serves
// it without blocking, and publishes every new one on the event stream.
// Ticks that land while a cycle is in flight are dropped, never queued.
type PollerActor struct {
	behavior  actor.Behavior
	stash     *actorutil.Stash
	scheduler quartz.Scheduler
	cancel    context.CancelFunc

	modbusActor *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	catalog     *voltx_modbus.Catalog

	snapshot *voltx_modbus.Snapshot
	polled   bool

	logger *zap.Logger
}

type pollTick struct {
}

func NewPollerActor(config *config.Config, modbusActor *actor.PID, eventStream *eventstream.EventStream,
	catalog *voltx_modbus.Catalog, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:      config,
		modbusActor: modbusActor,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_POLLER, logger),
		eventStream: eventStream,
		catalog:     catalog,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")

		if err := state.startScheduler(ctx); err != nil {
			panic(err)
		}
		// first cycle right away, the scheduler covers the rest
		ctx.Send(ctx.Self(), pollTick{})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stopScheduler()
	default:
		state.logger.Debug("poller@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetSnapshotRequest:
		state.respondSnapshot(ctx)
	case pollTick:
		state.logger.Debug("poller@default tick")
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.ReadSnapshotRequest{},
			state.cycleTimeout()), func(err error) any {
			return domain.ReadSnapshotResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.BecomeStacked(state.WaitingSnapshotReceive)
	case domain.RefreshKeysRequest:
		state.logger.Debug("poller@default refresh", zap.Strings("keys", msg.Keys))
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.ReadRegistersRequest{Keys: msg.Keys},
			state.cycleTimeout()), func(err error) any {
			return domain.ReadRegistersResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.BecomeStacked(state.WaitingRefreshReceive)
	case *actor.Stopping:
		state.stopScheduler()
	default:
		state.logger.Debug("poller@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingSnapshotReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ReadSnapshotResponse:
		if msg.HasResponseError() {
			// keep the previous snapshot, staleness marks the degradation
			state.logger.Error("poller@waiting snapshot cycle failed", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Debug("poller@waiting snapshot cycle done")
			state.storeAndPublish(msg.Snapshot)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case pollTick:
		// a cycle is already in flight
		state.logger.Debug("poller@waiting tick skipped")
	case domain.GetSnapshotRequest:
		state.respondSnapshot(ctx)
	case *actor.Stopping:
		state.stopScheduler()
	default:
		state.logger.Debug("poller@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingRefreshReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ReadRegistersResponse:
		if msg.HasResponseError() {
			state.logger.Error("poller@refreshing partial read failed", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Debug("poller@refreshing partial read done")
			state.storeAndPublish(state.snapshot.Merge(msg.Snapshot))
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case pollTick:
		state.logger.Debug("poller@refreshing tick skipped")
	case domain.GetSnapshotRequest:
		state.respondSnapshot(ctx)
	case *actor.Stopping:
		state.stopScheduler()
	default:
		state.logger.Debug("poller@refreshing: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) respondSnapshot(ctx actor.Context) {
	ctx.Respond(domain.GetSnapshotResponse{
		Snapshot: state.snapshot,
		Polled:   state.polled,
		Stale:    state.isStale(),
	})
}

func (state *PollerActor) storeAndPublish(snapshot *voltx_modbus.Snapshot) {
	state.snapshot = snapshot
	state.polled = true
	state.eventStream.Publish(domain.SnapshotPublishedEvent{
		Snapshot: snapshot,
		Stale:    false,
	})
	for _, ev := range events.SnapshotToUpdateEvents(state.catalog, snapshot) {
		state.eventStream.Publish(ev)
	}
}

func (state *PollerActor) isStale() bool {
	if !state.polled || state.snapshot == nil {
		return false
	}
	staleAfter := time.Duration(state.config.MonitorConfig.ResolvedStaleAfterMillis()) * time.Millisecond
	return state.snapshot.Age(time.Now()) > staleAfter
}

// cycleTimeout bounds how long the poller waits for the modbus actor. The
// cycle must resolve before the next scheduled tick.
func (state *PollerActor) cycleTimeout() time.Duration {
	interval := time.Duration(state.config.MonitorConfig.PollIntervalMillis) * time.Millisecond
	if interval > 10*time.Second {
		return 10 * time.Second
	}
	return interval
}

func (state *PollerActor) startScheduler(ctx actor.Context) error {
	system := ctx.ActorSystem()
	self := ctx.Self()

	state.scheduler = quartz.NewStdScheduler()
	schedCtx, cancel := context.WithCancel(context.Background())
	state.cancel = cancel
	state.scheduler.Start(schedCtx)

	tickJob := job.NewFunctionJob(func(context.Context) (bool, error) {
		system.Root.Send(self, pollTick{})
		return true, nil
	})
	trigger := quartz.NewSimpleTrigger(time.Duration(state.config.MonitorConfig.PollIntervalMillis) * time.Millisecond)
	return state.scheduler.ScheduleJob(quartz.NewJobDetail(tickJob, quartz.NewJobKey("poll_tick")), trigger)
}

func (state *PollerActor) stopScheduler() {
	if state.scheduler != nil {
		state.scheduler.Stop()
	}
	if state.cancel != nil {
		state.cancel()
	}
}
