package actor

import (
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/internal/util/actorutil"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

// ModbusActor owns the device client. Every transport operation funnels
// through this mailbox, so reads and writes never interleave on the wire.
type ModbusActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	device   voltx_modbus.DeviceClient
	timeout  time.Duration
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewModbusActor(device voltx_modbus.DeviceClient, opTimeout time.Duration, logger *zap.Logger) *ModbusActor {
	act := &ModbusActor{
		device:   device,
		timeout:  opTimeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MODBUS, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ModbusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		if err := state.device.Open(); err != nil {
			// let the supervisor's backoff retry the connection
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.device.Close()
	default:
		state.logger.Debug("modbus@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MODBUS,
			Healthy: true,
			State:   "idle",
		})
	case domain.ReadSnapshotRequest:
		state.logger.Debug("modbus@default: ReadSnapshotRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.readSnapshot),
			mapTaskResult[domain.ReadSnapshotResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ReadSnapshotResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.ReadRegistersRequest:
		state.logger.Debug("modbus@default: ReadRegistersRequest", zap.Strings("keys", msg.Keys))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		keys := msg.Keys
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.ReadRegistersResponse, error) {
			return state.readRegisters(keys)
		}), mapTaskResult[domain.ReadRegistersResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ReadRegistersResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.WriteRegisterRequest:
		state.logger.Debug("modbus@default: WriteRegisterRequest",
			zap.String("key", msg.Key), zap.Float64("value", msg.Value))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		key, value := msg.Key, msg.Value
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.WriteRegisterResponse, error) {
			return state.writeRegister(key, value)
		}), mapTaskResult[domain.WriteRegisterResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.WriteRegisterResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.device.Close()
	default:
		state.logger.Debug("modbus@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("modbus@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.device.Close()
	default:
		state.logger.Debug("modbus@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *ModbusActor) readSnapshot() (*domain.ReadSnapshotResponse, error) {
	snapshot, err := a.device.ReadSnapshot()
	if err != nil {
		a.logger.Error("snapshot read failed", zap.Error(err))
		return nil, err
	}
	return &domain.ReadSnapshotResponse{
		Snapshot: snapshot,
	}, nil
}

func (a *ModbusActor) readRegisters(keys []string) (*domain.ReadRegistersResponse, error) {
	snapshot, err := a.device.ReadKeys(keys)
	if err != nil {
		a.logger.Error("register read failed", zap.Strings("keys", keys), zap.Error(err))
		return nil, err
	}
	return &domain.ReadRegistersResponse{
		Snapshot: snapshot,
	}, nil
}

func (a *ModbusActor) writeRegister(key string, value float64) (*domain.WriteRegisterResponse, error) {
	if err := a.device.Write(key, value); err != nil {
		a.logger.Error("register write failed", zap.String("key", key), zap.Error(err))
		return &domain.WriteRegisterResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}, nil
	}
	return &domain.WriteRegisterResponse{}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
