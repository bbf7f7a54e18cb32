package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"github.com/stuart-jjj/voltx2mqtt/internal/config"
	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/internal/util/actorutil"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

// CommandGatewayActor is the single entry point for register writes. It
// validates before any I/O, keeps one write in flight at a time, and asks
// the poller for a partial refresh once the device acks.
type CommandGatewayActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash

	config      *config.Config
	modbusActor *actor.PID
	pollerActor *actor.PID
	catalog     *voltx_modbus.Catalog

	pending pendingWrite

	logger *zap.Logger
}

type pendingWrite struct {
	key     string
	replyTo *actor.PID
}

func NewCommandGatewayActor(config *config.Config, modbusActor *actor.PID, pollerActor *actor.PID,
	catalog *voltx_modbus.Catalog, logger *zap.Logger) *CommandGatewayActor {
	act := &CommandGatewayActor{
		config:      config,
		modbusActor: modbusActor,
		pollerActor: pollerActor,
		catalog:     catalog,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_COMMAND, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *CommandGatewayActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *CommandGatewayActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("command@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_COMMAND,
			Healthy: true,
			State:   "idle",
		})
	case domain.SubmitWriteRequest:
		state.logger.Debug("command@default submit", zap.String("key", msg.Key), zap.Float64("value", msg.Value))
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)

		// full validation before anything touches the wire
		if err := state.validate(msg.Key, msg.Value); err != nil {
			state.logger.Warn("command@default write rejected", zap.String("key", msg.Key), zap.Error(err))
			state.respond(ctx, replyTo, msg.Key, domain.WriteRejected, err)
			return
		}

		state.pending = pendingWrite{key: msg.Key, replyTo: replyTo}
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.WriteRegisterRequest{
			Key:   msg.Key,
			Value: msg.Value,
		}, 10*time.Second), func(err error) any {
			return domain.WriteRegisterResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.BecomeStacked(state.WaitingWriteReceive)
	default:
		state.logger.Debug("command@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CommandGatewayActor) WaitingWriteReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.WriteRegisterResponse:
		pending := state.pending
		state.pending = pendingWrite{}
		if msg.HasResponseError() {
			err := msg.GetResponseError()
			outcome := domain.WriteTransportFailed
			if isValidationError(err) {
				outcome = domain.WriteRejected
			}
			state.logger.Error("command@waiting write failed", zap.String("key", pending.key),
				zap.String("outcome", outcome.String()), zap.Error(err))
			state.respond(ctx, pending.replyTo, pending.key, outcome, err)
		} else {
			state.logger.Debug("command@waiting write applied", zap.String("key", pending.key))
			state.respond(ctx, pending.replyTo, pending.key, domain.WriteApplied, nil)
			state.requestRefresh(ctx, pending.key)
		}
		state.behavior.UnbecomeStacked()
		// queued submits go out one at a time, in arrival order
		state.stash.UnstashOldest(ctx)
	case *actor.Stopping:
	default:
		state.logger.Debug("command@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CommandGatewayActor) validate(key string, value float64) error {
	desc, err := state.catalog.Lookup(key)
	if err != nil {
		return err
	}
	_, err = voltx_modbus.Encode(desc, value)
	return err
}

// requestRefresh asks the poller to re-read the written register plus the
// read-only registers the device updates as a side effect.
func (state *CommandGatewayActor) requestRefresh(ctx actor.Context, key string) {
	desc, err := state.catalog.Lookup(key)
	if err != nil {
		return
	}
	keys := append([]string{key}, desc.Reflects...)
	ctx.Send(state.pollerActor, domain.RefreshKeysRequest{Keys: keys})
}

func (state *CommandGatewayActor) respond(ctx actor.Context, replyTo *actor.PID, key string,
	outcome domain.WriteOutcome, err error) {
	resp := domain.SubmitWriteResponse{
		ActorResponseMixIn: domain.ActorResponseMixIn{
			ResponseError: err,
		},
		Key:     key,
		Outcome: outcome,
	}
	if replyTo != nil {
		ctx.Send(replyTo, resp)
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, voltx_modbus.ErrUnknownRegister) ||
		errors.Is(err, voltx_modbus.ErrNotWritable) ||
		errors.Is(err, voltx_modbus.ErrOutOfRange) ||
		errors.Is(err, voltx_modbus.ErrInvalidEnum)
}
