package actorutil

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"

	"github.com/stuart-jjj/voltx2mqtt/internal/core/domain"
	"github.com/stuart-jjj/voltx2mqtt/internal/mqtt"
	"github.com/stuart-jjj/voltx2mqtt/pkg/voltx_modbus"
)

// PipeToSelfWithRecover forwards a future result to the actor's own
// mailbox, mapping future errors (timeouts included) through mapFn so the
// actor always receives a message.
func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an MQTT command topic hit to a write
// submission for the command gateway. The device id is the register key;
// select payloads arrive as enum labels, number payloads as decimal
// strings.
func ParsedMQTTCommandToCommand(catalog *voltx_modbus.Catalog, cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	desc, err := catalog.Lookup(cmd.DeviceId)
	if err != nil {
		return nil, err
	}
	switch cmd.Command {
	case "select":
		raw, err := enumRawForLabel(desc, cmd.Payload)
		if err != nil {
			return nil, err
		}
		return domain.SubmitWriteRequest{
			Key:   desc.Key,
			Value: float64(raw),
		}, nil
	case "number":
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		return domain.SubmitWriteRequest{
			Key:   desc.Key,
			Value: value,
		}, nil
	}
	return nil, nil
}

func enumRawForLabel(desc voltx_modbus.RegisterDescriptor, label string) (uint16, error) {
	for raw, l := range desc.Enum {
		if l == label {
			return raw, nil
		}
	}
	return 0, voltx_modbus.ErrInvalidEnum
}
