package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorRef names the reply target carried inside a request message.
type ActorRef actor.PID

// ActorRequestMixIn is embedded by requests whose reply must reach the
// original requester even when the message travels through intermediate
// actors. A nil target means reply to the envelope sender.
type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

// ActorResponseMixIn is embedded by responses. Outcomes are reported in
// ResponseError, so a failed operation still produces a typed response
// instead of a dropped future.
type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}
