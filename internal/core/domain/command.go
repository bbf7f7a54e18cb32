package domain

import "fmt"

// RegisterWriteRequest is the common shape of write commands entering the
// gateway, whatever surface they arrived on.

type RegisterWriteRequest interface {
	ActorRequest
	RegisterWriteCommand() string
}

type RegisterWriteRequestMixIn struct {
	ActorRequestMixIn
}

func (r RegisterWriteRequestMixIn) RegisterWriteCommand() string {
	return fmt.Sprintf("%T", r)
}

// ensure interface compliance
var _ RegisterWriteRequest = (*SubmitWriteRequest)(nil)
