package nub

import (
	"context"
	"sync/atomic"

	"i2cnub-go/bus"
	"i2cnub-go/errcode"
	"i2cnub-go/services/nub/nubcore"
)

// PinTopic is the retained topic a pin controller is published under.
func PinTopic(name string) bus.Topic {
	return bus.Topic{bus.S("service"), bus.S("gpio"), bus.S(name)}
}

// PublishPinController announces pc under name. Consumers waiting in Locate
// are released immediately; later ones find it retained.
func PublishPinController(b *bus.Bus, name string, pc nubcore.PinController) {
	b.Publish(&bus.Message{Topic: PinTopic(name), Payload: pc, Retained: true})
}

// WithdrawPinController clears the announcement for name.
func WithdrawPinController(b *bus.Bus, name string) {
	b.Publish(&bus.Message{Topic: PinTopic(name), Retained: true})
}

// BusLocator discovers pin controllers published on a bus.
type BusLocator struct {
	Bus *bus.Bus
}

var _ nubcore.PinLocator = BusLocator{}

func (l BusLocator) Locate(ctx context.Context, name string) (nubcore.PinHandle, error) {
	v, err := l.Bus.Await(ctx, PinTopic(name))
	if err != nil {
		return nil, errcode.Wrap(errcode.Timeout, "locate", err)
	}
	pc, ok := v.(nubcore.PinController)
	if !ok {
		return nil, errcode.New(errcode.InvalidArgument, "locate", "published value is not a pin controller")
	}
	return &pinHandle{PinController: pc}, nil
}

type pinHandle struct {
	nubcore.PinController
	released atomic.Bool
}

func (h *pinHandle) Release() { h.released.Store(true) }

// Released reports whether Release has been called.
func (h *pinHandle) Released() bool { return h.released.Load() }
