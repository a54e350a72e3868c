package nub

import (
	"context"
	"time"

	"i2cnub-go/acpi"
	"i2cnub-go/errcode"
	"i2cnub-go/services/nub/nubcore"
)

// StrategyKind tags the interrupt source a nub uses.
type StrategyKind uint8

const (
	StrategyPolling StrategyKind = iota
	StrategyPlatform
	StrategyPinBased
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyPlatform:
		return "platform"
	case StrategyPinBased:
		return "pin"
	default:
		return "polling"
	}
}

// Strategy is the chosen interrupt source. Only the fields of Kind are meaningful:
// Vector for Platform, Pin and Trigger for PinBased.
type Strategy struct {
	Kind    StrategyKind
	Vector  uint16
	Pin     uint16
	Trigger uint16
}

// SelectInput carries everything the selection depends on.
type SelectInput struct {
	Platform    acpi.Interrupt
	HasPlatform bool

	GPIO    acpi.PinInterrupt
	HasGPIO bool

	BootForcePolling     bool // boot flag
	UpstreamForcePolling bool // property on the upstream hardware function

	PinControllerName string
	Timeout           time.Duration // bound on the pin controller wait
}

// SelectStrategy picks the interrupt source, in order:
//
//  1. a platform vector within range always wins;
//  2. a force-polling override selects Polling without looking for a pin controller;
//  3. a GPIO interrupt selects PinBased once the pin controller is found
//     (errcode.InterruptControllerUnavailable if the wait runs out);
//  4. otherwise Polling.
//
// The returned handle is non-nil only for PinBased and belongs to the caller.
func SelectStrategy(ctx context.Context, in SelectInput, pins nubcore.PinLocator) (Strategy, nubcore.PinHandle, error) {
	if in.HasPlatform && in.Platform.Validate() == nil {
		return Strategy{Kind: StrategyPlatform, Vector: in.Platform.Vector}, nil, nil
	}
	if in.BootForcePolling || in.UpstreamForcePolling {
		return Strategy{Kind: StrategyPolling}, nil, nil
	}
	if !in.HasGPIO {
		return Strategy{Kind: StrategyPolling}, nil, nil
	}

	if pins == nil {
		return Strategy{}, nil, errcode.New(errcode.InterruptControllerUnavailable, "select_irq", "no pin locator")
	}
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	h, err := pins.Locate(lctx, in.PinControllerName)
	if err != nil {
		return Strategy{}, nil, errcode.Wrap(errcode.InterruptControllerUnavailable, "select_irq", err)
	}
	return Strategy{Kind: StrategyPinBased, Pin: in.GPIO.Pin, Trigger: in.GPIO.Trigger}, h, nil
}
