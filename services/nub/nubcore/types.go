// services/nub/nubcore/types.go

// Package nubcore holds the capability contracts a peripheral nub consumes:
// the firmware device object, the I²C bus controller, the pin (GPIO) interrupt
// controller and the upstream hardware function. The nub never owns any of them.
package nubcore

import "context"

// ---- Bus messages ----

// Flags mirror the Linux i2c_msg flag bits.
type Flags uint16

const (
	FlagRead Flags = 0x0001 // direction: device -> host
	FlagTen  Flags = 0x0010 // 10-bit target address
)

func (f Flags) Has(x Flags) bool { return f&x == x }

// MaxMessageLen is the largest buffer a single message may carry.
const MaxMessageLen = 0xFFFF

// Message is one leg of a transaction. Buf is written by the controller for
// read messages.
type Message struct {
	Addr  uint16
	Flags Flags
	Buf   []byte
}

// Controller executes 1 or 2 messages as one uninterrupted unit. Errors are
// transport-level and opaque to the nub.
type Controller interface {
	Transfer(msgs []Message) error
}

// ---- Interrupts ----

// InterruptHandler is invoked by the interrupt source. It must not block.
type InterruptHandler func()

// PlatformInterrupts is provided by the firmware device object and addressed
// by interrupt source index.
type PlatformInterrupts interface {
	EnableInterrupt(source int) error
	DisableInterrupt(source int) error
	RegisterInterrupt(source int, h InterruptHandler) error
	UnregisterInterrupt(source int) error
	InterruptType(source int) (uint16, error)
}

// PinController is a GPIO controller able to deliver pin interrupts.
type PinController interface {
	EnableInterrupt(pin uint16) error
	DisableInterrupt(pin uint16) error
	RegisterInterrupt(pin uint16, h InterruptHandler) error
	UnregisterInterrupt(pin uint16) error
	InterruptType(pin uint16) (uint16, error)
	SetInterruptType(pin uint16, trigger uint16) error
}

// PinHandle is a discovered pin controller held by one consumer. Release must
// be called exactly once when the consumer is done.
type PinHandle interface {
	PinController
	Release()
}

// PinLocator finds a pin controller by name. The wait is bounded by ctx.
type PinLocator interface {
	Locate(ctx context.Context, name string) (PinHandle, error)
}

// ---- Firmware ----

// Firmware is the hardware-description object of the peripheral.
type Firmware interface {
	PlatformInterrupts

	// Name is the firmware path or short name, used for reporting only.
	Name() string

	// Evaluate runs a firmware method. Buffers come back as []byte, integers
	// as uint64, packages as []any.
	Evaluate(method string, args ...any) (any, error)

	// InterruptSpecifier returns the platform vector of interrupt source index,
	// as already decoded by the platform.
	InterruptSpecifier(index int) (uint16, bool)
}

// Upstream is the hardware function hosting the bus controller (for example
// its PCI function). It may be absent.
type Upstream interface {
	Property(key string) (any, bool)
}
