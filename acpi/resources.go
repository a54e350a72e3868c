// Package acpi decodes ACPI resource templates (the byte streams returned by
// _CRS and by the I²C _DSM resource function) into a ResourceSet, and decides
// which of two decoded sets describes a peripheral.
//
// Only three descriptor kinds carry meaning here:
//
//	GenericSerialBus (large 0x0E, type I²C)  -> SerialBus
//	GPIO connection  (large 0x0C, interrupt) -> PinInterrupt
//	Extended IRQ     (large 0x09) / IRQ (small 0x04) -> Interrupt
//
// Everything else is skipped by its declared length.
package acpi

import (
	"errors"

	"i2cnub-go/errcode"
)

// MaxPlatformVector is the highest vector the platform interrupt controller routes.
const MaxPlatformVector = 0x2F

// SerialBus is the decoded I²C connection.
type SerialBus struct {
	TenBit  bool   // 10-bit addressing (type-specific flags bit 0)
	Address uint16 // target address
	SpeedHz uint32 // connection speed
}

// AddressWidth returns 7 or 10.
func (s SerialBus) AddressWidth() int {
	if s.TenBit {
		return 10
	}
	return 7
}

// Interrupt is a platform interrupt controller vector.
type Interrupt struct {
	Vector uint16
}

// ErrVectorOutOfRange reports a vector above MaxPlatformVector.
var ErrVectorOutOfRange = errors.New("platform vector out of range")

// Validate rejects vectors the platform controller cannot route.
func (i Interrupt) Validate() error {
	if i.Vector > MaxPlatformVector {
		return &errcode.E{C: errcode.Unsupported, Op: "platform_irq", Msg: "vector above 0x2f", Err: ErrVectorOutOfRange}
	}
	return nil
}

// Linux-style trigger encodings carried in PinInterrupt.Trigger.
const (
	TriggerNone        uint16 = 0x0
	TriggerEdgeRising  uint16 = 0x1
	TriggerEdgeFalling uint16 = 0x2
	TriggerEdgeBoth    uint16 = 0x3
	TriggerLevelHigh   uint16 = 0x4
	TriggerLevelLow    uint16 = 0x8
)

// TriggerString names a trigger encoding.
func TriggerString(t uint16) string {
	switch t {
	case TriggerEdgeRising:
		return "edge_rising"
	case TriggerEdgeFalling:
		return "edge_falling"
	case TriggerEdgeBoth:
		return "edge_both"
	case TriggerLevelHigh:
		return "level_high"
	case TriggerLevelLow:
		return "level_low"
	default:
		return "none"
	}
}

// PinInterrupt is an interrupt delivered through a GPIO controller pin.
type PinInterrupt struct {
	Pin     uint16
	Trigger uint16
}

// ResourceSet is the result of one Parse call. It is a plain value; copies are
// independent and nothing in it aliases the parsed blob.
type ResourceSet struct {
	I2C                 SerialBus
	FoundI2C            bool
	Interrupt           Interrupt
	FoundInterrupt      bool
	GPIO                PinInterrupt
	FoundGPIOInterrupts bool
}

// Empty reports whether no recognised descriptor was decoded.
func (r ResourceSet) Empty() bool {
	return !r.FoundI2C && !r.FoundInterrupt && !r.FoundGPIOInterrupts
}
