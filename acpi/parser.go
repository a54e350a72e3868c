package acpi

import (
	"encoding/binary"
	"math/bits"

	"i2cnub-go/x/mathx"
)

// Item header layout.
const (
	largeItem = 0x80 // byte0 bit 7 selects the large item format

	smallTypeIRQ = 0x04
	smallTypeEnd = 0x0F

	largeTypeExtIRQ    = 0x09
	largeTypeGPIO      = 0x0C
	largeTypeSerialBus = 0x0E

	largeHeaderLen = 3 // tag + u16 length
)

// GenericSerialBus descriptor (offsets from the tag byte).
const (
	sbTypeOff    = 5
	sbFlagsOff   = 7
	sbSpeedOff   = 12
	sbAddrOff    = 16
	sbMinLen     = 18
	serialBusI2C = 0x01
	sbFlagTenBit = 0x0001
)

// GPIO connection descriptor (offsets from the tag byte).
const (
	gpioConnTypeOff   = 4
	gpioIntFlagsOff   = 7
	gpioPinTableOff   = 14
	gpioMinLen        = 23
	gpioConnInterrupt = 0x00

	gpioFlagEdge     = 0x01
	gpioPolarityMask = 0x06
	gpioActiveHigh   = 0x00
	gpioActiveLow    = 0x02
	gpioActiveBoth   = 0x04
)

// Extended interrupt descriptor (offsets from the tag byte).
const (
	extIRQCountOff = 4
	extIRQFirstOff = 5
	extIRQMinLen   = 9
)

// Parse decodes a resource template. It never fails: descriptors it does not
// recognise, or recognises but cannot decode, are skipped; an item whose header
// or body runs past the end of blob ends the walk. The caller keeps ownership of
// blob.
func Parse(blob []byte) ResourceSet {
	var rs ResourceSet
	off := 0
	for off < len(blob) {
		tag := blob[off]

		if tag&largeItem == 0 {
			typ := (tag >> 3) & 0x0F
			end := off + 1 + int(tag&0x07)
			if end > len(blob) || typ == smallTypeEnd {
				return rs
			}
			if typ == smallTypeIRQ {
				decodeIRQ(blob[off+1:end], &rs)
			}
			off = end
			continue
		}

		if off+largeHeaderLen > len(blob) {
			return rs
		}
		end := off + largeHeaderLen + int(binary.LittleEndian.Uint16(blob[off+1:]))
		if end > len(blob) {
			return rs
		}
		desc := blob[off:end]
		switch tag &^ largeItem {
		case largeTypeSerialBus:
			decodeSerialBus(desc, &rs)
		case largeTypeGPIO:
			decodeGPIO(desc, &rs)
		case largeTypeExtIRQ:
			decodeExtIRQ(desc, &rs)
		}
		off = end
	}
	return rs
}

func decodeSerialBus(d []byte, rs *ResourceSet) {
	if len(d) < sbMinLen || d[sbTypeOff] != serialBusI2C {
		return
	}
	rs.I2C = SerialBus{
		TenBit:  binary.LittleEndian.Uint16(d[sbFlagsOff:])&sbFlagTenBit != 0,
		SpeedHz: binary.LittleEndian.Uint32(d[sbSpeedOff:]),
		Address: binary.LittleEndian.Uint16(d[sbAddrOff:]),
	}
	rs.FoundI2C = true
}

func decodeGPIO(d []byte, rs *ResourceSet) {
	if len(d) < gpioMinLen || d[gpioConnTypeOff] != gpioConnInterrupt {
		return
	}
	pt := int(binary.LittleEndian.Uint16(d[gpioPinTableOff:]))
	if pt < gpioMinLen || pt+2 > len(d) {
		return
	}
	rs.GPIO = PinInterrupt{
		Pin:     binary.LittleEndian.Uint16(d[pt:]),
		Trigger: triggerFromFlags(d[gpioIntFlagsOff]),
	}
	rs.FoundGPIOInterrupts = true
}

// triggerFromFlags maps GPIO interrupt flags (bit 0 edge, bits 1..2 polarity)
// to a trigger encoding. Level-triggered with both polarities has no encoding.
func triggerFromFlags(f byte) uint16 {
	pol := f & gpioPolarityMask
	if f&gpioFlagEdge != 0 {
		switch pol {
		case gpioActiveHigh:
			return TriggerEdgeRising
		case gpioActiveLow:
			return TriggerEdgeFalling
		case gpioActiveBoth:
			return TriggerEdgeBoth
		}
		return TriggerNone
	}
	switch pol {
	case gpioActiveHigh:
		return TriggerLevelHigh
	case gpioActiveLow:
		return TriggerLevelLow
	}
	return TriggerNone
}

func decodeExtIRQ(d []byte, rs *ResourceSet) {
	if len(d) < extIRQMinLen || d[extIRQCountOff] == 0 {
		return
	}
	v := binary.LittleEndian.Uint32(d[extIRQFirstOff:])
	// Anything wider than 16 bits is out of range anyway; saturate.
	rs.Interrupt = Interrupt{Vector: uint16(mathx.Min(v, 0xFFFF))}
	rs.FoundInterrupt = true
}

func decodeIRQ(body []byte, rs *ResourceSet) {
	if len(body) < 2 {
		return
	}
	mask := binary.LittleEndian.Uint16(body)
	if mask == 0 {
		return
	}
	rs.Interrupt = Interrupt{Vector: uint16(bits.TrailingZeros16(mask))}
	rs.FoundInterrupt = true
}
