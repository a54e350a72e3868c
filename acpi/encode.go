package acpi

import "encoding/binary"

// Template builds resource templates in the layout Parse understands. It is
// used to synthesise firmware blobs for simulation and tests.
type Template struct {
	buf []byte
}

const (
	defaultI2CSource  = `\_SB.PCI0.I2C0`
	defaultGPIOSource = `\_SB.GPO0`
)

// SerialBus appends an I²C GenericSerialBus connection descriptor.
func (t *Template) SerialBus(sb SerialBus) *Template {
	var flags uint16
	if sb.TenBit {
		flags |= sbFlagTenBit
	}
	body := []byte{
		0x01,         // revision
		0x00,         // resource source index
		serialBusI2C, // serial bus type
		0x02,         // general flags: consumer
	}
	body = binary.LittleEndian.AppendUint16(body, flags)
	body = append(body, 0x01)                         // type-specific revision
	body = binary.LittleEndian.AppendUint16(body, 6) // type data length
	body = binary.LittleEndian.AppendUint32(body, sb.SpeedHz)
	body = binary.LittleEndian.AppendUint16(body, sb.Address)
	body = append(body, defaultI2CSource...)
	body = append(body, 0)
	return t.large(largeTypeSerialBus, body)
}

// GPIOInterrupt appends a GPIO interrupt connection descriptor for one pin.
func (t *Template) GPIOInterrupt(p PinInterrupt) *Template {
	const pinTable = gpioMinLen
	nameOff := pinTable + 2
	vendorOff := nameOff + len(defaultGPIOSource) + 1

	body := []byte{0x01, gpioConnInterrupt}          // revision, connection type
	body = binary.LittleEndian.AppendUint16(body, 0) // general flags
	body = binary.LittleEndian.AppendUint16(body, uint16(flagsFromTrigger(p.Trigger)))
	body = append(body, 0x00)                        // pin config
	body = binary.LittleEndian.AppendUint16(body, 0) // drive strength
	body = binary.LittleEndian.AppendUint16(body, 0) // debounce
	body = binary.LittleEndian.AppendUint16(body, pinTable)
	body = append(body, 0x00) // resource source index
	body = binary.LittleEndian.AppendUint16(body, uint16(nameOff))
	body = binary.LittleEndian.AppendUint16(body, uint16(vendorOff))
	body = binary.LittleEndian.AppendUint16(body, 0) // vendor data length
	body = binary.LittleEndian.AppendUint16(body, p.Pin)
	body = append(body, defaultGPIOSource...)
	body = append(body, 0)
	return t.large(largeTypeGPIO, body)
}

// ExtendedIRQ appends an extended interrupt descriptor with one interrupt.
func (t *Template) ExtendedIRQ(vector uint32) *Template {
	body := []byte{0x01, 0x01} // flags: consumer; table length
	body = binary.LittleEndian.AppendUint32(body, vector)
	return t.large(largeTypeExtIRQ, body)
}

// IRQ appends a small IRQ descriptor for vectors 0..15.
func (t *Template) IRQ(vector uint8) *Template {
	t.buf = append(t.buf, smallTypeIRQ<<3|2)
	t.buf = binary.LittleEndian.AppendUint16(t.buf, uint16(1)<<(vector&0x0F))
	return t
}

// Raw appends bytes verbatim.
func (t *Template) Raw(b ...byte) *Template {
	t.buf = append(t.buf, b...)
	return t
}

// Bytes returns the template without an end tag.
func (t *Template) Bytes() []byte {
	return append([]byte(nil), t.buf...)
}

// End returns the template terminated by an End Tag with a zero checksum.
func (t *Template) End() []byte {
	return append(t.Bytes(), smallTypeEnd<<3|1, 0x00)
}

func (t *Template) large(typ byte, body []byte) *Template {
	t.buf = append(t.buf, largeItem|typ)
	t.buf = binary.LittleEndian.AppendUint16(t.buf, uint16(len(body)))
	t.buf = append(t.buf, body...)
	return t
}

func flagsFromTrigger(tr uint16) byte {
	switch tr {
	case TriggerEdgeRising:
		return gpioFlagEdge | gpioActiveHigh
	case TriggerEdgeFalling:
		return gpioFlagEdge | gpioActiveLow
	case TriggerEdgeBoth:
		return gpioFlagEdge | gpioActiveBoth
	case TriggerLevelHigh:
		return gpioActiveHigh
	case TriggerLevelLow:
		return gpioActiveLow
	default:
		return gpioActiveBoth // level + both polarities decodes to TriggerNone
	}
}
