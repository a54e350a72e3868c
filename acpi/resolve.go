package acpi

import "i2cnub-go/errcode"

// Source names which description Resolve selected.
type Source uint8

const (
	SourceStatic  Source = iota // _CRS
	SourceDynamic               // _DSM / XDSM
)

func (s Source) String() string {
	if s == SourceDynamic {
		return "dynamic"
	}
	return "static"
}

// ErrNoSerialBus is returned when neither description declares an I²C connection.
var ErrNoSerialBus = errcode.New(errcode.NotFound, "resolve", "no i2c serial bus descriptor")

// Resolve picks the authoritative description. A dynamic description that
// also routes a GPIO interrupt wins over a valid static one.
func Resolve(static, dynamic ResourceSet) (ResourceSet, Source, error) {
	if !static.FoundI2C && !dynamic.FoundI2C {
		return ResourceSet{}, SourceStatic, ErrNoSerialBus
	}
	if !static.FoundI2C || (dynamic.FoundI2C && dynamic.FoundGPIOInterrupts) {
		return dynamic, SourceDynamic, nil
	}
	return static, SourceStatic, nil
}
