package nub

import (
	"time"

	"i2cnub-go/services/nub/internal/dsm"
	"i2cnub-go/x/mathx"
)

// Config centralises bring-up timings and overrides. Zero fields take the
// defaults listed on each field, except PinSettle where zero means no delay.
type Config struct {
	// PinControllerName is the name the pin controller is published under. Default "gpio".
	PinControllerName string
	// PinControllerTimeout bounds the wait for the pin controller. Default 1s.
	PinControllerTimeout time.Duration
	// PinSettle is slept after the pin controller is found, giving it time to finish loading.
	PinSettle time.Duration
	// DSMIndex is the _DSM function holding the resource template. Default 1.
	DSMIndex uint32
	// ForcePolling disables pin-based interrupts outright.
	ForcePolling bool
	// BootArgs is the boot command line; "-vi2c-force-polling" in it forces polling.
	BootArgs string
}

// DefaultConfig returns the values used on real hardware.
func DefaultConfig() Config {
	return Config{
		PinControllerName:    "gpio",
		PinControllerTimeout: time.Second,
		PinSettle:            100 * time.Millisecond,
		DSMIndex:             dsm.ResourcesIndex,
	}
}

func (c Config) normalised() Config {
	if c.PinControllerName == "" {
		c.PinControllerName = "gpio"
	}
	if c.PinControllerTimeout <= 0 {
		c.PinControllerTimeout = time.Second
	}
	if c.DSMIndex == 0 {
		c.DSMIndex = dsm.ResourcesIndex
	}
	c.PinSettle = mathx.Max(c.PinSettle, 0)
	return c
}
