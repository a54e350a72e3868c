// services/nub/irq_test.go

package nub

import (
	"context"
	"testing"
	"time"

	"i2cnub-go/acpi"
	"i2cnub-go/errcode"
	"i2cnub-go/services/nub/internal/platform"
)

func pinInput() SelectInput {
	return SelectInput{
		GPIO:              acpi.PinInterrupt{Pin: 12, Trigger: acpi.TriggerEdgeRising},
		HasGPIO:           true,
		PinControllerName: "gpio",
		Timeout:           50 * time.Millisecond,
	}
}

func TestPlatformVectorWins(t *testing.T) {
	loc := &platform.StaticLocator{PC: &platform.FakePinController{}}
	in := pinInput()
	in.Platform, in.HasPlatform = acpi.Interrupt{Vector: 0x2F}, true

	s, h, err := SelectStrategy(context.Background(), in, loc)
	if err != nil {
		t.Fatalf("SelectStrategy: %v", err)
	}
	if s.Kind != StrategyPlatform || s.Vector != 0x2F || h != nil {
		t.Fatalf("got %+v, handle %v", s, h)
	}
	if loc.Calls() != 0 {
		t.Fatal("pin controller looked up despite platform vector")
	}
}

func TestOutOfRangeVectorFallsThrough(t *testing.T) {
	pc := &platform.FakePinController{}
	loc := &platform.StaticLocator{PC: pc}
	in := pinInput()
	in.Platform, in.HasPlatform = acpi.Interrupt{Vector: 0x30}, true

	s, h, err := SelectStrategy(context.Background(), in, loc)
	if err != nil {
		t.Fatalf("SelectStrategy: %v", err)
	}
	if s.Kind != StrategyPinBased || s.Pin != 12 || s.Trigger != acpi.TriggerEdgeRising {
		t.Fatalf("got %+v", s)
	}
	if h == nil {
		t.Fatal("no handle for pin-based strategy")
	}
	h.Release()

	in.HasGPIO = false
	s, _, _ = SelectStrategy(context.Background(), in, loc)
	if s.Kind != StrategyPolling {
		t.Fatalf("0x30 without GPIO: got %v", s.Kind)
	}
}

func TestForcePollingSkipsLocator(t *testing.T) {
	for _, tc := range []struct {
		name       string
		boot, upst bool
	}{
		{"boot flag", true, false},
		{"upstream property", false, true},
	} {
		loc := &platform.StaticLocator{PC: &platform.FakePinController{}}
		in := pinInput()
		in.BootForcePolling, in.UpstreamForcePolling = tc.boot, tc.upst

		s, h, err := SelectStrategy(context.Background(), in, loc)
		if err != nil || s.Kind != StrategyPolling || h != nil {
			t.Fatalf("%s: %+v %v %v", tc.name, s, h, err)
		}
		if loc.Calls() != 0 {
			t.Fatalf("%s: locator called", tc.name)
		}
	}
}

func TestPinControllerTimeout(t *testing.T) {
	loc := &platform.StaticLocator{} // never resolves
	start := time.Now()
	_, h, err := SelectStrategy(context.Background(), pinInput(), loc)
	if errcode.Of(err) != errcode.InterruptControllerUnavailable {
		t.Fatalf("err = %v", err)
	}
	if h != nil {
		t.Fatal("handle returned on failure")
	}
	if d := time.Since(start); d < 40*time.Millisecond || d > time.Second {
		t.Fatalf("wait took %v, want about 50ms", d)
	}

	if _, _, err := SelectStrategy(context.Background(), pinInput(), nil); errcode.Of(err) != errcode.InterruptControllerUnavailable {
		t.Fatalf("nil locator: %v", err)
	}
}

func TestNoInterruptIsPolling(t *testing.T) {
	s, h, err := SelectStrategy(context.Background(), SelectInput{}, nil)
	if err != nil || s.Kind != StrategyPolling || h != nil {
		t.Fatalf("got %+v %v %v", s, h, err)
	}
	if s.Kind.String() != "polling" || StrategyPinBased.String() != "pin" {
		t.Fatal("unexpected strategy names")
	}
}
