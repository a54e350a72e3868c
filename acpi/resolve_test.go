package acpi

import (
	"errors"
	"testing"

	"i2cnub-go/errcode"

	"github.com/google/go-cmp/cmp"
)

func set(i2c, gpio bool, addr uint16) ResourceSet {
	rs := ResourceSet{FoundI2C: i2c, FoundGPIOInterrupts: gpio}
	if i2c {
		rs.I2C = SerialBus{Address: addr, SpeedHz: 400000}
	}
	if gpio {
		rs.GPIO = PinInterrupt{Pin: addr, Trigger: TriggerLevelLow}
	}
	return rs
}

func TestResolveNeitherHasSerialBus(t *testing.T) {
	_, _, err := Resolve(set(false, true, 1), set(false, true, 2))
	if !errors.Is(err, errcode.NotFound) {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestResolveDecisionTable(t *testing.T) {
	cases := []struct {
		name    string
		static  ResourceSet
		dynamic ResourceSet
		want    Source
	}{
		{"static-only", set(true, false, 1), ResourceSet{}, SourceStatic},
		{"static-with-gpio-dynamic-plain", set(true, true, 1), set(true, false, 2), SourceStatic},
		{"static-missing-dynamic-plain", set(false, false, 1), set(true, false, 2), SourceDynamic},
		{"static-missing-dynamic-gpio", set(false, true, 1), set(true, true, 2), SourceDynamic},
		{"both-dynamic-has-gpio", set(true, false, 1), set(true, true, 2), SourceDynamic},
		{"both-gpio-dynamic-wins", set(true, true, 1), set(true, true, 2), SourceDynamic},
		{"dynamic-gpio-without-i2c", set(true, false, 1), set(false, true, 2), SourceStatic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, src, err := Resolve(tc.static, tc.dynamic)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if src != tc.want {
				t.Fatalf("source = %v, want %v", src, tc.want)
			}
			want := tc.static
			if tc.want == SourceDynamic {
				want = tc.dynamic
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("resolved set (-want +got):\n%s", diff)
			}
		})
	}
}

// Without a static serial bus the dynamic set is returned as-is, whatever it holds.
func TestResolveStaticMissingAlwaysDynamic(t *testing.T) {
	for _, dyn := range []ResourceSet{set(true, false, 9), set(true, true, 9)} {
		for _, st := range []ResourceSet{{}, set(false, true, 3)} {
			got, src, err := Resolve(st, dyn)
			if err != nil || src != SourceDynamic || got != dyn {
				t.Fatalf("Resolve(%+v, %+v) = %+v, %v, %v", st, dyn, got, src, err)
			}
		}
	}
}

func TestEndToEndStaticBlob(t *testing.T) {
	blob := (&Template{}).
		SerialBus(SerialBus{Address: 0x50, SpeedHz: 400000}).
		GPIOInterrupt(PinInterrupt{Pin: 12, Trigger: TriggerEdgeRising}).
		End()
	static := Parse(blob)
	got, src, err := Resolve(static, Parse(nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if src != SourceStatic {
		t.Fatalf("source = %v", src)
	}
	if !got.FoundI2C || !got.FoundGPIOInterrupts || got.I2C.Address != 0x50 ||
		got.I2C.SpeedHz != 400000 || got.GPIO.Pin != 12 || got.GPIO.Trigger != 1 {
		t.Fatalf("unexpected set: %+v", got)
	}
}
