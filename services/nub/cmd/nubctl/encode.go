package main

import (
	"fmt"

	"i2cnub-go/acpi"

	"github.com/spf13/cobra"
)

type encodeOpts struct {
	addr    uint16
	speed   uint32
	tenBit  bool
	pin     int
	trigger string
	vector  int
	legacy  bool
}

func (o encodeOpts) template() ([]byte, error) {
	var t acpi.Template
	t.SerialBus(acpi.SerialBus{TenBit: o.tenBit, Address: o.addr, SpeedHz: o.speed})
	if o.pin >= 0 {
		tr, err := triggerByName(o.trigger)
		if err != nil {
			return nil, err
		}
		t.GPIOInterrupt(acpi.PinInterrupt{Pin: uint16(o.pin), Trigger: tr})
	}
	if o.vector >= 0 {
		if o.legacy {
			if o.vector > 15 {
				return nil, fmt.Errorf("legacy IRQ descriptor holds vectors 0-15, got %d", o.vector)
			}
			t.IRQ(uint8(o.vector))
		} else {
			t.ExtendedIRQ(uint32(o.vector))
		}
	}
	return t.End(), nil
}

func newEncodeCmd(_ *globals) *cobra.Command {
	o := encodeOpts{}
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Build a resource template",
		Long: `Build a resource template holding an I²C serial bus descriptor and,
optionally, a GPIO interrupt and a platform interrupt. Prints hex.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := o.template()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), formatHex(b))
			return err
		},
	}
	f := cmd.Flags()
	f.Uint16Var(&o.addr, "addr", 0, "target address")
	f.Uint32Var(&o.speed, "speed", 100000, "bus speed in Hz")
	f.BoolVar(&o.tenBit, "ten-bit", false, "10-bit addressing")
	f.IntVar(&o.pin, "pin", -1, "GPIO interrupt pin (-1 for none)")
	f.StringVar(&o.trigger, "trigger", "level_low", "GPIO trigger: edge_rising, edge_falling, edge_both, level_high, level_low")
	f.IntVar(&o.vector, "vector", -1, "platform interrupt vector (-1 for none)")
	f.BoolVar(&o.legacy, "legacy-irq", false, "use the small IRQ descriptor for --vector")
	_ = cmd.MarkFlagRequired("addr")
	return cmd
}
