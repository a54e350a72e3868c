package main

import (
	"os"

	"i2cnub-go/acpi"

	"github.com/spf13/cobra"
)

// resourceView is the printed form of a decoded template.
type resourceView struct {
	I2C *struct {
		AddrWidth  int    `yaml:"addrWidth"`
		I2CAddress uint16 `yaml:"i2cAddress"`
		SclHz      uint32 `yaml:"sclHz"`
	} `yaml:"i2c,omitempty"`
	Vector *uint16 `yaml:"vector,omitempty"`
	GPIO   *struct {
		Pin     uint16 `yaml:"gpioPin"`
		IRQ     uint16 `yaml:"gpioIRQ"`
		Trigger string `yaml:"trigger"`
	} `yaml:"gpio,omitempty"`
}

func viewOf(rs acpi.ResourceSet) resourceView {
	var v resourceView
	if rs.FoundI2C {
		v.I2C = &struct {
			AddrWidth  int    `yaml:"addrWidth"`
			I2CAddress uint16 `yaml:"i2cAddress"`
			SclHz      uint32 `yaml:"sclHz"`
		}{rs.I2C.AddressWidth(), rs.I2C.Address, rs.I2C.SpeedHz}
	}
	if rs.FoundInterrupt {
		vec := rs.Interrupt.Vector
		v.Vector = &vec
	}
	if rs.FoundGPIOInterrupts {
		v.GPIO = &struct {
			Pin     uint16 `yaml:"gpioPin"`
			IRQ     uint16 `yaml:"gpioIRQ"`
			Trigger string `yaml:"trigger"`
		}{rs.GPIO.Pin, rs.GPIO.Trigger, acpi.TriggerString(rs.GPIO.Trigger)}
	}
	return v
}

func newDecodeCmd(_ *globals) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decode a resource template",
		Long: `Decode a resource template given as hex on the command line or read
as raw bytes from --file. Malformed descriptors are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var blob []byte
			var err error
			switch {
			case file != "":
				blob, err = os.ReadFile(file)
			case len(args) == 1:
				blob, err = parseHex(args[0])
			default:
				return cmd.Usage()
			}
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), viewOf(acpi.Parse(blob)))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the raw template from a file")
	return cmd
}
