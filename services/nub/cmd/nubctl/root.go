package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"i2cnub-go/acpi"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type globals struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "nubctl",
		Short: "I²C peripheral resource tool",
		Long: `Decode and build ACPI I²C resource templates, and simulate how a
peripheral would be brought up from them.

Examples:
  nubctl decode "8e 1e 00 01 00 01 02 00 00 01 06 00 80 1a 06 00 50 00 ..."
  nubctl encode --addr 0x50 --speed 400000 --pin 12 --trigger edge_rising
  nubctl attach platform.yaml`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log bring-up details")

	root.AddCommand(newDecodeCmd(g), newEncodeCmd(g), newAttachCmd(g))
	return root
}

func (g *globals) logger() *zap.Logger {
	if !g.verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// parseHex accepts hex with optional whitespace, commas and 0x prefixes.
func parseHex(s string) ([]byte, error) {
	r := strings.NewReplacer("0x", "", "0X", "", ",", " ")
	clean := strings.Join(strings.Fields(r.Replace(s)), "")
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

func formatHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = hex.EncodeToString([]byte{v})
	}
	return strings.Join(parts, " ")
}

func triggerByName(name string) (uint16, error) {
	for _, t := range []uint16{
		acpi.TriggerEdgeRising, acpi.TriggerEdgeFalling, acpi.TriggerEdgeBoth,
		acpi.TriggerLevelHigh, acpi.TriggerLevelLow,
	} {
		if acpi.TriggerString(t) == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown trigger %q", name)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
