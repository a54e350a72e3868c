package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"i2cnub-go/bus"
	"i2cnub-go/services/nub"
	"i2cnub-go/services/nub/internal/bootargs"
	"i2cnub-go/services/nub/internal/platform"
	"i2cnub-go/services/nub/nubcore"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// platformFile describes a simulated peripheral. Templates are hex strings.
type platformFile struct {
	Device string `yaml:"device"`
	CRS    string `yaml:"crs"`
	DSM    struct {
		Method    string            `yaml:"method"` // "_DSM" or "XDSM"
		Functions map[uint32]string `yaml:"functions"`
	} `yaml:"dsm"`
	Specifiers    map[int]uint16 `yaml:"specifiers"`
	Upstream      map[string]any `yaml:"upstream"`
	PinController bool           `yaml:"pinController"`
	BootArgs      string         `yaml:"bootArgs"`

	Config struct {
		PinControllerName    string        `yaml:"pinControllerName"`
		PinControllerTimeout time.Duration `yaml:"pinControllerTimeout"`
		PinSettle            time.Duration `yaml:"pinSettle"`
		DSMIndex             uint32        `yaml:"dsmIndex"`
		ForcePolling         bool          `yaml:"forcePolling"`
	} `yaml:"config"`
}

func loadPlatform(path string) (*platformFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pf := &platformFile{}
	if err := yaml.Unmarshal(raw, pf); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pf, nil
}

func (pf *platformFile) firmware() (*platform.FakeFirmware, error) {
	fw := &platform.FakeFirmware{
		DeviceName: pf.Device,
		DSMMethod:  pf.DSM.Method,
		Specifiers: pf.Specifiers,
	}
	if pf.CRS != "" {
		b, err := parseHex(pf.CRS)
		if err != nil {
			return nil, fmt.Errorf("crs: %w", err)
		}
		fw.CRS = b
	}
	if len(pf.DSM.Functions) > 0 {
		fw.DSM = make(map[uint32]any, len(pf.DSM.Functions))
		for idx, h := range pf.DSM.Functions {
			b, err := parseHex(h)
			if err != nil {
				return nil, fmt.Errorf("dsm function %d: %w", idx, err)
			}
			fw.DSM[idx] = b
		}
	}
	return fw, nil
}

func (pf *platformFile) config(boot bootargs.Args) nub.Config {
	c := nub.DefaultConfig()
	if v := pf.Config.PinControllerName; v != "" {
		c.PinControllerName = v
	}
	if v := pf.Config.PinControllerTimeout; v > 0 {
		c.PinControllerTimeout = v
	}
	c.PinSettle = pf.Config.PinSettle
	if v := pf.Config.DSMIndex; v != 0 {
		c.DSMIndex = v
	}
	c.ForcePolling = pf.Config.ForcePolling || boot.Has(bootargs.ForcePolling)
	c.BootArgs = pf.BootArgs
	return c
}

func newAttachCmd(g *globals) *cobra.Command {
	var (
		asJSON      bool
		cmdlinePath string
	)
	cmd := &cobra.Command{
		Use:   "attach <platform.yaml>",
		Short: "Simulate peripheral bring-up",
		Long: `Bring up a peripheral against the simulated platform described in a
YAML file and print the resolved configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := loadPlatform(args[0])
			if err != nil {
				return err
			}
			fw, err := pf.firmware()
			if err != nil {
				return err
			}
			var boot bootargs.Args
			if cmdlinePath != "" {
				if boot, err = bootargs.Load(cmdlinePath); err != nil {
					return err
				}
			}
			cfg := pf.config(boot)

			b := bus.NewBus(4)
			if pf.PinController {
				nub.PublishPinController(b, cfg.PinControllerName, &platform.FakePinController{})
			}
			var up nubcore.Upstream
			if len(pf.Upstream) > 0 {
				up = platform.HostUpstream(pf.Upstream)
			}

			log := g.logger()
			defer func() { _ = log.Sync() }()

			n, err := nub.Attach(cmd.Context(), nub.Params{
				Firmware:   fw,
				Controller: &platform.HostController{},
				Upstream:   up,
				Pins:       nub.BusLocator{Bus: b},
				Config:     cfg,
				Logger:     log,
			})
			if err != nil {
				return err
			}
			defer n.Close()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(n.Info())
			}
			return writeYAML(cmd.OutOrStdout(), n.Info())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	cmd.Flags().StringVar(&cmdlinePath, "cmdline", "", "read boot arguments from this file (e.g. "+bootargs.DefaultPath+")")
	return cmd
}

