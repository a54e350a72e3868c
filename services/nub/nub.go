// services/nub/nub.go

// Package nub brings up one I²C peripheral described by firmware: it resolves
// the address, bus speed and interrupt source from the static and dynamic
// resource templates, then serialises transactions to the bus controller and
// routes interrupt registration to the chosen source.
package nub

import (
	"context"
	"sync"
	"time"

	"i2cnub-go/acpi"
	"i2cnub-go/errcode"
	"i2cnub-go/services/nub/internal/bootargs"
	"i2cnub-go/services/nub/internal/drvshim"
	"i2cnub-go/services/nub/internal/dsm"
	"i2cnub-go/services/nub/nubcore"
	"i2cnub-go/types"

	"go.uber.org/zap"
	"tinygo.org/x/drivers"
)

// UpstreamForcePolling is the upstream property that disables pin interrupts.
const UpstreamForcePolling = "force-polling"

// Params are the collaborators of one nub. Firmware and Controller are
// required. Upstream and Pins may be nil.
type Params struct {
	Firmware   nubcore.Firmware
	Controller nubcore.Controller
	Upstream   nubcore.Upstream
	Pins       nubcore.PinLocator
	Config     Config
	Logger     *zap.Logger
}

// PeripheralConfig is the resolved configuration, fixed once Attach returns.
type PeripheralConfig struct {
	TenBit   bool
	Address  uint16
	SpeedHz  uint32
	Strategy Strategy
	Source   acpi.Source
}

// AddressWidth is 10 for ten-bit targets, 7 otherwise.
func (c PeripheralConfig) AddressWidth() int {
	return acpi.SerialBus{TenBit: c.TenBit}.AddressWidth()
}

// Nub is an attached peripheral.
type Nub struct {
	name string
	cfg  PeripheralConfig
	fw   nubcore.Firmware
	pin  nubcore.PinHandle // PinBased only
	ser  *Serializer
	log  *zap.Logger

	mu         sync.Mutex
	registered map[int]struct{}
	closed     bool
}

// Attach resolves the peripheral's resources, selects its interrupt source and
// starts its serializer. On failure everything acquired so far is released.
func Attach(ctx context.Context, p Params) (n *Nub, err error) {
	if p.Firmware == nil {
		return nil, errcode.New(errcode.InvalidArgument, "attach", "no firmware device")
	}
	cfg := p.Config.normalised()
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "nub"), zap.String("device", p.Firmware.Name()))

	var cleanup []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		log.Warn("attach failed", zap.Error(err))
	}()

	static := staticResources(p.Firmware, log)
	dynamic := dynamicResources(p.Firmware, cfg.DSMIndex, log)

	rs, src, err := acpi.Resolve(static, dynamic)
	if err != nil {
		return nil, err
	}

	pc := PeripheralConfig{
		TenBit:  rs.I2C.TenBit,
		Address: rs.I2C.Address,
		SpeedHz: rs.I2C.SpeedHz,
		Source:  src,
	}
	log.Info("resolved",
		zap.Stringer("source", src),
		zap.Int("addrWidth", pc.AddressWidth()),
		zap.Uint16("i2cAddress", pc.Address),
		zap.Uint32("sclHz", pc.SpeedHz))

	in := SelectInput{
		GPIO:                 rs.GPIO,
		HasGPIO:              rs.FoundGPIOInterrupts,
		BootForcePolling:     cfg.ForcePolling || bootargs.Parse(cfg.BootArgs).Has(bootargs.ForcePolling),
		UpstreamForcePolling: upstreamForcePolling(p.Upstream),
		PinControllerName:    cfg.PinControllerName,
		Timeout:              cfg.PinControllerTimeout,
	}
	in.Platform, in.HasPlatform = platformVector(p.Firmware, rs)
	if in.HasPlatform {
		if verr := in.Platform.Validate(); verr != nil {
			log.Warn("platform interrupt ignored", zap.Uint16("vector", in.Platform.Vector), zap.Error(verr))
		}
	}

	strat, h, err := SelectStrategy(ctx, in, p.Pins)
	if err != nil {
		return nil, err
	}
	pc.Strategy = strat
	if h != nil {
		cleanup = append(cleanup, h.Release)
		if cfg.PinSettle > 0 {
			t := time.NewTimer(cfg.PinSettle)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return nil, errcode.Wrap(errcode.Timeout, "attach", ctx.Err())
			}
		}
	}

	switch strat.Kind {
	case StrategyPlatform:
		log.Info("using platform interrupt", zap.Uint16("vector", strat.Vector))
	case StrategyPinBased:
		log.Info("using pin interrupt",
			zap.Uint16("gpioPin", strat.Pin),
			zap.Uint16("gpioIRQ", strat.Trigger),
			zap.String("trigger", acpi.TriggerString(strat.Trigger)))
	default:
		log.Warn("no APIC nor GPIO interrupts, polling")
	}

	ser, err := NewSerializer(p.Controller)
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, ser.Close)

	return &Nub{
		name:       p.Firmware.Name(),
		cfg:        pc,
		fw:         p.Firmware,
		pin:        h,
		ser:        ser,
		log:        log,
		registered: make(map[int]struct{}),
	}, nil
}

func staticResources(fw nubcore.Firmware, log *zap.Logger) acpi.ResourceSet {
	v, err := fw.Evaluate("_CRS")
	if err != nil {
		log.Info("no _CRS", zap.Error(err))
		return acpi.ResourceSet{}
	}
	blob, ok := v.([]byte)
	if !ok {
		log.Warn("_CRS is not a buffer")
		return acpi.ResourceSet{}
	}
	return acpi.Parse(blob)
}

func dynamicResources(fw nubcore.Firmware, index uint32, log *zap.Logger) acpi.ResourceSet {
	blob, method, err := dsm.Resources(fw, index)
	if err != nil {
		log.Debug("no dynamic resources", zap.Error(err))
		return acpi.ResourceSet{}
	}
	if method == dsm.MethodXDSM {
		log.Warn("resources came from XDSM; rename the method to _DSM, XDSM support will be removed")
	}
	return acpi.Parse(blob)
}

// The platform's own decoding of interrupt source 0 is preferred; the
// resolved template is the fallback.
func platformVector(fw nubcore.Firmware, rs acpi.ResourceSet) (acpi.Interrupt, bool) {
	if v, ok := fw.InterruptSpecifier(0); ok {
		return acpi.Interrupt{Vector: v}, true
	}
	return rs.Interrupt, rs.FoundInterrupt
}

func upstreamForcePolling(u nubcore.Upstream) bool {
	if u == nil {
		return false
	}
	v, ok := u.Property(UpstreamForcePolling)
	if !ok {
		return false
	}
	if b, isBool := v.(bool); isBool {
		return b
	}
	return true
}

// ---- Accessors ----

func (n *Nub) Name() string { return n.name }
func (n *Nub) Address() uint16 { return n.cfg.Address }
func (n *Nub) Config() PeripheralConfig { return n.cfg }
func (n *Nub) Strategy() Strategy { return n.cfg.Strategy }

// Info mirrors the resolved configuration for publication.
func (n *Nub) Info() types.PeripheralInfo {
	info := types.PeripheralInfo{
		Device:     n.name,
		Source:     n.cfg.Source.String(),
		AddrWidth:  n.cfg.AddressWidth(),
		I2CAddress: n.cfg.Address,
		SclHz:      n.cfg.SpeedHz,
		Interrupt:  n.cfg.Strategy.Kind.String(),
	}
	s := n.cfg.Strategy
	switch s.Kind {
	case StrategyPlatform:
		v := s.Vector
		info.Vector = &v
	case StrategyPinBased:
		pin, trig := s.Pin, s.Trigger
		info.GPIOPin = &pin
		info.GPIOIRQ = &trig
		info.Trigger = acpi.TriggerString(trig)
	}
	return info
}

// ---- Transactions ----

func (n *Nub) flags() nubcore.Flags {
	if n.cfg.TenBit {
		return nubcore.FlagTen
	}
	return 0
}

// Read fills buf from the peripheral. It does not wait: if another transaction
// holds the bus it returns errcode.Busy.
func (n *Nub) Read(buf []byte) error {
	return n.ser.TryRun([]nubcore.Message{
		{Addr: n.cfg.Address, Flags: nubcore.FlagRead | n.flags(), Buf: buf},
	})
}

// Write sends buf, waiting for the bus if needed.
func (n *Nub) Write(ctx context.Context, buf []byte) error {
	return n.ser.Run(ctx, []nubcore.Message{
		{Addr: n.cfg.Address, Flags: n.flags(), Buf: buf},
	})
}

// WriteRead sends w and reads into r as one transaction.
func (n *Nub) WriteRead(ctx context.Context, w, r []byte) error {
	f := n.flags()
	return n.ser.Run(ctx, []nubcore.Message{
		{Addr: n.cfg.Address, Flags: f, Buf: w},
		{Addr: n.cfg.Address, Flags: nubcore.FlagRead | f, Buf: r},
	})
}

// I2C exposes the nub as a tinygo drivers.I2C bound to its own address.
func (n *Nub) I2C() drivers.I2C { return drvshim.NewI2C(n) }

// ---- Interrupts ----
//
// Pin-based nubs have a single source: every index maps to the resolved pin.

func (n *Nub) route(op string) (kind StrategyKind, err error) {
	if n.closed {
		return 0, errcode.Closed
	}
	kind = n.cfg.Strategy.Kind
	if kind == StrategyPolling {
		return 0, errcode.New(errcode.Unsupported, op, "peripheral is polled")
	}
	return kind, nil
}

func (n *Nub) EnableInterrupt(source int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	kind, err := n.route("enable_irq")
	if err != nil {
		return err
	}
	if kind == StrategyPinBased {
		return n.pin.EnableInterrupt(n.cfg.Strategy.Pin)
	}
	return n.fw.EnableInterrupt(source)
}

func (n *Nub) DisableInterrupt(source int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	kind, err := n.route("disable_irq")
	if err != nil {
		return err
	}
	if kind == StrategyPinBased {
		return n.pin.DisableInterrupt(n.cfg.Strategy.Pin)
	}
	return n.fw.DisableInterrupt(source)
}

// RegisterInterrupt installs h. For pin-based nubs the pin's trigger type is
// set first.
func (n *Nub) RegisterInterrupt(source int, h nubcore.InterruptHandler) error {
	if h == nil {
		return errcode.New(errcode.InvalidArgument, "register_irq", "nil handler")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	kind, err := n.route("register_irq")
	if err != nil {
		return err
	}
	if kind == StrategyPinBased {
		s := n.cfg.Strategy
		if err := n.pin.SetInterruptType(s.Pin, s.Trigger); err != nil {
			return err
		}
		err = n.pin.RegisterInterrupt(s.Pin, h)
	} else {
		err = n.fw.RegisterInterrupt(source, h)
	}
	if err == nil {
		n.registered[source] = struct{}{}
	}
	return err
}

func (n *Nub) UnregisterInterrupt(source int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	kind, err := n.route("unregister_irq")
	if err != nil {
		return err
	}
	if kind == StrategyPinBased {
		err = n.pin.UnregisterInterrupt(n.cfg.Strategy.Pin)
	} else {
		err = n.fw.UnregisterInterrupt(source)
	}
	if err == nil {
		delete(n.registered, source)
	}
	return err
}

// InterruptType reports the trigger type of source.
func (n *Nub) InterruptType(source int) (uint16, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	kind, err := n.route("irq_type")
	if err != nil {
		return 0, err
	}
	if kind == StrategyPinBased {
		return n.pin.InterruptType(n.cfg.Strategy.Pin)
	}
	return n.fw.InterruptType(source)
}

// Close disables and unregisters every registered source, releases the pin
// controller, then stops the serializer once the transaction in flight is
// done. Close is idempotent.
func (n *Nub) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	for src := range n.registered {
		var derr, uerr error
		if n.cfg.Strategy.Kind == StrategyPinBased {
			derr = n.pin.DisableInterrupt(n.cfg.Strategy.Pin)
			uerr = n.pin.UnregisterInterrupt(n.cfg.Strategy.Pin)
		} else {
			derr = n.fw.DisableInterrupt(src)
			uerr = n.fw.UnregisterInterrupt(src)
		}
		if derr != nil || uerr != nil {
			n.log.Warn("interrupt teardown", zap.Int("source", src), zap.NamedError("disable", derr), zap.NamedError("unregister", uerr))
		}
		delete(n.registered, src)
	}
	if n.pin != nil {
		n.pin.Release()
	}
	n.mu.Unlock()

	n.ser.Close()
	n.log.Debug("detached")
	return nil
}
