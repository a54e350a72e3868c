// services/nub/internal/platform/factories_host.go

// Package platform provides host-side stand-ins for the capabilities a nub
// consumes, for tests and for simulating bring-up from the command line.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"i2cnub-go/errcode"
	"i2cnub-go/services/nub/internal/dsm"
	"i2cnub-go/services/nub/nubcore"
)

// ----------------------------- Event log -------------------------------------

// Log records calls in order across several fakes, so tests can check
// ordering (for example teardown) between them.
type Log struct {
	mu     sync.Mutex
	events []string
}

func (l *Log) Add(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (l *Log) Events() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// ----------------------------- I²C (host) ------------------------------------

// HostController implements nubcore.Controller. It records transactions and can
// hold each one on a channel so tests can observe overlap.
type HostController struct {
	// Hold, when set, is received from once per transaction before it completes.
	Hold chan struct{}
	// Started, when set, is sent to (non-blocking) as each transaction begins.
	Started chan struct{}
	// Respond fills read buffers; nil leaves them untouched.
	Respond func(msgs []nubcore.Message)
	// Err is returned by every transaction.
	Err error
	Log *Log

	mu          sync.Mutex
	transfers   [][]nubcore.Message
	inFlight    int
	maxInFlight int
}

var _ nubcore.Controller = (*HostController)(nil)

func (h *HostController) Transfer(msgs []nubcore.Message) error {
	h.mu.Lock()
	h.inFlight++
	if h.inFlight > h.maxInFlight {
		h.maxInFlight = h.inFlight
	}
	cp := make([]nubcore.Message, len(msgs))
	for i, m := range msgs {
		cp[i] = nubcore.Message{Addr: m.Addr, Flags: m.Flags, Buf: append([]byte(nil), m.Buf...)}
	}
	h.transfers = append(h.transfers, cp)
	h.mu.Unlock()
	h.Log.Add("transfer %d", len(msgs))

	if h.Started != nil {
		select {
		case h.Started <- struct{}{}:
		default:
		}
	}
	if h.Hold != nil {
		<-h.Hold
	}
	if h.Respond != nil {
		h.Respond(msgs)
	}

	h.mu.Lock()
	h.inFlight--
	h.mu.Unlock()
	return h.Err
}

// Transfers returns copies of every transaction seen so far.
func (h *HostController) Transfers() [][]nubcore.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]nubcore.Message(nil), h.transfers...)
}

// MaxInFlight is the largest number of concurrent transactions observed.
func (h *HostController) MaxInFlight() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxInFlight
}

// ----------------------------- Interrupt table -------------------------------

// irqTable is the shared bookkeeping of the fake interrupt sources.
type irqTable[K comparable] struct {
	mu       sync.Mutex
	handlers map[K]nubcore.InterruptHandler
	enabled  map[K]bool
	types    map[K]uint16
}

func (t *irqTable[K]) init() {
	if t.handlers == nil {
		t.handlers = make(map[K]nubcore.InterruptHandler)
		t.enabled = make(map[K]bool)
		t.types = make(map[K]uint16)
	}
}

func (t *irqTable[K]) register(k K, h nubcore.InterruptHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
	if _, ok := t.handlers[k]; ok {
		return errcode.New(errcode.Busy, "register_irq", "source already registered")
	}
	t.handlers[k] = h
	return nil
}

func (t *irqTable[K]) unregister(k K) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
	if _, ok := t.handlers[k]; !ok {
		return errcode.New(errcode.NotFound, "unregister_irq", "source not registered")
	}
	delete(t.handlers, k)
	delete(t.enabled, k)
	return nil
}

func (t *irqTable[K]) setEnabled(k K, on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
	if _, ok := t.handlers[k]; !ok && on {
		return errcode.New(errcode.NotFound, "enable_irq", "source not registered")
	}
	t.enabled[k] = on
	return nil
}

func (t *irqTable[K]) isEnabled(k K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled[k]
}

// fire runs the handler of k if it is registered and enabled.
func (t *irqTable[K]) fire(k K) bool {
	t.mu.Lock()
	h, ok := t.handlers[k]
	on := t.enabled[k]
	t.mu.Unlock()
	if !ok || !on || h == nil {
		return false
	}
	h()
	return true
}

// ----------------------------- Firmware --------------------------------------

// FakeFirmware implements nubcore.Firmware from canned answers.
type FakeFirmware struct {
	DeviceName string
	// CRS is returned for _CRS; nil means the method is absent.
	CRS []byte
	// DSMMethod is the method name answering DSM queries ("_DSM" or "XDSM");
	// empty means neither exists.
	DSMMethod string
	// DSM maps a function index to its answer. Index 0 should hold the
	// support bitmap as a []byte.
	DSM map[uint32]any
	// Specifiers maps interrupt source index to its platform vector.
	Specifiers map[int]uint16
	// Types maps interrupt source index to its trigger type.
	Types map[int]uint16
	Log   *Log

	irqs irqTable[int]
}

var _ nubcore.Firmware = (*FakeFirmware)(nil)

var errNoMethod = errors.New("method not present")

func (f *FakeFirmware) Name() string {
	if f.DeviceName == "" {
		return "TPD0"
	}
	return f.DeviceName
}

func (f *FakeFirmware) Evaluate(method string, args ...any) (any, error) {
	switch method {
	case "_CRS":
		if f.CRS == nil {
			return nil, errNoMethod
		}
		return f.CRS, nil
	case dsm.MethodDSM, dsm.MethodXDSM:
		if method != f.DSMMethod {
			return nil, errNoMethod
		}
		if len(args) != 4 {
			return nil, errcode.New(errcode.InvalidArgument, "evaluate", "dsm takes 4 arguments")
		}
		idx, ok := args[2].(uint64)
		if !ok {
			return nil, errcode.New(errcode.InvalidArgument, "evaluate", "function index is not an integer")
		}
		v, ok := f.DSM[uint32(idx)]
		if !ok {
			return nil, errNoMethod
		}
		return v, nil
	}
	return nil, errNoMethod
}

func (f *FakeFirmware) InterruptSpecifier(index int) (uint16, bool) {
	v, ok := f.Specifiers[index]
	return v, ok
}

func (f *FakeFirmware) EnableInterrupt(source int) error {
	f.Log.Add("fw enable %d", source)
	return f.irqs.setEnabled(source, true)
}

func (f *FakeFirmware) DisableInterrupt(source int) error {
	f.Log.Add("fw disable %d", source)
	return f.irqs.setEnabled(source, false)
}

func (f *FakeFirmware) RegisterInterrupt(source int, h nubcore.InterruptHandler) error {
	f.Log.Add("fw register %d", source)
	return f.irqs.register(source, h)
}

func (f *FakeFirmware) UnregisterInterrupt(source int) error {
	f.Log.Add("fw unregister %d", source)
	return f.irqs.unregister(source)
}

func (f *FakeFirmware) InterruptType(source int) (uint16, error) {
	t, ok := f.Types[source]
	if !ok {
		return 0, errcode.New(errcode.NotFound, "irq_type", "no such source")
	}
	return t, nil
}

// Fire delivers an interrupt on source. It reports whether a handler ran.
func (f *FakeFirmware) Fire(source int) bool { return f.irqs.fire(source) }

// Enabled reports whether source is enabled.
func (f *FakeFirmware) Enabled(source int) bool { return f.irqs.isEnabled(source) }

// ----------------------------- GPIO (host) -----------------------------------

// FakePinController implements nubcore.PinController.
type FakePinController struct {
	Log *Log

	irqs irqTable[uint16]
}

var _ nubcore.PinController = (*FakePinController)(nil)

func (p *FakePinController) EnableInterrupt(pin uint16) error {
	p.Log.Add("pin enable %d", pin)
	return p.irqs.setEnabled(pin, true)
}

func (p *FakePinController) DisableInterrupt(pin uint16) error {
	p.Log.Add("pin disable %d", pin)
	return p.irqs.setEnabled(pin, false)
}

func (p *FakePinController) RegisterInterrupt(pin uint16, h nubcore.InterruptHandler) error {
	p.Log.Add("pin register %d", pin)
	return p.irqs.register(pin, h)
}

func (p *FakePinController) UnregisterInterrupt(pin uint16) error {
	p.Log.Add("pin unregister %d", pin)
	return p.irqs.unregister(pin)
}

func (p *FakePinController) SetInterruptType(pin uint16, trigger uint16) error {
	p.Log.Add("pin type %d %d", pin, trigger)
	p.irqs.mu.Lock()
	p.irqs.init()
	p.irqs.types[pin] = trigger
	p.irqs.mu.Unlock()
	return nil
}

func (p *FakePinController) InterruptType(pin uint16) (uint16, error) {
	p.irqs.mu.Lock()
	defer p.irqs.mu.Unlock()
	t, ok := p.irqs.types[pin]
	if !ok {
		return 0, errcode.New(errcode.NotFound, "irq_type", "trigger type not set")
	}
	return t, nil
}

// Fire delivers an interrupt on pin. It reports whether a handler ran.
func (p *FakePinController) Fire(pin uint16) bool { return p.irqs.fire(pin) }

// Enabled reports whether pin is enabled.
func (p *FakePinController) Enabled(pin uint16) bool { return p.irqs.isEnabled(pin) }

// ----------------------------- Locator ---------------------------------------

// StaticLocator hands out PC after Delay. A nil PC never resolves, so Locate
// waits for the context to end.
type StaticLocator struct {
	PC    nubcore.PinController
	Delay time.Duration
	Log   *Log

	mu    sync.Mutex
	calls int
}

var _ nubcore.PinLocator = (*StaticLocator)(nil)

func (s *StaticLocator) Locate(ctx context.Context, name string) (nubcore.PinHandle, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	s.Log.Add("locate %s", name)

	var wait <-chan time.Time
	if s.PC != nil {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		wait = t.C
	}
	select {
	case <-wait:
		return &Handle{PinController: s.PC, log: s.Log}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Calls is the number of Locate calls made.
func (s *StaticLocator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Handle is the PinHandle produced by StaticLocator.
type Handle struct {
	nubcore.PinController
	log *Log

	mu       sync.Mutex
	released int
}

func (h *Handle) Release() {
	h.mu.Lock()
	h.released++
	h.mu.Unlock()
	h.log.Add("release")
}

// Released is the number of Release calls.
func (h *Handle) Released() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// ----------------------------- Upstream --------------------------------------

// HostUpstream is a property map standing in for the bus controller's function.
type HostUpstream map[string]any

func (u HostUpstream) Property(key string) (any, bool) {
	v, ok := u[key]
	return v, ok
}
