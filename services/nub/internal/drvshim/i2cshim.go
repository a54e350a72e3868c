package drvshim

import (
	"context"

	"i2cnub-go/errcode"
	"i2cnub-go/services/nub/nubcore"

	"tinygo.org/x/drivers"
)

// Peripheral is the transaction surface of a nub.
type Peripheral interface {
	Address() uint16
	Read(buf []byte) error
	Write(ctx context.Context, buf []byte) error
	WriteRead(ctx context.Context, w, r []byte) error
}

// I2C adapts a Peripheral to the tinygo driver Tx shape, so existing drivers
// can sit on top of a nub.
type I2C struct {
	p   Peripheral
	ctx context.Context
}

// Ensure compile-time conformance with drivers.I2C
var _ drivers.I2C = I2C{}

func NewI2C(p Peripheral) I2C {
	return I2C{p: p, ctx: context.Background()}
}

// WithContext bounds the wait for the execution slot of blocking Tx calls.
func (s I2C) WithContext(ctx context.Context) I2C {
	if ctx != nil {
		s.ctx = ctx
	}
	return s
}

// Tx maps w/r onto the nub: both set is a combined transaction, w alone a
// write, r alone a read. Reads are non-blocking and may return errcode.Busy.
func (s I2C) Tx(addr uint16, w, r []byte) error {
	if addr != s.p.Address() {
		return errcode.New(errcode.InvalidArgument, "i2c_tx", "address does not belong to this peripheral")
	}
	switch {
	case len(w) > 0 && len(r) > 0:
		return s.p.WriteRead(s.ctx, w, r)
	case len(w) > 0:
		return s.p.Write(s.ctx, w)
	case len(r) > 0:
		return s.p.Read(r)
	}
	return nil
}

// Controller runs nub transactions on a tinygo drivers.I2C bus. The bus must
// perform w then r with a repeated start when both are given.
type Controller struct {
	Bus drivers.I2C
}

var _ nubcore.Controller = Controller{}

func (c Controller) Transfer(msgs []nubcore.Message) error {
	for _, m := range msgs {
		if m.Flags.Has(nubcore.FlagTen) {
			return errcode.New(errcode.Unsupported, "i2c_transfer", "10-bit addressing")
		}
	}
	switch len(msgs) {
	case 1:
		m := msgs[0]
		if m.Flags.Has(nubcore.FlagRead) {
			return c.Bus.Tx(m.Addr, nil, m.Buf)
		}
		return c.Bus.Tx(m.Addr, m.Buf, nil)
	case 2:
		w, r := msgs[0], msgs[1]
		if w.Flags.Has(nubcore.FlagRead) || !r.Flags.Has(nubcore.FlagRead) || w.Addr != r.Addr {
			return errcode.New(errcode.Unsupported, "i2c_transfer", "only write-then-read to one address")
		}
		return c.Bus.Tx(w.Addr, w.Buf, r.Buf)
	}
	return errcode.New(errcode.InvalidArgument, "i2c_transfer", "need 1 or 2 messages")
}
