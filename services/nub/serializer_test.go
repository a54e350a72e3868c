// services/nub/serializer_test.go

package nub

import (
	"context"
	"errors"
	"testing"
	"time"

	"i2cnub-go/errcode"
	"i2cnub-go/services/nub/internal/platform"
	"i2cnub-go/services/nub/nubcore"
)

func heldController() *platform.HostController {
	return &platform.HostController{
		Hold:    make(chan struct{}),
		Started: make(chan struct{}, 8),
	}
}

func waitStarted(t *testing.T, c *platform.HostController) {
	t.Helper()
	select {
	case <-c.Started:
	case <-time.After(time.Second):
		t.Fatal("transaction never reached the controller")
	}
}

func TestReadFailsFastWhileCombinedInFlight(t *testing.T) {
	ctrl := heldController()
	s, err := NewSerializer(ctrl)
	if err != nil {
		t.Fatalf("NewSerializer: %v", err)
	}
	defer s.Close()

	first := make(chan error, 1)
	go func() {
		first <- s.Run(context.Background(), []nubcore.Message{
			{Addr: 0x2C, Buf: []byte{0x01}},
			{Addr: 0x2C, Flags: nubcore.FlagRead, Buf: make([]byte, 2)},
		})
	}()
	waitStarted(t, ctrl)

	start := time.Now()
	err = s.TryRun([]nubcore.Message{{Addr: 0x2C, Flags: nubcore.FlagRead, Buf: make([]byte, 1)}})
	if !errors.Is(err, errcode.Busy) {
		t.Fatalf("TryRun = %v, want busy", err)
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Fatalf("TryRun took %v", d)
	}

	close(ctrl.Hold)
	if err := <-first; err != nil {
		t.Fatalf("combined transaction: %v", err)
	}
	if n := len(ctrl.Transfers()); n != 1 {
		t.Fatalf("controller saw %d transactions, want 1", n)
	}
}

func TestWriteWaitsForInFlight(t *testing.T) {
	ctrl := heldController()
	s, _ := NewSerializer(ctrl)
	defer s.Close()

	first := make(chan error, 1)
	go func() {
		first <- s.Run(context.Background(), []nubcore.Message{{Addr: 0x10, Buf: []byte{1}}})
	}()
	waitStarted(t, ctrl)

	second := make(chan error, 1)
	go func() {
		second <- s.Run(context.Background(), []nubcore.Message{{Addr: 0x10, Buf: []byte{2}}})
	}()

	select {
	case err := <-second:
		t.Fatalf("second write returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	ctrl.Hold <- struct{}{} // release the first
	if err := <-first; err != nil {
		t.Fatalf("first: %v", err)
	}
	waitStarted(t, ctrl)
	ctrl.Hold <- struct{}{}
	if err := <-second; err != nil {
		t.Fatalf("second: %v", err)
	}

	tx := ctrl.Transfers()
	if len(tx) != 2 || tx[0][0].Buf[0] != 1 || tx[1][0].Buf[0] != 2 {
		t.Fatalf("unexpected order: %+v", tx)
	}
	if m := ctrl.MaxInFlight(); m != 1 {
		t.Fatalf("max in flight = %d", m)
	}
}

func TestRunHonoursContextWhileWaiting(t *testing.T) {
	ctrl := heldController()
	s, _ := NewSerializer(ctrl)
	defer s.Close()

	go func() { _ = s.Run(context.Background(), []nubcore.Message{{Addr: 1}}) }()
	waitStarted(t, ctrl)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.Run(ctx, []nubcore.Message{{Addr: 1}})
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("Run = %v, want timeout", err)
	}
	close(ctrl.Hold)
}

func TestControllerErrorPassesThrough(t *testing.T) {
	nack := errors.New("nack")
	ctrl := &platform.HostController{Err: nack}
	s, _ := NewSerializer(ctrl)
	defer s.Close()

	if err := s.Run(context.Background(), []nubcore.Message{{Addr: 1}}); err != nack {
		t.Fatalf("Run = %v, want the controller's error", err)
	}
	if err := s.TryRun([]nubcore.Message{{Addr: 1, Flags: nubcore.FlagRead}}); err != nack {
		t.Fatalf("TryRun = %v, want the controller's error", err)
	}
	if got := errcode.MapTransportErr(nack); got != errcode.TransportError {
		t.Fatalf("classified as %q", got)
	}
	if n := len(ctrl.Transfers()); n != 2 {
		t.Fatalf("retried: %d transfers", n)
	}
}

func TestTransactionShape(t *testing.T) {
	s, _ := NewSerializer(&platform.HostController{})
	defer s.Close()

	cases := []struct {
		name string
		msgs []nubcore.Message
	}{
		{"empty", nil},
		{"three", make([]nubcore.Message, 3)},
		{"oversize", []nubcore.Message{{Buf: make([]byte, nubcore.MaxMessageLen+1)}}},
	}
	for _, tc := range cases {
		if err := s.TryRun(tc.msgs); errcode.Of(err) != errcode.InvalidArgument {
			t.Errorf("%s: TryRun = %v", tc.name, err)
		}
	}
	if err := s.TryRun([]nubcore.Message{{Buf: make([]byte, nubcore.MaxMessageLen)}}); err != nil {
		t.Fatalf("max length rejected: %v", err)
	}
}

func TestSerializerClose(t *testing.T) {
	if _, err := NewSerializer(nil); errcode.Of(err) != errcode.InvalidArgument {
		t.Fatalf("nil controller: %v", err)
	}

	ctrl := heldController()
	s, _ := NewSerializer(ctrl)

	inflight := make(chan error, 1)
	go func() { inflight <- s.Run(context.Background(), []nubcore.Message{{Addr: 1}}) }()
	waitStarted(t, ctrl)

	closed := make(chan struct{})
	go func() { s.Close(); close(closed) }()
	select {
	case <-closed:
		t.Fatal("Close did not wait for the transaction in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(ctrl.Hold)
	if err := <-inflight; err != nil {
		t.Fatalf("in flight: %v", err)
	}
	<-closed

	if err := s.TryRun([]nubcore.Message{{Addr: 1}}); !errors.Is(err, errcode.Closed) {
		t.Fatalf("after close: %v", err)
	}
	s.Close()
}
