package nub

import (
	"context"
	"sync"
	"sync/atomic"

	"i2cnub-go/errcode"
	"i2cnub-go/services/nub/nubcore"
	"i2cnub-go/x/mathx"

	"golang.org/x/sync/semaphore"
)

// request posted to the worker
type txReq struct {
	msgs []nubcore.Message
	done chan error // buffered(1)
}

// Serializer owns the single execution slot of one peripheral. A single worker
// goroutine hands transactions to the controller; a one-slot semaphore decides
// who may post the next one. TryRun fails fast when the slot is taken, Run
// waits for it.
type Serializer struct {
	ctrl nubcore.Controller
	gate *semaphore.Weighted

	reqs    chan txReq
	quit    chan struct{}
	stopped chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewSerializer starts the worker for ctrl.
func NewSerializer(ctrl nubcore.Controller) (*Serializer, error) {
	if ctrl == nil {
		return nil, errcode.New(errcode.InvalidArgument, "serializer", "no bus controller")
	}
	s := &Serializer{
		ctrl:    ctrl,
		gate:    semaphore.NewWeighted(1),
		reqs:    make(chan txReq),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

func (s *Serializer) loop() {
	defer close(s.stopped)
	for {
		select {
		case req := <-s.reqs:
			req.done <- s.ctrl.Transfer(req.msgs)
		case <-s.quit:
			return
		}
	}
}

// TryRun executes msgs only if no other transaction holds the slot.
func (s *Serializer) TryRun(msgs []nubcore.Message) error {
	if err := validate(msgs); err != nil {
		return err
	}
	if !s.gate.TryAcquire(1) {
		return errcode.Busy
	}
	defer s.gate.Release(1)
	return s.exec(msgs)
}

// Run waits for the slot and executes msgs. ctx only bounds the wait for the
// slot; once the controller has the transaction, Run returns its result.
func (s *Serializer) Run(ctx context.Context, msgs []nubcore.Message) error {
	if err := validate(msgs); err != nil {
		return err
	}
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return errcode.Wrap(errcode.Timeout, "serializer", err)
	}
	defer s.gate.Release(1)
	return s.exec(msgs)
}

// caller holds the slot
func (s *Serializer) exec(msgs []nubcore.Message) error {
	if s.closed.Load() {
		return errcode.Closed
	}
	req := txReq{msgs: msgs, done: make(chan error, 1)}
	s.reqs <- req
	return <-req.done
}

// Close waits for the transaction in flight, then stops the worker. Later
// calls return errcode.Closed.
func (s *Serializer) Close() {
	s.closeOnce.Do(func() {
		_ = s.gate.Acquire(context.Background(), 1)
		s.closed.Store(true)
		close(s.quit)
		<-s.stopped
		s.gate.Release(1)
	})
}

func validate(msgs []nubcore.Message) error {
	if !mathx.Between(len(msgs), 1, 2) {
		return errcode.New(errcode.InvalidArgument, "transaction", "need 1 or 2 messages")
	}
	for _, m := range msgs {
		if !mathx.Between(len(m.Buf), 0, nubcore.MaxMessageLen) {
			return errcode.New(errcode.InvalidArgument, "transaction", "message longer than 65535 bytes")
		}
	}
	return nil
}
