// bus/bus_test.go
package bus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func gpioTopic(name string) Topic { return Topic{S("service"), S("gpio"), S(name)} }

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	sub := b.Subscribe(gpioTopic("a"))
	defer sub.Unsubscribe()

	b.Publish(&Message{Topic: gpioTopic("a"), Payload: "hello"})

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "hello" {
			t.Errorf("expected payload 'hello', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	b.Publish(&Message{Topic: gpioTopic("a"), Payload: "persist", Retained: true})

	sub := b.Subscribe(gpioTopic("a"))
	defer sub.Unsubscribe()

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "persist" {
			t.Errorf("expected retained payload 'persist', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for retained message")
	}

	if v, ok := b.Retained(gpioTopic("a")); !ok || v.(string) != "persist" {
		t.Fatalf("Retained = %v, %v", v, ok)
	}

	// Clearing a retained value.
	b.Publish(&Message{Topic: gpioTopic("a"), Retained: true})
	if _, ok := b.Retained(gpioTopic("a")); ok {
		t.Fatal("retained value not cleared")
	}
}

func TestIntTokensAreDistinct(t *testing.T) {
	b := NewBus(2)
	b.Publish(&Message{Topic: Topic{S("irq"), I(1)}, Payload: 1, Retained: true})
	if _, ok := b.Retained(Topic{S("irq"), S("1")}); ok {
		t.Fatal("string token matched int token")
	}
	if v, ok := b.Retained(Topic{S("irq"), I(1)}); !ok || v.(int) != 1 {
		t.Fatalf("int token lookup = %v, %v", v, ok)
	}
}

func TestAwaitLatePublisher(t *testing.T) {
	b := NewBus(4)
	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Publish(&Message{Topic: gpioTopic("gpio0"), Payload: 42, Retained: true})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := b.Await(ctx, gpioTopic("gpio0"))
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v.(int) != 42 {
		t.Fatalf("payload = %v", v)
	}
}

func TestAwaitTimeout(t *testing.T) {
	b := NewBus(4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := b.Await(ctx, gpioTopic("missing"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("Await overran its deadline")
	}
	// The temporary subscription must not leave nodes behind.
	if len(b.root.children) != 0 {
		t.Fatalf("trie not pruned: %v", b.root.children)
	}
}

func TestQueueDropsOldest(t *testing.T) {
	b := NewBus(1)
	sub := b.Subscribe(gpioTopic("x"))
	defer sub.Unsubscribe()

	b.Publish(&Message{Topic: gpioTopic("x"), Payload: 1})
	b.Publish(&Message{Topic: gpioTopic("x"), Payload: 2})

	got := <-sub.Channel()
	if got.Payload.(int) != 2 {
		t.Fatalf("expected newest payload, got %v", got.Payload)
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	b := NewBus(1)
	sub := b.Subscribe(gpioTopic("x"))
	sub.Unsubscribe()
	sub.Unsubscribe()
	b.Publish(&Message{Topic: gpioTopic("x"), Payload: 1})
}
