// bus.go
package bus

import (
	"context"
	"sync"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Token is a single element in a topic path.
// It can be either a string or an integer.
type Token struct {
	kind byte // 0 = string, 1 = int
	sval string
	ival int
}

// Constructors
func S(s string) Token { return Token{kind: 0, sval: s} }
func I(i int) Token    { return Token{kind: 1, ival: i} }

// Topic is a sequence of tokens.
type Topic []Token

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

// Message is one publication. A retained message with a nil Payload clears the
// retained value for its topic.
type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	bus   *Bus
	once  sync.Once
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }

// Unsubscribe detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
		close(s.ch)
	})
}

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[Token]*node
	subs     []*Subscription
	retained *Message
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

// Bus is an in-process directory of exact-match topics. Retained messages are
// replayed to late subscribers, which is what lets a consumer wait for a named
// provider that has not been published yet.
type Bus struct {
	mu   sync.Mutex
	root *node
	qLen int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

// walk returns the node for topic, creating it when create is set.
// Caller holds b.mu.
func (b *Bus) walk(topic Topic, create bool) *node {
	n := b.root
	for _, tok := range topic {
		child, ok := n.children[tok]
		if !ok {
			if !create {
				return nil
			}
			if n.children == nil {
				n.children = make(map[Token]*node)
			}
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	return n
}

// Subscribe registers interest in topic. A retained message, if present, is
// delivered immediately.
func (b *Bus) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: append(Topic(nil), topic...),
		ch:    make(chan *Message, b.qLen),
		bus:   b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.walk(topic, true)
	n.subs = append(n.subs, sub)
	if n.retained != nil {
		sub.ch <- n.retained
	}
	return sub
}

// Publish delivers a message to all subscribers of its topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.walk(msg.Topic, msg.Retained)
	if n == nil {
		return
	}
	for _, sub := range n.subs {
		select {
		case sub.ch <- msg:
		default:
			// drop oldest if queue full
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
	if msg.Retained {
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}
}

// Retained returns the retained payload for topic, if any.
func (b *Bus) Retained(topic Topic) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.walk(topic, false)
	if n == nil || n.retained == nil {
		return nil, false
	}
	return n.retained.Payload, true
}

// Await blocks until a non-nil payload is available on topic or ctx ends.
// It is a one-shot lookup; the temporary subscription is always removed.
func (b *Bus) Await(ctx context.Context, topic Topic) (any, error) {
	sub := b.Subscribe(topic)
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case m := <-sub.Channel():
			if m != nil && m.Payload != nil {
				return m.Payload, nil
			}
		}
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	stack := make([]*node, 0, len(sub.topic))
	for _, t := range sub.topic {
		child, ok := n.children[t]
		if !ok {
			return
		}
		stack = append(stack, n)
		n = child
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes.
	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := sub.topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}
