package msg

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrSubscribed is returned when a pid subscribes twice to one topic.
var ErrSubscribed = errors.New("msg: already subscribed")

const bufferSize = 50

// PubSub fans published payloads out to topic subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the message.
type PubSub struct {
	mux         *sync.Mutex
	pid         uuid.UUID
	subscribers map[Topic]map[uuid.UUID]chan Msg
	dropped     int
}

// NewPublisher returns a PubSub sending under pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		mux:         &sync.Mutex{},
		pid:         pid,
		subscribers: make(map[Topic]map[uuid.UUID]chan Msg),
	}
}

// PID is the sender id stamped on published messages.
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a channel receiving every message published on topic.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()

	subs, ok := p.subscribers[topic]
	if !ok {
		subs = make(map[uuid.UUID]chan Msg)
		p.subscribers[topic] = subs
	}
	if _, exists := subs[pid]; exists {
		return nil, fmt.Errorf("%w: %v to %v", ErrSubscribed, pid, topic)
	}
	ch := make(chan Msg, bufferSize)
	subs[pid] = ch
	return ch, nil
}

// Unsubscribe closes every channel held by pid.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		if ch, ok := subs[pid]; ok {
			close(ch)
			delete(subs, pid)
		}
	}
}

// HasSubscribers reports whether anyone listens on topic.
func (p *PubSub) HasSubscribers(topic Topic) bool {
	p.mux.Lock()
	defer p.mux.Unlock()
	return len(p.subscribers[topic]) > 0
}

// Publish sends payload on topic.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.Forward(New(p.pid, topic, payload))
}

// Forward relays m unchanged to the subscribers of its topic.
func (p *PubSub) Forward(m Msg) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, ch := range p.subscribers[m.Topic()] {
		select {
		case ch <- m:
		default:
			p.dropped++
		}
	}
}

// Dropped counts the messages lost to full subscriber buffers.
func (p *PubSub) Dropped() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.dropped
}
