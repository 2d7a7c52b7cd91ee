package msg

import "github.com/google/uuid"

// Topic is the category of a Msg.
type Topic int

const (
	// Topology carries bus snapshots and invalidations.
	Topology Topic = iota
	// Variant carries variant creations and removals.
	Variant
)

func (t Topic) String() string {
	switch t {
	case Topology:
		return "Topology"
	case Variant:
		return "Variant"
	default:
		return "Unknown"
	}
}

// Publisher is an interface for objects that allow subscribtion to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is a payload tagged with its sender and topic
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factor function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message topic
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}
