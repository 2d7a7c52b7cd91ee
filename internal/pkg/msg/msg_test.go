package msg

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func TestSubscribe(t *testing.T) {
	pidPub, err := uuid.NewUUID()
	assert.NilError(t, err)

	pidSub1, err := uuid.NewUUID()
	assert.NilError(t, err)

	pidSub2, err := uuid.NewUUID()
	assert.NilError(t, err)

	pubsub := NewPublisher(pidPub)
	ch1, err := pubsub.Subscribe(pidSub1, Topology)
	assert.NilError(t, err)
	ch2, err := pubsub.Subscribe(pidSub2, Topology)
	assert.NilError(t, err)

	randValue := rand.New(rand.NewSource(time.Now().UnixNano())).Float64()
	pubsub.Publish(Topology, randValue)

	for _, ch := range []<-chan Msg{ch1, ch2} {
		select {
		case incoming := <-ch:
			assert.Equal(t, incoming.Payload(), randValue, "subscriber did not recieve the correct published value")
			assert.Equal(t, incoming.PID(), pidPub)
			assert.Equal(t, incoming.Topic(), Topology)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for published value")
		}
	}
}

func TestSubscribeTwice(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()

	_, err := pubsub.Subscribe(pid, Variant)
	assert.NilError(t, err)
	_, err = pubsub.Subscribe(pid, Variant)
	assert.Assert(t, errors.Is(err, ErrSubscribed))

	_, err = pubsub.Subscribe(pid, Topology)
	assert.NilError(t, err)
}

func TestUnsubscribe(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()

	ch, err := pubsub.Subscribe(pid, Topology)
	assert.NilError(t, err)
	assert.Assert(t, pubsub.HasSubscribers(Topology))

	pubsub.Unsubscribe(pid)
	_, open := <-ch
	assert.Assert(t, !open)
	assert.Assert(t, !pubsub.HasSubscribers(Topology))
}

func TestPublishOnlyToTopic(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	ch, err := pubsub.Subscribe(uuid.New(), Variant)
	assert.NilError(t, err)

	pubsub.Publish(Topology, "ignored")
	pubsub.Publish(Variant, "seen")

	m := <-ch
	assert.Equal(t, m.Payload(), "seen")
	assert.Equal(t, len(ch), 0)
}

func TestPublishNeverBlocks(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	_, err := pubsub.Subscribe(uuid.New(), Topology)
	assert.NilError(t, err)

	for i := 0; i < bufferSize+5; i++ {
		pubsub.Publish(Topology, i)
	}
	assert.Equal(t, pubsub.Dropped(), 5)
}
