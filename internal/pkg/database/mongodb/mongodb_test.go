package mongodb

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_topology/internal/pkg/msg"
	"github.com/ohowland/cgc_topology/internal/pkg/network"
	"go.mongodb.org/mongo-driver/bson"
	"gotest.tools/v3/assert"
)

func newSnapshot() network.Snapshot {
	return network.Snapshot{
		Network:      "grid",
		VoltageLevel: "VL",
		View:         "BusView",
		Variant:      "InitialVariant",
		Buses: []network.BusSnapshot{
			{ID: "VL_0", Members: []string{"B1", "B2"}, Terminals: []string{"L1"}},
		},
	}
}

func TestSnapshotFilter(t *testing.T) {
	assert.DeepEqual(t, snapshotFilter(newSnapshot()), bson.M{
		"network":      "grid",
		"voltageLevel": "VL",
		"view":         "BusView",
		"variant":      "InitialVariant",
	})
}

func TestSnapshotUpdate(t *testing.T) {
	pid := uuid.New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newSnapshot()

	update := snapshotUpdate(s, pid, at)
	assert.Equal(t, len(update), 1)
	assert.Equal(t, update[0].Key, "$set")
	set, ok := update[0].Value.(bson.M)
	assert.Assert(t, ok)
	assert.Equal(t, set["pid"], pid.String())
	assert.Equal(t, set["stale"], false)
	assert.Equal(t, set["updated"], at)
	assert.DeepEqual(t, set["buses"], s.Buses)
}

func TestSnapshotDocumentTags(t *testing.T) {
	raw, err := bson.Marshal(newSnapshot().Buses[0])
	assert.NilError(t, err)

	doc := bson.M{}
	assert.NilError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, doc["id"], "VL_0")
	_, hasName := doc["name"]
	assert.Assert(t, !hasName)
}

func TestInvalidatedFilter(t *testing.T) {
	all := invalidatedFilter(network.Invalidated{Network: "grid", VoltageLevel: "VL"})
	assert.DeepEqual(t, all, bson.M{"network": "grid", "voltageLevel": "VL"})

	one := invalidatedFilter(network.Invalidated{Network: "grid", VoltageLevel: "VL", Variant: "v1"})
	assert.DeepEqual(t, one, bson.M{"network": "grid", "voltageLevel": "VL", "variant": "v1"})
}

func TestVariantFilter(t *testing.T) {
	f := variantFilter(network.VariantEvent{Network: "grid", Variant: "v1", Removed: true})
	assert.DeepEqual(t, f, bson.M{"network": "grid", "variant": "v1"})
}

func TestNewSubscribes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mongodb.json")
	assert.NilError(t, ioutil.WriteFile(path, []byte(`{"URI": "mongodb://localhost", "Port": "27017", "Database": "topology"}`), 0644))

	n := network.New("grid")
	h, err := New(path, n)
	assert.NilError(t, err)
	assert.Equal(t, h.config.Collection, defaultCollection)

	_, err = n.Subscribe(h.PID(), msg.Topology)
	assert.ErrorIs(t, err, msg.ErrSubscribed)
}

func TestStopAfterFailedConnect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mongodb.json")
	assert.NilError(t, ioutil.WriteFile(path, []byte(`{"URI": "not-a-mongo-uri", "Port": "1"}`), 0644))

	h, err := New(path, network.New("grid"))
	assert.NilError(t, err)

	done := make(chan bool)
	go func() {
		h.Process()
		h.Stop()
		done <- true
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked after Process returned")
	}
}
