package mongodb

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_topology/internal/pkg/msg"
	"github.com/ohowland/cgc_topology/internal/pkg/network"
	logging "github.com/op/go-logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var logger = logging.MustGetLogger("mongodb")

const defaultCollection = "busSnapshots"

// Handler keeps the latest bus snapshot of every voltage level, view and
// variant in a collection.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	URI        string `json:"URI"`
	Database   string `json:"Database"`
	Port       string `json:"Port"`
	Collection string `json:"Collection"`
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}

	pid, _ := uuid.NewUUID()

	inbox := make(chan msg.Msg, 50)

	chTopology, err := system.Subscribe(pid, msg.Topology)
	if err != nil {
		return Handler{}, err
	}
	go redirectMsg(chTopology, inbox)

	chVariant, err := system.Subscribe(pid, msg.Variant)
	if err != nil {
		system.Unsubscribe(pid)
		return Handler{}, err
	}
	go redirectMsg(chVariant, inbox)

	return Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		stop:   make(chan bool, 1),
	}, nil
}

func snapshotFilter(s network.Snapshot) bson.M {
	return bson.M{
		"network":      s.Network,
		"voltageLevel": s.VoltageLevel,
		"view":         s.View,
		"variant":      s.Variant,
	}
}

func snapshotUpdate(s network.Snapshot, pid uuid.UUID, at time.Time) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.M{
			"pid":     pid.String(),
			"buses":   s.Buses,
			"stale":   false,
			"updated": at,
		}},
	}
}

func invalidatedFilter(e network.Invalidated) bson.M {
	filter := bson.M{"network": e.Network, "voltageLevel": e.VoltageLevel}
	if e.Variant != "" {
		filter["variant"] = e.Variant
	}
	return filter
}

func variantFilter(e network.VariantEvent) bson.M {
	return bson.M{"network": e.Network, "variant": e.Variant}
}

// Stop ends Process. It does not block when Process already returned.
func (h *Handler) Stop() {
	h.stop <- true
}

func (h Handler) Process() {
	ctx := context.TODO()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(h.config.URI+":"+h.config.Port))
	if err != nil {
		logger.Errorf("[Mongo] %v", err)
		return
	}
	defer client.Disconnect(ctx)

	collection := client.Database(h.config.Database).Collection(h.config.Collection)
	if err := collection.Drop(ctx); err != nil {
		logger.Warningf("[Mongo] Drop %s: %v", h.config.Collection, err)
	}
	logger.Info("[Mongo] Process Started")
loop:
	for {
		select {
		case m := <-h.inbox:
			if err := h.write(ctx, collection, m); err != nil {
				logger.Errorf("[Mongo] %v", err)
			}
		case <-h.stop:
			break loop
		}
	}
	logger.Info("[Mongo] Process Shutdown")
}

func (h Handler) write(ctx context.Context, collection *mongo.Collection, m msg.Msg) error {
	switch payload := m.Payload().(type) {
	case network.Snapshot:
		opts := options.Update().SetUpsert(true)
		_, err := collection.UpdateOne(ctx, snapshotFilter(payload), snapshotUpdate(payload, m.PID(), time.Now()), opts)
		return err
	case network.Invalidated:
		_, err := collection.UpdateMany(ctx, invalidatedFilter(payload), bson.M{"$set": bson.M{"stale": true}})
		return err
	case network.VariantEvent:
		if !payload.Removed {
			return nil
		}
		_, err := collection.DeleteMany(ctx, variantFilter(payload))
		return err
	}
	return nil
}
