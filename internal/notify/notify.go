// Package notify implements the Change Notifier: publishing one
// structured event per successfully committed DR Object through a
// gocloud.dev/pubsub Topic.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/pubsub"

	"github.com/preservica/dr-replicator/internal/errs"
	"github.com/preservica/dr-replicator/internal/model"
)

// Event is the wire shape of one change notification. entityType is a
// constant "CO" even for IO metadata updates, matching the upstream
// notification contract downstream consumers already expect; changing
// it would be a breaking migration, which is out of scope here.
type Event struct {
	EntityType    string `json:"entityType"`
	IORef         string `json:"ioRef"`
	ObjectType    string `json:"objectType"`
	Status        string `json:"status"`
	BitstreamName string `json:"bitstreamName"`
}

const entityTypeConstant = "CO"

// Notifier publishes events to a single destination topic.
type Notifier struct {
	topic *pubsub.Topic
}

// New wraps an already-opened pubsub.Topic (typically opened from an
// awssnssqs:// or mem:// URL via pubsub.OpenTopic at startup).
func New(topic *pubsub.Topic) *Notifier {
	return &Notifier{topic: topic}
}

// Committed describes one DR Object that was just written as part of
// a commit, for event construction.
type Committed struct {
	Object         model.DRObject
	Status         model.ChangeStatus
	Identifier     string // bitstream UUID or SourceID, string-rendered
	BitstreamName  string // empty for MetadataObject
}

// Publish emits one event per committed object. Empty lists are a
// no-op.
func (n *Notifier) Publish(ctx context.Context, committed []Committed) error {
	if len(committed) == 0 {
		return nil
	}
	for _, c := range committed {
		objType := model.ObjectTypeMetadata
		if _, ok := c.Object.(*model.FileObject); ok {
			objType = model.ObjectTypeBitstream
		}
		evt := Event{
			EntityType:    entityTypeConstant,
			IORef:         c.Object.ObjectIORef().String(),
			ObjectType:    string(objType),
			Status:        string(c.Status),
			BitstreamName: c.BitstreamName,
		}
		body, err := json.Marshal(evt)
		if err != nil {
			return &errs.NotifyError{Err: fmt.Errorf("encoding event: %w", err)}
		}
		if err := n.topic.Send(ctx, &pubsub.Message{Body: body}); err != nil {
			return &errs.NotifyError{Err: err}
		}
	}
	return nil
}

// Shutdown flushes and closes the underlying topic.
func (n *Notifier) Shutdown(ctx context.Context) error {
	return n.topic.Shutdown(ctx)
}
