package notify_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/matryer/is"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mem"

	"github.com/preservica/dr-replicator/internal/model"
	"github.com/preservica/dr-replicator/internal/notify"
)

func mustRef(t *testing.T, s string) model.EntityRef {
	t.Helper()
	ref, err := model.ParseEntityRef(s)
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

const ioRefStr = "11111111-1111-1111-1111-111111111111"

func openMemTopicAndSub(t *testing.T) (*pubsub.Topic, *pubsub.Subscription) {
	t.Helper()
	ctx := context.Background()
	topic, err := pubsub.OpenTopic(ctx, "mem://test-topic")
	if err != nil {
		t.Fatal(err)
	}
	sub, err := pubsub.OpenSubscription(ctx, "mem://test-topic")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		topic.Shutdown(ctx)
		sub.Shutdown(ctx)
	})
	return topic, sub
}

func TestPublishEmitsOneEventPerCommittedObject(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	topic, sub := openMemTopicAndSub(t)
	n := notify.New(topic)
	ioRef := mustRef(t, ioRefStr)

	committed := []notify.Committed{
		{
			Object:        &model.FileObject{IORef: ioRef, DestinationPath: "a/b.tif"},
			Status:        model.StatusCreated,
			Identifier:    "bitstream-uuid",
			BitstreamName: "b.tif",
		},
	}
	is.NoErr(n.Publish(ctx, committed))

	msg, err := sub.Receive(ctx)
	is.NoErr(err)
	msg.Ack()

	var evt notify.Event
	is.NoErr(json.Unmarshal(msg.Body, &evt))
	is.Equal(evt.EntityType, "CO") // constant regardless of object kind
	is.Equal(evt.IORef, ioRef.String())
	is.Equal(evt.ObjectType, string(model.ObjectTypeBitstream))
	is.Equal(evt.Status, string(model.StatusCreated))
	is.Equal(evt.BitstreamName, "b.tif")
}

func TestPublishMetadataObjectUsesMetadataType(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	topic, sub := openMemTopicAndSub(t)
	n := notify.New(topic)
	ioRef := mustRef(t, ioRefStr)

	committed := []notify.Committed{
		{Object: &model.MetadataObject{IORef: ioRef}, Status: model.StatusUpdated},
	}
	is.NoErr(n.Publish(ctx, committed))

	msg, err := sub.Receive(ctx)
	is.NoErr(err)
	msg.Ack()

	var evt notify.Event
	is.NoErr(json.Unmarshal(msg.Body, &evt))
	is.Equal(evt.ObjectType, string(model.ObjectTypeMetadata))
	is.Equal(evt.Status, string(model.StatusUpdated))
}

func TestPublishEmptyListIsNoop(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	topic, _ := openMemTopicAndSub(t)
	n := notify.New(topic)
	is.NoErr(n.Publish(ctx, nil))
}
