// Package queue is the Queue client: receiving message carriers from a
// gocloud.dev/pubsub Subscription, decoding their JSON payload into a
// closed Message sum type, and deleting (acking) carriers once the
// Coordinator has committed and published.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/pubsub"

	"github.com/preservica/dr-replicator/internal/errs"
	"github.com/preservica/dr-replicator/internal/model"
)

// Message is the closed sum type a carrier's payload decodes to.
type Message interface {
	isMessage()
	CanonicalText() string
}

// InformationObjectMessage names an IO that changed upstream.
type InformationObjectMessage struct{ Ref model.EntityRef }

func (InformationObjectMessage) isMessage() {}
func (m InformationObjectMessage) CanonicalText() string {
	return "io:" + m.Ref.String()
}

// ContentObjectMessage names a CO that changed upstream.
type ContentObjectMessage struct{ Ref model.EntityRef }

func (ContentObjectMessage) isMessage() {}
func (m ContentObjectMessage) CanonicalText() string {
	return "co:" + m.Ref.String()
}

// wireMessage is the JSON shape carriers arrive in: a discriminator
// plus a ref. Unrecognized "type" values decode to an absent Message
// (Carrier.Decoded == nil).
type wireMessage struct {
	Type string `json:"type"`
	Ref  string `json:"ref"`
}

// Carrier pairs a raw pubsub message (the ack handle) with its decoded
// payload, or nil if decoding failed.
type Carrier struct {
	raw     *pubsub.Message
	Decoded Message
}

// Delete acks the carrier, removing it from the queue. This must only
// be called after commit and publish have both succeeded.
func (c *Carrier) Delete() {
	c.raw.Ack()
}

// Client receives and decodes carriers from a single subscription.
type Client struct {
	sub *pubsub.Subscription
}

// New wraps an already-opened pubsub.Subscription (typically opened
// from an awssnssqs:// or mem:// URL via pubsub.OpenSubscription).
func New(sub *pubsub.Subscription) *Client {
	return &Client{sub: sub}
}

// Receive pulls up to maxMessages carriers. Carriers whose payload
// fails to decode are still returned (with Decoded == nil) so the
// Coordinator can skip them without acking.
func (c *Client) Receive(ctx context.Context, maxMessages int) ([]*Carrier, error) {
	carriers := make([]*Carrier, 0, maxMessages)
	for i := 0; i < maxMessages; i++ {
		msg, err := c.sub.Receive(ctx)
		if err != nil {
			if len(carriers) > 0 {
				return carriers, nil
			}
			return nil, &errs.UpstreamError{Op: "receive", Err: err}
		}
		decoded, decodeErr := decode(msg.Body)
		carrier := &Carrier{raw: msg, Decoded: decoded}
		if decodeErr != nil {
			carrier.Decoded = nil
		}
		carriers = append(carriers, carrier)
	}
	return carriers, nil
}

func decode(body []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &errs.DecodeError{Err: err}
	}
	ref, err := model.ParseEntityRef(wire.Ref)
	if err != nil {
		return nil, &errs.DecodeError{Err: fmt.Errorf("invalid ref: %w", err)}
	}
	switch wire.Type {
	case "InformationObjectMessage":
		return InformationObjectMessage{Ref: ref}, nil
	case "ContentObjectMessage":
		return ContentObjectMessage{Ref: ref}, nil
	default:
		return nil, &errs.DecodeError{Err: fmt.Errorf("unrecognized message type: %q", wire.Type)}
	}
}
