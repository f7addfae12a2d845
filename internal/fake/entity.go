// Package fake provides in-memory test doubles for the external
// collaborator interfaces declared in internal/upstream: an
// EntityClient whose fixtures are populated by the test itself, and a
// Validator double. Queue and publisher collaborators don't need fakes
// here: gocloud.dev/pubsub's mem:// driver already provides a real
// in-memory Subscription/Topic pair, which is exactly the kind of
// portable test double gocloud.dev exists to offer.
package fake

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/preservica/dr-replicator/internal/model"
)

// EntityClient is a fully in-memory upstream.EntityClient populated by
// test fixtures.
type EntityClient struct {
	mu sync.Mutex

	Entities       map[model.EntityRef]*model.Entity
	Metadata       map[model.EntityRef]*model.EntityMetadata
	Bitstreams     map[model.EntityRef][]model.BitstreamInfo
	RepURLs        map[model.EntityRef][]string
	RepMembers     map[string][]model.EntityRef // key: "{ioRef}/{type}/{index}"
	Payloads       map[string][]byte            // key: bitstream URL

	CallCounts map[string]int
}

// NewEntityClient returns an empty fixture set ready for population.
func NewEntityClient() *EntityClient {
	return &EntityClient{
		Entities:   map[model.EntityRef]*model.Entity{},
		Metadata:   map[model.EntityRef]*model.EntityMetadata{},
		Bitstreams: map[model.EntityRef][]model.BitstreamInfo{},
		RepURLs:    map[model.EntityRef][]string{},
		RepMembers: map[string][]model.EntityRef{},
		Payloads:   map[string][]byte{},
		CallCounts: map[string]int{},
	}
}

func (c *EntityClient) count(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCounts[op]++
}

func (c *EntityClient) EntityByTypeAndRef(ctx context.Context, kind model.EntityKind, ref model.EntityRef, parentHint *model.EntityRef) (*model.Entity, error) {
	c.count("entityByTypeAndRef:" + ref.String())
	e, ok := c.Entities[ref]
	if !ok {
		return nil, fmt.Errorf("fake entity client: no entity %s", ref)
	}
	return e, nil
}

func (c *EntityClient) BitstreamInfo(ctx context.Context, coRef model.EntityRef) ([]model.BitstreamInfo, error) {
	c.count("bitstreamInfo:" + coRef.String())
	bs, ok := c.Bitstreams[coRef]
	if !ok {
		return nil, fmt.Errorf("fake entity client: no bitstreams for %s", coRef)
	}
	return bs, nil
}

func (c *EntityClient) MetadataForEntity(ctx context.Context, e *model.Entity) (*model.EntityMetadata, error) {
	c.count("metadataForEntity:" + e.Ref.String())
	m, ok := c.Metadata[e.Ref]
	if !ok {
		return nil, fmt.Errorf("fake entity client: no metadata for %s", e.Ref)
	}
	return m, nil
}

func (c *EntityClient) RepresentationURLsForIO(ctx context.Context, ioRef model.EntityRef) ([]string, error) {
	c.count("representationUrlsForIo:" + ioRef.String())
	return c.RepURLs[ioRef], nil
}

func (c *EntityClient) ContentObjectsFromRepresentation(ctx context.Context, ioRef model.EntityRef, repType model.RepresentationType, index int) ([]model.EntityRef, error) {
	key := fmt.Sprintf("%s/%s/%d", ioRef, repType, index)
	c.count("contentObjectsFromRepresentation:" + key)
	return c.RepMembers[key], nil
}

func (c *EntityClient) StreamBitstream(ctx context.Context, url string, sink io.Writer) error {
	c.count("streamBitstream:" + url)
	payload, ok := c.Payloads[url]
	if !ok {
		return fmt.Errorf("fake entity client: no payload for %s", url)
	}
	_, err := sink.Write(payload)
	return err
}

// RepKey builds the RepMembers lookup key for a representation group.
func RepKey(ioRef model.EntityRef, repType model.RepresentationType, index int) string {
	return fmt.Sprintf("%s/%s/%d", ioRef, repType, index)
}

// Validator is an upstream.Validator double; Err, if set, is returned
// from every Validate call, and every validated string is recorded.
type Validator struct {
	mu       sync.Mutex
	Err      error
	Received []string
}

func (v *Validator) Validate(ctx context.Context, xml string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Received = append(v.Received, xml)
	return v.Err
}
