// Package preservica is the production implementation of
// upstream.EntityClient against the real preservation repository's
// HTTP API. The reconciliation core only ever depends on the
// upstream.EntityClient interface, so this package is deliberately
// thin: enough wiring for `dr-replicator run` to have a concrete
// collaborator, not a full API client. It uses net/http directly
// rather than a third-party REST client.
package preservica

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/preservica/dr-replicator/internal/model"
)

// Client talks to the preservation repository's entity API over HTTP.
type Client struct {
	BaseURL    string
	Secret     string
	HTTPClient *http.Client
}

// New returns a Client rooted at baseURL, authenticating requests with
// secret (resolved from configuration's preservicaSecretName).
func New(baseURL, secret string) *Client {
	return &Client{BaseURL: baseURL, Secret: secret, HTTPClient: http.DefaultClient}
}

func (c *Client) do(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Secret)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("preservica API %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) EntityByTypeAndRef(ctx context.Context, kind model.EntityKind, ref model.EntityRef, parentHint *model.EntityRef) (*model.Entity, error) {
	var wire struct {
		Ref    string  `json:"ref"`
		Kind   string  `json:"kind"`
		Parent *string `json:"parent,omitempty"`
	}
	kindShort := "IO"
	if kind == model.ContentObject {
		kindShort = "CO"
	}
	if err := c.do(ctx, fmt.Sprintf("/entity/%s/%s", kindShort, ref), &wire); err != nil {
		return nil, err
	}
	entity := &model.Entity{Ref: ref, Kind: kind}
	if wire.Parent != nil {
		parentRef, err := model.ParseEntityRef(*wire.Parent)
		if err != nil {
			return nil, err
		}
		entity.Parent = &parentRef
	} else if parentHint != nil {
		entity.Parent = parentHint
	}
	return entity, nil
}

func (c *Client) BitstreamInfo(ctx context.Context, coRef model.EntityRef) ([]model.BitstreamInfo, error) {
	var wire []struct {
		Name              string `json:"name"`
		Fixity            string `json:"fixity"`
		URL               string `json:"url"`
		GenerationType    string `json:"generationType"`
		GenerationVersion int    `json:"generationVersion"`
		ParentRef         string `json:"parentRef"`
	}
	if err := c.do(ctx, fmt.Sprintf("/content-object/%s/bitstreams", coRef), &wire); err != nil {
		return nil, err
	}
	out := make([]model.BitstreamInfo, len(wire))
	for i, w := range wire {
		parentRef, err := model.ParseEntityRef(w.ParentRef)
		if err != nil {
			return nil, err
		}
		genType := model.Original
		if w.GenerationType == "Derived" {
			genType = model.Derived
		}
		out[i] = model.BitstreamInfo{
			Name:              w.Name,
			Fixity:            w.Fixity,
			URL:               w.URL,
			GenerationType:    genType,
			GenerationVersion: w.GenerationVersion,
			ParentRef:         parentRef,
		}
	}
	return out, nil
}

func (c *Client) MetadataForEntity(ctx context.Context, e *model.Entity) (*model.EntityMetadata, error) {
	var raw json.RawMessage
	if err := c.do(ctx, fmt.Sprintf("/entity/%s/metadata", e.Ref), &raw); err != nil {
		return nil, err
	}
	return decodeMetadata(e.Kind, raw)
}

func (c *Client) RepresentationURLsForIO(ctx context.Context, ioRef model.EntityRef) ([]string, error) {
	var urls []string
	if err := c.do(ctx, fmt.Sprintf("/information-object/%s/representations", ioRef), &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

func (c *Client) ContentObjectsFromRepresentation(ctx context.Context, ioRef model.EntityRef, repType model.RepresentationType, index int) ([]model.EntityRef, error) {
	var refs []string
	path := fmt.Sprintf("/information-object/%s/representations/%s/%d/content-objects", ioRef, repType, index)
	if err := c.do(ctx, path, &refs); err != nil {
		return nil, err
	}
	out := make([]model.EntityRef, len(refs))
	for i, r := range refs {
		ref, err := model.ParseEntityRef(r)
		if err != nil {
			return nil, err
		}
		out[i] = ref
	}
	return out, nil
}

func (c *Client) StreamBitstream(ctx context.Context, url string, sink io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Secret)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("streaming %s: status %d", url, resp.StatusCode)
	}
	_, err = io.Copy(sink, resp.Body)
	return err
}

// decodeMetadata wraps the raw XIP fragment the API returns into the
// closed EntityMetadata sum type based on which kind of entity it's for.
func decodeMetadata(kind model.EntityKind, raw json.RawMessage) (*model.EntityMetadata, error) {
	var wire struct {
		Entity          string   `json:"entity"`
		Representations []string `json:"representations"`
		Generations     []string `json:"generations"`
		Bitstreams      []string `json:"bitstreams"`
		Identifiers     []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"identifiers"`
		Links         []string `json:"links"`
		MetadataNodes []string `json:"metadataNodes"`
		EventActions  []string `json:"eventActions"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	ids := make([]model.Identifier, len(wire.Identifiers))
	for i, id := range wire.Identifiers {
		ids[i] = model.Identifier{Type: model.IdentifierType(id.Type), Value: id.Value}
	}
	links := toLinks(wire.Links)
	nodes := toNodes(wire.MetadataNodes)
	events := toEvents(wire.EventActions)
	entity := model.EntityNode{XML: wire.Entity}

	if kind == model.InformationObject {
		reps := make([]model.RepresentationNode, len(wire.Representations))
		for i, r := range wire.Representations {
			reps[i] = model.RepresentationNode{XML: r}
		}
		return &model.EntityMetadata{IO: model.NewIoMetadata(entity, reps, ids, links, nodes, events)}, nil
	}
	gens := make([]model.GenerationNode, len(wire.Generations))
	for i, g := range wire.Generations {
		gens[i] = model.GenerationNode{XML: g}
	}
	bss := make([]model.BitstreamNode, len(wire.Bitstreams))
	for i, b := range wire.Bitstreams {
		bss[i] = model.BitstreamNode{XML: b}
	}
	return &model.EntityMetadata{CO: model.NewCoMetadata(entity, gens, bss, ids, links, nodes, events)}, nil
}

func toLinks(raw []string) []model.Link {
	out := make([]model.Link, len(raw))
	for i, r := range raw {
		out[i] = model.Link{XML: r}
	}
	return out
}

func toNodes(raw []string) []model.MetadataNode {
	out := make([]model.MetadataNode, len(raw))
	for i, r := range raw {
		out[i] = model.MetadataNode{XML: r}
	}
	return out
}

func toEvents(raw []string) []model.EventAction {
	out := make([]model.EventAction, len(raw))
	for i, r := range raw {
		out[i] = model.EventAction{XML: r}
	}
	return out
}
