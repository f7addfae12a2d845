// Package compose assembles the per-entity canonical XIP v7 XML
// envelope, validates it against the schema through the injected
// validator, and computes its SHA-256 digest. The separator between
// consecutive children is a fixed whitespace-only text node ("\n"
// followed by ten spaces) — this is part of the byte-exact contract
// because the digest is computed over the serialized form, so it must
// never be reformatted, even by a pretty-printer.
package compose

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/preservica/dr-replicator/internal/model"
	"github.com/preservica/dr-replicator/internal/upstream"
)

// separator is the fixed whitespace-only text node between children:
// a newline followed by ten spaces. Load-bearing for the digest
// contract — never reformat it.
const separator = "\n          "

const xipOpen = `<XIP xmlns="http://preservica.com/XIP/v7.0">`
const xipClose = `</XIP>`

// Envelope is a composed, validated metadata document: its bytes and
// SHA-256 digest.
type Envelope struct {
	Bytes  []byte
	Digest string // hex SHA-256 of Bytes
}

// IO composes, validates, and digests the envelope for IoMetadata.
func IO(ctx context.Context, v upstream.Validator, io *model.IoMetadata) (*Envelope, error) {
	children := make([]string, 0, 2+len(io.Representations)+len(io.Identifiers())+len(io.Links)+len(io.MetadataNodes)+len(io.EventActions))
	children = append(children, io.Entity.XML)
	for _, r := range io.Representations {
		children = append(children, r.XML)
	}
	children = append(children, commonChildren(io.Identifiers(), io.Links, io.MetadataNodes, io.EventActions)...)
	return build(ctx, v, children)
}

// CO composes, validates, and digests the envelope for CoMetadata.
func CO(ctx context.Context, v upstream.Validator, co *model.CoMetadata) (*Envelope, error) {
	children := make([]string, 0, 2+len(co.Generations)+len(co.Bitstreams)+len(co.Identifiers())+len(co.Links)+len(co.MetadataNodes)+len(co.EventActions))
	children = append(children, co.Entity.XML)
	for _, g := range co.Generations {
		children = append(children, g.XML)
	}
	for _, b := range co.Bitstreams {
		children = append(children, b.XML)
	}
	children = append(children, commonChildren(co.Identifiers(), co.Links, co.MetadataNodes, co.EventActions)...)
	return build(ctx, v, children)
}

func commonChildren(ids []model.Identifier, links []model.Link, nodes []model.MetadataNode, events []model.EventAction) []string {
	out := make([]string, 0, len(ids)+len(links)+len(nodes)+len(events))
	for _, id := range ids {
		out = append(out, identifierXML(id))
	}
	for _, l := range links {
		out = append(out, l.XML)
	}
	for _, n := range nodes {
		out = append(out, n.XML)
	}
	for _, e := range events {
		out = append(out, e.XML)
	}
	return out
}

func identifierXML(id model.Identifier) string {
	return fmt.Sprintf(`<Identifier><Type>%s</Type><Value>%s</Value></Identifier>`, id.Type, id.Value)
}

func build(ctx context.Context, v upstream.Validator, children []string) (*Envelope, error) {
	var b strings.Builder
	b.WriteString(xipOpen)
	for _, c := range children {
		b.WriteString(separator)
		b.WriteString(c)
	}
	b.WriteString(separator)
	b.WriteString(xipClose)
	serialized := b.String()

	if v != nil {
		if err := v.Validate(ctx, serialized); err != nil {
			return nil, fmt.Errorf("validating composed envelope: %w", err)
		}
	}

	sum := sha256.Sum256([]byte(serialized))
	return &Envelope{
		Bytes:  []byte(serialized),
		Digest: hex.EncodeToString(sum[:]),
	}, nil
}
