package compose_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/preservica/dr-replicator/internal/compose"
	"github.com/preservica/dr-replicator/internal/fake"
	"github.com/preservica/dr-replicator/internal/model"
)

func TestIOEnvelopeSeparatorContract(t *testing.T) {
	is := is.New(t)
	io := model.NewIoMetadata(
		model.EntityNode{XML: "<Entity/>"},
		[]model.RepresentationNode{{XML: "<Representation/>"}},
		[]model.Identifier{{Type: model.SourceIDType, Value: "src-1"}},
		nil, nil, nil,
	)
	env, err := compose.IO(context.Background(), nil, io)
	is.NoErr(err)

	want := `<XIP xmlns="http://preservica.com/XIP/v7.0">` +
		"\n          " + "<Entity/>" +
		"\n          " + "<Representation/>" +
		"\n          " + `<Identifier><Type>SourceID</Type><Value>src-1</Value></Identifier>` +
		"\n          " + `</XIP>`
	is.Equal(string(env.Bytes), want)

	sum := sha256.Sum256([]byte(want))
	is.Equal(env.Digest, hex.EncodeToString(sum[:]))
}

func TestIOEnvelopeDeterministic(t *testing.T) {
	is := is.New(t)
	io := model.NewIoMetadata(model.EntityNode{XML: "<Entity/>"}, nil, nil, nil, nil, nil)
	e1, err := compose.IO(context.Background(), nil, io)
	is.NoErr(err)
	e2, err := compose.IO(context.Background(), nil, io)
	is.NoErr(err)
	is.Equal(e1.Digest, e2.Digest)
	is.Equal(string(e1.Bytes), string(e2.Bytes))
}

func TestCOEnvelopeIncludesGenerationsAndBitstreams(t *testing.T) {
	is := is.New(t)
	co := model.NewCoMetadata(
		model.EntityNode{XML: "<Entity/>"},
		[]model.GenerationNode{{XML: "<Generation/>"}},
		[]model.BitstreamNode{{XML: "<Bitstream/>"}},
		nil, nil, nil, nil,
	)
	env, err := compose.CO(context.Background(), nil, co)
	is.NoErr(err)
	is.True(strings.Contains(string(env.Bytes), "<Generation/>"))
	is.True(strings.Contains(string(env.Bytes), "<Bitstream/>"))
	// generation/bitstream order is preserved: generation precedes bitstream.
	genIdx := strings.Index(string(env.Bytes), "<Generation/>")
	bsIdx := strings.Index(string(env.Bytes), "<Bitstream/>")
	is.True(genIdx < bsIdx)
}

func TestComposeValidatesWhenValidatorProvided(t *testing.T) {
	is := is.New(t)
	io := model.NewIoMetadata(model.EntityNode{XML: "<Entity/>"}, nil, nil, nil, nil, nil)
	v := &fake.Validator{}
	_, err := compose.IO(context.Background(), v, io)
	is.NoErr(err)
	is.Equal(len(v.Received), 1)
	is.True(strings.HasPrefix(v.Received[0], `<XIP xmlns="http://preservica.com/XIP/v7.0">`))
}

func TestComposePropagatesValidatorError(t *testing.T) {
	is := is.New(t)
	io := model.NewIoMetadata(model.EntityNode{XML: "<Entity/>"}, nil, nil, nil, nil, nil)
	v := &fake.Validator{Err: errors.New("schema violation")}
	_, err := compose.IO(context.Background(), v, io)
	is.True(err != nil)
}
