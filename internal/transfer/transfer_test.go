package transfer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/matryer/is"

	"github.com/preservica/dr-replicator/internal/fake"
	"github.com/preservica/dr-replicator/internal/model"
	"github.com/preservica/dr-replicator/internal/transfer"
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

func TestStagingBitstreamWritesAndReturnsStagedWrite(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	ioRef := mustRef(t, ioRefStr)

	staging, err := transfer.New(t.TempDir())
	is.NoErr(err)
	defer staging.Close()

	entities := fake.NewEntityClient()
	payload := []byte("bitstream payload bytes")
	entities.Payloads["https://example/bitstream/1"] = payload

	obj := &model.FileObject{
		IORef:           ioRef,
		Filename:        "x.tif",
		Fixity:          "fixity-1",
		URL:             "https://example/bitstream/1",
		DestinationPath: ioRef.String() + "/x.tif",
		Identifier:      uuid.New(),
	}
	write, err := staging.Bitstream(ctx, entities, obj)
	is.NoErr(err)
	is.Equal(write.ID, "fixity-1")
	is.Equal(write.DestinationPath, obj.DestinationPath)

	got, err := os.ReadFile(filepath.Join(staging.FS().Root(), write.StagingPath))
	is.NoErr(err)
	is.Equal(string(got), string(payload))
}

func TestStagingBitstreamPropagatesStreamError(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	ioRef := mustRef(t, ioRefStr)

	staging, err := transfer.New(t.TempDir())
	is.NoErr(err)
	defer staging.Close()

	entities := fake.NewEntityClient() // no payload fixture registered
	obj := &model.FileObject{IORef: ioRef, URL: "https://example/missing", Identifier: uuid.New()}
	_, err = staging.Bitstream(ctx, entities, obj)
	is.True(err != nil)
}

func TestStagingMetadataWritesExactBytes(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	ioRef := mustRef(t, ioRefStr)

	staging, err := transfer.New(t.TempDir())
	is.NoErr(err)
	defer staging.Close()

	obj := &model.MetadataObject{
		IORef:           ioRef,
		Digest:          "digest-1",
		XMLTree:         []byte("<XIP/>"),
		DestinationPath: ioRef.String() + "/IO_Metadata.xml",
		Identifier:      "SRC-1",
	}
	write, err := staging.Metadata(ctx, obj)
	is.NoErr(err)
	is.Equal(write.ID, "digest-1")

	got, err := os.ReadFile(filepath.Join(staging.FS().Root(), write.StagingPath))
	is.NoErr(err)
	is.Equal(string(got), "<XIP/>")
}

func TestStagingCloseRemovesDirectory(t *testing.T) {
	is := is.New(t)
	work := t.TempDir()
	staging, err := transfer.New(work)
	is.NoErr(err)
	dir := staging.FS().Root()
	is.NoErr(staging.Close())
	_, statErr := os.Stat(dir)
	is.True(os.IsNotExist(statErr))
}
