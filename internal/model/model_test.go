package model_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/preservica/dr-replicator/internal/model"
)

func TestEntityRefRoundTrip(t *testing.T) {
	is := is.New(t)
	const s = "11111111-1111-1111-1111-111111111111"
	ref, err := model.ParseEntityRef(s)
	is.NoErr(err)
	is.Equal(ref.String(), s)

	_, err = model.ParseEntityRef("not-a-uuid")
	is.True(err != nil)
}

func TestRepresentationGroupString(t *testing.T) {
	is := is.New(t)
	g := model.RepresentationGroup{Type: model.Preservation, Index: 1}
	is.Equal(g.String(), "Preservation_1")
	g2 := model.RepresentationGroup{Type: model.Access, Index: 3}
	is.Equal(g2.String(), "Access_3")
}

func TestParseRepresentationType(t *testing.T) {
	is := is.New(t)
	rt, err := model.ParseRepresentationType("preservation")
	is.NoErr(err)
	is.Equal(rt, model.Preservation)

	rt2, err := model.ParseRepresentationType("Access")
	is.NoErr(err)
	is.Equal(rt2, model.Access)

	_, err = model.ParseRepresentationType("bogus")
	is.True(err != nil)
}

func TestGenerationTypeLower(t *testing.T) {
	is := is.New(t)
	is.Equal(model.Original.Lower(), "original")
	is.Equal(model.Derived.Lower(), "derived")
}

func TestSourceIDFindsFirstMatch(t *testing.T) {
	is := is.New(t)
	ids := []model.Identifier{
		{Type: "Other", Value: "x"},
		{Type: model.SourceIDType, Value: "SRC-1"},
		{Type: model.SourceIDType, Value: "SRC-2"},
	}
	v, ok := model.SourceID(ids)
	is.True(ok)
	is.Equal(v, "SRC-1")

	_, ok = model.SourceID([]model.Identifier{{Type: "Other", Value: "x"}})
	is.True(!ok)
}

func TestIoMetadataIdentifiersAccessor(t *testing.T) {
	is := is.New(t)
	ids := []model.Identifier{{Type: model.SourceIDType, Value: "SRC-1"}}
	io := model.NewIoMetadata(model.EntityNode{}, nil, ids, nil, nil, nil)
	is.Equal(len(io.Identifiers()), 1)
	is.Equal(io.Identifiers()[0].Value, "SRC-1")
}

func TestDRObjectInterfaceSatisfiedByBothVariants(t *testing.T) {
	is := is.New(t)
	ref, err := model.ParseEntityRef("11111111-1111-1111-1111-111111111111")
	is.NoErr(err)

	var objs []model.DRObject
	objs = append(objs, &model.FileObject{IORef: ref, DestinationPath: "a/b.tif"})
	objs = append(objs, &model.MetadataObject{IORef: ref, DestinationPath: "a/CO_Metadata.xml"})

	for _, o := range objs {
		is.Equal(o.ObjectIORef(), ref)
	}
	is.Equal(objs[0].ObjectDestinationPath(), "a/b.tif")
	is.Equal(objs[1].ObjectDestinationPath(), "a/CO_Metadata.xml")
}
