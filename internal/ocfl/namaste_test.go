package ocfl_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/matryer/is"

	"github.com/preservica/dr-replicator/internal/ocfl"
)

func TestNamasteNameAndBody(t *testing.T) {
	is := is.New(t)
	n := ocfl.Namaste{Type: ocfl.NamasteTypeRoot, Version: ocfl.Spec1_1}
	is.Equal(n.Name(), "0=ocfl_1.1")
	is.Equal(n.Body(), "ocfl_1.1\n")
	is.True(n.IsRoot())
	is.True(!n.IsObject())
}

func TestNamasteObject(t *testing.T) {
	is := is.New(t)
	n := ocfl.Namaste{Type: ocfl.NamasteTypeObject, Version: ocfl.Spec1_1}
	is.Equal(n.Name(), "0=ocfl_object_1.1")
	is.True(n.IsObject())
}

func TestParseNamaste(t *testing.T) {
	is := is.New(t)
	n, err := ocfl.ParseNamaste("0=ocfl_1.1")
	is.NoErr(err)
	is.Equal(n.Type, ocfl.NamasteTypeRoot)
	is.Equal(n.Version, ocfl.Spec1_1)

	_, err = ocfl.ParseNamaste("not-a-declaration")
	is.True(err != nil)
}

func TestWriteDeclarationAndFind(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	root, err := ocfl.NewLocalFS(t.TempDir())
	is.NoErr(err)

	decl := ocfl.Namaste{Type: ocfl.NamasteTypeRoot, Version: ocfl.Spec1_1}
	is.NoErr(ocfl.WriteDeclaration(ctx, root, ".", decl))

	entries, err := root.ReadDir(ctx, ".")
	is.NoErr(err)
	found, err := ocfl.FindNamaste(entries)
	is.NoErr(err)
	is.Equal(found, decl)

	is.NoErr(ocfl.ValidateNamaste(ctx, root, decl.Name()))
}

func TestFindNamasteNotExist(t *testing.T) {
	is := is.New(t)
	_, err := ocfl.FindNamaste(nil)
	is.True(errors.Is(err, fs.ErrNotExist))
}
