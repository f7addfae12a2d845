package ocfl_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/preservica/dr-replicator/internal/ocfl"
)

func TestSpecValid(t *testing.T) {
	is := is.New(t)
	is.True(ocfl.Spec1_1.Valid())
	is.True(ocfl.Spec1_0.Valid())
	is.True(!ocfl.Spec("").Valid())
	is.True(!ocfl.Spec("v1.1").Valid())
	is.True(!ocfl.Spec("1").Valid())
}

func TestSpecEmpty(t *testing.T) {
	is := is.New(t)
	is.True(ocfl.Spec("").Empty())
	is.True(!ocfl.Spec1_1.Empty())
}
