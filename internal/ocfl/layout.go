package ocfl

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"strings"
)

const (
	ExtHashedNTupleLayout = "0003-hash-and-id-n-tuple-storage-layout"
	ExtFlatDirectLayout   = "0002-flat-direct-storage-layout"

	extensionNameKey = "extensionName"
	lowerhex         = "0123456789abcdef"
)

// Layout maps an OCFL object ID to its path under a storage root.
// Arbitrary layout extension registration isn't supported here — the
// replicator only ever writes HashedNTupleLayout roots — so this
// package keeps just the two layouts a replicated preservation
// repository plausibly needs.
type Layout interface {
	Name() string
	Resolve(id string) (string, error)
}

// HashedNTupleLayout implements 0003-hash-and-id-n-tuple-storage-layout:
// the object ID is hashed, the digest is sliced into fixed-width
// tuples that become nested directories, and the final path segment is
// the percent-encoded object ID (truncated with a hash suffix if it's
// too long for a single path component).
type HashedNTupleLayout struct {
	DigestAlgorithm string `json:"digestAlgorithm"`
	TupleSize       int    `json:"tupleSize"`
	TupleNum        int    `json:"numberOfTuples"`
}

var _ Layout = (*HashedNTupleLayout)(nil)

// NewHashedNTupleLayout returns the layout with the parameters the
// replicator always uses: sha256, 3 tuples of 3 hex characters.
func NewHashedNTupleLayout() *HashedNTupleLayout {
	return &HashedNTupleLayout{DigestAlgorithm: "sha256", TupleSize: 3, TupleNum: 3}
}

func (l HashedNTupleLayout) Name() string { return ExtHashedNTupleLayout }

func (l HashedNTupleLayout) Resolve(id string) (string, error) {
	h := hashAlgorithm(l.DigestAlgorithm)
	if h == nil {
		return "", fmt.Errorf("unknown digest algorithm: %q", l.DigestAlgorithm)
	}
	if l.TupleSize == 0 && l.TupleNum != 0 {
		return "", errors.New("numberOfTuples must be 0 if tupleSize is 0")
	}
	if l.TupleNum == 0 && l.TupleSize != 0 {
		return "", errors.New("tupleSize must be 0 if numberOfTuples is 0")
	}
	if l.TupleSize*l.TupleNum > h.Size()*2 {
		return "", errors.New("product of tupleSize and numberOfTuples exceeds hash length")
	}
	h.Write([]byte(id))
	hexID := hex.EncodeToString(h.Sum(nil))
	tuples := make([]string, l.TupleNum+1)
	for i := 0; i < l.TupleNum; i++ {
		tuples[i] = hexID[i*l.TupleSize : (i+1)*l.TupleSize]
	}
	encID := percentEncode(id)
	if len(encID) > 100 {
		encID = encID[:100] + "-" + hexID
	}
	tuples[l.TupleNum] = encID
	return strings.Join(tuples, "/"), nil
}

func (l HashedNTupleLayout) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		extensionNameKey:  ExtHashedNTupleLayout,
		"digestAlgorithm": l.DigestAlgorithm,
		"tupleSize":       l.TupleSize,
		"numberOfTuples":  l.TupleNum,
	})
}

// FlatDirectLayout implements 0002-flat-direct-storage-layout: the
// object ID is used directly (percent-encoded) as the storage root
// relative path, with no hashing. Used by tests and small fixture
// repositories where a predictable layout is easier to assert on.
type FlatDirectLayout struct{}

var _ Layout = FlatDirectLayout{}

func (FlatDirectLayout) Name() string { return ExtFlatDirectLayout }

func (FlatDirectLayout) Resolve(id string) (string, error) {
	if id == "" {
		return "", errors.New("empty object id")
	}
	return percentEncode(id), nil
}

func hashAlgorithm(name string) hash.Hash {
	if name == "sha256" {
		return sha256.New()
	}
	return nil
}

func percentEncode(in string) string {
	shouldEscape := func(c byte) bool {
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '-' || c == '_' {
			return false
		}
		return true
	}
	numEscape := 0
	for i := 0; i < len(in); i++ {
		if shouldEscape(in[i]) {
			numEscape++
		}
	}
	if numEscape == 0 {
		return in
	}
	out := make([]byte, len(in)+2*numEscape)
	j := 0
	for i := 0; i < len(in); i++ {
		if shouldEscape(in[i]) {
			out[j] = '%'
			out[j+1] = lowerhex[in[i]>>4]
			out[j+2] = lowerhex[in[i]&15]
			j += 3
			continue
		}
		out[j] = in[i]
		j++
	}
	return string(out)
}
