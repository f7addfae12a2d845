package ocfl

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"time"
)

// User attributes a version to an author, per the OCFL inventory spec.
type User struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Version is one entry in an Inventory's Versions map.
type Version struct {
	Created time.Time `json:"created"`
	State   DigestMap `json:"state"`
	Message string    `json:"message,omitempty"`
	User    *User     `json:"user,omitempty"`
}

// Inventory is the OCFL object inventory: the manifest of all content
// ever written to the object plus the logical state of every version.
type Inventory struct {
	ID               string              `json:"id"`
	Type             string              `json:"type"`
	DigestAlgorithm  string              `json:"digestAlgorithm"`
	Head             VNum                `json:"head"`
	ContentDirectory string              `json:"contentDirectory,omitempty"`
	Manifest         DigestMap           `json:"manifest"`
	Versions         map[string]*Version `json:"versions"`
}

// invType renders the fixed "type" field of an inventory for spec s.
func invType(s Spec) string {
	return fmt.Sprintf("https://ocfl.io/%s/spec/#inventory", s)
}

// HeadVersion returns the Version entry for inv.Head.
func (inv *Inventory) HeadVersion() *Version {
	return inv.Versions[inv.Head.String()]
}

// Digest returns the sha256 digest of the inventory's canonical JSON
// encoding, used for the inventory sidecar file.
func (inv *Inventory) Digest() (string, error) {
	b, err := json.Marshal(inv)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// NewInventory builds the first-version inventory for a new object from
// a Stage: manifest and version state are both the stage's digest map,
// since every file in v1 is new content.
func NewInventory(id string, contentDir string, st *Stage, created time.Time, msg string, user *User) (*Inventory, error) {
	manifest, err := stageManifest(contentDir, V1, st.State)
	if err != nil {
		return nil, fmt.Errorf("building v1 manifest: %w", err)
	}
	inv := &Inventory{
		ID:               id,
		Type:             invType(Spec1_1),
		DigestAlgorithm:  "sha256",
		Head:             V1,
		ContentDirectory: contentDir,
		Manifest:         manifest,
		Versions: map[string]*Version{
			V1.String(): {Created: created, State: st.State, Message: msg, User: user},
		},
	}
	return inv, nil
}

// NextVersionInventory builds the inventory for the version after prev,
// merging prev's manifest with any new content introduced by st.
func NextVersionInventory(prev *Inventory, st *Stage, created time.Time, msg string, user *User) (*Inventory, error) {
	head := prev.Head.Next()
	manifest := DigestMap{}
	for d, paths := range prev.Manifest {
		manifest[d] = append(manifest[d], paths...)
	}
	existing, err := prev.Manifest.Paths()
	if err != nil {
		return nil, err
	}
	// reverse index: digest -> already has a manifest path
	have := map[string]bool{}
	for _, d := range existing {
		have[d] = true
	}
	newContent, err := stageManifest(prev.ContentDirectory, head, st.State)
	if err != nil {
		return nil, fmt.Errorf("building %s manifest: %w", head, err)
	}
	for d, paths := range newContent {
		if have[d] {
			continue // content already present under an earlier version
		}
		manifest[d] = append(manifest[d], paths...)
	}
	next := &Inventory{
		ID:               prev.ID,
		Type:             invType(Spec1_1),
		DigestAlgorithm:  prev.DigestAlgorithm,
		Head:             head,
		ContentDirectory: prev.ContentDirectory,
		Manifest:         manifest,
		Versions:         map[string]*Version{},
	}
	for v, ver := range prev.Versions {
		next.Versions[v] = ver
	}
	next.Versions[head.String()] = &Version{Created: created, State: st.State, Message: msg, User: user}
	return next, nil
}

// stageManifest maps a stage's logical state onto content paths under
// the given version's content directory.
func stageManifest(contentDir string, v VNum, state DigestMap) (DigestMap, error) {
	paths, err := state.Paths()
	if err != nil {
		return nil, err
	}
	out := DigestMap{}
	for p, d := range paths {
		contentPath := path.Join(v.String(), contentDir, p)
		if err := out.Add(d, contentPath); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteInventory writes inv and its sidecar digest file into each of
// dirs (typically the object root and the new version directory).
func WriteInventory(ctx context.Context, fsys WriteFS, inv *Inventory, dirs ...string) error {
	byteInv, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding inventory: %w", err)
	}
	sum := sha256.Sum256(byteInv)
	sidecar := fmt.Sprintf("%s %s\n", hex.EncodeToString(sum[:]), "inventory.json")
	for _, dir := range dirs {
		invPath := path.Join(dir, "inventory.json")
		if _, err := fsys.Write(ctx, invPath, bytes.NewReader(byteInv)); err != nil {
			return fmt.Errorf("writing %s: %w", invPath, err)
		}
		sidePath := path.Join(dir, "inventory.json.sha256")
		if _, err := fsys.Write(ctx, sidePath, bytes.NewReader([]byte(sidecar))); err != nil {
			return fmt.Errorf("writing %s: %w", sidePath, err)
		}
	}
	return nil
}
