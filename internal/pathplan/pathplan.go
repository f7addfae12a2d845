// Package pathplan derives the deterministic destination path of every
// DR Object inside its owning OCFL object:
//
//	{ioRef}[/{repGroup}][/{coRef}][/{genType}][/g{genVersion}]/{filename}
//
// with each optional segment present only when defined. These are pure
// functions: same inputs always yield the same byte-identical path.
package pathplan

import (
	"strings"

	"github.com/google/uuid"

	"github.com/preservica/dr-replicator/internal/model"
)

const (
	ioMetadataFilename = "IO_Metadata.xml"
	coMetadataFilename = "CO_Metadata.xml"
)

// IOMetadata returns the destination path for an IO's composed
// metadata envelope: "{ioRef}/IO_Metadata.xml".
func IOMetadata(ioRef model.EntityRef) string {
	return strings.Join([]string{ioRef.String(), ioMetadataFilename}, "/")
}

// COMetadata returns the destination path for a CO's composed metadata
// envelope: "{ioRef}[/{repGroup}]/{coRef}/CO_Metadata.xml".
func COMetadata(ioRef model.EntityRef, group *model.RepresentationGroup, coRef model.EntityRef) string {
	return join(ioRef, group, coRef, coMetadataFilename)
}

// Bitstream returns the destination path for one bitstream payload:
// "{ioRef}[/{repGroup}]/{coRef}/{genType.lower}/g{genVersion}/{name}".
func Bitstream(ioRef model.EntityRef, group *model.RepresentationGroup, coRef model.EntityRef, bs model.BitstreamInfo) string {
	genSegment := bs.GenerationType.Lower()
	versionSegment := genVersionSegment(bs.GenerationVersion)
	return join(ioRef, group, coRef, genSegment, versionSegment, bs.Name)
}

func genVersionSegment(v int) string {
	return "g" + itoa(v)
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func join(ioRef model.EntityRef, group *model.RepresentationGroup, coRef model.EntityRef, tail ...string) string {
	segs := make([]string, 0, 2+len(tail))
	segs = append(segs, ioRef.String())
	if group != nil {
		segs = append(segs, group.String())
	}
	segs = append(segs, coRef.String())
	segs = append(segs, tail...)
	return strings.Join(segs, "/")
}

// StripExtension returns name with its final "." extension removed, the
// form the resolver parses into a UUID for the bitstream identifier.
func StripExtension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// ParseBitstreamIdentifier extracts the UUID embedded in a bitstream
// filename.
func ParseBitstreamIdentifier(name string) (uuid.UUID, error) {
	return uuid.Parse(StripExtension(name))
}
