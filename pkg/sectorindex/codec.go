package sectorindex

import (
	"encoding/binary"
)

// Pointers are stored on disk as little endian signed 32-bit integers,
// where -1 denotes a slot that is not in use.
const unusedPointer int32 = -1

func putPointer(b []byte, r SectorReference) {
	v := unusedPointer
	if sector, ok := r.GetSector(); ok {
		v = int32(sector)
	}
	binary.LittleEndian.PutUint32(b, uint32(v))
}

func getInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

// headerImage is the decoded form of a sector holding a header.
type headerImage struct {
	fileSizeBytes int32
	sectorCount   int32
	direct        []int32
	indirect      []int32
}

func (g *Geometry) marshalHeader(fileSizeBytes int64, sectorCount int64, direct, indirect []SectorReference) []byte {
	b := make([]byte, g.parameters.SectorSizeBytes)
	binary.LittleEndian.PutUint32(b[0:], uint32(int32(fileSizeBytes)))
	binary.LittleEndian.PutUint32(b[pointerSizeBytes:], uint32(int32(sectorCount)))
	offset := headerFieldCount * pointerSizeBytes
	for _, r := range direct {
		putPointer(b[offset:], r)
		offset += pointerSizeBytes
	}
	for _, r := range indirect {
		putPointer(b[offset:], r)
		offset += pointerSizeBytes
	}
	return b
}

func (g *Geometry) unmarshalHeader(b []byte) headerImage {
	image := headerImage{
		fileSizeBytes: getInt32(b[0:]),
		sectorCount:   getInt32(b[pointerSizeBytes:]),
		direct:        make([]int32, g.parameters.DirectCapacity),
		indirect:      make([]int32, g.parameters.IndirectCapacity),
	}
	offset := headerFieldCount * pointerSizeBytes
	for i := range image.direct {
		image.direct[i] = getInt32(b[offset:])
		offset += pointerSizeBytes
	}
	for i := range image.indirect {
		image.indirect[i] = getInt32(b[offset:])
		offset += pointerSizeBytes
	}
	return image
}

func (g *Geometry) marshalNode(children []SectorReference) []byte {
	b := make([]byte, g.parameters.SectorSizeBytes)
	for i := 0; i < g.pointersPerSector; i++ {
		r := NoSector
		if i < len(children) {
			r = children[i]
		}
		putPointer(b[i*pointerSizeBytes:], r)
	}
	return b
}

// unmarshalNode decodes the pointers stored in an indirection node.
// The number of children is not stored explicitly. It is determined
// by scanning for the first slot that is unused or contains a value
// that lies outside the volume.
func (g *Geometry) unmarshalNode(b []byte) []SectorReference {
	var children []SectorReference
	for i := 0; i < g.pointersPerSector; i++ {
		v := getInt32(b[i*pointerSizeBytes:])
		if !g.isValidPointer(v) {
			break
		}
		children = append(children, NewSectorReference(uint32(v)))
	}
	return children
}

func (g *Geometry) isValidPointer(v int32) bool {
	return v >= 0 && uint32(v) < g.parameters.VolumeSectorCount
}
