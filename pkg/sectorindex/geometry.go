package sectorindex

import (
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LevelSelection determines the depth of the indirection trees that
// are used to address sectors that do not fit in a header's direct
// pointers.
type LevelSelection int

const (
	// LevelSelectionTiered uses the lowest level of indirection
	// that is capable of addressing all remaining sectors of a
	// file. This is the most space efficient option.
	LevelSelectionTiered LevelSelection = iota
	// LevelSelectionMaximum always uses the maximum level of
	// indirection, regardless of the size of the file.
	LevelSelectionMaximum
)

const (
	// Sector numbers and file sizes are stored on disk as signed
	// 32-bit integers.
	pointerSizeBytes = 4
	// Number of fields stored in a header image in front of the
	// pointer tables.
	headerFieldCount = 2

	maximumSupportedLevel    = 3
	maximumSectorSizeBytes   = 1 << 20
	maximumVolumeSectorCount = math.MaxInt32

	// File sizes are limited to math.MaxInt32 bytes, meaning no
	// file consists of this many data sectors. Node capacities are
	// clamped to this value, so that products of capacities and
	// pointer counts cannot overflow.
	maximumCapacity = math.MaxInt32
)

// GeometryParameters contains the tunables of a Geometry.
type GeometryParameters struct {
	SectorSizeBytes   int
	DirectCapacity    int
	IndirectCapacity  int
	MaximumLevel      int
	VolumeSectorCount uint32
	LevelSelection    LevelSelection
}

// Geometry describes the shape of headers and indirection nodes
// stored on a volume. It is used to compute how many sectors are
// needed to store a file, and how logical sector indices map onto
// nodes in the indirection tree.
type Geometry struct {
	parameters        GeometryParameters
	pointersPerSector int

	// capacities[L] is the number of data sectors that can be
	// addressed by a single level L node, clamped to
	// maximumCapacity. capacities[0] is one, corresponding to a
	// data sector itself.
	capacities [maximumSupportedLevel + 1]int64
	// fullIndexSectors[L] is the number of index sectors used by
	// a level L node that is filled up entirely.
	fullIndexSectors [maximumSupportedLevel + 1]int64
}

// NewGeometry validates a set of GeometryParameters and precomputes
// the capacities of every level of indirection.
func NewGeometry(parameters GeometryParameters) (*Geometry, error) {
	if parameters.SectorSizeBytes <= 0 || parameters.SectorSizeBytes > maximumSectorSizeBytes {
		return nil, status.Errorf(codes.InvalidArgument, "Sector size must be between 1 and %d bytes, while it is %d bytes", maximumSectorSizeBytes, parameters.SectorSizeBytes)
	}
	if parameters.SectorSizeBytes%pointerSizeBytes != 0 {
		return nil, status.Errorf(codes.InvalidArgument, "Sector size of %d bytes is not a multiple of the pointer size of %d bytes", parameters.SectorSizeBytes, pointerSizeBytes)
	}
	pointersPerSector := parameters.SectorSizeBytes / pointerSizeBytes
	if pointersPerSector < 2 {
		return nil, status.Errorf(codes.InvalidArgument, "Sectors of %d bytes can only hold %d pointers, while at least 2 are needed", parameters.SectorSizeBytes, pointersPerSector)
	}
	if parameters.DirectCapacity < 0 || parameters.IndirectCapacity < 0 {
		return nil, status.Error(codes.InvalidArgument, "Pointer capacities cannot be negative")
	}
	if headerSizeBytes := pointerSizeBytes * (headerFieldCount + parameters.DirectCapacity + parameters.IndirectCapacity); headerSizeBytes > parameters.SectorSizeBytes {
		return nil, status.Errorf(codes.InvalidArgument, "Header with %d direct and %d indirect pointers requires %d bytes, which exceeds the sector size of %d bytes", parameters.DirectCapacity, parameters.IndirectCapacity, headerSizeBytes, parameters.SectorSizeBytes)
	}
	if parameters.MaximumLevel < 1 || parameters.MaximumLevel > maximumSupportedLevel {
		return nil, status.Errorf(codes.InvalidArgument, "Maximum level of indirection must be between 1 and %d, while it is %d", maximumSupportedLevel, parameters.MaximumLevel)
	}
	if parameters.VolumeSectorCount > maximumVolumeSectorCount {
		return nil, status.Errorf(codes.InvalidArgument, "Volume has %d sectors, while only %d sectors may be addressed", parameters.VolumeSectorCount, uint32(maximumVolumeSectorCount))
	}
	switch parameters.LevelSelection {
	case LevelSelectionTiered, LevelSelectionMaximum:
	default:
		return nil, status.Errorf(codes.InvalidArgument, "Unknown level selection %d", parameters.LevelSelection)
	}

	g := &Geometry{
		parameters:        parameters,
		pointersPerSector: pointersPerSector,
	}
	g.capacities[0] = 1
	for level := 1; level <= maximumSupportedLevel; level++ {
		g.capacities[level] = min(g.capacities[level-1]*int64(pointersPerSector), maximumCapacity)
		g.fullIndexSectors[level] = 1 + int64(pointersPerSector)*g.fullIndexSectors[level-1]
	}
	return g, nil
}

// SectorSizeBytes returns the size of a sector in bytes.
func (g *Geometry) SectorSizeBytes() int {
	return g.parameters.SectorSizeBytes
}

// DirectCapacity returns the number of direct pointers in a header.
func (g *Geometry) DirectCapacity() int {
	return g.parameters.DirectCapacity
}

// IndirectCapacity returns the number of pointers to top-level
// indirection nodes in a header.
func (g *Geometry) IndirectCapacity() int {
	return g.parameters.IndirectCapacity
}

// PointersPerSector returns the number of pointers stored in an
// indirection node.
func (g *Geometry) PointersPerSector() int {
	return g.pointersPerSector
}

// MaximumLevel returns the highest level of indirection.
func (g *Geometry) MaximumLevel() int {
	return g.parameters.MaximumLevel
}

// VolumeSectorCount returns the number of sectors on the volume.
func (g *Geometry) VolumeSectorCount() uint32 {
	return g.parameters.VolumeSectorCount
}

// Capacity returns the number of data sectors addressable through a
// single indirection node of a given level. Capacities larger than
// the number of sectors of the largest possible file are reported as
// math.MaxInt32.
func (g *Geometry) Capacity(level int) int64 {
	return g.capacities[level]
}

// MaximumFileSectors returns the number of data sectors of the
// largest file that can be addressed by a header.
func (g *Geometry) MaximumFileSectors() int64 {
	return int64(g.parameters.DirectCapacity) + int64(g.parameters.IndirectCapacity)*g.capacities[g.parameters.MaximumLevel]
}

// MaximumFileSizeBytes returns the size of the largest file that can
// be addressed by a header.
func (g *Geometry) MaximumFileSizeBytes() int64 {
	maximumSizeBytes := int64(math.MaxInt32)
	if addressable := g.MaximumFileSectors(); addressable <= maximumSizeBytes/int64(g.parameters.SectorSizeBytes) {
		maximumSizeBytes = addressable * int64(g.parameters.SectorSizeBytes)
	}
	return maximumSizeBytes
}

// sectorCountForSize returns the number of data sectors needed to
// store a file of a given size.
func (g *Geometry) sectorCountForSize(fileSizeBytes int64) int64 {
	sectorSizeBytes := int64(g.parameters.SectorSizeBytes)
	return (fileSizeBytes + sectorSizeBytes - 1) / sectorSizeBytes
}

// topLevel returns the level of the indirection nodes referenced by a
// header, given the number of sectors that do not fit in the direct
// pointers. Zero is returned if no indirection is needed.
func (g *Geometry) topLevel(indirectSectors int64) (int, bool) {
	if indirectSectors == 0 {
		return 0, true
	}
	indirectCapacity := int64(g.parameters.IndirectCapacity)
	maximumLevel := g.parameters.MaximumLevel
	if g.parameters.LevelSelection == LevelSelectionMaximum {
		return maximumLevel, indirectSectors <= indirectCapacity*g.capacities[maximumLevel]
	}
	for level := 1; level <= maximumLevel; level++ {
		if indirectSectors <= indirectCapacity*g.capacities[level] {
			return level, true
		}
	}
	return 0, false
}

// indexSectors returns the number of index sectors needed to address
// a given number of data sectors through nodes of a given level. If
// more than one node is needed, all but the last one are filled up
// entirely.
func (g *Geometry) indexSectors(level int, dataSectors int64) int64 {
	if dataSectors == 0 {
		return 0
	}
	if level == 1 {
		return ceilDiv(dataSectors, g.capacities[1])
	}
	capacity := g.capacities[level]
	n := dataSectors / capacity * g.fullIndexSectors[level]
	if rest := dataSectors % capacity; rest > 0 {
		// The last node is only partially filled.
		n += 1 + g.indexSectors(level-1, rest)
	}
	return n
}

// Layout describes how many sectors are used to store a file of a
// given size.
type Layout struct {
	FileSizeBytes       int64
	DataSectors         int64
	DirectSectors       int64
	IndirectDataSectors int64
	TopLevel            int
	TopLevelNodes       int
	IndexSectors        int64
}

// TotalSectors returns the number of sectors that need to be claimed
// from a FreeSectorAllocator to store the file, not including the
// sector holding the header itself.
func (l *Layout) TotalSectors() int64 {
	return l.DataSectors + l.IndexSectors
}

// Layout computes how a file of a given size is stored on the volume.
func (g *Geometry) Layout(fileSizeBytes int64) (Layout, error) {
	if fileSizeBytes < 0 {
		return Layout{}, status.Errorf(codes.InvalidArgument, "Negative file size: %d", fileSizeBytes)
	}
	if maximumSizeBytes := g.MaximumFileSizeBytes(); fileSizeBytes > maximumSizeBytes {
		return Layout{}, status.Errorf(codes.InvalidArgument, "File size of %d bytes exceeds the maximum file size of %d bytes", fileSizeBytes, maximumSizeBytes)
	}

	dataSectors := g.sectorCountForSize(fileSizeBytes)
	directSectors := min(dataSectors, int64(g.parameters.DirectCapacity))
	indirectDataSectors := dataSectors - directSectors
	level, ok := g.topLevel(indirectDataSectors)
	if !ok {
		return Layout{}, status.Errorf(codes.InvalidArgument, "File of %d sectors cannot be addressed, as at most %d sectors can be addressed", dataSectors, g.MaximumFileSectors())
	}

	l := Layout{
		FileSizeBytes:       fileSizeBytes,
		DataSectors:         dataSectors,
		DirectSectors:       directSectors,
		IndirectDataSectors: indirectDataSectors,
		TopLevel:            level,
	}
	if level > 0 {
		l.TopLevelNodes = int(ceilDiv(indirectDataSectors, g.capacities[level]))
		l.IndexSectors = g.indexSectors(level, indirectDataSectors)
	}
	return l, nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
