package sectorindex

import (
	"strconv"
)

// SectorReference is a pointer stored in a header or indirection
// node. It either refers to a sector on the volume, or to nothing at
// all. The zero value refers to nothing.
type SectorReference struct {
	sector uint32
	isSet  bool
}

// NoSector is a SectorReference that does not refer to any sector.
var NoSector SectorReference

// NewSectorReference creates a SectorReference that refers to a given
// sector.
func NewSectorReference(sector uint32) SectorReference {
	return SectorReference{
		sector: sector,
		isSet:  true,
	}
}

// GetSector returns the sector number of the sector that is referenced,
// and whether the reference refers to a sector at all.
func (r SectorReference) GetSector() (uint32, bool) {
	return r.sector, r.isSet
}

// IsSet returns true if the reference refers to a sector.
func (r SectorReference) IsSet() bool {
	return r.isSet
}

func (r SectorReference) String() string {
	if !r.isSet {
		return "-"
	}
	return strconv.FormatUint(uint64(r.sector), 10)
}
