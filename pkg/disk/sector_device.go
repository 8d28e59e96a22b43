package disk

// SectorDevice provides synchronous access to a volume in units of
// whole sectors. Sector numbers start at zero and every transfer
// covers exactly one sector. Partial transfers are reported as errors.
type SectorDevice interface {
	ReadSector(sector uint32, p []byte) error
	WriteSector(sector uint32, p []byte) error
	Sync() error
	Close() error

	SectorSizeBytes() int
	SectorCount() uint32
}
