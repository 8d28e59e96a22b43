package sectorindex

import (
	"fmt"
	"io"

	"github.com/buildbarn/bb-indexfs/pkg/allocator"
	"github.com/buildbarn/bb-indexfs/pkg/disk"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type headerState int

const (
	headerStateEmpty headerState = iota
	headerStateLoaded
	headerStateDeallocated
)

// Header is the in-memory representation of a file header, which is
// stored in a single sector. It maps the logical sectors of a file to
// sectors on the volume. The first sectors of a file are referenced
// by the header directly. Remaining sectors are referenced through
// trees of indirection nodes.
//
// A Header is created empty. It becomes usable by either allocating
// space for a new file through Allocate(), or by loading an existing
// file through FetchFrom(). After Deallocate() has been called, the
// Header can no longer be used.
//
// Header is not thread-safe. Callers need to ensure that no
// operations are performed against the same file concurrently.
type Header struct {
	geometry *Geometry
	state    headerState

	fileSizeBytes int64
	sectorCount   int64
	direct        []SectorReference
	indirect      []SectorReference

	topLevel int
	nodes    []*indirectionNode
}

// NewHeader creates an empty Header for a volume of a given geometry.
func NewHeader(geometry *Geometry) *Header {
	h := &Header{
		geometry: geometry,
	}
	h.reset()
	return h
}

func (h *Header) reset() {
	h.fileSizeBytes = 0
	h.sectorCount = 0
	h.direct = make([]SectorReference, h.geometry.parameters.DirectCapacity)
	h.indirect = make([]SectorReference, h.geometry.parameters.IndirectCapacity)
	h.topLevel = 0
	h.nodes = nil
}

func (h *Header) checkEmpty() error {
	switch h.state {
	case headerStateLoaded:
		return status.Error(codes.FailedPrecondition, "Header is already in use")
	case headerStateDeallocated:
		return status.Error(codes.FailedPrecondition, "Header has already been deallocated")
	}
	return nil
}

func (h *Header) checkLoaded() error {
	switch h.state {
	case headerStateEmpty:
		return status.Error(codes.FailedPrecondition, "Header has not been allocated or fetched")
	case headerStateDeallocated:
		return status.Error(codes.FailedPrecondition, "Header has already been deallocated")
	}
	return nil
}

func (h *Header) checkDevice(device disk.SectorDevice) error {
	if sectorSizeBytes := device.SectorSizeBytes(); sectorSizeBytes != h.geometry.parameters.SectorSizeBytes {
		return status.Errorf(codes.InvalidArgument, "Device has sectors of %d bytes, while the geometry has sectors of %d bytes", sectorSizeBytes, h.geometry.parameters.SectorSizeBytes)
	}
	return nil
}

// Allocate space for a new file of a given size. Sectors for the data
// of the file and for all indirection nodes are claimed from the
// allocator.
//
// Before any sectors are claimed, the allocator is checked to have
// sufficient free sectors. If claiming a sector fails nonetheless,
// all sectors claimed by this call are returned to the allocator.
// The allocator is thus never left in a partially allocated state.
func (h *Header) Allocate(sa allocator.FreeSectorAllocator, fileSizeBytes int64) error {
	if err := h.checkEmpty(); err != nil {
		return err
	}
	layout, err := h.geometry.Layout(fileSizeBytes)
	if err != nil {
		return err
	}
	if err := checkClearCount(sa, layout.TotalSectors()); err != nil {
		return util.StatusWrapf(err, "Cannot allocate file of %d bytes", fileSizeBytes)
	}

	journal := allocator.NewJournalingFreeSectorAllocator(sa)
	if err := h.allocateWithJournal(journal, &layout); err != nil {
		journal.Rollback()
		h.reset()
		return util.StatusWrapf(err, "Failed to allocate file of %d bytes", fileSizeBytes)
	}
	journal.Commit()
	h.state = headerStateLoaded
	return nil
}

func (h *Header) allocateWithJournal(journal *allocator.JournalingFreeSectorAllocator, layout *Layout) error {
	h.fileSizeBytes = layout.FileSizeBytes
	h.sectorCount = layout.DataSectors
	h.topLevel = layout.TopLevel

	for i := int64(0); i < layout.DirectSectors; i++ {
		sector, err := journal.FindAndSet()
		if err != nil {
			return util.StatusWrapf(err, "Failed to claim direct sector %d", i)
		}
		h.direct[i] = NewSectorReference(sector)
	}

	for i := 0; i < layout.TopLevelNodes; i++ {
		sector, err := journal.FindAndSet()
		if err != nil {
			return util.StatusWrapf(err, "Failed to claim top-level node %d", i)
		}
		h.indirect[i] = NewSectorReference(sector)
	}

	remaining := layout.IndirectDataSectors
	capacity := h.geometry.capacities[layout.TopLevel]
	h.nodes = make([]*indirectionNode, 0, layout.TopLevelNodes)
	for i := 0; i < layout.TopLevelNodes; i++ {
		share := min(remaining, capacity)
		n, err := h.geometry.allocateNode(journal, layout.TopLevel, share)
		if err != nil {
			return util.StatusWrapf(err, "Failed to allocate top-level node %d", i)
		}
		h.nodes = append(h.nodes, n)
		remaining -= share
	}
	return nil
}

// Deallocate returns all sectors used by the file to the allocator.
// This includes the data sectors and the indirection nodes, but not
// the sector holding the header itself. The Header can no longer be
// used afterwards.
func (h *Header) Deallocate(sa allocator.FreeSectorAllocator) error {
	if err := h.checkLoaded(); err != nil {
		return err
	}
	for _, r := range h.direct {
		if sector, ok := r.GetSector(); ok {
			sa.Clear(sector)
		}
	}
	for i, n := range h.nodes {
		n.deallocate(sa)
		sector, _ := h.indirect[i].GetSector()
		sa.Clear(sector)
	}
	h.reset()
	h.state = headerStateDeallocated
	return nil
}

// FetchFrom loads the header stored in a given sector, together with
// all indirection nodes it references.
func (h *Header) FetchFrom(device disk.SectorDevice, sector uint32) error {
	if err := h.checkEmpty(); err != nil {
		return err
	}
	if err := h.checkDevice(device); err != nil {
		return err
	}
	if err := h.fetchFrom(device, sector); err != nil {
		h.reset()
		return err
	}
	h.state = headerStateLoaded
	return nil
}

func (h *Header) fetchFrom(device disk.SectorDevice, sector uint32) error {
	g := h.geometry
	b := make([]byte, g.parameters.SectorSizeBytes)
	if err := device.ReadSector(sector, b); err != nil {
		return util.StatusWrapf(err, "Failed to read header from sector %d", sector)
	}
	image := g.unmarshalHeader(b)

	// Validate the size fields. The layout of the indirection
	// trees is derived from them.
	if image.fileSizeBytes < 0 {
		return status.Errorf(codes.DataLoss, "Header in sector %d has negative file size %d", sector, image.fileSizeBytes)
	}
	layout, err := g.Layout(int64(image.fileSizeBytes))
	if err != nil {
		return util.StatusWrapfWithCode(err, codes.DataLoss, "Header in sector %d has invalid file size", sector)
	}
	if int64(image.sectorCount) != layout.DataSectors {
		return status.Errorf(codes.DataLoss, "Header in sector %d has a file size of %d bytes and a sector count of %d, while a sector count of %d was expected", sector, image.fileSizeBytes, image.sectorCount, layout.DataSectors)
	}

	h.fileSizeBytes = layout.FileSizeBytes
	h.sectorCount = layout.DataSectors
	h.topLevel = layout.TopLevel
	if err := decodeTable(g, image.direct, h.direct, int(layout.DirectSectors), "direct", sector); err != nil {
		return err
	}
	if err := decodeTable(g, image.indirect, h.indirect, layout.TopLevelNodes, "indirect", sector); err != nil {
		return err
	}

	remaining := layout.IndirectDataSectors
	capacity := g.capacities[layout.TopLevel]
	h.nodes = make([]*indirectionNode, 0, layout.TopLevelNodes)
	for i := 0; i < layout.TopLevelNodes; i++ {
		share := min(remaining, capacity)
		nodeSector, _ := h.indirect[i].GetSector()
		n, err := g.fetchNode(device, nodeSector, layout.TopLevel, share)
		if err != nil {
			return util.StatusWrapf(err, "Failed to fetch top-level node %d of header in sector %d", i, sector)
		}
		h.nodes = append(h.nodes, n)
		remaining -= share
	}
	return nil
}

// decodeTable converts a table of pointers stored in a header to
// SectorReferences. Exactly the first populated entries must refer to
// sectors on the volume. All other entries must be unused.
func decodeTable(g *Geometry, raw []int32, references []SectorReference, populated int, name string, sector uint32) error {
	for i, v := range raw {
		if i < populated {
			if !g.isValidPointer(v) {
				return status.Errorf(codes.DataLoss, "Header in sector %d has %s pointer %d with invalid value %d", sector, name, i, v)
			}
			references[i] = NewSectorReference(uint32(v))
		} else if v != unusedPointer {
			return status.Errorf(codes.DataLoss, "Header in sector %d has %s pointer %d with value %d, while it should be unused", sector, name, i, v)
		}
	}
	return nil
}

// WriteBack stores the header in a given sector, followed by all of
// its indirection nodes in the sectors that were claimed for them.
func (h *Header) WriteBack(device disk.SectorDevice, sector uint32) error {
	if err := h.checkLoaded(); err != nil {
		return err
	}
	if err := h.checkDevice(device); err != nil {
		return err
	}
	g := h.geometry
	if err := device.WriteSector(sector, g.marshalHeader(h.fileSizeBytes, h.sectorCount, h.direct, h.indirect)); err != nil {
		return util.StatusWrapf(err, "Failed to write header to sector %d", sector)
	}
	for i, n := range h.nodes {
		nodeSector, _ := h.indirect[i].GetSector()
		if err := n.writeBack(g, device, nodeSector); err != nil {
			return util.StatusWrapf(err, "Failed to write top-level node %d of header in sector %d", i, sector)
		}
	}
	return nil
}

// ByteToSector returns the sector on the volume that stores the byte
// at a given offset within the file.
func (h *Header) ByteToSector(offset int64) (uint32, error) {
	if err := h.checkLoaded(); err != nil {
		return 0, err
	}
	if offset < 0 || offset >= h.fileSizeBytes {
		return 0, status.Errorf(codes.OutOfRange, "Offset %d lies outside the file, which is %d bytes in size", offset, h.fileSizeBytes)
	}

	g := h.geometry
	logical := offset / int64(g.parameters.SectorSizeBytes)
	directCapacity := int64(g.parameters.DirectCapacity)
	if logical < directCapacity {
		sector, _ := h.direct[logical].GetSector()
		return sector, nil
	}
	logical -= directCapacity
	capacity := g.capacities[h.topLevel]
	return h.nodes[logical/capacity].lookup(g, logical%capacity), nil
}

// FileLength returns the size of the file in bytes.
func (h *Header) FileLength() int64 {
	return h.fileSizeBytes
}

// SectorCount returns the number of data sectors of the file.
func (h *Header) SectorCount() int64 {
	return h.sectorCount
}

// IndexSectorCount returns the number of sectors used by the
// indirection nodes of the file.
func (h *Header) IndexSectorCount() int64 {
	layout, err := h.geometry.Layout(h.fileSizeBytes)
	if err != nil {
		panic(err)
	}
	return layout.IndexSectors
}

// TopLevel returns the level of the indirection nodes referenced by
// the header directly, or zero if the file has no indirection nodes.
func (h *Header) TopLevel() int {
	return h.topLevel
}

// DataSectors returns the sectors on the volume that store the data
// of the file, in logical order.
func (h *Header) DataSectors() []uint32 {
	sectors := make([]uint32, 0, h.sectorCount)
	for _, r := range h.direct {
		if sector, ok := r.GetSector(); ok {
			sectors = append(sectors, sector)
		}
	}
	for _, n := range h.nodes {
		sectors = n.appendDataSectors(sectors)
	}
	return sectors
}

// IndexSectors returns the sectors on the volume that store the
// indirection nodes of the file. Parent nodes are listed before their
// children.
func (h *Header) IndexSectors() []uint32 {
	var sectors []uint32
	for i, n := range h.nodes {
		sector, _ := h.indirect[i].GetSector()
		sectors = n.appendIndexSectors(append(sectors, sector))
	}
	return sectors
}

// Describe writes a human readable representation of the header and
// its indirection trees.
func (h *Header) Describe(w io.Writer) error {
	if err := h.checkLoaded(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "File size: %d bytes, %d data sectors, %d index sectors\n", h.fileSizeBytes, h.sectorCount, len(h.IndexSectors())); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Direct: %s\n", formatReferences(h.direct)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Indirect: %s\n", formatReferences(h.indirect)); err != nil {
		return err
	}
	for i, n := range h.nodes {
		if err := n.describe(w, h.indirect[i], 1); err != nil {
			return err
		}
	}
	return nil
}
