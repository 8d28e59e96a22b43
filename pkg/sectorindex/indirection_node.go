package sectorindex

import (
	"fmt"
	"io"
	"strings"

	"github.com/buildbarn/bb-indexfs/pkg/allocator"
	"github.com/buildbarn/bb-indexfs/pkg/disk"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// indirectionNode is the in-memory representation of a sector that
// holds pointers. Level 1 nodes point to data sectors. Nodes of a
// higher level point to nodes that are one level lower, whose decoded
// contents are stored in subtrees.
//
// Every node is owned by exactly one header or node. The sector of
// the node itself is claimed and released by its owner.
type indirectionNode struct {
	level    int
	children []SectorReference
	subtrees []*indirectionNode
}

// checkClearCount ensures that the allocator has sufficient space
// before any sectors are claimed.
func checkClearCount(sa allocator.FreeSectorAllocator, required int64) error {
	if clearCount := sa.ClearCount(); int64(clearCount) < required {
		return status.Errorf(codes.ResourceExhausted, "%d sectors are required, while only %d sectors are free", required, clearCount)
	}
	return nil
}

// allocateNode creates a node of a given level that addresses a given
// number of data sectors. All but the last child are filled up
// entirely.
func (g *Geometry) allocateNode(sa allocator.FreeSectorAllocator, level int, dataSectors int64) (*indirectionNode, error) {
	childCapacity := g.capacities[level-1]
	childCount := int(ceilDiv(dataSectors, childCapacity))
	if childCount > g.pointersPerSector {
		panic(fmt.Sprintf("Level %d node cannot address %d data sectors", level, dataSectors))
	}
	if err := checkClearCount(sa, dataSectors+g.indexSectors(level, dataSectors)-1); err != nil {
		return nil, err
	}

	n := &indirectionNode{
		level:    level,
		children: make([]SectorReference, 0, childCount),
	}
	for i := 0; i < childCount; i++ {
		sector, err := sa.FindAndSet()
		if err != nil {
			return nil, util.StatusWrapf(err, "Failed to claim child %d of level %d node", i, level)
		}
		n.children = append(n.children, NewSectorReference(sector))
	}

	if level > 1 {
		n.subtrees = make([]*indirectionNode, 0, childCount)
		remaining := dataSectors
		for i := 0; i < childCount; i++ {
			share := min(remaining, childCapacity)
			subtree, err := g.allocateNode(sa, level-1, share)
			if err != nil {
				return nil, err
			}
			n.subtrees = append(n.subtrees, subtree)
			remaining -= share
		}
	}
	return n, nil
}

// deallocate releases all sectors referenced by the node, including
// the ones referenced by its subtrees.
func (n *indirectionNode) deallocate(sa allocator.FreeSectorAllocator) {
	for i, child := range n.children {
		if n.level > 1 {
			n.subtrees[i].deallocate(sa)
		}
		sector, _ := child.GetSector()
		sa.Clear(sector)
	}
	n.children = nil
	n.subtrees = nil
}

// fetchNode reads a node of a given level from disk, including all of
// its subtrees. The number of children stored in the node is derived
// by scanning its pointers. As the owner knows how many data sectors
// the node addresses, the number of children found is validated.
func (g *Geometry) fetchNode(device disk.SectorDevice, sector uint32, level int, dataSectors int64) (*indirectionNode, error) {
	b := make([]byte, g.parameters.SectorSizeBytes)
	if err := device.ReadSector(sector, b); err != nil {
		return nil, util.StatusWrapf(err, "Failed to read level %d node from sector %d", level, sector)
	}

	childCapacity := g.capacities[level-1]
	n := &indirectionNode{
		level:    level,
		children: g.unmarshalNode(b),
	}
	if expected := int(ceilDiv(dataSectors, childCapacity)); len(n.children) != expected {
		return nil, status.Errorf(codes.DataLoss, "Level %d node in sector %d contains %d pointers, while %d pointers were expected", level, sector, len(n.children), expected)
	}

	if level > 1 {
		n.subtrees = make([]*indirectionNode, 0, len(n.children))
		remaining := dataSectors
		for _, child := range n.children {
			share := min(remaining, childCapacity)
			childSector, _ := child.GetSector()
			subtree, err := g.fetchNode(device, childSector, level-1, share)
			if err != nil {
				return nil, err
			}
			n.subtrees = append(n.subtrees, subtree)
			remaining -= share
		}
	}
	return n, nil
}

// writeBack writes the node to a given sector, followed by all of its
// subtrees.
func (n *indirectionNode) writeBack(g *Geometry, device disk.SectorDevice, sector uint32) error {
	if err := device.WriteSector(sector, g.marshalNode(n.children)); err != nil {
		return util.StatusWrapf(err, "Failed to write level %d node to sector %d", n.level, sector)
	}
	for i, subtree := range n.subtrees {
		childSector, _ := n.children[i].GetSector()
		if err := subtree.writeBack(g, device, childSector); err != nil {
			return err
		}
	}
	return nil
}

// lookup returns the data sector at a given logical index, relative
// to the first data sector addressed by this node.
func (n *indirectionNode) lookup(g *Geometry, logical int64) uint32 {
	if n.level == 1 {
		sector, _ := n.children[logical].GetSector()
		return sector
	}
	childCapacity := g.capacities[n.level-1]
	return n.subtrees[logical/childCapacity].lookup(g, logical%childCapacity)
}

func (n *indirectionNode) appendDataSectors(sectors []uint32) []uint32 {
	if n.level == 1 {
		for _, child := range n.children {
			sector, _ := child.GetSector()
			sectors = append(sectors, sector)
		}
		return sectors
	}
	for _, subtree := range n.subtrees {
		sectors = subtree.appendDataSectors(sectors)
	}
	return sectors
}

func (n *indirectionNode) appendIndexSectors(sectors []uint32) []uint32 {
	if n.level == 1 {
		return sectors
	}
	for i, child := range n.children {
		sector, _ := child.GetSector()
		sectors = n.subtrees[i].appendIndexSectors(append(sectors, sector))
	}
	return sectors
}

func (n *indirectionNode) describe(w io.Writer, sector SectorReference, depth int) error {
	indent := strings.Repeat("  ", depth)
	if n.level == 1 {
		_, err := fmt.Fprintf(w, "%sLevel 1 node %s: %s\n", indent, sector, formatReferences(n.children))
		return err
	}
	if _, err := fmt.Fprintf(w, "%sLevel %d node %s:\n", indent, n.level, sector); err != nil {
		return err
	}
	for i, subtree := range n.subtrees {
		if err := subtree.describe(w, n.children[i], depth+1); err != nil {
			return err
		}
	}
	return nil
}

func formatReferences(references []SectorReference) string {
	parts := make([]string, 0, len(references))
	for _, r := range references {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, " ")
}
