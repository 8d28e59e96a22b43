package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	configuration "github.com/buildbarn/bb-indexfs/pkg/configuration/bb_indexfs"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// runCat writes the contents of a file stored on the volume to
// standard output.
func runCat(c *configuration.ApplicationConfiguration, args []string) error {
	if len(args) != 1 {
		return status.Error(codes.InvalidArgument, "Usage: bb_indexfs cat INDEX")
	}
	v, err := openVolume(c)
	if err != nil {
		return err
	}
	defer v.close()

	_, f, err := v.getFile(context.Background(), args[0])
	if err != nil {
		return err
	}
	if _, err := io.Copy(os.Stdout, io.NewSectionReader(f, 0, f.Length())); err != nil {
		return util.StatusWrap(err, "Failed to copy file contents")
	}
	return nil
}

// runMap prints the sectors at which bytes of a file are stored. When
// no offsets are provided, all data sectors are printed in logical
// order.
func runMap(c *configuration.ApplicationConfiguration, args []string) error {
	if len(args) < 1 {
		return status.Error(codes.InvalidArgument, "Usage: bb_indexfs map INDEX [OFFSET...]")
	}
	v, err := openVolume(c)
	if err != nil {
		return err
	}
	defer v.close()

	_, f, err := v.getFile(context.Background(), args[0])
	if err != nil {
		return err
	}
	h := f.Header()
	if len(args) == 1 {
		for i, sector := range h.DataSectors() {
			fmt.Printf("%d\t%d\n", int64(i)*int64(c.SectorSizeBytes), sector)
		}
		return nil
	}
	for _, arg := range args[1:] {
		offset, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "Invalid offset %#v", arg)
		}
		sector, err := h.ByteToSector(offset)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%d\n", offset, sector)
	}
	return nil
}

// runDescribe prints the volume label and the headers of the files
// stored on the volume, including their indirection trees.
func runDescribe(c *configuration.ApplicationConfiguration, args []string) error {
	if len(args) > 1 {
		return status.Error(codes.InvalidArgument, "Usage: bb_indexfs describe [INDEX]")
	}
	v, err := openVolume(c)
	if err != nil {
		return err
	}
	defer v.close()

	ctx := context.Background()
	if len(args) == 1 {
		_, f, err := v.getFile(ctx, args[0])
		if err != nil {
			return err
		}
		return f.Header().Describe(os.Stdout)
	}

	fmt.Printf("Volume ID: %s\n", v.label.VolumeID)
	fmt.Printf("Free sectors: %d of %d\n", v.sectorAllocator.ClearCount(), v.geometry.VolumeSectorCount())
	for i, headerSector := range v.label.HeaderSectors {
		f, err := v.fileStore.Open(ctx, headerSector)
		if err != nil {
			return util.StatusWrapf(err, "Failed to open file %d with header in sector %d", i, headerSector)
		}
		fmt.Printf("\nFile %d, header in sector %d\n", i, headerSector)
		if err := f.Header().Describe(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}
