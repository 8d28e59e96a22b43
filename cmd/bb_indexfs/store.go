package main

import (
	"context"
	"fmt"
	"io"
	"os"

	configuration "github.com/buildbarn/bb-indexfs/pkg/configuration/bb_indexfs"
	"github.com/buildbarn/bb-indexfs/pkg/filesystem"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/google/uuid"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// runStore creates a new volume image containing copies of the
// provided files. Space for all files is allocated up front, after
// which their contents are copied concurrently.
func runStore(c *configuration.ApplicationConfiguration, args []string) error {
	if len(args) == 0 {
		return status.Error(codes.InvalidArgument, "Usage: bb_indexfs store FILE...")
	}
	if maximumFiles := filesystem.MaximumVolumeLabelFiles(c.SectorSizeBytes); len(args) > maximumFiles {
		return status.Errorf(codes.InvalidArgument, "A volume can hold at most %d files, while %d files were provided", maximumFiles, len(args))
	}

	v, err := createVolume(c, &filesystem.VolumeLabel{VolumeID: uuid.New()})
	if err != nil {
		return err
	}
	defer v.close()

	ctx := context.Background()
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return util.StatusWrapf(err, "Failed to obtain size of %#v", path)
		}
		headerSector, err := v.fileStore.Create(ctx, info.Size())
		if err != nil {
			return util.StatusWrapf(err, "Failed to create file for %#v", path)
		}
		v.label.HeaderSectors = append(v.label.HeaderSectors, headerSector)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.MaximumConcurrentWrites)
	for i, path := range args {
		headerSector := v.label.HeaderSectors[i]
		group.Go(func() error {
			return copyIntoFile(groupCtx, v.fileStore, headerSector, path)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	if err := v.commit(); err != nil {
		return err
	}

	fmt.Printf("Volume ID: %s\n", v.label.VolumeID)
	for i, path := range args {
		fmt.Printf("%d\t%d\t%s\n", i, v.label.HeaderSectors[i], path)
	}
	return nil
}

func copyIntoFile(ctx context.Context, fileStore filesystem.FileStore, headerSector uint32, path string) error {
	f, err := fileStore.Open(ctx, headerSector)
	if err != nil {
		return util.StatusWrapf(err, "Failed to open file for %#v", path)
	}
	source, err := os.Open(path)
	if err != nil {
		return util.StatusWrapf(err, "Failed to open %#v", path)
	}
	defer source.Close()

	// Files may have changed in size since they were created.
	n, err := io.Copy(io.NewOffsetWriter(f, 0), io.LimitReader(source, f.Length()))
	if err != nil {
		return util.StatusWrapf(err, "Failed to copy contents of %#v", path)
	}
	if n != f.Length() {
		return status.Errorf(codes.FailedPrecondition, "File %#v shrunk from %d to %d bytes while being copied", path, f.Length(), n)
	}
	return nil
}
