package main

import (
	"context"
	"slices"

	configuration "github.com/buildbarn/bb-indexfs/pkg/configuration/bb_indexfs"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// runRemove removes a file from the volume, releasing its sectors and
// dropping it from the volume label. Files that follow it in the
// volume label have their index decremented.
func runRemove(c *configuration.ApplicationConfiguration, args []string) error {
	if len(args) != 1 {
		return status.Error(codes.InvalidArgument, "Usage: bb_indexfs remove INDEX")
	}
	v, err := openVolume(c)
	if err != nil {
		return err
	}
	defer v.close()

	ctx := context.Background()
	index, _, err := v.getFile(ctx, args[0])
	if err != nil {
		return err
	}
	if err := v.fileStore.Remove(ctx, v.label.HeaderSectors[index]); err != nil {
		return err
	}
	v.label.HeaderSectors = slices.Delete(v.label.HeaderSectors, index, index+1)
	return v.commit()
}
