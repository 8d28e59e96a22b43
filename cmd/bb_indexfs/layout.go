package main

import (
	"fmt"
	"strconv"

	configuration "github.com/buildbarn/bb-indexfs/pkg/configuration/bb_indexfs"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// runLayout prints how many sectors files of given sizes require,
// without accessing the volume image.
func runLayout(c *configuration.ApplicationConfiguration, args []string) error {
	if len(args) == 0 {
		return status.Error(codes.InvalidArgument, "Usage: bb_indexfs layout SIZE...")
	}
	geometry, err := configuration.NewGeometryFromConfiguration(c)
	if err != nil {
		return err
	}
	fmt.Printf("Maximum file size: %d bytes\n", geometry.MaximumFileSizeBytes())
	for _, arg := range args {
		fileSizeBytes, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "Invalid file size %#v", arg)
		}
		layout, err := geometry.Layout(fileSizeBytes)
		if err != nil {
			return err
		}
		fmt.Printf(
			"%d bytes: %d data sectors (%d direct, %d indirect), top level %d, %d top-level nodes, %d index sectors, %d sectors in total\n",
			layout.FileSizeBytes,
			layout.DataSectors,
			layout.DirectSectors,
			layout.IndirectDataSectors,
			layout.TopLevel,
			layout.TopLevelNodes,
			layout.IndexSectors,
			layout.TotalSectors())
	}
	return nil
}
