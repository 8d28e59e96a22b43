//go:build unix

package disk

import (
	"os"

	"github.com/buildbarn/bb-storage/pkg/util"

	"golang.org/x/sys/unix"
)

// lockVolumeImage acquires an exclusive advisory lock on a volume
// image, so that multiple processes cannot modify it at once. The lock
// is released when the file is closed.
func lockVolumeImage(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return util.StatusWrapf(err, "Failed to lock volume image %#v", f.Name())
	}
	return nil
}
