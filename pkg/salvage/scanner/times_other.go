//go:build !darwin && !linux

package scanner

import (
	"os"
	"time"
)

// fileTimes falls back to the modification time on unsupported platforms.
func fileTimes(_ string, info os.FileInfo) (created, accessed time.Time) {
	return info.ModTime(), info.ModTime()
}
