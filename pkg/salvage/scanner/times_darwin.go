//go:build darwin

package scanner

import (
	"os"
	"syscall"
	"time"
)

// fileTimes returns the birth and access times from the stat structure.
func fileTimes(_ string, info os.FileInfo) (created, accessed time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime(), info.ModTime()
	}
	return time.Unix(st.Birthtimespec.Unix()), time.Unix(st.Atimespec.Unix())
}
