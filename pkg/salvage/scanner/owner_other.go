//go:build !unix

package scanner

import "os"

// ownership is not available on this platform.
func ownership(_ os.FileInfo) (owner, group string) {
	return "", ""
}
