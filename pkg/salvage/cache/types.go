package cache

import (
	"bytes"
	"encoding/gob"
	"time"
)

// FormatVersion is incremented when the entry encoding changes.
// Entries written with another version are treated as misses.
const FormatVersion = 1

// KeySeparator separates the algorithm from the path in keys.
const KeySeparator = '\x00'

// DigestEntry is a remembered digest together with the file state it was
// computed from.
type DigestEntry struct {
	Version int
	Size    int64 // bytes at hashing time
	Mtime   int64 // UnixNano at hashing time
	Digest  string
}

// Matches reports whether the entry was computed from a file with the given
// size and modification time.
func (e *DigestEntry) Matches(size int64, mtime time.Time) bool {
	return e.Version == FormatVersion && e.Size == size && e.Mtime == mtime.UnixNano()
}

// Encode serializes the entry using gob.
func (e *DigestEntry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *DigestEntry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey builds a key from an algorithm name and an absolute path.
// Format: <algorithm>\x00<path>
func MakeKey(algorithm, path string) []byte {
	return []byte(algorithm + string(KeySeparator) + path)
}

// ParseKey splits a key into algorithm and path.
func ParseKey(key []byte) (algorithm, path string) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key), ""
	}
	return string(key[:idx]), string(key[idx+1:])
}

// MakeKeyPrefix returns the prefix shared by every key of an algorithm.
func MakeKeyPrefix(algorithm string) []byte {
	return []byte(algorithm + string(KeySeparator))
}
