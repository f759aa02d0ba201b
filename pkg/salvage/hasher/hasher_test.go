package hasher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input   string
		want    Algorithm
		wantErr bool
	}{
		{input: "sha256", want: SHA256},
		{input: "SHA-256", want: SHA256},
		{input: "md5", want: MD5},
		{input: "Sha1", want: SHA1},
		{input: "sha512", want: SHA512},
		{input: "xxh64", want: XXH64},
		{input: "", want: DefaultAlgorithm},
		{input: "crc32", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	_, err := New(Algorithm("whirlpool"))
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestHashStringKnownVectors(t *testing.T) {
	tests := []struct {
		algo Algorithm
		want string
	}{
		{MD5, "900150983cd24fb0d6963f7d28e17f72"},
		{SHA1, "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{SHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			h, err := New(tt.algo)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.HashString("abc"))
		})
	}
}

func TestDigestLengths(t *testing.T) {
	assert.Equal(t, 32, MD5.DigestLength())
	assert.Equal(t, 40, SHA1.DigestLength())
	assert.Equal(t, 64, SHA256.DigestLength())
	assert.Equal(t, 128, SHA512.DigestLength())
	assert.Equal(t, 16, XXH64.DigestLength())
	assert.Equal(t, 0, Algorithm("nope").DigestLength())

	for _, a := range Algorithms() {
		h, err := New(a)
		require.NoError(t, err)
		sum := h.HashString("x")
		assert.Len(t, sum, a.DigestLength(), a)
		assert.Equal(t, strings.ToLower(sum), sum)
	}
}

func TestHashFileMatchesHashBytes(t *testing.T) {
	dir := t.TempDir()
	// Larger than several chunks and not a multiple of the chunk size.
	data := bytes.Repeat([]byte("salvage-"), 20_000)
	path := writeFile(t, dir, "big.bin", data)

	for _, a := range Algorithms() {
		h, err := New(a, WithChunkSize(1000))
		require.NoError(t, err)

		fromFile, err := h.HashFile(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, h.HashBytes(data), fromFile, a)
	}
}

func TestHashFileIsDeterministicAndDistinguishesContent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("alpha"))
	b := writeFile(t, dir, "b.txt", []byte("bravo"))

	h, err := New(SHA256)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := h.HashFile(ctx, a)
	require.NoError(t, err)
	second, err := h.HashFile(ctx, a)
	require.NoError(t, err)
	other, err := h.HashFile(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}

func TestHashFileErrorNamesPath(t *testing.T) {
	h, err := New(SHA256)
	require.NoError(t, err)

	missing := filepath.Join(t.TempDir(), "missing.txt")
	_, err = h.HashFile(context.Background(), missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHashFileHonorsCancellation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "f", []byte("data"))
	h, err := New(SHA256)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.HashFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompareAndVerifyFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", []byte("same"))
	b := writeFile(t, dir, "b", []byte("same"))
	c := writeFile(t, dir, "c", []byte("different"))

	h, err := New(SHA256)
	require.NoError(t, err)
	ctx := context.Background()

	same, err := h.CompareFiles(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = h.CompareFiles(ctx, a, c)
	require.NoError(t, err)
	assert.False(t, same)

	expected := strings.ToUpper(h.HashString("same"))
	ok, err := h.VerifyFile(ctx, a, expected)
	require.NoError(t, err)
	assert.True(t, ok, "verification must ignore case")

	ok, err = h.VerifyFile(ctx, c, expected)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManifestCreateAndVerifyCollectsAllFailures(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("one"))
	b := writeFile(t, dir, "b.txt", []byte("two"))
	c := writeFile(t, dir, "c.txt", []byte("three"))

	h, err := New(SHA256)
	require.NoError(t, err)
	ctx := context.Background()

	m, err := h.CreateManifest(ctx, []string{a, b, c})
	require.NoError(t, err)
	assert.Len(t, m.Entries, 3)
	assert.Equal(t, SHA256, m.Algorithm)

	report, err := h.VerifyManifest(ctx, m)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Len(t, report.Verified, 3)

	// Tamper with one file and remove another.
	require.NoError(t, os.WriteFile(a, []byte("tampered"), 0o644))
	require.NoError(t, os.Remove(c))

	report, err = h.VerifyManifest(ctx, m)
	require.NoError(t, err)
	assert.False(t, report.OK())
	require.Len(t, report.Failures, 2)
	assert.Equal(t, []string{b}, report.Verified)

	assert.Equal(t, a, report.Failures[0].Path)
	assert.NotEmpty(t, report.Failures[0].Actual)
	assert.Contains(t, report.Failures[0].String(), "expected")

	assert.Equal(t, c, report.Failures[1].Path)
	assert.NotEmpty(t, report.Failures[1].Err)
}

func TestCreateManifestFailsOnUnreadableFile(t *testing.T) {
	h, err := New(SHA256)
	require.NoError(t, err)

	missing := filepath.Join(t.TempDir(), "gone")
	_, err = h.CreateManifest(context.Background(), []string{missing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)
}

func TestVerifyManifestUsesManifestAlgorithm(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", []byte("content"))
	ctx := context.Background()

	md5h, err := New(MD5)
	require.NoError(t, err)
	m, err := md5h.CreateManifest(ctx, []string{a})
	require.NoError(t, err)

	sha, err := New(SHA256)
	require.NoError(t, err)
	report, err := sha.VerifyManifest(ctx, m)
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestManifestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", []byte("content"))

	h, err := New(SHA512)
	require.NoError(t, err)
	m, err := h.CreateManifest(context.Background(), []string{a})
	require.NoError(t, err)

	path := filepath.Join(dir, "nested", "manifest.yaml")
	require.NoError(t, m.Save(path))

	loaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, SHA512, loaded.Algorithm)
	assert.Equal(t, m.Entries, loaded.Entries)
	assert.True(t, m.CreatedAt.Equal(loaded.CreatedAt))
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.yaml", []byte("entries: [unclosed"))
	_, err = LoadManifest(bad)
	assert.Error(t, err)
}
