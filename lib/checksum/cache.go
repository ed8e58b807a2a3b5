// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// memoEntry is the on-disk record for one memoized digest. The mtime
// and size identify the file content the digest was computed from —
// if either differs at lookup time the entry is stale.
type memoEntry struct {
	Mtime  int64  `cbor:"1,keyasint"`
	Size   int64  `cbor:"2,keyasint"`
	Digest string `cbor:"3,keyasint"`
}

// Cache memoizes file digests in a directory so repeated runs over an
// unchanged artifact tree skip rehashing. Each entry is one CBOR file
// named after the SHA-256 of the artifact's absolute path and the
// digest kind, so distinct paths and kinds never collide.
//
// The cache is best-effort: read or write failures fall back to a
// fresh computation and are logged at debug level. Concurrent use is
// safe — entries are written via rename and readers tolerate torn or
// missing files.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// NewCache opens (creating if needed) a digest memo cache rooted at
// dir. A nil logger discards messages.
func NewCache(dir string, logger *slog.Logger) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("checksum: cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checksum: creating cache directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

// Sum returns the digest of the file at path, consulting the memo
// cache first. A hit requires the stored mtime and size to match the
// file's current stat exactly. Misses compute the digest with [Sum]
// and store a new entry.
func (c *Cache) Sum(path string, kind Kind) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("checksum: stat %s: %w", path, err)
	}
	mtime := info.ModTime().Unix()
	size := info.Size()

	entryPath := c.entryPath(path, kind)
	if digest, ok := c.load(entryPath, mtime, size); ok {
		return digest, nil
	}

	digest, err := Sum(path, kind)
	if err != nil {
		return "", err
	}

	c.store(entryPath, memoEntry{Mtime: mtime, Size: size, Digest: digest})
	return digest, nil
}

// entryPath derives the cache file path for an artifact path and
// digest kind. The artifact path is resolved to its absolute form
// first so the same file reached via different working directories
// shares one entry.
func (c *Cache) entryPath(path string, kind Kind) string {
	absolute, err := filepath.Abs(path)
	if err != nil {
		absolute = path
	}
	sum := sha256.Sum256([]byte(absolute))
	name := hex.EncodeToString(sum[:]) + "." + kind.String()
	return filepath.Join(c.dir, name)
}

// load reads a memo entry and validates it against the file identity.
// Returns ok=false for any miss: absent entry, decode failure, or
// stale identity.
func (c *Cache) load(entryPath string, mtime, size int64) (string, bool) {
	data, err := os.ReadFile(entryPath)
	if err != nil {
		return "", false
	}

	var entry memoEntry
	if err := cbor.Unmarshal(data, &entry); err != nil {
		c.logger.Debug("discarding corrupt checksum memo", "path", entryPath, "error", err)
		return "", false
	}
	if entry.Mtime != mtime || entry.Size != size || entry.Digest == "" {
		return "", false
	}
	return entry.Digest, true
}

// store writes a memo entry atomically (temp file + rename). Failures
// are logged and swallowed — the digest has already been computed, a
// lost memo only costs a rehash next run.
func (c *Cache) store(entryPath string, entry memoEntry) {
	data, err := cbor.Marshal(entry)
	if err != nil {
		c.logger.Debug("encoding checksum memo", "path", entryPath, "error", err)
		return
	}

	tmp, err := os.CreateTemp(c.dir, ".memo-*")
	if err != nil {
		c.logger.Debug("creating checksum memo", "path", entryPath, "error", err)
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		c.logger.Debug("writing checksum memo", "path", entryPath, "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return
	}
	if err := os.Rename(tmpName, entryPath); err != nil {
		os.Remove(tmpName)
		c.logger.Debug("publishing checksum memo", "path", entryPath, "error", err)
	}
}
