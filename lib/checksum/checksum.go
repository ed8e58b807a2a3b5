// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Kind identifies a digest algorithm. The zero value is KindSHA256,
// the repository default.
type Kind int

const (
	// KindSHA256 is the default for modern repositories.
	KindSHA256 Kind = iota

	// KindMD5 exists for repositories predating SHA support. Weak;
	// never pick it for new metadata.
	KindMD5

	// KindSHA1 is accepted for old consumers.
	KindSHA1

	// KindSHA512 for deployments that mandate it.
	KindSHA512

	// KindBLAKE3 is the fast modern option. Keyless, 32-byte digest.
	KindBLAKE3
)

// String returns the canonical lowercase name used in metadata
// ("checksum type" attributes) and in cache-freshness comparisons.
func (k Kind) String() string {
	switch k {
	case KindMD5:
		return "md5"
	case KindSHA1:
		return "sha1"
	case KindSHA256:
		return "sha256"
	case KindSHA512:
		return "sha512"
	case KindBLAKE3:
		return "blake3"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseKind parses a digest kind from its canonical name. "sha" is
// accepted as an alias for "sha1" — old tools emitted it.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "md5":
		return KindMD5, nil
	case "sha", "sha1":
		return KindSHA1, nil
	case "sha256":
		return KindSHA256, nil
	case "sha512":
		return KindSHA512, nil
	case "blake3":
		return KindBLAKE3, nil
	default:
		return 0, fmt.Errorf("unknown checksum kind: %q", name)
	}
}

// New returns a fresh hash.Hash for the kind.
func (k Kind) New() (hash.Hash, error) {
	switch k {
	case KindMD5:
		return md5.New(), nil
	case KindSHA1:
		return sha1.New(), nil
	case KindSHA256:
		return sha256.New(), nil
	case KindSHA512:
		return sha512.New(), nil
	case KindBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum kind: %d", int(k))
	}
}

// Sum computes the digest of the file at path and returns it as a
// lowercase hex string.
func Sum(path string, kind Kind) (string, error) {
	hasher, err := kind.New()
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("checksum: opening %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("checksum: reading %s: %w", path, err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// SumBytes computes the digest of in-memory data as a lowercase hex
// string. Used for metadata self-description (repomd records).
func SumBytes(data []byte, kind Kind) (string, error) {
	hasher, err := kind.New()
	if err != nil {
		return "", err
	}
	hasher.Write(data)
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
