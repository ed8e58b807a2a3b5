// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.bin")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestSumKnownVectors(t *testing.T) {
	// Digests of the ASCII string "abc" — standard test vectors.
	path := writeFixture(t, "abc")

	tests := []struct {
		kind Kind
		want string
	}{
		{KindMD5, "900150983cd24fb0d6963f7d28e17f72"},
		{KindSHA1, "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{KindSHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{KindSHA512, "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"},
	}
	for _, tt := range tests {
		got, err := Sum(path, tt.kind)
		if err != nil {
			t.Fatalf("Sum(%s): %v", tt.kind, err)
		}
		if got != tt.want {
			t.Errorf("Sum(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestSumBlake3Deterministic(t *testing.T) {
	path := writeFixture(t, "some artifact content")

	first, err := Sum(path, KindBLAKE3)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	second, err := Sum(path, KindBLAKE3)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if first != second {
		t.Errorf("blake3 digest not deterministic: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("blake3 digest has %d hex chars, want 64", len(first))
	}
}

func TestSumMissingFile(t *testing.T) {
	if _, err := Sum(filepath.Join(t.TempDir(), "absent"), KindSHA256); err == nil {
		t.Fatal("Sum of missing file did not fail")
	}
}

func TestKindRoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindMD5, KindSHA1, KindSHA256, KindSHA512, KindBLAKE3} {
		parsed, err := ParseKind(kind.String())
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", kind.String(), err)
		}
		if parsed != kind {
			t.Errorf("ParseKind(%q) = %v, want %v", kind.String(), parsed, kind)
		}
	}
}

func TestParseKindAliasAndUnknown(t *testing.T) {
	kind, err := ParseKind("sha")
	if err != nil {
		t.Fatalf("ParseKind(sha): %v", err)
	}
	if kind != KindSHA1 {
		t.Errorf("ParseKind(sha) = %v, want KindSHA1", kind)
	}

	if _, err := ParseKind("crc32"); err == nil {
		t.Error("ParseKind(crc32) did not fail")
	}
}

func TestSumBytesMatchesSum(t *testing.T) {
	content := "identical bytes"
	path := writeFixture(t, content)

	fromFile, err := Sum(path, KindSHA256)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	fromBytes, err := SumBytes([]byte(content), KindSHA256)
	if err != nil {
		t.Fatalf("SumBytes: %v", err)
	}
	if fromFile != fromBytes {
		t.Errorf("Sum = %s, SumBytes = %s", fromFile, fromBytes)
	}
}
