// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package repoconfig loads the tool configuration.
//
// Configuration comes from a single YAML file named by the --config
// flag or the REPOFORGE_CONFIG environment variable. There is no
// search path and no layering beyond "file, then flags": flags the
// user set explicitly always win over the file. Unknown keys are an
// error — a typo that silently falls back to a default is worse than
// a failed run.
package repoconfig

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/repoforge/repoforge/lib/checksum"
	"github.com/repoforge/repoforge/lib/xmlfile"
)

// Config is the tool configuration. The zero value is not usable;
// start from [Default].
type Config struct {
	// ChecksumKind names the digest algorithm for package ids and
	// repomd records ("md5", "sha1", "sha256", "sha512", "blake3").
	ChecksumKind string `yaml:"checksum_kind"`

	// Compression selects the stream file encoding ("gzip", "zstd",
	// "lz4", "none").
	Compression string `yaml:"compression"`

	// Workers is the dump pool size; 0 means one per CPU.
	Workers int `yaml:"workers"`

	// ChangelogLimit caps changelog entries per package; negative
	// keeps all.
	ChangelogLimit int `yaml:"changelog_limit"`

	// SkipStat trusts cached metadata without consulting the
	// filesystem.
	SkipStat bool `yaml:"skip_stat"`

	// Databases enables the SQLite mirrors.
	Databases bool `yaml:"databases"`

	// LocationBase is an optional absolute URL prefix recorded on
	// package locations.
	LocationBase string `yaml:"location_base"`

	// ChecksumCacheDir, when set, memoizes artifact digests across
	// runs.
	ChecksumCacheDir string `yaml:"checksum_cache_dir"`
}

// Default returns the configuration used when no file and no flags
// are given.
func Default() Config {
	return Config{
		ChecksumKind:   "sha256",
		Compression:    "gzip",
		ChangelogLimit: 10,
	}
}

// Load reads the file at path over the defaults. Unknown keys fail.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("repoconfig: reading %s: %w", path, err)
	}

	var decoded Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&decoded); err != nil {
		return cfg, fmt.Errorf("repoconfig: parsing %s: %w", path, err)
	}

	merge(&cfg, decoded)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("repoconfig: %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays non-zero file values on the defaults. Booleans are
// taken as-is (false is indistinguishable from unset, and false is
// the default for both).
func merge(base *Config, file Config) {
	if file.ChecksumKind != "" {
		base.ChecksumKind = file.ChecksumKind
	}
	if file.Compression != "" {
		base.Compression = file.Compression
	}
	if file.Workers != 0 {
		base.Workers = file.Workers
	}
	if file.ChangelogLimit != 0 {
		base.ChangelogLimit = file.ChangelogLimit
	}
	if file.LocationBase != "" {
		base.LocationBase = file.LocationBase
	}
	if file.ChecksumCacheDir != "" {
		base.ChecksumCacheDir = file.ChecksumCacheDir
	}
	base.SkipStat = file.SkipStat
	base.Databases = file.Databases
}

// Validate checks that the enumerated fields parse.
func (c Config) Validate() error {
	if _, err := checksum.ParseKind(c.ChecksumKind); err != nil {
		return err
	}
	if _, err := xmlfile.ParseCompression(c.Compression); err != nil {
		return err
	}
	return nil
}

// Kind returns the parsed checksum kind. Call Validate first.
func (c Config) Kind() checksum.Kind {
	kind, _ := checksum.ParseKind(c.ChecksumKind)
	return kind
}

// CompressionMode returns the parsed compression mode. Call Validate
// first.
func (c Config) CompressionMode() xmlfile.Compression {
	mode, _ := xmlfile.ParseCompression(c.Compression)
	return mode
}
