// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/repoforge/repoforge/cmd/repoforge/cli"
	"github.com/repoforge/repoforge/lib/checksum"
	"github.com/repoforge/repoforge/lib/dumper"
	"github.com/repoforge/repoforge/lib/oldmeta"
	"github.com/repoforge/repoforge/lib/repoconfig"
	"github.com/repoforge/repoforge/lib/repomd"
	"github.com/repoforge/repoforge/lib/rpm"
	"github.com/repoforge/repoforge/lib/sqlitedb"
	"github.com/repoforge/repoforge/lib/xmldump"
	"github.com/repoforge/repoforge/lib/xmlfile"
)

// createFlags carries the create command's flag values across the
// lazy FlagSet construction and Run.
type createFlags struct {
	configPath     string
	workers        int
	checksumKind   string
	compression    string
	changelogLimit int
	update         bool
	skipStat       bool
	databases      bool
	locationBase   string
	checksumCache  string
	verbose        bool

	set *pflag.FlagSet
}

func createCommand() *cli.Command {
	flags := &createFlags{}

	return &cli.Command{
		Name:    "create",
		Summary: "generate repository metadata for a directory of artifacts",
		Usage:   "repoforge create [flags] <directory>",
		Description: "Scans <directory> recursively for *.rpm artifacts and writes the\n" +
			"repository metadata into <directory>/repodata. With --update, a\n" +
			"previous run's metadata is reused for artifacts whose mtime, size\n" +
			"and checksum kind are unchanged.",
		Examples: []cli.Example{
			{Description: "generate metadata with defaults", Command: "repoforge create /srv/repo/el9"},
			{Description: "incremental rebuild with SQLite mirrors", Command: "repoforge create --update --databases /srv/repo/el9"},
			{Description: "zstd streams, blake3 digests, 16 workers", Command: "repoforge create --compression zstd --checksum blake3 --workers 16 /srv/repo/el9"},
		},
		Flags: func() *pflag.FlagSet {
			set := pflag.NewFlagSet("create", pflag.ContinueOnError)
			set.StringVar(&flags.configPath, "config", "", "configuration file (default $REPOFORGE_CONFIG)")
			set.IntVar(&flags.workers, "workers", 0, "worker pool size (0 = one per CPU)")
			set.StringVar(&flags.checksumKind, "checksum", "", "digest kind: md5, sha1, sha256, sha512, blake3")
			set.StringVar(&flags.compression, "compression", "", "stream compression: gzip, zstd, lz4, none")
			set.IntVar(&flags.changelogLimit, "changelog-limit", 0, "changelog entries kept per package (-1 = all)")
			set.BoolVar(&flags.update, "update", false, "reuse the previous run's metadata where fresh")
			set.BoolVar(&flags.skipStat, "skip-stat", false, "trust cached metadata without stat (implies --update)")
			set.BoolVar(&flags.databases, "databases", false, "also generate SQLite mirror databases")
			set.StringVar(&flags.locationBase, "location-base", "", "absolute URL prefix for package locations")
			set.StringVar(&flags.checksumCache, "checksum-cache", "", "directory memoizing artifact digests across runs")
			set.BoolVar(&flags.verbose, "verbose", false, "debug logging")
			flags.set = set
			return set
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one directory argument is required")
			}
			return runCreate(flags, args[0])
		},
	}
}

// resolveConfig merges the configuration file (if any) with the flags
// the user set explicitly.
func resolveConfig(flags *createFlags) (repoconfig.Config, error) {
	path := flags.configPath
	if path == "" {
		path = os.Getenv("REPOFORGE_CONFIG")
	}

	cfg := repoconfig.Default()
	if path != "" {
		loaded, err := repoconfig.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if flags.set.Changed("workers") {
		cfg.Workers = flags.workers
	}
	if flags.set.Changed("checksum") {
		cfg.ChecksumKind = flags.checksumKind
	}
	if flags.set.Changed("compression") {
		cfg.Compression = flags.compression
	}
	if flags.set.Changed("changelog-limit") {
		cfg.ChangelogLimit = flags.changelogLimit
	}
	if flags.set.Changed("skip-stat") {
		cfg.SkipStat = flags.skipStat
	}
	if flags.set.Changed("databases") {
		cfg.Databases = flags.databases
	}
	if flags.set.Changed("location-base") {
		cfg.LocationBase = flags.locationBase
	}
	if flags.set.Changed("checksum-cache") {
		cfg.ChecksumCacheDir = flags.checksumCache
	}
	return cfg, cfg.Validate()
}

func runCreate(flags *createFlags, directory string) error {
	logger := newLogger(flags.verbose)
	ctx := context.Background()

	cfg, err := resolveConfig(flags)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(directory)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", directory, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	tasks, err := collectTasks(root)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		logger.Warn("no artifacts found", "directory", root)
	}

	// Previous-run metadata, read from the existing repodata before
	// anything is replaced.
	var cache dumper.Cache
	finalDir := filepath.Join(root, "repodata")
	if flags.update || cfg.SkipStat {
		meta := oldmeta.New(logger)
		primaryPath := findStream(finalDir, "primary")
		if primaryPath == "" {
			logger.Warn("no previous metadata to update from", "directory", finalDir)
		} else {
			err := meta.Load(primaryPath, findStream(finalDir, "filelists"), findStream(finalDir, "other"))
			if err != nil {
				return err
			}
			cache = meta
		}
	}

	// All outputs land in a work directory, atomically moved into
	// place at the end so a crashed run never leaves a half-written
	// repodata behind.
	workDir := filepath.Join(root, ".repodata")
	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("clearing work directory: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}

	compression := cfg.CompressionMode()
	kind := cfg.Kind()

	streams := make(map[xmlfile.StreamType]*xmlfile.Writer, 3)
	for _, stream := range []xmlfile.StreamType{
		xmlfile.StreamPrimary, xmlfile.StreamFilelists, xmlfile.StreamOther,
	} {
		path := filepath.Join(workDir, xmlfile.FileName(stream, compression))
		writer, err := xmlfile.NewWriter(path, stream, compression, len(tasks))
		if err != nil {
			return err
		}
		streams[stream] = writer
	}

	databases := make(map[xmlfile.StreamType]*sqlitedb.DB, 3)
	if cfg.Databases {
		for _, stream := range []xmlfile.StreamType{
			xmlfile.StreamPrimary, xmlfile.StreamFilelists, xmlfile.StreamOther,
		} {
			path := filepath.Join(workDir, stream.String()+".sqlite")
			db, err := sqlitedb.Open(ctx, path, stream, logger)
			if err != nil {
				return err
			}
			databases[stream] = db
		}
	}

	var digestCache *checksum.Cache
	if cfg.ChecksumCacheDir != "" {
		digestCache, err = checksum.NewCache(cfg.ChecksumCacheDir, logger)
		if err != nil {
			return err
		}
	}

	dumpConfig := dumper.Config{
		Workers:       cfg.Workers,
		RepoPrefixLen: len(root) + 1,
		LocationBase:  cfg.LocationBase,
		ChecksumKind:  kind,
		SkipStat:      cfg.SkipStat,
		OldMetadata:   cache,
		Primary:       streams[xmlfile.StreamPrimary],
		Filelists:     streams[xmlfile.StreamFilelists],
		Other:         streams[xmlfile.StreamOther],
		Extract: func(fullPath, locationHref string, stat fs.FileInfo) (*rpm.Package, error) {
			return rpm.Load(fullPath, rpm.LoadOptions{
				ChecksumKind:   kind,
				ChecksumCache:  digestCache,
				LocationHref:   locationHref,
				LocationBase:   cfg.LocationBase,
				ChangelogLimit: cfg.ChangelogLimit,
				Stat:           stat,
			})
		},
		Format: xmldump.Dump,
		Logger: logger,
	}
	if db := databases[xmlfile.StreamPrimary]; db != nil {
		dumpConfig.PrimaryDB = db
	}
	if db := databases[xmlfile.StreamFilelists]; db != nil {
		dumpConfig.FilelistsDB = db
	}
	if db := databases[xmlfile.StreamOther]; db != nil {
		dumpConfig.OtherDB = db
	}

	if err := dumper.Run(ctx, dumpConfig, tasks); err != nil {
		return err
	}

	streamOrder := []xmlfile.StreamType{
		xmlfile.StreamPrimary, xmlfile.StreamFilelists, xmlfile.StreamOther,
	}
	for _, stream := range streamOrder {
		if err := streams[stream].Close(); err != nil {
			return err
		}
	}

	// Describe every output in the index; pair each database with the
	// digest of the stream it mirrors.
	index := repomd.New(kind)
	for _, stream := range streamOrder {
		writer := streams[stream]
		href := "repodata/" + filepath.Base(writer.Path())
		if err := index.AddFile(stream.String(), href, writer.Path()); err != nil {
			return err
		}

		if db := databases[stream]; db != nil {
			digest, err := checksum.Sum(writer.Path(), kind)
			if err != nil {
				return err
			}
			if err := db.SetChecksum(digest); err != nil {
				return err
			}
			if err := db.Close(); err != nil {
				return err
			}
			dbPath := filepath.Join(workDir, stream.String()+".sqlite")
			if err := index.AddDatabase(stream.String()+"_db", "repodata/"+stream.String()+".sqlite", dbPath); err != nil {
				return err
			}
		}
	}
	if err := index.WriteFile(filepath.Join(workDir, "repomd.xml")); err != nil {
		return err
	}

	if err := publish(workDir, finalDir); err != nil {
		return err
	}

	logger.Info("repository metadata written",
		"directory", finalDir,
		"packages", len(tasks),
		"compression", compression.String(),
		"checksum", kind.String(),
		"databases", cfg.Databases,
	)
	return nil
}

// collectTasks walks the tree for *.rpm artifacts and assigns dense
// ids in sorted path order, so the output order is stable across
// runs.
func collectTasks(root string) ([]dumper.Task, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			// The metadata directories are not artifact sources.
			name := entry.Name()
			if path != root && (name == "repodata" || name == ".repodata" || name == "repodata.old") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(entry.Name(), ".rpm") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(paths)

	tasks := make([]dumper.Task, len(paths))
	for i, path := range paths {
		tasks[i] = dumper.Task{
			ID:       i,
			FullPath: path,
			Filename: filepath.Base(path),
			Path:     filepath.Dir(path),
		}
	}
	return tasks, nil
}

// findStream locates a previous run's stream file by base name,
// whatever compression it was written with.
func findStream(dir, base string) string {
	for _, suffix := range []string{".xml.gz", ".xml.zst", ".xml.lz4", ".xml"} {
		path := filepath.Join(dir, base+suffix)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// publish moves the finished work directory into place, keeping the
// old repodata around only for the instant of the swap.
func publish(workDir, finalDir string) error {
	backup := finalDir + ".old"
	if err := os.RemoveAll(backup); err != nil {
		return fmt.Errorf("clearing stale backup: %w", err)
	}

	if _, err := os.Stat(finalDir); err == nil {
		if err := os.Rename(finalDir, backup); err != nil {
			return fmt.Errorf("moving old metadata aside: %w", err)
		}
	}
	if err := os.Rename(workDir, finalDir); err != nil {
		return fmt.Errorf("publishing metadata: %w", err)
	}
	if err := os.RemoveAll(backup); err != nil {
		return fmt.Errorf("removing old metadata: %w", err)
	}
	return nil
}
