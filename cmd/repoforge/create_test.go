// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCollectTasksSortedAndDense(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "x86_64", "zlib-1.2.rpm"))
	touch(t, filepath.Join(root, "x86_64", "bash-5.1.rpm"))
	touch(t, filepath.Join(root, "noarch", "docs-1.0.rpm"))
	touch(t, filepath.Join(root, "README.txt"))

	tasks, err := collectTasks(root)
	if err != nil {
		t.Fatalf("collectTasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	// Dense ids in sorted path order.
	for i, task := range tasks {
		if task.ID != i {
			t.Errorf("task %d has id %d", i, task.ID)
		}
	}
	if tasks[0].Filename != "docs-1.0.rpm" {
		t.Errorf("first task = %s, want the noarch artifact", tasks[0].Filename)
	}
	if tasks[1].Filename != "bash-5.1.rpm" || tasks[2].Filename != "zlib-1.2.rpm" {
		t.Errorf("unexpected order: %s, %s", tasks[1].Filename, tasks[2].Filename)
	}
}

func TestCollectTasksSkipsMetadataDirectories(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "pkg.rpm"))
	touch(t, filepath.Join(root, "repodata", "stale.rpm"))
	touch(t, filepath.Join(root, ".repodata", "partial.rpm"))
	touch(t, filepath.Join(root, "repodata.old", "older.rpm"))

	tasks, err := collectTasks(root)
	if err != nil {
		t.Fatalf("collectTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Filename != "pkg.rpm" {
		t.Errorf("tasks = %+v, want only pkg.rpm", tasks)
	}
}

func TestFindStream(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "primary.xml.zst"))
	touch(t, filepath.Join(dir, "other.xml"))

	if got := findStream(dir, "primary"); filepath.Base(got) != "primary.xml.zst" {
		t.Errorf("findStream(primary) = %q", got)
	}
	if got := findStream(dir, "other"); filepath.Base(got) != "other.xml" {
		t.Errorf("findStream(other) = %q", got)
	}
	if got := findStream(dir, "filelists"); got != "" {
		t.Errorf("findStream(filelists) = %q, want empty", got)
	}
}

func TestResolveConfigFlagOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "repoforge.yaml")
	if err := os.WriteFile(configPath, []byte("compression: zstd\nworkers: 2\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	command := createCommand()
	set := command.Flags()
	if err := set.Parse([]string{
		"--config", configPath,
		"--workers", "8",
	}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	flags := &createFlags{configPath: configPath, workers: 8, set: set}
	cfg, err := resolveConfig(flags)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d, want the flag value 8", cfg.Workers)
	}
	if cfg.Compression != "zstd" {
		t.Errorf("compression = %q, want the file value zstd", cfg.Compression)
	}
	if cfg.ChecksumKind != "sha256" {
		t.Errorf("checksum kind = %q, want the default", cfg.ChecksumKind)
	}
}

func TestPublishSwapsDirectories(t *testing.T) {
	root := t.TempDir()
	workDir := filepath.Join(root, ".repodata")
	finalDir := filepath.Join(root, "repodata")

	touch(t, filepath.Join(workDir, "repomd.xml"))
	touch(t, filepath.Join(finalDir, "old-repomd.xml"))

	if err := publish(workDir, finalDir); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, err := os.Stat(filepath.Join(finalDir, "repomd.xml")); err != nil {
		t.Error("new metadata not in place")
	}
	if _, err := os.Stat(filepath.Join(finalDir, "old-repomd.xml")); err == nil {
		t.Error("old metadata still present")
	}
	if _, err := os.Stat(finalDir + ".old"); err == nil {
		t.Error("backup directory left behind")
	}
	if _, err := os.Stat(workDir); err == nil {
		t.Error("work directory left behind")
	}
}

func TestPublishWithoutExistingMetadata(t *testing.T) {
	root := t.TempDir()
	workDir := filepath.Join(root, ".repodata")
	finalDir := filepath.Join(root, "repodata")
	touch(t, filepath.Join(workDir, "repomd.xml"))

	if err := publish(workDir, finalDir); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := os.Stat(filepath.Join(finalDir, "repomd.xml")); err != nil {
		t.Error("metadata not published")
	}
}
