// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitedb

import (
	"context"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/repoforge/repoforge/lib/rpm"
	"github.com/repoforge/repoforge/lib/xmlfile"
)

func testPackage(name, pkgID string) *rpm.Package {
	return &rpm.Package{
		PkgID:        pkgID,
		ChecksumKind: "sha256",
		Name:         name,
		Arch:         "x86_64",
		Version:      "1.0",
		Release:      "1",
		Epoch:        "0",
		TimeFile:     1700000100,
		TimeBuild:    1700000000,
		SizePackage:  1234,
		LocationHref: "x86_64/" + name + "-1.0-1.x86_64.rpm",
		Provides: []rpm.Dependency{
			{Name: name, Flags: "EQ", Epoch: "0", Version: "1.0", Release: "1"},
		},
		Requires: []rpm.Dependency{
			{Name: "/bin/sh", Pre: true},
		},
		Files: []rpm.File{
			{Path: "/usr/bin/" + name},
			{Path: "/usr/share/" + name, Type: rpm.FileTypeDir},
			{Path: "/var/log/" + name + ".log", Type: rpm.FileTypeGhost},
		},
		Changelogs: []rpm.Changelog{
			{Author: "Alex <alex@example.com>", Date: 1699000000, Text: "- release"},
		},
	}
}

// queryInt runs a scalar query against a freshly opened read
// connection.
func queryInt(t *testing.T, path, query string) int64 {
	t.Helper()
	p, err := openPool(path, nil, nil)
	if err != nil {
		t.Fatalf("opening pool for query: %v", err)
	}
	defer p.close()

	conn, err := p.take(context.Background())
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	defer p.put(conn)

	var result int64
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			result = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return result
}

func TestPrimaryDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "primary.sqlite")

	db, err := Open(ctx, path, xmlfile.StreamPrimary, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := db.AddPackage(testPackage("alpha", "aaaa")); err != nil {
		t.Fatalf("AddPackage: %v", err)
	}
	if err := db.AddPackage(testPackage("beta", "bbbb")); err != nil {
		t.Fatalf("AddPackage: %v", err)
	}
	if err := db.SetChecksum("feedface"); err != nil {
		t.Fatalf("SetChecksum: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := queryInt(t, path, "SELECT COUNT(*) FROM packages"); got != 2 {
		t.Errorf("packages count = %d, want 2", got)
	}
	if got := queryInt(t, path, "SELECT COUNT(*) FROM provides"); got != 2 {
		t.Errorf("provides count = %d, want 2", got)
	}
	if got := queryInt(t, path, "SELECT COUNT(*) FROM requires WHERE pre"); got != 2 {
		t.Errorf("pre requires count = %d, want 2", got)
	}
	// Only the bin file passes the primary filter.
	if got := queryInt(t, path, "SELECT COUNT(*) FROM files"); got != 2 {
		t.Errorf("files count = %d, want 2", got)
	}
	if got := queryInt(t, path, "SELECT dbversion FROM db_info"); got != schemaVersion {
		t.Errorf("dbversion = %d, want %d", got, schemaVersion)
	}
}

func TestFilelistsDatabasePacksRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "filelists.sqlite")

	db, err := Open(ctx, path, xmlfile.StreamFilelists, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.AddPackage(testPackage("alpha", "aaaa")); err != nil {
		t.Fatalf("AddPackage: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Three files in three distinct directories: three rows.
	if got := queryInt(t, path, "SELECT COUNT(*) FROM filelist"); got != 3 {
		t.Errorf("filelist rows = %d, want 3", got)
	}
}

func TestOtherDatabaseChangelogs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "other.sqlite")

	db, err := Open(ctx, path, xmlfile.StreamOther, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.AddPackage(testPackage("alpha", "aaaa")); err != nil {
		t.Fatalf("AddPackage: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := queryInt(t, path, "SELECT COUNT(*) FROM changelog"); got != 1 {
		t.Errorf("changelog rows = %d, want 1", got)
	}
}

func TestPackFileRows(t *testing.T) {
	files := []rpm.File{
		{Path: "/usr/bin/alpha"},
		{Path: "/usr/bin/beta", Type: rpm.FileTypeGhost},
		{Path: "/usr/share/doc", Type: rpm.FileTypeDir},
		{Path: "/rootfile"},
	}
	rows := packFileRows(files)

	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	// Rows are sorted by directory: "/", "/usr/bin", "/usr/share".
	if rows[0].dirname != "/" || rows[0].filenames != "rootfile" || rows[0].filetypes != "f" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].dirname != "/usr/bin" || rows[1].filenames != "alpha/beta" || rows[1].filetypes != "fg" {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if rows[2].dirname != "/usr/share" || rows[2].filenames != "doc" || rows[2].filetypes != "d" {
		t.Errorf("row 2 = %+v", rows[2])
	}
}
