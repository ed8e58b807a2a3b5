// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitedb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/repoforge/repoforge/lib/rpm"
	"github.com/repoforge/repoforge/lib/xmlfile"
)

// schemaVersion is recorded in db_info and bumped on any schema
// change so consumers can reject databases they do not understand.
const schemaVersion = 10

// primarySchema holds the full package rows plus dependency and
// primary-file child tables.
const primarySchema = `
CREATE TABLE IF NOT EXISTS db_info (dbversion INTEGER, checksum TEXT);
CREATE TABLE IF NOT EXISTS packages (
  pkgKey INTEGER PRIMARY KEY,
  pkgId TEXT NOT NULL,
  name TEXT,
  arch TEXT,
  version TEXT,
  epoch TEXT,
  release TEXT,
  summary TEXT,
  description TEXT,
  url TEXT,
  time_file INTEGER,
  time_build INTEGER,
  rpm_license TEXT,
  rpm_vendor TEXT,
  rpm_group TEXT,
  rpm_buildhost TEXT,
  rpm_sourcerpm TEXT,
  rpm_header_start INTEGER,
  rpm_header_end INTEGER,
  rpm_packager TEXT,
  size_package INTEGER,
  size_installed INTEGER,
  size_archive INTEGER,
  location_href TEXT,
  location_base TEXT,
  checksum_type TEXT
);
CREATE TABLE IF NOT EXISTS provides (
  name TEXT, flags TEXT, epoch TEXT, version TEXT, release TEXT,
  pkgKey INTEGER
);
CREATE TABLE IF NOT EXISTS requires (
  name TEXT, flags TEXT, epoch TEXT, version TEXT, release TEXT,
  pkgKey INTEGER, pre BOOLEAN DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS files (
  name TEXT, type TEXT, pkgKey INTEGER
);
`

// filelistsSchema stores the complete file list, one row per
// directory with the base names and their types packed into strings.
const filelistsSchema = `
CREATE TABLE IF NOT EXISTS db_info (dbversion INTEGER, checksum TEXT);
CREATE TABLE IF NOT EXISTS packages (
  pkgKey INTEGER PRIMARY KEY,
  pkgId TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS filelist (
  pkgKey INTEGER,
  dirname TEXT,
  filenames TEXT,
  filetypes TEXT
);
`

// otherSchema stores the changelog projection.
const otherSchema = `
CREATE TABLE IF NOT EXISTS db_info (dbversion INTEGER, checksum TEXT);
CREATE TABLE IF NOT EXISTS packages (
  pkgKey INTEGER PRIMARY KEY,
  pkgId TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS changelog (
  pkgKey INTEGER,
  author TEXT,
  date INTEGER,
  changelog TEXT
);
`

// DB mirrors one stream into a SQLite database. AddPackage is called
// by the ordered sink while it holds the stream's mutex, so DB does
// not need to be safe for concurrent inserts.
type DB struct {
	stream xmlfile.StreamType
	pool   *pool
	ctx    context.Context
}

// Open creates (truncating any previous schema contents is NOT done
// here — callers remove stale database files before a run) the
// database for the given stream at path.
func Open(ctx context.Context, path string, stream xmlfile.StreamType, logger *slog.Logger) (*DB, error) {
	var schema string
	switch stream {
	case xmlfile.StreamPrimary:
		schema = primarySchema
	case xmlfile.StreamFilelists:
		schema = filelistsSchema
	case xmlfile.StreamOther:
		schema = otherSchema
	default:
		return nil, fmt.Errorf("sqlitedb: unknown stream %v", stream)
	}

	p, err := openPool(path, logger, func(conn *sqlite.Conn) error {
		if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
			return fmt.Errorf("creating %s schema: %w", stream, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	db := &DB{stream: stream, pool: p, ctx: ctx}
	if err := db.writeDBInfo(); err != nil {
		p.close()
		return nil, err
	}
	return db, nil
}

// writeDBInfo records the schema version. The checksum column is
// filled in by SetChecksum once the XML the database mirrors has been
// written and digested.
func (db *DB) writeDBInfo() error {
	conn, err := db.pool.take(db.ctx)
	if err != nil {
		return err
	}
	defer db.pool.put(conn)

	if err := sqlitex.Execute(conn, "DELETE FROM db_info", nil); err != nil {
		return fmt.Errorf("sqlitedb: clearing db_info: %w", err)
	}
	err = sqlitex.Execute(conn,
		"INSERT INTO db_info (dbversion, checksum) VALUES (?, '')",
		&sqlitex.ExecOptions{Args: []any{schemaVersion}})
	if err != nil {
		return fmt.Errorf("sqlitedb: writing db_info: %w", err)
	}
	return nil
}

// AddPackage inserts one package's projection. The insert order is
// the global package order; pkgKey assignment follows it.
func (db *DB) AddPackage(pkg *rpm.Package) error {
	conn, err := db.pool.take(db.ctx)
	if err != nil {
		return err
	}
	defer db.pool.put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlitedb: beginning transaction: %w", err)
	}
	defer endTransaction(&err)

	switch db.stream {
	case xmlfile.StreamPrimary:
		err = insertPrimary(conn, pkg)
	case xmlfile.StreamFilelists:
		err = insertFilelists(conn, pkg)
	case xmlfile.StreamOther:
		err = insertOther(conn, pkg)
	}
	if err != nil {
		err = fmt.Errorf("sqlitedb: inserting %s into %s database: %w", pkg.Name, db.stream, err)
	}
	return err
}

// SetChecksum records the digest of the finished XML stream file the
// database mirrors, letting consumers pair the two.
func (db *DB) SetChecksum(digest string) error {
	conn, err := db.pool.take(db.ctx)
	if err != nil {
		return err
	}
	defer db.pool.put(conn)

	err = sqlitex.Execute(conn, "UPDATE db_info SET checksum = ?",
		&sqlitex.ExecOptions{Args: []any{digest}})
	if err != nil {
		return fmt.Errorf("sqlitedb: recording stream checksum: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.pool.close()
}

func insertPrimary(conn *sqlite.Conn, pkg *rpm.Package) error {
	err := sqlitex.Execute(conn, `
		INSERT INTO packages (
			pkgId, name, arch, version, epoch, release,
			summary, description, url, time_file, time_build,
			rpm_license, rpm_vendor, rpm_group, rpm_buildhost,
			rpm_sourcerpm, rpm_header_start, rpm_header_end, rpm_packager,
			size_package, size_installed, size_archive,
			location_href, location_base, checksum_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			pkg.PkgID, pkg.Name, pkg.Arch, pkg.Version, pkg.Epoch, pkg.Release,
			pkg.Summary, pkg.Description, pkg.URL, pkg.TimeFile, pkg.TimeBuild,
			pkg.License, pkg.Vendor, pkg.Group, pkg.BuildHost,
			pkg.SourceRPM, pkg.HeaderStart, pkg.HeaderEnd, pkg.Packager,
			pkg.SizePackage, pkg.SizeInstalled, pkg.SizeArchive,
			pkg.LocationHref, pkg.LocationBase, pkg.ChecksumKind,
		}})
	if err != nil {
		return err
	}
	pkgKey := conn.LastInsertRowID()

	for _, dep := range pkg.Provides {
		err := sqlitex.Execute(conn,
			"INSERT INTO provides (name, flags, epoch, version, release, pkgKey) VALUES (?, ?, ?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{
				dep.Name, dep.Flags, dep.Epoch, dep.Version, dep.Release, pkgKey,
			}})
		if err != nil {
			return err
		}
	}
	for _, dep := range pkg.Requires {
		err := sqlitex.Execute(conn,
			"INSERT INTO requires (name, flags, epoch, version, release, pkgKey, pre) VALUES (?, ?, ?, ?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{
				dep.Name, dep.Flags, dep.Epoch, dep.Version, dep.Release, pkgKey, dep.Pre,
			}})
		if err != nil {
			return err
		}
	}
	for _, file := range pkg.Files {
		if !isPrimaryFile(file.Path) {
			continue
		}
		err := sqlitex.Execute(conn,
			"INSERT INTO files (name, type, pkgKey) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{file.Path, string(fileTypeChar(file.Type)), pkgKey}})
		if err != nil {
			return err
		}
	}
	return nil
}

func insertFilelists(conn *sqlite.Conn, pkg *rpm.Package) error {
	pkgKey, err := insertPkgID(conn, pkg)
	if err != nil {
		return err
	}

	for _, row := range packFileRows(pkg.Files) {
		err := sqlitex.Execute(conn,
			"INSERT INTO filelist (pkgKey, dirname, filenames, filetypes) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{pkgKey, row.dirname, row.filenames, row.filetypes}})
		if err != nil {
			return err
		}
	}
	return nil
}

func insertOther(conn *sqlite.Conn, pkg *rpm.Package) error {
	pkgKey, err := insertPkgID(conn, pkg)
	if err != nil {
		return err
	}

	for _, entry := range pkg.Changelogs {
		err := sqlitex.Execute(conn,
			"INSERT INTO changelog (pkgKey, author, date, changelog) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{pkgKey, entry.Author, entry.Date, entry.Text}})
		if err != nil {
			return err
		}
	}
	return nil
}

// insertPkgID inserts the minimal package row shared by the
// filelists and other schemas.
func insertPkgID(conn *sqlite.Conn, pkg *rpm.Package) (int64, error) {
	err := sqlitex.Execute(conn, "INSERT INTO packages (pkgId) VALUES (?)",
		&sqlitex.ExecOptions{Args: []any{pkg.PkgID}})
	if err != nil {
		return 0, err
	}
	return conn.LastInsertRowID(), nil
}

// fileRow is one packed filelist row: every file of one directory.
type fileRow struct {
	dirname   string
	filenames string
	filetypes string
}

// packFileRows groups files by directory. Base names are joined with
// "/" (a character that cannot appear inside a base name) and the
// type of each is one character of the filetypes string: f, d, or g.
func packFileRows(files []rpm.File) []fileRow {
	type group struct {
		names []string
		types []byte
	}
	byDir := make(map[string]*group)
	for _, file := range files {
		dir, base := splitFilePath(file.Path)
		g := byDir[dir]
		if g == nil {
			g = &group{}
			byDir[dir] = g
		}
		g.names = append(g.names, base)
		g.types = append(g.types, fileTypeChar(file.Type))
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	rows := make([]fileRow, 0, len(dirs))
	for _, dir := range dirs {
		g := byDir[dir]
		rows = append(rows, fileRow{
			dirname:   dir,
			filenames: strings.Join(g.names, "/"),
			filetypes: string(g.types),
		})
	}
	return rows
}

// splitFilePath splits an absolute file path into its directory
// (without trailing slash, except the root) and base name.
func splitFilePath(path string) (dir, base string) {
	slash := strings.LastIndexByte(path, '/')
	if slash < 0 {
		return "", path
	}
	if slash == 0 {
		return "/", path[1:]
	}
	return path[:slash], path[slash+1:]
}

// fileTypeChar maps a file type to its single-character database
// encoding.
func fileTypeChar(fileType rpm.FileType) byte {
	switch fileType {
	case rpm.FileTypeDir:
		return 'd'
	case rpm.FileTypeGhost:
		return 'g'
	default:
		return 'f'
	}
}

// isPrimaryFile mirrors the primary projection's file filter: only
// configuration and executable paths are mirrored into the primary
// database.
func isPrimaryFile(path string) bool {
	return strings.HasPrefix(path, "/etc/") ||
		strings.Contains(path, "bin/") ||
		path == "/usr/lib/sendmail"
}
