// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package xmldump

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/repoforge/repoforge/lib/rpm"
)

// Triple carries one package's chunk for each of the three output
// streams. Each stream consumes its own string independently.
type Triple struct {
	Primary   string
	Filelists string
	Other     string
}

// Dump renders all three projections of pkg. It fails only on
// packages that should never reach the formatter: nil, or missing
// the identity fields every projection depends on.
func Dump(pkg *rpm.Package) (Triple, error) {
	if err := checkDumpable(pkg); err != nil {
		return Triple{}, err
	}
	return Triple{
		Primary:   dumpPrimary(pkg),
		Filelists: dumpFilelists(pkg),
		Other:     dumpOther(pkg),
	}, nil
}

// checkDumpable validates the fields all three projections require.
func checkDumpable(pkg *rpm.Package) error {
	if pkg == nil {
		return fmt.Errorf("xmldump: nil package")
	}
	if pkg.Name == "" {
		return fmt.Errorf("xmldump: package has no name")
	}
	if pkg.PkgID == "" {
		return fmt.Errorf("xmldump: package %s has no content digest", pkg.Name)
	}
	return nil
}

// epochOrZero returns the package epoch, defaulting to "0" — the
// version element always carries an explicit epoch.
func epochOrZero(epoch string) string {
	if epoch == "" {
		return "0"
	}
	return epoch
}

// escape writes XML-escaped text. Used for both element content and
// attribute values (EscapeText escapes quotes as well).
func escape(b *strings.Builder, text string) {
	xml.EscapeText(b, []byte(text))
}

// attr appends ` name="value"` with an escaped value.
func attr(b *strings.Builder, name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	escape(b, value)
	b.WriteByte('"')
}

// element appends <name>content</name> with escaped content, or a
// self-closing element when content is empty.
func element(b *strings.Builder, indent, name, content string) {
	b.WriteString(indent)
	if content == "" {
		b.WriteString("<" + name + "/>\n")
		return
	}
	b.WriteString("<" + name + ">")
	escape(b, content)
	b.WriteString("</" + name + ">\n")
}

// versionElement appends the <version epoch ver rel/> element shared
// by all three projections.
func versionElement(b *strings.Builder, indent string, pkg *rpm.Package) {
	b.WriteString(indent)
	b.WriteString("<version")
	attr(b, "epoch", epochOrZero(pkg.Epoch))
	attr(b, "ver", pkg.Version)
	attr(b, "rel", pkg.Release)
	b.WriteString("/>\n")
}

// isPrimaryFile reports whether a path belongs in the primary
// projection's abbreviated file list: configuration under /etc/,
// anything in a bin directory, and the traditional sendmail path.
func isPrimaryFile(path string) bool {
	return strings.HasPrefix(path, "/etc/") ||
		strings.Contains(path, "bin/") ||
		path == "/usr/lib/sendmail"
}

// fileElement appends one <file> element, typed for directories and
// ghosts.
func fileElement(b *strings.Builder, indent string, file rpm.File) {
	b.WriteString(indent)
	b.WriteString("<file")
	if file.Type != rpm.FileTypeFile {
		attr(b, "type", string(file.Type))
	}
	b.WriteString(">")
	escape(b, file.Path)
	b.WriteString("</file>\n")
}

// dependencyList appends an <rpm:provides>/<rpm:requires> block, or
// nothing when the list is empty.
func dependencyList(b *strings.Builder, name string, deps []rpm.Dependency) {
	if len(deps) == 0 {
		return
	}
	b.WriteString("    <" + name + ">\n")
	for _, dep := range deps {
		b.WriteString("      <rpm:entry")
		attr(b, "name", dep.Name)
		if dep.Flags != "" {
			attr(b, "flags", dep.Flags)
			attr(b, "epoch", epochOrZero(dep.Epoch))
			attr(b, "ver", dep.Version)
			if dep.Release != "" {
				attr(b, "rel", dep.Release)
			}
		}
		if dep.Pre {
			attr(b, "pre", "1")
		}
		b.WriteString("/>\n")
	}
	b.WriteString("    </" + name + ">\n")
}

// dumpPrimary renders the primary projection: identity, descriptive
// fields, sizes, location, format details, dependencies, and the
// abbreviated file list.
func dumpPrimary(pkg *rpm.Package) string {
	var b strings.Builder
	b.WriteString("<package type=\"rpm\">\n")
	element(&b, "  ", "name", pkg.Name)
	element(&b, "  ", "arch", pkg.Arch)
	versionElement(&b, "  ", pkg)

	b.WriteString("  <checksum")
	attr(&b, "type", pkg.ChecksumKind)
	attr(&b, "pkgid", "YES")
	b.WriteString(">")
	escape(&b, pkg.PkgID)
	b.WriteString("</checksum>\n")

	element(&b, "  ", "summary", pkg.Summary)
	element(&b, "  ", "description", pkg.Description)
	element(&b, "  ", "packager", pkg.Packager)
	element(&b, "  ", "url", pkg.URL)

	b.WriteString("  <time")
	attr(&b, "file", strconv.FormatInt(pkg.TimeFile, 10))
	attr(&b, "build", strconv.FormatInt(pkg.TimeBuild, 10))
	b.WriteString("/>\n")

	b.WriteString("  <size")
	attr(&b, "package", strconv.FormatInt(pkg.SizePackage, 10))
	attr(&b, "installed", strconv.FormatInt(pkg.SizeInstalled, 10))
	attr(&b, "archive", strconv.FormatInt(pkg.SizeArchive, 10))
	b.WriteString("/>\n")

	b.WriteString("  <location")
	if pkg.LocationBase != "" {
		attr(&b, "xml:base", pkg.LocationBase)
	}
	attr(&b, "href", pkg.LocationHref)
	b.WriteString("/>\n")

	b.WriteString("  <format>\n")
	element(&b, "    ", "rpm:license", pkg.License)
	element(&b, "    ", "rpm:vendor", pkg.Vendor)
	element(&b, "    ", "rpm:group", pkg.Group)
	element(&b, "    ", "rpm:buildhost", pkg.BuildHost)
	element(&b, "    ", "rpm:sourcerpm", pkg.SourceRPM)

	b.WriteString("    <rpm:header-range")
	attr(&b, "start", strconv.FormatInt(pkg.HeaderStart, 10))
	attr(&b, "end", strconv.FormatInt(pkg.HeaderEnd, 10))
	b.WriteString("/>\n")

	dependencyList(&b, "rpm:provides", pkg.Provides)
	dependencyList(&b, "rpm:requires", pkg.Requires)

	for _, file := range pkg.Files {
		if isPrimaryFile(file.Path) {
			fileElement(&b, "    ", file)
		}
	}

	b.WriteString("  </format>\n")
	b.WriteString("</package>\n")
	return b.String()
}

// packageOpen appends the <package pkgid name arch> opening shared by
// the filelists and other projections.
func packageOpen(b *strings.Builder, pkg *rpm.Package) {
	b.WriteString("<package")
	attr(b, "pkgid", pkg.PkgID)
	attr(b, "name", pkg.Name)
	attr(b, "arch", pkg.Arch)
	b.WriteString(">\n")
}

// dumpFilelists renders the filelists projection: the complete file
// list.
func dumpFilelists(pkg *rpm.Package) string {
	var b strings.Builder
	packageOpen(&b, pkg)
	versionElement(&b, "  ", pkg)
	for _, file := range pkg.Files {
		fileElement(&b, "  ", file)
	}
	b.WriteString("</package>\n")
	return b.String()
}

// dumpOther renders the other projection: the changelog entries,
// oldest first so consumers can append.
func dumpOther(pkg *rpm.Package) string {
	var b strings.Builder
	packageOpen(&b, pkg)
	versionElement(&b, "  ", pkg)
	for i := len(pkg.Changelogs) - 1; i >= 0; i-- {
		entry := pkg.Changelogs[i]
		b.WriteString("  <changelog")
		attr(&b, "author", entry.Author)
		attr(&b, "date", strconv.FormatInt(entry.Date, 10))
		b.WriteString(">")
		escape(&b, entry.Text)
		b.WriteString("</changelog>\n")
	}
	b.WriteString("</package>\n")
	return b.String()
}
