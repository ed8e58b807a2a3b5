// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package xmldump

import (
	"strings"
	"testing"

	"github.com/repoforge/repoforge/lib/rpm"
)

func samplePackage() *rpm.Package {
	return &rpm.Package{
		PkgID:        "c0ffee00c0ffee00c0ffee00c0ffee00c0ffee00c0ffee00c0ffee00c0ffee00",
		ChecksumKind: "sha256",
		Name:         "hello",
		Arch:         "x86_64",
		Epoch:        "1",
		Version:      "2.10",
		Release:      "3.el9",
		Summary:      "Prints a greeting & more",
		Description:  "The <GNU> Hello program.",
		URL:          "https://www.gnu.org/software/hello/",
		TimeFile:     1700000100,
		TimeBuild:    1700000000,
		License:      "GPLv3+",
		Group:        "Applications/Text",
		BuildHost:    "builder.example.com",
		SourceRPM:    "hello-2.10-3.el9.src.rpm",
		HeaderStart:  280,
		HeaderEnd:    5520,
		LocationHref: "x86_64/hello-2.10-3.el9.x86_64.rpm",

		SizePackage:   54321,
		SizeInstalled: 4096,
		SizeArchive:   2048,

		Provides: []rpm.Dependency{
			{Name: "hello", Flags: "EQ", Epoch: "1", Version: "2.10", Release: "3.el9"},
		},
		Requires: []rpm.Dependency{
			{Name: "libc.so.6"},
			{Name: "/bin/sh", Pre: true},
		},

		Files: []rpm.File{
			{Path: "/usr/bin/hello"},
			{Path: "/usr/share/doc", Type: rpm.FileTypeDir},
			{Path: "/var/log/hello.log", Type: rpm.FileTypeGhost},
		},
		Changelogs: []rpm.Changelog{
			{Author: "Alex <alex@example.com>", Date: 1699000000, Text: "- new release"},
			{Author: "Sam <sam@example.com>", Date: 1698000000, Text: "- initial"},
		},
	}
}

func TestDumpDeterministic(t *testing.T) {
	pkg := samplePackage()

	first, err := Dump(pkg)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	second, err := Dump(pkg)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if first != second {
		t.Error("Dump is not deterministic for identical input")
	}
}

func TestDumpPrimaryContent(t *testing.T) {
	triple, err := Dump(samplePackage())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	primary := triple.Primary

	for _, want := range []string{
		`<package type="rpm">`,
		"<name>hello</name>",
		"<arch>x86_64</arch>",
		`<version epoch="1" ver="2.10" rel="3.el9"/>`,
		`<checksum type="sha256" pkgid="YES">c0ffee00`,
		`<time file="1700000100" build="1700000000"/>`,
		`<size package="54321" installed="4096" archive="2048"/>`,
		`<location href="x86_64/hello-2.10-3.el9.x86_64.rpm"/>`,
		`<rpm:header-range start="280" end="5520"/>`,
		`<rpm:entry name="hello" flags="EQ" epoch="1" ver="2.10" rel="3.el9"/>`,
		`<rpm:entry name="/bin/sh" pre="1"/>`,
	} {
		if !strings.Contains(primary, want) {
			t.Errorf("primary chunk missing %q:\n%s", want, primary)
		}
	}

	// Only /usr/bin/hello is a primary file; doc dir and ghost log
	// are not.
	if !strings.Contains(primary, "<file>/usr/bin/hello</file>") {
		t.Error("primary chunk missing the bin file")
	}
	if strings.Contains(primary, "/usr/share/doc") || strings.Contains(primary, "hello.log") {
		t.Error("primary chunk includes non-primary files")
	}
}

func TestDumpEscapesMarkup(t *testing.T) {
	triple, err := Dump(samplePackage())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if strings.Contains(triple.Primary, "<GNU>") {
		t.Error("description markup not escaped")
	}
	if !strings.Contains(triple.Primary, "&lt;GNU&gt;") {
		t.Error("escaped description not found")
	}
	if !strings.Contains(triple.Primary, "greeting &amp; more") {
		t.Error("summary ampersand not escaped")
	}
}

func TestDumpLocationBase(t *testing.T) {
	pkg := samplePackage()
	pkg.LocationBase = "https://mirror.example.com/el9"

	triple, err := Dump(pkg)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	want := `<location xml:base="https://mirror.example.com/el9" href="x86_64/hello-2.10-3.el9.x86_64.rpm"/>`
	if !strings.Contains(triple.Primary, want) {
		t.Errorf("primary chunk missing %q", want)
	}
}

func TestDumpFilelistsContent(t *testing.T) {
	triple, err := Dump(samplePackage())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	filelists := triple.Filelists

	for _, want := range []string{
		`pkgid="c0ffee00`,
		`name="hello"`,
		"<file>/usr/bin/hello</file>",
		`<file type="dir">/usr/share/doc</file>`,
		`<file type="ghost">/var/log/hello.log</file>`,
	} {
		if !strings.Contains(filelists, want) {
			t.Errorf("filelists chunk missing %q:\n%s", want, filelists)
		}
	}
}

func TestDumpOtherOldestFirst(t *testing.T) {
	triple, err := Dump(samplePackage())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	other := triple.Other

	initial := strings.Index(other, "- initial")
	newer := strings.Index(other, "- new release")
	if initial < 0 || newer < 0 {
		t.Fatalf("other chunk missing changelog entries:\n%s", other)
	}
	if initial > newer {
		t.Error("changelog entries not oldest-first")
	}
}

func TestDumpRejectsUnusable(t *testing.T) {
	if _, err := Dump(nil); err == nil {
		t.Error("Dump(nil) did not fail")
	}

	pkg := samplePackage()
	pkg.PkgID = ""
	if _, err := Dump(pkg); err == nil {
		t.Error("Dump without digest did not fail")
	}

	pkg = samplePackage()
	pkg.Name = ""
	if _, err := Dump(pkg); err == nil {
		t.Error("Dump without name did not fail")
	}
}
