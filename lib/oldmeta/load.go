// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package oldmeta

import (
	"encoding/xml"
	"fmt"

	"github.com/repoforge/repoforge/lib/rpm"
	"github.com/repoforge/repoforge/lib/xmlfile"
)

// Decoding structs for the three projections. Element names are
// matched by local name, so they decode regardless of the namespace
// prefixes the producing tool chose.

type versionElem struct {
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

type entryElem struct {
	Name  string `xml:"name,attr"`
	Flags string `xml:"flags,attr"`
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
	Pre   string `xml:"pre,attr"`
}

type fileElem struct {
	Type string `xml:"type,attr"`
	Path string `xml:",chardata"`
}

type primaryPackage struct {
	Name     string      `xml:"name"`
	Arch     string      `xml:"arch"`
	Version  versionElem `xml:"version"`
	Checksum struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"checksum"`
	Summary     string `xml:"summary"`
	Description string `xml:"description"`
	Packager    string `xml:"packager"`
	URL         string `xml:"url"`
	Time        struct {
		File  int64 `xml:"file,attr"`
		Build int64 `xml:"build,attr"`
	} `xml:"time"`
	Size struct {
		Package   int64 `xml:"package,attr"`
		Installed int64 `xml:"installed,attr"`
		Archive   int64 `xml:"archive,attr"`
	} `xml:"size"`
	Location struct {
		Href string `xml:"href,attr"`
		Base string `xml:"base,attr"`
	} `xml:"location"`
	Format struct {
		License     string `xml:"license"`
		Vendor      string `xml:"vendor"`
		Group       string `xml:"group"`
		BuildHost   string `xml:"buildhost"`
		SourceRPM   string `xml:"sourcerpm"`
		HeaderRange struct {
			Start int64 `xml:"start,attr"`
			End   int64 `xml:"end,attr"`
		} `xml:"header-range"`
		Provides []entryElem `xml:"provides>entry"`
		Requires []entryElem `xml:"requires>entry"`
		Files    []fileElem  `xml:"file"`
	} `xml:"format"`
}

type primaryDoc struct {
	Packages []primaryPackage `xml:"package"`
}

type filelistsPackage struct {
	PkgID   string      `xml:"pkgid,attr"`
	Version versionElem `xml:"version"`
	Files   []fileElem  `xml:"file"`
}

type filelistsDoc struct {
	Packages []filelistsPackage `xml:"package"`
}

type otherPackage struct {
	PkgID      string `xml:"pkgid,attr"`
	Changelogs []struct {
		Author string `xml:"author,attr"`
		Date   int64  `xml:"date,attr"`
		Text   string `xml:",chardata"`
	} `xml:"changelog"`
}

type otherDoc struct {
	Packages []otherPackage `xml:"package"`
}

// Load reads the previous run's projections. primaryPath is
// required; filelistsPath and otherPath may be empty, leaving the
// cached packages without file lists or changelogs (their reuse
// output would then lack them too, so callers normally pass all
// three). Compressed files are detected by extension.
func (m *Metadata) Load(primaryPath, filelistsPath, otherPath string) error {
	byID := make(map[string]*rpm.Package)
	// order keeps the primary stream's package order for registration.
	var order []string

	var primary primaryDoc
	if err := decodeFile(primaryPath, &primary); err != nil {
		return fmt.Errorf("oldmeta: loading primary metadata: %w", err)
	}
	for _, p := range primary.Packages {
		pkg := &rpm.Package{
			PkgID:        p.Checksum.Value,
			ChecksumKind: p.Checksum.Type,
			Name:         p.Name,
			Arch:         p.Arch,
			Epoch:        p.Version.Epoch,
			Version:      p.Version.Ver,
			Release:      p.Version.Rel,
			Summary:      p.Summary,
			Description:  p.Description,
			Packager:     p.Packager,
			URL:          p.URL,
			TimeFile:     p.Time.File,
			TimeBuild:    p.Time.Build,
			License:      p.Format.License,
			Vendor:       p.Format.Vendor,
			Group:        p.Format.Group,
			BuildHost:    p.Format.BuildHost,
			SourceRPM:    p.Format.SourceRPM,
			HeaderStart:  p.Format.HeaderRange.Start,
			HeaderEnd:    p.Format.HeaderRange.End,
			LocationHref: p.Location.Href,
			LocationBase: p.Location.Base,

			SizePackage:   p.Size.Package,
			SizeInstalled: p.Size.Installed,
			SizeArchive:   p.Size.Archive,

			Provides: decodeEntries(p.Format.Provides),
			Requires: decodeEntries(p.Format.Requires),
		}
		if pkg.PkgID == "" {
			m.logger.Warn("skipping cached package without digest", "package", pkg.Name)
			continue
		}
		byID[pkg.PkgID] = pkg
		order = append(order, pkg.PkgID)
	}

	if filelistsPath != "" {
		var filelists filelistsDoc
		if err := decodeFile(filelistsPath, &filelists); err != nil {
			return fmt.Errorf("oldmeta: loading filelists metadata: %w", err)
		}
		for _, p := range filelists.Packages {
			pkg := byID[p.PkgID]
			if pkg == nil {
				continue
			}
			pkg.Files = make([]rpm.File, 0, len(p.Files))
			for _, f := range p.Files {
				pkg.Files = append(pkg.Files, rpm.File{
					Path: f.Path,
					Type: rpm.FileType(f.Type),
				})
			}
		}
	}

	if otherPath != "" {
		var other otherDoc
		if err := decodeFile(otherPath, &other); err != nil {
			return fmt.Errorf("oldmeta: loading other metadata: %w", err)
		}
		for _, p := range other.Packages {
			pkg := byID[p.PkgID]
			if pkg == nil {
				continue
			}
			// The stream stores entries oldest first; internally they
			// are kept newest first.
			pkg.Changelogs = make([]rpm.Changelog, 0, len(p.Changelogs))
			for i := len(p.Changelogs) - 1; i >= 0; i-- {
				entry := p.Changelogs[i]
				pkg.Changelogs = append(pkg.Changelogs, rpm.Changelog{
					Author: entry.Author,
					Date:   entry.Date,
					Text:   entry.Text,
				})
			}
		}
	}

	for _, id := range order {
		m.add(byID[id])
	}
	m.logger.Info("previous metadata loaded",
		"packages", len(byID),
		"primary", primaryPath,
	)
	return nil
}

// decodeFile unmarshals one projection file, transparently
// decompressing by extension.
func decodeFile(path string, into any) error {
	reader, closeReader, err := xmlfile.OpenReader(path)
	if err != nil {
		return err
	}
	defer closeReader()

	if err := xml.NewDecoder(reader).Decode(into); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// decodeEntries converts dependency entry elements.
func decodeEntries(entries []entryElem) []rpm.Dependency {
	if len(entries) == 0 {
		return nil
	}
	deps := make([]rpm.Dependency, 0, len(entries))
	for _, e := range entries {
		deps = append(deps, rpm.Dependency{
			Name:    e.Name,
			Flags:   e.Flags,
			Epoch:   e.Epoch,
			Version: e.Ver,
			Release: e.Rel,
			Pre:     e.Pre == "1",
		})
	}
	return deps
}
