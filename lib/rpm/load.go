// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

package rpm

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/repoforge/repoforge/lib/checksum"
)

// Main header tags. Only the tags the repository projections consume
// are listed.
const (
	tagName        = 1000
	tagVersion     = 1001
	tagRelease     = 1002
	tagEpoch       = 1003
	tagSummary     = 1004
	tagDescription = 1005
	tagBuildTime   = 1006
	tagBuildHost   = 1007
	tagSize        = 1009
	tagVendor      = 1011
	tagLicense     = 1014
	tagPackager    = 1015
	tagGroup       = 1016
	tagURL         = 1020
	tagArch        = 1022
	tagFileSizes   = 1028
	tagFileModes   = 1030
	tagFileFlags   = 1037
	tagSourceRPM   = 1044
	tagArchiveSize = 1046

	tagProvideName    = 1047
	tagRequireFlags   = 1048
	tagRequireName    = 1049
	tagRequireVersion = 1050

	tagChangelogTime = 1080
	tagChangelogName = 1081
	tagChangelogText = 1082

	tagProvideFlags   = 1112
	tagProvideVersion = 1113

	tagDirIndexes = 1116
	tagBasenames  = 1117
	tagDirNames   = 1118
)

// Dependency sense flags.
const (
	senseLess    = 1 << 1
	senseGreater = 1 << 2
	senseEqual   = 1 << 3

	// sensePrereq and the scriptlet senses mark install-time
	// requirements.
	sensePrereq     = 1 << 6
	senseScriptPre  = 1 << 9
	senseScriptPost = 1 << 10

	// senseRPMLib marks dependencies on rpmlib() features. They
	// describe the installer, not the package, and are not published.
	senseRPMLib = 1 << 24
)

// File flag bits.
const fileFlagGhost = 1 << 6

// Directory mode bits (S_IFMT / S_IFDIR).
const (
	modeTypeMask = 0o170000
	modeTypeDir  = 0o040000
)

// LoadOptions configures [Load].
type LoadOptions struct {
	// ChecksumKind selects the digest algorithm for the package id.
	ChecksumKind checksum.Kind

	// ChecksumCache, when non-nil, memoizes digests across runs.
	ChecksumCache *checksum.Cache

	// LocationHref is the artifact path relative to the repository
	// root; LocationBase an optional absolute URL prefix.
	LocationHref string
	LocationBase string

	// ChangelogLimit caps the number of changelog entries retained.
	// Zero keeps none; negative keeps all.
	ChangelogLimit int

	// Stat, when non-nil, supplies the file's mtime and size. When
	// nil, Load stats the file itself.
	Stat fs.FileInfo
}

// Load parses the RPM at path and returns its extracted metadata: the
// decoded header fields, the header byte range, the file stat info,
// and the content digest. Any failure returns a nil package — there
// are no partially populated results.
func Load(path string, opts LoadOptions) (*Package, error) {
	pkg, err := parseFile(path, opts.ChangelogLimit)
	if err != nil {
		return nil, err
	}

	pkg.LocationHref = opts.LocationHref
	pkg.LocationBase = opts.LocationBase
	pkg.ChecksumKind = opts.ChecksumKind.String()

	stat := opts.Stat
	if stat == nil {
		stat, err = os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("rpm: stat %s: %w", path, err)
		}
	}
	pkg.TimeFile = stat.ModTime().Unix()
	pkg.SizePackage = stat.Size()

	if opts.ChecksumCache != nil {
		pkg.PkgID, err = opts.ChecksumCache.Sum(path, opts.ChecksumKind)
	} else {
		pkg.PkgID, err = checksum.Sum(path, opts.ChecksumKind)
	}
	if err != nil {
		return nil, fmt.Errorf("rpm: computing digest of %s: %w", path, err)
	}

	return pkg, nil
}

// parseFile reads the lead, skips the signature header, and decodes
// the main header into a Package. The header byte range is recorded
// on the way through.
func parseFile(path string, changelogLimit int) (*Package, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rpm: opening %s: %w", path, err)
	}
	defer file.Close()

	if err := readLead(file); err != nil {
		return nil, fmt.Errorf("rpm: %s: %w", path, err)
	}

	signatureSize, err := skipSection(file)
	if err != nil {
		return nil, fmt.Errorf("rpm: %s: signature header: %w", path, err)
	}
	padding := signaturePadding(signatureSize)
	if _, err := file.Seek(padding, io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("rpm: %s: seeking past signature padding: %w", path, err)
	}
	headerStart := int64(leadSize) + signatureSize + padding

	header, headerSize, err := readSection(file)
	if err != nil {
		return nil, fmt.Errorf("rpm: %s: main header: %w", path, err)
	}
	headerEnd := headerStart + headerSize

	pkg := &Package{
		Name:        header.String(tagName),
		Arch:        header.String(tagArch),
		Version:     header.String(tagVersion),
		Release:     header.String(tagRelease),
		Summary:     header.String(tagSummary),
		Description: header.String(tagDescription),
		Packager:    header.String(tagPackager),
		URL:         header.String(tagURL),
		License:     header.String(tagLicense),
		Vendor:      header.String(tagVendor),
		Group:       header.String(tagGroup),
		BuildHost:   header.String(tagBuildHost),
		SourceRPM:   header.String(tagSourceRPM),

		TimeBuild:     int64(header.Uint64(tagBuildTime)),
		SizeInstalled: int64(header.Uint64(tagSize)),
		SizeArchive:   int64(header.Uint64(tagArchiveSize)),

		HeaderStart: headerStart,
		HeaderEnd:   headerEnd,
	}
	if pkg.Name == "" {
		return nil, fmt.Errorf("rpm: %s: %w: missing package name", path, ErrMalformed)
	}
	if epoch, ok := header.entries[tagEpoch]; ok && epoch.count > 0 {
		pkg.Epoch = strconv.FormatUint(header.Uint64(tagEpoch), 10)
	}

	pkg.Files = extractFiles(header)
	pkg.Changelogs = extractChangelogs(header, changelogLimit)
	pkg.Provides = extractDependencies(header, tagProvideName, tagProvideFlags, tagProvideVersion)
	pkg.Requires = extractDependencies(header, tagRequireName, tagRequireFlags, tagRequireVersion)

	return pkg, nil
}

// extractFiles assembles the file list from the compressed basename /
// dirname / dirindex representation.
func extractFiles(header *section) []File {
	basenames := header.StringArray(tagBasenames)
	if len(basenames) == 0 {
		return nil
	}
	dirnames := header.StringArray(tagDirNames)
	dirIndexes := header.Uint64Array(tagDirIndexes)
	modes := header.Uint64Array(tagFileModes)
	flags := header.Uint64Array(tagFileFlags)

	files := make([]File, 0, len(basenames))
	for i, base := range basenames {
		var dir string
		if i < len(dirIndexes) && dirIndexes[i] < uint64(len(dirnames)) {
			dir = dirnames[dirIndexes[i]]
		}

		fileType := FileTypeFile
		if i < len(flags) && flags[i]&fileFlagGhost != 0 {
			fileType = FileTypeGhost
		} else if i < len(modes) && modes[i]&modeTypeMask == modeTypeDir {
			fileType = FileTypeDir
		}

		files = append(files, File{Path: dir + base, Type: fileType})
	}
	return files
}

// extractChangelogs decodes changelog entries, newest first as stored
// in the header, keeping at most limit entries. A negative limit
// keeps all of them.
func extractChangelogs(header *section, limit int) []Changelog {
	if limit == 0 {
		return nil
	}
	authors := header.StringArray(tagChangelogName)
	times := header.Uint64Array(tagChangelogTime)
	texts := header.StringArray(tagChangelogText)

	count := len(authors)
	if limit >= 0 && count > limit {
		count = limit
	}

	entries := make([]Changelog, 0, count)
	for i := 0; i < count; i++ {
		entry := Changelog{Author: authors[i]}
		if i < len(times) {
			entry.Date = int64(times[i])
		}
		if i < len(texts) {
			entry.Text = texts[i]
		}
		entries = append(entries, entry)
	}
	return entries
}

// extractDependencies decodes one provides/requires tag triple.
// rpmlib() pseudo-dependencies are dropped, and exact duplicates
// (same name, flags, version) are collapsed.
func extractDependencies(header *section, nameTag, flagsTag, versionTag int) []Dependency {
	names := header.StringArray(nameTag)
	if len(names) == 0 {
		return nil
	}
	flags := header.Uint64Array(flagsTag)
	versions := header.StringArray(versionTag)

	seen := make(map[Dependency]bool, len(names))
	deps := make([]Dependency, 0, len(names))
	for i, name := range names {
		var sense uint64
		if i < len(flags) {
			sense = flags[i]
		}
		if sense&senseRPMLib != 0 {
			continue
		}

		dep := Dependency{
			Name:  name,
			Flags: senseString(sense),
			Pre:   sense&(sensePrereq|senseScriptPre|senseScriptPost) != 0,
		}
		if dep.Flags != "" && i < len(versions) {
			dep.Epoch, dep.Version, dep.Release = splitEVR(versions[i])
		}

		key := dep
		key.Pre = false // a pre and non-pre duplicate is still a duplicate
		if seen[key] {
			continue
		}
		seen[key] = true
		deps = append(deps, dep)
	}
	return deps
}

// senseString maps comparison sense bits to the operator names used
// in the metadata ("EQ", "LT", "LE", "GT", "GE"), or "" when the
// dependency carries no version constraint.
func senseString(sense uint64) string {
	switch {
	case sense&senseLess != 0 && sense&senseEqual != 0:
		return "LE"
	case sense&senseGreater != 0 && sense&senseEqual != 0:
		return "GE"
	case sense&senseEqual != 0:
		return "EQ"
	case sense&senseLess != 0:
		return "LT"
	case sense&senseGreater != 0:
		return "GT"
	default:
		return ""
	}
}

// splitEVR splits an "epoch:version-release" string. Epoch defaults
// to "0" when absent; release may be empty.
func splitEVR(evr string) (epoch, version, release string) {
	epoch = "0"
	if colon := strings.IndexByte(evr, ':'); colon >= 0 {
		if colon > 0 {
			epoch = evr[:colon]
		}
		evr = evr[colon+1:]
	}
	if dash := strings.LastIndexByte(evr, '-'); dash >= 0 {
		return epoch, evr[:dash], evr[dash+1:]
	}
	return epoch, evr, ""
}
