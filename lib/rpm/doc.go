// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpm reads RPM package files and models the metadata the
// repository generator emits.
//
// An RPM file is three consecutive sections: a 96-byte lead (obsolete
// except for its magic), a signature header, and the main header,
// followed by the payload. Both headers share the same binary layout:
// an 8-byte preamble, a 4-byte entry count, a 4-byte data-region
// size, then the index entries and the data region. The signature
// header is padded to an 8-byte boundary; the main header is not.
//
// [Load] is the extraction entry point: it parses the main header
// into a [Package], records the byte range the header occupies (the
// span consumers need for delta generation), stats the file, and
// computes the content digest. [HeaderRange] walks the same section
// structure without decoding any tags, for callers that only need
// the offsets.
//
// Parsing is bounded: tag data offsets are validated against the
// declared data-region size, so a truncated or hostile file produces
// an error instead of a panic.
package rpm
