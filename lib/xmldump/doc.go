// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package xmldump renders a parsed package into the three XML
// projections a repository carries: the primary summary, the
// filelists enumeration, and the other (changelog) stream.
//
// [Dump] is a pure function: the same package always yields
// byte-identical chunks, which is what makes the parallel dumper's
// output reproducible regardless of worker scheduling. Each chunk is
// one complete <package> element terminated by a newline; the stream
// writers contribute the enclosing document element.
package xmldump
