// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds small helpers shared by tests, mainly
// timeout-guarded channel operations so a concurrency bug fails a
// test instead of hanging the suite.
package testutil
