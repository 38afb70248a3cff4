// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small, dependency-free test fixtures shared across package
// test suites: an in-memory document stream and a temp-dir-backed schema store, for
// tests that need real file I/O without a real document-store connection.
package testutil

import (
	"testing"

	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/log"
	"github.com/docbridge/docbridge/internal/schema"
)

// Stream returns an in-memory document.Stream over docs, for tests driving the
// Inference Engine directly.
func Stream(docs ...document.Document) document.Stream {
	return document.NewSliceStream(docs)
}

// Store creates a schema.Store rooted at a fresh t.TempDir(), with no Redis cache, for
// tests exercising Store.Generate/Load/Update against a real filesystem.
func Store(t *testing.T) *schema.Store {
	t.Helper()
	logger, err := log.NewStdLogger(discardWriter{}, discardWriter{}, "error")
	if err != nil {
		t.Fatalf("testutil.Store: build logger: %v", err)
	}
	store, err := schema.NewStore(t.TempDir(), logger, nil)
	if err != nil {
		t.Fatalf("testutil.Store: %v", err)
	}
	return store
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
