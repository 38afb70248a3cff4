// SPDX-License-Identifier: Apache-2.0

package testutil_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/testutil"
)

func TestStreamYieldsDocsInOrder(t *testing.T) {
	bt, b, err := bson.MarshalValue(int32(1))
	require.NoError(t, err)
	doc := document.Document{{Name: "_id", Value: document.Value{Kind: document.KindInt32, Raw: bson.RawValue{Type: bt, Value: b}}}}

	s := testutil.Stream(doc)
	got, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, doc, got)

	_, ok, err = s.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreIsUsableImmediately(t *testing.T) {
	store := testutil.Store(t)
	names, err := store.ListSchemas(context.Background())
	require.NoError(t, err)
	require.Empty(t, names)
}
