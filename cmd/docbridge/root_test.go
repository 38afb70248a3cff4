// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func invokeCommand(args []string) (*Command, string, error) {
	c := NewCommand()
	c.SilenceUsage = true
	c.SilenceErrors = true

	buf := new(bytes.Buffer)
	c.SetOut(buf)
	c.SetErr(buf)
	c.SetArgs(args)

	err := c.ExecuteContext(context.Background())
	return c, buf.String(), err
}

func TestListSchemaOnEmptyStoreIsQuiet(t *testing.T) {
	dir := t.TempDir()
	_, out, err := invokeCommand([]string{"list-schema", "--store-dir", dir})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestGenerateRequiresConnectionFlag(t *testing.T) {
	dir := t.TempDir()
	_, _, err := invokeCommand([]string{"generate", "--store-dir", dir, "--name", "shop", "--collection", "orders"})
	require.Error(t, err)
}

func TestImportRejectsMissingFile(t *testing.T) {
	_, _, err := invokeCommand([]string{"import", "--file", "/nonexistent/bundle.json"})
	require.Error(t, err)
}
