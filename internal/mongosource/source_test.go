// SPDX-License-Identifier: Apache-2.0

package mongosource

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docbridge/docbridge/internal/config"
)

func TestReadPreferenceCoversEveryEnumValue(t *testing.T) {
	for _, rp := range []config.ReadPreference{
		config.ReadPrimary,
		config.ReadPrimaryPreferred,
		config.ReadSecondary,
		config.ReadSecondaryPreferred,
		config.ReadNearest,
	} {
		_, err := readPreference(config.Properties{ReadPreference: rp})
		require.NoError(t, err, "read preference %q", rp)
	}
}

func TestReadPreferenceRejectsUnknown(t *testing.T) {
	_, err := readPreference(config.Properties{ReadPreference: "bogus"})
	require.Error(t, err)
}
