package irr

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeROAExport(t *testing.T) string {
	t.Helper()
	doc := `{"roas":[
		{"asn":"AS64512","prefix":"203.0.113.0/24","maxLength":25},
		{"asn":"AS64513","prefix":"198.51.100.0/24"}
	]}`
	path := filepath.Join(t.TempDir(), "roas.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestROATableValidation(t *testing.T) {
	table, err := LoadROAExport(writeROAExport(t))
	require.NoError(t, err)

	cases := []struct {
		name   string
		origin uint32
		prefix string
		want   Validity
	}{
		{"exact match", 64512, "203.0.113.0/24", Valid},
		{"within max length", 64512, "203.0.113.128/25", Valid},
		{"too specific", 64512, "203.0.113.0/26", Invalid},
		{"wrong origin", 64999, "203.0.113.0/24", Invalid},
		{"no covering roa", 64512, "192.0.2.0/24", NotFound},
		{"maxLength defaults to prefix length", 64513, "198.51.100.0/25", Invalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := table.Validate(tc.origin, netip.MustParsePrefix(tc.prefix))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseASN(t *testing.T) {
	n, err := ParseASN("AS64512")
	require.NoError(t, err)
	assert.Equal(t, uint32(64512), n)

	n, err = ParseASN("as4200000000")
	require.NoError(t, err)
	assert.Equal(t, uint32(4200000000), n)

	for _, bad := range []string{"AS0", "AS23456", "AS4294967295", "AS-FOO", "banana", ""} {
		_, err := ParseASN(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestValidASSet(t *testing.T) {
	assert.True(t, ValidASSet("AS-EXAMPLE"))
	assert.True(t, ValidASSet("as-example-42"))
	assert.True(t, ValidASSet("AS64512:AS-CUSTOMERS"))
	assert.False(t, ValidASSet("AS64512"))
	assert.False(t, ValidASSet("AS-"))
	assert.False(t, ValidASSet("EXAMPLE"))
	assert.False(t, ValidASSet("AS0:AS-FOO"))
}
