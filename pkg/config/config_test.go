package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autonet/pkg/model"
)

const sampleDoc = `
builddir: /tmp/autonet-build
stagedir: /tmp/autonet-stage
peerings_url: https://portal.example.net/peerings.yml
datasource_url: https://www.peeringdb.com/api
ixp_map:
  ams-ix:
    ipv4_range: 80.249.208.0/21
    ipv6_range: 2001:7f8:1::/64
    present_on: [dc5-1.router.nl.example.net]
    bgp_local_pref: 120
bgp:
  dc5-1:
    fqdn: dc5-1.router.nl.example.net
    vendor: bird
    ipv4: 192.0.2.1
    ipv6: 2001:db8::1
`

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "generic.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeDoc(t, sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, DefaultIRROrder, cfg.IRROrder)
	assert.Equal(t, DefaultIRRSourceHost, cfg.IRRSourceHost)
	assert.Equal(t, "empty", cfg.LooseFallback)
	assert.Equal(t, []string{"https://www.peeringdb.com/api"}, cfg.Mirrors)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, 1, cfg.Deploy.MaxParallel, "sequential deployment is the safety baseline")

	res := cfg.Validate()
	assert.True(t, res.Passed, "errors: %v", res.Errors)
}

func TestLoadHonorsBuilddirOverride(t *testing.T) {
	t.Setenv("BUILDDIR", "/srv/routefilters")
	cfg, err := Load(writeDoc(t, sampleDoc))
	require.NoError(t, err)
	assert.Equal(t, "/srv/routefilters", cfg.BuildDir)
}

func TestValidateFlagsMissingSections(t *testing.T) {
	cfg, err := Load(writeDoc(t, "builddir: /tmp/b\n"))
	require.NoError(t, err)
	res := cfg.Validate()
	assert.False(t, res.Passed)
	assert.Equal(t, model.StageSchema, res.Stage)
	joined := ""
	for _, e := range res.Errors {
		joined += e + "\n"
	}
	assert.Contains(t, joined, "peerings_url")
	assert.Contains(t, joined, "ixp_map")
	assert.Contains(t, joined, "bgp router map")
}

func TestValidateRejectsBadIXPRange(t *testing.T) {
	doc := sampleDoc + "\nloose_fallback: permit-any\n"
	cfg, err := Load(writeDoc(t, doc))
	require.NoError(t, err)
	cfg.IXPMap["ams-ix"] = IXP{IPv4Range: "not-a-prefix", IPv6Range: "2001:7f8:1::/64", PresentOn: []string{"x"}}
	res := cfg.Validate()
	assert.False(t, res.Passed)
}

func TestRoutersStableOrder(t *testing.T) {
	cfg := &Config{BGP: map[string]RouterEntry{
		"b-router": {FQDN: "b.example.net", Vendor: "bird"},
		"a-router": {FQDN: "a.example.net", Vendor: "bird"},
	}}
	routers := cfg.Routers()
	require.Len(t, routers, 2)
	assert.Equal(t, "a-router", routers[0].Name)
	assert.Equal(t, "b-router", routers[1].Name)
}

func TestLocalPrefDefaults(t *testing.T) {
	assert.Equal(t, 500, LocalPrefDefault("downstream"))
	assert.Equal(t, 60, LocalPrefDefault("upstream"))
	assert.Equal(t, 100, LocalPrefDefault("peer"))
}
