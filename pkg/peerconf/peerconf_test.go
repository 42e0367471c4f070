package peerconf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autonet/pkg/config"
	"autonet/pkg/errdefs"
	"autonet/pkg/model"
	"autonet/pkg/vendors"
)

const manifestDoc = `
AS64512:
  description: Example Networks
  import: AS-EXAMPLE
  export: none
  type: peer
  gtsm: true
AS64513:
  description: Transit Co
  import: ANY
  export: ANY
  type: upstream
  only_with: [192.0.2.99]
AS64514:
  description: Bad Peer
  import: AS-BAD
  not_with: [203.0.113.20]
`

func TestParseManifest(t *testing.T) {
	doc, err := ParseManifest([]byte(manifestDoc))
	require.NoError(t, err)
	require.Len(t, doc, 3)
	assert.Equal(t, "AS-EXAMPLE", doc["AS64512"].Import)
	assert.True(t, doc["AS64512"].GTSM)
	assert.Equal(t, []string{"192.0.2.99"}, doc["AS64513"].OnlyWith)
}

func TestParseManifestRejectsGarbage(t *testing.T) {
	_, err := ParseManifest([]byte(":\n :::"))
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)

	_, err = ParseManifest([]byte(""))
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)
}

func TestBuildPeerRecords(t *testing.T) {
	doc, err := ParseManifest([]byte(manifestDoc))
	require.NoError(t, err)

	sessions := map[int][]string{
		64512: {"203.0.113.10", "2001:db8:1::10"},
		64514: {"203.0.113.20", "203.0.113.21"},
	}
	maxPrefixes := map[string]map[int]int{
		"AS64512": {4: 500, 6: 100},
	}
	passwords := map[string]string{"AS64512": "s3cret"}

	records := BuildPeerRecords(doc, sessions, maxPrefixes, passwords, zap.NewNop())
	byASN := make(map[string]model.PeerRecord)
	for _, rec := range records {
		byASN[rec.ASN] = rec
	}
	require.Len(t, records, 3)

	ex := byASN["AS64512"]
	assert.Equal(t, []string{"AS-EXAMPLE"}, ex.ASSets)
	assert.Equal(t, []string{"203.0.113.10", "2001:db8:1::10"}, ex.SessionIPs)
	assert.Equal(t, 500, ex.Limits[4])
	assert.Equal(t, 100, ex.Limits[6])
	assert.Equal(t, "s3cret", ex.Password)
	assert.True(t, ex.GTSM)
	assert.False(t, ex.NoFilter)

	transit := byASN["AS64513"]
	assert.True(t, transit.NoFilter)
	assert.True(t, transit.ExportFullTable)
	assert.Equal(t, []string{"192.0.2.99"}, transit.SessionIPs, "only_with wins over discovery")
	assert.Equal(t, defaultLimitV4, transit.Limits[4])

	bad := byASN["AS64514"]
	assert.Equal(t, []string{"203.0.113.21"}, bad.SessionIPs, "not_with must exclude the session")
}

func TestBuildPeerRecordsSkipsInvalidASN(t *testing.T) {
	doc := map[string]ManifestEntry{
		"banana": {Description: "nope"},
		"AS0":    {Description: "reserved"},
	}
	records := BuildPeerRecords(doc, nil, nil, nil, zap.NewNop())
	assert.Empty(t, records)
}

func testConfig() *config.Config {
	return &config.Config{
		IXPMap: map[string]config.IXP{
			"ams-ix": {
				IPv4Range:    "203.0.113.0/24",
				IPv6Range:    "2001:db8:1::/64",
				PresentOn:    []string{"dc5-1.example.net"},
				BGPLocalPref: 120,
			},
		},
		BGP: map[string]config.RouterEntry{
			"dc5-1": {FQDN: "dc5-1.example.net", Vendor: "bird", IPv4: "192.0.2.1", IPv6: "2001:db8::1"},
		},
		BGPGroups: map[string]config.GroupSettings{},
		RPKI:      true,
	}
}

func testRegistry(t *testing.T) *vendors.Registry {
	t.Helper()
	r := vendors.NewRegistry(zap.NewNop())
	r.Register(vendors.NewBird())
	return r
}

func testPeers() []model.PeerRecord {
	return []model.PeerRecord{{
		ASN:         "AS64512",
		Description: "Example Networks",
		ASSets:      []string{"AS-EXAMPLE"},
		PeerType:    "peer",
		SessionIPs:  []string{"203.0.113.10", "198.51.100.10"},
		Limits:      map[int]int{4: 500, 6: 100},
	}}
}

func testFilters() map[string]map[int]model.FilterSet {
	return map[string]map[int]model.FilterSet{
		"AS64512": {
			4: {ASN: "AS64512", AFI: 4, Prefixes: []string{"203.0.113.0/24"}, Source: "RADB",
				GeneratedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		},
	}
}

func newTestAssembler(t *testing.T, cfg *config.Config) *Assembler {
	t.Helper()
	a := NewAssembler(cfg, testRegistry(t), zap.NewNop())
	a.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestAssemblerBuild(t *testing.T) {
	a := newTestAssembler(t, testConfig())
	configs, failures := a.Build(testPeers(), testFilters())
	require.Empty(t, failures)
	require.Len(t, configs, 1)

	rc := configs[0]
	assert.Equal(t, "dc5-1", rc.RouterID)
	assert.Equal(t, model.ValidationPending, rc.ValidationState)

	peerings := rc.Files["peerings/peers.ipv4.conf"]
	assert.Contains(t, peerings, "neighbor 203.0.113.10 as 64512;")
	assert.Contains(t, peerings, "filter peer_in_64512_ipv4 {")
	assert.Contains(t, peerings, "default bgp_local_pref 120;", "exchange localpref must win")
	assert.NotContains(t, peerings, "198.51.100.10", "sessions outside every exchange range are dropped")

	assert.Contains(t, rc.Files["filters/AS64512-ipv4.conf"], "define AUTOFILTER_64512_IPV4 = [")
	assert.Contains(t, rc.Files["header-ipv4.conf"], "router id 192.0.2.1;")
	assert.Contains(t, rc.Files["interfaces-ipv4.conf"], "protocol device")
	assert.Contains(t, rc.Files["zz-timestamp.conf"], "2024-06-01T12:00:00Z")
	assert.Empty(t, rc.Files["peerings/peers.ipv6.conf"])
}

func TestAssemblerDeterministicAcrossRuns(t *testing.T) {
	cfg := testConfig()
	first, failures := newTestAssembler(t, cfg).Build(testPeers(), testFilters())
	require.Empty(t, failures)
	second, failures := newTestAssembler(t, cfg).Build(testPeers(), testFilters())
	require.Empty(t, failures)
	assert.Equal(t, first[0].Files, second[0].Files, "unchanged inputs must yield identical trees")
}

func TestAssemblerUnsupportedVendorExcludesOnlyThatRouter(t *testing.T) {
	cfg := testConfig()
	cfg.BGP["dc5-2"] = config.RouterEntry{FQDN: "dc5-2.example.net", Vendor: "cisco-xr"}
	a := newTestAssembler(t, cfg)
	configs, failures := a.Build(testPeers(), testFilters())

	require.Len(t, configs, 1, "the healthy router must still be built")
	assert.Equal(t, "dc5-1", configs[0].RouterID)
	require.Contains(t, failures, "dc5-2")
	assert.ErrorIs(t, failures["dc5-2"], errdefs.ErrConfiguration)
}

func TestAssemblerRenderOnlyVendorExcluded(t *testing.T) {
	// frr renders sessions and filter sets but does not assemble trees, so a
	// router configured for it is excluded without touching the others.
	cfg := testConfig()
	cfg.BGP["dc5-3"] = config.RouterEntry{FQDN: "dc5-3.example.net", Vendor: "frr", IPv4: "192.0.2.3"}
	r := testRegistry(t)
	r.Register(vendors.NewFRR())
	a := NewAssembler(cfg, r, zap.NewNop())
	a.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	configs, failures := a.Build(testPeers(), testFilters())
	require.Len(t, configs, 1)
	assert.Equal(t, "dc5-1", configs[0].RouterID)
	require.Contains(t, failures, "dc5-3")
	assert.ErrorIs(t, failures["dc5-3"], errdefs.ErrConfiguration)
	assert.Contains(t, failures["dc5-3"].Error(), "full router tree")
}

func TestAssemblerHonorsOnlyOnAndNotOn(t *testing.T) {
	cfg := testConfig()
	peers := testPeers()
	peers[0].NotOn = []string{"ams-ix"}
	configs, failures := newTestAssembler(t, cfg).Build(peers, testFilters())
	require.Empty(t, failures)
	assert.Empty(t, configs[0].Files["peerings/peers.ipv4.conf"])

	peers = testPeers()
	peers[0].Routers = []string{"other.example.net"}
	configs, failures = newTestAssembler(t, cfg).Build(peers, testFilters())
	require.Empty(t, failures)
	assert.Empty(t, configs[0].Files["peerings/peers.ipv4.conf"])
}

func TestApplyGroupSettings(t *testing.T) {
	cfg := testConfig()
	cfg.BGPGroups["ams-ix"] = config.GroupSettings{GracefulShutdown: true}
	cfg.BGPGroups["ams-ix-dc5-1"] = config.GroupSettings{AdminDownState: true}

	info := model.PeerInfo{}
	ApplyGroupSettings(&info, cfg, "ams-ix", "dc5-1.example.net")
	assert.True(t, info.GracefulShutdown)
	assert.True(t, info.AdminDown)
	assert.False(t, info.BlockImportExport)
}

func TestGenerateSingle(t *testing.T) {
	r := testRegistry(t)
	out, err := GenerateSingle(r, SinglePeerRequest{
		ASN:        "AS64512",
		Vendor:     "bird",
		NeighborIP: "203.0.113.10",
		ASSets:     []string{"AS-EXAMPLE"},
		Limit:      500,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "neighbor 203.0.113.10 as 64512;")
	assert.Contains(t, out, "import limit 500 action restart;")
}

func TestGenerateSingleValidation(t *testing.T) {
	r := testRegistry(t)
	cases := []SinglePeerRequest{
		{ASN: "banana", Vendor: "bird"},
		{ASN: "AS64512", Vendor: "bird", NeighborIP: "not-an-ip"},
		{ASN: "AS64512", Vendor: "bird", ASSets: []string{"NOT-A-SET"}},
		{ASN: "AS64512", Vendor: "bird", PeerType: "sibling"},
	}
	for _, req := range cases {
		_, err := GenerateSingle(r, req)
		assert.ErrorIs(t, err, errdefs.ErrConfiguration, "request %+v", req)
	}

	_, err := GenerateSingle(r, SinglePeerRequest{ASN: "AS64512", Vendor: "quagga", NeighborIP: "203.0.113.10"})
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)
}
