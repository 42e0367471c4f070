// Package config loads and validates the governing YAML document.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"autonet/pkg/errdefs"
	"autonet/pkg/model"
)

// DefaultIRROrder is the registry fallback chain used when neither the
// document nor the peer sets one.
const DefaultIRROrder = "NTTCOM,INTERNAL,RADB,RIPE,ALTDB,BELL,LEVEL3,RGNET,APNIC,JPIRR,ARIN,BBOI,TC,AFRINIC,RPKI,ARIN-WHOIS,REGISTROBR"

// DefaultIRRSourceHost answers IRR queries when the document is silent.
const DefaultIRRSourceHost = "rr.ntt.net"

// IXP describes one exchange the fleet is present on.
type IXP struct {
	IPv4Range    string `yaml:"ipv4_range"`
	IPv6Range    string `yaml:"ipv6_range"`
	PresentOn    []string `yaml:"present_on"`
	BGPLocalPref int    `yaml:"bgp_local_pref"`
	IXPCommunity string `yaml:"ixp_community"`
}

// RouterEntry is one router in the bgp map. Vendor selects the plugin.
type RouterEntry struct {
	FQDN             string `yaml:"fqdn"`
	Vendor           string `yaml:"vendor"`
	IPv4             string `yaml:"ipv4"`
	IPv6             string `yaml:"ipv6"`
	GracefulShutdown bool   `yaml:"graceful_shutdown"`
	Maintenance      bool   `yaml:"maintenance_mode"`
}

// GroupSettings are per-IXP or per-IXP-router session overrides.
type GroupSettings struct {
	AdminDownState    bool `yaml:"admin_down_state"`
	GracefulShutdown  bool `yaml:"graceful_shutdown"`
	BlockImportExport bool `yaml:"block_importexport"`
}

// StateConfig configures the state store backend and retention.
type StateConfig struct {
	Backend       string `yaml:"backend"` // sqlite (default) | mysql
	DatabasePath  string `yaml:"database_path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxGenerations int   `yaml:"max_generations"`
}

// DeployConfig configures the fleet push step.
type DeployConfig struct {
	SSHUser        string        `yaml:"ssh_user"`
	SSHKeyPath     string        `yaml:"ssh_key_path"`
	SSHTimeout     time.Duration `yaml:"ssh_timeout"`
	RemoteDir      string        `yaml:"remote_dir"`
	MaxParallel    int           `yaml:"max_parallel"` // 1 = sequential, the safety baseline
	Lock           string        `yaml:"lock"`         // flock (default) | consul
	ConsulAddr     string        `yaml:"consul_addr"`
	ConsulLockKey  string        `yaml:"consul_lock_key"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
}

// Config is the parsed governing document.
type Config struct {
	BuildDir      string                    `yaml:"builddir"`
	StageDir      string                    `yaml:"stagedir"`
	PeeringsURL   string                    `yaml:"peerings_url"`
	DataSourceURL string                    `yaml:"datasource_url"`
	Mirrors       []string                  `yaml:"datasource_mirrors"`
	CacheDir      string                    `yaml:"cache_dir"`
	CacheMaxAge   time.Duration             `yaml:"cache_max_age"`
	IXPMap        map[string]IXP            `yaml:"ixp_map"`
	BGP           map[string]RouterEntry    `yaml:"bgp"`
	BGPPasswords  map[string]string         `yaml:"bgp_passwords"`
	BGPGroups     map[string]GroupSettings  `yaml:"bgp_groups"`
	IRROrder      string                    `yaml:"irr_order"`
	IRRSourceHost string                    `yaml:"irr_source_host"`
	RPKI          bool                      `yaml:"rpki"`
	RPKIWhitelist []string                  `yaml:"rpki_whitelist"`
	ROAExportPath string                    `yaml:"roa_export_path"`
	LooseFallback string                    `yaml:"loose_fallback"` // empty (default) | permit-any
	WorkerWidth   int                       `yaml:"worker_width"`
	PDBAPIKey     string                    `yaml:"pdb_apikey"`
	State         StateConfig               `yaml:"state"`
	Deploy        DeployConfig              `yaml:"deploy"`
}

// Load reads the document at path, applying .env and environment overrides.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", path, errdefs.ErrConfiguration, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %v", path, errdefs.ErrConfiguration, err)
	}
	cfg.applyDefaults()
	if v := os.Getenv("BUILDDIR"); v != "" {
		cfg.BuildDir = v
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BuildDir == "" {
		c.BuildDir = "/opt/routefilters"
	}
	if c.StageDir == "" {
		c.StageDir = "/opt/router-staging"
	}
	if c.IRROrder == "" {
		c.IRROrder = DefaultIRROrder
	}
	if c.IRRSourceHost == "" {
		c.IRRSourceHost = DefaultIRRSourceHost
	}
	if c.LooseFallback == "" {
		c.LooseFallback = "empty"
	}
	if c.WorkerWidth <= 0 {
		c.WorkerWidth = 10
	}
	if c.CacheMaxAge <= 0 {
		c.CacheMaxAge = 24 * time.Hour
	}
	if len(c.Mirrors) == 0 && c.DataSourceURL != "" {
		c.Mirrors = []string{c.DataSourceURL}
	}
	if c.State.Backend == "" {
		c.State.Backend = "sqlite"
	}
	if c.State.DatabasePath == "" {
		c.State.DatabasePath = "/var/lib/autonet/state.db"
	}
	if c.State.RetentionDays <= 0 {
		c.State.RetentionDays = 30
	}
	if c.State.MaxGenerations <= 0 {
		c.State.MaxGenerations = 100
	}
	if c.Deploy.SSHUser == "" {
		c.Deploy.SSHUser = "root"
	}
	if c.Deploy.SSHTimeout <= 0 {
		c.Deploy.SSHTimeout = 30 * time.Second
	}
	if c.Deploy.RemoteDir == "" {
		c.Deploy.RemoteDir = "/etc/bird/"
	}
	if c.Deploy.MaxParallel <= 0 {
		c.Deploy.MaxParallel = 1
	}
	if c.Deploy.Lock == "" {
		c.Deploy.Lock = "flock"
	}
	if c.Deploy.ConsulLockKey == "" {
		c.Deploy.ConsulLockKey = "autonet/locks/staging"
	}
}

// Validate is the stage-1 schema gate: required sections present and well
// typed. Its failure is global and aborts the run for every router.
func (c *Config) Validate() model.ValidationResult {
	res := model.ValidationResult{Stage: model.StageSchema, Passed: true}
	fail := func(format string, args ...any) {
		res.Passed = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}
	if c.BuildDir == "" {
		fail("builddir is required")
	}
	if c.StageDir == "" {
		fail("stagedir is required")
	}
	if c.PeeringsURL == "" {
		fail("peerings_url is required")
	}
	if len(c.Mirrors) == 0 {
		fail("datasource_url or datasource_mirrors is required")
	}
	if len(c.IXPMap) == 0 {
		fail("ixp_map must declare at least one exchange")
	}
	for name, ixp := range c.IXPMap {
		if _, err := netip.ParsePrefix(ixp.IPv4Range); err != nil {
			fail("ixp_map.%s.ipv4_range %q: %v", name, ixp.IPv4Range, err)
		}
		if _, err := netip.ParsePrefix(ixp.IPv6Range); err != nil {
			fail("ixp_map.%s.ipv6_range %q: %v", name, ixp.IPv6Range, err)
		}
		if len(ixp.PresentOn) == 0 {
			fail("ixp_map.%s.present_on is empty", name)
		}
	}
	if len(c.BGP) == 0 {
		fail("bgp router map must declare at least one router")
	}
	for name, r := range c.BGP {
		if r.FQDN == "" {
			fail("bgp.%s.fqdn is required", name)
		}
		if r.Vendor == "" {
			fail("bgp.%s.vendor is required", name)
		}
	}
	switch c.LooseFallback {
	case "empty", "permit-any":
	default:
		fail("loose_fallback must be \"empty\" or \"permit-any\", got %q", c.LooseFallback)
	}
	return res
}

// Routers returns the fleet in stable name order.
func (c *Config) Routers() []model.Router {
	names := make([]string, 0, len(c.BGP))
	for name := range c.BGP {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]model.Router, 0, len(names))
	for _, name := range names {
		r := c.BGP[name]
		out = append(out, model.Router{
			Name:             name,
			FQDN:             r.FQDN,
			Vendor:           r.Vendor,
			IPv4:             r.IPv4,
			IPv6:             r.IPv6,
			GracefulShutdown: r.GracefulShutdown,
			Maintenance:      r.Maintenance,
		})
	}
	return out
}

// VendorFor resolves a router FQDN to its configured vendor.
func (c *Config) VendorFor(fqdn string) (string, bool) {
	for _, r := range c.BGP {
		if r.FQDN == fqdn {
			return r.Vendor, true
		}
	}
	return "", false
}

// LocalPrefDefault returns the default local preference for a peer type.
func LocalPrefDefault(peerType string) int {
	switch peerType {
	case "downstream":
		return 500
	case "upstream":
		return 60
	default:
		return 100
	}
}
