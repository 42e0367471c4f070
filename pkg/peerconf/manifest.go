// Package peerconf turns the peerings manifest into concrete peer records
// and assembles the per-router artifact trees out of rendered sessions and
// prefix filters.
package peerconf

import (
	"fmt"
	"net/netip"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"autonet/pkg/config"
	"autonet/pkg/errdefs"
	"autonet/pkg/irr"
	"autonet/pkg/model"
)

// ManifestEntry is one ASN's stanza in the peerings document.
type ManifestEntry struct {
	Description        string   `yaml:"description"`
	Import             string   `yaml:"import"` // space-separated AS-SETs, or "ANY"
	Export             string   `yaml:"export"` // "ANY" announces the full table
	Type               string   `yaml:"type"`   // upstream|peer|downstream
	OnlyWith           []string `yaml:"only_with"`
	PrivatePeerings    []string `yaml:"private_peerings"`
	NotWith            []string `yaml:"not_with"`
	OnlyOn             []string `yaml:"only_on"`
	NotOn              []string `yaml:"not_on"`
	IPv4Limit          int      `yaml:"ipv4_limit"`
	IPv6Limit          int      `yaml:"ipv6_limit"`
	GTSM               bool     `yaml:"gtsm"`
	Multihop           bool     `yaml:"multihop"`
	BlackholeAccept    bool     `yaml:"blackhole_accept"`
	BlackholeCommunity []string `yaml:"blackhole_community"`
	IRROrder           string   `yaml:"irr_order"`
}

// ParseManifest decodes the peerings YAML document, keyed by "AS<number>".
func ParseManifest(raw []byte) (map[string]ManifestEntry, error) {
	var doc map[string]ManifestEntry
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse peerings manifest: %w: %v", errdefs.ErrConfiguration, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("peerings manifest is empty: %w", errdefs.ErrConfiguration)
	}
	return doc, nil
}

// Default per-session max-prefix limits when neither the manifest nor the
// data source provides one.
const (
	defaultLimitV4 = 10000
	defaultLimitV6 = 1000
)

// BuildPeerRecords merges the manifest with discovered sessions and
// max-prefix data into immutable per-run records. Entries that fail
// validation are logged and skipped; one bad stanza never aborts the run.
func BuildPeerRecords(manifest map[string]ManifestEntry, sessions map[int][]string,
	maxPrefixes map[string]map[int]int, passwords map[string]string, log *zap.Logger) []model.PeerRecord {

	var out []model.PeerRecord
	for asn, entry := range manifest {
		asnNum, err := irr.ParseASN(asn)
		if err != nil {
			log.Error("invalid ASN in manifest, skipping", zap.String("asn", asn), zap.Error(err))
			continue
		}
		rec := model.PeerRecord{
			ASN:                asn,
			Description:        entry.Description,
			PeerType:           peerType(entry),
			IRROrder:           entry.IRROrder,
			GTSM:               entry.GTSM,
			Multihop:           entry.Multihop,
			BlackholeAccept:    entry.BlackholeAccept,
			BlackholeCommunity: entry.BlackholeCommunity,
			Password:           passwords[asn],
			NoFilter:           entry.Import == "ANY",
			ExportFullTable:    entry.Export == "ANY",
			Routers:            entry.OnlyOn,
			NotOn:              entry.NotOn,
		}
		if len(rec.BlackholeCommunity) == 0 && rec.BlackholeAccept {
			rec.BlackholeCommunity = []string{"65535:666"}
		}
		if !rec.NoFilter {
			ok := true
			for _, set := range strings.Fields(entry.Import) {
				if !irr.ValidASSet(set) {
					if _, err := irr.ParseASN(set); err != nil {
						log.Error("invalid AS-SET in manifest, skipping peer",
							zap.String("asn", asn), zap.String("asSet", set))
						ok = false
					}
				}
			}
			if !ok {
				continue
			}
			rec.ASSets = strings.Fields(entry.Import)
		}

		rec.SessionIPs = sessionIPs(asn, asnNum, entry, sessions, log)
		if len(rec.SessionIPs) == 0 {
			continue
		}

		rec.Limits = map[int]int{
			4: pickLimit(entry.IPv4Limit, maxPrefixes[asn], 4, defaultLimitV4),
			6: pickLimit(entry.IPv6Limit, maxPrefixes[asn], 6, defaultLimitV6),
		}
		out = append(out, rec)
	}
	return out
}

func peerType(entry ManifestEntry) string {
	if entry.Type != "" {
		return entry.Type
	}
	return "peer"
}

// sessionIPs resolves the neighbor addresses: an explicit only_with list
// wins, then private peerings, then the discovered exchange sessions minus
// any not_with exclusions.
func sessionIPs(asn string, asnNum uint32, entry ManifestEntry, discovered map[int][]string, log *zap.Logger) []string {
	var candidates []string
	switch {
	case len(entry.OnlyWith) > 0:
		candidates = entry.OnlyWith
	case len(entry.PrivatePeerings) > 0:
		candidates = entry.PrivatePeerings
	default:
		candidates = discovered[int(asnNum)]
	}

	excluded := make(map[string]bool, len(entry.NotWith))
	for _, ip := range entry.NotWith {
		if _, err := netip.ParseAddr(ip); err != nil {
			log.Error("invalid address in not_with", zap.String("asn", asn), zap.String("ip", ip))
			continue
		}
		excluded[ip] = true
	}

	var out []string
	for _, ip := range candidates {
		if _, err := netip.ParseAddr(ip); err != nil {
			log.Error("invalid session address", zap.String("asn", asn), zap.String("ip", ip))
			continue
		}
		if !excluded[ip] {
			out = append(out, ip)
		}
	}
	return out
}

func pickLimit(explicit int, discovered map[int]int, afi, fallback int) int {
	if explicit > 0 {
		return explicit
	}
	if v, ok := discovered[afi]; ok && v > 0 {
		return v
	}
	return fallback
}

// ApplyGroupSettings folds per-exchange and per-exchange-router overrides
// from the governing document onto a flattened session. The more specific
// "<ixp>-<router>" key only raises flags, never clears them.
func ApplyGroupSettings(info *model.PeerInfo, cfg *config.Config, ixp, router string) {
	apply := func(gs config.GroupSettings) {
		if gs.AdminDownState {
			info.AdminDown = true
		}
		if gs.GracefulShutdown {
			info.GracefulShutdown = true
		}
		if gs.BlockImportExport {
			info.BlockImportExport = true
		}
	}
	if gs, ok := cfg.BGPGroups[ixp]; ok {
		apply(gs)
	}
	shortRouter := strings.SplitN(router, ".", 2)[0]
	if gs, ok := cfg.BGPGroups[ixp+"-"+shortRouter]; ok {
		apply(gs)
	}
}
