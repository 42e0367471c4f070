package peerconf

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"autonet/pkg/config"
	"autonet/pkg/errdefs"
	"autonet/pkg/model"
	"autonet/pkg/vendors"
)

// Assembler builds the complete artifact tree for every router in the
// fleet. Output is a pure function of its inputs and the injected clock,
// so unchanged inputs yield byte-identical trees.
type Assembler struct {
	Config   *config.Config
	Registry *vendors.Registry
	Now      func() time.Time
	log      *zap.Logger
}

func NewAssembler(cfg *config.Config, registry *vendors.Registry, log *zap.Logger) *Assembler {
	return &Assembler{Config: cfg, Registry: registry, Now: time.Now, log: log}
}

// filterStanzaRenderer is the optional vendor capability for a per-filter
// stanza emitted once per (router, asn, afi) ahead of the peer stanzas.
type filterStanzaRenderer interface {
	FilterStanza(peer model.PeerInfo) string
}

// PrefixSetName is the vendor-neutral define name for an ASN's strict set.
func PrefixSetName(asn string, afi int) string {
	return fmt.Sprintf("AUTOFILTER_%s_IPV%d", strings.TrimPrefix(asn, "AS"), afi)
}

// LoosePrefixSetName names the blackhole-tolerant variant of a set.
func LoosePrefixSetName(asn string, afi int) string {
	return fmt.Sprintf("LOOSEFILTER_%s_IPV%d", strings.TrimPrefix(asn, "AS"), afi)
}

func filterName(asn string, afi int) string {
	return fmt.Sprintf("peer_in_%s_ipv%d", strings.TrimPrefix(asn, "AS"), afi)
}

// Build renders every router's tree from the peer records and their
// resolved prefix sets. A router with an unknown, not-ready, or render-only
// vendor is excluded and reported in the failures map, keyed by router name;
// the rest of the fleet is still built.
func (a *Assembler) Build(peers []model.PeerRecord, filters map[string]map[int]model.FilterSet) ([]*model.RouterConfig, map[string]error) {
	vars := model.TemplateVars{GeneratedAt: a.Now().UTC().Format(time.RFC3339)}

	// Stable peer order keeps appended files deterministic.
	ordered := append([]model.PeerRecord(nil), peers...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ASN < ordered[j].ASN })

	var out []*model.RouterConfig
	failures := make(map[string]error)
	for _, router := range a.Config.Routers() {
		plugin, err := a.Registry.Resolve(router.Vendor)
		if err != nil {
			failures[router.Name] = err
			a.log.Error("router excluded from build", zap.String("router", router.Name), zap.Error(err))
			continue
		}
		tr, ok := plugin.(vendors.TreeRenderer)
		if !ok {
			failures[router.Name] = fmt.Errorf("vendor %q cannot assemble a full router tree: %w", router.Vendor, errdefs.ErrConfiguration)
			a.log.Error("router excluded from build", zap.String("router", router.Name), zap.Error(failures[router.Name]))
			continue
		}
		rc, err := a.buildRouter(router, plugin, tr, ordered, filters, vars)
		if err != nil {
			failures[router.Name] = err
			a.log.Error("router excluded from build", zap.String("router", router.Name), zap.Error(err))
			continue
		}
		out = append(out, rc)
	}
	return out, failures
}

func (a *Assembler) buildRouter(router model.Router, plugin vendors.Plugin, tr vendors.TreeRenderer,
	peers []model.PeerRecord, filters map[string]map[int]model.FilterSet, vars model.TemplateVars) (*model.RouterConfig, error) {

	rc := &model.RouterConfig{
		RouterID:        router.Name,
		FQDN:            router.FQDN,
		Vendor:          router.Vendor,
		Files:           tr.Skeleton(router, a.Config.RPKIWhitelist, vars),
		ValidationState: model.ValidationPending,
	}

	var peerings4, peerings6 strings.Builder
	seenFilter := make(map[string]bool)
	seenSet := make(map[string]bool)
	sessions := 0

	for _, rec := range peers {
		for _, rawIP := range rec.SessionIPs {
			addr, err := netip.ParseAddr(rawIP)
			if err != nil {
				continue
			}
			ixpName, ixp, ok := a.classify(addr)
			if !ok {
				continue
			}
			if !a.deploysOn(rec, ixpName, ixp, router) {
				continue
			}

			info := a.sessionInfo(rec, addr, ixpName, ixp, router)
			if fr, ok := plugin.(filterStanzaRenderer); ok && !rec.NoFilter {
				key := fmt.Sprintf("%s/%d", rec.ASN, info.AFI)
				if !seenFilter[key] {
					seenFilter[key] = true
					if info.AFI == 4 {
						peerings4.WriteString(fr.FilterStanza(info))
					} else {
						peerings6.WriteString(fr.FilterStanza(info))
					}
				}
			}
			blob, err := plugin.GenerateConfig(info, vars)
			if err != nil {
				return nil, fmt.Errorf("render %s session %s on %s: %w", rec.ASN, rawIP, router.Name, err)
			}
			if info.AFI == 4 {
				peerings4.WriteString(blob)
			} else {
				peerings6.WriteString(blob)
			}
			sessions++

			if !rec.NoFilter {
				if err := a.addFilterFiles(rc, plugin, rec, info.AFI, filters, seenSet); err != nil {
					return nil, err
				}
			}
		}
	}

	rc.Files["peerings/peers.ipv4.conf"] = peerings4.String()
	rc.Files["peerings/peers.ipv6.conf"] = peerings6.String()
	a.log.Info("assembled router config",
		zap.String("router", router.Name),
		zap.String("vendor", router.Vendor),
		zap.Int("sessions", sessions),
		zap.Int("files", len(rc.Files)))
	return rc, nil
}

func (a *Assembler) addFilterFiles(rc *model.RouterConfig, plugin vendors.Plugin, rec model.PeerRecord,
	afi int, filters map[string]map[int]model.FilterSet, seen map[string]bool) error {

	set, ok := filters[rec.ASN][afi]
	if !ok {
		return nil
	}
	name := PrefixSetName(rec.ASN, afi)
	file := fmt.Sprintf("filters/%s-ipv%d.conf", rec.ASN, afi)
	if !seen[file] {
		seen[file] = true
		blob, err := plugin.GenerateFilterSet(name, set)
		if err != nil {
			return fmt.Errorf("filter set %s: %w", name, err)
		}
		rc.Files[file] = blob
	}
	if rec.BlackholeAccept {
		looseFile := fmt.Sprintf("filters/%s-loose-ipv%d.conf", rec.ASN, afi)
		if !seen[looseFile] {
			seen[looseFile] = true
			blob, err := plugin.GenerateFilterSet(LoosePrefixSetName(rec.ASN, afi), set)
			if err != nil {
				return fmt.Errorf("loose filter set %s: %w", rec.ASN, err)
			}
			rc.Files[looseFile] = blob
		}
	}
	return nil
}

// classify maps a session address onto the exchange whose range contains it.
func (a *Assembler) classify(addr netip.Addr) (string, config.IXP, bool) {
	names := make([]string, 0, len(a.Config.IXPMap))
	for name := range a.Config.IXPMap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ixp := a.Config.IXPMap[name]
		rangeStr := ixp.IPv4Range
		if addr.Is6() {
			rangeStr = ixp.IPv6Range
		}
		pfx, err := netip.ParsePrefix(rangeStr)
		if err != nil {
			continue
		}
		if pfx.Contains(addr) {
			return name, ixp, true
		}
	}
	return "", config.IXP{}, false
}

func (a *Assembler) deploysOn(rec model.PeerRecord, ixpName string, ixp config.IXP, router model.Router) bool {
	present := false
	for _, fqdn := range ixp.PresentOn {
		if fqdn == router.FQDN {
			present = true
		}
	}
	if !present {
		return false
	}
	for _, excluded := range rec.NotOn {
		if excluded == ixpName {
			return false
		}
	}
	if len(rec.Routers) > 0 {
		for _, fqdn := range rec.Routers {
			if fqdn == router.FQDN {
				return true
			}
		}
		return false
	}
	return true
}

func (a *Assembler) sessionInfo(rec model.PeerRecord, addr netip.Addr, ixpName string, ixp config.IXP, router model.Router) model.PeerInfo {
	afi := 6
	source := router.IPv6
	if addr.Is4() {
		afi = 4
		source = router.IPv4
	}
	localPref := rec.LocalPref
	if localPref == 0 {
		localPref = ixp.BGPLocalPref
	}
	if localPref == 0 {
		localPref = config.LocalPrefDefault(rec.PeerType)
	}
	info := model.PeerInfo{
		ASN:                strings.TrimPrefix(rec.ASN, "AS"),
		AFI:                afi,
		PrefixSet:          PrefixSetName(rec.ASN, afi),
		LoosePrefixSet:     LoosePrefixSetName(rec.ASN, afi),
		NeighborIP:         addr.String(),
		Description:        rec.Description,
		FilterName:         filterName(rec.ASN, afi),
		Limit:              rec.Limits[afi],
		GTSM:               rec.GTSM,
		Multihop:           rec.Multihop,
		Password:           rec.Password,
		PeerType:           rec.PeerType,
		SourceAddress:      source,
		ExportFullTable:    rec.ExportFullTable,
		IXP:                ixpName,
		IXPCommunity:       ixp.IXPCommunity,
		RPKI:               a.Config.RPKI,
		LocalPref:          localPref,
		GracefulShutdown:   router.GracefulShutdown,
		BlackholeAccept:    rec.BlackholeAccept,
		BlackholeCommunity: rec.BlackholeCommunity,
	}
	info.NeighborName = vendors.NeighborName(info.ASN, ixpName, info.NeighborIP)
	ApplyGroupSettings(&info, a.Config, ixpName, router.FQDN)
	return info
}
