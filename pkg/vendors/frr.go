package vendors

import (
	"fmt"
	"strings"

	"autonet/pkg/model"
)

// FRR renders configuration in FRRouting vtysh syntax.
type FRR struct {
	Binary  string
	checker Checker
}

func NewFRR() *FRR {
	f := &FRR{Binary: "vtysh"}
	f.checker = ExecChecker{Binary: f.Binary, Args: []string{"-C", "-f"}}
	return f
}

func (f *FRR) Name() string { return "frr" }

func (f *FRR) Initialize() error { return lookPath(f.Binary) }

func (f *FRR) ValidateConfig(path string) error { return f.checker.Check(path) }

// GenerateConfig renders the neighbor block for one peer session. The
// enclosing "router bgp <asn>" stanza is emitted once per router by the
// assembly layer, so this stays a pure per-session fragment.
func (f *FRR) GenerateConfig(peer model.PeerInfo, vars model.TemplateVars) (string, error) {
	if peer.NeighborIP == "" {
		return "", fmt.Errorf("peer AS%s: neighbor address missing", peer.ASN)
	}
	var b strings.Builder
	fmt.Fprintf(&b, " ! AS%s at %s\n", peer.ASN, peer.IXP)
	fmt.Fprintf(&b, " neighbor %s remote-as %s\n", peer.NeighborIP, peer.ASN)
	fmt.Fprintf(&b, " neighbor %s description %s\n", peer.NeighborIP, peer.Description)
	if peer.SourceAddress != "" {
		fmt.Fprintf(&b, " neighbor %s update-source %s\n", peer.NeighborIP, peer.SourceAddress)
	}
	if peer.Multihop {
		fmt.Fprintf(&b, " neighbor %s ebgp-multihop 255\n", peer.NeighborIP)
	}
	if peer.GTSM {
		fmt.Fprintf(&b, " neighbor %s ttl-security hops 1\n", peer.NeighborIP)
	}
	if peer.Password != "" {
		fmt.Fprintf(&b, " neighbor %s password %s\n", peer.NeighborIP, peer.Password)
	}
	if peer.GracefulShutdown {
		fmt.Fprintf(&b, " neighbor %s graceful-shutdown\n", peer.NeighborIP)
	}
	if peer.AdminDown {
		fmt.Fprintf(&b, " neighbor %s shutdown\n", peer.NeighborIP)
	}
	fmt.Fprintf(&b, " address-family ipv%d unicast\n", peer.AFI)
	fmt.Fprintf(&b, "  neighbor %s activate\n", peer.NeighborIP)
	switch {
	case peer.BlockImportExport:
		fmt.Fprintf(&b, "  neighbor %s prefix-list deny-all in\n", peer.NeighborIP)
		fmt.Fprintf(&b, "  neighbor %s prefix-list deny-all out\n", peer.NeighborIP)
	default:
		fmt.Fprintf(&b, "  neighbor %s prefix-list %s in\n", peer.NeighborIP, peer.PrefixSet)
		if peer.ExportFullTable {
			fmt.Fprintf(&b, "  neighbor %s route-map export-full-table out\n", peer.NeighborIP)
		} else {
			fmt.Fprintf(&b, "  neighbor %s route-map export-customer-routes out\n", peer.NeighborIP)
		}
	}
	if peer.Limit > 0 {
		fmt.Fprintf(&b, "  neighbor %s maximum-prefix %d restart 15\n", peer.NeighborIP, peer.Limit)
	}
	if peer.LocalPref > 0 {
		fmt.Fprintf(&b, "  neighbor %s route-map localpref-%d in\n", peer.NeighborIP, peer.LocalPref)
	}
	b.WriteString(" exit-address-family\n!\n")
	return b.String(), nil
}

// GenerateFilterSet renders a resolved prefix set as an FRR prefix-list.
func (f *FRR) GenerateFilterSet(name string, set model.FilterSet) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "! %s for %s ipv%d via %s\n", name, set.ASN, set.AFI, set.Source)
	kw := "ip"
	if set.AFI == 6 {
		kw = "ipv6"
	}
	if set.Empty() {
		fmt.Fprintf(&b, "%s prefix-list %s seq 5 deny any\n", kw, name)
		return b.String(), nil
	}
	seq := 5
	for _, p := range set.Prefixes {
		fmt.Fprintf(&b, "%s prefix-list %s seq %d permit %s\n", kw, name, seq, p)
		seq += 5
	}
	fmt.Fprintf(&b, "%s prefix-list %s seq %d deny any\n", kw, name, seq)
	return b.String(), nil
}
