package vendors

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"autonet/pkg/model"
)

// Bird renders configuration for the BIRD routing daemon, the fully
// supported vendor family.
type Bird struct {
	Binary  string
	checker Checker
}

// NewBird builds the plugin with the stock binary locations.
func NewBird() *Bird {
	b := &Bird{Binary: "bird"}
	b.checker = ExecChecker{Binary: b.Binary, Args: []string{"-p", "-c"}}
	return b
}

func (b *Bird) Name() string { return "bird" }

func (b *Bird) Initialize() error { return lookPath(b.Binary) }

func (b *Bird) ValidateConfig(path string) error { return b.checker.Check(path) }

func (b *Bird) Layout() TreeLayout {
	return TreeLayout{
		EntryFile: "bird.conf",
		Essential: []string{
			"header-ipv4.conf",
			"header-ipv6.conf",
			"interfaces-ipv4.conf",
			"interfaces-ipv6.conf",
			"peerings/peers.ipv4.conf",
			"peerings/peers.ipv6.conf",
		},
	}
}

// Skeleton is the static file set every router tree starts from. The
// assembly layer fills in the peerings and filters trees afterwards.
func (b *Bird) Skeleton(router model.Router, rpkiWhitelist []string, vars model.TemplateVars) map[string]string {
	return map[string]string{
		"bird.conf": strings.Join([]string{
			fmt.Sprintf("# %s", router.FQDN),
			`include "header-ipv4.conf";`,
			`include "header-ipv6.conf";`,
			`include "interfaces-ipv4.conf";`,
			`include "interfaces-ipv6.conf";`,
			`include "rpki/whitelist.conf";`,
			`include "filters/*.conf";`,
			`include "peerings/peers.ipv4.conf";`,
			`include "peerings/peers.ipv6.conf";`,
			`include "zz-timestamp.conf";`,
			"",
		}, "\n"),
		"header-ipv4.conf": fmt.Sprintf("router id %s;\nlog syslog all;\n", router.IPv4),
		"header-ipv6.conf": fmt.Sprintf("# ipv6 header for %s\n", router.FQDN),
		"interfaces-ipv4.conf": "protocol device { scan time 10; }\n" +
			"protocol direct { ipv4; }\nprotocol kernel { ipv4 { export all; }; }\n",
		"interfaces-ipv6.conf": "protocol direct { ipv6; }\nprotocol kernel { ipv6 { export all; }; }\n",
		"rpki/whitelist.conf":  b.whitelistFile(rpkiWhitelist),
		"zz-timestamp.conf":    fmt.Sprintf("# generated %s\n", vars.GeneratedAt),
	}
}

func (b *Bird) whitelistFile(prefixes []string) string {
	var w strings.Builder
	w.WriteString("# origin-validation whitelist\n")
	if len(prefixes) == 0 {
		w.WriteString("define RPKI_WHITELIST = [ ];\n")
		return w.String()
	}
	sorted := append([]string(nil), prefixes...)
	sort.Strings(sorted)
	w.WriteString("define RPKI_WHITELIST = [\n")
	for i, p := range sorted {
		sep := ","
		if i == len(sorted)-1 {
			sep = ""
		}
		fmt.Fprintf(&w, "\t%s%s\n", p, sep)
	}
	w.WriteString("];\n")
	return w.String()
}

// GenerateConfig renders the protocol stanza for one peer session.
func (b *Bird) GenerateConfig(peer model.PeerInfo, vars model.TemplateVars) (string, error) {
	if peer.NeighborIP == "" {
		return "", fmt.Errorf("peer AS%s: neighbor address missing", peer.ASN)
	}
	var w strings.Builder
	name := NeighborName(peer.ASN, peer.IXP, peer.NeighborIP)
	fmt.Fprintf(&w, "# AS%s at %s (%s)\n", peer.ASN, peer.IXP, peer.NeighborIP)
	fmt.Fprintf(&w, "protocol bgp %s {\n", name)
	fmt.Fprintf(&w, "\tneighbor %s as %s;\n", peer.NeighborIP, peer.ASN)
	fmt.Fprintf(&w, "\tdescription \"%s\";\n", peer.Description)
	if peer.SourceAddress != "" && !peer.Multihop {
		fmt.Fprintf(&w, "\tsource address %s;\n", peer.SourceAddress)
	}
	if peer.Multihop {
		w.WriteString("\tmultihop;\n")
	}
	if peer.GTSM {
		w.WriteString("\tttl security on;\n")
	}
	if peer.Password != "" {
		fmt.Fprintf(&w, "\tpassword \"%s\";\n", peer.Password)
	}
	if peer.LocalPref > 0 {
		fmt.Fprintf(&w, "\tdefault bgp_local_pref %d;\n", peer.LocalPref)
	}
	if peer.GracefulShutdown {
		w.WriteString("\tgraceful restart;\n")
		for _, c := range CommunitiesFor(peer) {
			fmt.Fprintf(&w, "\t# announce with community (%s)\n", c)
		}
	}
	if peer.AdminDown {
		w.WriteString("\tdisabled;\n")
	}
	switch {
	case peer.BlockImportExport:
		w.WriteString("\timport none;\n")
		w.WriteString("\texport none;\n")
	default:
		fmt.Fprintf(&w, "\timport filter %s;\n", peer.FilterName)
		if peer.ExportFullTable {
			w.WriteString("\texport where ebgp_export_full_table();\n")
		} else {
			w.WriteString("\texport where ebgp_export_customer_routes();\n")
		}
	}
	if peer.Limit > 0 {
		fmt.Fprintf(&w, "\timport limit %d action restart;\n", peer.Limit)
	}
	w.WriteString("}\n")
	return w.String(), nil
}

// FilterStanza renders the import filter for one peer session, tying the
// prefix set and origin check together. Emitted once per (router, asn, afi).
func (b *Bird) FilterStanza(peer model.PeerInfo) string {
	var w strings.Builder
	fmt.Fprintf(&w, "filter %s {\n", peer.FilterName)
	if peer.RPKI {
		fmt.Fprintf(&w, "\tif (roa_check(roas, net, %s) = ROA_INVALID) then reject;\n", peer.ASN)
	}
	fmt.Fprintf(&w, "\tif bgp_path.first != %s then reject;\n", peer.ASN)
	fmt.Fprintf(&w, "\tif ! (net ~ %s) then reject;\n", peer.PrefixSet)
	if peer.BlackholeAccept {
		for _, comm := range peer.BlackholeCommunity {
			fmt.Fprintf(&w, "\tif (%s) ~ bgp_community && net ~ %s then accept;\n", strings.Replace(comm, ":", ",", 1), peer.LoosePrefixSet)
		}
	}
	w.WriteString("\taccept;\n}\n")
	return w.String()
}

// GenerateFilterSet renders a resolved prefix set as a BIRD define.
func (b *Bird) GenerateFilterSet(name string, set model.FilterSet) (string, error) {
	var w strings.Builder
	fmt.Fprintf(&w, "# %s for %s ipv%d via %s, generated %s\n",
		name, set.ASN, set.AFI, set.Source, set.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"))
	for _, d := range set.Dropped {
		fmt.Fprintf(&w, "# dropped %s: %s\n", d.Prefix, d.Reason)
	}
	if set.Empty() {
		fmt.Fprintf(&w, "# set is empty; sessions referencing %s reject all routes\n", name)
		fmt.Fprintf(&w, "define %s = [ ];\n", name)
		return w.String(), nil
	}
	fmt.Fprintf(&w, "define %s = [\n", name)
	for i, p := range set.Prefixes {
		sep := ","
		if i == len(set.Prefixes)-1 {
			sep = ""
		}
		fmt.Fprintf(&w, "\t%s%s\n", p, sep)
	}
	w.WriteString("];\n")
	return w.String(), nil
}

// NeighborName derives the stable protocol name for a session: the ASN, the
// exchange, and a short base36 digest of the neighbor address.
func NeighborName(asn, ixp, neighborIP string) string {
	sum := sha256.Sum256([]byte(neighborIP))
	digest := new(big.Int).SetBytes(sum[:]).Text(36)
	if len(digest) > 6 {
		digest = digest[:6]
	}
	ixp = strings.ReplaceAll(ixp, "-", "")
	return fmt.Sprintf("peer_%s_%s_%s", asn, ixp, digest)
}
