package peerconf

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"autonet/pkg/errdefs"
	"autonet/pkg/irr"
	"autonet/pkg/model"
	"autonet/pkg/vendors"
)

// SinglePeerRequest is the input for ad-hoc generation of one peer's
// configuration, outside a full fleet run.
type SinglePeerRequest struct {
	ASN        string
	Vendor     string
	NeighborIP string
	ASSets     []string
	PeerType   string
	Limit      int
	IXP        string
}

// ValidateRequest checks the request fields with the same rules the fleet
// pipeline applies to manifest entries.
func ValidateRequest(req SinglePeerRequest) error {
	if _, err := irr.ParseASN(req.ASN); err != nil {
		return fmt.Errorf("asn %q: %w: %v", req.ASN, errdefs.ErrConfiguration, err)
	}
	if req.NeighborIP != "" {
		if _, err := netip.ParseAddr(req.NeighborIP); err != nil {
			return fmt.Errorf("neighbor address %q: %w: %v", req.NeighborIP, errdefs.ErrConfiguration, err)
		}
	}
	for _, set := range req.ASSets {
		if irr.ValidASSet(set) {
			continue
		}
		if _, err := irr.ParseASN(set); err != nil {
			return fmt.Errorf("as-set %q: %w", set, errdefs.ErrConfiguration)
		}
	}
	switch req.PeerType {
	case "", "peer", "upstream", "downstream":
	default:
		return fmt.Errorf("peer type %q: %w", req.PeerType, errdefs.ErrConfiguration)
	}
	return nil
}

// GenerateSingle renders one peer's session stanza for the given vendor.
func GenerateSingle(registry *vendors.Registry, req SinglePeerRequest) (string, error) {
	if err := ValidateRequest(req); err != nil {
		return "", err
	}
	plugin, err := registry.Resolve(req.Vendor)
	if err != nil {
		return "", err
	}

	afi := 4
	if req.NeighborIP != "" {
		if addr, err := netip.ParseAddr(req.NeighborIP); err == nil && addr.Is6() {
			afi = 6
		}
	}
	peerType := req.PeerType
	if peerType == "" {
		peerType = "peer"
	}
	info := model.PeerInfo{
		ASN:            strings.TrimPrefix(req.ASN, "AS"),
		AFI:            afi,
		PrefixSet:      PrefixSetName(req.ASN, afi),
		LoosePrefixSet: LoosePrefixSetName(req.ASN, afi),
		NeighborIP:     req.NeighborIP,
		Description:    fmt.Sprintf("%s via %s", req.ASN, req.Vendor),
		FilterName:     filterName(req.ASN, afi),
		Limit:          req.Limit,
		PeerType:       peerType,
		IXP:            req.IXP,
	}
	info.NeighborName = vendors.NeighborName(info.ASN, info.IXP, info.NeighborIP)
	vars := model.TemplateVars{GeneratedAt: time.Now().UTC().Format(time.RFC3339)}
	return plugin.GenerateConfig(info, vars)
}
