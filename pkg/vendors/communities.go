package vendors

import "autonet/pkg/model"

// Well-known BGP communities attached by the generated policies.
const (
	CommunityGracefulShutdown = "65535:0"   // RFC 8326
	CommunityBlackhole        = "65535:666" // RFC 7999
	CommunityNoExport         = "65535:65281"
)

// Informational ingress-tagging communities by relationship. The route-maps
// referencing them are part of the static header files, not per-peer output.
var peerTypeCommunity = map[string]string{
	"upstream":   "65000:1000",
	"peer":       "65000:2000",
	"downstream": "65000:3000",
}

// CommunitiesFor lists the communities a session's routes are tagged with.
func CommunitiesFor(peer model.PeerInfo) []string {
	var out []string
	if c, ok := peerTypeCommunity[peer.PeerType]; ok {
		out = append(out, c)
	}
	if peer.IXPCommunity != "" {
		out = append(out, peer.IXPCommunity)
	}
	if peer.GracefulShutdown {
		out = append(out, CommunityGracefulShutdown)
	}
	return out
}

// PeerTypes lists the relationship kinds with a defined tagging community.
func PeerTypes() []string {
	return []string{"downstream", "peer", "upstream"}
}
