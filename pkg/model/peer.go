package model

// PeerRecord captures one peering relationship as ingested for a run.
// Records are immutable snapshots; a new run builds a fresh set.
type PeerRecord struct {
	ASN                string         `json:"asn"`
	Description        string         `json:"description"`
	ASSets             []string       `json:"asSets,omitempty"` // empty means filter on the bare ASN
	PeerType           string         `json:"peerType"`         // upstream|peer|downstream
	SessionIPs         []string       `json:"sessionIps"`
	IXP                string         `json:"ixp,omitempty"`
	Routers            []string       `json:"routers,omitempty"` // only_on restriction, full FQDNs
	NotOn              []string       `json:"notOn,omitempty"`   // exchanges to skip
	LocalPref          int            `json:"localPref,omitempty"`
	NoFilter           bool           `json:"noFilter,omitempty"`        // import: ANY
	ExportFullTable    bool           `json:"exportFullTable,omitempty"` // export: ANY
	Limits             map[int]int    `json:"limits,omitempty"`          // address family -> max prefixes
	GTSM               bool           `json:"gtsm,omitempty"`
	Multihop           bool           `json:"multihop,omitempty"`
	Password           string         `json:"-"`
	BlackholeAccept    bool           `json:"blackholeAccept,omitempty"`
	BlackholeCommunity []string       `json:"blackholeCommunity,omitempty"`
	GracefulShutdown   bool           `json:"gracefulShutdown,omitempty"`
	AdminDown          bool           `json:"adminDown,omitempty"`
	BlockImportExport  bool           `json:"blockImportExport,omitempty"`
	IRROrder           string         `json:"irrOrder,omitempty"` // per-peer override of the global chain
}

// PeerInfo is the flattened per-session view handed to vendor plugins.
// It must contain everything a template needs so rendering stays a pure
// function of its inputs.
type PeerInfo struct {
	ASN                string   `json:"asn"` // numeric part only, no "AS" prefix
	AFI                int      `json:"afi"` // 4 or 6
	PrefixSet          string   `json:"prefixSet"`
	LoosePrefixSet     string   `json:"loosePrefixSet"`
	NeighborIP         string   `json:"neighborIp"`
	NeighborName       string   `json:"neighborName"`
	Description        string   `json:"description"`
	FilterName         string   `json:"filterName"`
	Limit              int      `json:"limit"`
	GTSM               bool     `json:"gtsm"`
	Multihop           bool     `json:"multihop"`
	Password           string   `json:"-"`
	PeerType           string   `json:"peerType"`
	SourceAddress      string   `json:"sourceAddress"`
	ExportFullTable    bool     `json:"exportFullTable"`
	IXP                string   `json:"ixp"`
	IXPCommunity       string   `json:"ixpCommunity,omitempty"`
	RPKI               bool     `json:"rpki"`
	AdminDown          bool     `json:"adminDown"`
	BlockImportExport  bool     `json:"blockImportExport"`
	LocalPref          int      `json:"localPref"`
	GracefulShutdown   bool     `json:"gracefulShutdown"`
	BlackholeAccept    bool     `json:"blackholeAccept"`
	BlackholeCommunity []string `json:"blackholeCommunity,omitempty"`
}

// TemplateVars carries run-wide values shared by every rendered session.
type TemplateVars struct {
	LocalASN    string            `json:"localAsn"`
	RouterID    string            `json:"routerId"`
	GeneratedAt string            `json:"generatedAt"`
	Extra       map[string]string `json:"extra,omitempty"`
}
