package model

import "time"

// FilterSet is the resolved prefix policy for one ASN and address family.
// Content is a pure function of (asn, asSets, irrOrder, sourceHost, RPKI
// state); sets are replaced wholesale, never mutated in place.
type FilterSet struct {
	ASN         string          `json:"asn"`
	AFI         int             `json:"afi"`
	Prefixes    []string        `json:"prefixes"` // canonical order: address, then mask length
	Source      string          `json:"source"`   // IRR source that answered
	Loose       bool            `json:"loose,omitempty"`
	Dropped     []DroppedPrefix `json:"dropped,omitempty"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// DroppedPrefix records a prefix removed by RPKI origin validation.
type DroppedPrefix struct {
	Prefix string `json:"prefix"`
	Reason string `json:"reason"`
}

// Empty reports whether the set permits nothing.
func (f FilterSet) Empty() bool { return len(f.Prefixes) == 0 }
