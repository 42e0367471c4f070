package irr

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

// Validity is the RPKI origin-validation outcome for one announcement.
type Validity int

const (
	// NotFound means no ROA covers the prefix.
	NotFound Validity = iota
	// Valid means a covering ROA authorizes the origin at this length.
	Valid
	// Invalid means covering ROAs exist but none authorizes the origin.
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "notfound"
	}
}

// Validator answers origin validation for a prefix announced by an ASN.
type Validator interface {
	Validate(originASN uint32, prefix netip.Prefix) Validity
}

type roa struct {
	asn       uint32
	prefix    netip.Prefix
	maxLength int
}

// ROATable validates against a static ROA export, such as the JSON produced
// by rpki-client or routinator.
type ROATable struct {
	roas []roa
}

// LoadROAExport reads a ROA export file of the form
// {"roas":[{"asn":"AS64512","prefix":"203.0.113.0/24","maxLength":25}]}.
func LoadROAExport(path string) (*ROATable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roa export: %w", err)
	}
	var doc struct {
		ROAs []struct {
			ASN       string `json:"asn"`
			Prefix    string `json:"prefix"`
			MaxLength int    `json:"maxLength"`
		} `json:"roas"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("roa export %s: %w", path, err)
	}
	table := &ROATable{}
	for _, r := range doc.ROAs {
		asn, err := ParseASN(r.ASN)
		if err != nil {
			return nil, fmt.Errorf("roa export %s: %w", path, err)
		}
		pfx, err := netip.ParsePrefix(r.Prefix)
		if err != nil {
			return nil, fmt.Errorf("roa export %s: prefix %q: %w", path, r.Prefix, err)
		}
		maxLen := r.MaxLength
		if maxLen == 0 {
			maxLen = pfx.Bits()
		}
		table.roas = append(table.roas, roa{asn: asn, prefix: pfx, maxLength: maxLen})
	}
	return table, nil
}

// Validate implements standard origin validation: no covering ROA is
// NotFound; a covering ROA matching the origin within maxLength is Valid;
// covering ROAs that all mismatch are Invalid.
func (t *ROATable) Validate(originASN uint32, prefix netip.Prefix) Validity {
	covered := false
	for _, r := range t.roas {
		if r.prefix.Bits() > prefix.Bits() || !r.prefix.Contains(prefix.Addr()) {
			continue
		}
		covered = true
		if r.asn == originASN && prefix.Bits() <= r.maxLength {
			return Valid
		}
	}
	if !covered {
		return NotFound
	}
	return Invalid
}

// ParseASN converts "AS64512" (case-insensitive) or "64512" to its number,
// rejecting reserved values.
func ParseASN(s string) (uint32, error) {
	trimmed := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "AS")
	n, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("asn %q: %w", s, err)
	}
	// 0, AS_TRANS and the 32-bit max are reserved.
	if n == 0 || n == 23456 || n == 4294967295 {
		return 0, fmt.Errorf("asn %q is reserved", s)
	}
	return uint32(n), nil
}

// ValidASSet reports whether s looks like an AS-SET name, optionally
// hierarchical ("AS64512:AS-CUSTOMERS").
func ValidASSet(s string) bool {
	up := strings.ToUpper(s)
	parts := strings.SplitN(up, ":", 2)
	name := parts[len(parts)-1]
	if len(parts) == 2 {
		if _, err := ParseASN(parts[0]); err != nil {
			return false
		}
	}
	if !strings.HasPrefix(name, "AS-") || len(name) < 4 {
		return false
	}
	for _, r := range name[3:] {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}
