package datasource

import (
	"context"
	"encoding/json"
	"fmt"
)

// Floors applied to published max-prefix limits; anything lower is bumped so
// a stale upstream value cannot wedge a session.
const (
	maxPrefixFloorV4 = 100
	maxPrefixFloorV6 = 100
	maxPrefixHeadroom = 1.1
)

type netixlan struct {
	ASN     int    `json:"asn"`
	IPAddr4 string `json:"ipaddr4"`
	IPAddr6 string `json:"ipaddr6"`
}

type netinfo struct {
	ASN           int `json:"asn"`
	InfoPrefixes4 int `json:"info_prefixes4"`
	InfoPrefixes6 int `json:"info_prefixes6"`
}

// Sessions returns every exchange session address per ASN from the netixlan
// resource.
func (c *Client) Sessions(ctx context.Context) (map[int][]string, error) {
	records, err := c.Fetch(ctx, "netixlan", 2000)
	if err != nil {
		return nil, err
	}
	out := make(map[int][]string)
	for _, raw := range records {
		var conn netixlan
		if err := json.Unmarshal(raw, &conn); err != nil {
			return nil, fmt.Errorf("netixlan record: %w", err)
		}
		if conn.ASN == 0 {
			continue
		}
		if conn.IPAddr4 != "" {
			out[conn.ASN] = append(out[conn.ASN], conn.IPAddr4)
		}
		if conn.IPAddr6 != "" {
			out[conn.ASN] = append(out[conn.ASN], conn.IPAddr6)
		}
	}
	return out, nil
}

// MaxPrefixes returns the advertised prefix limits per ASN key ("AS64512")
// from the net resource, with headroom applied and floored.
func (c *Client) MaxPrefixes(ctx context.Context) (map[string]map[int]int, error) {
	records, err := c.Fetch(ctx, "net", DefaultPageSize)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[int]int)
	for _, raw := range records {
		var net netinfo
		if err := json.Unmarshal(raw, &net); err != nil {
			return nil, fmt.Errorf("net record: %w", err)
		}
		if net.ASN == 0 {
			continue
		}
		asn := fmt.Sprintf("AS%d", net.ASN)
		out[asn] = map[int]int{
			4: withHeadroom(net.InfoPrefixes4, maxPrefixFloorV4),
			6: withHeadroom(net.InfoPrefixes6, maxPrefixFloorV6),
		}
	}
	return out, nil
}

func withHeadroom(published, floor int) int {
	if published < floor {
		return floor
	}
	return int(float64(published) * maxPrefixHeadroom)
}
