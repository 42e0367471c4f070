// Package irr resolves per-ASN prefix filter sets from Internet Routing
// Registries and gates them through RPKI origin validation.
package irr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"os/exec"

	"autonet/pkg/errdefs"
)

// Querier answers one IRR lookup: all prefixes of the given address family
// originated by object (an AS-SET or bare ASN) according to a single source.
type Querier interface {
	Query(ctx context.Context, sourceHost, source, object string, afi int) ([]netip.Prefix, error)
}

// BGPQClient shells out to bgpq3 for IRR resolution.
type BGPQClient struct {
	// Binary defaults to "bgpq3".
	Binary string
}

// Query runs bgpq3 against one source and parses its JSON output.
func (c *BGPQClient) Query(ctx context.Context, sourceHost, source, object string, afi int) ([]netip.Prefix, error) {
	bin := c.Binary
	if bin == "" {
		bin = "bgpq3"
	}
	args := []string{
		"-h", sourceHost,
		"-S", source,
		fmt.Sprintf("-%d", afi),
		"-j", "-l", "prefixes",
		object,
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %v: %w: %v (%s)", bin, args, errdefs.ErrExternalTool, err, stderr.String())
	}
	var out struct {
		Prefixes []struct {
			Prefix string `json:"prefix"`
		} `json:"prefixes"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse %s output for %s: %w", bin, object, err)
	}
	prefixes := make([]netip.Prefix, 0, len(out.Prefixes))
	for _, p := range out.Prefixes {
		pfx, err := netip.ParsePrefix(p.Prefix)
		if err != nil {
			return nil, fmt.Errorf("prefix %q from %s: %w", p.Prefix, object, err)
		}
		prefixes = append(prefixes, pfx)
	}
	return prefixes, nil
}
