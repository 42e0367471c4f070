package irr

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"autonet/pkg/errdefs"
	"autonet/pkg/model"
)

// Loose fallback policies for when every IRR source fails. The choice is a
// configuration knob, never hardcoded behavior.
const (
	LooseFallbackEmpty     = "empty"
	LooseFallbackPermitAny = "permit-any"
)

// DefaultCacheTTL matches the refresh interval of the upstream registries.
const DefaultCacheTTL = time.Hour

// Generator produces FilterSets. Generation is a pure function of
// (asn, asSets, irrOrder, sourceHost, RPKI state): identical inputs yield
// byte-identical prefix ordering regardless of worker width or arrival order.
type Generator struct {
	Querier       Querier
	RPKI          Validator // nil disables origin validation
	Whitelist     map[netip.Prefix]bool
	LooseFallback string
	Width         int

	cache *gocache.Cache
	now   func() time.Time
	log   *zap.Logger

	mu sync.Mutex
}

// NewGenerator builds a generator with a TTL result cache keyed by
// (asn, irrOrder, sourceHost, loose).
func NewGenerator(q Querier, rpki Validator, log *zap.Logger) *Generator {
	return &Generator{
		Querier:       q,
		RPKI:          rpki,
		LooseFallback: LooseFallbackEmpty,
		Width:         10,
		cache:         gocache.New(DefaultCacheTTL, 10*time.Minute),
		now:           time.Now,
		log:           log,
	}
}

// SetWhitelist installs the explicit RPKI whitelist; whitelisted prefixes
// are retained even when origin validation says invalid.
func (g *Generator) SetWhitelist(prefixes []string) error {
	wl := make(map[netip.Prefix]bool, len(prefixes))
	for _, p := range prefixes {
		pfx, err := netip.ParsePrefix(p)
		if err != nil {
			return fmt.Errorf("whitelist prefix %q: %w: %v", p, errdefs.ErrConfiguration, err)
		}
		wl[pfx] = true
	}
	g.Whitelist = wl
	return nil
}

// InvalidateCache drops every cached FilterSet.
func (g *Generator) InvalidateCache() { g.cache.Flush() }

// Generate resolves the filter sets (both address families) for one ASN.
// Sources in irrOrder form a fallback chain: the first source returning a
// non-empty successful result wins; results are never merged across sources.
// A chain where every source errored is a filter-generation error (or, with
// loose=true, triggers the configured fallback policy). A chain that
// answered but holds no route objects for an address family yields an empty
// set for that family and is not a failure: an ASN with v4-only objects
// still generates.
func (g *Generator) Generate(ctx context.Context, asn string, asSets []string, irrOrder, sourceHost string, loose bool) (map[int]model.FilterSet, error) {
	origin, err := ParseASN(asn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrFilterGeneration, err)
	}
	key := strings.Join([]string{asn, irrOrder, sourceHost, fmt.Sprint(loose)}, "|")
	if cached, ok := g.cache.Get(key); ok {
		return cached.(map[int]model.FilterSet), nil
	}

	objects := asSets
	if len(objects) == 0 {
		objects = []string{asn}
	}
	sources := splitOrder(irrOrder)

	out := make(map[int]model.FilterSet, 2)
	for _, afi := range []int{4, 6} {
		set, err := g.generateAFI(ctx, origin, asn, objects, sources, sourceHost, afi, loose)
		if err != nil {
			return nil, err
		}
		out[afi] = set
	}
	g.cache.SetDefault(key, out)
	return out, nil
}

func (g *Generator) generateAFI(ctx context.Context, origin uint32, asn string, objects, sources []string, sourceHost string, afi int, loose bool) (model.FilterSet, error) {
	var (
		prefixes []netip.Prefix
		usedSrc  string
		emptySrc string // first source that answered with zero prefixes
		lastErr  error
	)
	for _, src := range sources {
		combined := make([]netip.Prefix, 0)
		failed := false
		for _, obj := range objects {
			got, err := g.Querier.Query(ctx, sourceHost, src, obj, afi)
			if err != nil {
				g.log.Debug("irr source query failed",
					zap.String("source", src),
					zap.String("object", obj),
					zap.Int("afi", afi),
					zap.Error(err))
				lastErr = err
				failed = true
				break
			}
			combined = append(combined, got...)
		}
		if failed {
			continue
		}
		if len(combined) == 0 {
			if emptySrc == "" {
				emptySrc = src
			}
			continue
		}
		prefixes = combined
		usedSrc = src
		break
	}

	if usedSrc == "" {
		if loose {
			return g.looseFallback(asn, afi), nil
		}
		if emptySrc == "" {
			return model.FilterSet{}, fmt.Errorf("asn %s ipv%d: all IRR sources failed: %w: %v", asn, afi, errdefs.ErrFilterGeneration, lastErr)
		}
		// The registry answered; there are simply no route objects for this
		// address family. An empty set rejects everything on that family.
		return model.FilterSet{
			ASN:         asn,
			AFI:         afi,
			Source:      emptySrc,
			GeneratedAt: g.now().UTC(),
		}, nil
	}

	set := model.FilterSet{
		ASN:         asn,
		AFI:         afi,
		Source:      usedSrc,
		GeneratedAt: g.now().UTC(),
	}
	for _, pfx := range canonical(prefixes) {
		if keep, reason := g.admit(origin, pfx); keep {
			set.Prefixes = append(set.Prefixes, pfx.String())
		} else {
			set.Dropped = append(set.Dropped, model.DroppedPrefix{Prefix: pfx.String(), Reason: reason})
		}
	}
	return set, nil
}

// admit applies the RPKI gate: invalid origins are dropped with a recorded
// reason unless explicitly whitelisted.
func (g *Generator) admit(origin uint32, pfx netip.Prefix) (bool, string) {
	if g.Whitelist[pfx] {
		return true, ""
	}
	if g.RPKI == nil {
		return true, ""
	}
	if g.RPKI.Validate(origin, pfx) == Invalid {
		return false, fmt.Sprintf("rpki invalid for origin AS%d", origin)
	}
	return true, ""
}

func (g *Generator) looseFallback(asn string, afi int) model.FilterSet {
	set := model.FilterSet{
		ASN:         asn,
		AFI:         afi,
		Source:      "fallback",
		Loose:       true,
		GeneratedAt: g.now().UTC(),
	}
	if g.LooseFallback == LooseFallbackPermitAny {
		if afi == 4 {
			set.Prefixes = []string{"0.0.0.0/0"}
		} else {
			set.Prefixes = []string{"::/0"}
		}
	}
	g.log.Warn("loose fallback filter emitted",
		zap.String("asn", asn),
		zap.Int("afi", afi),
		zap.String("policy", g.LooseFallback))
	return set
}

// GenerateAll resolves filters for every filterable peer on a bounded worker
// pool. Results are merged by ASN key, not completion order, so the output
// is deterministic for any pool width. A failing peer is excluded and
// reported in the error map; other peers proceed.
func (g *Generator) GenerateAll(ctx context.Context, peers []model.PeerRecord, irrOrder, sourceHost string) (map[string]map[int]model.FilterSet, map[string]error) {
	width := g.Width
	if width < 1 {
		width = 1
	}
	sem := make(chan struct{}, width)
	var wg sync.WaitGroup

	results := make(map[string]map[int]model.FilterSet)
	failures := make(map[string]error)

	for _, peer := range peers {
		if peer.NoFilter {
			continue
		}
		wg.Add(1)
		go func(peer model.PeerRecord) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			order := peer.IRROrder
			if order == "" {
				order = irrOrder
			}
			sets, err := g.Generate(ctx, peer.ASN, peer.ASSets, order, sourceHost, peer.BlackholeAccept)
			g.mu.Lock()
			defer g.mu.Unlock()
			if err != nil {
				failures[peer.ASN] = err
				return
			}
			results[peer.ASN] = sets
		}(peer)
	}
	wg.Wait()
	return results, failures
}

func splitOrder(irrOrder string) []string {
	parts := strings.Split(irrOrder, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// canonical deduplicates and orders prefixes by address, then mask length,
// making output independent of query arrival order.
func canonical(prefixes []netip.Prefix) []netip.Prefix {
	seen := make(map[netip.Prefix]bool, len(prefixes))
	out := make([]netip.Prefix, 0, len(prefixes))
	for _, p := range prefixes {
		p = p.Masked()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Addr().Compare(out[j].Addr()); cmp != 0 {
			return cmp < 0
		}
		return out[i].Bits() < out[j].Bits()
	})
	return out
}
