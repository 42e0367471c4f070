package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autonet/pkg/config"
	"autonet/pkg/datasource"
	"autonet/pkg/deploy"
	"autonet/pkg/errdefs"
	"autonet/pkg/irr"
	"autonet/pkg/model"
	"autonet/pkg/peerconf"
	"autonet/pkg/state"
	"autonet/pkg/vendors"
)

// pipeline wires the full generation path: data source, filter generator,
// assembler, with the state store observing every stage.
type pipeline struct {
	runID    string
	cfg      *config.Config
	log      *zap.Logger
	store    state.Store
	registry *vendors.Registry
	source   *datasource.Client
	irr      *irr.Generator
}

type generation struct {
	Peers   []model.PeerRecord
	Filters map[string]map[int]model.FilterSet
	Configs []*model.RouterConfig
}

func newPipeline(cfg *config.Config, log *zap.Logger) (*pipeline, error) {
	p := &pipeline{
		runID: uuid.NewString(),
		cfg:   cfg,
		log:   log,
	}

	store, err := state.Open(state.StoreConfig{
		Backend:      cfg.State.Backend,
		DatabasePath: cfg.State.DatabasePath,
	})
	if err != nil {
		return nil, err
	}
	p.store = store

	cache := datasource.NewCache(cfg.CacheDir, cfg.CacheMaxAge)
	p.source = datasource.New(cfg.Mirrors, cache, log)
	if key, err := config.APIKey("PDB", cfg.PDBAPIKey, log); err == nil {
		p.source.APIKey = key
	} else {
		log.Warn("no data source api key available", zap.Error(err))
	}

	var rpki irr.Validator
	if cfg.RPKI && cfg.ROAExportPath != "" {
		table, err := irr.LoadROAExport(cfg.ROAExportPath)
		if err != nil {
			store.Close()
			return nil, err
		}
		rpki = table
	}
	gen := irr.NewGenerator(&irr.BGPQClient{}, rpki, log)
	gen.LooseFallback = cfg.LooseFallback
	gen.Width = cfg.WorkerWidth
	if err := gen.SetWhitelist(cfg.RPKIWhitelist); err != nil {
		store.Close()
		return nil, err
	}
	p.irr = gen

	p.registry = vendors.DefaultRegistry(log)
	p.registry.Initialize()
	return p, nil
}

func (p *pipeline) Close() {
	if p.store != nil {
		_ = p.store.Close()
	}
}

func (p *pipeline) event(t model.EventType, component, message string, success bool, details map[string]string) {
	err := p.store.AppendEvent(model.Event{
		RunID:     p.runID,
		Timestamp: time.Now(),
		Type:      t,
		Component: component,
		Message:   message,
		Details:   details,
		Success:   success,
	})
	if err != nil {
		p.log.Warn("state store append failed", zap.Error(err))
	}
}

// generate runs ingestion, filter generation, and assembly.
func (p *pipeline) generate(ctx context.Context) (*generation, error) {
	start := time.Now()
	p.event(model.EventGenerationStart, "pipeline", "configuration generation started", true, nil)

	out, err := p.doGenerate(ctx)
	rec := model.GenerationRecord{
		RunID:     p.runID,
		Timestamp: start,
		Duration:  time.Since(start),
		Success:   err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
		p.event(model.EventGenerationFailure, "pipeline", err.Error(), false, nil)
	} else {
		rec.PeerCount = len(out.Peers)
		for _, sets := range out.Filters {
			rec.FilterCount += len(sets)
		}
		if len(out.Configs) > 0 {
			rec.ConfigHash = deploy.ConfigHash(out.Configs[0])
		}
		p.event(model.EventGenerationSuccess, "pipeline",
			fmt.Sprintf("generated %d router configs from %d peers", len(out.Configs), len(out.Peers)), true, nil)
	}
	if terr := p.store.TrackGeneration(rec); terr != nil {
		p.log.Warn("state store generation record failed", zap.Error(terr))
	}
	return out, err
}

func (p *pipeline) doGenerate(ctx context.Context) (*generation, error) {
	manifestDoc, err := p.source.Document(ctx, p.cfg.PeeringsURL)
	if err != nil {
		return nil, err
	}
	manifest, err := peerconf.ParseManifest([]byte(manifestDoc))
	if err != nil {
		return nil, err
	}

	sessions, err := p.source.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	maxPrefixes, err := p.source.MaxPrefixes(ctx)
	if err != nil {
		return nil, err
	}

	peers := peerconf.BuildPeerRecords(manifest, sessions, maxPrefixes, p.cfg.BGPPasswords, p.log)
	p.log.Info("peer records built", zap.Int("peers", len(peers)))

	filters, failures := p.irr.GenerateAll(ctx, peers, p.cfg.IRROrder, p.cfg.IRRSourceHost)
	for asn, ferr := range failures {
		p.log.Error("filter generation failed, excluding peer",
			zap.String("asn", asn), zap.Error(ferr))
		p.event(model.EventGenerationFailure, "irr", ferr.Error(), false, map[string]string{"asn": asn})
	}
	// Peers whose filters could not be generated are excluded from this
	// run's configs; the rest of the fleet proceeds.
	kept := peers[:0:0]
	for _, peer := range peers {
		if _, failed := failures[peer.ASN]; !failed {
			kept = append(kept, peer)
		}
	}

	assembler := peerconf.NewAssembler(p.cfg, p.registry, p.log)
	configs, excluded := assembler.Build(kept, filters)
	// A router whose vendor cannot be resolved is excluded from this run;
	// the rest of the fleet proceeds and the exclusion is recorded.
	for router, berr := range excluded {
		p.event(model.EventGenerationFailure, "assemble", berr.Error(), false, map[string]string{"router": router})
	}
	if len(configs) == 0 && len(excluded) > 0 {
		return nil, fmt.Errorf("no router could be assembled: %w", errdefs.ErrConfiguration)
	}
	return &generation{Peers: kept, Filters: filters, Configs: configs}, nil
}

// runContext applies the configured run-level timeout.
func (p *pipeline) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Deploy.RunTimeout > 0 {
		return context.WithTimeout(parent, p.cfg.Deploy.RunTimeout)
	}
	return context.WithCancel(parent)
}
