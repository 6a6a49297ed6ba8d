package main

import (
	"go.uber.org/zap"

	"github.com/autopatch-io/autopatch/pkg/config"
	"github.com/autopatch-io/autopatch/pkg/dojo"
	"github.com/autopatch-io/autopatch/pkg/fix"
	"github.com/autopatch-io/autopatch/pkg/gitops"
	"github.com/autopatch-io/autopatch/pkg/knowledge"
	"github.com/autopatch-io/autopatch/pkg/orchestrator"
	"github.com/autopatch-io/autopatch/pkg/slo"
)

// newFindingsSource picks the DefectDojo access path: direct database when a
// DSN is configured, REST otherwise.
func newFindingsSource(cfg *config.Config) (orchestrator.FindingsSource, func() error, error) {
	if err := cfg.RequireDojo(); err != nil {
		return nil, nil, err
	}
	if cfg.DefectDojo.DSN != "" {
		src, err := dojo.OpenSQLSource(cfg.DefectDojo.DSN, cfg.DefectDojo.ProductID)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	}
	client := dojo.NewClient(cfg.DefectDojo.URL, cfg.DefectDojo.APIKey, cfg.DefectDojo.ProductID)
	return client, func() error { return nil }, nil
}

func newResolver(cfg *config.Config, kb *knowledge.Base) *fix.Resolver {
	var opts []fix.Option
	if cfg.PatchBumpStep > 0 {
		opts = append(opts, fix.WithPatchBumpStep(cfg.PatchBumpStep))
	}
	return fix.NewResolver(kb, opts...)
}

// newFixOrchestrator wires everything a scan-and-fix run needs. The
// returned closer releases the findings source.
func newFixOrchestrator(cfg *config.Config, log *zap.Logger) (*orchestrator.Orchestrator, *slo.Tracker, func() error, error) {
	kb, err := loadKnowledge(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	findings, closeFindings, err := newFindingsSource(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	tracker, err := slo.NewTracker(cfg.SLOPath)
	if err != nil {
		closeFindings()
		return nil, nil, nil, err
	}

	orch := orchestrator.New(orchestrator.Deps{
		Log:      log,
		Findings: findings,
		Requests: gitops.NewClient(cfg.Git, log),
		Resolver: newResolver(cfg, kb),
		Tracker:  tracker,
		KB:       kb,
	})
	return orch, tracker, closeFindings, nil
}

// newPlanOrchestrator wires a chart planning run; no findings source.
func newPlanOrchestrator(cfg *config.Config, log *zap.Logger) (*orchestrator.Orchestrator, error) {
	kb, err := loadKnowledge(cfg)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.Deps{
		Log:      log,
		Requests: gitops.NewClient(cfg.Git, log),
		Resolver: newResolver(cfg, kb),
		KB:       kb,
	}), nil
}
