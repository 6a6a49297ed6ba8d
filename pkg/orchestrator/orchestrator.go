// Copyright 2025 Autopatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package orchestrator drives planning runs end to end: it gathers state
// from the collaborators, calls the pure planning functions, and applies
// their decisions through the change-request service. Per-component
// failures are logged and skipped, never abort a run.
package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/autopatch-io/autopatch/pkg/dojo"
	"github.com/autopatch-io/autopatch/pkg/fix"
	"github.com/autopatch-io/autopatch/pkg/gitops"
	"github.com/autopatch-io/autopatch/pkg/helm"
	"github.com/autopatch-io/autopatch/pkg/knowledge"
	"github.com/autopatch-io/autopatch/pkg/slo"
)

// FindingsSource lists open vulnerability findings. Both the REST client
// and the SQL-backed source satisfy it.
type FindingsSource interface {
	ListOpen(ctx context.Context, severities []string) ([]dojo.Finding, error)
}

// ChangeRequestService opens and enumerates change requests.
type ChangeRequestService interface {
	NewFixBranch() string
	ListOpen(ctx context.Context, prefix string) ([]string, error)
	Create(ctx context.Context, cr gitops.ChangeRequest) (gitops.Handle, error)
}

// ReleaseSource produces the chart release inventory for a planning run.
type ReleaseSource interface {
	List(ctx context.Context) ([]helm.Release, error)
}

// ReleaseResolver fills a release's latest and known versions.
type ReleaseResolver interface {
	Resolve(ctx context.Context, r *helm.Release) error
}

// Deps are the collaborators an Orchestrator needs. Findings and Requests
// may be nil for runs that do not use them; Log defaults to zap.NewNop.
type Deps struct {
	Log      *zap.Logger
	Findings FindingsSource
	Requests ChangeRequestService
	Resolver *fix.Resolver
	Tracker  *slo.Tracker
	KB       *knowledge.Base
}

// Orchestrator coordinates one kind of run at a time; it holds no run
// state, so a single instance can serve the CLI, the controller, and the
// web API.
type Orchestrator struct {
	log      *zap.Logger
	findings FindingsSource
	requests ChangeRequestService
	resolver *fix.Resolver
	tracker  *slo.Tracker
	kb       *knowledge.Base
}

// New wires an Orchestrator from its collaborators.
func New(deps Deps) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		log:      log,
		findings: deps.Findings,
		requests: deps.Requests,
		resolver: deps.Resolver,
		tracker:  deps.Tracker,
		kb:       deps.KB,
	}
}
