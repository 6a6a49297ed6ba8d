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

// Package reporter renders scan and roadmap reports.
package reporter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/autopatch-io/autopatch/pkg/plan"
)

// ReportFormat represents the format of the report
type ReportFormat string

const (
	// JSONFormat represents JSON format
	JSONFormat ReportFormat = "json"
	// TextFormat represents plain text format
	TextFormat ReportFormat = "text"
	// MarkdownFormat represents Markdown format
	MarkdownFormat ReportFormat = "markdown"
)

// tierOrder lists tiers most urgent first, for report rendering.
var tierOrder = []plan.Tier{plan.TierCritical, plan.TierMajor, plan.TierMinor, plan.TierCurrent}

// Reporter is responsible for generating reports
type Reporter struct {
	format ReportFormat
}

// NewReporter creates a new reporter
func NewReporter(format ReportFormat) *Reporter {
	return &Reporter{
		format: format,
	}
}

// GenerateScanReport renders a chart inventory scan report.
func (r *Reporter) GenerateScanReport(report *ScanReport) ([]byte, error) {
	switch r.format {
	case JSONFormat:
		return json.MarshalIndent(report, "", "  ")
	case TextFormat:
		return r.generateTextScanReport(report)
	case MarkdownFormat:
		return r.generateMarkdownScanReport(report)
	default:
		return nil, fmt.Errorf("unsupported report format: %s", r.format)
	}
}

// GenerateRoadmapReport renders a multi-major upgrade roadmap.
func (r *Reporter) GenerateRoadmapReport(report *RoadmapReport) ([]byte, error) {
	switch r.format {
	case JSONFormat:
		return json.MarshalIndent(report, "", "  ")
	case TextFormat:
		return r.generateTextRoadmapReport(report)
	case MarkdownFormat:
		return r.generateMarkdownRoadmapReport(report)
	default:
		return nil, fmt.Errorf("unsupported report format: %s", r.format)
	}
}

func (r *Reporter) generateTextScanReport(report *ScanReport) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("=== CHART VERSION SCAN REPORT ===\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))
	sb.WriteString("\n")

	sb.WriteString("SUMMARY:\n")
	sb.WriteString(fmt.Sprintf("  Total Releases: %d\n", len(report.Releases)))
	for _, tier := range tierOrder {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", tier, report.Counts[tier]))
	}
	sb.WriteString("\n")

	for _, tier := range tierOrder {
		if tier == plan.TierCurrent || report.Counts[tier] == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s PRIORITY:\n", strings.ToUpper(string(tier))))
		for _, rel := range report.Releases {
			if rel.Priority != tier {
				continue
			}
			sb.WriteString(fmt.Sprintf("  %s (%s)\n", rel.Name, rel.Chart))
			sb.WriteString(fmt.Sprintf("    Version: %s -> %s\n", rel.CurrentVersion, rel.LatestVersion))
			if rel.SourceFile != "" {
				sb.WriteString(fmt.Sprintf("    Source: %s\n", rel.SourceFile))
			}
			sb.WriteString("\n")
		}
	}

	if len(report.Failures) > 0 {
		sb.WriteString("UNCLASSIFIED RELEASES:\n")
		for _, f := range report.Failures {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", f.Name, f.Reason))
		}
		sb.WriteString("\n")
	}

	if len(report.Releases) == 0 {
		sb.WriteString("No chart releases found.\n")
	}

	return []byte(sb.String()), nil
}

func (r *Reporter) generateMarkdownScanReport(report *ScanReport) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("# Chart Version Scan Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Priority | Count |\n")
	sb.WriteString("|----------|-------|\n")
	for _, tier := range tierOrder {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", tier, report.Counts[tier]))
	}
	sb.WriteString("\n")

	if len(report.Releases) > 0 {
		sb.WriteString("## Releases\n\n")
		sb.WriteString("| Release | Chart | Current | Latest | Priority |\n")
		sb.WriteString("|---------|-------|---------|--------|----------|\n")
		for _, tier := range tierOrder {
			for _, rel := range report.Releases {
				if rel.Priority != tier {
					continue
				}
				sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
					rel.Name, rel.Chart, rel.CurrentVersion, rel.LatestVersion, rel.Priority))
			}
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No chart releases found.\n\n")
	}

	if len(report.Failures) > 0 {
		sb.WriteString("## Unclassified\n\n")
		for _, f := range report.Failures {
			sb.WriteString(fmt.Sprintf("- `%s`: %s\n", f.Name, f.Reason))
		}
		sb.WriteString("\n")
	}

	return []byte(sb.String()), nil
}

func (r *Reporter) generateTextRoadmapReport(report *RoadmapReport) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("=== UPGRADE ROADMAP ===\n")
	sb.WriteString(fmt.Sprintf("Component: %s\n", report.Component))
	sb.WriteString(fmt.Sprintf("Version: %s -> %s\n", report.Current, report.Latest))
	sb.WriteString(fmt.Sprintf("Steps: %d\n", len(report.Steps)))
	sb.WriteString("\n")

	for _, step := range report.Steps {
		sb.WriteString(fmt.Sprintf("STEP %d: %s -> %s\n", step.Number, step.From, step.To))
		sb.WriteString(fmt.Sprintf("  Branch: %s\n", step.Branch))
		if len(step.Changes) > 0 {
			sb.WriteString("  Breaking changes:\n")
			for _, c := range step.Changes {
				sb.WriteString(fmt.Sprintf("    [%s] %s: %s\n", c.Risk, c.Version, c.Notes))
			}
		} else {
			sb.WriteString("  No known breaking changes.\n")
		}
		sb.WriteString("\n")
	}

	if len(report.Steps) == 0 {
		sb.WriteString("Already at the latest version.\n")
	}

	return []byte(sb.String()), nil
}

func (r *Reporter) generateMarkdownRoadmapReport(report *RoadmapReport) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Upgrade Roadmap: %s\n\n", report.Component))
	sb.WriteString(fmt.Sprintf("Current `%s`, latest `%s`, %d step(s).\n\n", report.Current, report.Latest, len(report.Steps)))

	for _, step := range report.Steps {
		sb.WriteString(fmt.Sprintf("## Step %d: `%s` -> `%s`\n\n", step.Number, step.From, step.To))
		sb.WriteString(fmt.Sprintf("Branch: `%s`\n\n", step.Branch))
		if len(step.Changes) > 0 {
			sb.WriteString("Breaking changes:\n\n")
			for _, c := range step.Changes {
				sb.WriteString(fmt.Sprintf("- **%s** (%s risk): %s\n", c.Version, c.Risk, c.Notes))
			}
			sb.WriteString("\n")
		} else {
			sb.WriteString("No known breaking changes.\n\n")
		}
	}

	if len(report.Steps) == 0 {
		sb.WriteString("Already at the latest version.\n")
	}

	return []byte(sb.String()), nil
}
