// Package slo tracks the vulnerability remediation service level: how many
// findings each run saw, how many were auto-fixable and how many were
// actually fixed. Records are append-only; the SLO percentage is always
// derived, never stored, so a change to the derivation rule cannot drift
// from history.
package slo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is one run's outcome.
type Record struct {
	Timestamp     string   `json:"timestamp"`
	TotalFindings int      `json:"total_findings"`
	AutoFixable   int      `json:"auto_fixable"`
	AutoFixed     int      `json:"auto_fixed"`
	RequestsOpened []string `json:"prs_created,omitempty"`
}

// SLO returns the run's remediation percentage. A run with no findings met
// the objective by definition.
func (r Record) SLO() float64 {
	if r.TotalFindings == 0 {
		return 100.0
	}
	return float64(r.AutoFixed) / float64(r.TotalFindings) * 100
}

// Summary aggregates the whole record history.
type Summary struct {
	TotalRuns     int     `json:"total_runs"`
	TotalFindings int     `json:"total_findings_processed"`
	TotalFixed    int     `json:"total_auto_fixed"`
	AverageSLO    float64 `json:"average_slo"`
	LatestSLO     float64 `json:"latest_slo"`
}

type store struct {
	Records []Record `json:"records"`
	Current *Record  `json:"current"`
}

// Tracker persists run records in a JSON file.
type Tracker struct {
	path string
}

// NewTracker creates a tracker backed by path, creating an empty store on
// first use.
func NewTracker(path string) (*Tracker, error) {
	t := &Tracker{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := t.save(&store{Records: []Record{}}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// StartRun opens a new in-progress record.
func (t *Tracker) StartRun(totalFindings, autoFixable int) (Record, error) {
	data, err := t.load()
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TotalFindings: totalFindings,
		AutoFixable:   autoFixable,
	}
	data.Current = &rec
	if err := t.save(data); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// RecordFix counts one successful fix in the current run.
func (t *Tracker) RecordFix(requestURL string) error {
	data, err := t.load()
	if err != nil {
		return err
	}
	if data.Current == nil {
		return fmt.Errorf("slo: no run in progress")
	}
	data.Current.AutoFixed++
	if requestURL != "" {
		data.Current.RequestsOpened = append(data.Current.RequestsOpened, requestURL)
	}
	return t.save(data)
}

// CompleteRun archives the current record and returns it. A nil record
// means no run was in progress.
func (t *Tracker) CompleteRun() (*Record, error) {
	data, err := t.load()
	if err != nil {
		return nil, err
	}
	if data.Current == nil {
		return nil, nil
	}
	rec := *data.Current
	data.Records = append(data.Records, rec)
	data.Current = nil
	if err := t.save(data); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Current returns the in-progress record, if any.
func (t *Tracker) Current() (*Record, error) {
	data, err := t.load()
	if err != nil {
		return nil, err
	}
	return data.Current, nil
}

// History returns up to limit most recent archived records, oldest first.
func (t *Tracker) History(limit int) ([]Record, error) {
	data, err := t.load()
	if err != nil {
		return nil, err
	}
	records := data.Records
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// Summarize aggregates the archived records.
func (t *Tracker) Summarize() (Summary, error) {
	data, err := t.load()
	if err != nil {
		return Summary{}, err
	}
	s := Summary{TotalRuns: len(data.Records)}
	if len(data.Records) == 0 {
		return s, nil
	}

	var sloSum float64
	for _, r := range data.Records {
		s.TotalFindings += r.TotalFindings
		s.TotalFixed += r.AutoFixed
		sloSum += r.SLO()
	}
	s.AverageSLO = sloSum / float64(len(data.Records))
	s.LatestSLO = data.Records[len(data.Records)-1].SLO()
	return s, nil
}

func (t *Tracker) load() (*store, error) {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		return nil, fmt.Errorf("slo: read %s: %w", t.path, err)
	}
	var data store
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("slo: parse %s: %w", t.path, err)
	}
	return &data, nil
}

// save writes through a temp file and renames so a concurrent reader never
// sees a half-written store.
func (t *Tracker) save(data *store) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.path), ".slo-*")
	if err != nil {
		return fmt.Errorf("slo: temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("slo: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("slo: replace %s: %w", t.path, err)
	}
	return nil
}
