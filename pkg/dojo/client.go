// Package dojo reads vulnerability findings from DefectDojo, either through
// its REST API or straight from its database.
package dojo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Severity levels as DefectDojo reports them.
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
	SeverityLow      = "Low"
	SeverityInfo     = "Info"
)

// Finding is one vulnerability finding.
type Finding struct {
	ID               int    `json:"id"`
	Title            string `json:"title"`
	Severity         string `json:"severity"`
	ComponentName    string `json:"component_name"`
	ComponentVersion string `json:"component_version"`
	FilePath         string `json:"file_path"`
	Description      string `json:"description"`
	Mitigation       string `json:"mitigation"`
	Active           bool   `json:"active"`
	Verified         bool   `json:"verified"`
	Duplicate        bool   `json:"duplicate"`
}

// ImageRef returns "component:version" when both parts are present.
func (f Finding) ImageRef() string {
	if f.ComponentName == "" || f.ComponentVersion == "" {
		return ""
	}
	return f.ComponentName + ":" + f.ComponentVersion
}

// Client talks to the DefectDojo REST API.
type Client struct {
	baseURL   string
	apiKey    string
	productID int
	http      *http.Client
	pageSize  int
}

// NewClient creates a REST client. productID of zero means no product
// filter.
func NewClient(baseURL, apiKey string, productID int) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		productID: productID,
		http:      &http.Client{Timeout: 30 * time.Second},
		pageSize:  100,
	}
}

type findingsPage struct {
	Next    string    `json:"next"`
	Results []Finding `json:"results"`
}

// ListOpen fetches all open, non-duplicate, unmitigated findings matching
// the given severities. An empty severities slice defaults to Critical and
// High.
func (c *Client) ListOpen(ctx context.Context, severities []string) ([]Finding, error) {
	if len(severities) == 0 {
		severities = []string{SeverityCritical, SeverityHigh}
	}
	wanted := make(map[string]struct{}, len(severities))
	for _, s := range severities {
		wanted[s] = struct{}{}
	}

	params := url.Values{}
	params.Set("active", "true")
	params.Set("duplicate", "false")
	params.Set("is_mitigated", "false")
	params.Set("limit", strconv.Itoa(c.pageSize))
	if c.productID > 0 {
		params.Set("test__engagement__product", strconv.Itoa(c.productID))
	}

	next := c.baseURL + "/api/v2/findings/?" + params.Encode()
	var findings []Finding
	for next != "" {
		var page findingsPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, f := range page.Results {
			if _, ok := wanted[f.Severity]; ok {
				findings = append(findings, f)
			}
		}
		next = page.Next
	}
	return findings, nil
}

// GetFinding fetches a single finding; a nil result means it does not exist.
func (c *Client) GetFinding(ctx context.Context, id int) (*Finding, error) {
	u := fmt.Sprintf("%s/api/v2/findings/%d/", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dojo: get finding %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dojo: get finding %d: unexpected status %s", id, resp.Status)
	}

	var f Finding
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("dojo: decode finding %d: %w", id, err)
	}
	return &f, nil
}

// CloseFinding marks a finding mitigated.
func (c *Client) CloseFinding(ctx context.Context, id int, notes string) error {
	payload := map[string]any{
		"active":       false,
		"is_mitigated": true,
	}
	if notes != "" {
		payload["notes"] = []map[string]string{{"entry": notes}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/api/v2/findings/%d/", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dojo: close finding %d: %w", id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dojo: close finding %d: unexpected status %s", id, resp.Status)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dojo: get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dojo: get %s: unexpected status %s", rawURL, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("dojo: decode %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// GroupByImage groups findings by their image reference. Findings without a
// component version fall back to the bare component name.
func GroupByImage(findings []Finding) map[string][]Finding {
	grouped := make(map[string][]Finding)
	for _, f := range findings {
		key := f.ImageRef()
		if key == "" {
			key = f.ComponentName
			if key == "" {
				key = "unknown"
			}
		}
		grouped[key] = append(grouped[key], f)
	}
	return grouped
}
