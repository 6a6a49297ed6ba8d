package dojo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOpenPaginatesAndFilters(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()

	var srv *httptest.Server
	mux.HandleFunc("/api/v2/findings/", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		page := findingsPage{}
		if r.URL.Query().Get("page") == "2" {
			page.Results = []Finding{
				{ID: 3, Title: "CVE-2023-0003", Severity: SeverityMedium, ComponentName: "redis", ComponentVersion: "7.0.0"},
				{ID: 4, Title: "CVE-2023-0004", Severity: SeverityCritical, ComponentName: "node", ComponentVersion: "18.0.0"},
			}
		} else {
			assert.Equal(t, "true", r.URL.Query().Get("active"))
			assert.Equal(t, "false", r.URL.Query().Get("duplicate"))
			assert.Equal(t, "7", r.URL.Query().Get("test__engagement__product"))
			page.Results = []Finding{
				{ID: 1, Title: "CVE-2023-0001", Severity: SeverityCritical, ComponentName: "nginx", ComponentVersion: "1.23.1"},
				{ID: 2, Title: "CVE-2023-0002", Severity: SeverityHigh, ComponentName: "python", ComponentVersion: "3.9.0"},
			}
			page.Next = srv.URL + "/api/v2/findings/?page=2"
		}
		json.NewEncoder(w).Encode(page)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 7)
	findings, err := c.ListOpen(context.Background(), nil)
	require.NoError(t, err)

	// The Medium finding on page 2 is filtered out.
	require.Len(t, findings, 3)
	assert.Equal(t, []int{1, 2, 4}, []int{findings[0].ID, findings[1].ID, findings[2].ID})
	assert.Equal(t, "Token secret", gotAuth)
}

func TestListOpenServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0)
	_, err := c.ListOpen(context.Background(), nil)
	assert.Error(t, err)
}

func TestGetFindingNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0)
	f, err := c.GetFinding(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestCloseFinding(t *testing.T) {
	var gotMethod, gotPath string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
		fmt.Fprint(w, "{}")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0)
	err := c.CloseFinding(context.Background(), 42, "fixed by autopatch")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/v2/findings/42/", gotPath)
	assert.Equal(t, false, payload["active"])
	assert.Equal(t, true, payload["is_mitigated"])
}

func TestGroupByImage(t *testing.T) {
	findings := []Finding{
		{ID: 1, ComponentName: "nginx", ComponentVersion: "1.23.1"},
		{ID: 2, ComponentName: "nginx", ComponentVersion: "1.23.1"},
		{ID: 3, ComponentName: "python"},
		{ID: 4},
	}

	grouped := GroupByImage(findings)
	assert.Len(t, grouped["nginx:1.23.1"], 2)
	assert.Len(t, grouped["python"], 1)
	assert.Len(t, grouped["unknown"], 1)
}
