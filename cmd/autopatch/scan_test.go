package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopatch-io/autopatch/pkg/dojo"
)

func TestPrintFindingsTableSortsImages(t *testing.T) {
	findings := []dojo.Finding{
		{ID: 3, Title: "CVE-2023-0003", Severity: "High", ComponentName: "zookeeper", ComponentVersion: "3.8.0"},
		{ID: 1, Title: "CVE-2023-0001", Severity: "Critical", ComponentName: "nginx", ComponentVersion: "1.23.1"},
		{ID: 2, Title: "CVE-2023-0002", Severity: "High", ComponentName: "nginx", ComponentVersion: "1.23.1"},
	}

	var buf strings.Builder
	printFindingsTable(&buf, findings)
	out := buf.String()

	nginx := strings.Index(out, "nginx:1.23.1")
	zookeeper := strings.Index(out, "zookeeper:3.8.0")
	require.GreaterOrEqual(t, nginx, 0)
	require.GreaterOrEqual(t, zookeeper, 0)
	assert.Less(t, nginx, zookeeper)

	// Same content prints identically every run.
	var again strings.Builder
	printFindingsTable(&again, findings)
	assert.Equal(t, out, again.String())
}

func TestPrintFindingsTableEmpty(t *testing.T) {
	var buf strings.Builder
	printFindingsTable(&buf, nil)
	assert.Equal(t, "No open findings.\n", buf.String())
}
