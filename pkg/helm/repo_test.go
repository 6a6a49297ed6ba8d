package helm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   []string
	outputs map[string]string
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	cmd := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, cmd)
	for prefix, out := range f.outputs {
		if strings.HasPrefix(cmd, prefix) {
			return []byte(out), nil
		}
	}
	return nil, fmt.Errorf("unexpected command: %s", cmd)
}

func TestRepoClientResolve(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{
		"helm repo add":    "",
		"helm repo update": "",
		"helm search repo vmware-tanzu/velero": `[
			{"name": "vmware-tanzu/velero", "version": "11.2.0", "app_version": "1.16.0"},
			{"name": "vmware-tanzu/velero", "version": "10.1.3", "app_version": "1.15.1"},
			{"name": "vmware-tanzu/velero", "version": "4.3.0", "app_version": "1.11.0"},
			{"name": "vmware-tanzu/velero", "version": "not-a-version", "app_version": ""}
		]`,
	}}
	c := &RepoClient{runner: fr, added: make(map[string]string)}

	r := Release{
		Name:           "velero",
		Chart:          "velero",
		Repository:     "https://vmware-tanzu.github.io/helm-charts",
		CurrentVersion: "4.3.0",
	}
	require.NoError(t, c.Resolve(context.Background(), &r))

	assert.Equal(t, "11.2.0", r.LatestVersion)
	assert.Equal(t, "1.16.0", r.AppVersion)
	// Sorted ascending, invalid entries dropped.
	assert.Equal(t, []string{"4.3.0", "10.1.3", "11.2.0"}, r.KnownVersions)

	// Second resolve against the same repository skips repo add/update.
	calls := len(fr.calls)
	require.NoError(t, c.Resolve(context.Background(), &r))
	assert.Equal(t, calls+1, len(fr.calls))
}

func TestRepoClientResolveNoRepository(t *testing.T) {
	c := &RepoClient{runner: &fakeRunner{}, added: make(map[string]string)}
	r := Release{Name: "local", Chart: "local"}
	require.NoError(t, c.Resolve(context.Background(), &r))
	assert.Empty(t, r.LatestVersion)
}

func TestListCluster(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{
		"helm list": `[
			{"name": "velero", "namespace": "backup", "chart": "velero-5.4.1", "app_version": "1.12.0"},
			{"name": "certs", "namespace": "infra", "chart": "cert-manager-1.12.0", "app_version": "v1.12.0"}
		]`,
	}}
	c := &RepoClient{runner: fr, added: make(map[string]string)}

	releases, err := c.ListCluster(context.Background())
	require.NoError(t, err)
	require.Len(t, releases, 2)
	assert.Equal(t, "velero", releases[0].Chart)
	assert.Equal(t, "5.4.1", releases[0].CurrentVersion)
	assert.Equal(t, "cert-manager", releases[1].Chart)
	assert.Equal(t, "1.12.0", releases[1].CurrentVersion)
}
