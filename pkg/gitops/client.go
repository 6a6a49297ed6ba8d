// Package gitops proposes upgrades as change requests: it rewrites
// manifests on a fresh branch, commits, pushes and opens a pull or merge
// request through the platform CLI.
package gitops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autopatch-io/autopatch/pkg/config"
)

// ErrDirtyWorkTree is returned when the repository has uncommitted changes;
// proposing upgrades on top of unrelated edits is never safe.
var ErrDirtyWorkTree = errors.New("gitops: working tree has uncommitted changes")

// ErrNoManifestChanges is returned when none of the repository's manifests
// reference the image being upgraded.
var ErrNoManifestChanges = errors.New("gitops: no manifests reference the image")

// ChangeRequest describes one proposed change.
type ChangeRequest struct {
	// Branch is the head branch. It doubles as the change request's
	// step identifier for the rollout gate.
	Branch string
	Title  string
	Body   string
	Edits  []Edit
	// ChartEdits bump pinned chart versions; applied alongside Edits.
	ChartEdits []ChartEdit
}

// Handle identifies a created change request.
type Handle struct {
	URL          string
	Branch       string
	FilesChanged []string
}

// Client performs git operations against one local clone.
type Client struct {
	cfg    config.GitConfig
	runner runner
	log    *zap.Logger
}

type runner interface {
	run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// NewClient creates a client for the configured repository.
func NewClient(cfg config.GitConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, runner: execRunner{}, log: log}
}

// NewFixBranch generates a unique branch name for a one-off vulnerability
// fix, e.g. "autofix/20240131_142501_1a2b3c4d".
func (c *Client) NewFixBranch() string {
	ts := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%s", c.cfg.BranchPrefix, ts, uuid.NewString()[:8])
}

// ListOpen returns the head branches of all open change requests starting
// with prefix. An empty prefix returns all of them.
func (c *Client) ListOpen(ctx context.Context, prefix string) ([]string, error) {
	var branches []string
	switch c.cfg.Platform {
	case "gitlab":
		out, err := c.runner.run(ctx, c.cfg.RepoPath, "glab", "mr", "list", "--output", "json")
		if err != nil {
			return nil, fmt.Errorf("gitops: list merge requests: %w", err)
		}
		var mrs []struct {
			SourceBranch string `json:"source_branch"`
		}
		if err := json.Unmarshal(out, &mrs); err != nil {
			return nil, fmt.Errorf("gitops: parse glab output: %w", err)
		}
		for _, mr := range mrs {
			branches = append(branches, mr.SourceBranch)
		}
	default:
		out, err := c.runner.run(ctx, c.cfg.RepoPath, "gh", "pr", "list", "--state", "open", "--json", "headRefName")
		if err != nil {
			return nil, fmt.Errorf("gitops: list pull requests: %w", err)
		}
		var prs []struct {
			HeadRefName string `json:"headRefName"`
		}
		if err := json.Unmarshal(out, &prs); err != nil {
			return nil, fmt.Errorf("gitops: parse gh output: %w", err)
		}
		for _, pr := range prs {
			branches = append(branches, pr.HeadRefName)
		}
	}

	if prefix == "" {
		return branches, nil
	}
	filtered := branches[:0]
	for _, b := range branches {
		if strings.HasPrefix(b, prefix) {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}

// Create proposes cr against the main branch: fresh branch off updated
// main, manifest edits, commit, push, change request. The working tree is
// returned to main afterwards even on failure.
func (c *Client) Create(ctx context.Context, cr ChangeRequest) (Handle, error) {
	repo, err := git.PlainOpen(c.cfg.RepoPath)
	if err != nil {
		return Handle{}, fmt.Errorf("gitops: open repo %s: %w", c.cfg.RepoPath, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return Handle{}, fmt.Errorf("gitops: worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return Handle{}, fmt.Errorf("gitops: status: %w", err)
	}
	if !status.IsClean() {
		return Handle{}, ErrDirtyWorkTree
	}

	if err := c.checkoutMain(ctx, wt); err != nil {
		return Handle{}, err
	}
	defer func() {
		// Best effort: leave the clone on main for the next run.
		_ = wt.Checkout(&git.CheckoutOptions{
			Branch: plumbing.NewBranchReferenceName(c.cfg.MainBranch),
		})
	}()

	if err := c.checkoutFresh(repo, wt, cr.Branch); err != nil {
		return Handle{}, err
	}
	c.log.Info("created branch", zap.String("branch", cr.Branch))

	files, err := RewriteImageRefs(c.cfg.RepoPath, cr.Edits)
	if err != nil {
		return Handle{}, err
	}
	chartFiles, err := RewriteChartVersions(c.cfg.RepoPath, cr.ChartEdits)
	if err != nil {
		return Handle{}, err
	}
	files = mergeChanged(files, chartFiles)
	if len(files) == 0 {
		return Handle{}, ErrNoManifestChanges
	}

	for _, f := range files {
		if _, err := wt.Add(f); err != nil {
			return Handle{}, fmt.Errorf("gitops: stage %s: %w", f, err)
		}
	}
	if _, err := wt.Commit(cr.Title, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "autopatch",
			Email: "autopatch@noreply.local",
			When:  time.Now().UTC(),
		},
	}); err != nil {
		return Handle{}, fmt.Errorf("gitops: commit: %w", err)
	}

	refspec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", cr.Branch, cr.Branch))
	if err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: c.cfg.Remote,
		RefSpecs:   []gitconfig.RefSpec{refspec},
	}); err != nil {
		return Handle{}, fmt.Errorf("gitops: push %s: %w", cr.Branch, err)
	}
	c.log.Info("pushed branch", zap.String("branch", cr.Branch), zap.Int("files", len(files)))

	url, err := c.openChangeRequest(ctx, cr)
	if err != nil {
		return Handle{}, err
	}
	c.log.Info("opened change request", zap.String("branch", cr.Branch), zap.String("url", url))

	return Handle{URL: url, Branch: cr.Branch, FilesChanged: files}, nil
}

// checkoutFresh creates branch at the current HEAD. Callers only reach this
// for branches with no open change request, so a local branch that already
// exists is leftover from an interrupted earlier run and is replaced.
func (c *Client) checkoutFresh(repo *git.Repository, wt *git.Worktree, branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	if _, err := repo.Reference(ref, false); err == nil {
		if err := repo.Storer.RemoveReference(ref); err != nil {
			return fmt.Errorf("gitops: drop stale branch %s: %w", branch, err)
		}
		c.log.Warn("replacing stale branch", zap.String("branch", branch))
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: ref,
		Create: true,
	}); err != nil {
		return fmt.Errorf("gitops: create branch %s: %w", branch, err)
	}
	return nil
}

func (c *Client) checkoutMain(ctx context.Context, wt *git.Worktree) error {
	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(c.cfg.MainBranch),
	}); err != nil {
		return fmt.Errorf("gitops: checkout %s: %w", c.cfg.MainBranch, err)
	}
	err := wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    c.cfg.Remote,
		ReferenceName: plumbing.NewBranchReferenceName(c.cfg.MainBranch),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("gitops: pull %s: %w", c.cfg.MainBranch, err)
	}
	return nil
}

func (c *Client) openChangeRequest(ctx context.Context, cr ChangeRequest) (string, error) {
	var out []byte
	var err error
	switch c.cfg.Platform {
	case "gitlab":
		out, err = c.runner.run(ctx, c.cfg.RepoPath, "glab", "mr", "create",
			"--title", cr.Title,
			"--description", cr.Body,
			"--source-branch", cr.Branch,
			"--target-branch", c.cfg.MainBranch,
			"--remove-source-branch")
	default:
		out, err = c.runner.run(ctx, c.cfg.RepoPath, "gh", "pr", "create",
			"--title", cr.Title,
			"--body", cr.Body,
			"--base", c.cfg.MainBranch,
			"--head", cr.Branch)
	}
	if err != nil {
		return "", fmt.Errorf("gitops: create change request for %s: %w", cr.Branch, err)
	}

	// The CLIs print the request URL as the last output line.
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return lines[len(lines)-1], nil
}
