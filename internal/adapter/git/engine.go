// Package git is the out-of-core reference adapter that turns a local
// git checkout into the domain.PRContext the orchestrator consumes. It is
// wired from cmd/reviewd rather than from anything under internal/pipeline:
// the core never talks to go-git directly, only to the PRContext it produces.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	formatdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/mprcore/reviewd/internal/domain"
)

// Engine loads diffs out of a local git repository using go-git, falling
// back to the git binary for working-tree status (go-git's worktree status
// plumbing doesn't expose per-path diffs as conveniently as `git diff`).
type Engine struct {
	repoDir string
}

// NewEngine constructs a git engine rooted at repoDir.
func NewEngine(repoDir string) *Engine {
	return &Engine{repoDir: repoDir}
}

// ListChangedFiles implements cache/incremental.VCS: it reports every file
// path touched between fromSHA and toSHA, used to invalidate per-file cache
// entries when a PR is updated after the last review.
func (e *Engine) ListChangedFiles(ctx context.Context, fromSHA, toSHA string) ([]string, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	fromCommit, err := resolveCommit(repo, fromSHA)
	if err != nil {
		return nil, fmt.Errorf("resolve from ref: %w", err)
	}
	toCommit, err := resolveCommit(repo, toSHA)
	if err != nil {
		return nil, fmt.Errorf("resolve to ref: %w", err)
	}

	patch, err := fromCommit.Patch(toCommit)
	if err != nil {
		return nil, fmt.Errorf("compute patch: %w", err)
	}

	paths := make([]string, 0, len(patch.FilePatches()))
	for _, fp := range patch.FilePatches() {
		path, _, _ := diffPathAndStatus(fp)
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// LoadPRContext builds a domain.PRContext from the diff between baseRef and
// headRef. Title, body, author, and labels are caller-supplied metadata
// (this engine only knows about the git object graph, not PR/issue
// tracker state), merged into the returned context.
func (e *Engine) LoadPRContext(ctx context.Context, number int, title, body, author string, draft bool, labels []string, baseRef, headRef string, includeUncommitted bool) (domain.PRContext, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return domain.PRContext{}, fmt.Errorf("open repo: %w", err)
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return domain.PRContext{}, fmt.Errorf("resolve base ref: %w", err)
	}
	headCommit, err := resolveCommit(repo, headRef)
	if err != nil {
		return domain.PRContext{}, fmt.Errorf("resolve head ref: %w", err)
	}

	var files []domain.FileChange
	if includeUncommitted {
		files, err = e.changesAgainstWorkingTree(ctx, baseRef)
	} else {
		files, err = changesFromPatch(baseCommit, headCommit)
	}
	if err != nil {
		return domain.PRContext{}, err
	}

	var diffBuf strings.Builder
	for _, f := range files {
		diffBuf.WriteString(f.Patch)
	}

	return domain.NewPRContext(number, title, body, author, draft, labels, files, diffBuf.String(), baseCommit.Hash.String(), headCommit.Hash.String()), nil
}

// CurrentBranch returns the name of the checked-out branch, used when the
// caller doesn't know headRef ahead of time (local, non-CI invocations).
func (e *Engine) CurrentBranch(ctx context.Context) (string, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return "", fmt.Errorf("detached HEAD")
}

func resolveCommit(repo *goGit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("unable to resolve ref %s", ref)
}

func changesFromPatch(base, head *object.Commit) ([]domain.FileChange, error) {
	patch, err := base.Patch(head)
	if err != nil {
		return nil, fmt.Errorf("compute patch: %w", err)
	}

	changes := make([]domain.FileChange, 0, len(patch.FilePatches()))
	for _, fp := range patch.FilePatches() {
		path, oldPath, status := diffPathAndStatus(fp)
		patchText, err := encodeFilePatch(fp)
		if err != nil {
			return nil, fmt.Errorf("encode patch: %w", err)
		}
		additions, deletions := countPatchLines(patchText)
		changes = append(changes, domain.NewFileChange(path, status, additions, deletions, patchText, oldPath))
	}
	return changes, nil
}

// changesAgainstWorkingTree shells out to git for diffs that include
// uncommitted edits, which go-git's plumbing doesn't expose as unified
// patch text directly against the working tree.
func (e *Engine) changesAgainstWorkingTree(ctx context.Context, baseRef string) ([]domain.FileChange, error) {
	statusOut, err := runGitCommand(ctx, e.repoDir, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	trimmed := strings.TrimRight(statusOut, "\r\n")
	if trimmed == "" {
		return []domain.FileChange{}, nil
	}

	lines := strings.Split(trimmed, "\n")
	changes := make([]domain.FileChange, 0, len(lines))
	for _, line := range lines {
		if len(line) < 3 {
			continue
		}
		statusChar := selectStatusChar(line)
		path, oldPath := extractPathAndOldPath(line)
		patchOut, err := runGitCommand(ctx, e.repoDir, "diff", baseRef, "--", path)
		if err != nil {
			return nil, fmt.Errorf("git diff %s: %w", path, err)
		}
		additions, deletions := countPatchLines(patchOut)
		changes = append(changes, domain.NewFileChange(path, mapGitStatus(statusChar), additions, deletions, patchOut, oldPath))
	}
	return changes, nil
}

func runGitCommand(ctx context.Context, repoDir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repoDir}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %v: %w", args, ctx.Err())
		}
		if stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("git %v: %w", args, err)
	}
	return stdout.String(), nil
}

func selectStatusChar(line string) rune {
	if len(line) < 2 {
		return 'M'
	}
	first, second := rune(line[0]), rune(line[1])
	switch {
	case second != ' ':
		return second
	case first != ' ':
		return first
	default:
		return 'M'
	}
}

func extractPathAndOldPath(line string) (path, oldPath string) {
	if len(line) <= 3 {
		return strings.TrimSpace(line), ""
	}
	pathPart := strings.TrimSpace(line[3:])
	if strings.Contains(pathPart, " -> ") {
		parts := strings.Split(pathPart, " -> ")
		if len(parts) == 2 {
			return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0])
		}
	}
	return pathPart, ""
}

func mapGitStatus(status rune) domain.FileStatus {
	switch status {
	case 'A', '?':
		return domain.FileStatusAdded
	case 'D':
		return domain.FileStatusRemoved
	case 'R':
		return domain.FileStatusRenamed
	default:
		return domain.FileStatusModified
	}
}

// diffPathAndStatus returns the new path, the old path (set only for
// renames), and the domain status for a go-git file patch.
func diffPathAndStatus(fp formatdiff.FilePatch) (path, oldPath string, status domain.FileStatus) {
	from, to := fp.Files()
	switch {
	case from == nil && to != nil:
		return to.Path(), "", domain.FileStatusAdded
	case from != nil && to == nil:
		return from.Path(), "", domain.FileStatusRemoved
	case from != nil && to != nil:
		if from.Path() != to.Path() {
			return to.Path(), from.Path(), domain.FileStatusRenamed
		}
		return to.Path(), "", domain.FileStatusModified
	default:
		return "", "", domain.FileStatusModified
	}
}

func encodeFilePatch(fp formatdiff.FilePatch) (string, error) {
	var buf bytes.Buffer
	encoder := formatdiff.NewUnifiedEncoder(&buf, formatdiff.DefaultContextLines)
	if err := encoder.Encode(singlePatch{fp: fp}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type singlePatch struct {
	fp formatdiff.FilePatch
}

func (s singlePatch) FilePatches() []formatdiff.FilePatch { return []formatdiff.FilePatch{s.fp} }
func (s singlePatch) Message() string                     { return "" }

// countPatchLines counts added/deleted lines in unified patch text, used to
// satisfy NewFileChange's additions/deletions parameters since go-git's
// patch encoder only gives us text, not pre-tallied counts.
func countPatchLines(patchText string) (additions, deletions int) {
	for _, line := range strings.Split(patchText, "\n") {
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}
