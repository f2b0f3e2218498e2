package sync

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDestination keeps a snapshot file in a local git clone. Each write that
// changes the file becomes one commit, pushed to the remote branch.
type GitDestination struct {
	repo   string
	file   string
	branch string
	remote string
}

// NewGitDestination returns a destination for file (relative to the clone
// at repo) on branch, pushing to origin.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch, remote: "origin"}
}

func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if _, err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// A fresh remote has no branch to pull yet.
	_, _ = d.git(ctx, "pull", "--ff-only", d.remote, d.branch)

	if err := NewFileDestination(filepath.Join(d.repo, d.file)).Write(ctx, data); err != nil {
		return err
	}
	if _, err := d.git(ctx, "add", "--", d.file); err != nil {
		return err
	}
	status, err := d.git(ctx, "status", "--porcelain", "--", d.file)
	if err != nil {
		return err
	}
	if status == "" {
		return nil
	}
	if _, err := d.git(ctx, "commit", "-m", commitMessage(data), "--", d.file); err != nil {
		return err
	}
	_, err = d.git(ctx, "push", d.remote, d.branch)
	return err
}

func (d *GitDestination) String() string { return "git:" + d.repo + ":" + d.file }

// git runs one git subcommand in the clone and returns its trimmed output.
// On failure the output becomes part of the error.
func (d *GitDestination) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", d.repo}, args...)...)
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		if text == "" {
			return "", fmt.Errorf("git %s: %w", args[0], err)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, text)
	}
	return text, nil
}

// commitMessage names the exported table using the snapshot's header line.
func commitMessage(data []byte) string {
	h, ok := readHeader(data)
	if !ok || h.Table == "" {
		return "export: update table snapshot"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "export: %s/%s (%d records)", h.BaseID, h.Table, h.RecordCount)
	if len(h.Fields) > 0 {
		b.WriteString("\n\nFields:")
		for _, f := range h.Fields {
			b.WriteString("\n- " + f)
		}
	}
	return b.String()
}
