package repository

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultBranch = "main"

	fileDefaultMode = 0o644
	dirDefaultMode  = 0o755

	// git log field separator (unit separator char). Records are NUL
	// terminated via `git log -z`: a commit message can carry any byte but
	// NUL, so only the message field needs to be last.
	logFieldSep  = "\x1f"
	logRecordSep = "\x00"
	logFormat    = "%H" + logFieldSep + "%P" + logFieldSep + "%an" + logFieldSep + "%ae" + logFieldSep + "%aI" + logFieldSep + "%B"
)

// RawCommit is a commit descriptor as read from the underlying repository.
type RawCommit struct {
	SHA         string
	Parents     []string
	AuthorName  string
	AuthorEmail string
	AuthoredAt  time.Time
	Message     string
}

// TreeEntry is a single entry of a commit's flattened tree.
// Mode is always 6 octal digits, Object is a 40 lowercase hex sha and
// Path never starts with a slash.
type TreeEntry struct {
	Mode   string `json:"mode"`
	Type   string `json:"type"`
	Object string `json:"object"`
	Path   string `json:"path"`
}

// Author identifies the commit author. Always passed explicitly, the
// repository layer holds no ambient user state.
type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// Manager opens per-project working copies under a common root directory.
type Manager struct {
	root string
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

func (m *Manager) RepoPath(projectID string) string {
	return filepath.Join(m.root, projectID)
}

// Open returns a handle to the project's working copy.
// Fails with ErrRepositoryNotFound when no working copy exists.
func (m *Manager) Open(projectID string) (*Repository, error) {
	dir := m.RepoPath(projectID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, projectID)
	}
	if _, err := git(dir, "rev-parse", "--is-inside-work-tree"); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, projectID)
	}
	return &Repository{dir: dir}, nil
}

// Init creates a new working copy for the project with the default branch.
func (m *Manager) Init(projectID string) (*Repository, error) {
	dir := m.RepoPath(projectID)
	if err := os.MkdirAll(dir, dirDefaultMode); err != nil {
		return nil, err
	}
	if out, err := git(dir, "init", "-b", DefaultBranch); err != nil {
		return nil, fmt.Errorf("%s: %w", strings.TrimSpace(out), ErrGitError)
	}
	return &Repository{dir: dir}, nil
}

// Repository is a thin wrapper over a local git working copy.
type Repository struct {
	dir string
}

func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func (r *Repository) git(args ...string) (string, error) {
	out, err := git(r.dir, args...)
	if err != nil {
		return out, fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(out), ErrGitError)
	}
	return out, nil
}

func (r *Repository) Dir() string {
	return r.dir
}

// Head returns the sha of the current HEAD commit.
func (r *Repository) Head() (string, error) {
	out, err := r.git("rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CheckoutCommit checks out the given commit, detached.
func (r *Repository) CheckoutCommit(sha string) error {
	_, err := r.git("checkout", "--detach", sha)
	return err
}

// CheckoutDefault checks out the default branch and fast-forwards it when a
// remote is configured. A missing remote is not an error, local-only
// repositories are the common case.
func (r *Repository) CheckoutDefault() error {
	if _, err := r.git("checkout", DefaultBranch); err != nil {
		return err
	}
	remotes, err := r.git("remote")
	if err != nil {
		return err
	}
	if strings.TrimSpace(remotes) == "" {
		return nil
	}
	_, err = r.git("pull", "--ff-only")
	return err
}

// Log returns commit descriptors reachable from ref, newest first.
// The returned sequence reflects the repository state at call time and is not
// restartable across repository mutation.
func (r *Repository) Log(ref string) ([]RawCommit, error) {
	out, err := git(r.dir, "log", "-z", "--format="+logFormat, ref)
	if err != nil {
		if strings.Contains(out, "does not have any commits yet") {
			return nil, nil
		}
		return nil, fmt.Errorf("git log: %s: %w", strings.TrimSpace(out), ErrGitError)
	}
	var commits []RawCommit
	for _, record := range strings.Split(out, logRecordSep) {
		record = strings.TrimLeft(record, "\n")
		if strings.TrimSpace(record) == "" {
			continue
		}
		fields := strings.SplitN(record, logFieldSep, 6)
		if len(fields) != 6 {
			return nil, fmt.Errorf("malformed log record %q: %w", record, ErrGitError)
		}
		authoredAt, err := time.Parse(time.RFC3339, fields[4])
		if err != nil {
			return nil, fmt.Errorf("parse author date %q: %w", fields[4], ErrGitError)
		}
		var parents []string
		if p := strings.TrimSpace(fields[1]); p != "" {
			parents = strings.Split(p, " ")
		}
		commits = append(commits, RawCommit{
			SHA:         fields[0],
			Parents:     parents,
			AuthorName:  fields[2],
			AuthorEmail: fields[3],
			AuthoredAt:  authoredAt,
			Message:     strings.TrimRight(fields[5], "\n"),
		})
	}
	return commits, nil
}

// Tree returns the flattened tree of the given commit: every blob and tree
// reachable from its root, path qualified. Ordering is deterministic for a
// fixed repository state but not contractually sorted.
func (r *Repository) Tree(sha string) ([]TreeEntry, error) {
	out, err := r.git("ls-tree", "-r", "-t", sha)
	if err != nil {
		return nil, err
	}
	var entries []TreeEntry
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		// format: "<mode> <type> <object>\t<path>"
		meta, path, found := strings.Cut(line, "\t")
		if !found {
			return nil, fmt.Errorf("malformed ls-tree line %q: %w", line, ErrGitError)
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed ls-tree line %q: %w", line, ErrGitError)
		}
		entries = append(entries, TreeEntry{
			Mode:   fields[0],
			Type:   fields[1],
			Object: fields[2],
			Path:   path,
		})
	}
	return entries, nil
}

// ReadFileAt returns the content of path at the given commit without moving HEAD.
func (r *Repository) ReadFileAt(sha, path string) ([]byte, error) {
	out, err := r.git("show", sha+":"+path)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// WriteAndCommit stages the given file set on the default branch and commits it
// with the given author and message. Returns the HEAD sha with created=false
// when the staged tree is byte-identical to HEAD's tree - this is how duplicate
// uploads are suppressed.
func (r *Repository) WriteAndCommit(files map[string][]byte, author Author, message string) (string, bool, error) {
	// return to the default branch in case an editing session left HEAD detached.
	// a freshly initialized repository has no commit to check out yet.
	if _, err := r.git("rev-parse", "--verify", "HEAD"); err == nil {
		if _, err := r.git("checkout", DefaultBranch); err != nil {
			return "", false, err
		}
	}

	for name, content := range files {
		if strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
			return "", false, fmt.Errorf("%w: %s", ErrInvalidPath, name)
		}
		target := filepath.Join(r.dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), dirDefaultMode); err != nil {
			return "", false, err
		}
		if err := os.WriteFile(target, content, fileDefaultMode); err != nil {
			return "", false, err
		}
	}

	if _, err := r.git("add", "-A"); err != nil {
		return "", false, err
	}
	status, err := r.git("status", "--porcelain")
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(status) == "" {
		sha, err := r.Head()
		if err != nil {
			return "", false, err
		}
		return sha, false, nil
	}

	_, err = r.git("-c", "user.name="+author.Name, "-c", "user.email="+author.Email,
		"commit", "--author", author.String(), "-m", message)
	if err != nil {
		return "", false, err
	}
	sha, err := r.Head()
	if err != nil {
		return "", false, err
	}
	return sha, true, nil
}
