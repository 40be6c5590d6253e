package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/sitebuilder/internal/backend"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
	"git.home.luguber.info/inful/sitebuilder/internal/session"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// GitStorageConfig configures a git-backed storage backend.
type GitStorageConfig struct {
	ID          string
	DisplayName string

	// Dir is the local working tree. RemoteURL may be empty for a
	// local-only repository.
	Dir       string
	RemoteURL string
	Branch    string

	// Token authenticates pushes over HTTP. Most forges accept any
	// username with a token password.
	Token string

	AuthorName  string
	AuthorEmail string

	Retry  retry.Policy
	Logger *slog.Logger
}

// GitStorage stores website files in a git working tree and commits and
// pushes after every mutation. File reads serve the local tree; remote
// changes between pushes are not merged.
type GitStorage struct {
	*FSStorage

	remoteURL   string
	branch      string
	auth        transport.AuthMethod
	authorName  string
	authorEmail string
	policy      retry.Policy
	logger      *slog.Logger

	// commitMu serializes commit+push across sessions.
	commitMu sync.Mutex
	repo     *git.Repository
}

var _ backend.StorageProvider = (*GitStorage)(nil)

// NewGitStorage opens or creates the repository and wraps it as a storage
// backend.
func NewGitStorage(cfg GitStorageConfig) (*GitStorage, error) {
	if cfg.Dir == "" {
		return nil, ferrors.ConfigError("git storage requires a working tree directory").Build()
	}
	id := cfg.ID
	if id == "" {
		id = "git"
	}
	name := cfg.DisplayName
	if name == "" {
		name = "Git repository"
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var auth transport.AuthMethod
	if cfg.Token != "" {
		// Most git hosting services accept "token" as the username.
		auth = &githttp.BasicAuth{Username: "token", Password: cfg.Token}
	}

	policy := cfg.Retry
	if policy == (retry.Policy{}) {
		policy = retry.DefaultPolicy()
	} else {
		policy = retry.NewPolicy(policy.Mode, policy.Initial, policy.Max, policy.MaxRetries)
	}

	g := &GitStorage{
		remoteURL:   cfg.RemoteURL,
		branch:      branch,
		auth:        auth,
		authorName:  orDefault(cfg.AuthorName, "sitebuilder"),
		authorEmail: orDefault(cfg.AuthorEmail, "sitebuilder@localhost"),
		policy:      policy,
		logger:      logger,
	}

	repo, err := g.openOrCreate(cfg.Dir)
	if err != nil {
		return nil, err
	}
	g.repo = repo

	inner, err := NewFSStorage(FSStorageConfig{ID: id, DisplayName: name, Root: cfg.Dir, Logger: logger})
	if err != nil {
		return nil, err
	}
	g.FSStorage = inner
	return g, nil
}

func (g *GitStorage) openOrCreate(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpen(dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, gitErr(err, "open repository")
	}

	if g.remoteURL != "" {
		repo, err = git.PlainClone(dir, false, &git.CloneOptions{
			URL:           g.remoteURL,
			Auth:          g.auth,
			ReferenceName: plumbing.NewBranchReferenceName(g.branch),
			SingleBranch:  true,
		})
		if err == nil {
			return repo, nil
		}
		if !errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return nil, gitErr(err, "clone repository")
		}
		// Empty remote: init locally and push the first commit later.
	}

	repo, err = git.PlainInit(dir, false)
	if err != nil {
		return nil, gitErr(err, "init repository")
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(g.branch))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, gitErr(err, "set head")
	}
	if g.remoteURL != "" {
		_, err = repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{g.remoteURL}})
		if err != nil {
			return nil, gitErr(err, "create remote")
		}
	}
	return repo, nil
}

// WriteFiles writes through the working tree, then commits and pushes.
func (g *GitStorage) WriteFiles(ctx context.Context, sess *session.Session, websiteID string, files []site.File, status backend.StatusFunc) ([]string, error) {
	if status == nil {
		status = func(string) {}
	}
	written, err := g.FSStorage.WriteFiles(ctx, sess, websiteID, files, status)
	if err != nil {
		return written, err
	}
	if len(written) == 0 {
		return written, nil
	}
	status("committing " + websiteID)
	if err := g.commitAndPush(ctx, fmt.Sprintf("Update %s (%d files)", websiteID, len(written)), status); err != nil {
		return written, err
	}
	return written, nil
}

// DeleteFiles removes files and commits the deletion.
func (g *GitStorage) DeleteFiles(ctx context.Context, sess *session.Session, websiteID string, paths []string) error {
	if err := g.FSStorage.DeleteFiles(ctx, sess, websiteID, paths); err != nil {
		return err
	}
	return g.commitAndPush(ctx, fmt.Sprintf("Remove %d files from %s", len(paths), websiteID), nil)
}

// DeleteDir removes a directory tree and commits the deletion.
func (g *GitStorage) DeleteDir(ctx context.Context, sess *session.Session, websiteID, dirPath string) error {
	if err := g.FSStorage.DeleteDir(ctx, sess, websiteID, dirPath); err != nil {
		return err
	}
	msg := fmt.Sprintf("Remove %s from %s", path.Clean("/"+dirPath), websiteID)
	return g.commitAndPush(ctx, msg, nil)
}

func (g *GitStorage) UserData(ctx context.Context, sess *session.Session) (backend.User, error) {
	return backend.User{Name: g.authorName, Email: g.authorEmail}, nil
}

// commitAndPush stages everything, commits when the tree is dirty, and
// pushes with retries. A clean tree is a no-op.
func (g *GitStorage) commitAndPush(ctx context.Context, message string, status backend.StatusFunc) error {
	g.commitMu.Lock()
	defer g.commitMu.Unlock()

	wt, err := g.repo.Worktree()
	if err != nil {
		return gitErr(err, "worktree")
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return gitErr(err, "stage changes")
	}
	st, err := wt.Status()
	if err != nil {
		return gitErr(err, "status")
	}
	if st.IsClean() {
		return nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: g.authorName, Email: g.authorEmail, When: time.Now()},
	})
	if err != nil {
		return gitErr(err, "commit")
	}
	g.logger.Debug("committed website change",
		slog.String("commit", hash.String()[:8]),
		logfields.Name(message))

	if g.remoteURL == "" {
		return nil
	}
	if status != nil {
		status("pushing to " + g.remoteURL)
	}
	return g.push(ctx)
}

func (g *GitStorage) push(ctx context.Context) error {
	refspec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", g.branch, g.branch))

	var lastErr error
	for attempt := 0; ; attempt++ {
		err := g.repo.PushContext(ctx, &git.PushOptions{
			RemoteName: "origin",
			RefSpecs:   []gitconfig.RefSpec{refspec},
			Auth:       g.auth,
		})
		if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		lastErr = err
		if attempt >= g.policy.MaxRetries {
			break
		}
		delay := g.policy.Delay(attempt + 1)
		g.logger.Warn("push failed, retrying",
			logfields.URL(g.remoteURL),
			slog.Duration("delay", delay),
			logfields.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return gitErr(ctx.Err(), "push canceled")
		}
	}
	return gitErr(lastErr, "push")
}

func gitErr(err error, op string) error {
	return ferrors.WrapError(err, ferrors.CategoryGit, op).Build()
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
