// Package repository inspects subdirectory-layout repositories and creates
// the bare repository that replaces them.
package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/otiai10/copy"
	log "github.com/sirupsen/logrus"

	"github.com/gwt-tools/gwt/internal/git"
)

// DefaultRemote is the remote carried over into the bare repository
const DefaultRemote = "origin"

// BareCreator builds a bare repository from an existing one
type BareCreator struct{}

// NewBareCreator creates a new bare repository creator
func NewBareCreator() *BareCreator {
	return &BareCreator{}
}

// CreateBareRepo initializes a bare repository at barePath holding every
// branch, tag and origin-tracking ref of the repository at sourceRoot. HEAD
// points at the branch the source has checked out, origin keeps its URL,
// and custom hooks are copied.
func (b *BareCreator) CreateBareRepo(ctx context.Context, sourceRoot, barePath string) error {
	src, err := gogit.PlainOpen(sourceRoot)
	if err != nil {
		return fmt.Errorf("failed to open source repository: %w", err)
	}

	headBranch := plumbing.Main
	if head, err := src.Head(); err == nil && head.Name().IsBranch() {
		headBranch = head.Name()
	}

	bare, err := gogit.PlainInitWithOptions(barePath, &gogit.PlainInitOptions{
		Bare:        true,
		InitOptions: gogit.InitOptions{DefaultBranch: headBranch},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize bare repository: %w", err)
	}

	if remote, err := src.Remote(DefaultRemote); err == nil {
		_, err := bare.CreateRemote(&gitconfig.RemoteConfig{
			Name:  DefaultRemote,
			URLs:  remote.Config().URLs,
			Fetch: []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf(gitconfig.DefaultFetchRefSpec, DefaultRemote))},
		})
		if err != nil {
			return fmt.Errorf("failed to configure remote: %w", err)
		}
	} else if !errors.Is(err, gogit.ErrRemoteNotFound) {
		return fmt.Errorf("failed to read remote: %w", err)
	}

	executor := git.NewExecutor(sourceRoot)
	refspecs := []string{
		"refs/heads/*:refs/heads/*",
		"refs/tags/*:refs/tags/*",
		"refs/remotes/" + DefaultRemote + "/*:refs/remotes/" + DefaultRemote + "/*",
	}
	args := append([]string{"push", "--quiet", "--no-verify", barePath}, refspecs...)
	if _, err := executor.ExecuteContext(ctx, args...); err != nil {
		return fmt.Errorf("failed to transfer refs: %w", err)
	}

	if executor.HasStash() {
		log.WithField("source", sourceRoot).Warn("stash entries are not migrated; apply or export them before deleting the backup")
	}

	if err := copyHooks(filepath.Join(sourceRoot, ".git", "hooks"), filepath.Join(barePath, "hooks")); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"bare": barePath,
		"head": headBranch.Short(),
	}).Info("created bare repository")
	return nil
}

// FetchRemote fetches origin into the bare repository. Repositories
// without origin have nothing to fetch.
func (b *BareCreator) FetchRemote(ctx context.Context, barePath string) error {
	bare, err := gogit.PlainOpen(barePath)
	if err != nil {
		return fmt.Errorf("failed to open bare repository: %w", err)
	}
	if _, err := bare.Remote(DefaultRemote); err != nil {
		if errors.Is(err, gogit.ErrRemoteNotFound) {
			return nil
		}
		return err
	}

	// The CLI honors the user's credential helpers and ssh setup.
	if _, err := git.NewExecutor(barePath).ExecuteContext(ctx, "fetch", "--quiet", "--prune", DefaultRemote); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", DefaultRemote, err)
	}
	return nil
}

// copyHooks copies every hook that is not a sample
func copyHooks(srcDir, dstDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read hooks: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".sample") {
			continue
		}
		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(dstDir, entry.Name())
		if err := copy.Copy(src, dst, copy.Options{
			OnSymlink:         func(string) copy.SymlinkAction { return copy.Shallow },
			PermissionControl: copy.PerservePermission,
		}); err != nil {
			return fmt.Errorf("failed to copy hook %s: %w", entry.Name(), err)
		}
		log.WithField("hook", entry.Name()).Debug("copied hook")
	}
	return nil
}
