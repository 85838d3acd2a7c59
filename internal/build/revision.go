package build

import (
	"errors"
	"log/slog"

	ggit "github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/docvars/internal/logfields"
)

// SourceRevision returns the HEAD commit of the git worktree containing dir,
// or "" when dir is not inside a repository or HEAD is unborn.
func SourceRevision(dir string, logger *slog.Logger) string {
	repo, err := ggit.PlainOpenWithOptions(dir, &ggit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if !errors.Is(err, ggit.ErrRepositoryNotExists) {
			logger.Warn("Failed to open source repository", logfields.Path(dir), logfields.Error(err))
		}
		return ""
	}

	ref, err := repo.Head()
	if err != nil {
		logger.Debug("Source repository has no HEAD", logfields.Path(dir), logfields.Error(err))
		return ""
	}
	return ref.Hash().String()
}
