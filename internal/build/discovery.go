package build

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
	"git.home.luguber.info/inful/docvars/internal/logfields"
)

// Document is a discovered source document.
type Document struct {
	Path         string // Absolute path to the file
	RelativePath string // Path relative to the source directory, slash separated
	DocName      string // RelativePath without extension
	Extension    string // Lowercase extension including the dot
}

// OutputPath returns the HTML file written for the document below outputDir.
func (d Document) OutputPath(outputDir string) string {
	return filepath.Join(outputDir, filepath.FromSlash(d.DocName)+".html")
}

// Discover walks sourceDir and returns every file whose extension is listed in
// extensions, sorted by docname. Hidden files and directories are skipped.
func Discover(sourceDir string, extensions []string) ([]Document, error) {
	root, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve source directory").
			WithContext("path", sourceDir).
			Build()
	}

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.NotFoundError(fmt.Sprintf("source directory not found: %s", sourceDir)).
				WithContext("path", sourceDir).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to stat source directory").
			WithContext("path", sourceDir).
			Build()
	}
	if !info.IsDir() {
		return nil, ferrors.ConfigError(fmt.Sprintf("source is not a directory: %s", sourceDir)).
			WithContext("path", sourceDir).
			Build()
	}

	var docs []Document
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !slices.Contains(extensions, ext) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		docs = append(docs, Document{
			Path:         p,
			RelativePath: rel,
			DocName:      strings.TrimSuffix(rel, path.Ext(rel)),
			Extension:    ext,
		})
		slog.Debug("Discovered document", logfields.Path(rel))
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(fmt.Errorf("%w: %w", ErrDiscovery, err), ferrors.CategoryFileSystem, "failed to walk source directory").
			WithContext("path", sourceDir).
			Build()
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].DocName < docs[j].DocName
	})
	if dup := duplicateDocName(docs); dup != "" {
		return nil, ferrors.ValidationError(fmt.Sprintf("several source files map to document %q", dup)).
			WithContext("docname", dup).
			Build()
	}

	slog.Info("Documents discovered", logfields.Path(sourceDir), logfields.Documents(len(docs)))
	return docs, nil
}

// duplicateDocName returns the first docname shared by two files (e.g. a.md and
// a.markdown). docs must be sorted.
func duplicateDocName(docs []Document) string {
	for i := 1; i < len(docs); i++ {
		if docs[i].DocName == docs[i-1].DocName {
			return docs[i].DocName
		}
	}
	return ""
}
