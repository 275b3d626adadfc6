package syncer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/schema"
)

// Source is one document file read from disk. Err is set instead of Doc when
// the file could not be decoded.
type Source struct {
	Path string
	Doc  *document.Document
	Err  error
}

// DocumentPath returns where an entity's document lives below dir:
// <dir>/<Kind>/<alias><ext>.
func DocumentPath(dir string, kind schema.Kind, alias string, format document.Format) string {
	return filepath.Join(dir, kind.String(), alias+format.Ext())
}

// IsDocumentPath reports whether path has a document extension.
func IsDocumentPath(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	_, err := document.FormatFromPath(path)
	return err == nil
}

// LoadDir reads every document below dir in lexical path order. Files that
// fail to decode are returned with Err set; only a failure to walk dir is an
// error.
func LoadDir(dir string) ([]Source, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var sources []Source
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !IsDocumentPath(path) {
			return nil
		}

		doc, err := document.ReadFile(path)
		sources = append(sources, Source{Path: path, Doc: doc, Err: err})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return sources, nil
}

// ChangedKinds returns the namespaces touched by the changed paths. A path
// that still decodes contributes its document's kind; a deleted or unreadable
// one contributes the kind directory it sits in. The result is nil, meaning
// every namespace, when some path maps to no kind.
func ChangedKinds(dir string, paths []string) []schema.Kind {
	seen := make(map[schema.Kind]bool)
	var kinds []schema.Kind
	for _, path := range paths {
		kind, ok := kindOfPath(dir, path)
		if !ok {
			return nil
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func kindOfPath(dir, path string) (schema.Kind, bool) {
	if doc, err := document.ReadFile(path); err == nil && doc.Kind.Validate() == nil {
		return doc.Kind, true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return "", false
	}
	kind, err := schema.ParseKind(parts[0])
	if err != nil {
		return "", false
	}
	return kind, true
}

func wantsKind(kinds []schema.Kind, kind schema.Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
