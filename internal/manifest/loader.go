package manifest

import (
	"context"
	"fmt"
	"os"
)

// Loader provides manifest loading. It abstracts where manifests come from so
// the orchestrator can be driven from files or from in-memory fixtures.
type Loader interface {
	// Load retrieves and parses the manifest identified by ref.
	Load(ctx context.Context, ref string) (*Manifest, error)
}

// FileLoader loads manifests from the local filesystem.
type FileLoader struct{}

// NewFileLoader creates a new FileLoader.
func NewFileLoader() *FileLoader { return &FileLoader{} }

// Load opens the file at path and parses it.
func (l *FileLoader) Load(ctx context.Context, path string) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return Parse(f, path)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, ref string) (*Manifest, error)

// Load calls f(ctx, ref).
func (f LoaderFunc) Load(ctx context.Context, ref string) (*Manifest, error) { return f(ctx, ref) }

// Preloaded returns a Loader that hands back m for any ref.
func Preloaded(m *Manifest) Loader {
	return LoaderFunc(func(ctx context.Context, _ string) (*Manifest, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return m, nil
	})
}
