// Package storage abstracts where input documents are read from and
// where output artifacts are written. The pipeline treats every
// provider identically through the Provider contract.
package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"qagen/internal/config"
	"qagen/internal/domain"
)

// Provider is the storage collaborator contract.
type Provider interface {
	// List returns the files under path carrying one of the given
	// extensions, sorted lexicographically. An empty extension list
	// matches every file.
	List(path string, extensions []string) ([]string, error)
	// Read returns the full content of the file at path.
	Read(path string) ([]byte, error)
	// Write stores content at path, creating parent directories as
	// needed and replacing any previous content.
	Write(path string, content []byte) error
	// Exists reports whether path refers to an existing file.
	Exists(path string) bool
}

// NewProvider creates the provider selected by the configuration.
func NewProvider(cfg config.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case "local":
		return &LocalProvider{}, nil
	case "memory":
		return NewMemoryProvider(), nil
	default:
		return nil, domain.ConfigurationError("unsupported storage provider: "+cfg.Provider, nil)
	}
}

// LocalProvider implements Provider on the local filesystem.
type LocalProvider struct{}

func (p *LocalProvider) List(path string, extensions []string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if matchesExtension(name, extensions) {
			files = append(files, filepath.Join(path, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (p *LocalProvider) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (p *LocalProvider) Write(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0644)
}

func (p *LocalProvider) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MemoryProvider implements Provider on an in-memory map. Used by
// tests and dry runs.
type MemoryProvider struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{files: make(map[string][]byte)}
}

func (p *MemoryProvider) List(path string, extensions []string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.files[path]; ok {
		return []string{path}, nil
	}

	prefix := strings.TrimSuffix(path, "/") + "/"
	var files []string
	for name := range p.files {
		if strings.HasPrefix(name, prefix) && matchesExtension(name, extensions) {
			files = append(files, name)
		}
	}
	if len(files) == 0 {
		return nil, os.ErrNotExist
	}
	sort.Strings(files)
	return files, nil
}

func (p *MemoryProvider) Read(path string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	content, ok := p.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

func (p *MemoryProvider) Write(path string, content []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := make([]byte, len(content))
	copy(stored, content)
	p.files[path] = stored
	return nil
}

func (p *MemoryProvider) Exists(path string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.files[path]
	return ok
}

func matchesExtension(name string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	for _, ext := range extensions {
		if strings.EqualFold(filepath.Ext(name), ext) {
			return true
		}
	}
	return false
}
