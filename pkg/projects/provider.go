package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Provider supplies project metadata by theme name.
type Provider interface {
	// Themes lists the available theme names.
	Themes(ctx context.Context) ([]string, error)
	// ProjectMetadata returns the metadata for one theme.
	ProjectMetadata(ctx context.Context, theme string) (*Project, error)
}

// DirProvider reads pre-extracted project metadata from <dir>/<theme>.json.
type DirProvider struct {
	dir string
}

// NewDirProvider creates a provider over a metadata directory.
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{dir: dir}
}

// Themes lists the theme names found in the directory, sorted.
func (p *DirProvider) Themes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read project metadata dir: %w", err)
	}
	var themes []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		themes = append(themes, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(themes)
	return themes, nil
}

// ProjectMetadata reads and parses one theme's metadata document.
func (p *DirProvider) ProjectMetadata(ctx context.Context, theme string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.ContainsAny(theme, `/\`) {
		return nil, fmt.Errorf("invalid theme name %q", theme)
	}
	path := filepath.Join(p.dir, theme+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project metadata for %q: %w", theme, err)
	}
	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse project metadata for %q: %w", theme, err)
	}
	if project.Name == "" {
		project.Name = theme
	}
	return &project, nil
}
