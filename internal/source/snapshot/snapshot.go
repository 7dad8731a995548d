// Package snapshot stores a captured view of a multisite network as YAML so
// reports can be rebuilt offline.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wpmu/internal/report"
)

// SiteEntry is one site together with its per-site options.
type SiteEntry struct {
	report.Site   `yaml:",inline"`
	Theme         string   `yaml:"theme"`
	ActivePlugins []string `yaml:"active_plugins,omitempty"`
}

// Snapshot implements report.Enumerator over data held in memory.
type Snapshot struct {
	CapturedAt    time.Time               `yaml:"captured_at,omitempty"`
	Multisite     bool                    `yaml:"multisite"`
	Entries       []SiteEntry             `yaml:"sites"`
	ThemeIndex    map[string]report.Theme `yaml:"themes"`
	Plugins       []string                `yaml:"plugins"`
	NetworkActive []string                `yaml:"network_active,omitempty"`

	// index maps a site ID to its position in Entries.
	index map[int64]int
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	s.reindex()
	return &s, nil
}

// Capture copies everything a report needs out of enum. A single-site
// installation is captured with Multisite false and no further data.
func Capture(ctx context.Context, enum report.Enumerator) (*Snapshot, error) {
	s := &Snapshot{CapturedAt: time.Now().UTC()}

	ok, err := enum.IsMultisite(ctx)
	if err != nil {
		return nil, err
	}
	s.Multisite = ok
	if !ok {
		return s, nil
	}

	sites, err := enum.Sites(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	if s.ThemeIndex, err = enum.Themes(ctx); err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}
	if s.Plugins, err = enum.InstalledPlugins(ctx); err != nil {
		return nil, fmt.Errorf("listing installed plugins: %w", err)
	}
	if s.NetworkActive, err = enum.NetworkActivePlugins(ctx); err != nil {
		return nil, fmt.Errorf("listing network active plugins: %w", err)
	}

	for _, site := range sites {
		entry := SiteEntry{Site: site}
		if entry.Theme, err = enum.SiteTheme(ctx, site.ID); err != nil {
			return nil, fmt.Errorf("reading theme for site %d: %w", site.ID, err)
		}
		if entry.ActivePlugins, err = enum.SiteActivePlugins(ctx, site.ID); err != nil {
			return nil, fmt.Errorf("reading active plugins for site %d: %w", site.ID, err)
		}
		s.Entries = append(s.Entries, entry)
	}
	s.reindex()
	return s, nil
}

// Save writes the snapshot to path.
func (s *Snapshot) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// reindex rebuilds the site lookup. The first entry wins for duplicate IDs.
func (s *Snapshot) reindex() {
	s.index = make(map[int64]int, len(s.Entries))
	for i, e := range s.Entries {
		if _, dup := s.index[e.ID]; !dup {
			s.index[e.ID] = i
		}
	}
}

func (s *Snapshot) site(id int64) (*SiteEntry, error) {
	if s.index == nil {
		s.reindex()
	}
	i, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("site %d not in snapshot", id)
	}
	return &s.Entries[i], nil
}

func (s *Snapshot) IsMultisite(context.Context) (bool, error) { return s.Multisite, nil }

func (s *Snapshot) Sites(context.Context) ([]report.Site, error) {
	sites := make([]report.Site, len(s.Entries))
	for i, e := range s.Entries {
		sites[i] = e.Site
	}
	return sites, nil
}

func (s *Snapshot) Themes(context.Context) (map[string]report.Theme, error) {
	return s.ThemeIndex, nil
}

func (s *Snapshot) InstalledPlugins(context.Context) ([]string, error) { return s.Plugins, nil }

func (s *Snapshot) NetworkActivePlugins(context.Context) ([]string, error) {
	return s.NetworkActive, nil
}

func (s *Snapshot) SiteActivePlugins(_ context.Context, id int64) ([]string, error) {
	e, err := s.site(id)
	if err != nil {
		return nil, err
	}
	return e.ActivePlugins, nil
}

func (s *Snapshot) SiteTheme(_ context.Context, id int64) (string, error) {
	e, err := s.site(id)
	if err != nil {
		return "", err
	}
	return e.Theme, nil
}

var _ report.Enumerator = (*Snapshot)(nil)
