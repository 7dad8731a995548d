// Package wpcli enumerates a multisite network by running wp-cli commands
// locally, over SSH or inside a Docker container.
package wpcli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"wpmu/internal/report"
)

const siteFields = "blog_id,domain,path,public,archived,deleted,mature,spam"

// Enumerator implements report.Enumerator on top of wp-cli.
type Enumerator struct {
	runner    Runner
	path      string
	allowRoot bool
	sites     map[int64]report.Site
}

// Option configures an Enumerator.
type Option func(*Enumerator)

// WithPath passes --path to every wp-cli command.
func WithPath(path string) Option {
	return func(e *Enumerator) { e.path = path }
}

// WithAllowRoot passes --allow-root to every wp-cli command.
func WithAllowRoot(allow bool) Option {
	return func(e *Enumerator) { e.allowRoot = allow }
}

// New returns an Enumerator executing commands with runner.
func New(runner Runner, opts ...Option) *Enumerator {
	e := &Enumerator{runner: runner}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Enumerator) wp(ctx context.Context, args ...string) (string, error) {
	argv := append([]string{"wp"}, args...)
	if e.path != "" {
		argv = append(argv, "--path="+e.path)
	}
	if e.allowRoot {
		argv = append(argv, "--allow-root")
	}
	return e.runner.Run(ctx, argv)
}

func (e *Enumerator) wpJSON(ctx context.Context, v any, args ...string) error {
	out, err := e.wp(ctx, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), v); err != nil {
		return fmt.Errorf("failed to parse output of wp %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

func (e *Enumerator) IsMultisite(ctx context.Context) (bool, error) {
	out, err := e.wp(ctx, "eval", "echo is_multisite() ? 1 : 0;")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "1", nil
}

type siteRecord struct {
	BlogID   flexInt  `json:"blog_id"`
	Domain   string   `json:"domain"`
	Path     string   `json:"path"`
	Public   flexBool `json:"public"`
	Archived flexBool `json:"archived"`
	Deleted  flexBool `json:"deleted"`
	Mature   flexBool `json:"mature"`
	Spam     flexBool `json:"spam"`
}

func (e *Enumerator) Sites(ctx context.Context) ([]report.Site, error) {
	var records []siteRecord
	if err := e.wpJSON(ctx, &records, "site", "list", "--format=json", "--fields="+siteFields); err != nil {
		return nil, err
	}

	sites := make([]report.Site, 0, len(records))
	e.sites = make(map[int64]report.Site, len(records))
	for _, r := range records {
		site := report.Site{
			ID:       int64(r.BlogID),
			Domain:   r.Domain,
			Path:     r.Path,
			Public:   bool(r.Public),
			Archived: bool(r.Archived),
			Deleted:  bool(r.Deleted),
			Mature:   bool(r.Mature),
			Spam:     bool(r.Spam),
		}
		sites = append(sites, site)
		e.sites[site.ID] = site
	}
	return sites, nil
}

func (e *Enumerator) Themes(ctx context.Context) (map[string]report.Theme, error) {
	var listed []struct {
		Name string `json:"name"`
	}
	if err := e.wpJSON(ctx, &listed, "theme", "list", "--format=json", "--fields=name"); err != nil {
		return nil, err
	}

	themes := make(map[string]report.Theme, len(listed))
	for _, l := range listed {
		var got struct {
			Name        string `json:"name"`
			ParentTheme string `json:"parent_theme"`
		}
		if err := e.wpJSON(ctx, &got, "theme", "get", l.Name, "--format=json", "--fields=name,parent_theme"); err != nil {
			return nil, err
		}
		themes[l.Name] = report.Theme{Name: got.Name, Parent: got.ParentTheme}
	}
	return themes, nil
}

func (e *Enumerator) InstalledPlugins(ctx context.Context) ([]string, error) {
	var listed []struct {
		File   string `json:"file"`
		Status string `json:"status"`
	}
	if err := e.wpJSON(ctx, &listed, "plugin", "list", "--format=json", "--fields=file,status"); err != nil {
		return nil, err
	}

	files := make([]string, 0, len(listed))
	for _, p := range listed {
		if p.Status == "must-use" || p.Status == "dropin" {
			continue
		}
		files = append(files, p.File)
	}
	return files, nil
}

func (e *Enumerator) NetworkActivePlugins(ctx context.Context) ([]string, error) {
	var raw any
	if err := e.wpJSON(ctx, &raw, "site", "option", "get", "active_sitewide_plugins", "--format=json"); err != nil {
		return nil, err
	}
	return optionKeys(raw), nil
}

func (e *Enumerator) SiteActivePlugins(ctx context.Context, siteID int64) ([]string, error) {
	site, err := e.site(ctx, siteID)
	if err != nil {
		return nil, err
	}
	var raw any
	if err := e.wpJSON(ctx, &raw, "option", "get", "active_plugins", "--format=json", "--url="+site.URL()); err != nil {
		return nil, err
	}
	return optionValues(raw), nil
}

func (e *Enumerator) SiteTheme(ctx context.Context, siteID int64) (string, error) {
	site, err := e.site(ctx, siteID)
	if err != nil {
		return "", err
	}
	out, err := e.wp(ctx, "option", "get", "stylesheet", "--url="+site.URL())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *Enumerator) site(ctx context.Context, id int64) (report.Site, error) {
	if e.sites == nil {
		if _, err := e.Sites(ctx); err != nil {
			return report.Site{}, err
		}
	}
	site, ok := e.sites[id]
	if !ok {
		return report.Site{}, fmt.Errorf("site %d not found in network", id)
	}
	return site, nil
}

var _ report.Enumerator = (*Enumerator)(nil)
