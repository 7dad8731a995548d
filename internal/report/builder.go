package report

import (
	"context"
	"fmt"
)

// Kind selects which report to build.
type Kind string

const (
	KindThemes  Kind = "themes"
	KindPlugins Kind = "plugins"
	KindAll     Kind = "all"
)

// Kinds lists the report kinds in the order they are emitted when several are
// requested at once.
var Kinds = []Kind{KindThemes, KindPlugins, KindAll}

// Fixed column names.
const (
	ColBlogID       = "blog_id"
	ColDomain       = "domain"
	ColSiteStatus   = "site_status"
	ColCurrentTheme = "current_theme"
	ColParentTheme  = "parent_theme"
)

// Row maps column names to cell values. A nil value is rendered as null.
type Row map[string]any

// Report is the assembled output of one report kind.
type Report struct {
	Kind   Kind
	Header []string
	Rows   []Row
}

// Values returns the cells of row i in header order.
func (r *Report) Values(i int) []any {
	vals := make([]any, len(r.Header))
	for j, col := range r.Header {
		vals[j] = r.Rows[i][col]
	}
	return vals
}

// Builder assembles reports from an Enumerator.
type Builder struct {
	enum       Enumerator
	siteStatus bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithSiteStatus toggles the site_status column. It is on by default.
func WithSiteStatus(on bool) Option {
	return func(b *Builder) { b.siteStatus = on }
}

// NewBuilder returns a Builder reading from enum.
func NewBuilder(enum Enumerator, opts ...Option) *Builder {
	b := &Builder{enum: enum, siteStatus: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build dispatches to the report for kind.
func (b *Builder) Build(ctx context.Context, kind Kind) (*Report, error) {
	switch kind {
	case KindThemes:
		return b.Themes(ctx)
	case KindPlugins:
		return b.Plugins(ctx)
	case KindAll:
		return b.All(ctx)
	default:
		return nil, fmt.Errorf("unknown report kind %q", kind)
	}
}

// Themes builds one row per site with its active theme and that theme's parent.
func (b *Builder) Themes(ctx context.Context) (*Report, error) {
	sites, err := b.enum.Sites(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	themes, err := b.enum.Themes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}

	rep := &Report{Kind: KindThemes, Header: b.themeHeader()}
	for _, site := range sites {
		row := b.siteRow(site)
		if err := b.themeCells(ctx, row, site, themes); err != nil {
			return nil, err
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep, nil
}

// Plugins builds one row per site with a status column for every installed plugin.
func (b *Builder) Plugins(ctx context.Context) (*Report, error) {
	sites, err := b.enum.Sites(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	plugins, err := b.loadPlugins(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Report{Kind: KindPlugins, Header: append(b.siteHeader(), plugins.columns...)}
	for _, site := range sites {
		row := b.siteRow(site)
		if err := b.pluginCells(ctx, row, site, plugins); err != nil {
			return nil, err
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep, nil
}

// All combines the theme and plugin reports into a single row per site.
func (b *Builder) All(ctx context.Context) (*Report, error) {
	sites, err := b.enum.Sites(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	themes, err := b.enum.Themes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}
	plugins, err := b.loadPlugins(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Report{Kind: KindAll, Header: append(b.themeHeader(), plugins.columns...)}
	for _, site := range sites {
		row := b.siteRow(site)
		if err := b.themeCells(ctx, row, site, themes); err != nil {
			return nil, err
		}
		if err := b.pluginCells(ctx, row, site, plugins); err != nil {
			return nil, err
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep, nil
}

func (b *Builder) siteHeader() []string {
	if b.siteStatus {
		return []string{ColBlogID, ColDomain, ColSiteStatus}
	}
	return []string{ColBlogID, ColDomain}
}

func (b *Builder) themeHeader() []string {
	return append(b.siteHeader(), ColCurrentTheme, ColParentTheme)
}

func (b *Builder) siteRow(site Site) Row {
	row := Row{
		ColBlogID: site.ID,
		ColDomain: site.Domain,
	}
	if b.siteStatus {
		row[ColSiteStatus] = site.Status()
	}
	return row
}

func (b *Builder) themeCells(ctx context.Context, row Row, site Site, themes map[string]Theme) error {
	name, err := b.enum.SiteTheme(ctx, site.ID)
	if err != nil {
		return fmt.Errorf("reading theme for site %d: %w", site.ID, err)
	}
	row[ColCurrentTheme] = name
	row[ColParentTheme] = nil
	if theme, ok := themes[name]; ok && theme.Parent != "" {
		row[ColParentTheme] = theme.Parent
	}
	return nil
}

// pluginColumnPrefix is prepended to a plugin column whose name would clash
// with a fixed column.
const pluginColumnPrefix = "plugin:"

var fixedColumns = map[string]struct{}{
	ColBlogID:       {},
	ColDomain:       {},
	ColSiteStatus:   {},
	ColCurrentTheme: {},
	ColParentTheme:  {},
}

// PluginColumn returns the column a normalized plugin name is reported under.
func PluginColumn(name string) string {
	if _, clash := fixedColumns[name]; clash {
		return pluginColumnPrefix + name
	}
	return name
}

type pluginSet struct {
	// names and columns are parallel: names[i] is reported under columns[i].
	names   []string
	columns []string
	network Set
}

func (b *Builder) loadPlugins(ctx context.Context) (*pluginSet, error) {
	installed, err := b.enum.InstalledPlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing installed plugins: %w", err)
	}
	network, err := b.enum.NetworkActivePlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing network active plugins: %w", err)
	}

	set := &pluginSet{network: NewSet(network...)}
	seen := make(map[string]struct{})
	for _, name := range normalizeAll(installed) {
		col := PluginColumn(name)
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		set.names = append(set.names, name)
		set.columns = append(set.columns, col)
	}
	return set, nil
}

func (b *Builder) pluginCells(ctx context.Context, row Row, site Site, plugins *pluginSet) error {
	active, err := b.enum.SiteActivePlugins(ctx, site.ID)
	if err != nil {
		return fmt.Errorf("reading active plugins for site %d: %w", site.ID, err)
	}
	siteActive := NewSet(active...)
	for i, name := range plugins.names {
		row[plugins.columns[i]] = string(Classify(name, plugins.network, siteActive))
	}
	return nil
}
