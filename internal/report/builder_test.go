package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnumerator struct {
	multisite     bool
	sites         []Site
	themes        map[string]Theme
	installed     []string
	networkActive []string
	siteActive    map[int64][]string
	siteTheme     map[int64]string

	sitesErr  error
	activeErr error
}

func (f *fakeEnumerator) IsMultisite(context.Context) (bool, error) { return f.multisite, nil }

func (f *fakeEnumerator) Sites(context.Context) ([]Site, error) { return f.sites, f.sitesErr }

func (f *fakeEnumerator) Themes(context.Context) (map[string]Theme, error) { return f.themes, nil }

func (f *fakeEnumerator) InstalledPlugins(context.Context) ([]string, error) {
	return f.installed, nil
}

func (f *fakeEnumerator) NetworkActivePlugins(context.Context) ([]string, error) {
	return f.networkActive, nil
}

func (f *fakeEnumerator) SiteActivePlugins(_ context.Context, id int64) ([]string, error) {
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	return f.siteActive[id], nil
}

func (f *fakeEnumerator) SiteTheme(_ context.Context, id int64) (string, error) {
	return f.siteTheme[id], nil
}

func newTwoSiteNetwork() *fakeEnumerator {
	return &fakeEnumerator{
		multisite: true,
		sites: []Site{
			{ID: 1, Domain: "a.test", Public: true},
			{ID: 2, Domain: "b.test", Archived: true},
		},
		themes: map[string]Theme{
			"twentytwenty": {Name: "Twenty Twenty"},
			"child":        {Name: "Child", Parent: "Twenty Twenty"},
		},
		installed:     []string{"akismet/akismet.php", "hello.php"},
		networkActive: []string{"akismet/akismet.php"},
		siteActive: map[int64][]string{
			1: {"hello.php"},
			2: {},
		},
		siteTheme: map[int64]string{
			1: "child",
			2: "twentytwenty",
		},
	}
}

func TestPluginsReportScenario(t *testing.T) {
	rep, err := NewBuilder(newTwoSiteNetwork(), WithSiteStatus(false)).Plugins(context.Background())
	require.NoError(t, err)

	assert.Equal(t, KindPlugins, rep.Kind)
	assert.Equal(t, []string{"blog_id", "domain", "akismet", "hello"}, rep.Header)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, Row{"blog_id": int64(1), "domain": "a.test", "akismet": "network active", "hello": "active"}, rep.Rows[0])
	assert.Equal(t, Row{"blog_id": int64(2), "domain": "b.test", "akismet": "network active", "hello": "inactive"}, rep.Rows[1])
}

func TestPluginsReportHeaderLength(t *testing.T) {
	enum := newTwoSiteNetwork()
	enum.installed = []string{"a/a.php", "b.php", "c/c.php", "d/main.php"}

	with, err := NewBuilder(enum).Plugins(context.Background())
	require.NoError(t, err)
	assert.Len(t, with.Header, 3+4)
	assert.Equal(t, "site_status", with.Header[2])

	without, err := NewBuilder(enum, WithSiteStatus(false)).Plugins(context.Background())
	require.NoError(t, err)
	assert.Len(t, without.Header, 2+4)

	seen := map[string]bool{}
	for _, col := range with.Header {
		assert.False(t, seen[col], "duplicate column %q", col)
		seen[col] = true
	}
}

func TestPluginsReportRenamesColumnsClashingWithFixedColumns(t *testing.T) {
	enum := newTwoSiteNetwork()
	enum.installed = []string{"domain/domain.php", "hello.php", "current_theme.php"}
	enum.siteActive[1] = []string{"domain/domain.php"}

	rep, err := NewBuilder(enum).All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"blog_id", "domain", "site_status", "current_theme", "parent_theme",
		"plugin:domain", "hello", "plugin:current_theme",
	}, rep.Header)
	assert.Equal(t, "a.test", rep.Rows[0]["domain"])
	assert.Equal(t, "child", rep.Rows[0]["current_theme"])
	assert.Equal(t, "active", rep.Rows[0]["plugin:domain"])
	assert.Equal(t, "inactive", rep.Rows[1]["plugin:domain"])

	plugins, err := NewBuilder(enum).Plugins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"blog_id", "domain", "site_status", "plugin:domain", "hello", "plugin:current_theme"}, plugins.Header)
	assert.Equal(t, "b.test", plugins.Rows[1]["domain"])
}

func TestPluginColumn(t *testing.T) {
	assert.Equal(t, "akismet", PluginColumn("akismet"))
	assert.Equal(t, "plugin:blog_id", PluginColumn("blog_id"))
	assert.Equal(t, "plugin:site_status", PluginColumn("site_status"))
}

func TestPluginsReportKeepsEnumerationOrder(t *testing.T) {
	enum := newTwoSiteNetwork()
	enum.installed = []string{"zeta/zeta.php", "alpha.php", "mid/mid.php"}

	rep, err := NewBuilder(enum, WithSiteStatus(false)).Plugins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"blog_id", "domain", "zeta", "alpha", "mid"}, rep.Header)
}

func TestPluginsReportIgnoresActivationsWithoutColumn(t *testing.T) {
	enum := newTwoSiteNetwork()
	enum.siteActive[1] = []string{"hello.php", "removed/removed.php"}

	rep, err := NewBuilder(enum).Plugins(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, rep.Rows[0], "removed")
}

func TestThemesReport(t *testing.T) {
	rep, err := NewBuilder(newTwoSiteNetwork()).Themes(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"blog_id", "domain", "site_status", "current_theme", "parent_theme"}, rep.Header)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, Row{
		"blog_id":       int64(1),
		"domain":        "a.test",
		"site_status":   "public",
		"current_theme": "child",
		"parent_theme":  "Twenty Twenty",
	}, rep.Rows[0])
	assert.Equal(t, "archived", rep.Rows[1]["site_status"])
	assert.Nil(t, rep.Rows[1]["parent_theme"])
}

func TestThemesReportMissingThemeDegradesToNull(t *testing.T) {
	enum := newTwoSiteNetwork()
	enum.siteTheme[2] = "deleted-theme"

	rep, err := NewBuilder(enum).Themes(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "deleted-theme", rep.Rows[1]["current_theme"])
	v, ok := rep.Rows[1]["parent_theme"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestAllReportMatchesStandaloneReports(t *testing.T) {
	enum := newTwoSiteNetwork()
	b := NewBuilder(enum)
	ctx := context.Background()

	all, err := b.All(ctx)
	require.NoError(t, err)
	themes, err := b.Themes(ctx)
	require.NoError(t, err)
	plugins, err := b.Plugins(ctx)
	require.NoError(t, err)

	assert.Equal(t, KindAll, all.Kind)
	assert.Equal(t, append(append([]string{}, themes.Header...), "akismet", "hello"), all.Header)
	require.Len(t, all.Rows, len(enum.sites))

	for i, row := range all.Rows {
		for _, col := range themes.Header {
			assert.Equal(t, themes.Rows[i][col], row[col], "row %d column %s", i, col)
		}
		for _, col := range plugins.Header {
			assert.Equal(t, plugins.Rows[i][col], row[col], "row %d column %s", i, col)
		}
	}
}

func TestBuildDispatch(t *testing.T) {
	b := NewBuilder(newTwoSiteNetwork())

	for _, kind := range Kinds {
		rep, err := b.Build(context.Background(), kind)
		require.NoError(t, err)
		assert.Equal(t, kind, rep.Kind)
	}

	_, err := b.Build(context.Background(), Kind("users"))
	assert.Error(t, err)
}

func TestEnumeratorErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")

	enum := newTwoSiteNetwork()
	enum.sitesErr = boom
	_, err := NewBuilder(enum).Themes(context.Background())
	assert.ErrorIs(t, err, boom)

	enum = newTwoSiteNetwork()
	enum.activeErr = boom
	_, err = NewBuilder(enum).All(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "site 1")
}

func TestRequireMultisite(t *testing.T) {
	enum := newTwoSiteNetwork()
	assert.NoError(t, RequireMultisite(context.Background(), enum))

	enum.multisite = false
	assert.ErrorIs(t, RequireMultisite(context.Background(), enum), ErrNotMultisite)
}

func TestReportValues(t *testing.T) {
	rep, err := NewBuilder(newTwoSiteNetwork(), WithSiteStatus(false)).Themes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), "b.test", "twentytwenty", nil}, rep.Values(1))
}
