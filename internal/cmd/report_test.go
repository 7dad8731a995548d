package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpmu/internal/report"
	"wpmu/internal/source/snapshot"
)

const networkSnapshot = "testdata/network.yaml"

// runReportCommand executes "wpmu report args..." on a fresh command tree.
func runReportCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	viper.Reset()

	root := &cobra.Command{Use: "wpmu", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().Bool("verbose", false, "verbose output")
	root.AddCommand(newReportCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"report"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func fromSnapshot(args ...string) []string {
	return append([]string{"--source=snapshot", "--snapshot=" + networkSnapshot}, args...)
}

func TestReport_NoKindShowsHelp(t *testing.T) {
	out, err := runReportCommand(t, fromSnapshot()...)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "--themes")
	assert.Contains(t, out, "--plugins")
}

func TestReport_NonMultisite(t *testing.T) {
	for _, args := range [][]string{{}, {"--themes"}, {"--all", "--format=json"}} {
		out, err := runReportCommand(t, append([]string{"--source=snapshot", "--snapshot=testdata/single.yaml"}, args...)...)
		require.Error(t, err)
		assert.Equal(t, "Oops! Looks like you are running this in a non-multisite setup.", err.Error())
		assert.ErrorIs(t, err, report.ErrNotMultisite)
		assert.NotContains(t, out, "Usage:")
	}
}

func TestReport_ThemesCSV(t *testing.T) {
	out, err := runReportCommand(t, fromSnapshot("--themes", "--format=csv")...)
	require.NoError(t, err)
	assert.Equal(t,
		"blog_id,domain,site_status,current_theme,parent_theme\n"+
			"1,a.test,public,child,Twenty Twenty\n"+
			"2,b.test,archived,twentytwenty,\n",
		out)
}

func TestReport_PluginsJSONWithoutSiteStatus(t *testing.T) {
	out, err := runReportCommand(t, fromSnapshot("--plugins", "--format=json", "--site-status=false")...)
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{
		"blog_id": float64(1),
		"domain":  "a.test",
		"akismet": "network active",
		"hello":   "active",
	}, rows[0])
	assert.Equal(t, "inactive", rows[1]["hello"])
	assert.NotContains(t, rows[1], "site_status")
}

func TestReport_KindsInOrder(t *testing.T) {
	out, err := runReportCommand(t, fromSnapshot("--all", "--themes", "--format=count")...)
	require.NoError(t, err)
	assert.Equal(t, "2\n2\n", out)
}

func TestReport_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	out, err := runReportCommand(t, fromSnapshot("--all", "--format=yaml", "-o", path)...)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "current_theme: child")
	assert.Contains(t, string(data), "parent_theme: null")
}

func TestReport_FormatFromEnvironment(t *testing.T) {
	t.Setenv("WPMU_FORMAT", "count")
	out, err := runReportCommand(t, fromSnapshot("--themes")...)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestReport_SaveSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.yaml")
	out, err := runReportCommand(t, fromSnapshot("--save-snapshot", path)...)
	require.NoError(t, err)
	assert.NotContains(t, out, "Usage:")

	snap, err := snapshot.Load(path)
	require.NoError(t, err)
	assert.True(t, snap.Multisite)
	assert.Len(t, snap.Entries, 2)
}

func TestReport_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "unknown format",
			args: fromSnapshot("--themes", "--format=xml"),
			want: "--format must be one of: table, csv, json, count, yaml",
		},
		{
			name: "unknown source",
			args: []string{"--themes", "--source=ftp"},
			want: "--source must be one of: wpcli, database, snapshot",
		},
		{
			name: "snapshot without file",
			args: []string{"--themes", "--source=snapshot"},
			want: "--snapshot is required when --source=snapshot",
		},
		{
			name: "database without wp-content",
			args: []string{"--themes", "--source=database", "--db-host=127.0.0.1:3306"},
			want: "--wp-content is required when --source=database",
		},
		{
			name: "database without target",
			args: []string{"--themes", "--source=database", "--wp-content=/tmp"},
			want: "--db-dsn or --db-host is required when --source=database",
		},
		{
			name: "upload without endpoint",
			args: fromSnapshot("--themes", "--upload", "--minio-bucket=reports"),
			want: "--minio-endpoint is required when --upload is set",
		},
		{
			name: "sheet without credentials",
			args: fromSnapshot("--themes", "--sheet-id=abc", "--sheet-credentials="),
			want: "--sheet-credentials is required with --sheet-id",
		},
		{
			name: "bad network id",
			args: []string{"--themes", "--source=database", "--db-host=db", "--wp-content=/tmp", "--network-id=0"},
			want: "--network-id must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runReportCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

type failingEnumerator struct {
	report.Enumerator
	err error
}

func (f failingEnumerator) IsMultisite(context.Context) (bool, error) { return false, f.err }

func TestReport_EnumeratorErrorPropagates(t *testing.T) {
	boom := errors.New("wp-cli not found")
	orig := openEnumerator
	t.Cleanup(func() { openEnumerator = orig })
	openEnumerator = func(context.Context, *reportOptions) (report.Enumerator, func() error, error) {
		return failingEnumerator{err: boom}, noopClose, nil
	}

	_, err := runReportCommand(t, "--themes")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to check for multisite")
}

func TestCloseWith(t *testing.T) {
	closeErr := errors.New("disk full")
	failing := func() error { return closeErr }

	var err error
	closeWith(&err, failing)
	assert.ErrorIs(t, err, closeErr)
	assert.Contains(t, err.Error(), "failed to close output file")

	earlier := errors.New("render failed")
	err = earlier
	closeWith(&err, failing)
	assert.Equal(t, earlier, err)

	err = nil
	closeWith(&err, func() error { return nil })
	assert.NoError(t, err)
}
