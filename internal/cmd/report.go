package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wpmu/internal/output"
	"wpmu/internal/report"
	"wpmu/internal/source/snapshot"
)

// notMultisiteError is what the user sees when the target is a single-site install.
type notMultisiteError struct{ err error }

func (e notMultisiteError) Error() string {
	return "Oops! Looks like you are running this in a non-multisite setup."
}

func (e notMultisiteError) Unwrap() error { return e.err }

func init() {
	rootCmd.AddCommand(newReportCmd())
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report themes and plugins used across the network",
		Long: `Build a per-site inventory of the themes and plugins of a WordPress multisite network.

Each plugin gets its own column holding "network active", "active" or "inactive".
Several report flags may be combined; reports are printed in the order themes,
plugins, all.

Examples:
  # Active theme and parent theme of every site
  wpmu report --themes

  # Plugin activation matrix as CSV, over SSH inside the WordPress container
  wpmu report --plugins --format=csv --host wp1.example.com --container wordpress

  # Everything, straight from the database, uploaded to object storage
  wpmu report --all --source=database --db-host=127.0.0.1:3306 --db-user=wp \
    --db-name=wordpress --wp-content=/var/www/html/wp-content --upload`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: runReport,
	}

	f := cmd.Flags()

	// Report selection and output
	f.Bool("themes", false, "Report the active and parent theme of every site")
	f.Bool("plugins", false, "Report the activation status of every plugin on every site")
	f.Bool("all", false, "Report themes and plugins together")
	f.String("format", string(output.FormatTable), "Output format (table, csv, json, count, yaml)")
	f.Bool("site-status", true, "Include the site_status column")
	f.StringP("output", "o", "", "Write the report to a file instead of stdout")

	// Source selection
	f.String("source", "wpcli", "Where to read the network from (wpcli, database, snapshot)")
	f.String("snapshot", "", "Snapshot file to read when --source=snapshot")
	f.String("save-snapshot", "", "Save everything read from the source to a snapshot file")

	// wp-cli source
	f.String("host", getEnvWithDefault("SSH_HOST", ""), "Run wp-cli on this host over SSH")
	f.StringP("user", "u", getEnvWithDefault("SSH_USER", ""), "SSH username")
	f.StringP("port", "p", getEnvWithDefault("SSH_PORT", "22"), "SSH port")
	f.StringP("key", "k", getEnvWithDefault("SSH_KEY", ""), "SSH private key path")
	f.BoolP("agent", "a", getEnvBoolWithDefault("SSH_AGENT", true), "Use SSH agent")
	f.DurationP("timeout", "t", getEnvDurationWithDefault("SSH_TIMEOUT", 30*time.Second), "Connection and command timeout")
	f.String("known-hosts", getEnvWithDefault("SSH_KNOWN_HOSTS", ""), "known_hosts file used to verify the SSH host key")
	f.String("container", "", "Run wp-cli inside this Docker container (over SSH when --host is set, otherwise on the local engine)")
	f.String("docker-user", "www-data", "User wp-cli runs as inside the container")
	f.String("path", "", "WordPress path passed to wp-cli --path")
	f.Bool("allow-root", false, "Pass --allow-root to wp-cli")

	// database source
	f.String("db-dsn", getEnvWithDefault("DB_DSN", ""), "MySQL DSN, overrides the other --db flags")
	f.String("db-host", getEnvWithDefault("DB_HOST", ""), "MySQL address (host:port)")
	f.String("db-user", getEnvWithDefault("DB_USER", ""), "MySQL user")
	f.String("db-password", getEnvWithDefault("DB_PASSWORD", ""), "MySQL password")
	f.String("db-name", getEnvWithDefault("DB_NAME", ""), "MySQL database name")
	f.String("table-prefix", getEnvWithDefault("DB_TABLE_PREFIX", "wp_"), "WordPress table prefix")
	f.Int64("network-id", getEnvInt64WithDefault("WP_NETWORK_ID", 1), "Network (site_id) to report on")
	f.String("wp-content", getEnvWithDefault("WP_CONTENT_DIR", ""), "wp-content directory holding themes and plugins")

	// Publishing
	f.Bool("upload", false, "Upload each report to S3-compatible object storage")
	f.String("minio-endpoint", getEnvWithDefault("MINIO_ENDPOINT", ""), "Object storage endpoint")
	f.String("minio-access-key", getEnvWithDefault("MINIO_ACCESS_KEY", ""), "Object storage access key")
	f.String("minio-secret-key", getEnvWithDefault("MINIO_SECRET_KEY", ""), "Object storage secret key")
	f.String("minio-bucket", getEnvWithDefault("MINIO_BUCKET", ""), "Object storage bucket")
	f.String("minio-prefix", getEnvWithDefault("MINIO_BUCKET_PATH", "wpmu-reports"), "Key prefix for uploaded reports")
	f.Bool("minio-ssl", getEnvBoolWithDefault("MINIO_SSL", true), "Use TLS for object storage")
	f.String("sheet-id", getEnvWithDefault("GOOGLE_SHEET_ID", ""), "Google Sheet to export each report into, one tab per report (created when missing)")
	f.String("sheet-credentials", getEnvWithDefault("GOOGLE_APPLICATION_CREDENTIALS", ""), "Service account JSON used for Google Sheets")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) (err error) {
	opts, err := loadReportOptions()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	enum, closeEnum, err := openEnumerator(ctx, opts)
	if err != nil {
		return err
	}
	defer closeEnum()

	if err := report.RequireMultisite(ctx, enum); err != nil {
		if errors.Is(err, report.ErrNotMultisite) {
			return notMultisiteError{err: err}
		}
		return fmt.Errorf("failed to check for multisite: %w", err)
	}

	if opts.SaveSnapshot != "" {
		snap, err := snapshot.Capture(ctx, enum)
		if err != nil {
			return fmt.Errorf("failed to capture snapshot: %w", err)
		}
		if err := snap.Save(opts.SaveSnapshot); err != nil {
			return err
		}
		debugf("saved snapshot of %d sites to %s", len(snap.Entries), opts.SaveSnapshot)
	}

	kinds := opts.kinds()
	if len(kinds) == 0 {
		if opts.SaveSnapshot != "" {
			return nil
		}
		return cmd.Help()
	}

	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	pub, err := newPublisher(ctx, opts)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd, opts.Output)
	if err != nil {
		return err
	}
	defer closeWith(&err, closeOut)

	builder := report.NewBuilder(enum, report.WithSiteStatus(opts.SiteStatus))
	for _, kind := range kinds {
		debugf("building %s report from %s", kind, opts.Source)
		rep, err := builder.Build(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to build %s report: %w", kind, err)
		}

		var buf bytes.Buffer
		if err := output.Render(&buf, format, rep); err != nil {
			return fmt.Errorf("failed to render %s report: %w", kind, err)
		}
		if _, err := out.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write %s report: %w", kind, err)
		}
		if err := pub.publish(ctx, cmd.ErrOrStderr(), rep, format, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// closeWith runs closeFn and reports its error through err unless err is
// already set.
func closeWith(err *error, closeFn func() error) {
	if cerr := closeFn(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close output file: %w", cerr)
	}
}

// openOutput returns stdout or the named file.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
