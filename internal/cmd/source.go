package cmd

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"

	"wpmu/internal/auth"
	"wpmu/internal/report"
	"wpmu/internal/source/database"
	"wpmu/internal/source/snapshot"
	"wpmu/internal/source/wpcli"
)

// openEnumerator is swapped out in tests.
var openEnumerator = openSource

func noopClose() error { return nil }

// openSource builds the enumerator selected by --source. The returned func
// releases any connection it holds.
func openSource(ctx context.Context, opts *reportOptions) (report.Enumerator, func() error, error) {
	switch opts.Source {
	case "snapshot":
		snap, err := snapshot.Load(opts.Snapshot)
		if err != nil {
			return nil, nil, err
		}
		debugf("loaded snapshot %s", opts.Snapshot)
		return snap, noopClose, nil

	case "database":
		enum, err := database.Open(ctx, database.Config{
			DSN:         opts.DBDSN,
			Host:        opts.DBHost,
			User:        opts.DBUser,
			Password:    opts.DBPassword,
			Name:        opts.DBName,
			TablePrefix: opts.TablePrefix,
			NetworkID:   opts.NetworkID,
			WPContent:   opts.WPContent,
		})
		if err != nil {
			return nil, nil, err
		}
		debugf("connected to database, reading wp-content from %s", opts.WPContent)
		return enum, enum.Close, nil

	default:
		runner, closeRunner, err := newRunner(opts)
		if err != nil {
			return nil, nil, err
		}
		enum := wpcli.New(runner, wpcli.WithPath(opts.WPPath), wpcli.WithAllowRoot(opts.AllowRoot))
		return enum, closeRunner, nil
	}
}

// newRunner picks where wp-cli runs: over SSH when --host is set, in a local
// Docker container when only --container is set, otherwise on this machine.
func newRunner(opts *reportOptions) (wpcli.Runner, func() error, error) {
	switch {
	case opts.Host != "":
		sshClient, err := createSSHClient(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", opts.Host, err)
		}
		debugf("running wp-cli on %s (container %q)", opts.Host, opts.Container)
		return wpcli.SSHRunner{Client: sshClient, Container: opts.Container, User: opts.DockerUser}, sshClient.Close, nil

	case opts.Container != "":
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Docker client: %w", err)
		}
		debugf("running wp-cli in local container %s", opts.Container)
		return wpcli.DockerRunner{Client: cli, Container: opts.Container, User: opts.DockerUser}, cli.Close, nil

	default:
		debugf("running wp-cli locally")
		return wpcli.LocalRunner{Timeout: opts.Timeout}, noopClose, nil
	}
}

func createSSHClient(opts *reportOptions) (*auth.SSHClient, error) {
	username := opts.SSHUser
	if username == "" {
		username = getEnvWithDefault("USER", "root")
	}

	config := auth.SSHConfig{
		Hostname:       opts.Host,
		Username:       username,
		Port:           opts.SSHPort,
		KeyPath:        opts.SSHKey,
		UseAgent:       opts.SSHAgent,
		Timeout:        opts.Timeout,
		KnownHostsPath: opts.KnownHosts,
	}
	return auth.NewSSHClient(config)
}
