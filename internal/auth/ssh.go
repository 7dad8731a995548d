package auth

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHClient is a connection to the host running wp-cli.
type SSHClient struct {
	client   *ssh.Client
	hostname string
	username string
}

// SSHConfig represents SSH connection configuration
type SSHConfig struct {
	Hostname string
	Username string
	Port     string
	KeyPath  string
	UseAgent bool
	Timeout  time.Duration
	// KnownHostsPath enables host key verification when set.
	KnownHostsPath     string
	DisableDefaultKeys bool
}

// NewSSHClient dials the configured host, trying the agent, an explicit key
// and then the usual ~/.ssh identities.
func NewSSHClient(config SSHConfig) (*SSHClient, error) {
	if config.Port == "" {
		config.Port = "22"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	authMethods := authMethodsFor(config)
	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no valid authentication methods found")
	}

	hostKeyCallback, err := hostKeyCallbackFor(config.KnownHostsPath)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            config.Username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         config.Timeout,
	}

	address := net.JoinHostPort(config.Hostname, config.Port)
	client, err := ssh.Dial("tcp", address, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return &SSHClient{
		client:   client,
		hostname: config.Hostname,
		username: config.Username,
	}, nil
}

func authMethodsFor(config SSHConfig) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if config.UseAgent {
		if agentAuth, err := getSSHAgent(); err == nil {
			methods = append(methods, agentAuth)
		}
	}

	if config.KeyPath != "" {
		if keyAuth, err := getPublicKeyAuth(config.KeyPath); err == nil {
			methods = append(methods, keyAuth)
		}
	}

	if config.DisableDefaultKeys {
		return methods
	}

	home, _ := os.UserHomeDir()
	for _, name := range []string{"id_rsa", "id_ed25519", "id_ecdsa"} {
		keyPath := filepath.Join(home, ".ssh", name)
		if config.KeyPath != "" && filepath.Clean(keyPath) == filepath.Clean(config.KeyPath) {
			continue
		}
		if _, err := os.Stat(keyPath); err != nil {
			continue
		}
		if keyAuth, err := getPublicKeyAuth(keyPath); err == nil {
			methods = append(methods, keyAuth)
		}
	}
	return methods
}

func hostKeyCallbackFor(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("known_hosts: %w", err)
	}
	return cb, nil
}

// getSSHAgent returns SSH agent authentication method
func getSSHAgent() (ssh.AuthMethod, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSH agent: %w", err)
	}

	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// getPublicKeyAuth returns public key authentication method
func getPublicKeyAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return ssh.PublicKeys(signer), nil
}

// ExecuteCommand runs command in a new session and returns its stdout and
// stderr. The session is closed early if ctx is cancelled.
func (c *SSHClient) ExecuteCommand(ctx context.Context, command string) (string, string, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	err = session.Run(command)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return stdout.String(), stderr.String(), err
}

// Close closes the SSH connection
func (c *SSHClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// GetHostname returns the hostname of the connection
func (c *SSHClient) GetHostname() string {
	return c.hostname
}
