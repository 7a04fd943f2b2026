package inventory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/nerrad567/autoscan-core/internal/infrastructure/config"
)

const defaultConnectTimeout = 10 * time.Second

// SSHClient runs the inventory command on a remote host.
//
// One SSH connection is kept open and reused; each Update opens a new
// session on it. If the connection drops, the client marks itself
// disconnected and the next Connect dials again.
type SSHClient struct {
	cfg config.InventoryConfig

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHClient creates an unconnected client.
func NewSSHClient(cfg config.InventoryConfig) *SSHClient {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return &SSHClient{cfg: cfg}
}

// Connect dials the inventory host and authenticates.
func (c *SSHClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	clientCfg, err := c.clientConfig()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrConnect, addr, err)
	}

	// Bound the handshake; ssh.ClientConfig.Timeout only covers the dial.
	deadline := time.Now().Add(c.cfg.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline) //nolint:errcheck // Handshake fails anyway on a dead conn

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("%w: handshake with %s: %w", ErrConnect, addr, err)
	}
	_ = conn.SetDeadline(time.Time{}) //nolint:errcheck // Cleared deadline on a live conn

	client := ssh.NewClient(sshConn, chans, reqs)
	c.client = client

	go func() {
		_ = client.Wait() //nolint:errcheck // Only the close matters
		c.drop(client)
	}()

	return nil
}

// IsConnected reports whether a connection is open.
func (c *SSHClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// Update runs the inventory command for one pair.
func (c *SSHClient) Update(ctx context.Context, nid, location string) (ExitStatus, error) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return StatusUnknown, ErrNotConnected
	}

	session, err := client.NewSession()
	if err != nil {
		c.drop(client)
		return StatusUnknown, fmt.Errorf("%w: open session: %w", ErrTransport, err)
	}
	defer session.Close() //nolint:errcheck // Session may already be closed by the server

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)
	cmd := BuildCommand(c.cfg.Command, nid, location)

	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- result{output: out, err: err}
	}()

	select {
	case <-ctx.Done():
		session.Close() //nolint:errcheck // Abandoning the command
		return StatusUnknown, fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
	case r := <-done:
		return c.interpret(client, r.output, r.err)
	}
}

func (c *SSHClient) interpret(client *ssh.Client, output []byte, err error) (ExitStatus, error) {
	if err == nil {
		return StatusOK, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		status := ExitStatus(exitErr.ExitStatus())
		return status, statusError(status, string(output))
	}

	// ExitMissingError and I/O errors both mean the connection is suspect.
	c.drop(client)
	return StatusUnknown, fmt.Errorf("%w: %w", ErrTransport, err)
}

// Close closes the connection.
func (c *SSHClient) Close() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("closing ssh connection: %w", err)
	}
	return nil
}

// drop forgets client if it is still the current connection.
func (c *SSHClient) drop(client *ssh.Client) {
	c.mu.Lock()
	if c.client == client {
		c.client = nil
	}
	c.mu.Unlock()
	client.Close() //nolint:errcheck // Already broken
}

func (c *SSHClient) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if c.cfg.KeyFile != "" {
		key, err := os.ReadFile(expandHome(c.cfg.KeyFile))
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing key file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.cfg.Password != "" {
		auth = append(auth, ssh.Password(c.cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("no ssh credentials configured")
	}

	var hostKey ssh.HostKeyCallback
	if c.cfg.InsecureIgnoreHostKey {
		hostKey = ssh.InsecureIgnoreHostKey() //nolint:gosec // Explicit opt-in for test rigs
	} else {
		cb, err := knownhosts.New(expandHome(c.cfg.KnownHosts))
		if err != nil {
			return nil, fmt.Errorf("loading known_hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            c.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.cfg.ConnectTimeout,
	}, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
