package inventory

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/nerrad567/autoscan-core/internal/infrastructure/config"
)

const (
	testUser     = "autoscan"
	testPassword = "secret"
)

// fakeInventoryHost is an in-process SSH server that answers exec requests.
type fakeInventoryHost struct {
	listener net.Listener
	hostKey  ssh.Signer
	config   *ssh.ServerConfig

	mu       sync.Mutex
	commands []string
	conns    []net.Conn
	status   uint32
	output   string
	dropNext bool
	block    chan struct{}
}

func newFakeInventoryHost(t *testing.T) *fakeInventoryHost {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("creating signer: %v", err)
	}

	h := &fakeInventoryHost{hostKey: signer}
	h.config = &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == testUser && string(pass) == testPassword {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	h.config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	h.listener = ln

	go h.acceptLoop()
	t.Cleanup(h.close)
	return h
}

func (h *fakeInventoryHost) acceptLoop() {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			return
		}
		h.mu.Lock()
		h.conns = append(h.conns, conn)
		h.mu.Unlock()
		go h.serve(conn)
	}
}

func (h *fakeInventoryHost) serve(conn net.Conn) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, h.config)
	if err != nil {
		conn.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			nc.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, chReqs, err := nc.Accept()
		if err != nil {
			return
		}
		go h.session(ch, chReqs)
	}
}

func (h *fakeInventoryHost) session(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	for req := range reqs {
		if req.Type != "exec" {
			req.Reply(false, nil)
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			req.Reply(false, nil)
			return
		}
		req.Reply(true, nil)

		h.mu.Lock()
		h.commands = append(h.commands, payload.Command)
		status, output, drop, block := h.status, h.output, h.dropNext, h.block
		h.dropNext = false
		h.mu.Unlock()

		if block != nil {
			<-block
		}
		if drop {
			h.closeConns()
			return
		}

		ch.Write([]byte(output))
		ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
		return
	}
}

func (h *fakeInventoryHost) respond(status uint32, output string) {
	h.mu.Lock()
	h.status, h.output = status, output
	h.mu.Unlock()
}

func (h *fakeInventoryHost) lastCommand() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.commands) == 0 {
		return ""
	}
	return h.commands[len(h.commands)-1]
}

func (h *fakeInventoryHost) closeConns() {
	h.mu.Lock()
	conns := h.conns
	h.conns = nil
	h.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

func (h *fakeInventoryHost) close() {
	h.listener.Close()
	h.mu.Lock()
	if h.block != nil {
		close(h.block)
		h.block = nil
	}
	h.mu.Unlock()
	h.closeConns()
}

// clientConfig returns an InventoryConfig trusting h through a known_hosts file.
func (h *fakeInventoryHost) clientConfig(t *testing.T) config.InventoryConfig {
	t.Helper()

	addr := h.listener.Addr().(*net.TCPAddr)
	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{h.listener.Addr().String()}, h.hostKey.PublicKey())
	if err := os.WriteFile(knownHosts, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("writing known_hosts: %v", err)
	}

	return config.InventoryConfig{
		Mode:           "ssh",
		Host:           "127.0.0.1",
		Port:           addr.Port,
		User:           testUser,
		Password:       testPassword,
		KnownHosts:     knownHosts,
		Command:        "autoscan",
		ConnectTimeout: 2 * time.Second,
	}
}

func TestSSHClient_UpdateSuccess(t *testing.T) {
	h := newFakeInventoryHost(t)
	c := NewSSHClient(h.clientConfig(t))
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Update(ctx, "0123456789", "PN0102B230"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Update() before Connect error = %v, want ErrNotConnected", err)
	}

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	// Second Connect reuses the connection.
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	status, err := c.Update(ctx, "T30123456789", "PN0102B230")
	if err != nil || status != StatusOK {
		t.Fatalf("Update() = %v, %v", status, err)
	}
	if got, want := h.lastCommand(), "autoscan 'T30123456789' 'PN0102B230'"; got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestSSHClient_UpdateExitStatus(t *testing.T) {
	h := newFakeInventoryHost(t)
	h.respond(uint32(StatusReserved), "endpoint reserved\n")

	c := NewSSHClient(h.clientConfig(t))
	defer c.Close()
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	status, err := c.Update(ctx, "0123456789", "PN0102B230")
	if status != StatusReserved {
		t.Errorf("status = %v, want %v", status, StatusReserved)
	}
	var ue *UpdateError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want *UpdateError", err)
	}
	if ue.Output != "endpoint reserved\n" {
		t.Errorf("Output = %q", ue.Output)
	}
	if !c.IsConnected() {
		t.Error("a non-zero exit must not drop the connection")
	}
}

func TestSSHClient_TransportFailure(t *testing.T) {
	h := newFakeInventoryHost(t)
	c := NewSSHClient(h.clientConfig(t))
	defer c.Close()
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	h.mu.Lock()
	h.dropNext = true
	h.mu.Unlock()

	_, err := c.Update(ctx, "0123456789", "PN0102B230")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Update() error = %v, want ErrTransport", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after transport failure")
	}

	// The next Connect dials again.
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	if status, err := c.Update(ctx, "0123456789", ""); err != nil || status != StatusOK {
		t.Errorf("Update() after reconnect = %v, %v", status, err)
	}
}

func TestSSHClient_UpdateContextCancelled(t *testing.T) {
	h := newFakeInventoryHost(t)
	h.mu.Lock()
	h.block = make(chan struct{})
	h.mu.Unlock()

	c := NewSSHClient(h.clientConfig(t))
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Update(ctx, "0123456789", "PN0102B230")
	if !errors.Is(err, ErrTransport) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Update() error = %v, want ErrTransport wrapping DeadlineExceeded", err)
	}
}

func TestSSHClient_ConnectFailures(t *testing.T) {
	h := newFakeInventoryHost(t)

	tests := []struct {
		name   string
		modify func(cfg *config.InventoryConfig)
	}{
		{"wrong password", func(cfg *config.InventoryConfig) { cfg.Password = "nope" }},
		{"no credentials", func(cfg *config.InventoryConfig) { cfg.Password = "" }},
		{"unknown host key", func(cfg *config.InventoryConfig) {
			cfg.KnownHosts = filepath.Join(filepath.Dir(cfg.KnownHosts), "empty_known_hosts")
			os.WriteFile(cfg.KnownHosts, nil, 0o600)
		}},
		{"refused", func(cfg *config.InventoryConfig) {
			ln, _ := net.Listen("tcp", "127.0.0.1:0")
			cfg.Port = ln.Addr().(*net.TCPAddr).Port
			ln.Close()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := h.clientConfig(t)
			tt.modify(&cfg)

			c := NewSSHClient(cfg)
			err := c.Connect(context.Background())
			if !errors.Is(err, ErrConnect) {
				t.Fatalf("Connect() error = %v, want ErrConnect", err)
			}
			if c.IsConnected() {
				t.Error("IsConnected() = true after failed Connect")
			}
		})
	}
}

func TestSSHClient_InsecureIgnoreHostKey(t *testing.T) {
	h := newFakeInventoryHost(t)
	cfg := h.clientConfig(t)
	cfg.KnownHosts = ""
	cfg.InsecureIgnoreHostKey = true

	c := NewSSHClient(cfg)
	defer c.Close()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
}
