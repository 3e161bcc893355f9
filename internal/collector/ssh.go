package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"incidentetl/internal/config"
	"incidentetl/internal/pods"
)

// SSH errors.
var (
	ErrReadKey     = errors.New("failed to read private key")
	ErrParseKey    = errors.New("failed to parse private key")
	ErrKnownHosts  = errors.New("failed to load known_hosts")
	ErrCommandFail = errors.New("remote command failed")
)

// Ensure SSHDialer implements Dialer.
var _ Dialer = (*SSHDialer)(nil)

// SSHDialer opens key-authenticated SSH sessions.
type SSHDialer struct {
	config         *ssh.ClientConfig
	dialTimeout    time.Duration
	commandTimeout time.Duration
}

// NewSSHDialer builds a dialer from the ssh section of the configuration.
// Without a known_hosts file every host key is accepted, since pods are
// ephemeral and their keys are not known in advance.
func NewSSHDialer(cfg config.SSHConfig) (*SSHDialer, error) {
	key, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadKey, err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseKey, err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec
	if cfg.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKnownHosts, err)
		}
	}

	return NewSSHDialerWithSigner(cfg.User, signer, hostKeyCallback,
		config.Seconds(cfg.DialTimeoutSec), config.Seconds(cfg.CommandTimeoutSec)), nil
}

// NewSSHDialerWithSigner builds a dialer from an already parsed key.
func NewSSHDialerWithSigner(user string, signer ssh.Signer, hostKeyCallback ssh.HostKeyCallback, dialTimeout, commandTimeout time.Duration) *SSHDialer {
	return &SSHDialer{
		config: &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         dialTimeout,
		},
		dialTimeout:    dialTimeout,
		commandTimeout: commandTimeout,
	}
}

// Dial connects to the endpoint and completes the SSH handshake within the
// dial timeout.
func (d *SSHDialer) Dial(ctx context.Context, endpoint pods.Port) (Session, error) {
	addr := endpoint.Address()

	dialCtx, cancel := context.WithTimeout(ctx, d.dialTimeout)
	defer cancel()

	var nd net.Dialer
	conn, err := nd.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, d.config)
	if err != nil {
		conn.Close()
		return nil, err
	}

	_ = conn.SetDeadline(time.Time{})

	return &sshSession{
		client:         ssh.NewClient(c, chans, reqs),
		commandTimeout: d.commandTimeout,
	}, nil
}

type sshSession struct {
	client         *ssh.Client
	commandTimeout time.Duration
}

// ListFiles lists the files matching pattern. A glob without matches yields
// no files rather than an error.
func (s *sshSession) ListFiles(ctx context.Context, pattern string) ([]string, error) {
	stdout, stderr, err := s.run(ctx, "ls -1 "+pattern)
	if err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) || len(bytes.TrimSpace(stdout)) > 0 {
			return nil, commandError(err, stderr)
		}

		return nil, nil
	}

	var files []string
	for _, line := range strings.Split(string(stdout), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}

	return files, nil
}

// ReadFile returns the contents of path.
func (s *sshSession) ReadFile(ctx context.Context, path string) ([]byte, error) {
	stdout, stderr, err := s.run(ctx, "cat -- "+shellQuote(path))
	if err != nil {
		return nil, commandError(err, stderr)
	}

	return stdout, nil
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

// run executes cmd in a fresh session, bounded by the command timeout.
func (s *sshSession) run(ctx context.Context, cmd string) ([]byte, []byte, error) {
	if s.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.commandTimeout)
		defer cancel()
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return nil, nil, err
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(cmd)
	}()

	select {
	case err := <-done:
		return stdout.Bytes(), stderr.Bytes(), err
	case <-ctx.Done():
		// Closing the session unblocks Run; the buffered channel lets the
		// goroutine exit without a reader.
		_ = sess.Close()
		return nil, nil, ctx.Err()
	}
}

func commandError(err error, stderr []byte) error {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return fmt.Errorf("%w: %w", ErrCommandFail, err)
	}

	return fmt.Errorf("%w: %w: %s", ErrCommandFail, err, msg)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
