package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/smohades/reachcheck/internal/config"
	"github.com/smohades/reachcheck/internal/domain"
)

// errRunTimeout marks a remote command that hit its own deadline, as opposed
// to a transport-level failure.
var errRunTimeout = errors.New("remote command deadline exceeded")

// remoteHost is one established command-execution channel to a source host.
type remoteHost interface {
	// run executes cmd and returns its exit status and combined output.
	// A non-nil error means the command could not be run or timed out; it
	// never reflects a non-zero exit status.
	run(ctx context.Context, cmd string, timeout time.Duration) (int, string, error)
	close() error
}

type dialFunc func(ctx context.Context, addr string) (remoteHost, error)

// SSHProber opens an SSH session to the source host and runs the probe
// command there. Three phases, each with its own budget: dial, shell
// readiness, command execution. Sessions are closed on every exit path.
type SSHProber struct {
	user           string
	port           int
	auth           []ssh.AuthMethod
	dialTimeout    time.Duration
	promptTimeout  time.Duration
	commandTimeout time.Duration
	connectTimeout time.Duration
	logger         *zap.Logger

	dial dialFunc // swapped out in tests
}

// NewSSHProber builds a prober from config. A key file wins over a password;
// having neither is a configuration error.
func NewSSHProber(cfg config.Config, logger *zap.Logger) (*SSHProber, error) {
	if cfg.SSHUser == "" {
		return nil, errors.New("ssh user not configured")
	}

	var auth []ssh.AuthMethod
	switch {
	case cfg.SSHKeyFile != "":
		pem, err := os.ReadFile(cfg.SSHKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case cfg.SSHPassword != "":
		auth = append(auth, ssh.Password(cfg.SSHPassword))
	default:
		return nil, errors.New("no ssh auth configured: set SSH_KEY_FILE or SSH_PASSWORD")
	}

	p := &SSHProber{
		user:           cfg.SSHUser,
		port:           cfg.SSHPort,
		auth:           auth,
		dialTimeout:    cfg.SessionTimeout,
		promptTimeout:  cfg.PromptTimeout,
		commandTimeout: cfg.CommandTimeout(),
		connectTimeout: cfg.ConnectTimeout,
		logger:         logger,
	}
	p.dial = p.sshDial
	return p, nil
}

// Probe runs the full dial / readiness / command sequence for one item.
// Every failure mode comes back as a tagged RawOutcome.
func (p *SSHProber) Probe(ctx context.Context, item domain.WorkItem) RawOutcome {
	addr := net.JoinHostPort(item.Source, strconv.Itoa(p.port))

	host, err := p.dial(ctx, addr)
	if err != nil {
		return RawOutcome{Tag: TagSessionError, Err: err.Error()}
	}
	defer func() {
		if cerr := host.close(); cerr != nil {
			p.logger.Debug("session_close_error",
				zap.String("source", item.Source), zap.Error(cerr))
		}
	}()

	// Readiness check: the handshake can succeed against hosts that will
	// never hand out a working shell (restricted shells, overloaded sshd).
	// Bound that wait separately so it cannot eat the command budget.
	code, out, err := host.run(ctx, "echo ready", p.promptTimeout)
	if err != nil {
		if errors.Is(err, errRunTimeout) {
			return RawOutcome{Tag: TagNoPrompt,
				Err: fmt.Sprintf("no shell prompt within %s", p.promptTimeout)}
		}
		return RawOutcome{Tag: TagNoPrompt, Err: err.Error()}
	}
	if code != 0 {
		return RawOutcome{Tag: TagNoPrompt, Output: out,
			Err: fmt.Sprintf("remote shell returned %d", code)}
	}

	cmd := probeCommand(item.DestIP, item.DestPort, p.connectTimeout)
	code, out, err = host.run(ctx, cmd, p.commandTimeout)
	if err != nil {
		if errors.Is(err, errRunTimeout) {
			return RawOutcome{Tag: TagTimeout, Output: out}
		}
		return RawOutcome{Tag: TagSessionError, Err: err.Error()}
	}
	return RawOutcome{Tag: TagCompleted, ExitCode: code, Output: out}
}

// probeCommand builds the connect test run on the source host. nc -z opens
// the connection and closes it without sending data; exit 0 means the
// destination accepted.
func probeCommand(destIP string, destPort int, connectTimeout time.Duration) string {
	return fmt.Sprintf("nc -z -w %d %s %d",
		int(connectTimeout.Seconds()), destIP, destPort)
}

func (p *SSHProber) sshDial(_ context.Context, addr string) (remoteHost, error) {
	cfg := &ssh.ClientConfig{
		User:            p.user,
		Auth:            p.auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         p.dialTimeout,
	}
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, err
	}
	return &sshHost{client: client}, nil
}

type sshHost struct {
	client *ssh.Client
}

func (h *sshHost) run(ctx context.Context, cmd string, timeout time.Duration) (int, string, error) {
	sess, err := h.client.NewSession()
	if err != nil {
		return 0, "", err
	}

	type result struct {
		code int
		out  []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := sess.CombinedOutput(cmd)
		code := 0
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				code, err = exitErr.ExitStatus(), nil
			}
		}
		ch <- result{code: code, out: out, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		_ = sess.Close() // already torn down after a finished command
		return r.code, string(r.out), r.err
	case <-timer.C:
		return 0, "", multierr.Append(errRunTimeout, ignoreEOF(sess.Close()))
	case <-ctx.Done():
		return 0, "", multierr.Append(ctx.Err(), ignoreEOF(sess.Close()))
	}
}

func (h *sshHost) close() error {
	return h.client.Close()
}

func ignoreEOF(err error) error {
	if err == nil || err.Error() == "EOF" {
		return nil
	}
	return err
}
