package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/newtron-network/bulkcfg/pkg/inventory"
	"github.com/newtron-network/bulkcfg/pkg/util"
	"github.com/newtron-network/bulkcfg/pkg/version"
)

// DefaultPrompt matches IOS exec and config prompts such as "R1#",
// "R1>" and "R1(config-if)#".
var DefaultPrompt = regexp.MustCompile(`^[\w.\-@/:()]+[>#]\s*$`)

// SSHDialer opens interactive shells on IOS-style devices.
type SSHDialer struct {
	Port           int
	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	// KnownHostsFile enables host key verification. Empty accepts any
	// host key.
	KnownHostsFile string

	SaveCommand string
	Prompt      *regexp.Regexp
}

// NewSSHDialer returns a dialer with IOS defaults.
func NewSSHDialer() *SSHDialer {
	return &SSHDialer{
		Port:           22,
		ConnectTimeout: 30 * time.Second,
		CommandTimeout: 60 * time.Second,
		SaveCommand:    "write memory",
		Prompt:         DefaultPrompt,
	}
}

// Open dials address, authenticates, starts a PTY shell, and disables
// paging. Failures are classified as auth, timeout or transport errors.
func (d *SSHDialer) Open(ctx context.Context, creds inventory.Credentials, address string) (Session, error) {
	hostKey := ssh.InsecureIgnoreHostKey()
	if d.KnownHostsFile != "" {
		cb, err := knownhosts.New(d.KnownHostsFile)
		if err != nil {
			return nil, util.NewConnectError(address, util.ConnectTransport, fmt.Errorf("loading known hosts: %w", err))
		}
		hostKey = cb
	}

	config := &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = creds.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		ClientVersion:   version.SSHClientVersion(),
		Timeout:         d.ConnectTimeout,
	}

	port := d.Port
	if port == 0 {
		port = 22
	}
	hostport := net.JoinHostPort(address, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: d.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, classifyDialError(address, err)
	}
	if d.ConnectTimeout > 0 {
		conn.SetDeadline(time.Now().Add(d.ConnectTimeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, hostport, config)
	if err != nil {
		conn.Close()
		return nil, classifyDialError(address, err)
	}
	conn.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	s, err := d.startShell(ctx, client, address)
	if err != nil {
		client.Close()
		return nil, err
	}
	util.WithDevice(address).Debugf("session open, prompt %q", s.prompt)
	return s, nil
}

func (d *SSHDialer) startShell(ctx context.Context, client *ssh.Client, address string) (*iosSession, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, util.NewConnectError(address, util.ConnectTransport, fmt.Errorf("SSH session: %w", err))
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("vt100", 200, 511, modes); err != nil {
		session.Close()
		return nil, util.NewConnectError(address, util.ConnectTransport, fmt.Errorf("PTY request: %w", err))
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, util.NewConnectError(address, util.ConnectTransport, err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, util.NewConnectError(address, util.ConnectTransport, err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return nil, util.NewConnectError(address, util.ConnectTransport, fmt.Errorf("shell: %w", err))
	}

	prompt := d.Prompt
	if prompt == nil {
		prompt = DefaultPrompt
	}
	s := &iosSession{
		address:     address,
		client:      client,
		session:     session,
		stdin:       stdin,
		out:         make(chan []byte, 64),
		done:        make(chan struct{}),
		timeout:     d.CommandTimeout,
		promptRE:    prompt,
		saveCommand: d.SaveCommand,
	}
	go s.pump(stdout)

	if _, err := s.readUntilPrompt(ctx); err != nil {
		s.Disconnect()
		return nil, err
	}
	for _, cmd := range []string{"terminal length 0", "terminal width 511"} {
		if _, err := s.RunCommand(ctx, cmd); err != nil {
			s.Disconnect()
			return nil, err
		}
	}
	return s, nil
}

// classifyDialError maps dial and handshake failures onto the connect
// error kinds.
func classifyDialError(address string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return util.NewConnectError(address, util.ConnectTimeout, err)
	case strings.Contains(err.Error(), "unable to authenticate"):
		return util.NewConnectError(address, util.ConnectAuth, err)
	default:
		return util.NewConnectError(address, util.ConnectTransport, err)
	}
}

// iosSession drives a PTY shell by writing a line and reading until the
// next prompt.
type iosSession struct {
	address     string
	client      *ssh.Client
	session     *ssh.Session
	stdin       io.WriteCloser
	out         chan []byte
	done        chan struct{}
	pending     bytes.Buffer
	prompt      string
	timeout     time.Duration
	promptRE    *regexp.Regexp
	saveCommand string
	closed      bool
}

func (s *iosSession) pump(r io.Reader) {
	defer close(s.out)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.out <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// readUntilPrompt collects output until its last line is a prompt and
// returns it with carriage returns removed.
func (s *iosSession) readUntilPrompt(ctx context.Context) (string, error) {
	var timer <-chan time.Time
	if s.timeout > 0 {
		t := time.NewTimer(s.timeout)
		defer t.Stop()
		timer = t.C
	}
	for {
		text := strings.ReplaceAll(s.pending.String(), "\r", "")
		last := text[strings.LastIndex(text, "\n")+1:]
		if s.promptRE.MatchString(last) {
			s.pending.Reset()
			s.prompt = strings.TrimSpace(last)
			return text, nil
		}

		select {
		case chunk, ok := <-s.out:
			if !ok {
				return "", util.NewConnectError(s.address, util.ConnectTransport, io.ErrUnexpectedEOF)
			}
			s.pending.Write(chunk)
		case <-ctx.Done():
			return "", util.NewConnectError(s.address, util.ConnectTimeout, ctx.Err())
		case <-timer:
			return "", util.NewConnectError(s.address, util.ConnectTimeout,
				fmt.Errorf("no prompt after %s", s.timeout))
		}
	}
}

func (s *iosSession) send(line string) error {
	if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
		return util.NewConnectError(s.address, util.ConnectTransport, err)
	}
	return nil
}

func (s *iosSession) RunCommand(ctx context.Context, command string) (string, error) {
	if err := s.send(command); err != nil {
		return "", err
	}
	raw, err := s.readUntilPrompt(ctx)
	if err != nil {
		return "", err
	}
	return stripEchoAndPrompt(raw, command), nil
}

func (s *iosSession) ApplyConfig(ctx context.Context, lines []string) (string, error) {
	var transcript strings.Builder
	transcript.WriteString(s.prompt)

	all := make([]string, 0, len(lines)+2)
	all = append(all, "configure terminal")
	all = append(all, lines...)
	all = append(all, "end")

	for _, line := range all {
		if err := s.send(line); err != nil {
			return transcript.String(), err
		}
		out, err := s.readUntilPrompt(ctx)
		if err != nil {
			return transcript.String(), err
		}
		transcript.WriteString(out)
	}
	return transcript.String(), nil
}

func (s *iosSession) SaveConfig(ctx context.Context) (string, error) {
	return s.RunCommand(ctx, s.saveCommand)
}

func (s *iosSession) Disconnect() error {
	if s.closed {
		return nil
	}
	s.closed = true
	io.WriteString(s.stdin, "exit\n")
	close(s.done)
	s.session.Close()
	return s.client.Close()
}

// stripEchoAndPrompt drops the echoed command line and the trailing
// prompt from a command's raw output.
func stripEchoAndPrompt(raw, command string) string {
	lines := strings.Split(raw, "\n")
	if len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == strings.TrimSpace(command) {
		lines = lines[1:]
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
