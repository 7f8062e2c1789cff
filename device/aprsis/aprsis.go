package aprsis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	ErrNotConnected  = errors.New("not connected to APRS-IS")
	ErrLoginRejected = errors.New("APRS-IS login rejected")
	ErrUnreachable   = errors.New("no internet connectivity")
)

// State of the APRS-IS session.
type State int

const (
	Disconnected State = iota
	Connecting
	LoggedIn
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case LoggedIn:
		return "logged in"
	}
	return "disconnected"
}

// Config holds the connection parameters. All of it is fixed for the life
// of the session.
type Config struct {
	Host     string
	Port     int
	Callsign string // with SSID
	Passcode int
	Software string // "name version" sent after vers
	RangeKm  int

	ConnectTimeout time.Duration
	LoginTimeout   time.Duration
	RetryDelay     time.Duration
	ProbeCache     time.Duration
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) loginLine() string {
	return fmt.Sprintf("user %s pass %d vers %s filter m/%d\r\n", c.Callsign, c.Passcode, c.Software, c.RangeKm)
}

// Option customises a Session.
type Option func(*Session)

// WithProber sets the connectivity check run before sending.
func WithProber(p Prober) Option {
	return func(s *Session) { s.probe = p }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithLineHandler receives every line the server sends after login.
// It is called from the session's reader goroutine.
func WithLineHandler(fn func(line string)) Option {
	return func(s *Session) { s.onLine = fn }
}

// Session is a client connection to an APRS-IS server. Send is the only
// write path and is safe for concurrent use.
type Session struct {
	cfg    Config
	probe  Prober
	log    *log.Logger
	onLine func(string)

	mu        sync.Mutex
	conn      net.Conn
	state     State
	probedAt  time.Time
	reachable bool
}

// New creates a disconnected session.
func New(cfg Config, opts ...Option) *Session {
	s := &Session{cfg: cfg, log: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens a new connection and logs in, replacing any existing one.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	s.closeLocked()
	s.state = Connecting

	addr := s.cfg.addr()
	s.log.Info("connecting to APRS-IS", "addr", addr)
	d := net.Dialer{Timeout: s.cfg.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		s.state = Disconnected
		return fmt.Errorf("failed to connect to APRS-IS server %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetWriteBuffer(512)
	}

	reader := bufio.NewReader(conn)
	if err := s.login(conn, reader); err != nil {
		conn.Close()
		s.state = Disconnected
		return err
	}

	s.conn = conn
	s.state = LoggedIn
	go s.drain(conn, reader)
	return nil
}

// login reads the banner, sends the login line and checks the response.
func (s *Session) login(conn net.Conn, reader *bufio.Reader) error {
	if s.cfg.LoginTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.LoginTimeout))
		defer conn.SetReadDeadline(time.Time{})
	}

	banner, err := readLine(reader)
	if err != nil {
		return fmt.Errorf("error reading server banner: %w", err)
	}
	s.log.Info("APRS-IS server", "banner", banner)

	s.log.Debug("sending login", "call", s.cfg.Callsign, "vers", s.cfg.Software, "filter", fmt.Sprintf("m/%d", s.cfg.RangeKm))
	if _, err := io.WriteString(conn, s.cfg.loginLine()); err != nil {
		return fmt.Errorf("failed to send login string: %w", err)
	}

	resp, err := readLine(reader)
	if err != nil {
		return fmt.Errorf("error reading login response: %w", err)
	}
	s.log.Info("APRS-IS login", "response", resp)
	if !LoginAccepted(resp) {
		return fmt.Errorf("%w: %s", ErrLoginRejected, resp)
	}
	return nil
}

// LoginAccepted applies the server response rule: a verified logresp, or
// a server heartbeat comment, as long as neither says unverified.
func LoginAccepted(resp string) bool {
	if strings.Contains(resp, "unverified") {
		return false
	}
	if strings.Contains(resp, "# logresp") && strings.Contains(resp, " verified") {
		return true
	}
	return strings.HasPrefix(resp, "# aprsc") || strings.HasPrefix(resp, "# jav")
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("timeout waiting for server: %w", err)
		}
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("connection closed by server: %w", err)
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// drain keeps reading what the server sends so its queue never backs up.
func (s *Session) drain(conn net.Conn, reader *bufio.Reader) {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.log.Warn("APRS-IS connection lost", "err", err)
				s.closeLocked()
			}
			s.mu.Unlock()
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if s.onLine != nil {
			s.onLine(line)
		} else {
			s.log.Debug("APRS-IS", "line", line)
		}
	}
}

// Send writes b on the current connection. The connectivity check gates
// only this first write. If it fails, or there is no connection, Send
// waits RetryDelay, reconnects and writes exactly once more.
func (s *Session) Send(ctx context.Context, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := ErrUnreachable
	if s.reachableLocked(ctx) {
		err = s.writeLocked(b)
	}
	if err == nil {
		return nil
	}
	s.log.Warn("APRS-IS send failed, reconnecting", "err", err)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.RetryDelay):
	}
	if err := s.connectLocked(ctx); err != nil {
		return err
	}
	return s.writeLocked(b)
}

func (s *Session) writeLocked(b []byte) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if _, err := s.conn.Write(b); err != nil {
		s.closeLocked()
		return fmt.Errorf("write to APRS-IS: %w", err)
	}
	return nil
}

func (s *Session) reachableLocked(ctx context.Context) bool {
	if s.probe == nil {
		return true
	}
	if !s.probedAt.IsZero() && time.Since(s.probedAt) < s.cfg.ProbeCache {
		return s.reachable
	}
	s.reachable = s.probe.Reachable(ctx)
	s.probedAt = time.Now()
	return s.reachable
}

// Close drops the connection.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.log.Info("closing APRS-IS connection")
	}
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.state = Disconnected
}
