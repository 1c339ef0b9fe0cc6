// Package httpsink implements the HTTP sink: posting serialized lines to an
// HTTP endpoint over a fresh connection per send, spooling to a local file
// while the endpoint is unreachable, and replaying the spool iteratively on
// recovery.
package httpsink

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

const (
	userAgent     = "curl/7.68.0"
	dialTimeout   = 5 * time.Second
	replyDeadline = 5 * time.Second
)

// Config configures a Sink.
type Config struct {
	Host      string
	Port      string
	SpoolPath string

	// DialTimeout and ReplyDeadline override the package defaults; zero
	// means use the default.
	DialTimeout   time.Duration
	ReplyDeadline time.Duration

	// Dial lets tests substitute a fake connector. Defaults to
	// net.DialTimeout against the resolved address.
	Dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

func (c *Config) withDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = dialTimeout
	}
	if c.ReplyDeadline <= 0 {
		c.ReplyDeadline = replyDeadline
	}
	if c.Dial == nil {
		c.Dial = net.DialTimeout
	}
}

// Sink is the HTTP delivery sink with spool fallback.
type Sink struct {
	cfg    Config
	addr   string // resolved "ip:port" dialed for every send
	logger *slog.Logger

	lastSendSucceeded bool

	spoolWriter *os.File
}

// New constructs a Sink. It does not touch the network until Init is called.
func New(cfg Config, logger *slog.Logger) *Sink {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sink{
		cfg:               cfg,
		logger:            logger,
		lastSendSucceeded: true,
	}
}

// Init resolves host:port to a single endpoint. No connection is kept open;
// resolution failure is the only way Init can fail.
func (s *Sink) Init() error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("sink/http: resolve %s:%s: %w", s.cfg.Host, s.cfg.Port, err)
	}
	s.addr = tcpAddr.String()
	return nil
}

// Write serializes line into an HTTP POST and delivers it, spooling on
// failure and replaying the accumulated spool once a send succeeds again.
//
// The request is rebuilt from line on every call, not only when the last
// send succeeded: rebuilding lazily would resend a previous call's bytes
// during a failing streak and drop the current line from the network path
// entirely, leaving it only in the spool.
func (s *Sink) Write(line string) error {
	ok := s.attemptSend(s.buildRequest(line))

	switch {
	case ok && s.lastSendSucceeded:
		return nil

	case ok && !s.lastSendSucceeded:
		return s.recover()

	case !ok && s.lastSendSucceeded:
		s.lastSendSucceeded = false
		s.logger.Warn("sink/http: send failed, entering spool mode", "addr", s.addr)
		return s.openSpoolFresh(nil)

	default: // !ok && !lastSendSucceeded
		return s.appendSpool(line)
	}
}

// buildRequest constructs the raw HTTP/1.1 POST request bytes for line.
func (s *Sink) buildRequest(line string) []byte {
	var b bytes.Buffer
	b.WriteString("POST / HTTP/1.1\r\n")
	fmt.Fprintf(&b, "Host: %s:%s\r\n", s.cfg.Host, s.cfg.Port)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("Accept: */*\r\n")
	b.WriteString("Content-Type: application/json\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(line))
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(line)
	return b.Bytes()
}

// attemptSend opens a fresh connection, writes req, and reads the reply
// under a deadline. It returns true iff the reply's status code is not 500.
func (s *Sink) attemptSend(req []byte) bool {
	conn, err := s.cfg.Dial("tcp", s.addr, s.cfg.DialTimeout)
	if err != nil {
		s.logger.Debug("sink/http: dial failed", "addr", s.addr, "error", err.Error())
		return false
	}
	defer conn.Close()

	if _, err := conn.Write(req); err != nil {
		s.logger.Debug("sink/http: write failed", "error", err.Error())
		return false
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReplyDeadline))
	reply, err := io.ReadAll(conn)
	if err != nil && len(reply) == 0 {
		s.logger.Debug("sink/http: read failed", "error", err.Error())
		return false
	}

	status, _ := parseReply(reply)
	return status != "500"
}

// parseReply extracts the three-character status code (the first token
// after the first space on the status line) and the body (everything after
// the first "\r\n\r\n"). Deliberately naive: no header parsing, no chunked
// decoding.
func parseReply(reply []byte) (status, body string) {
	text := string(reply)
	statusLineEnd := strings.IndexByte(text, '\n')
	statusLine := text
	if statusLineEnd >= 0 {
		statusLine = text[:statusLineEnd]
	}
	if sp := strings.IndexByte(statusLine, ' '); sp >= 0 {
		rest := statusLine[sp+1:]
		if len(rest) >= 3 {
			status = rest[:3]
		} else {
			status = rest
		}
	}
	if idx := strings.Index(text, "\r\n\r\n"); idx >= 0 {
		body = text[idx+4:]
	}
	return status, body
}

// recover drains and deletes the spool file, replaying each line iteratively
// (never recursing into Write). On a replay failure it re-enters spooling
// with the failed line and every remaining, not-yet-replayed line rewritten
// to a fresh spool file, preserving order.
func (s *Sink) recover() error {
	if err := s.closeSpoolWriter(); err != nil {
		return err
	}

	f, err := os.Open(s.cfg.SpoolPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.lastSendSucceeded = true
			return nil
		}
		return fmt.Errorf("sink/http: open spool for replay: %w", err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return fmt.Errorf("sink/http: read spool: %w", scanErr)
	}

	for i, replayLine := range lines {
		req := s.buildRequest(replayLine)
		if s.attemptSend(req) {
			continue
		}
		// Replay failed partway through: go back to spooling with this line
		// and everything after it, iteratively — not a recursive call.
		s.logger.Warn("sink/http: replay failed, resuming spool mode", "addr", s.addr)
		return s.openSpoolFresh(lines[i:])
	}

	if err := os.Remove(s.cfg.SpoolPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sink/http: remove spool after replay: %w", err)
	}
	s.lastSendSucceeded = true
	s.logger.Info("sink/http: recovered, spool drained", "addr", s.addr)
	return nil
}

// openSpoolFresh truncates (or creates) the spool file and writes carry, if
// any, as its initial contents, leaving the file open for subsequent
// appends.
func (s *Sink) openSpoolFresh(carry []string) error {
	if err := s.closeSpoolWriter(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.cfg.SpoolPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("sink/http: open spool: %w", err)
	}
	s.spoolWriter = f
	for _, line := range carry {
		if _, err := fmt.Fprintln(f, line); err != nil {
			return fmt.Errorf("sink/http: write spool: %w", err)
		}
	}
	return nil
}

// appendSpool appends one line to the already-open spool writer.
func (s *Sink) appendSpool(line string) error {
	if s.spoolWriter == nil {
		if err := s.openSpoolFresh(nil); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(s.spoolWriter, line); err != nil {
		return fmt.Errorf("sink/http: append spool: %w", err)
	}
	return nil
}

func (s *Sink) closeSpoolWriter() error {
	if s.spoolWriter == nil {
		return nil
	}
	err := s.spoolWriter.Close()
	s.spoolWriter = nil
	if err != nil {
		return fmt.Errorf("sink/http: close spool: %w", err)
	}
	return nil
}

// Close releases the spool file handle, if one is open.
func (s *Sink) Close() error {
	return s.closeSpoolWriter()
}
