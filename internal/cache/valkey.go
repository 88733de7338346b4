package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyConfig holds connection parameters for a Valkey/Redis-compatible server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// ValkeyProvider implements Provider over RESP2. It dials per operation and
// keeps no connection state between calls.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// NewValkeyProvider pings the server so misconfiguration fails at startup.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	p := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	reply, err := p.do(ctx, "PING")
	if err != nil {
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	if reply.kind != '+' || reply.text() != "PONG" {
		return nil, fmt.Errorf("valkey ping: unexpected reply %q", reply.text())
	}
	return p, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := p.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	switch {
	case reply.null:
		return nil, ErrCacheMiss
	case reply.kind == '$':
		return reply.data, nil
	default:
		return nil, fmt.Errorf("GET: unexpected reply type %q", reply.kind)
	}
}

// Set stores bytes with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	reply, err := p.do(ctx, setArgs(key, value, ttl, false)...)
	if err != nil {
		return err
	}
	if reply.kind != '+' || reply.text() != "OK" {
		return fmt.Errorf("SET: unexpected reply %q", reply.text())
	}
	return nil
}

// SetNX stores the value only if the key does not exist.
func (p *ValkeyProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	reply, err := p.do(ctx, setArgs(key, value, ttl, true)...)
	if err != nil {
		return false, err
	}
	if reply.null {
		return false, nil
	}
	return reply.kind == '+', nil
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	_, err := p.do(ctx, "DEL", key)
	return err
}

// Close is a no-op: connections are per operation.
func (p *ValkeyProvider) Close() error { return nil }

func setArgs(key string, value []byte, ttl time.Duration, nx bool) []any {
	args := []any{"SET", key, value}
	if ttl > 0 {
		ms := max(ttl.Milliseconds(), 1)
		args = append(args, "PX", strconv.FormatInt(ms, 10))
	}
	if nx {
		args = append(args, "NX")
	}
	return args
}

// do runs one command on a fresh connection, retrying network timeouts.
func (p *ValkeyProvider) do(ctx context.Context, args ...any) (respValue, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return respValue{}, err
		}
		reply, err := p.once(ctx, args)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			return respValue{}, err
		}
		time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
	}
	return respValue{}, lastErr
}

func (p *ValkeyProvider) once(ctx context.Context, args []any) (respValue, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return respValue{}, err
	}
	defer conn.Close()

	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	if p.cfg.Password != "" {
		auth := []any{"AUTH", p.cfg.Password}
		if p.cfg.Username != "" {
			auth = []any{"AUTH", p.cfg.Username, p.cfg.Password}
		}
		if err := p.expectOK(conn, rw, auth); err != nil {
			return respValue{}, fmt.Errorf("auth: %w", err)
		}
	}
	if p.cfg.DB > 0 {
		if err := p.expectOK(conn, rw, []any{"SELECT", strconv.Itoa(p.cfg.DB)}); err != nil {
			return respValue{}, fmt.Errorf("select db: %w", err)
		}
	}
	return p.roundTrip(conn, rw, args)
}

func (p *ValkeyProvider) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: p.cfg.DialTimeout}
	if !p.cfg.TLS {
		return dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	host, _, err := net.SplitHostPort(p.cfg.Addr)
	if err != nil {
		host = p.cfg.Addr
	}
	tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}}
	return tlsDialer.DialContext(ctx, "tcp", p.cfg.Addr)
}

func (p *ValkeyProvider) expectOK(conn net.Conn, rw *bufio.ReadWriter, args []any) error {
	reply, err := p.roundTrip(conn, rw, args)
	if err != nil {
		return err
	}
	if reply.kind != '+' || !strings.EqualFold(reply.text(), "OK") {
		return fmt.Errorf("unexpected reply %q", reply.text())
	}
	return nil
}

func (p *ValkeyProvider) roundTrip(conn net.Conn, rw *bufio.ReadWriter, args []any) (respValue, error) {
	if err := conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
		return respValue{}, err
	}
	if err := writeCommand(rw.Writer, args); err != nil {
		return respValue{}, err
	}
	if err := conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout)); err != nil {
		return respValue{}, err
	}
	return readValue(rw.Reader)
}

// respValue is a decoded RESP2 reply.
type respValue struct {
	kind byte
	data []byte
	null bool
}

func (v respValue) text() string { return string(v.data) }

func writeCommand(w *bufio.Writer, args []any) error {
	fmt.Fprintf(w, "*%d\r\n", len(args))
	for _, arg := range args {
		var b []byte
		switch a := arg.(type) {
		case string:
			b = []byte(a)
		case []byte:
			b = a
		default:
			return fmt.Errorf("unsupported argument type %T", arg)
		}
		fmt.Fprintf(w, "$%d\r\n", len(b))
		w.Write(b)
		w.WriteString("\r\n")
	}
	return w.Flush()
}

func readValue(r *bufio.Reader) (respValue, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return respValue{}, err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return respValue{}, errors.New("empty RESP line")
	}
	kind, body := line[0], line[1:]
	switch kind {
	case '+', ':':
		return respValue{kind: kind, data: []byte(body)}, nil
	case '-':
		return respValue{}, fmt.Errorf("valkey: %s", body)
	case '$':
		size, err := strconv.Atoi(body)
		if err != nil {
			return respValue{}, fmt.Errorf("bulk length: %w", err)
		}
		if size < 0 {
			return respValue{kind: kind, null: true}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return respValue{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return respValue{}, errors.New("bulk string not terminated by CRLF")
		}
		return respValue{kind: kind, data: buf[:size]}, nil
	case '_':
		return respValue{kind: kind, null: true}, nil
	default:
		return respValue{}, fmt.Errorf("unexpected RESP prefix %q", kind)
	}
}
