package redis

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"atom/interface/transport"
)

var errNotConnected = errors.New("transport not connected")

// socket 保存已经建立的 net.Conn，供两种 transport 共用读写逻辑
type socket struct {
	mu   sync.Mutex
	conn net.Conn
}

func (s *socket) get() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *socket) set(conn net.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *socket) Read(p []byte) (int, error) {
	conn := s.get()
	if conn == nil {
		return 0, errNotConnected
	}
	return conn.Read(p)
}

func (s *socket) Write(p []byte) (int, error) {
	conn := s.get()
	if conn == nil {
		return 0, errNotConnected
	}
	return conn.Write(p)
}

func (s *socket) SetDeadline(t time.Time) error {
	conn := s.get()
	if conn == nil {
		return errNotConnected
	}
	return conn.SetDeadline(t)
}

func (s *socket) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

/* ---- TCP ---- */

type tcpTransport struct {
	socket
	addr string
}

// NewTCPTransport 创建连接到 host:port 的 TCP transport
func NewTCPTransport(host string, port int) transport.Transport {
	return &tcpTransport{addr: net.JoinHostPort(host, strconv.Itoa(port))}
}

func (t *tcpTransport) Connect(ctx context.Context) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return err
	}
	t.set(conn)
	return nil
}

func (t *tcpTransport) Shutdown() error {
	conn, ok := t.get().(*net.TCPConn)
	if !ok {
		return errNotConnected
	}
	return conn.CloseWrite()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.addr
}

/* ---- unix socket ---- */

type unixTransport struct {
	socket
	path string
}

// NewUnixTransport 创建连接到本地 unix socket 的 transport
func NewUnixTransport(path string) transport.Transport {
	return &unixTransport{path: path}
}

func (t *unixTransport) Connect(ctx context.Context) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", t.path)
	if err != nil {
		return err
	}
	t.set(conn)
	return nil
}

func (t *unixTransport) Shutdown() error {
	conn, ok := t.get().(*net.UnixConn)
	if !ok {
		return errNotConnected
	}
	return conn.CloseWrite()
}

func (t *unixTransport) RemoteAddr() string {
	return t.path
}
