package redistest

import (
	"net"
	"os"
	"path/filepath"
	"strconv"

	"atom/tcp"
)

// Server 在后台协程中通过 tcp.ListenAndServe 对外提供 Store
type Server struct {
	*Store
	listener  net.Listener
	closeChan chan struct{}
	served    chan struct{}
}

// NewServer 在 127.0.0.1 的随机端口上启动一个存储
func NewServer() (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return serve(listener), nil
}

// NewUnixServer 在 dir 下创建 unix socket 并启动一个存储
func NewUnixServer(dir string) (*Server, error) {
	path := filepath.Join(dir, "redis.sock")
	_ = os.Remove(path)
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return serve(listener), nil
}

func serve(listener net.Listener) *Server {
	s := &Server{
		Store:     NewStore(),
		listener:  listener,
		closeChan: make(chan struct{}),
		served:    make(chan struct{}),
	}
	go func() {
		defer close(s.served)
		tcp.ListenAndServe(listener, s.Store, s.closeChan)
	}()
	return s
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Host 返回 TCP 服务的地址，unix socket 时为空
func (s *Server) Host() string {
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return ""
}

func (s *Server) Port() int {
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// SocketPath 返回 unix socket 的路径，TCP 服务时为空
func (s *Server) SocketPath() string {
	if addr, ok := s.listener.Addr().(*net.UnixAddr); ok {
		return addr.Name
	}
	return ""
}

func (s *Server) String() string {
	if path := s.SocketPath(); path != "" {
		return "unix://" + path
	}
	return net.JoinHostPort(s.Host(), strconv.Itoa(s.Port()))
}

// Close 停止监听并关闭所有连接，等待服务协程退出
func (s *Server) Close() error {
	select {
	case <-s.closeChan:
	default:
		close(s.closeChan)
	}
	<-s.served
	return nil
}
