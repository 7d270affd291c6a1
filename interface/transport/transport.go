package transport

import (
	"context"
	"time"
)

// Transport 是连接底层的字节通道，TCP 和 unix socket 各有一个实现
type Transport interface {
	// 建立连接，只会在连接未建立时调用一次
	Connect(ctx context.Context) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// 关闭写方向
	Shutdown() error
	Close() error
	SetDeadline(t time.Time) error
	RemoteAddr() string
}
