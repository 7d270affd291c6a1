package redistest

import (
	"context"
	"io"
	"net"
	"sync"
	"time"
)

// Transport 一个内存中的假连接：Feed 写入的字节作为回复被读出，客户端写出的字节被记录下来。
// 没有数据可读时 Read 阻塞，直到有新数据或连接关闭
type Transport struct {
	mu      sync.Mutex
	rx      []byte
	offset  int
	tx      []byte
	closed  bool
	waiting chan struct{}

	connects  int
	shutdowns int

	// 注入的错误
	ConnectErr error
	ReadErr    error
	WriteErr   error
	// 不为 nil 时 Connect 阻塞到 Gate 关闭或 ctx 结束
	Gate chan struct{}
}

func NewTransport() *Transport {
	return &Transport{}
}

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.connects++
	gate := t.Gate
	err := t.ConnectErr
	t.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Feed 追加可供读取的回复字节
func (t *Transport) Feed(b []byte) {
	t.mu.Lock()
	t.rx = append(t.rx, b...)
	t.mu.Unlock()
	t.notify()
}

func (t *Transport) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, net.ErrClosed
	}
	if t.WriteErr != nil {
		return 0, t.WriteErr
	}
	t.tx = append(t.tx, b...)
	return len(b), nil
}

func (t *Transport) Read(p []byte) (int, error) {
	for {
		t.mu.Lock()
		if t.offset < len(t.rx) {
			n := copy(p, t.rx[t.offset:])
			t.offset += n
			t.mu.Unlock()
			return n, nil
		}
		if t.closed {
			t.mu.Unlock()
			return 0, io.EOF
		}
		if t.ReadErr != nil {
			err := t.ReadErr
			t.mu.Unlock()
			return 0, err
		}
		// 阻塞等待新的数据
		if t.waiting == nil {
			t.waiting = make(chan struct{})
		}
		waiting := t.waiting
		t.mu.Unlock()
		<-waiting
	}
}

// 通知读协程有新数据可读或者连接已关闭
func (t *Transport) notify() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.waiting != nil {
		close(t.waiting)
		t.waiting = nil
	}
}

func (t *Transport) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shutdowns++
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.notify()
	return nil
}

func (t *Transport) SetDeadline(time.Time) error {
	return nil
}

func (t *Transport) RemoteAddr() string {
	return "memory"
}

// Written 返回客户端写出的全部字节
func (t *Transport) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.tx...)
}

// Unread 返回尚未被读取的回复字节数
func (t *Transport) Unread() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rx) - t.offset
}

func (t *Transport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

func (t *Transport) Shutdowns() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdowns
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
