// Package redistest 提供一个进程内的 stream 存储，实现客户端用到的命令子集，
// 通过 TCP 或 unix socket 对外服务，供测试和本地调试使用。
package redistest

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"atom/lib/logger"
	"atom/lib/sync/atomic"
	"atom/lib/sync/wait"
	"atom/lib/utils"
	"atom/parser"
	"atom/protocol"
)

type Store struct {
	mu      sync.Mutex
	streams map[string]*stream
	strings map[string][]byte
	scripts map[string][]byte
	calls   map[string]int
	added   chan struct{} // 每次 XADD 后关闭并替换，唤醒阻塞读

	activeConn sync.Map
	closing    atomic.Boolean
	done       chan struct{}

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		streams: make(map[string]*stream),
		strings: make(map[string][]byte),
		scripts: make(map[string][]byte),
		calls:   make(map[string]int),
		added:   make(chan struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Exec 执行一条命令并返回回复
func (s *Store) Exec(cmdLine [][]byte) (result protocol.Reply) {
	defer func() {
		if err := recover(); err != nil {
			logger.Warnf("exec panic: %v\n%s", err, debug.Stack())
			result = errStoreFault
		}
	}()
	if len(cmdLine) == 0 {
		return errEmptyCmd
	}
	name := strings.ToLower(string(cmdLine[0]))
	s.mu.Lock()
	s.calls[name]++
	s.mu.Unlock()

	cmd, ok := cmdTable[name]
	if !ok {
		return unknownCommandErr(name)
	}
	if !validateArity(cmd.arity, cmdLine) {
		return argNumErr(name)
	}
	return cmd.executor(s, cmdLine[1:])
}

// Calls 返回名为 name 的命令被执行的次数（不区分大小写）
func (s *Store) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[strings.ToLower(name)]
}

// Len 返回 stream 中的条目数
func (s *Store) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.streams[key]; ok {
		return len(st.entries)
	}
	return 0
}

// notifyAdded 唤醒所有阻塞读，调用方需持有 mu
func (s *Store) notifyAdded() {
	close(s.added)
	s.added = make(chan struct{})
}

// poll 执行 read 直到它返回非 nil、阻塞超时或存储关闭。
// blocking 为 false 时只执行一次；block 为 0 表示一直等待
func (s *Store) poll(blocking bool, block time.Duration, read func() protocol.Reply) protocol.Reply {
	var deadline <-chan time.Time
	if blocking && block > 0 {
		timer := time.NewTimer(block)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		s.mu.Lock()
		reply := read()
		added := s.added
		s.mu.Unlock()
		if reply != nil {
			return reply
		}
		if !blocking {
			return protocol.MakeNullMultiBulkReply()
		}
		select {
		case <-added:
		case <-deadline:
			return protocol.MakeNullMultiBulkReply()
		case <-s.done:
			return protocol.MakeNullMultiBulkReply()
		}
	}
}

/* ---------- 连接处理 ---------- */

type client struct {
	conn    net.Conn
	waiting wait.Wait
}

func (c *client) Close() error {
	c.waiting.WaitWithTimeout(10 * time.Second)
	return c.conn.Close()
}

// Handle 处理一个客户端连接：解析命令流，逐条执行并写回回复
func (s *Store) Handle(ctx context.Context, conn net.Conn) {
	if s.closing.Get() {
		_ = conn.Close()
		return
	}
	c := &client{conn: conn}
	s.activeConn.Store(c, struct{}{})
	defer s.activeConn.Delete(c)

	ch := parser.ParseStream(conn)
	defer func() {
		// 连接关闭后解析协程会以 I/O 错误结束
		go func() {
			for range ch {
			}
		}()
	}()
	for payload := range ch {
		if payload.Err != nil {
			if errors.Is(payload.Err, io.EOF) || errors.Is(payload.Err, io.ErrUnexpectedEOF) ||
				errors.Is(payload.Err, net.ErrClosed) {
				logger.Debug("connection closed: " + conn.RemoteAddr().String())
				_ = conn.Close()
				return
			}
			errReply := protocol.MakeErrReply(payload.Err.Error())
			if _, err := conn.Write(errReply.ToBytes()); err != nil {
				_ = conn.Close()
				return
			}
			continue
		}
		cmd, ok := payload.Data.(*protocol.MultiBulkReply)
		if !ok {
			logger.Error("require multi bulk protocol")
			continue
		}
		logger.Debugf("exec: %s", strings.Join(utils.FromCmdLine(cmd.Args), " "))
		c.waiting.Add(1)
		reply := s.Exec(cmd.Args)
		_, err := conn.Write(reply.ToBytes())
		c.waiting.Done()
		if err != nil {
			_ = conn.Close()
			return
		}
	}
	_ = conn.Close()
}

// Close 拒绝新连接，唤醒阻塞读，并关闭所有活跃连接
func (s *Store) Close() error {
	logger.Debug("store shutting down")
	if !s.closing.CompareAndSet(false, true) {
		return nil
	}
	close(s.done)
	s.activeConn.Range(func(key, _ any) bool {
		_ = key.(*client).Close()
		return true
	})
	return nil
}
