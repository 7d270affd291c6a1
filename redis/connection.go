// Package redis 实现与 stream 存储之间的单连接命令层。
//
// 一个 Connection 同一时刻只允许一条命令在途：命令写出后同步读取一个完整回复，
// 回复以 Reply 视图的形式直接引用连接的接收缓冲区，不做拷贝。
// 调用方用完回复后必须调用 ReleaseRxBuffer，在此之前连接拒绝下一条命令。
//
//	reply, err := conn.XRange("cam", "-", "+", 10)
//	defer conn.ReleaseRxBuffer(reply)
package redis

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"

	"atom/atomerr"
	"atom/interface/transport"
	"atom/lib/logger"
	"atom/lib/sync/wait"
	"atom/protocol"
)

// 连接状态：unconnected -> (connecting) -> connected -> closed
const (
	unconnected = iota
	connecting
	connected
	closed
)

var statusNames = []string{"unconnected", "connecting", "connected", "closed"}

type Connection struct {
	transport transport.Transport

	stateMu sync.Mutex // 保护 status 和 codec
	status  int
	codec   *protocol.Codec
	started wait.Wait // 异步连接完成后 Done

	cmdMu       sync.Mutex // 保证同一时刻只有一条命令
	rx          *protocol.Buffer
	outstanding *Reply // 尚未释放的回复

	timeout time.Duration
	metrics *metrics.Metrics
}

type Option func(*Connection)

// WithTimeout 设置每条命令的读写超时，阻塞命令会在此基础上加上 BLOCK 时长
func WithTimeout(timeout time.Duration) Option {
	return func(c *Connection) {
		c.timeout = timeout
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connection) {
		c.metrics = m
	}
}

// WithBufferSize 设置接收缓冲区的初始大小，回复更大时会自动扩容
func WithBufferSize(size int) Option {
	return func(c *Connection) {
		c.rx = protocol.NewBuffer(size)
	}
}

func New(t transport.Transport, opts ...Option) *Connection {
	c := &Connection{
		transport: t,
		status:    unconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rx == nil {
		c.rx = protocol.NewBuffer(0)
	}
	if c.metrics == nil {
		c.metrics = blackholeMetrics()
	}
	return c
}

// NewTCP 创建使用 TCP 连接的 Connection
func NewTCP(host string, port int, opts ...Option) *Connection {
	return New(NewTCPTransport(host, port), opts...)
}

// NewUnix 创建使用 unix socket 的 Connection
func NewUnix(path string, opts ...Option) *Connection {
	return New(NewUnixTransport(path), opts...)
}

func blackholeMetrics() *metrics.Metrics {
	conf := metrics.DefaultConfig("atom")
	conf.EnableRuntimeMetrics = false
	conf.EnableHostname = false
	m, err := metrics.New(conf, &metrics.BlackholeSink{})
	if err != nil {
		logger.Error("init metrics failed: " + err.Error())
		return nil
	}
	return m
}

func (c *Connection) RemoteAddr() string {
	return c.transport.RemoteAddr()
}

// Status 返回当前连接状态的名字
func (c *Connection) Status() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return statusNames[c.status]
}

func (c *Connection) Connected() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.status == connected
}

/* ---------- 连接管理 ---------- */

// 只有 unconnected 状态允许发起连接
func (c *Connection) beginConnect() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.status != unconnected {
		logger.Warn("connect called on " + statusNames[c.status] + " connection")
		return atomerr.New(atomerr.InvalidCommand)
	}
	c.status = connecting
	return nil
}

// wrapSocket 在 connecting -> connected 时创建 codec，保证只包装一次
func (c *Connection) wrapSocket() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.status != connecting {
		// 连接过程中被 Stop
		_ = c.transport.Close()
		return atomerr.New(atomerr.InternalError)
	}
	c.codec = protocol.NewCodec(c.transport)
	c.status = connected
	return nil
}

// Connect 同步建立连接
func (c *Connection) Connect(ctx context.Context) error {
	if err := c.beginConnect(); err != nil {
		return err
	}
	if err := c.transport.Connect(ctx); err != nil {
		logger.Error("connection was unsuccessful: " + err.Error())
		c.stateMu.Lock()
		if c.status == connecting {
			c.status = unconnected
		}
		c.stateMu.Unlock()
		return atomerr.New(atomerr.InternalError)
	}
	return c.wrapSocket()
}

// Disconnect 同步断开连接：先关闭写方向，再关闭 socket
func (c *Connection) Disconnect() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	prev := c.status
	c.status = closed
	if prev != connected {
		return nil
	}
	if err := c.transport.Shutdown(); err != nil {
		logger.Error("shutdown failed: " + err.Error())
		_ = c.transport.Close()
		return atomerr.New(atomerr.InternalError)
	}
	if err := c.transport.Close(); err != nil {
		logger.Error("close failed: " + err.Error())
		return atomerr.New(atomerr.InternalError)
	}
	return nil
}

// Start 异步建立连接，立即返回。
// 连接完成后调用 onConnect：失败时连接会被 Stop，成功时与 Connect 一样完成包装。
func (c *Connection) Start(ctx context.Context, onConnect func(error)) error {
	if err := c.beginConnect(); err != nil {
		return err
	}
	c.started.Add(1)
	go func() {
		defer c.started.Done()
		var result error
		if err := c.transport.Connect(ctx); err != nil {
			logger.Error("connection was unsuccessful: " + err.Error())
			c.Stop()
			result = atomerr.New(atomerr.InternalError)
		} else if result = c.wrapSocket(); result == nil {
			logger.Info("connection to Redis was successful.")
		}
		if onConnect != nil {
			onConnect(result)
		}
	}()
	return nil
}

// WaitStarted 等待 Start 发起的连接完成（包括回调），超时返回 false
func (c *Connection) WaitStarted(timeout time.Duration) bool {
	return !c.started.WaitWithTimeout(timeout)
}

// Stop 关闭 socket，进行中的读写会立即失败
func (c *Connection) Stop() {
	logger.Info("closing socket")
	c.closeSocket()
}

func (c *Connection) closeSocket() {
	c.stateMu.Lock()
	c.status = closed
	c.stateMu.Unlock()
	_ = c.transport.Close()
}

func (c *Connection) currentCodec() (*protocol.Codec, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.status != connected {
		return nil, atomerr.New(atomerr.InternalError)
	}
	return c.codec, nil
}

/* ---------- 接收缓冲区 ---------- */

// ReleaseRxBuffer 释放 reply 的所有子视图，并消费它在接收缓冲区中占用的字节。
// 重复释放或释放空回复不会产生任何效果。
func (c *Connection) ReleaseRxBuffer(reply *Reply) {
	if reply == nil {
		return
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	if reply.released {
		return
	}
	current := reply == c.outstanding
	reply.invalidate()
	if !current {
		return
	}
	c.outstanding = nil
	c.rx.Consume(reply.size)
}

// ReleaseRxBytes 直接消费接收缓冲区头部的 n 个字节，未释放的回复随之失效
func (c *Connection) ReleaseRxBytes(n int) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	if c.outstanding != nil {
		c.outstanding.invalidate()
		c.outstanding = nil
	}
	c.rx.Consume(n)
}

/* ---------- 命令执行 ---------- */

// 读失败的分类：对端关闭或超时视为没有响应，其余为内部错误
func classify(err error) *atomerr.Error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrDeadlineExceeded) {
		return atomerr.New(atomerr.NoResponse)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return atomerr.New(atomerr.NoResponse)
	}
	return atomerr.New(atomerr.InternalError)
}

func (c *Connection) do(shape Shape, block time.Duration, args [][]byte) (*Reply, error) {
	start := time.Now()
	reply, err := c.roundTrip(shape, block, args)
	if c.metrics != nil {
		labels := []metrics.Label{{Name: "command", Value: strings.ToLower(string(args[0]))}}
		c.metrics.IncrCounterWithLabels([]string{"redis", "commands"}, 1, labels)
		c.metrics.MeasureSinceWithLabels([]string{"redis", "latency"}, start, labels)
		if err != nil {
			labels = append(labels, metrics.Label{Name: "code", Value: strconv.Itoa(int(atomerr.CodeOf(err)))})
			c.metrics.IncrCounterWithLabels([]string{"redis", "errors"}, 1, labels)
		}
	}
	return reply, err
}

func (c *Connection) roundTrip(shape Shape, block time.Duration, args [][]byte) (*Reply, error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if c.outstanding != nil {
		logger.Warn("previous reply has not been released, rejecting " + string(args[0]))
		return emptyReply(), atomerr.New(atomerr.InvalidCommand)
	}
	codec, err := c.currentCodec()
	if err != nil {
		logger.Error("connection is not established")
		return emptyReply(), err
	}
	if c.timeout > 0 {
		_ = c.transport.SetDeadline(time.Now().Add(c.timeout + block))
	}

	// 读写失败后 socket 中可能还残留着迟到的回复，无法再与命令对齐，连接直接关闭
	if err := codec.Write(args); err != nil {
		logger.Error("write failed, closing socket: " + err.Error())
		c.rx.Reset()
		c.closeSocket()
		return emptyReply(), atomerr.New(atomerr.InternalError)
	}
	value, consumed, err := codec.Read(c.rx)
	if err != nil {
		logger.Error("read failed, closing socket: " + err.Error())
		c.rx.Reset()
		c.closeSocket()
		return emptyReply(), classify(err)
	}

	reply := &Reply{
		size:  consumed,
		rx:    c.rx,
		gen:   c.rx.Generation(),
		shape: shape,
		raw:   c.rx.Bytes()[:consumed:consumed],
	}
	c.outstanding = reply

	if msg, ok := value.FirstError(); ok {
		storeErr := atomerr.NewStoreError(string(msg))
		logger.Error(storeErr.StoreErrorMessage())
		return reply, storeErr
	}
	if err := reply.decode(&value); err != nil {
		logger.Error(string(args[0]) + ": " + err.Error())
		reply.invalidate()
		c.outstanding = nil
		c.rx.Consume(consumed)
		return emptyReply(), atomerr.New(atomerr.InternalError)
	}
	return reply, nil
}
