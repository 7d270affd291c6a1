// Package tcp 提供通用的流式服务端循环，每个连接交给 Handler 在独立协程中处理
package tcp

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"atom/interface/tcp"
	"atom/lib/logger"
)

type Config struct {
	Network string // tcp 或 unix，默认 tcp
	Address string
}

var clientCount int32

// ClientCount 当前正在处理的连接数
func ClientCount() int32 {
	return atomic.LoadInt32(&clientCount)
}

// ListenAndServeWithSignal 监听 cfg.Address，收到退出信号后优雅关闭
func ListenAndServeWithSignal(cfg *Config, handler tcp.Handler) error {
	closeChan := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT:
			close(closeChan)
		}
	}()
	network := cfg.Network
	if network == "" {
		network = "tcp"
	}
	listener, err := net.Listen(network, cfg.Address)
	if err != nil {
		return err
	}

	logger.Info(fmt.Sprintf("bind: %s://%s, start listening...", network, cfg.Address))
	ListenAndServe(listener, handler, closeChan)
	return nil
}

// ListenAndServe 在 listener 上接受连接，直到 closeChan 关闭或 Accept 出错。
// 返回前会等待所有连接处理完毕。
func ListenAndServe(listener net.Listener, handler tcp.Handler, closeChan <-chan struct{}) {
	errCh := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-closeChan:
			logger.Info("get exit signal")
		case err := <-errCh:
			logger.Info(fmt.Sprintf("accept error: %s", err.Error()))
		case <-done:
		}
		logger.Info("shutting down...")
		_ = listener.Close()
		_ = handler.Close()
	}()

	ctx := context.Background()
	var waitDone sync.WaitGroup

	// 每一个连接由一个独立的 goroutine 处理
	for {
		conn, err := listener.Accept()
		if err != nil {
			// 如果是超时错误，重新尝试
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("accept occurs timeout error: %v", err)
				time.Sleep(5 * time.Millisecond)
				continue
			}
			errCh <- err
			break
		}
		logger.Debug("accept link")
		atomic.AddInt32(&clientCount, 1)
		waitDone.Add(1)
		go func() {
			defer func() {
				waitDone.Done()
				atomic.AddInt32(&clientCount, -1)
			}()
			handler.Handle(ctx, conn)
		}()
	}
	waitDone.Wait()
}
