package wait

import (
	"context"
	"sync"
	"time"
)

// Wait 在 sync.WaitGroup 的基础上增加了超时和 context 取消
type Wait struct {
	wg sync.WaitGroup
}

func (w *Wait) Add(delta int) {
	w.wg.Add(delta)
}

func (w *Wait) Done() {
	w.wg.Done()
}

func (w *Wait) Wait() {
	w.wg.Wait()
}

// 等待超时后返回 true，否则返回 false
func (w *Wait) WaitWithTimeout(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return w.WaitContext(ctx)
}

// WaitContext 等待完成或 ctx 结束，ctx 先结束时返回 true
func (w *Wait) WaitContext(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		// 等待完成后发送关闭信号
		defer close(done)
		w.Wait()
	}()
	select {
	case <-done:
		return false
	case <-ctx.Done():
		return true
	}
}
