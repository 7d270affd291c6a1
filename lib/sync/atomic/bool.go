// Package atomic 提供少量并发安全的标志位
package atomic

import "sync/atomic"

// Boolean 并发安全的布尔值，零值为 false
type Boolean uint32

func (b *Boolean) Get() bool {
	return atomic.LoadUint32((*uint32)(b)) != 0
}

func (b *Boolean) Set(v bool) {
	if v {
		atomic.StoreUint32((*uint32)(b), 1)
	} else {
		atomic.StoreUint32((*uint32)(b), 0)
	}
}

// CompareAndSet 仅当当前值为 old 时设置为 v，返回是否设置成功
func (b *Boolean) CompareAndSet(old, v bool) bool {
	return atomic.CompareAndSwapUint32((*uint32)(b), toUint32(old), toUint32(v))
}

func toUint32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
