package protocol

import (
	"io"
)

const (
	defaultBufferSize = 4096
	// 连续读到 0 字节且没有错误的次数上限
	maxConsecutiveEmptyReads = 100
)

// Buffer 是连接的接收窗口。
// 解析出的回复直接引用 data 中的字节，Consume 之后这些字节会被覆盖，
// 每次 Consume 都会增加 generation，持有旧 generation 的视图据此判断自己已失效。
type Buffer struct {
	data []byte
	n    int // 已读入但尚未消费的字节数
	gen  uint64
}

func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Buffer{data: make([]byte, size)}
}

// Bytes 返回窗口中尚未消费的字节
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

func (b *Buffer) Len() int {
	return b.n
}

func (b *Buffer) Cap() int {
	return len(b.data)
}

func (b *Buffer) Generation() uint64 {
	return b.gen
}

// Fill 从 r 读取数据追加到窗口末尾，窗口已满时扩容。
// r 连续多次返回 (0, nil) 时返回 io.ErrNoProgress
func (b *Buffer) Fill(r io.Reader) (int, error) {
	if b.n == len(b.data) {
		grown := make([]byte, 2*len(b.data))
		copy(grown, b.data[:b.n])
		b.data = grown
	}
	for i := 0; i < maxConsecutiveEmptyReads; i++ {
		n, err := r.Read(b.data[b.n:])
		b.n += n
		if n > 0 || err != nil {
			return n, err
		}
	}
	return 0, io.ErrNoProgress
}

// Consume 释放窗口头部的 n 个字节，剩余数据前移
func (b *Buffer) Consume(n int) {
	if n > b.n {
		n = b.n
	}
	if n < 0 {
		n = 0
	}
	copy(b.data, b.data[n:b.n])
	b.n -= n
	b.gen++
}

// Reset 丢弃窗口中的所有数据
func (b *Buffer) Reset() {
	b.Consume(b.n)
}
