package protocol

import (
	"bytes"
	"errors"
	"io"
)

// Codec 负责把命令写到连接上，并从接收窗口中读出一个完整回复
type Codec struct {
	rw io.ReadWriter
	tx bytes.Buffer // 发送缓冲区，在命令之间复用
}

func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{rw: rw}
}

// Write 将命令编码为 multi bulk 并一次写出
func (c *Codec) Write(args [][]byte) error {
	if len(args) == 0 {
		return errors.New("empty command")
	}
	c.tx.Reset()
	WriteMultiBulk(&c.tx, args)
	_, err := c.rw.Write(c.tx.Bytes())
	return err
}

// Read 读取一个完整回复，返回回复以及它在 rx 中占用的字节数。
// 回复引用 rx 中的数据，调用方必须在下一次读取之前 Consume 掉这些字节。
func (c *Codec) Read(rx *Buffer) (Value, int, error) {
	for {
		value, consumed, err := Parse(rx.Bytes())
		if err == nil {
			return value, consumed, nil
		}
		if !errors.Is(err, ErrIncomplete) {
			return Value{}, 0, err
		}
		n, err := rx.Fill(c.rw)
		if err != nil {
			if n > 0 && errors.Is(err, io.EOF) {
				// 最后一段数据仍然可能构成完整回复
				continue
			}
			return Value{}, 0, err
		}
	}
}
