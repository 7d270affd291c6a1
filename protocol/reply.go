package protocol

import (
	"bytes"
	"strconv"
)

var CRLF = "\r\n"

/*
BulkReply: 批量字符串回复
*/
type BulkReply struct {
	Arg []byte
}

// 字符串回复
func MakeBulkReply(arg []byte) *BulkReply {
	return &BulkReply{
		Arg: arg,
	}
}

func (r *BulkReply) ToBytes() []byte {
	if r.Arg == nil {
		return nullBulkBytes
	}
	// $5\r\nmamba\r\n
	return []byte("$" + strconv.Itoa(len(r.Arg)) + CRLF + string(r.Arg) + CRLF)
}

/*
MultiBulkReply: 多个 Bulk 字符串组成的数组，客户端发送的命令也使用这种格式
*/
type MultiBulkReply struct {
	Args [][]byte
}

func MakeMultiBulkReply(args [][]byte) *MultiBulkReply {
	return &MultiBulkReply{
		Args: args,
	}
}

// *2\r\n
// $5\r\n
// hello\r\n
// $5\r\n
// world\r\n

func (r *MultiBulkReply) ToBytes() []byte {
	var buf bytes.Buffer
	WriteMultiBulk(&buf, r.Args)
	return buf.Bytes()
}

// WriteMultiBulk 将 args 按 multi bulk 格式追加写入 buf
func WriteMultiBulk(buf *bytes.Buffer, args [][]byte) {
	// * + len + CRLF
	argLen := len(args)
	bufLen := 1 + len(strconv.Itoa(argLen)) + 2
	for _, arg := range args {
		if arg == nil {
			bufLen += 3 + 2
		} else {
			bufLen += 1 + len(strconv.Itoa(len(arg))) + 2 + len(arg) + 2
		}
	}

	// 分配缓冲区空间
	buf.Grow(bufLen)
	// 写入
	buf.WriteString("*")
	buf.WriteString(strconv.Itoa(argLen))
	buf.WriteString(CRLF)
	for _, arg := range args {
		if arg == nil {
			buf.WriteString("$-1")
			buf.WriteString(CRLF)
		} else {
			buf.WriteString("$")
			buf.WriteString(strconv.Itoa(len(arg)))
			buf.WriteString(CRLF)
			buf.Write(arg)
			buf.WriteString(CRLF)
		}
	}
}

// 由已经构造好的回复组成的数组，用于嵌套结构（例如 XRANGE 的结果）
type MultiRawReply struct {
	Replies []Reply
}

func MakeMultiRawReply(replies []Reply) *MultiRawReply {
	return &MultiRawReply{
		Replies: replies,
	}
}

func (r *MultiRawReply) ToBytes() []byte {
	argLen := len(r.Replies)
	var buf bytes.Buffer
	buf.WriteString("*" + strconv.Itoa(argLen) + CRLF)
	for _, arg := range r.Replies {
		buf.Write(arg.ToBytes())
	}
	return buf.Bytes()
}

/* ---- Status Reply ---- */

// 状态回复
type StatusReply struct {
	Status string
}

func MakeStatusReply(status string) *StatusReply {
	return &StatusReply{
		Status: status,
	}
}

// +OK\r\n
func (r *StatusReply) ToBytes() []byte {
	return []byte("+" + r.Status + CRLF)
}

/* ---- Int Reply ---- */

// 整数回复（Integer）
type IntReply struct {
	Code int64
}

func MakeIntReply(code int64) *IntReply {
	return &IntReply{
		Code: code,
	}
}

// :1000\r\n
func (r *IntReply) ToBytes() []byte {
	return []byte(":" + strconv.FormatInt(r.Code, 10) + CRLF)
}

/* ---- Error Reply ---- */

// ErrorReply is an error and Reply
type ErrorReply interface {
	Error() string
	ToBytes() []byte
}

type StandardErrReply struct {
	Status string
}

func MakeErrReply(status string) *StandardErrReply {
	return &StandardErrReply{
		Status: status,
	}
}

func (r *StandardErrReply) ToBytes() []byte {
	return []byte("-" + r.Status + CRLF)
}

func (r *StandardErrReply) Error() string {
	return r.Status
}
