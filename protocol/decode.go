package protocol

import (
	"bytes"
	"errors"
	"strconv"
)

// Kind 回复类型，取值为 RESP 的首字节
type Kind byte

const (
	KindStatus Kind = '+'
	KindError  Kind = '-'
	KindInt    Kind = ':'
	KindBulk   Kind = '$'
	KindArray  Kind = '*'
)

const (
	// 嵌套数组的最大深度
	maxDepth = 16
	// bulk string 的最大长度，与 redis 的 proto-max-bulk-len 默认值一致
	maxBulkLen = 512 << 20
	// 数组的最大元素个数
	maxArrayLen = 1 << 24
	// 一个元素至少占用的字节数，如 "+\r\n"
	minElemSize = 3
)

// ErrIncomplete 表示缓冲区中还没有一个完整的回复，需要继续读取
var ErrIncomplete = errors.New("protocol: incomplete reply")

// Error 表示回复不符合 RESP 格式
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return "protocol error: " + e.Msg
}

func protocolError(msg string) error {
	return &Error{Msg: msg}
}

// Value 是解析后的一个回复。
// Str 直接指向接收缓冲区中的字节，不做拷贝，缓冲区被复用后不再有效。
type Value struct {
	Kind  Kind
	Str   []byte // status / error / bulk 的内容，int 的原始文本
	Int   int64
	Elems []Value
	Null  bool // $-1 或 *-1
}

func (v *Value) IsError() bool {
	return v.Kind == KindError
}

// FirstError 深度优先查找回复中嵌入的错误回复
func (v *Value) FirstError() ([]byte, bool) {
	if v.IsError() {
		return v.Str, true
	}
	for i := range v.Elems {
		if msg, ok := v.Elems[i].FirstError(); ok {
			return msg, true
		}
	}
	return nil, false
}

// Parse 从 buf 头部解析一个完整的回复，返回回复和消耗的字节数。
// 数据不完整时返回 ErrIncomplete。
func Parse(buf []byte) (Value, int, error) {
	return parseValue(buf, 0, 0)
}

func readLine(buf []byte, pos int) ([]byte, int, error) {
	idx := bytes.IndexByte(buf[pos:], '\n')
	if idx < 0 {
		return nil, pos, ErrIncomplete
	}
	end := pos + idx
	// 判断行是否以 CRLF 结尾
	if idx == 0 || buf[end-1] != '\r' {
		return nil, pos, protocolError("line not terminated by CRLF")
	}
	return buf[pos : end-1], end + 1, nil
}

func parseValue(buf []byte, pos int, depth int) (Value, int, error) {
	if depth > maxDepth {
		return Value{}, pos, protocolError("nested too deep")
	}
	start := pos
	line, next, err := readLine(buf, pos)
	if err != nil {
		return Value{}, start, err
	}
	if len(line) == 0 {
		return Value{}, start, protocolError("empty line")
	}
	kind := Kind(line[0])
	content := line[1:len(line):len(line)]
	switch kind {
	case KindStatus, KindError:
		return Value{Kind: kind, Str: content}, next, nil
	case KindInt:
		n, err := strconv.ParseInt(string(content), 10, 64)
		if err != nil {
			return Value{}, start, protocolError("illegal number " + string(content))
		}
		return Value{Kind: kind, Str: content, Int: n}, next, nil
	case KindBulk:
		// $3\r\nSET\r\n
		strLen, err := strconv.ParseInt(string(content), 10, 64)
		if err != nil || strLen < -1 || strLen > maxBulkLen {
			return Value{}, start, protocolError("illegal bulk string header: " + string(line))
		}
		if strLen == -1 {
			return Value{Kind: kind, Null: true}, next, nil
		}
		if strLen > int64(len(buf)-next-2) {
			return Value{}, start, ErrIncomplete
		}
		end := next + int(strLen)
		if buf[end] != '\r' || buf[end+1] != '\n' {
			return Value{}, start, protocolError("bulk string not terminated by CRLF")
		}
		return Value{Kind: kind, Str: buf[next:end:end]}, end + 2, nil
	case KindArray:
		nElems, err := strconv.ParseInt(string(content), 10, 64)
		if err != nil || nElems < -1 || nElems > maxArrayLen {
			return Value{}, start, protocolError("illegal array header " + string(line))
		}
		if nElems == -1 {
			return Value{Kind: kind, Null: true}, next, nil
		}
		// 预分配不超过剩余字节能容纳的元素个数
		capacity := nElems
		if remain := int64((len(buf) - next) / minElemSize); capacity > remain {
			capacity = remain
		}
		elems := make([]Value, 0, capacity)
		pos = next
		for i := int64(0); i < nElems; i++ {
			var elem Value
			elem, pos, err = parseValue(buf, pos, depth+1)
			if err != nil {
				return Value{}, start, err
			}
			elems = append(elems, elem)
		}
		return Value{Kind: kind, Elems: elems}, pos, nil
	default:
		return Value{}, start, protocolError("unknown reply type " + strconv.Quote(string(line[:1])))
	}
}
