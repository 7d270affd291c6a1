package redis

import (
	"errors"

	"atom/protocol"
)

// Shape 同一种 RESP 语法在不同命令下代表不同的逻辑结构，按命令选择解码方式
type Shape int

const (
	FlatPair     Shape = iota // 单个值或值列表，例如 XADD 返回的 id
	EntryMap                  // [[id, [field, value ...]] ...]，XRANGE / XREVRANGE
	EntryMapList              // [[stream, EntryMap] ...]，XREAD / XREADGROUP
)

// ErrReleased 回复已经释放，或者它引用的接收缓冲区已经被复用
var ErrReleased = errors.New("reply already released")

type Field struct {
	Key   []byte
	Value []byte
}

type Entry struct {
	ID     []byte
	Fields []Field
}

type StreamEntries struct {
	Stream  []byte
	Entries []Entry
}

// Reply 是连接接收缓冲区上的一个只读视图，所有切片都直接引用缓冲区。
// 使用完之后必须调用 Connection.ReleaseRxBuffer，在此之前连接不会接受下一条命令。
type Reply struct {
	size  int
	rx    *protocol.Buffer
	gen   uint64
	shape Shape

	raw      []byte
	values   [][]byte
	entries  []Entry
	streams  []StreamEntries
	fields   map[string][][]byte
	released bool
}

// 传输失败或命令被拒绝时返回的空回复
func emptyReply() *Reply {
	return &Reply{}
}

// EmptyReply 返回不引用任何缓冲区的空回复，Size 为 0
func EmptyReply() *Reply {
	return emptyReply()
}

// Size 回复占用的接收缓冲区字节数，释放后仍然可读
func (r *Reply) Size() int {
	return r.size
}

func (r *Reply) Shape() Shape {
	return r.shape
}

func (r *Reply) Released() bool {
	return r.released
}

func (r *Reply) check() error {
	if r.released {
		return ErrReleased
	}
	if r.rx != nil && r.rx.Generation() != r.gen {
		return ErrReleased
	}
	return nil
}

// Bytes 返回回复的原始 RESP 字节
func (r *Reply) Bytes() ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.raw, nil
}

// Values 返回 FlatPair 回复中的值
func (r *Reply) Values() ([][]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.values, nil
}

// Entries 返回回复中的所有条目，EntryMapList 会把各个 stream 的条目依次拼接
func (r *Reply) Entries() ([]Entry, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.entries, nil
}

func (r *Reply) Streams() ([]StreamEntries, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.streams, nil
}

// Field 返回所有条目中名为 name 的字段值，按条目顺序排列
func (r *Reply) Field(name string) ([][]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.fields[name], nil
}

// invalidate 先释放所有子视图，再把回复标记为已释放
func (r *Reply) invalidate() {
	for k := range r.fields {
		delete(r.fields, k)
	}
	r.fields = nil
	r.streams = nil
	r.entries = nil
	r.values = nil
	r.raw = nil
	r.released = true
}

var errShape = errors.New("reply does not match the expected shape")

func (r *Reply) decode(v *protocol.Value) error {
	switch r.shape {
	case FlatPair:
		r.values = decodeFlat(v)
		return nil
	case EntryMap:
		if v.Null {
			return nil
		}
		entries, err := decodeEntries(v)
		if err != nil {
			return err
		}
		r.entries = entries
	case EntryMapList:
		if v.Null {
			return nil
		}
		streams, err := decodeStreams(v)
		if err != nil {
			return err
		}
		r.streams = streams
		for _, s := range streams {
			r.entries = append(r.entries, s.Entries...)
		}
	}
	r.fields = make(map[string][][]byte)
	for _, e := range r.entries {
		for _, f := range e.Fields {
			r.fields[string(f.Key)] = append(r.fields[string(f.Key)], f.Value)
		}
	}
	return nil
}

func decodeFlat(v *protocol.Value) [][]byte {
	if v.Null {
		return nil
	}
	if v.Kind != protocol.KindArray {
		return [][]byte{v.Str}
	}
	values := make([][]byte, 0, len(v.Elems))
	for i := range v.Elems {
		if v.Elems[i].Kind == protocol.KindArray {
			continue
		}
		values = append(values, v.Elems[i].Str)
	}
	return values
}

// [id, [field, value, ...]]
func decodeEntry(v *protocol.Value) (Entry, error) {
	if v.Kind != protocol.KindArray || len(v.Elems) != 2 {
		return Entry{}, errShape
	}
	entry := Entry{ID: v.Elems[0].Str}
	body := &v.Elems[1]
	// 已被删除但仍在 pending 列表中的条目没有字段
	if body.Null {
		return entry, nil
	}
	if body.Kind != protocol.KindArray || len(body.Elems)%2 != 0 {
		return Entry{}, errShape
	}
	entry.Fields = make([]Field, 0, len(body.Elems)/2)
	for i := 0; i < len(body.Elems); i += 2 {
		entry.Fields = append(entry.Fields, Field{
			Key:   body.Elems[i].Str,
			Value: body.Elems[i+1].Str,
		})
	}
	return entry, nil
}

func decodeEntries(v *protocol.Value) ([]Entry, error) {
	if v.Kind != protocol.KindArray {
		return nil, errShape
	}
	entries := make([]Entry, 0, len(v.Elems))
	for i := range v.Elems {
		entry, err := decodeEntry(&v.Elems[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// [[stream, [[id, [field, value ...]] ...]] ...]
func decodeStreams(v *protocol.Value) ([]StreamEntries, error) {
	if v.Kind != protocol.KindArray {
		return nil, errShape
	}
	streams := make([]StreamEntries, 0, len(v.Elems))
	for i := range v.Elems {
		s := &v.Elems[i]
		if s.Kind != protocol.KindArray || len(s.Elems) != 2 {
			return nil, errShape
		}
		entries, err := decodeEntries(&s.Elems[1])
		if err != nil {
			return nil, err
		}
		streams = append(streams, StreamEntries{Stream: s.Elems[0].Str, Entries: entries})
	}
	return streams, nil
}
