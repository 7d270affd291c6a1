// Package element 实现 element：在一条连接上校验并写入 stream 条目，记录写过的 stream，
// 以及按序列化方法读取和还原条目。
package element

import (
	"sync"

	"atom/atomerr"
	"atom/config"
	"atom/lib/logger"
	"atom/redis"
	"atom/serialization"
)

// Conn 是 element 用到的连接命令
type Conn interface {
	XAdd(stream, field string, payload []byte) (*redis.Reply, error)
	XRevRange(stream, idStart, idEnd string, count int) (*redis.Reply, error)
	XRead(count int, stream, id string) (*redis.Reply, error)
}

type Serializer interface {
	Serialize(data []any, m serialization.Method) ([]byte, error)
	Deserialize(payload []byte, m serialization.Method) ([]any, error)
}

type Element struct {
	name     string
	version  string
	language string
	conn     Conn
	ser      Serializer
	reserved map[string]struct{}

	mu      sync.Mutex
	streams []string // 写过的 stream，按写入顺序，允许重复
}

// New 在已建立的连接上创建 element，props 为 nil 时使用全局配置
func New(name string, conn Conn, ser Serializer, props *config.ServerProperties) *Element {
	if props == nil {
		props = config.Properties
	}
	reserved := make(map[string]struct{})
	for _, key := range props.EntryKeys() {
		reserved[key] = struct{}{}
	}
	return &Element{
		name:     name,
		version:  props.Version,
		language: props.Language,
		conn:     conn,
		ser:      ser,
		reserved: reserved,
	}
}

func (e *Element) Name() string {
	return e.name
}

func (e *Element) Version() string {
	return e.version
}

func (e *Element) Language() string {
	return e.language
}

// Streams 返回写过的 stream 名的副本
func (e *Element) Streams() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.streams...)
}

// EntryWrite 校验 data 后序列化并追加到 stream。
//
// data 是 key/value 交替的序列，key 必须是字符串且不能是保留字段。
// 校验失败返回 InvalidCommand 和空回复，不会发送任何命令，也不会记录 stream。
// 返回的回复需要在连接上释放
func (e *Element) EntryWrite(stream string, data []any, method serialization.Method) (*redis.Reply, error) {
	if len(data) == 0 {
		logger.Error("writing empty entry to redis is not permitted")
		return redis.EmptyReply(), atomerr.New(atomerr.InvalidCommand)
	}
	if len(data)%2 != 0 {
		logger.Error("invalid entry data, each key must have a corresponding value")
		return redis.EmptyReply(), atomerr.New(atomerr.InvalidCommand)
	}
	for i := 0; i < len(data); i += 2 {
		key, ok := data[i].(string)
		if !ok {
			logger.Errorf("entry keys must be strings, got %T", data[i])
			return redis.EmptyReply(), atomerr.New(atomerr.InvalidCommand)
		}
		if _, ok := e.reserved[key]; ok {
			logger.Error("invalid key: " + key + " is a reserved key")
			return redis.EmptyReply(), atomerr.New(atomerr.InvalidCommand)
		}
	}

	e.mu.Lock()
	e.streams = append(e.streams, stream)
	e.mu.Unlock()

	payload, err := e.ser.Serialize(data, method)
	if err != nil {
		logger.Error("serialize entry for " + stream + " failed: " + err.Error())
		return redis.EmptyReply(), err
	}
	return e.conn.XAdd(stream, serialization.MethodString(method), payload)
}

// EntryReadN 读取 stream 中最新的 n 个条目，按从新到旧排列
func (e *Element) EntryReadN(stream string, n int) (*redis.Reply, error) {
	if n <= 0 {
		return redis.EmptyReply(), atomerr.New(atomerr.InvalidCommand)
	}
	return e.conn.XRevRange(stream, "+", "-", n)
}

// EntryReadSince 读取 id 大于 lastID 的最多 n 个条目，lastID 为空时从头读取
func (e *Element) EntryReadSince(stream, lastID string, n int) (*redis.Reply, error) {
	if n <= 0 {
		return redis.EmptyReply(), atomerr.New(atomerr.InvalidCommand)
	}
	if lastID == "" {
		lastID = "0"
	}
	return e.conn.XRead(n, stream, lastID)
}

// DecodeEntry 从读到的条目中取出 method 对应字段并还原成 key/value 序列。
// 结果不再引用接收缓冲区，可以在释放回复后继续使用
func (e *Element) DecodeEntry(entry redis.Entry, method serialization.Method) ([]any, error) {
	field := serialization.MethodString(method)
	for _, f := range entry.Fields {
		if string(f.Key) == field {
			return e.ser.Deserialize(f.Value, method)
		}
	}
	logger.Warn("entry " + string(entry.ID) + " was not written with " + field)
	return nil, atomerr.New(atomerr.InvalidCommand)
}
