// Package serialization 把条目的 key/value 序列编码成写入 stream 的单个 payload。
//
// 每种方法有一个规范的字段名，条目以 "字段名 -> payload" 的形式写入 stream，
// 读取方据此选择解码方式。
package serialization

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/go-msgpack/v2/codec"

	"atom/atomerr"
	"atom/lib/logger"
	"atom/protocol"
)

type Method int

const (
	None Method = iota // 不做编码，key/value 原样以 multi bulk 帧拼接
	Msgpack
	CBOR
)

var methodNames = map[Method]string{
	None:    "none",
	Msgpack: "msgpack",
	CBOR:    "cbor",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "unknown"
}

// MethodString 返回方法的规范字段名
func MethodString(m Method) string {
	return m.String()
}

// ParseMethod 按规范字段名查找方法
func ParseMethod(name string) (Method, error) {
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	return None, atomerr.New(atomerr.UnsupportedCommand)
}

// Serializer 按方法分派编码，零值不可用，使用 New 创建
type Serializer struct {
	msgpack *codec.MsgpackHandle
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
}

func New() (*Serializer, error) {
	mh := &codec.MsgpackHandle{WriteExt: true}
	mh.Canonical = true
	mh.MapType = reflect.TypeOf(map[string]any(nil))

	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	decMode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	return &Serializer{msgpack: mh, cborEnc: encMode, cborDec: decMode}, nil
}

// Serialize 编码 key/value 交替的 data。
// 方法未知返回 UnsupportedCommand，key/value 类型不被方法接受返回 InvalidCommand，
// 编码器失败返回 InternalError
func (s *Serializer) Serialize(data []any, m Method) ([]byte, error) {
	if len(data)%2 != 0 {
		return nil, atomerr.New(atomerr.InvalidCommand)
	}
	switch m {
	case None:
		return serializeNone(data)
	case Msgpack, CBOR:
		fields, err := toMap(data)
		if err != nil {
			return nil, err
		}
		var out []byte
		if m == Msgpack {
			err = codec.NewEncoderBytes(&out, s.msgpack).Encode(fields)
		} else {
			out, err = s.cborEnc.Marshal(fields)
		}
		if err != nil {
			logger.Error(m.String() + " encode failed: " + err.Error())
			return nil, atomerr.New(atomerr.InternalError)
		}
		return out, nil
	default:
		return nil, atomerr.New(atomerr.UnsupportedCommand)
	}
}

// Deserialize 把 payload 还原成 key/value 交替的序列。
// None 保持写入时的顺序，map 编码按 key 排序
func (s *Serializer) Deserialize(payload []byte, m Method) ([]any, error) {
	switch m {
	case None:
		return deserializeNone(payload)
	case Msgpack, CBOR:
		var fields map[string]any
		var err error
		if m == Msgpack {
			err = codec.NewDecoderBytes(payload, s.msgpack).Decode(&fields)
		} else {
			err = s.cborDec.Unmarshal(payload, &fields)
		}
		if err != nil {
			logger.Error(m.String() + " decode failed: " + err.Error())
			return nil, atomerr.New(atomerr.InternalError)
		}
		return fromMap(fields), nil
	default:
		return nil, atomerr.New(atomerr.UnsupportedCommand)
	}
}

func toBytes(v any) ([]byte, bool) {
	switch val := v.(type) {
	case string:
		return []byte(val), true
	case []byte:
		return val, true
	}
	return nil, false
}

func serializeNone(data []any) ([]byte, error) {
	args := make([][]byte, 0, len(data))
	for _, v := range data {
		b, ok := toBytes(v)
		if !ok {
			return nil, atomerr.New(atomerr.InvalidCommand)
		}
		args = append(args, b)
	}
	var buf bytes.Buffer
	protocol.WriteMultiBulk(&buf, args)
	return buf.Bytes(), nil
}

func deserializeNone(payload []byte) ([]any, error) {
	v, n, err := protocol.Parse(payload)
	if err != nil || n != len(payload) || v.Kind != protocol.KindArray || len(v.Elems)%2 != 0 {
		return nil, atomerr.New(atomerr.InternalError)
	}
	data := make([]any, 0, len(v.Elems))
	for i, elem := range v.Elems {
		if i%2 == 0 {
			data = append(data, string(elem.Str))
		} else {
			data = append(data, append([]byte(nil), elem.Str...))
		}
	}
	return data, nil
}

func toMap(data []any) (map[string]any, error) {
	fields := make(map[string]any, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		key, ok := data[i].(string)
		if !ok {
			return nil, atomerr.New(atomerr.InvalidCommand)
		}
		fields[key] = data[i+1]
	}
	return fields, nil
}

func fromMap(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		data = append(data, k, fields[k])
	}
	return data
}
