package serialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atom/atomerr"
)

func TestMethodNames(t *testing.T) {
	for _, m := range []Method{None, Msgpack, CBOR} {
		parsed, err := ParseMethod(MethodString(m))
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMethod("arrow")
	assert.Equal(t, atomerr.UnsupportedCommand, atomerr.CodeOf(err))
	assert.Equal(t, "unknown", Method(42).String())
}

func TestSerializeNone(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	payload, err := s.Serialize([]any{"x", "1", "raw", []byte{0, 1}}, None)
	require.NoError(t, err)
	assert.Equal(t, "*4\r\n$1\r\nx\r\n$1\r\n1\r\n$3\r\nraw\r\n$2\r\n\x00\x01\r\n", string(payload))

	data, err := s.Deserialize(payload, None)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", []byte("1"), "raw", []byte{0, 1}}, data)

	_, err = s.Serialize([]any{"x", 1}, None)
	assert.Equal(t, atomerr.InvalidCommand, atomerr.CodeOf(err))
	_, err = s.Deserialize([]byte("garbage"), None)
	assert.Equal(t, atomerr.InternalError, atomerr.CodeOf(err))
}

func TestSerializeMaps(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	for _, m := range []Method{Msgpack, CBOR} {
		t.Run(m.String(), func(t *testing.T) {
			payload, err := s.Serialize([]any{"b", "second", "a", []byte("first")}, m)
			require.NoError(t, err)

			// 相同的数据总是得到相同的字节
			again, err := s.Serialize([]any{"a", []byte("first"), "b", "second"}, m)
			require.NoError(t, err)
			assert.Equal(t, payload, again)

			data, err := s.Deserialize(payload, m)
			require.NoError(t, err)
			assert.Equal(t, []any{"a", []byte("first"), "b", "second"}, data)

			_, err = s.Serialize([]any{1, "v"}, m)
			assert.Equal(t, atomerr.InvalidCommand, atomerr.CodeOf(err))
			_, err = s.Serialize([]any{"k", func() {}}, m)
			assert.Equal(t, atomerr.InternalError, atomerr.CodeOf(err))
		})
	}
}

func TestUnknownMethod(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	_, err = s.Serialize([]any{"k", "v"}, Method(9))
	assert.Equal(t, atomerr.UnsupportedCommand, atomerr.CodeOf(err))
	_, err = s.Deserialize(nil, Method(9))
	assert.Equal(t, atomerr.UnsupportedCommand, atomerr.CodeOf(err))
	_, err = s.Serialize([]any{"k"}, None)
	assert.Equal(t, atomerr.InvalidCommand, atomerr.CodeOf(err))
}
