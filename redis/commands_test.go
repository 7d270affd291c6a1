package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atom/atomerr"
	"atom/redistest"
)

func dialStore(t *testing.T, srv *redistest.Server) *Connection {
	t.Helper()
	var c *Connection
	if path := srv.SocketPath(); path != "" {
		c = NewUnix(path, WithTimeout(2*time.Second))
	} else {
		c = NewTCP(srv.Host(), srv.Port(), WithTimeout(2*time.Second))
	}
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() {
		_ = c.Disconnect()
	})
	return c
}

func TestXAddThenXRange(t *testing.T) {
	srv, err := redistest.NewServer()
	require.NoError(t, err)
	defer srv.Close()
	c := dialStore(t, srv)

	var ids []string
	for _, payload := range []string{"a", "b", "c"} {
		reply, err := c.XAdd("cam", "none", []byte(payload))
		require.NoError(t, err)
		values, err := reply.Values()
		require.NoError(t, err)
		require.Len(t, values, 1)
		ids = append(ids, string(values[0]))
		c.ReleaseRxBuffer(reply)
	}

	reply, err := c.XRange("cam", "-", "+", 10)
	require.NoError(t, err)
	entries, err := reply.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, ids[i], string(e.ID))
	}
	payloads, err := reply.Field("none")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, payloads)
	c.ReleaseRxBuffer(reply)

	reply, err = c.XRevRange("cam", "+", "-", 1)
	require.NoError(t, err)
	entries, err = reply.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ids[2], string(entries[0].ID))
	c.ReleaseRxBuffer(reply)

	reply, err = c.XRead(10, "cam", ids[0])
	require.NoError(t, err)
	streams, err := reply.Streams()
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "cam", string(streams[0].Stream))
	assert.Len(t, streams[0].Entries, 2)
	c.ReleaseRxBuffer(reply)
}

func TestRejectedCommandNeverReachesStore(t *testing.T) {
	srv, err := redistest.NewServer()
	require.NoError(t, err)
	defer srv.Close()
	c := dialStore(t, srv)

	reply, err := c.XAdd("cam", "none", []byte("a"))
	require.NoError(t, err)
	_, err = c.XRange("cam", "-", "+", 10)
	assert.Equal(t, atomerr.InvalidCommand, atomerr.CodeOf(err))
	assert.Equal(t, 0, srv.Calls("XRANGE"))
	c.ReleaseRxBuffer(reply)

	reply, err = c.XRange("cam", "-", "+", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Calls("XRANGE"))
	c.ReleaseRxBuffer(reply)
}

func TestConsumerGroupFlow(t *testing.T) {
	srv, err := redistest.NewServer()
	require.NoError(t, err)
	defer srv.Close()
	c := dialStore(t, srv)

	reply, err := c.XGroup("cam", "workers", "$")
	require.NoError(t, err)
	c.ReleaseRxBuffer(reply)

	reply, err = c.XGroup("cam", "workers", "$")
	assert.Equal(t, atomerr.StoreError, atomerr.CodeOf(err))
	assert.Contains(t, err.Error(), "BUSYGROUP")
	assert.Greater(t, reply.Size(), 0)
	c.ReleaseRxBuffer(reply)

	reply, err = c.XAddID("cam", "1-1", "none", []byte("job"))
	require.NoError(t, err)
	c.ReleaseRxBuffer(reply)
	reply, err = c.XAddID("cam", "1-0", "none", []byte("late"))
	assert.Equal(t, atomerr.StoreError, atomerr.CodeOf(err))
	c.ReleaseRxBuffer(reply)

	reply, err = c.XReadGroup("workers", "w1", 100*time.Millisecond, 10, "cam", ">")
	require.NoError(t, err)
	entries, err := reply.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1-1", string(entries[0].ID))
	c.ReleaseRxBuffer(reply)

	// 没有新条目时阻塞到超时，返回空回复
	reply, err = c.XReadGroup("workers", "w1", 50*time.Millisecond, 10, "cam", ">")
	require.NoError(t, err)
	streams, err := reply.Streams()
	require.NoError(t, err)
	assert.Empty(t, streams)
	c.ReleaseRxBuffer(reply)

	reply, err = c.XAck("cam", "workers", "1-1")
	require.NoError(t, err)
	values, err := reply.Values()
	require.NoError(t, err)
	assert.Equal(t, "1", string(values[0]))
	c.ReleaseRxBuffer(reply)

	reply, err = c.XDel("cam", "1-1")
	require.NoError(t, err)
	c.ReleaseRxBuffer(reply)

	reply, err = c.Set("cam", []byte("now a string"))
	require.NoError(t, err)
	c.ReleaseRxBuffer(reply)
	reply, err = c.XAdd("cam", "none", []byte("x"))
	assert.Equal(t, atomerr.StoreError, atomerr.CodeOf(err))
	c.ReleaseRxBuffer(reply)
}

func TestLargeReplyGrowsBuffer(t *testing.T) {
	srv, err := redistest.NewServer()
	require.NoError(t, err)
	defer srv.Close()
	c := dialStore(t, srv)

	payload := make([]byte, 64*1024)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}
	reply, err := c.XAdd("big", "none", payload)
	require.NoError(t, err)
	c.ReleaseRxBuffer(reply)

	reply, err = c.XRange("big", "-", "+", 1)
	require.NoError(t, err)
	values, err := reply.Field("none")
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, payload, values[0])
	c.ReleaseRxBuffer(reply)
}

func TestUnixSocketTransport(t *testing.T) {
	srv, err := redistest.NewUnixServer(t.TempDir())
	require.NoError(t, err)
	defer srv.Close()
	c := dialStore(t, srv)
	assert.Equal(t, srv.SocketPath(), c.RemoteAddr())

	reply, err := c.Set("version", []byte("v0.1.0"))
	require.NoError(t, err)
	c.ReleaseRxBuffer(reply)

	reply, err = c.XAdd("cam", "none", []byte("x"))
	require.NoError(t, err)
	c.ReleaseRxBuffer(reply)
	assert.Equal(t, 1, srv.Len("cam"))
}

func TestStoreShutdownGivesNoResponse(t *testing.T) {
	srv, err := redistest.NewServer()
	require.NoError(t, err)
	c := dialStore(t, srv)
	require.NoError(t, srv.Close())

	reply, err := c.XAdd("cam", "none", []byte("x"))
	code := atomerr.CodeOf(err)
	// 对端关闭后写可能成功也可能失败，读一定拿不到回复
	assert.Contains(t, []atomerr.Code{atomerr.NoResponse, atomerr.InternalError}, code)
	assert.Equal(t, 0, reply.Size())
}
