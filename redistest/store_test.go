package redistest

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atom/lib/utils"
	"atom/protocol"
)

func exec(s *Store, cmd ...string) string {
	return string(s.Exec(utils.ToCmdLine(cmd...)).ToBytes())
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time {
		return time.UnixMilli(ms)
	}
}

func TestXAddIDs(t *testing.T) {
	s := NewStore()
	s.now = fixedClock(1000)

	assert.Equal(t, "$6\r\n1000-0\r\n", exec(s, "XADD", "cam", "*", "none", "a"))
	// 时钟没有前进时序号递增
	assert.Equal(t, "$6\r\n1000-1\r\n", exec(s, "XADD", "cam", "*", "none", "b"))
	assert.Equal(t, "$6\r\n2000-5\r\n", exec(s, "XADD", "cam", "2000-5", "none", "c"))
	assert.Contains(t, exec(s, "XADD", "cam", "2000-5", "none", "d"), "equal or smaller")
	assert.Contains(t, exec(s, "XADD", "other", "0-0", "none", "d"), "greater than 0-0")
	assert.Contains(t, exec(s, "XADD", "cam", "*", "none"), "wrong number of arguments")
	assert.Equal(t, 3, s.Len("cam"))
	assert.Equal(t, 6, s.Calls("XADD"))
}

func TestXRangeAndRevRange(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"1-0", "2-0", "3-0"} {
		exec(s, "XADD", "cam", id, "k", id)
	}

	replies, err := parseOne(exec(s, "XRANGE", "cam", "-", "+", "COUNT", "2"))
	require.NoError(t, err)
	require.Len(t, replies.Elems, 2)
	assert.Equal(t, "1-0", string(replies.Elems[0].Elems[0].Str))

	replies, err = parseOne(exec(s, "XREVRANGE", "cam", "+", "-", "COUNT", "1"))
	require.NoError(t, err)
	require.Len(t, replies.Elems, 1)
	assert.Equal(t, "3-0", string(replies.Elems[0].Elems[0].Str))

	replies, err = parseOne(exec(s, "XRANGE", "cam", "2", "2"))
	require.NoError(t, err)
	require.Len(t, replies.Elems, 1)
	assert.Equal(t, "2-0", string(replies.Elems[0].Elems[0].Str))

	assert.Equal(t, "*0\r\n", exec(s, "XRANGE", "missing", "-", "+"))
	assert.Equal(t, "*0\r\n", exec(s, "XREVRANGE", "missing", "+", "-"))
}

func TestXRead(t *testing.T) {
	s := NewStore()
	exec(s, "XADD", "cam", "1-0", "k", "v")
	exec(s, "XADD", "cam", "2-0", "k", "w")

	v, err := parseOne(exec(s, "XREAD", "COUNT", "10", "STREAMS", "cam", "1-0"))
	require.NoError(t, err)
	require.Len(t, v.Elems, 1)
	assert.Equal(t, "cam", string(v.Elems[0].Elems[0].Str))
	require.Len(t, v.Elems[0].Elems[1].Elems, 1)
	assert.Equal(t, "2-0", string(v.Elems[0].Elems[1].Elems[0].Elems[0].Str))

	assert.Equal(t, "*-1\r\n", exec(s, "XREAD", "COUNT", "10", "STREAMS", "cam", "$"))
	assert.Contains(t, exec(s, "XREAD", "COUNT", "1", "STREAMS", "cam"), "Unbalanced")
}

func TestXReadBlockWakesOnAdd(t *testing.T) {
	s := NewStore()
	result := make(chan string, 1)
	go func() {
		result <- exec(s, "XREAD", "BLOCK", "5000", "STREAMS", "cam", "$")
	}()
	time.Sleep(50 * time.Millisecond)
	exec(s, "XADD", "cam", "7-0", "k", "v")
	select {
	case r := <-result:
		assert.Contains(t, r, "7-0")
	case <-time.After(5 * time.Second):
		t.Fatal("blocking read was not woken")
	}
}

func TestConsumerGroup(t *testing.T) {
	s := NewStore()
	assert.Contains(t, exec(s, "XGROUP", "CREATE", "cam", "g", "$"), "requires the key to exist")
	assert.Equal(t, "+OK\r\n", exec(s, "XGROUP", "CREATE", "cam", "g", "$", "MKSTREAM"))
	assert.Contains(t, exec(s, "XGROUP", "CREATE", "cam", "g", "$", "MKSTREAM"), "BUSYGROUP")
	assert.Contains(t, exec(s, "XREADGROUP", "GROUP", "nope", "c", "STREAMS", "cam", ">"), "NOGROUP")

	exec(s, "XADD", "cam", "1-0", "k", "a")
	exec(s, "XADD", "cam", "2-0", "k", "b")

	v, err := parseOne(exec(s, "XREADGROUP", "GROUP", "g", "c1", "COUNT", "1", "STREAMS", "cam", ">"))
	require.NoError(t, err)
	assert.Equal(t, "1-0", string(v.Elems[0].Elems[1].Elems[0].Elems[0].Str))
	v, err = parseOne(exec(s, "XREADGROUP", "GROUP", "g", "c1", "COUNT", "1", "STREAMS", "cam", ">"))
	require.NoError(t, err)
	assert.Equal(t, "2-0", string(v.Elems[0].Elems[1].Elems[0].Elems[0].Str))
	assert.Equal(t, "*-1\r\n", exec(s, "XREADGROUP", "GROUP", "g", "c1", "STREAMS", "cam", ">"))

	// 删除后的 pending 条目字段为 nil
	assert.Equal(t, ":1\r\n", exec(s, "XDEL", "cam", "2-0"))
	v, err = parseOne(exec(s, "XREADGROUP", "GROUP", "g", "c1", "STREAMS", "cam", "0"))
	require.NoError(t, err)
	pending := v.Elems[0].Elems[1].Elems
	require.Len(t, pending, 2)
	assert.False(t, pending[0].Elems[1].Null)
	assert.True(t, pending[1].Elems[1].Null)

	assert.Equal(t, ":1\r\n", exec(s, "XACK", "cam", "g", "1-0"))
	assert.Equal(t, ":0\r\n", exec(s, "XACK", "cam", "g", "1-0"))
	assert.Equal(t, ":0\r\n", exec(s, "XDEL", "cam", "2-0"))
}

func TestSetAndScript(t *testing.T) {
	s := NewStore()
	assert.Equal(t, "+OK\r\n", exec(s, "SET", "version", "1"))
	assert.Equal(t, "$1\r\n1\r\n", exec(s, "GET", "version"))
	assert.Contains(t, exec(s, "XADD", "version", "*", "k", "v"), "WRONGTYPE")
	// sha1("return 1")
	assert.Equal(t, "$40\r\ne0e1f9fabfc9d4800c877a703b823ac0578ff8db\r\n", exec(s, "SCRIPT", "LOAD", "return 1"))
	assert.Contains(t, exec(s, "NOPE"), "unknown command")
}

func TestErrorReplies(t *testing.T) {
	s := NewStore()
	cases := []struct {
		cmd  []string
		want string
	}{
		{[]string{"XRANGE", "cam", "-", "+", "LIMIT", "1"}, "-ERR syntax error\r\n"},
		{[]string{"XRANGE", "cam", "-", "+", "COUNT", "x"}, "-ERR value is not an integer or out of range\r\n"},
		{[]string{"XGROUP", "DESTROY", "cam", "g"}, "-ERR unknown subcommand 'DESTROY'\r\n"},
		{[]string{"SCRIPT", "LOAD"}, "-ERR wrong number of arguments for 'script|load' command\r\n"},
		{[]string{"GET"}, "-ERR wrong number of arguments for 'get' command\r\n"},
		{[]string{"nope"}, "-ERR unknown command 'nope'\r\n"},
	}
	for _, c := range cases {
		if got := exec(s, c.cmd...); got != c.want {
			t.Errorf("%v: expected %q, actually %q", c.cmd, c.want, got)
		}
	}
	if got := string(s.Exec(nil).ToBytes()); got != "-ERR empty command\r\n" {
		t.Errorf("unexpected reply to empty command %q", got)
	}
}

func TestServerOverTCP(t *testing.T) {
	srv, err := NewServer()
	require.NoError(t, err)
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(protocol.MakeMultiBulkReply(utils.ToCmdLine("PING")).ToBytes())
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "+PONG\r\n", line)
	assert.Equal(t, 1, srv.Calls("ping"))
}

func TestServerOverUnixSocket(t *testing.T) {
	srv, err := NewUnixServer(t.TempDir())
	require.NoError(t, err)
	defer srv.Close()

	conn, err := net.Dial("unix", srv.SocketPath())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(protocol.MakeMultiBulkReply(utils.ToCmdLine("SET", "k", "v")).ToBytes())
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", line)
}

func parseOne(raw string) (protocol.Value, error) {
	v, _, err := protocol.Parse([]byte(raw))
	return v, err
}
