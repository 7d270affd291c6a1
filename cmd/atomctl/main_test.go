package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atom/redistest"
)

func TestWriteAndRead(t *testing.T) {
	color.NoColor = true
	srv, err := redistest.NewServer()
	require.NoError(t, err)
	defer srv.Close()

	base := []string{"--host", srv.Host(), "--port", strconv.Itoa(srv.Port()), "--timeout", "2s"}
	var stdout, stderr bytes.Buffer

	require.NoError(t, run(append(base, "write", "cam", "x", "1"), &stdout, &stderr))
	require.NoError(t, run(append(base, "-m", "msgpack", "write", "cam", "y", "2"), &stdout, &stderr))
	assert.Equal(t, 2, srv.Len("cam"))

	stdout.Reset()
	require.NoError(t, run(append(base, "-m", "msgpack", "read", "cam", "5"), &stdout, &stderr))
	out := stdout.String()
	assert.Contains(t, out, `y="2"`)
	assert.Contains(t, out, "<not msgpack>")

	stdout.Reset()
	require.NoError(t, run(append(base, "since", "cam", "0", "1"), &stdout, &stderr))
	assert.Contains(t, stdout.String(), `x="1"`)

	err = run(append(base, "write", "cam", "id", "42"), &stdout, &stderr)
	assert.Error(t, err)
	assert.Equal(t, 2, srv.Calls("XADD"))
}

func TestScriptCommand(t *testing.T) {
	color.NoColor = true
	srv, err := redistest.NewServer()
	require.NoError(t, err)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "noop.lua")
	require.NoError(t, os.WriteFile(path, []byte("return 1"), 0o644))
	var stdout, stderr bytes.Buffer
	args := []string{"--host", srv.Host(), "--port", strconv.Itoa(srv.Port()), "script", path}
	require.NoError(t, run(args, &stdout, &stderr))
	assert.Equal(t, "e0e1f9fabfc9d4800c877a703b823ac0578ff8db\n", stdout.String())
}

func TestConfigFile(t *testing.T) {
	srv, err := redistest.NewUnixServer(t.TempDir())
	require.NoError(t, err)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "atom.yaml")
	content := "element: tester\nredis:\n  use_socket: true\n  socket: " + srv.SocketPath() + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv(envConfig, path)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"write", "cam", "k", "v"}, &stdout, &stderr))
	assert.Equal(t, 1, srv.Len("cam"))
}

func TestUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Error(t, run(nil, &stdout, &stderr))
	assert.Error(t, run([]string{"--bogus"}, &stdout, &stderr))
	assert.Error(t, run([]string{"-m", "arrow", "read", "cam"}, &stdout, &stderr))
	assert.NoError(t, run([]string{"--help"}, &stdout, &stderr))
}
