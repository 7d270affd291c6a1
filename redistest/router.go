package redistest

import (
	"strings"

	"atom/protocol"
)

// ExecFunc 执行一条命令，args 不包含命令名
type ExecFunc func(s *Store, args [][]byte) protocol.Reply

type command struct {
	name     string
	executor ExecFunc
	// arity 包含命令名；负数表示参数个数至少为 -arity
	arity int
}

var cmdTable = make(map[string]*command)

func registerCommand(name string, executor ExecFunc, arity int) {
	name = strings.ToLower(name)
	cmdTable[name] = &command{
		name:     name,
		executor: executor,
		arity:    arity,
	}
}

func validateArity(arity int, cmdArgs [][]byte) bool {
	argNum := len(cmdArgs)
	if arity >= 0 {
		return argNum == arity
	}
	return argNum >= -arity
}

func init() {
	registerCommand("ping", execPing, -1)
	registerCommand("set", execSet, -3)
	registerCommand("get", execGet, 2)
	registerCommand("xadd", execXAdd, -5)
	registerCommand("xrange", execXRange, -4)
	registerCommand("xrevrange", execXRevRange, -4)
	registerCommand("xread", execXRead, -4)
	registerCommand("xgroup", execXGroup, -2)
	registerCommand("xreadgroup", execXReadGroup, -7)
	registerCommand("xack", execXAck, -4)
	registerCommand("xdel", execXDel, -3)
	registerCommand("xlen", execXLen, 2)
	registerCommand("script", execScript, -2)
}
