package redistest

import (
	"atom/protocol"
)

// 存储返回的固定错误回复，内容不可变，可以共享
var (
	errSyntax     = protocol.MakeErrReply("ERR syntax error")
	errWrongType  = protocol.MakeErrReply("WRONGTYPE Operation against a key holding the wrong kind of value")
	errNotInteger = protocol.MakeErrReply("ERR value is not an integer or out of range")
	errNotTimeout = protocol.MakeErrReply("ERR timeout is not an integer or out of range")
	errEmptyCmd   = protocol.MakeErrReply("ERR empty command")
	// 执行命令时 panic
	errStoreFault = protocol.MakeErrReply("ERR stream store failed to execute command")
)

func argNumErr(cmd string) *protocol.StandardErrReply {
	return protocol.MakeErrReply("ERR wrong number of arguments for '" + cmd + "' command")
}

func unknownCommandErr(name string) *protocol.StandardErrReply {
	return protocol.MakeErrReply("ERR unknown command '" + name + "'")
}

func unknownSubcommandErr(sub []byte) *protocol.StandardErrReply {
	return protocol.MakeErrReply("ERR unknown subcommand '" + string(sub) + "'")
}
