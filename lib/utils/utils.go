package utils

import (
	"math/rand"
	"time"
)

// 将 string 类型的命令转为 [][]byte 类型（即 CmdLine)
func ToCmdLine(cmd ...string) [][]byte {
	args := make([][]byte, len(cmd))
	for i, s := range cmd {
		args[i] = []byte(s)
	}
	return args
}

// 将 command 和 args 命令转为 CmdLine 类型
func ToCmdLine2(command string, args ...string) [][]byte {
	result := make([][]byte, len(args)+1)
	result[0] = []byte(command)
	for i, arg := range args {
		result[i+1] = []byte(arg)
	}
	return result
}

// 将 CmdLine 转回 string 切片
func FromCmdLine(cmdLine [][]byte) []string {
	result := make([]string, len(cmdLine))
	for i, arg := range cmdLine {
		result[i] = string(arg)
	}
	return result
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

var r = rand.New(rand.NewSource(time.Now().UnixNano()))

func RandString(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return string(b)
}
