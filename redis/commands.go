package redis

import (
	"os"
	"strconv"
	"time"

	"atom/atomerr"
	"atom/lib/logger"
	"atom/lib/utils"
)

// XAdd 追加条目，id 由服务端生成：XADD stream * field payload
func (c *Connection) XAdd(stream, field string, payload []byte) (*Reply, error) {
	args := append(utils.ToCmdLine("XADD", stream, "*", field), payload)
	return c.do(FlatPair, 0, args)
}

// XAddID 使用指定 id 追加条目：XADD stream id field payload
func (c *Connection) XAddID(stream, id, field string, payload []byte) (*Reply, error) {
	args := append(utils.ToCmdLine("XADD", stream, id, field), payload)
	return c.do(FlatPair, 0, args)
}

// XRange XRANGE stream idStart idEnd COUNT n
func (c *Connection) XRange(stream, idStart, idEnd string, count int) (*Reply, error) {
	args := utils.ToCmdLine("XRANGE", stream, idStart, idEnd, "COUNT", strconv.Itoa(count))
	return c.do(EntryMap, 0, args)
}

// XRevRange XREVRANGE stream idStart idEnd [COUNT n]，倒序时 idStart 是较大的 id。
// count <= 0 时不带 COUNT
func (c *Connection) XRevRange(stream, idStart, idEnd string, count int) (*Reply, error) {
	args := utils.ToCmdLine("XREVRANGE", stream, idStart, idEnd)
	if count > 0 {
		args = append(args, utils.ToCmdLine("COUNT", strconv.Itoa(count))...)
	}
	return c.do(EntryMap, 0, args)
}

// XGroup 创建消费组，stream 不存在时一并创建：XGROUP CREATE stream group lastID MKSTREAM
func (c *Connection) XGroup(stream, group, lastID string) (*Reply, error) {
	args := utils.ToCmdLine("XGROUP", "CREATE", stream, group, lastID, "MKSTREAM")
	return c.do(FlatPair, 0, args)
}

// XReadGroup XREADGROUP GROUP group consumer BLOCK ms COUNT n STREAMS stream id
func (c *Connection) XReadGroup(group, consumer string, block time.Duration, count int, stream, id string) (*Reply, error) {
	args := utils.ToCmdLine("XREADGROUP", "GROUP", group, consumer,
		"BLOCK", strconv.FormatInt(block.Milliseconds(), 10),
		"COUNT", strconv.Itoa(count),
		"STREAMS", stream, id)
	return c.do(EntryMapList, block, args)
}

// XRead XREAD COUNT n STREAMS stream id
func (c *Connection) XRead(count int, stream, id string) (*Reply, error) {
	args := utils.ToCmdLine("XREAD", "COUNT", strconv.Itoa(count), "STREAMS", stream, id)
	return c.do(EntryMapList, 0, args)
}

// XAck XACK stream group id
func (c *Connection) XAck(stream, group, id string) (*Reply, error) {
	return c.do(FlatPair, 0, utils.ToCmdLine2("XACK", stream, group, id))
}

// Set SET key value
func (c *Connection) Set(key string, value []byte) (*Reply, error) {
	args := append(utils.ToCmdLine("SET", key), value)
	return c.do(FlatPair, 0, args)
}

// XDel XDEL stream id
func (c *Connection) XDel(stream, id string) (*Reply, error) {
	return c.do(FlatPair, 0, utils.ToCmdLine2("XDEL", stream, id))
}

// LoadScript 读取本地脚本文件并执行 SCRIPT LOAD，回复中是脚本的 sha1。
// 文件无法读取时返回 InternalError，不会发送命令。
func (c *Connection) LoadScript(path string) (*Reply, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		logger.Error("load script failed: " + err.Error())
		return emptyReply(), atomerr.New(atomerr.InternalError)
	}
	args := append(utils.ToCmdLine("SCRIPT", "LOAD"), script)
	return c.do(FlatPair, 0, args)
}
