package protocol

/*
	如果这个结构体永远不会携带任何状态
	（比如 OkReply 只返回固定的 +OK\r\n 字节）
	那么可以只创建一个实例，重复使用。
*/

// Reply 是可以序列化为 RESP 字节的回复
type Reply interface {
	ToBytes() []byte
}

// 处理 PING 命令的响应
type PongReply struct{}

var PongBytes = []byte("+PONG\r\n")

func (r *PongReply) ToBytes() []byte {
	return PongBytes
}

// 执行成功
type OkReply struct{}

var OkBytes = []byte("+OK\r\n")

func (r *OkReply) ToBytes() []byte {
	return OkBytes
}

var theOkReply = new(OkReply)

func MakeOkReply() *OkReply {
	return theOkReply
}

// 访问一个不存在的键时返回此响应
type NullBulkReply struct{}

var nullBulkBytes = []byte("$-1\r\n")

func (r *NullBulkReply) ToBytes() []byte {
	return nullBulkBytes
}

func MakeNullBulkReply() *NullBulkReply {
	return &NullBulkReply{}
}

// XREAD 等命令没有数据时返回空数组 *-1
type NullMultiBulkReply struct{}

var nullMultiBulkBytes = []byte("*-1\r\n")

func (r *NullMultiBulkReply) ToBytes() []byte {
	return nullMultiBulkBytes
}

func MakeNullMultiBulkReply() *NullMultiBulkReply {
	return &NullMultiBulkReply{}
}

// 用于表示空列表或空集合等数据结构
var emptyMultiBulkBytes = []byte("*0\r\n")

type EmptyMultiBulkReply struct{}

func (r *EmptyMultiBulkReply) ToBytes() []byte {
	return emptyMultiBulkBytes
}

func MakeEmptyMultiBulkReply() *EmptyMultiBulkReply {
	return &EmptyMultiBulkReply{}
}
