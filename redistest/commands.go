package redistest

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"atom/protocol"
)

func execPing(s *Store, args [][]byte) protocol.Reply {
	if len(args) == 0 {
		return &protocol.PongReply{}
	}
	return protocol.MakeBulkReply(args[0])
}

// SET key value，忽略过期等选项
func execSet(s *Store, args [][]byte) protocol.Reply {
	key := string(args[0])
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, key)
	s.strings[key] = append([]byte(nil), args[1]...)
	return protocol.MakeOkReply()
}

func execGet(s *Store, args [][]byte) protocol.Reply {
	key := string(args[0])
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[key]; ok {
		return errWrongType
	}
	value, ok := s.strings[key]
	if !ok {
		return protocol.MakeNullBulkReply()
	}
	return protocol.MakeBulkReply(value)
}

// getStream 调用方需持有 mu；key 保存的不是 stream 时返回错误回复
func (s *Store) getStream(key string, create bool) (*stream, protocol.ErrorReply) {
	if _, ok := s.strings[key]; ok {
		return nil, errWrongType
	}
	st, ok := s.streams[key]
	if !ok && create {
		st = newStream()
		s.streams[key] = st
	}
	return st, nil
}

func entryReply(e streamEntry) protocol.Reply {
	return protocol.MakeMultiRawReply([]protocol.Reply{
		protocol.MakeBulkReply([]byte(e.id.String())),
		protocol.MakeMultiBulkReply(e.fields),
	})
}

func entriesReply(entries []streamEntry) protocol.Reply {
	replies := make([]protocol.Reply, 0, len(entries))
	for _, e := range entries {
		replies = append(replies, entryReply(e))
	}
	return protocol.MakeMultiRawReply(replies)
}

// XADD key id|* field value [field value ...]
func execXAdd(s *Store, args [][]byte) protocol.Reply {
	key := string(args[0])
	fields := args[2:]
	if len(fields)%2 != 0 {
		return argNumErr("xadd")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, errReply := s.getStream(key, false)
	if errReply != nil {
		return errReply
	}
	last := streamID{}
	if st != nil {
		last = st.lastID
	}

	var id streamID
	if rawID := string(args[1]); rawID == "*" {
		ms := uint64(s.now().UnixMilli())
		if ms > last.ms {
			id = streamID{ms: ms}
		} else {
			id = last.next()
		}
	} else {
		parsed, err := parseID(rawID, 0)
		if err != nil {
			return protocol.MakeErrReply(err.Error())
		}
		if parsed == minID {
			return protocol.MakeErrReply("ERR The ID specified in XADD must be greater than 0-0")
		}
		if !last.less(parsed) {
			return protocol.MakeErrReply("ERR The ID specified in XADD is equal or smaller than the target stream top item")
		}
		id = parsed
	}

	if st == nil {
		st, _ = s.getStream(key, true)
	}
	copied := make([][]byte, len(fields))
	for i, f := range fields {
		copied[i] = append([]byte(nil), f...)
	}
	st.entries = append(st.entries, streamEntry{id: id, fields: copied})
	st.lastID = id
	s.notifyAdded()
	return protocol.MakeBulkReply([]byte(id.String()))
}

// 解析可选的 COUNT n，返回 count 与是否有语法错误
func parseCount(args [][]byte) (int, protocol.ErrorReply) {
	if len(args) == 0 {
		return 0, nil
	}
	if len(args) != 2 || strings.ToUpper(string(args[0])) != "COUNT" {
		return 0, errSyntax
	}
	count, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return 0, errNotInteger
	}
	return count, nil
}

// XRANGE key start end [COUNT n]
func execXRange(s *Store, args [][]byte) protocol.Reply {
	start, err := parseID(string(args[1]), 0)
	if err != nil {
		return protocol.MakeErrReply(err.Error())
	}
	end, err := parseID(string(args[2]), maxID.seq)
	if err != nil {
		return protocol.MakeErrReply(err.Error())
	}
	count, errReply := parseCount(args[3:])
	if errReply != nil {
		return errReply
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, errReply := s.getStream(string(args[0]), false)
	if errReply != nil {
		return errReply
	}
	if st == nil {
		return protocol.MakeEmptyMultiBulkReply()
	}
	return entriesReply(st.rangeAsc(start, end, count))
}

// XREVRANGE key end start [COUNT n]
func execXRevRange(s *Store, args [][]byte) protocol.Reply {
	end, err := parseID(string(args[1]), maxID.seq)
	if err != nil {
		return protocol.MakeErrReply(err.Error())
	}
	start, err := parseID(string(args[2]), 0)
	if err != nil {
		return protocol.MakeErrReply(err.Error())
	}
	count, errReply := parseCount(args[3:])
	if errReply != nil {
		return errReply
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, errReply := s.getStream(string(args[0]), false)
	if errReply != nil {
		return errReply
	}
	if st == nil {
		return protocol.MakeEmptyMultiBulkReply()
	}
	return entriesReply(st.rangeDesc(start, end, count))
}

type readOptions struct {
	count    int
	blocking bool
	block    time.Duration
	noAck    bool
	keys     []string
	ids      []string
}

// parseReadOptions 解析 XREAD / XREADGROUP 的 [COUNT n] [BLOCK ms] [NOACK] STREAMS key ... id ...
func parseReadOptions(args [][]byte) (*readOptions, protocol.ErrorReply) {
	opts := &readOptions{}
	for i := 0; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "COUNT":
			if i+1 >= len(args) {
				return nil, errSyntax
			}
			count, err := strconv.Atoi(string(args[i+1]))
			if err != nil {
				return nil, errNotInteger
			}
			opts.count = count
			i++
		case "BLOCK":
			if i+1 >= len(args) {
				return nil, errSyntax
			}
			ms, err := strconv.ParseInt(string(args[i+1]), 10, 64)
			if err != nil || ms < 0 {
				return nil, errNotTimeout
			}
			opts.blocking = true
			opts.block = time.Duration(ms) * time.Millisecond
			i++
		case "NOACK":
			opts.noAck = true
		case "STREAMS":
			rest := args[i+1:]
			if len(rest) == 0 || len(rest)%2 != 0 {
				return nil, protocol.MakeErrReply("ERR Unbalanced 'xread' list of streams: for each stream key an ID or '$' must be specified.")
			}
			half := len(rest) / 2
			for j := 0; j < half; j++ {
				opts.keys = append(opts.keys, string(rest[j]))
				opts.ids = append(opts.ids, string(rest[half+j]))
			}
			return opts, nil
		default:
			return nil, errSyntax
		}
	}
	return nil, errSyntax
}

func streamsReply(keys []string, results [][]streamEntry) protocol.Reply {
	var replies []protocol.Reply
	for i, entries := range results {
		if len(entries) == 0 {
			continue
		}
		replies = append(replies, protocol.MakeMultiRawReply([]protocol.Reply{
			protocol.MakeBulkReply([]byte(keys[i])),
			entriesReply(entries),
		}))
	}
	if len(replies) == 0 {
		return nil
	}
	return protocol.MakeMultiRawReply(replies)
}

// XREAD [COUNT n] [BLOCK ms] STREAMS key ... id ...
func execXRead(s *Store, args [][]byte) protocol.Reply {
	opts, errReply := parseReadOptions(args)
	if errReply != nil {
		return errReply
	}
	// "$" 在命令到达时解析为当前最后一个 id
	from := make([]streamID, len(opts.keys))
	s.mu.Lock()
	for i, raw := range opts.ids {
		if raw == "$" {
			if st := s.streams[opts.keys[i]]; st != nil {
				from[i] = st.lastID
			}
			continue
		}
		id, err := parseID(raw, 0)
		if err != nil {
			s.mu.Unlock()
			return protocol.MakeErrReply(err.Error())
		}
		from[i] = id
	}
	s.mu.Unlock()

	return s.poll(opts.blocking, opts.block, func() protocol.Reply {
		results := make([][]streamEntry, len(opts.keys))
		for i, key := range opts.keys {
			st, errReply := s.getStream(key, false)
			if errReply != nil {
				return errReply
			}
			if st != nil {
				results[i] = st.after(from[i], opts.count)
			}
		}
		return streamsReply(opts.keys, results)
	})
}

// XGROUP CREATE key group id|$ [MKSTREAM]
func execXGroup(s *Store, args [][]byte) protocol.Reply {
	sub := strings.ToUpper(string(args[0]))
	if sub != "CREATE" {
		return unknownSubcommandErr(args[0])
	}
	if len(args) < 4 || len(args) > 5 {
		return argNumErr("xgroup|create")
	}
	mkStream := false
	if len(args) == 5 {
		if strings.ToUpper(string(args[4])) != "MKSTREAM" {
			return errSyntax
		}
		mkStream = true
	}
	key, group, rawID := string(args[1]), string(args[2]), string(args[3])

	s.mu.Lock()
	defer s.mu.Unlock()
	st, errReply := s.getStream(key, false)
	if errReply != nil {
		return errReply
	}
	if st == nil {
		if !mkStream {
			return protocol.MakeErrReply("ERR The XGROUP subcommand requires the key to exist. " +
				"Note that for CREATE you may want to use the MKSTREAM option to create an empty stream automatically.")
		}
		st, _ = s.getStream(key, true)
	}
	if _, ok := st.groups[group]; ok {
		return protocol.MakeErrReply("BUSYGROUP Consumer Group name already exists")
	}
	var last streamID
	if rawID == "$" {
		last = st.lastID
	} else {
		id, err := parseID(rawID, 0)
		if err != nil {
			return protocol.MakeErrReply(err.Error())
		}
		last = id
	}
	st.groups[group] = &consumerGroup{lastDelivered: last, pending: make(map[streamID]string)}
	return protocol.MakeOkReply()
}

// XREADGROUP GROUP group consumer [COUNT n] [BLOCK ms] [NOACK] STREAMS key ... id ...
func execXReadGroup(s *Store, args [][]byte) protocol.Reply {
	if strings.ToUpper(string(args[0])) != "GROUP" {
		return errSyntax
	}
	group, consumer := string(args[1]), string(args[2])
	opts, errReply := parseReadOptions(args[3:])
	if errReply != nil {
		return errReply
	}
	// 读取历史 pending 条目的请求不阻塞
	history := false
	for _, raw := range opts.ids {
		if raw != ">" {
			history = true
		}
	}
	blocking := opts.blocking && !history

	return s.poll(blocking, opts.block, func() protocol.Reply {
		results := make([][]streamEntry, len(opts.keys))
		for i, key := range opts.keys {
			st, errReply := s.getStream(key, false)
			if errReply != nil {
				return errReply
			}
			var g *consumerGroup
			if st != nil {
				g = st.groups[group]
			}
			if g == nil {
				return protocol.MakeErrReply("NOGROUP No such key '" + key + "' or consumer group '" +
					group + "' in XREADGROUP with GROUP option")
			}
			if opts.ids[i] == ">" {
				entries := st.after(g.lastDelivered, opts.count)
				for _, e := range entries {
					if !opts.noAck {
						g.pending[e.id] = consumer
					}
					g.lastDelivered = e.id
				}
				results[i] = entries
				continue
			}
			from, err := parseID(opts.ids[i], 0)
			if err != nil {
				return protocol.MakeErrReply(err.Error())
			}
			results[i] = pendingEntries(st, g, consumer, from, opts.count)
		}
		if history {
			return historyReply(opts.keys, results)
		}
		return streamsReply(opts.keys, results)
	})
}

// pendingEntries 返回 consumer 名下 id 大于 from 的 pending 条目，已删除的条目字段为空
func pendingEntries(st *stream, g *consumerGroup, consumer string, from streamID, count int) []streamEntry {
	var ids []streamID
	for id, owner := range g.pending {
		if owner == consumer && from.less(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].less(ids[j])
	})
	var result []streamEntry
	for _, id := range ids {
		if count > 0 && len(result) >= count {
			break
		}
		e, ok := st.lookup(id)
		if !ok {
			e = streamEntry{id: id}
		}
		result = append(result, e)
	}
	return result
}

// 历史读取即使为空也返回每个 stream 的条目列表，已删除条目的字段为 nil
func historyReply(keys []string, results [][]streamEntry) protocol.Reply {
	replies := make([]protocol.Reply, 0, len(keys))
	for i, entries := range results {
		items := make([]protocol.Reply, 0, len(entries))
		for _, e := range entries {
			var body protocol.Reply = protocol.MakeMultiBulkReply(e.fields)
			if e.fields == nil {
				body = protocol.MakeNullMultiBulkReply()
			}
			items = append(items, protocol.MakeMultiRawReply([]protocol.Reply{
				protocol.MakeBulkReply([]byte(e.id.String())),
				body,
			}))
		}
		replies = append(replies, protocol.MakeMultiRawReply([]protocol.Reply{
			protocol.MakeBulkReply([]byte(keys[i])),
			protocol.MakeMultiRawReply(items),
		}))
	}
	return protocol.MakeMultiRawReply(replies)
}

// XACK key group id [id ...]
func execXAck(s *Store, args [][]byte) protocol.Reply {
	key, group := string(args[0]), string(args[1])
	s.mu.Lock()
	defer s.mu.Unlock()
	st, errReply := s.getStream(key, false)
	if errReply != nil {
		return errReply
	}
	if st == nil || st.groups[group] == nil {
		return protocol.MakeIntReply(0)
	}
	g := st.groups[group]
	var acked int64
	for _, raw := range args[2:] {
		id, err := parseID(string(raw), 0)
		if err != nil {
			return protocol.MakeErrReply(err.Error())
		}
		if _, ok := g.pending[id]; ok {
			delete(g.pending, id)
			acked++
		}
	}
	return protocol.MakeIntReply(acked)
}

// XDEL key id [id ...]
func execXDel(s *Store, args [][]byte) protocol.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, errReply := s.getStream(string(args[0]), false)
	if errReply != nil {
		return errReply
	}
	var deleted int64
	for _, raw := range args[1:] {
		id, err := parseID(string(raw), 0)
		if err != nil {
			return protocol.MakeErrReply(err.Error())
		}
		if st != nil && st.remove(id) {
			deleted++
		}
	}
	return protocol.MakeIntReply(deleted)
}

func execXLen(s *Store, args [][]byte) protocol.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, errReply := s.getStream(string(args[0]), false)
	if errReply != nil {
		return errReply
	}
	if st == nil {
		return protocol.MakeIntReply(0)
	}
	return protocol.MakeIntReply(int64(len(st.entries)))
}

// SCRIPT LOAD body，返回脚本的 sha1
func execScript(s *Store, args [][]byte) protocol.Reply {
	if strings.ToUpper(string(args[0])) != "LOAD" {
		return unknownSubcommandErr(args[0])
	}
	if len(args) != 2 {
		return argNumErr("script|load")
	}
	sum := sha1.Sum(args[1])
	sha := hex.EncodeToString(sum[:])
	s.mu.Lock()
	s.scripts[sha] = append([]byte(nil), args[1]...)
	s.mu.Unlock()
	return protocol.MakeBulkReply([]byte(sha))
}
