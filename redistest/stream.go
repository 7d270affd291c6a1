package redistest

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

// streamID 条目 id：毫秒时间戳-序号
type streamID struct {
	ms  uint64
	seq uint64
}

var (
	minID = streamID{}
	maxID = streamID{ms: math.MaxUint64, seq: math.MaxUint64}
)

var errInvalidID = errors.New("ERR Invalid stream ID specified as stream command argument")

func (id streamID) String() string {
	return strconv.FormatUint(id.ms, 10) + "-" + strconv.FormatUint(id.seq, 10)
}

func (id streamID) less(other streamID) bool {
	if id.ms != other.ms {
		return id.ms < other.ms
	}
	return id.seq < other.seq
}

// next 返回紧跟在 id 之后的最小 id
func (id streamID) next() streamID {
	if id.seq == math.MaxUint64 {
		return streamID{ms: id.ms + 1}
	}
	return streamID{ms: id.ms, seq: id.seq + 1}
}

// parseID 解析 "ms-seq" 或 "ms"，只有毫秒部分时序号取 missingSeq。
// "-" 和 "+" 分别表示最小和最大 id
func parseID(s string, missingSeq uint64) (streamID, error) {
	switch s {
	case "-":
		return minID, nil
	case "+":
		return maxID, nil
	}
	msPart, seqPart, found := strings.Cut(s, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return streamID{}, errInvalidID
	}
	if !found {
		return streamID{ms: ms, seq: missingSeq}, nil
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return streamID{}, errInvalidID
	}
	return streamID{ms: ms, seq: seq}, nil
}

type streamEntry struct {
	id     streamID
	fields [][]byte
}

type consumerGroup struct {
	lastDelivered streamID
	pending       map[streamID]string // id -> consumer
}

type stream struct {
	entries []streamEntry // 按 id 升序
	lastID  streamID
	groups  map[string]*consumerGroup
}

func newStream() *stream {
	return &stream{groups: make(map[string]*consumerGroup)}
}

// search 返回第一个 id >= target 的下标
func (s *stream) search(target streamID) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].id.less(target)
	})
}

// rangeAsc 返回 [start, end] 内的条目，count <= 0 表示不限
func (s *stream) rangeAsc(start, end streamID, count int) []streamEntry {
	var result []streamEntry
	for i := s.search(start); i < len(s.entries); i++ {
		e := s.entries[i]
		if end.less(e.id) {
			break
		}
		if count > 0 && len(result) >= count {
			break
		}
		result = append(result, e)
	}
	return result
}

func (s *stream) rangeDesc(start, end streamID, count int) []streamEntry {
	var result []streamEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if end.less(e.id) {
			continue
		}
		if e.id.less(start) {
			break
		}
		if count > 0 && len(result) >= count {
			break
		}
		result = append(result, e)
	}
	return result
}

// after 返回 id 严格大于 from 的条目
func (s *stream) after(from streamID, count int) []streamEntry {
	if from == maxID {
		return nil
	}
	return s.rangeAsc(from.next(), maxID, count)
}

func (s *stream) lookup(id streamID) (streamEntry, bool) {
	i := s.search(id)
	if i < len(s.entries) && s.entries[i].id == id {
		return s.entries[i], true
	}
	return streamEntry{}, false
}

func (s *stream) remove(id streamID) bool {
	i := s.search(id)
	if i >= len(s.entries) || s.entries[i].id != id {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return true
}
