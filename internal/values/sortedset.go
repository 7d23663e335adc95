package values

import (
	"strconv"

	"github.com/dreamware/nimbuskv/internal/bytestr"
	"github.com/dreamware/nimbuskv/internal/dict"
	"github.com/dreamware/nimbuskv/internal/zskiplist"
)

// SortedSet pairs a Dict from member to score with a zskiplist ordered
// index on (score, member), kept consistent on every mutation per spec
// §3: the dict answers ZSCORE/membership in O(1); the skip list answers
// rank and range queries in O(log N).
type SortedSet struct {
	expiry
	scores *dict.Dict[float64]
	index  *zskiplist.SkipList
}

// NewSortedSet returns an empty SortedSet.
func NewSortedSet() *SortedSet {
	return &SortedSet{
		expiry: newExpiry(),
		scores: dict.New[float64](),
		index:  zskiplist.New(),
	}
}

// Add sets member's score, inserting it if new. Reports whether member
// was newly added (false if it already existed, even if its score
// changed).
func (z *SortedSet) Add(member bytestr.Str, score float64) bool {
	old, existed := z.scores.Put(member, score)
	if existed {
		if old == score {
			return false
		}
		z.index.Delete(old, member)
	}
	z.index.Insert(score, member)
	return !existed
}

// Remove deletes member, reporting whether it was present.
func (z *SortedSet) Remove(member bytestr.Str) bool {
	old, existed := z.scores.Remove(member)
	if !existed {
		return false
	}
	z.index.Delete(old, member)
	return true
}

// Score returns member's score, reporting whether it is present.
func (z *SortedSet) Score(member bytestr.Str) (float64, bool) {
	return z.scores.Get(member)
}

// Rank returns member's 1-based ascending rank, reporting whether it is
// present.
func (z *SortedSet) Rank(member bytestr.Str) (int, bool) {
	score, ok := z.scores.Get(member)
	if !ok {
		return 0, false
	}
	rank := z.index.RankOf(score, member)
	if rank == 0 {
		return 0, false
	}
	return rank, true
}

// Len returns the number of members.
func (z *SortedSet) Len() int { return z.scores.Size() }

// Range returns the entries with 1-based ranks in [lo, hi], inclusive.
func (z *SortedSet) Range(lo, hi int) []zskiplist.Entry {
	return z.index.RangeByRank(lo, hi)
}

// RangeByScore returns every entry whose score lies in [min, max],
// inclusive.
func (z *SortedSet) RangeByScore(min, max float64) []zskiplist.Entry {
	return z.index.RangeByScore(min, max)
}

func (z *SortedSet) Kind() Kind { return KindSortedSet }

func (z *SortedSet) ToCommands(key bytestr.Str) [][]bytestr.Str {
	if z.scores.Size() == 0 {
		return nil
	}
	cmd := make([]bytestr.Str, 0, z.scores.Size()*2+2)
	cmd = append(cmd, bytestr.FromString("ZADD"), key)
	for _, e := range z.index.RangeByRank(1, z.scores.Size()) {
		cmd = append(cmd, bytestr.FromString(strconv.FormatFloat(e.Score, 'g', -1, 64)), e.Member)
	}
	return [][]bytestr.Str{cmd}
}
