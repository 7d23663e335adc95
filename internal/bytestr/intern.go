package bytestr

// commandNames is the fixed set of command names interned eagerly at
// process start, per spec §4.1. NimbusKV doesn't dispatch commands
// itself (that's out of core scope), and the values/AOF encoders build
// their command names with FromString rather than consulting this table;
// Intern is its only reader.
var commandNames = []string{
	"GET", "SET", "DEL", "EXPIRE", "PEXPIRE", "TTL", "PTTL",
	"LPUSH", "RPUSH", "LPOP", "RPOP", "LRANGE", "LLEN",
	"SADD", "SREM", "SMEMBERS", "SISMEMBER",
	"HSET", "HGET", "HDEL", "HGETALL",
	"ZADD", "ZREM", "ZRANGE", "ZRANGEBYSCORE", "ZSCORE",
	"SELECT", "FLUSHDB", "FLUSHALL",
}

var internTable map[string]Str

func init() {
	internTable = make(map[string]Str, len(commandNames))
	for _, name := range commandNames {
		internTable[name] = FromString(name)
	}
}

// Intern returns the shared Str for the upper-cased ASCII form of b, if
// one exists in the fixed command-name set, and ok=false otherwise. The
// lookup key is computed by upper-casing ASCII letters only, matching
// EqualsIgnoreCaseASCII's fold rule.
func Intern(b []byte) (s Str, ok bool) {
	key := make([]byte, len(b))
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		key[i] = c
	}
	s, ok = internTable[string(key)]
	return s, ok
}
