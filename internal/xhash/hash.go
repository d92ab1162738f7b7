// Package xhash implements the djb2 byte-string hash used to shard the
// Speed Daemon car table, ported from the original allocator's hash.h.
package xhash

// Hash computes the djb2 hash (h*33 + c) of data:
// http://www.cse.yorku.ca/~oz/hash.html
func Hash(data []byte) uint64 {
	var h uint64 = 5381
	for _, c := range data {
		h = ((h << 5) + h) + uint64(c) // h*33 + c
	}
	return h
}

// HashString is a convenience wrapper avoiding a []byte copy at call sites
// that already hold a string.
func HashString(s string) uint64 {
	var h uint64 = 5381
	for i := 0; i < len(s); i++ {
		h = ((h << 5) + h) + uint64(s[i])
	}
	return h
}
