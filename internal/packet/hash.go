package packet

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

// hashKey is a fixed, process-wide SipHash key. It only needs to resist
// an off-path attacker guessing cache bucket placement; it does not
// need to be secret across restarts, so a constant is adequate (unlike
// the teacher's cookie.Manager, which rotates its SipHash key because
// cookies are a wire-visible anti-spoofing token).
var hashKey0, hashKey1 = uint64(0x646e737363696e63), uint64(0x652d7265736f6c76)

// HashQuery derives a cache-key hash for a question, grounded on the
// teacher's internal/packet/parser.go HashQuery but upgraded from
// hash/fnv to a keyed SipHash so an attacker who can observe cache
// timing can't cheaply predict bucket collisions (the same rationale
// as internal/cookie.Manager's SipHash 2-4 usage).
func HashQuery(name string, t Type, c Class) uint64 {
	var suffix [4]byte
	binary.BigEndian.PutUint16(suffix[0:2], uint16(t))
	binary.BigEndian.PutUint16(suffix[2:4], uint16(c))

	buf := append([]byte(JoinLabels(SplitLabels(NormalizeName(name)))), suffix[:]...)
	return siphash.Hash(hashKey0, hashKey1, buf)
}
