package game

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

const (
	MIN_MULTIPLIER     = 1.00
	MAX_MULTIPLIER     = 100000.00
	DEFAULT_HOUSE_EDGE = 0.03 // 3%

	// First 13 hex chars of the digest = 52 bits, exactly representable in a float64.
	hashPrefixLen = 13
	hashSpace     = float64(1 << 52)
)

// CrashPoint derives the crash multiplier for a round from its seed and
// sequence number, clamped into [MIN_MULTIPLIER, maxMultiplier].
// Deterministic: the same inputs always produce the same multiplier, which
// is what makes the round verifiable after the seed is revealed.
func CrashPoint(seed string, sequence uint64, houseEdge, maxMultiplier float64) float64 {
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", seed, sequence)))
	hashHex := hex.EncodeToString(digest[:])

	h, err := strconv.ParseUint(hashHex[:hashPrefixLen], 16, 64)
	if err != nil {
		// Unreachable for a hex digest, but never run a round on garbage.
		return MIN_MULTIPLIER
	}

	// One in ~33 rounds crashes instantly.
	if h%33 == 0 {
		return MIN_MULTIPLIER
	}

	// Inverse-uniform mapping scaled by the house edge. h is uniform in
	// [0, 2^52), so hashSpace/(hashSpace-h) follows 1/U with U uniform.
	crash := (hashSpace / (hashSpace - float64(h))) * (1.0 - houseEdge)

	// Truncate to 2 decimal places before clamping so the displayed value
	// and the sealed value never disagree.
	crash = math.Floor(crash*100) / 100

	if crash < MIN_MULTIPLIER || math.IsInf(crash, 0) || math.IsNaN(crash) {
		return MIN_MULTIPLIER
	}
	if crash > maxMultiplier {
		return maxMultiplier
	}
	return crash
}

// VerifyCrashPoint recomputes the multiplier for (seed, sequence) and checks
// it against a claimed value. Comparison is exact: both sides are already
// truncated to 2 decimal places.
func VerifyCrashPoint(seed string, sequence uint64, houseEdge, maxMultiplier, claimed float64) bool {
	return CrashPoint(seed, sequence, houseEdge, maxMultiplier) == claimed
}

// GenerateSeed returns a fresh 256-bit hex seed from a cryptographically
// strong source.
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment returns the SHA256 commitment published at round start,
// before any bet is accepted. The seed itself stays server-side until crash.
func HashCommitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}
