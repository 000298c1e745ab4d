// Package bucketing assigns users to experiment variants deterministically.
//
// A user's score for an experiment is the MD5 digest of userID followed by
// the experiment id, read as an unsigned 128-bit big-endian integer, reduced
// modulo 10000 and divided by 100. Scores therefore lie in [0,100) with a
// resolution of 0.01 and never depend on process state.
package bucketing

import (
	"crypto/md5"
	"math/big"
	"strconv"

	"github.com/LavishGent/abcache/internal/types"
)

// Buckets is the number of distinct scores.
const Buckets = 10000

var modulus = big.NewInt(Buckets)

// ScoreBasisPoints returns the score scaled to an integer in [0, Buckets).
func ScoreBasisPoints(userID, experimentID string) int {
	sum := md5.Sum([]byte(userID + experimentID))
	n := new(big.Int).SetBytes(sum[:])
	return int(n.Mod(n, modulus).Int64())
}

// Score returns the user's score in [0,100) for the experiment.
func Score(userID, experimentID string) float64 {
	return float64(ScoreBasisPoints(userID, experimentID)) / 100
}

// Assign returns the first variant, in the supplied order, whose range
// contains the user's score. ok is false when no variant matches.
func Assign(userID string, experimentID int64, variants []types.Variant) (types.Variant, bool) {
	return Pick(Score(userID, strconv.FormatInt(experimentID, 10)), variants)
}

// Pick returns the first variant whose half-open range contains score.
func Pick(score float64, variants []types.Variant) (types.Variant, bool) {
	for _, v := range variants {
		if v.Contains(score) {
			return v, true
		}
	}
	return types.Variant{}, false
}

// GroupScore returns the user's score against a mee group instead of an
// experiment.
func GroupScore(userID, meeGroupID string) float64 {
	return Score(userID, meeGroupID)
}
