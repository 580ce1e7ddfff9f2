package experiment

import (
	"math/rand"

	"github.com/google/hammer-kit/internal/config"
)

// SelectAggressors picks n := p.MinAggr + try%(p.MaxAggr-p.MinAggr+1) row
// indices into [0, p.NRows) according to p.Pattern.
//
// salt seeds a fresh math/rand source so that every repeat attempt within
// the same outer try redraws the identical aggressor set when repeat_flips
// is set; salt == 0 draws from the package-level source instead, for the
// ordinary case where no repeat reseed ever happens.
func SelectAggressors(p *config.Params, try int, salt int64) []int {
	n := p.MinAggr + try%(p.MaxAggr-p.MinAggr+1)
	picks := make([]int, n)

	var src *rand.Rand
	if salt != 0 {
		src = rand.New(rand.NewSource(salt))
	}
	randIntn := func(n int) int {
		if src != nil {
			return src.Intn(n)
		}
		return rand.Intn(n)
	}

	for i := 0; i < n; i++ {
		var row int
		switch p.Pattern {
		case config.PatternRandom:
			row = randIntn(p.NRows)
		case config.PatternEven:
			row = (try + i*2) % p.NRows
		case config.PatternTRRESPASSAssistedDouble:
			if i == n-1 {
				row = (try + (n-2)*2 + p.AssistedDoubleDist) % p.NRows
			} else {
				row = (try + i*2) % p.NRows
			}
		}
		picks[i] = row
	}
	return picks
}
