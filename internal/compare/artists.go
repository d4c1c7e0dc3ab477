// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package compare

// ArtistMatch is the outcome of matching two artist sets.
type ArtistMatch struct {
	// Score is the maximum-weight bipartite match of pairwise
	// similarities, divided by the larger set size. In [0, 1].
	Score float64

	// WholeMatches counts matched pairs that are equal after
	// normalization.
	WholeMatches int
}

// exactMatchLimit bounds the bitmask assignment solver. Larger sets fall
// back to greedy matching; artist lists that long are collaboration
// dumps where precision stops mattering.
const exactMatchLimit = 12

// MatchArtists scores the overlap of two artist lists. Order does not
// matter; each artist participates in at most one matched pair.
func MatchArtists(a, b []string) ArtistMatch {
	if len(a) == 0 || len(b) == 0 {
		if len(a) == 0 && len(b) == 0 {
			return ArtistMatch{Score: 1.0}
		}
		return ArtistMatch{}
	}

	na := normalizeAll(a)
	nb := normalizeAll(b)
	// Keep the smaller set on the rows so the assignment mask covers
	// the larger one. Scoring is symmetric, so the swap is invisible.
	if len(na) > len(nb) {
		na, nb = nb, na
	}

	sims := make([][]float64, len(na))
	for i, ai := range na {
		sims[i] = make([]float64, len(nb))
		for j, bj := range nb {
			sims[i][j] = Similarity(ai, bj)
		}
	}

	var total float64
	var pairs [][2]int
	if len(nb) <= exactMatchLimit {
		total, pairs = assignExact(sims, len(nb))
	} else {
		total, pairs = assignGreedy(sims, len(nb))
	}

	whole := 0
	for _, p := range pairs {
		if na[p[0]] == nb[p[1]] {
			whole++
		}
	}

	larger := len(na)
	if len(nb) > larger {
		larger = len(nb)
	}
	return ArtistMatch{Score: total / float64(larger), WholeMatches: whole}
}

func normalizeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Normalize(s)
	}
	return out
}

// assignExact finds the maximum-weight assignment of rows to columns by
// memoized search over column bitmasks. Row count is <= column count.
func assignExact(sims [][]float64, cols int) (float64, [][2]int) {
	memo := make(map[int64]float64)
	choice := make(map[int64]int)

	var solve func(row int, used int64) float64
	solve = func(row int, used int64) float64 {
		if row == len(sims) {
			return 0
		}
		key := int64(row)<<32 | used
		if v, ok := memo[key]; ok {
			return v
		}
		best := -1.0
		bestCol := -1
		for c := 0; c < cols; c++ {
			if used&(1<<c) != 0 {
				continue
			}
			v := sims[row][c] + solve(row+1, used|(1<<c))
			if v > best {
				best = v
				bestCol = c
			}
		}
		memo[key] = best
		choice[key] = bestCol
		return best
	}

	total := solve(0, 0)

	pairs := make([][2]int, 0, len(sims))
	used := int64(0)
	for row := 0; row < len(sims); row++ {
		key := int64(row)<<32 | used
		c := choice[key]
		if c < 0 {
			break
		}
		pairs = append(pairs, [2]int{row, c})
		used |= 1 << c
	}
	return total, pairs
}

// assignGreedy matches the highest-similarity pairs first.
func assignGreedy(sims [][]float64, cols int) (float64, [][2]int) {
	usedRow := make([]bool, len(sims))
	usedCol := make([]bool, cols)
	var total float64
	var pairs [][2]int

	for range sims {
		bestV := -1.0
		bestR, bestC := -1, -1
		for r := range sims {
			if usedRow[r] {
				continue
			}
			for c := 0; c < cols; c++ {
				if usedCol[c] {
					continue
				}
				if sims[r][c] > bestV {
					bestV, bestR, bestC = sims[r][c], r, c
				}
			}
		}
		if bestR < 0 {
			break
		}
		usedRow[bestR], usedCol[bestC] = true, true
		total += bestV
		pairs = append(pairs, [2]int{bestR, bestC})
	}
	return total, pairs
}
