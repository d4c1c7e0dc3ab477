// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package compare

import (
	"time"

	"github.com/tomtom215/audiographus/internal/models"
)

// Score weights. They sum to 1 so the combined score stays in [0, 1]
// until the multi-artist bonus, which is clamped afterwards.
const (
	ArtistWeight = 0.3
	TitleWeight  = 0.4
	TimeWeight   = 0.3

	// DupScoreThreshold is the score at or above which two Plays are
	// treated as the same listen.
	DupScoreThreshold = 0.8

	// bonusWeight is added to ArtistWeight when the multi-artist bonus
	// fires.
	bonusWeight = 0.05
)

// Accuracy discretizes how far apart two playDates are.
type Accuracy int

const (
	AccuracyExact Accuracy = iota
	AccuracyClose
	AccuracyFuzzy
	AccuracyNone
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyExact:
		return "exact"
	case AccuracyClose:
		return "close"
	case AccuracyFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// Tolerances are the temporal windows behind AccuracyClose and
// AccuracyFuzzy. Defaults: CLOSE absorbs clock skew between hosts; FUZZY
// absorbs one track length of skew, which is what separates sources that
// stamp a listen at its start from sources that stamp it at its end.
type Tolerances struct {
	Close time.Duration
	Fuzzy time.Duration
}

// DefaultTolerances are used when a source or client does not override
// them.
var DefaultTolerances = Tolerances{
	Close: 10 * time.Second,
	Fuzzy: 5 * time.Minute,
}

// Result is the full outcome of comparing two Plays, kept for
// observability: the client core logs the closest match it saw even when
// nothing crossed the threshold.
type Result struct {
	Score       float64
	TitleScore  float64
	ArtistScore float64
	TimeScore   float64
	Accuracy    Accuracy

	WholeArtistMatches int
	BonusApplied       bool
}

// Duplicate reports whether the scored pair is the same listen.
func (r Result) Duplicate() bool { return r.Score >= DupScoreThreshold }

// Comparator scores Play pairs under a fixed tolerance configuration.
// The zero value is not usable; construct with New.
type Comparator struct {
	tol       Tolerances
	threshold float64
}

// New returns a Comparator with the given tolerances. Zero tolerance
// fields fall back to DefaultTolerances.
func New(tol Tolerances) *Comparator {
	if tol.Close <= 0 {
		tol.Close = DefaultTolerances.Close
	}
	if tol.Fuzzy <= 0 {
		tol.Fuzzy = DefaultTolerances.Fuzzy
	}
	return &Comparator{tol: tol, threshold: DupScoreThreshold}
}

// TemporalAccuracy classifies the playDate distance between two Plays.
// When either Play knows its duration, the fuzzy window widens to cover
// it: a start-stamped and an end-stamped record of the same listen differ
// by exactly the track length.
func (c *Comparator) TemporalAccuracy(a, b models.Play) Accuracy {
	diff := a.Data.PlayDate.Sub(b.Data.PlayDate)
	if diff < 0 {
		diff = -diff
	}
	if diff < time.Second {
		return AccuracyExact
	}
	if diff <= c.tol.Close {
		return AccuracyClose
	}
	fuzzy := c.tol.Fuzzy
	if d := maxDuration(a, b); d > 0 {
		if widened := d + c.tol.Close; widened > fuzzy {
			fuzzy = widened
		}
	}
	if diff <= fuzzy {
		return AccuracyFuzzy
	}
	return AccuracyNone
}

func maxDuration(a, b models.Play) time.Duration {
	max := a.Data.Duration
	if b.Data.Duration > max {
		max = b.Data.Duration
	}
	return time.Duration(max) * time.Second
}

// Compare scores two Plays. The result is symmetric: swapping a and b
// yields the same score, including the multi-artist bonus.
func (c *Comparator) Compare(a, b models.Play) Result {
	title := Similarity(NormalizeTitle(a.Data.Track), NormalizeTitle(b.Data.Track))
	artists := MatchArtists(a.Data.Artists, b.Data.Artists)

	acc := c.TemporalAccuracy(a, b)
	var timeScore float64
	switch acc {
	case AccuracyExact, AccuracyClose:
		timeScore = 1.0
	case AccuracyFuzzy:
		timeScore = 0.6
	}

	r := Result{
		TitleScore:         title,
		ArtistScore:        artists.Score,
		TimeScore:          timeScore,
		Accuracy:           acc,
		WholeArtistMatches: artists.WholeMatches,
	}
	r.Score = ArtistWeight*artists.Score + TitleWeight*title + TimeWeight*timeScore

	// One side often reports only the primary artist while the other
	// reports the full collaboration. When everything else lines up and
	// at least one artist matched whole, re-weigh the artist term.
	if r.Score < 1 && timeScore > 0 && title > 0.98 && artists.Score > 0.1 &&
		artists.WholeMatches >= 1 &&
		(len(a.Data.Artists) > 1 || len(b.Data.Artists) > 1) {
		bonus := maxFloat(artists.Score*0.5, (1-artists.Score)*0.75, 0.1)
		r.Score = TitleWeight*title + TimeWeight*timeScore +
			(ArtistWeight+bonusWeight)*(artists.Score+bonus)
		r.BonusApplied = true
	}

	if r.Score > 1 {
		r.Score = 1
	}
	return r
}

// FindDuplicate scans existing for a duplicate of candidate. When several
// entries cross the threshold the one with the most recent playDate wins.
func (c *Comparator) FindDuplicate(candidate models.Play, existing []models.Play) (models.Play, Result, bool) {
	var (
		best      models.Play
		bestRes   Result
		haveMatch bool
	)
	for _, e := range existing {
		res := c.Compare(candidate, e)
		if res.Score < c.threshold {
			continue
		}
		if !haveMatch ||
			e.Data.PlayDate.After(best.Data.PlayDate) ||
			(e.Data.PlayDate.Equal(best.Data.PlayDate) && res.Score > bestRes.Score) {
			best, bestRes, haveMatch = e, res, true
		}
	}
	return best, bestRes, haveMatch
}

// ClosestMatch returns the highest-scoring entry regardless of the
// threshold, for observability. found is false only when existing is
// empty.
func (c *Comparator) ClosestMatch(candidate models.Play, existing []models.Play) (models.Play, Result, bool) {
	var (
		best    models.Play
		bestRes Result
		found   bool
	)
	for _, e := range existing {
		res := c.Compare(candidate, e)
		if !found || res.Score > bestRes.Score {
			best, bestRes, found = e, res, true
		}
	}
	return best, bestRes, found
}

func maxFloat(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
