package duplicates

import (
	"time"

	"github.com/djpapzin/papzincrew/internal/config"
)

// Match types reported to clients.
const (
	MatchExactFile = "exact_file"
	MatchFuzzy     = "fuzzy"
)

// ComponentScores is the per-field breakdown behind a fuzzy confidence score.
type ComponentScores struct {
	Title    float64 `json:"title"`
	Artist   float64 `json:"artist"`
	Duration float64 `json:"duration"`
	Size     float64 `json:"size"`
}

// Candidate describes the best duplicate found for an upload.
type Candidate struct {
	MixID           uint            `json:"mix_id"`
	MatchType       string          `json:"match_type"`
	Confidence      float64         `json:"confidence"`
	ComponentScores ComponentScores `json:"component_scores"`
}

// Detector scores fingerprints against a candidate pool. It holds only
// configuration and performs no I/O; Detect is a pure function of its inputs.
type Detector struct {
	cfg config.DuplicatesConfig
}

func NewDetector(cfg config.DuplicatesConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Entry pairs a catalog row ID with its fingerprint for comparison.
type Entry struct {
	MixID       uint
	Fingerprint Fingerprint
}

// Detect compares a fingerprint against the pool and returns the strongest
// candidate, or nil when nothing reaches the threshold. An identical content
// hash always wins with full confidence.
func (d *Detector) Detect(fp Fingerprint, pool []Entry) *Candidate {
	for _, entry := range pool {
		if fp.FileHash != "" && entry.Fingerprint.FileHash == fp.FileHash {
			return &Candidate{
				MixID:      entry.MixID,
				MatchType:  MatchExactFile,
				Confidence: 1.0,
				ComponentScores: ComponentScores{
					Title:    1.0,
					Artist:   1.0,
					Duration: 1.0,
					Size:     1.0,
				},
			}
		}
	}

	var best *Candidate
	for _, entry := range pool {
		scores := d.componentScores(fp, entry.Fingerprint)
		confidence := scores.Title*d.cfg.TitleWeight +
			scores.Artist*d.cfg.ArtistWeight +
			scores.Duration*d.cfg.DurationWeight +
			scores.Size*d.cfg.SizeWeight

		if confidence < d.cfg.Threshold {
			continue
		}
		if best == nil || confidence > best.Confidence {
			best = &Candidate{
				MixID:           entry.MixID,
				MatchType:       MatchFuzzy,
				Confidence:      confidence,
				ComponentScores: scores,
			}
		}
	}
	return best
}

func (d *Detector) componentScores(a, b Fingerprint) ComponentScores {
	return ComponentScores{
		Title:    stringSimilarity(a.NormalizedTitle, b.NormalizedTitle),
		Artist:   stringSimilarity(a.NormalizedArtist, b.NormalizedArtist),
		Duration: d.durationCloseness(a.DurationSeconds, b.DurationSeconds),
		Size:     sizeCloseness(a.FileSizeBytes, b.FileSizeBytes),
	}
}

// durationCloseness gives full credit inside the tolerance band and decays
// linearly to zero at three times the band.
func (d *Detector) durationCloseness(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	tolerance := int(d.cfg.DurationTolerance / time.Second)
	if tolerance <= 0 {
		tolerance = 10
	}
	if diff <= tolerance {
		return 1.0
	}
	limit := tolerance * 3
	if diff >= limit {
		return 0
	}
	return 1.0 - float64(diff-tolerance)/float64(limit-tolerance)
}

// sizeCloseness gives full credit within 2% difference and decays linearly
// to zero at 10%.
func sizeCloseness(a, b int64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	larger := a
	if b > larger {
		larger = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	pct := float64(diff) / float64(larger)
	if pct <= 0.02 {
		return 1.0
	}
	if pct >= 0.10 {
		return 0
	}
	return 1.0 - (pct-0.02)/0.08
}

// stringSimilarity is 1 minus the edit distance normalized by the longer
// string's length.
func stringSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}

	ra := []rune(a)
	rb := []rune(b)
	dist := editDistance(ra, rb)
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	return 1.0 - float64(dist)/float64(longer)
}

func editDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
