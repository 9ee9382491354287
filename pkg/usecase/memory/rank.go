package memory

import (
	"math"
	"sort"
	"time"

	"github.com/m-mizutani/kioku/pkg/model"
)

// RankConfig holds the tunable parameters of the ranking policy
type RankConfig struct {
	SimilarityWeight float64
	RecencyWeight    float64
	ConfidenceWeight float64
	HalfLife         time.Duration
}

// DefaultRankConfig returns the default weights and recency half-life
func DefaultRankConfig() RankConfig {
	return RankConfig{
		SimilarityWeight: 0.6,
		RecencyWeight:    0.2,
		ConfidenceWeight: 0.2,
		HalfLife:         7 * 24 * time.Hour,
	}
}

// Provenance describes why a hit survived ranking
type Provenance struct {
	ID       model.RecordID `json:"id"`
	Category model.Category `json:"category"`
	Score    float64        `json:"score"`
	Topic    string         `json:"topic,omitempty"`
}

// Hit is one ranked search result
type Hit struct {
	Record     *model.Record `json:"record"`
	Provenance Provenance    `json:"provenance"`
}

// candidate pairs a visible record with its raw similarity score
type candidate struct {
	record     *model.Record
	similarity float64
	composite  float64
}

// recencyDecay maps record age to (0,1] with an exponential half-life
func recencyDecay(age time.Duration, halfLife time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	if halfLife <= 0 {
		halfLife = DefaultRankConfig().HalfLife
	}
	return math.Exp(-age.Hours() * math.Ln2 / halfLife.Hours())
}

func (c RankConfig) composite(similarity float64, age time.Duration, confidence float64) float64 {
	return c.SimilarityWeight*similarity +
		c.RecencyWeight*recencyDecay(age, c.HalfLife) +
		c.ConfidenceWeight*confidence
}

// categoryOrder assigns the presentation order of category blocks:
// factual first, then episodic, then everything else.
func categoryOrder(c model.Category) int {
	switch c {
	case model.CategoryFactual:
		return 0
	case model.CategoryEpisodic:
		return 1
	default:
		return 2
	}
}

// rankCandidates orders candidates and truncates them to the budget k.
//
// Ordering: factual records first (composite score descending, ID
// ascending on ties), then episodic (most recently updated first,
// composite then ID as tiebreaks), then the remaining categories by
// composite score. Truncation reserves one slot each for the best factual
// and the best episodic candidate when k allows, so truncation never
// erases a whole category that had candidates (diversity floor). The
// result is deterministic for fixed inputs and a fixed now.
func rankCandidates(cands []candidate, now time.Time, k int, cfg RankConfig) []*Hit {
	if k <= 0 || len(cands) == 0 {
		return nil
	}

	scored := make([]candidate, len(cands))
	copy(scored, cands)
	for i := range scored {
		scored[i].composite = cfg.composite(
			scored[i].similarity,
			now.Sub(scored[i].record.UpdatedAt),
			scored[i].record.Metadata.Confidence(),
		)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		oa, ob := categoryOrder(a.record.Category), categoryOrder(b.record.Category)
		if oa != ob {
			return oa < ob
		}
		if oa == 1 { // episodic: recency first
			if !a.record.UpdatedAt.Equal(b.record.UpdatedAt) {
				return a.record.UpdatedAt.After(b.record.UpdatedAt)
			}
		}
		if a.composite != b.composite {
			return a.composite > b.composite
		}
		return a.record.ID < b.record.ID
	})

	selected := selectWithFloor(scored, k)

	hits := make([]*Hit, 0, len(selected))
	for _, c := range selected {
		hits = append(hits, &Hit{
			Record: c.record,
			Provenance: Provenance{
				ID:       c.record.ID,
				Category: c.record.Category,
				Score:    c.composite,
				Topic:    c.record.Metadata.Topic(),
			},
		})
	}
	return hits
}

// selectWithFloor picks at most k candidates from the ordered list. With
// k >= 2 one slot is reserved for the top factual and one for the top
// episodic candidate (when present); the remaining slots go to the best
// composite scores overall.
func selectWithFloor(ordered []candidate, k int) []candidate {
	if len(ordered) <= k {
		return ordered
	}

	reserved := make(map[model.RecordID]bool)
	if k >= 2 {
		if id, ok := firstOfCategory(ordered, model.CategoryFactual); ok {
			reserved[id] = true
		}
		if id, ok := firstOfCategory(ordered, model.CategoryEpisodic); ok {
			reserved[id] = true
		}
	}

	// Fill the remaining budget by global composite score
	byScore := make([]candidate, len(ordered))
	copy(byScore, ordered)
	sort.SliceStable(byScore, func(i, j int) bool {
		if byScore[i].composite != byScore[j].composite {
			return byScore[i].composite > byScore[j].composite
		}
		return byScore[i].record.ID < byScore[j].record.ID
	})

	chosen := make(map[model.RecordID]bool, k)
	for id := range reserved {
		chosen[id] = true
	}
	for _, c := range byScore {
		if len(chosen) >= k {
			break
		}
		chosen[c.record.ID] = true
	}

	// Present the chosen candidates in block order
	out := make([]candidate, 0, k)
	for _, c := range ordered {
		if chosen[c.record.ID] {
			out = append(out, c)
		}
	}
	return out
}

func firstOfCategory(ordered []candidate, cat model.Category) (model.RecordID, bool) {
	for _, c := range ordered {
		if c.record.Category == cat {
			return c.record.ID, true
		}
	}
	return "", false
}
