package guard

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultThreshold is the similarity ratio at which a candidate is
// flagged as a near-duplicate.
const DefaultThreshold = 0.7

// Match reports a near-duplicate hit against the corpus.
type Match struct {
	Found bool
	Text  string
	Ratio float64
}

// Detector flags candidate texts that are too similar to past posts.
// Advisory only: it never blocks publication.
type Detector struct {
	Threshold float64
}

func NewDetector() *Detector {
	return &Detector{Threshold: DefaultThreshold}
}

// Check compares the candidate against every corpus entry and
// returns the first entry whose similarity meets the threshold.
func (d *Detector) Check(candidate string, corpus []string) Match {
	for _, past := range corpus {
		ratio := Similarity(candidate, past)
		if ratio >= d.Threshold {
			return Match{Found: true, Text: past, Ratio: ratio}
		}
	}
	return Match{}
}

// Similarity is a normalized (case-folded, trimmed) ratio in [0,1]
// based on the common subsequence between the two texts:
// 2*common / (len(a)+len(b)), the difflib-style measure.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)

	common := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			common += len([]rune(d.Text))
		}
	}
	total := len([]rune(a)) + len([]rune(b))
	return 2 * float64(common) / float64(total)
}
