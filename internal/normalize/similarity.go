package normalize

import "strings"

// containmentScore is the score assigned when one normalized title
// contains the other without being an exact match.
const containmentScore = 0.95

// minTokenLen filters short stopword-like tokens out of the Jaccard
// word sets; tokens of this length or shorter are ignored.
const minTokenLen = 2

// TitleSimilarity scores two titles in [0,1]: exact match after
// normalization is 1.0, containment 0.95, otherwise the Jaccard
// similarity of their word sets. Deterministic and symmetric.
func TitleSimilarity(a, b string) float64 {
	na := NormalizeTitle(a)
	nb := NormalizeTitle(b)

	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return containmentScore
	}

	setA := wordSet(na)
	setB := wordSet(nb)

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		if len(w) <= minTokenLen {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}
