package fuzzy

import (
	"strings"
	"unicode"
)

// LevenshteinDistance calculates the edit distance between two strings
// after normalisation (case, whitespace, diacritics).
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(normalizeString(s1))
	r2 := []rune(normalizeString(s2))

	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// Two rolling rows are enough
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

// Similarity returns 1 - distance/maxLen, in [0, 1]. Two empty strings are
// identical.
func Similarity(s1, s2 string) float64 {
	a := []rune(normalizeString(s1))
	b := []rune(normalizeString(s2))

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(LevenshteinDistance(s1, s2))/float64(longest)
}

// FuzzyMatch checks if query fuzzy-matches text within a given threshold
// threshold is the maximum allowed edit distance
func FuzzyMatch(query, text string, threshold int) bool {
	query = normalizeString(query)
	text = normalizeString(text)

	if query == "" {
		return false
	}
	if strings.Contains(text, query) {
		return true
	}

	for _, word := range strings.Fields(text) {
		if LevenshteinDistance(query, word) <= threshold {
			return true
		}
		if strings.HasPrefix(word, query) {
			return true
		}
	}

	if len(text) < 50 {
		maxDistance := threshold + len(query)/5
		if LevenshteinDistance(query, text) <= maxDistance {
			return true
		}
	}

	return false
}

// BestMatch returns the index of the candidate most similar to query, or -1
// when none reaches minSimilarity. A FuzzyMatch hit counts as reaching it.
func BestMatch(query string, candidates []string, minSimilarity float64) int {
	best := -1
	bestScore := 0.0

	for i, candidate := range candidates {
		score := Similarity(query, candidate)
		if score < minSimilarity && FuzzyMatch(query, candidate, 1) {
			score = minSimilarity
		}
		if score >= minSimilarity && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}

// normalizeString lowercases, strips accents and collapses whitespace.
func normalizeString(s string) string {
	s = removeAccents(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// removeAccents removes diacritical marks from a string
func removeAccents(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) { // Mn: Mark, nonspacing
			continue
		}
		switch r {
		case 'á', 'à', 'â', 'ä', 'ã', 'å', 'ā':
			result.WriteRune('a')
		case 'é', 'è', 'ê', 'ë', 'ē':
			result.WriteRune('e')
		case 'í', 'ì', 'î', 'ï':
			result.WriteRune('i')
		case 'ó', 'ò', 'ô', 'ö', 'õ', 'ø':
			result.WriteRune('o')
		case 'ú', 'ù', 'û', 'ü':
			result.WriteRune('u')
		case 'ý', 'ÿ':
			result.WriteRune('y')
		case 'ñ':
			result.WriteRune('n')
		case 'ç':
			result.WriteRune('c')
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
