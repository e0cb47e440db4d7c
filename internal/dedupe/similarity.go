// Package dedupe detects likely duplicates between staged records and the
// registry, and between records within one batch.
package dedupe

import "strings"

// NormalizeName lowercases and collapses whitespace so formatting noise
// never counts against a match.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizePhone keeps digits only.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// PhonesMatch compares normalized numbers, tolerating country-code prefixes
// by falling back to the last nine digits.
func PhonesMatch(a, b string) bool {
	a, b = NormalizePhone(a), NormalizePhone(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len(a) >= 9 && len(b) >= 9 {
		return a[len(a)-9:] == b[len(b)-9:]
	}
	return false
}

// JaroWinkler returns a similarity in [0,1]. Names are compared as runes so
// Arabic text scores the same as Latin.
func JaroWinkler(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	jaro := jaroSimilarity(ar, br)
	if jaro == 0 {
		return 0
	}

	// Winkler prefix bonus, capped at 4 runes.
	prefix := 0
	for i := 0; i < len(ar) && i < len(br) && i < 4; i++ {
		if ar[i] != br[i] {
			break
		}
		prefix++
	}
	const scaling = 0.1
	return jaro + float64(prefix)*scaling*(1-jaro)
}

func jaroSimilarity(a, b []rune) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if string(a) == string(b) {
		return 1
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0
	for i := range a {
		lo := max(0, i-window)
		hi := min(len(b)-1, i+window)
		for j := lo; j <= hi; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	j := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[j] {
			j++
		}
		if a[i] != b[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	return (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2)/m) / 3
}
