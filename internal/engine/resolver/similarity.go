package resolver

import "strings"

// levenshtein is the rune edit distance between two strings, case-insensitive.
func levenshtein(s1, s2 string) int {
	a := []rune(strings.ToLower(s1))
	b := []rune(strings.ToLower(s2))

	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

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
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// textSimilarity is 1 - distance/maxLen, in [0,1]. Two empty strings are
// identical.
func textSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1
	}
	la, lb := len([]rune(s1)), len([]rune(s2))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(s1, s2))/float64(longest)
}
