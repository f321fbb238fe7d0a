package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a name and strips all whitespace from it, so
// "Py Torch" and "pytorch" compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// MostSimilar returns the candidate with the highest Jaro-Winkler similarity
// to target after both are normalized, and that similarity. It returns
// ("", 0) when there are no candidates.
func MostSimilar(target string, candidates []string) (string, float64) {
	target = NormalizeName(target)

	var mostSimilarity float64
	var mostSimilar string
	for _, c := range candidates {
		similarity := matchr.JaroWinkler(target, NormalizeName(c), false)
		if similarity > mostSimilarity {
			mostSimilarity = similarity
			mostSimilar = c
		}
	}
	return mostSimilar, mostSimilarity
}
