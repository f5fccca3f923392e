// Package organize sorts third-party produce datasets into a
// <quality>/<produce> tree using fuzzy name matching on file paths.
package organize

import (
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Unknown is returned when no variation matches.
const Unknown = "unknown"

type variation struct {
	canonical string
	names     []string
}

// produceVariations lists spellings seen in public datasets. Earlier rows
// win ties.
var produceVariations = []variation{
	{"apple", []string{"apple", "apples"}},
	{"banana", []string{"banana", "bananas"}},
	{"orange", []string{"orange", "oranges"}},
	{"tomato", []string{"tomato", "tomatoes"}},
	{"cucumber", []string{"cucumber", "cucumbers"}},
	{"bell_pepper", []string{"bell_pepper", "capsicum", "pepper", "peppers"}},
	{"strawberry", []string{"strawberry", "strawberries"}},
	{"grape", []string{"grape", "grapes"}},
	{"lime", []string{"lime", "limes"}},
	{"lemon", []string{"lemon", "lemons"}},
	{"onion", []string{"onion", "onions"}},
	{"potato", []string{"potato", "potatoes"}},
	{"bitter_gourd", []string{"bitter_gourd", "bittergourd"}},
	{"brinjal", []string{"brinjal", "eggplant", "aubergine"}},
	{"guava", []string{"guava"}},
	{"chili", []string{"chili", "chilli"}},
}

// qualityVariations maps dataset quality labels onto the two states.
// Partially fresh produce counts as rotten.
var qualityVariations = []variation{
	{types.StateFresh, []string{"fresh", "good", "healthy", "pure-fresh", "pure_fresh"}},
	{types.StateRotten, []string{"rotten", "bad", "stale", "spoiled", "rotten_diseased", "medium-fresh", "medium_fresh"}},
}

// matchComponent returns the canonical name of the longest variation
// contained in s, or "" when none matches.
func matchComponent(s string, table []variation) string {
	s = strings.ToLower(s)
	best, bestLen := "", 0
	for _, v := range table {
		for _, name := range v.names {
			if len(name) > bestLen && strings.Contains(s, name) {
				best, bestLen = v.canonical, len(name)
			}
		}
	}
	return best
}

// identify checks path components from the file name outward and returns
// the first match.
func identify(path string, table []variation) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" {
			continue
		}
		if m := matchComponent(parts[i], table); m != "" {
			return m
		}
	}
	return Unknown
}

// IdentifyProduce returns the canonical produce named by path or Unknown.
func IdentifyProduce(path string) string {
	return identify(path, produceVariations)
}

// IdentifyQuality returns types.StateFresh, types.StateRotten or Unknown.
func IdentifyQuality(path string) string {
	return identify(path, qualityVariations)
}
