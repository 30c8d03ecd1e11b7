package topics

import (
	"strings"

	"github.com/samber/lo"
)

// Classify returns the keys of every topic with at least one keyword contained in text.
//
// Matching is plain substring containment on the lowercased text, not whole words, so
// "mark" also matches "market". Keys come back in ruleset order and the slice is never nil.
func (r *Ruleset) Classify(text string) []string {
	found := []string{}
	if text == "" {
		return found
	}

	lower := strings.ToLower(text)
	for _, key := range r.keys {
		matched := lo.ContainsBy(r.topics[key].Keywords, func(k string) bool {
			return strings.Contains(lower, k)
		})
		if matched {
			found = append(found, key)
		}
	}
	return found
}

// ClassifyEntry classifies the space-joined parts, typically title, summary and body
func (r *Ruleset) ClassifyEntry(parts ...string) []string {
	return r.Classify(strings.Join(parts, " "))
}
