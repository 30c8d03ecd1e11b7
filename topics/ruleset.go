// Package topics holds the static topic ruleset and the keyword classifier built on it
package topics

import (
	"errors"
	"fmt"
	"strings"

	"prophecywatch/models"

	"github.com/samber/lo"
)

// Ruleset is an immutable mapping from topic key to topic, iterated in configuration order
type Ruleset struct {
	keys   []string
	topics map[string]models.Topic
}

// NewRuleset builds a ruleset from topics in the order given. Keywords are lowercased and
// blank keywords dropped, otherwise an empty keyword would match every text.
func NewRuleset(topics []models.Topic) (*Ruleset, error) {
	rs := &Ruleset{
		keys:   make([]string, 0, len(topics)),
		topics: make(map[string]models.Topic, len(topics)),
	}

	for i, t := range topics {
		if strings.TrimSpace(t.Key) == "" {
			return nil, fmt.Errorf("topic %d: empty key", i)
		}
		if _, ok := rs.topics[t.Key]; ok {
			return nil, fmt.Errorf("topic %q: duplicate key", t.Key)
		}
		if strings.TrimSpace(t.Label) == "" {
			return nil, fmt.Errorf("topic %q: empty label", t.Key)
		}

		keywords := lo.FilterMap(t.Keywords, func(k string, _ int) (string, bool) {
			k = strings.ToLower(strings.TrimSpace(k))
			return k, k != ""
		})

		rs.keys = append(rs.keys, t.Key)
		rs.topics[t.Key] = models.Topic{
			Key:        t.Key,
			Label:      t.Label,
			Keywords:   keywords,
			References: append([]models.Reference(nil), t.References...),
		}
	}

	if len(rs.keys) == 0 {
		return nil, errors.New("ruleset has no topics")
	}

	return rs, nil
}

// Keys returns topic keys in configuration order
func (r *Ruleset) Keys() []string {
	return append([]string(nil), r.keys...)
}

func (r *Ruleset) Get(key string) (models.Topic, bool) {
	t, ok := r.topics[key]
	return t, ok
}

func (r *Ruleset) Len() int {
	return len(r.keys)
}

// Verses returns the topic key → label and references payload
func (r *Ruleset) Verses() models.VersesResponse {
	payload := make(models.VersesResponse, len(r.keys))
	for _, key := range r.keys {
		payload[key] = r.TopicVerses(r.topics[key])
	}
	return payload
}

func (r *Ruleset) TopicVerses(t models.Topic) models.TopicVerses {
	verses := t.References
	if verses == nil {
		verses = []models.Reference{}
	}
	return models.TopicVerses{Label: t.Label, Verses: verses}
}
