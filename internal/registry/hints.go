package registry

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/eldtechnologies/agentslack/internal/apperr"
)

const maxHints = 10

// notFound builds a NotFound error listing known names, closest match
// first.
func notFound(what, name string, known []string) error {
	if len(known) == 0 {
		return apperr.New(apperr.NotFound, "unknown %s %q (none registered)", what, name)
	}
	return apperr.New(apperr.NotFound, "unknown %s %q; known: %s", what, name, strings.Join(rank(name, known), ", "))
}

// rank orders known by fuzzy similarity to name. Names that do not match at
// all keep their original order after the matches.
func rank(name string, known []string) []string {
	out := make([]string, 0, len(known))
	picked := make(map[int]struct{})
	if name != "" {
		for _, m := range fuzzy.Find(name, known) {
			out = append(out, m.Str)
			picked[m.Index] = struct{}{}
		}
	}
	for i, k := range known {
		if _, ok := picked[i]; !ok {
			out = append(out, k)
		}
	}
	if len(out) > maxHints {
		out = out[:maxHints]
	}
	return out
}
