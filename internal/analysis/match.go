package analysis

import (
	"strings"

	"github.com/erp-dms/dms-assistant/internal/catalog"
)

type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchTag
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchTag:
		return "tag"
	default:
		return "none"
	}
}

type Match struct {
	Category catalog.Category
	Kind     MatchKind
}

// MatchCategory confirms an AI-proposed document type against the known
// categories. An exact name match anywhere in the list beats any tag match;
// tag matching is a substring test between the candidate and each
// comma-separated search tag. Both sides are trimmed and lower-cased.
func MatchCategory(categories []catalog.Category, candidate string) (Match, bool) {
	want := normalize(candidate)
	if want == "" {
		return Match{}, false
	}

	for _, c := range categories {
		if normalize(c.Name) == want {
			return Match{Category: c, Kind: MatchExact}, true
		}
	}

	for _, c := range categories {
		for _, tag := range strings.Split(c.SearchTags, ",") {
			tag = normalize(tag)
			if tag == "" {
				continue
			}
			if strings.Contains(tag, want) || strings.Contains(want, tag) {
				return Match{Category: c, Kind: MatchTag}, true
			}
		}
	}

	return Match{}, false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
