package eligibility

import (
	"strings"
)

// Classifier answers which qualification categories a single ICD-10 code
// belongs to. The rule table is copied at construction and never mutated, so
// a classifier is safe for concurrent use.
type Classifier struct {
	exact  map[string][]QualificationCriterion
	prefix []QualificationCriterion
}

// NewClassifier builds a classifier over the supplied criteria. Exact rules
// are indexed by code; prefix rules are scanned in order.
func NewClassifier(criteria []QualificationCriterion) *Classifier {
	c := &Classifier{
		exact: make(map[string][]QualificationCriterion, len(criteria)),
	}
	for _, criterion := range criteria {
		switch criterion.MatchMode {
		case MatchPrefix:
			c.prefix = append(c.prefix, criterion)
		default:
			c.exact[criterion.ICD10Code] = append(c.exact[criterion.ICD10Code], criterion)
		}
	}
	return c
}

// Classify returns the set of categories the code qualifies for. Comparison
// is exact-string and case-sensitive except for explicit prefix rules.
// Unknown or malformed codes map to the empty set, never an error.
func (c *Classifier) Classify(code string) map[Category]bool {
	result := make(map[Category]bool)
	if code == "" {
		return result
	}

	for _, criterion := range c.exact[code] {
		if criterion.IsQualifying {
			result[criterion.QualificationType] = true
		}
	}
	for _, criterion := range c.prefix {
		if criterion.IsQualifying && strings.HasPrefix(code, criterion.ICD10Code) {
			result[criterion.QualificationType] = true
		}
	}
	return result
}
