package discovery

import (
	"strings"

	"github.com/sells-group/leadfinder/internal/model"
)

// MaxDecisionMakers caps DecisionMakers output.
const MaxDecisionMakers = 5

var decisionTitleKeywords = []string{
	"ceo", "founder", "owner", "president", "director", "vp",
	"vice president", "chief", "head", "manager", "principal", "partner",
}

// IsDecisionMaker reports whether title carries a leadership keyword.
func IsDecisionMaker(title string) bool {
	t := strings.ToLower(title)
	for _, kw := range decisionTitleKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// DecisionMakers returns up to MaxDecisionMakers contacts with leadership
// titles, in input order.
func DecisionMakers(contacts []model.ContactCandidate) []model.ContactCandidate {
	var out []model.ContactCandidate
	for _, c := range contacts {
		if !IsDecisionMaker(c.Title) {
			continue
		}
		out = append(out, c)
		if len(out) == MaxDecisionMakers {
			break
		}
	}
	return out
}
