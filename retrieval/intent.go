package retrieval

import (
	"regexp"
	"slices"

	"github.com/brunobiangulo/lexgraph/classify"
	"github.com/brunobiangulo/lexgraph/segment"
)

// Intent is the family and role pre-filter inferred from a question.
type Intent struct {
	Names []string          `json:"names,omitempty"`
	Types []classify.Family `json:"types,omitempty"`
	Roles []segment.Role    `json:"roles,omitempty"`

	rules []int
}

// Empty reports whether no intent was detected.
func (i Intent) Empty() bool { return len(i.Types) == 0 && len(i.Roles) == 0 }

var intentRules = []struct {
	name    string
	pattern *regexp.Regexp
	family  classify.Family
	roles   []segment.Role
}{
	{"recommendation", regexp.MustCompile(`(?i)\brecomm[ae]nd`), classify.PublicReport,
		[]segment.Role{segment.RoleRecommendation}},
	{"observation", regexp.MustCompile(`(?i)\b(?:observations?\b|constats?\b|irr[ée]gularit)`), classify.PublicReport,
		[]segment.Role{segment.RoleObservation}},
	{"response", regexp.MustCompile(`(?i)\b(?:r[ée]ponses?|r[ée]pondu|droit de r[ée]ponse)\b`), classify.PublicReport,
		[]segment.Role{segment.RoleResponse}},
	{"disposition", regexp.MustCompile(`(?i)\b(?:dispositif|par ces motifs|d[ée]cid[ée]|condamn[ée])`), classify.Judgment,
		[]segment.Role{segment.RoleDisposition}},
	{"reasons", regexp.MustCompile(`(?i)\b(?:motifs|motivation|raisonnement|la cour (?:a )?(?:jug|estim|consid))`), classify.Judgment,
		[]segment.Role{segment.RoleReasons}},
	{"facts", regexp.MustCompile(`(?i)\b(?:les faits|faits de l'esp[èe]ce)\b`), classify.Judgment,
		[]segment.Role{segment.RoleFacts}},
	{"article", regexp.MustCompile(`(?i)\b(?:articles?\s+\d|art\.\s*\d|que (?:dit|pr[ée]voit) la loi)`), classify.Statute,
		[]segment.Role{segment.RoleArticle}},
	{"doctrine", regexp.MustCompile(`(?i)\b(?:doctrine|auteurs?|commentateurs?)\b`), classify.Doctrine, nil},
}

// detectIntent maps query keywords to family and role filters. Every
// matching rule contributes.
func detectIntent(query string) Intent {
	var in Intent
	for i, r := range intentRules {
		if !r.pattern.MatchString(query) {
			continue
		}
		in.rules = append(in.rules, i)
		in.Names = append(in.Names, r.name)
		if !slices.Contains(in.Types, r.family) {
			in.Types = append(in.Types, r.family)
		}
		for _, role := range r.roles {
			if !slices.Contains(in.Roles, role) {
				in.Roles = append(in.Roles, role)
			}
		}
	}
	return in
}

// Match reports whether a segment of the given family and role satisfies
// at least one detected rule. A rule without roles accepts the whole family.
func (i Intent) Match(family classify.Family, role segment.Role) bool {
	for _, idx := range i.rules {
		r := intentRules[idx]
		if r.family != family {
			continue
		}
		if len(r.roles) == 0 || slices.Contains(r.roles, role) {
			return true
		}
	}
	return false
}
