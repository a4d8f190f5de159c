// Package classify scores raw document text against the four legal document
// families and picks the most likely one.
package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Family is the closed set of document archetypes that drive segmentation.
type Family string

const (
	Statute      Family = "statute_regulation"
	Judgment     Family = "judgment"
	Doctrine     Family = "doctrine"
	PublicReport Family = "public_report"
	Unknown      Family = "unknown"
)

// Families lists the scored families in canonical order. The order is also the
// last-resort tie-break.
var Families = []Family{Statute, Judgment, Doctrine, PublicReport}

var humanLabels = map[Family]string{
	Statute:      "Lois & règlements",
	Judgment:     "Jurisprudence (décision de justice)",
	Doctrine:     "Doctrine (articles, commentaires)",
	PublicReport: "Rapports publics (Cour des comptes, inspections)",
	Unknown:      "Inconnu",
}

// Human returns the French display label of the family.
func (f Family) Human() string {
	if l, ok := humanLabels[f]; ok {
		return l
	}
	return humanLabels[Unknown]
}

// Valid reports whether f is one of the scored families.
func (f Family) Valid() bool {
	for _, x := range Families {
		if x == f {
			return true
		}
	}
	return false
}

// Result is the outcome of one classification.
type Result struct {
	Type   Family         `json:"detected_type"`
	Human  string         `json:"detected_type_human"`
	Scores map[Family]int `json:"scores"`
}

// Config tunes the classifier.
type Config struct {
	// MaxChars caps the amount of text scanned (in runes).
	MaxChars int `json:"max_chars" yaml:"max_chars"`
	// Thresholds is the minimum score per family; below it the result is Unknown.
	Thresholds map[Family]int `json:"thresholds" yaml:"thresholds"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MaxChars: 200_000,
		Thresholds: map[Family]int{
			Statute:      3,
			Judgment:     2,
			Doctrine:     3,
			PublicReport: 2,
		},
	}
}

// Classifier is safe for concurrent use; it holds no mutable state.
type Classifier struct {
	cfg Config
}

// New creates a Classifier. Missing config values fall back to the defaults.
func New(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	th := make(map[Family]int, len(def.Thresholds))
	for f, v := range def.Thresholds {
		th[f] = v
	}
	for f, v := range cfg.Thresholds {
		if f.Valid() && v > 0 {
			th[f] = v
		}
	}
	cfg.Thresholds = th
	return &Classifier{cfg: cfg}
}

// Classify never fails: with no usable signal it returns Unknown.
func (c *Classifier) Classify(title, text string) Result {
	sample := strings.TrimSpace(title + "\n" + text)
	sample = truncateRunes(sample, c.cfg.MaxChars)

	scores := map[Family]int{
		Statute:      scoreStatute(sample),
		Judgment:     scoreJudgment(sample),
		Doctrine:     scoreDoctrine(sample),
		PublicReport: scorePublicReport(sample),
	}

	best := pick(sample, scores)
	if best == Unknown || scores[best] < c.cfg.Thresholds[best] {
		best = Unknown
	}
	return Result{Type: best, Human: best.Human(), Scores: scores}
}

// pick returns the argmax family, applying the anatomy tie-breaks when two or
// more families share the top score.
func pick(text string, scores map[Family]int) Family {
	top := 0
	for _, f := range Families {
		if scores[f] > top {
			top = scores[f]
		}
	}
	if top == 0 {
		return Unknown
	}

	var tied []Family
	for _, f := range Families {
		if scores[f] == top {
			tied = append(tied, f)
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}

	has := func(f Family) bool {
		for _, t := range tied {
			if t == f {
				return true
			}
		}
		return false
	}

	switch {
	case has(PublicReport) && reportAnatomy(text):
		return PublicReport
	case has(Doctrine) && doctrineAnatomy(text):
		return Doctrine
	case has(Judgment) && judgmentAnatomy(text):
		return Judgment
	case has(Statute) && scores[Statute] >= 3:
		return Statute
	}
	return tied[0]
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// hits counts how many patterns match at least once.
func hits(text string, patterns []*regexp.Regexp) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

func count(text string, p *regexp.Regexp) int {
	return len(p.FindAllStringIndex(text, -1))
}
