package cite

import "regexp"

// reporterWindow is how far (in bytes) around a match a reporter acronym
// disqualifies it as a statute reference.
const reporterWindow = 12

const (
	number = `(\d+(?:\.\d+)*)`

	// Optional code/act qualifier: long form ("du Code civil du Québec") in
	// the first group, abbreviation ("C.c.Q.") in the second.
	codeQualifier = `(?:\s*,?\s*(?:du|de\s+la|de\s+l['’]|des|de)\s+((?:Code|Loi|Règlement|Charte|Décret|Ordonnance|Constitution)\b[^\n,;:().]{0,60})|\s+(C\.c\.Q\.|C\.p\.c\.|C\.cr\.|C\.civ\.|C\.pén\.|L\.R\.Q\.|RLRQ))?`
)

var (
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)*`)

	// "articles 5 à 7", "art. 5–7.1", "art.5–art.7.1"
	rangePattern = regexp.MustCompile(`(?i)\b(?:les\s+)?(?:articles?|arts?\.)\s*` + number + `\s*(?:à|to|[–—])\s*(?:l['’]\s*)?(?:art(?:icle)?\.?\s*)?` + number)

	// "articles 5 et 6", "arts. 3, 4 et 9 du Code civil"
	listPattern = regexp.MustCompile(`(?i)\b(?:les\s+)?(?:articles|arts\.)\s+(\d+(?:\.\d+)*(?:\s*(?:,|et|ou)\s*\d+(?:\.\d+)*)+)` + codeQualifier)

	// "l'article 20, alinéa 3", "art. 1457 du Code civil", "s. 24"
	singlePattern = regexp.MustCompile(`(?i)\b(?:l['’]\s*)?(?:art\.|articles?|s\.|sec\.)\s*` + number + `(?:\s*,?\s*(?:al\.|alinéa|para\.|paragraphe)\s*(\d+))?` + codeQualifier)

	reporterAcronym   = regexp.MustCompile(`R\.C\.S\.|S\.C\.R\.|R\.J\.Q\.|R\.D\.I\.|D\.L\.R\.|B\.R\.|C\.A\.|C\.S\.|R\.R\.A\.|J\.E\.|A\.C\.|QCCA|QCCS|CSC|SCC`)
	precededByInitial = regexp.MustCompile(`[A-Z]\.\s?$`)

	structuralPattern = regexp.MustCompile(`(?i:supra|infra)\s*,?\s*(?i:partie|section|titre|chapitre)\s+([IVXLC]+|[A-Z]|\d+)\b`)
)

var casePatterns = []*regexp.Regexp{
	// Neutral citation: 2017 CSC 45
	regexp.MustCompile(`\b(?:19|20)\d{2}\s+(?:CSC|SCC|QCCA|QCCS|QCCQ|QCTAQ|QCTAT|ONCA|ONSC|FCA|CAF|CF|FC|BCCA|BCSC|ABCA|ABQB|NBCA|NSCA|SKCA|MBCA|PEICA|NLCA|TCC|CMAC|CA|CS)\s+\d{1,5}\b`),
	// Reporter citation: [1990] 2 R.C.S. 389
	regexp.MustCompile(`\[\d{4}\]\s*\d*\s*(?:R\.C\.S\.|S\.C\.R\.|R\.J\.Q\.|C\.A\.|C\.S\.|D\.L\.R\.)\s*\d+`),
	// French courts: Cass. civ. 1re, 12 mai 2010, n° 09-12.345
	regexp.MustCompile(`(?:\bCass\.\s*(?:civ\.|crim\.|com\.|soc\.|ass\.\s*plén\.|ch\.\s*mixte)?\s*(?:\d(?:re|e|ère)\s*(?:civ\.)?)?|\bCE|\bCJUE|\bCEDH|\bC\.\s*const\.)\s*,\s*\d{1,2}(?:er)?\s+(?:janv\.?|janvier|févr\.?|février|mars|avr\.?|avril|mai|juin|juil\.?|juillet|août|sept\.?|septembre|oct\.?|octobre|nov\.?|novembre|déc\.?|décembre)\s+\d{4}(?:\s*,\s*n[°o]\s*[\d\-.]*\d)?`),
}

var reviewPatterns = []*regexp.Regexp{
	// (2015) 56 C. de D. 123
	regexp.MustCompile(`\(\d{4}\)\s*\d+\s*(?:R\.\s*du\s*B\.|C\.\s*de\s*D\.|R\.D\.\s*McGill|McGill\s+L\.J\.|R\.J\.T\.|R\.G\.D\.|R\.D\.U\.S\.)\s*\d+`),
	// RTD civ. 2010, p. 45 ; D. 2012, 1234
	regexp.MustCompile(`\b(?:RTD\s?civ\.|RTD\s?com\.|JCP(?:\s?G)?|Gaz\.\s?Pal\.|D\.)\s+\d{4}\s*,?\s*(?:p\.\s*)?\d+`),
}
