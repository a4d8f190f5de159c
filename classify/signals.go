package classify

import "regexp"

// ---------------------------------------------------------------------------
// Statutes and regulations
// ---------------------------------------------------------------------------

var statuteSignals = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*(?:LIVRE|TITRE|CHAPITRE|SECTION|SOUS-SECTION)\s+[IVXLC\d]+`),
	regexp.MustCompile(`(?i)\bDISPOSITIONS\s+(?:GÉNÉRALES|FINALES|TRANSITOIRES)`),
	regexp.MustCompile(`(?im)^\s*(?:Article|Art\.?)\s+\d+(?:\.\d+)*`),
	regexp.MustCompile(`(?m)^\s*(?:Sec\.|s\.)\s+\d+`),
	regexp.MustCompile(`(?i)\b(?:Définitions|Interprétation|Definitions|Interpretation)`),
	regexp.MustCompile(`(?i)\bvoir(?:\s+aussi)?\s+(?:l['’]\s*)?(?:art\.?|article|s\.)\s*\d+`),
	regexp.MustCompile(`\b(?:Code du|Code de la|Code civil|Code pénal|Loi sur|Loi n°|Règlement|Décret|Arrêté)`),
	regexp.MustCompile(`\b(?:CQLR|RLRQ|L\.R\.Q\.|L\.R\.C\.|JORF)`),
}

var articleMarker = regexp.MustCompile(`(?im)^\s*(?:Article|Art\.?)\s+\d+`)

func scoreStatute(text string) int {
	s := hits(text, statuteSignals)
	switch n := count(text, articleMarker); {
	case n >= 5:
		s += 2
	case n >= 2:
		s++
	}
	return s
}

// ---------------------------------------------------------------------------
// Judgments
// ---------------------------------------------------------------------------

var (
	neutralCitation = regexp.MustCompile(`\b(?:19|20)\d{2}\s+(?:CSC|SCC|QCCA|QCCS|QCCQ|QCTAQ|ONCA|ONSC|FCA|CAF|CF|FC|CA|CS|BCCA|BCSC|ABCA|ABQB|NBCA|NSCA|SKCA|MBCA|PEICA|NLCA)\s+\d+\b`)
	judgePhrase     = regexp.MustCompile(`(?i)\b(?:le|la|les)\s+juges?\b|\bjuge en chef\b|\bl['’]honorable\b`)
	judgmentWord    = regexp.MustCompile(`(?i)\b(?:jugement|arrêt)`)
	judgmentHeading = regexp.MustCompile(`(?im)^\s*(?:Faits|Les faits|Exposé des faits|Contexte|Questions? en litige|Moyens|Motifs|Analyse|Discussion|Dispositif|Par ces motifs|Pour ces motifs|Conclusion)\s*:?\s*$`)
)

var judgmentSignals = []*regexp.Regexp{
	neutralCitation,
	regexp.MustCompile(`\bR\.?\s*c\.\s|\s(?:c\.|v\.)\s+\p{Lu}`),
	judgePhrase,
	regexp.MustCompile(`(?i)\b(?:Motifs|Analyse|Dispositif|Arrêt|Jugement)`),
	regexp.MustCompile(`(?m)^\s*\[\d+\]`),
	regexp.MustCompile(`(?i)\b(?:demandeu(?:r|resse)|défendeu(?:r|resse)|appelante?|intimée?|requérante?|la cour|le tribunal)`),
}

func scoreJudgment(text string) int {
	s := hits(text, judgmentSignals)
	if judgePhrase.MatchString(text) && judgmentWord.MatchString(text) {
		s++
	}
	if count(text, judgmentHeading) >= 2 {
		s++
	}
	return s
}

func judgmentAnatomy(text string) bool {
	return neutralCitation.MatchString(text) || judgePhrase.MatchString(text)
}

// ---------------------------------------------------------------------------
// Doctrine
// ---------------------------------------------------------------------------

var (
	romanHeading   = regexp.MustCompile(`(?m)^\s*[IVX]{1,4}\s*[.)\-–—]\s+\S`)
	ibidRef        = regexp.MustCompile(`(?i)\b(?:ibid|op\.\s*cit)\.?`)
	bibliographyRe = regexp.MustCompile(`(?i)\b(?:Bibliographie|Bibliography|Références)`)
	introRe        = regexp.MustCompile(`(?i)\bIntroduction\b`)
	abstractRe     = regexp.MustCompile(`(?i)\b(?:Résumé|Abstract)`)
)

var doctrineSignals = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:Résumé|Abstract|Mots[-\s]?clés)`),
	regexp.MustCompile(`(?i)\b(?:Introduction|Conclusion|Bibliographie|Remerciements)\b`),
	regexp.MustCompile(`(?i)\b(?:Revue|Dalloz|LexisNexis|Lextenso|Yvon Blais|Wilson\s*&\s*Lafleur|Thémis|Presses de l['’]Université)`),
	regexp.MustCompile(`(?i)(?:\bdoi:|\bISSN\b|\bISBN\b|\bVol\.|\bpp?\.\s*\d)`),
	regexp.MustCompile(`(?m)^\s*(?:par|Par|by|By)\s+\p{Lu}[\p{L}\-]+\s+\p{Lu}[\p{L}\-]+`),
	regexp.MustCompile(`(?i)\b(?:Professeure?|Maître|Avocate?|LL\.M\.|Ph\.D\.|Université|Faculté de droit)`),
	romanHeading,
}

func scoreDoctrine(text string) int {
	s := hits(text, doctrineSignals)
	if count(text, ibidRef) >= 2 {
		s++
	}
	return s
}

func doctrineAnatomy(text string) bool {
	if !romanHeading.MatchString(text) {
		return false
	}
	return bibliographyRe.MatchString(text) || introRe.MatchString(text) || abstractRe.MatchString(text)
}

// ---------------------------------------------------------------------------
// Public reports (audit, inspection, court of auditors)
// ---------------------------------------------------------------------------

var (
	recommendationMarker = regexp.MustCompile(`(?im)^\s*(?:Recommandation|Recommendation)s?\b(?:\s*n\s*[°o]\.?\s*\d+)?`)
	execSummaryRe        = regexp.MustCompile(`(?i)\b(?:Synthèse|Résumé exécutif|Executive summary|Note de synthèse)`)
	methodologyRe        = regexp.MustCompile(`(?i)\b(?:Méthodologie|Methodology|Méthode)`)
	findingsRe           = regexp.MustCompile(`(?i)\b(?:Constats|Observations|Findings)\b`)
	recommendationsRe    = regexp.MustCompile(`(?i)\bRecomm[ae]ndations?\b`)
	annexRe              = regexp.MustCompile(`(?i)\bAnnexes?\b`)
)

var reportSignals = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:Cour des comptes|Chambre régionale des comptes|Inspection générale|IGF|IGAS|Vérificat(?:eur|rice) général|Commissaire|Protecteur du citoyen)`),
	regexp.MustCompile(`(?i)\b(?:Rapport public|Rapport d['’](?:audit|enquête|évaluation|observations)|Rapport annuel|Note de synthèse|Relevé d['’]observations)`),
	regexp.MustCompile(`(?i)\b(?:Synthèse|Constats?|Recommandations?|Recommendations?|Méthodologie|Annexes?|Observations?)\b`),
	regexp.MustCompile(`(?i)\bObservation\s*n\s*[°o]\.?\s*\d+`),
	regexp.MustCompile(`(?i)\b(?:contrôle|audit|irrégularit|vérification|entité contrôlée)`),
	regexp.MustCompile(`(?i)\bRéponses?\s+(?:de|du|des)\b`),
}

func scorePublicReport(text string) int {
	s := hits(text, reportSignals)
	switch n := count(text, recommendationMarker); {
	case n >= 3:
		s += 2
	case n >= 1:
		s++
	}
	return s
}

func reportAnatomy(text string) bool {
	if !execSummaryRe.MatchString(text) || !methodologyRe.MatchString(text) {
		return false
	}
	return findingsRe.MatchString(text) || recommendationsRe.MatchString(text) || annexRe.MatchString(text)
}
