package lexgraph

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractSnippet_BasicOverlap(t *testing.T) {
	content := "Le locataire doit payer le loyer le premier jour du mois. Le locateur entretient le logement."
	answerWords := significantWords("Le loyer est payable le premier jour du mois 【1】.")

	snippet := extractSnippet(content, answerWords)
	if snippet != "Le locataire doit payer le loyer le premier jour du mois." {
		t.Errorf("unexpected snippet: %q", snippet)
	}
}

func TestExtractSnippet_NoOverlap(t *testing.T) {
	content := "Le tribunal rejette la demande."
	answerWords := significantWords("fiscalité internationale des sociétés")

	if snippet := extractSnippet(content, answerWords); snippet != "" {
		t.Errorf("expected empty snippet when no overlap, got: %q", snippet)
	}
}

func TestExtractSnippet_EmptyInputs(t *testing.T) {
	if s := extractSnippet("", map[string]bool{"loyer": true}); s != "" {
		t.Errorf("expected empty for empty content, got: %q", s)
	}
	if s := extractSnippet("Le loyer est dû.", nil); s != "" {
		t.Errorf("expected empty for nil answerWords, got: %q", s)
	}
}

func TestExtractSnippet_RespectMaxLen(t *testing.T) {
	content := "Le contrat " + strings.Repeat("prévoit des obligations réciproques ", 20) + "."
	snippet := extractSnippet(content, significantWords("contrat"))

	if n := utf8.RuneCountInString(snippet); n == 0 || n > snippetMaxLen+1 {
		t.Errorf("snippet has %d runes, want 1..%d", n, snippetMaxLen+1)
	}
	if !strings.HasSuffix(snippet, "…") {
		t.Errorf("expected truncated snippet to end with an ellipsis: %q", snippet)
	}
}

func TestExtractSnippet_AdjacentSentences(t *testing.T) {
	content := "Contexte général. Le contrat prévoit une pénalité. La pénalité est réductible par le tribunal."
	answerWords := significantWords("La pénalité prévue au contrat est réductible")

	snippet := extractSnippet(content, answerWords)
	want := "Le contrat prévoit une pénalité. La pénalité est réductible par le tribunal."
	if snippet != want {
		t.Errorf("snippet = %q, want %q", snippet, want)
	}
}

func TestSignificantWords(t *testing.T) {
	words := significantWords("Le tribunal considère que la responsabilité civile est engagée dans cette affaire.")

	for _, w := range []string{"tribunal", "considère", "responsabilité", "civile", "engagée", "affaire"} {
		if !words[w] {
			t.Errorf("expected %q in significant words", w)
		}
	}
	for _, w := range []string{"dans", "cette", "que", "la", "est"} {
		if words[w] {
			t.Errorf("%q should be excluded", w)
		}
	}
}

func TestSnippetSplitSentences(t *testing.T) {
	text := "Vu l'article 5; la demande est rejetée. Pourquoi? Parce que! Fin sans point"
	got := snippetSplitSentences(text)

	want := []string{"Vu l'article 5;", "la demande est rejetée.", "Pourquoi?", "Parce que!", "Fin sans point"}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
