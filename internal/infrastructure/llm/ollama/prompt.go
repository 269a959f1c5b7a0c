package ollama

import (
	"strings"
	"unicode/utf8"
)

// maxPromptChars bounds the document snippet sent to the model. Evidentiary
// documents can run to hundreds of pages; the opening section carries enough
// signal for both classification and summarization.
const maxPromptChars = 6000

func buildClassificationPrompt(text string) string {
	var b strings.Builder
	b.WriteString(`You classify evidentiary documents for legal case management.
Return a strict JSON object with keys:
document_type (string), confidence (number from 0 to 1), reasoning (string).
document_type must be exactly one of:
contract, invoice, receipt, bank-statement, id-document, correspondence, court-filing, photo, other.
No markdown, no extra keys.

Document text:
`)
	b.WriteString(snippet(text))
	return b.String()
}

func buildSummarizationPrompt(text string) string {
	var b strings.Builder
	b.WriteString(`You summarize evidentiary documents for legal case management.
Return a strict JSON object with keys:
summary (string, 2-3 sentences), key_points (array of at most 5 short strings).
Mention parties, amounts and dates when present. No markdown, no extra keys.

Document text:
`)
	b.WriteString(snippet(text))
	return b.String()
}

// snippet bounds the document text fed into a prompt, cutting on a rune
// boundary so a multibyte character on the limit is never split.
func snippet(text string) string {
	if len(text) <= maxPromptChars {
		return text
	}
	cut := maxPromptChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
