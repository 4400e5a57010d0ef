// Package normalize turns raw message text into the canonical token and
// language representation consumed by the rule engine.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/mikey/mail-triage/internal/core"
)

var (
	signaturePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*--\s*$`),
		regexp.MustCompile(`^\s*_{3,}\s*$`),
		regexp.MustCompile(`^\s*\p{Lu}\p{Ll}+\s+\p{Lu}\p{Ll}+\s*$`),
		regexp.MustCompile(`^\s*\p{Lu}\p{Ll}+\s+\p{Lu}\p{Ll}+\s*<[^>]+>\s*$`),
		regexp.MustCompile(`^\s*(?:Tel|Phone|Fone|Cel)[:\s]*[\d\-+()\s]+$`),
		regexp.MustCompile(`^\s*\p{Lu}\p{Ll}+[:\s]*[\d\-+()\s]+$`),
	}

	horizontalSpace = regexp.MustCompile(`[\t\f\r\v\p{Zs}\x{85}\x{2028}\x{2029}]+`)
	controlChars    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x9f]`)
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s.,!?;:()\[\]{}"'\-]`)
	wordPattern     = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)
)

// language marker words, counted as whole words in the cleaned text
var (
	portugueseMarkers = wordSet("de", "a", "o", "e", "é", "para", "com", "não", "que", "um")
	englishMarkers    = wordSet("the", "a", "an", "and", "or", "but", "in", "on", "at", "to")
)

// Normalizer is a stateless text normalizer. The zero value is ready to use.
type Normalizer struct{}

// New creates a Normalizer
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize cleans, tokenizes and language-tags a message body and subject.
// It never fails; empty input yields an empty message in the default language.
func (n *Normalizer) Normalize(body, subject string, hasAttachments bool) *core.NormalizedMessage {
	body = unifySpaces(norm.NFC.String(strings.ReplaceAll(body, "\r\n", "\n")))
	subject = unifySpaces(norm.NFC.String(strings.TrimSpace(subject)))

	full := StripSignature(body)
	if subject != "" {
		full = subject + "\n\n" + full
	}

	clean := RemoveSpecialChars(CollapseWhitespace(full))
	tokens := FilterStopwords(Tokenize(clean))

	return &core.NormalizedMessage{
		CleanText:      clean,
		Tokens:         tokens,
		Language:       DetectLanguage(clean),
		WordCount:      len(tokens),
		HasAttachments: hasAttachments,
	}
}

// unifySpaces maps every Unicode space except newline to an ASCII space, so
// NBSP and friends separate words like a regular space does.
func unifySpaces(text string) string {
	return strings.Map(func(r rune) rune {
		if r != '\n' && r != ' ' && unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, text)
}

// StripSignature drops the first line that looks like a signature and
// everything after it.
func StripSignature(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if isSignatureLine(line) {
			return strings.Join(lines[:i], "\n")
		}
	}
	return text
}

func isSignatureLine(line string) bool {
	for _, p := range signaturePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// CollapseWhitespace reduces runs of spaces to one, joins wrapped lines of a
// paragraph with a single space, and keeps at most one blank line between
// paragraphs.
func CollapseWhitespace(text string) string {
	var paragraphs []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}

// RemoveSpecialChars strips control characters and anything outside the
// word/punctuation allow-list.
func RemoveSpecialChars(text string) string {
	text = controlChars.ReplaceAllString(text, "")
	return disallowedChars.ReplaceAllString(text, "")
}

// Tokenize splits text on word boundaries, lower-cases the words and drops
// those of two runes or fewer.
func Tokenize(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) > 2 {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// FilterStopwords removes stopwords, preserving order.
func FilterStopwords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}

// DetectLanguage picks pt or en by counting marker words; ties go to the
// default language.
func DetectLanguage(text string) string {
	var pt, en int
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if _, ok := portugueseMarkers[w]; ok {
			pt++
		}
		if _, ok := englishMarkers[w]; ok {
			en++
		}
	}

	switch {
	case pt > en:
		return core.LanguagePortuguese
	case en > pt:
		return core.LanguageEnglish
	default:
		return core.DefaultLanguage
	}
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
