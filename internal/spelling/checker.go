package spelling

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Checker proposes at most one corrected phrase per visible text node.
type Checker struct {
	index Index
}

func NewChecker(index Index) *Checker {
	return &Checker{index: index}
}

// Check returns original text -> suggested text for every text node of body
// that looks misspelled. extraWords join the dictionary for this call only, so
// they are both accepted and offered as corrections; ignoreWords are never
// corrected, and a text equal to one of them is skipped.
func (c *Checker) Check(body []byte, extraWords, ignoreWords []string) (map[string]string, error) {
	texts, err := VisibleTexts(body)
	if err != nil {
		return nil, err
	}

	index := withExtras(c.index, extraWords)
	ignore := wordSet(ignoreWords)

	found := make(map[string]string)
	for _, text := range texts {
		if ignore[strings.ToLower(text)] || isDate(text) {
			continue
		}
		suggestion, distance, err := correct(index, text, ignore)
		if err != nil {
			return nil, fmt.Errorf("failed to look up %q: %w", text, err)
		}
		if Acceptable(text, suggestion, distance) {
			found[text] = suggestion
		}
	}
	return found, nil
}

// correct rewrites each word of text to its best dictionary match and returns
// the rewritten text and the summed edit distance.
func correct(index Index, text string, ignore map[string]bool) (string, int, error) {
	var (
		out   strings.Builder
		total int
	)
	for _, tok := range tokenize(text) {
		if !tok.word {
			out.WriteString(tok.text)
			continue
		}
		lower := strings.ToLower(tok.text)
		if ignore[lower] || utf8.RuneCountInString(lower) <= 1 {
			out.WriteString(tok.text)
			continue
		}
		s, err := index.Lookup(lower)
		if err != nil {
			return "", 0, err
		}
		if !s.Known || s.Distance == 0 {
			out.WriteString(tok.text)
			continue
		}
		out.WriteString(transferCase(tok.text, s.Term))
		total += s.Distance
	}
	return out.String(), total, nil
}

// Acceptable filters suggestions that are noise rather than typos.
func Acceptable(original, suggestion string, distance int) bool {
	if distance == 0 || utf8.RuneCountInString(original) <= 1 {
		return false
	}

	n := utf8.RuneCountInString(suggestion)
	if n == 0 {
		return false
	}
	limit := 0.5
	if n > 20 {
		limit = 0.2
	}
	if float64(distance)/float64(n) > limit {
		return false
	}

	return !strings.EqualFold(stripPunct(original), stripPunct(suggestion))
}

func stripPunct(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case strings.ContainsRune(`"'“”‘’:,-`, r):
			return -1
		default:
			return r
		}
	}, s)
}

func transferCase(original, term string) string {
	first, _ := utf8.DecodeRuneInString(original)
	switch {
	case utf8.RuneCountInString(original) > 1 && original == strings.ToUpper(original):
		return cases.Upper(language.Und).String(term)
	case unicode.IsUpper(first):
		return cases.Title(language.Und).String(term)
	default:
		return term
	}
}

type token struct {
	text string
	word bool
}

// tokenize splits text into alternating word and non-word runs. Words are
// letters with inner apostrophes; anything containing a digit is left alone.
func tokenize(text string) []token {
	var (
		toks []token
		cur  strings.Builder
		word bool
	)
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, token{text: cur.String(), word: word})
			cur.Reset()
		}
	}
	runes := []rune(text)
	for i, r := range runes {
		isWord := unicode.IsLetter(r) ||
			(r == '\'' && word && i+1 < len(runes) && unicode.IsLetter(runes[i+1]))
		if isWord != word {
			flush()
			word = isWord
		}
		cur.WriteRune(r)
	}
	flush()
	return mergeDigits(toks)
}

// mergeDigits turns word runs glued to digits (e.g. "mp3", "2fa") into
// non-word tokens.
func mergeDigits(toks []token) []token {
	for i := range toks {
		if !toks[i].word {
			continue
		}
		prevDigit := i > 0 && endsWithDigit(toks[i-1].text)
		nextDigit := i+1 < len(toks) && startsWithDigit(toks[i+1].text)
		if prevDigit || nextDigit {
			toks[i].word = false
		}
	}
	return toks
}

func endsWithDigit(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsDigit(r)
}

func startsWithDigit(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsDigit(r)
}

// isDate reports whether text parses as a date or time expression.
func isDate(text string) (ok bool) {
	// dateparse panics on some malformed inputs.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_, err := dateparse.ParseAny(text)
	return err == nil
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = true
		}
	}
	return set
}
