// Package evaluation turns free-form model output into a bounded judgment
// and computes the objective signals used when the output cannot be parsed.
package evaluation

import (
	"strings"
	"unicode"
)

// Signals are objective measurements of a transcript.
type Signals struct {
	WordCount     int     `json:"word_count"`
	Units         int     `json:"units"`
	WordsPerUnit  float64 `json:"words_per_unit"`
	CoverageRatio float64 `json:"coverage_ratio"`
}

// ComputeSignals measures transcript against optional source material.
// units is the number of content units (slides); values below 1 count as 1.
// Without source keywords the coverage ratio is 0.
func ComputeSignals(transcript, sourceText string, units int) Signals {
	if units < 1 {
		units = 1
	}
	words := CountWords(transcript)

	return Signals{
		WordCount:     words,
		Units:         units,
		WordsPerUnit:  float64(words) / float64(units),
		CoverageRatio: Coverage(transcript, sourceText),
	}
}

// CountWords counts letter/digit runs as words and each CJK character as one word.
func CountWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case isCJK(r):
			count++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			if !inWord {
				count++
				inWord = true
			}
		default:
			inWord = false
		}
	}
	return count
}

// Coverage is the fraction of source keywords found in the transcript vocabulary.
func Coverage(transcript, sourceText string) float64 {
	keywords := Keywords(sourceText)
	if len(keywords) == 0 {
		return 0
	}
	vocab := make(map[string]struct{})
	for _, tok := range tokens(transcript) {
		vocab[tok] = struct{}{}
	}

	hit := 0
	for _, kw := range keywords {
		if _, ok := vocab[kw]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(keywords))
}

// Keywords returns the distinct lower-cased tokens of text that are at
// least two runes long and not stop words, in first-seen order.
func Keywords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokens(text) {
		if len([]rune(tok)) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// tokens splits text into lower-cased words. CJK runs become overlapping
// two-character tokens since they carry no spaces.
func tokens(text string) []string {
	var out []string
	var word strings.Builder
	var cjk []rune

	flushWord := func() {
		if word.Len() > 0 {
			out = append(out, strings.ToLower(word.String()))
			word.Reset()
		}
	}
	flushCJK := func() {
		switch {
		case len(cjk) == 1:
			out = append(out, string(cjk))
		case len(cjk) > 1:
			for i := 0; i+1 < len(cjk); i++ {
				out = append(out, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flushWord()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			word.WriteRune(r)
		default:
			flushWord()
			flushCJK()
		}
	}
	flushWord()
	flushCJK()
	return out
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {},
	"its": {}, "of": {}, "on": {}, "or": {}, "our": {}, "so": {}, "that": {}, "the": {},
	"their": {}, "this": {}, "to": {}, "was": {}, "we": {}, "were": {}, "will": {},
	"with": {}, "you": {}, "your": {}, "can": {}, "not": {}, "all": {}, "also": {},
	"这个": {}, "我们": {}, "他们": {}, "一个": {}, "就是": {}, "然后": {}, "因为": {},
	"所以": {}, "但是": {}, "可以": {}, "没有": {}, "什么": {},
}
