// Package tokenize turns plain text into runs of string tokens for a
// markov.Chain and joins walked tokens back into text.
package tokenize

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/CTAG07/chainwalk/pkg/markov"
)

// maxLineSize bounds a single input line read by Runs.
const maxLineSize = 1024 * 1024

// Tokenizer uses regular expressions to split text into words and
// punctuation. Sentence-ending punctuation closes the current run, as does
// a blank line. Its behavior can be customized with functional options.
type Tokenizer struct {
	separator    string
	splitRegex   *regexp.Regexp
	endRegex     *regexp.Regexp
	noSpaceRegex *regexp.Regexp
	keepEnd      bool
}

// Option Is a function that configures a Tokenizer.
type Option func(*Tokenizer)

// WithSeparator Sets the string used for joining tokens.
// Default: " "
func WithSeparator(sep string) Option {
	return func(t *Tokenizer) {
		t.separator = sep
	}
}

// WithSplitRegex sets the regex used to find tokens in the input text.
// Default: `[\w']+|[.,!?;:]`
func WithSplitRegex(splitRegex string) Option {
	return func(t *Tokenizer) {
		t.splitRegex = regexp.MustCompile(splitRegex)
	}
}

// WithEndRegex sets the regex deciding whether a token ends a run.
// Default: `^[.!?]$`
func WithEndRegex(endRegex string) Option {
	return func(t *Tokenizer) {
		t.endRegex = regexp.MustCompile(endRegex)
	}
}

// WithNoSpaceRegex sets the regex deciding whether a token is joined to
// the previous one without a separator.
// Default: `^[.,!?;:]`
func WithNoSpaceRegex(noSpaceRegex string) Option {
	return func(t *Tokenizer) {
		t.noSpaceRegex = regexp.MustCompile(noSpaceRegex)
	}
}

// WithKeepEnd controls whether the token that ends a run is kept as the
// last token of that run. Default: true
func WithKeepEnd(keep bool) Option {
	return func(t *Tokenizer) {
		t.keepEnd = keep
	}
}

// New creates a new tokenizer with default settings, which can be
// overridden by providing one or more Option functions.
func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{
		separator: " ",
		// Sequences of word characters and apostrophes, or single punctuation marks.
		splitRegex:   regexp.MustCompile(`[\w']+|[.,!?;:]`),
		endRegex:     regexp.MustCompile(`^[.!?]$`),
		noSpaceRegex: regexp.MustCompile(`^[.,!?;:]`),
		keepEnd:      true,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Runs reads r to the end and splits it into runs. Empty runs are never
// returned.
func (t *Tokenizer) Runs(r io.Reader) ([][]markov.Token, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var runs [][]markov.Token
	var current []string
	flush := func() {
		if len(current) > 0 {
			runs = append(runs, markov.Strings(current...))
			current = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		for _, word := range t.splitRegex.FindAllString(line, -1) {
			if !t.endRegex.MatchString(word) {
				current = append(current, word)
				continue
			}
			if t.keepEnd && len(current) > 0 {
				current = append(current, word)
			}
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return runs, nil
}

// Tokens splits a single piece of query text into tokens without breaking
// it into runs. End tokens are dropped when WithKeepEnd(false) is set, so
// queries match the way training text was split.
func (t *Tokenizer) Tokens(text string) []markov.Token {
	words := t.splitRegex.FindAllString(text, -1)
	if !t.keepEnd {
		kept := words[:0]
		for _, w := range words {
			if !t.endRegex.MatchString(w) {
				kept = append(kept, w)
			}
		}
		words = kept
	}
	return markov.Strings(words...)
}

// Join renders tokens as text. Sentinels are skipped and non-string tokens
// are written in their JSON form.
func (t *Tokenizer) Join(tokens []markov.Token) string {
	var sb strings.Builder
	for _, tok := range markov.StripSentinels(tokens) {
		text := tok.String()
		if sb.Len() > 0 && !t.noSpaceRegex.MatchString(text) {
			sb.WriteString(t.separator)
		}
		sb.WriteString(text)
	}
	return sb.String()
}
