package templating

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"text/template"
)

func (tm *TemplateManager) makeFuncMap() template.FuncMap {
	return template.FuncMap{
		// Chain text
		"sentence":   tm.sentence,
		"reply":      tm.reply,
		"replies":    tm.replies,
		"paragraphs": tm.paragraphs,

		// Logic & control
		"repeat":       repeat,
		"list":         list,
		"randomChoice": randomChoice,
		"randomInt":    randomInt,
		"add":          func(a, b int) int { return a + b },
		"sub":          func(a, b int) int { return a - b },
		"inc":          func(i int) int { return i + 1 },
	}
}

// reply generates one reply from chain name, starting from a state that
// matches text when one exists.
func (tm *TemplateManager) reply(name string, text ...string) (string, error) {
	c, err := tm.chain(name)
	if err != nil {
		return "", err
	}
	res := c.Run(tm.tokenizer.Tokens(strings.Join(text, " ")))
	return tm.tokenizer.Join(res.All()), nil
}

// sentence generates a reply from the beginning of a run.
func (tm *TemplateManager) sentence(name string) (string, error) {
	return tm.reply(name)
}

// replies generates count replies, capped by MaxReplies.
func (tm *TemplateManager) replies(name string, count int, text ...string) ([]string, error) {
	count = min(max(count, 0), tm.config.MaxReplies)
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		r, err := tm.reply(name, text...)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// paragraphs generates count paragraphs of minSentences to maxSentences
// sentences each, separated by blank lines.
func (tm *TemplateManager) paragraphs(name string, count, minSentences, maxSentences int) (string, error) {
	limit := tm.config.MaxParagraphs
	count = min(max(count, 0), limit)
	minSentences = min(max(minSentences, 1), limit)
	maxSentences = min(max(maxSentences, minSentences), limit)
	if count == 0 {
		return "", nil
	}

	var builder strings.Builder
	for i := 0; i < count; i++ {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		n := randomInt(minSentences, maxSentences+1)
		for j := 0; j < n; j++ {
			s, err := tm.sentence(name)
			if err != nil {
				return "", fmt.Errorf("paragraph %d: %w", i, err)
			}
			if j > 0 {
				builder.WriteByte(' ')
			}
			builder.WriteString(s)
		}
	}
	return builder.String(), nil
}

// repeat returns a slice of integers from 0 to count-1.
func repeat(count int) []int {
	s := make([]int, max(count, 0))
	for i := range s {
		s[i] = i
	}
	return s
}

// list returns a slice containing all the arguments passed to it.
func list(args ...any) []any {
	return args
}

// randomChoice returns a random element of a slice, or nil for anything
// that is not a non-empty slice.
func randomChoice(slice any) any {
	val := reflect.ValueOf(slice)
	if val.Kind() != reflect.Slice || val.Len() == 0 {
		return nil
	}
	return val.Index(rand.IntN(val.Len())).Interface()
}

// randomInt returns a random integer within the range [lo, hi).
func randomInt(lo, hi int) int {
	if lo >= hi {
		return lo
	}
	return rand.IntN(hi-lo) + lo
}
