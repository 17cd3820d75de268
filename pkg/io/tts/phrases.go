package tts

import "strings"

const (
	defaultMaxChars = 240
	defaultMinChars = 40
	flushPunct      = ".!?;:"
)

// SplitPhrases cuts text into chunks a synthesizer handles well: a chunk ends
// at sentence punctuation once it holds at least minChars, or as soon as it
// reaches maxChars. Words are never split.
func SplitPhrases(text string, minChars, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if minChars <= 0 || minChars > maxChars {
		minChars = min(defaultMinChars, maxChars)
	}

	var out []string
	var buf strings.Builder
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, s)
		}
		buf.Reset()
	}

	for _, word := range strings.Fields(text) {
		if buf.Len() > 0 && buf.Len()+1+len(word) > maxChars {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(word)
		if endsWithAny(word, flushPunct) && buf.Len() >= minChars {
			flush()
		}
	}
	flush()
	return out
}

func endsWithAny(s, set string) bool {
	if s == "" {
		return false
	}
	return strings.ContainsRune(set, rune(s[len(s)-1]))
}
