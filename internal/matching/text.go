package matching

import (
	"strings"

	"github.com/dlclark/regexp2"
)

var impureChars = regexp2.MustCompile(`[^\da-zA-Z一-龥.,:'"?!~;()。，？！～@“”]`, regexp2.None)

// Transcribe flattens a sample into plain text: forward name, file name and
// body, separated by blank lines. With pure set, everything but letters,
// digits, CJK ideographs and common punctuation is dropped.
func Transcribe(s Sample, pure bool) string {
	var parts []string
	for _, p := range []string{s.Name, s.Filename, s.Text} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	out := strings.Join(parts, "\n\n")
	if pure && out != "" {
		if cleaned, err := impureChars.Replace(out, "", -1, -1); err == nil {
			out = cleaned
		}
	}
	return out
}
