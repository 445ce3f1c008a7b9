package matching

import (
	"encoding/json"
	"strconv"

	"github.com/dlclark/regexp2"

	dErrors "wordhub/pkg/domain-errors"
)

// DebugMode selects what Debug reports about a pattern's matches.
type DebugMode string

const (
	ModeFindAll   DebugMode = "findall"
	ModeGroup     DebugMode = "group"
	ModeGroupDict DebugMode = "groupdict"
	ModeGroups    DebugMode = "groups"
)

// ParseDebugMode validates a debug keyword.
func ParseDebugMode(s string) (DebugMode, error) {
	switch m := DebugMode(s); m {
	case ModeFindAll, ModeGroup, ModeGroupDict, ModeGroups:
		return m, nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "unknown match mode")
}

// Debug runs pattern against text and renders the result as JSON:
//
//	findall   every match; the capture groups of each match when the pattern has any
//	group     the first match
//	groups    the capture groups of the first match
//	groupdict the named capture groups of the first match
//
// No match renders as null. Unset groups render as null.
func (c *Compiler) Debug(mode DebugMode, pattern, text string) (string, error) {
	re, err := c.Compile(pattern)
	if err != nil {
		return "", err
	}

	var out any
	switch mode {
	case ModeFindAll:
		out, err = findAll(re, text)
	case ModeGroup, ModeGroups, ModeGroupDict:
		var m *regexp2.Match
		m, err = re.FindStringMatch(text)
		if err == nil && m != nil {
			switch mode {
			case ModeGroup:
				out = m.String()
			case ModeGroups:
				out = groups(m)
			default:
				out = groupDict(re, m)
			}
		}
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown match mode")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "match failed")
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to render match")
	}
	return string(b), nil
}

// Escape quotes every metacharacter in s.
func Escape(s string) string {
	return regexp2.Escape(s)
}

func findAll(re *regexp2.Regexp, text string) ([]any, error) {
	out := []any{}
	m, err := re.FindStringMatch(text)
	for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
		switch g := groups(m); len(g) {
		case 0:
			out = append(out, m.String())
		case 1:
			out = append(out, g[0])
		default:
			out = append(out, g)
		}
	}
	return out, err
}

func groups(m *regexp2.Match) []*string {
	all := m.Groups()
	out := make([]*string, 0, len(all)-1)
	for _, g := range all[1:] {
		out = append(out, captured(g))
	}
	return out
}

func groupDict(re *regexp2.Regexp, m *regexp2.Match) map[string]*string {
	out := map[string]*string{}
	for _, name := range re.GetGroupNames() {
		if _, err := strconv.Atoi(name); err == nil {
			continue
		}
		if g := m.GroupByName(name); g != nil {
			out[name] = captured(*g)
		}
	}
	return out
}

func captured(g regexp2.Group) *string {
	if len(g.Captures) == 0 {
		return nil
	}
	s := g.String()
	return &s
}
