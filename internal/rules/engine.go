package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog/log"
)

// MatchTimeout bounds a single pattern substitution so a pathological
// operator- or model-written pattern cannot stall a request.
const MatchTimeout = 2 * time.Second

// Compiled is a RuleSet with its patterns compiled.
type Compiled struct {
	set      *RuleSet
	patterns []*regexp2.Regexp
	replaces []string
}

// Compile compiles every rule pattern with the RuleSet's option flags.
// Patterns use a backtracking engine, so lookaround and backreferences work.
func Compile(rs *RuleSet) (*Compiled, error) {
	opts := regexp2.None
	if rs.Options.IgnoreCase {
		opts |= regexp2.IgnoreCase
	}
	if rs.Options.Multiline {
		opts |= regexp2.Multiline
	}

	c := &Compiled{
		set:      rs,
		patterns: make([]*regexp2.Regexp, len(rs.Rules)),
		replaces: make([]string, len(rs.Rules)),
	}
	for i, rule := range rs.Rules {
		re, err := regexp2.Compile(ConvertPattern(rule.Pattern), opts)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: invalid pattern %q: %w", i, rule.Pattern, err)
		}
		re.MatchTimeout = MatchTimeout
		repl := ConvertReplacement(rule.Replacement)
		if err := checkGroupRefs(re, repl); err != nil {
			return nil, fmt.Errorf("rules[%d]: replacement %q: %w", i, rule.Replacement, err)
		}
		c.patterns[i] = re
		c.replaces[i] = repl
	}
	return c, nil
}

// Apply cleans text with rs. Rules that fail to compile or time out are
// skipped and logged; Apply itself never fails.
func Apply(text string, rs *RuleSet) string {
	if text == "" || rs == nil {
		return text
	}

	c, err := Compile(rs)
	if err != nil {
		log.Warn().Err(err).Str("rule_set", rs.Name).Msg("rule set has invalid patterns, skipping them")
		c = compileLenient(rs)
	}
	return c.Apply(text)
}

// Apply runs truncation, pattern rules, then post-process steps.
func (c *Compiled) Apply(text string) string {
	if text == "" {
		return text
	}

	text = Truncate(text, c.set.Options.MaxLength)

	for i, re := range c.patterns {
		if re == nil {
			continue
		}
		out, err := re.Replace(text, c.replaces[i], -1, -1)
		if err != nil {
			log.Warn().Err(err).Str("rule_set", c.set.Name).Int("rule", i).Msg("rule failed, skipping")
			continue
		}
		text = out
	}

	for _, step := range c.set.PostProcess {
		switch step.Action {
		case ActionReplace:
			text = strings.ReplaceAll(text, step.Pattern, step.Replacement)
		case ActionStrip:
			text = strings.TrimFunc(text, unicode.IsSpace)
		}
	}
	return text
}

// Truncate cuts text to at most maxLength characters. maxLength <= 0 disables it.
func Truncate(text string, maxLength int) string {
	if maxLength <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength])
}

// compileLenient compiles what it can, leaving nil for broken patterns.
func compileLenient(rs *RuleSet) *Compiled {
	c := &Compiled{
		set:      rs,
		patterns: make([]*regexp2.Regexp, len(rs.Rules)),
		replaces: make([]string, len(rs.Rules)),
	}
	for i, rule := range rs.Rules {
		single := &RuleSet{Name: rs.Name, Options: rs.Options, Rules: []Rule{rule}}
		one, err := Compile(single)
		if err != nil {
			continue
		}
		c.patterns[i] = one.patterns[0]
		c.replaces[i] = one.replaces[0]
	}
	return c
}

// ConvertPattern rewrites Python-only group syntax into the engine's:
// (?P<name>...) → (?<name>...) and (?P=name) → \k<name>. Escaped
// parentheses and character classes are left alone.
func ConvertPattern(pattern string) string {
	if !strings.Contains(pattern, "(?P") {
		return pattern
	}

	var b strings.Builder
	r := []rune(pattern)
	inClass := false
	for i := 0; i < len(r); i++ {
		c := r[i]
		switch {
		case c == '\\' && i+1 < len(r):
			b.WriteRune(c)
			b.WriteRune(r[i+1])
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
			b.WriteRune(c)
		case c == '[':
			inClass = true
			b.WriteRune(c)
			// A leading ] (or ^]) is a literal member of the class.
			if i+1 < len(r) && r[i+1] == '^' {
				b.WriteRune('^')
				i++
			}
			if i+1 < len(r) && r[i+1] == ']' {
				b.WriteRune(']')
				i++
			}
		case c == '(' && hasPrefixAt(r, i+1, "?P<"):
			b.WriteString("(?<")
			i += 3
		case c == '(' && hasPrefixAt(r, i+1, "?P="):
			end := indexRune(r, ')', i+4)
			if end < 0 {
				b.WriteRune(c)
				continue
			}
			b.WriteString(`\k<` + string(r[i+4:end]) + ">")
			i = end
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func hasPrefixAt(r []rune, at int, prefix string) bool {
	p := []rune(prefix)
	if at+len(p) > len(r) {
		return false
	}
	for j, pc := range p {
		if r[at+j] != pc {
			return false
		}
	}
	return true
}

// checkGroupRefs rejects a converted replacement that refers to a group the
// pattern does not define. The engine would otherwise emit the reference as
// literal text.
func checkGroupRefs(re *regexp2.Regexp, repl string) error {
	if !strings.Contains(repl, "$") {
		return nil
	}
	groups := make(map[string]bool)
	for _, name := range re.GetGroupNames() {
		groups[name] = true
	}

	r := []rune(repl)
	for i := 0; i < len(r); i++ {
		if r[i] != '$' || i+1 >= len(r) {
			continue
		}
		var ref string
		switch next := r[i+1]; {
		case next == '$':
			i++
			continue
		case next == '{':
			end := indexRune(r, '}', i+2)
			if end < 0 {
				continue
			}
			ref = string(r[i+2 : end])
			i = end
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(r) && r[j] >= '0' && r[j] <= '9' {
				j++
			}
			ref = string(r[i+1 : j])
			i = j - 1
		default:
			continue
		}
		if n, err := strconv.Atoi(ref); err == nil {
			ref = strconv.Itoa(n)
		}
		if !groups[ref] {
			return fmt.Errorf("invalid group reference %q", ref)
		}
	}
	return nil
}

// ConvertReplacement rewrites Python-style group references into the
// engine's syntax: \1 → ${1}, \g<name> → ${name}, \\ → \, \n and \t
// become newline and tab. A bare $ not followed by a digit or { is literal.
// Go-style $1 and ${name} are accepted as-is.
func ConvertReplacement(repl string) string {
	if !strings.ContainsAny(repl, `\$`) {
		return repl
	}

	var b strings.Builder
	r := []rune(repl)
	for i := 0; i < len(r); i++ {
		c := r[i]
		switch {
		case c == '\\' && i+1 < len(r):
			next := r[i+1]
			switch {
			case next >= '0' && next <= '9':
				j := i + 1
				for j < len(r) && r[j] >= '0' && r[j] <= '9' && j-i <= 2 {
					j++
				}
				b.WriteString("${" + string(r[i+1:j]) + "}")
				i = j - 1
			case next == 'g' && i+2 < len(r) && r[i+2] == '<':
				end := indexRune(r, '>', i+3)
				if end < 0 {
					b.WriteRune(c)
					continue
				}
				b.WriteString("${" + string(r[i+3:end]) + "}")
				i = end
			case next == '\\':
				b.WriteRune('\\')
				i++
			case next == 'n':
				b.WriteRune('\n')
				i++
			case next == 't':
				b.WriteRune('\t')
				i++
			default:
				b.WriteRune(c)
			}
		case c == '$':
			if i+1 < len(r) && (r[i+1] == '{' || (r[i+1] >= '0' && r[i+1] <= '9') || r[i+1] == '$') {
				b.WriteRune(c)
				if r[i+1] == '$' {
					b.WriteRune('$')
					i++
				}
				continue
			}
			b.WriteString("$$")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func indexRune(r []rune, target rune, from int) int {
	for i := from; i < len(r); i++ {
		if r[i] == target {
			return i
		}
	}
	return -1
}
