package rules_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavernvoice/tts-adapter/internal/rules"
)

func ruleSet(opts rules.Options, rs ...rules.Rule) *rules.RuleSet {
	return &rules.RuleSet{Name: "test", Enabled: true, Options: opts, Rules: rs}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestApply_SimpleRemoval(t *testing.T) {
	rs := ruleSet(rules.Options{}, rules.Rule{Pattern: "foo", Replacement: ""})
	assert.Equal(t, "bar", rules.Apply("foobar", rs))
}

func TestApply_EmptyTextAndNilRuleSet(t *testing.T) {
	rs := ruleSet(rules.Options{}, rules.Rule{Pattern: "^", Replacement: "x"})
	assert.Equal(t, "", rules.Apply("", rs))
	assert.Equal(t, "abc", rules.Apply("abc", nil))
}

func TestApply_RulesRunInDeclarationOrder(t *testing.T) {
	rs := ruleSet(rules.Options{},
		rules.Rule{Pattern: "a", Replacement: "b"},
		rules.Rule{Pattern: "b", Replacement: "c"},
	)
	assert.Equal(t, "ccc", rules.Apply("abc", rs), "second rule sees the first rule's output")

	reversed := ruleSet(rules.Options{},
		rules.Rule{Pattern: "b", Replacement: "c"},
		rules.Rule{Pattern: "a", Replacement: "b"},
	)
	assert.Equal(t, "bcc", rules.Apply("abc", reversed))
}

func TestApply_GlobalSubstitution(t *testing.T) {
	rs := ruleSet(rules.Options{}, rules.Rule{Pattern: `\d`, Replacement: "#"})
	assert.Equal(t, "a#b#c#", rules.Apply("a1b2c3", rs))
}

// =============================================================================
// OPTIONS
// =============================================================================

func TestApply_MaxLengthTruncatesBeforeRules(t *testing.T) {
	// If rules ran first, "xxxxAB" would lose its x's and keep "AB".
	rs := ruleSet(rules.Options{MaxLength: 4}, rules.Rule{Pattern: "x", Replacement: ""})
	assert.Equal(t, "", rules.Apply("xxxxAB", rs))
}

func TestApply_MaxLengthProperty(t *testing.T) {
	inputs := []string{"", "a", "hello world", strings.Repeat("长", 50), "emoji 😀😀😀 tail"}
	for _, n := range []int{1, 3, 10, 100} {
		for _, in := range inputs {
			out := rules.Truncate(in, n)
			assert.LessOrEqual(t, utf8.RuneCountInString(out), n)
			assert.True(t, strings.HasPrefix(in, out), "truncation is a hard cut")
		}
	}
	assert.Equal(t, "abc", rules.Truncate("abc", 0), "zero disables truncation")
}

func TestApply_IgnoreCaseAppliesToEveryRule(t *testing.T) {
	rs := ruleSet(rules.Options{IgnoreCase: true},
		rules.Rule{Pattern: "hello", Replacement: "hi"},
		rules.Rule{Pattern: "WORLD", Replacement: "there"},
	)
	assert.Equal(t, "hi there", rules.Apply("HeLLo world", rs))

	caseSensitive := ruleSet(rules.Options{}, rules.Rule{Pattern: "hello", Replacement: "hi"})
	assert.Equal(t, "HELLO", rules.Apply("HELLO", caseSensitive))
}

func TestApply_Multiline(t *testing.T) {
	text := "a: one\nb: two"
	single := ruleSet(rules.Options{}, rules.Rule{Pattern: `^\w: `, Replacement: ""})
	assert.Equal(t, "one\nb: two", rules.Apply(text, single))

	multi := ruleSet(rules.Options{Multiline: true}, rules.Rule{Pattern: `^\w: `, Replacement: ""})
	assert.Equal(t, "one\ntwo", rules.Apply(text, multi))
}

// =============================================================================
// POST PROCESS
// =============================================================================

func TestApply_PostProcess(t *testing.T) {
	rs := &rules.RuleSet{
		Name: "pp",
		PostProcess: []rules.Step{
			{Action: rules.ActionReplace, Pattern: "[x]", Replacement: "y"},
			{Action: "shout"},
			{Action: rules.ActionStrip},
		},
	}
	assert.Equal(t, "y.y", rules.Apply("  [x].[x]\n", rs), "replace is literal, unknown actions are skipped")
}

func TestApply_PostProcessRunsAfterRules(t *testing.T) {
	rs := &rules.RuleSet{
		Rules:       []rules.Rule{{Pattern: "a", Replacement: " b "}},
		PostProcess: []rules.Step{{Action: rules.ActionStrip}},
	}
	assert.Equal(t, "b", rules.Apply("a", rs))
}

// =============================================================================
// PATTERN SYNTAX
// =============================================================================

func TestApply_LookaroundAndBackreference(t *testing.T) {
	rs := ruleSet(rules.Options{},
		rules.Rule{Pattern: `(?<=<say>)\s+`, Replacement: ""},
		rules.Rule{Pattern: `<(think)>[\s\S]*?</\1>`, Replacement: ""},
	)
	assert.Equal(t, "<say>hi</say>", rules.Apply("<think>plan\nmore</think><say>  hi</say>", rs))
}

func TestApply_PythonStyleGroupReferences(t *testing.T) {
	rs := ruleSet(rules.Options{},
		rules.Rule{Pattern: `<say>(.*?)</say>`, Replacement: `\1`},
		rules.Rule{Pattern: `\[(?<who>\w+)\]`, Replacement: `\g<who>:`},
	)
	assert.Equal(t, "alice: hi", rules.Apply("[alice] <say>hi</say>", rs))

	python := ruleSet(rules.Options{},
		rules.Rule{Pattern: `(?P<w>\w+)-(?P=w)`, Replacement: `\g<w>`},
		rules.Rule{Pattern: `<(?P<tag>gal_text)>(?P<body>.*?)</(?P=tag)>`, Replacement: `\g<body>`},
	)
	require.NoError(t, python.Validate())
	assert.Equal(t, "bye hi", rules.Apply("bye-bye <gal_text>hi</gal_text>", python))
}

func TestConvertPattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`(?P<name>\w+)`, `(?<name>\w+)`},
		{`(?P<a>x)(?P=a)`, `(?<a>x)\k<a>`},
		{`\(?P<a>x)`, `\(?P<a>x)`},
		{`[(?P<]x(?P<a>y)`, `[(?P<]x(?<a>y)`},
		{`[]?P<](?P<a>y)`, `[]?P<](?<a>y)`},
		{`(?<=a)(?P<b>c)`, `(?<=a)(?<b>c)`},
		{`(?P=unclosed`, `(?P=unclosed`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.ConvertPattern(tt.in))
		})
	}
}

func TestValidate_UnknownGroupReference(t *testing.T) {
	tests := []struct {
		name    string
		rule    rules.Rule
		wantErr bool
	}{
		{"numbered ok", rules.Rule{Pattern: `(a)(b)`, Replacement: `\2\1`}, false},
		{"whole match", rules.Rule{Pattern: `ab`, Replacement: `[\0]`}, false},
		{"named ok", rules.Rule{Pattern: `(?<x>a)`, Replacement: `\g<x>`}, false},
		{"go style ok", rules.Rule{Pattern: `(a)`, Replacement: `$1`}, false},
		{"go style missing number", rules.Rule{Pattern: `a`, Replacement: `$5 off $$`}, true},
		{"escaped dollar", rules.Rule{Pattern: `a`, Replacement: `cost: $`}, false},
		{"missing number", rules.Rule{Pattern: `(a)b`, Replacement: `\10`}, true},
		{"missing name", rules.Rule{Pattern: `(a)`, Replacement: `\g<nope>`}, true},
		{"missing go style", rules.Rule{Pattern: `a`, Replacement: `${2}`}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ruleSet(rules.Options{}, tt.rule).Validate()
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid group reference")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestApply_UnknownGroupReferenceSkipped(t *testing.T) {
	rs := ruleSet(rules.Options{},
		rules.Rule{Pattern: `(a)`, Replacement: `\10`},
		rules.Rule{Pattern: `b`, Replacement: `c`},
	)
	assert.Equal(t, "ac-ac", rules.Apply("ab-ab", rs))
}

func TestApply_InvalidPatternSkipped(t *testing.T) {
	rs := ruleSet(rules.Options{},
		rules.Rule{Pattern: "(unclosed", Replacement: ""},
		rules.Rule{Pattern: "b", Replacement: "c"},
	)
	assert.Equal(t, "acc", rules.Apply("abc", rs))
}

func TestConvertReplacement(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{`\1`, "${1}"},
		{`\12x`, "${12}x"},
		{`\g<name>`, "${name}"},
		{`a\\b`, `a\b`},
		{`line\nbreak`, "line\nbreak"},
		{`$1`, "$1"},
		{`${name}`, "${name}"},
		{`cost: $`, "cost: $$"},
		{`$$`, "$$"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.ConvertReplacement(tt.in))
		})
	}
}

func TestApply_LiteralDollarInReplacement(t *testing.T) {
	rs := ruleSet(rules.Options{}, rules.Rule{Pattern: "USD", Replacement: "$"})
	assert.Equal(t, "5$", rules.Apply("5USD", rs))
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestApply_IdempotentWhenNoRuleRematches(t *testing.T) {
	rs := ruleSet(rules.Options{},
		rules.Rule{Pattern: `<think>[\s\S]*?</think>`, Replacement: ""},
		rules.Rule{Pattern: `\*[^*]+\*`, Replacement: ""},
		rules.Rule{Pattern: `\s{2,}`, Replacement: " "},
	)
	rs.PostProcess = []rules.Step{{Action: rules.ActionStrip}}

	inputs := []string{
		"<think>hmm</think> hello *waves*  there",
		"plain",
		"",
		"*a* *b*   c",
	}
	for _, in := range inputs {
		once := rules.Apply(in, rs)
		assert.Equal(t, once, rules.Apply(once, rs), "input %q", in)
	}
}

func TestApply_Deterministic(t *testing.T) {
	rs := rules.Default()
	text := "<thinking>x</thinking>\"hello\" \\#aabbcc <say>world</say>"
	first := rules.Apply(text, rs)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, rules.Apply(text, rs))
	}
}

func TestDefault_IsValidAndCleans(t *testing.T) {
	rs := rules.Default()
	require.NoError(t, rs.Validate())
	assert.Equal(t, rules.DefaultName, rs.Name)

	out := rules.Apply("<think>inner plan</think>\n<say>你好！</say> #FF00ff", rs)
	assert.Equal(t, "你好！", out)
}
