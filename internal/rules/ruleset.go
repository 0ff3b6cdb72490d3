// Package rules defines the per-card text cleaning RuleSet, its YAML file
// format, the engine that applies it, and the directory store that holds one
// file per card.
//
// DESIGN: A RuleSet is data only. Apply is deterministic: truncate, then
// every pattern rule in declared order, then every post-process step in
// declared order. There is no priority beyond order.
//
// FILE FORMAT (one <card>.yaml per card):
//
//	name: default
//	description: ...
//	version: "1.0"
//	enabled: true
//	options: {ignore_case: false, multiline: false, max_length: 0}
//	rules:
//	  - {pattern: "<think>[\\s\\S]*?</think>", replacement: ""}
//	post_process:
//	  - {action: strip}
package rules

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultName is the card key of the canonical fallback RuleSet.
const DefaultName = "default"

// Post-process actions.
const (
	ActionReplace = "replace"
	ActionStrip   = "strip"
)

// RuleSet is one card's cleaning configuration.
type RuleSet struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Version     string  `yaml:"version"`
	Enabled     bool    `yaml:"enabled"`
	Options     Options `yaml:"options"`
	Rules       []Rule  `yaml:"rules"`
	PostProcess []Step  `yaml:"post_process"`
}

// Options apply to the whole RuleSet.
type Options struct {
	IgnoreCase bool `yaml:"ignore_case"` // Case-insensitive matching for every rule
	Multiline  bool `yaml:"multiline"`   // ^ and $ match at line boundaries for every rule
	MaxLength  int  `yaml:"max_length"`  // Hard cut before rules run; 0 disables
}

// Rule is one global pattern substitution.
type Rule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Step is one post-process action. Pattern and Replacement are only used by replace.
type Step struct {
	Action      string `yaml:"action"`
	Pattern     string `yaml:"pattern,omitempty"`
	Replacement string `yaml:"replacement,omitempty"`
}

// Parse decodes a RuleSet from YAML. Generated configs sometimes arrive
// wrapped in a markdown code fence; the fence is dropped.
func Parse(data []byte) (*RuleSet, error) {
	content := stripCodeFence(string(data))
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty rule set")
	}

	var rs RuleSet
	if err := yaml.Unmarshal([]byte(content), &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	// "rules: []" and a missing key mean the same thing.
	if len(rs.Rules) == 0 {
		rs.Rules = nil
	}
	if len(rs.PostProcess) == 0 {
		rs.PostProcess = nil
	}
	return &rs, nil
}

// MarshalYAML writes pattern and replacement double-quoted. Block scalars
// would lose a replacement made only of line breaks.
func (r Rule) MarshalYAML() (any, error) {
	return mappingNode(
		"pattern", quotedNode(r.Pattern),
		"replacement", quotedNode(r.Replacement),
	), nil
}

// MarshalYAML writes the step with its pattern and replacement
// double-quoted; both are omitted when empty.
func (s Step) MarshalYAML() (any, error) {
	pairs := []any{"action", plainNode(s.Action)}
	if s.Pattern != "" {
		pairs = append(pairs, "pattern", quotedNode(s.Pattern))
	}
	if s.Replacement != "" {
		pairs = append(pairs, "replacement", quotedNode(s.Replacement))
	}
	return mappingNode(pairs...), nil
}

func plainNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func quotedNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: yaml.DoubleQuotedStyle}
}

// mappingNode builds a mapping from alternating key strings and value nodes.
func mappingNode(pairs ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(pairs); i += 2 {
		n.Content = append(n.Content, plainNode(pairs[i].(string)), pairs[i+1].(*yaml.Node))
	}
	return n
}

// Marshal encodes a RuleSet in the canonical on-disk format.
func Marshal(rs *RuleSet) ([]byte, error) {
	out, err := yaml.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule set: %w", err)
	}
	return out, nil
}

// Validate checks that every rule compiles and every step is well formed.
func (rs *RuleSet) Validate() error {
	if rs.Options.MaxLength < 0 {
		return fmt.Errorf("options.max_length must not be negative")
	}
	if _, err := Compile(rs); err != nil {
		return err
	}
	for i, step := range rs.PostProcess {
		if step.Action == "" {
			return fmt.Errorf("post_process[%d]: action is required", i)
		}
	}
	return nil
}

// Default returns the built-in fallback RuleSet, used when no default.yaml
// exists on disk yet.
func Default() *RuleSet {
	return &RuleSet{
		Name:        DefaultName,
		Description: "通用清理规则：移除思维链、XML/JSON 控制信息与颜色代码，仅保留对话内容",
		Version:     "1.0",
		Enabled:     true,
		Options: Options{
			IgnoreCase: true,
			Multiline:  false,
			MaxLength:  0,
		},
		Rules: []Rule{
			{Pattern: `<(think|thinking)>[\s\S]*?</\1>`, Replacement: ""},
			{Pattern: `<(status|state|memory|system)[^>]*>[\s\S]*?</\1>`, Replacement: ""},
			{Pattern: "```[\\s\\S]*?```", Replacement: ""},
			{Pattern: `\\?#[0-9a-f]{6}`, Replacement: ""},
			{Pattern: `</?[a-z_][a-z0-9_-]*[^>]*>`, Replacement: ""},
			{Pattern: `\n{2,}`, Replacement: "\n"},
		},
		PostProcess: []Step{
			{Action: ActionReplace, Pattern: `""`, Replacement: ""},
			{Action: ActionStrip},
		},
	}
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	// Drop the opening fence line (``` or ```yaml) and a closing fence.
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return ""
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return trimmed
}
