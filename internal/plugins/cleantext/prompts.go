package cleantext

import "fmt"

const generatorSystemPrompt = "You generate YAML cleaning configs for SillyTavern cards. " +
	"Your core task is to clean the data sent by users, keeping only clean conversation information " +
	"and removing XML, JSON and other control information. " +
	"If there are thinking chains, inner activities, or nouns with quotes, remove them directly. " +
	"For example, <think>some text</think> or <thinking>some thought</thinking> must be removed entirely. " +
	"Sometimes the content inside <say></say> or other tags such as <gal_text> is valid dialogue; " +
	"distinguish it and keep it. " +
	"Patterns are regular expressions; lookaround and backreferences are supported. " +
	"Return only YAML without code fences. Keys: name, description, version, enabled, options, rules, post_process. " +
	"Use concise Chinese descriptions."

func generatorUserPrompt(key, example, sample string) string {
	return fmt.Sprintf("Create a cleaning config named '%s'. Follow this structure example:\n%s\n"+
		"Here is a sample of user input text that needs to be cleaned:\n%s\n"+
		"Analyze the text and create appropriate cleaning rules. The text left after cleaning should only contain valid conversation content. "+
		"Use replace rules with regex patterns to remove unwanted parts and keep the valid parts.",
		key, example, sample)
}
