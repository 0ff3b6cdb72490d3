package translate

// languageNames maps backend language codes to names the model understands.
var languageNames = map[string]string{
	"zh":   "Chinese (Simplified)",
	"en":   "English",
	"ja":   "Japanese",
	"ko":   "Korean",
	"fr":   "French",
	"de":   "German",
	"es":   "Spanish",
	"auto": "the target language suitable for the context",
}

// LanguageName returns the prompt name for code and whether code is known.
func LanguageName(code string) (string, bool) {
	name, ok := languageNames[code]
	return name, ok
}

const extractionPrompt = `### DATA PRE-PROCESSING RULES
The input text is a RAW LOG containing mixed content (Dialogue, Character Names, System Tags) enclosed in quotation marks.
Before executing the main task, you must **EXTRACT** only the valid dialogue based on these filters:

[VALID / KEEP]
- Spoken sentences by characters (e.g., "Hello!", "Why are you here?").
- Emotional exclamations or reactions (e.g., "Huh?", "Ah!").

[INVALID / DISCARD]
- Character names appearing as labels (e.g., "Tohka", "Kotori").
- Status effects, System logs, or UI terms (e.g., "Loading", "Data", "Happy Daily").
- Internal thoughts or abstract nouns without sentence structure.

**INSTRUCTION:** Apply the requested task ONLY to the [VALID] extracted dialogue parts.
Your output must serve the main task: translate the pre-processed text.
For example, if the input language is Chinese and the target language is Japanese,
Input: “幸福日常”. “士道！士道！看这边嘛！”. “嗯”. “数据”. “麻烦”. “啊——张嘴，这个是特意为你留的最好吃的一块哦！”
Output: "士道！士道！こっちを見て！" "あー、口を開けて、これは特別にあなたのために取っておいた一番おいしい一切れだよ！"
`

func systemPrompt(langName string, extended bool) string {
	prefix := ""
	if extended {
		prefix = extractionPrompt
	}
	return prefix + "\n### MAIN TASK\n" +
		"You are a professional translator. Translate the valid input text into [" + langName + "].\n" +
		"Output ONLY the final translated text. Do not output original text, notes, or explanations. " +
		"Before you output, make sure you have translated all the valid parts. The final output must not contain the original text."
}
