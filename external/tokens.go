package external

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// tokenEncoding is a general-purpose BPE close enough to count tokens for
// any chat model the service may host.
const tokenEncoding = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoder() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(tokenEncoding)
	})
	return enc, encErr
}

// TruncateTokens cuts text to at most maxTokens tokens. maxTokens <= 0
// disables it. If the encoding is unavailable the cut falls back to
// maxTokens characters.
func TruncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}

	e, err := encoder()
	if err != nil {
		log.Warn().Err(err).Msg("token encoding unavailable, truncating by characters")
		runes := []rune(text)
		if len(runes) <= maxTokens {
			return text
		}
		return string(runes[:maxTokens])
	}

	tokens := e.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return e.Decode(tokens[:maxTokens])
}
