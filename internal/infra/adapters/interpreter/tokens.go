package interpreter

import (
	"github.com/pkoukk/tiktoken-go"
)

// estimateTokens is the fallback when a provider response carries no
// usage block. Unknown models fall back to cl100k_base; if even that
// fails, a rough chars/4 guess keeps the record populated.
func estimateTokens(model, text string) int {
	if text == "" {
		return 0
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
