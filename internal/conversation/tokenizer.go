package conversation

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// FallbackEncoding is used when the model has no registered encoding.
const FallbackEncoding = "cl100k_base"

// Tokenizer counts tokens in a text.
type Tokenizer interface {
	CountTokens(text string) int
}

// EstimateTokenizer approximates four characters per token.
type EstimateTokenizer struct{}

func (EstimateTokenizer) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// TiktokenTokenizer counts tokens with a BPE encoding.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t *TiktokenTokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenizer loads the encoding for model, then the fallback encoding, and
// finally degrades to EstimateTokenizer so callers always get a usable value.
func NewTokenizer(model string, log *slog.Logger) Tokenizer {
	if log == nil {
		log = slog.Default()
	}
	if model != "" {
		if enc, err := tiktoken.EncodingForModel(model); err == nil {
			return &TiktokenTokenizer{enc: enc}
		}
	}
	enc, err := tiktoken.GetEncoding(FallbackEncoding)
	if err != nil {
		log.Warn("tiktoken encoding unavailable, estimating tokens",
			slog.String("model", model), slog.Any("error", err))
		return EstimateTokenizer{}
	}
	return &TiktokenTokenizer{enc: enc}
}
