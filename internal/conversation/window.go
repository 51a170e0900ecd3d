package conversation

// Trim returns the longest suffix of history whose summed token count fits
// within budget. The newest message is always kept, even when it alone exceeds
// the budget. The result is a fresh slice in chronological order.
func Trim(history []Message, budget int, tok Tokenizer) []Message {
	if len(history) == 0 {
		return []Message{}
	}
	if tok == nil {
		tok = EstimateTokenizer{}
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		total += tok.CountTokens(history[i].Content)
		if total > budget {
			break
		}
		start = i
	}
	if start == len(history) {
		start = len(history) - 1
	}

	out := make([]Message, len(history)-start)
	copy(out, history[start:])
	return out
}

// TotalTokens sums the token counts of every message content.
func TotalTokens(history []Message, tok Tokenizer) int {
	if tok == nil {
		tok = EstimateTokenizer{}
	}
	total := 0
	for _, m := range history {
		total += tok.CountTokens(m.Content)
	}
	return total
}
