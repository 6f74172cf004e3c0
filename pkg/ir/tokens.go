package ir

// Token estimation uses the rough heuristic of 4 characters per token. The
// fabric budgets with estimates only; precise tokenization belongs to the
// providers.

// messageOverheadTokens approximates the per-message framing cost.
const messageOverheadTokens = 4

// EstimateTokens estimates the token count of a string.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

// EstimateMessageTokens estimates the token count of a message, covering
// text content, tool invocations, and tool results.
func EstimateMessageTokens(m Message) int {
	total := messageOverheadTokens
	if len(m.Blocks) == 0 {
		return total + EstimateTokens(m.Text)
	}
	for _, blk := range m.Blocks {
		switch blk.Type {
		case BlockTypeText:
			total += EstimateTokens(blk.Text)
		case BlockTypeToolUse:
			total += EstimateTokens(blk.Name)
			for k, v := range blk.Input {
				total += EstimateTokens(k)
				if s, ok := v.(string); ok {
					total += EstimateTokens(s)
				} else {
					total += 1
				}
			}
		case BlockTypeToolResult:
			total += EstimateTokens(blk.Content)
		case BlockTypeImage:
			// Images are billed by dimensions, not characters. Use a flat
			// approximation so budgets stay conservative.
			total += 512
		}
	}
	return total
}

// EstimateRequestTokens estimates the prompt token count of a request,
// covering messages and tool definitions.
func EstimateRequestTokens(r *ChatRequest) int {
	if r == nil {
		return 0
	}
	total := 0
	for _, m := range r.Messages {
		total += EstimateMessageTokens(m)
	}
	for _, t := range r.Tools {
		total += EstimateTokens(t.Name) + EstimateTokens(t.Description)
	}
	return total
}
