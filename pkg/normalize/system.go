package normalize

import (
	"fmt"
	"strings"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/warnings"
)

const (
	systemSource = "normalize.system"

	// systemSeparator joins multiple system texts when they collapse into
	// one, and separates prepended system text from the user's own.
	systemSeparator = "\n\n"
)

// SystemMessages projects system messages onto the backend's declared
// strategy. It returns the rewritten message list, the side channel system
// parameter for backends that take system content outside the message list,
// and a warning for every transformation. The input slice is never mutated.
func SystemMessages(msgs []ir.Message, caps adapter.Capabilities) ([]ir.Message, string, []warnings.Warning) {
	systemTexts, firstIdx := collectSystem(msgs)
	if len(systemTexts) == 0 {
		return msgs, "", nil
	}

	switch caps.SystemMessageStrategy {
	case adapter.SystemSeparateParameter:
		return extractToParameter(msgs, systemTexts, caps.SupportsMultipleSystemMessages)

	case adapter.SystemInMessages, "":
		if caps.SupportsMultipleSystemMessages || len(systemTexts) == 1 {
			return msgs, "", nil
		}
		return collapseInPlace(msgs, systemTexts, firstIdx)

	case adapter.SystemPrependUser:
		return prependToUser(msgs, systemTexts)

	case adapter.SystemNotSupported:
		out := withoutSystem(msgs)
		return out, "", []warnings.Warning{transformedWarning(
			fmt.Sprintf("%d system message(s) dropped, backend has no system instruction support", len(systemTexts)),
			len(systemTexts), 0)}

	default:
		// Unknown strategies behave like in-messages so nothing is lost.
		return msgs, "", nil
	}
}

// collectSystem gathers the text of every system message and the index of
// the first one. Empty system messages are skipped.
func collectSystem(msgs []ir.Message) ([]string, int) {
	var texts []string
	firstIdx := -1
	for i, m := range msgs {
		if m.Role != ir.RoleSystem {
			continue
		}
		if firstIdx < 0 {
			firstIdx = i
		}
		if text := m.ContentText(); text != "" {
			texts = append(texts, text)
		}
	}
	return texts, firstIdx
}

func extractToParameter(msgs []ir.Message, systemTexts []string, multiple bool) ([]ir.Message, string, []warnings.Warning) {
	var param string
	var ws []warnings.Warning

	if multiple || len(systemTexts) == 1 {
		param = strings.Join(systemTexts, systemSeparator)
	} else {
		param = systemTexts[0]
		ws = append(ws, transformedWarning(
			fmt.Sprintf("backend accepts a single system parameter, %d additional system message(s) dropped", len(systemTexts)-1),
			len(systemTexts), 0))
	}

	ws = append(ws, transformedWarning(
		fmt.Sprintf("%d system message(s) moved to the system parameter", len(systemTexts)),
		len(systemTexts), 0))
	return withoutSystem(msgs), param, ws
}

func collapseInPlace(msgs []ir.Message, systemTexts []string, firstIdx int) ([]ir.Message, string, []warnings.Warning) {
	out := make([]ir.Message, 0, len(msgs))
	for i, m := range msgs {
		switch {
		case i == firstIdx:
			out = append(out, ir.TextMessage(ir.RoleSystem, strings.Join(systemTexts, systemSeparator)))
		case m.Role == ir.RoleSystem:
			// Dropped, its text lives in the collapsed message.
		default:
			out = append(out, m)
		}
	}
	return out, "", []warnings.Warning{transformedWarning(
		fmt.Sprintf("%d system messages collapsed into one", len(systemTexts)),
		len(systemTexts), 1)}
}

func prependToUser(msgs []ir.Message, systemTexts []string) ([]ir.Message, string, []warnings.Warning) {
	userIdx := -1
	for i, m := range msgs {
		if m.Role == ir.RoleUser {
			userIdx = i
			break
		}
	}
	if userIdx < 0 {
		return msgs, "", nil
	}

	systemText := strings.Join(systemTexts, systemSeparator)
	out := make([]ir.Message, 0, len(msgs))
	for i, m := range msgs {
		switch {
		case m.Role == ir.RoleSystem:
			// Dropped, its text moves into the first user message.
		case i == userIdx:
			out = append(out, prependText(m, systemText))
		default:
			out = append(out, m)
		}
	}
	return out, "", []warnings.Warning{transformedWarning(
		fmt.Sprintf("%d system message(s) prepended to the first user message", len(systemTexts)),
		len(systemTexts), 0)}
}

// prependText returns a copy of msg with text placed before its content,
// separated by the system separator.
func prependText(msg ir.Message, text string) ir.Message {
	out := msg.Clone()
	if len(out.Blocks) > 0 {
		blocks := make([]ir.ContentBlock, 0, len(out.Blocks)+1)
		blocks = append(blocks, ir.TextBlock(text+systemSeparator))
		blocks = append(blocks, out.Blocks...)
		out.Blocks = blocks
		return out
	}
	out.Text = text + systemSeparator + out.Text
	return out
}

func withoutSystem(msgs []ir.Message) []ir.Message {
	out := make([]ir.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != ir.RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

func transformedWarning(message string, original, transformed int) warnings.Warning {
	return warnings.Warning{
		Category: warnings.CategorySystemMessageTransformed,
		Severity: warnings.SeverityWarning,
		Field:    "messages",
		Message:  message,
		Source:   systemSource,
		Details: map[string]any{
			"originalCount":    original,
			"transformedCount": transformed,
		},
	}
}
