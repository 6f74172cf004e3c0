package middleware

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/warnings"
)

// PIIAction selects what the validation middleware does with detected PII.
type PIIAction string

const (
	// PIIBlock rejects the request with a validation error.
	PIIBlock PIIAction = "block"

	// PIIRedact replaces each match with a redaction token and lets the
	// request proceed.
	PIIRedact PIIAction = "redact"
)

// ValidationConfig controls the validation middleware. The zero value
// checks nothing; use a preset or enable toggles explicitly.
type ValidationConfig struct {
	// DetectPII scans message content for emails, phone numbers, SSNs, and
	// credit card numbers.
	DetectPII bool

	// PIIAction selects block or redact. Default: block.
	PIIAction PIIAction

	// DetectInjection scans user messages for prompt injection patterns.
	// Findings always reject the request regardless of ThrowOnError.
	DetectInjection bool

	// Sanitize strips NUL bytes and normalizes CRLF line endings to LF in
	// message content.
	Sanitize bool

	// MaxMessages bounds the conversation length. 0 means unlimited.
	MaxMessages int

	// MaxTotalTokens bounds the estimated request size. 0 means unlimited.
	MaxTotalTokens int

	// ValidateParams checks parameter bounds.
	ValidateParams bool

	// ThrowOnError rejects the request on violations. When false,
	// violations become warnings on the request metadata and the call
	// proceeds, except for injection findings which always reject.
	ThrowOnError bool
}

// ProductionPreset enables every check with PII redaction, suitable for
// traffic that must keep flowing with drift recorded.
func ProductionPreset() ValidationConfig {
	return ValidationConfig{
		DetectPII:       true,
		PIIAction:       PIIRedact,
		DetectInjection: true,
		Sanitize:        true,
		ValidateParams:  true,
		ThrowOnError:    true,
	}
}

// DevelopmentPreset sanitizes and surfaces findings as warnings without
// rejecting anything except injection.
func DevelopmentPreset() ValidationConfig {
	return ValidationConfig{
		DetectInjection: true,
		Sanitize:        true,
		ValidateParams:  true,
		ThrowOnError:    false,
	}
}

// Warning categories for validation findings, beyond the translation drift
// set.
const (
	categoryPII              warnings.Category = "pii-detected"
	categoryMessageLimit     warnings.Category = "message-limit-exceeded"
	categoryParameterInvalid warnings.Category = "parameter-invalid"
)

const validationSource = "middleware.validation"

type piiPattern struct {
	kind  string
	re    *regexp.Regexp
	token string
}

// Ordered most specific first so redaction of card numbers and SSNs runs
// before the looser phone pattern can match inside them.
var piiPatterns = []piiPattern{
	{"email", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED_SSN]"},
	{"credit_card", regexp.MustCompile(`\b(?:\d{4}[- ]?){3}\d{4}\b`), "[REDACTED_CREDIT_CARD]"},
	{"phone", regexp.MustCompile(`(?:\+?\d{1,2}[-. ])?\(?\d{3}\)?[-. ]\d{3}[-. ]\d{4}\b`), "[REDACTED_PHONE]"},
}

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(the\s+)?above`),
	regexp.MustCompile(`(?i)(^|\n)\s*system\s*:`),
	regexp.MustCompile(`(?i)your\s+new\s+instructions\s+are`),
}

// NewValidation builds the validation middleware for the unary path.
func NewValidation(cfg ValidationConfig) UnaryFunc {
	return func(ctx context.Context, mctx *Context, next Next) (*ir.ChatResponse, error) {
		if err := validateRequest(mctx, cfg); err != nil {
			return nil, err
		}
		return next(ctx)
	}
}

// NewValidationStream builds the streaming twin: the same request checks
// run before the stream opens.
func NewValidationStream(cfg ValidationConfig) StreamFunc {
	return func(ctx context.Context, mctx *Context, next StreamNext) (<-chan *ir.StreamChunk, error) {
		if err := validateRequest(mctx, cfg); err != nil {
			return nil, err
		}
		return next(ctx)
	}
}

func validateRequest(mctx *Context, cfg ValidationConfig) error {
	req := mctx.Request
	if req == nil {
		return nil
	}
	var ws []warnings.Warning

	if cfg.Sanitize {
		sanitizeMessages(req.Messages)
	}

	if cfg.DetectInjection {
		if patterns := detectInjection(req.Messages); len(patterns) > 0 {
			err := adapter.New(adapter.ErrorCodeValidation, "potential prompt injection detected")
			err.Details = map[string]any{"patterns": patterns}
			return err
		}
	}

	if cfg.DetectPII {
		if kinds := detectPII(req.Messages); len(kinds) > 0 {
			if cfg.PIIAction == PIIRedact {
				redactMessages(req.Messages)
				ws = append(ws, piiWarning(kinds, "redacted"))
			} else if cfg.ThrowOnError {
				err := adapter.New(adapter.ErrorCodeValidation, fmt.Sprintf("PII detected in request content: %s", strings.Join(kinds, ", ")))
				err.Details = map[string]any{"kinds": kinds}
				return err
			} else {
				ws = append(ws, piiWarning(kinds, "detected"))
			}
		}
	}

	if cfg.MaxMessages > 0 && len(req.Messages) > cfg.MaxMessages {
		if cfg.ThrowOnError {
			return adapter.Newf(adapter.ErrorCodeValidation, "request has %d messages, limit is %d", len(req.Messages), cfg.MaxMessages)
		}
		ws = append(ws, warnings.Warning{
			Category:         categoryMessageLimit,
			Severity:         warnings.SeverityWarning,
			Field:            "messages",
			Message:          fmt.Sprintf("request has %d messages, limit is %d", len(req.Messages), cfg.MaxMessages),
			OriginalValue:    len(req.Messages),
			TransformedValue: cfg.MaxMessages,
			Source:           validationSource,
		})
	}

	if cfg.MaxTotalTokens > 0 {
		if total := ir.EstimateRequestTokens(req); total > cfg.MaxTotalTokens {
			if cfg.ThrowOnError {
				return adapter.Newf(adapter.ErrorCodeValidation, "estimated %d tokens, limit is %d", total, cfg.MaxTotalTokens)
			}
			ws = append(ws, warnings.Warning{
				Category:         warnings.CategoryTokenLimitExceeded,
				Severity:         warnings.SeverityWarning,
				Field:            "messages",
				Message:          fmt.Sprintf("estimated %d tokens, limit is %d", total, cfg.MaxTotalTokens),
				OriginalValue:    total,
				TransformedValue: cfg.MaxTotalTokens,
				Source:           validationSource,
			})
		}
	}

	if cfg.ValidateParams && req.Parameters != nil {
		if err := req.Parameters.Validate(); err != nil {
			if cfg.ThrowOnError {
				return adapter.Wrap(adapter.ErrorCodeValidation, "invalid parameters", err)
			}
			ws = append(ws, warnings.Warning{
				Category: categoryParameterInvalid,
				Severity: warnings.SeverityError,
				Field:    "parameters",
				Message:  err.Error(),
				Source:   validationSource,
			})
		}
	}

	if len(ws) > 0 {
		req.Metadata.AddWarnings(ws...)
	}
	return nil
}

// sanitizeMessages strips NUL bytes and normalizes CRLF to LF in place.
func sanitizeMessages(msgs []ir.Message) {
	for i := range msgs {
		msgs[i].Text = sanitizeText(msgs[i].Text)
		for j := range msgs[i].Blocks {
			if msgs[i].Blocks[j].Type == ir.BlockTypeText {
				msgs[i].Blocks[j].Text = sanitizeText(msgs[i].Blocks[j].Text)
			}
		}
	}
}

func sanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// detectInjection scans user-authored content and returns the matched
// pattern strings.
func detectInjection(msgs []ir.Message) []string {
	var found []string
	for _, m := range msgs {
		if m.Role != ir.RoleUser {
			continue
		}
		text := m.ContentText()
		for _, re := range injectionPatterns {
			if re.MatchString(text) {
				found = append(found, re.String())
			}
		}
	}
	return dedupeStrings(found)
}

// detectPII returns the distinct kinds of PII found in any message.
func detectPII(msgs []ir.Message) []string {
	var found []string
	for _, m := range msgs {
		text := m.ContentText()
		for _, p := range piiPatterns {
			if p.re.MatchString(text) {
				found = append(found, p.kind)
			}
		}
	}
	return dedupeStrings(found)
}

// redactMessages replaces PII matches with redaction tokens in place.
func redactMessages(msgs []ir.Message) {
	for i := range msgs {
		msgs[i].Text = redactText(msgs[i].Text)
		for j := range msgs[i].Blocks {
			if msgs[i].Blocks[j].Type == ir.BlockTypeText {
				msgs[i].Blocks[j].Text = redactText(msgs[i].Blocks[j].Text)
			}
		}
	}
}

func redactText(s string) string {
	for _, p := range piiPatterns {
		s = p.re.ReplaceAllString(s, p.token)
	}
	return s
}

func piiWarning(kinds []string, action string) warnings.Warning {
	return warnings.Warning{
		Category: categoryPII,
		Severity: warnings.SeverityWarning,
		Field:    "messages",
		Message:  fmt.Sprintf("PII %s: %s", action, strings.Join(kinds, ", ")),
		Source:   validationSource,
		Details:  map[string]any{"kinds": kinds, "action": action},
	}
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
