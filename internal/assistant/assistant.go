// Package assistant builds requests for the chat assistant and turns its
// failures into replies the user can read.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"finledger/internal/core"
)

const (
	// HistoryWindow is how many past messages accompany a new prompt.
	HistoryWindow = 8
	// summaryRefreshAfter is the number of messages after which the summary
	// is attached again even when the prompt does not ask for figures.
	summaryRefreshAfter = 5
)

const DefaultInstruction = `You are a practical, direct personal finance assistant.
- Be concise: at most 3-4 short sentences.
- Use plain, casual language.
- Do not repeat figures already discussed; refine earlier answers instead of recalculating.
- Use line breaks to organize longer answers.`

var (
	ErrInvalidAPIKey    = errors.New("assistant API key is invalid")
	ErrPermissionDenied = errors.New("assistant API permission denied")
)

// Replies recorded instead of a model answer.
const (
	ReplyFailure          = "Sorry, something went wrong while processing your question. Please try again."
	ReplyInvalidAPIKey    = "Error: the assistant API key is invalid. Check the service configuration."
	ReplyPermissionDenied = "Error: permission denied. Make sure the generative language API is enabled for this project."
	ReplyNoAnswer         = "Sorry, I could not process your request."
)

var financialKeywords = regexp.MustCompile(`(?i)balance|how much|spend|income|expense|left|save|budget|saldo|quanto|valor|balan[çc]o|gastar|sobrar|entrad|sa[íi]d`)

type Turn struct {
	Role core.ChatRole
	Text string
}

// Request is one call to a Generator.
type Request struct {
	Instruction string
	Turns       []Turn
}

// Generator produces the model's answer to the last turn of a request. An
// empty answer with a nil error means the model declined to respond.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Unconfigured is the Generator used when no API key is set. Every call
// fails with ErrInvalidAPIKey, so users get the configuration reply.
type Unconfigured struct{}

func (Unconfigured) Generate(context.Context, Request) (string, error) {
	return "", ErrInvalidAPIKey
}

type Assistant struct {
	gen         Generator
	instruction string
}

func New(gen Generator) *Assistant {
	return &Assistant{gen: gen, instruction: DefaultInstruction}
}

// WithInstruction returns a copy using a different system instruction.
func (a *Assistant) WithInstruction(instruction string) *Assistant {
	cp := *a
	cp.instruction = instruction
	return &cp
}

// NeedsFinancialData reports whether the summary should be attached to the
// prompt: on the first message of a conversation, once enough messages went
// by since the last summary, or when the prompt asks about money.
func NeedsFinancialData(history []core.ChatMessage, prompt string) bool {
	if len(history) == 0 {
		return true
	}
	if messagesSinceSummary(recent(history)) >= summaryRefreshAfter {
		return true
	}
	return financialKeywords.MatchString(prompt)
}

func recent(history []core.ChatMessage) []core.ChatMessage {
	if len(history) > HistoryWindow {
		return history[len(history)-HistoryWindow:]
	}
	return history
}

func messagesSinceSummary(history []core.ChatMessage) int {
	n := 0
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.Role == core.RoleUser && strings.Contains(m.Content, SummaryMarker) {
			break
		}
		n++
	}
	return n
}

// BuildRequest assembles the turns sent for prompt: the recent history
// followed by the prompt, prefixed with the dashboard summary when needed.
func (a *Assistant) BuildRequest(history []core.ChatMessage, prompt string, d core.Dashboard) Request {
	window := recent(history)
	turns := make([]Turn, 0, len(window)+1)
	for _, m := range window {
		if m.Role != core.RoleUser && m.Role != core.RoleModel {
			continue
		}
		turns = append(turns, Turn{Role: m.Role, Text: m.Content})
	}

	text := prompt
	if NeedsFinancialData(history, prompt) {
		text = Summary(d) + "\n\n" + prompt
	}
	turns = append(turns, Turn{Role: core.RoleUser, Text: text})

	return Request{Instruction: a.instruction, Turns: turns}
}

// Reply asks the generator to answer prompt. On failure it returns the
// fallback text to record along with the error.
func (a *Assistant) Reply(ctx context.Context, history []core.ChatMessage, prompt string, d core.Dashboard) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", core.ErrEmptyPrompt
	}

	req := a.BuildRequest(history, prompt, d)
	reply, err := a.gen.Generate(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "Assistant request failed", "error", err, "turns", len(req.Turns))
		return FallbackReply(err), fmt.Errorf("generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return ReplyNoAnswer, nil
	}
	return reply, nil
}

// FallbackReply maps a generator error to the text shown to the user.
func FallbackReply(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAPIKey):
		return ReplyInvalidAPIKey
	case errors.Is(err, ErrPermissionDenied):
		return ReplyPermissionDenied
	default:
		return ReplyFailure
	}
}
