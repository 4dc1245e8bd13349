package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/core"
)

type fakeGenerator struct {
	reply string
	err   error
	last  Request
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, req Request) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

func dashboard() core.Dashboard {
	return core.Dashboard{
		AsOf:         core.NewDate(2024, 1, 31),
		Balance:      core.Money{Cents: 80000},
		MonthIncome:  core.Money{Cents: 100000},
		MonthExpense: core.Money{Cents: 20000},
	}
}

func chat(roles ...core.ChatRole) []core.ChatMessage {
	out := make([]core.ChatMessage, 0, len(roles))
	for i, r := range roles {
		out = append(out, core.ChatMessage{ID: int64(i + 1), Role: r, Content: fmt.Sprintf("message %d", i+1)})
	}
	return out
}

func TestSummary(t *testing.T) {
	got := Summary(dashboard())
	want := "[FINANCIAL DATA]\n" +
		"Current balance: 800.00\n" +
		"Monthly income: 1000.00\n" +
		"Monthly expenses: 200.00\n" +
		"Monthly net: 800.00"
	assert.Equal(t, want, got)
}

func TestSummaryNegativeBalance(t *testing.T) {
	d := core.Dashboard{Balance: core.Money{Cents: -1050}, MonthExpense: core.Money{Cents: 1050}}
	got := Summary(d)
	assert.Contains(t, got, "Current balance: -10.50")
	assert.Contains(t, got, "Monthly net: -10.50")
}

func TestNeedsFinancialData(t *testing.T) {
	tests := []struct {
		name    string
		history []core.ChatMessage
		prompt  string
		want    bool
	}{
		{"empty history", nil, "hello", true},
		{"short chat, small talk", chat(core.RoleUser, core.RoleModel), "thanks!", false},
		{"money keyword", chat(core.RoleUser, core.RoleModel), "How much can I spend?", true},
		{"portuguese keyword", chat(core.RoleUser, core.RoleModel), "qual o meu saldo", true},
		{"five messages since summary", chat(core.RoleUser, core.RoleModel, core.RoleUser, core.RoleModel, core.RoleUser), "ok", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsFinancialData(tt.history, tt.prompt))
		})
	}
}

func TestNeedsFinancialDataCountsFromLastSummary(t *testing.T) {
	history := chat(core.RoleUser, core.RoleModel, core.RoleUser, core.RoleModel, core.RoleUser, core.RoleModel)
	history[4].Content = Summary(dashboard()) + "\n\nwhat now?"

	assert.False(t, NeedsFinancialData(history, "ok"), "only one message since the summary")
}

func TestBuildRequest(t *testing.T) {
	a := New(&fakeGenerator{})
	history := chat(core.RoleUser, core.RoleModel, core.RoleUser, core.RoleModel, core.RoleUser,
		core.RoleModel, core.RoleUser, core.RoleModel, core.RoleUser, core.RoleModel)

	req := a.BuildRequest(history, "what is my balance?", dashboard())

	require.Len(t, req.Turns, HistoryWindow+1)
	assert.Equal(t, "message 3", req.Turns[0].Text, "only the last messages are sent")
	last := req.Turns[len(req.Turns)-1]
	assert.Equal(t, core.RoleUser, last.Role)
	assert.True(t, strings.HasPrefix(last.Text, SummaryMarker))
	assert.True(t, strings.HasSuffix(last.Text, "\n\nwhat is my balance?"))
	assert.Equal(t, DefaultInstruction, req.Instruction)
}

func TestBuildRequestWithoutSummary(t *testing.T) {
	a := New(&fakeGenerator{}).WithInstruction("be brief")
	req := a.BuildRequest(chat(core.RoleUser, core.RoleModel), "thanks", dashboard())

	require.Len(t, req.Turns, 3)
	assert.Equal(t, "thanks", req.Turns[2].Text)
	assert.Equal(t, "be brief", req.Instruction)
}

func TestReply(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		gen := &fakeGenerator{reply: "  You are doing fine.  "}
		got, err := New(gen).Reply(ctx, nil, "how am I doing?", dashboard())
		require.NoError(t, err)
		assert.Equal(t, "You are doing fine.", got)
		assert.Equal(t, 1, gen.calls)
	})

	t.Run("empty answer", func(t *testing.T) {
		got, err := New(&fakeGenerator{}).Reply(ctx, nil, "hi", dashboard())
		require.NoError(t, err)
		assert.Equal(t, ReplyNoAnswer, got)
	})

	t.Run("empty prompt", func(t *testing.T) {
		gen := &fakeGenerator{}
		_, err := New(gen).Reply(ctx, nil, "   ", dashboard())
		assert.ErrorIs(t, err, core.ErrEmptyPrompt)
		assert.Zero(t, gen.calls)
	})

	t.Run("generator failure returns fallback", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("boom")}
		got, err := New(gen).Reply(ctx, nil, "hi", dashboard())
		assert.Error(t, err)
		assert.Equal(t, ReplyFailure, got)
	})

	t.Run("invalid key", func(t *testing.T) {
		gen := &fakeGenerator{err: fmt.Errorf("%w: 400", ErrInvalidAPIKey)}
		got, err := New(gen).Reply(ctx, nil, "hi", dashboard())
		assert.ErrorIs(t, err, ErrInvalidAPIKey)
		assert.Equal(t, ReplyInvalidAPIKey, got)
	})
}

func TestFallbackReply(t *testing.T) {
	assert.Equal(t, ReplyPermissionDenied, FallbackReply(ErrPermissionDenied))
	assert.Equal(t, ReplyInvalidAPIKey, FallbackReply(fmt.Errorf("wrapped: %w", ErrInvalidAPIKey)))
	assert.Equal(t, ReplyFailure, FallbackReply(context.DeadlineExceeded))
}

func TestUnconfiguredGenerator(t *testing.T) {
	reply, err := New(Unconfigured{}).Reply(context.Background(), nil, "how much did I spend?", core.Dashboard{})
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
	assert.Equal(t, ReplyInvalidAPIKey, reply)
}
