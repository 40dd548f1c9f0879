package dialogue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeChat struct {
	replies []any
	sent    []string
}

func (f *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.sent = append(f.sent, parts[0].Text)
	r := f.replies[0]
	f.replies = f.replies[1:]
	if err, ok := r.(error); ok {
		return nil, err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(r.(string), genai.RoleModel),
		}},
	}, nil
}

func TestGeminiSend(t *testing.T) {
	chat := &fakeChat{replies: []any{"Hi! How can I help?"}}
	g := newGemini(&Config{Model: "test"}, chat)

	reply, err := g.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "Hi! How can I help?", reply)
	assert.Equal(t, []string{"hello"}, chat.sent)

	h := g.History()
	require.Len(t, h, 2)
	assert.Equal(t, RoleUser, h[0].Role)
	assert.Equal(t, "hello", h[0].Content)
	assert.Equal(t, RoleAssistant, h[1].Role)
}

func TestGeminiTimeoutLeavesSessionUsable(t *testing.T) {
	chat := &fakeChat{replies: []any{
		"first",
		fmt.Errorf("generate: %w", context.DeadlineExceeded),
		"third",
	}}
	g := newGemini(&Config{}, chat)
	ctx := context.Background()

	_, err := g.Send(ctx, "one")
	require.NoError(t, err)

	_, err = g.Send(ctx, "two")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))
	assert.NotEmpty(t, Describe(err))
	assert.Len(t, g.History(), 2, "failed turn not recorded")

	reply, err := g.Send(ctx, "three")
	require.NoError(t, err)
	assert.Equal(t, "third", reply)
	assert.Len(t, g.History(), 4)
}

func TestGeminiEmptyReplyIsMalformed(t *testing.T) {
	g := newGemini(&Config{}, &fakeChat{replies: []any{"   "}})
	_, err := g.Send(context.Background(), "hi")
	assert.True(t, IsKind(err, KindMalformed))
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestGeminiRejectsBlankText(t *testing.T) {
	chat := &fakeChat{}
	g := newGemini(&Config{}, chat)
	_, err := g.Send(context.Background(), " \t ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, chat.sent)
}

func TestGeminiClosed(t *testing.T) {
	g := newGemini(&Config{}, &fakeChat{})
	require.NoError(t, g.Close())
	_, err := g.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background())
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		want   Kind
	}{
		{"deadline", 0, context.DeadlineExceeded, KindTimeout},
		{"gateway timeout", 504, errors.New("upstream"), KindTimeout},
		{"rate limited", 429, errors.New("slow down"), KindQuota},
		{"gemini quota", 0, errors.New("Error 429, Message: Resource has been exhausted, Status: RESOURCE_EXHAUSTED"), KindQuota},
		{"empty reply", 0, ErrEmptyReply, KindMalformed},
		{"other", 500, errors.New("boom"), KindBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("test", tt.status, tt.err)
			assert.True(t, IsKind(err, tt.want), "got %v", err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.NoError(t, classify("test", 0, nil))
}

func TestDescribeNeverEmpty(t *testing.T) {
	errs := []error{
		errors.New("plain"),
		&Error{Kind: KindTimeout},
		&Error{Kind: KindQuota},
		&Error{Kind: KindMalformed},
		&Error{Kind: KindBackend},
		nil,
	}
	seen := map[string]bool{}
	for _, err := range errs {
		d := Describe(err)
		assert.NotEmpty(t, d)
		seen[d] = true
	}
	assert.GreaterOrEqual(t, len(seen), 5)
}

func TestMockSession(t *testing.T) {
	m := NewMock()
	m.ReplyFunc = func(ctx context.Context, text string, turn int) (string, error) {
		if turn == 1 && text == "fail" {
			return "", context.DeadlineExceeded
		}
		return fmt.Sprintf("reply %d", turn), nil
	}
	ctx := context.Background()

	r, err := m.Send(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "reply 0", r)

	_, err = m.Send(ctx, "fail")
	assert.True(t, IsKind(err, KindTimeout))

	r, err = m.Send(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "reply 1", r)

	assert.Equal(t, []string{"a", "fail", "b"}, m.Sent())
	assert.Len(t, m.History(), 4)
}
