package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Feature: testgen, Property 5: code messages keep content and language byte-for-byte
func TestCodeMessageRoundTrip(t *testing.T) {
	fb := newFakeBackend()
	svc := NewMessageService(newTestClient(t, fb))
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		content := rapid.String().Draw(t, "content")
		lang := rapid.SampledFrom(Languages).Draw(t, "language")

		sent, err := svc.SendCodeMessage(ctx, content, lang)
		if err != nil {
			t.Fatalf("SendCodeMessage: %v", err)
		}

		page, err := svc.GetMessages(ctx, DefaultPageSize, "")
		if err != nil {
			t.Fatalf("GetMessages: %v", err)
		}
		var got *Message
		for i := range page {
			if page[i].ID == sent.ID {
				got = &page[i]
			}
		}
		if got == nil {
			t.Fatalf("message %s not returned", sent.ID)
		}
		if got.Content != content {
			t.Fatalf("content: got %q, want %q", got.Content, content)
		}
		if got.Type != TypeCode || got.Metadata == nil || got.Metadata.Language != lang {
			t.Fatalf("metadata: got type %q metadata %+v", got.Type, got.Metadata)
		}
	})
}

func seedHistory(fb *fakeBackend, n int) {
	for i := n; i >= 1; i-- {
		fb.history = append(fb.history, Message{ID: fmt.Sprintf("h-%03d", i), Content: fmt.Sprintf("message %d", i), Type: TypeText})
	}
}

// Feature: testgen, Property 8: a full page of exactly limit items keeps HasMore
func TestHistoryBoundaryAtLimit(t *testing.T) {
	fb := newFakeBackend()
	seedHistory(fb, DefaultPageSize)
	h := NewHistory(NewMessageService(newTestClient(t, fb)), DefaultPageSize)
	ctx := context.Background()

	loaded, err := h.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Len(t, h.Messages(), 50)
	assert.True(t, h.HasMore(), "exactly limit items is not proof of the end")

	loaded, err = h.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Len(t, h.Messages(), 50)
	assert.False(t, h.HasMore(), "an empty page ends the history")

	before := fb.requestCount()
	loaded, err = h.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, before, fb.requestCount(), "no request once the end is reached")
}

func TestHistoryShortPageEnds(t *testing.T) {
	fb := newFakeBackend()
	seedHistory(fb, 49)
	h := NewHistory(NewMessageService(newTestClient(t, fb)), DefaultPageSize)

	_, err := h.LoadMore(context.Background())
	require.NoError(t, err)
	assert.False(t, h.HasMore())
}

func TestHistoryPagesBackwards(t *testing.T) {
	fb := newFakeBackend()
	seedHistory(fb, 7)
	h := NewHistory(NewMessageService(newTestClient(t, fb)), 3)
	ctx := context.Background()

	for h.HasMore() {
		_, err := h.LoadMore(ctx)
		require.NoError(t, err)
	}

	var ids []string
	for _, m := range h.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"h-007", "h-006", "h-005", "h-004", "h-003", "h-002", "h-001"}, ids)
}

func TestHistoryLocalEdits(t *testing.T) {
	h := NewHistory(nil, 0)
	h.Prepend(Message{ID: "a", Content: "one"})
	h.Prepend(Message{ID: "b", Content: "two"})
	h.Replace(Message{ID: "a", Content: "uno"})
	h.Remove("b")

	assert.Equal(t, []Message{{ID: "a", Content: "uno"}}, h.Messages())
	assert.False(t, h.Loading())
}

func TestMessageServiceCRUD(t *testing.T) {
	fb := newFakeBackend()
	svc := NewMessageService(newTestClient(t, fb))
	ctx := context.Background()

	m, err := svc.SendMessage(ctx, "hello world", "", nil)
	require.NoError(t, err)
	assert.Equal(t, TypeText, m.Type)

	shared, err := svc.SendTestMessage(ctx, "t-9")
	require.NoError(t, err)
	assert.Equal(t, "Test shared", shared.Content)
	assert.Equal(t, "t-9", shared.Metadata.TestID)

	edited, err := svc.EditMessage(ctx, m.ID, "hello there")
	require.NoError(t, err)
	assert.Equal(t, "hello there", edited.Content)

	got, err := svc.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello there", got.Content)

	found, err := svc.SearchMessages(ctx, "there")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, m.ID, found[0].ID)

	require.NoError(t, svc.DeleteMessage(ctx, m.ID))
	_, err = svc.GetMessage(ctx, m.ID)
	assert.Error(t, err)
}
