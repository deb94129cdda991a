package dummy

import (
	"context"
	"strings"
	"testing"

	"github.com/dbozhinov/govorko/pkg/provider/chat"
)

func request(turns ...chat.Turn) chat.Request {
	return chat.Request{System: "Ти си събеседник.", Turns: turns}
}

func TestReplyDeterministic(t *testing.T) {
	p := New()
	req := request(chat.Turn{Role: chat.RoleUser, Content: "Искам да поръчам кафе."})

	a, err := p.Reply(context.Background(), req)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	b, _ := p.Reply(context.Background(), req)
	if a != b {
		t.Errorf("replies differ for identical input: %q vs %q", a, b)
	}
	if a == "" {
		t.Error("reply must not be empty")
	}
}

func TestReplyUsesLastUserTurn(t *testing.T) {
	p := New()
	short := request(chat.Turn{Role: chat.RoleUser, Content: "Добър ден."})
	long := request(
		chat.Turn{Role: chat.RoleUser, Content: "Нещо съвсем различно."},
		chat.Turn{Role: chat.RoleAssistant, Content: "Разбирам."},
		chat.Turn{Role: chat.RoleUser, Content: "Добър ден."},
	)

	a, _ := p.Reply(context.Background(), short)
	b, _ := p.Reply(context.Background(), long)
	if a != b {
		t.Errorf("reply must depend only on the last user turn: %q vs %q", a, b)
	}
}

func TestReplyQuestionPool(t *testing.T) {
	p := New()
	got, err := p.Reply(context.Background(), request(
		chat.Turn{Role: chat.RoleUser, Content: "Къде е гарата?"},
	))
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	found := false
	for _, r := range questionReplies {
		if got == r {
			found = true
		}
	}
	if !found {
		t.Errorf("reply %q is not from the question pool", got)
	}
}

func TestReplyEmptyHistory(t *testing.T) {
	p := New()
	got, err := p.Reply(context.Background(), request())
	if err != nil || got == "" {
		t.Errorf("Reply = %q, %v; want a default reply", got, err)
	}
}

func TestReplyCancelledContext(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Reply(ctx, request(chat.Turn{Role: chat.RoleUser, Content: "Здравей."})); err == nil {
		t.Error("Reply must fail on a cancelled context")
	}
}

func TestRepliesAreBulgarian(t *testing.T) {
	for _, r := range append(append([]string{}, replies...), questionReplies...) {
		if !strings.ContainsFunc(r, func(c rune) bool { return c >= 'а' && c <= 'я' || c >= 'А' && c <= 'Я' }) {
			t.Errorf("reply %q contains no Cyrillic", r)
		}
	}
}
