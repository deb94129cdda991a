// Package dummy provides a deterministic offline chat provider. It is the
// default backend, keeping the whole pipeline functional without any API key:
// replies are short canned Bulgarian continuations chosen by a stable hash of
// the learner's utterance, so the same input always coaches the same way.
package dummy

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/dbozhinov/govorko/pkg/provider/chat"
)

// Compile-time assertion that Provider satisfies chat.Provider.
var _ chat.Provider = (*Provider)(nil)

// replies are neutral conversation continuations. Each works as a response to
// any learner utterance in a roleplay scenario.
var replies = []string{
	"Много добре! Продължавай.",
	"Разбирам. Кажи ми още нещо.",
	"Чудесно! А какво друго?",
	"Добре казано. Продължаваме нататък.",
	"Интересно! Разкажи ми повече.",
}

// questionReplies answer utterances that end in a question mark.
var questionReplies = []string{
	"Добър въпрос! Да, разбира се.",
	"Хм, нека помислим заедно.",
	"Да, точно така.",
}

// Provider is the offline canned-reply backend.
type Provider struct{}

// New returns the dummy provider.
func New() *Provider {
	return &Provider{}
}

// Name implements chat.Provider.
func (p *Provider) Name() string { return "dummy" }

// Reply implements chat.Provider. It never fails and ignores the system
// prompt; only the last user turn selects the reply.
func (p *Provider) Reply(ctx context.Context, req chat.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	last := ""
	for i := len(req.Turns) - 1; i >= 0; i-- {
		if req.Turns[i].Role == chat.RoleUser {
			last = strings.TrimSpace(req.Turns[i].Content)
			break
		}
	}
	if last == "" {
		return replies[0], nil
	}

	pool := replies
	if strings.HasSuffix(last, "?") {
		pool = questionReplies
	}

	h := fnv.New32a()
	h.Write([]byte(last))
	return pool[h.Sum32()%uint32(len(pool))], nil
}
