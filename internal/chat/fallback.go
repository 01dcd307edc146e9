package chat

import (
	"context"

	"github.com/suPer8Hu/gopherchat/internal/ai"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/i18n"
	"golang.org/x/text/language"
)

// localResponder answers when no upstream credential exists. The content
// depends only on the language, so the turn is reproducible. Its ids are
// local and never stored as linkage.
type localResponder struct {
	lang language.Tag
}

func (localResponder) Name() string             { return "local" }
func (localResponder) Mode() ai.Mode            { return ai.ModeChain }
func (localResponder) RequiresCredential() bool { return false }

func (r localResponder) Chat(_ context.Context, req ai.Request) (*ai.Reply, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	conversationID := req.Linkage.ConversationID
	if conversationID == "" {
		conversationID = req.SessionID
	}
	return &ai.Reply{
		Content:        i18n.Text(r.lang, i18n.FallbackReply),
		TurnID:         "local-" + id,
		ConversationID: conversationID,
	}, nil
}
