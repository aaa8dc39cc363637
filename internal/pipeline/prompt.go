package pipeline

import (
	"strings"

	"github.com/philipexavier/proxy-rasa/internal/classify"
	"github.com/philipexavier/proxy-rasa/internal/locale"
	"github.com/philipexavier/proxy-rasa/internal/session"
	"github.com/philipexavier/proxy-rasa/internal/types"
	"github.com/philipexavier/proxy-rasa/internal/upstream"
)

const (
	senderAssistant = "captain"
	senderDefault   = "proxy-user"
)

// outbound is what gets sent to the dispatcher for one request.
type outbound struct {
	prompt      string
	hints       upstream.Hints
	synthesized bool
}

func (p *Pipeline) buildOutbound(req *Request, mode classify.Mode, integration bool) outbound {
	correct := p.Config.LocaleCorrection && !integration

	switch mode.Kind {
	case classify.KindAssistant:
		prompt := classify.LastUserText(req.Messages)
		if prompt == "" {
			// No user turn: forward whatever the caller sent last.
			prompt = classify.FlattenContent(req.Messages[len(req.Messages)-1].Content)
		}
		id, synthesized := session.EnsureConversationID(req.ConversationID)
		return outbound{
			prompt: locale.Truncate(prompt, p.Config.MaxMessageLen),
			hints: upstream.Hints{
				ConversationID: id,
				Metadata:       req.Metadata,
				Sender:         senderAssistant,
			},
			synthesized: synthesized,
		}

	case classify.KindOperation:
		prompt := "OPERATION: " + mode.Operation + "\n\n" + joinTranscript(req.Messages)
		return outbound{
			prompt: locale.Truncate(prompt, p.Config.MaxMessageLen),
			hints: upstream.Hints{
				ConversationID: req.ConversationID,
				Metadata:       req.Metadata,
				Sender:         senderAssistant,
			},
		}

	default:
		prompt := classify.LastUserText(req.Messages)
		if prompt == "" {
			prompt = joinTranscript(req.Messages)
		}
		if correct {
			prompt = locale.Correct(prompt)
		}
		id, synthesized := session.EnsureConversationID(req.ConversationID)
		return outbound{
			prompt: locale.Truncate(prompt, p.Config.MaxMessageLen),
			hints: upstream.Hints{
				ConversationID: id,
				Metadata:       req.Metadata,
				Sender:         senderDefault,
			},
			synthesized: synthesized,
		}
	}
}

// joinTranscript renders every non-system message as "[ROLE]\ncontent",
// separated by blank lines.
func joinTranscript(messages []types.ChatMessage) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			continue
		}
		parts = append(parts, "["+strings.ToUpper(m.Role)+"]\n"+classify.FlattenContent(m.Content))
	}
	return strings.Join(parts, "\n\n")
}
