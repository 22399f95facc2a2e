package session

import (
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/gateway"
)

// buildHistory assembles the inference payload: system preamble, the
// transcript before this turn, then the new user message.
func buildHistory(systemPrompt string, prior []domain.Message, user domain.Message) []gateway.Turn {
	turns := make([]gateway.Turn, 0, len(prior)+2)
	if systemPrompt != "" {
		turns = append(turns, gateway.Turn{Role: domain.RoleSystem, Content: systemPrompt})
	}
	for _, m := range prior {
		turns = append(turns, gateway.Turn{Role: m.Role, Content: m.Content})
	}
	return append(turns, gateway.Turn{Role: domain.RoleUser, Content: user.Content})
}
