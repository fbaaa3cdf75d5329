package ledger

import (
	"context"

	"ledger-bot/internal/domain"
)

// ResolvePayer maps a raw payer token to the name stored on a transaction.
// Only the self reference is resolved; any other token is kept verbatim.
func (s *Service) ResolvePayer(ctx context.Context, groupID, userID, token string) (string, error) {
	return s.payerResolver(groupID, userID)(ctx, token)
}

// payerResolver looks the author's nickname up at most once.
func (s *Service) payerResolver(groupID, userID string) func(context.Context, string) (string, error) {
	var self string
	return func(ctx context.Context, token string) (string, error) {
		if token != "" && token != domain.SelfPayer {
			return token, nil
		}
		if self == "" {
			nick, err := s.Nickname(ctx, groupID, userID)
			if err != nil {
				return "", err
			}
			self = nick
		}
		return self, nil
	}
}
