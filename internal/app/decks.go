package app

import (
	"ballotbox/internal/domain"
)

// ensureDecks creates any missing session deck from the catalog. Existing decks are left as they
// are, so calling it again never reshuffles a pile that is already in play.
func (s *Service) ensureDecks(st *domain.SessionState) {
	if st.Decks == nil {
		st.Decks = map[domain.DeckType]*domain.Deck{}
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	for _, t := range domain.DeckTypes {
		if d, ok := st.Decks[t]; ok && d != nil {
			continue
		}
		st.Decks[t] = domain.NewDeck(t, s.catalog.CardIDs(t), s.rng)
	}
}

// previewVoteBank resolves peeked vote-bank ids to catalog records, keeping draw order.
func (s *Service) previewVoteBank(ids []string) []domain.VoteBankCard {
	out := make([]domain.VoteBankCard, 0, len(ids))
	for _, id := range ids {
		if card, ok := s.catalog.VoteBankCard(id); ok {
			out = append(out, card)
		}
	}
	return out
}

// previewIdeology resolves peeked ideology ids to catalog records, keeping draw order.
func (s *Service) previewIdeology(ids []string) []domain.IdeologyCard {
	out := make([]domain.IdeologyCard, 0, len(ids))
	for _, id := range ids {
		if card, ok := s.catalog.IdeologyCard(id); ok {
			out = append(out, card)
		}
	}
	return out
}
