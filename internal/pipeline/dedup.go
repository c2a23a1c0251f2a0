package pipeline

import (
	"github.com/denlifik/tg-ytarchiver/internal/feed"
	"github.com/denlifik/tg-ytarchiver/internal/ledger"
)

// FilterNew returns the candidates not yet present in the ledger,
// preserving feed order. Pure function, no side effects.
func FilterNew(entries []ledger.ArchivedVideo, candidates []feed.Candidate) []feed.Candidate {
	archived := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		archived[e.ID] = struct{}{}
	}
	out := make([]feed.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := archived[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}
