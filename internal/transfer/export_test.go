package transfer

import "context"

// Generate runs a single strategy of s, bypassing fan-out and caching.
func Generate(ctx context.Context, s *Service, strategy Strategy, req *TransferRequest) (*Route, error) {
	for _, g := range s.gens.ordered() {
		if g.strategy == strategy {
			return g.generate(ctx, req)
		}
	}
	return nil, ErrNoCandidate
}
