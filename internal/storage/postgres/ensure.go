package postgres

import "github.com/felixgeelhaar/flagpost/internal/storage"

var (
	_ storage.Store          = (*Store)(nil)
	_ storage.ChallengeStore = (*ChallengeStore)(nil)
	_ storage.PlayerStore    = (*PlayerStore)(nil)
	_ storage.Ledger         = (*Ledger)(nil)
	_ storage.HintStore      = (*HintStore)(nil)
	_ storage.PredictionLog  = (*PredictionLog)(nil)
)
