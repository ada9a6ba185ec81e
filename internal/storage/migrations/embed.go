package migrations

import "embed"

// FS embeds the SQLite schema migrations for challenges, players, the
// submission ledger, hint unlocks and the prediction log.
//
//go:embed *.sql
var FS embed.FS
