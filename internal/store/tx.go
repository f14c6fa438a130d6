package store

import "github.com/jackc/pgx/v5"

// pgxTx is the subset of pgx.Tx repositories need inside withTx.
type pgxTx = pgx.Tx
