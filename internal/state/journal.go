// ./internal/state/journal.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/enclave-network/nodepool/internal/events"
)

// SaveEvent persists one ledger event to the journal.
func SaveEvent(e events.Event) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO pool_events (
			event_id, event_type, pool_id, event_timestamp,
			holder, counterparty, token, amount, shares, order_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING
	`

	_, err := DB.Exec(query,
		e.ID, string(e.Type), e.PoolID, e.Timestamp,
		nullString(e.Holder), nullString(e.Counterparty), nullString(e.Token),
		nullString(e.Amount), e.Shares, e.OrderID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", e.ID, err)
	}
	return nil
}

// RecentEvents retrieves the newest events for one pool, newest first.
func RecentEvents(poolID uint64, limit int) ([]events.Event, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 25 // Default limit
	}

	query := `
		SELECT event_id, event_type, pool_id, event_timestamp,
		       COALESCE(holder, ''), COALESCE(counterparty, ''), COALESCE(token, ''),
		       COALESCE(amount::TEXT, ''), COALESCE(shares, 0), COALESCE(order_id, 0)
		FROM pool_events
		WHERE pool_id = $1
		ORDER BY event_timestamp DESC
		LIMIT $2
	`

	rows, err := DB.Query(query, poolID, limit)
	if err != nil {
		log.Error().Err(err).Uint64("poolID", poolID).Msg("Failed to query recent events")
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var eventType string
		if err := rows.Scan(
			&e.ID, &eventType, &e.PoolID, &e.Timestamp,
			&e.Holder, &e.Counterparty, &e.Token, &e.Amount, &e.Shares, &e.OrderID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.Type = events.Type(eventType)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return out, nil
}

// JournalSink persists every emitted event to PostgreSQL. Persistence
// failures are logged and swallowed: the journal is an audit trail, and a
// database hiccup must never fail a ledger operation.
type JournalSink struct{}

// Emit implements events.Sink.
func (JournalSink) Emit(e events.Event) {
	if err := SaveEvent(e); err != nil {
		log.Error().
			Err(err).
			Str("eventType", string(e.Type)).
			Uint64("poolID", e.PoolID).
			Msg("Failed to journal event")
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
