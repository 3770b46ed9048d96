// Package sqlite stores sessions in a local SQLite database, one table per entity.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"ballotbox/internal/domain"
	"ballotbox/internal/ports"
)

// Store implements ports.SessionStore on SQLite. Commits run in one transaction gated on the
// session row's revision counter.
type Store struct {
	db     *sql.DB
	dbPath string
}

var _ ports.SessionStore = (*Store)(nil)

// Open creates or opens the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single writer connection keeps SQLite from reporting busy errors under concurrent commits.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return &Store{db: db, dbPath: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			host_id TEXT NOT NULL,
			status TEXT NOT NULL,
			end_reason TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			action_seq INTEGER NOT NULL DEFAULT 0,
			revision INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_players (
			session_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			seat INTEGER NOT NULL,
			ready BOOLEAN NOT NULL DEFAULT 0,
			resources_json TEXT NOT NULL,
			ideologies_json TEXT NOT NULL,
			hand_json TEXT NOT NULL,
			flags_json TEXT NOT NULL,
			PRIMARY KEY (session_id, player_id),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		);`,
		`CREATE TABLE IF NOT EXISTS zone_control (
			session_id TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			voter_counts_json TEXT NOT NULL,
			majority_owner TEXT NOT NULL DEFAULT '',
			coalition_json TEXT,
			gerrymander_uses INTEGER NOT NULL DEFAULT 0,
			volatile_slots_json TEXT NOT NULL,
			PRIMARY KEY (session_id, zone_id),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		);`,
		`CREATE TABLE IF NOT EXISTS session_decks (
			session_id TEXT NOT NULL,
			deck_type TEXT NOT NULL,
			cards_json TEXT NOT NULL,
			discard_json TEXT NOT NULL,
			PRIMARY KEY (session_id, deck_type),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT NOT NULL,
			turn_index INTEGER NOT NULL,
			active_player TEXT NOT NULL,
			neighbor_reader TEXT NOT NULL,
			phase TEXT NOT NULL,
			ideology_preview_json TEXT NOT NULL,
			vote_bank_preview_json TEXT NOT NULL,
			ideology_card_id TEXT NOT NULL DEFAULT '',
			ideology_choice TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at TEXT,
			PRIMARY KEY (session_id, turn_index),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			turn_index INTEGER,
			actor_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE (session_id, seq),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_session_seq ON actions(session_id, seq);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// CreateSession inserts a new session with all of its rows.
func (s *Store) CreateSession(ctx context.Context, st *domain.SessionState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE session_id = ?`, st.Session.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if exists > 0 {
		return ports.ErrConflict
	}

	sess := st.Session
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, host_id, status, end_reason, summary, action_seq, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, sess.ID, sess.HostID, string(sess.Status), string(sess.EndReason), sess.Summary, sess.ActionSeq,
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	if err := writeEntities(ctx, tx, st); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	st.Revision = "1"
	return nil
}

// CommitSession writes st and appends entries if the stored revision still matches.
func (s *Store) CommitSession(ctx context.Context, st *domain.SessionState, entries []domain.ActionLogEntry) error {
	expected, err := strconv.ParseInt(st.Revision, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid revision %q: %w", st.Revision, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sess := st.Session
	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET
			status = ?, end_reason = ?, summary = ?, action_seq = ?, updated_at = ?,
			revision = revision + 1
		WHERE session_id = ? AND revision = ?
	`, string(sess.Status), string(sess.EndReason), sess.Summary, sess.ActionSeq, formatTime(sess.UpdatedAt),
		sess.ID, expected)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	} else if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sess.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if exists == 0 {
			return ports.ErrNotFound
		}
		return ports.ErrConflict
	}

	if err := writeEntities(ctx, tx, st); err != nil {
		return err
	}
	for _, e := range entries {
		if err := insertAction(ctx, tx, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	st.Revision = strconv.FormatInt(expected+1, 10)
	return nil
}

func writeEntities(ctx context.Context, tx *sql.Tx, st *domain.SessionState) error {
	sid := st.Session.ID
	for _, p := range st.Players {
		resources, err := encode(p.Resources)
		if err != nil {
			return err
		}
		ideologies, err := encode(p.Ideologies)
		if err != nil {
			return err
		}
		hand, err := encode(p.Hand)
		if err != nil {
			return err
		}
		flags, err := encode(p.Flags)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_players (session_id, player_id, seat, ready, resources_json, ideologies_json, hand_json, flags_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, player_id) DO UPDATE SET
				seat = excluded.seat,
				ready = excluded.ready,
				resources_json = excluded.resources_json,
				ideologies_json = excluded.ideologies_json,
				hand_json = excluded.hand_json,
				flags_json = excluded.flags_json
		`, sid, p.ID, p.Seat, p.Ready, resources, ideologies, hand, flags)
		if err != nil {
			return fmt.Errorf("failed to save player %s: %w", p.ID, err)
		}
	}

	for zoneID, zc := range st.Zones {
		counts, err := encode(zc.VoterCounts)
		if err != nil {
			return err
		}
		slots, err := encode(zc.VolatileSlots)
		if err != nil {
			return err
		}
		var coalition sql.NullString
		if zc.Coalition != nil {
			raw, err := encode(zc.Coalition)
			if err != nil {
				return err
			}
			coalition = sql.NullString{String: raw, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO zone_control (session_id, zone_id, voter_counts_json, majority_owner, coalition_json, gerrymander_uses, volatile_slots_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, zone_id) DO UPDATE SET
				voter_counts_json = excluded.voter_counts_json,
				majority_owner = excluded.majority_owner,
				coalition_json = excluded.coalition_json,
				gerrymander_uses = excluded.gerrymander_uses,
				volatile_slots_json = excluded.volatile_slots_json
		`, sid, zoneID, counts, zc.MajorityOwner, coalition, zc.GerrymanderUses, slots)
		if err != nil {
			return fmt.Errorf("failed to save zone %s: %w", zoneID, err)
		}
	}

	for t, d := range st.Decks {
		cards, err := encode(d.Cards)
		if err != nil {
			return err
		}
		discard, err := encode(d.Discard)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_decks (session_id, deck_type, cards_json, discard_json)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id, deck_type) DO UPDATE SET
				cards_json = excluded.cards_json,
				discard_json = excluded.discard_json
		`, sid, string(t), cards, discard)
		if err != nil {
			return fmt.Errorf("failed to save %s deck: %w", t, err)
		}
	}

	for _, turn := range st.Turns {
		ideologyPreview, err := encode(turn.IdeologyPreview)
		if err != nil {
			return err
		}
		voteBankPreview, err := encode(turn.VoteBankPreview)
		if err != nil {
			return err
		}
		var endedAt sql.NullString
		if turn.EndedAt != nil {
			endedAt = sql.NullString{String: formatTime(*turn.EndedAt), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO turns (session_id, turn_index, active_player, neighbor_reader, phase,
				ideology_preview_json, vote_bank_preview_json, ideology_card_id, ideology_choice, started_at, ended_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, turn_index) DO UPDATE SET
				phase = excluded.phase,
				ideology_preview_json = excluded.ideology_preview_json,
				vote_bank_preview_json = excluded.vote_bank_preview_json,
				ideology_card_id = excluded.ideology_card_id,
				ideology_choice = excluded.ideology_choice,
				ended_at = excluded.ended_at
		`, sid, turn.Index, turn.ActivePlayer, turn.NeighborReader, string(turn.Phase),
			ideologyPreview, voteBankPreview, turn.IdeologyCardID, string(turn.IdeologyChoice),
			formatTime(turn.StartedAt), endedAt)
		if err != nil {
			return fmt.Errorf("failed to save turn %d: %w", turn.Index, err)
		}
	}
	return nil
}

func insertAction(ctx context.Context, tx *sql.Tx, e domain.ActionLogEntry) error {
	payload, err := encode(e.Payload)
	if err != nil {
		return err
	}
	var turnIndex sql.NullInt64
	if e.TurnIndex != nil {
		turnIndex = sql.NullInt64{Int64: int64(*e.TurnIndex), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO actions (id, session_id, seq, turn_index, actor_id, type, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.Seq, turnIndex, e.ActorID, e.Type, payload, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append action %d: %w", e.Seq, err)
	}
	return nil
}

// LoadSession reads a session and all of its rows.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	st := &domain.SessionState{
		Zones: map[string]*domain.ZoneControl{},
		Decks: map[domain.DeckType]*domain.Deck{},
	}
	var (
		status, endReason    string
		createdAt, updatedAt string
		revision             int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT session_id, host_id, status, end_reason, summary, action_seq, revision, created_at, updated_at
		FROM sessions WHERE session_id = ?
	`, sessionID).Scan(&st.Session.ID, &st.Session.HostID, &status, &endReason, &st.Session.Summary,
		&st.Session.ActionSeq, &revision, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	st.Session.Status = domain.Status(status)
	st.Session.EndReason = domain.EndReason(endReason)
	if st.Session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if st.Session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	st.Revision = strconv.FormatInt(revision, 10)

	if err := loadPlayers(ctx, tx, st); err != nil {
		return nil, err
	}
	if err := loadZones(ctx, tx, st); err != nil {
		return nil, err
	}
	if err := loadDecks(ctx, tx, st); err != nil {
		return nil, err
	}
	if err := loadTurns(ctx, tx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func loadPlayers(ctx context.Context, tx *sql.Tx, st *domain.SessionState) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT player_id, seat, ready, resources_json, ideologies_json, hand_json, flags_json
		FROM session_players WHERE session_id = ? ORDER BY seat
	`, st.Session.ID)
	if err != nil {
		return fmt.Errorf("failed to load players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p := &domain.Player{}
		var resources, ideologies, hand, flags string
		if err := rows.Scan(&p.ID, &p.Seat, &p.Ready, &resources, &ideologies, &hand, &flags); err != nil {
			return fmt.Errorf("failed to scan player: %w", err)
		}
		if err := decodeAll(
			decodeInto(resources, &p.Resources),
			decodeInto(ideologies, &p.Ideologies),
			decodeInto(hand, &p.Hand),
			decodeInto(flags, &p.Flags),
		); err != nil {
			return fmt.Errorf("failed to decode player %s: %w", p.ID, err)
		}
		st.Players = append(st.Players, p)
	}
	return rows.Err()
}

func loadZones(ctx context.Context, tx *sql.Tx, st *domain.SessionState) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT zone_id, voter_counts_json, majority_owner, coalition_json, gerrymander_uses, volatile_slots_json
		FROM zone_control WHERE session_id = ?
	`, st.Session.ID)
	if err != nil {
		return fmt.Errorf("failed to load zones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		zc := &domain.ZoneControl{}
		var counts, slots string
		var coalition sql.NullString
		if err := rows.Scan(&zc.ZoneID, &counts, &zc.MajorityOwner, &coalition, &zc.GerrymanderUses, &slots); err != nil {
			return fmt.Errorf("failed to scan zone: %w", err)
		}
		if err := decodeAll(decodeInto(counts, &zc.VoterCounts), decodeInto(slots, &zc.VolatileSlots)); err != nil {
			return fmt.Errorf("failed to decode zone %s: %w", zc.ZoneID, err)
		}
		if coalition.Valid {
			zc.Coalition = &domain.Coalition{}
			if err := json.Unmarshal([]byte(coalition.String), zc.Coalition); err != nil {
				return fmt.Errorf("failed to decode coalition in %s: %w", zc.ZoneID, err)
			}
		}
		if zc.VoterCounts == nil {
			zc.VoterCounts = map[string]int{}
		}
		st.Zones[zc.ZoneID] = zc
	}
	return rows.Err()
}

func loadDecks(ctx context.Context, tx *sql.Tx, st *domain.SessionState) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT deck_type, cards_json, discard_json FROM session_decks WHERE session_id = ?
	`, st.Session.ID)
	if err != nil {
		return fmt.Errorf("failed to load decks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var deckType, cards, discard string
		if err := rows.Scan(&deckType, &cards, &discard); err != nil {
			return fmt.Errorf("failed to scan deck: %w", err)
		}
		d := &domain.Deck{Type: domain.DeckType(deckType)}
		if err := decodeAll(decodeInto(cards, &d.Cards), decodeInto(discard, &d.Discard)); err != nil {
			return fmt.Errorf("failed to decode %s deck: %w", deckType, err)
		}
		st.Decks[d.Type] = d
	}
	return rows.Err()
}

func loadTurns(ctx context.Context, tx *sql.Tx, st *domain.SessionState) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT turn_index, active_player, neighbor_reader, phase, ideology_preview_json, vote_bank_preview_json,
			ideology_card_id, ideology_choice, started_at, ended_at
		FROM turns WHERE session_id = ? ORDER BY turn_index
	`, st.Session.ID)
	if err != nil {
		return fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	st.Turns = []*domain.Turn{}
	for rows.Next() {
		turn := &domain.Turn{}
		var phase, ideologyPreview, voteBankPreview, choice, startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&turn.Index, &turn.ActivePlayer, &turn.NeighborReader, &phase, &ideologyPreview,
			&voteBankPreview, &turn.IdeologyCardID, &choice, &startedAt, &endedAt); err != nil {
			return fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Phase = domain.TurnPhase(phase)
		turn.IdeologyChoice = domain.Choice(choice)
		if err := decodeAll(decodeInto(ideologyPreview, &turn.IdeologyPreview), decodeInto(voteBankPreview, &turn.VoteBankPreview)); err != nil {
			return fmt.Errorf("failed to decode turn %d: %w", turn.Index, err)
		}
		if turn.StartedAt, err = parseTime(startedAt); err != nil {
			return err
		}
		if endedAt.Valid {
			ended, err := parseTime(endedAt.String)
			if err != nil {
				return err
			}
			turn.EndedAt = &ended
		}
		st.Turns = append(st.Turns, turn)
	}
	return rows.Err()
}

// ListActions returns up to limit entries after afterSeq in sequence order.
func (s *Store) ListActions(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]domain.ActionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, turn_index, actor_id, type, payload_json, created_at
		FROM actions
		WHERE session_id = ? AND seq > ?
		ORDER BY seq
		LIMIT ?
	`, sessionID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	out := []domain.ActionLogEntry{}
	for rows.Next() {
		var (
			e         domain.ActionLogEntry
			turnIndex sql.NullInt64
			payload   string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Seq, &turnIndex, &e.ActorID, &e.Type, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		if turnIndex.Valid {
			idx := int(turnIndex.Int64)
			e.TurnIndex = &idx
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode action %d: %w", e.Seq, err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(raw), nil
}

func decodeInto(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func decodeAll(errs ...error) error {
	return errors.Join(errs...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", raw, err)
	}
	return t, nil
}
