package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahlev/Parlaybot/internal/domain/pick"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	selectLeaguePicksQuery = `SELECT league, user_id, pick_text, updated_at FROM league_picks ORDER BY league, user_id`
	selectAdminQuery       = `SELECT key, value, updated_at FROM bot_settings WHERE key = $1`
	deleteLeaguePicksQuery = `DELETE FROM league_picks`
	insertLeaguePicksQuery = `INSERT INTO league_picks (league, user_id, pick_text, updated_at)
SELECT league, user_id, pick_text, NOW()
FROM unnest($1::text[], $2::text[], $3::text[]) AS t(league, user_id, pick_text)`
	upsertSettingQuery = `INSERT INTO bot_settings (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
)

// PickStore persists both ledgers and the administrator in postgres. Save
// replaces everything inside one transaction.
type PickStore struct {
	db *sqlx.DB
}

func NewPickStore(db *sqlx.DB) *PickStore {
	return &PickStore{db: db}
}

func (r *PickStore) Load(ctx context.Context) (state pick.State, err error) {
	ctx, span := startQuerySpan(ctx, "PickStore.Load", selectLeaguePicksQuery)
	defer func() { endQuerySpan(span, err) }()

	var rows []leaguePickTableModel
	if err := r.db.SelectContext(ctx, &rows, selectLeaguePicksQuery); err != nil {
		return pick.State{}, fmt.Errorf("select league picks: %w", err)
	}

	state, err = rowsToState(rows)
	if err != nil {
		return pick.State{}, err
	}

	var setting botSettingTableModel
	if err := r.db.GetContext(ctx, &setting, selectAdminQuery, settingAdminID); err != nil {
		if !isNotFound(err) {
			return pick.State{}, fmt.Errorf("get admin setting: %w", err)
		}
	} else if setting.Value.Valid {
		state.AdminID = setting.Value.String
	}

	return state, nil
}

func (r *PickStore) Save(ctx context.Context, state pick.State) (err error) {
	ctx, span := startQuerySpan(ctx, "PickStore.Save", insertLeaguePicksQuery)
	defer func() { endQuerySpan(span, err) }()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save picks: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, deleteLeaguePicksQuery); err != nil {
		return fmt.Errorf("clear league picks: %w", err)
	}

	leagues, userIDs, texts := stateToColumns(state)
	if len(userIDs) > 0 {
		if _, err := tx.ExecContext(ctx, insertLeaguePicksQuery, pq.StringArray(leagues), pq.StringArray(userIDs), pq.StringArray(texts)); err != nil {
			return fmt.Errorf("insert league picks: %w", err)
		}
	}

	admin := nullableString(state.AdminID)
	if _, err := tx.ExecContext(ctx, upsertSettingQuery, settingAdminID, admin); err != nil {
		return fmt.Errorf("upsert admin setting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save picks: %w", err)
	}
	return nil
}

func rowsToState(rows []leaguePickTableModel) (pick.State, error) {
	state := pick.NewState()
	for _, row := range rows {
		league, err := pick.ParseLeague(row.League)
		if err != nil {
			return pick.State{}, fmt.Errorf("league_picks row user=%s: %w", row.UserID, err)
		}
		state.Ledger(league)[row.UserID] = row.PickText
	}
	return state, nil
}

// stateToColumns flattens both ledgers into parallel arrays for unnest.
func stateToColumns(state pick.State) ([]string, []string, []string) {
	size := len(state.NFL) + len(state.CFB)
	leagues := make([]string, 0, size)
	userIDs := make([]string, 0, size)
	texts := make([]string, 0, size)
	for _, league := range pick.Leagues() {
		ledger := state.Ledger(league)
		for _, userID := range ledger.UserIDs() {
			leagues = append(leagues, league.String())
			userIDs = append(userIDs, userID)
			texts = append(texts, ledger[userID])
		}
	}
	return leagues, userIDs, texts
}

func nullableString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
