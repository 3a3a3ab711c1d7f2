package postgres

import (
	"database/sql"
	"time"
)

type leaguePickTableModel struct {
	League    string    `db:"league"`
	UserID    string    `db:"user_id"`
	PickText  string    `db:"pick_text"`
	UpdatedAt time.Time `db:"updated_at"`
}

type botSettingTableModel struct {
	Key       string         `db:"key"`
	Value     sql.NullString `db:"value"`
	UpdatedAt time.Time      `db:"updated_at"`
}

const settingAdminID = "admin_id"
