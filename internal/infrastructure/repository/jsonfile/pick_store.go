package jsonfile

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ahlev/Parlaybot/internal/domain/pick"
	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
)

const (
	NFLFileName   = "nfl_picks.json"
	CFBFileName   = "cfb_picks.json"
	AdminFileName = "admin.json"
)

type adminFileModel struct {
	AdminID string `json:"admin_id"`
}

// PickStore keeps one JSON object per league (user id -> pick text) plus the
// administrator reference in a directory.
type PickStore struct {
	mu  sync.Mutex
	dir string
}

func NewPickStore(dir string) *PickStore {
	if dir == "" {
		dir = "."
	}
	return &PickStore{dir: dir}
}

func (s *PickStore) Dir() string {
	return s.dir
}

// Load reads every file. A missing file is an empty ledger, not an error.
func (s *PickStore) Load(_ context.Context) (pick.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := pick.NewState()
	for _, league := range pick.Leagues() {
		ledger, err := s.readLedger(ledgerFileName(league))
		if err != nil {
			return pick.State{}, err
		}
		if league == pick.LeagueNFL {
			state.NFL = ledger
		} else {
			state.CFB = ledger
		}
	}

	var admin adminFileModel
	ok, err := s.readJSON(AdminFileName, &admin)
	if err != nil {
		return pick.State{}, err
	}
	if ok {
		state.AdminID = admin.AdminID
	}

	return state, nil
}

// Save rewrites every file in full. All payloads are written and synced to
// temp files first; targets are only replaced once every temp file exists.
func (s *PickStore) Save(_ context.Context, state pick.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return crerr.Wrapf(err, "create data dir %q", s.dir)
	}

	payloads := make(map[string]any, 3)
	for _, league := range pick.Leagues() {
		ledger := state.Ledger(league)
		if ledger == nil {
			ledger = pick.Ledger{}
		}
		payloads[ledgerFileName(league)] = ledger
	}
	payloads[AdminFileName] = adminFileModel{AdminID: state.AdminID}

	staged := make(map[string]string, len(payloads))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}

	for name, payload := range payloads {
		tmp, err := s.stage(name, payload)
		if err != nil {
			cleanup()
			return err
		}
		staged[name] = tmp
	}

	for _, name := range []string{NFLFileName, CFBFileName, AdminFileName} {
		if err := os.Rename(staged[name], filepath.Join(s.dir, name)); err != nil {
			cleanup()
			return crerr.Wrapf(err, "replace %s", name)
		}
		delete(staged, name)
	}

	return nil
}

func (s *PickStore) stage(name string, payload any) (string, error) {
	body, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		return "", crerr.Wrapf(err, "encode %s", name)
	}

	f, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", crerr.Wrapf(err, "create temp file for %s", name)
	}
	tmp := f.Name()

	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", crerr.Wrapf(err, "write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", crerr.Wrapf(err, "sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", crerr.Wrapf(err, "close %s", tmp)
	}

	return tmp, nil
}

func (s *PickStore) readLedger(name string) (pick.Ledger, error) {
	var ledger pick.Ledger
	if _, err := s.readJSON(name, &ledger); err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = pick.Ledger{}
	}
	return ledger, nil
}

// readJSON reports false when the file does not exist or is empty.
func (s *PickStore) readJSON(name string, out any) (bool, error) {
	path := filepath.Join(s.dir, name)
	raw, err := os.ReadFile(path)
	if crerr.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, crerr.Wrapf(err, "read %s", path)
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := sonic.ConfigStd.Unmarshal(raw, out); err != nil {
		return false, crerr.Wrapf(err, "decode %s", path)
	}
	return true, nil
}

func ledgerFileName(league pick.League) string {
	if league == pick.LeagueCFB {
		return CFBFileName
	}
	return NFLFileName
}
