package state

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// FileName is the state document inside agents/<adw_id>/.
	FileName = "adw_state.json"
	// HistoryFileName records which stage wrote each save.
	HistoryFileName = "state_history.log"
)

// Store reads and writes state documents under an agents directory.
type Store struct {
	root string
	now  func() time.Time
}

// NewStore creates a store rooted at agentsDir.
func NewStore(agentsDir string) *Store {
	return &Store{root: agentsDir, now: time.Now}
}

// Root returns the agents directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the per-run directory for adwID.
func (s *Store) Dir(adwID string) string {
	return filepath.Join(s.root, adwID)
}

// Path returns the state file location for adwID.
func (s *Store) Path(adwID string) string {
	return filepath.Join(s.Dir(adwID), FileName)
}

// Exists reports whether a state file exists for adwID.
func (s *Store) Exists(adwID string) bool {
	info, err := os.Stat(s.Path(adwID))

	return err == nil && !info.IsDir()
}

// Load reads the state for adwID. It never creates files.
func (s *Store) Load(adwID string) (*WorkflowState, error) {
	if err := checkID(adwID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(adwID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, adwID)
		}

		return nil, fmt.Errorf("read state: %w", err)
	}

	st, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if st.ADWID != adwID {
		return nil, fmt.Errorf("%w: file has %q, want %q", ErrMismatchedID, st.ADWID, adwID)
	}

	return st, nil
}

// Save writes st atomically and appends a history line tagged with stage.
// Saving unchanged state rewrites identical bytes.
func (s *Store) Save(st *WorkflowState, stage string) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if err := checkID(st.ADWID); err != nil {
		return err
	}

	data, err := st.Encode()
	if err != nil {
		return err
	}

	dir := s.Dir(st.ADWID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	path := s.Path(st.ADWID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			slog.Warn("failed to clean up temp file after rename error", "path", tmpPath, "error", removeErr)
		}

		return fmt.Errorf("rename state: %w", err)
	}

	return s.appendHistory(st, stage, data)
}

// HistoryEntry is one line of state_history.log.
type HistoryEntry struct {
	Time   time.Time
	Stage  string
	Phase  Phase
	Digest string
}

// History returns the save log for adwID, oldest first.
func (s *Store) History(adwID string) ([]HistoryEntry, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(adwID), HistoryFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read history: %w", err)
	}

	var entries []HistoryEntry
	for _, line := range bytes.Split(data, []byte("\n")) {
		fields := strings.Fields(string(line))
		if len(fields) != 4 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, fields[0])
		if err != nil {
			continue
		}
		phase := Phase(fields[2])
		if fields[2] == "-" {
			phase = PhaseNone
		}
		entries = append(entries, HistoryEntry{Time: ts, Stage: fields[1], Phase: phase, Digest: fields[3]})
	}

	return entries, nil
}

func (s *Store) appendHistory(st *WorkflowState, stage string, data []byte) error {
	if stage == "" {
		stage = "unknown"
	}
	phase := string(st.Phase)
	if phase == "" {
		phase = "-"
	}
	sum := sha256.Sum256(data)
	line := fmt.Sprintf("%s %s %s %s\n",
		s.now().UTC().Format(time.RFC3339), strings.ReplaceAll(stage, " ", "_"), phase, hex.EncodeToString(sum[:6]))

	f, err := os.OpenFile(filepath.Join(s.Dir(st.ADWID), HistoryFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()

		return fmt.Errorf("write history: %w", err)
	}

	return f.Close()
}

// checkID rejects IDs that would escape the agents directory.
func checkID(adwID string) error {
	if adwID == "" {
		return fmt.Errorf("%w: adw_id", ErrMissingField)
	}
	if strings.ContainsAny(adwID, `/\`) || adwID == "." || adwID == ".." {
		return fmt.Errorf("invalid adw_id %q", adwID)
	}

	return nil
}
