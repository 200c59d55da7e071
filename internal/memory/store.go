// Package memory persists per-(user, chat) conversation logs and turn
// counters as JSON files under a configurable root.
package memory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"lexgate/internal/domain/models"
)

// Store is the file-backed rolling-window message log plus the per-chat
// interaction counter.
//
// Layout:
//
//	<root>/<user_id>/<chat_id>.json        ordered message log
//	<root>/<user_id>/<chat_id>_turns.json  turn counter
type Store struct {
	root   string
	locks  *KeyMutex
	logger *slog.Logger
}

func NewStore(root string, logger *slog.Logger) *Store {
	return &Store{
		root:   root,
		locks:  NewKeyMutex(),
		logger: logger,
	}
}

// Lock serializes turns for one (user, chat); returns the unlock function.
func (s *Store) Lock(userID, chatID string) func() {
	return s.locks.Lock(userID, chatID)
}

// LoadContext returns all stored messages in insertion order. A missing file
// is an empty conversation, not an error.
func (s *Store) LoadContext(userID, chatID string) ([]models.Message, error) {
	data, err := os.ReadFile(s.logPath(userID, chatID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chat log: %w", err)
	}

	var messages []models.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		// A corrupt log is non-fatal for reads: start fresh but keep the
		// file for inspection.
		s.logger.Warn("corrupt chat log ignored", "user_id", userID, "chat_id", chatID, "error", err)
		return nil, nil
	}
	return messages, nil
}

// SaveInit appends the tenant's silent initialization entry. Only meaningful
// on a fresh chat; callers check the log is empty first.
func (s *Store) SaveInit(userID, chatID, content string) error {
	messages := []models.Message{{
		Role:      models.RoleSystemInit,
		Content:   content,
		Timestamp: time.Now(),
	}}
	return s.writeLog(userID, chatID, messages)
}

// SaveTurn appends the user question and assistant answer (and, when annex
// entries are present, a system-annex entry), then truncates the log from
// the front to at most 2×maxHistory entries.
//
// annexText, when non-empty, becomes the annex entry's content so follow-up
// turns replay the verbose article text to the model; otherwise the entries
// are serialized as JSON. The structured entries ride along either way.
func (s *Store) SaveTurn(userID, chatID, question, answer string, usage *models.TurnUsage, annexText string, annex []models.AnnexEntry, maxHistory int) error {
	messages, err := s.LoadContext(userID, chatID)
	if err != nil {
		return err
	}

	now := time.Now()
	messages = append(messages,
		models.Message{Role: models.RoleUser, Content: question, Timestamp: now},
		models.Message{Role: models.RoleAssistant, Content: answer, Usage: usage, Timestamp: now},
	)

	if len(annex) > 0 {
		content := annexText
		if content == "" {
			serialized, err := json.Marshal(annex)
			if err != nil {
				return fmt.Errorf("serialize annex: %w", err)
			}
			content = string(serialized)
		}
		messages = append(messages, models.Message{
			Role:      models.RoleSystemAnnex,
			Content:   content,
			Annex:     annex,
			Timestamp: now,
		})
	}

	if maxHistory > 0 && len(messages) > 2*maxHistory {
		messages = messages[len(messages)-2*maxHistory:]
	}

	return s.writeLog(userID, chatID, messages)
}

// LoadTurnCount returns the chat's turn counter; zero when missing.
func (s *Store) LoadTurnCount(userID, chatID string) (int, error) {
	data, err := os.ReadFile(s.counterPath(userID, chatID))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read turn counter: %w", err)
	}

	var counter struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(data, &counter); err != nil {
		s.logger.Warn("corrupt turn counter ignored", "user_id", userID, "chat_id", chatID, "error", err)
		return 0, nil
	}
	return counter.Count, nil
}

// SaveTurnCount persists the chat's turn counter.
func (s *Store) SaveTurnCount(userID, chatID string, n int) error {
	payload, err := json.Marshal(struct {
		Count     int       `json:"count"`
		UpdatedAt time.Time `json:"updated_at"`
	}{Count: n, UpdatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("serialize turn counter: %w", err)
	}
	return s.atomicWrite(s.counterPath(userID, chatID), payload)
}

// InteractionStatus derives the per-chat accounting against the tenant's
// limits: near-limit when remaining ≤ warningThreshold, limit reached when
// current ≥ max.
func (s *Store) InteractionStatus(userID, chatID string, max, warningThreshold int) (*models.InteractionStatus, error) {
	current, err := s.LoadTurnCount(userID, chatID)
	if err != nil {
		return nil, err
	}

	remaining := max - current
	if remaining < 0 {
		remaining = 0
	}
	return &models.InteractionStatus{
		Current:      current,
		Max:          max,
		Remaining:    remaining,
		LimitReached: current >= max,
		NearLimit:    remaining <= warningThreshold,
	}, nil
}

func (s *Store) writeLog(userID, chatID string, messages []models.Message) error {
	payload, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize chat log: %w", err)
	}
	return s.atomicWrite(s.logPath(userID, chatID), payload)
}

// atomicWrite writes via a temp file and rename so a crash never leaves a
// half-written log.
func (s *Store) atomicWrite(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create memory directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) logPath(userID, chatID string) string {
	return filepath.Join(s.root, sanitize(userID), sanitize(chatID)+".json")
}

func (s *Store) counterPath(userID, chatID string) string {
	return filepath.Join(s.root, sanitize(userID), sanitize(chatID)+"_turns.json")
}

// sanitize keeps ids usable as path segments.
func sanitize(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '@':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
