// Package jsonfile is the default storage backend: two pretty-printed JSON
// arrays (users.json, expenses.json) under a data directory. Mutations take
// a per-collection lock and rewrite the whole file through a temp-file
// rename, so a crash mid-write never leaves a truncated collection behind.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"expensed/internal/core"
)

const (
	usersFile    = "users.json"
	expensesFile = "expenses.json"
)

// Store implements storage.Repository over flat JSON files.
type Store struct {
	dir string

	usersMu    sync.RWMutex
	expensesMu sync.RWMutex
}

// New creates the data directory and seeds empty collections for any file
// that does not exist yet.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", core.ErrStorage, err)
	}
	s := &Store{dir: dir}
	for _, name := range []string{usersFile, expensesFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := writeFileAtomic(path, []byte("[]")); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %v", core.ErrStorage, name, err)
		}
	}
	return s, nil
}

func (s *Store) Close() error { return nil }

// CreateUser appends the user, rejecting duplicate usernames.
func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return err
	}
	for _, existing := range users {
		if existing.Username == u.Username {
			return fmt.Errorf("%w: username %q", core.ErrConflict, u.Username)
		}
	}
	users = append(users, u)
	if err := s.writeUsers(users); err != nil {
		return err
	}
	slog.DebugContext(ctx, "user persisted", "user_id", u.ID)
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	users, err := s.readUsers()
	if err != nil {
		return core.User{}, err
	}
	for _, u := range users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("%w: user", core.ErrNotFound)
}

func (s *Store) GetUserByID(_ context.Context, id string) (core.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	users, err := s.readUsers()
	if err != nil {
		return core.User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("%w: user", core.ErrNotFound)
}

func (s *Store) InsertExpense(ctx context.Context, e core.Expense) error {
	s.expensesMu.Lock()
	defer s.expensesMu.Unlock()

	expenses, err := s.readExpenses()
	if err != nil {
		return err
	}
	expenses = append(expenses, e)
	if err := s.writeExpenses(expenses); err != nil {
		return err
	}
	slog.DebugContext(ctx, "expense persisted", "expense_id", e.ID, "owner_id", e.OwnerID)
	return nil
}

// ListExpensesByOwner returns the owner's records in insertion order.
func (s *Store) ListExpensesByOwner(_ context.Context, ownerID string) ([]core.Expense, error) {
	s.expensesMu.RLock()
	defer s.expensesMu.RUnlock()

	expenses, err := s.readExpenses()
	if err != nil {
		return nil, err
	}
	out := make([]core.Expense, 0)
	for _, e := range expenses {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) GetExpenseByOwner(_ context.Context, ownerID, expenseID string) (core.Expense, error) {
	s.expensesMu.RLock()
	defer s.expensesMu.RUnlock()

	expenses, err := s.readExpenses()
	if err != nil {
		return core.Expense{}, err
	}
	for _, e := range expenses {
		if e.ID == expenseID && e.OwnerID == ownerID {
			return e, nil
		}
	}
	return core.Expense{}, fmt.Errorf("%w: expense", core.ErrNotFound)
}

// ReplaceExpense overwrites the stored record matching id+owner.
func (s *Store) ReplaceExpense(_ context.Context, e core.Expense) error {
	s.expensesMu.Lock()
	defer s.expensesMu.Unlock()

	expenses, err := s.readExpenses()
	if err != nil {
		return err
	}
	for i := range expenses {
		if expenses[i].ID == e.ID && expenses[i].OwnerID == e.OwnerID {
			expenses[i] = e
			return s.writeExpenses(expenses)
		}
	}
	return fmt.Errorf("%w: expense", core.ErrNotFound)
}

func (s *Store) DeleteExpense(_ context.Context, ownerID, expenseID string) error {
	s.expensesMu.Lock()
	defer s.expensesMu.Unlock()

	expenses, err := s.readExpenses()
	if err != nil {
		return err
	}
	kept := expenses[:0]
	found := false
	for _, e := range expenses {
		if e.ID == expenseID && e.OwnerID == ownerID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return fmt.Errorf("%w: expense", core.ErrNotFound)
	}
	return s.writeExpenses(kept)
}

// userRecord is the on-disk shape of a user. core.User hides the password
// hash from JSON, so persistence needs its own mapping.
type userRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (s *Store) readUsers() ([]core.User, error) {
	var records []userRecord
	if err := readJSON(filepath.Join(s.dir, usersFile), &records); err != nil {
		return nil, err
	}
	users := make([]core.User, len(records))
	for i, r := range records {
		users[i] = core.User(r)
	}
	return users, nil
}

func (s *Store) writeUsers(users []core.User) error {
	records := make([]userRecord, len(users))
	for i, u := range users {
		records[i] = userRecord(u)
	}
	return writeJSON(filepath.Join(s.dir, usersFile), records)
}

func (s *Store) readExpenses() ([]core.Expense, error) {
	var expenses []core.Expense
	if err := readJSON(filepath.Join(s.dir, expensesFile), &expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) writeExpenses(expenses []core.Expense) error {
	return writeJSON(filepath.Join(s.dir, expensesFile), expenses)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", core.ErrStorage, filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", core.ErrStorage, filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", core.ErrStorage, filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes to a sibling temp file and renames it over the
// target, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", core.ErrStorage, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", core.ErrStorage, filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", core.ErrStorage, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %v", core.ErrStorage, filepath.Base(path), err)
	}
	return nil
}
