// Package raffle runs the promo raffle: a file-backed entry pool, a
// countdown round, and an operator-triggered draw. State lives in one JSON
// document rewritten atomically, so a crash never leaves a half-written
// pool behind.
package raffle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one paid raffle ticket.
type Entry struct {
	Wallet    string `json:"wallet"`
	TxID      string `json:"txid"`
	Amount    int64  `json:"amount"`
	EnteredAt int64  `json:"enteredAt"`
}

// state is the persisted round document. roundEndsAt is epoch milliseconds.
type state struct {
	RoundID     string  `json:"roundId"`
	EntryPool   []Entry `json:"entryPool"`
	Winner      *string `json:"winner"`
	RoundEndsAt int64   `json:"roundEndsAt"`
}

// Draw/entry refusal reasons.
var (
	ErrDuplicateEntry = errors.New("raffle: tx id already entered")
	ErrRoundOpen      = errors.New("raffle: round still open")
	ErrAlreadyDrawn   = errors.New("raffle: winner already drawn")
	ErrEmptyPool      = errors.New("raffle: no entries")
)

// Store owns the raffle state file.
type Store struct {
	path string
	now  func() time.Time
	rng  *rand.Rand

	mu sync.Mutex
	st state
}

// NewStore opens (or seeds) the state file at path.
func NewStore(path string, now func() time.Time) (*Store, error) {
	if now == nil {
		now = time.Now
	}
	s := &Store{
		path: path,
		now:  now,
		rng:  rand.New(rand.NewSource(now().UnixNano())),
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &s.st); err != nil {
			return nil, fmt.Errorf("raffle: corrupt state file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		s.st = state{
			RoundID:     uuid.NewString(),
			EntryPool:   []Entry{},
			RoundEndsAt: now().Add(7 * 24 * time.Hour).UnixMilli(),
		}
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("raffle: read state file: %w", err)
	}
	return s, nil
}

// AddEntry appends a ticket, refusing tx ids seen before in this round.
func (s *Store) AddEntry(wallet, txid string, amount int64) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.st.EntryPool {
		if e.TxID == txid {
			return Entry{}, ErrDuplicateEntry
		}
	}

	entry := Entry{
		Wallet:    wallet,
		TxID:      txid,
		Amount:    amount,
		EnteredAt: s.now().UnixMilli(),
	}
	s.st.EntryPool = append(s.st.EntryPool, entry)
	if err := s.persistLocked(); err != nil {
		s.st.EntryPool = s.st.EntryPool[:len(s.st.EntryPool)-1]
		return Entry{}, err
	}
	return entry, nil
}

// Status is the public round snapshot.
type Status struct {
	RoundID     string   `json:"roundId"`
	Entries     []string `json:"entries"`
	CountdownMS int64    `json:"countdown"`
	Winner      *string  `json:"winner"`
}

// Status reports the current round. Countdown clamps at zero once the
// round is over.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets := make([]string, len(s.st.EntryPool))
	for i, e := range s.st.EntryPool {
		wallets[i] = e.Wallet
	}
	countdown := s.st.RoundEndsAt - s.now().UnixMilli()
	if countdown < 0 {
		countdown = 0
	}
	return Status{
		RoundID:     s.st.RoundID,
		Entries:     wallets,
		CountdownMS: countdown,
		Winner:      s.st.Winner,
	}
}

// Draw picks a uniform random winner. Refused while the round is open,
// after a winner exists, or with an empty pool.
func (s *Store) Draw() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.now().UnixMilli() < s.st.RoundEndsAt {
		return "", ErrRoundOpen
	}
	if s.st.Winner != nil {
		return "", ErrAlreadyDrawn
	}
	if len(s.st.EntryPool) == 0 {
		return "", ErrEmptyPool
	}

	winner := s.st.EntryPool[s.rng.Intn(len(s.st.EntryPool))].Wallet
	s.st.Winner = &winner
	if err := s.persistLocked(); err != nil {
		s.st.Winner = nil
		return "", err
	}
	return winner, nil
}

// Reset starts a fresh round of the given duration, clearing the pool and
// the winner.
func (s *Store) Reset(duration time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.st
	s.st = state{
		RoundID:     uuid.NewString(),
		EntryPool:   []Entry{},
		RoundEndsAt: s.now().Add(duration).UnixMilli(),
	}
	if err := s.persistLocked(); err != nil {
		s.st = prev
		return "", err
	}
	return s.st.RoundID, nil
}

// persistLocked writes the document via tmp file + rename. Callers hold mu.
func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(&s.st, "", "  ")
	if err != nil {
		return fmt.Errorf("raffle: marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("raffle: create state dir: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("raffle: write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("raffle: replace state: %w", err)
	}
	return nil
}
