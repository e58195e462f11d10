package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/mcdev12/contest/go/internal/models"
)

// MemoryRepository keeps rounds in process memory. It backs local runs and
// tests; nothing survives a restart.
type MemoryRepository struct {
	mu     sync.RWMutex
	rounds map[string]*memoryRound
	seq    int64
}

type memoryRound struct {
	round models.Round
	seq   int64
	runs  []models.Run
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rounds: make(map[string]*memoryRound),
	}
}

func (r *MemoryRepository) InsertRound(ctx context.Context, round models.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rounds[round.ID]; exists {
		return ErrInvalidRound
	}

	r.seq++
	round.Runs = nil
	r.rounds[round.ID] = &memoryRound{round: round, seq: r.seq}
	return nil
}

func (r *MemoryRepository) GetRoundSecret(ctx context.Context, roundID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.rounds[roundID]
	if !ok {
		return "", ErrRoundNotFound
	}
	return stored.round.Secret, nil
}

func (r *MemoryRepository) InsertRun(ctx context.Context, run models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rounds[run.RoundID]
	if !ok {
		return ErrRoundNotFound
	}
	stored.runs = append(stored.runs, run)
	return nil
}

func (r *MemoryRepository) GetRound(ctx context.Context, roundID string) (*models.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.rounds[roundID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	round := stored.public()
	return &round, nil
}

func (r *MemoryRepository) ListRounds(ctx context.Context, limit int) ([]models.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*memoryRound, 0, len(r.rounds))
	for _, stored := range r.rounds {
		all = append(all, stored)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].round.CreatedAt.Equal(all[j].round.CreatedAt) {
			return all[i].round.CreatedAt.After(all[j].round.CreatedAt)
		}
		return all[i].seq > all[j].seq
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	rounds := make([]models.Round, 0, len(all))
	for _, stored := range all {
		rounds = append(rounds, stored.public())
	}
	return rounds, nil
}

// public copies the round without its secret, runs ordered for display.
func (m *memoryRound) public() models.Round {
	round := m.round
	round.Secret = ""
	round.Runs = make([]models.Run, len(m.runs))
	copy(round.Runs, m.runs)
	sortRuns(round.Runs)
	return round
}

// sortRuns orders by questioner descending, then by report time.
func sortRuns(runs []models.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Questioner != runs[j].Questioner {
			return runs[i].Questioner > runs[j].Questioner
		}
		return runs[i].ReportedAt.Before(runs[j].ReportedAt)
	})
}
