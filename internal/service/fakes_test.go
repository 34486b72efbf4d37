package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/triage-service/internal/domain"
)

// memItemRepo is an in-memory WorkItemRepository for service tests.
type memItemRepo struct {
	mu         sync.Mutex
	items      map[string]*domain.WorkItem
	saveErr    error
	failSaveID string
	gets       int
	daily      []domain.InflowPoint
	pairs      map[string]map[string]int
}

func newMemItemRepo(items ...*domain.WorkItem) *memItemRepo {
	repo := &memItemRepo{items: make(map[string]*domain.WorkItem)}
	for _, item := range items {
		repo.put(item)
	}
	return repo
}

func (r *memItemRepo) put(item *domain.WorkItem) {
	clone := *item
	clone.Tags = append([]string(nil), item.Tags...)
	r.items[item.ID] = &clone
}

func (r *memItemRepo) get(id string) *domain.WorkItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil
	}
	clone := *item
	clone.Tags = append([]string(nil), item.Tags...)
	return &clone
}

func (r *memItemRepo) GetByID(_ context.Context, id string) (*domain.WorkItem, error) {
	r.mu.Lock()
	r.gets++
	r.mu.Unlock()
	if item := r.get(id); item != nil {
		return item, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *memItemRepo) GetOpenItems(_ context.Context) ([]domain.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.WorkItem
	for _, item := range r.items {
		if !item.Status.Terminal() {
			result = append(result, *item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *memItemRepo) Save(_ context.Context, item *domain.WorkItem) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.failSaveID != "" && item.ID == r.failSaveID {
		return errors.New("write rejected")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.put(item)
	return nil
}

func (r *memItemRepo) FindDuplicateCandidates(_ context.Context, contentHash string, since time.Time, excludeID string) ([]domain.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.WorkItem
	for _, item := range r.items {
		if item.ID == excludeID || item.ContentHash != contentHash || item.Status.Terminal() {
			continue
		}
		if item.CreatedAt.Before(since) {
			continue
		}
		result = append(result, *item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *memItemRepo) HasChildren(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ParentID != nil && *item.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *memItemRepo) CountOpen(_ context.Context) (int, error) {
	open, _ := r.GetOpenItems(context.Background())
	return len(open), nil
}

func (r *memItemRepo) CountOpenByAssignee(_ context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[string]int)
	for _, item := range r.items {
		if item.AssigneeID != nil && !item.Status.Terminal() {
			result[*item.AssigneeID]++
		}
	}
	return result, nil
}

func (r *memItemRepo) DailyCreatedCounts(_ context.Context, _ time.Time) ([]domain.InflowPoint, error) {
	return r.daily, nil
}

func (r *memItemRepo) CompletedPairCounts(_ context.Context) (map[string]map[string]int, error) {
	if r.pairs == nil {
		return map[string]map[string]int{}, nil
	}
	return r.pairs, nil
}

// memAgentRepo is an in-memory AgentRepository.
type memAgentRepo struct {
	agents []domain.Agent
}

func (r *memAgentRepo) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	for _, agent := range r.agents {
		if agent.ID == id {
			a := agent
			return &a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memAgentRepo) ListActive(_ context.Context) ([]domain.Agent, error) {
	var result []domain.Agent
	for _, agent := range r.agents {
		if agent.Active {
			result = append(result, agent)
		}
	}
	return result, nil
}

// stubScorer is a canned AffinityScorer.
type stubScorer struct {
	scores    map[string]float64
	scoreErr  error
	retrained bool
	retrainCh chan struct{}
	retrainEr error
}

func (s *stubScorer) Score(_ context.Context, _, agentID string) (float64, error) {
	if s.scoreErr != nil {
		return 0, s.scoreErr
	}
	return s.scores[agentID], nil
}

func (s *stubScorer) Retrain(_ context.Context) error {
	s.retrained = true
	if s.retrainCh != nil {
		close(s.retrainCh)
	}
	return s.retrainEr
}

// stubForecaster is a canned Forecaster.
type stubForecaster struct {
	forecast    []domain.InflowPoint
	forecastErr error
	capacity    float64
	capacityErr error
}

func (f *stubForecaster) ForecastInflow(_ context.Context, _ int) ([]domain.InflowPoint, error) {
	return f.forecast, f.forecastErr
}

func (f *stubForecaster) Capacity(_ context.Context) (float64, error) {
	return f.capacity, f.capacityErr
}
