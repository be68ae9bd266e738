package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// ==================== task repository ====================

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*domain.Task)}
}

func (r *fakeTaskRepo) Create(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.RequesterID == task.RequesterID && t.Status == domain.TaskStatusPending {
			t.Status = domain.TaskStatusCancelled
		}
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, errors.New("task not found")
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) GetLatestByRequester(_ context.Context, requesterID string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Task
	for _, t := range r.tasks {
		if t.RequesterID != requesterID {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeTaskRepo) ClaimDueBatch(_ context.Context, limit int) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []*domain.Task
	for _, t := range r.tasks {
		if t.Status == domain.TaskStatusPending {
			pending = append(pending, t)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]domain.Task, 0, len(pending))
	for _, t := range pending {
		t.Status = domain.TaskStatusProcessing
		t.UpdatedAt = time.Now()
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTaskRepo) ExpireStale(_ context.Context, age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-age)
	var n int64
	for _, t := range r.tasks {
		if t.Status == domain.TaskStatusPending && t.CreatedAt.Before(cutoff) {
			t.Status = domain.TaskStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeTaskRepo) ReclaimStuck(_ context.Context, age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-age)
	var n int64
	for _, t := range r.tasks {
		if t.Status == domain.TaskStatusProcessing && t.UpdatedAt.Before(cutoff) {
			t.Status = domain.TaskStatusPending
			n++
		}
	}
	return n, nil
}

func (r *fakeTaskRepo) Complete(_ context.Context, id string, fullAnswer domain.JSONB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return errors.New("task not found")
	}
	now := time.Now()
	t.Status = domain.TaskStatusCompleted
	t.FullAnswer = fullAnswer
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

func (r *fakeTaskRepo) RetryOrExpire(_ context.Context, id string) (domain.TaskStatus, error) {
	return r.bump(id)
}

func (r *fakeTaskRepo) Fail(_ context.Context, id string) (domain.TaskStatus, error) {
	return r.bump(id)
}

func (r *fakeTaskRepo) bump(id string) (domain.TaskStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return "", errors.New("task not found")
	}
	t.RetryCount++
	if t.RetryCount >= t.MaxRetries {
		t.Status = domain.TaskStatusExpired
	} else {
		t.Status = domain.TaskStatusPending
	}
	t.UpdatedAt = time.Now()
	return t.Status, nil
}

func (r *fakeTaskRepo) get(id string) *domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tasks[id]
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// ==================== usage / knowledge / settings ====================

type fakeUsageRepo struct {
	mu      sync.Mutex
	records []domain.UsageRecord
}

func (r *fakeUsageRepo) Append(_ context.Context, record *domain.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeUsageRepo) TotalsByRequester(_ context.Context, requesterID string) (*domain.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := &domain.UsageRecord{RequesterID: requesterID}
	for _, rec := range r.records {
		if rec.RequesterID != requesterID {
			continue
		}
		totals.PromptTokens += rec.PromptTokens
		totals.CompletionTokens += rec.CompletionTokens
		totals.CostUSD += rec.CostUSD
	}
	return totals, nil
}

type fakeKnowledgeRepo struct {
	entries []domain.KnowledgeEntry
}

func (r *fakeKnowledgeRepo) GetActive(_ context.Context) ([]domain.KnowledgeEntry, error) {
	return r.entries, nil
}

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings map[string]*domain.SystemSetting
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: make(map[string]*domain.SystemSetting)}
}

func (r *fakeSettingsRepo) Get(_ context.Context, key string) (*domain.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[key]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSettingsRepo) Set(_ context.Context, setting *domain.SystemSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *setting
	r.settings[setting.Key] = &cp
	return nil
}

func (r *fakeSettingsRepo) GetByCategory(_ context.Context, category string) ([]domain.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SystemSetting
	for _, s := range r.settings {
		if s.Category == category {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSettingsRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.settings, key)
	return nil
}

type fakeRateSource struct {
	rate float64
	err  error
}

func (s *fakeRateSource) CurrentRate(_ context.Context) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.rate, nil
}

// ==================== enrichment collaborators ====================

type fakeRelay struct {
	mu      sync.Mutex
	records map[domain.DataField][]domain.JSONB
	errs    map[domain.DataField]error
	calls   int
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		records: make(map[domain.DataField][]domain.JSONB),
		errs:    make(map[domain.DataField]error),
	}
}

func (f *fakeRelay) QueryByCategory(_ context.Context, category domain.DataField, _ string, _ map[string]string, _ time.Duration) ([]domain.JSONB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[category]; err != nil {
		return nil, err
	}
	return f.records[category], nil
}

func (f *fakeRelay) Publish(_ context.Context, _ domain.JSONB, _ time.Duration) ([]ports.PublishResult, error) {
	return nil, nil
}

type fakeBalance struct {
	entries []domain.BalanceEntry
	err     error
}

func (f *fakeBalance) BatchBalances(_ context.Context, addresses []string, _ time.Duration) ([]domain.BalanceEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

// ==================== completion ====================

// fakeCompleter replays scripted stage outputs in order.
type fakeCompleter struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	usage     domain.TokenUsage
	calls     int
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (*ports.CompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	text := ""
	if i < len(f.responses) {
		text = f.responses[i]
	}
	return &ports.CompletionResult{Text: text, Usage: f.usage}, nil
}

func (f *fakeCompleter) Model() string { return "fake-model" }

// ==================== delivery collaborators ====================

type fakeRegistry struct {
	mu     sync.Mutex
	live   map[string]bool
	pushed []interface{}
	err    error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{live: make(map[string]bool)}
}

func (f *fakeRegistry) IsLive(requesterID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[requesterID]
}

func (f *fakeRegistry) PushTo(_ string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pushed = append(f.pushed, payload)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []ports.Notification
	err   error
	reply ports.NotifyResult
}

func (f *fakeNotifier) Notify(_ context.Context, _ string, n ports.Notification) (*ports.NotifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, n)
	reply := f.reply
	return &reply, nil
}
