package service

import (
	"context"
	"errors"
	"sync"

	"github.com/bitlabs/talentstream-proctor/internal/crm"
	"github.com/bitlabs/talentstream-proctor/internal/model"
)

type fakeBackend struct {
	mu       sync.Mutex
	def      *model.TestDefinition
	getErr   error
	saveErr  error
	results  []model.TestResultRecord
	badges   []model.SkillBadgeRecord
	tokens   []string
	getCalls int
}

func (f *fakeBackend) GetTestByName(_ context.Context, token, testName string) (*model.TestDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	f.tokens = append(f.tokens, token)
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.def == nil {
		return nil, errors.New("no definition")
	}
	def := *f.def
	def.Questions = append([]model.Question(nil), f.def.Questions...)
	if def.TestName == "" {
		def.TestName = testName
	}
	return &def, nil
}

func (f *fakeBackend) SaveTestResult(_ context.Context, token string, _ int, rec model.TestResultRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.results = append(f.results, rec)
	return f.saveErr
}

func (f *fakeBackend) SaveSkillBadge(_ context.Context, token string, rec model.SkillBadgeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.badges = append(f.badges, rec)
	return f.saveErr
}

func (f *fakeBackend) saved() (results, badges int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results), len(f.badges)
}

type crmCall struct {
	ZohoUserID string
	TestName   string
	Result     model.ScoreResult
}

type fakeCRM struct {
	mu    sync.Mutex
	calls []crmCall
	block bool
}

func (f *fakeCRM) Sync(ctx context.Context, _, zohoUserID, testName string, res model.ScoreResult) crm.Report {
	f.mu.Lock()
	f.calls = append(f.calls, crmCall{ZohoUserID: zohoUserID, TestName: testName, Result: res})
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return crm.Report{Attempts: 1, Outcome: crm.OutcomeCancelled}
	}
	return crm.Report{Attempts: 1, Outcome: crm.OutcomeSynced}
}

func (f *fakeCRM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type published struct {
	RoutingKey string
	Payload    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(_ context.Context, routingKey string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{RoutingKey: routingKey, Payload: v})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.RoutingKey
	}
	return out
}
