package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"adcraft/internal/domain"
	"adcraft/internal/storage"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

type transition struct {
	status    domain.JobStatus
	errMsg    string
	resultKey string
	// resultStored records whether the result object existed at the moment
	// this transition was written.
	resultStored bool
}

type recordingRepo struct {
	store       *memStore
	watchKey    string
	transitions []transition
	updateErr   error
}

func (r *recordingRepo) Create(ctx context.Context, job *domain.Job) error { return nil }

func (r *recordingRepo) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, resultKey string) error {
	msg := ""
	if errMsg != nil {
		msg = *errMsg
	}
	stored := false
	if r.store != nil && r.watchKey != "" {
		_, err := r.store.Get(ctx, r.watchKey)
		stored = err == nil
	}
	r.transitions = append(r.transitions, transition{status: status, errMsg: msg, resultKey: resultKey, resultStored: stored})
	return r.updateErr
}

func (r *recordingRepo) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return nil, domain.ErrNotFound
}

func namedStep(name string, fn func(ctx context.Context, jc *Context) error) Step {
	return StepFunc{StepName: name, Fn: fn}
}

func TestRunTransitionsAndPersistsResultBeforeSucceeded(t *testing.T) {
	store := newMemStore()
	repo := &recordingRepo{store: store, watchKey: storage.ResultKey("job-1", "landing_page")}
	o := &Orchestrator{
		Jobs:    repo,
		Results: storage.NewResultStore(store),
		Logger:  zerolog.Nop(),
	}

	jc := &Context{JobID: "job-1", JobType: domain.JobTypeResearch}
	steps := []Step{
		namedStep("fetch_page", func(ctx context.Context, jc *Context) error {
			jc.PageText = "page"
			return nil
		}),
		namedStep("compose_landing_page", func(ctx context.Context, jc *Context) error {
			jc.Result = map[string]string{"headline": "h"}
			return nil
		}),
	}

	resp := o.Run(context.Background(), jc, steps)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}

	if len(repo.transitions) != 2 {
		t.Fatalf("transitions = %+v, want RUNNING then SUCCEEDED", repo.transitions)
	}
	if repo.transitions[0].status != domain.JobStatusRunning {
		t.Fatalf("first transition = %s, want RUNNING", repo.transitions[0].status)
	}
	last := repo.transitions[1]
	if last.status != domain.JobStatusSucceeded {
		t.Fatalf("last transition = %s, want SUCCEEDED", last.status)
	}
	if !last.resultStored {
		t.Fatal("SUCCEEDED was written before the result was persisted")
	}
	if last.resultKey != storage.ResultKey("job-1", "landing_page") {
		t.Fatalf("resultKey = %q", last.resultKey)
	}

	body, ok := resp.Body.(successBody)
	if !ok {
		t.Fatalf("Body type = %T", resp.Body)
	}
	if len(body.Steps) != 2 || body.Steps[0].Subtask != "fetch_page" || !body.Steps[1].Success {
		t.Fatalf("Steps = %+v", body.Steps)
	}
}

func TestRunStepFailureMarksFailedAndStops(t *testing.T) {
	store := newMemStore()
	repo := &recordingRepo{}
	o := &Orchestrator{Jobs: repo, Results: storage.NewResultStore(store), Logger: zerolog.Nop()}

	ran := false
	jc := &Context{JobID: "job-2", JobType: domain.JobTypeResearch}
	steps := []Step{
		namedStep("analyze_page", func(ctx context.Context, jc *Context) error {
			return errors.New("provider exploded")
		}),
		namedStep("compose_landing_page", func(ctx context.Context, jc *Context) error {
			ran = true
			return nil
		}),
	}

	resp := o.Run(context.Background(), jc, steps)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("StatusCode = %d, want 500", resp.StatusCode)
	}
	if ran {
		t.Fatal("step after failure still ran")
	}
	last := repo.transitions[len(repo.transitions)-1]
	if last.status != domain.JobStatusFailed {
		t.Fatalf("last transition = %s, want FAILED", last.status)
	}
	if last.errMsg != "provider exploded" {
		t.Fatalf("errMsg = %q", last.errMsg)
	}
	if len(store.objects) != 0 {
		t.Fatalf("failed run persisted objects: %v", store.objects)
	}
}

func TestRunValidationErrorMapsToBadRequest(t *testing.T) {
	o := &Orchestrator{
		Jobs:    &recordingRepo{},
		Results: storage.NewResultStore(newMemStore()),
		Logger:  zerolog.Nop(),
	}
	jc := &Context{JobID: "job-3", JobType: domain.JobTypeSwipeRewrite}
	steps := []Step{
		namedStep("load_swipe", func(ctx context.Context, jc *Context) error {
			return domain.Validationf("swipe text empty")
		}),
	}

	resp := o.Run(context.Background(), jc, steps)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("StatusCode = %d, want 400", resp.StatusCode)
	}
	body, ok := resp.Body.(failureBody)
	if !ok {
		t.Fatalf("Body type = %T", resp.Body)
	}
	if body.Status != domain.JobStatusFailed {
		t.Fatalf("body status = %s", body.Status)
	}
}

func TestRunStatusWriteFailureDoesNotFailJob(t *testing.T) {
	store := newMemStore()
	repo := &recordingRepo{updateErr: errors.New("db down")}
	o := &Orchestrator{Jobs: repo, Results: storage.NewResultStore(store), Logger: zerolog.Nop()}

	jc := &Context{JobID: "job-4", JobType: domain.JobTypeResearch}
	steps := []Step{
		namedStep("compose_landing_page", func(ctx context.Context, jc *Context) error {
			jc.Result = map[string]string{"ok": "yes"}
			return nil
		}),
	}

	resp := o.Run(context.Background(), jc, steps)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200 despite status-store outage", resp.StatusCode)
	}
	if _, err := store.Get(context.Background(), storage.ResultKey("job-4", "landing_page")); err != nil {
		t.Fatalf("result missing: %v", err)
	}
}

func TestRunDevModeReplaysFixtureResult(t *testing.T) {
	store := newMemStore()
	results := storage.NewResultStore(store)
	fixture := map[string]string{"headline": "canned"}
	if _, err := results.Save(context.Background(), "fixture-1", "landing_page", fixture); err != nil {
		t.Fatalf("seed fixture: %v", err)
	}

	repo := &recordingRepo{}
	o := &Orchestrator{Jobs: repo, Results: results, Logger: zerolog.Nop(), FixtureJobID: "fixture-1"}

	called := false
	jc := &Context{JobID: "job-5", JobType: domain.JobTypeResearch, DevMode: true}
	steps := []Step{
		namedStep("fetch_page", func(ctx context.Context, jc *Context) error {
			called = true
			return nil
		}),
	}

	resp := o.Run(context.Background(), jc, steps)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if called {
		t.Fatal("dev mode ran a provider-backed step")
	}

	var replayed map[string]string
	if err := results.Load(context.Background(), "job-5", "landing_page", &replayed); err != nil {
		t.Fatalf("replayed result missing: %v", err)
	}
	if replayed["headline"] != "canned" {
		t.Fatalf("replayed = %v", replayed)
	}
	last := repo.transitions[len(repo.transitions)-1]
	if last.status != domain.JobStatusSucceeded {
		t.Fatalf("last transition = %s, want SUCCEEDED", last.status)
	}
}

func TestRunDevModeMissingFixtureFails(t *testing.T) {
	repo := &recordingRepo{}
	o := &Orchestrator{
		Jobs:         repo,
		Results:      storage.NewResultStore(newMemStore()),
		Logger:       zerolog.Nop(),
		FixtureJobID: "fixture-missing",
	}

	jc := &Context{JobID: "job-6", JobType: domain.JobTypeImageGen, DevMode: true}
	resp := o.Run(context.Background(), jc, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("StatusCode = %d, want 500", resp.StatusCode)
	}
	last := repo.transitions[len(repo.transitions)-1]
	if last.status != domain.JobStatusFailed {
		t.Fatalf("last transition = %s, want FAILED", last.status)
	}
}

func TestRunRerunOverwritesSameKey(t *testing.T) {
	store := newMemStore()
	repo := &recordingRepo{}
	o := &Orchestrator{Jobs: repo, Results: storage.NewResultStore(store), Logger: zerolog.Nop()}

	run := func(headline string) {
		jc := &Context{JobID: "job-7", JobType: domain.JobTypeResearch}
		steps := []Step{
			namedStep("compose_landing_page", func(ctx context.Context, jc *Context) error {
				jc.Result = map[string]string{"headline": headline}
				return nil
			}),
		}
		if resp := o.Run(context.Background(), jc, steps); resp.StatusCode != http.StatusOK {
			t.Fatalf("StatusCode = %d", resp.StatusCode)
		}
	}

	run("first")
	run("second")

	if len(store.objects) != 1 {
		t.Fatalf("objects = %d, want 1 (re-run must overwrite)", len(store.objects))
	}
	data, err := store.Get(context.Background(), storage.ResultKey("job-7", "landing_page"))
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["headline"] != "second" {
		t.Fatalf("headline = %q, want latest write", out["headline"])
	}
}

func TestQualityGateCheck(t *testing.T) {
	gate := NewQualityGate(0)
	if gate.RejectAtOrBelow != DefaultRejectThreshold {
		t.Fatalf("threshold = %d", gate.RejectAtOrBelow)
	}

	if err := gate.Check(Rubric{OverallQualityScore: 3}); err != nil {
		t.Fatalf("score 3 rejected: %v", err)
	}
	err := gate.Check(Rubric{OverallQualityScore: 2, Reason: "no hook"})
	if !domain.IsQualityGate(err) {
		t.Fatalf("score 2 not rejected: %v", err)
	}
	var qe *domain.QualityGateError
	if !errors.As(err, &qe) || qe.Score != 2 || qe.Reason != "no hook" {
		t.Fatalf("gate error = %+v", err)
	}
	if err := gate.Check(Rubric{OverallQualityScore: 1}); !domain.IsQualityGate(err) {
		t.Fatalf("score 1 not rejected: %v", err)
	}
}
