package consultations

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"skincare-backend/internal/queue"
	"skincare-backend/internal/skin"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Save(ctx context.Context, namespace, fileName string, r io.Reader) (string, int64, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := namespace + "/" + fileName
	s.objects[key] = data
	return key, int64(len(data)), "image/jpeg", nil
}

func (s *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type analyzeStep struct {
	profile skin.Profile
	err     error
	panic   string
}

// scriptedAnalyzer replays steps in order and repeats the last one.
type scriptedAnalyzer struct {
	mu    sync.Mutex
	steps []analyzeStep
	calls int
}

func (a *scriptedAnalyzer) Analyze(ctx context.Context, image []byte, contentType string) (skin.Profile, error) {
	a.mu.Lock()
	idx := a.calls
	a.calls++
	if idx >= len(a.steps) {
		idx = len(a.steps) - 1
	}
	step := a.steps[idx]
	a.mu.Unlock()
	if step.panic != "" {
		panic(step.panic)
	}
	return step.profile, step.err
}

func (a *scriptedAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type stubRecommender struct {
	err error
}

func (r stubRecommender) Generate(ctx context.Context, p skin.Profile) (skin.RecommendationResult, error) {
	if r.err != nil {
		return skin.RecommendationResult{}, r.err
	}
	return skin.RecommendationResult{
		Picks: map[skin.Category][]skin.ProductPick{
			skin.CategoryCleanser: {{Name: "Gentle Cleanser", Brand: "CeraVe", Price: 12.5}},
		},
		Rationale: "Based on your skin analysis, we've selected gentle products.",
	}, nil
}

// flakyRecommender fails its first failN calls with err.
type flakyRecommender struct {
	mu    sync.Mutex
	err   error
	failN int
	calls int
}

func (r *flakyRecommender) Generate(ctx context.Context, p skin.Profile) (skin.RecommendationResult, error) {
	r.mu.Lock()
	r.calls++
	fail := r.calls <= r.failN
	r.mu.Unlock()
	if fail {
		return skin.RecommendationResult{}, r.err
	}
	return stubRecommender{}.Generate(ctx, p)
}

func (r *flakyRecommender) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type sentMessage struct {
	msg   queue.Message
	delay time.Duration
}

type fakeQueue struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (q *fakeQueue) Send(ctx context.Context, msg queue.Message, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, sentMessage{msg: msg, delay: delay})
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (n *recordingNotifier) Publish(ctx context.Context, evt StatusEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

func (n *recordingNotifier) Statuses() []Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Status, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Status)
	}
	return out
}

func oilyProfile() skin.Profile {
	return skin.Profile{
		FaceDetected: true,
		SkinType:     skin.SkinTypeOily,
		Concerns:     []skin.Concern{skin.ConcernAcne},
		Severity:     map[skin.Concern]skin.Severity{skin.ConcernAcne: skin.SeverityModerate},
		Notes:        "Some blemishes on the forehead.",
	}
}

// newTestService wires a Service over in-memory fakes. Retry waits are
// recorded instead of slept.
func newTestService(t *testing.T, analyzer Analyzer, rec Recommender) (*Service, *[]time.Duration) {
	t.Helper()
	waits := &[]time.Duration{}
	svc := &Service{
		Repo:        NewMemoryRepo(),
		Store:       newMemStore(),
		Analyzer:    analyzer,
		Recommender: rec,
		Locker:      NewMemoryLocker(),
		Notifier:    &recordingNotifier{},
	}
	svc.wait = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
	return svc, waits
}

func seedPending(t *testing.T, svc *Service) Consultation {
	t.Helper()
	c, err := svc.create(context.Background(), CreateInput{Photo: jpegBytes, ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return c
}
