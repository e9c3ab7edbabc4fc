package consultations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"skincare-backend/internal/queue"
	"skincare-backend/internal/recommendations"
	"skincare-backend/internal/retry"
	"skincare-backend/internal/shared/metrics"
	"skincare-backend/internal/shared/storage/object"
	"skincare-backend/internal/shared/telemetry"
	"skincare-backend/internal/skin"
	"skincare-backend/internal/vision"
)

const (
	// DefaultLockTTL is the floor for the run lock lease.
	DefaultLockTTL = 5 * time.Minute
	// lockMargin covers photo loading, the recommendation stage and writes.
	lockMargin = time.Minute

	photoNamespace = "consultations"
	maxMessageLen  = 2000
)

// Analyzer turns a photo into a skin profile.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, contentType string) (skin.Profile, error)
}

// Recommender selects products for a profile.
type Recommender interface {
	Generate(ctx context.Context, p skin.Profile) (skin.RecommendationResult, error)
}

// CreateInput is a new photo submission.
type CreateInput struct {
	Photo       []byte
	ContentType string
	Message     string
}

// Outcome is the result of one attempt.
type Outcome struct {
	Status   Status
	Retry    bool
	Delay    time.Duration
	Class    retry.Class
	// Failures are the per-class failure counts after this attempt.
	Failures map[string]int
}

// Service runs the consultation pipeline.
type Service struct {
	Repo        Repo
	Store       object.ObjectStore
	Analyzer    Analyzer
	Recommender Recommender
	// Queue schedules attempts on a worker. When nil, attempts run in a
	// goroutine of this process.
	Queue    queue.Client
	Locker   Locker
	Notifier Notifier
	Policy   retry.Policy
	LockTTL  time.Duration

	group singleflight.Group
	wait  func(ctx context.Context, d time.Duration) error
}

// Create validates and stores the photo, records a pending consultation and
// schedules its first attempt.
func (s *Service) Create(ctx context.Context, in CreateInput) (Consultation, error) {
	c, err := s.create(ctx, in)
	if err != nil {
		return Consultation{}, err
	}
	if err := s.dispatch(ctx, c.ID, 1, nil, 0); err != nil {
		s.abandon(detach(ctx), c.ID, fmt.Errorf("schedule analysis: %w", err))
		return Consultation{}, err
	}
	return c, nil
}

// AnalyzeSync records a consultation and runs it to a terminal state before
// returning it.
func (s *Service) AnalyzeSync(ctx context.Context, in CreateInput) (Consultation, error) {
	c, err := s.create(ctx, in)
	if err != nil {
		return Consultation{}, err
	}
	if _, err := s.Run(ctx, c.ID); err != nil {
		return Consultation{}, err
	}
	return s.Repo.GetByID(detach(ctx), c.ID)
}

// Get returns a consultation by ID.
func (s *Service) Get(ctx context.Context, id string) (Consultation, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *Service) create(ctx context.Context, in CreateInput) (Consultation, error) {
	contentType, err := vision.ValidateImage(in.Photo, in.ContentType)
	if err != nil {
		return Consultation{}, err
	}
	if s.Store == nil {
		return Consultation{}, errors.New("photo store not configured")
	}

	id := uuid.NewString()
	key, _, _, err := s.Store.Save(ctx, photoNamespace, id+photoExtension(contentType), bytes.NewReader(in.Photo))
	if err != nil {
		return Consultation{}, fmt.Errorf("store photo: %w", err)
	}

	now := time.Now().UTC()
	c := Consultation{
		ID:               id,
		Status:           StatusPending,
		PhotoKey:         key,
		PhotoContentType: contentType,
		Message:          truncateMessage(in.Message),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		return Consultation{}, err
	}
	telemetry.Info("consultation.status", map[string]any{
		"request_id":      RequestIDFromContext(ctx),
		"consultation_id": id,
		"status":          StatusPending,
		"photo_bytes":     len(in.Photo),
	})
	return c, nil
}

// Run executes attempts in-process until the consultation is terminal.
// Concurrent Run calls for the same id share one execution.
func (s *Service) Run(ctx context.Context, id string) (Status, error) {
	return s.runFrom(ctx, id, 1, 0)
}

func (s *Service) runFrom(ctx context.Context, id string, attempt int, delay time.Duration) (Status, error) {
	v, err, _ := s.group.Do(id, func() (any, error) {
		return s.loop(ctx, id, attempt, delay)
	})
	if err != nil {
		return "", err
	}
	return v.(Status), nil
}

func (s *Service) loop(ctx context.Context, id string, attempt int, delay time.Duration) (Status, error) {
	for {
		if delay > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				s.abandon(detach(ctx), id, fmt.Errorf("retry cancelled: %w", err))
				return StatusFailed, nil
			}
		}
		out, err := s.RunAttempt(ctx, id, attempt)
		if err != nil {
			return "", err
		}
		if !out.Retry {
			return out.Status, nil
		}
		attempt++
		delay = out.Delay
	}
}

// ProcessConsultation runs one queued attempt and, when the failure is
// retryable, enqueues the next one with the policy delay.
func (s *Service) ProcessConsultation(ctx context.Context, id string, attempt int) error {
	if attempt <= 0 {
		attempt = 1
	}
	out, err := s.RunAttempt(ctx, id, attempt)
	if err != nil {
		return err
	}
	if !out.Retry {
		return nil
	}
	if err := s.dispatch(ctx, id, attempt+1, out.Failures, out.Delay); err != nil {
		s.abandon(detach(ctx), id, fmt.Errorf("schedule retry: %w", err))
		return err
	}
	return nil
}

// RunAttempt performs attempt number attempt (1-based) under the run lock.
// Pipeline failures are recorded on the consultation and reported through
// the Outcome; the returned error covers only lock and storage problems.
func (s *Service) RunAttempt(ctx context.Context, id string, attempt int) (Outcome, error) {
	release, err := s.locker().Acquire(ctx, lockKey(id), s.lockTTL())
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		if err := release(detach(ctx)); err != nil {
			telemetry.Warn("consultation.lock_release_failed", map[string]any{
				"consultation_id": id,
				"error":           err.Error(),
			})
		}
	}()

	c, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if c.Status.Terminal() || attempt < c.Attempts {
		// Duplicate or stale delivery.
		return Outcome{Status: c.Status}, nil
	}

	from := c.Status
	if err := s.Repo.UpdateStatus(ctx, id, StatusAnalyzing, Update{Attempts: attempt}); err != nil {
		return Outcome{}, err
	}
	startedAt := time.Now().UTC()
	if c.StartedAt != nil {
		startedAt = *c.StartedAt
	}
	if attempt == 1 {
		metrics.IncConsultationStarted()
	}
	s.logTransition(ctx, id, from, StatusAnalyzing, attempt, nil)
	s.publish(ctx, id, StatusAnalyzing, "")

	profile, rec, runErr := s.execute(ctx, c)
	final := detach(ctx)
	if runErr == nil {
		if err := s.Repo.UpdateStatus(final, id, StatusCompleted, Update{Profile: profile, Recommendation: rec, Attempts: attempt}); err != nil {
			return Outcome{}, err
		}
		completedAt := time.Now().UTC()
		metrics.IncConsultationCompleted()
		metrics.ObserveConsultationDurationMs(durationMs(&startedAt, &completedAt))
		s.logTransition(ctx, id, StatusAnalyzing, StatusCompleted, attempt, map[string]any{
			"duration_ms": durationMs(&startedAt, &completedAt),
		})
		s.publish(final, id, StatusCompleted, "")
		return Outcome{Status: StatusCompleted}, nil
	}

	class := retry.Classify(runErr)
	failures := countFailure(c.Failures, string(class))
	decision := s.policy().DecideClass(class, failures[string(class)])
	if decision.Retry {
		if err := s.Repo.UpdateStatus(final, id, StatusAnalyzing, Update{Attempts: attempt, Failures: failures}); err != nil {
			return Outcome{}, err
		}
		metrics.IncConsultationRetried()
		telemetry.Warn("consultation.retry", map[string]any{
			"request_id":      RequestIDFromContext(ctx),
			"consultation_id": id,
			"attempt":         attempt,
			"class":           string(class),
			"class_failures":  failures[string(class)],
			"delay_ms":        decision.Delay.Milliseconds(),
			"error":           sanitizeError(runErr),
		})
		return Outcome{Status: StatusAnalyzing, Retry: true, Delay: decision.Delay, Class: class, Failures: failures}, nil
	}

	if err := s.fail(final, id, attempt, failures, profile, runErr, &startedAt); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusFailed, Class: class, Failures: failures}, nil
}

// execute runs analysis then recommendation. A profile is returned alongside
// a recommendation failure so it can be kept on the failed record.
func (s *Service) execute(ctx context.Context, c Consultation) (profile *skin.Profile, rec *skin.RecommendationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if s.Analyzer == nil || s.Recommender == nil {
		return nil, nil, errors.New("pipeline dependencies not configured")
	}

	photo, err := s.loadPhoto(ctx, c.PhotoKey)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.Analyzer.Analyze(ctx, photo, c.PhotoContentType)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.Recommender.Generate(ctx, p)
	if err != nil {
		return &p, nil, err
	}
	return &p, &result, nil
}

func (s *Service) loadPhoto(ctx context.Context, key string) ([]byte, error) {
	if s.Store == nil {
		return nil, errors.New("photo store not configured")
	}
	rc, err := s.Store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, vision.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return data, nil
}

// fail records a terminal failure. It only succeeds from analyzing.
func (s *Service) fail(ctx context.Context, id string, attempt int, failures map[string]int, profile *skin.Profile, cause error, startedAt *time.Time) error {
	msg := failureMessage(cause)
	if err := s.Repo.UpdateStatus(ctx, id, StatusFailed, Update{Profile: profile, ErrorMessage: &msg, Attempts: attempt, Failures: failures}); err != nil {
		telemetry.Error("consultation.fail_update_failed", map[string]any{
			"consultation_id": id,
			"error":           err.Error(),
			"cause":           sanitizeError(cause),
		})
		return err
	}
	completedAt := time.Now().UTC()
	metrics.IncConsultationFailed()
	if startedAt != nil {
		metrics.ObserveConsultationDurationMs(durationMs(startedAt, &completedAt))
	}
	s.logTransition(ctx, id, StatusAnalyzing, StatusFailed, attempt, map[string]any{
		"class":       string(retry.Classify(cause)),
		"duration_ms": durationMs(startedAt, &completedAt),
		"error":       msg,
	})
	s.publish(ctx, id, StatusFailed, msg)
	return nil
}

// abandon fails a consultation whose next attempt could not be scheduled.
// A pending row is moved through analyzing first.
func (s *Service) abandon(ctx context.Context, id string, cause error) {
	c, err := s.Repo.GetByID(ctx, id)
	if err != nil || c.Status.Terminal() {
		return
	}
	attempt := c.Attempts
	if c.Status == StatusPending {
		attempt = 1
		if err := s.Repo.UpdateStatus(ctx, id, StatusAnalyzing, Update{Attempts: attempt}); err != nil {
			return
		}
	}
	_ = s.fail(ctx, id, attempt, nil, nil, cause, c.StartedAt)
}

func (s *Service) dispatch(ctx context.Context, id string, attempt int, failures map[string]int, delay time.Duration) error {
	if s.Queue != nil {
		msg := queue.NewMessage(id, RequestIDFromContext(ctx), attempt)
		msg.Failures = failures
		return s.Queue.Send(ctx, msg, delay)
	}
	go s.runAsync(detach(ctx), id, attempt, delay)
	return nil
}

func (s *Service) runAsync(ctx context.Context, id string, attempt int, delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.abandon(ctx, id, fmt.Errorf("panic: %v", r))
		}
	}()
	if _, err := s.runFrom(ctx, id, attempt, delay); err != nil && !errors.Is(err, ErrRunInProgress) {
		telemetry.Error("consultation.run_failed", map[string]any{
			"request_id":      RequestIDFromContext(ctx),
			"consultation_id": id,
			"error":           err.Error(),
		})
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if s.wait != nil {
		return s.wait(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) publish(ctx context.Context, id string, status Status, errorMessage string) {
	if s.Notifier == nil {
		return
	}
	evt := StatusEvent{
		ConsultationID: id,
		Status:         status,
		ErrorMessage:   errorMessage,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Notifier.Publish(ctx, evt); err != nil {
		telemetry.Warn("consultation.notify_failed", map[string]any{
			"consultation_id": id,
			"status":          status,
			"error":           err.Error(),
		})
	}
}

func (s *Service) logTransition(ctx context.Context, id string, from, to Status, attempt int, extra map[string]any) {
	fields := map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"consultation_id":   id,
		"status":            to,
		"status_transition": string(from) + "->" + string(to),
		"attempt":           attempt,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("consultation.status", fields)
}

// processLocker serves services built without a Locker.
var processLocker = NewMemoryLocker()

func (s *Service) locker() Locker {
	if s.Locker == nil {
		return processLocker
	}
	return s.Locker
}

// LockTTLFor sizes the run lock so it outlives an attempt whose model calls
// take up to analysisBudget.
func LockTTLFor(analysisBudget time.Duration) time.Duration {
	ttl := analysisBudget + lockMargin
	if ttl < DefaultLockTTL {
		return DefaultLockTTL
	}
	return ttl
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return DefaultLockTTL
	}
	return s.LockTTL
}

func (s *Service) policy() retry.Policy {
	if len(s.Policy.Rules) == 0 {
		return retry.DefaultPolicy()
	}
	return s.Policy
}

// failureMessage renders the user-facing error stored on a failed consultation.
func failureMessage(err error) string {
	var (
		validationErr *vision.ValidationError
		parseErr      *vision.ParseError
		schemaErr     *vision.SchemaError
		analysisErr   *vision.AnalysisError
		recErr        *recommendations.RecommendationError
	)
	var msg string
	switch {
	case errors.As(err, &validationErr):
		msg = "Image validation failed: " + validationErr.Reason
	case errors.As(err, &recErr):
		msg = "Recommendation generation failed: " + errorText(recErr.Err)
	case errors.As(err, &parseErr), errors.As(err, &schemaErr), errors.As(err, &analysisErr),
		retry.Classify(err) == retry.ClassTimeout:
		msg = "Vision analysis failed: " + errorText(err)
	default:
		msg = "Unexpected error during analysis: " + errorText(err)
	}
	return sanitizeError(errors.New(msg))
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	return truncateUTF8(msg, 500)
}

func truncateMessage(msg string) string {
	return truncateUTF8(strings.TrimSpace(msg), maxMessageLen)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func photoExtension(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".jpg"
}
