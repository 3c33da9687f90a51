// Package batch runs homogeneous mass jobs over an ordered list of subjects.
//
// Subjects are processed strictly one after another so progress and skip
// accounting stay deterministic. Cancellation is checked before each subject;
// a subject that has started always runs to completion.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/content-calendar/app/errs"
)

const (
	defaultSubjectTimeout = 2 * time.Minute
	subscriberBuffer      = 16
)

type Subject struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Done marks a subject that needs no work unless the job is forced.
	Done bool `json:"done"`
}

type Action func(ctx context.Context, subject Subject) error

type JobSpec struct {
	Kind     string
	Subjects []Subject
	Action   Action
	Force    bool
	// IsDone, when set, replaces Subject.Done and is evaluated right before
	// the subject would be processed.
	IsDone func(ctx context.Context, subject Subject) (bool, error)
}

type SubjectError struct {
	SubjectID string `json:"subject_id"`
	Label     string `json:"label"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

type Progress struct {
	JobID        string     `json:"job_id"`
	Kind         string     `json:"kind"`
	Total        int        `json:"total"`
	Current      int        `json:"current"`
	CurrentLabel string     `json:"current_label"`
	Success      int        `json:"success"`
	Errors       int        `json:"errors"`
	Skipped      int        `json:"skipped"`
	Running      bool       `json:"running"`
	Cancelled    bool       `json:"cancelled"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type Manifest struct {
	JobID      string         `json:"job_id"`
	Kind       string         `json:"kind"`
	Total      int            `json:"total"`
	Success    int            `json:"success"`
	Error      int            `json:"error"`
	Skipped    int            `json:"skipped"`
	Errors     []SubjectError `json:"errors"`
	Cancelled  bool           `json:"cancelled"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Pipeline holds the progress of at most one active job.
type Pipeline struct {
	subjectTimeout time.Duration
	now            func() time.Time

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	progress    Progress
	last        *Manifest
	subscribers map[chan Progress]struct{}
	wg          sync.WaitGroup
}

func NewPipeline(subjectTimeout time.Duration) *Pipeline {
	if subjectTimeout <= 0 {
		subjectTimeout = defaultSubjectTimeout
	}
	return &Pipeline{
		subjectTimeout: subjectTimeout,
		now:            time.Now,
		subscribers:    make(map[chan Progress]struct{}),
	}
}

// Run executes the job and returns its manifest. A cancelled job returns a
// partial manifest with Cancelled set and a nil error.
func (p *Pipeline) Run(ctx context.Context, spec JobSpec) (*Manifest, error) {
	jobCtx, err := p.begin(ctx, spec)
	if err != nil {
		return nil, err
	}
	return p.execute(jobCtx, spec), nil
}

// Start launches the job in the background and returns its initial progress.
// The job outlives ctx's cancellation; use Cancel to stop it.
func (p *Pipeline) Start(ctx context.Context, spec JobSpec) (Progress, error) {
	jobCtx, err := p.begin(context.WithoutCancel(ctx), spec)
	if err != nil {
		return Progress{}, err
	}

	started := p.Status()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.execute(jobCtx, spec)
	}()
	return started, nil
}

// Cancel asks the active job to stop before its next subject. It reports
// whether a job was running.
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return false
	}
	p.cancel()
	slog.Info("Batch job cancellation requested", "job_id", p.progress.JobID, "kind", p.progress.Kind)
	return true
}

func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Status returns the progress of the active job, or of the last job when
// none is running.
func (p *Pipeline) Status() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Pipeline) LastManifest() *Manifest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	m := *p.last
	return &m
}

// Subscribe returns a channel receiving progress after every subject. Slow
// readers only see the most recent updates. The returned func unsubscribes.
func (p *Pipeline) Subscribe() (<-chan Progress, func()) {
	ch := make(chan Progress, subscriberBuffer)

	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	current := p.progress
	p.mu.Unlock()

	if current.JobID != "" {
		ch <- current
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, ch)
			p.mu.Unlock()
		})
	}
}

// Wait blocks until a job started with Start has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) begin(ctx context.Context, spec JobSpec) (context.Context, error) {
	if spec.Action == nil {
		return nil, errs.Validation("batch", "job %q has no action", spec.Kind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil, errs.Busy("batch", "a %s job is already running", p.progress.Kind)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.progress = Progress{
		JobID:     uuid.NewString(),
		Kind:      spec.Kind,
		Total:     len(spec.Subjects),
		Running:   true,
		StartedAt: p.now().UTC(),
	}
	p.notify()

	slog.Info("Batch job started", "job_id", p.progress.JobID, "kind", spec.Kind, "subjects", len(spec.Subjects), "force", spec.Force)
	return jobCtx, nil
}

func (p *Pipeline) execute(ctx context.Context, spec JobSpec) *Manifest {
	p.mu.Lock()
	manifest := &Manifest{
		JobID:     p.progress.JobID,
		Kind:      spec.Kind,
		Total:     len(spec.Subjects),
		Errors:    []SubjectError{},
		StartedAt: p.progress.StartedAt,
	}
	p.mu.Unlock()

	for i, subject := range spec.Subjects {
		if ctx.Err() != nil {
			manifest.Cancelled = true
			break
		}

		p.update(func(pr *Progress) {
			pr.Current = i + 1
			pr.CurrentLabel = subject.Label
		})

		err := p.process(ctx, spec, subject, manifest)
		p.update(func(pr *Progress) {
			pr.Success = manifest.Success
			pr.Errors = manifest.Error
			pr.Skipped = manifest.Skipped
		})
		if err != nil {
			slog.Warn("Batch subject failed", "job_id", manifest.JobID, "subject", subject.ID, "error", err)
		}
	}
	// A cancel accepted while the last subject was in flight still counts.
	if ctx.Err() != nil {
		manifest.Cancelled = true
	}

	manifest.FinishedAt = p.now().UTC()

	p.mu.Lock()
	p.running = false
	p.cancel()
	finished := manifest.FinishedAt
	p.progress.Running = false
	p.progress.Cancelled = manifest.Cancelled
	p.progress.FinishedAt = &finished
	p.last = manifest
	p.notify()
	p.mu.Unlock()

	slog.Info("Batch job finished",
		"job_id", manifest.JobID,
		"kind", manifest.Kind,
		"total", manifest.Total,
		"success", manifest.Success,
		"errors", manifest.Error,
		"skipped", manifest.Skipped,
		"cancelled", manifest.Cancelled,
		"duration", manifest.FinishedAt.Sub(manifest.StartedAt))

	return manifest
}

// process handles one subject and records its outcome on the manifest.
func (p *Pipeline) process(ctx context.Context, spec JobSpec, subject Subject, manifest *Manifest) error {
	subjectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.subjectTimeout)
	defer cancel()

	if !spec.Force {
		done := subject.Done
		if spec.IsDone != nil {
			var err error
			done, err = spec.IsDone(subjectCtx, subject)
			if err != nil {
				manifest.fail(subject, err)
				return err
			}
		}
		if done {
			manifest.Skipped++
			return nil
		}
	}

	if err := spec.Action(subjectCtx, subject); err != nil {
		if errors.Is(subjectCtx.Err(), context.DeadlineExceeded) {
			err = errs.Collaborator("batch", err)
		}
		manifest.fail(subject, err)
		return err
	}

	manifest.Success++
	return nil
}

func (m *Manifest) fail(subject Subject, err error) {
	m.Error++
	m.Errors = append(m.Errors, SubjectError{
		SubjectID: subject.ID,
		Label:     subject.Label,
		Kind:      errs.KindOf(err),
		Message:   err.Error(),
	})
}

func (p *Pipeline) update(fn func(*Progress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.progress)
	p.notify()
}

// notify must be called with p.mu held.
func (p *Pipeline) notify() {
	for ch := range p.subscribers {
		select {
		case ch <- p.progress:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p.progress:
			default:
			}
		}
	}
}
