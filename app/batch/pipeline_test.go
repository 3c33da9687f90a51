package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/lysyi3m/content-calendar/app/errs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// products simulates subjects with a persisted "done" state.
type products struct {
	mu    sync.Mutex
	done  map[string]bool
	calls []string
	fail  map[string]bool
}

func newProducts(done ...int) *products {
	p := &products{done: make(map[string]bool), fail: make(map[string]bool)}
	for _, i := range done {
		p.done[fmt.Sprintf("p%d", i)] = true
	}
	return p
}

func (p *products) subjects(n int) []Subject {
	subjects := make([]Subject, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%d", i)
		subjects = append(subjects, Subject{ID: id, Label: "Product " + id})
	}
	return subjects
}

func (p *products) spec(n int, force bool) JobSpec {
	return JobSpec{
		Kind:     "describe",
		Subjects: p.subjects(n),
		Force:    force,
		IsDone: func(_ context.Context, s Subject) (bool, error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			return p.done[s.ID], nil
		},
		Action: func(_ context.Context, s Subject) error {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.calls = append(p.calls, s.ID)
			if p.fail[s.ID] {
				return errs.Collaborator("describe", errors.New("model overloaded"))
			}
			p.done[s.ID] = true
			return nil
		},
	}
}

func TestPipeline_SkipsDoneSubjects(t *testing.T) {
	p := newProducts(1, 3)
	pipeline := NewPipeline(time.Second)

	manifest, err := pipeline.Run(context.Background(), p.spec(5, false))
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Total != 5 || manifest.Skipped != 2 || manifest.Success != 3 || manifest.Error != 0 {
		t.Errorf("Expected total 5, skipped 2, success 3, error 0, got %+v", manifest)
	}
	if manifest.Cancelled {
		t.Error("Expected job not cancelled")
	}

	want := []string{"p0", "p2", "p4"}
	if fmt.Sprint(p.calls) != fmt.Sprint(want) {
		t.Errorf("Expected subjects processed in order %v, got %v", want, p.calls)
	}
}

func TestPipeline_RerunAfterSuccessSkipsEverything(t *testing.T) {
	p := newProducts()
	pipeline := NewPipeline(time.Second)

	if _, err := pipeline.Run(context.Background(), p.spec(4, false)); err != nil {
		t.Fatal(err)
	}
	manifest, err := pipeline.Run(context.Background(), p.spec(4, false))
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Skipped != 4 || manifest.Success != 0 {
		t.Errorf("Expected every subject skipped, got %+v", manifest)
	}

	manifest, err = pipeline.Run(context.Background(), p.spec(4, true))
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Success != 4 || manifest.Skipped != 0 {
		t.Errorf("Expected forced run to reprocess everything, got %+v", manifest)
	}
}

func TestPipeline_ErrorsDoNotAbort(t *testing.T) {
	p := newProducts()
	p.fail["p1"] = true
	pipeline := NewPipeline(time.Second)

	manifest, err := pipeline.Run(context.Background(), p.spec(4, false))
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Success != 3 || manifest.Error != 1 {
		t.Errorf("Expected 3 successes and 1 error, got %+v", manifest)
	}
	if len(manifest.Errors) != 1 || manifest.Errors[0].SubjectID != "p1" || manifest.Errors[0].Kind != "collaborator_error" {
		t.Errorf("Expected error detail for p1, got %+v", manifest.Errors)
	}
	if manifest.Errors[0].Label != "Product p1" {
		t.Errorf("Expected subject label in error, got %q", manifest.Errors[0].Label)
	}
}

func TestPipeline_CancelStopsBeforeNextSubject(t *testing.T) {
	pipeline := NewPipeline(time.Second)
	started := make(chan string, 10)
	release := make(chan struct{})

	var finished []string
	spec := JobSpec{
		Kind:     "photos",
		Subjects: newProducts().subjects(6),
		Action: func(ctx context.Context, s Subject) error {
			started <- s.ID
			<-release
			if ctx.Err() != nil {
				return ctx.Err()
			}
			finished = append(finished, s.ID)
			return nil
		},
	}

	done := make(chan *Manifest, 1)
	go func() {
		m, err := pipeline.Run(context.Background(), spec)
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		done <- m
	}()

	if id := <-started; id != "p0" {
		t.Fatalf("Expected p0 first, got %s", id)
	}
	if !pipeline.Cancel() {
		t.Error("Expected Cancel to report a running job")
	}
	close(release)

	manifest := <-done
	if !manifest.Cancelled {
		t.Error("Expected cancelled manifest")
	}
	if manifest.Success != 1 || manifest.Error != 0 {
		t.Errorf("Expected the in-flight subject to finish successfully, got %+v", manifest)
	}
	if manifest.Success+manifest.Error+manifest.Skipped > manifest.Total {
		t.Errorf("Expected counts within total, got %+v", manifest)
	}
	if len(finished) != 1 {
		t.Errorf("Expected exactly one subject processed, got %v", finished)
	}

	status := pipeline.Status()
	if status.Running || !status.Cancelled || status.FinishedAt == nil {
		t.Errorf("Expected finished cancelled status, got %+v", status)
	}
	if pipeline.Cancel() {
		t.Error("Expected Cancel without a running job to report false")
	}
}

func TestPipeline_CancelDuringLastSubjectIsReported(t *testing.T) {
	pipeline := NewPipeline(time.Second)
	started := make(chan struct{})
	release := make(chan struct{})

	spec := JobSpec{
		Kind:     "photos",
		Subjects: []Subject{{ID: "only"}},
		Action: func(context.Context, Subject) error {
			close(started)
			<-release
			return nil
		},
	}

	done := make(chan *Manifest, 1)
	go func() {
		m, err := pipeline.Run(context.Background(), spec)
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		done <- m
	}()

	<-started
	if !pipeline.Cancel() {
		t.Fatal("Expected Cancel to report a running job")
	}
	close(release)

	manifest := <-done
	if !manifest.Cancelled {
		t.Error("Expected accepted cancel to be reflected in the manifest")
	}
	if manifest.Success != 1 {
		t.Errorf("Expected the in-flight subject to finish, got %+v", manifest)
	}
	if !pipeline.Status().Cancelled {
		t.Error("Expected status to report the cancel")
	}
}

func TestPipeline_BusyWhileRunning(t *testing.T) {
	pipeline := NewPipeline(time.Second)
	release := make(chan struct{})
	started := make(chan struct{})

	spec := JobSpec{
		Kind:     "slow",
		Subjects: []Subject{{ID: "a"}},
		Action: func(context.Context, Subject) error {
			close(started)
			<-release
			return nil
		},
	}

	if _, err := pipeline.Start(context.Background(), spec); err != nil {
		t.Fatal(err)
	}
	<-started

	if !pipeline.Busy() {
		t.Error("Expected pipeline busy")
	}
	_, err := pipeline.Run(context.Background(), JobSpec{Kind: "other", Action: func(context.Context, Subject) error { return nil }})
	if !errors.Is(err, errs.ErrBusy) {
		t.Errorf("Expected busy error, got %v", err)
	}

	close(release)
	pipeline.Wait()

	if pipeline.Busy() {
		t.Error("Expected pipeline idle after job")
	}
	last := pipeline.LastManifest()
	if last == nil || last.Kind != "slow" || last.Success != 1 {
		t.Errorf("Expected last manifest of the slow job, got %+v", last)
	}
}

func TestPipeline_StartSurvivesCallerCancellation(t *testing.T) {
	pipeline := NewPipeline(time.Second)
	p := newProducts()

	ctx, cancel := context.WithCancel(context.Background())
	progress, err := pipeline.Start(ctx, p.spec(3, false))
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	pipeline.Wait()

	if progress.JobID == "" || progress.Total != 3 {
		t.Errorf("Expected initial progress with job id, got %+v", progress)
	}
	last := pipeline.LastManifest()
	if last.Cancelled || last.Success != 3 {
		t.Errorf("Expected job to complete despite caller cancellation, got %+v", last)
	}
}

func TestPipeline_SubjectTimeout(t *testing.T) {
	pipeline := NewPipeline(20 * time.Millisecond)

	manifest, err := pipeline.Run(context.Background(), JobSpec{
		Kind:     "hang",
		Subjects: []Subject{{ID: "a"}, {ID: "b"}},
		Action: func(ctx context.Context, s Subject) error {
			if s.ID == "a" {
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Error != 1 || manifest.Success != 1 {
		t.Errorf("Expected timeout recorded and job continued, got %+v", manifest)
	}
	if manifest.Errors[0].Kind != "collaborator_error" {
		t.Errorf("Expected timeout as collaborator error, got %+v", manifest.Errors[0])
	}
}

func TestPipeline_SubscribeReceivesProgress(t *testing.T) {
	pipeline := NewPipeline(time.Second)
	updates, unsubscribe := pipeline.Subscribe()
	defer unsubscribe()

	p := newProducts()
	if _, err := pipeline.Run(context.Background(), p.spec(3, false)); err != nil {
		t.Fatal(err)
	}

	var last Progress
	for {
		select {
		case pr := <-updates:
			last = pr
			continue
		default:
		}
		break
	}

	if last.Running || last.Success != 3 || last.Current != 3 {
		t.Errorf("Expected final progress as last update, got %+v", last)
	}
}

func TestPipeline_RequiresAction(t *testing.T) {
	_, err := NewPipeline(0).Run(context.Background(), JobSpec{Kind: "empty"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}
