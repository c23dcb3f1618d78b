package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"pkt.systems/modelsync/schema"
)

func seedLocal(w *fakeWorkspace, components, types int) {
	for i := 1; i <= components; i++ {
		id := fmt.Sprintf("component_%d", i)
		w.components[id] = schema.ComponentModel{ID: id, Library: "./slices", Raw: []byte(fmt.Sprintf(`{"id":%q}`, id))}
	}
	for i := 1; i <= types; i++ {
		id := fmt.Sprintf("type_%d", i)
		w.types[id] = schema.TypeModel{ID: id, Raw: []byte(fmt.Sprintf(`{"id":%q}`, id))}
	}
}

func TestPushReplicatesSnapshotToEveryRepository(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	seedLocal(h.workspace, 5, 2)
	report, err := h.svc.Push(context.Background(), schema.PushRequest{Targets: []schema.RepoName{"child-1", "child-2"}})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if h.workspace.compReads != 1 || h.workspace.typeReads != 1 {
		t.Fatalf("expected a single snapshot read, got %d/%d", h.workspace.compReads, h.workspace.typeReads)
	}
	if report.Components != 5 || report.Types != 2 || report.Synced() != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	want := []int{0, 14, 28, 42, 57, 71, 85, 100}
	for _, repo := range []schema.RepoName{"child-1", "child-2"} {
		calls := h.remote.callsFor(repo)
		if len(calls) != 8 || calls[0].op != "init-acl" {
			t.Fatalf("%s: expected init then 7 pushes, got %+v", repo, calls)
		}
		for _, call := range calls {
			if call.active != repo {
				t.Fatalf("%s: call %s ran with active environment %q", repo, call.op, call.active)
			}
		}
		if got := h.events.percents(repo); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: expected percent progression %v, got %v", repo, want, got)
		}
		types, comps := h.remote.snapshot(repo)
		if len(types) != 2 || len(comps) != 5 {
			t.Fatalf("%s: expected remote set to equal snapshot, got %d/%d", repo, len(comps), len(types))
		}
	}
	for i, result := range report.Repositories {
		if result.Status != schema.RepositorySynced || result.Done != 7 || result.Total != 7 {
			t.Fatalf("repository %d: unexpected result %+v", i, result)
		}
	}

	// The second repository is only activated once the first batch resolved.
	events := h.events.all()
	lastFirst, activateSecond := -1, -1
	for i, event := range events {
		if event.Repo == "child-1" && event.Phase == schema.PhaseRepository {
			lastFirst = i
		}
		if event.Type == schema.EventEnvironmentActivated && event.Repo == "child-2" {
			activateSecond = i
		}
	}
	if activateSecond < lastFirst {
		t.Fatalf("child-2 activated at %d before child-1 finished at %d", activateSecond, lastFirst)
	}
	if got := h.svc.Environment(); got != schema.DefaultEnvironment {
		t.Fatalf("expected default environment after run, got %q", got)
	}
}

func TestPushFailFastStopsRun(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	seedLocal(h.workspace, 5, 2)
	h.remote.fail = func(repo schema.RepoName, _ string, _ string, n int) error {
		if repo == "b" && n == 3 {
			return errFakeBackend
		}
		return nil
	}
	report, err := h.svc.Push(context.Background(), schema.PushRequest{
		Targets:     []schema.RepoName{"a", "b", "c"},
		Concurrency: 1,
	})
	if !isBackend(err) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if n := len(h.remote.callsFor("a")); n != 8 {
		t.Fatalf("expected repository a fully synced, got %d calls", n)
	}
	if n := h.remote.pushes["b"]; n != 3 {
		t.Fatalf("expected 3 push attempts on b, got %d", n)
	}
	for _, repo := range h.remote.opened {
		if repo == "c" {
			t.Fatalf("repository c must never be activated")
		}
	}
	statuses := []schema.RepositoryStatus{report.Repositories[0].Status, report.Repositories[1].Status, report.Repositories[2].Status}
	want := []schema.RepositoryStatus{schema.RepositorySynced, schema.RepositoryFailed, schema.RepositorySkipped}
	if !reflect.DeepEqual(statuses, want) {
		t.Fatalf("expected statuses %v, got %v", want, statuses)
	}
	if report.Repositories[1].Done != 2 || len(report.Repositories[1].Failures) != 1 {
		t.Fatalf("unexpected failed repository result %+v", report.Repositories[1])
	}
	if got := h.svc.Environment(); got != schema.DefaultEnvironment {
		t.Fatalf("expected environment restored after failure, got %q", got)
	}
	if got := h.events.percents("b"); got[len(got)-1] == 100 {
		t.Fatalf("failed repository must not reach 100%%: %v", got)
	}
}

func TestPushCollectAllReportsEveryFailure(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	seedLocal(h.workspace, 3, 2)
	h.remote.fail = func(repo schema.RepoName, _ string, id string, _ int) error {
		if repo == "a" && (id == "component_2" || id == "type_1") {
			return errFakeBackend
		}
		return nil
	}
	report, err := h.svc.Push(context.Background(), schema.PushRequest{
		Targets: []schema.RepoName{"a", "b"},
		Policy:  schema.CollectAll,
	})
	if !isBackend(err) {
		t.Fatalf("expected backend error, got %v", err)
	}
	first, second := report.Repositories[0], report.Repositories[1]
	if first.Status != schema.RepositoryFailed || first.Done != 3 || first.Total != 5 {
		t.Fatalf("unexpected first result %+v", first)
	}
	wantFailures := []schema.ModelFailure{
		{Kind: schema.KindComponent, ID: "component_2", Library: "./slices", Err: errFakeBackend.Error()},
		{Kind: schema.KindType, ID: "type_1", Err: errFakeBackend.Error()},
	}
	if !reflect.DeepEqual(first.Failures, wantFailures) {
		t.Fatalf("expected failures %+v, got %+v", wantFailures, first.Failures)
	}
	if second.Status != schema.RepositorySynced || second.Done != 5 {
		t.Fatalf("expected second repository synced, got %+v", second)
	}
}

func TestPushInitAssetStorageFailure(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	seedLocal(h.workspace, 1, 1)
	h.remote.failInit["a"] = errFakeBackend
	report, err := h.svc.Push(context.Background(), schema.PushRequest{
		Targets: []schema.RepoName{"a", "b"},
		Policy:  schema.CollectAll,
	})
	if !isBackend(err) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if h.remote.pushes["a"] != 0 {
		t.Fatalf("expected no pushes after failed asset storage init")
	}
	if report.Repositories[0].Status != schema.RepositoryFailed || report.Repositories[1].Status != schema.RepositorySynced {
		t.Fatalf("unexpected statuses %+v", report.Repositories)
	}
}

func TestPushIsIdempotent(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	seedLocal(h.workspace, 2, 2)
	req := schema.PushRequest{Targets: []schema.RepoName{"a"}}
	if _, err := h.svc.Push(context.Background(), req); err != nil {
		t.Fatalf("first push: %v", err)
	}
	types1, comps1 := h.remote.snapshot("a")
	if _, err := h.svc.Push(context.Background(), req); err != nil {
		t.Fatalf("second push: %v", err)
	}
	types2, comps2 := h.remote.snapshot("a")
	if !reflect.DeepEqual(types1, types2) || !reflect.DeepEqual(comps1, comps2) {
		t.Fatalf("expected unchanged remote state after rerun")
	}
}

func TestPushRespectsCapacity(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	seedLocal(h.workspace, 6, 4)
	if _, err := h.svc.Push(context.Background(), schema.PushRequest{Targets: []schema.RepoName{"a"}, Concurrency: 3}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if peak := h.remote.peak.Load(); peak > 3 {
		t.Fatalf("expected at most 3 pushes in flight, saw %d", peak)
	}
}

func TestPushValidatesRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     schema.PushRequest
		wantErr error
	}{
		{name: "no targets", req: schema.PushRequest{}, wantErr: schema.ErrNoTargets},
		{name: "duplicate", req: schema.PushRequest{Targets: []schema.RepoName{"a", "A"}}, wantErr: schema.ErrDuplicateTarget},
		{name: "invalid", req: schema.PushRequest{Targets: []schema.RepoName{"a b"}}, wantErr: schema.ErrInvalidRepo},
		{name: "policy", req: schema.PushRequest{Targets: []schema.RepoName{"a"}, Policy: "sometimes"}, wantErr: schema.ErrInvalidPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := newHarness(true)
			if err != nil {
				t.Fatalf("new harness: %v", err)
			}
			if _, err := h.svc.Push(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if h.workspace.compReads != 0 || len(h.remote.opened) != 0 {
				t.Fatalf("expected nothing attempted")
			}
		})
	}
}

func TestPushRequiresAuthentication(t *testing.T) {
	h, err := newHarness(false)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	seedLocal(h.workspace, 1, 1)
	report, err := h.svc.Push(context.Background(), schema.PushRequest{Targets: []schema.RepoName{"a"}})
	if !errors.Is(err, schema.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if h.workspace.initCalls != 0 || h.workspace.compReads != 0 || len(h.remote.calls) != 0 {
		t.Fatalf("expected nothing attempted")
	}
	if len(report.Repositories) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}
