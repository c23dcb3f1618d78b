package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pkt.systems/modelsync/schema"
)

func TestPullEmptySourceCompletes(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	h.remote.seed("parent", nil, nil)
	report, err := h.svc.Pull(context.Background(), schema.PullRequest{Source: "parent"})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if report.Components != (schema.PhaseResult{}) || report.Types != (schema.PhaseResult{}) {
		t.Fatalf("expected empty counters, got %+v", report)
	}
	if report.Library != "./slices" || report.Session == "" {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := h.svc.Environment(); got != schema.DefaultEnvironment {
		t.Fatalf("expected default environment, got %q", got)
	}
	if len(h.events.ofType(schema.EventEnvironmentActivated)) != 1 || len(h.events.ofType(schema.EventEnvironmentRestored)) != 1 {
		t.Fatalf("expected one activation and one restore, got %+v", h.events.all())
	}
}

func TestPullCreatesEveryRemoteModel(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	h.remote.seed("parent", []string{"page", "post"}, []string{"hero", "cta", "quote"})
	report, err := h.svc.Pull(context.Background(), schema.PullRequest{Source: "Parent", Concurrency: 8})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if report.Source != "parent" {
		t.Fatalf("expected normalized source, got %q", report.Source)
	}
	if report.Components != (schema.PhaseResult{Done: 3, Total: 3}) || report.Types != (schema.PhaseResult{Done: 2, Total: 2}) {
		t.Fatalf("unexpected counters %+v", report)
	}
	comps, types := h.workspace.counts()
	if comps != 3 || types != 2 {
		t.Fatalf("expected 3 components and 2 types locally, got %d/%d", comps, types)
	}
	h.workspace.mu.Lock()
	order := append([]string(nil), h.workspace.order...)
	lib := h.workspace.components["hero"].Library
	h.workspace.mu.Unlock()
	if lib != "./slices" {
		t.Fatalf("expected default library, got %q", lib)
	}
	for i, entry := range order {
		if i < 3 && !strings.HasPrefix(entry, "component/") {
			t.Fatalf("expected components before types, got %v", order)
		}
	}

	var last int
	for _, event := range h.events.all() {
		if event.Phase != schema.PhaseComponents || event.Type != schema.EventPhaseAdvanced {
			continue
		}
		if event.Done <= last {
			t.Fatalf("component counter not increasing: %d after %d", event.Done, last)
		}
		last = event.Done
	}
	if last != 3 {
		t.Fatalf("expected final component count 3, got %d", last)
	}
	loaded := h.events.ofType(schema.EventModelsLoaded)
	if len(loaded) != 1 || loaded[0].Components != 3 || loaded[0].Types != 2 {
		t.Fatalf("unexpected models_loaded events %+v", loaded)
	}
	for _, call := range h.remote.callsFor("parent") {
		if call.active != "parent" {
			t.Fatalf("call %s ran with active environment %q", call.op, call.active)
		}
	}
}

func TestPullUsesRequestedLibrary(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	h.remote.seed("parent", nil, []string{"hero"})
	report, err := h.svc.Pull(context.Background(), schema.PullRequest{Source: "parent", Library: "./blocks"})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if report.Library != "./blocks" {
		t.Fatalf("unexpected library %q", report.Library)
	}
	if _, err := h.svc.Pull(context.Background(), schema.PullRequest{Source: "parent", Library: "./nope"}); !errors.Is(err, schema.ErrInvalidLibrary) {
		t.Fatalf("expected ErrInvalidLibrary, got %v", err)
	}
}

func TestPullRequiresAuthentication(t *testing.T) {
	h, err := newHarness(false)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	h.remote.seed("parent", []string{"page"}, nil)
	_, err = h.svc.Pull(context.Background(), schema.PullRequest{Source: "parent"})
	if !errors.Is(err, schema.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if h.workspace.initCalls != 0 || len(h.remote.opened) != 0 || len(h.remote.calls) != 0 {
		t.Fatalf("expected nothing attempted, got init=%d opened=%v calls=%v", h.workspace.initCalls, h.remote.opened, h.remote.calls)
	}
	finished := h.events.ofType(schema.EventSessionFinished)
	if len(finished) != 1 || finished[0].Err == "" {
		t.Fatalf("expected failed session_finished, got %+v", finished)
	}
}

func TestPullRequiresSource(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	if _, err := h.svc.Pull(context.Background(), schema.PullRequest{}); !errors.Is(err, schema.ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
	if _, err := h.svc.Pull(context.Background(), schema.PullRequest{Source: "-bad-"}); !errors.Is(err, schema.ErrInvalidRepo) {
		t.Fatalf("expected ErrInvalidRepo, got %v", err)
	}
}

func TestPullFailureRestoresEnvironment(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	h.remote.seed("parent", []string{"page", "post"}, []string{"hero"})
	h.workspace.failCreate["type/post"] = errFakeBackend
	report, err := h.svc.Pull(context.Background(), schema.PullRequest{Source: "parent", Concurrency: 1})
	if !errors.Is(err, schema.ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if got := h.svc.Environment(); got != schema.DefaultEnvironment {
		t.Fatalf("expected environment restored after failure, got %q", got)
	}
	if report.Components != (schema.PhaseResult{Done: 1, Total: 1}) {
		t.Fatalf("unexpected component counter %+v", report.Components)
	}
	if report.Types.Complete() {
		t.Fatalf("failed phase must not reach its total: %+v", report.Types)
	}
	failed := h.events.ofType(schema.EventPhaseFailed)
	if len(failed) != 1 || failed[0].Phase != schema.PhaseTypes {
		t.Fatalf("expected types phase failure, got %+v", failed)
	}
	restored := h.events.ofType(schema.EventEnvironmentRestored)
	if len(restored) != 1 {
		t.Fatalf("expected environment_restored event, got %+v", h.events.all())
	}
}

func TestPullComponentFailureAbortsBeforeTypes(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	h.remote.seed("parent", []string{"page", "post"}, []string{"alpha", "bravo", "charlie"})
	h.workspace.failCreate["component/alpha"] = errFakeBackend
	report, err := h.svc.Pull(context.Background(), schema.PullRequest{Source: "parent", Concurrency: 1})
	if !errors.Is(err, schema.ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if len(h.workspace.order) != 0 {
		t.Fatalf("expected no create after the first failure, got %v", h.workspace.order)
	}
	if report.Components != (schema.PhaseResult{Done: 0, Total: 3}) {
		t.Fatalf("unexpected component counter %+v", report.Components)
	}
	if report.Types.Done != 0 || report.Types.Total != 2 {
		t.Fatalf("unexpected type counter %+v", report.Types)
	}
	for _, event := range h.events.all() {
		if event.Phase == schema.PhaseTypes {
			t.Fatalf("types phase must not start, got %+v", event)
		}
	}
	if got := h.svc.Environment(); got != schema.DefaultEnvironment {
		t.Fatalf("expected environment restored after failure, got %q", got)
	}
	if restored := h.events.ofType(schema.EventEnvironmentRestored); len(restored) != 1 {
		t.Fatalf("expected environment_restored event, got %+v", h.events.all())
	}
}

func TestPullRepeatedRunConverges(t *testing.T) {
	h, err := newHarness(true)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	h.remote.seed("parent", []string{"page"}, []string{"hero", "cta"})
	for i := 0; i < 2; i++ {
		if _, err := h.svc.Pull(context.Background(), schema.PullRequest{Source: "parent"}); err != nil {
			t.Fatalf("pull %d: %v", i, err)
		}
	}
	comps, types := h.workspace.counts()
	if comps != 2 || types != 1 {
		t.Fatalf("expected local count to equal remote count, got %d/%d", comps, types)
	}
}
