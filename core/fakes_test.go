package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"pkt.systems/modelsync/schema"
)

var errFakeBackend = fmt.Errorf("%w: fake failure", schema.ErrBackend)

type fakeAuth struct {
	ok bool
}

func (f fakeAuth) IsAuthenticated(context.Context) bool { return f.ok }

type fakeWorkspace struct {
	mu         sync.Mutex
	libraries  []schema.LibraryID
	types      map[string]schema.TypeModel
	components map[string]schema.ComponentModel
	order      []string
	initCalls  int
	typeReads  int
	compReads  int
	failCreate map[string]error
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{
		libraries:  []schema.LibraryID{"./slices", "./blocks"},
		types:      map[string]schema.TypeModel{},
		components: map[string]schema.ComponentModel{},
		failCreate: map[string]error{},
	}
}

func (w *fakeWorkspace) Init(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.initCalls++
	return nil
}

func (w *fakeWorkspace) ResolveLibrary(lib schema.LibraryID) (schema.LibraryID, error) {
	if lib == "" {
		return w.libraries[0], nil
	}
	for _, candidate := range w.libraries {
		if candidate == lib {
			return lib, nil
		}
	}
	return "", schema.ErrInvalidLibrary
}

func (w *fakeWorkspace) ReadAllTypes(context.Context) ([]schema.TypeModel, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.typeReads++
	out := make([]schema.TypeModel, 0, len(w.types))
	for _, id := range sortedKeys(w.types) {
		out = append(out, w.types[id])
	}
	return out, nil
}

func (w *fakeWorkspace) ReadAllComponents(context.Context) ([]schema.ComponentModel, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.compReads++
	out := make([]schema.ComponentModel, 0, len(w.components))
	for _, id := range sortedKeys(w.components) {
		out = append(out, w.components[id])
	}
	return out, nil
}

func (w *fakeWorkspace) CreateType(_ context.Context, model schema.TypeModel) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.failCreate["type/"+model.ID]; err != nil {
		return err
	}
	w.types[model.ID] = model
	w.order = append(w.order, "type/"+model.ID)
	return nil
}

func (w *fakeWorkspace) CreateComponent(_ context.Context, library schema.LibraryID, model schema.ComponentModel) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.failCreate["component/"+model.ID]; err != nil {
		return err
	}
	model.Library = library
	w.components[model.ID] = model
	w.order = append(w.order, "component/"+model.ID)
	return nil
}

func (w *fakeWorkspace) counts() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.components), len(w.types)
}

type remoteCall struct {
	repo   schema.RepoName
	op     string
	id     string
	active schema.Environment
}

// fakeRemote stores models per repository with upsert semantics.
type fakeRemote struct {
	mu       sync.Mutex
	active   func() schema.Environment
	types    map[schema.RepoName]map[string]string
	comps    map[schema.RepoName]map[string]string
	calls    []remoteCall
	opened   []schema.RepoName
	pushes   map[schema.RepoName]int
	inflight atomic.Int64
	peak     atomic.Int64
	// fail decides the outcome of the n-th (1-based) push call of a repository.
	fail     func(repo schema.RepoName, op, id string, n int) error
	failInit map[schema.RepoName]error
	release  chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		types:    map[schema.RepoName]map[string]string{},
		comps:    map[schema.RepoName]map[string]string{},
		pushes:   map[schema.RepoName]int{},
		failInit: map[schema.RepoName]error{},
	}
}

func (r *fakeRemote) Open(repo schema.RepoName) (Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, repo)
	return &fakeRepository{remote: r, name: repo}, nil
}

func (r *fakeRemote) seed(repo schema.RepoName, types []string, comps []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[repo] = map[string]string{}
	r.comps[repo] = map[string]string{}
	for _, id := range types {
		r.types[repo][id] = fmt.Sprintf(`{"id":%q}`, id)
	}
	for _, id := range comps {
		r.comps[repo][id] = fmt.Sprintf(`{"id":%q}`, id)
	}
}

func (r *fakeRemote) record(repo schema.RepoName, op, id string) int {
	active := schema.DefaultEnvironment
	if r.active != nil {
		active = r.active()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, remoteCall{repo: repo, op: op, id: id, active: active})
	if op == "push-type" || op == "push-component" {
		r.pushes[repo]++
		return r.pushes[repo]
	}
	return 0
}

func (r *fakeRemote) callsFor(repo schema.RepoName) []remoteCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []remoteCall
	for _, call := range r.calls {
		if call.repo == repo {
			out = append(out, call)
		}
	}
	return out
}

func (r *fakeRemote) snapshot(repo schema.RepoName) (map[string]string, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := map[string]string{}
	comps := map[string]string{}
	for k, v := range r.types[repo] {
		types[k] = v
	}
	for k, v := range r.comps[repo] {
		comps[k] = v
	}
	return types, comps
}

type fakeRepository struct {
	remote *fakeRemote
	name   schema.RepoName
}

func (f *fakeRepository) Name() schema.RepoName { return f.name }

func (f *fakeRepository) FetchTypes(context.Context) ([]schema.TypeModel, error) {
	f.remote.record(f.name, "fetch-types", "")
	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	var out []schema.TypeModel
	for _, id := range sortedKeys(f.remote.types[f.name]) {
		out = append(out, schema.TypeModel{ID: id, Raw: []byte(f.remote.types[f.name][id])})
	}
	return out, nil
}

func (f *fakeRepository) FetchComponents(context.Context) ([]schema.ComponentModel, error) {
	f.remote.record(f.name, "fetch-components", "")
	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	var out []schema.ComponentModel
	for _, id := range sortedKeys(f.remote.comps[f.name]) {
		out = append(out, schema.ComponentModel{ID: id, Name: schema.PascalCase(id), Raw: []byte(f.remote.comps[f.name][id])})
	}
	return out, nil
}

func (f *fakeRepository) PushType(_ context.Context, model schema.TypeModel) error {
	return f.push("push-type", model.ID, model.Raw, f.remote.types)
}

func (f *fakeRepository) PushComponent(_ context.Context, model schema.ComponentModel) error {
	return f.push("push-component", model.ID, model.Raw, f.remote.comps)
}

func (f *fakeRepository) push(op, id string, raw []byte, store map[schema.RepoName]map[string]string) error {
	current := f.remote.inflight.Add(1)
	defer f.remote.inflight.Add(-1)
	for {
		peak := f.remote.peak.Load()
		if current <= peak || f.remote.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	n := f.remote.record(f.name, op, id)
	if f.remote.release != nil {
		<-f.remote.release
	}
	if f.remote.fail != nil {
		if err := f.remote.fail(f.name, op, id, n); err != nil {
			return err
		}
	}
	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	if store[f.name] == nil {
		store[f.name] = map[string]string{}
	}
	store[f.name][id] = string(raw)
	return nil
}

func (f *fakeRepository) InitAssetStorage(context.Context) error {
	f.remote.record(f.name, "init-acl", "")
	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	return f.remote.failInit[f.name]
}

type eventRecorder struct {
	mu     sync.Mutex
	events []schema.ProgressEvent
}

func (r *eventRecorder) OnProgress(event schema.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) all() []schema.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.ProgressEvent(nil), r.events...)
}

func (r *eventRecorder) ofType(kind schema.ProgressEventType) []schema.ProgressEvent {
	var out []schema.ProgressEvent
	for _, event := range r.all() {
		if event.Type == kind {
			out = append(out, event)
		}
	}
	return out
}

// percents returns the percent sequence of phase events for one repository.
func (r *eventRecorder) percents(repo schema.RepoName) []int {
	var out []int
	for _, event := range r.all() {
		if event.Repo != repo || event.Phase != schema.PhaseRepository {
			continue
		}
		if event.Type == schema.EventPhaseStarted || event.Type == schema.EventPhaseAdvanced {
			out = append(out, event.Percent)
		}
	}
	return out
}

type harness struct {
	svc       Service
	workspace *fakeWorkspace
	remote    *fakeRemote
	events    *eventRecorder
}

func newHarness(authenticated bool) (*harness, error) {
	h := &harness{
		workspace: newFakeWorkspace(),
		remote:    newFakeRemote(),
		events:    &eventRecorder{},
	}
	svc, err := NewService(schema.ServiceConfig{}, ServiceDeps{
		Auth:         fakeAuth{ok: authenticated},
		Workspace:    h.workspace,
		Repositories: h.remote,
		Sink:         h.events,
	})
	if err != nil {
		return nil, err
	}
	h.svc = svc
	h.remote.active = svc.Environment
	return h, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func isBackend(err error) bool {
	return errors.Is(err, schema.ErrBackend)
}
