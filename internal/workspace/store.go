// Package workspace reads and writes the local authoring workspace: the
// workspace config, content type models and component libraries on disk.
package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pkt.systems/modelsync/schema"
	"pkt.systems/pslog"
)

const (
	typesDir       = "customtypes"
	typeFileName   = "index.json"
	modelFileName  = "model.json"
	tempFilePrefix = ".model-"
)

// Options configures a Workspace.
type Options struct {
	Conflict schema.ConflictPolicy
	Logger   pslog.Logger
}

// Workspace is the local authoring workspace rooted at a project directory.
type Workspace struct {
	root     string
	conflict schema.ConflictPolicy
	log      pslog.Logger

	mu        sync.RWMutex
	cfg       *Config
	libraries []schema.LibraryID

	// writeMu serializes lookup-then-write for type creates.
	writeMu sync.Mutex

	// indexMu guards indexes. Component files are written outside it.
	indexMu sync.Mutex
	indexes map[schema.LibraryID]*libraryIndex
}

// libraryIndex maps the components of one library to their directories.
// It is built from disk on first use after Init and updated on every create.
type libraryIndex struct {
	paths map[string]string // model ID -> model.json path
	dirs  map[string]string // lower-cased directory name -> model ID
}

// New constructs a workspace at root. Init must run before model operations.
func New(root string, opts Options) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	conflict, err := schema.ParseConflictPolicy(string(opts.Conflict))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger != nil {
		logger = logger.With("workspace", abs)
	}
	return &Workspace{root: abs, conflict: conflict, log: logger}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// ConfigPath returns the path of the workspace config file.
func (w *Workspace) ConfigPath() string {
	return filepath.Join(w.root, ConfigFileName)
}

// Init loads and validates the workspace config. It is idempotent.
func (w *Workspace) Init(ctx context.Context) error {
	data, err := os.ReadFile(w.ConfigPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s not found in %s", schema.ErrWorkspaceNotInitialized, ConfigFileName, w.root)
		}
		return fmt.Errorf("reading workspace config: %w", err)
	}
	cfg, libs, err := ParseConfig(data)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.cfg = &cfg
	w.libraries = libs
	w.mu.Unlock()
	w.indexMu.Lock()
	w.indexes = nil
	w.indexMu.Unlock()
	w.logger(ctx).Debug("workspace init ok", "libraries", len(libs), "repository", cfg.RepositoryName)
	return nil
}

// Config returns the loaded workspace config.
func (w *Workspace) Config() (Config, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.cfg == nil {
		return Config{}, schema.ErrWorkspaceNotInitialized
	}
	return *w.cfg, nil
}

// Libraries returns the configured component libraries in config order.
func (w *Workspace) Libraries() ([]schema.LibraryID, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.cfg == nil {
		return nil, schema.ErrWorkspaceNotInitialized
	}
	return append([]schema.LibraryID(nil), w.libraries...), nil
}

// ResolveLibrary validates lib against the config; empty selects the first library.
func (w *Workspace) ResolveLibrary(lib schema.LibraryID) (schema.LibraryID, error) {
	libs, err := w.Libraries()
	if err != nil {
		return "", err
	}
	if lib == "" {
		return libs[0], nil
	}
	normalized, err := schema.NormalizeLibraryID(string(lib))
	if err != nil {
		return "", err
	}
	for _, candidate := range libs {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not configured in %s", schema.ErrInvalidLibrary, lib, ConfigFileName)
}

// ReadAllTypes reads every content type model, sorted by ID.
func (w *Workspace) ReadAllTypes(ctx context.Context) ([]schema.TypeModel, error) {
	if _, err := w.Config(); err != nil {
		return nil, err
	}
	dir := filepath.Join(w.root, typesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var out []schema.TypeModel
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name(), typeFileName)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		model, err := schema.DecodeTypeModel(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, model)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	w.logger(ctx).Debug("workspace types read", "count", len(out))
	return out, nil
}

// ReadAllComponents reads every component model of every library, sorted by library then ID.
func (w *Workspace) ReadAllComponents(ctx context.Context) ([]schema.ComponentModel, error) {
	libs, err := w.Libraries()
	if err != nil {
		return nil, err
	}
	var out []schema.ComponentModel
	for _, lib := range libs {
		models, err := w.readLibrary(lib)
		if err != nil {
			return nil, err
		}
		for _, found := range models {
			out = append(out, found.model)
		}
	}
	w.logger(ctx).Debug("workspace components read", "count", len(out), "libraries", len(libs))
	return out, nil
}

// CreateType writes a content type model into the workspace.
func (w *Workspace) CreateType(ctx context.Context, model schema.TypeModel) error {
	if _, err := w.Config(); err != nil {
		return err
	}
	if err := validateID(model.ID); err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	path := filepath.Join(w.root, typesDir, model.ID, typeFileName)
	if _, err := os.Stat(path); err == nil {
		if w.conflict == schema.ConflictReject {
			return fmt.Errorf("%w: type %q", schema.ErrModelExists, model.ID)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := writeModelFile(path, model.Raw); err != nil {
		w.logger(ctx).Warn("workspace type write failed", "model", model.ID, "err", err)
		return err
	}
	w.logger(ctx).Trace("workspace type written", "model", model.ID)
	return nil
}

// CreateComponent writes a component model into library. An existing model
// with the same ID in that library is overwritten in place under upsert. A
// model whose directory name is already used by another ID is written to a
// free directory instead.
func (w *Workspace) CreateComponent(ctx context.Context, library schema.LibraryID, model schema.ComponentModel) error {
	lib, err := w.ResolveLibrary(library)
	if err != nil {
		return err
	}
	if err := validateID(model.ID); err != nil {
		return err
	}
	name := model.Name
	if name == "" {
		name = schema.PascalCase(model.ID)
	}
	if err := validateID(name); err != nil {
		return err
	}
	path, reserved, err := w.reserveComponent(ctx, lib, model.ID, name)
	if err != nil {
		return err
	}
	if err := writeModelFile(path, model.Raw); err != nil {
		if reserved {
			w.releaseComponent(lib, model.ID, path)
		}
		w.logger(ctx).Warn("workspace component write failed", "model", model.ID, "library", lib, "err", err)
		return err
	}
	w.logger(ctx).Trace("workspace component written", "model", model.ID, "library", lib)
	return nil
}

// reserveComponent returns the model.json path for id. reserved reports a
// new index entry, as opposed to an existing model being overwritten.
func (w *Workspace) reserveComponent(ctx context.Context, lib schema.LibraryID, id, name string) (string, bool, error) {
	w.indexMu.Lock()
	defer w.indexMu.Unlock()
	idx, err := w.libraryIndexLocked(lib)
	if err != nil {
		return "", false, err
	}
	if path, ok := idx.paths[id]; ok {
		if w.conflict == schema.ConflictReject {
			return "", false, fmt.Errorf("%w: component %q in %s", schema.ErrModelExists, id, lib)
		}
		return path, false, nil
	}
	dir := idx.freeDir(name, id)
	if dir != name {
		w.logger(ctx).Warn("workspace component directory taken", "model", id, "library", lib, "dir", name, "owner", idx.dirs[strings.ToLower(name)], "using", dir)
	}
	path := filepath.Join(w.libraryDir(lib), dir, modelFileName)
	idx.paths[id] = path
	idx.dirs[strings.ToLower(dir)] = id
	return path, true, nil
}

func (w *Workspace) releaseComponent(lib schema.LibraryID, id, path string) {
	w.indexMu.Lock()
	defer w.indexMu.Unlock()
	idx, ok := w.indexes[lib]
	if !ok || idx.paths[id] != path {
		return
	}
	delete(idx.paths, id)
	delete(idx.dirs, strings.ToLower(filepath.Base(filepath.Dir(path))))
}

func (w *Workspace) libraryIndexLocked(lib schema.LibraryID) (*libraryIndex, error) {
	if idx, ok := w.indexes[lib]; ok {
		return idx, nil
	}
	existing, err := w.readLibrary(lib)
	if err != nil {
		return nil, err
	}
	idx := &libraryIndex{
		paths: make(map[string]string, len(existing)),
		dirs:  make(map[string]string, len(existing)),
	}
	for _, found := range existing {
		idx.paths[found.model.ID] = found.path
		idx.dirs[strings.ToLower(filepath.Base(filepath.Dir(found.path)))] = found.model.ID
	}
	if w.indexes == nil {
		w.indexes = make(map[schema.LibraryID]*libraryIndex)
	}
	w.indexes[lib] = idx
	return idx, nil
}

// freeDir picks the first unused directory among name, the PascalCase ID,
// then name with a numeric suffix. Names are compared case-insensitively.
func (idx *libraryIndex) freeDir(name, id string) string {
	free := func(dir string) bool {
		_, taken := idx.dirs[strings.ToLower(dir)]
		return !taken
	}
	if free(name) {
		return name
	}
	if alt := schema.PascalCase(id); alt != "" && validateID(alt) == nil && free(alt) {
		return alt
	}
	for n := 2; ; n++ {
		if dir := fmt.Sprintf("%s%d", name, n); free(dir) {
			return dir
		}
	}
}

type componentFile struct {
	path  string
	model schema.ComponentModel
}

func (w *Workspace) libraryDir(lib schema.LibraryID) string {
	return filepath.Join(w.root, filepath.FromSlash(strings.TrimPrefix(string(lib), "./")))
}

func (w *Workspace) readLibrary(lib schema.LibraryID) ([]componentFile, error) {
	dir := w.libraryDir(lib)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading library %s: %w", lib, err)
	}
	var out []componentFile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name(), modelFileName)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		model, err := schema.DecodeComponentModel(data, lib)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, componentFile{path: path, model: model})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].model.ID < out[j].model.ID })
	return out, nil
}

func (w *Workspace) logger(ctx context.Context) pslog.Logger {
	if w.log != nil {
		return w.log
	}
	return pslog.Ctx(ctx)
}

func validateID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" || trimmed != id {
		return fmt.Errorf("%w: empty or padded identifier %q", schema.ErrInvalidModel, id)
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: identifier %q is not a valid directory name", schema.ErrInvalidModel, id)
	}
	return nil
}

// writeModelFile writes pretty-printed JSON atomically via temp file and rename.
func writeModelFile(path string, raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty definition", schema.ErrInvalidModel)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrInvalidModel, err)
	}
	pretty.WriteByte('\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tempFilePrefix+"*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(pretty.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
