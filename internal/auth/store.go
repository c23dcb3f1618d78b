package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"pkt.systems/modelsync/schema"
	"pkt.systems/pslog"
)

const (
	// EnvToken overrides the auth file when set.
	EnvToken = "MODELSYNC_TOKEN"
	// DefaultCookieName is the cookie carrying the API token in the auth file.
	DefaultCookieName = "prismic-auth"
	// DefaultBase is written to new auth files.
	DefaultBase = "https://prismic.io"
)

// File is the on-disk credential format shared with the CMS tooling.
type File struct {
	Base    string `json:"base"`
	Cookies string `json:"cookies"`
}

// Store resolves API credentials from the environment or the auth file.
type Store struct {
	path       string
	cookieName string
	getenv     func(string) string
	mu         sync.RWMutex
	file       File
	loaded     bool
	fileState  fileState
	log        pslog.Logger
}

// Options configures a Store.
type Options struct {
	// CookieName overrides DefaultCookieName.
	CookieName string
	// Getenv overrides os.Getenv; used by tests.
	Getenv func(string) string
	Logger pslog.Logger
}

// NewStore constructs a credential store backed by path.
func NewStore(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("auth file path is required")
	}
	cookie := strings.TrimSpace(opts.CookieName)
	if cookie == "" {
		cookie = DefaultCookieName
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	logger := opts.Logger
	if logger != nil {
		logger = logger.With("auth_file", path)
	}
	return &Store{path: path, cookieName: cookie, getenv: getenv, log: logger}, nil
}

// Path returns the auth file path.
func (s *Store) Path() string {
	return s.path
}

// IsAuthenticated reports whether a non-empty token is available.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	token, err := s.Token(ctx)
	return err == nil && token != ""
}

// Token returns the API token, preferring the environment override.
func (s *Store) Token(ctx context.Context) (string, error) {
	if token := strings.TrimSpace(s.getenv(EnvToken)); token != "" {
		return token, nil
	}
	if err := s.refreshIfNeeded(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", schema.ErrNotAuthenticated
		}
		return "", fmt.Errorf("read auth file: %w", err)
	}
	s.mu.RLock()
	cookies := s.file.Cookies
	s.mu.RUnlock()
	token := CookieValue(cookies, s.cookieName)
	if token == "" {
		return "", schema.ErrNotAuthenticated
	}
	return token, nil
}

// Source describes where the active credentials come from.
func (s *Store) Source(ctx context.Context) string {
	if strings.TrimSpace(s.getenv(EnvToken)) != "" {
		return "env:" + EnvToken
	}
	if s.IsAuthenticated(ctx) {
		return "file:" + s.path
	}
	return ""
}

// Login writes token into the auth file, preserving unrelated cookies.
func (s *Store) Login(token, base string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	if err := s.refreshIfNeeded(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file := s.file
	if strings.TrimSpace(base) != "" {
		file.Base = strings.TrimSpace(base)
	}
	if file.Base == "" {
		file.Base = DefaultBase
	}
	file.Cookies = setCookie(file.Cookies, s.cookieName, token)
	if err := s.saveLocked(file); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Info("auth login ok")
	}
	return nil
}

// Logout removes the token cookie from the auth file.
func (s *Store) Logout() error {
	if err := s.refreshIfNeeded(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file := s.file
	file.Cookies = removeCookie(file.Cookies, s.cookieName)
	return s.saveLocked(file)
}

// CookieValue extracts a cookie value from a "k=v; k2=v2" header string.
func CookieValue(cookies, name string) string {
	for _, part := range strings.Split(cookies, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == name {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func setCookie(cookies, name, value string) string {
	parts := []string{name + "=" + value}
	for _, part := range splitCookies(cookies) {
		key, _, _ := strings.Cut(part, "=")
		if strings.TrimSpace(key) == name {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

func removeCookie(cookies, name string) string {
	var parts []string
	for _, part := range splitCookies(cookies) {
		key, _, _ := strings.Cut(part, "=")
		if strings.TrimSpace(key) == name {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

func splitCookies(cookies string) []string {
	var out []string
	for _, part := range strings.Split(cookies, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Store) saveLocked(file File) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		s.warn("auth file save failed", err)
		return err
	}
	tmp, err := os.CreateTemp(dir, ".auth-*.json")
	if err != nil {
		s.warn("auth file save failed", err)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warn("auth file save failed", err)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("auth file save failed", err)
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("auth file save failed", err)
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		s.warn("auth file save failed", err)
		return err
	}
	s.file = file
	s.loaded = true
	if info, err := os.Stat(s.path); err == nil {
		s.fileState = fileStateFromInfo(info)
	}
	return nil
}

func (s *Store) warn(msg string, err error) {
	if s.log != nil {
		s.log.Warn(msg, "err", err)
	}
}

type fileState struct {
	modTime time.Time
	size    int64
	inode   uint64
	dev     uint64
}

func fileStateFromInfo(info os.FileInfo) fileState {
	state := fileState{
		modTime: info.ModTime(),
		size:    info.Size(),
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		state.inode = stat.Ino
		state.dev = uint64(stat.Dev)
	}
	return state
}

func (s fileState) equal(other fileState) bool {
	return s.size == other.size &&
		s.modTime.Equal(other.modTime) &&
		s.inode == other.inode &&
		s.dev == other.dev
}

// refreshIfNeeded reloads the auth file when it changed on disk.
func (s *Store) refreshIfNeeded() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.file = File{}
			s.loaded = false
			s.fileState = fileState{}
			s.mu.Unlock()
		}
		return err
	}
	latest := fileStateFromInfo(info)
	s.mu.RLock()
	current := s.fileState
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded && current.equal(latest) {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.warn("auth file load failed", err)
		return err
	}
	var file File
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &file); err != nil {
			s.warn("auth file load failed", err)
			return fmt.Errorf("parse %s: %w", s.path, err)
		}
	}
	s.mu.Lock()
	s.file = file
	s.loaded = true
	s.fileState = latest
	s.mu.Unlock()
	if s.log != nil {
		s.log.Debug("auth file loaded")
	}
	return nil
}
