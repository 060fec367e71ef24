package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/saturnblock/pythonplantpot/internal/log"
)

// Source supplies the configuration the engine should act on right now
type Source interface {
	Current() Config
}

// Static is a Source that never changes
type Static Config

// Current returns the wrapped configuration
func (s Static) Current() Config { return Config(s) }

const reloadDebounce = 250 * time.Millisecond

// FileSource serves a configuration file and reloads it when the file changes.
// A reload that fails to parse or that the engine could not run with is
// rejected and the last good configuration stays in effect.
type FileSource struct {
	path string

	mu       sync.RWMutex
	current  Config
	onChange []func(old, updated Config)

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewFileSource loads path (writing defaults when missing) and returns a source for it
func NewFileSource(path string) (*FileSource, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckEngine(); err != nil {
		return nil, err
	}
	return &FileSource{path: path, current: cfg}, nil
}

// Path returns the watched file
func (s *FileSource) Path() string { return s.path }

// Current returns the last good configuration
func (s *FileSource) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange registers fn to run after a reload changed the configuration
func (s *FileSource) OnChange(fn func(old, updated Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Reload re-reads the file. It reports whether the configuration changed.
func (s *FileSource) Reload() (bool, error) {
	cfg, err := s.read()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	old := s.current
	if cmp.Equal(old, cfg, cmpopts.EquateEmpty()) {
		s.mu.Unlock()
		return false, nil
	}
	s.current = cfg
	callbacks := append([]func(old, updated Config){}, s.onChange...)
	s.mu.Unlock()

	log.Info("Configuration reloaded from %s", s.path)
	log.DebugH2("Config diff (-old +new):\n%s", cmp.Diff(old, cfg, cmpopts.EquateEmpty()))
	for _, fn := range callbacks {
		fn(old, cfg)
	}
	return true, nil
}

func (s *FileSource) read() (Config, error) {
	//nolint:gosec // G304: config path is chosen by the operator
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Config{}, fmt.Errorf("reload of %s rejected: %w", s.path, err)
	}

	parse := Parse
	if strings.EqualFold(filepath.Ext(s.path), ".json") {
		parse = ParseLegacy
	}
	cfg, err := parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("reload of %s rejected: %w", s.path, err)
	}
	if err := cfg.CheckEngine(); err != nil {
		return Config{}, fmt.Errorf("reload of %s rejected: %w", s.path, err)
	}
	return cfg, nil
}

// Watch follows the configuration file until ctx is cancelled. The parent
// directory is watched so editors that replace the file are handled.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	base := filepath.Base(s.path)
	log.Debug("Watching %s for configuration changes", s.path)

	defer s.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Config watcher error: %v", err)
		}
	}
}

func (s *FileSource) schedule() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(reloadDebounce, func() {
		if _, err := s.Reload(); err != nil {
			log.Error("%v (keeping previous configuration)", err)
		}
	})
}

func (s *FileSource) stopTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
