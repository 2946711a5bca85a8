package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds configuration options for a Store.
type Config struct {
	// Dir is the directory holding the snapshot file. It is created if missing.
	Dir string
	// Name identifies the owning component. The snapshot is <Dir>/<Name>.json.
	Name string
	// BackupCount is the number of rotated backups to keep (0 = none).
	BackupCount int
	// OnFlush, when set, is called after every flush attempt that was not
	// skipped as unchanged.
	OnFlush func(name string, took time.Duration, err error)
}

// Store keeps one value of type T in memory and mirrors it to a JSON
// snapshot on disk. Any number of readers may hold the value at once; a
// writer holds it alone and flushes it when releasing.
type Store[T any] struct {
	mu    sync.RWMutex
	value T

	cfg          Config
	file         string
	lastChecksum string
	// persisted is false until a snapshot exists on disk.
	persisted bool
	closed    bool
}

// Open loads the snapshot for cfg.Name from cfg.Dir. When there is no
// snapshot yet the store starts from def() and the first released write
// guard creates the file, changed or not. A snapshot that exists but cannot
// be decoded is an error.
func Open[T any](cfg Config, def func() T) (*Store[T], error) {
	if cfg.Name == "" {
		return nil, errors.New("state: store name cannot be empty")
	}
	if strings.ContainsAny(cfg.Name, `/\`) {
		return nil, fmt.Errorf("state: invalid store name %q", cfg.Name)
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: failed to create directory: %w", err)
	}

	s := &Store[T]{
		cfg:  cfg,
		file: filepath.Join(cfg.Dir, cfg.Name+".json"),
	}
	if def != nil {
		s.value = def()
	}

	data, err := os.ReadFile(s.file)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Flush and Close skip the default; a released write guard does not.
		if def, err := json.MarshalIndent(s.value, "", "  "); err == nil {
			s.lastChecksum = checksum(def)
		}
		return s, nil
	case err != nil:
		return nil, &FlushError{Name: cfg.Name, Path: s.file, Op: "read", Err: err}
	}

	if err := json.Unmarshal(data, &s.value); err != nil {
		return nil, fmt.Errorf("state: invalid snapshot %s: %w", s.file, err)
	}
	s.lastChecksum = checksum(data)
	s.persisted = true
	return s, nil
}

// Name returns the store's name.
func (s *Store[T]) Name() string { return s.cfg.Name }

// Path returns the snapshot file path.
func (s *Store[T]) Path() string { return s.file }

// Read acquires shared access. It blocks while a writer holds the store.
func (s *Store[T]) Read() *ReadGuard[T] {
	s.mu.RLock()
	return &ReadGuard[T]{s: s}
}

// Write acquires exclusive access. It blocks until every other guard is
// released. A closed store returns ErrClosed.
func (s *Store[T]) Write() (*WriteGuard[T], error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	return &WriteGuard[T]{s: s}, nil
}

// View runs fn with shared access and releases it afterwards, even if fn
// panics.
func (s *Store[T]) View(fn func(v T) error) error {
	g := s.Read()
	defer g.Release()
	return fn(g.Value())
}

// Update runs fn with exclusive access and releases it afterwards, even if
// fn panics. The value is flushed whether or not fn fails; the result joins
// fn's error with the flush error.
func (s *Store[T]) Update(fn func(v *T) error) (err error) {
	g, err := s.Write()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, g.Release())
	}()
	return fn(g.Value())
}

// Flush writes the current value if it changed since the last flush. A
// store that was never written is left without a snapshot.
func (s *Store[T]) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.flushLocked(false)
}

// Close flushes the value one last time, like Flush. Writes are rejected
// afterwards; reads keep returning the last value.
func (s *Store[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.flushLocked(false)
}

// flushLocked saves the value with an atomic write. The caller holds mu.
// Unless force is set an unchanged value is not written. On failure the
// in-memory value is left as is and the checksum is not advanced, so the
// next flush tries again.
func (s *Store[T]) flushLocked(force bool) error {
	start := time.Now()

	data, err := json.MarshalIndent(s.value, "", "  ")
	if err != nil {
		return s.flushed(start, &FlushError{Name: s.cfg.Name, Path: s.file, Op: "marshal", Err: err})
	}

	sum := checksum(data)
	if !force && sum == s.lastChecksum {
		return nil
	}

	if s.cfg.BackupCount > 0 {
		if err := s.createBackup(); err != nil {
			log.Warn().Err(err).Str("store", s.cfg.Name).Msg("Failed to create backup")
		}
	}

	if err := writeFileAtomic(s.file, data); err != nil {
		return s.flushed(start, &FlushError{Name: s.cfg.Name, Path: s.file, Op: "write", Err: err})
	}

	s.lastChecksum = sum
	s.persisted = true
	return s.flushed(start, nil)
}

func (s *Store[T]) flushed(start time.Time, err error) error {
	if s.cfg.OnFlush != nil {
		s.cfg.OnFlush(s.cfg.Name, time.Since(start), err)
	}
	if err != nil {
		log.Error().Err(err).Str("store", s.cfg.Name).Msg("Flush failed")
	}
	return err
}

// writeFileAtomic writes data next to path, syncs it and renames it over
// path, so a reader opening path sees either the old or the new snapshot.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// createBackup copies the current snapshot to a timestamped backup.
func (s *Store[T]) createBackup() error {
	src, err := os.Open(s.file)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	backup := fmt.Sprintf("%s.backup.%s", s.file, time.Now().UTC().Format("20060102_150405.000000000"))
	dst, err := os.Create(backup)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	s.cleanupOldBackups()
	return nil
}

// Backups lists the backup files of the store, oldest first.
func (s *Store[T]) Backups() []string {
	matches, err := filepath.Glob(s.file + ".backup.*")
	if err != nil {
		return nil
	}
	// Timestamps sort lexically.
	slices.Sort(matches)
	return matches
}

func (s *Store[T]) cleanupOldBackups() {
	backups := s.Backups()
	if len(backups) <= s.cfg.BackupCount {
		return
	}
	for _, old := range backups[:len(backups)-s.cfg.BackupCount] {
		if err := os.Remove(old); err != nil {
			log.Warn().Err(err).Str("store", s.cfg.Name).Str("file", old).Msg("Failed to remove old backup")
		}
	}
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
