package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const fileExt = ".json"

// File keeps one file per key in a directory. Independent processes opening
// the same directory see each other's writes through filesystem notifications,
// the way browser tabs see storage events.
type File struct {
	dir string
	log logrus.FieldLogger

	mu       sync.Mutex
	closed   bool
	watchers []*fsnotify.Watcher
}

func NewFile(dir string, log logrus.FieldLogger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &File{dir: dir, log: log}, nil
}

func (f *File) Dir() string {
	return f.dir
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Set writes to a temp file and renames it over the key file so readers never
// observe a half-written value.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", key, err)
	}
	return nil
}

func (f *File) Remove(_ context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Watch reports changes to any key file in the directory, including the
// process's own writes.
func (f *File) Watch(ctx context.Context) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(f.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", f.dir, err)
	}
	f.watchers = append(f.watchers, w)

	out := make(chan Event, watcherBuffer)
	go f.run(ctx, w, out)
	return out, nil
}

func (f *File) run(ctx context.Context, w *fsnotify.Watcher, out chan<- Event) {
	defer close(out)
	defer f.release(w)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if converted, ok := f.convert(ev); ok {
				select {
				case out <- converted:
				default:
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.log.Errorf("file storage watcher error: %v", err)
		}
	}
}

func (f *File) convert(ev fsnotify.Event) (Event, bool) {
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, fileExt) {
		return Event{}, false
	}
	key := strings.TrimSuffix(base, fileExt)

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		return Event{Key: key, Op: OpSet, At: time.Now()}, true
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return Event{Key: key, Op: OpRemove, At: time.Now()}, true
	default:
		return Event{}, false
	}
}

func (f *File) release(w *fsnotify.Watcher) {
	f.mu.Lock()
	for i, candidate := range f.watchers {
		if candidate == w {
			f.watchers = append(f.watchers[:i], f.watchers[i+1:]...)
			break
		}
	}
	f.mu.Unlock()
	w.Close()
}

func (f *File) Ping(context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("storage dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage dir %s is not a directory", f.dir)
	}
	return nil
}

// Close stops every watcher; the files stay on disk.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	watchers := f.watchers
	f.watchers = nil
	f.mu.Unlock()

	for _, w := range watchers {
		w.Close()
	}
	return nil
}

func (f *File) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(f.dir, key+fileExt), nil
}
