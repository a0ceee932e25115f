// Package inbox submits chat logs dropped into a directory.
//
// Files named *.json are submitted as message lists. Files named
// *.<type>.txt are submitted as text logs of that type, for example
// session.irc.txt. Other files, directories and hidden entries are
// ignored. Because submissions are content addressed, rewriting a file
// with the same content returns the existing log.
//
// A watched file is submitted once it has gone a settle delay without
// further writes, so a file written in several chunks becomes one log.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driving"
	"github.com/custodia-labs/chatlogs/internal/logger"
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("inbox: watcher closed")

// DefaultSettleDelay is how long a file must go unwritten before Watch
// submits it.
const DefaultSettleDelay = 500 * time.Millisecond

// Result reports the outcome of submitting one file.
type Result struct {
	// Path is the file that was submitted.
	Path string

	// Record is the stored log, nil on failure.
	Record *domain.LogRecord

	// Err is the submission failure, if any.
	Err error
}

// Template holds the submission fields applied to every file.
type Template struct {
	Owner    domain.Owner
	Expires  string
	Privacy  domain.Privacy
	GuildRef string
}

// Watcher submits files from a directory to the log service.
type Watcher struct {
	dir      string
	logs     driving.LogService
	template Template
	settle   time.Duration

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettleDelay sets how long a file must go unwritten before it is
// submitted. Non-positive values keep the default.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// New creates a watcher for dir.
func New(dir string, logs driving.LogService, template Template, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		logs:     logs,
		template: template,
		settle:   DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Scan submits every matching file already present, in name order.
func (w *Watcher) Scan(ctx context.Context) ([]Result, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var results []Result
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if r := w.submitFile(ctx, filepath.Join(w.dir, name)); r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

// Watch starts watching the directory. A result is sent for every
// matching file once writes to it have settled. The channel is closed
// when ctx is cancelled or the watcher is closed; files still settling
// are dropped.
func (w *Watcher) Watch(ctx context.Context) (<-chan Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.dir, err)
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.watcher = fsw

	results := make(chan Result)
	go w.loop(ctx, fsw, results)
	return results, nil
}

// pendingFile is a file waiting for its writes to settle. gen identifies
// the latest timer so a superseded one is ignored.
type pendingFile struct {
	gen   uint64
	timer *time.Timer
}

type settled struct {
	path string
	gen  uint64
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, results chan<- Result) {
	defer close(results)
	defer fsw.Close()

	done := make(chan struct{})
	defer close(done)

	due := make(chan settled)
	pending := make(map[string]*pendingFile)
	defer func() {
		for _, p := range pending {
			p.timer.Stop()
		}
	}()
	var gen uint64

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			switch {
			case w.wantsSubmit(event):
				if p, ok := pending[event.Name]; ok {
					p.timer.Stop()
				}
				gen++
				s := settled{path: event.Name, gen: gen}
				pending[event.Name] = &pendingFile{gen: gen, timer: time.AfterFunc(w.settle, func() {
					select {
					case due <- s:
					case <-done:
					}
				})}
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				if p, ok := pending[event.Name]; ok {
					p.timer.Stop()
					delete(pending, event.Name)
				}
			}
		case s := <-due:
			p, ok := pending[s.path]
			if !ok || p.gen != s.gen {
				continue
			}
			delete(pending, s.path)
			r := w.submitFile(ctx, s.path)
			if r == nil {
				continue
			}
			select {
			case results <- *r:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("inbox: watch error: %v", err)
		}
	}
}

// wantsSubmit reports whether event creates or writes a file the inbox
// submits. Removes and renames only cancel a pending submission.
func (w *Watcher) wantsSubmit(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if isHidden(filepath.Base(event.Name)) {
		return false
	}
	_, _, ok := classify(event.Name)
	return ok
}

// submitFile submits path if it names a regular, visible, matching file.
func (w *Watcher) submitFile(ctx context.Context, path string) *Result {
	if isHidden(filepath.Base(path)) {
		return nil
	}
	kind, declaredType, ok := classify(path)
	if !ok {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &Result{Path: path, Err: fmt.Errorf("reading %s: %w", path, err)}
	}
	if len(data) == 0 {
		// Created but not yet written; the write event follows.
		return nil
	}

	sub := domain.RawSubmission{
		DeclaredType: declaredType,
		Owner:        w.template.Owner,
		ExpiresSpec:  w.template.Expires,
		Privacy:      w.template.Privacy,
		GuildRef:     w.template.GuildRef,
		Metadata:     map[string]any{"source_file": filepath.Base(path)},
	}
	switch kind {
	case kindList:
		msgs, err := domain.DecodeMessageList(data)
		if err != nil {
			return &Result{Path: path, Err: err}
		}
		sub.Content = domain.MessageContent(msgs)
	case kindText:
		sub.Content = domain.TextContent(string(data))
	}

	record, err := w.logs.Submit(ctx, sub)
	if err != nil {
		logger.Debug("inbox: %s: %v", filepath.Base(path), err)
		return &Result{Path: path, Err: err}
	}
	logger.Info("inbox: %s -> %s", filepath.Base(path), record.Fingerprint.Short())
	return &Result{Path: path, Record: record}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.watcher != nil {
		err := w.watcher.Close()
		w.watcher = nil
		return err
	}
	return nil
}

type fileKind int

const (
	kindList fileKind = iota
	kindText
)

// classify maps a file name to its submission kind and declared type.
func classify(path string) (fileKind, string, bool) {
	name := strings.ToLower(filepath.Base(path))

	if strings.HasSuffix(name, ".json") && len(name) > len(".json") {
		return kindList, "", true
	}

	stem, ok := strings.CutSuffix(name, ".txt")
	if !ok {
		return 0, "", false
	}
	dot := strings.LastIndexByte(stem, '.')
	if dot <= 0 || dot == len(stem)-1 {
		return 0, "", false
	}
	return kindText, stem[dot+1:], true
}

// isHidden reports whether a file name starts with a dot.
func isHidden(name string) bool {
	return name != "." && name != ".." && strings.HasPrefix(name, ".")
}
