package watcher

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spoolhouse/sqlspool/internal/core/config"
)

// task is the runtime state of one configuration's polling loop.
type task struct {
	cfg            config.WatchConfig
	patterns       []*regexp.Regexp
	paused         atomic.Bool
	stop           chan struct{}
	kick           chan struct{}
	closeOnce      sync.Once
	fsw            *fsnotify.Watcher
	lastTick       atomic.Int64 // unix millis
	filesProcessed atomic.Int64
}

func newTask(cfg config.WatchConfig) (*task, error) {
	t := &task{
		cfg:  cfg,
		stop: make(chan struct{}),
		kick: make(chan struct{}, 1),
	}

	for _, pattern := range cfg.FilePatterns {
		re, err := compileGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("config %s: invalid file pattern %q: %w", cfg.Name, pattern, err)
		}
		t.patterns = append(t.patterns, re)
	}

	if cfg.FSEvents {
		t.startEvents()
	}
	return t, nil
}

// startEvents wires an fsnotify fast path: a create event in the watch
// folder triggers an early tick. The polling schedule stays authoritative,
// so a failed watch just falls back to polling.
func (t *task) startEvents() {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("Filesystem events unavailable, polling only",
			"config", t.cfg.Name, "error", err)
		return
	}
	if err := fsw.Add(t.cfg.WatchFolder); err != nil {
		slog.Warn("Failed to watch folder for events, polling only",
			"config", t.cfg.Name, "error", err)
		_ = fsw.Close()
		return
	}
	t.fsw = fsw

	go func() {
		for {
			select {
			case <-t.stop:
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					select {
					case t.kick <- struct{}{}:
					default:
					}
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

func (t *task) stopEvents() {
	if t.fsw != nil {
		_ = t.fsw.Close()
	}
}

func (t *task) close() {
	t.closeOnce.Do(func() { close(t.stop) })
}

func (t *task) status() TaskStatus {
	var last time.Time
	if millis := t.lastTick.Load(); millis > 0 {
		last = time.UnixMilli(millis)
	}
	return TaskStatus{
		Name:           t.cfg.Name,
		ProcessorType:  t.cfg.ProcessorType,
		Paused:         t.paused.Load(),
		LastTick:       last,
		FilesProcessed: t.filesProcessed.Load(),
	}
}

// compileGlob translates a file glob into an anchored regular expression:
// '*' matches any run, '?' matches one character, everything else is
// literal.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}
