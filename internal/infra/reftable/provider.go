// Package reftable keeps the schedule calculator in sync with the reference table file.
package reftable

import (
	"context"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"immunization_bot/internal/domain/immunization"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultDebounce    = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Provider serves the calculator built from the latest valid reference table.
// A reload that fails to read, parse or validate leaves the previous calculator in place.
type Provider struct {
	path     string
	opts     []immunization.Option
	log      *logrus.Entry
	debounce time.Duration

	current atomic.Pointer[immunization.Calculator]

	reloadMu sync.Mutex
	lastHash uint64
}

// NewProvider loads the table at path. Options are applied to every calculator it builds.
func NewProvider(path string, log *logrus.Entry, opts ...immunization.Option) (*Provider, error) {
	p := &Provider{
		path:     path,
		opts:     opts,
		log:      log.WithField("path", path),
		debounce: defaultDebounce,
	}
	if _, err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Current returns the active calculator. It never returns nil.
func (p *Provider) Current() *immunization.Calculator {
	return p.current.Load()
}

// Reload rebuilds the calculator from disk. It reports false when the file content
// matches the active table.
func (p *Provider) Reload() (bool, error) {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		return false, &immunization.ConfigError{Path: p.path, Err: errors.Wrap(err, "read reference table")}
	}
	h := hashBytes(data)
	if p.current.Load() != nil && h == p.lastHash {
		return false, nil
	}

	table, err := immunization.ParseReferenceTable(data, immunization.FormatForPath(p.path))
	if err != nil {
		var cerr *immunization.ConfigError
		if errors.As(err, &cerr) && cerr.Path == "" {
			cerr.Path = p.path
		}
		return false, err
	}
	calc, err := immunization.NewCalculator(table, p.opts...)
	if err != nil {
		return false, err
	}

	p.current.Store(calc)
	p.lastHash = h
	p.log.WithFields(logrus.Fields{
		"vaccines":     len(table.Vaccines),
		"advance_days": table.AdvanceDays,
	}).Info("Reference table loaded")
	return true, nil
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// Watch reloads the table whenever its file changes, until ctx is cancelled.
// Editors often replace files via rename, so the parent directory is watched.
func (p *Provider) Watch(ctx context.Context) error {
	dir := filepath.Dir(p.path)
	file := filepath.Base(p.path)

	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	nextWait := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff *= 2
			if backoff > restartBackoffMax {
				backoff = restartBackoffMax
			}
		}
		return wait
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	scheduleReload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(p.debounce, func() {
			if ctx.Err() != nil {
				return
			}
			changed, err := p.Reload()
			if err != nil {
				p.log.WithError(err).Warn("Reference table rejected; keeping previous calculator")
				return
			}
			if !changed {
				p.log.Debug("Reference table unchanged; skipping reload")
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			p.log.WithError(err).WithField("dir", dir).Warn("Reference table watch setup failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(nextWait()):
				continue
			}
		}

		backoff = restartBackoffBase
		p.log.WithField("dir", dir).Debug("Reference table watcher started")

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if filepath.Base(ev.Name) == file && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					scheduleReload()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				if errors.Is(err, fsnotify.ErrEventOverflow) {
					p.log.WithError(err).Warn("Reference table watch overflow; forcing reload")
					scheduleReload()
					continue
				}
				p.log.WithError(err).Warn("Reference table watch error")
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = w.Close()
		wait := nextWait()
		p.log.WithField("backoff", wait.String()).Warn("Reference table watcher stopped; restarting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
