// Package bulksync drives provider fetches and reconciliation over many symbols.
package bulksync

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/metrics"
	"github.com/projetsjsl/GOB-sub006/pkg/config"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// Committer folds one successful fetch into the library
type Committer interface {
	Commit(symbol string, res *contracts.FetchResult) error
}

// CommitFunc adapts a function to Committer
type CommitFunc func(symbol string, res *contracts.FetchResult) error

func (f CommitFunc) Commit(symbol string, res *contracts.FetchResult) error {
	return f(symbol, res)
}

// Options tunes one job
type Options struct {
	BatchSize         int
	BatchDelay        time.Duration
	FetchTimeout      time.Duration
	MaxReportedErrors int
	Title             string
}

// OptionsFromConfig builds full-sync options
func OptionsFromConfig(cfg config.SyncConfig) Options {
	return Options{
		BatchSize:         cfg.BatchSize,
		BatchDelay:        cfg.BatchDelay,
		FetchTimeout:      cfg.FetchTimeout,
		MaxReportedErrors: cfg.MaxReportedErrors,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize < 1 {
		o.BatchSize = 1
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.MaxReportedErrors <= 0 {
		o.MaxReportedErrors = 3
	}
	if o.Title == "" {
		o.Title = "Sync"
	}
	return o
}

// Orchestrator runs at most one bulk sync job at a time
// SSOT: batched provider syncs run through here only
type Orchestrator struct {
	fetcher   contracts.Fetcher
	committer Committer
	notifier  contracts.Notifier
	logger    *logger.Logger
	now       func() time.Time

	mu   sync.Mutex
	job  *job
	last contracts.SyncProgress
}

// New creates an idle orchestrator
func New(fetcher contracts.Fetcher, committer Committer, notifier contracts.Notifier, log *logger.Logger) *Orchestrator {
	if notifier == nil {
		notifier = contracts.NopNotifier{}
	}
	return &Orchestrator{
		fetcher:   fetcher,
		committer: committer,
		notifier:  notifier,
		logger:    log.WithModule("bulksync"),
		now:       time.Now,
		last:      contracts.SyncProgress{State: contracts.JobIdle, Errors: []contracts.SyncError{}},
	}
}

type job struct {
	id      string
	symbols []string
	opts    Options
	ctx     context.Context
	log     *logger.Logger

	gate      gate
	abortCh   chan struct{}
	abortOnce sync.Once
	done      chan struct{}

	mu       sync.Mutex
	progress contracts.SyncProgress
}

func (j *job) aborted() bool {
	select {
	case <-j.abortCh:
		return true
	case <-j.ctx.Done():
		return true
	default:
		return false
	}
}

func (j *job) abortRequested() bool {
	select {
	case <-j.abortCh:
		return true
	default:
		return false
	}
}

func (j *job) snapshot() contracts.SyncProgress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress.Clone()
}

// Start launches a job over symbols and returns its id.
// ctx bounds the whole job: cancelling it stops the job like Abort and
// also cancels in-flight fetches.
func (o *Orchestrator) Start(ctx context.Context, symbols []string, opts Options) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.job != nil {
		return "", contracts.ErrJobRunning
	}

	opts = opts.withDefaults()
	symbols = dedupe(symbols)
	j := &job{
		id:      uuid.NewString(),
		symbols: symbols,
		opts:    opts,
		ctx:     ctx,
		abortCh: make(chan struct{}),
		done:    make(chan struct{}),
		progress: contracts.SyncProgress{
			State:     contracts.JobRunning,
			Total:     len(symbols),
			Errors:    []contracts.SyncError{},
			StartedAt: o.now(),
		},
	}
	j.progress.JobID = j.id
	j.log = o.logger.WithFields(map[string]interface{}{
		"job_id":     j.id,
		"total":      len(symbols),
		"batch_size": opts.BatchSize,
	})
	o.job = j
	metrics.SetRunning(true)

	j.log.Info("Bulk sync started")
	go o.run(j)
	return j.id, nil
}

// Pause stops new work after in-flight items complete
func (o *Orchestrator) Pause() error {
	j := o.current()
	if j == nil {
		return contracts.ErrNoJob
	}
	if j.gate.pause() {
		o.setState(j, contracts.JobPaused)
		j.log.Info("Bulk sync paused")
	}
	return nil
}

// Resume releases a paused job immediately
func (o *Orchestrator) Resume() error {
	j := o.current()
	if j == nil {
		return contracts.ErrNoJob
	}
	if j.gate.unpause() {
		o.setState(j, contracts.JobRunning)
		j.log.Info("Bulk sync resumed")
	}
	return nil
}

// Abort stops the job from taking new work. Committed profiles are kept.
func (o *Orchestrator) Abort() error {
	j := o.current()
	if j == nil {
		return contracts.ErrNoJob
	}
	j.abortOnce.Do(func() {
		close(j.abortCh)
		j.mu.Lock()
		j.progress.Aborted = true
		j.mu.Unlock()
		j.log.Info("Bulk sync abort requested")
	})
	return nil
}

// Running reports whether a job holds the orchestrator
func (o *Orchestrator) Running() bool {
	return o.current() != nil
}

// Progress returns the running job's counters, or the last finished job's
func (o *Orchestrator) Progress() contracts.SyncProgress {
	o.mu.Lock()
	j, last := o.job, o.last
	o.mu.Unlock()

	if j != nil {
		return j.snapshot()
	}
	return last.Clone()
}

// Wait blocks until the current job, if any, reaches a terminal state
func (o *Orchestrator) Wait(ctx context.Context) (contracts.SyncProgress, error) {
	j := o.current()
	if j != nil {
		select {
		case <-j.done:
		case <-ctx.Done():
			return o.Progress(), ctx.Err()
		}
	}
	return o.Progress(), nil
}

func (o *Orchestrator) current() *job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.job
}

func (o *Orchestrator) setState(j *job, state contracts.JobState) {
	j.mu.Lock()
	if !j.progress.State.Terminal() {
		j.progress.State = state
		j.progress.Paused = state == contracts.JobPaused
	}
	p := j.progress.Clone()
	j.mu.Unlock()
	o.notifier.Progress(p)
}

func (o *Orchestrator) run(j *job) {
	defer o.finish(j)

	o.notifier.Progress(j.snapshot())

	size := j.opts.BatchSize
	for start := 0; start < len(j.symbols); start += size {
		if !o.checkpoint(j) {
			return
		}
		if start > 0 && j.opts.BatchDelay > 0 {
			select {
			case <-time.After(j.opts.BatchDelay):
			case <-j.abortCh:
				return
			case <-j.ctx.Done():
				return
			}
		}

		end := start + size
		if end > len(j.symbols) {
			end = len(j.symbols)
		}

		var wg sync.WaitGroup
		for _, symbol := range j.symbols[start:end] {
			if !o.checkpoint(j) {
				break
			}
			wg.Add(1)
			go func(symbol string) {
				defer wg.Done()
				o.process(j, symbol)
			}(symbol)
		}
		wg.Wait()
	}
}

// checkpoint blocks while paused and reports whether work may continue
func (o *Orchestrator) checkpoint(j *job) bool {
	if j.aborted() {
		return false
	}
	resume := j.gate.wait()
	if resume == nil {
		return true
	}
	select {
	case <-resume:
		return !j.aborted()
	case <-j.abortCh:
		return false
	case <-j.ctx.Done():
		return false
	}
}

func (o *Orchestrator) process(j *job, symbol string) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic while syncing %s: %v", contracts.ErrFatalJob, symbol, r)
			j.log.WithFields(map[string]interface{}{
				"symbol": symbol,
				"stack":  string(debug.Stack()),
			}).Error("Recovered panic in sync item")
		}
		o.record(j, symbol, err)
	}()

	ctx, cancel := context.WithTimeout(j.ctx, j.opts.FetchTimeout)
	defer cancel()

	res, ferr := o.fetcher.Fetch(ctx, symbol)
	if ferr != nil {
		err = contracts.ClassifyContextError(ferr)
		return
	}
	err = o.committer.Commit(symbol, res)
}

func (o *Orchestrator) record(j *job, symbol string, err error) {
	metrics.RecordSyncItem(err)

	j.mu.Lock()
	j.progress.Current++
	if err == nil {
		j.progress.SuccessCount++
	} else {
		j.progress.ErrorCount++
		j.progress.Errors = append(j.progress.Errors, contracts.SyncError{
			Symbol:  symbol,
			Message: contracts.UserMessage(symbol, err),
		})
	}
	p := j.progress.Clone()
	j.mu.Unlock()

	if err != nil {
		j.log.WithField("symbol", symbol).WithError(err).Warn("Sync item failed")
	}
	o.notifier.Progress(p)
}

// finish forces the job into a terminal state whatever happened in run
func (o *Orchestrator) finish(j *job) {
	fatal := recover()

	j.mu.Lock()
	if fatal != nil {
		j.progress.Fatal = fmt.Sprintf("%v: %v", contracts.ErrFatalJob, fatal)
		j.progress.Errors = append(j.progress.Errors, contracts.SyncError{Symbol: "*", Message: j.progress.Fatal})
	}
	// a cancelled parent only aborts a job that still had work left
	if j.abortRequested() || (j.aborted() && j.progress.Current < j.progress.Total) {
		j.progress.State = contracts.JobAborted
		j.progress.Aborted = true
	} else {
		j.progress.State = contracts.JobCompleted
	}
	j.progress.Paused = false
	j.progress.FinishedAt = o.now()
	final := j.progress.Clone()
	j.mu.Unlock()

	if fatal != nil {
		j.log.WithFields(map[string]interface{}{
			"panic": fmt.Sprint(fatal),
			"stack": string(debug.Stack()),
		}).Error("Bulk sync loop failed")
	}

	o.mu.Lock()
	o.job = nil
	o.last = final
	o.mu.Unlock()

	metrics.SetRunning(false)
	metrics.RecordJob(final.State)

	j.log.WithFields(map[string]interface{}{
		"state":   final.State,
		"current": final.Current,
		"success": final.SuccessCount,
		"errors":  final.ErrorCount,
	}).Info("Bulk sync finished")

	o.notifier.Progress(final)
	o.notifier.Notify(Summarize(final, j.opts))
	close(j.done)
}

// Summarize builds the terminal notification for a finished job
func Summarize(p contracts.SyncProgress, opts Options) contracts.Notification {
	opts = opts.withDefaults()
	n := contracts.Notification{Title: opts.Title}

	for i, e := range p.Errors {
		if i == opts.MaxReportedErrors {
			break
		}
		n.Details = append(n.Details, e.Message)
	}

	counts := fmt.Sprintf("%d succeeded, %d failed", p.SuccessCount, p.ErrorCount)
	switch {
	case p.Fatal != "":
		n.Level = contracts.LevelError
		n.Message = fmt.Sprintf("Sync stopped unexpectedly after %d of %d symbols (%s).", p.Current, p.Total, counts)
	case p.State == contracts.JobAborted:
		n.Level = contracts.LevelWarning
		n.Message = fmt.Sprintf("Sync aborted after %d of %d symbols (%s).", p.Current, p.Total, counts)
	case p.ErrorCount == 0:
		n.Level = contracts.LevelSuccess
		n.Message = fmt.Sprintf("%d of %d symbols synced.", p.SuccessCount, p.Total)
	case p.SuccessCount == 0:
		n.Level = contracts.LevelError
		n.Message = fmt.Sprintf("All %d symbols failed to sync.", p.ErrorCount)
	default:
		n.Level = contracts.LevelWarning
		n.Message = fmt.Sprintf("Sync finished with errors: %s.", counts)
	}
	if extra := p.ErrorCount - len(n.Details); extra > 0 && len(n.Details) > 0 {
		n.Details = append(n.Details, fmt.Sprintf("and %d more", extra))
	}
	return n
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = contracts.NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
