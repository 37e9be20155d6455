// Package pipeline composes sources, deduplication, the two bounded pools,
// extraction, and ranking into the end-to-end run that drives one search
// session to completion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/incidentwire/incidentwire/pkg/extract"
	"github.com/incidentwire/incidentwire/pkg/pool"
	"github.com/incidentwire/incidentwire/pkg/rank"
	"github.com/incidentwire/incidentwire/pkg/session"
	"github.com/incidentwire/incidentwire/pkg/source"
	"github.com/incidentwire/incidentwire/pkg/stream"
	"github.com/incidentwire/incidentwire/pkg/types"
	"github.com/incidentwire/incidentwire/pkg/utils"
)

// Config carries the per-run concurrency profile. Widths and timeouts are
// explicit inputs so concurrent sessions can run with different profiles.
type Config struct {
	// FetchWidth bounds concurrent outbound fetches.
	FetchWidth int
	// ExtractWidth bounds concurrent extraction calls. Typically much
	// smaller than FetchWidth; 1 in the most memory-constrained
	// deployments.
	ExtractWidth int
	// FetchTimeout bounds one discovery or content fetch.
	FetchTimeout time.Duration
	// ExtractTimeout bounds one extraction call.
	ExtractTimeout time.Duration
	// SessionTimeout, when positive, bounds the whole run; expiry behaves
	// exactly like a cancellation request.
	SessionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FetchWidth <= 0 {
		c.FetchWidth = 8
	}
	if c.ExtractWidth <= 0 {
		c.ExtractWidth = 1
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 20 * time.Second
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 90 * time.Second
	}
	return c
}

// Orchestrator drives search sessions. One Orchestrator serves any number of
// concurrent sessions; all per-session state lives in the Session and the
// run-local values of Run.
type Orchestrator struct {
	sources   []source.Source
	extractor extract.Extractor
	ranker    *rank.Ranker
	log       *slog.Logger
}

// New creates an orchestrator over the given collaborators.
func New(sources []source.Source, extractor extract.Extractor, ranker *rank.Ranker, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		sources:   sources,
		extractor: extractor,
		ranker:    ranker,
		log:       log,
	}
}

// Run drives sess to a terminal state, emitting frames on em. ctx is bound
// to the client connection: when it ends, no new work is admitted and the
// run winds down as if cancelled. Run blocks until the terminal frame has
// been emitted and always closes the emitter.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session, em *stream.Emitter, cfg Config) {
	defer em.Close()

	start := time.Now()
	cfg = cfg.withDefaults()
	log := o.log.With("session_id", sess.ID)

	if len(o.sources) == 0 {
		sess.MarkTerminal(session.StateFailed)
		_ = em.Error("no sources configured")
		log.Error("session failed", "reason", "no sources configured")
		return
	}

	// Admission gate: covers explicit cancel, client disconnect, and the
	// aggregate session timeout. Work already inside a pool is never
	// interrupted by it.
	admitCtx := ctx
	if cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		admitCtx, cancel = context.WithTimeout(ctx, cfg.SessionTimeout)
		defer cancel()
	}
	cancelled := func() bool {
		return sess.CancelRequested() || admitCtx.Err() != nil
	}

	limiter, err := pool.New(cfg.FetchWidth, cfg.ExtractWidth)
	if err != nil {
		sess.MarkTerminal(session.StateFailed)
		_ = em.Error(fmt.Sprintf("worker pools unavailable: %v", err))
		return
	}
	defer limiter.Release()

	if err := em.Session(sess.ID); err != nil {
		sess.MarkTerminal(session.StateCancelled)
		return
	}

	prog := &progress{em: em}

	var (
		itemWG      sync.WaitGroup
		sourceWG    sync.WaitGroup
		unreachable atomic.Int32
	)

	for _, src := range o.sources {
		if cancelled() {
			break
		}
		sourceWG.Add(1)
		go func(src source.Source) {
			defer sourceWG.Done()
			defer utils.RecoverWithCallback(func(error) { unreachable.Add(1) })

			items, err := o.discover(limiter, src, sess.Query, cfg.FetchTimeout)
			if err != nil {
				unreachable.Add(1)
				log.Warn("source unavailable", "source", src.Name(), "error", err)
				prog.note(fmt.Sprintf("source %s unavailable", src.Name()))
				return
			}
			log.Debug("source enumerated", "source", src.Name(), "items", len(items))

			for _, item := range items {
				// Cancellation is checked before every admission; the
				// dedup set spans all sources in the session.
				if cancelled() {
					return
				}
				if !sess.Seen.Accept(item.ID) {
					continue
				}
				prog.admit()
				itemWG.Add(1)
				go o.processItem(src, item, sess, limiter, prog, cfg, cancelled, &itemWG, log)
			}
		}(src)
	}

	sourceWG.Wait()

	if int(unreachable.Load()) == len(o.sources) {
		sess.MarkTerminal(session.StateFailed)
		_ = em.Error("all sources unreachable")
		log.Error("session failed", "reason", "all sources unreachable")
		return
	}

	itemWG.Wait()

	completed, total := prog.snapshot()
	if sess.CancelRequested() || admitCtx.Err() != nil {
		sess.MarkTerminal(session.StateCancelled)
		_ = em.Cancelled(
			fmt.Sprintf("search cancelled after %d of %d items", completed, total),
			sess.RecordCount(),
		)
		log.Info("session cancelled", "processed", completed, "records", sess.RecordCount())
		return
	}

	sess.MarkTerminal(session.StateCompleted)
	_ = em.Completed("search completed", sess.RecordCount(), completed, time.Since(start))
	log.Info("session completed",
		"processed", completed,
		"records", sess.RecordCount(),
		"elapsed", time.Since(start).Round(time.Millisecond))
}

// discover enumerates one source on the fetch pool with its own deadline.
func (o *Orchestrator) discover(limiter *pool.Limiter, src source.Source, q types.Query, timeout time.Duration) ([]types.SourceItem, error) {
	var (
		items []types.SourceItem
		derr  error
	)
	if err := limiter.RunFetch(func() {
		fctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		items, derr = src.Discover(fctx, q)
	}); err != nil {
		return nil, err
	}
	return items, derr
}

// processItem runs one admitted item through fetch, extraction, and ranking.
// Every per-item failure is swallowed into a progress update; nothing here
// can terminate the session.
func (o *Orchestrator) processItem(
	src source.Source,
	item types.SourceItem,
	sess *session.Session,
	limiter *pool.Limiter,
	prog *progress,
	cfg Config,
	cancelled func() bool,
	wg *sync.WaitGroup,
	log *slog.Logger,
) {
	defer wg.Done()
	defer utils.RecoverWithCallback(func(err error) {
		log.Error("item processing panicked", "item", item.ID, "error", err)
		prog.completeUnit(sess, nil, fmt.Sprintf("failed: %s", item.ID))
	})

	// Fetch phase. The unit deadline is independent of the admission gate:
	// once admitted, the unit runs to completion or its own timeout.
	var (
		content string
		ferr    error
	)
	if err := limiter.RunFetch(func() {
		fctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
		defer cancel()
		content, ferr = src.Fetch(fctx, item)
	}); err != nil {
		ferr = err
	}
	if ferr != nil {
		log.Warn("fetch failed", "source", src.Name(), "item", item.ID, "error", ferr)
		prog.completeUnit(sess, nil, fmt.Sprintf("fetch failed: %s", item.ID))
		return
	}

	// Extraction is a separate unit of work; admission is re-checked.
	if cancelled() {
		prog.completeUnit(sess, nil, fmt.Sprintf("skipped (cancelling): %s", item.ID))
		return
	}

	var (
		rec  *types.Record
		xerr error
	)
	if err := limiter.RunExtract(func() {
		rec, xerr = o.extractor.Extract(context.Background(), extract.Content{
			SourceName: src.Name(),
			Locator:    item.Locator,
			Title:      item.Title,
			Text:       content,
		}, extract.Options{Timeout: cfg.ExtractTimeout})
	}); err != nil {
		xerr = err
	}
	if xerr != nil {
		status := fmt.Sprintf("extraction failed: %s", item.ID)
		if errors.Is(xerr, extract.ErrTimeout) {
			status = fmt.Sprintf("extraction timed out: %s", item.ID)
		}
		log.Warn("extraction failed", "item", item.ID, "error", xerr)
		prog.completeUnit(sess, nil, status)
		return
	}

	score, ok := o.ranker.Accept(rec, sess.Query)
	if !ok {
		log.Debug("record below threshold", "item", item.ID, "score", score)
		prog.completeUnit(sess, nil, fmt.Sprintf("below relevance threshold: %s", item.ID))
		return
	}
	rec.Score = score

	prog.completeUnit(sess, rec, fmt.Sprintf("extracted: %s", rec.Title))
}

// progress serializes frame emission and keeps the completed counter
// monotonic. Record append and frame emission happen under one lock so a
// record's index always matches its position in the frame order.
type progress struct {
	mu        sync.Mutex
	em        *stream.Emitter
	completed int
	total     int
}

// admit registers one newly admitted item; total only grows.
func (p *progress) admit() {
	p.mu.Lock()
	p.total++
	p.mu.Unlock()
}

// completeUnit marks one item finished, emitting its record frame (when rec
// is non-nil) followed by the progress frame.
func (p *progress) completeUnit(sess *session.Session, rec *types.Record, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	if rec != nil {
		index := sess.AppendRecord(*rec)
		_ = p.em.Record(index, stream.NewRecordWire(*rec))
	}
	_ = p.em.Progress(p.completed, p.total, status)
}

// note emits a progress frame without advancing the counters, for source
// level status like an unreachable source.
func (p *progress) note(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.em.Progress(p.completed, p.total, status)
}

func (p *progress) snapshot() (completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.total
}
