// Package service contains application services exposed via transports.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtm0log"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
)

// ErrInvalidOp is returned by Record for operations that do not log a
// transaction.
var ErrInvalidOp = errors.New("service: operation does not record a transaction")

// Logger is a minimal structured logger interface, compatible with slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Metrics captures service-level metric sinks used by Journal.
type Metrics interface {
	ObserveJournalOp(nodeID, op, result string, d time.Duration)
	AddJournalPruned(nodeID string, n int)
	IncJournalPrunerRun(nodeID, result string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveJournalOp(string, string, string, time.Duration) {}
func (noopMetrics) AddJournalPruned(string, int)                           {}
func (noopMetrics) IncJournalPrunerRun(string, string)                     {}

// Info summarises the state of a journal.
type Info struct {
	NodeID          string        `json:"node_id"`
	Backend         string        `json:"backend"`
	Records         int           `json:"records"`
	StableRecords   int           `json:"stable_records"`
	StableLast      dtx.ID        `json:"stable_last"`
	SegmentUsed     uint64        `json:"segment_used"`
	SegmentCapacity uint64        `json:"segment_capacity"`
	SegmentObjects  int           `json:"segment_objects"`
	Uptime          time.Duration `json:"uptime"`
}

// Journal runs the DTM0 log usecases. Every mutation follows the same
// sequence: compute credit, open a segment transaction, lock the log,
// mutate, commit or abort, unlock.
type Journal struct {
	log     *dtm0log.Log
	seg     *be.Segment
	logger  Logger
	tracer  oteltrace.Tracer
	metrics Metrics
	nodeID  string
	started time.Time
}

// NewJournal creates a journal over l. A persistent log needs the segment
// it lives in; a volatile log takes a nil segment.
func NewJournal(l *dtm0log.Log, seg *be.Segment, logger Logger, tracer oteltrace.Tracer, metrics Metrics, nodeID string) (*Journal, error) {
	if l == nil {
		return nil, errors.New("service: nil log")
	}
	if l.IsPersistent() != (seg != nil) {
		return nil, fmt.Errorf("service: %s log with segment=%t", l.Backend(), seg != nil)
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Journal{
		log:     l,
		seg:     seg,
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
		nodeID:  nodeID,
		started: time.Now(),
	}, nil
}

func (j *Journal) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := j.tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func spanRecordError(span oteltrace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dtm0log.ErrNotFound):
		return "not_found"
	case errors.Is(err, dtm0log.ErrUnstable):
		return "unstable"
	case errors.Is(err, dtm0log.ErrGroupMismatch):
		return "group_mismatch"
	case errors.Is(err, dtm0log.ErrInvalidDescriptor), errors.Is(err, ErrInvalidOp):
		return "invalid"
	case errors.Is(err, be.ErrNoSpace), errors.Is(err, be.ErrTxTooLarge):
		return "no_space"
	default:
		return "error"
	}
}

// begin opens a transaction for a persistent log. A volatile log gets nil.
func (j *Journal) begin(credit be.Credit) (*be.Tx, error) {
	if j.seg == nil {
		return nil, nil
	}
	return j.seg.Open(credit)
}

// end commits tx when err is nil and aborts it otherwise.
func (j *Journal) end(ctx context.Context, tx *be.Tx, err error) error {
	if tx == nil {
		return err
	}
	if err != nil {
		tx.Abort()
		return err
	}
	return tx.Commit(ctx)
}

// Record logs d as seen by op. op must be one of the record operations:
// sent, executed, persistent or redo.
func (j *Journal) Record(ctx context.Context, op dtm0log.Op, d dtx.Descriptor, payload []byte) error {
	ctx, span := j.startSpan(ctx, "dtm0.journal.Record",
		attribute.String("dtm0.op", op.String()),
		attribute.String("dtm0.tx.id", d.ID.String()),
		attribute.Int("dtm0.tx.participants", len(d.Participants)),
		attribute.Int("dtm0.payload.bytes", len(payload)),
	)
	defer span.End()
	start := time.Now()

	err := j.record(ctx, op, d, payload)
	j.metrics.ObserveJournalOp(j.nodeID, op.String(), resultOf(err), time.Since(start))
	if err != nil {
		spanRecordError(span, err)
		return err
	}
	j.logger.Debug("transaction recorded", "op", op, "id", d.ID)
	return nil
}

func (j *Journal) record(ctx context.Context, op dtm0log.Op, d dtx.Descriptor, payload []byte) error {
	switch op {
	case dtm0log.OpSent, dtm0log.OpExecuted, dtm0log.OpPersistent, dtm0log.OpRedo:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOp, op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}

	tx, err := j.begin(dtm0log.Credit(op, len(d.Participants), len(payload)))
	if err != nil {
		return err
	}
	g := j.log.Lock()
	defer g.Unlock()
	return j.end(ctx, tx, g.Update(tx, d, payload))
}

// Prune removes every record up to and including id and returns how many
// were removed.
func (j *Journal) Prune(ctx context.Context, id dtx.ID) (int, error) {
	ctx, span := j.startSpan(ctx, "dtm0.journal.Prune", attribute.String("dtm0.tx.id", id.String()))
	defer span.End()
	start := time.Now()

	g := j.log.Lock()
	n, err := j.prune(ctx, g, id)
	g.Unlock()

	j.metrics.ObserveJournalOp(j.nodeID, "prune", resultOf(err), time.Since(start))
	if err != nil {
		spanRecordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("dtm0.pruned", n))
	return n, nil
}

// PruneStable prunes the leading run of stable records. It returns the ID
// of the last record removed and the number removed; zero when the head of
// the log is not stable.
func (j *Journal) PruneStable(ctx context.Context) (dtx.ID, int, error) {
	ctx, span := j.startSpan(ctx, "dtm0.journal.PruneStable")
	defer span.End()
	start := time.Now()

	g := j.log.Lock()
	last, n, err := g.StablePrefix()
	if err == nil && n > 0 {
		n, err = j.prune(ctx, g, last)
	}
	g.Unlock()

	j.metrics.ObserveJournalOp(j.nodeID, "prune_stable", resultOf(err), time.Since(start))
	if err != nil {
		spanRecordError(span, err)
		return dtx.ID{}, 0, err
	}
	if n == 0 {
		return dtx.ID{}, 0, nil
	}
	span.SetAttributes(attribute.Int("dtm0.pruned", n), attribute.String("dtm0.tx.id", last.String()))
	return last, n, nil
}

// prune runs one prune transaction under g.
func (j *Journal) prune(ctx context.Context, g *dtm0log.Guard, id dtx.ID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	credit, err := g.PruneCredit(id)
	if err != nil {
		return 0, err
	}
	before := g.Len()
	tx, err := j.begin(credit)
	if err != nil {
		return 0, err
	}
	if err := j.end(ctx, tx, g.Prune(tx, id)); err != nil {
		return 0, err
	}
	n := before - g.Len()
	j.metrics.AddJournalPruned(j.nodeID, n)
	j.logger.Debug("journal pruned", "through", id, "removed", n)
	return n, nil
}

// RunPruner prunes stable records every interval until ctx is canceled.
// A non-positive interval disables the pruner.
func (j *Journal) RunPruner(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			last, n, err := j.PruneStable(ctx)
			switch {
			case err != nil && ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				j.metrics.IncJournalPrunerRun(j.nodeID, "error")
				j.logger.Warn("background prune failed", "err", err)
			case n == 0:
				j.metrics.IncJournalPrunerRun(j.nodeID, "idle")
			default:
				j.metrics.IncJournalPrunerRun(j.nodeID, "pruned")
				j.logger.Info("background prune", "through", last, "removed", n)
			}
		}
	}
}

// Find returns the record logged under id.
func (j *Journal) Find(ctx context.Context, id dtx.ID) (dtm0log.Record, bool, error) {
	_, span := j.startSpan(ctx, "dtm0.journal.Find", attribute.String("dtm0.tx.id", id.String()))
	defer span.End()

	g := j.log.Lock()
	defer g.Unlock()
	r, ok, err := g.Find(id)
	if err != nil {
		spanRecordError(span, err)
		return dtm0log.Record{}, false, err
	}
	span.SetAttributes(attribute.Bool("dtm0.found", ok))
	return r, ok, nil
}

// List returns every record in log order.
func (j *Journal) List(ctx context.Context) ([]dtm0log.Record, error) {
	_, span := j.startSpan(ctx, "dtm0.journal.List")
	defer span.End()

	g := j.log.Lock()
	defer g.Unlock()
	recs, err := g.Records()
	if err != nil {
		spanRecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("dtm0.records", len(recs)))
	return recs, nil
}

// RedoPlan returns the transactions participant fid must have redone after
// a restart, in log order. Placeholders are skipped: there is no request to
// resend for them.
func (j *Journal) RedoPlan(ctx context.Context, fid dtx.FID) ([]dtm0log.Record, error) {
	_, span := j.startSpan(ctx, "dtm0.journal.RedoPlan", attribute.String("dtm0.participant", fid.String()))
	defer span.End()

	g := j.log.Lock()
	recs, err := g.RedoCandidates(fid)
	g.Unlock()
	if err != nil {
		spanRecordError(span, err)
		return nil, err
	}

	plan := recs[:0]
	skipped := 0
	for _, r := range recs {
		if r.IsPlaceholder() {
			skipped++
			continue
		}
		plan = append(plan, r)
	}
	if skipped > 0 {
		j.logger.Debug("redo plan skipped placeholders", "participant", fid, "skipped", skipped)
	}
	span.SetAttributes(attribute.Int("dtm0.redo.records", len(plan)))
	return plan, nil
}

// Info reports log and segment statistics.
func (j *Journal) Info(ctx context.Context) (Info, error) {
	_, span := j.startSpan(ctx, "dtm0.journal.Info")
	defer span.End()

	g := j.log.Lock()
	last, stable, err := g.StablePrefix()
	n := g.Len()
	g.Unlock()
	if err != nil {
		spanRecordError(span, err)
		return Info{}, err
	}

	info := Info{
		NodeID:        j.nodeID,
		Backend:       string(j.log.Backend()),
		Records:       n,
		StableRecords: stable,
		StableLast:    last,
		Uptime:        time.Since(j.started),
	}
	if j.seg != nil {
		info.SegmentUsed = j.seg.Used()
		info.SegmentCapacity = j.seg.Capacity()
		info.SegmentObjects = j.seg.Allocations()
	}
	return info, nil
}
