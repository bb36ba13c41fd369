package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Entry records one processed answer.
type Entry struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	QuestionID         string
	DifficultyAtAnswer int
	AnswerIndex        int
	Correct            bool
	ScoreDelta         int
	StreakAtAnswer     int
	AnsweredAt         time.Time
}

// Sink durably stores entries.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

var (
	entriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brainbolt_audit_entries_dropped_total",
		Help: "Answer log entries dropped because the buffer was full.",
	})
	entriesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brainbolt_audit_entries_failed_total",
		Help: "Answer log entries the sink failed to persist.",
	})
)

// Log buffers entries and writes them from a single worker so Append never
// blocks the caller.
type Log struct {
	sink         Sink
	entries      chan Entry
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// NewLog creates an audit log with the given buffer size.
func NewLog(sink Sink, bufferSize int, writeTimeout time.Duration, logger zerolog.Logger) *Log {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if writeTimeout <= 0 {
		writeTimeout = 3 * time.Second
	}
	return &Log{
		sink:         sink,
		entries:      make(chan Entry, bufferSize),
		writeTimeout: writeTimeout,
		logger:       logger.With().Str("component", "audit_log").Logger(),
	}
}

// Append queues an entry. It returns false if the buffer is full and the entry was dropped.
func (l *Log) Append(entry Entry) bool {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.AnsweredAt.IsZero() {
		entry.AnsweredAt = time.Now().UTC()
	}
	select {
	case l.entries <- entry:
		return true
	default:
		entriesDropped.Inc()
		l.logger.Warn().Str("user_id", entry.UserID.String()).Msg("audit buffer full, entry dropped")
		return false
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is left.
func (l *Log) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case entry := <-l.entries:
			l.write(context.WithoutCancel(ctx), entry)
		}
	}
}

func (l *Log) drain() {
	for {
		select {
		case entry := <-l.entries:
			l.write(context.Background(), entry)
		default:
			return
		}
	}
}

func (l *Log) write(ctx context.Context, entry Entry) {
	ctx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()
	if err := l.sink.Write(ctx, entry); err != nil {
		entriesFailed.Inc()
		l.logger.Error().Err(err).
			Str("entry_id", entry.ID.String()).
			Str("user_id", entry.UserID.String()).
			Msg("failed to persist answer log entry")
	}
}
