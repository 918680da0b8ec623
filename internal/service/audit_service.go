package service

import (
	"context"
	"sync"
	"time"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	auditQueueSize    = 256
	auditWriteTimeout = 3 * time.Second
)

// AuditWriter implements ports.AuditService. Entries are logged, then
// persisted by a single background worker; when the queue is full the entry
// is only logged.
type AuditWriter struct {
	repo  ports.AuditRepository
	log   zerolog.Logger
	queue chan *domain.AuditLog

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// NewAuditService starts the writer. A nil repo only logs.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditWriter {
	w := &AuditWriter{
		repo:    repo,
		log:     log,
		queue:   make(chan *domain.AuditLog, auditQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

// Log never blocks the request path.
func (w *AuditWriter) Log(_ context.Context, entry *domain.AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	ev := w.log.Info().
		Str("action", string(entry.Action)).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("ip", entry.IPAddress)
	if entry.AccountID != nil {
		ev = ev.Str("account_id", entry.AccountID.String())
	}
	ev.Msg("audit")

	if w.repo == nil {
		return
	}
	select {
	case w.queue <- entry:
	case <-w.done:
	default:
		w.log.Warn().Str("action", string(entry.Action)).Msg("audit queue full, entry not persisted")
	}
}

// Close persists what is queued and stops the worker.
func (w *AuditWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
	<-w.stopped
}

func (w *AuditWriter) run() {
	defer close(w.stopped)
	for {
		select {
		case entry := <-w.queue:
			w.persist(entry)
		case <-w.done:
			for {
				select {
				case entry := <-w.queue:
					w.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (w *AuditWriter) persist(entry *domain.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	if err := w.repo.Create(ctx, entry); err != nil {
		w.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
	}
}
