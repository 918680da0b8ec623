package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/clock"
	"mobile-money-gateway/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ScheduleOptions carries the tunables of the scheduled transfer manager.
type ScheduleOptions struct {
	CountryPrefix string
	// MaxConsecutiveFailures deactivates a series after that many underfunded
	// runs in a row. Zero retries forever.
	MaxConsecutiveFailures int
}

type runOutcome int

const (
	runNotDue runOutcome = iota
	runExecuted
	runUnderfunded
)

// ScheduledTransferServiceImpl implements ports.ScheduledTransferService.
type ScheduledTransferServiceImpl struct {
	accounts ports.AccountRepository
	repo     ports.ScheduledTransferRepository
	poster   ports.LedgerPoster
	uow      ports.UnitOfWork
	notifier ports.Notifier
	clock    clock.Clock
	metrics  *metrics.Collector
	opts     ScheduleOptions
	log      zerolog.Logger
}

// NewScheduledTransferService creates a new ScheduledTransferServiceImpl.
func NewScheduledTransferService(
	accounts ports.AccountRepository,
	repo ports.ScheduledTransferRepository,
	poster ports.LedgerPoster,
	uow ports.UnitOfWork,
	notifier ports.Notifier,
	clk clock.Clock,
	mx *metrics.Collector,
	opts ScheduleOptions,
	log zerolog.Logger,
) *ScheduledTransferServiceImpl {
	return &ScheduledTransferServiceImpl{
		accounts: accounts,
		repo:     repo,
		poster:   poster,
		uow:      uow,
		notifier: notifier,
		clock:    clk,
		metrics:  mx,
		opts:     opts,
		log:      log,
	}
}

// Schedule validates and persists a new recurring transfer.
func (s *ScheduledTransferServiceImpl) Schedule(ctx context.Context, req ports.ScheduleRequest) (*domain.ScheduledTransfer, error) {
	if !domain.ValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Frequency.Valid() {
		return nil, apperror.Validation("Frequency must be daily, weekly or monthly")
	}
	first, err := domain.FirstExecution(req.StartDate, req.ExecutionTime)
	if err != nil {
		return nil, apperror.Validation("Execution time must use the HH:MM format")
	}

	recipient, err := s.accounts.GetByPhone(ctx, domain.NormalizePhone(req.RecipientPhone, s.opts.CountryPrefix))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve recipient: %w", err))
	}
	if recipient == nil {
		return nil, apperror.ErrUnknownRecipient()
	}
	if recipient.ID == req.SenderID {
		return nil, apperror.ErrSelfTransfer()
	}

	now := s.clock.Now()
	def := &domain.ScheduledTransfer{
		ID:            uuid.New(),
		SenderID:      req.SenderID,
		ReceiverID:    recipient.ID,
		Amount:        req.Amount,
		Frequency:     req.Frequency,
		StartDate:     domain.DateOnly(req.StartDate),
		ExecutionTime: req.ExecutionTime,
		NextExecution: &first,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	dup, err := s.repo.FindActiveDuplicate(ctx, def)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check duplicate: %w", err))
	}
	if dup != nil {
		return nil, apperror.ErrDuplicateScheduledTransfer()
	}

	if first.Before(now) {
		return nil, apperror.ErrPastStartDate()
	}
	if req.EndDate != nil {
		end := domain.DateOnly(*req.EndDate)
		if end.Before(def.StartDate) {
			return nil, apperror.ErrInvalidDateRange()
		}
		def.EndDate = &end
	}

	if err := s.repo.Create(ctx, def); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create scheduled transfer: %w", err))
	}

	s.log.Info().
		Str("schedule_id", def.ID.String()).
		Str("sender_id", def.SenderID.String()).
		Str("frequency", string(def.Frequency)).
		Time("next_execution", first).
		Msg("scheduled transfer created")

	return def, nil
}

// ExecuteDue runs one polling pass over all active series. Each series is
// processed in its own unit of work so one failure never blocks the rest.
func (s *ScheduledTransferServiceImpl) ExecuteDue(ctx context.Context) (*ports.ExecutionReport, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveSchedulerTick(time.Since(started)) }()

	now := s.clock.Now()
	defs, err := s.repo.ListActive(ctx, domain.DateOnly(now))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list active schedules: %w", err))
	}

	report := &ports.ExecutionReport{Checked: len(defs)}
	for i := range defs {
		if !defs[i].ShouldExecute(now) {
			continue
		}
		report.Due++

		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome, def, err := s.executeOne(ctx, defs[i].ID, now)
		if err != nil {
			report.Failed++
			s.metrics.RecordScheduledExecution(metrics.OutcomeFailure)
			s.log.Error().Err(err).Str("schedule_id", defs[i].ID.String()).Msg("scheduled transfer failed")
			continue
		}

		switch outcome {
		case runExecuted:
			report.Executed++
			s.metrics.RecordScheduledExecution(metrics.OutcomeSuccess)
			if !def.Active {
				report.Completed++
			}
		case runUnderfunded:
			report.Skipped++
			s.metrics.RecordScheduledExecution(metrics.OutcomeSkipped)
			ev := s.log.Warn().
				Str("schedule_id", def.ID.String()).
				Int("consecutive_failures", def.ConsecutiveFailures)
			if !def.Active {
				ev.Msg("scheduled transfer deactivated after repeated insufficient funds")
			} else {
				ev.Msg("scheduled transfer skipped: insufficient funds")
			}
		}
	}

	s.log.Info().
		Int("checked", report.Checked).
		Int("due", report.Due).
		Int("executed", report.Executed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("completed", report.Completed).
		Msg("scheduled transfer pass finished")

	return report, nil
}

// executeOne locks the series, re-checks it is still due and posts the
// transfer inside a savepoint.
func (s *ScheduledTransferServiceImpl) executeOne(ctx context.Context, id uuid.UUID, now time.Time) (runOutcome, *domain.ScheduledTransfer, error) {
	outcome := runNotDue
	var (
		def    *domain.ScheduledTransfer
		posted *ports.TransferResult
	)

	err := s.uow.WithinTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		def, err = s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("lock schedule: %w", err)
		}
		if def == nil || !def.ShouldExecute(now) {
			return nil
		}

		sp, err := tx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin savepoint: %w", err)
		}
		defer sp.Rollback(ctx) //nolint:errcheck

		posted, err = s.poster.PostInTx(ctx, sp, ports.PostingRequest{
			SenderID:   def.SenderID,
			ReceiverID: def.ReceiverID,
			Amount:     def.Amount,
			Type:       domain.TransactionTypeScheduled,
		})
		switch {
		case apperror.HasCode(err, apperror.ErrInsufficientFunds().Code):
			def.MarkUnderfunded(now, s.opts.MaxConsecutiveFailures)
			outcome = runUnderfunded
		case err != nil:
			return err
		default:
			if err := sp.Commit(ctx); err != nil {
				return fmt.Errorf("release savepoint: %w", err)
			}
			def.MarkExecuted(now)
			outcome = runExecuted
		}

		if err := s.repo.Update(ctx, tx, def); err != nil {
			return fmt.Errorf("update schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return runNotDue, nil, err
	}

	if outcome == runExecuted && posted != nil {
		s.log.Info().
			Str("schedule_id", def.ID.String()).
			Str("tx_id", posted.Transaction.ID.String()).
			Bool("active", def.Active).
			Msg("scheduled transfer executed")
		notifyAsync(s.notifier, s.log, domain.InternationalPhone(posted.Recipient.Phone, s.opts.CountryPrefix),
			fmt.Sprintf("You have received %s from %s %s (scheduled transfer).",
				def.Amount.StringFixed(domain.AmountScale), posted.Sender.FirstName, posted.Sender.LastName))
	}
	return outcome, def, nil
}

// Cancel permanently deactivates a series owned by accountID.
func (s *ScheduledTransferServiceImpl) Cancel(ctx context.Context, accountID, id uuid.UUID) (*domain.ScheduledTransfer, error) {
	var def *domain.ScheduledTransfer
	err := s.uow.WithinTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		def, err = s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock schedule: %w", err))
		}
		if def == nil {
			return apperror.ErrNotFound("Scheduled transfer")
		}
		if def.SenderID != accountID {
			return apperror.ErrForbidden()
		}
		if !def.Active {
			return apperror.ErrAlreadyInactive()
		}

		def.Deactivate(s.clock.Now())
		if err := s.repo.Update(ctx, tx, def); err != nil {
			return apperror.InternalError(fmt.Errorf("update schedule: %w", err))
		}
		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			appErr = apperror.InternalError(err)
		}
		return nil, appErr
	}

	s.log.Info().Str("schedule_id", id.String()).Str("actor_id", accountID.String()).Msg("scheduled transfer cancelled")
	return def, nil
}

// List returns the account's series, newest first.
func (s *ScheduledTransferServiceImpl) List(ctx context.Context, accountID uuid.UUID) ([]domain.ScheduledTransfer, error) {
	defs, err := s.repo.ListBySender(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list schedules: %w", err))
	}
	return defs, nil
}
