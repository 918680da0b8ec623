package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/clock"
	"mobile-money-gateway/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransferOptions carries the tunables of the transfer engine.
type TransferOptions struct {
	CancelWindow          time.Duration
	AllowNegativeReversal bool
	IdempotencyTTL        time.Duration
	CountryPrefix         string
}

// TransferServiceImpl implements ports.TransferService and ports.LedgerPoster.
type TransferServiceImpl struct {
	accounts   ports.AccountRepository
	txRepo     ports.TransactionRepository
	contacts   ports.ContactRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	uow        ports.UnitOfWork
	notifier   ports.Notifier
	clock      clock.Clock
	metrics    *metrics.Collector
	opts       TransferOptions
	log        zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	accounts ports.AccountRepository,
	txRepo ports.TransactionRepository,
	contacts ports.ContactRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	uow ports.UnitOfWork,
	notifier ports.Notifier,
	clk clock.Clock,
	mx *metrics.Collector,
	opts TransferOptions,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		accounts:   accounts,
		txRepo:     txRepo,
		contacts:   contacts,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		uow:        uow,
		notifier:   notifier,
		clock:      clk,
		metrics:    mx,
		opts:       opts,
		log:        log,
	}
}

// Transfer moves amount from the sender to the account registered under the
// recipient phone, in one unit of work.
func (s *TransferServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	return s.transferOnce(ctx, req.SenderID, req.IdempotencyKey, domain.TransactionTypeSimple, req.Amount,
		func(tx pgx.Tx) (*ports.TransferResult, error) {
			return s.postToPhone(ctx, tx, req.SenderID, req.RecipientPhone, req.Amount, domain.TransactionTypeSimple)
		})
}

// PayMerchant transfers amount to an active merchant account.
func (s *TransferServiceImpl) PayMerchant(ctx context.Context, req ports.MerchantPaymentRequest) (*ports.TransferResult, error) {
	return s.transferOnce(ctx, req.SenderID, req.IdempotencyKey, domain.TransactionTypeMerchant, req.Amount,
		func(tx pgx.Tx) (*ports.TransferResult, error) {
			return s.PostInTx(ctx, tx, ports.PostingRequest{
				SenderID:   req.SenderID,
				ReceiverID: req.MerchantID,
				Amount:     req.Amount,
				Type:       domain.TransactionTypeMerchant,
			})
		})
}

// transferOnce wraps a single posting with idempotent replay, metrics and
// post-commit notification.
func (s *TransferServiceImpl) transferOnce(
	ctx context.Context,
	senderID uuid.UUID,
	clientKey string,
	txType domain.TransactionType,
	amount decimal.Decimal,
	post func(tx pgx.Tx) (*ports.TransferResult, error),
) (*ports.TransferResult, error) {
	if !domain.ValidAmount(amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	var idempKey string
	if clientKey != "" {
		if !domain.ValidIdempotencyKey(clientKey) {
			return nil, apperror.Validation("Idempotency-Key must be 1-128 visible ASCII characters")
		}
		idempKey = domain.BuildIdempotencyKey(senderID, txType, clientKey)
		replayed, err := s.replay(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		if replayed != nil {
			return replayed, nil
		}
	}

	start := time.Now()
	var (
		result   *ports.TransferResult
		respJSON []byte
	)
	err := s.uow.WithinTransaction(ctx, func(tx pgx.Tx) error {
		r, err := post(tx)
		if err != nil {
			return err
		}
		result = r
		if idempKey == "" {
			return nil
		}
		respJSON, err = s.saveIdempotency(ctx, tx, idempKey, r)
		return err
	})
	if err != nil {
		s.metrics.RecordTransfer(string(txType), metrics.OutcomeFailure, time.Since(start))
		return nil, s.fail(err, string(txType), senderID, amount)
	}
	s.metrics.RecordTransfer(string(txType), metrics.OutcomeSuccess, time.Since(start))

	if idempKey != "" && s.idempCache != nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, s.opts.IdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.log.Info().
		Str("tx_id", result.Transaction.ID.String()).
		Str("type", string(txType)).
		Str("sender_id", senderID.String()).
		Str("receiver_id", result.Recipient.ID.String()).
		Str("amount", amount.StringFixed(domain.AmountScale)).
		Msg("transfer completed")

	s.notifyReceived(result)
	return result, nil
}

// MultipleTransfer sends the same amount to every phone. The full amount must
// be covered upfront; each leg then commits or fails on its own savepoint.
func (s *TransferServiceImpl) MultipleTransfer(ctx context.Context, req ports.MultipleTransferRequest) (*ports.BatchResult, error) {
	if !domain.ValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if len(req.RecipientPhones) == 0 {
		return nil, apperror.Validation("At least one recipient is required")
	}

	total := req.Amount.Mul(decimal.NewFromInt(int64(len(req.RecipientPhones))))
	start := time.Now()

	result := &ports.BatchResult{
		Successful:       []ports.LegSuccess{},
		Failed:           []ports.LegFailure{},
		TotalTransferred: decimal.Zero,
	}
	var committed []*ports.TransferResult

	err := s.uow.WithinTransaction(ctx, func(tx pgx.Tx) error {
		ids := []uuid.UUID{req.SenderID}
		for _, phone := range req.RecipientPhones {
			recipient, err := s.accounts.GetByPhone(ctx, domain.NormalizePhone(phone, s.opts.CountryPrefix))
			if err != nil {
				return apperror.InternalError(fmt.Errorf("resolve recipient: %w", err))
			}
			if recipient != nil {
				ids = append(ids, recipient.ID)
			}
		}

		locked, err := s.lockAccounts(ctx, tx, ids...)
		if err != nil {
			return err
		}
		sender := locked[req.SenderID]
		if sender == nil {
			return apperror.ErrNotFound("Account")
		}
		if sender.Balance.LessThan(total) {
			return apperror.ErrInsufficientFunds()
		}

		result.RemainingBalance = sender.Balance
		for _, phone := range req.RecipientPhones {
			leg, err := s.postLeg(ctx, tx, req.SenderID, phone, req.Amount)
			if err != nil {
				result.Failed = append(result.Failed, s.legFailure(phone, err))
				continue
			}
			committed = append(committed, leg)
			result.Successful = append(result.Successful, ports.LegSuccess{
				Phone:         phone,
				TransactionID: leg.Transaction.ID,
				Recipient:     leg.Recipient,
				Amount:        req.Amount,
			})
			result.TotalTransferred = result.TotalTransferred.Add(req.Amount)
			result.RemainingBalance = leg.SenderBalance
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordTransfer(string(domain.TransactionTypeMultiple), metrics.OutcomeFailure, time.Since(start))
		return nil, s.fail(err, string(domain.TransactionTypeMultiple), req.SenderID, total)
	}

	result.CompletedCount = len(result.Successful)
	result.FailedCount = len(result.Failed)
	result.Status = ports.BatchStatusFailed
	outcome := metrics.OutcomeFailure
	if result.CompletedCount > 0 {
		result.Status = ports.BatchStatusSuccess
		outcome = metrics.OutcomeSuccess
	}
	s.metrics.RecordTransfer(string(domain.TransactionTypeMultiple), outcome, time.Since(start))

	s.log.Info().
		Str("sender_id", req.SenderID.String()).
		Int("completed", result.CompletedCount).
		Int("failed", result.FailedCount).
		Str("total", result.TotalTransferred.StringFixed(domain.AmountScale)).
		Msg("multiple transfer processed")

	for _, leg := range committed {
		s.notifyReceived(leg)
	}
	return result, nil
}

// postLeg runs one batch leg inside a savepoint.
func (s *TransferServiceImpl) postLeg(ctx context.Context, tx pgx.Tx, senderID uuid.UUID, phone string, amount decimal.Decimal) (*ports.TransferResult, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin savepoint: %w", err))
	}
	defer sp.Rollback(ctx) //nolint:errcheck

	res, err := s.postToPhone(ctx, sp, senderID, phone, amount, domain.TransactionTypeMultiple)
	if err != nil {
		return nil, err
	}
	if err := sp.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("release savepoint: %w", err))
	}
	return res, nil
}

func (s *TransferServiceImpl) legFailure(phone string, err error) ports.LegFailure {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < 500 {
		return ports.LegFailure{Phone: phone, ErrorCode: appErr.Code, Reason: appErr.Message}
	}
	s.log.Error().Err(err).Str("phone", phone).Msg("multiple transfer leg failed")
	return ports.LegFailure{Phone: phone, ErrorCode: "SYS_001", Reason: "Internal server error"}
}

// postToPhone resolves the recipient by phone and posts the transfer.
func (s *TransferServiceImpl) postToPhone(
	ctx context.Context,
	tx pgx.Tx,
	senderID uuid.UUID,
	phone string,
	amount decimal.Decimal,
	txType domain.TransactionType,
) (*ports.TransferResult, error) {
	recipient, err := s.accounts.GetByPhone(ctx, domain.NormalizePhone(phone, s.opts.CountryPrefix))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve recipient: %w", err))
	}
	receiverID := uuid.Nil
	if recipient != nil {
		receiverID = recipient.ID
	}
	return s.PostInTx(ctx, tx, ports.PostingRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		Type:       txType,
	})
}

// PostInTx posts a transfer inside the caller's transaction. A nil
// ReceiverID means the recipient could not be resolved.
//
// Checks run in a fixed order: amount, self-transfer, funds, recipient.
func (s *TransferServiceImpl) PostInTx(ctx context.Context, tx pgx.Tx, req ports.PostingRequest) (*ports.TransferResult, error) {
	if !domain.ValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.ReceiverID == req.SenderID {
		return nil, apperror.ErrSelfTransfer()
	}

	locked, err := s.lockAccounts(ctx, tx, req.SenderID, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	sender := locked[req.SenderID]
	if sender == nil {
		return nil, apperror.ErrNotFound("Account")
	}
	if sender.Balance.LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	receiver := locked[req.ReceiverID]
	if req.Type == domain.TransactionTypeMerchant {
		if receiver == nil || !receiver.IsMerchant() {
			return nil, apperror.ErrNotAMerchant()
		}
	} else if receiver == nil {
		return nil, apperror.ErrUnknownRecipient()
	}

	senderBalance, err := s.accounts.AdjustBalance(ctx, tx, sender.ID, req.Amount.Neg())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit sender: %w", err))
	}
	if _, err := s.accounts.AdjustBalance(ctx, tx, receiver.ID, req.Amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit receiver: %w", err))
	}

	now := s.clock.Now()
	txn := &domain.Transaction{
		ID:         uuid.New(),
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     req.Amount,
		Type:       req.Type,
		Status:     domain.TransactionStatusCompleted,
		CreatedAt:  now,
	}
	if err := s.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	if err := s.contacts.Touch(ctx, tx, sender.ID, receiver.ID, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("touch contact: %w", err))
	}

	return &ports.TransferResult{
		Transaction:   txn,
		SenderBalance: senderBalance,
		Sender:        sender.Party(),
		Recipient:     receiver.Party(),
	}, nil
}

// CancelTransfer reverses a completed transfer within the cancellation window.
func (s *TransferServiceImpl) CancelTransfer(ctx context.Context, req ports.CancelRequest) (*domain.Transaction, error) {
	var (
		cancelled *domain.Transaction
		sender    *domain.Account
		receiver  *domain.Account
	)

	err := s.uow.WithinTransaction(ctx, func(tx pgx.Tx) error {
		txn, err := s.txRepo.GetByIDForUpdate(ctx, tx, req.TransactionID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
		}
		if txn == nil {
			return apperror.ErrNotFound("Transaction")
		}
		if txn.SenderID != req.AccountID {
			return apperror.ErrForbidden()
		}
		if txn.IsCancelled() {
			return apperror.ErrAlreadyCancelled()
		}
		if txn.Status != domain.TransactionStatusCompleted {
			return apperror.ErrNotCancellable()
		}
		now := s.clock.Now()
		if !txn.WithinCancelWindow(now, s.opts.CancelWindow) {
			return apperror.ErrCancellationWindowExpired()
		}

		locked, err := s.lockAccounts(ctx, tx, txn.SenderID, txn.ReceiverID)
		if err != nil {
			return err
		}
		sender, receiver = locked[txn.SenderID], locked[txn.ReceiverID]
		if sender == nil || receiver == nil {
			return apperror.InternalError(fmt.Errorf("transaction %s references a missing account", txn.ID))
		}
		if !s.opts.AllowNegativeReversal && receiver.Balance.LessThan(txn.Amount) {
			return apperror.ErrReversalNotCovered()
		}

		if _, err := s.accounts.AdjustBalance(ctx, tx, receiver.ID, txn.Amount.Neg()); err != nil {
			return apperror.InternalError(fmt.Errorf("debit receiver: %w", err))
		}
		if _, err := s.accounts.AdjustBalance(ctx, tx, sender.ID, txn.Amount); err != nil {
			return apperror.InternalError(fmt.Errorf("credit sender: %w", err))
		}
		if err := s.txRepo.MarkCancelled(ctx, tx, txn.ID, req.AccountID, req.Reason, now); err != nil {
			return apperror.InternalError(fmt.Errorf("mark cancelled: %w", err))
		}

		actor := req.AccountID
		reason := req.Reason
		txn.Status = domain.TransactionStatusCancelled
		txn.CancelledAt = &now
		txn.CancelledBy = &actor
		txn.CancelReason = &reason
		cancelled = txn
		return nil
	})
	if err != nil {
		s.metrics.RecordCancellation(metrics.OutcomeFailure)
		return nil, s.fail(err, "CANCEL", req.AccountID, decimal.Zero)
	}
	s.metrics.RecordCancellation(metrics.OutcomeSuccess)

	s.log.Info().
		Str("tx_id", cancelled.ID.String()).
		Str("actor_id", req.AccountID.String()).
		Str("amount", cancelled.Amount.StringFixed(domain.AmountScale)).
		Msg("transfer cancelled")

	notifyAsync(s.notifier, s.log, domain.InternationalPhone(receiver.Phone, s.opts.CountryPrefix),
		fmt.Sprintf("A transfer of %s from %s has been cancelled.",
			cancelled.Amount.StringFixed(domain.AmountScale), sender.FullName()))
	return cancelled, nil
}

// lockAccounts locks the given account rows in ascending id order so that
// concurrent units of work never wait on each other in a cycle. Nil ids are
// skipped; missing accounts are absent from the result.
func (s *TransferServiceImpl) lockAccounts(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool {
		return bytes.Compare(unique[i][:], unique[j][:]) < 0
	})

	locked := make(map[uuid.UUID]*domain.Account, len(unique))
	for _, id := range unique {
		acc, err := s.accounts.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
		}
		if acc != nil {
			locked[id] = acc
		}
	}
	return locked, nil
}

// replay returns the stored result for an idempotency key, Redis first.
func (s *TransferServiceImpl) replay(ctx context.Context, key string) (*ports.TransferResult, error) {
	var cached []byte
	if s.idempCache != nil {
		var err error
		cached, err = s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
	}
	if cached == nil {
		entry, err := s.idempRepo.Get(ctx, key)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
		if entry == nil {
			return nil, nil
		}
		cached = entry.ResponseJSON
	}

	result := &ports.TransferResult{}
	if err := json.Unmarshal(cached, result); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached result: %w", err))
	}
	s.log.Debug().Str("key", key).Msg("idempotent replay")
	return result, nil
}

func (s *TransferServiceImpl) saveIdempotency(ctx context.Context, tx pgx.Tx, key string, result *ports.TransferResult) ([]byte, error) {
	respJSON, err := json.Marshal(result)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	entry := &domain.IdempotencyLog{
		Key:           key,
		TransactionID: result.Transaction.ID,
		ResponseJSON:  respJSON,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.idempRepo.Create(ctx, tx, entry); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
	}
	return respJSON, nil
}

// fail maps a unit-of-work error to the error returned to callers and logs
// infrastructure failures.
func (s *TransferServiceImpl) fail(err error, op string, actor uuid.UUID, amount decimal.Decimal) error {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.InternalError(err)
	}
	if appErr.HTTPStatus >= 500 {
		s.log.Error().Err(err).
			Str("op", op).
			Str("actor_id", actor.String()).
			Str("amount", amount.StringFixed(domain.AmountScale)).
			Msg("transfer failed")
	}
	return appErr
}

func (s *TransferServiceImpl) notifyReceived(r *ports.TransferResult) {
	notifyAsync(s.notifier, s.log, domain.InternationalPhone(r.Recipient.Phone, s.opts.CountryPrefix),
		fmt.Sprintf("You have received %s from %s %s.",
			r.Transaction.Amount.StringFixed(domain.AmountScale), r.Sender.FirstName, r.Sender.LastName))
}
