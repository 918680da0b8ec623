package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/internal/core/ports/mocks"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/clock"
	"mobile-money-gateway/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type scheduleTestDeps struct {
	svc      *ScheduledTransferServiceImpl
	accounts *mocks.MockAccountRepository
	repo     *mocks.MockScheduledTransferRepository
	poster   *mocks.MockLedgerPoster
	uow      *mocks.MockUnitOfWork
	clock    *clock.Mock
	metrics  *metrics.Collector
	ctrl     *gomock.Controller
}

func setupScheduleService(t *testing.T, maxFailures int) *scheduleTestDeps {
	ctrl := gomock.NewController(t)
	d := &scheduleTestDeps{
		accounts: mocks.NewMockAccountRepository(ctrl),
		repo:     mocks.NewMockScheduledTransferRepository(ctrl),
		poster:   mocks.NewMockLedgerPoster(ctrl),
		uow:      mocks.NewMockUnitOfWork(ctrl),
		clock:    clock.NewMock(testNow),
		metrics:  metrics.New(),
		ctrl:     ctrl,
	}
	d.svc = NewScheduledTransferService(
		d.accounts, d.repo, d.poster, d.uow, nil, d.clock, d.metrics,
		ScheduleOptions{CountryPrefix: "221", MaxConsecutiveFailures: maxFailures},
		zerolog.Nop(),
	)
	return d
}

func dueSeries(sender, receiver uuid.UUID, freq domain.Frequency, next time.Time) *domain.ScheduledTransfer {
	return &domain.ScheduledTransfer{
		ID:            uuid.New(),
		SenderID:      sender,
		ReceiverID:    receiver,
		Amount:        decimal.NewFromInt(100),
		Frequency:     freq,
		StartDate:     domain.DateOnly(next),
		ExecutionTime: next.Format("15:04"),
		NextExecution: &next,
		Active:        true,
	}
}

// ==================== Schedule ====================

func TestScheduleService_Schedule_Success(t *testing.T) {
	d := setupScheduleService(t, 0)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	recipient := newAccount("772222222", "0")
	start := testNow.AddDate(0, 0, 1)
	end := start.AddDate(0, 1, 0)

	d.accounts.EXPECT().GetByPhone(ctx, "772222222").Return(recipient, nil)
	d.repo.EXPECT().FindActiveDuplicate(ctx, gomock.Any()).Return(nil, nil)
	d.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	def, err := d.svc.Schedule(ctx, ports.ScheduleRequest{
		SenderID:       senderID,
		RecipientPhone: "772222222",
		Amount:         decimal.NewFromInt(500),
		Frequency:      domain.FrequencyWeekly,
		StartDate:      start,
		EndDate:        &end,
		ExecutionTime:  "09:30",
	})
	require.NoError(t, err)
	assert.True(t, def.Active)
	assert.Equal(t, recipient.ID, def.ReceiverID)
	require.NotNil(t, def.NextExecution)
	assert.Equal(t, time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC), *def.NextExecution)
}

func TestScheduleService_Schedule_Rejections(t *testing.T) {
	senderID := uuid.New()
	tomorrow := testNow.AddDate(0, 0, 1)
	before := tomorrow.AddDate(0, 0, -1)

	base := func() ports.ScheduleRequest {
		return ports.ScheduleRequest{
			SenderID:       senderID,
			RecipientPhone: "772222222",
			Amount:         decimal.NewFromInt(100),
			Frequency:      domain.FrequencyDaily,
			StartDate:      tomorrow,
			ExecutionTime:  "08:00",
		}
	}

	tests := []struct {
		name      string
		mutate    func(r *ports.ScheduleRequest)
		recipient *domain.Account
		duplicate bool
		dupCheck  bool
		noLookup  bool
		wantCode  string
	}{
		{
			name:     "zero amount",
			mutate:   func(r *ports.ScheduleRequest) { r.Amount = decimal.Zero },
			noLookup: true,
			wantCode: "PAY_002",
		},
		{
			name:     "bad frequency",
			mutate:   func(r *ports.ScheduleRequest) { r.Frequency = "yearly" },
			noLookup: true,
			wantCode: "PAY_002",
		},
		{
			name:     "bad time of day",
			mutate:   func(r *ports.ScheduleRequest) { r.ExecutionTime = "25:00" },
			noLookup: true,
			wantCode: "PAY_002",
		},
		{
			name:     "unknown recipient",
			mutate:   func(r *ports.ScheduleRequest) {},
			wantCode: "PAY_005",
		},
		{
			name:      "self",
			mutate:    func(r *ports.ScheduleRequest) {},
			recipient: &domain.Account{ID: senderID},
			wantCode:  "PAY_006",
		},
		{
			name:      "start in the past",
			mutate:    func(r *ports.ScheduleRequest) { r.StartDate = testNow; r.ExecutionTime = "11:59" },
			recipient: newAccount("772222222", "0"),
			dupCheck:  true,
			wantCode:  "SCH_002",
		},
		{
			name:      "end before start",
			mutate:    func(r *ports.ScheduleRequest) { r.EndDate = &before },
			recipient: newAccount("772222222", "0"),
			dupCheck:  true,
			wantCode:  "SCH_003",
		},
		{
			name:      "duplicate",
			mutate:    func(r *ports.ScheduleRequest) {},
			recipient: newAccount("772222222", "0"),
			duplicate: true,
			wantCode:  "SCH_001",
		},
		{
			name:      "duplicate of a series already under way",
			mutate:    func(r *ports.ScheduleRequest) { r.StartDate = testNow; r.ExecutionTime = "11:59" },
			recipient: newAccount("772222222", "0"),
			duplicate: true,
			wantCode:  "SCH_001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupScheduleService(t, 0)
			defer d.ctrl.Finish()
			ctx := context.Background()

			req := base()
			tt.mutate(&req)

			if !tt.noLookup {
				d.accounts.EXPECT().GetByPhone(ctx, "772222222").Return(tt.recipient, nil)
			}
			if tt.duplicate {
				d.repo.EXPECT().FindActiveDuplicate(ctx, gomock.Any()).Return(&domain.ScheduledTransfer{}, nil)
			}
			if tt.dupCheck {
				d.repo.EXPECT().FindActiveDuplicate(ctx, gomock.Any()).Return(nil, nil)
			}

			_, err := d.svc.Schedule(ctx, req)
			assertAppError(t, err, tt.wantCode)
		})
	}
}

// ==================== ExecuteDue ====================

func TestScheduleService_ExecuteDue_Success(t *testing.T) {
	d := setupScheduleService(t, 0)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sender := newAccount("771111111", "1000")
	receiver := newAccount("772222222", "0")
	due := testNow.Add(-time.Minute)
	def := dueSeries(sender.ID, receiver.ID, domain.FrequencyDaily, due)
	notYet := dueSeries(sender.ID, receiver.ID, domain.FrequencyDaily, testNow.Add(time.Hour))

	d.repo.EXPECT().ListActive(ctx, domain.DateOnly(testNow)).Return([]domain.ScheduledTransfer{*def, *notYet}, nil)
	d.uow.EXPECT().WithinTransaction(ctx, gomock.Any()).DoAndReturn(runInTx)
	d.repo.EXPECT().GetByIDForUpdate(ctx, gomock.Any(), def.ID).Return(def, nil)
	d.poster.EXPECT().PostInTx(ctx, gomock.Any(), ports.PostingRequest{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     def.Amount,
		Type:       domain.TransactionTypeScheduled,
	}).Return(&ports.TransferResult{
		Transaction: &domain.Transaction{ID: uuid.New()},
		Sender:      sender.Party(),
		Recipient:   receiver.Party(),
	}, nil)
	d.repo.EXPECT().Update(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, s *domain.ScheduledTransfer) error {
			require.NotNil(t, s.NextExecution)
			assert.Equal(t, due.AddDate(0, 0, 1), *s.NextExecution)
			assert.Equal(t, due, *s.LastExecution)
			return nil
		})

	report, err := d.svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Due)
	assert.Equal(t, 1, report.Executed)
	assert.Equal(t, 0, report.Completed)
	assert.Equal(t, 1.0, counterValue(t, d.metrics, "mm_scheduled_executions_total"))
}

func TestScheduleService_ExecuteDue_LastOccurrenceCompletesSeries(t *testing.T) {
	d := setupScheduleService(t, 0)
	defer d.ctrl.Finish()

	ctx := context.Background()
	due := testNow.Add(-time.Minute)
	def := dueSeries(uuid.New(), uuid.New(), domain.FrequencyWeekly, due)
	end := domain.DateOnly(testNow)
	def.EndDate = &end

	d.repo.EXPECT().ListActive(ctx, gomock.Any()).Return([]domain.ScheduledTransfer{*def}, nil)
	d.uow.EXPECT().WithinTransaction(ctx, gomock.Any()).DoAndReturn(runInTx)
	d.repo.EXPECT().GetByIDForUpdate(ctx, gomock.Any(), def.ID).Return(def, nil)
	d.poster.EXPECT().PostInTx(ctx, gomock.Any(), gomock.Any()).Return(&ports.TransferResult{
		Transaction: &domain.Transaction{ID: uuid.New()},
	}, nil)
	d.repo.EXPECT().Update(ctx, gomock.Any(), gomock.Any()).Return(nil)

	report, err := d.svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Executed)
	assert.Equal(t, 1, report.Completed)
	assert.False(t, def.Active)
	assert.Nil(t, def.NextExecution)
}

func TestScheduleService_ExecuteDue_InsufficientFundsKeepsNextExecution(t *testing.T) {
	d := setupScheduleService(t, 3)
	defer d.ctrl.Finish()

	ctx := context.Background()
	due := testNow.Add(-time.Hour)
	def := dueSeries(uuid.New(), uuid.New(), domain.FrequencyMonthly, due)

	d.repo.EXPECT().ListActive(ctx, gomock.Any()).Return([]domain.ScheduledTransfer{*def}, nil)
	d.uow.EXPECT().WithinTransaction(ctx, gomock.Any()).DoAndReturn(runInTx)
	d.repo.EXPECT().GetByIDForUpdate(ctx, gomock.Any(), def.ID).Return(def, nil)
	d.poster.EXPECT().PostInTx(ctx, gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())
	d.repo.EXPECT().Update(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, s *domain.ScheduledTransfer) error {
			assert.Equal(t, due, *s.NextExecution)
			assert.Nil(t, s.LastExecution)
			assert.Equal(t, 1, s.ConsecutiveFailures)
			assert.True(t, s.Active)
			return nil
		})

	report, err := d.svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Executed)
}

func TestScheduleService_ExecuteDue_DeactivatesAfterMaxFailures(t *testing.T) {
	d := setupScheduleService(t, 2)
	defer d.ctrl.Finish()

	ctx := context.Background()
	def := dueSeries(uuid.New(), uuid.New(), domain.FrequencyDaily, testNow.Add(-time.Hour))
	def.ConsecutiveFailures = 1

	d.repo.EXPECT().ListActive(ctx, gomock.Any()).Return([]domain.ScheduledTransfer{*def}, nil)
	d.uow.EXPECT().WithinTransaction(ctx, gomock.Any()).DoAndReturn(runInTx)
	d.repo.EXPECT().GetByIDForUpdate(ctx, gomock.Any(), def.ID).Return(def, nil)
	d.poster.EXPECT().PostInTx(ctx, gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())
	d.repo.EXPECT().Update(ctx, gomock.Any(), gomock.Any()).Return(nil)

	report, err := d.svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.False(t, def.Active)
}

func TestScheduleService_ExecuteDue_FailureDoesNotStopOthers(t *testing.T) {
	d := setupScheduleService(t, 0)
	defer d.ctrl.Finish()

	ctx := context.Background()
	due := testNow.Add(-time.Minute)
	broken := dueSeries(uuid.New(), uuid.New(), domain.FrequencyDaily, due)
	healthy := dueSeries(uuid.New(), uuid.New(), domain.FrequencyDaily, due)

	d.repo.EXPECT().ListActive(ctx, gomock.Any()).Return([]domain.ScheduledTransfer{*broken, *healthy}, nil)
	d.uow.EXPECT().WithinTransaction(ctx, gomock.Any()).DoAndReturn(runInTx).Times(2)
	d.repo.EXPECT().GetByIDForUpdate(ctx, gomock.Any(), broken.ID).Return(nil, errors.New("connection reset"))
	d.repo.EXPECT().GetByIDForUpdate(ctx, gomock.Any(), healthy.ID).Return(healthy, nil)
	d.poster.EXPECT().PostInTx(ctx, gomock.Any(), gomock.Any()).Return(&ports.TransferResult{
		Transaction: &domain.Transaction{ID: uuid.New()},
	}, nil)
	d.repo.EXPECT().Update(ctx, gomock.Any(), gomock.Any()).Return(nil)

	report, err := d.svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Due)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Executed)
}

func TestScheduleService_ExecuteDue_SkipsSeriesAlreadyRunByAnotherWorker(t *testing.T) {
	d := setupScheduleService(t, 0)
	defer d.ctrl.Finish()

	ctx := context.Background()
	def := dueSeries(uuid.New(), uuid.New(), domain.FrequencyDaily, testNow.Add(-time.Minute))
	advanced := *def
	next := testNow.AddDate(0, 0, 1)
	advanced.NextExecution = &next

	d.repo.EXPECT().ListActive(ctx, gomock.Any()).Return([]domain.ScheduledTransfer{*def}, nil)
	d.uow.EXPECT().WithinTransaction(ctx, gomock.Any()).DoAndReturn(runInTx)
	d.repo.EXPECT().GetByIDForUpdate(ctx, gomock.Any(), def.ID).Return(&advanced, nil)

	report, err := d.svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Due)
	assert.Equal(t, 0, report.Executed)
	assert.Equal(t, 0, report.Failed)
}

// ==================== Cancel ====================

func TestScheduleService_Cancel(t *testing.T) {
	owner := uuid.New()

	tests := []struct {
		name     string
		found    *domain.ScheduledTransfer
		actor    uuid.UUID
		wantCode string
	}{
		{name: "not found", actor: owner, wantCode: "PAY_004"},
		{name: "not owner", found: &domain.ScheduledTransfer{SenderID: owner, Active: true}, actor: uuid.New(), wantCode: "PAY_007"},
		{name: "already inactive", found: &domain.ScheduledTransfer{SenderID: owner}, actor: owner, wantCode: "SCH_004"},
		{name: "success", found: &domain.ScheduledTransfer{SenderID: owner, Active: true}, actor: owner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupScheduleService(t, 0)
			defer d.ctrl.Finish()
			ctx := context.Background()
			id := uuid.New()

			d.uow.EXPECT().WithinTransaction(ctx, gomock.Any()).DoAndReturn(runInTx)
			d.repo.EXPECT().GetByIDForUpdate(ctx, gomock.Any(), id).Return(tt.found, nil)
			if tt.wantCode == "" {
				d.repo.EXPECT().Update(ctx, gomock.Any(), gomock.Any()).Return(nil)
			}

			def, err := d.svc.Cancel(ctx, tt.actor, id)
			if tt.wantCode != "" {
				assertAppError(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.False(t, def.Active)
			assert.Nil(t, def.NextExecution)
		})
	}
}

func TestScheduleService_List(t *testing.T) {
	d := setupScheduleService(t, 0)
	defer d.ctrl.Finish()

	ctx := context.Background()
	owner := uuid.New()
	d.repo.EXPECT().ListBySender(ctx, owner).Return([]domain.ScheduledTransfer{{ID: uuid.New()}}, nil)

	defs, err := d.svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}
