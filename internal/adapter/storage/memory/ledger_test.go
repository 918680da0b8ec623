package memory_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"mobile-money-gateway/internal/adapter/storage/memory"
	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/internal/service"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/clock"
	"mobile-money-gateway/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledger struct {
	store     *memory.Store
	accounts  *memory.AccountRepo
	txns      *memory.TransactionRepo
	transfers *service.TransferServiceImpl
	schedules *service.ScheduledTransferServiceImpl
	clock     *clock.Mock
	ids       []uuid.UUID
	phones    []string
}

func newLedger(t *testing.T, n int, balance int64) *ledger {
	t.Helper()
	store := memory.New()
	clk := clock.NewMock(time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))
	mx := metrics.New()
	log := zerolog.Nop()

	l := &ledger{
		store:    store,
		accounts: memory.NewAccountRepo(store),
		txns:     memory.NewTransactionRepo(store),
		clock:    clk,
	}
	l.transfers = service.NewTransferService(
		l.accounts, l.txns, memory.NewContactRepo(store), memory.NewIdempotencyRepo(store),
		memory.NewIdempotencyCache(clk), store, nil, clk, mx,
		service.TransferOptions{CancelWindow: 30 * time.Minute, IdempotencyTTL: time.Hour},
		log,
	)
	l.schedules = service.NewScheduledTransferService(
		l.accounts, memory.NewScheduledTransferRepo(store), l.transfers, store, nil, clk, mx,
		service.ScheduleOptions{MaxConsecutiveFailures: 3}, log,
	)

	for i := 0; i < n; i++ {
		phone := fmt.Sprintf("07%08d", i)
		a := &domain.Account{
			ID: uuid.New(), Phone: phone, FirstName: "User", LastName: phone,
			Balance: decimal.NewFromInt(balance), Active: true, Role: domain.RoleUser,
			CreatedAt: clk.Now(), UpdatedAt: clk.Now(),
		}
		require.NoError(t, l.accounts.Create(context.Background(), a))
		l.ids = append(l.ids, a.ID)
		l.phones = append(l.phones, phone)
	}
	return l
}

func (l *ledger) balances(t *testing.T) (decimal.Decimal, []decimal.Decimal) {
	t.Helper()
	total := decimal.Zero
	var each []decimal.Decimal
	for _, id := range l.ids {
		a, err := l.accounts.GetByID(context.Background(), id)
		require.NoError(t, err)
		total = total.Add(a.Balance)
		each = append(each, a.Balance)
	}
	return total, each
}

func TestLedger_ConcurrentTransfersConserveMoney(t *testing.T) {
	const (
		accounts = 6
		workers  = 8
		perWork  = 40
	)
	l := newLedger(t, accounts, 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed*7+1))
			for i := 0; i < perWork; i++ {
				from := rng.IntN(accounts)
				to := rng.IntN(accounts)
				amount := decimal.New(int64(rng.IntN(5000)+1), -2)

				switch rng.IntN(3) {
				case 0, 1:
					_, err := l.transfers.Transfer(ctx, ports.TransferRequest{
						SenderID: l.ids[from], RecipientPhone: l.phones[to], Amount: amount,
					})
					if err != nil && !apperror.HasCode(err, apperror.ErrInsufficientFunds().Code) &&
						!apperror.HasCode(err, apperror.ErrSelfTransfer().Code) {
						t.Errorf("unexpected transfer error: %v", err)
					}
				case 2:
					_, err := l.transfers.MultipleTransfer(ctx, ports.MultipleTransferRequest{
						SenderID:        l.ids[from],
						RecipientPhones: []string{l.phones[to], l.phones[(to+1)%accounts]},
						Amount:          amount,
					})
					if err != nil && !apperror.HasCode(err, apperror.ErrInsufficientFunds().Code) {
						t.Errorf("unexpected batch error: %v", err)
					}
				}
			}
		}(uint64(w + 1))
	}
	wg.Wait()

	total, each := l.balances(t)
	assert.True(t, total.Equal(decimal.NewFromInt(accounts*100)), "total drifted to %s", total)
	for i, b := range each {
		assert.False(t, b.IsNegative(), "account %d went negative: %s", i, b)
	}
}

func TestLedger_CancelRestoresBalances(t *testing.T) {
	l := newLedger(t, 2, 100)
	ctx := context.Background()

	res, err := l.transfers.Transfer(ctx, ports.TransferRequest{
		SenderID: l.ids[0], RecipientPhone: l.phones[1], Amount: decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	l.clock.Advance(10 * time.Minute)
	_, err = l.transfers.CancelTransfer(ctx, ports.CancelRequest{
		AccountID: l.ids[0], TransactionID: res.Transaction.ID, Reason: "wrong number",
	})
	require.NoError(t, err)

	_, each := l.balances(t)
	assert.True(t, each[0].Equal(decimal.NewFromInt(100)))
	assert.True(t, each[1].Equal(decimal.NewFromInt(100)))

	_, err = l.transfers.CancelTransfer(ctx, ports.CancelRequest{
		AccountID: l.ids[0], TransactionID: res.Transaction.ID, Reason: "again",
	})
	assert.True(t, apperror.HasCode(err, apperror.ErrAlreadyCancelled().Code))
}

func TestLedger_IdempotentReplay(t *testing.T) {
	l := newLedger(t, 2, 100)
	ctx := context.Background()
	req := ports.TransferRequest{
		SenderID: l.ids[0], RecipientPhone: l.phones[1], Amount: decimal.NewFromInt(10), IdempotencyKey: "abc",
	}

	first, err := l.transfers.Transfer(ctx, req)
	require.NoError(t, err)
	second, err := l.transfers.Transfer(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	_, each := l.balances(t)
	assert.True(t, each[0].Equal(decimal.NewFromInt(90)))
}

func TestLedger_ScheduledRunsAlongsideTransfers(t *testing.T) {
	l := newLedger(t, 3, 50)
	ctx := context.Background()
	start := domain.DateOnly(l.clock.Now()).AddDate(0, 0, 1)

	_, err := l.schedules.Schedule(ctx, ports.ScheduleRequest{
		SenderID: l.ids[0], RecipientPhone: l.phones[1], Amount: decimal.NewFromInt(20),
		Frequency: domain.FrequencyDaily, StartDate: start, ExecutionTime: "08:00",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for day := 1; day <= 4; day++ {
		l.clock.Set(start.AddDate(0, 0, day-1).Add(8*time.Hour + time.Minute))

		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.schedules.ExecuteDue(ctx)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, _ = l.transfers.Transfer(ctx, ports.TransferRequest{
				SenderID: l.ids[2], RecipientPhone: l.phones[0], Amount: decimal.NewFromInt(5),
			})
		}()
		wg.Wait()
	}

	total, each := l.balances(t)
	assert.True(t, total.Equal(decimal.NewFromInt(150)))
	for _, b := range each {
		assert.False(t, b.IsNegative())
	}

	list, total64, err := l.txns.List(ctx, ports.TransactionListParams{AccountID: l.ids[1], Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.EqualValues(t, len(list), total64)
	for _, txn := range list {
		assert.Equal(t, domain.TransactionTypeScheduled, txn.Type)
	}
	assert.True(t, each[1].Equal(decimal.NewFromInt(50).Add(decimal.NewFromInt(20).Mul(decimal.NewFromInt(total64)))))
}

func TestLedger_ScheduledSeriesCatchesUpMissedRuns(t *testing.T) {
	l := newLedger(t, 2, 100)
	ctx := context.Background()
	end := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	def, err := l.schedules.Schedule(ctx, ports.ScheduleRequest{
		SenderID: l.ids[0], RecipientPhone: l.phones[1], Amount: decimal.NewFromInt(10),
		Frequency: domain.FrequencyMonthly, StartDate: l.clock.Now(), EndDate: &end, ExecutionTime: "09:30",
	})
	require.NoError(t, err)

	// the driver was down from January to mid-March
	l.clock.Set(time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC))

	executed := 0
	for i := 0; i < 4; i++ {
		report, err := l.schedules.ExecuteDue(ctx)
		require.NoError(t, err)
		executed += report.Executed
	}
	assert.Equal(t, 3, executed)

	_, each := l.balances(t)
	assert.True(t, each[0].Equal(decimal.NewFromInt(70)), "sender balance %s", each[0])
	assert.True(t, each[1].Equal(decimal.NewFromInt(130)), "receiver balance %s", each[1])

	list, err := l.schedules.List(ctx, l.ids[0])
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, def.ID, list[0].ID)
	assert.False(t, list[0].Active)
	assert.Nil(t, list[0].NextExecution)
	require.NotNil(t, list[0].LastExecution)
	assert.Equal(t, time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC), *list[0].LastExecution)
}

func TestLedger_ConcurrentFavoriteTogglesAllApply(t *testing.T) {
	l := newLedger(t, 2, 0)
	ctx := context.Background()
	contacts := service.NewContactService(l.accounts, memory.NewContactRepo(l.store), l.clock, "221", zerolog.Nop())

	const toggles = 51
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := contacts.ToggleFavorite(ctx, l.ids[0], l.ids[1])
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := contacts.List(ctx, l.ids[0])
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Favorite, "an odd number of toggles must leave the contact a favorite")
}
