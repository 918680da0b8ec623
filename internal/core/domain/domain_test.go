package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"771234567", "771234567"},
		{"+221 77 123 45 67", "771234567"},
		{"221771234567", "771234567"},
		{"(77) 123-45-67", "771234567"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.raw, "221"))
		})
	}
}

func TestInternationalPhone(t *testing.T) {
	assert.Equal(t, "+221771234567", InternationalPhone("771234567", "221"))
}

func TestValidAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"100", true},
		{"0.01", true},
		{"12.50", true},
		{"0", false},
		{"-5", false},
		{"1.005", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidAmount(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestAccount_ViewStripsSecret(t *testing.T) {
	a := &Account{ID: uuid.New(), Phone: "771234567", SecretCodeHash: "$argon2id$...", Active: true, Role: RoleUser}
	v := a.View()
	assert.Equal(t, a.ID, v.ID)
	assert.Equal(t, a.Phone, v.Phone)
}

func TestAccount_IsMerchant(t *testing.T) {
	assert.True(t, (&Account{Active: true, Role: RoleMerchant}).IsMerchant())
	assert.False(t, (&Account{Active: false, Role: RoleMerchant}).IsMerchant())
	assert.False(t, (&Account{Active: true, Role: RoleUser}).IsMerchant())
}

func TestTransaction_WithinCancelWindow(t *testing.T) {
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tx := &Transaction{CreatedAt: created}

	assert.True(t, tx.WithinCancelWindow(created.Add(30*time.Minute), 30*time.Minute))
	assert.False(t, tx.WithinCancelWindow(created.Add(31*time.Minute), 30*time.Minute))
}

func TestTransaction_DirectionFor(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()
	tx := &Transaction{SenderID: sender, ReceiverID: receiver}
	assert.Equal(t, DirectionSent, tx.DirectionFor(sender))
	assert.Equal(t, DirectionReceived, tx.DirectionFor(receiver))
}

func TestFirstExecution(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	first, err := FirstExecution(start, "09:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC), first)

	_, err = FirstExecution(start, "25:00")
	assert.Error(t, err)
}

func newSeries(freq Frequency, start time.Time, end *time.Time) *ScheduledTransfer {
	first, _ := FirstExecution(start, "09:00")
	return &ScheduledTransfer{
		Frequency:     freq,
		StartDate:     start,
		EndDate:       end,
		ExecutionTime: "09:00",
		NextExecution: &first,
		Active:        true,
	}
}

func TestScheduledTransfer_MonthlySeriesEndsAfterEndDate(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	s := newSeries(FrequencyMonthly, start, &end)

	expected := []time.Time{
		time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
	}

	for i, due := range expected {
		require.True(t, s.ShouldExecute(due), "run %d should be due", i)
		assert.Equal(t, due, *s.NextExecution)
		s.MarkExecuted(due)
	}

	assert.False(t, s.Active)
	assert.Nil(t, s.NextExecution)
	assert.Equal(t, expected[2], *s.LastExecution)
}

func TestScheduledTransfer_MonthlyClampsToMonthEnd(t *testing.T) {
	start := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	s := newSeries(FrequencyMonthly, start, nil)

	s.MarkExecuted(time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC), *s.NextExecution)

	s.MarkExecuted(time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC), *s.NextExecution)
}

func TestScheduledTransfer_DailyAndWeekly(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	daily := newSeries(FrequencyDaily, start, nil)
	daily.MarkExecuted(time.Date(2025, 6, 1, 9, 0, 5, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), *daily.NextExecution)

	weekly := newSeries(FrequencyWeekly, start, nil)
	weekly.MarkExecuted(time.Date(2025, 6, 1, 9, 1, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC), *weekly.NextExecution)
}

func TestScheduledTransfer_BehindScheduleCatchesUp(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	s := newSeries(FrequencyDaily, start, &end)

	late := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	var paid []time.Time
	for s.ShouldExecute(late) {
		s.MarkExecuted(late)
		paid = append(paid, *s.LastExecution)
		if s.NextExecution != nil {
			assert.True(t, s.NextExecution.After(*s.LastExecution))
		}
	}

	assert.Equal(t, []time.Time{
		time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC),
	}, paid)
	assert.False(t, s.Active)
	assert.Equal(t, late, s.UpdatedAt)
}

func TestScheduledTransfer_ShouldExecute(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := newSeries(FrequencyDaily, start, nil)

	assert.False(t, s.ShouldExecute(time.Date(2025, 6, 1, 8, 59, 0, 0, time.UTC)))
	assert.True(t, s.ShouldExecute(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))

	s.Deactivate(time.Now())
	assert.False(t, s.ShouldExecute(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
}

func TestScheduledTransfer_MarkUnderfunded(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	unlimited := newSeries(FrequencyDaily, start, nil)
	for i := 0; i < 10; i++ {
		assert.False(t, unlimited.MarkUnderfunded(now, 0))
	}
	assert.True(t, unlimited.Active)
	assert.Equal(t, now, *unlimited.NextExecution, "due time must not advance")

	capped := newSeries(FrequencyDaily, start, nil)
	assert.False(t, capped.MarkUnderfunded(now, 2))
	assert.True(t, capped.MarkUnderfunded(now, 2))
	assert.False(t, capped.Active)
	assert.Nil(t, capped.NextExecution)
}

func TestScheduledTransfer_IsExpired(t *testing.T) {
	end := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	s := &ScheduledTransfer{EndDate: &end}

	assert.False(t, s.IsExpired(time.Date(2025, 3, 20, 23, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsExpired(time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC)))
	assert.False(t, (&ScheduledTransfer{}).IsExpired(time.Now()))
}

func TestScheduledTransfer_IsDuplicateOf(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a := &ScheduledTransfer{SenderID: sender, ReceiverID: receiver, Amount: decimal.NewFromInt(500), StartDate: start, ExecutionTime: "09:00"}
	b := *a
	b.Amount = decimal.RequireFromString("500.00")

	assert.True(t, a.IsDuplicateOf(&b))

	b.ExecutionTime = "10:00"
	assert.False(t, a.IsDuplicateOf(&b))
}

func TestFrequency_Valid(t *testing.T) {
	assert.True(t, FrequencyMonthly.Valid())
	assert.False(t, Frequency("yearly").Valid())
	assert.True(t, TransactionTypeMerchant.Valid())
	assert.False(t, TransactionType("TOPUP").Valid())
}

func TestIdempotencyKeys(t *testing.T) {
	acct := uuid.MustParse("6f1c2a7e-0000-4000-8000-000000000001")
	assert.Equal(t, "6f1c2a7e-0000-4000-8000-000000000001:SIMPLE_TRANSFER:k-1",
		BuildIdempotencyKey(acct, TransactionTypeSimple, "k-1"))

	assert.True(t, ValidIdempotencyKey("3f0e9b1c-retry"))
	assert.False(t, ValidIdempotencyKey(""))
	assert.False(t, ValidIdempotencyKey("has space"))
	assert.False(t, ValidIdempotencyKey("tab\tkey"))
	assert.False(t, ValidIdempotencyKey(string(make([]byte, MaxIdempotencyKeyLen+1))))
}
