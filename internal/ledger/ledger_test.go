package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/models"
	"github.com/wnt/memescore/internal/testutil"
	"gorm.io/gorm"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func txHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

func setup(t *testing.T) (*gorm.DB, *Ledger, *time.Time) {
	t.Helper()
	db := testutil.NewTestDB(t)
	testutil.CreateCreator(t, db, 1, "alice")
	testutil.CreateCreator(t, db, 2, "bob")
	testutil.CreateCreator(t, db, 3, "carol")

	clock := now
	l := New(db, WithClock(func() time.Time { return clock }))
	return db, l, &clock
}

func uintPtr(v uint) *uint { return &v }

func TestRecordNormalizesInput(t *testing.T) {
	_, l, _ := setup(t)

	tip, err := l.Record(context.Background(), RecordInput{
		ToCreatorID:   1,
		FromCreatorID: uintPtr(2),
		TokenAddress:  "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01",
		Amount:        "000123",
		TxHash:        strings.ToUpper(txHash(1)[2:]),
	})
	require.Error(t, err, "hash without 0x prefix is rejected")

	tip, err = l.Record(context.Background(), RecordInput{
		ToCreatorID:   1,
		FromCreatorID: uintPtr(2),
		TokenAddress:  "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01",
		Amount:        "000123",
		TxHash:        "0x" + strings.ToUpper(txHash(1)[2:]),
	})
	require.NoError(t, err)
	assert.NotZero(t, tip.ID)
	assert.Equal(t, "123", tip.Amount)
	assert.Equal(t, txHash(1), tip.TxHash)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", tip.TokenAddress)
	assert.False(t, tip.IsNative())
	assert.True(t, tip.CreatedAt.Equal(now))

	native, err := l.Record(context.Background(), RecordInput{ToCreatorID: 1, Amount: "1", TxHash: txHash(2)})
	require.NoError(t, err)
	assert.True(t, native.IsNative())
	assert.Nil(t, native.FromCreatorID)
}

func TestRecordValidation(t *testing.T) {
	_, l, _ := setup(t)

	cases := map[string]RecordInput{
		"missing destination": {Amount: "1", TxHash: txHash(1)},
		"negative amount":     {ToCreatorID: 1, Amount: "-1", TxHash: txHash(1)},
		"fractional amount":   {ToCreatorID: 1, Amount: "1.5", TxHash: txHash(1)},
		"empty amount":        {ToCreatorID: 1, Amount: "", TxHash: txHash(1)},
		"bad hash":            {ToCreatorID: 1, Amount: "1", TxHash: "0xdead"},
		"bad token":           {ToCreatorID: 1, Amount: "1", TxHash: txHash(1), TokenAddress: "0x12"},
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.Record(context.Background(), in)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation), err.Error())
		})
	}
}

func TestRecordDeduplicates(t *testing.T) {
	db, l, _ := setup(t)

	in := RecordInput{ToCreatorID: 1, Amount: "5", TxHash: txHash(7)}
	_, err := l.Record(context.Background(), in)
	require.NoError(t, err)

	_, err = l.Record(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDuplicateTip))

	// Case differences in the hash are the same transaction
	_, err = l.Record(context.Background(), RecordInput{ToCreatorID: 2, Amount: "9", TxHash: "0x" + strings.ToUpper(txHash(7)[2:])})
	assert.True(t, apperr.Is(err, apperr.KindDuplicateTip))

	var count int64
	require.NoError(t, db.Model(&models.Tip{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordConcurrentDuplicates(t *testing.T) {
	db, l, _ := setup(t)

	const callers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succeeded  int
		duplicates int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Record(context.Background(), RecordInput{ToCreatorID: 1, Amount: "1", TxHash: txHash(99)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.Is(err, apperr.KindDuplicateTip):
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, duplicates)

	var count int64
	require.NoError(t, db.Model(&models.Tip{}).Where("tx_hash = ?", txHash(99)).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWindowAggregateIsExact(t *testing.T) {
	_, l, clock := setup(t)
	ctx := context.Background()

	// 2^60 + 1 loses precision as a float64
	big := "1152921504606846977"
	for i := 0; i < 3; i++ {
		_, err := l.Record(ctx, RecordInput{ToCreatorID: 1, Amount: big, TxHash: txHash(100 + i)})
		require.NoError(t, err)
	}

	// Outside the window
	*clock = now.Add(-8 * 24 * time.Hour)
	_, err := l.Record(ctx, RecordInput{ToCreatorID: 1, Amount: "1000", TxHash: txHash(200)})
	require.NoError(t, err)

	// Another destination
	*clock = now
	_, err = l.Record(ctx, RecordInput{ToCreatorID: 2, Amount: "1000", TxHash: txHash(201)})
	require.NoError(t, err)

	agg, err := l.WindowAggregate(ctx, 1, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), agg.Count)
	assert.Equal(t, "3458764513820540931", agg.TotalAmount)
}

func TestWindowAggregateCountsZeroAmountTips(t *testing.T) {
	_, l, _ := setup(t)
	ctx := context.Background()
	windowStart := now.Add(-7 * 24 * time.Hour)

	_, err := l.Record(ctx, RecordInput{ToCreatorID: 1, Amount: "250", TxHash: txHash(1)})
	require.NoError(t, err)
	before, err := l.WindowAggregate(ctx, 1, windowStart)
	require.NoError(t, err)

	_, err = l.Record(ctx, RecordInput{ToCreatorID: 1, Amount: "0", TxHash: txHash(2)})
	require.NoError(t, err)
	after, err := l.WindowAggregate(ctx, 1, windowStart)
	require.NoError(t, err)

	assert.Equal(t, before.Count+1, after.Count)
	assert.Equal(t, before.TotalAmount, after.TotalAmount)
}

func TestWindowAggregateEmpty(t *testing.T) {
	_, l, _ := setup(t)

	agg, err := l.WindowAggregate(context.Background(), 3, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Aggregate{Count: 0, TotalAmount: "0"}, agg)
}

func TestGroupedBySourceOrdering(t *testing.T) {
	_, l, _ := setup(t)
	ctx := context.Background()
	src := uintPtr(1)

	records := []RecordInput{
		{ToCreatorID: 3, FromCreatorID: src, Amount: "500"},
		{ToCreatorID: 2, FromCreatorID: src, Amount: "300"},
		{ToCreatorID: 2, FromCreatorID: src, Amount: "200"},
		{ToCreatorID: 1, FromCreatorID: src, Amount: "1152921504606846977"},
		{ToCreatorID: 3, FromCreatorID: uintPtr(2), Amount: "999999"},
		{ToCreatorID: 3, Amount: "999999"},
	}
	for i, in := range records {
		in.TxHash = txHash(300 + i)
		_, err := l.Record(ctx, in)
		require.NoError(t, err)
	}

	grouped, err := l.GroupedBySource(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, []DestinationTotal{
		{ToCreatorID: 1, TotalAmount: "1152921504606846977", Count: 1},
		{ToCreatorID: 2, TotalAmount: "500", Count: 2},
		{ToCreatorID: 3, TotalAmount: "500", Count: 1},
	}, grouped)

	none, err := l.GroupedBySource(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecentAndFindByTxHash(t *testing.T) {
	_, l, clock := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		*clock = now.Add(time.Duration(i) * time.Minute)
		_, err := l.Record(ctx, RecordInput{ToCreatorID: 1, Amount: fmt.Sprint(i), TxHash: txHash(400 + i)})
		require.NoError(t, err)
	}

	recent, err := l.Recent(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "2", recent[0].Amount)
	assert.Equal(t, "1", recent[1].Amount)

	tip, err := l.FindByTxHash(ctx, txHash(400))
	require.NoError(t, err)
	assert.Equal(t, "0", tip.Amount)

	_, err = l.FindByTxHash(ctx, txHash(999))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
