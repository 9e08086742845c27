package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain"
	apperrors "orderflow/internal/errors"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestTracker(clock *testClock) (*DeliveryTracker, *AdjustmentLedger) {
	ledger := NewAdjustmentLedger(sequentialIDs("adj-"), clock.Now)
	tracker := NewDeliveryTracker(ledger,
		WithClock(clock.Now),
		WithIDGenerators(sequentialIDs("rec-"), sequentialIDs("batch-")),
	)
	return tracker, ledger
}

func dispatchedOrder() *domain.Order {
	order := newTestOrder(domain.OrderStatusDispatch)
	order.DeliveryAgent = &domain.DeliveryAgent{Name: "Ravi", Mobile: "98765"}
	return order
}

func TestRecordDelivery_FullDeliveryDoesNotAutoComplete(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()
	order.Items = order.Items[:1]

	records, err := tracker.RecordDelivery(order, []DeliveryLine{{ProductID: 100, Quantity: 10}})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.True(t, tracker.IsFullyDelivered(order))
	assert.Equal(t, domain.OrderStatusDispatch, order.Status)

	sm := NewOrderStateMachine(clock.Now)
	tr, err := sm.Decide(order, domain.OrderStatusDelivered, TransitionPayload{})
	require.NoError(t, err)
	tr.ApplyTo(order)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
}

func TestRecordDelivery_PartialMovesToPartiallyDelivered(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()

	records, err := tracker.RecordDelivery(order, []DeliveryLine{
		{ProductID: 100, Quantity: 10},
		{ProductID: 200, Quantity: 2.5},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPartiallyDelivered, order.Status)
	assert.Equal(t, 10.0, order.Items[0].QuantityDelivered)
	assert.Equal(t, 2.5, order.Items[1].QuantityDelivered)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "batch-1", r.BatchID)
		assert.Equal(t, fixedNow, r.DeliveryDate)
		assert.Equal(t, "Ravi", r.Agent.Name)
		assert.Equal(t, order.ID, r.OrderID)
	}
	assert.Len(t, order.Deliveries, 2)
}

func TestRecordDelivery_AgentSnapshotIsACopy(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()

	_, err := tracker.RecordDelivery(order, []DeliveryLine{{ProductID: 100, Quantity: 1}})
	require.NoError(t, err)

	order.DeliveryAgent.Name = "Kumar"
	assert.Equal(t, "Ravi", order.Deliveries[0].Agent.Name)
}

func TestRecordDelivery_OverDeliveryRejectsWholeBatch(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()
	order.Status = domain.OrderStatusPartiallyDelivered
	order.Items[1].QuantityOrdered = 5
	order.Items[1].QuantityDelivered = 3
	before := order.Clone()

	_, err := tracker.RecordDelivery(order, []DeliveryLine{
		{ProductID: 100, Quantity: 1},
		{ProductID: 200, Quantity: 3},
	})
	assert.True(t, apperrors.HasKind(err, apperrors.KindOverDelivery))
	assert.Equal(t, before, order)
}

func TestRecordDelivery_DuplicateLinesAreSummed(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()

	_, err := tracker.RecordDelivery(order, []DeliveryLine{
		{ProductID: 200, Quantity: 3},
		{ProductID: 200, Quantity: 3},
	})
	assert.True(t, apperrors.HasKind(err, apperrors.KindOverDelivery))
	assert.Equal(t, 0.0, order.Items[1].QuantityDelivered)
}

func TestRecordDelivery_WithinTolerance(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()

	records, err := tracker.RecordDelivery(order, []DeliveryLine{{ProductID: 200, Quantity: 5.0005}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, order.Items[1].QuantityDelivered)
	require.Len(t, records, 1)
	assert.Equal(t, 5.0, records[0].QuantityDelivered)
}

func TestRecordDelivery_ToleranceOverageDoesNotDriftAcrossReverts(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()
	order.Items[0].QuantityDelivered = 5

	for cycle := 0; cycle < 10; cycle++ {
		remaining := order.Items[0].Remaining()
		records, err := tracker.RecordDelivery(order, []DeliveryLine{{ProductID: 100, Quantity: remaining + 0.0009}})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.InDelta(t, remaining, records[0].QuantityDelivered, 1e-9)
		assert.InDelta(t, 10.0, order.Items[0].QuantityDelivered, 1e-9)

		_, err = tracker.RevertBatch(order, []string{records[0].ID}, nil)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, order.Items[0].QuantityDelivered, 1e-9, "cycle %d", cycle)
	}
}

func TestRecordDelivery_CompletedLineWithinToleranceAddsNoRecord(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()
	order.Items[1].QuantityDelivered = 5

	records, err := tracker.RecordDelivery(order, []DeliveryLine{
		{ProductID: 100, Quantity: 2},
		{ProductID: 200, Quantity: 0.0005},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 100, records[0].ProductID)
	assert.Equal(t, 5.0, order.Items[1].QuantityDelivered)
}

func TestRevertBatch_ManualPartialStatusFollowsQuantities(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()
	order.Status = domain.OrderStatusPartiallyDelivered

	records, err := tracker.RecordDelivery(order, []DeliveryLine{{ProductID: 100, Quantity: 1}})
	require.NoError(t, err)

	_, err = tracker.RevertBatch(order, []string{records[0].ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDispatch, order.Status)
}

func TestDeliveryTracker_RandomRecordRevertWalkStaysInBounds(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()
	rng := rand.New(rand.NewSource(42))

	var batches [][]string
	for step := 0; step < 500; step++ {
		clock.now = clock.now.Add(time.Minute)

		if len(batches) > 0 && rng.Intn(3) == 0 {
			pick := rng.Intn(len(batches))
			_, err := tracker.RevertBatch(order, batches[pick], nil)
			require.NoError(t, err, "step %d", step)
			batches = append(batches[:pick], batches[pick+1:]...)
		} else {
			item := order.Items[rng.Intn(len(order.Items))]
			var qty float64
			switch rng.Intn(3) {
			case 0:
				qty = item.Remaining() + 0.0009
			case 1:
				qty = item.Remaining() * rng.Float64()
			default:
				qty = 0.001 + rng.Float64()*2
			}
			records, err := tracker.RecordDelivery(order, []DeliveryLine{{ProductID: item.ProductID, Quantity: qty}})
			if err != nil {
				ok := apperrors.HasKind(err, apperrors.KindOverDelivery)
				if !ok {
					_, ok = apperrors.IsValidationError(err)
				}
				require.True(t, ok, "step %d: unexpected error %v", step, err)
			} else if len(records) > 0 {
				ids := make([]string, len(records))
				for i, r := range records {
					ids[i] = r.ID
				}
				batches = append(batches, ids)
			}
		}

		sums := make(map[int]float64)
		for _, r := range order.Deliveries {
			sums[r.ProductID] += r.QuantityDelivered
		}
		for _, item := range order.Items {
			assert.GreaterOrEqual(t, item.QuantityDelivered, -domain.QuantityTolerance, "step %d product %d", step, item.ProductID)
			assert.LessOrEqual(t, item.QuantityDelivered, item.QuantityOrdered+domain.QuantityTolerance, "step %d product %d", step, item.ProductID)
			assert.InDelta(t, sums[item.ProductID], item.QuantityDelivered, 1e-6, "step %d product %d", step, item.ProductID)
		}
	}
}

func TestRecordDelivery_Rejections(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)

	confirmed := newTestOrder(domain.OrderStatusConfirmed)
	_, err := tracker.RecordDelivery(confirmed, []DeliveryLine{{ProductID: 100, Quantity: 1}})
	assert.True(t, apperrors.HasKind(err, apperrors.KindInvalidTransition))

	noAgent := newTestOrder(domain.OrderStatusDispatch)
	_, err = tracker.RecordDelivery(noAgent, []DeliveryLine{{ProductID: 100, Quantity: 1}})
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)

	_, err = tracker.RecordDelivery(dispatchedOrder(), nil)
	_, ok = apperrors.IsValidationError(err)
	assert.True(t, ok)

	_, err = tracker.RecordDelivery(dispatchedOrder(), []DeliveryLine{{ProductID: 100, Quantity: 0}})
	_, ok = apperrors.IsValidationError(err)
	assert.True(t, ok)

	_, err = tracker.RecordDelivery(dispatchedOrder(), []DeliveryLine{{ProductID: 999, Quantity: 1}})
	_, ok = apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestRevertBatch_RestoresPreDeliveryState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(o *domain.Order)
		lines []DeliveryLine
	}{
		{
			name:  "from dispatch, partial",
			setup: func(o *domain.Order) {},
			lines: []DeliveryLine{{ProductID: 100, Quantity: 4}},
		},
		{
			name:  "from dispatch, complete",
			setup: func(o *domain.Order) {},
			lines: []DeliveryLine{{ProductID: 100, Quantity: 10}, {ProductID: 200, Quantity: 5}},
		},
		{
			name: "from partially delivered",
			setup: func(o *domain.Order) {
				o.Status = domain.OrderStatusPartiallyDelivered
				o.Items[0].QuantityDelivered = 3
			},
			lines: []DeliveryLine{{ProductID: 100, Quantity: 2.2}, {ProductID: 200, Quantity: 0.7}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &testClock{now: fixedNow}
			tracker, _ := newTestTracker(clock)
			order := dispatchedOrder()
			tt.setup(order)
			before := order.Clone()

			records, err := tracker.RecordDelivery(order, tt.lines)
			require.NoError(t, err)

			ids := make([]string, len(records))
			for i, r := range records {
				ids[i] = r.ID
			}
			_, err = tracker.RevertBatch(order, ids, nil)
			require.NoError(t, err)

			assert.Equal(t, before.Status, order.Status)
			for i := range order.Items {
				assert.InDelta(t, before.Items[i].QuantityDelivered, order.Items[i].QuantityDelivered, domain.QuantityTolerance)
			}
			assert.Empty(t, order.Deliveries)
		})
	}
}

func TestRevertBatch_RemovesLinkedAdjustments(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, ledger := newTestTracker(clock)
	order := dispatchedOrder()

	records, err := tracker.RecordDelivery(order, []DeliveryLine{{ProductID: 100, Quantity: 5}})
	require.NoError(t, err)
	key := tracker.BatchKey(records[0])

	received, _, err := ledger.Add(order, AdjustmentInput{Type: domain.AdjustmentDiscount, Description: "received amount", Amount: 2000, LinkedBatchID: key})
	require.NoError(t, err)
	fee, _, err := ledger.Add(order, AdjustmentInput{Type: domain.AdjustmentCharge, Description: "Loading fee", Amount: 50})
	require.NoError(t, err)

	result, err := tracker.RevertBatch(order, []string{records[0].ID}, nil)
	require.NoError(t, err)

	require.Len(t, result.Adjustments, 1)
	assert.Equal(t, received.ID, result.Adjustments[0].ID)
	require.Len(t, order.Adjustments, 1)
	assert.Equal(t, fee.ID, order.Adjustments[0].ID)
	assert.Equal(t, domain.OrderStatusDispatch, order.Status)
}

func TestRevertBatch_BlockedByLockedAdjustment(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, ledger := newTestTracker(clock)
	order := dispatchedOrder()

	records, err := tracker.RecordDelivery(order, []DeliveryLine{{ProductID: 100, Quantity: 5}})
	require.NoError(t, err)

	received, _, err := ledger.Add(order, AdjustmentInput{Type: domain.AdjustmentDiscount, Description: "received amount", Amount: 2000, LinkedBatchID: records[0].BatchID})
	require.NoError(t, err)
	_, err = ledger.Lock(order, received.ID)
	require.NoError(t, err)

	before := order.Clone()
	_, err = tracker.RevertBatch(order, []string{records[0].ID}, nil)
	assert.True(t, apperrors.HasKind(err, apperrors.KindRevertBlockedByLock))
	assert.Equal(t, before, order)

	batch, ok := tracker.FindBatch(order, records[0].BatchID)
	require.True(t, ok)
	assert.False(t, batch.Revertible())
}

func TestRevertBatch_LegacyDescriptionLink(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()
	order.Status = domain.OrderStatusPartiallyDelivered
	order.Items[0].QuantityDelivered = 4
	order.Deliveries = []domain.DeliveryRecord{{
		ID: "legacy-1", OrderID: order.ID, ProductID: 100, QuantityDelivered: 4,
		DeliveryDate: fixedNow.Add(3 * time.Second), Agent: domain.DeliveryAgent{Name: "Ravi"},
	}}
	key := domain.DerivedBatchKey("Ravi", fixedNow, domain.DefaultBatchWindow)
	order.Adjustments = []domain.Adjustment{
		{ID: "a1", Type: domain.AdjustmentDiscount, Description: "[" + key + "] received amount", Amount: 100, IsLocked: true},
	}

	_, err := tracker.RevertBatch(order, []string{"legacy-1"}, nil)
	assert.True(t, apperrors.HasKind(err, apperrors.KindRevertBlockedByLock))

	order.Adjustments[0].IsLocked = false
	result, err := tracker.RevertBatch(order, []string{"legacy-1"}, nil)
	require.NoError(t, err)
	assert.Len(t, result.Adjustments, 1)
	assert.Equal(t, domain.OrderStatusDispatch, order.Status)
	assert.Equal(t, 0.0, order.Items[0].QuantityDelivered)
}

func TestRevertBatch_ExtraAdjustments(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, ledger := newTestTracker(clock)
	order := dispatchedOrder()
	records, _ := tracker.RecordDelivery(order, []DeliveryLine{{ProductID: 100, Quantity: 1}})

	locked, _, _ := ledger.Add(order, AdjustmentInput{Type: domain.AdjustmentCharge, Description: "unloading", Amount: 20})
	_, _ = ledger.Lock(order, locked.ID)

	_, err := tracker.RevertBatch(order, []string{records[0].ID}, []string{"missing"})
	assert.True(t, apperrors.HasKind(err, apperrors.KindAdjustmentNotFound))

	_, err = tracker.RevertBatch(order, []string{records[0].ID}, []string{locked.ID})
	assert.True(t, apperrors.HasKind(err, apperrors.KindRevertBlockedByLock))
	assert.Len(t, order.Deliveries, 1)
}

func TestRevertBatch_Rejections(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)

	_, err := tracker.RevertBatch(dispatchedOrder(), nil, nil)
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)

	_, err = tracker.RevertBatch(dispatchedOrder(), []string{"nope"}, nil)
	_, ok = apperrors.IsNotFoundError(err)
	assert.True(t, ok)

	delivered := dispatchedOrder()
	delivered.Status = domain.OrderStatusDelivered
	_, err = tracker.RevertBatch(delivered, []string{"x"}, nil)
	assert.True(t, apperrors.HasKind(err, apperrors.KindInvalidTransition))
}

func TestBatches_GroupsByBatchID(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()

	_, err := tracker.RecordDelivery(order, []DeliveryLine{{ProductID: 100, Quantity: 2}, {ProductID: 200, Quantity: 1}})
	require.NoError(t, err)

	clock.now = fixedNow.Add(2 * time.Second)
	_, err = tracker.RecordDelivery(order, []DeliveryLine{{ProductID: 100, Quantity: 3}})
	require.NoError(t, err)

	batches := tracker.Batches(order)
	require.Len(t, batches, 2)
	assert.Equal(t, "batch-1", batches[0].Key)
	assert.Len(t, batches[0].Records, 2)
	assert.Equal(t, map[int]float64{100: 2, 200: 1}, batches[0].Quantities())
	assert.Equal(t, "batch-2", batches[1].Key)
	assert.Equal(t, []string{"rec-3"}, batches[1].RecordIDs())
	assert.True(t, batches[1].Revertible())
}

func TestBatches_LegacyRecordsGroupByAgentAndTime(t *testing.T) {
	clock := &testClock{now: fixedNow}
	tracker, _ := newTestTracker(clock)
	order := dispatchedOrder()
	order.Deliveries = []domain.DeliveryRecord{
		{ID: "a", ProductID: 100, QuantityDelivered: 1, DeliveryDate: fixedNow.Add(1 * time.Second), Agent: domain.DeliveryAgent{Name: "Ravi"}},
		{ID: "b", ProductID: 200, QuantityDelivered: 1, DeliveryDate: fixedNow.Add(4 * time.Second), Agent: domain.DeliveryAgent{Name: "Ravi"}},
		{ID: "c", ProductID: 100, QuantityDelivered: 1, DeliveryDate: fixedNow.Add(2 * time.Second), Agent: domain.DeliveryAgent{Name: "Kumar"}},
		{ID: "d", ProductID: 100, QuantityDelivered: 1, DeliveryDate: fixedNow.Add(60 * time.Second), Agent: domain.DeliveryAgent{Name: "Ravi"}},
	}

	batches := tracker.Batches(order)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0].RecordIDs())
	assert.Equal(t, fixedNow.Add(1*time.Second), batches[0].DeliveredAt)
	assert.Equal(t, []string{"c"}, batches[1].RecordIDs())
	assert.Equal(t, []string{"d"}, batches[2].RecordIDs())
}
