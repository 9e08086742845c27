package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain"
	apperrors "orderflow/internal/errors"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestOrder(status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:     42,
		Status: status,
		Items: []domain.OrderItem{
			{ID: 1, ProductID: 100, Name: "Cement", Unit: "bag", QuantityOrdered: 10, Price: 400},
			{ID: 2, ProductID: 200, Name: "River sand", Unit: "ton", QuantityOrdered: 5, Price: 1500},
		},
	}
}

func TestCanTransition_Table(t *testing.T) {
	allowed := map[domain.OrderStatus][]domain.OrderStatus{
		domain.OrderStatusOrdered:            {domain.OrderStatusRateRequested, domain.OrderStatusConfirmed, domain.OrderStatusPaused, domain.OrderStatusCancelled},
		domain.OrderStatusRateRequested:      {domain.OrderStatusRateApproved, domain.OrderStatusOrdered, domain.OrderStatusCancelled},
		domain.OrderStatusRateApproved:       {domain.OrderStatusConfirmed, domain.OrderStatusHold, domain.OrderStatusCancelled},
		domain.OrderStatusConfirmed:          {domain.OrderStatusDispatch, domain.OrderStatusHold, domain.OrderStatusCancelled},
		domain.OrderStatusDispatch:           {domain.OrderStatusPartiallyDelivered, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
		domain.OrderStatusPartiallyDelivered: {domain.OrderStatusDispatch, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
		domain.OrderStatusPaused:             {domain.OrderStatusPaused, domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
		domain.OrderStatusHold:               {domain.OrderStatusHold, domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	}

	for _, from := range domain.AllOrderStatuses {
		for _, to := range domain.AllOrderStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestDecide_RejectsEveryPairOutsideTable(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)

	for _, from := range domain.AllOrderStatuses {
		for _, to := range domain.AllOrderStatuses {
			if CanTransition(from, to) {
				continue
			}
			order := newTestOrder(from)
			_, err := sm.Decide(order, to, TransitionPayload{Reason: "x", Agent: &domain.DeliveryAgent{Name: "Ravi"}})
			require.Error(t, err, "%s -> %s", from, to)
			assert.True(t, apperrors.HasKind(err, apperrors.KindInvalidTransition), "%s -> %s", from, to)
			assert.Equal(t, from, order.Status)
		}
	}
}

func TestDecide_TerminalStatesHaveNoExits(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	for _, from := range []domain.OrderStatus{domain.OrderStatusDelivered, domain.OrderStatusCancelled} {
		for _, to := range domain.AllOrderStatuses {
			_, err := sm.Decide(newTestOrder(from), to, TransitionPayload{Reason: "x"})
			assert.True(t, apperrors.HasKind(err, apperrors.KindInvalidTransition))
		}
	}
}

func TestDecide_PauseRequiresReason(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	order := newTestOrder(domain.OrderStatusOrdered)

	_, err := sm.Decide(order, domain.OrderStatusPaused, TransitionPayload{Reason: "   "})
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)

	tr, err := sm.Decide(order, domain.OrderStatusPaused, TransitionPayload{Reason: "customer site closed"})
	require.NoError(t, err)
	assert.Equal(t, "[14 Mar 2026, 09:30] customer site closed", tr.PauseReason)

	tr.ApplyTo(order)
	assert.Equal(t, domain.OrderStatusPaused, order.Status)
	assert.Equal(t, "[14 Mar 2026, 09:30] customer site closed", order.PauseReason)
}

func TestDecide_EditReasonInSameState(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	order := newTestOrder(domain.OrderStatusHold)
	order.PauseReason = "[01 Mar 2026, 10:00] awaiting payment"

	tr, err := sm.Decide(order, domain.OrderStatusHold, TransitionPayload{Reason: "awaiting site clearance"})
	require.NoError(t, err)
	tr.ApplyTo(order)

	assert.Equal(t, domain.OrderStatusHold, order.Status)
	assert.Equal(t, "[14 Mar 2026, 09:30] awaiting site clearance", order.PauseReason)
}

func TestDecide_LeavingPauseClearsReason(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	order := newTestOrder(domain.OrderStatusPaused)
	order.PauseReason = "[01 Mar 2026, 10:00] rain"

	tr, err := sm.Decide(order, domain.OrderStatusConfirmed, TransitionPayload{})
	require.NoError(t, err)
	tr.ApplyTo(order)

	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.Empty(t, order.PauseReason)
}

func TestDecide_DispatchRequiresAgent(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	order := newTestOrder(domain.OrderStatusConfirmed)

	_, err := sm.Decide(order, domain.OrderStatusDispatch, TransitionPayload{})
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)

	_, err = sm.Decide(order, domain.OrderStatusDispatch, TransitionPayload{Agent: &domain.DeliveryAgent{Name: " "}})
	_, ok = apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestDecide_DispatchWithBundledAgent(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	order := newTestOrder(domain.OrderStatusConfirmed)

	tr, err := sm.Decide(order, domain.OrderStatusDispatch, TransitionPayload{
		Agent: &domain.DeliveryAgent{Name: " Ravi ", Mobile: "9876543210"},
	})
	require.NoError(t, err)
	tr.ApplyTo(order)

	require.NotNil(t, order.DeliveryAgent)
	assert.Equal(t, "Ravi", order.DeliveryAgent.Name)
	assert.Equal(t, domain.OrderStatusDispatch, order.Status)
}

func TestDecide_DispatchWithExistingAgent(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	order := newTestOrder(domain.OrderStatusConfirmed)
	order.DeliveryAgent = &domain.DeliveryAgent{Name: "Ravi"}

	tr, err := sm.Decide(order, domain.OrderStatusDispatch, TransitionPayload{})
	require.NoError(t, err)
	assert.Nil(t, tr.Agent)
	tr.ApplyTo(order)
	assert.Equal(t, "Ravi", order.DeliveryAgent.Name)
}

func TestDecide_DeliveredRequiresFullDelivery(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	order := newTestOrder(domain.OrderStatusPartiallyDelivered)
	order.Items[0].QuantityDelivered = 10

	_, err := sm.Decide(order, domain.OrderStatusDelivered, TransitionPayload{})
	assert.True(t, apperrors.HasKind(err, apperrors.KindIncompleteDelivery))

	order.Items[1].QuantityDelivered = 4.9995
	tr, err := sm.Decide(order, domain.OrderStatusDelivered, TransitionPayload{})
	require.NoError(t, err)
	tr.ApplyTo(order)

	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	require.NotNil(t, order.DeliveredAt)
	assert.Equal(t, fixedNow, *order.DeliveredAt)
}

func TestDecide_CancellationBlockedOnceGoodsDelivered(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	order := newTestOrder(domain.OrderStatusDispatch)
	order.Items[0].QuantityDelivered = 2
	order.Deliveries = []domain.DeliveryRecord{{ID: "r1", ProductID: 100, QuantityDelivered: 2}}

	_, err := sm.Decide(order, domain.OrderStatusCancelled, TransitionPayload{})
	assert.True(t, apperrors.HasKind(err, apperrors.KindCancellationBlocked))

	order.Status = domain.OrderStatusPartiallyDelivered
	_, err = sm.Decide(order, domain.OrderStatusCancelled, TransitionPayload{})
	assert.True(t, apperrors.HasKind(err, apperrors.KindCancellationBlocked))
}

func TestDecide_CancelDispatchWithoutDeliveries(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	order := newTestOrder(domain.OrderStatusDispatch)

	tr, err := sm.Decide(order, domain.OrderStatusCancelled, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, tr.To)
}

func TestAssignAgent(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)
	order := newTestOrder(domain.OrderStatusConfirmed)

	changed, err := sm.AssignAgent(order, domain.DeliveryAgent{Name: "Ravi", Mobile: "98765"})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = sm.AssignAgent(order, domain.DeliveryAgent{Name: "Ravi", Mobile: "98765"})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = sm.AssignAgent(order, domain.DeliveryAgent{Name: "Ravi", Mobile: "11111"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "11111", order.DeliveryAgent.Mobile)
}

func TestAssignAgent_Rejections(t *testing.T) {
	sm := NewOrderStateMachine(fixedClock)

	_, err := sm.AssignAgent(newTestOrder(domain.OrderStatusOrdered), domain.DeliveryAgent{Name: "Ravi"})
	assert.True(t, apperrors.HasKind(err, apperrors.KindInvalidTransition))

	_, err = sm.AssignAgent(newTestOrder(domain.OrderStatusDispatch), domain.DeliveryAgent{})
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
}
