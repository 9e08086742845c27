package service

import (
	"fmt"
	"strings"
	"time"

	"orderflow/internal/domain"
	apperrors "orderflow/internal/errors"
)

// PauseReasonTimeLayout stamps parked orders so operators can tell how long
// they have been waiting.
const PauseReasonTimeLayout = "02 Jan 2006, 15:04"

var allowedTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusOrdered: {
		domain.OrderStatusRateRequested,
		domain.OrderStatusConfirmed,
		domain.OrderStatusPaused,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusRateRequested: {
		domain.OrderStatusRateApproved,
		domain.OrderStatusOrdered,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusRateApproved: {
		domain.OrderStatusConfirmed,
		domain.OrderStatusHold,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusConfirmed: {
		domain.OrderStatusDispatch,
		domain.OrderStatusHold,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusDispatch: {
		domain.OrderStatusPartiallyDelivered,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusPartiallyDelivered: {
		domain.OrderStatusDispatch,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusPaused: {
		domain.OrderStatusPaused,
		domain.OrderStatusConfirmed,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusHold: {
		domain.OrderStatusHold,
		domain.OrderStatusConfirmed,
		domain.OrderStatusCancelled,
	},
}

// agentAssignableStatuses are the states in which a delivery agent may be
// set or edited.
var agentAssignableStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusConfirmed:          true,
	domain.OrderStatusDispatch:           true,
	domain.OrderStatusPartiallyDelivered: true,
}

// CanTransition reports whether the table allows from -> to. Guards that
// depend on the order's contents are checked separately by Decide.
func CanTransition(from, to domain.OrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type TransitionPayload struct {
	Reason string
	Agent  *domain.DeliveryAgent
}

// Transition is the outcome of a status decision. Nothing is written until
// ApplyTo is called on the loaded order.
type Transition struct {
	From        domain.OrderStatus
	To          domain.OrderStatus
	PauseReason string
	Agent       *domain.DeliveryAgent
	DeliveredAt *time.Time
}

func (t Transition) ApplyTo(order *domain.Order) {
	order.Status = t.To
	order.PauseReason = t.PauseReason
	if t.Agent != nil {
		agent := *t.Agent
		order.DeliveryAgent = &agent
	}
	if t.DeliveredAt != nil {
		at := *t.DeliveredAt
		order.DeliveredAt = &at
	}
}

type OrderStateMachine struct {
	now func() time.Time
}

func NewOrderStateMachine(now func() time.Time) *OrderStateMachine {
	if now == nil {
		now = time.Now
	}
	return &OrderStateMachine{now: now}
}

// Decide validates a move of order to target and returns the normalized
// result without touching the order.
func (m *OrderStateMachine) Decide(order *domain.Order, target domain.OrderStatus, payload TransitionPayload) (Transition, error) {
	from := order.Status
	if !CanTransition(from, target) {
		return Transition{}, apperrors.NewDomainError(
			apperrors.KindInvalidTransition,
			fmt.Sprintf("cannot move order from %s to %s", from, target),
		)
	}

	t := Transition{From: from, To: target}

	switch target {
	case domain.OrderStatusPaused, domain.OrderStatusHold:
		reason := strings.TrimSpace(payload.Reason)
		if reason == "" {
			return Transition{}, apperrors.NewValidationError("reason is required", apperrors.ValidationDetail{
				Field:   "reason",
				Message: fmt.Sprintf("a reason is required to move an order to %s", target),
			})
		}
		t.PauseReason = m.stampReason(reason)

	case domain.OrderStatusDispatch:
		if payload.Agent != nil {
			agent, err := normalizeAgent(*payload.Agent)
			if err != nil {
				return Transition{}, err
			}
			t.Agent = &agent
		}
		if t.Agent == nil && order.DeliveryAgent == nil {
			return Transition{}, apperrors.NewValidationError("delivery agent is required", apperrors.ValidationDetail{
				Field:   "agent",
				Message: "assign a delivery agent before dispatching",
			})
		}

	case domain.OrderStatusDelivered:
		if !order.IsFullyDelivered() {
			return Transition{}, apperrors.NewDomainError(
				apperrors.KindIncompleteDelivery,
				"order still has undelivered quantities",
			)
		}
		now := m.now().UTC()
		t.DeliveredAt = &now

	case domain.OrderStatusCancelled:
		if from.IsInDelivery() && order.HasDeliveries() {
			return Transition{}, apperrors.NewDomainError(
				apperrors.KindCancellationBlocked,
				"cannot cancel an order with goods already delivered",
			)
		}
	}

	return t, nil
}

// AssignAgent sets or edits the delivery agent in place. Re-assigning the same
// agent is a no-op.
func (m *OrderStateMachine) AssignAgent(order *domain.Order, agent domain.DeliveryAgent) (bool, error) {
	if !agentAssignableStatuses[order.Status] {
		return false, apperrors.NewDomainError(
			apperrors.KindInvalidTransition,
			fmt.Sprintf("cannot assign a delivery agent while order is %s", order.Status),
		)
	}

	normalized, err := normalizeAgent(agent)
	if err != nil {
		return false, err
	}

	if order.DeliveryAgent != nil && *order.DeliveryAgent == normalized {
		return false, nil
	}
	order.DeliveryAgent = &normalized
	return true, nil
}

func (m *OrderStateMachine) stampReason(reason string) string {
	return "[" + m.now().Format(PauseReasonTimeLayout) + "] " + reason
}

func normalizeAgent(agent domain.DeliveryAgent) (domain.DeliveryAgent, error) {
	normalized := domain.DeliveryAgent{
		Name:        strings.TrimSpace(agent.Name),
		Mobile:      strings.TrimSpace(agent.Mobile),
		Description: strings.TrimSpace(agent.Description),
		Address:     strings.TrimSpace(agent.Address),
	}
	if normalized.Name == "" {
		return domain.DeliveryAgent{}, apperrors.NewValidationError("agent name is required", apperrors.ValidationDetail{
			Field:   "agent.name",
			Message: "agent name must not be empty",
		})
	}
	return normalized, nil
}
