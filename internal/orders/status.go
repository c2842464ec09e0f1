package orders

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var requiredStatuses = []enums.OrderStatus{
	enums.OrderStatusNew,
	enums.OrderStatusCreated,
	enums.OrderStatusCompleted,
	enums.OrderStatusRefunded,
}

// DefaultTransitions is the stock lifecycle. Cancelled and refunded orders
// are final.
func DefaultTransitions() map[enums.OrderStatus][]enums.OrderStatus {
	return map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusNew:        {enums.OrderStatusCreated},
		enums.OrderStatusCreated:    {enums.OrderStatusHold, enums.OrderStatusFailed, enums.OrderStatusCancelled, enums.OrderStatusProcessing},
		enums.OrderStatusHold:       {enums.OrderStatusFailed, enums.OrderStatusCancelled, enums.OrderStatusProcessing},
		enums.OrderStatusFailed:     {enums.OrderStatusCancelled, enums.OrderStatusProcessing},
		enums.OrderStatusCancelled:  {},
		enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCompleted, enums.OrderStatusRefunded},
		enums.OrderStatusShipped:    {enums.OrderStatusCompleted, enums.OrderStatusRefunded},
		enums.OrderStatusCompleted:  {enums.OrderStatusRefunded},
		enums.OrderStatusRefunded:   {},
	}
}

// DefaultPayable lists the statuses from which an order may be paid.
func DefaultPayable() []enums.OrderStatus {
	return []enums.OrderStatus{enums.OrderStatusCreated, enums.OrderStatusHold, enums.OrderStatusFailed}
}

// StatusMachine validates order status changes.
type StatusMachine struct {
	transitions map[enums.OrderStatus]map[enums.OrderStatus]struct{}
	payable     map[enums.OrderStatus]struct{}
}

// NewStatusMachine checks that every status is known and that the lifecycle
// statuses the service relies on are present.
func NewStatusMachine(transitions map[enums.OrderStatus][]enums.OrderStatus, payable []enums.OrderStatus) (*StatusMachine, error) {
	var errs error
	present := map[enums.OrderStatus]struct{}{}
	check := func(status enums.OrderStatus) {
		if !status.IsValid() {
			errs = multierr.Append(errs, fmt.Errorf("unknown order status %q", status))
			return
		}
		present[status] = struct{}{}
	}

	table := make(map[enums.OrderStatus]map[enums.OrderStatus]struct{}, len(transitions))
	for from, targets := range transitions {
		check(from)
		allowed := make(map[enums.OrderStatus]struct{}, len(targets))
		for _, to := range targets {
			check(to)
			allowed[to] = struct{}{}
		}
		table[from] = allowed
	}
	payableSet := make(map[enums.OrderStatus]struct{}, len(payable))
	for _, status := range payable {
		check(status)
		payableSet[status] = struct{}{}
	}
	for _, status := range requiredStatuses {
		if _, ok := present[status]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("order status %q is required", status))
		}
	}
	if errs != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, errs, "invalid order status machine")
	}
	return &StatusMachine{transitions: table, payable: payableSet}, nil
}

// DefaultStatusMachine returns the stock lifecycle.
func DefaultStatusMachine() *StatusMachine {
	m, err := NewStatusMachine(DefaultTransitions(), DefaultPayable())
	if err != nil {
		panic(err)
	}
	return m
}

// ValidateTransition returns next when the order may move to it. Staying in
// place is always allowed; a status missing from the table allows any move.
func (m *StatusMachine) ValidateTransition(next enums.OrderStatus, order *models.Order) (enums.OrderStatus, error) {
	current := order.Status
	if next == current {
		return next, nil
	}
	if allowed, ok := m.transitions[current]; ok {
		if _, ok := allowed[next]; !ok {
			return "", pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("Can't change order with status '%s' to '%s'.", current.Label(), next.Label()))
		}
	}
	return next, nil
}

// IsPayable reports whether payments are accepted in status.
func (m *StatusMachine) IsPayable(status enums.OrderStatus) bool {
	_, ok := m.payable[status]
	return ok
}
