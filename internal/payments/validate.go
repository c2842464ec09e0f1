package payments

import (
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// CheckBasket is the default basket rule: the basket must hold items.
func CheckBasket(count int) error {
	if count <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Your basket is empty.")
	}
	return nil
}

// CheckOrder is the default order rule: not yet paid and in a payable status.
func CheckOrder(order *models.Order, paid, payable bool) error {
	if paid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "This order has already been paid for.")
	}
	if !payable {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("Payment for order with status '%s' is not allowed.", order.Status.Label()))
	}
	return nil
}
