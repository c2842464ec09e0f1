package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/identity"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service owns the order lifecycle from reference allocation to refund.
type Service interface {
	CreateFromRequest(ctx context.Context, id identity.Identity) (*models.Order, error)
	CreateFromBasket(ctx context.Context, basket *models.Basket, opts ...PopulateOption) (*models.Order, error)
	PopulateFromBasket(ctx context.Context, order *models.Order, basket *models.Basket, opts ...PopulateOption) error
	Pay(ctx context.Context, order *models.Order, amount decimal.Decimal, transactionID, paymentMethod string) (*models.OrderPayment, error)
	AmountPaid(ctx context.Context, order *models.Order) (decimal.Decimal, error)
	AmountOutstanding(ctx context.Context, order *models.Order) (decimal.Decimal, error)
	IsPaid(ctx context.Context, order *models.Order) (bool, error)
	IsPayable(order *models.Order) bool
	Save(ctx context.Context, order *models.Order) error
	ChangeStatus(ctx context.Context, order *models.Order, status enums.OrderStatus) error
	ValidateTransition(order *models.Order, status enums.OrderStatus) (enums.OrderStatus, error)
	Refund(ctx context.Context, order *models.Order) (*RefundResult, error)
	AddNote(ctx context.Context, order *models.Order, message string, public bool) (*models.OrderNote, error)
	Notes(ctx context.Context, order *models.Order, publicOnly bool) ([]models.OrderNote, error)
	Items(ctx context.Context, order *models.Order) ([]models.OrderItem, error)
	Payments(ctx context.Context, order *models.Order) ([]models.OrderPayment, error)
	GetByRef(ctx context.Context, ref string) (*models.Order, error)
	GetByToken(ctx context.Context, token string) (*models.Order, error)
	GetForIdentity(ctx context.Context, id identity.Identity, ref string) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	LastForIdentity(ctx context.Context, id identity.Identity) (*models.Order, error)
	ValidateAddress(value string) (string, error)
}

type ServiceParams struct {
	Tx               txRunner
	Repository       Repository
	Baskets          basketPricer
	Methods          methodLookup
	Refs             RefGenerator
	Statuses         *StatusMachine
	Notifier         StatusNotifier
	AddressValidator AddressValidator
	Metrics          *metrics.OrderMetrics
	Logger           *logger.Logger
}

type service struct {
	tx       txRunner
	repo     Repository
	baskets  basketPricer
	methods  methodLookup
	refs     RefGenerator
	statuses *StatusMachine
	notifier StatusNotifier
	address  AddressValidator
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Baskets == nil {
		return nil, fmt.Errorf("basket pricer required")
	}
	if params.Methods == nil {
		return nil, fmt.Errorf("payment methods required")
	}
	refs := params.Refs
	if refs == nil {
		refs = NewSequentialRefGenerator(params.Repository)
	}
	statuses := params.Statuses
	if statuses == nil {
		statuses = DefaultStatusMachine()
	}
	address := params.AddressValidator
	if address == nil {
		address = ValidateAddress
	}
	return &service{
		tx:       params.Tx,
		repo:     params.Repository,
		baskets:  params.Baskets,
		methods:  params.Methods,
		refs:     refs,
		statuses: statuses,
		notifier: params.Notifier,
		address:  address,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *service) CreateFromRequest(ctx context.Context, id identity.Identity) (*models.Order, error) {
	order, err := s.newOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.insert(ctx, s.repo.WithTx(tx), order)
	}); err != nil {
		return nil, err
	}
	s.logInfo(ctx, order, "order created")
	return order, nil
}

func (s *service) newOrder(ctx context.Context, id identity.Identity) (*models.Order, error) {
	ref, err := s.refs.Generate(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate order ref")
	}
	token, err := newToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order token")
	}
	order := &models.Order{
		Ref:       ref,
		Token:     token,
		Status:    enums.OrderStatusNew,
		Extra:     extra.Data{},
		ExtraRows: extra.NewRows(),
	}
	if id.IsAuthenticated() {
		userID := *id.UserID
		order.UserID = &userID
	}
	return order, nil
}

func (s *service) insert(ctx context.Context, repo Repository, order *models.Order) error {
	if err := repo.CreateOrder(ctx, order); err != nil {
		if db.IsUniqueViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order ref already taken")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	order.MarkStatusPersisted()
	return nil
}

func (s *service) CreateFromBasket(ctx context.Context, basket *models.Basket, opts ...PopulateOption) (*models.Order, error) {
	if err := s.ensurePriced(ctx, basket); err != nil {
		return nil, err
	}
	id, _ := identity.FromContext(ctx)
	order, err := s.newOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	var change *StatusChange
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.insert(ctx, s.repo.WithTx(tx), order); err != nil {
			return err
		}
		var perr error
		change, perr = s.populateTx(ctx, tx, order, basket, opts)
		return perr
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, order, "order created")
	s.afterSave(ctx, change)
	return order, nil
}

func (s *service) PopulateFromBasket(ctx context.Context, order *models.Order, basket *models.Basket, opts ...PopulateOption) error {
	if err := s.ensurePriced(ctx, basket); err != nil {
		return err
	}
	var change *StatusChange
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var perr error
		change, perr = s.populateTx(ctx, tx, order, basket, opts)
		return perr
	})
	if err != nil {
		return err
	}
	s.afterSave(ctx, change)
	return nil
}

func (s *service) ensurePriced(ctx context.Context, basket *models.Basket) error {
	if basket == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "basket required")
	}
	if basket.IsPriced() && basket.Items != nil {
		return nil
	}
	return s.baskets.Update(ctx, basket)
}

// populateTx freezes the priced basket onto order and writes its items.
func (s *service) populateTx(ctx context.Context, tx *gorm.DB, order *models.Order, basket *models.Basket, opts []PopulateOption) (*StatusChange, error) {
	var overrides populateOverrides
	for _, opt := range opts {
		opt(&overrides)
	}

	// contact fields move to the order and leave the in-memory basket
	order.UserID = basket.OwnerID
	order.Email = basket.Extra.PopString("email")
	order.ShippingAddress = basket.Extra.PopString("shipping_address")
	order.BillingAddress = basket.Extra.PopString("billing_address")
	fields := basket.Extra.Clone()
	order.Subtotal = basket.Subtotal()
	order.Total = basket.Total()
	order.Extra = fields
	order.ExtraRows = basket.PricingState().ExtraRows.Clone()
	if order.Status == enums.OrderStatusNew {
		order.Status = enums.OrderStatusCreated
	}
	if overrides.status != nil {
		order.Status = *overrides.status
	}
	if overrides.email != nil {
		order.Email = *overrides.email
	}
	if overrides.extra != nil {
		order.Extra = order.Extra.Merge(overrides.extra)
	}

	change, err := s.saveTx(ctx, tx, order)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(basket.Items))
	for i := range basket.Items {
		items = append(items, snapshotItem(order.ID, &basket.Items[i]))
	}
	if err := s.repo.WithTx(tx).CreateItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
	}
	order.Items = items
	return change, nil
}

func snapshotItem(orderID uuid.UUID, item *models.BasketItem) models.OrderItem {
	data := extra.Data{}
	if snap, ok := item.Product.(models.ProductSnapshotter); ok {
		for k, v := range snap.SnapshotData() {
			data[k] = v
		}
	}
	if item.Product != nil {
		data["name"] = item.Product.ProductName()
		data["code"] = item.Product.ProductCode()
	}
	pricing := item.PricingState()
	return models.OrderItem{
		OrderID:     orderID,
		ProductType: item.ProductType,
		ProductID:   item.ProductID,
		ProductData: data,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice(),
		Subtotal:    pricing.Subtotal,
		Total:       pricing.Total,
		Extra:       item.Extra.Clone(),
		ExtraRows:   pricing.ExtraRows.Clone(),
	}
}

func (s *service) Pay(ctx context.Context, order *models.Order, amount decimal.Decimal, transactionID, paymentMethod string) (*models.OrderPayment, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	payment := &models.OrderPayment{
		OrderID:       order.ID,
		Amount:        amount,
		TransactionID: transactionID,
		PaymentMethod: paymentMethod,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment transaction already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}
	order.InvalidateAmountPaid()
	s.metrics.IncPayment(paymentMethod)
	if s.logg != nil {
		logCtx := s.logg.WithOrderRef(ctx, order.Ref)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"payment_method": paymentMethod,
			"amount":         money.FormatPrice(amount),
		})
		s.logg.Info(logCtx, "payment recorded")
	}
	return payment, nil
}

func (s *service) AmountPaid(ctx context.Context, order *models.Order) (decimal.Decimal, error) {
	if paid, ok := order.CachedAmountPaid(); ok {
		return paid, nil
	}
	rows, err := s.repo.ListPayments(ctx, order.ID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order payments")
	}
	amounts := make([]decimal.Decimal, len(rows))
	for i, p := range rows {
		amounts[i] = p.Amount
	}
	paid := money.Sum(amounts...)
	order.SetAmountPaid(paid)
	return paid, nil
}

func (s *service) AmountOutstanding(ctx context.Context, order *models.Order) (decimal.Decimal, error) {
	paid, err := s.AmountPaid(ctx, order)
	if err != nil {
		return decimal.Zero, err
	}
	return order.Total.Sub(paid), nil
}

func (s *service) IsPaid(ctx context.Context, order *models.Order) (bool, error) {
	paid, err := s.AmountPaid(ctx, order)
	if err != nil {
		return false, err
	}
	return paid.GreaterThanOrEqual(order.Total), nil
}

func (s *service) IsPayable(order *models.Order) bool {
	return s.statuses.IsPayable(order.Status)
}

func (s *service) Save(ctx context.Context, order *models.Order) error {
	var change *StatusChange
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var serr error
		change, serr = s.saveTx(ctx, tx, order)
		return serr
	})
	if err != nil {
		return err
	}
	s.afterSave(ctx, change)
	return nil
}

// saveTx writes the header and, when the stored status moves, hands the change
// to the notifier inside a savepoint so a failing sink cannot undo the write.
func (s *service) saveTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*StatusChange, error) {
	repo := s.repo.WithTx(tx)
	old := order.LoadedStatus()
	if old == "" {
		return nil, s.insert(ctx, repo, order)
	}
	if err := repo.UpdateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}
	order.MarkStatusPersisted()
	if order.Status == old {
		return nil, nil
	}
	change := &StatusChange{Order: order, NewStatus: order.Status, OldStatus: old}
	if s.notifier != nil {
		err := tx.Transaction(func(sp *gorm.DB) error {
			return s.notifier.StatusChanged(ctx, sp, *change)
		})
		if err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderRef(ctx, order.Ref), "order status notification failed", err)
		}
	}
	return change, nil
}

func (s *service) afterSave(ctx context.Context, change *StatusChange) {
	if change == nil {
		return
	}
	s.metrics.IncTransition(string(change.OldStatus), string(change.NewStatus))
	if s.logg != nil {
		logCtx := s.logg.WithOrderRef(ctx, change.Order.Ref)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"old_status": change.OldStatus,
			"new_status": change.NewStatus,
		})
		s.logg.Info(logCtx, "order status changed")
	}
}

func (s *service) ValidateTransition(order *models.Order, status enums.OrderStatus) (enums.OrderStatus, error) {
	if !status.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", status))
	}
	return s.statuses.ValidateTransition(status, order)
}

func (s *service) ChangeStatus(ctx context.Context, order *models.Order, status enums.OrderStatus) error {
	next, err := s.ValidateTransition(order, status)
	if err != nil {
		return err
	}
	order.Status = next
	return s.Save(ctx, order)
}

func (s *service) Refund(ctx context.Context, order *models.Order) (*RefundResult, error) {
	if order.Status == enums.OrderStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Order is already marked as Refunded.")
	}
	rows, err := s.repo.ListPayments(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order payments")
	}

	result := &RefundResult{Refunded: []models.OrderPayment{}, Failed: []models.OrderPayment{}}
	for i := range rows {
		payment := rows[i]
		if s.refundPayment(ctx, order, &payment) {
			result.Refunded = append(result.Refunded, payment)
		} else {
			result.Failed = append(result.Failed, payment)
		}
	}
	order.InvalidateAmountPaid()
	s.metrics.AddRefunds(len(result.Refunded), len(result.Failed))

	if s.logg != nil {
		logCtx := s.logg.WithOrderRef(ctx, order.Ref)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"refunded": len(result.Refunded),
			"failed":   len(result.Failed),
		})
		s.logg.Info(logCtx, "order refund processed")
	}

	if len(result.Failed) == 0 {
		order.Status = enums.OrderStatusRefunded
		if err := s.Save(ctx, order); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *service) refundPayment(ctx context.Context, order *models.Order, payment *models.OrderPayment) bool {
	method, ok := s.methods.Lookup(payment.PaymentMethod)
	if !ok {
		return false
	}
	refunded, err := payments.Refund(ctx, method, payment)
	if err != nil {
		if s.logg != nil {
			logCtx := s.logg.WithOrderRef(ctx, order.Ref)
			logCtx = s.logg.WithField(logCtx, "transaction_id", payment.TransactionID)
			s.logg.Warn(logCtx, "payment refund failed: "+err.Error())
		}
		return false
	}
	return refunded
}

func (s *service) AddNote(ctx context.Context, order *models.Order, message string, public bool) (*models.OrderNote, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note message required")
	}
	note := &models.OrderNote{OrderID: order.ID, Message: message, Public: public}
	if err := s.repo.CreateNote(ctx, note); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order note")
	}
	return note, nil
}

func (s *service) Notes(ctx context.Context, order *models.Order, publicOnly bool) ([]models.OrderNote, error) {
	notes, err := s.repo.ListNotes(ctx, order.ID, publicOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order notes")
	}
	return notes, nil
}

func (s *service) Items(ctx context.Context, order *models.Order) ([]models.OrderItem, error) {
	if order.Items != nil {
		return order.Items, nil
	}
	items, err := s.repo.ListItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	if items == nil {
		items = []models.OrderItem{}
	}
	order.Items = items
	return items, nil
}

func (s *service) Payments(ctx context.Context, order *models.Order) ([]models.OrderPayment, error) {
	rows, err := s.repo.ListPayments(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order payments")
	}
	return rows, nil
}

func (s *service) GetByRef(ctx context.Context, ref string) (*models.Order, error) {
	return s.lookup(s.repo.FindByRef(ctx, ref))
}

func (s *service) GetByToken(ctx context.Context, token string) (*models.Order, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.lookup(s.repo.FindByToken(ctx, token))
}

func (s *service) lookup(order *models.Order, err error) (*models.Order, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// GetForIdentity returns the order when the caller may see it: staff see
// everything, users their own orders, anonymous callers need the token.
func (s *service) GetForIdentity(ctx context.Context, id identity.Identity, ref string) (*models.Order, error) {
	order, err := s.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	switch {
	case id.IsAuthenticated() && id.Staff:
		return order, nil
	case id.IsAuthenticated():
		if id.Owns(order.UserID) {
			return order, nil
		}
	case id.Param("token") != "" && id.Param("token") == order.Token:
		return order, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	cursor, err := params.Position()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	size := params.Size()
	rows, err := s.repo.ListByUser(ctx, userID, size, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Split(rows, size, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	if page == nil {
		page = []models.Order{}
	}
	return &OrderList{Orders: page, NextCursor: next}, nil
}

func (s *service) LastForIdentity(ctx context.Context, id identity.Identity) (*models.Order, error) {
	if id.IsAuthenticated() {
		return s.lookup(s.repo.LastByUser(ctx, *id.UserID))
	}
	return s.GetByToken(ctx, id.Param("token"))
}

func (s *service) ValidateAddress(value string) (string, error) {
	normalized, err := s.address(value)
	if err == nil {
		return normalized, nil
	}
	if pkgerrors.As(err) != nil {
		return "", err
	}
	return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
}

func (s *service) logInfo(ctx context.Context, order *models.Order, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithOrderRef(ctx, order.Ref), msg)
}
