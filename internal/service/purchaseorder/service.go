package purchaseorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/event"
	"github.com/furfield/procurement/internal/sequence"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/tenant"
	"github.com/furfield/procurement/internal/validation"
	"github.com/furfield/procurement/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/furfield/procurement/service/purchaseorder")

const (
	entityName   = "purchase_order"
	numberPrefix = "PO"
)

// Service enforces numbering, totals and lifecycle rules for purchase orders.
type Service struct {
	storage   storage.Provider
	validator *validation.Validator
	events    *event.Recorder
	sequencer *sequence.Sequencer
	currency  string
	address   entity.Address
	logger    *zap.Logger
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Storage   storage.Provider
	Validator *validation.Validator
	Events    *event.Recorder
	Sequencer *sequence.Sequencer
	Config    config.Config
	Logger    *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := p.Config.Procurement.Currency
	if currency == "" {
		currency = "USD"
	}
	addr := p.Config.Procurement.DefaultAddress
	return &Service{
		storage:   p.Storage,
		validator: p.Validator,
		events:    p.Events,
		sequencer: p.Sequencer,
		currency:  currency,
		address: entity.Address{
			Street:  addr.Street,
			City:    addr.City,
			State:   addr.State,
			Zip:     addr.Zip,
			Country: addr.Country,
		},
		logger: logger.Named("purchase_order"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns the hospital's orders, newest first, with their items.
func (s *Service) List(ctx context.Context, hospitalID string) ([]entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.List", trace.WithAttributes(attribute.String("hospital.id", hospitalID)))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	orders, err := h.PurchaseOrders().Select(ctx, storage.Where(storage.Tenant(hospitalID)).OrderBy("created_at", true))
	if err != nil {
		return nil, s.fail(span, err, "failed to list purchase orders", "", hospitalID)
	}
	if err := attachItems(ctx, h, orders); err != nil {
		return nil, s.fail(span, err, "failed to load purchase order items", "", hospitalID)
	}
	return orders, nil
}

// Get returns one order with its items.
func (s *Service) Get(ctx context.Context, id, hospitalID string) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.Get", trace.WithAttributes(
		attribute.String("purchase_order.id", id),
		attribute.String("hospital.id", hospitalID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}
	order, err := load(ctx, h, id, hospitalID)
	if err != nil {
		return nil, s.fail(span, err, "failed to load purchase order", id, hospitalID)
	}
	return order, nil
}

// Create validates the form, numbers the order and stores it as a draft
// together with its items and an order_created activity.
func (s *Service) Create(ctx context.Context, form dto.PurchaseOrderForm, hospitalID, creatorID string) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.Create", trace.WithAttributes(
		attribute.String("hospital.id", hospitalID),
		attribute.String("supplier.id", form.SupplierID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(form, entityName); err != nil {
		return nil, err
	}
	if creatorID == "" {
		creatorID = "system"
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	if _, found, err := storage.First(ctx, h.Suppliers(), storage.Tenant(hospitalID), storage.Eq("id", form.SupplierID)); err != nil {
		return nil, s.fail(span, err, "failed to resolve supplier", "", hospitalID)
	} else if !found {
		return nil, errorbank.InvalidReference("supplier does not exist",
			errorbank.WithEntity("supplier", form.SupplierID, hospitalID))
	}

	now := s.now()
	number, err := s.sequencer.Next(ctx, hospitalID, numberPrefix, now, func(ctx context.Context) ([]string, error) {
		rows, err := h.PurchaseOrders().Select(ctx, storage.Where(storage.Tenant(hospitalID)))
		if err != nil {
			return nil, err
		}
		numbers := make([]string, 0, len(rows))
		for _, row := range rows {
			numbers = append(numbers, row.PONumber)
		}
		return numbers, nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to number purchase order", "", hospitalID)
	}
	span.SetAttributes(attribute.String("purchase_order.number", number))

	order := s.build(form, number, hospitalID, creatorID, now)
	if err := verifyTotals(order); err != nil {
		return nil, err
	}

	var act entity.Activity
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.PurchaseOrders().Insert(ctx, order); err != nil {
			return err
		}
		items := make([]*entity.PurchaseOrderItem, len(order.Items))
		for i := range order.Items {
			items[i] = &order.Items[i]
		}
		if err := tx.PurchaseOrderItems().Insert(ctx, items...); err != nil {
			return err
		}
		var err error
		act, err = s.events.Record(ctx, tx, hospitalID, entity.ActivityOrderCreated, order.ID,
			fmt.Sprintf("Purchase Order %s created", order.PONumber), now)
		return err
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to create purchase order", order.ID, hospitalID)
	}

	s.events.Publish(ctx, h.Session(), act)
	s.logger.Info("purchase order created",
		zap.String("id", order.ID),
		zap.String("po_number", order.PONumber),
		zap.String("hospital_id", hospitalID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

func (s *Service) build(form dto.PurchaseOrderForm, number, hospitalID, creatorID string, now time.Time) *entity.PurchaseOrder {
	order := &entity.PurchaseOrder{
		ID:                   uuid.NewString(),
		PONumber:             number,
		SupplierID:           form.SupplierID,
		HospitalID:           hospitalID,
		Status:               entity.POStatusDraft,
		Priority:             entity.Priority(form.Priority),
		OrderDate:            now,
		ExpectedDeliveryDate: form.ExpectedDeliveryDate,
		Currency:             s.currency,
		ShippingAddress:      s.address,
		BillingAddress:       s.address,
		Notes:                form.Notes,
		CreatedBy:            creatorID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if form.ShippingAddress != nil {
		order.ShippingAddress = form.ShippingAddress.Entity()
	}
	if form.BillingAddress != nil {
		order.BillingAddress = form.BillingAddress.Entity()
	}

	order.Items = make([]entity.PurchaseOrderItem, 0, len(form.Items))
	for _, in := range form.Items {
		item := entity.PurchaseOrderItem{
			ID:              uuid.NewString(),
			PurchaseOrderID: order.ID,
			ItemName:        in.ItemName,
			ItemDescription: in.ItemDescription,
			ItemCode:        in.ItemCode,
			Category:        entity.ItemCategory(in.Category),
			QuantityOrdered: in.QuantityOrdered,
			UnitOfMeasure:   in.UnitOfMeasure,
			UnitPrice:       in.UnitPrice,
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		item.TotalPrice = item.ExpectedTotal()
		order.Items = append(order.Items, item)
	}
	order.ApplyTotals(entity.ComputeTotals(order.LineTotals(), form.ShippingCost))
	return order
}

// UpdateStatus moves an order along its lifecycle. Completing an order marks
// every line as fully received and stamps the delivery date.
func (s *Service) UpdateStatus(ctx context.Context, id string, status entity.PurchaseOrderStatus, hospitalID string) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("purchase_order.id", id),
		attribute.String("hospital.id", hospitalID),
		attribute.String("purchase_order.status", string(status)),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, errorbank.Validation("unknown purchase order status",
			errorbank.WithEntity(entityName, id, hospitalID),
			errorbank.WithDetail("status", string(status)))
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	var (
		order *entity.PurchaseOrder
		act   entity.Activity
	)
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		order, err = load(ctx, tx, id, hospitalID)
		if err != nil {
			return err
		}
		from := order.Status
		if !from.CanTransitionTo(status) {
			return invalidTransition(order, status)
		}

		now := s.now()
		order.Status = status
		order.UpdatedAt = now
		if status == entity.POStatusCompleted {
			if order.ActualDeliveryDate == nil {
				order.ActualDeliveryDate = &now
			}
			for i := range order.Items {
				item := &order.Items[i]
				if item.Outstanding() == 0 {
					continue
				}
				item.QuantityReceived = item.QuantityOrdered
				item.UpdatedAt = now
				if _, err := tx.PurchaseOrderItems().Update(ctx, item, storage.Eq("id", item.ID)); err != nil {
					return err
				}
			}
		}
		if err := s.save(ctx, tx, order); err != nil {
			return err
		}
		act, err = s.events.Record(ctx, tx, hospitalID, entity.ActivityOrderStatusChanged, order.ID,
			fmt.Sprintf("Purchase Order %s status changed from %s to %s", order.PONumber, from, status), now)
		return err
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update purchase order status", id, hospitalID)
	}

	s.events.Publish(ctx, h.Session(), act)
	return order, nil
}

// ReceiveItems books delivered quantities against a confirmed order.
func (s *Service) ReceiveItems(ctx context.Context, id string, form dto.ReceiptForm, hospitalID string) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.ReceiveItems", trace.WithAttributes(
		attribute.String("purchase_order.id", id),
		attribute.String("hospital.id", hospitalID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(form, entityName); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	received := make(map[string]int64, len(form.Receipts))
	for _, r := range form.Receipts {
		received[r.ItemID] += r.Quantity
	}

	var (
		order *entity.PurchaseOrder
		act   entity.Activity
	)
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		order, err = load(ctx, tx, id, hospitalID)
		if err != nil {
			return err
		}
		if order.Status != entity.POStatusConfirmed && order.Status != entity.POStatusPartiallyReceived {
			return errorbank.InvalidTransition("purchase order cannot receive items in its current status",
				errorbank.WithEntity(entityName, id, hospitalID),
				errorbank.WithDetail("status", string(order.Status)))
		}

		now := s.now()
		var units int64
		for itemID, qty := range received {
			item := findItem(order, itemID)
			if item == nil {
				return errorbank.Validation("item is not on this purchase order",
					errorbank.WithEntity(entityName, id, hospitalID),
					errorbank.WithDetail("item_id", itemID))
			}
			if item.QuantityReceived+qty > item.QuantityOrdered {
				return errorbank.Validation("received quantity exceeds ordered quantity",
					errorbank.WithEntity(entityName, id, hospitalID),
					errorbank.WithDetails(map[string]any{
						"item_id":   itemID,
						"ordered":   item.QuantityOrdered,
						"received":  item.QuantityReceived,
						"receiving": qty,
					}))
			}
			item.QuantityReceived += qty
			item.UpdatedAt = now
			units += qty
			if _, err := tx.PurchaseOrderItems().Update(ctx, item, storage.Eq("id", item.ID)); err != nil {
				return err
			}
		}

		order.Status = entity.POStatusPartiallyReceived
		if fullyReceived(order) {
			order.Status = entity.POStatusCompleted
			order.ActualDeliveryDate = &now
		}
		order.UpdatedAt = now
		if err := s.save(ctx, tx, order); err != nil {
			return err
		}
		act, err = s.events.Record(ctx, tx, hospitalID, entity.ActivityOrderReceived, order.ID,
			fmt.Sprintf("Received %d units against Purchase Order %s", units, order.PONumber), now)
		return err
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to receive purchase order items", id, hospitalID)
	}

	s.events.Publish(ctx, h.Session(), act)
	return order, nil
}

// Approve records who signed off a draft or sent order.
func (s *Service) Approve(ctx context.Context, id, approverID, hospitalID string) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.Approve", trace.WithAttributes(
		attribute.String("purchase_order.id", id),
		attribute.String("hospital.id", hospitalID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if approverID == "" {
		return nil, errorbank.Validation("approver is required",
			errorbank.WithEntity(entityName, id, hospitalID),
			errorbank.WithDetail("field", "approver_id"))
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	var order *entity.PurchaseOrder
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		order, err = load(ctx, tx, id, hospitalID)
		if err != nil {
			return err
		}
		if order.Status != entity.POStatusDraft && order.Status != entity.POStatusSent {
			return errorbank.InvalidTransition("only draft or sent purchase orders can be approved",
				errorbank.WithEntity(entityName, id, hospitalID),
				errorbank.WithDetail("status", string(order.Status)))
		}
		now := s.now()
		order.ApprovedBy = approverID
		order.ApprovedAt = &now
		order.UpdatedAt = now
		return s.save(ctx, tx, order)
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to approve purchase order", id, hospitalID)
	}
	return order, nil
}

// UpdateDetails edits a draft order and re-derives its totals.
func (s *Service) UpdateDetails(ctx context.Context, id string, form dto.DetailsForm, hospitalID string) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.UpdateDetails", trace.WithAttributes(
		attribute.String("purchase_order.id", id),
		attribute.String("hospital.id", hospitalID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(form, entityName); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	var order *entity.PurchaseOrder
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		order, err = load(ctx, tx, id, hospitalID)
		if err != nil {
			return err
		}
		if order.Status != entity.POStatusDraft {
			return errorbank.InvalidTransition("only draft purchase orders can be edited",
				errorbank.WithEntity(entityName, id, hospitalID),
				errorbank.WithDetail("status", string(order.Status)))
		}
		if form.Priority != nil {
			order.Priority = entity.Priority(*form.Priority)
		}
		if form.ExpectedDeliveryDate != nil {
			d := *form.ExpectedDeliveryDate
			order.ExpectedDeliveryDate = &d
		}
		if form.Notes != nil {
			order.Notes = *form.Notes
		}
		shipping := order.ShippingCost
		if form.ShippingCost != nil {
			shipping = *form.ShippingCost
		}
		order.ApplyTotals(entity.ComputeTotals(order.LineTotals(), shipping))
		order.UpdatedAt = s.now()
		return s.save(ctx, tx, order)
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update purchase order", id, hospitalID)
	}

	s.events.Invalidate(ctx, h.Session(), hospitalID)
	return order, nil
}

// Delete removes a draft or cancelled order and its items. Deleting an
// absent order is not an error.
func (s *Service) Delete(ctx context.Context, id, hospitalID string) error {
	ctx, span := serviceTracer.Start(ctx, "PurchaseOrderService.Delete", trace.WithAttributes(
		attribute.String("purchase_order.id", id),
		attribute.String("hospital.id", hospitalID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return err
	}

	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		order, found, err := storage.First(ctx, tx.PurchaseOrders(), storage.Tenant(hospitalID), storage.Eq("id", id))
		if err != nil || !found {
			return err
		}
		if order.Status != entity.POStatusDraft && order.Status != entity.POStatusCancelled {
			return errorbank.InvalidTransition("only draft or cancelled purchase orders can be deleted",
				errorbank.WithEntity(entityName, id, hospitalID),
				errorbank.WithDetail("status", string(order.Status)))
		}
		if _, err := tx.PurchaseOrderItems().Delete(ctx, storage.Eq("purchase_order_id", id)); err != nil {
			return err
		}
		_, err = tx.PurchaseOrders().Delete(ctx, storage.Tenant(hospitalID), storage.Eq("id", id))
		return err
	})
	if err != nil {
		return s.fail(span, err, "failed to delete purchase order", id, hospitalID)
	}

	s.events.Invalidate(ctx, h.Session(), hospitalID)
	return nil
}

// save rejects orders whose stored totals drift from their items, then
// writes the header.
func (s *Service) save(ctx context.Context, tables storage.Tables, order *entity.PurchaseOrder) error {
	if err := verifyTotals(order); err != nil {
		return err
	}
	_, err := tables.PurchaseOrders().Update(ctx, order, storage.Tenant(order.HospitalID), storage.Eq("id", order.ID))
	return err
}

func (s *Service) fail(span trace.Span, err error, message, id, hospitalID string) error {
	switch errorbank.From(err).Kind() {
	case errorbank.KindNotFound, errorbank.KindValidation, errorbank.KindInvalidTransition, errorbank.KindInvalidReference:
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return storage.Fail(err, message, errorbank.WithEntity(entityName, id, hospitalID))
}

func verifyTotals(order *entity.PurchaseOrder) error {
	if order.TotalsConsistent() {
		return nil
	}
	return errorbank.Validation("purchase order totals are inconsistent",
		errorbank.WithEntity(entityName, order.ID, order.HospitalID),
		errorbank.WithDetails(map[string]any{
			"subtotal":      order.Subtotal.StringFixed(2),
			"tax_amount":    order.TaxAmount.StringFixed(2),
			"shipping_cost": order.ShippingCost.StringFixed(2),
			"total_amount":  order.TotalAmount.StringFixed(2),
		}))
}

func invalidTransition(order *entity.PurchaseOrder, to entity.PurchaseOrderStatus) error {
	return errorbank.InvalidTransition(
		fmt.Sprintf("cannot move purchase order from %s to %s", order.Status, to),
		errorbank.WithEntity(entityName, order.ID, order.HospitalID),
		errorbank.WithDetails(map[string]any{"from": string(order.Status), "to": string(to)}),
	)
}

func load(ctx context.Context, tables storage.Tables, id, hospitalID string) (*entity.PurchaseOrder, error) {
	order, found, err := storage.First(ctx, tables.PurchaseOrders(), storage.Tenant(hospitalID), storage.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorbank.NotFound("purchase order not found", errorbank.WithEntity(entityName, id, hospitalID))
	}
	items, err := tables.PurchaseOrderItems().Select(ctx, storage.Where(storage.Eq("purchase_order_id", id)).OrderBy("created_at", false))
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func attachItems(ctx context.Context, tables storage.Tables, orders []entity.PurchaseOrder) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = []entity.PurchaseOrderItem{}
	}
	items, err := tables.PurchaseOrderItems().Select(ctx, storage.Where(
		storage.Filter{Field: "purchase_order_id", Op: storage.OpIn, Value: ids},
	).OrderBy("created_at", false))
	if err != nil {
		return err
	}
	for _, item := range items {
		if i, ok := index[item.PurchaseOrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return nil
}

func findItem(order *entity.PurchaseOrder, id string) *entity.PurchaseOrderItem {
	for i := range order.Items {
		if order.Items[i].ID == id {
			return &order.Items[i]
		}
	}
	return nil
}

func fullyReceived(order *entity.PurchaseOrder) bool {
	for _, item := range order.Items {
		if item.Outstanding() > 0 {
			return false
		}
	}
	return true
}
