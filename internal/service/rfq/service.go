package rfq

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/sequence"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/tenant"
	"github.com/furfield/procurement/internal/validation"
	"github.com/furfield/procurement/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/furfield/procurement/service/rfq")

const (
	entityName   = "rfq"
	quoteEntity  = "quote"
	numberPrefix = "RFQ"
)

// Service runs requests for quote and the quotes suppliers send back.
type Service struct {
	storage   storage.Provider
	validator *validation.Validator
	sequencer *sequence.Sequencer
	currency  string
	logger    *zap.Logger
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Storage   storage.Provider
	Validator *validation.Validator
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
	return &Service{
		storage:   p.Storage,
		validator: p.Validator,
		sequencer: p.Sequencer,
		currency:  currency,
		logger:    logger.Named("rfq"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns the hospital's RFQs, newest first.
func (s *Service) List(ctx context.Context, hospitalID string) ([]entity.RequestForQuote, error) {
	ctx, span := serviceTracer.Start(ctx, "RFQService.List", trace.WithAttributes(attribute.String("hospital.id", hospitalID)))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := h.RFQs().Select(ctx, storage.Where(storage.Tenant(hospitalID)).OrderBy("created_at", true))
	if err != nil {
		return nil, s.fail(span, err, "failed to list rfqs", "", hospitalID)
	}
	return rows, nil
}

// Get returns one RFQ.
func (s *Service) Get(ctx context.Context, id, hospitalID string) (*entity.RequestForQuote, error) {
	ctx, span := serviceTracer.Start(ctx, "RFQService.Get", trace.WithAttributes(
		attribute.String("rfq.id", id),
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
	rfq, err := loadRFQ(ctx, h, id, hospitalID)
	if err != nil {
		return nil, s.fail(span, err, "failed to load rfq", id, hospitalID)
	}
	return rfq, nil
}

// Create validates the form and stores a draft RFQ addressed to existing
// suppliers of the hospital.
func (s *Service) Create(ctx context.Context, form dto.RFQForm, hospitalID, creatorID string) (*entity.RequestForQuote, error) {
	ctx, span := serviceTracer.Start(ctx, "RFQService.Create", trace.WithAttributes(attribute.String("hospital.id", hospitalID)))
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

	invited := dedupe(form.SupplierIDs)
	known, err := h.Suppliers().Select(ctx, storage.Where(
		storage.Tenant(hospitalID),
		storage.Filter{Field: "id", Op: storage.OpIn, Value: invited},
	))
	if err != nil {
		return nil, s.fail(span, err, "failed to resolve suppliers", "", hospitalID)
	}
	if missing := absent(invited, known); len(missing) > 0 {
		return nil, errorbank.InvalidReference("supplier does not exist",
			errorbank.WithEntity("supplier", "", hospitalID),
			errorbank.WithDetail("supplier_ids", missing))
	}

	now := s.now()
	number, err := s.sequencer.Next(ctx, hospitalID, numberPrefix, now, func(ctx context.Context) ([]string, error) {
		rows, err := h.RFQs().Select(ctx, storage.Where(storage.Tenant(hospitalID)))
		if err != nil {
			return nil, err
		}
		numbers := make([]string, 0, len(rows))
		for _, row := range rows {
			numbers = append(numbers, row.RFQNumber)
		}
		return numbers, nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to number rfq", "", hospitalID)
	}

	rfq := &entity.RequestForQuote{
		ID:          uuid.NewString(),
		RFQNumber:   number,
		HospitalID:  hospitalID,
		Title:       form.Title,
		Description: form.Description,
		Status:      entity.RFQStatusDraft,
		DueDate:     form.DueDate,
		SupplierIDs: invited,
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, in := range form.Items {
		rfq.Items = append(rfq.Items, entity.RFQItem{
			ID:             uuid.NewString(),
			ItemName:       in.ItemName,
			Description:    in.Description,
			Quantity:       in.Quantity,
			UnitOfMeasure:  in.UnitOfMeasure,
			Specifications: in.Specifications,
		})
	}
	if err := h.RFQs().Insert(ctx, rfq); err != nil {
		return nil, s.fail(span, err, "failed to create rfq", rfq.ID, hospitalID)
	}

	s.logger.Info("rfq created", zap.String("id", rfq.ID), zap.String("rfq_number", rfq.RFQNumber), zap.String("hospital_id", hospitalID))
	return rfq, nil
}

// UpdateStatus moves an RFQ along its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id string, status entity.RFQStatus, hospitalID string) (*entity.RequestForQuote, error) {
	ctx, span := serviceTracer.Start(ctx, "RFQService.UpdateStatus", trace.WithAttributes(
		attribute.String("rfq.id", id),
		attribute.String("hospital.id", hospitalID),
		attribute.String("rfq.status", string(status)),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, errorbank.Validation("unknown rfq status",
			errorbank.WithEntity(entityName, id, hospitalID),
			errorbank.WithDetail("status", string(status)))
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	var rfq *entity.RequestForQuote
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		rfq, err = loadRFQ(ctx, tx, id, hospitalID)
		if err != nil {
			return err
		}
		return s.transition(ctx, tx, rfq, status)
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update rfq status", id, hospitalID)
	}
	return rfq, nil
}

// SubmitQuote records an invited supplier's prices for an open RFQ. The
// first quote moves the RFQ from sent to received.
func (s *Service) SubmitQuote(ctx context.Context, rfqID string, form dto.QuoteForm, hospitalID string) (*entity.Quote, error) {
	ctx, span := serviceTracer.Start(ctx, "RFQService.SubmitQuote", trace.WithAttributes(
		attribute.String("rfq.id", rfqID),
		attribute.String("hospital.id", hospitalID),
		attribute.String("supplier.id", form.SupplierID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(form, quoteEntity); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	var quote *entity.Quote
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		rfq, err := loadRFQ(ctx, tx, rfqID, hospitalID)
		if err != nil {
			return err
		}
		if !rfq.Status.AcceptsQuotes() {
			return errorbank.InvalidTransition("rfq is not accepting quotes",
				errorbank.WithEntity(entityName, rfqID, hospitalID),
				errorbank.WithDetail("status", string(rfq.Status)))
		}
		if _, found, err := storage.First(ctx, tx.Suppliers(), storage.Tenant(hospitalID), storage.Eq("id", form.SupplierID)); err != nil {
			return err
		} else if !found {
			return errorbank.InvalidReference("supplier does not exist",
				errorbank.WithEntity("supplier", form.SupplierID, hospitalID))
		}
		if !rfq.Invited(form.SupplierID) {
			return errorbank.InvalidReference("supplier was not invited to this rfq",
				errorbank.WithEntity(entityName, rfqID, hospitalID),
				errorbank.WithDetail("supplier_id", form.SupplierID))
		}

		existing, err := tx.Quotes().Select(ctx, storage.Where(storage.Tenant(hospitalID), storage.Eq("rfq_id", rfqID)))
		if err != nil {
			return err
		}

		quote, err = s.buildQuote(rfq, form, len(existing)+1)
		if err != nil {
			return err
		}
		if err := tx.Quotes().Insert(ctx, quote); err != nil {
			return err
		}
		if rfq.Status == entity.RFQStatusSent {
			return s.transition(ctx, tx, rfq, entity.RFQStatusReceived)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to submit quote", rfqID, hospitalID)
	}
	return quote, nil
}

func (s *Service) buildQuote(rfq *entity.RequestForQuote, form dto.QuoteForm, seq int) (*entity.Quote, error) {
	now := s.now()
	quote := &entity.Quote{
		ID:            uuid.NewString(),
		RFQID:         rfq.ID,
		SupplierID:    form.SupplierID,
		HospitalID:    rfq.HospitalID,
		QuoteNumber:   form.QuoteNumber,
		TotalAmount:   decimal.Zero,
		Currency:      form.Currency,
		ValidityDate:  form.ValidityDate,
		PaymentTerms:  entity.PaymentTerms(form.PaymentTerms),
		DeliveryTerms: form.DeliveryTerms,
		Notes:         form.Notes,
		Status:        entity.QuoteStatusSubmitted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if quote.QuoteNumber == "" {
		quote.QuoteNumber = fmt.Sprintf("%s-Q%02d", rfq.RFQNumber, seq)
	}
	if quote.Currency == "" {
		quote.Currency = s.currency
	}

	priced := make(map[string]struct{}, len(form.Items))
	for _, in := range form.Items {
		line, ok := rfq.Item(in.RFQItemID)
		if !ok {
			return nil, errorbank.Validation("quote item does not match an rfq item",
				errorbank.WithEntity(quoteEntity, "", rfq.HospitalID),
				errorbank.WithDetail("rfq_item_id", in.RFQItemID))
		}
		if _, dup := priced[in.RFQItemID]; dup {
			return nil, errorbank.Validation("rfq item priced twice",
				errorbank.WithEntity(quoteEntity, "", rfq.HospitalID),
				errorbank.WithDetail("rfq_item_id", in.RFQItemID))
		}
		priced[in.RFQItemID] = struct{}{}

		unit := in.UnitPrice
		total := entity.RoundMoney(unit.Mul(decimal.NewFromInt(line.Quantity)))
		quote.Items = append(quote.Items, entity.QuoteItem{
			ID:           uuid.NewString(),
			RFQItemID:    in.RFQItemID,
			UnitPrice:    unit,
			TotalPrice:   total,
			DeliveryTime: in.DeliveryTime,
			Notes:        in.Notes,
		})
		quote.TotalAmount = quote.TotalAmount.Add(total)
	}
	return quote, nil
}

// ListQuotes returns the quotes submitted for an RFQ, cheapest first.
func (s *Service) ListQuotes(ctx context.Context, rfqID, hospitalID string) ([]entity.Quote, error) {
	ctx, span := serviceTracer.Start(ctx, "RFQService.ListQuotes", trace.WithAttributes(
		attribute.String("rfq.id", rfqID),
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
	if _, err := loadRFQ(ctx, h, rfqID, hospitalID); err != nil {
		return nil, s.fail(span, err, "failed to load rfq", rfqID, hospitalID)
	}
	rows, err := h.Quotes().Select(ctx, storage.Where(
		storage.Tenant(hospitalID),
		storage.Eq("rfq_id", rfqID),
	).OrderBy("total_amount", false))
	if err != nil {
		return nil, s.fail(span, err, "failed to list quotes", rfqID, hospitalID)
	}
	return rows, nil
}

// AcceptQuote accepts one submitted quote, rejects the others and closes the
// RFQ as accepted.
func (s *Service) AcceptQuote(ctx context.Context, rfqID, quoteID, hospitalID string) (*entity.Quote, error) {
	ctx, span := serviceTracer.Start(ctx, "RFQService.AcceptQuote", trace.WithAttributes(
		attribute.String("rfq.id", rfqID),
		attribute.String("quote.id", quoteID),
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

	var accepted *entity.Quote
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		rfq, err := loadRFQ(ctx, tx, rfqID, hospitalID)
		if err != nil {
			return err
		}
		if rfq.Status != entity.RFQStatusReceived && rfq.Status != entity.RFQStatusEvaluated {
			return errorbank.InvalidTransition("quotes can only be accepted once received or evaluated",
				errorbank.WithEntity(entityName, rfqID, hospitalID),
				errorbank.WithDetail("status", string(rfq.Status)))
		}

		quotes, err := tx.Quotes().Select(ctx, storage.Where(storage.Tenant(hospitalID), storage.Eq("rfq_id", rfqID)))
		if err != nil {
			return err
		}
		now := s.now()
		for i := range quotes {
			q := &quotes[i]
			switch {
			case q.ID == quoteID:
				if q.Status != entity.QuoteStatusSubmitted {
					return errorbank.InvalidTransition("only submitted quotes can be accepted",
						errorbank.WithEntity(quoteEntity, quoteID, hospitalID),
						errorbank.WithDetail("status", string(q.Status)))
				}
				q.Status = entity.QuoteStatusAccepted
				accepted = q
			case q.Status == entity.QuoteStatusSubmitted || q.Status == entity.QuoteStatusDraft:
				q.Status = entity.QuoteStatusRejected
			default:
				continue
			}
			q.UpdatedAt = now
			if _, err := tx.Quotes().Update(ctx, q, storage.Tenant(hospitalID), storage.Eq("id", q.ID)); err != nil {
				return err
			}
		}
		if accepted == nil {
			return errorbank.NotFound("quote not found", errorbank.WithEntity(quoteEntity, quoteID, hospitalID))
		}
		return s.transition(ctx, tx, rfq, entity.RFQStatusAccepted)
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to accept quote", quoteID, hospitalID)
	}

	s.logger.Info("quote accepted", zap.String("rfq_id", rfqID), zap.String("quote_id", quoteID), zap.String("supplier_id", accepted.SupplierID))
	return accepted, nil
}

func (s *Service) transition(ctx context.Context, tables storage.Tables, rfq *entity.RequestForQuote, to entity.RFQStatus) error {
	if !rfq.Status.CanTransitionTo(to) {
		return errorbank.InvalidTransition(
			fmt.Sprintf("cannot move rfq from %s to %s", rfq.Status, to),
			errorbank.WithEntity(entityName, rfq.ID, rfq.HospitalID),
			errorbank.WithDetails(map[string]any{"from": string(rfq.Status), "to": string(to)}),
		)
	}
	rfq.Status = to
	rfq.UpdatedAt = s.now()
	_, err := tables.RFQs().Update(ctx, rfq, storage.Tenant(rfq.HospitalID), storage.Eq("id", rfq.ID))
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

func loadRFQ(ctx context.Context, tables storage.Tables, id, hospitalID string) (*entity.RequestForQuote, error) {
	rfq, found, err := storage.First(ctx, tables.RFQs(), storage.Tenant(hospitalID), storage.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorbank.NotFound("rfq not found", errorbank.WithEntity(entityName, id, hospitalID))
	}
	return rfq, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func absent(ids []string, known []entity.Supplier) []string {
	found := make(map[string]struct{}, len(known))
	for _, sup := range known {
		found[sup.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
