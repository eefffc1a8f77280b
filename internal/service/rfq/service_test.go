package rfq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/sequence"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/storage/memory"
	"github.com/furfield/procurement/internal/validation"
	"github.com/furfield/procurement/pkg/errorbank"
)

var fixedNow = time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	h     *memory.Handle
	store *memory.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	h := memory.NewHandle(store, storage.Settings{
		ServiceName: "ff-purc-test",
		StorageKey:  "ff-purc-test",
		Session:     cache.NewLocal(time.Minute),
	})
	svc := NewService(Params{
		Storage:   storage.Static(h),
		Validator: validation.New(),
		Sequencer: sequence.New(),
		Config:    config.Config{Procurement: config.Procurement{Currency: "EUR"}},
	})
	svc.now = func() time.Time { return fixedNow }

	for _, id := range []string{"s-1", "s-2", "s-3"} {
		require.NoError(t, h.Suppliers().Insert(context.Background(), &entity.Supplier{
			ID: id, HospitalID: "h-1", Name: "Supplier " + id, Status: entity.SupplierStatusActive,
		}))
	}
	return fixture{svc: svc, h: h, store: store}
}

func rfqForm() dto.RFQForm {
	return dto.RFQForm{
		Title:       "Q4 surgical gloves",
		DueDate:     fixedNow.AddDate(0, 0, 14),
		SupplierIDs: []string{"s-1", "s-2", "s-1"},
		Items: []dto.RFQItemForm{
			{ItemName: "Nitrile gloves", Quantity: 40, UnitOfMeasure: "box"},
			{ItemName: "Latex gloves", Quantity: 10, UnitOfMeasure: "box"},
		},
	}
}

func quoteForm(rfq *entity.RequestForQuote, supplierID string, prices ...string) dto.QuoteForm {
	form := dto.QuoteForm{
		SupplierID:   supplierID,
		ValidityDate: fixedNow.AddDate(0, 1, 0),
		PaymentTerms: "net_30",
	}
	for i, p := range prices {
		form.Items = append(form.Items, dto.QuoteItemForm{
			RFQItemID:    rfq.Items[i].ID,
			UnitPrice:    decimal.RequireFromString(p),
			DeliveryTime: "5 days",
		})
	}
	return form
}

// sent creates an RFQ and moves it to sent.
func (f fixture) sent(t *testing.T) *entity.RequestForQuote {
	t.Helper()
	ctx := context.Background()
	rfq, err := f.svc.Create(ctx, rfqForm(), "h-1", "u-1")
	require.NoError(t, err)
	rfq, err = f.svc.UpdateStatus(ctx, rfq.ID, entity.RFQStatusSent, "h-1")
	require.NoError(t, err)
	return rfq
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)

	rfq, err := f.svc.Create(context.Background(), rfqForm(), "h-1", "u-1")
	require.NoError(t, err)

	assert.Equal(t, "RFQ-202610001", rfq.RFQNumber)
	assert.Equal(t, entity.RFQStatusDraft, rfq.Status)
	assert.Equal(t, []string{"s-1", "s-2"}, rfq.SupplierIDs)
	require.Len(t, rfq.Items, 2)
	assert.NotEmpty(t, rfq.Items[0].ID)
	assert.Equal(t, "u-1", rfq.CreatedBy)

	next, err := f.svc.Create(context.Background(), rfqForm(), "h-1", "")
	require.NoError(t, err)
	assert.Equal(t, "RFQ-202610002", next.RFQNumber)
	assert.Equal(t, "system", next.CreatedBy)
}

func TestService_CreateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form := rfqForm()
	form.Items = nil
	_, err := f.svc.Create(ctx, form, "h-1", "u-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	form = rfqForm()
	form.SupplierIDs = []string{"s-1", "ghost"}
	_, err = f.svc.Create(ctx, form, "h-1", "u-1")
	require.True(t, errorbank.IsKind(err, errorbank.KindInvalidReference))
	assert.Equal(t, []string{"ghost"}, errorbank.From(err).Details()["supplier_ids"])

	_, err = f.svc.Create(ctx, rfqForm(), "h-2", "u-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidReference), "suppliers are tenant scoped")

	_, err = f.svc.Create(ctx, rfqForm(), "", "u-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	rows, err := f.svc.List(ctx, "h-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestService_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rfq, err := f.svc.Create(ctx, rfqForm(), "h-1", "u-1")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, rfq.ID, entity.RFQStatusAccepted, "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, rfq.ID, "archived", "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	_, err = f.svc.UpdateStatus(ctx, "missing", entity.RFQStatusSent, "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	updated, err := f.svc.UpdateStatus(ctx, rfq.ID, entity.RFQStatusSent, "h-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RFQStatusSent, updated.Status)

	stored, err := f.svc.Get(ctx, rfq.ID, "h-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RFQStatusSent, stored.Status)

	_, err = f.svc.Get(ctx, rfq.ID, "h-2")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestService_SubmitQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.sent(t)

	quote, err := f.svc.SubmitQuote(ctx, rfq.ID, quoteForm(rfq, "s-1", "1.25", "2.11"), "h-1")
	require.NoError(t, err)

	assert.Equal(t, "RFQ-202610001-Q01", quote.QuoteNumber)
	assert.Equal(t, "EUR", quote.Currency)
	assert.Equal(t, entity.QuoteStatusSubmitted, quote.Status)
	require.Len(t, quote.Items, 2)
	assert.Equal(t, "50", quote.Items[0].TotalPrice.String())
	assert.Equal(t, "2.11", quote.Items[1].UnitPrice.String())
	assert.Equal(t, "71.1", quote.TotalAmount.String())

	stored, err := f.svc.Get(ctx, rfq.ID, "h-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RFQStatusReceived, stored.Status)

	second, err := f.svc.SubmitQuote(ctx, rfq.ID, quoteForm(rfq, "s-2", "1.00"), "h-1")
	require.NoError(t, err)
	assert.Equal(t, "RFQ-202610001-Q02", second.QuoteNumber)

	quotes, err := f.svc.ListQuotes(ctx, rfq.ID, "h-1")
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, second.ID, quotes[0].ID, "cheapest first")
}

func TestService_SubmitQuoteRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.Create(ctx, rfqForm(), "h-1", "u-1")
	require.NoError(t, err)
	_, err = f.svc.SubmitQuote(ctx, draft.ID, quoteForm(draft, "s-1", "1.00"), "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))

	rfq := f.sent(t)

	_, err = f.svc.SubmitQuote(ctx, rfq.ID, quoteForm(rfq, "s-3", "1.00"), "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidReference), "not invited")

	_, err = f.svc.SubmitQuote(ctx, rfq.ID, quoteForm(rfq, "ghost", "1.00"), "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidReference))

	unknown := quoteForm(rfq, "s-1", "1.00")
	unknown.Items[0].RFQItemID = "nope"
	_, err = f.svc.SubmitQuote(ctx, rfq.ID, unknown, "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	dup := quoteForm(rfq, "s-1", "1.00")
	dup.Items = append(dup.Items, dup.Items[0])
	_, err = f.svc.SubmitQuote(ctx, rfq.ID, dup, "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	_, err = f.svc.SubmitQuote(ctx, rfq.ID, quoteForm(rfq, "s-1", "2.105"), "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation), "sub-cent unit price")

	_, err = f.svc.SubmitQuote(ctx, "missing", quoteForm(rfq, "s-1", "1.00"), "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	stored, err := f.svc.Get(ctx, rfq.ID, "h-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RFQStatusSent, stored.Status, "rejected quotes leave the rfq untouched")
}

func TestService_SubmitQuoteRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.sent(t)

	f.store.FailWith(func(op memory.Operation) error {
		if op.Table == "rfqs" && op.Kind == "update" {
			return errors.New("disk full")
		}
		return nil
	})
	_, err := f.svc.SubmitQuote(ctx, rfq.ID, quoteForm(rfq, "s-1", "1.00"), "h-1")
	require.True(t, errorbank.IsKind(err, errorbank.KindStorage))
	f.store.FailWith(nil)

	quotes, err := f.svc.ListQuotes(ctx, rfq.ID, "h-1")
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestService_AcceptQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rfq := f.sent(t)

	_, err := f.svc.AcceptQuote(ctx, rfq.ID, "q", "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition), "nothing received yet")

	first, err := f.svc.SubmitQuote(ctx, rfq.ID, quoteForm(rfq, "s-1", "3.00"), "h-1")
	require.NoError(t, err)
	second, err := f.svc.SubmitQuote(ctx, rfq.ID, quoteForm(rfq, "s-2", "2.00"), "h-1")
	require.NoError(t, err)

	_, err = f.svc.AcceptQuote(ctx, rfq.ID, "missing", "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	accepted, err := f.svc.AcceptQuote(ctx, rfq.ID, second.ID, "h-1")
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusAccepted, accepted.Status)

	quotes, err := f.svc.ListQuotes(ctx, rfq.ID, "h-1")
	require.NoError(t, err)
	status := map[string]entity.QuoteStatus{}
	for _, q := range quotes {
		status[q.ID] = q.Status
	}
	assert.Equal(t, entity.QuoteStatusAccepted, status[second.ID])
	assert.Equal(t, entity.QuoteStatusRejected, status[first.ID])

	stored, err := f.svc.Get(ctx, rfq.ID, "h-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RFQStatusAccepted, stored.Status)

	_, err = f.svc.SubmitQuote(ctx, rfq.ID, quoteForm(rfq, "s-1", "1.00"), "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
}
