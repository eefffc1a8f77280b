package performance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/storage/memory"
	"github.com/furfield/procurement/internal/validation"
	"github.com/furfield/procurement/pkg/errorbank"
)

var fixedNow = time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T) *Service {
	t.Helper()
	h := memory.NewHandle(memory.NewStore(), storage.Settings{
		ServiceName: "ff-purc-test",
		StorageKey:  "ff-purc-test",
		Session:     cache.NewLocal(time.Minute),
	})
	require.NoError(t, h.Suppliers().Insert(context.Background(), &entity.Supplier{
		ID: "s-1", HospitalID: "h-1", Name: "MedSupply Co", Status: entity.SupplierStatusActive,
	}))
	svc := NewService(Params{Storage: storage.Static(h), Validator: validation.New()})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func form(start time.Time, scores ...int) dto.PerformanceForm {
	return dto.PerformanceForm{
		PeriodStart:        start,
		PeriodEnd:          start.AddDate(0, 3, 0),
		DeliveryScore:      scores[0],
		QualityScore:       scores[1],
		PricingScore:       scores[2],
		CommunicationScore: scores[3],
		TotalOrders:        12,
		OnTimeDeliveries:   10,
		QualityIssues:      1,
	}
}

func TestService_Record(t *testing.T) {
	svc := newService(t)
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	rec, err := svc.Record(context.Background(), "s-1", form(start, 9, 8, 7, 9), "h-1", "u-7")
	require.NoError(t, err)

	assert.Equal(t, "8.3", rec.OverallScore.StringFixed(1))
	assert.Equal(t, "u-7", rec.EvaluatedBy)
	assert.Equal(t, fixedNow, rec.CreatedAt)
}

func TestService_RecordRejects(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*dto.PerformanceForm)
		kind   errorbank.Kind
	}{
		{"score above ten", func(f *dto.PerformanceForm) { f.QualityScore = 11 }, errorbank.KindValidation},
		{"score below one", func(f *dto.PerformanceForm) { f.PricingScore = 0 }, errorbank.KindValidation},
		{"period ends before start", func(f *dto.PerformanceForm) { f.PeriodEnd = start.AddDate(0, 0, -1) }, errorbank.KindValidation},
		{"more on time than total", func(f *dto.PerformanceForm) { f.OnTimeDeliveries = 13 }, errorbank.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := form(start, 5, 5, 5, 5)
			tt.mutate(&f)
			_, err := svc.Record(ctx, "s-1", f, "h-1", "u-1")
			assert.True(t, errorbank.IsKind(err, tt.kind), "got %v", err)
		})
	}

	_, err := svc.Record(ctx, "ghost", form(start, 5, 5, 5, 5), "h-1", "u-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidReference))

	_, err = svc.Record(ctx, "s-1", form(start, 5, 5, 5, 5), "h-2", "u-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidReference))
}

func TestService_ListBySupplier(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	q1 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	q2 := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Record(ctx, "s-1", form(q1, 5, 5, 5, 5), "h-1", "")
	require.NoError(t, err)
	_, err = svc.Record(ctx, "s-1", form(q2, 6, 6, 6, 6), "h-1", "")
	require.NoError(t, err)

	rows, err := svc.ListBySupplier(ctx, "s-1", "h-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, q2, rows[0].PeriodStart)
	assert.Equal(t, "system", rows[1].EvaluatedBy)

	other, err := svc.ListBySupplier(ctx, "s-1", "h-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
