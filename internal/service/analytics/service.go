package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/event"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/tenant"
	"github.com/furfield/procurement/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/furfield/procurement/service/analytics")

// Service aggregates purchasing metrics per hospital.
type Service struct {
	storage      storage.Provider
	topSuppliers int
	recent       int
	cacheTTL     time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Storage storage.Provider
	Config  config.Config
	Logger  *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	top := p.Config.Procurement.TopSuppliers
	if top <= 0 {
		top = 5
	}
	recent := p.Config.Procurement.RecentActivityLimit
	if recent <= 0 {
		recent = 10
	}
	return &Service{
		storage:      p.Storage,
		topSuppliers: top,
		recent:       recent,
		cacheTTL:     p.Config.Procurement.MetricsCacheTTL,
		logger:       logger.Named("analytics"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// GetMetrics returns the purchasing metrics of a hospital. Results are
// cached in the handle session until the next order or supplier mutation.
// Time-derived figures such as overdue_orders are not invalidated by the
// clock, so a cached result can lag by up to PROCUREMENT_METRICS_CACHE_TTL.
func (s *Service) GetMetrics(ctx context.Context, hospitalID string) (*entity.PurchasingMetrics, error) {
	ctx, span := serviceTracer.Start(ctx, "AnalyticsService.GetMetrics", trace.WithAttributes(attribute.String("hospital.id", hospitalID)))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	if m, err := s.getFromCache(ctx, h.Session(), hospitalID); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return m, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("metrics cache read failed", zap.String("hospital_id", hospitalID), zap.Error(err))
	}

	m, err := s.compute(ctx, h, hospitalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation failed")
		return nil, storage.Fail(err, "failed to compute purchasing metrics",
			errorbank.WithEntity("purchasing_metrics", "", hospitalID))
	}

	if err := s.storeInCache(ctx, h.Session(), hospitalID, m); err != nil {
		s.logger.Warn("metrics cache write failed", zap.String("hospital_id", hospitalID), zap.Error(err))
	}
	return m, nil
}

// Invalidate drops the cached metrics of a hospital.
func (s *Service) Invalidate(ctx context.Context, hospitalID string) error {
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return err
	}
	return h.Session().Delete(ctx, event.MetricsKey(hospitalID))
}

func (s *Service) compute(ctx context.Context, h storage.Handle, hospitalID string) (*entity.PurchasingMetrics, error) {
	orders, err := h.PurchaseOrders().Select(ctx, storage.Where(storage.Tenant(hospitalID)))
	if err != nil {
		return nil, err
	}

	m := &entity.PurchasingMetrics{
		TotalOrders:        len(orders),
		TotalSpent:         decimal.Zero,
		TopSuppliers:       []entity.SupplierSpend{},
		SpendingByCategory: []entity.CategorySpend{},
		RecentActivity:     []entity.Activity{},
	}
	now := s.now()
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		m.TotalSpent = m.TotalSpent.Add(o.TotalAmount)
		if o.Status.IsPending() {
			m.PendingOrders++
		}
		if o.IsOverdue(now) {
			m.OverdueOrders++
		}
	}

	if len(orders) > 0 {
		suppliers, err := h.Suppliers().Select(ctx, storage.Where(storage.Tenant(hospitalID)))
		if err != nil {
			return nil, err
		}
		m.TopSuppliers = rankSuppliers(orders, suppliers, s.topSuppliers)

		items, err := h.PurchaseOrderItems().Select(ctx, storage.Where(
			storage.Filter{Field: "purchase_order_id", Op: storage.OpIn, Value: ids},
		))
		if err != nil {
			return nil, err
		}
		m.SpendingByCategory = spendByCategory(items)
	}

	acts, err := h.Activities().Select(ctx, storage.Where(storage.Tenant(hospitalID)).
		OrderBy("occurred_at", true).
		Take(s.recent))
	if err != nil {
		return nil, err
	}
	if acts != nil {
		m.RecentActivity = acts
	}
	return m, nil
}

// rankSuppliers orders suppliers by spend, then order count, then id.
func rankSuppliers(orders []entity.PurchaseOrder, suppliers []entity.Supplier, limit int) []entity.SupplierSpend {
	names := make(map[string]string, len(suppliers))
	for _, sup := range suppliers {
		names[sup.ID] = sup.Name
	}

	bySupplier := make(map[string]*entity.SupplierSpend)
	for _, o := range orders {
		row, ok := bySupplier[o.SupplierID]
		if !ok {
			name := names[o.SupplierID]
			if name == "" {
				name = "Unknown supplier"
			}
			row = &entity.SupplierSpend{SupplierID: o.SupplierID, SupplierName: name, TotalSpent: decimal.Zero}
			bySupplier[o.SupplierID] = row
		}
		row.OrderCount++
		row.TotalSpent = row.TotalSpent.Add(o.TotalAmount)
	}

	ranked := make([]entity.SupplierSpend, 0, len(bySupplier))
	for _, row := range bySupplier {
		ranked = append(ranked, *row)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if c := a.TotalSpent.Cmp(b.TotalSpent); c != 0 {
			return c > 0
		}
		if a.OrderCount != b.OrderCount {
			return a.OrderCount > b.OrderCount
		}
		return a.SupplierID < b.SupplierID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

var (
	thousand = decimal.NewFromInt(1000)
	ten      = decimal.NewFromInt(10)
)

// spendByCategory sums line totals per category. Percentages carry one
// decimal place and are apportioned by largest remainder so that they add
// up to exactly 100 whenever there is any spend.
func spendByCategory(items []entity.PurchaseOrderItem) []entity.CategorySpend {
	amounts := make(map[entity.ItemCategory]decimal.Decimal)
	total := decimal.Zero
	for _, item := range items {
		amounts[item.Category] = amounts[item.Category].Add(item.TotalPrice)
		total = total.Add(item.TotalPrice)
	}

	out := make([]entity.CategorySpend, 0, len(amounts))
	for category, amount := range amounts {
		out = append(out, entity.CategorySpend{Category: category, Amount: amount, Percentage: decimal.Zero})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	if !total.IsPositive() {
		return out
	}

	// Work in tenths of a percent.
	type share struct {
		idx       int
		units     int64
		remainder decimal.Decimal
	}
	shares := make([]share, len(out))
	var assigned int64
	for i, row := range out {
		raw := row.Amount.Mul(thousand).Div(total)
		floor := raw.Floor()
		shares[i] = share{idx: i, units: floor.IntPart(), remainder: raw.Sub(floor)}
		assigned += shares[i].units
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].remainder.Cmp(shares[j].remainder) > 0
	})
	for i := int64(0); i < 1000-assigned; i++ {
		shares[i%int64(len(shares))].units++
	}
	for _, sh := range shares {
		out[sh.idx].Percentage = decimal.NewFromInt(sh.units).Div(ten)
	}
	return out
}

func (s *Service) getFromCache(ctx context.Context, session cache.Store, hospitalID string) (*entity.PurchasingMetrics, error) {
	if session == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := session.Get(ctx, event.MetricsKey(hospitalID))
	if err != nil {
		return nil, err
	}
	var m entity.PurchasingMetrics
	if err := json.Unmarshal(bytes, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) storeInCache(ctx context.Context, session cache.Store, hospitalID string, m *entity.PurchasingMetrics) error {
	if session == nil {
		return nil
	}
	bytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return session.Set(ctx, event.MetricsKey(hospitalID), bytes, s.cacheTTL)
}
