package seeder

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/pkg/errorbank"
)

var tracer = otel.Tracer("github.com/furfield/procurement/seeder")

// Module provides the seeder and runs it on start when configured to.
var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(registerOnStart),
)

// Seeder writes demo fixtures for local and dev setups.
type Seeder struct {
	storage  storage.Provider
	address  entity.Address
	currency string
	logger   *zap.Logger
}

// Params bundles the seeder dependencies.
type Params struct {
	fx.In

	Storage storage.Provider
	Config  config.Config
	Logger  *zap.Logger
}

// Result reports what a run wrote.
type Result struct {
	HospitalID string
	Skipped    bool
	Suppliers  int
	Orders     int
	Inventory  int
}

// New constructs a Seeder writing through the registry's default handle.
func New(p Params) *Seeder {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := p.Config.Procurement.Currency
	if currency == "" {
		currency = "USD"
	}
	addr := p.Config.Procurement.DefaultAddress
	return &Seeder{
		storage:  p.Storage,
		address:  entity.Address{Street: addr.Street, City: addr.City, State: addr.State, Zip: addr.Zip, Country: addr.Country},
		currency: currency,
		logger:   logger.Named("seeder"),
	}
}

// Run seeds hospitalID in one transaction. A hospital that already holds the
// fixtures is left untouched.
func (s *Seeder) Run(ctx context.Context, hospitalID string) (Result, error) {
	ctx, span := tracer.Start(ctx, "Seeder.Run")
	defer span.End()
	span.SetAttributes(attribute.String("hospital.id", hospitalID))

	result := Result{HospitalID: hospitalID}
	if hospitalID == "" {
		return result, errorbank.Validation("hospital id is required")
	}

	h, err := s.storage.Handle(ctx)
	if err != nil {
		return result, err
	}

	set := Build(hospitalID, s.address, s.currency)
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, found, err := storage.First(ctx, tx.Suppliers(), storage.Tenant(hospitalID), storage.Eq("id", set.Suppliers[0].ID))
		if err != nil {
			return err
		}
		if found {
			result.Skipped = true
			return nil
		}
		return write(ctx, tx, set)
	})
	if err != nil {
		span.RecordError(err)
		return result, storage.Fail(err, "seed failed", errorbank.WithDetail("hospital_id", hospitalID))
	}

	if result.Skipped {
		s.logger.Info("fixtures already present", zap.String("hospital_id", hospitalID))
		return result, nil
	}

	result.Suppliers = len(set.Suppliers)
	result.Orders = len(set.Orders)
	result.Inventory = len(set.Inventory)
	s.logger.Info("seeded fixtures",
		zap.String("hospital_id", hospitalID),
		zap.Int("suppliers", result.Suppliers),
		zap.Int("purchase_orders", result.Orders),
		zap.Int("inventory_items", result.Inventory),
	)
	return result, nil
}

func write(ctx context.Context, tx storage.Tx, set Fixtures) error {
	for i := range set.Suppliers {
		if err := tx.Suppliers().Insert(ctx, &set.Suppliers[i]); err != nil {
			return err
		}
	}
	for i := range set.Orders {
		order := &set.Orders[i]
		if err := tx.PurchaseOrders().Insert(ctx, order); err != nil {
			return err
		}
		items := make([]*entity.PurchaseOrderItem, len(order.Items))
		for j := range order.Items {
			items[j] = &order.Items[j]
		}
		if err := tx.PurchaseOrderItems().Insert(ctx, items...); err != nil {
			return err
		}
	}
	for i := range set.Inventory {
		if err := tx.Inventory().Insert(ctx, &set.Inventory[i]); err != nil {
			return err
		}
	}
	for i := range set.Activities {
		if err := tx.Activities().Insert(ctx, &set.Activities[i]); err != nil {
			return err
		}
	}
	return nil
}

func registerOnStart(lc fx.Lifecycle, cfg config.Config, s *Seeder) {
	if !cfg.Procurement.SeedOnStart {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := s.Run(ctx, cfg.Procurement.SeedHospitalID)
			return err
		},
	})
}
