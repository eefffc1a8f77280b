package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/entity"
	service "github.com/furfield/procurement/internal/service/analytics"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/storage/memory"
	"github.com/furfield/procurement/internal/tenant"
	"github.com/furfield/procurement/internal/transport/http/middleware"
)

func TestHandler_Metrics(t *testing.T) {
	h := memory.NewHandle(memory.NewStore(), storage.Settings{
		ServiceName: "ff-purc-test",
		StorageKey:  "ff-purc-test",
		Session:     cache.NewLocal(time.Minute),
	})
	now := time.Now().UTC()
	require.NoError(t, h.PurchaseOrders().Insert(context.Background(), &entity.PurchaseOrder{
		ID: "po-1", HospitalID: "h-1", PONumber: "PO-202610001", SupplierID: "s-1",
		Status: entity.POStatusSent, TotalAmount: decimal.RequireFromString("30.00"),
		CreatedAt: now, UpdatedAt: now,
	}))
	svc := service.NewService(service.Params{
		Storage: storage.Static(h),
		Config: config.Config{Procurement: config.Procurement{
			TopSuppliers: 5, RecentActivityLimit: 10, MetricsCacheTTL: time.Minute,
		}},
	})
	e := echo.New()
	Register(e.Group("/api/v1", middleware.Tenant()), NewHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/metrics", nil)
	req.Header.Set(tenant.HeaderHospitalID, "h-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data struct {
			TotalOrders   int    `json:"total_orders"`
			TotalSpent    string `json:"total_spent"`
			PendingOrders int    `json:"pending_orders"`
			TopSuppliers  []struct {
				SupplierName string `json:"supplier_name"`
				OrderCount   int    `json:"order_count"`
			} `json:"top_suppliers"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, 1, env.Data.TotalOrders)
	assert.Equal(t, "30", env.Data.TotalSpent)
	assert.Equal(t, 1, env.Data.PendingOrders)
	require.Len(t, env.Data.TopSuppliers, 1)
	assert.Equal(t, "Unknown supplier", env.Data.TopSuppliers[0].SupplierName)
	assert.Equal(t, 1, env.Data.TopSuppliers[0].OrderCount)
}
