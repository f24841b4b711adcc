package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeineb-manai/depot-vente/internal/auth"
	"github.com/zeineb-manai/depot-vente/internal/catalogue"
	"github.com/zeineb-manai/depot-vente/internal/models"
	"github.com/zeineb-manai/depot-vente/internal/refresh"
	"github.com/zeineb-manai/depot-vente/internal/service"
	"github.com/zeineb-manai/depot-vente/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router    *gin.Engine
	catalogue *catalogue.Store
	ledger    *store.Store
	worker    *refresh.Worker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger, err := store.NewStore("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	cat, err := catalogue.Open(filepath.Join(t.TempDir(), "items.csv"), ledger.ValidateUserID)
	require.NoError(t, err)

	sales := service.NewSaleService(cat, ledger, nil, nil, service.DefaultCommissionRate)
	worker := refresh.NewWorker(cat, refresh.NewGuard(), nil, time.Hour)

	verifier, err := auth.NewVerifier("", "open-sesame", "token-secret")
	require.NoError(t, err)

	router := gin.New()
	NewHandler(sales, cat, ledger, worker, nil, verifier).SetupRoutes(router)

	return &testServer{router: router, catalogue: cat, ledger: ledger, worker: worker}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/owner/login", "", gin.H{"secret": "open-sesame"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", "", nil).Code)
}

func TestOwnerLoginRejectsWrongSecret(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/owner/login", "", gin.H{"secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOwnerEndpointsRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/items", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/items", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestItemLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	// Create.
	w := s.do(t, http.MethodPost, "/api/v1/items", token, gin.H{
		"depot":   "North",
		"article": "Lamp",
		"price":   20.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.StatusAvailable, created.Status)

	// Public listing sees it.
	w = s.do(t, http.MethodGet, "/api/v1/catalogue", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Items []models.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing.Items, 1)

	// Update.
	w = s.do(t, http.MethodPut, "/api/v1/items/"+created.ID, token, gin.H{
		"depot":   "South",
		"article": "Desk lamp",
		"price":   22.0,
		"status":  models.StatusAvailable,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Delete.
	w = s.do(t, http.MethodDelete, "/api/v1/items", token, gin.H{"ids": []string{created.ID}})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/catalogue", "", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Empty(t, listing.Items)
}

func TestCreateItemValidationError(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	w := s.do(t, http.MethodPost, "/api/v1/items", token, gin.H{
		"article": "Lamp",
		"price":   -5.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurchaseFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	ctx := context.Background()

	buyer, err := s.ledger.CreateUser(ctx, "Bob", "")
	require.NoError(t, err)
	item, err := s.catalogue.Create(ctx, models.Item{Article: "Lamp", Depot: "North", Price: 20})
	require.NoError(t, err)

	// Buyer self-service purchase, no token needed.
	w := s.do(t, http.MethodPost, "/api/v1/purchases", "", gin.H{
		"actor_id": buyer.ID,
		"role":     "ignored", // server forces the buyer role
		"item_ids": []string{item.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp service.RecordSaleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 20.0, resp.Total)
	assert.True(t, resp.CatalogueUpdated)
	assert.Contains(t, resp.ReceiptText, "Role: buyer\n")

	// The item left the public listing.
	w = s.do(t, http.MethodGet, "/api/v1/catalogue", "", nil)
	var listing struct {
		Items []models.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Empty(t, listing.Items)

	// The receipt is readable with its text rendering.
	w = s.do(t, http.MethodGet, "/api/v1/receipts/"+resp.ReceiptID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var receiptResp struct {
		Receipt models.Receipt       `json:"receipt"`
		Items   []models.ReceiptItem `json:"items"`
		Text    string               `json:"text"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receiptResp))
	assert.Equal(t, buyer.ID, receiptResp.Receipt.UserID)
	require.Len(t, receiptResp.Items, 1)
	assert.Contains(t, receiptResp.Text, "Total: $20.00\n")

	// The owner-assisted path records with the owner role.
	item2, err := s.catalogue.Create(ctx, models.Item{Article: "Chair", Depot: "South", Price: 5})
	require.NoError(t, err)
	w = s.do(t, http.MethodPost, "/api/v1/sales", token, gin.H{
		"actor_id": buyer.ID,
		"role":     "ignored",
		"item_ids": []string{item2.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.ReceiptText, "Role: owner\n")
}

func TestPurchaseUnknownActor(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	item, err := s.catalogue.Create(ctx, models.Item{Article: "Lamp", Price: 20})
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/api/v1/purchases", "", gin.H{
		"actor_id": "ghost",
		"role":     "buyer",
		"item_ids": []string{item.ID},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	w := s.do(t, http.MethodPost, "/api/v1/users", token, gin.H{"name": "Alice", "phone": "555"})
	require.Equal(t, http.StatusCreated, w.Code)
	var alice models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alice))

	w = s.do(t, http.MethodPost, "/api/v1/users", token, gin.H{"name": "Alice"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Public read.
	w = s.do(t, http.MethodGet, "/api/v1/users/"+alice.ID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/users/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Duplicate names all come back from suggest.
	w = s.do(t, http.MethodGet, "/api/v1/users/suggest?name=Alice", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var suggest struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &suggest))
	assert.Len(t, suggest.IDs, 2)

	w = s.do(t, http.MethodGet, "/api/v1/users/suggest", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserReportEndpoint(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	alice, err := s.ledger.CreateUser(ctx, "Alice", "")
	require.NoError(t, err)
	item, err := s.catalogue.Create(ctx, models.Item{
		Article: "Lamp", Depot: "North", Price: 100, SellerID: alice.ID,
	})
	require.NoError(t, err)
	require.NoError(t, s.catalogue.MarkSold(ctx, []string{item.ID}))

	w := s.do(t, http.MethodGet, "/api/v1/users/"+alice.ID+"/report", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Report service.UserReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Report.SoldCount)
	assert.Equal(t, 100.0, resp.Report.GrossSold)
	assert.Equal(t, 75.0, resp.Report.SellerIncome)
}

func TestReconciliationEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	ctx := context.Background()

	buyer, err := s.ledger.CreateUser(ctx, "Bob", "")
	require.NoError(t, err)
	item, err := s.catalogue.Create(ctx, models.Item{Article: "Lamp", Price: 20})
	require.NoError(t, err)
	_, err = s.ledger.AppendReceipt(ctx, buyer.ID, models.RoleBuyer,
		[]store.Line{{ItemID: item.ID, Article: "Lamp", Price: 20}})
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/v1/reconciliation", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report service.ReconcileReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Len(t, report.ReceiptedStillAvailable, 1)

	w = s.do(t, http.MethodPost, "/api/v1/reconciliation/repair", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Consistent())
}

func TestListingServedFromWarmSnapshot(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	item, err := s.catalogue.Create(ctx, models.Item{Article: "Lamp", Depot: "North", Price: 20})
	require.NoError(t, err)
	sold, err := s.catalogue.Create(ctx, models.Item{Article: "Chair", Depot: "South", Price: 5})
	require.NoError(t, err)
	require.NoError(t, s.catalogue.MarkSold(ctx, []string{sold.ID}))
	s.worker.Reload(ctx)

	// Diverge the file from the snapshot: a warm read must show the
	// snapshot, not the file.
	require.NoError(t, s.catalogue.Delete(ctx, []string{item.ID}))

	w := s.do(t, http.MethodGet, "/api/v1/catalogue", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Items []models.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing.Items, 1)
	assert.Equal(t, item.ID, listing.Items[0].ID)

	// Filtered queries bypass the snapshot and read the file directly.
	w = s.do(t, http.MethodGet, "/api/v1/catalogue?q=Lamp", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Empty(t, listing.Items)
}

func TestCommissionQuoteEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	item, err := s.catalogue.Create(context.Background(), models.Item{Article: "Lamp", Price: 100})
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/api/v1/commission/quote", token, gin.H{
		"item_ids": []string{item.ID},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var quote service.CommissionQuote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	assert.Equal(t, 100.0, quote.Total)
	assert.Equal(t, 25.0, quote.DepotShare)
	assert.Equal(t, 75.0, quote.NetShare)
}
