package warehouse

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const testMaterialID = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"

func newTestHandler(store *memoryStore) http.Handler {
	h := NewHandler(nil, NewEngines(store, Options{}))
	r := chi.NewRouter()
	r.Route("/warehouse", h.MountRoutes)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRequiresOwnerHeader(t *testing.T) {
	h := newTestHandler(newMemoryStore())

	rec := doRequest(t, h, http.MethodGet, "/warehouse/stats", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/warehouse/stats", "not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerStats(t *testing.T) {
	store := newMemoryStore()
	store.put(Material{ID: testMaterialID, OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 10, WAC: 100, UnitPrice: 100})

	rec := doRequest(t, newTestHandler(store), http.MethodGet, "/warehouse/stats", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.TotalItems)
	require.InDelta(t, 1000.0, stats.TotalValue, 0.0001)
}

func TestHandlerRecalculate(t *testing.T) {
	store := newMemoryStore()
	store.put(Material{ID: testMaterialID, OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 10, WAC: 250, UnitPrice: 250})
	store.purchases = []Purchase{
		{ID: "p-1", OwnerID: testOwner, Items: []RawLineItem{{MaterialID: testMaterialID, Qty: 10, UnitPrice: 100}}},
	}

	body := `{"item_id":"` + testMaterialID + `","dry_run":false}`
	rec := doRequest(t, newTestHandler(store), http.MethodPost, "/warehouse/recalculate", testOwner, body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.InDelta(t, 100.0, store.get(testMaterialID).WAC, 0.0001)
}

func TestHandlerRecalculateRejectsBadItemID(t *testing.T) {
	rec := doRequest(t, newTestHandler(newMemoryStore()), http.MethodPost, "/warehouse/recalculate", testOwner, `{"item_id":"abc"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerFixItemNotFound(t *testing.T) {
	rec := doRequest(t, newTestHandler(newMemoryStore()), http.MethodPost, "/warehouse/items/"+testMaterialID+"/fix", testOwner, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRecalculateConflict(t *testing.T) {
	store := newMemoryStore()
	store.put(Material{ID: testMaterialID, OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 10, WAC: 250, UnitPrice: 250})
	store.purchases = []Purchase{
		{ID: "p-1", OwnerID: testOwner, Items: []RawLineItem{{MaterialID: testMaterialID, Qty: 10, UnitPrice: 100}}},
	}
	store.forceWACErr = ErrVersionConflict

	rec := doRequest(t, newTestHandler(store), http.MethodPost, "/warehouse/recalculate", testOwner, "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerIntegrityReport(t *testing.T) {
	store := newMemoryStore()
	store.put(Material{ID: testMaterialID, OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: -2, WAC: 100, UnitPrice: 100})

	rec := doRequest(t, newTestHandler(store), http.MethodGet, "/warehouse/integrity", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report IntegrityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.False(t, report.Healthy)
	require.Len(t, report.Issues, 1)
}

func TestHandlerLowStock(t *testing.T) {
	store := newMemoryStore()
	store.put(Material{ID: testMaterialID, OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 1, WAC: 100, UnitPrice: 100, MinStock: 5})

	rec := doRequest(t, newTestHandler(store), http.MethodGet, "/warehouse/low-stock", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Items []Material `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Items, 1)
}
