package purchase

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/gudang-ops/gudang-ops/internal/warehouse"
)

func newTestHandler(t *testing.T) (http.Handler, *memoryMaterials) {
	t.Helper()
	svc, _, materials := newTestService(t)
	h := NewHandler(nil, svc)
	r := chi.NewRouter()
	r.Route("/purchases", h.MountRoutes)
	return r, materials
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(warehouse.OwnerHeader, testOwner)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndCompleteFlow(t *testing.T) {
	h, materials := newTestHandler(t)
	materials.put(warehouse.Material{
		ID: "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", OwnerID: testOwner,
		Name: "Gula", Unit: "kg", Stock: 10, WAC: 100, UnitPrice: 100,
	})

	body := `{"supplier":"Toko A","items":[{"material_id":"aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa","name":"Gula","unit":"kg","qty":10,"unit_price":200}]}`
	rec := doRequest(t, h, http.MethodPost, "/purchases/", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Purchase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, StatusPending, created.Status)

	rec = doRequest(t, h, http.MethodPost, "/purchases/"+created.ID+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.InDelta(t, 20.0, materials.get("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa").Stock, 0.0001)

	// Completing again conflicts with the lifecycle.
	rec = doRequest(t, h, http.MethodPost, "/purchases/"+created.ID+"/complete", "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerCreateValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/purchases/", `{"supplier":"Toko A","items":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/purchases/", `{"supplier":"Toko A","items":[{"name":"Gula","qty":-1}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerGetUnknown(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/purchases/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerOwnerRequired(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/purchases/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
