package warehouse

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func findIntegrityIssue(t *testing.T, report IntegrityReport, materialID, fragment string) IntegrityIssue {
	t.Helper()
	for _, issue := range report.Issues {
		if issue.MaterialID == materialID && strings.Contains(issue.Message, fragment) {
			return issue
		}
	}
	t.Fatalf("no issue for %s containing %q in %+v", materialID, fragment, report.Issues)
	return IntegrityIssue{}
}

func TestCheckIntegrityHealthy(t *testing.T) {
	store := newMemoryStore()
	store.put(Material{ID: "m-1", OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 10, WAC: 100, UnitPrice: 100})

	v := NewValidator(store, testOwner)
	report, err := v.CheckIntegrity(context.Background())
	require.NoError(t, err)
	require.True(t, report.Healthy)
	require.Equal(t, 1, report.Total)
	require.Empty(t, report.Issues)
}

func TestCheckIntegrityFindings(t *testing.T) {
	expired := time.Now().Add(-48 * time.Hour)
	store := newMemoryStore()
	store.put(Material{ID: "m-neg", OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: -3, WAC: 100, UnitPrice: 100})
	store.put(Material{ID: "m-unit", OwnerID: testOwner, Name: "Tepung", Unit: "", Stock: 5, WAC: 100, UnitPrice: 100})
	store.put(Material{ID: "m-exp", OwnerID: testOwner, Name: "Telur", Unit: "kg", Stock: 2, WAC: 100, UnitPrice: 100, ExpiresAt: &expired})
	store.put(Material{ID: "m-dup", OwnerID: testOwner, Name: "GULA", Unit: "kg", Stock: 1, WAC: 100, UnitPrice: 100})
	store.put(Material{ID: "m-price", OwnerID: testOwner, Name: "Minyak", Unit: "liter", Stock: 4, WAC: 0, UnitPrice: 0})

	v := NewValidator(store, testOwner)
	report, err := v.CheckIntegrity(context.Background())
	require.NoError(t, err)
	require.False(t, report.Healthy)

	require.Equal(t, SeverityHigh, findIntegrityIssue(t, report, "m-neg", "negative stock").Severity)
	require.Equal(t, SeverityMedium, findIntegrityIssue(t, report, "m-unit", "missing unit").Severity)
	require.Equal(t, SeverityMedium, findIntegrityIssue(t, report, "m-exp", "expired").Severity)
	require.Equal(t, SeverityLow, findIntegrityIssue(t, report, "m-price", "unit price").Severity)
	require.Equal(t, SeverityLow, findIntegrityIssue(t, report, "m-price", "average cost").Severity)

	// Exactly one of the two same-named rows is flagged as the duplicate.
	dups := 0
	for _, issue := range report.Issues {
		if strings.Contains(issue.Message, "duplicate name") {
			dups++
		}
	}
	require.Equal(t, 1, dups)
}

func TestCheckIntegrityUnstockedMissingUnitIsLow(t *testing.T) {
	store := newMemoryStore()
	store.put(Material{ID: "m-1", OwnerID: testOwner, Name: "Garam", Unit: "", Stock: 0, WAC: 100, UnitPrice: 100})

	v := NewValidator(store, testOwner)
	report, err := v.CheckIntegrity(context.Background())
	require.NoError(t, err)
	require.Equal(t, SeverityLow, findIntegrityIssue(t, report, "m-1", "missing unit").Severity)
}

func TestCheckConsistencyNoDrift(t *testing.T) {
	store := newMemoryStore()
	store.put(Material{ID: "m-1", OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 10, WAC: 100, UnitPrice: 100})
	store.purchases = []Purchase{{
		ID: "p-1", OwnerID: testOwner,
		Items: []RawLineItem{{MaterialID: "m-1", Qty: 10, UnitPrice: 100}},
	}}

	v := NewValidator(store, testOwner)
	report, err := v.CheckConsistency(context.Background())
	require.NoError(t, err)
	require.True(t, report.Healthy)
}

func TestCheckConsistencyDriftSeverities(t *testing.T) {
	run := func(recorded float64) *ConsistencyIssue {
		store := newMemoryStore()
		store.put(Material{ID: "m-1", OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 10, WAC: recorded, UnitPrice: recorded})
		store.purchases = []Purchase{{
			ID: "p-1", OwnerID: testOwner,
			Items: []RawLineItem{{MaterialID: "m-1", Qty: 10, UnitPrice: 100}},
		}}
		report, err := NewValidator(store, testOwner).CheckConsistency(context.Background())
		require.NoError(t, err)
		if len(report.Issues) == 0 {
			return nil
		}
		return &report.Issues[0]
	}

	// History says 100 throughout.
	require.Nil(t, run(100))
	require.Nil(t, run(108)) // 7.4% drift, below the report threshold

	issue := run(115) // 13% drift
	require.NotNil(t, issue)
	require.Equal(t, SeverityLow, issue.Severity)

	issue = run(120) // 16.7% drift
	require.NotNil(t, issue)
	require.Equal(t, SeverityMedium, issue.Severity)
	require.InDelta(t, 100.0, issue.RecomputedWAC, 0.0001)

	issue = run(250) // 60% drift
	require.NotNil(t, issue)
	require.Equal(t, SeverityHigh, issue.Severity)
}

func TestCheckConsistencyRecomputedAboveRecorded(t *testing.T) {
	// Recorded 100 while history says 115: drift relative to the recorded
	// value is 15%, enough for a medium finding.
	store := newMemoryStore()
	store.put(Material{ID: "m-1", OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 10, WAC: 100, UnitPrice: 100})
	store.purchases = []Purchase{{
		ID: "p-1", OwnerID: testOwner,
		Items: []RawLineItem{{MaterialID: "m-1", Qty: 10, UnitPrice: 115}},
	}}

	report, err := NewValidator(store, testOwner).CheckConsistency(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	require.Equal(t, SeverityMedium, report.Issues[0].Severity)
	require.NotEmpty(t, report.Issues[0].Suggestions)
}

func TestCheckConsistencyStockWithoutHistory(t *testing.T) {
	store := newMemoryStore()
	store.put(Material{ID: "m-1", OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 7, WAC: 100, UnitPrice: 100})

	report, err := NewValidator(store, testOwner).CheckConsistency(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	require.Equal(t, SeverityMedium, report.Issues[0].Severity)
}

func TestCheckConsistencyMatchesByNameAndUnit(t *testing.T) {
	store := newMemoryStore()
	store.put(Material{ID: "m-1", OwnerID: testOwner, Name: "Tepung Terigu", Unit: "kg", Stock: 10, WAC: 100, UnitPrice: 100})
	store.purchases = []Purchase{
		{ID: "p-1", OwnerID: testOwner, Items: []RawLineItem{
			// Legacy row: no id, synonym unit, different casing.
			{Name: "TEPUNG TERIGU", Satuan: "kilogram", Jumlah: 10, Harga: 100},
			// Same name but a different unit family must not be counted.
			{Name: "Tepung Terigu", Unit: "pcs", Qty: 100, UnitPrice: 5},
		}},
	}

	qty, value := SumPurchaseHistory(store.get("m-1"), store.purchases)
	require.InDelta(t, 10.0, qty, 0.0001)
	require.InDelta(t, 1000.0, value, 0.0001)

	report, err := NewValidator(store, testOwner).CheckConsistency(context.Background())
	require.NoError(t, err)
	require.True(t, report.Healthy)
}

func TestSumPurchaseHistorySkipsNonPositiveQty(t *testing.T) {
	m := Material{ID: "m-1", Name: "Gula", Unit: "kg"}
	qty, value := SumPurchaseHistory(m, []Purchase{{
		Items: []RawLineItem{
			{MaterialID: "m-1", Qty: -4, UnitPrice: 100},
			{MaterialID: "m-1", Qty: 6, UnitPrice: 100},
		},
	}})
	require.InDelta(t, 6.0, qty, 0.0001)
	require.InDelta(t, 600.0, value, 0.0001)
}
