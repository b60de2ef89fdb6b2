package warehouse

import "strings"

// RawLineItem mirrors a purchase line item exactly as stored. Several field
// names changed over the life of the product, so the same concept can arrive
// under any of the listed aliases; Canonical folds them into one shape before
// any business rule runs.
type RawLineItem struct {
	// Material reference aliases, oldest last.
	MaterialID      string `json:"materialId,omitempty"`
	ItemID          string `json:"itemId,omitempty"`
	WarehouseItemID string `json:"warehouseItemId,omitempty"`
	BahanID         string `json:"bahanId,omitempty"`

	Name        string `json:"name,omitempty"`
	ProductName string `json:"productName,omitempty"`

	Unit   string `json:"unit,omitempty"`
	Satuan string `json:"satuan,omitempty"`

	// Quantity aliases.
	Quantity float64 `json:"quantity,omitempty"`
	Qty      float64 `json:"qty,omitempty"`
	Jumlah   float64 `json:"jumlah,omitempty"`

	// Price aliases. Subtotal variants are used when no unit price was stored.
	UnitPrice float64 `json:"unitPrice,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Harga     float64 `json:"harga,omitempty"`
	Subtotal  float64 `json:"subtotal,omitempty"`
	Total     float64 `json:"total,omitempty"`

	Note string `json:"note,omitempty"`
}

// LineItem is the canonical line-item shape the engine works with.
type LineItem struct {
	MaterialID string
	Name       string
	Unit       string
	Qty        float64
	UnitPrice  float64
	Note       string
}

// Canonical resolves field-name aliases into a single LineItem. The unit
// price falls back to subtotal divided by quantity, then to zero.
func (r RawLineItem) Canonical() LineItem {
	item := LineItem{
		MaterialID: firstNonEmpty(r.MaterialID, r.ItemID, r.WarehouseItemID, r.BahanID),
		Name:       strings.TrimSpace(firstNonEmpty(r.Name, r.ProductName)),
		Unit:       strings.TrimSpace(firstNonEmpty(r.Unit, r.Satuan)),
		Qty:        firstPositive(r.Quantity, r.Qty, r.Jumlah),
		Note:       r.Note,
	}

	item.UnitPrice = firstPositive(r.UnitPrice, r.Price, r.Harga)
	if item.UnitPrice <= 0 && item.Qty > 0 {
		if subtotal := firstPositive(r.Subtotal, r.Total); subtotal > 0 {
			item.UnitPrice = subtotal / item.Qty
		}
	}
	return item
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
