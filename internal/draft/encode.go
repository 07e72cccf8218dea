package draft

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WireItem is the flattened line-item shape the quote create/update endpoints
// accept. ParentIndex references a position within this same array.
type WireItem struct {
	ProductID   *uuid.UUID      `json:"product_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	IsCustom    bool            `json:"is_custom"`
	SortOrder   int             `json:"sort_order"`
	ParentIndex *int            `json:"parent_index,omitempty"`
	LineType    string          `json:"line_type,omitempty"`
}

// Payload is the full quote submission body. Metadata fields are emitted only
// when the user set a value; absent fields let the server apply its defaults.
type Payload struct {
	CustomerID          uuid.UUID   `json:"customer_id"`
	Items               []WireItem  `json:"items"`
	ValidUntil          string      `json:"valid_until,omitempty"`
	TermsAndConditions  string      `json:"terms_and_conditions,omitempty"`
	Notes               string      `json:"notes,omitempty"`
	DepositAmount       string      `json:"deposit_amount,omitempty"`
	Temperature         string      `json:"temperature,omitempty"`
	DiscountTemplateIDs []uuid.UUID `json:"discount_template_ids,omitempty"`
}

// Encode flattens the item tree into submission order (each parent followed by
// its extras), drops lines that fail validation (empty description,
// non-positive quantity, negative unit price), and resolves each surviving
// extra's parent reference to the parent's position in the filtered array.
// An extra whose parent was filtered out is emitted top-level; that is the
// defined fallback, not an error. Returns ErrNoValidItems when nothing
// survives.
func (q *Quote) Encode() ([]WireItem, error) {
	// Flatten first, remembering each flat index's parent flat index.
	type flatItem struct {
		item   *Item
		parent int // flat index of parent, -1 for top-level
	}
	var flat []flatItem
	for _, it := range q.Items {
		parentIdx := len(flat)
		flat = append(flat, flatItem{item: it, parent: -1})
		for _, ex := range it.Extras {
			flat = append(flat, flatItem{item: ex, parent: parentIdx})
		}
	}

	// Filter, recording where each original index landed.
	position := make(map[int]int)
	var survivors []flatItem
	for i, fi := range flat {
		if !fi.item.valid() {
			continue
		}
		position[i] = len(survivors)
		survivors = append(survivors, fi)
	}
	if len(survivors) == 0 {
		return nil, ErrNoValidItems
	}

	out := make([]WireItem, len(survivors))
	for i, fi := range survivors {
		wi := WireItem{
			ProductID:   fi.item.ProductID,
			Description: fi.item.Description,
			Quantity:    fi.item.Quantity,
			UnitPrice:   fi.item.UnitPrice,
			IsCustom:    fi.item.IsCustom || fi.item.ProductID == nil,
			SortOrder:   i,
			LineType:    fi.item.LineType,
		}
		if fi.parent >= 0 {
			if pos, ok := position[fi.parent]; ok {
				p := pos
				wi.ParentIndex = &p
			}
		}
		out[i] = wi
	}
	return out, nil
}

// BuildPayload encodes the draft and attaches the metadata the user set.
func (q *Quote) BuildPayload(customerID uuid.UUID) (*Payload, error) {
	items, err := q.Encode()
	if err != nil {
		return nil, err
	}
	return &Payload{
		CustomerID:          customerID,
		Items:               items,
		ValidUntil:          q.ValidUntil,
		TermsAndConditions:  q.TermsAndConditions,
		Notes:               q.Notes,
		DepositAmount:       q.DepositAmount,
		Temperature:         q.Temperature,
		DiscountTemplateIDs: q.DiscountTemplateIDs,
	}, nil
}
