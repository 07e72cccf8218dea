// Package draft implements in-memory assembly of a quote before submission:
// an ordered list of line items where a top-level item may own optional-extra
// child items, plus synthesis of delivery/installation lines from a cost
// estimate and encoding into the wire shape the quote endpoints accept.
//
// A draft belongs to a single editing session and is not safe for concurrent
// use; the product cache and estimate watcher do their own locking because
// fetches complete on other goroutines.
package draft

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradeline-crm/api/internal/enum"
)

// Errors returned by draft operations.
var (
	ErrIndexOutOfRange      = errors.New("item index out of range")
	ErrNoValidItems         = errors.New("at least one valid item is required")
	ErrZeroEstimate         = errors.New("estimate has no delivery or installation cost")
	ErrDeliveryLinesPresent = errors.New("delivery/installation lines already added")
)

// legacyDeliveryLabel is the combined description older quotes used before
// line_type existed. Presence checks still honour it.
const legacyDeliveryLabel = "Delivery & Installation"

// ProductDetail is the catalog data the draft needs to resolve a line item:
// pricing, extras on offer, and installation effort.
type ProductDetail struct {
	ID                uuid.UUID
	Name              string
	BasePrice         decimal.Decimal
	Unit              string
	BoxesPerProduct   decimal.Decimal
	InstallationHours decimal.Decimal
	OptionalExtras    []ProductDetail
}

// Item is a single draft line. Top-level items may carry Extras; extras never
// nest further.
type Item struct {
	ProductID   *uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	IsCustom    bool
	LineType    string // "", "DELIVERY" or "INSTALLATION"
	Extras      []*Item
}

// lineTotal is the display total for one line: negative unit prices count as
// zero (a clamp, not a rejection; submit-time validation rejects them).
func (it *Item) lineTotal() decimal.Decimal {
	price := it.UnitPrice
	if price.IsNegative() {
		price = decimal.Zero
	}
	return price.Mul(it.Quantity)
}

// valid reports whether the line survives submission filtering.
func (it *Item) valid() bool {
	return it.Description != "" &&
		it.Quantity.IsPositive() &&
		!it.UnitPrice.IsNegative()
}

// Quote is a draft quote being assembled. Items is the ordered top-level list.
type Quote struct {
	Items []*Item

	// Metadata sent with the payload only when set; absent fields let the
	// server apply its defaults (e.g. default deposit percent).
	ValidUntil          string
	TermsAndConditions  string
	Notes               string
	DepositAmount       string
	Temperature         string
	DiscountTemplateIDs []uuid.UUID
	Postcode            string

	cache   *ProductCache
	catalog map[uuid.UUID]ProductDetail
}

// NewQuote creates an empty draft.
func NewQuote() *Quote {
	return &Quote{
		cache:   NewProductCache(),
		catalog: make(map[uuid.UUID]ProductDetail),
	}
}

// Cache exposes the draft's product detail cache.
func (q *Quote) Cache() *ProductCache {
	return q.cache
}

// RegisterCatalog records catalog list entries used as a fallback when the
// full product detail has not arrived yet.
func (q *Quote) RegisterCatalog(products []ProductDetail) {
	for _, p := range products {
		q.catalog[p.ID] = p
	}
}

// AddItem appends a blank custom line and returns it.
func (q *Quote) AddItem() *Item {
	it := &Item{IsCustom: true, Quantity: decimal.NewFromInt(1)}
	q.Items = append(q.Items, it)
	return it
}

// RemoveItem deletes the top-level item at index i. Its extras are promoted
// to top-level in place, preserving their order.
func (q *Quote) RemoveItem(i int) error {
	if i < 0 || i >= len(q.Items) {
		return ErrIndexOutOfRange
	}
	promoted := q.Items[i].Extras
	rest := append([]*Item{}, q.Items[i+1:]...)
	q.Items = append(q.Items[:i], promoted...)
	q.Items = append(q.Items, rest...)
	return nil
}

// RemoveExtra deletes the extra at index j under the top-level item at i.
func (q *Quote) RemoveExtra(i, j int) error {
	if i < 0 || i >= len(q.Items) {
		return ErrIndexOutOfRange
	}
	parent := q.Items[i]
	if j < 0 || j >= len(parent.Extras) {
		return ErrIndexOutOfRange
	}
	parent.Extras = append(parent.Extras[:j], parent.Extras[j+1:]...)
	return nil
}

// FetchDetailFunc loads the full product detail for a catalog product.
type FetchDetailFunc func(id uuid.UUID) (ProductDetail, error)

// AttachProduct binds the catalog product to the top-level item at index i,
// overwriting description and unit price from the product's base values, and
// starts an asynchronous detail fetch so extras and installation hours
// become available. The returned channel closes when the fetch settles.
func (q *Quote) AttachProduct(i int, p ProductDetail, fetch FetchDetailFunc) (<-chan struct{}, error) {
	if i < 0 || i >= len(q.Items) {
		return nil, ErrIndexOutOfRange
	}
	it := q.Items[i]
	id := p.ID
	it.ProductID = &id
	it.Description = p.Name
	it.UnitPrice = p.BasePrice
	it.IsCustom = false
	q.catalog[p.ID] = p

	if fetch == nil {
		done := make(chan struct{})
		close(done)
		return done, nil
	}
	return q.cache.Fetch(id, fetch), nil
}

// DetachProduct switches the item at index i back to a custom line. The
// typed description and price are kept so the user loses nothing.
func (q *Quote) DetachProduct(i int) error {
	if i < 0 || i >= len(q.Items) {
		return ErrIndexOutOfRange
	}
	it := q.Items[i]
	it.ProductID = nil
	it.IsCustom = true
	return nil
}

// resolveProduct returns product data for an id: the fully loaded detail when
// the cache has it, otherwise the catalog list entry.
func (q *Quote) resolveProduct(id uuid.UUID) (ProductDetail, bool) {
	if detail, ok := q.cache.Get(id); ok {
		return detail, true
	}
	p, ok := q.catalog[id]
	return p, ok
}

// AddExtra inserts an optional extra under the top-level item at index i.
// Extra quantity follows the parent: parentQty * boxes_per_product when the
// extra is sold "Per Box", otherwise parentQty as-is. The quantity is fixed at
// insertion; later edits to the parent do not ripple down.
func (q *Quote) AddExtra(i int, extra ProductDetail) (*Item, error) {
	if i < 0 || i >= len(q.Items) {
		return nil, ErrIndexOutOfRange
	}
	parent := q.Items[i]

	qty := parent.Quantity
	if extra.Unit == enum.UnitPerBox && !extra.BoxesPerProduct.IsZero() {
		qty = parent.Quantity.Mul(extra.BoxesPerProduct)
	}

	id := extra.ID
	child := &Item{
		ProductID:   &id,
		Description: extra.Name,
		Quantity:    qty,
		UnitPrice:   extra.BasePrice,
	}
	parent.Extras = append(parent.Extras, child)
	return child, nil
}

// Subtotal is the display sum over every line, extras included.
func (q *Quote) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range q.Items {
		total = total.Add(it.lineTotal())
		for _, ex := range it.Extras {
			total = total.Add(ex.lineTotal())
		}
	}
	return total
}

// TotalInstallationHours sums quantity * installation_hours over top-level
// items with a resolved product. Extras never contribute.
func (q *Quote) TotalInstallationHours() decimal.Decimal {
	total := decimal.Zero
	for _, it := range q.Items {
		if it.ProductID == nil {
			continue
		}
		p, ok := q.resolveProduct(*it.ProductID)
		if !ok || p.InstallationHours.IsZero() {
			continue
		}
		total = total.Add(it.Quantity.Mul(p.InstallationHours))
	}
	return total
}
