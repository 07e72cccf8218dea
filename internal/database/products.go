package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, name, description, base_price, unit, boxes_per_product, installation_hours, is_extra, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.Unit,
		&p.BoxesPerProduct, &p.InstallationHours, &p.IsExtra, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListProducts returns active catalog products. When IncludeExtras is false,
// products flagged is_extra are omitted (the product selector never offers them
// as top-level lines).
type ListProductsParams struct {
	IncludeExtras bool
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE is_active = TRUE AND ($1 OR is_extra = FALSE)
		 ORDER BY name`,
		arg.IncludeExtras)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND is_active = TRUE`, id))
}

type CreateProductParams struct {
	Name              string
	Description       pgtype.Text
	BasePrice         pgtype.Numeric
	Unit              string
	BoxesPerProduct   pgtype.Numeric
	InstallationHours pgtype.Numeric
	IsExtra           bool
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx,
		`INSERT INTO products (name, description, base_price, unit, boxes_per_product, installation_hours, is_extra)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+productColumns,
		arg.Name, arg.Description, arg.BasePrice, arg.Unit, arg.BoxesPerProduct,
		arg.InstallationHours, arg.IsExtra))
}

type UpdateProductParams struct {
	Name              string
	Description       pgtype.Text
	BasePrice         pgtype.Numeric
	Unit              string
	BoxesPerProduct   pgtype.Numeric
	InstallationHours pgtype.Numeric
	IsExtra           bool
	ID                uuid.UUID
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx,
		`UPDATE products
		 SET name = $1, description = $2, base_price = $3, unit = $4,
		     boxes_per_product = $5, installation_hours = $6, is_extra = $7, updated_at = now()
		 WHERE id = $8 AND is_active = TRUE
		 RETURNING `+productColumns,
		arg.Name, arg.Description, arg.BasePrice, arg.Unit, arg.BoxesPerProduct,
		arg.InstallationHours, arg.IsExtra, arg.ID))
}

func (q *Queries) SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = now()
		 WHERE id = $1 AND is_active = TRUE
		 RETURNING id`, id).Scan(&out)
	return out, err
}

type AddProductExtraParams struct {
	ProductID      uuid.UUID
	ExtraProductID uuid.UUID
	SortOrder      int32
}

func (q *Queries) AddProductExtra(ctx context.Context, arg AddProductExtraParams) (ProductExtra, error) {
	var pe ProductExtra
	err := q.db.QueryRow(ctx,
		`INSERT INTO product_extras (product_id, extra_product_id, sort_order)
		 VALUES ($1, $2, $3)
		 RETURNING product_id, extra_product_id, sort_order`,
		arg.ProductID, arg.ExtraProductID, arg.SortOrder).
		Scan(&pe.ProductID, &pe.ExtraProductID, &pe.SortOrder)
	return pe, err
}

type RemoveProductExtraParams struct {
	ProductID      uuid.UUID
	ExtraProductID uuid.UUID
}

func (q *Queries) RemoveProductExtra(ctx context.Context, arg RemoveProductExtraParams) error {
	_, err := q.db.Exec(ctx,
		`DELETE FROM product_extras WHERE product_id = $1 AND extra_product_id = $2`,
		arg.ProductID, arg.ExtraProductID)
	return err
}

// ListProductExtras returns the optional-extra products linked to a product,
// in their configured order.
func (q *Queries) ListProductExtras(ctx context.Context, productID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx,
		`SELECT p.id, p.name, p.description, p.base_price, p.unit, p.boxes_per_product,
		        p.installation_hours, p.is_extra, p.is_active, p.created_at, p.updated_at
		 FROM product_extras pe
		 JOIN products p ON p.id = pe.extra_product_id
		 WHERE pe.product_id = $1 AND p.is_active = TRUE
		 ORDER BY pe.sort_order`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
