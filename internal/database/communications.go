package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const communicationColumns = `id, customer_id, channel, direction, subject, body, thread_id, sent_at, created_by, created_at`

func scanCommunication(row interface{ Scan(...any) error }) (Communication, error) {
	var c Communication
	err := row.Scan(&c.ID, &c.CustomerID, &c.Channel, &c.Direction, &c.Subject, &c.Body,
		&c.ThreadID, &c.SentAt, &c.CreatedBy, &c.CreatedAt)
	return c, err
}

type ListCommunicationsByCustomerParams struct {
	CustomerID uuid.UUID
	Channel    string
}

// ListCommunicationsByCustomer returns a customer's messages oldest-first so
// thread grouping preserves conversation order.
func (q *Queries) ListCommunicationsByCustomer(ctx context.Context, arg ListCommunicationsByCustomerParams) ([]Communication, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+communicationColumns+`
		 FROM communications
		 WHERE customer_id = $1 AND ($2 = '' OR channel = $2)
		 ORDER BY sent_at`,
		arg.CustomerID, arg.Channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comms []Communication
	for rows.Next() {
		c, err := scanCommunication(rows)
		if err != nil {
			return nil, err
		}
		comms = append(comms, c)
	}
	return comms, rows.Err()
}

type CreateCommunicationParams struct {
	CustomerID uuid.UUID
	Channel    string
	Direction  string
	Subject    pgtype.Text
	Body       string
	ThreadID   pgtype.Text
	SentAt     time.Time
	CreatedBy  pgtype.UUID
}

func (q *Queries) CreateCommunication(ctx context.Context, arg CreateCommunicationParams) (Communication, error) {
	return scanCommunication(q.db.QueryRow(ctx,
		`INSERT INTO communications (customer_id, channel, direction, subject, body, thread_id, sent_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+communicationColumns,
		arg.CustomerID, arg.Channel, arg.Direction, arg.Subject, arg.Body,
		arg.ThreadID, arg.SentAt, arg.CreatedBy))
}
