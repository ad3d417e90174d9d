package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

// ErrNotFound is returned by UpdateByID when no record carries the id.
var ErrNotFound = errors.New("record not found")

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Insert persists a new record and returns its generated id.
	Insert(ctx context.Context, ticket *domain.Ticket) (string, error)
	// UpdateByID atomically applies mutation and returns the post-mutation record.
	UpdateByID(ctx context.Context, id string, mutation domain.TicketMutation) (*domain.Ticket, error)
	// UpdateManyWhere applies mutation to every record matching filter and returns how many changed.
	UpdateManyWhere(ctx context.Context, filter domain.TicketFilter, mutation domain.TicketMutation) (int64, error)
	// FindWhere returns matching records ordered by creation time.
	FindWhere(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error)
}

const ticketColumns = `id::text, topic, text, status, solution, cancellation_reason, created_at, updated_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Insert(ctx context.Context, ticket *domain.Ticket) (string, error) {
	const query = `
        INSERT INTO tickets (topic, text, status, solution, cancellation_reason, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id::text`
	var id string
	err := r.pool.QueryRow(ctx, query,
		ticket.Topic,
		ticket.Text,
		ticket.Status,
		ticket.Solution,
		ticket.CancellationReason,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert ticket: %w", err)
	}
	return id, nil
}

func (r *ticketRepository) UpdateByID(ctx context.Context, id string, mutation domain.TicketMutation) (*domain.Ticket, error) {
	// Ids are UUIDs; anything else can never match a row.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `
        UPDATE tickets SET status=$1,
            solution=COALESCE($2, solution),
            cancellation_reason=COALESCE($3, cancellation_reason),
            updated_at=$4
        WHERE id=$5
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query,
		mutation.Status,
		mutation.Solution,
		mutation.CancellationReason,
		mutation.UpdatedAt,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update ticket %s: %w", id, err)
	}
	return ticket, nil
}

func (r *ticketRepository) UpdateManyWhere(ctx context.Context, filter domain.TicketFilter, mutation domain.TicketMutation) (int64, error) {
	args := []any{mutation.Status, mutation.Solution, mutation.CancellationReason, mutation.UpdatedAt}
	where, args := buildWhere(filter, args)
	query := `UPDATE tickets SET status=$1,
            solution=COALESCE($2, solution),
            cancellation_reason=COALESCE($3, cancellation_reason),
            updated_at=$4
        WHERE ` + where
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update tickets: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (r *ticketRepository) FindWhere(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	where, args := buildWhere(filter, nil)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at ASC, id ASC`, ticketColumns, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

// buildWhere renders filter as a WHERE clause whose placeholders continue after args.
func buildWhere(filter domain.TicketFilter, args []any) (string, []any) {
	clauses := []string{"1=1"}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Topic,
		&ticket.Text,
		&ticket.Status,
		&ticket.Solution,
		&ticket.CancellationReason,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if !ticket.Status.Valid() {
		return nil, fmt.Errorf("ticket %s: unknown status %q", ticket.ID, ticket.Status)
	}
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	ticket.UpdatedAt = ticket.UpdatedAt.UTC()
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
