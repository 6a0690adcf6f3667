// Package repository contains data access logic separated from HTTP handlers.
// This file defines repository methods for the attraction catalog.  An
// attraction is a bookable ride or show with a ticket price and a fixed
// capacity per time slot.
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"       // errors is used to match sentinel values
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kashf99/park-booking/internal/model"
)

// AttractionRepo encapsulates all database queries related to attractions.
type AttractionRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewAttractionRepo constructs an AttractionRepo with the provided DB handle.
func NewAttractionRepo(db *sql.DB) *AttractionRepo {
	return &AttractionRepo{db: db}
}

const attractionColumns = `id, name, description, location, opening_time, closing_time,
        ticket_price_cents, capacity_per_slot, image_url, image_key, is_active, created_at, updated_at`

// AttractionQuery holds pagination and search options for List.
type AttractionQuery struct {
	Page            int    // 1-based page number
	Limit           int    // page size
	Search          string // case-insensitive match on name, description or location
	IncludeInactive bool   // include soft-deleted attractions
}

// Create inserts a new attraction.  A new uuid is assigned when a.ID is
// empty.  Duplicate names return ErrConflict.
func (r *AttractionRepo) Create(ctx context.Context, a *model.Attraction) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	const q = `INSERT INTO attractions (id, name, description, location, opening_time, closing_time,
        ticket_price_cents, capacity_per_slot, image_url, image_key, is_active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.Name, a.Description, a.Location, a.OpeningTime, a.ClosingTime,
		a.TicketPriceCents, a.CapacityPerSlot, a.ImageURL, a.ImageKey, a.IsActive, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert attraction: %w", err)
	}
	return nil
}

// GetByID fetches an attraction by id regardless of its active flag.
// It returns ErrNotFound if no row is found.
func (r *AttractionRepo) GetByID(ctx context.Context, id string) (*model.Attraction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+attractionColumns+` FROM attractions WHERE id = ?`, id)
	a, err := scanAttraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// List returns one page of attractions ordered by creation time
// descending, along with the total number of matching rows.
func (r *AttractionRepo) List(ctx context.Context, q AttractionQuery) ([]model.Attraction, int, error) {
	where := []string{}
	args := []any{}
	if !q.IncludeInactive {
		where = append(where, "is_active = 1")
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(location) LIKE ?)")
		args = append(args, like, like, like)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attractions`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(q.Page, q.Limit)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attractionColumns+` FROM attractions`+cond+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Attraction, 0, limit)
	for rows.Next() {
		a, err := scanAttraction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

// Update writes every mutable field of a back to its row.  It returns
// ErrNotFound when the attraction does not exist and ErrConflict when
// the new name is taken.
func (r *AttractionRepo) Update(ctx context.Context, a *model.Attraction) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE attractions SET name = ?, description = ?, location = ?, opening_time = ?, closing_time = ?,
         ticket_price_cents = ?, capacity_per_slot = ?, image_url = ?, image_key = ?, is_active = ?, updated_at = ?
         WHERE id = ?`,
		a.Name, a.Description, a.Location, a.OpeningTime, a.ClosingTime,
		a.TicketPriceCents, a.CapacityPerSlot, a.ImageURL, a.ImageKey, a.IsActive, a.UpdatedAt, a.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return fmt.Errorf("update attraction: %w", err)
	}
	return r.requireRow(ctx, res, a.ID)
}

// SetActive flips the soft-delete flag of an attraction.
func (r *AttractionRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE attractions SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set attraction active: %w", err)
	}
	return r.requireRow(ctx, res, id)
}

// requireRow turns a zero-row UPDATE into ErrNotFound.  MySQL reports
// zero affected rows when the values did not change, so existence is
// checked explicitly before giving up.
func (r *AttractionRepo) requireRow(ctx context.Context, res sql.Result, id string) error {
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM attractions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanAttraction(row rowScanner) (*model.Attraction, error) {
	var a model.Attraction
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Location, &a.OpeningTime, &a.ClosingTime,
		&a.TicketPriceCents, &a.CapacityPerSlot, &a.ImageURL, &a.ImageKey, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// normalizePage clamps pagination input to page >= 1 and 1 <= limit <= 100.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
