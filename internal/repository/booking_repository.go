package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kashf99/park-booking/internal/model"
)

// BookingRepo persists bookings and the per-slot occupancy counter.  The
// slot_occupancy table holds one row per (attraction, date, time slot)
// whose reserved column always equals the sum of number_of_tickets over
// the slot's bookings in a capacity-holding status.  Every write that
// changes that sum updates the counter in the same transaction.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB so callers can run health checks.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `booking_id, attraction_id, attraction_name, booking_date, time_slot,
        visitor_email, visitor_name, phone_number, number_of_tickets, ticket_type,
        price_per_ticket_cents, subtotal_cents, tax_cents, discount_cents, total_cents,
        credential_payload, credential_hash, qr_code_image_url,
        booking_status, payment_status, payment_reference,
        is_validated, validation_time, validated_by,
        special_requirements, notes, booking_time, expiry_time, cancellation_time,
        created_at, updated_at`

// ReserveAndCreate admits the booking against its slot and inserts it
// as one transaction.  The occupancy counter is incremented with a
// conditional UPDATE that only matches when the result stays within
// capacity; InnoDB holds the counter row lock until commit, so
// concurrent reservations for the same slot are serialized while other
// slots proceed independently.  When the slot is full a *CapacityError
// carrying the remaining tickets is returned and nothing is written.
//
// Two first bookings of a slot can deadlock between creating the
// counter row and incrementing it; InnoDB rolls one of them back, and
// that one is retried once.
func (r *BookingRepo) ReserveAndCreate(ctx context.Context, b *model.Booking, capacity int) error {
	return retryOnDeadlock(ctx, 2, func() error { return r.reserveOnce(ctx, b, capacity) })
}

func (r *BookingRepo) reserveOnce(ctx context.Context, b *model.Booking, capacity int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reservation: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	slot := b.Slot()
	// Make sure the counter row exists before the conditional increment.
	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO slot_occupancy (attraction_id, booking_date, time_slot, reserved) VALUES (?, ?, ?, 0)`,
		slot.AttractionID, slot.Date, slot.TimeSlot,
	); err != nil {
		return fmt.Errorf("init slot counter: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE slot_occupancy SET reserved = reserved + ?
         WHERE attraction_id = ? AND booking_date = ? AND time_slot = ? AND reserved + ? <= ?`,
		b.NumberOfTickets, slot.AttractionID, slot.Date, slot.TimeSlot, b.NumberOfTickets, capacity,
	)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if n == 0 {
		var reserved int
		if err := tx.QueryRowContext(ctx,
			`SELECT reserved FROM slot_occupancy WHERE attraction_id = ? AND booking_date = ? AND time_slot = ?`,
			slot.AttractionID, slot.Date, slot.TimeSlot,
		).Scan(&reserved); err != nil {
			return fmt.Errorf("read slot counter: %w", err)
		}
		return &CapacityError{Available: max(capacity-reserved, 0)}
	}

	if err := r.insertTx(ctx, tx, b); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}
	committed = true
	return nil
}

func (r *BookingRepo) insertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (booking_id, attraction_id, attraction_name, booking_date, time_slot,
        visitor_email, visitor_name, phone_number, number_of_tickets, ticket_type,
        price_per_ticket_cents, subtotal_cents, tax_cents, discount_cents, total_cents,
        credential_payload, credential_hash, qr_code_image_url,
        booking_status, payment_status, payment_reference,
        is_validated, special_requirements, notes, booking_time, expiry_time)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		b.BookingID, b.AttractionID, b.AttractionName, b.BookingDateString(), b.TimeSlot,
		b.VisitorEmail, b.VisitorName, b.PhoneNumber, b.NumberOfTickets, string(b.TicketType),
		b.PricePerTicketCents, b.SubtotalCents, b.TaxCents, b.DiscountCents, b.TotalCents,
		b.CredentialPayload, b.CredentialHash, b.QRCodeImageURL,
		string(b.BookingStatus), string(b.PaymentStatus), b.PaymentReference,
		b.IsValidated, b.SpecialRequirements, b.Notes, b.BookingTime.UTC(), b.ExpiryTime.UTC(),
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetByID returns the booking with the given id or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, bookingID string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_id = ?`, bookingID)
	return scanBooking(row)
}

// FindByIDAndEmail returns the booking matching both the id and the
// visitor email exactly, or ErrNotFound.
func (r *BookingRepo) FindByIDAndEmail(ctx context.Context, bookingID, email string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE booking_id = ? AND visitor_email = ?`,
		bookingID, email)
	return scanBooking(row)
}

// MarkValidated sets the one-time validation flag.  The UPDATE only
// matches rows that are not yet validated and still hold their slot, so
// of two concurrent calls for the same booking exactly one succeeds, and
// a cancel or expiry that commits first wins over the gate.  A miss is
// reported as ErrAlreadyValidated or ErrBookingClosed.
func (r *BookingRepo) MarkValidated(ctx context.Context, bookingID string, at time.Time, by string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET is_validated = 1, validation_time = ?, validated_by = ?
         WHERE booking_id = ? AND is_validated = 0 AND booking_status IN ('pending', 'confirmed')`,
		at.UTC(), by, bookingID)
	if err != nil {
		return fmt.Errorf("mark validated: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark validated: %w", err)
	}
	if n == 1 {
		return nil
	}
	var (
		validated bool
		status    string
	)
	err = r.db.QueryRowContext(ctx,
		`SELECT is_validated, booking_status FROM bookings WHERE booking_id = ?`, bookingID,
	).Scan(&validated, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("mark validated: %w", err)
	}
	if validated {
		return ErrAlreadyValidated
	}
	return ErrBookingClosed
}

// Transition moves a booking to status `to`.  The current row is locked
// with SELECT ... FOR UPDATE so the transition table is checked against
// the latest status.  Leaving a capacity-holding status releases the
// booking's tickets from the slot counter in the same transaction.
func (r *BookingRepo) Transition(ctx context.Context, bookingID string, to model.BookingStatus, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		status, attractionID, timeSlot string
		bookingDate                    time.Time
		tickets                        int
		validated                      bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT booking_status, attraction_id, booking_date, time_slot, number_of_tickets, is_validated
         FROM bookings WHERE booking_id = ? FOR UPDATE`, bookingID,
	).Scan(&status, &attractionID, &bookingDate, &timeSlot, &tickets, &validated)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load booking status: %w", err)
	}
	from, err := model.ParseBookingStatus(status)
	if err != nil {
		return err
	}
	if !from.CanTransitionTo(to) {
		return ErrInvalidTransition
	}
	// The row lock orders this against MarkValidated: a redeemed ticket
	// is completed, never expired.
	if to == model.StatusExpired && validated {
		return ErrAlreadyValidated
	}

	var cancelledAt *time.Time
	if to == model.StatusCancelled {
		t := at.UTC()
		cancelledAt = &t
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET booking_status = ?, cancellation_time = COALESCE(?, cancellation_time) WHERE booking_id = ?`,
		string(to), cancelledAt, bookingID,
	); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if from.HoldsCapacity() && !to.HoldsCapacity() {
		if _, err := tx.ExecContext(ctx,
			`UPDATE slot_occupancy SET reserved = GREATEST(reserved - ?, 0)
             WHERE attraction_id = ? AND booking_date = ? AND time_slot = ?`,
			tickets, attractionID, bookingDate.Format(model.DateLayout), timeSlot,
		); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	committed = true
	return nil
}

// SlotOccupancy returns the number of tickets currently reserved in the
// slot.  A slot that has never been booked has zero occupancy.
func (r *BookingRepo) SlotOccupancy(ctx context.Context, slot model.SlotKey) (int, error) {
	var reserved int
	err := r.db.QueryRowContext(ctx,
		`SELECT reserved FROM slot_occupancy WHERE attraction_id = ? AND booking_date = ? AND time_slot = ?`,
		slot.AttractionID, slot.Date, slot.TimeSlot,
	).Scan(&reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return reserved, err
}

// VisitorQuery selects a visitor's bookings by exact email or exact
// digits-only phone number.  Exactly one field is expected to be set.
type VisitorQuery struct {
	Email string
	Phone string
}

// ListByVisitor returns the visitor's bookings joined with attraction
// display fields, newest booking date first.
func (r *BookingRepo) ListByVisitor(ctx context.Context, q VisitorQuery) ([]model.BookingView, error) {
	where, arg := "b.visitor_email = ?", q.Email
	if q.Email == "" {
		where, arg = "b.phone_number = ?", q.Phone
	}
	query := `SELECT ` + prefixed("b.", bookingColumns) + `,
                  COALESCE(a.image_url, ''), COALESCE(a.location, ''),
                  COALESCE(a.opening_time, ''), COALESCE(a.closing_time, '')
              FROM bookings b
              LEFT JOIN attractions a ON a.id = b.attraction_id
              WHERE ` + where + `
              ORDER BY b.booking_date DESC, b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	views := make([]model.BookingView, 0)
	for rows.Next() {
		var v model.BookingView
		extra := []any{&v.AttractionImage, &v.Location, &v.OpeningTime, &v.ClosingTime}
		if err := scanInto(rows, &v.Booking, extra...); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// ListExpired returns up to limit confirmed bookings whose expiry time
// is before now, oldest first.
func (r *BookingRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE booking_status = ? AND expiry_time < ?
         ORDER BY expiry_time LIMIT ?`,
		string(model.StatusConfirmed), now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := scanInto(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	if err := scanInto(row, &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// scanInto scans bookingColumns (plus any extra trailing columns) into b.
func scanInto(row rowScanner, b *model.Booking, extra ...any) error {
	var (
		ticketType, status, payment string
		validationTime              sql.NullTime
		cancellationTime            sql.NullTime
	)
	dest := []any{
		&b.BookingID, &b.AttractionID, &b.AttractionName, &b.BookingDate, &b.TimeSlot,
		&b.VisitorEmail, &b.VisitorName, &b.PhoneNumber, &b.NumberOfTickets, &ticketType,
		&b.PricePerTicketCents, &b.SubtotalCents, &b.TaxCents, &b.DiscountCents, &b.TotalCents,
		&b.CredentialPayload, &b.CredentialHash, &b.QRCodeImageURL,
		&status, &payment, &b.PaymentReference,
		&b.IsValidated, &validationTime, &b.ValidatedBy,
		&b.SpecialRequirements, &b.Notes, &b.BookingTime, &b.ExpiryTime, &cancellationTime,
		&b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	b.TicketType = model.TicketType(ticketType)
	b.BookingStatus = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(payment)
	if validationTime.Valid {
		t := validationTime.Time
		b.ValidationTime = &t
	}
	if cancellationTime.Valid {
		t := cancellationTime.Time
		b.CancellationTime = &t
	}
	return nil
}

// prefixed qualifies every column of a comma separated list with p.
func prefixed(p, cols string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = p + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

// retryOnDeadlock runs fn up to attempts times while it fails with a
// MySQL deadlock.
func retryOnDeadlock(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !isDeadlock(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return err
		}
	}
	return err
}

// isDeadlock reports whether err is an InnoDB deadlock (1213).
func isDeadlock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1213
}

// isDuplicate reports whether err is a MySQL duplicate key error (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
