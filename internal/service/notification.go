package service

import (
	"bytes"
	"context"
	"html/template"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/queue"
)

var visitorTmpl = template.Must(template.New("visitor").Parse(`<h2>Hello {{.VisitorName}},</h2>
<p>Thank you for booking {{.NumberOfTickets}} ticket(s) for <strong>{{.AttractionName}}</strong> on <strong>{{.Date}}</strong> at <strong>{{.TimeSlot}}</strong>.</p>
<p>Total: ${{.Total}}</p>
{{if .QRCodeURL}}<img src="{{.QRCodeURL}}" alt="QR Code" style="width:200px;height:200px;"/>
{{end}}<p>Please show this QR code at the entrance.</p>
<p>Booking ID: {{.BookingID}}</p>
<p>Enjoy your visit!</p>
`))

var adminTmpl = template.Must(template.New("admin").Parse(`<h2>New Booking Received</h2>
<p>Visitor: {{.VisitorName}} ({{.VisitorEmail}})</p>
<p>Tickets: {{.NumberOfTickets}}</p>
<p>Date: {{.Date}} | Slot: {{.TimeSlot}}</p>
<p>Total Amount: ${{.Total}}</p>
<p>Booking ID: {{.BookingID}}</p>
`))

type mailView struct {
	BookingID       string
	VisitorName     string
	VisitorEmail    string
	AttractionName  string
	NumberOfTickets int
	Date            string
	TimeSlot        string
	Total           string
	QRCodeURL       template.URL
}

// NotificationRenderer produces the visitor confirmation and the admin
// alert for a created booking.
type NotificationRenderer struct {
	alertEmail string
	now        Clock
}

func NewNotificationRenderer(alertEmail string, now Clock) *NotificationRenderer {
	if now == nil {
		now = time.Now
	}
	return &NotificationRenderer{alertEmail: alertEmail, now: now}
}

func view(b *model.Booking) mailView {
	return mailView{
		BookingID:       b.BookingID,
		VisitorName:     b.VisitorName,
		VisitorEmail:    b.VisitorEmail,
		AttractionName:  b.AttractionName,
		NumberOfTickets: b.NumberOfTickets,
		Date:            b.BookingDateString(),
		TimeSlot:        b.TimeSlot,
		Total:           FormatCents(b.TotalCents),
		QRCodeURL:       template.URL(b.QRCodeImageURL),
	}
}

// Render returns the messages for b.  The admin alert is omitted when no
// alert address is configured.
func (r *NotificationRenderer) Render(b *model.Booking) ([]queue.NotificationMessage, error) {
	v := view(b)
	now := r.now().UTC()

	var body bytes.Buffer
	if err := visitorTmpl.Execute(&body, v); err != nil {
		return nil, err
	}
	msgs := []queue.NotificationMessage{{
		Kind:      queue.KindVisitorConfirmation,
		To:        b.VisitorEmail,
		Subject:   "Your Booking Confirmation - " + b.AttractionName,
		HTML:      body.String(),
		BookingID: b.BookingID,
		CreatedAt: now,
	}}
	if r.alertEmail == "" {
		return msgs, nil
	}

	body.Reset()
	if err := adminTmpl.Execute(&body, v); err != nil {
		return nil, err
	}
	return append(msgs, queue.NotificationMessage{
		Kind:      queue.KindAdminAlert,
		To:        r.alertEmail,
		Subject:   "New Booking - " + b.AttractionName,
		HTML:      body.String(),
		BookingID: b.BookingID,
		CreatedAt: now,
	}), nil
}

// Publisher hands a message to the delivery channel.
type Publisher interface {
	Publish(ctx context.Context, msg queue.NotificationMessage) error
}

// Notifier accepts messages without blocking.
type Notifier interface {
	Submit(msg queue.NotificationMessage) bool
}

// DispatcherStats are counters of a Dispatcher.
type DispatcherStats struct {
	Submitted int64
	Published int64
	Dropped   int64
	Failed    int64
}

// Dispatcher decouples notification delivery from request handling.
// Submit enqueues into a bounded buffer and never blocks; a single
// goroutine drains the buffer into the Publisher.
type Dispatcher struct {
	pub            Publisher
	log            *zap.Logger
	publishTimeout time.Duration

	mu     sync.RWMutex
	buf    chan queue.NotificationMessage
	closed bool
	done   chan struct{}
	once   sync.Once

	submitted, published, dropped, failed atomic.Int64
}

func NewDispatcher(pub Publisher, buffer int, log *zap.Logger) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		pub:            pub,
		log:            log,
		publishTimeout: 5 * time.Second,
		buf:            make(chan queue.NotificationMessage, buffer),
		done:           make(chan struct{}),
	}
}

// Start launches the drain goroutine.  It is safe to call once.
func (d *Dispatcher) Start() {
	d.once.Do(func() { go d.run() })
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.buf {
		ctx, cancel := context.WithTimeout(context.Background(), d.publishTimeout)
		err := d.pub.Publish(ctx, msg)
		cancel()
		if err != nil {
			d.failed.Add(1)
			d.log.Error("notification publish failed",
				zap.String("kind", msg.Kind),
				zap.String("booking_id", msg.BookingID),
				zap.Error(err))
			continue
		}
		d.published.Add(1)
	}
}

// Submit enqueues msg.  It returns false when the buffer is full or the
// dispatcher is closed; the message is dropped in both cases.
func (d *Dispatcher) Submit(msg queue.NotificationMessage) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}
	select {
	case d.buf <- msg:
		d.submitted.Add(1)
		return true
	default:
		d.dropped.Add(1)
		d.log.Warn("notification buffer full, dropping message",
			zap.String("kind", msg.Kind),
			zap.String("booking_id", msg.BookingID))
		return false
	}
}

// Close stops accepting messages and waits until the buffer is drained
// or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.buf)
	}
	d.mu.Unlock()
	d.Start() // drain even if never started

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Submitted: d.submitted.Load(),
		Published: d.published.Load(),
		Dropped:   d.dropped.Load(),
		Failed:    d.failed.Load(),
	}
}
