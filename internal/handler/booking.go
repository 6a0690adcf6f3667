package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kashf99/park-booking/internal/middleware"
	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/service"
)

// BookingHandler serves booking creation, gate validation, visitor lookup
// and cancellation.
type BookingHandler struct {
	Bookings  *service.BookingService
	Validator *service.Validator
	Visitors  *service.VisitorLookup
	Log       *zap.Logger
}

func NewBookingHandler(b *service.BookingService, v *service.Validator, l *service.VisitorLookup, log *zap.Logger) *BookingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{Bookings: b, Validator: v, Visitors: l, Log: log}
}

// ----- DTOs -----

type createBookingReq struct {
	AttractionID        string `json:"attractionId"`
	BookingDate         string `json:"bookingDate"`
	TimeSlot            string `json:"timeSlot"`
	VisitorEmail        string `json:"visitorEmail"`
	VisitorName         string `json:"visitorName"`
	PhoneNumber         string `json:"phoneNumber"`
	NumberOfTickets     int    `json:"numberOfTickets"`
	TicketType          string `json:"ticketType"`
	SpecialRequirements string `json:"specialRequirements"`
}

type validateReq struct {
	BookingID    string `json:"bookingId"`
	VisitorEmail string `json:"visitorEmail"`
	Hash         string `json:"hash"`
	QRData       string `json:"qrData"`
}

type visitorReq struct {
	VisitorID string `json:"visitorId"`
}

type cancelReq struct {
	VisitorEmail string `json:"visitorEmail"`
}

type bookingResp struct {
	BookingID           string     `json:"bookingId"`
	AttractionID        string     `json:"attractionId"`
	AttractionName      string     `json:"attractionName"`
	BookingDate         string     `json:"bookingDate"`
	TimeSlot            string     `json:"timeSlot"`
	NumberOfTickets     int        `json:"numberOfTickets"`
	TicketType          string     `json:"ticketType"`
	VisitorName         string     `json:"visitorName"`
	VisitorEmail        string     `json:"visitorEmail"`
	PhoneNumber         string     `json:"phoneNumber,omitempty"`
	PricePerTicket      float64    `json:"pricePerTicket"`
	TotalAmount         float64    `json:"totalAmount"`
	TaxAmount           float64    `json:"taxAmount"`
	DiscountAmount      float64    `json:"discountAmount"`
	FinalAmount         float64    `json:"finalAmount"`
	QRCodeImage         string     `json:"qrCodeImage"`
	PaymentStatus       string     `json:"paymentStatus"`
	PaymentReference    string     `json:"paymentReference"`
	BookingStatus       string     `json:"bookingStatus"`
	IsQRValidated       bool       `json:"isQRValidated"`
	ValidationTime      *time.Time `json:"validationTime,omitempty"`
	ValidatedBy         string     `json:"validatedBy,omitempty"`
	SpecialRequirements string     `json:"specialRequirements,omitempty"`
	BookingTime         time.Time  `json:"bookingTime"`
	ExpiryTime          time.Time  `json:"expiryTime"`
	CancellationTime    *time.Time `json:"cancellationTime,omitempty"`
}

type visitorBookingResp struct {
	bookingResp
	AttractionImage string `json:"attractionImage,omitempty"`
	Location        string `json:"location,omitempty"`
	OpeningTime     string `json:"openingTime,omitempty"`
	ClosingTime     string `json:"closingTime,omitempty"`
}

func toBookingResp(b *model.Booking) bookingResp {
	return bookingResp{
		BookingID:           b.BookingID,
		AttractionID:        b.AttractionID,
		AttractionName:      b.AttractionName,
		BookingDate:         b.BookingDateString(),
		TimeSlot:            b.TimeSlot,
		NumberOfTickets:     b.NumberOfTickets,
		TicketType:          string(b.TicketType),
		VisitorName:         b.VisitorName,
		VisitorEmail:        b.VisitorEmail,
		PhoneNumber:         b.PhoneNumber,
		PricePerTicket:      service.CentsToAmount(b.PricePerTicketCents),
		TotalAmount:         service.CentsToAmount(b.SubtotalCents),
		TaxAmount:           service.CentsToAmount(b.TaxCents),
		DiscountAmount:      service.CentsToAmount(b.DiscountCents),
		FinalAmount:         service.CentsToAmount(b.TotalCents),
		QRCodeImage:         b.QRCodeImageURL,
		PaymentStatus:       string(b.PaymentStatus),
		PaymentReference:    b.PaymentReference,
		BookingStatus:       b.BookingStatus.String(),
		IsQRValidated:       b.IsValidated,
		ValidationTime:      b.ValidationTime,
		ValidatedBy:         b.ValidatedBy,
		SpecialRequirements: b.SpecialRequirements,
		BookingTime:         b.BookingTime,
		ExpiryTime:          b.ExpiryTime,
		CancellationTime:    b.CancellationTime,
	}
}

// Create handles POST /api/bookings.  It answers 201 with the booking and
// its QR payload, or a structured rejection; capacity rejections carry the
// number of tickets still available.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	b, err := h.Bookings.Create(ctx, service.BookingRequest{
		AttractionID:        req.AttractionID,
		BookingDate:         req.BookingDate,
		TimeSlot:            req.TimeSlot,
		VisitorEmail:        req.VisitorEmail,
		VisitorName:         req.VisitorName,
		PhoneNumber:         req.PhoneNumber,
		NumberOfTickets:     req.NumberOfTickets,
		TicketType:          req.TicketType,
		SpecialRequirements: req.SpecialRequirements,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Booking created successfully",
		"data": struct {
			bookingResp
			QRData string `json:"qrData"`
		}{toBookingResp(b), b.CredentialPayload},
	})
}

// ValidateQR handles POST /api/bookings/validate-qr.  The caller is gate
// staff; their token subject is recorded on the booking.
func (h *BookingHandler) ValidateQR(c echo.Context) error {
	var req validateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Validator.Validate(ctx, service.ValidationRequest{
		BookingID:    req.BookingID,
		VisitorEmail: req.VisitorEmail,
		Hash:         req.Hash,
		QRData:       req.QRData,
		ValidatedBy:  middleware.UserID(c),
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Ticket validated successfully",
		"data":    toBookingResp(b),
	})
}

// Visitor handles POST /api/bookings/visitor.
func (h *BookingHandler) Visitor(c echo.Context) error {
	var req visitorReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	views, err := h.Visitors.Find(ctx, req.VisitorID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]visitorBookingResp, 0, len(views))
	for i := range views {
		v := &views[i]
		out = append(out, visitorBookingResp{
			bookingResp:     toBookingResp(&v.Booking),
			AttractionImage: v.AttractionImage,
			Location:        v.Location,
			OpeningTime:     v.OpeningTime,
			ClosingTime:     v.ClosingTime,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(out), "data": out})
}

// Cancel handles POST /api/bookings/:id/cancel.  The visitor proves
// ownership with the booking's email address.
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req cancelReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.VisitorEmail == "" {
		return badRequest(c, "visitorEmail is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.Cancel(ctx, c.Param("id"), req.VisitorEmail)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Booking cancelled",
		"data":    toBookingResp(b),
	})
}
