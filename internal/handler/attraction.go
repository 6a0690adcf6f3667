package handler

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/repository"
	"github.com/kashf99/park-booking/internal/service"
)

// MaxImageBytes bounds attraction image uploads.
const MaxImageBytes = 5 << 20

// AttractionHandler serves the attraction catalog.  OnChange, when set,
// runs after every successful catalog write; the router uses it to drop
// cached catalog pages.
type AttractionHandler struct {
	Catalog  *service.Catalog
	OnChange func(ctx context.Context)
	Log      *zap.Logger
}

func NewAttractionHandler(catalog *service.Catalog, onChange func(ctx context.Context), log *zap.Logger) *AttractionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttractionHandler{Catalog: catalog, OnChange: onChange, Log: log}
}

type attractionResp struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	OpeningTime     string    `json:"openingTime"`
	ClosingTime     string    `json:"closingTime"`
	TicketPrice     float64   `json:"ticketPrice"`
	CapacityPerSlot int       `json:"capacityPerSlot"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toAttractionResp(a *model.Attraction) attractionResp {
	return attractionResp{
		ID:              a.ID,
		Name:            a.Name,
		Description:     a.Description,
		Location:        a.Location,
		OpeningTime:     a.OpeningTime,
		ClosingTime:     a.ClosingTime,
		TicketPrice:     a.TicketPrice(),
		CapacityPerSlot: a.CapacityPerSlot,
		ImageURL:        a.ImageURL,
		IsActive:        a.IsActive,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// attractionReq is the JSON form of a catalog write.  Absent fields stay
// nil so updates are partial.
type attractionReq struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Location        *string  `json:"location"`
	OpeningTime     *string  `json:"openingTime"`
	ClosingTime     *string  `json:"closingTime"`
	TicketPrice     *float64 `json:"ticketPrice"`
	CapacityPerSlot *int     `json:"capacityPerSlot"`
	IsActive        *bool    `json:"isActive"`
}

// List handles GET /api/attractions?page=&limit=&search=&includeInactive=.
func (h *AttractionHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	includeInactive, _ := strconv.ParseBool(c.QueryParam("includeInactive"))
	q := repository.AttractionQuery{
		Page:            max(page, 1),
		Limit:           limit,
		Search:          c.QueryParam("search"),
		IncludeInactive: includeInactive,
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	q.Limit = min(q.Limit, 100)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, total, err := h.Catalog.List(ctx, q)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]attractionResp, 0, len(list))
	for i := range list {
		out = append(out, toAttractionResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"count":       len(out),
		"total":       total,
		"totalPages":  int(math.Ceil(float64(total) / float64(q.Limit))),
		"currentPage": q.Page,
		"data":        out,
	})
}

// Get handles GET /api/attractions/:id.
func (h *AttractionHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Catalog.Get(ctx, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": toAttractionResp(a)})
}

// Availability handles GET /api/attractions/:id/availability?date=&timeSlot=.
func (h *AttractionHandler) Availability(c echo.Context) error {
	date, slot := c.QueryParam("date"), c.QueryParam("timeSlot")
	if date == "" || slot == "" {
		return badRequest(c, "date and timeSlot are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	avail, err := h.Catalog.Availability(ctx, c.Param("id"), date, slot)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": avail})
}

// Create handles POST /api/attractions (admin).  The body is JSON or a
// multipart form with an optional "image" file.
func (h *AttractionHandler) Create(c echo.Context) error {
	in, img, err := readAttractionInput(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	a, err := h.Catalog.Create(ctx, in, img)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Attraction created successfully",
		"data":    toAttractionResp(a),
	})
}

// Update handles PUT and PATCH /api/attractions/:id (admin).
func (h *AttractionHandler) Update(c echo.Context) error {
	in, img, err := readAttractionInput(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	a, err := h.Catalog.Update(ctx, c.Param("id"), in, img)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Attraction updated successfully",
		"data":    toAttractionResp(a),
	})
}

// Delete handles DELETE /api/attractions/:id (admin).  It is a soft delete.
func (h *AttractionHandler) Delete(c echo.Context) error {
	return h.setActive(c, false, "Attraction deleted successfully")
}

// Activate handles POST /api/attractions/:id/activate (admin).
func (h *AttractionHandler) Activate(c echo.Context) error {
	return h.setActive(c, true, "Attraction activated successfully")
}

func (h *AttractionHandler) setActive(c echo.Context, active bool, msg string) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Catalog.SetActive(ctx, c.Param("id"), active)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": msg, "data": toAttractionResp(a)})
}

func (h *AttractionHandler) changed(ctx context.Context) {
	if h.OnChange != nil {
		h.OnChange(ctx)
	}
}

type inputError string

func (e inputError) Error() string { return string(e) }

// readAttractionInput decodes a catalog write from JSON or multipart form
// data.  Only fields present in the request are set.
func readAttractionInput(c echo.Context) (service.AttractionInput, *service.Upload, error) {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		var req attractionReq
		if err := c.Bind(&req); err != nil {
			return service.AttractionInput{}, nil, inputError("invalid request body")
		}
		return service.AttractionInput(req), nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return service.AttractionInput{}, nil, inputError("invalid multipart form")
	}
	field := func(name string) *string {
		if v, ok := form.Value[name]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}
	in := service.AttractionInput{
		Name:        field("name"),
		Description: field("description"),
		Location:    field("location"),
		OpeningTime: field("openingTime"),
		ClosingTime: field("closingTime"),
	}
	if s := field("ticketPrice"); s != nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
		if err != nil {
			return in, nil, inputError("ticketPrice must be a number")
		}
		in.TicketPrice = &f
	}
	if s := field("capacityPerSlot"); s != nil {
		n, err := strconv.Atoi(strings.TrimSpace(*s))
		if err != nil {
			return in, nil, inputError("capacityPerSlot must be an integer")
		}
		in.CapacityPerSlot = &n
	}
	if s := field("isActive"); s != nil {
		b, err := strconv.ParseBool(strings.TrimSpace(*s))
		if err != nil {
			return in, nil, inputError("isActive must be true or false")
		}
		in.IsActive = &b
	}

	files := form.File["image"]
	if len(files) == 0 {
		return in, nil, nil
	}
	fh := files[0]
	if fh.Size > MaxImageBytes {
		return in, nil, inputError("image must not exceed 5MB")
	}
	f, err := fh.Open()
	if err != nil {
		return in, nil, inputError("unreadable image")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil || len(data) > MaxImageBytes {
		return in, nil, inputError("unreadable image")
	}
	ctype := fh.Header.Get(echo.HeaderContentType)
	if ctype == "" || ctype == echo.MIMEOctetStream {
		ctype = http.DetectContentType(data)
	}
	return in, &service.Upload{Filename: fh.Filename, ContentType: ctype, Data: data}, nil
}
