package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kashf99/park-booking/internal/config"
	"github.com/kashf99/park-booking/internal/handler"
	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/queue"
	"github.com/kashf99/park-booking/internal/repository"
	"github.com/kashf99/park-booking/internal/service"
	"github.com/kashf99/park-booking/internal/storage"
	"github.com/kashf99/park-booking/internal/utils"
)

const jwtSecret = "router-test-secret"

type fixture struct {
	e       *echo.Echo
	store   *repository.MemoryStore
	objects *storage.MemoryStore
	admin   string
	staff   string
	user    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	store := repository.NewMemoryStore()
	objects := storage.NewMemoryStore("http://objects.test")
	codec, err := service.NewCredentialCodec("qr-secret")
	require.NoError(t, err)

	lifecycle := service.NewLifecycle(store.Bookings(), now, time.UTC, nil)
	ledger := service.NewLedger(store.Bookings())
	dispatcher := service.NewDispatcher(nopPublisher{}, 16, nil)
	dispatcher.Start()
	t.Cleanup(func() { _ = dispatcher.Close(context.Background()) })

	bookings := service.NewBookingService(service.BookingServiceDeps{
		Attractions: store.Attractions(),
		Ledger:      ledger,
		Lifecycle:   lifecycle,
		Codec:       codec,
		Objects:     objects,
		Renderer:    service.NewNotificationRenderer("ops@park.test", now),
		Notifier:    dispatcher,
	})
	catalog := service.NewCatalog(store.Attractions(), ledger, objects, time.UTC, nil)
	worker := service.NewExpiryWorker(store.Bookings(), lifecycle, now, nil, nil)

	cfg := config.Config{JWTSecret: jwtSecret, JWTTTLHours: 1, BcryptCost: bcrypt.MinCost}
	e := echo.New()
	RegisterRoutes(e)
	RegisterAuth(e, handler.NewAuthHandler(cfg, store.Users(), nil), jwtSecret, Limits{})
	RegisterAttractions(e, handler.NewAttractionHandler(catalog, nil, nil), jwtSecret, Limits{})
	RegisterBookings(e, handler.NewBookingHandler(bookings,
		service.NewValidator(store.Bookings(), codec, now, time.UTC, nil),
		service.NewVisitorLookup(store.Bookings()), nil), jwtSecret, Limits{})
	RegisterAdmin(e, &handler.StatsHandler{Worker: worker, Dispatcher: dispatcher}, jwtSecret)

	f := &fixture{e: e, store: store, objects: objects}
	f.admin = f.token(t, "admin@park.io", model.RoleAdmin)
	f.staff = f.token(t, "gate@park.io", model.RoleStaff)
	f.user = f.token(t, "user@park.io", model.RoleUser)
	return f
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.NotificationMessage) error { return nil }

func (f *fixture) token(t *testing.T, email, role string) string {
	t.Helper()
	hash, err := utils.HashPassword("password1", bcrypt.MinCost)
	require.NoError(t, err)
	id, err := f.store.Users().Create(context.Background(), role+" account", email, hash, role)
	require.NoError(t, err)
	tok, err := utils.NewAccessToken(jwtSecret, id, email, role, 1)
	require.NoError(t, err)
	return tok.Token
}

func (f *fixture) do(method, target, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (f *fixture) createAttraction(t *testing.T, name string, capacity int) string {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/attractions", f.admin, echo.Map{
		"name": name, "location": "North Plaza", "ticketPrice": 10.0, "capacityPerSlot": capacity,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["data"].(map[string]any)["id"].(string)
}

func bookingBody(attractionID string, tickets int) echo.Map {
	return echo.Map{
		"attractionId":    attractionID,
		"bookingDate":     "2025-06-01",
		"timeSlot":        "14:30",
		"visitorEmail":    "visitor@example.com",
		"visitorName":     "Ada Visitor",
		"phoneNumber":     "555-010-2030",
		"numberOfTickets": tickets,
	}
}

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = f.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "Park Booking API", body["service"])
}

func TestUserRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/users/login", "", echo.Map{"email": "GATE@park.io", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	claims, err := utils.ParseAccessToken(jwtSecret, body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, model.RoleStaff, claims.Role)

	rec = f.do(http.MethodPost, "/api/users/login", "", echo.Map{"email": "gate@park.io", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	newUser := echo.Map{"name": "New Staff", "email": "new@park.io", "password": "secret99", "role": "staff"}
	rec = f.do(http.MethodPost, "/api/users", f.staff, newUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(http.MethodPost, "/api/users", f.admin, newUser)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, "/api/users", f.admin, newUser)
	assert.Equal(t, http.StatusConflict, rec.Code)

	newUser["email"], newUser["role"] = "other@park.io", "owner"
	rec = f.do(http.MethodPost, "/api/users", f.admin, newUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttractionRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/attractions", f.staff, echo.Map{"name": "Nope", "ticketPrice": 1, "capacityPerSlot": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	id := f.createAttraction(t, "Sky Coaster", 20)

	rec = f.do(http.MethodGet, "/api/attractions?page=1&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(1), body["totalPages"])

	rec = f.do(http.MethodPatch, "/api/attractions/"+id, f.admin, echo.Map{"capacityPerSlot": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodPatch, "/api/attractions/"+id, f.admin, echo.Map{"ticketPrice": 12.5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12.5, decode(t, rec)["data"].(map[string]any)["ticketPrice"])

	rec = f.do(http.MethodDelete, "/api/attractions/"+id, f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodGet, "/api/attractions", "", nil)
	assert.Equal(t, float64(0), decode(t, rec)["total"])
	rec = f.do(http.MethodPost, "/api/attractions/"+id+"/activate", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/attractions/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec)["code"])
}

func TestAttractionMultipartUpload(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "Log Flume"))
	require.NoError(t, w.WriteField("ticketPrice", "8.50"))
	require.NoError(t, w.WriteField("capacityPerSlot", "12"))
	part, err := w.CreateFormFile("image", "flume.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\nfake-image"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attractions", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+f.admin)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, 8.5, data["ticketPrice"])
	assert.Contains(t, data["imageUrl"], "http://objects.test/attractions/")
	assert.Equal(t, 1, f.objects.Len())
}

func TestBookingFlow(t *testing.T) {
	f := newFixture(t)
	id := f.createAttraction(t, "Sky Coaster", 3)

	rec := f.do(http.MethodPost, "/api/bookings", "", bookingBody(id, 2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, 22.0, data["finalAmount"])
	assert.Equal(t, 2.0, data["taxAmount"])
	assert.Equal(t, "confirmed", data["bookingStatus"])
	qrData := data["qrData"].(string)
	bookingID := data["bookingId"].(string)

	rec = f.do(http.MethodPost, "/api/bookings", "", bookingBody(id, 2))
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "CAPACITY_EXCEEDED", body["code"])
	assert.Equal(t, float64(1), body["available"])

	rec = f.do(http.MethodGet, "/api/attractions/"+id+"/availability?date=2025-06-01&timeSlot=14:30", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["data"].(map[string]any)["remaining"])

	rec = f.do(http.MethodPost, "/api/bookings/validate-qr", "", echo.Map{"qrData": qrData})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(http.MethodPost, "/api/bookings/validate-qr", f.user, echo.Map{"qrData": qrData})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/api/bookings/validate-qr", f.staff, echo.Map{"qrData": qrData})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data = decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["isQRValidated"])
	assert.NotEmpty(t, data["validatedBy"])

	rec = f.do(http.MethodPost, "/api/bookings/validate-qr", f.staff, echo.Map{"qrData": qrData})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_VALIDATED", decode(t, rec)["code"])

	rec = f.do(http.MethodPost, "/api/bookings/validate-qr", f.staff, echo.Map{
		"bookingId": bookingID, "visitorEmail": "visitor@example.com", "hash": "deadbeef",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "TAMPERED", decode(t, rec)["code"])
}

func TestVisitorAndCancelRoutes(t *testing.T) {
	f := newFixture(t)
	id := f.createAttraction(t, "Sky Coaster", 3)
	rec := f.do(http.MethodPost, "/api/bookings", "", bookingBody(id, 3))
	require.Equal(t, http.StatusCreated, rec.Code)
	bookingID := decode(t, rec)["data"].(map[string]any)["bookingId"].(string)

	rec = f.do(http.MethodPost, "/api/bookings/visitor", "", echo.Map{"visitorId": "(555) 010-2030"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])
	first := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "North Plaza", first["location"])

	rec = f.do(http.MethodPost, "/api/bookings/visitor", "", echo.Map{"visitorId": "12345"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodPost, "/api/bookings/visitor", "", echo.Map{"visitorId": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/bookings/"+bookingID+"/cancel", "", echo.Map{"visitorEmail": "visitor@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode(t, rec)["data"].(map[string]any)["bookingStatus"])

	rec = f.do(http.MethodPost, "/api/bookings/"+bookingID+"/cancel", "", echo.Map{"visitorEmail": "visitor@example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(http.MethodPost, "/api/bookings", "", bookingBody(id, 3))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminStats(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/admin/stats", f.staff, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/stats", f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body, "expiryWorker")
	assert.Contains(t, body, "notifications")
}
