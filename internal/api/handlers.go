package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pricescout/pricescout/internal/auth"
	"github.com/pricescout/pricescout/internal/engine"
	"github.com/pricescout/pricescout/internal/export"
	"github.com/pricescout/pricescout/internal/extract"
	"github.com/pricescout/pricescout/internal/store"
)

type Handlers struct {
	engine *engine.Engine
	db     *store.DB
	auth   *auth.Manager
	logger *slog.Logger
}

func NewHandlers(eng *engine.Engine, db *store.DB, authMgr *auth.Manager, logger *slog.Logger) *Handlers {
	return &Handlers{
		engine: eng,
		db:     db,
		auth:   authMgr,
		logger: logger.With("component", "api"),
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		h.respondError(w, http.StatusBadRequest, "email and a password of at least 8 characters are required")
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		h.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := &store.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			h.respondError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		h.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := h.auth.IssueToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to issue token", "error", err)
		h.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.respondJSON(w, http.StatusCreated, AuthResponse{Token: token, Name: user.Name, Email: user.Email})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.db.UserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("failed to load user", "error", err)
		h.respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if err := h.auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.auth.IssueToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to issue token", "error", err)
		h.respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.respondJSON(w, http.StatusOK, AuthResponse{Token: token, Name: user.Name, Email: user.Email})
}

type ScrapeRequest struct {
	URL      string `json:"url"`
	Query    string `json:"query"`
	MaxPages int    `json:"max_pages"`
}

type ScrapeResponse struct {
	Site    string           `json:"site"`
	Count   int              `json:"count"`
	Records []extract.Record `json:"records"`
}

func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	siteID, ok := h.engine.ResolveSite(req.URL)
	if !ok {
		h.respondError(w, http.StatusUnprocessableEntity, "unsupported site")
		return
	}

	records, err := h.engine.ScrapeListing(r.Context(), req.URL, req.Query, req.MaxPages)
	if err != nil {
		h.logger.Error("listing scrape failed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusBadGateway, "scrape failed")
		return
	}

	h.respondJSON(w, http.StatusOK, ScrapeResponse{Site: siteID, Count: len(records), Records: records})
}

type TrackRequest struct {
	URL       string  `json:"url"`
	Threshold float64 `json:"threshold"`
}

type TrackedProductResponse struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Site          string    `json:"site"`
	CurrentPrice  *float64  `json:"current_price"`
	PreviousPrice *float64  `json:"previous_price"`
	Threshold     *float64  `json:"threshold"`
	Rating        string    `json:"rating"`
}

func (h *Handlers) TrackProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	siteID, ok := h.engine.ResolveSite(req.URL)
	if !ok {
		h.respondError(w, http.StatusUnprocessableEntity, "unsupported site")
		return
	}

	rec, err := h.engine.ScrapeSingleProduct(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("product scrape failed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusBadGateway, "could not read product page")
		return
	}

	product := &store.TrackedProduct{
		UserID: userID,
		Title:  rec.Title,
		URL:    req.URL,
		Site:   siteID,
		Rating: rec.Rating,
	}
	if price, ok := extract.NormalizePrice(rec.Price); ok {
		product.CurrentPrice = sql.NullFloat64{Float64: price, Valid: true}
	}
	if req.Threshold > 0 {
		product.PriceThreshold = sql.NullFloat64{Float64: req.Threshold, Valid: true}
	}

	id, err := h.db.Track(r.Context(), product)
	if err != nil {
		h.logger.Error("failed to track product", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to track product")
		return
	}
	product.ID = id

	h.respondJSON(w, http.StatusCreated, toProductResponse(*product))
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	products, err := h.db.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	resp := make([]TrackedProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) UntrackProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	productID, err := uuid.Parse(pathParam(r, "productID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.db.Untrack(r.Context(), userID, productID); err != nil {
		if errors.Is(err, store.ErrProductNotTracked) {
			h.respondError(w, http.StatusNotFound, "product not tracked")
			return
		}
		h.logger.Error("failed to untrack product", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to untrack product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type RefreshResponse struct {
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// RefreshProducts re-scrapes all of the user's tracked products and
// persists fresh prices.
func (h *Handlers) RefreshProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	products, err := h.db.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to refresh products")
		return
	}

	urls := make([]string, len(products))
	for i, p := range products {
		urls[i] = p.URL
	}

	results := h.engine.RefreshBatch(r.Context(), urls)

	var refreshed, failed int
	// results are order-aligned with products
	for i, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		product := products[i]
		var price sql.NullFloat64
		if v, ok := extract.NormalizePrice(res.Record.Price); ok {
			price = sql.NullFloat64{Float64: v, Valid: true}
		}
		if err := h.db.UpdatePrice(r.Context(), product.ID, price, res.Record.Rating); err != nil {
			h.logger.Error("failed to persist price", "url", res.URL, "error", err)
			failed++
			continue
		}
		refreshed++
	}

	h.respondJSON(w, http.StatusOK, RefreshResponse{Refreshed: refreshed, Failed: failed})
}

// ExportProducts streams the user's tracked products as CSV or JSON.
func (h *Handlers) ExportProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	products, err := h.db.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to export products")
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		err = export.WriteJSON(w, products)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="products.csv"`)
		err = export.WriteCSV(w, products)
	default:
		h.respondError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}
	if err != nil {
		h.logger.Error("failed to write export", "format", format, "error", err)
	}
}

func toProductResponse(p store.TrackedProduct) TrackedProductResponse {
	resp := TrackedProductResponse{
		ID:     p.ID,
		Title:  p.Title,
		URL:    p.URL,
		Site:   p.Site,
		Rating: p.Rating,
	}
	if p.CurrentPrice.Valid {
		v := p.CurrentPrice.Float64
		resp.CurrentPrice = &v
	}
	if p.PreviousPrice.Valid {
		v := p.PreviousPrice.Float64
		resp.PreviousPrice = &v
	}
	if p.PriceThreshold.Valid {
		v := p.PriceThreshold.Float64
		resp.Threshold = &v
	}
	return resp
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
