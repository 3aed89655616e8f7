package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tokomas/backend/internal/domain"
	"tokomas/backend/internal/service"
	"tokomas/backend/internal/store"
)

type API struct {
	service       *service.Service
	allowedOrigin string
}

func New(svc *service.Service, allowedOrigin string) *API {
	return &API{
		service:       svc,
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", a.handleRoot)
	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/products", a.handleProducts)
	mux.HandleFunc("/api/products/", a.handleProductByID)
	mux.HandleFunc("/api/orders", a.handleOrders)
	mux.HandleFunc("/api/orders/", a.handleOrderActions)
	mux.HandleFunc("/api/invoices", a.handleInvoices)
	mux.HandleFunc("/api/invoices/", a.handleInvoiceByID)

	return a.withMiddleware(mux)
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Jewellery Management Backend Running"})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.service.Health(r.Context()))
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	case http.MethodPost:
		var req domain.ProductRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err, http.StatusBadRequest), err)
			return
		}
		writeJSON(w, http.StatusCreated, product)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductByID(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/products/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err, http.StatusNotFound), err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodPut:
		var req domain.ProductRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			writeError(w, statusForError(err, http.StatusNotFound), err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodDelete:
		if err := a.service.DeleteProduct(r.Context(), id); err != nil {
			writeError(w, statusForError(err, http.StatusNotFound), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		orders, err := a.service.ListOrders(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	case http.MethodPost:
		var req domain.CreateOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order, err := a.service.CreateOrder(r.Context(), req)
		if err != nil {
			writeError(w, statusForCreateOrderError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/orders/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("order id required"))
		return
	}

	if orderID, ok := strings.CutSuffix(tail, "/invoice"); ok {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		orderID = strings.Trim(orderID, "/")
		if orderID == "" {
			writeError(w, http.StatusBadRequest, errors.New("order id required"))
			return
		}

		var req domain.CreateInvoiceRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		invoice, err := a.service.CreateInvoice(r.Context(), orderID, req)
		if err != nil {
			writeError(w, statusForError(err, http.StatusNotFound), err)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
		return
	}

	if strings.Contains(tail, "/") {
		writeError(w, http.StatusBadRequest, errors.New("unknown order action"))
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	order, err := a.service.GetOrder(r.Context(), tail)
	if err != nil {
		writeError(w, statusForError(err, http.StatusNotFound), err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	invoices, err := a.service.ListInvoices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (a *API) handleInvoiceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	id := pathTail(r.URL.Path, "/api/invoices/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, errors.New("invoice id required"))
		return
	}

	invoice, err := a.service.GetInvoice(r.Context(), id)
	if err != nil {
		writeError(w, statusForError(err, http.StatusNotFound), err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		logrus.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(startedAt).String(),
		}).Info("request")
	})
}

func pathTail(path string, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.Trim(strings.TrimPrefix(path, prefix), "/"))
}

// statusForError maps the error taxonomy: validation and conflicts are 400,
// missing records take notFoundStatus (404 on direct fetch).
func statusForError(err error, notFoundStatus int) int {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicateSKU), errors.Is(err, store.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return notFoundStatus
	default:
		return http.StatusInternalServerError
	}
}

func statusForCreateOrderError(err error) int {
	return statusForError(err, http.StatusBadRequest)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx details go to the log, not the caller.
	msg := err.Error()
	if status >= 500 {
		logrus.WithError(err).WithField("status", status).Error("internal error")
		msg = "internal server error"
	}

	payload := map[string]any{"error": msg}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		payload["violations"] = ve.Violations
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
