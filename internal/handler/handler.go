package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-service/internal/apperror"
	"github.com/Dan9191/card-service/internal/middleware"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/service"
)

type Handler struct {
	cards    *service.CardService
	auth     *service.AuthService
	log      *logrus.Logger
	validate *validator.Validate
}

func NewHandler(cards *service.CardService, auth *service.AuthService, log *logrus.Logger) *Handler {
	return &Handler{cards: cards, auth: auth, log: log, validate: validator.New()}
}

// Router wires every route onto a gorilla/mux router
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Public routes
	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.Refresh).Methods(http.MethodPost)

	// Protected routes
	authed := r.PathPrefix("/").Subrouter()
	authed.Use(middleware.AuthMiddleware(h.auth, h.log))
	authed.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	authed.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)
	authed.HandleFunc("/cards", h.ListOwnCards).Methods(http.MethodGet)
	authed.HandleFunc("/cards/transfer", h.Transfer).Methods(http.MethodPost)
	authed.HandleFunc("/cards/balance/total", h.TotalBalance).Methods(http.MethodGet)
	authed.HandleFunc("/cards/{id}/request-block", h.RequestBlock).Methods(http.MethodPost)

	// Admin routes
	admin := authed.NewRoute().Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/cards", h.CreateCard).Methods(http.MethodPost)
	admin.HandleFunc("/cards/admin", h.SearchCards).Methods(http.MethodGet)
	admin.HandleFunc("/cards/{id}/block", h.BlockCard).Methods(http.MethodPost)
	admin.HandleFunc("/cards/{id}/activate", h.ActivateCard).Methods(http.MethodPost)
	admin.HandleFunc("/cards/{id}/balance", h.AdjustBalance).Methods(http.MethodPost)
	admin.HandleFunc("/cards/{id}/number", h.RevealNumber).Methods(http.MethodGet)
	admin.HandleFunc("/cards/{id}", h.DeleteCard).Methods(http.MethodDelete)
	admin.HandleFunc("/admin/users", h.ListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/admin/users/{id}/roles/{role}", h.SetRole).Methods(http.MethodPost, http.MethodDelete)
	admin.HandleFunc("/admin/users/{id}", h.DeleteUser).Methods(http.MethodDelete)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		h.log.Debugf("%s %s rejected: %v", r.Method, r.URL.Path, err)
	}
	h.respond(w, status, errorResponse{Code: string(kind), Message: apperror.Message(err)})
}

// decode reads a JSON body into dst and runs struct validation on it.
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.Wrap(apperror.KindBadRequest, "Invalid request format", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperror.Wrap(apperror.KindBadRequest, "Invalid field: "+verrs[0].Field(), err)
		}
		return apperror.Wrap(apperror.KindBadRequest, "Validation error", err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, apperror.Wrap(apperror.KindBadRequest, "Invalid id", err)
	}
	return id, nil
}

func pageRequest(r *http.Request) (models.PageRequest, error) {
	var page models.PageRequest
	q := r.URL.Query()
	for name, dst := range map[string]*int{"page": &page.Page, "size": &page.Size} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, apperror.New(apperror.KindBadRequest, "Invalid "+name+" parameter")
		}
		*dst = n
	}
	return page.Normalize(), nil
}

func statusParam(r *http.Request) *models.CardStatus {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil
	}
	status := models.CardStatus(raw)
	return &status
}

func currentUser(r *http.Request) *models.User {
	user, _ := middleware.UserFromContext(r.Context())
	return user
}
