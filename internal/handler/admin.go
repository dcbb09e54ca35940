package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Dan9191/card-service/internal/models"
)

// ListUsers returns a page of users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	users, err := h.auth.ListUsers(r.Context(), page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, users)
}

// SetRole grants a role on POST and withdraws it on DELETE
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	role := models.Role(strings.ToUpper(mux.Vars(r)["role"]))
	if err := h.auth.SetRole(r.Context(), id, role, r.Method == http.MethodPost); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// DeleteUser removes a user and their cards
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.auth.DeleteUser(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}
