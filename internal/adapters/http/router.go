package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/civicreport/internal/application"
	"github.com/atvirokodosprendimai/civicreport/internal/domain"
	"github.com/go-chi/chi/v5"
)

const sessionCookieName = "cr_session"

type contextKey string

const identityKey contextKey = "identity"

type Handler struct {
	service *application.ReportService
}

func NewRouter(service *application.ReportService) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", h.handleRegister)
		api.Post("/auth/login", h.handleLogin)
		api.With(h.requireAuth).Post("/auth/logout", h.handleLogout)
		api.With(h.requireAuth).Get("/auth/whoami", h.handleWhoAmI)
		api.With(h.requireAuth).Put("/auth/profile", h.handleUpdateProfile)

		api.With(h.requireAuth).Get("/reports", h.handleListReports)
		api.With(h.requireAuth).Post("/reports", h.handleCreateReport)
		api.With(h.requireAuth).Get("/reports/stats", h.handleReportStats)
		api.With(h.requireAuth).Get("/reports/number/{number}", h.handleGetReportByNumber)
		api.With(h.requireAuth).Get("/reports/{id}", h.handleGetReport)
		api.With(h.requireAuth).Get("/reports/{id}/history", h.handleReportHistory)
		api.With(h.requireAuth).Get("/reports/{id}/capabilities", h.handleReportCapabilities)
		api.With(h.requireAuth).Post("/reports/{id}/transition", h.handleTransition)
		api.With(h.requireAuth).Post("/reports/{id}/rate", h.handleRate)
		api.With(h.requireAuth).Post("/reports/{id}/assign", h.handleAssign)
		api.With(h.requireAuth).Post("/reports/{id}/priority", h.handleSetPriority)

		api.With(h.requireAuth).Get("/access/profiles", h.handleListProfiles)
		api.With(h.requireAuth).Post("/access/role", h.handleSetRole)
		api.With(h.requireAuth).Get("/audit/logs", h.handleListAuditLogs)
	})

	return r
}

// statusForError translates domain error kinds into HTTP status codes. The
// wrapped message goes out verbatim as the error payload.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyRated),
		errors.Is(err, domain.ErrNotYetResolvable),
		errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, domain.ErrIdentifierUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]any{"error": err.Error()})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := h.authenticateRequest(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

func (h *Handler) authenticateRequest(r *http.Request) (domain.Identity, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[7:])
		identity, err := h.service.AuthenticateBearerToken(r.Context(), token)
		if err == nil {
			return identity, true
		}
	}

	c, err := r.Cookie(sessionCookieName)
	if err == nil && strings.TrimSpace(c.Value) != "" {
		identity, authErr := h.service.AuthenticateSession(r.Context(), c.Value)
		if authErr == nil {
			return identity, true
		}
	}

	return domain.Identity{}, false
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	identity, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identityPayload(identity))
}

type apiLoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Mode      string `json:"mode"`
	TokenName string `json:"token_name"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req apiLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = "token"
	}

	if mode == "session" {
		identity, token, err := h.service.LoginWithSession(r.Context(), req.Email, req.Password, 12*time.Hour)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
			return
		}
		h.setSessionCookie(w, token)
		writeJSON(w, http.StatusOK, identityPayload(identity))
		return
	}

	identity, token, err := h.service.LoginWithAPIToken(r.Context(), req.Email, req.Password, req.TokenName, nil)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"email":    identity.User.Email,
		"identity": identityPayload(identity),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookieName)
	if err == nil && c.Value != "" {
		_ = h.service.LogoutSession(r.Context(), c.Value)
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	writeJSON(w, http.StatusOK, identityPayload(identity))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	var req application.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	profile, err := h.service.UpdateOwnProfile(r.Context(), identity, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	var req application.CreateReportInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	report, err := h.service.CreateReport(r.Context(), identity, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleListReports(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	q := r.URL.Query()

	limit := 100
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	list, err := h.service.ListReports(r.Context(), identity, domain.ListCriteria{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Priority: q.Get("priority"),
		OwnerID:  q.Get("owner_id"),
		Search:   q.Get("q"),
	}, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	report, err := h.service.GetReport(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleGetReportByNumber(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	report, err := h.service.GetReportByNumber(r.Context(), identity, chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleReportHistory(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	updates, err := h.service.GetReportHistory(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updates)
}

func (h *Handler) handleReportCapabilities(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	caps, err := h.service.Capabilities(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	names := make([]string, 0, len(caps))
	for c := range caps {
		names = append(names, string(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": names})
}

type apiTransitionRequest struct {
	To            string `json:"to"`
	Message       string `json:"message"`
	InternalNotes string `json:"internal_notes"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	var req apiTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	report, err := h.service.TransitionStatus(r.Context(), identity, application.TransitionInput{
		ReportID:      chi.URLParam(r, "id"),
		To:            req.To,
		Message:       req.Message,
		InternalNotes: req.InternalNotes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type apiRateRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

func (h *Handler) handleRate(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	var req apiRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	report, err := h.service.RateReport(r.Context(), identity, chi.URLParam(r, "id"), req.Rating, req.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type apiAssignRequest struct {
	Department              string     `json:"department"`
	OfficerID               string     `json:"officer_id"`
	EstimatedResolutionDate *time.Time `json:"estimated_resolution_date"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	var req apiAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	report, err := h.service.AssignReport(r.Context(), identity, application.AssignInput{
		ReportID:                chi.URLParam(r, "id"),
		Department:              req.Department,
		OfficerID:               req.OfficerID,
		EstimatedResolutionDate: req.EstimatedResolutionDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type apiPriorityRequest struct {
	Priority string `json:"priority"`
}

func (h *Handler) handleSetPriority(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	var req apiPriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	report, err := h.service.SetPriority(r.Context(), identity, chi.URLParam(r, "id"), req.Priority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleReportStats(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	q := r.URL.Query()
	stats, err := h.service.ReportStats(r.Context(), identity, domain.ListCriteria{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Priority: q.Get("priority"),
		Search:   q.Get("q"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	q := r.URL.Query()
	list, err := h.service.ListProfiles(r.Context(), identity, q.Get("role"), q.Get("q"), 200)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type apiSetRoleRequest struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	var req apiSetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	profile, err := h.service.SetRole(r.Context(), identity, req.UserID, domain.Role(req.Role), req.Department)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	list, err := h.service.ListAuditLogs(r.Context(), identity, 200)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func identityPayload(identity domain.Identity) map[string]any {
	return map[string]any{
		"user_id":   identity.User.ID,
		"email":     identity.User.Email,
		"full_name": identity.Profile.FullName,
		"role":      identity.Profile.Role,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
