package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/safebite/labelscan/internal/config"
	"github.com/safebite/labelscan/internal/persistence"
	"github.com/safebite/labelscan/internal/scanner"
	"github.com/safebite/labelscan/pkg/icron"
	"github.com/safebite/labelscan/pkg/log"
)

type signupRequest struct {
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	FullName  string   `json:"full_name"`
	Allergies []string `json:"allergies"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string           `json:"token"`
	User  persistence.User `json:"user"`
}

type scanResponse struct {
	Success bool `json:"success"`
	scanner.Result
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if err := s.validateAllergens(req.Allergies); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Username, hash, req.FullName, req.Allergies)
	if err != nil {
		if errors.Is(err, persistence.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		log.Error("Failed to create user %s: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token := s.sessions.Create(user.ID)
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, found, err := s.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if !found || !checkPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token := s.sessions.Create(user.ID)
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if token := requestToken(r); token != "" {
		s.sessions.Revoke(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	result, err := s.scanner.ScanImage(r.Context(), user.Username, user.Allergies, data)
	if err != nil {
		s.writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{Success: true, Result: result})
}

func (s *Server) handleScanBarcode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Barcode string `json:"barcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Barcode = strings.TrimSpace(req.Barcode)
	if req.Barcode == "" {
		writeError(w, http.StatusBadRequest, "barcode is required")
		return
	}

	result, err := s.scanner.ScanBarcode(r.Context(), user.Username, req.Barcode, user.Allergies)
	if err != nil {
		s.writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{Success: true, Result: result})
}

func (s *Server) writeScanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scanner.ErrBadImage):
		writeError(w, http.StatusUnprocessableEntity, "image could not be decoded")
	case errors.Is(err, scanner.ErrOCRFailed):
		writeError(w, http.StatusUnprocessableEntity, "text recognition failed")
	case errors.Is(err, scanner.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, scanner.ErrNoIngredients):
		writeError(w, http.StatusUnprocessableEntity, "product has no ingredient list")
	default:
		log.Error("Scan failed: %v", err)
		writeError(w, http.StatusInternalServerError, "scan failed")
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"allergens": s.catalog.Entries(),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		user, ok := s.currentUser(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"allergies": user.Allergies})
	case http.MethodPut:
		user, ok := s.currentUser(w, r)
		if !ok {
			return
		}
		var req struct {
			Allergies []string `json:"allergies"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.validateAllergens(req.Allergies); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.store.UpdateUserAllergies(r.Context(), user.ID, req.Allergies); err != nil {
			log.Error("Failed to update allergies for %s: %v", user.Username, err)
			writeError(w, http.StatusInternalServerError, "failed to update profile")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"allergies": req.Allergies})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	scans, err := s.store.ListScansByUser(r.Context(), user.Username, 0)
	if err != nil {
		log.Error("Failed to list scans for %s: %v", user.Username, err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		user, ok := s.currentUser(w, r)
		if !ok {
			return
		}
		entries, err := s.store.ListFeedbackByUser(r.Context(), user.Username, 0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load feedback")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"feedback": entries})
	case http.MethodPost:
		user, ok := s.currentUser(w, r)
		if !ok {
			return
		}
		var req struct {
			ProductName string `json:"product_name"`
			Reaction    string `json:"reaction"`
			Notes       string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.ProductName = strings.TrimSpace(req.ProductName)
		if req.ProductName == "" || strings.TrimSpace(req.Reaction) == "" {
			writeError(w, http.StatusBadRequest, "product_name and reaction are required")
			return
		}
		entry := persistence.FeedbackEntry{
			Username:    user.Username,
			ProductName: req.ProductName,
			Reaction:    req.Reaction,
			Notes:       req.Notes,
		}
		if err := s.store.AddFeedback(r.Context(), entry); err != nil {
			log.Error("Failed to save feedback from %s: %v", user.Username, err)
			writeError(w, http.StatusInternalServerError, "failed to save feedback")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCommunity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	top, err := s.store.CountFeedbackByProduct(r.Context(), 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load community data")
		return
	}
	recent, err := s.store.ListRecentFeedback(r.Context(), 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load community data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"top_products": top,
		"recent":       recent,
	})
}

func (s *Server) handleAlternatives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	allergen := strings.TrimSpace(r.URL.Query().Get("allergen"))
	if allergen == "" {
		writeError(w, http.StatusBadRequest, "allergen query parameter is required")
		return
	}

	alternatives, err := s.store.ListSafeAlternatives(r.Context(), allergen)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load alternatives")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"allergen":     allergen,
		"alternatives": alternatives,
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotFound, "runtime settings are not enabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if _, ok := s.currentUser(w, r); !ok {
			return
		}
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		resp := map[string]any{"settings": settings}
		if info, err := icron.GetTriggerInfo(settings.RetentionCron, time.Now()); err == nil {
			resp["retention_schedule"] = map[string]any{
				"expression":      info.Expression,
				"next_run":        info.Next,
				"time_until_next": info.TimeUntilNext.String(),
			}
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPut:
		if _, ok := s.currentUser(w, r); !ok {
			return
		}
		var next config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updated, err := s.settings.UpdateRuntimeSettings(next)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(updated); err != nil {
				log.Error("Failed to apply runtime settings: %v", err)
				writeError(w, http.StatusInternalServerError, "failed to apply settings")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"settings": updated})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// currentUser authenticates the request and loads the account. On failure it
// writes 401 and returns ok=false.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (persistence.User, bool) {
	token := requestToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return persistence.User{}, false
	}
	userID, ok := s.sessions.Lookup(token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "session expired or invalid")
		return persistence.User{}, false
	}
	user, found, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil || !found {
		writeError(w, http.StatusUnauthorized, "session expired or invalid")
		return persistence.User{}, false
	}
	return user, true
}

func (s *Server) validateAllergens(allergens []string) error {
	for _, name := range allergens {
		if !s.catalog.Contains(name) {
			return fmt.Errorf("unknown allergen: %s", name)
		}
	}
	return nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
