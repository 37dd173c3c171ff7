// Package apitest runs an in-process fake of the NutriFacts backend for
// tests of the API client and the services built on it.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"nutrifacts/internal/domain"
)

const tokenTTL = 15 * time.Minute

var signingKey = []byte("apitest-signing-key")

// Response is a canned reply: status code and a JSON-encodable body.
type Response struct {
	Status int
	Body   any
}

// Upload describes the last image received by the scan endpoint.
type Upload struct {
	Field       string
	FileName    string
	ContentType string
	Size        int
}

// Record is a history entry as the fake stores it.
type Record struct {
	ID          string
	Owner       string
	ProductName string
	ScanDate    time.Time
	Fields      map[string]any
}

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	srv *httptest.Server

	mu        sync.Mutex
	users     map[string]string
	access    map[string]string
	refresh   map[string]string
	records   []Record
	nextID    int
	calls     map[string]int
	scan      Response
	scanDelay time.Duration
	save      *Response
	history   *Response
	upload    Upload
}

// New starts a fake backend. Scans succeed with OatBar by default.
func New() *Server {
	s := &Server{
		users:   make(map[string]string),
		access:  make(map[string]string),
		refresh: make(map[string]string),
		calls:   make(map[string]int),
		scan:    ScanSuccess(OatBar()),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.countCalls)
	api.HandleFunc("/login/", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/register/", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/token/refresh/", s.handleRefresh).Methods(http.MethodPost)
	api.Handle("/scan-image/", s.requireAuth(s.handleScan)).Methods(http.MethodPost)
	api.Handle("/save-nutrition-data/", s.requireAuth(s.handleSave)).Methods(http.MethodPost)
	api.Handle("/nutrition-history/", s.requireAuth(s.handleHistory)).Methods(http.MethodGet)

	s.srv = httptest.NewServer(r)
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// BaseURL is the address to hand to the API client.
func (s *Server) BaseURL() string {
	return s.srv.URL + "/api"
}

// OatBar is the recognizer output for the reference oat bar label.
func OatBar() map[string]any {
	return map[string]any{
		"fat_100g":           15.0,
		"saturated-fat_100g": 3.0,
		"trans-fat_100g":     0.0,
		"cholesterol_100g":   0.0,
		"sodium_100g":        0.2,
		"carbohydrates_100g": 60.0,
		"fiber_100g":         7.0,
		"sugars_100g":        20.0,
		"proteins_100g":      10.0,
		"nutri_score":        "C",
	}
}

// ScanSuccess wraps data in the scan endpoint's success envelope.
func ScanSuccess(data map[string]any) Response {
	return Response{Status: http.StatusOK, Body: map[string]any{"success": true, "data": data}}
}

// AddUser registers an account directly.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

// IssueSession mints a token pair for email whose access token expires
// after ttl (negative for an already expired token).
func (s *Server) IssueSession(email string, ttl time.Duration) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(email, ttl)
}

func (s *Server) issueLocked(email string, ttl time.Duration) domain.Session {
	access := mustSign("access", email, ttl)
	refresh := mustSign("refresh", email, 24*time.Hour)
	s.access[access] = email
	s.refresh[refresh] = email
	return domain.Session{AccessToken: access, RefreshToken: refresh}
}

func mustSign(kind, email string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"token_type": kind,
		"sub":        email,
		"jti":        uuid.NewString(),
		"exp":        time.Now().Add(ttl).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(fmt.Sprintf("apitest: signing token: %v", err))
	}
	return tok
}

// SetScan replaces the scan endpoint's reply.
func (s *Server) SetScan(resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scan = resp
}

// SetScanDelay holds scan replies back by d, or until the client gives up.
func (s *Server) SetScanDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanDelay = d
}

// FailSaves makes the save endpoint reply with resp and store nothing. A
// nil resp restores normal behaviour.
func (s *Server) FailSaves(resp *Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save = resp
}

// FailHistory makes the history endpoint reply with resp. A nil resp
// restores normal behaviour.
func (s *Server) FailHistory(resp *Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = resp
}

// Calls returns how many requests reached path (relative to BaseURL),
// authenticated or not.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests received on any endpoint.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// LastUpload returns the last image the scan endpoint received.
func (s *Server) LastUpload() Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload
}

// Records returns a copy of the stored history, oldest first.
func (s *Server) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// AddRecord stores a record for owner as though it had been saved. fields
// use the save payload's keys.
func (s *Server) AddRecord(owner, productName string, scanDate time.Time, fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(owner, productName, scanDate, fields)
}

func (s *Server) addLocked(owner, productName string, scanDate time.Time, fields map[string]any) string {
	s.nextID++
	id := fmt.Sprint(s.nextID)
	s.records = append(s.records, Record{ID: id, Owner: owner, ProductName: productName, ScanDate: scanDate, Fields: fields})
	return id
}

func (s *Server) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[strings.TrimPrefix(r.URL.Path, "/api")]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next func(http.ResponseWriter, *http.Request, string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Authentication credentials were not provided."})
			return
		}
		s.mu.Lock()
		email, known := s.access[token]
		s.mu.Unlock()
		if !known || expired(token) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next(w, r, email)
	})
}

func expired(token string) bool {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return signingKey, nil })
	return err != nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct{ Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Email and password are required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if pw, ok := s.users[in.Email]; !ok || pw != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid credentials"})
		return
	}
	sess := s.issueLocked(in.Email, tokenTTL)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"access":  sess.AccessToken,
		"refresh": sess.RefreshToken,
		"user":    map[string]any{"email": in.Email},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct{ Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Email and password are required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[in.Email]; ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"email": []string{"A user with this email already exists."}})
		return
	}
	s.users[in.Email] = in.Password
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered successfully"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"refresh": []string{"This field is required."}})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.refresh[in.Refresh]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	access := mustSign("access", email, tokenTTL)
	s.access[access] = email
	writeJSON(w, http.StatusOK, map[string]any{"access": access})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request, _ string) {
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No image provided"})
		return
	}
	n, _ := io.Copy(io.Discard, file)
	_ = file.Close()

	s.mu.Lock()
	s.upload = Upload{Field: "image", FileName: header.Filename, ContentType: header.Header.Get("Content-Type"), Size: int(n)}
	resp, delay := s.scan, s.scanDelay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, resp.Status, resp.Body)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, email string) {
	var in map[string]any
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.save != nil {
		writeJSON(w, s.save.Status, s.save.Body)
		return
	}
	name, _ := in["product_name"].(string)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Product name is required"})
		return
	}
	id := s.addLocked(email, name, time.Now().UTC(), in)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Nutritional data saved successfully",
		"data": map[string]any{
			"product_id":           uuid.NewString(),
			"nutrition_history_id": id,
			"user_id":              email,
		},
	})
}

// historyKeys maps the save payload's spellings to the listing's.
var historyKeys = map[string]string{
	"fat_100g":           "fat_100g",
	"saturated-fat_100g": "saturated_fat_100g",
	"trans-fat_100g":     "trans_fat_100g",
	"cholesterol_100g":   "cholesterol_100g",
	"sodium_100g":        "sodium_100g",
	"carbohydrates_100g": "carbohydrates_100g",
	"fiber_100g":         "fiber_100g",
	"sugars_100g":        "sugars_100g",
	"proteins_100g":      "proteins_100g",
	"nutri_score":        "nutri_score",
	"protein":            "protein",
	"carbs":              "carbs",
	"fat":                "fat",
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history != nil {
		writeJSON(w, s.history.Status, s.history.Body)
		return
	}
	out := make([]map[string]any, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if rec.Owner != email {
			continue
		}
		item := map[string]any{
			"id":           rec.ID,
			"product_name": rec.ProductName,
			"scan_date":    rec.ScanDate.Format(time.RFC3339Nano),
			"calories":     0,
		}
		for from, to := range historyKeys {
			if v, ok := rec.Fields[from]; ok {
				item[to] = v
			}
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
