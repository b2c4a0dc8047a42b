package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"learntrust-backend/internal/certificates"
	"learntrust-backend/internal/middleware"
	"learntrust-backend/internal/models"
	"learntrust-backend/internal/sequence"
	"learntrust-backend/internal/services"
	"learntrust-backend/internal/token"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func authedRequest(method, target, body string, principalID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, principalID)
	return req.WithContext(ctx)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// signedToken builds a wire-format grant directly, for cases Issue
// refuses to produce, like an already expired one.
func signedToken(t *testing.T, secret string, payload token.Payload) string {
	t.Helper()
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payloadBytes)
	return base64.RawURLEncoding.EncodeToString(payloadBytes) + "." + hex.EncodeToString(mac.Sum(nil))
}

func TestWatchEventValidation(t *testing.T) {
	// Validation rejects before the guard is ever consulted, so a nil
	// guard is safe here.
	h := NewEventsHandler(nil)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "invalid module id",
			body:  `{"module_id":"not-a-uuid","event_type":"heartbeat","sequence_number":1}`,
			field: "module_id",
		},
		{
			name:  "unknown event type",
			body:  `{"module_id":"` + uuid.NewString() + `","event_type":"telepathy","sequence_number":1}`,
			field: "event_type",
		},
		{
			name:  "zero sequence number",
			body:  `{"module_id":"` + uuid.NewString() + `","event_type":"heartbeat","sequence_number":0}`,
			field: "sequence_number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, "/api/v1/events/watch", tt.body, uuid.New())
			rec := httptest.NewRecorder()

			h.WatchEvent(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			resp := decodeError(t, rec)
			if resp.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %s", resp.Error.Code)
			}
			if _, ok := resp.Error.Fields[tt.field]; !ok {
				t.Errorf("expected field error for %s, got %v", tt.field, resp.Error.Fields)
			}
		})
	}
}

func TestWatchEventMalformedBody(t *testing.T) {
	h := NewEventsHandler(nil)

	req := authedRequest(http.MethodPost, "/api/v1/events/watch", "{not json", uuid.New())
	rec := httptest.NewRecorder()

	h.WatchEvent(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStreamTokenErrorCodes(t *testing.T) {
	tokens := token.NewService("handler-test-secret")
	h := NewModulesHandler(nil, nil, tokens, nil, 10*time.Minute)

	principalID := uuid.New()
	moduleID := uuid.New()

	valid, err := tokens.Issue(principalID, moduleID, 10*time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	otherSecret := token.NewService("some-other-secret")
	forged, err := otherSecret.Issue(principalID, moduleID, 10*time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	expired := signedToken(t, "handler-test-secret", token.Payload{
		UserID:   principalID,
		ModuleID: moduleID,
		Expiry:   time.Now().Add(-time.Minute).Unix(),
	})

	tests := []struct {
		name       string
		token      string
		principal  uuid.UUID
		wantStatus int
		wantCode   string
	}{
		{"valid grant", valid, principalID, http.StatusOK, ""},
		{"missing token", "", principalID, http.StatusForbidden, "TOKEN_MISSING"},
		{"malformed token", "garbage", principalID, http.StatusForbidden, "TOKEN_MALFORMED"},
		{"forged signature", forged, principalID, http.StatusForbidden, "TOKEN_BAD_SIGNATURE"},
		{"expired grant", expired, principalID, http.StatusForbidden, "TOKEN_EXPIRED"},
		{"wrong principal", valid, uuid.New(), http.StatusForbidden, "TOKEN_CONTEXT_MISMATCH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(http.MethodGet, "/api/v1/modules/"+moduleID.String()+"/stream?token="+tt.token, "", tt.principal)
			req = withURLParam(req, "id", moduleID.String())
			rec := httptest.NewRecorder()

			h.Stream(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantCode != "" {
				resp := decodeError(t, rec)
				if resp.Error.Code != tt.wantCode {
					t.Errorf("expected code %s, got %s", tt.wantCode, resp.Error.Code)
				}
			}
		})
	}
}

func TestHandleServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "non-monotonic sequence",
			err:        &sequence.NonMonotonicError{LastAccepted: 7, MinRequired: 8},
			wantStatus: http.StatusConflict,
			wantCode:   "SEQUENCE_CONFLICT",
		},
		{
			name:       "stale event",
			err:        &sequence.StaleEventError{Age: 45 * time.Second, Window: 30 * time.Second},
			wantStatus: http.StatusBadRequest,
			wantCode:   "STALE_EVENT",
		},
		{
			name:       "concurrent submission",
			err:        sequence.ErrSequenceConflict,
			wantStatus: http.StatusConflict,
			wantCode:   "SEQUENCE_CONFLICT",
		},
		{
			name:       "not found",
			err:        &services.NotFoundError{Message: "Module not found"},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "integrity failure",
			err:        &services.IntegrityError{Reason: "prev_hash does not match predecessor"},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTEGRITY_ERROR",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			handleServiceError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			resp := decodeError(t, rec)
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestNonMonotonicMessagePassedThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handleServiceError(rec, req, &sequence.NonMonotonicError{LastAccepted: 7, MinRequired: 8})

	resp := decodeError(t, rec)
	if !strings.Contains(resp.Error.Message, "greater than 7") {
		t.Errorf("expected message to name the minimum, got %q", resp.Error.Message)
	}
}

type memCertStore struct {
	byCode map[uuid.UUID]models.Certificate
}

func (s *memCertStore) InsertTx(ctx context.Context, tx pgx.Tx, c *models.Certificate) error {
	s.byCode[c.VerificationCode] = *c
	return nil
}

func (s *memCertStore) GetByVerificationCode(ctx context.Context, code uuid.UUID) (*models.Certificate, error) {
	c, ok := s.byCode[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (s *memCertStore) GetByStudentAndCourse(ctx context.Context, studentID, courseID uuid.UUID) (*models.Certificate, error) {
	return nil, pgx.ErrNoRows
}

func (s *memCertStore) Revoke(ctx context.Context, id uuid.UUID) error { return nil }

type nopRecorder struct{}

func (nopRecorder) Append(ctx context.Context, principalID uuid.UUID, eventType string, metadata interface{}) (models.AuditEntry, error) {
	return models.AuditEntry{}, nil
}

func (nopRecorder) AppendTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, eventType string, metadata interface{}) (models.AuditEntry, error) {
	return models.AuditEntry{}, nil
}

func (nopRecorder) Publish(ctx context.Context, entry models.AuditEntry) {}

type nopTx struct{ pgx.Tx }

func (nopTx) Commit(context.Context) error   { return nil }
func (nopTx) Rollback(context.Context) error { return nil }

type nopDB struct{}

func (nopDB) Begin(ctx context.Context) (pgx.Tx, error) { return nopTx{}, nil }

func TestCertificateVerifyEndpoint(t *testing.T) {
	store := &memCertStore{byCode: map[uuid.UUID]models.Certificate{}}
	svc := certificates.NewService(nopDB{}, store, token.NewService("verify-secret"), nopRecorder{})
	h := NewCertificatesHandler(svc, nil, nil, nil)

	cert, err := svc.Issue(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	verify := func(code string) (int, models.CertificateVerification) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/certificates/verify/"+code, nil)
		req = withURLParam(req, "code", code)
		rec := httptest.NewRecorder()
		h.Verify(rec, req)

		var result models.CertificateVerification
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("failed to decode verification: %v", err)
		}
		return rec.Code, result
	}

	status, result := verify(cert.VerificationCode.String())
	if status != http.StatusOK || !result.Valid {
		t.Fatalf("expected valid certificate, got status %d, valid=%v", status, result.Valid)
	}
	if result.StudentID == nil || *result.StudentID != cert.StudentID {
		t.Errorf("expected student %s in result", cert.StudentID)
	}

	// Unknown and malformed codes both come back invalid with no detail.
	status, result = verify(uuid.NewString())
	if status != http.StatusOK || result.Valid {
		t.Errorf("expected invalid result for unknown code, got status %d, valid=%v", status, result.Valid)
	}
	if result.StudentID != nil || result.CourseID != nil {
		t.Errorf("invalid result must not leak fields: %+v", result)
	}

	status, result = verify("not-a-code")
	if status != http.StatusOK || result.Valid {
		t.Errorf("expected invalid result for malformed code, got status %d, valid=%v", status, result.Valid)
	}
}
