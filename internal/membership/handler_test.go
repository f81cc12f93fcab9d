package membership

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymdesk/internal/fallback"
	"gymdesk/internal/notify"
	"gymdesk/internal/store"
)

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRegisterAndFetch(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, f.notices, nil, nil).Router()

	rec := doJSON(t, h, http.MethodPost, "/api/members/", registration())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID           string `json:"id"`
		MemberNumber string `json:"memberNumber"`
		ExpiryDate   string `json:"expiryDate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Len(t, created.MemberNumber, 6)
	assert.Equal(t, "2024-06-10", created.ExpiryDate)

	rec = doJSON(t, h, http.MethodGet, "/api/members/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		ID              string `json:"id"`
		EffectiveStatus string `json:"effectiveStatus"`
		DaysLeft        int    `json:"daysLeft"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, created.ID, view.ID)
	assert.Equal(t, "active", view.EffectiveStatus)
	assert.Equal(t, 92, view.DaysLeft)

	rec = doJSON(t, h, http.MethodGet, "/api/members/"+created.ID+"/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payments []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payments))
	assert.Len(t, payments, 1)
}

func TestHandlerIgnoresClientPrice(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, f.notices, nil, nil).Router()

	body := map[string]any{}
	raw, err := json.Marshal(registration())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	body["membershipCost"] = "1"

	rec := doJSON(t, h, http.MethodPost, "/api/members/", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID             string `json:"id"`
		MembershipCost string `json:"membershipCost"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "80", created.MembershipCost)

	payments := f.svc.ListPayments(context.Background(), created.ID)
	require.Len(t, payments, 1)
	assert.Equal(t, "80", payments[0].Amount.String())
}

func TestHandlerValidationErrors(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, f.notices, nil, nil).Router()

	in := registration()
	in.FirstName = ""
	rec := doJSON(t, h, http.MethodPost, "/api/members/", in)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "firstName")

	req := httptest.NewRequest(http.MethodPost, "/api/members/", bytes.NewBufferString("{not json"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerErrorStatuses(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, f.notices, nil, nil).Router()

	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/api/members/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodGet, "/api/reports/abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodGet, "/api/dashboard?asOf=tomorrow", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/api/reports/2024", nil).Code)

	cacheOnly := NewService(store.New(nil, fallback.New(fallback.NewMemoryBackend(), nil), nil), Options{})
	h = NewHandler(cacheOnly, nil, nil, nil).Router()
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, h, http.MethodDelete, "/api/members/any", nil).Code)
}

func TestHandlerGate(t *testing.T) {
	f := newFixture(t)
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	h := NewHandler(f.svc, f.notices, BasicAuthGate("admin", hash), nil).Router()

	rec := doJSON(t, h, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/healthz", nil).Code)
}

func TestHandlerNotifications(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, f.notices, nil, nil).Router()
	id := f.notices.Show(notify.LevelInfo, "Offline", "Using the local cache")

	rec := doJSON(t, h, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notices []notify.Notice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notices))
	require.Len(t, notices, 1)
	assert.Equal(t, "Offline", notices[0].Title)

	assert.Equal(t, http.StatusNoContent, doJSON(t, h, http.MethodDelete, "/api/notifications/"+id, nil).Code)
	assert.Empty(t, f.notices.Snapshot())
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	ok, err := hash.Verify("s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hash.Verify("guess")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = PasswordHash{Hash: hash.Hash, Salt: "%%%"}.Verify("s3cret")
	assert.Error(t, err)
}
