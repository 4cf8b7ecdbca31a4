package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/db/dbtest"
	"github.com/zulandar/frontdesk/internal/dispatch"
	"github.com/zulandar/frontdesk/internal/frontdesk"
	"github.com/zulandar/frontdesk/internal/models"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T) (*gin.Engine, *frontdesk.Service) {
	t.Helper()
	gdb := dbtest.New(t)
	dbtest.Seed(t, gdb,
		&models.Employee{ID: "E1", Name: "Alice", Phone: "13900000001", Active: true},
	)
	svc := frontdesk.New(gdb, frontdesk.Options{
		Location:    time.UTC,
		HoldTTL:     10 * time.Minute,
		BusyBackoff: time.Millisecond,
		Log:         zaptest.NewLogger(t),
	})
	return NewRouter(svc, zaptest.NewLogger(t)), svc
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createJob(t *testing.T, r http.Handler, title string, fromHour, toHour int) models.Job {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/jobs", map[string]any{
		"title": title,
		"start": time.Date(2025, 12, 31, fromHour, 0, 0, 0, time.UTC),
		"end":   time.Date(2025, 12, 31, toHour, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Job](t, w)
}

func TestStart_RequiresService(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service is required")
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","subscribers":0}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "frontdesk_")
}

func TestInboundAndSessions(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/messages/inbound", map[string]any{
		"id": "m-1", "phone": "138 0000 0000", "body": "need a cleaner",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode[frontdesk.Ingested](t, w)
	assert.Equal(t, models.KindCustomer, got.Kind)
	assert.False(t, got.Duplicate)

	w = do(t, r, http.MethodPost, "/api/messages/inbound", map[string]any{
		"id": "m-1", "phone": "13800000000", "body": "need a cleaner",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[frontdesk.Ingested](t, w).Duplicate)

	w = do(t, r, http.MethodGet, "/api/sessions?unread=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Sessions    []models.Session `json:"sessions"`
		TotalUnread int64            `json:"total_unread"`
	}](t, w)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, "13800000000", list.Sessions[0].Phone)
	assert.EqualValues(t, 1, list.TotalUnread)

	w = do(t, r, http.MethodPost, "/api/sessions/13800000000/read", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/api/sessions/13800000000/messages?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode[[]models.Message](t, w)
	require.Len(t, msgs, 1)
	assert.Equal(t, "need a cleaner", msgs[0].Body)

	w = do(t, r, http.MethodGet, "/api/sessions/13800000000/messages?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInbound_MissingPhone(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/messages/inbound", map[string]any{"body": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutbound(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/messages/outbound", map[string]any{
		"phone": "13800000000", "body": "on our way",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msg := decode[models.Message](t, w)
	assert.Equal(t, models.Outbound, msg.Direction)
}

func TestJobLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)
	a := createJob(t, r, "Deep clean", 9, 11)
	b := createJob(t, r, "Windows", 10, 12)

	w := do(t, r, http.MethodPost, "/api/jobs/"+a.ID+"/hold", map[string]any{"employee_id": "E1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.JobHeld, decode[models.Job](t, w).State)

	w = do(t, r, http.MethodPost, "/api/jobs/"+b.ID+"/hold", map[string]any{"employee_id": "E1"})
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, apperr.KindConflict, body.Kind)
	assert.Equal(t, []string{a.ID}, body.JobIDs)

	w = do(t, r, http.MethodPost, "/api/jobs/"+a.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodPost, "/api/jobs/"+a.ID+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperr.KindInvalidTransition, decode[errorBody](t, w).Kind)

	w = do(t, r, http.MethodPost, "/api/jobs/"+a.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.JobDone, decode[models.Job](t, w).State)

	w = do(t, r, http.MethodPost, "/api/jobs/"+b.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/jobs/"+a.ID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.JobEvent](t, w), 4)

	w = do(t, r, http.MethodGet, "/api/jobs?state=done", nil)
	require.Equal(t, http.StatusOK, w.Code)
	done := decode[[]models.Job](t, w)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	w = do(t, r, http.MethodGet, "/api/jobs/job-zzzzz", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperr.KindNotFound, decode[errorBody](t, w).Kind)
}

func TestCreateJob_InvalidWindow(t *testing.T) {
	r, _ := newTestRouter(t)
	start := time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC)
	w := do(t, r, http.MethodPost, "/api/jobs", map[string]any{
		"title": "Backwards", "start": start, "end": start.Add(-time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.KindInvalidWindow, decode[errorBody](t, w).Kind)
}

func TestJobs_BadTimeFilter(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/api/jobs?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExpire_EmptyIsArray(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/jobs/expire", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestLeaveFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	job := createJob(t, r, "Deep clean", 14, 16)
	w := do(t, r, http.MethodPost, "/api/jobs/"+job.ID+"/hold", map[string]any{"employee_id": "E1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/api/messages/inbound", map[string]any{
		"phone": "13900000001", "body": "请假 2025-12-31 10:00-18:00 原因：看病",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode[frontdesk.Ingested](t, w)
	require.NotNil(t, got.Leave)
	require.Len(t, got.Conflicts, 1)

	w = do(t, r, http.MethodGet, "/api/leave?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.LeaveRequest](t, w), 1)

	path := "/api/leave/" + jsonNumber(got.Leave.ID)
	w = do(t, r, http.MethodGet, path+"/conflicts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Job](t, w), 1)

	w = do(t, r, http.MethodPost, path+"/resolve", map[string]any{"action": "reschedule"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[dispatch.LeaveResolution](t, w)
	assert.Equal(t, models.LeaveAcknowledged, res.Request.Status)

	w = do(t, r, http.MethodPost, path+"/resolve", map[string]any{"action": "reschedule"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodGet, "/api/leave/abc/conflicts", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContactsAndEmployees(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/messages/inbound", map[string]any{"phone": "13800000000", "body": "hi"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodGet, "/api/contacts?kind=customer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Contact](t, w), 1)

	w = do(t, r, http.MethodPut, "/api/contacts/13800000000/kind", map[string]any{"kind": "employee"})
	assert.Equal(t, http.StatusNotFound, w.Code, "employee kind needs a roster entry")

	w = do(t, r, http.MethodPut, "/api/contacts/13800000000/kind", map[string]any{"kind": "vendor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/api/contacts/13800000000/kind", map[string]any{"kind": "customer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.KindCustomer, decode[models.Contact](t, w).Kind)

	w = do(t, r, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, w.Code)
	emps := decode[[]models.Employee](t, w)
	require.Len(t, emps, 1)
	assert.Equal(t, "Alice", emps[0].Name)
}

func TestKnowledgeRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/kb", map[string]any{
		"title": "Pricing", "content": "Cleaning costs 50 per hour", "tags": "price cleaning",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entry := decode[models.KBEntry](t, w)
	assert.True(t, entry.Enabled)

	w = do(t, r, http.MethodPut, "/api/kb/"+jsonNumber(entry.ID), map[string]any{
		"title": "Pricing", "content": "Cleaning costs 60 per hour", "enabled": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.KBEntry](t, w)
	assert.Equal(t, 2, updated.Version)
	assert.False(t, updated.Enabled)

	w = do(t, r, http.MethodGet, "/api/kb?q=Pricing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.KBEntry](t, w), 1)

	w = do(t, r, http.MethodGet, "/api/kb/search?q=cleaning+price", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, r, http.MethodDelete, "/api/kb/"+jsonNumber(entry.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, "/api/kb/"+jsonNumber(entry.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftRoute(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/messages/inbound", map[string]any{"phone": "13800000000", "body": "how much"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodPost, "/api/sessions/13800000000/draft", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindInvalidWindow, http.StatusBadRequest},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindInvalidTransition, http.StatusConflict},
		{apperr.KindBusy, http.StatusServiceUnavailable},
		{apperr.KindStorage, http.StatusInternalServerError},
		{apperr.KindUnknown, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.kind))
		})
	}
}

func TestSSE(t *testing.T) {
	r, svc := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, _ := readSSE(t, reader)
	require.Equal(t, "connected", event)

	_, err = svc.SubmitMessage(context.Background(), frontdesk.Inbound{Phone: "13800000000", Body: "hello"})
	require.NoError(t, err)

	event, data := readSSE(t, reader)
	assert.Equal(t, frontdesk.EventMessage, event)
	assert.Contains(t, data, "hello")
}

// readSSE reads one event block and returns its event name and data line.
func readSSE(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	writeSSE(&buf, "leave", map[string]int{"id": 7})
	assert.Equal(t, "event: leave\ndata: {\"id\":7}\n\n", buf.String())
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
