package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clothpos/backend/internal/archive"
	"clothpos/backend/internal/config"
)

type fakeSession struct {
	ready   bool
	sendErr error
	mu      sync.Mutex
	sent    []string
}

func (f *fakeSession) Ready() bool { return f.ready }

func (f *fakeSession) Send(_ context.Context, phone string, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, phone+"|"+body)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "wamid.1", nil
}

type memoryLog struct {
	mu      sync.Mutex
	records []archive.MessageRecord
}

func (m *memoryLog) RecordMessage(_ context.Context, msg archive.MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, msg)
	return nil
}

func post(t *testing.T, handler http.Handler, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/send-message", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestSendMessageRejectedWhenNotReady(t *testing.T) {
	session := &fakeSession{ready: false}
	router := NewRouter(NewHandler(session, nil, nil), nil)

	rec, out := post(t, router, sendMessageRequest{Phone: "+91 98123", Message: "hi"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "WhatsApp client not ready", out["error"])
	assert.Empty(t, session.sent)
}

func TestSendMessageRequiresPhoneAndMessage(t *testing.T) {
	router := NewRouter(NewHandler(&fakeSession{ready: true}, nil, nil), nil)

	rec, out := post(t, router, map[string]string{"phone": "9198"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Phone and message are required", out["error"])

	rec, _ = post(t, router, map[string]string{"phone": "+ -", "message": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageNormalizesPhoneAndLogs(t *testing.T) {
	session := &fakeSession{ready: true}
	messages := &memoryLog{}
	router := NewRouter(NewHandler(session, messages, nil), nil)

	rec, out := post(t, router, sendMessageRequest{Phone: "+91 98123-45678", Message: "Daily Sales Summary"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Message sent successfully", out["message"])
	assert.Equal(t, "wamid.1", out["id"])
	assert.Equal(t, []string{"919812345678|Daily Sales Summary"}, session.sent)
	require.Len(t, messages.records, 1)
	assert.Equal(t, archive.StatusSent, messages.records[0].Status)
	assert.Equal(t, "919812345678", messages.records[0].Phone)
}

func TestSendMessageUpstreamFailureIs502(t *testing.T) {
	session := &fakeSession{ready: true, sendErr: errors.New("whatsapp api error: code=131026")}
	messages := &memoryLog{}
	router := NewRouter(NewHandler(session, messages, nil), nil)

	rec, out := post(t, router, sendMessageRequest{Phone: "919812345678", Message: "hi"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, false, out["success"])
	require.Len(t, messages.records, 1)
	assert.Equal(t, archive.StatusFailed, messages.records[0].Status)
	assert.Contains(t, messages.records[0].Error, "131026")
}

func TestHealthReflectsReadiness(t *testing.T) {
	session := &fakeSession{ready: false}
	handler := NewHandler(session, nil, nil)
	handler.started = time.Now().Add(-90 * time.Second)
	router := NewRouter(handler, nil)

	get := func() (*httptest.ResponseRecorder, map[string]any) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec, out
	}

	rec, out := get()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, out["ready"])
	assert.GreaterOrEqual(t, out["uptime"].(float64), 90.0)

	session.ready = true
	rec, out = get()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ready"])
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "919812345678", normalizePhone(" +91 98123-45678 "))
	assert.Equal(t, "", normalizePhone("+ - "))
}

func newCloudServer(t *testing.T, probeStatus *atomic.Int32, sendStatus int) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var lastBody atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v20.0/123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(probeStatus.Load()))
		_, _ = w.Write([]byte(`{"id":"123"}`))
	})
	mux.HandleFunc("POST /v20.0/123/messages", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		lastBody.Store(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(sendStatus)
		if sendStatus >= http.StatusBadRequest {
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.abc"}]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &lastBody
}

func cloudConfig(baseURL string) config.BridgeConfig {
	return config.BridgeConfig{
		AccessToken:   "token-1",
		PhoneNumberID: "123",
		BaseURL:       baseURL + "/",
		APIVersion:    "v20.0",
	}
}

func TestCloudSessionProbeAndSend(t *testing.T) {
	var probeStatus atomic.Int32
	probeStatus.Store(http.StatusOK)
	server, lastBody := newCloudServer(t, &probeStatus, http.StatusOK)
	session := NewCloudSession(cloudConfig(server.URL), nil)

	_, err := session.Send(context.Background(), "9198", "hi")
	require.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, session.Probe(context.Background()))
	require.True(t, session.Ready())

	id, err := session.Send(context.Background(), "919812345678", "hello")
	require.NoError(t, err)
	assert.Equal(t, "wamid.abc", id)
	body := lastBody.Load().(map[string]any)
	assert.Equal(t, "whatsapp", body["messaging_product"])
	assert.Equal(t, "919812345678", body["to"])
	assert.Equal(t, "text", body["type"])

	probeStatus.Store(http.StatusUnauthorized)
	require.Error(t, session.Probe(context.Background()))
	assert.False(t, session.Ready())
}

func TestCloudSessionRejectedSendDropsReadiness(t *testing.T) {
	var probeStatus atomic.Int32
	probeStatus.Store(http.StatusOK)
	server, _ := newCloudServer(t, &probeStatus, http.StatusUnauthorized)
	session := NewCloudSession(cloudConfig(server.URL), nil)
	require.NoError(t, session.Probe(context.Background()))

	_, err := session.Send(context.Background(), "919812345678", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code=190")
	assert.False(t, session.Ready())
}

func TestCloudSessionRunProbesUntilCancelled(t *testing.T) {
	var probeStatus atomic.Int32
	probeStatus.Store(http.StatusOK)
	server, _ := newCloudServer(t, &probeStatus, http.StatusOK)
	session := NewCloudSession(cloudConfig(server.URL), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		session.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, session.Ready, time.Second, 5*time.Millisecond)
	probeStatus.Store(http.StatusInternalServerError)
	require.Eventually(t, func() bool { return !session.Ready() }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
