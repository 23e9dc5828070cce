package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecorder отдает фиксированный блоб вместо микрофона.
type fakeRecorder struct {
	stops atomic.Int32
}

func (f *fakeRecorder) Start(context.Context) error { return nil }

func (f *fakeRecorder) Stop() ([]byte, error) {
	f.stops.Add(1)
	return []byte("audio-bytes"), nil
}

type fixedLocation struct{}

func (fixedLocation) Current() (float64, float64) { return 55.75, 37.61 }

func newCaptureTestServer(t *testing.T, uploads chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/sos":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(CreateSOSResult{DispatchID: "SOS-test", Status: "pending"})
		case strings.HasSuffix(r.URL.Path, "/audio"):
			uploads <- r.URL.Path
			_ = json.NewEncoder(w).Encode(map[string]string{"audio_url": "/audio/SOS-test.webm"})
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestController_DispatchUploadsCapturedAudio(t *testing.T) {
	// Подготовка
	uploads := make(chan string, 1)
	srv := newCaptureTestServer(t, uploads)
	defer srv.Close()

	api := NewAPIClient(srv.URL, "test-token")
	recorder := &fakeRecorder{}
	controller := NewController(api, nil, recorder, fixedLocation{}, testLogger(), 50*time.Millisecond)

	// Действие: взвод, затем истекший отсчет
	controller.StartCapture()
	controller.Dispatch()

	// Проверки: запись доехала до сервера под выданным dispatchId
	select {
	case path := <-uploads:
		assert.Equal(t, "/api/v1/sos/SOS-test/audio", path)
	case <-time.After(2 * time.Second):
		t.Fatal("captured audio was not uploaded")
	}
}

func TestController_AbortSkipsUpload(t *testing.T) {
	// Подготовка
	uploads := make(chan string, 1)
	srv := newCaptureTestServer(t, uploads)
	defer srv.Close()

	api := NewAPIClient(srv.URL, "test-token")
	recorder := &fakeRecorder{}
	controller := NewController(api, nil, recorder, fixedLocation{}, testLogger(), time.Hour)

	// Действие: отмена до истечения отсчета
	controller.StartCapture()
	controller.AbortCapture()

	// Проверки: запись оборвана, загрузки нет
	require.Eventually(t, func() bool {
		return recorder.stops.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case path := <-uploads:
		t.Fatalf("unexpected upload %s after abort", path)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestController_AbortIdempotent(t *testing.T) {
	// Подготовка
	uploads := make(chan string, 1)
	srv := newCaptureTestServer(t, uploads)
	defer srv.Close()

	api := NewAPIClient(srv.URL, "test-token")
	recorder := &fakeRecorder{}
	controller := NewController(api, nil, recorder, fixedLocation{}, testLogger(), time.Hour)
	controller.StartCapture()

	// Действие / Проверки: повторные отмены безопасны
	controller.AbortCapture()
	controller.AbortCapture()
	controller.AbortCapture()

	require.Eventually(t, func() bool {
		return recorder.stops.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
