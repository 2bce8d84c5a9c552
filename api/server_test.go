package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openclaw/qrgen/encoder"
	"github.com/openclaw/qrgen/store"
	"github.com/openclaw/qrgen/studio"
)

type testClient struct {
	t      *testing.T
	h      http.Handler
	sched  *studio.FakeScheduler
	srv    *Server
	cookie *http.Cookie
}

func newTestClient(t *testing.T, encoderName string, withHistory bool) *testClient {
	t.Helper()
	enc, err := encoder.New(encoderName)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := studio.NewFakeScheduler()

	var history *store.HistoryStore
	opts := SessionOptions{
		Encoder:    enc,
		Controller: studio.Config{Sizes: []int{128, 256, 512}, DefaultSize: 128},
		Clock:      sched.Clock(),
		Scheduler:  sched,
		Log:        log,
	}
	if withHistory {
		history, err = store.NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatalf("history store: %v", err)
		}
		t.Cleanup(func() { history.Close() })
		opts.OnRender = HistoryRecorder(history, encoderName, log)
	}

	srv := &Server{
		Sessions: NewSessions(opts),
		History:  history,
		Log:      log,
		Version:  "test",
	}
	return &testClient{t: t, h: NewRouter(srv), sched: sched, srv: srv}
}

func (c *testClient) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func (c *testClient) state(rec *httptest.ResponseRecorder) State {
	c.t.Helper()
	var st State
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		c.t.Fatalf("decode state: %v", err)
	}
	return st
}

func TestPageListsSizesAndSetsCookie(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)
	rec := c.do(http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if c.cookie == nil {
		t.Fatalf("no session cookie")
	}
	body := rec.Body.String()
	for _, want := range []string{`value="128" selected`, `value="256"`, `value="512"`, `class="qr-body"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestFirstStateRequestsFocus(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)
	st := c.state(c.do(http.MethodGet, "/state", nil))
	if !st.Focus {
		t.Fatalf("initial state should focus the text field")
	}
	st = c.state(c.do(http.MethodGet, "/state", nil))
	if st.Focus {
		t.Fatalf("focus request should be consumed")
	}
}

func TestGenerateEmptyTextReportsError(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)
	c.do(http.MethodGet, "/state", nil)

	st := c.state(c.do(http.MethodPost, "/events/generate", textEvent{Text: "   "}))
	if st.Artifact != nil {
		t.Fatalf("artifact rendered for blank text")
	}
	if st.Notification == nil || st.Notification.Kind != studio.NotifyError {
		t.Fatalf("notification = %+v", st.Notification)
	}
	if !st.Focus {
		t.Fatalf("blank submit should refocus the input")
	}
}

func TestGenerateThenDownloadOverHTTP(t *testing.T) {
	for _, name := range []string{encoder.NameImage, encoder.NameSurface} {
		c := newTestClient(t, name, true)

		if rec := c.do(http.MethodPost, "/events/size", sizeEvent{Size: 256}); rec.Code != http.StatusOK {
			t.Fatalf("%s: size status = %d", name, rec.Code)
		}
		st := c.state(c.do(http.MethodPost, "/events/generate", textEvent{Text: "https://example.com"}))
		if st.Artifact == nil || st.Artifact.Kind != studio.ElementKind(name) {
			t.Fatalf("%s: artifact = %+v", name, st.Artifact)
		}
		if st.Notification == nil || st.Notification.Message != studio.MsgGenerated {
			t.Fatalf("%s: notification = %+v", name, st.Notification)
		}
		if st.Size != 256 {
			t.Fatalf("%s: size = %d", name, st.Size)
		}

		c.sched.Advance(studio.DefaultAnimationDelay)
		st = c.state(c.do(http.MethodGet, "/state", nil))
		if st.Artifact.Animation != studio.EntranceAnimation {
			t.Fatalf("%s: animation = %q", name, st.Artifact.Animation)
		}

		rec := c.do(http.MethodPost, "/events/download", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: download status = %d", name, rec.Code)
		}
		st = c.state(rec)
		if st.Prevented || !strings.HasPrefix(st.Href, "data:image/png;base64,") {
			t.Fatalf("%s: download state = %+v", name, st)
		}

		file := c.do(http.MethodGet, "/download.png", nil)
		if file.Code != http.StatusOK || file.Header().Get("Content-Type") != "image/png" {
			t.Fatalf("%s: file status=%d type=%q", name, file.Code, file.Header().Get("Content-Type"))
		}
		img, err := png.Decode(file.Body)
		if err != nil {
			t.Fatalf("%s: png decode: %v", name, err)
		}
		if img.Bounds().Dx() != 256 {
			t.Fatalf("%s: width = %d", name, img.Bounds().Dx())
		}

		hist := c.do(http.MethodGet, "/history?limit=5", nil)
		var gens []store.Generation
		if err := json.NewDecoder(hist.Body).Decode(&gens); err != nil {
			t.Fatalf("%s: decode history: %v", name, err)
		}
		if len(gens) != 1 || gens[0].Content != "https://example.com" || gens[0].Size != 256 || gens[0].Encoder != name {
			t.Fatalf("%s: history = %+v", name, gens)
		}
	}
}

func TestDownloadWithoutArtifactConflicts(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)

	rec := c.do(http.MethodPost, "/events/download", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	st := c.state(rec)
	if !st.Prevented || st.Href != "" {
		t.Fatalf("state = %+v", st)
	}
	if st.Notification == nil || st.Notification.Message != studio.MsgNoArtifact {
		t.Fatalf("notification = %+v", st.Notification)
	}

	if file := c.do(http.MethodGet, "/download.png", nil); file.Code != http.StatusNotFound {
		t.Fatalf("file status = %d, want 404", file.Code)
	}
}

func TestSizeChangeRegeneratesWithText(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)

	st := c.state(c.do(http.MethodPost, "/events/size", sizeEvent{Size: 256}))
	if st.Artifact != nil {
		t.Fatalf("size change without text rendered")
	}

	c.do(http.MethodPost, "/events/text", textEvent{Text: "hello"})
	st = c.state(c.do(http.MethodPost, "/events/size", sizeEvent{Size: 512}))
	if st.Artifact == nil {
		t.Fatalf("size change with text did not render")
	}
	_, data, err := studio.DecodeDataURL(st.Artifact.Src)
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil || img.Bounds().Dx() != 512 {
		t.Fatalf("artifact width wrong: err=%v", err)
	}

	if rec := c.do(http.MethodPost, "/events/size", sizeEvent{Size: 300}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported size status = %d", rec.Code)
	}
}

func TestKeyPressAndTextEdit(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)

	st := c.state(c.do(http.MethodPost, "/events/text", textEvent{Text: "abc"}))
	if !st.GenerateEnabled {
		t.Fatalf("generate should be enabled with text")
	}
	if st.Artifact != nil {
		t.Fatalf("text edit rendered")
	}

	st = c.state(c.do(http.MethodPost, "/events/key", keyEvent{Key: "a", Text: "abc"}))
	if st.Prevented || st.Artifact != nil {
		t.Fatalf("plain key state = %+v", st)
	}
	st = c.state(c.do(http.MethodPost, "/events/key", keyEvent{Key: "Enter", Text: "abc"}))
	if !st.Prevented || st.Artifact == nil {
		t.Fatalf("enter state = %+v", st)
	}
}

func TestNotificationExpiresOnVirtualClock(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)
	st := c.state(c.do(http.MethodPost, "/events/generate", textEvent{Text: "hi"}))
	if st.Notification == nil || st.Notification.Phase != studio.PhaseSlidingIn {
		t.Fatalf("notification = %+v", st.Notification)
	}

	c.sched.Advance(studio.DefaultVisibleDuration + studio.DefaultSlideDuration)
	st = c.state(c.do(http.MethodGet, "/state", nil))
	if st.Notification != nil {
		t.Fatalf("notification still present: %+v", st.Notification)
	}
	if st.Artifact == nil {
		t.Fatalf("artifact vanished with the notification")
	}
}

func TestRepeatGenerateRestartsNotification(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)
	first := c.state(c.do(http.MethodPost, "/events/generate", textEvent{Text: "same"}))
	c.sched.Advance(studio.DefaultSlideDuration)
	second := c.state(c.do(http.MethodPost, "/events/generate", textEvent{Text: "same"}))

	if first.Notification == nil || second.Notification == nil {
		t.Fatalf("missing notification: %+v %+v", first.Notification, second.Notification)
	}
	if first.Notification.Seq == second.Notification.Seq {
		t.Fatalf("repeat notification kept seq %d", second.Notification.Seq)
	}
	if second.Notification.Phase != studio.PhaseSlidingIn {
		t.Fatalf("repeat phase = %s", second.Notification.Phase)
	}
}

func TestSessionsAreIsolatedAndSwept(t *testing.T) {
	a := newTestClient(t, encoder.NameImage, false)
	a.do(http.MethodPost, "/events/generate", textEvent{Text: "mine"})

	// Second browser sharing the same server but no cookie.
	b := &testClient{t: t, h: a.h, sched: a.sched, srv: a.srv}
	st := b.state(b.do(http.MethodGet, "/state", nil))
	if st.Artifact != nil {
		t.Fatalf("sessions share artifacts")
	}
	if n := a.srv.Sessions.Len(); n != 2 {
		t.Fatalf("sessions = %d, want 2", n)
	}

	a.sched.Advance(29 * time.Minute)
	a.do(http.MethodGet, "/state", nil)
	a.sched.Advance(2 * time.Minute)
	if n := a.srv.Sessions.Sweep(); n != 1 {
		t.Fatalf("swept = %d, want only the idle session", n)
	}
	if _, ok := a.srv.Sessions.sessions[a.cookie.Value]; !ok {
		t.Fatalf("active session was swept")
	}
	a.sched.Advance(30 * time.Minute)
	if n := a.srv.Sessions.Sweep(); n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}
}

func TestHealthAndHistoryDisabled(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)
	rec := c.do(http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
	if rec := c.do(http.MethodGet, "/history", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("history status = %d", rec.Code)
	}
}

func TestOperationsAllowCrossOrigin(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)
	rec := c.do(http.MethodGet, "/healthz", nil)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}
	if rec := c.do(http.MethodOptions, "/history", nil); rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := c.do(http.MethodGet, "/state", nil).Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("page state exposed cross-origin: %q", got)
	}
}

func TestBadEventBody(t *testing.T) {
	c := newTestClient(t, encoder.NameImage, false)
	req := httptest.NewRequest(http.MethodPost, "/events/generate", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
