package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"

	"github.com/starford/flashdeck/internal/flashcards"
	"github.com/starford/flashdeck/internal/session"
	"github.com/starford/flashdeck/internal/sse"
	"github.com/starford/flashdeck/internal/testutil"
)

type testEnv struct {
	svc    *flashcards.Service
	router http.Handler
	fs     afero.Fs
}

// newTestEnv builds the full router over an in-memory card folder.
// An empty token means auth is disabled.
func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	return newTestEnvWithCards(t, token, true)
}

func newTestEnvWithCards(t *testing.T, token string, local bool) *testEnv {
	t.Helper()

	fs, store := testutil.TestCards(t, map[string]string{
		"cat.png":   "cat-bytes",
		"dog.jpg":   "dog-bytes",
		"Owl.PNG":   "owl-bytes",
		"notes.txt": "not an image",
	})
	db := testutil.TestHistory(t)

	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	svc := flashcards.NewService(testutil.TestResolver(store, 2), session.NewMemoryStore(0), "", testutil.Logger(),
		flashcards.WithHistory(db), flashcards.WithPublisher(broker))

	cards := NewCardHandler(nil, "")
	if local {
		cards = NewCardHandler(store, "")
	}

	r := chi.NewRouter()
	r.Mount("/api", NewRouter(svc, token != "", token, broker, cards))
	MountCards(r, cards)

	return &testEnv{svc: svc, router: r, fs: fs}
}

func (e *testEnv) call(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()
	w := e.call(t, http.MethodPost, "/api/sessions", nil, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create session = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeState(t, w.Body.Bytes()).ID
}

func decodeState(t *testing.T, data []byte) SessionState {
	t.Helper()
	var v SessionState
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode state: %v (%s)", err, data)
	}
	return v
}

func decodeStateErr(t *testing.T, data []byte) stateErrResponse {
	t.Helper()
	var v stateErrResponse
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode error: %v (%s)", err, data)
	}
	return v
}

func TestSessionFlow(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)
	base := "/api/sessions/" + id

	w := e.call(t, http.MethodPost, base+"/words", WordsRequest{Words: "Cat, owl, zebra, DOG"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("words = %d, body = %s", w.Code, w.Body.String())
	}
	st := decodeState(t, w.Body.Bytes())
	want := []string{"/cards/cat.png", "/cards/Owl.PNG", "/cards/dog.jpg"}
	if strings.Join(st.Deck, ",") != strings.Join(want, ",") {
		t.Fatalf("deck = %v, want %v", st.Deck, want)
	}
	if st.Screen != session.ScreenGallery || st.Selection != 3 {
		t.Fatalf("state = %+v", st)
	}

	w = e.call(t, http.MethodPost, base+"/selection/1/toggle", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("toggle = %d", w.Code)
	}

	w = e.call(t, http.MethodPost, base+"/start", nil, "")
	st = decodeState(t, w.Body.Bytes())
	if st.Screen != session.ScreenPresentation || st.Current != "/cards/cat.png" || st.Total != 2 {
		t.Fatalf("start state = %+v", st)
	}

	w = e.call(t, http.MethodPost, base+"/next", nil, "")
	if st = decodeState(t, w.Body.Bytes()); st.Current != "/cards/dog.jpg" {
		t.Errorf("next current = %q", st.Current)
	}
	w = e.call(t, http.MethodPost, base+"/key", KeyRequest{Key: "Enter"}, "")
	if st = decodeState(t, w.Body.Bytes()); st.Current != "/cards/cat.png" {
		t.Errorf("wrapped current = %q", st.Current)
	}
	w = e.call(t, http.MethodPost, base+"/previous", nil, "")
	if st = decodeState(t, w.Body.Bytes()); st.Current != "/cards/dog.jpg" {
		t.Errorf("previous current = %q", st.Current)
	}

	w = e.call(t, http.MethodPost, base+"/key", KeyRequest{Key: "Escape"}, "")
	if st = decodeState(t, w.Body.Bytes()); st.Screen != session.ScreenGallery {
		t.Errorf("escape screen = %q", st.Screen)
	}

	w = e.call(t, http.MethodPost, base+"/exit", nil, "")
	if w.Code != http.StatusConflict {
		t.Errorf("exit from gallery = %d, want 409", w.Code)
	}

	w = e.call(t, http.MethodPost, base+"/home", nil, "")
	if st = decodeState(t, w.Body.Bytes()); st.Screen != session.ScreenInput || len(st.Deck) != 0 {
		t.Errorf("home state = %+v", st)
	}
}

func TestSubmitWords_NoMatch(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)

	w := e.call(t, http.MethodPost, "/api/sessions/"+id+"/words", WordsRequest{Words: "zebra, yak"}, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("no match = %d, want 422", w.Code)
	}
	resp := decodeStateErr(t, w.Body.Bytes())
	if resp.State == nil || resp.State.Notice != session.NoticeNoMatch {
		t.Errorf("state = %+v", resp.State)
	}
	if resp.State.Screen != session.ScreenInput {
		t.Errorf("screen = %q, want input", resp.State.Screen)
	}
}

func TestSubmitWords_EmptyInput(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)

	w := e.call(t, http.MethodPost, "/api/sessions/"+id+"/words", WordsRequest{Words: " , "}, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty input = %d, want 422", w.Code)
	}
	if resp := decodeStateErr(t, w.Body.Bytes()); resp.State.Notice != session.NoticeEmptyInput {
		t.Errorf("notice = %q", resp.State.Notice)
	}
}

func TestSubmitWords_InvalidJSON(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/words", strings.NewReader("{"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestStart_EmptySelection(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)
	base := "/api/sessions/" + id

	e.call(t, http.MethodPost, base+"/words", WordsRequest{Words: "cat"}, "")
	e.call(t, http.MethodPut, base+"/selection", SelectionRequest{None: true}, "")

	w := e.call(t, http.MethodPost, base+"/start", nil, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("empty start = %d, want 409", w.Code)
	}
	resp := decodeStateErr(t, w.Body.Bytes())
	if resp.State.Screen != session.ScreenGallery || resp.State.Notice != session.NoticeEmptyPresent {
		t.Errorf("state = %+v", resp.State)
	}

	w = e.call(t, http.MethodPost, base+"/notice/dismiss", nil, "")
	if st := decodeState(t, w.Body.Bytes()); st.Notice != "" {
		t.Errorf("notice not dismissed: %q", st.Notice)
	}
}

func TestSelection(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)
	base := "/api/sessions/" + id
	e.call(t, http.MethodPost, base+"/words", WordsRequest{Words: "cat,dog,owl"}, "")

	w := e.call(t, http.MethodPut, base+"/selection", SelectionRequest{Indices: []int{2}}, "")
	if st := decodeState(t, w.Body.Bytes()); st.Selection != 1 || !st.Selected[2] {
		t.Errorf("indices selection = %+v", st.Selected)
	}

	w = e.call(t, http.MethodPut, base+"/selection", SelectionRequest{All: true}, "")
	if st := decodeState(t, w.Body.Bytes()); st.Selection != 3 {
		t.Errorf("all selection = %d", st.Selection)
	}

	w = e.call(t, http.MethodPut, base+"/selection", SelectionRequest{Indices: []int{5}}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("out of range = %d, want 400", w.Code)
	}

	w = e.call(t, http.MethodPost, base+"/selection/x/toggle", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad index = %d, want 400", w.Code)
	}
}

func TestAddMoreAndClear(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)
	base := "/api/sessions/" + id

	e.call(t, http.MethodPost, base+"/words", WordsRequest{Words: "cat"}, "")
	e.call(t, http.MethodPost, base+"/add-more", nil, "")
	w := e.call(t, http.MethodPost, base+"/words", WordsRequest{Words: "dog"}, "")
	if st := decodeState(t, w.Body.Bytes()); len(st.Deck) != 2 {
		t.Fatalf("appended deck = %v", st.Deck)
	}

	w = e.call(t, http.MethodPost, base+"/clear", nil, "")
	st := decodeState(t, w.Body.Bytes())
	if len(st.Deck) != 0 || st.Notice != session.NoticeNoCards || st.Screen != session.ScreenGallery {
		t.Errorf("cleared state = %+v", st)
	}
}

func TestUnknownSession(t *testing.T) {
	e := newTestEnv(t, "")
	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/events", "/api/sessions/nope/keys"} {
		w := e.call(t, http.MethodGet, path, nil, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, w.Code)
		}
	}
	w := e.call(t, http.MethodPost, "/api/sessions/nope/start", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("start unknown = %d, want 404", w.Code)
	}
}

func TestGetSession_ETag(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)

	w := e.call(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || etag == "" {
		t.Fatalf("get = %d, etag = %q", w.Code, etag)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional get = %d, want 304", w.Code)
	}

	e.call(t, http.MethodPost, "/api/sessions/"+id+"/words", WordsRequest{Words: "cat"}, "")
	w = e.call(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	if w.Header().Get("ETag") == etag {
		t.Error("etag unchanged after state change")
	}
}

func TestDeleteSession(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)

	w := e.call(t, http.MethodDelete, "/api/sessions/"+id, nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = e.call(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)
	e.call(t, http.MethodPost, "/api/sessions/"+id+"/words", WordsRequest{Words: "cat, zebra"}, "")

	w := e.call(t, http.MethodGet, "/api/history?limit=5", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("history = %d", w.Code)
	}
	var resp HistoryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(resp.Records))
	}
	rec := resp.Records[0]
	if rec.Matched != 1 || len(rec.Missed) != 1 || rec.Missed[0] != "zebra" {
		t.Errorf("record = %+v", rec)
	}
}

func TestAuthMiddleware(t *testing.T) {
	e := newTestEnv(t, "secret123")

	if w := e.call(t, http.MethodPost, "/api/sessions", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
	if w := e.call(t, http.MethodPost, "/api/sessions", nil, "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := e.call(t, http.MethodPost, "/api/sessions", nil, "secret123"); w.Code != http.StatusCreated {
		t.Errorf("valid token = %d, want 201", w.Code)
	}
	if w := e.call(t, http.MethodPost, "/api/sessions?access_token=secret123", nil, ""); w.Code != http.StatusCreated {
		t.Errorf("query token = %d, want 201", w.Code)
	}
	// Card images are fetched by <img> tags and stay public.
	if w := e.call(t, http.MethodGet, "/cards/cat.png", nil, ""); w.Code != http.StatusOK {
		t.Errorf("card without token = %d, want 200", w.Code)
	}
}

func TestEvents_StreamsState(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: session.state") || !strings.Contains(body, `"screen":"input"`) {
		t.Errorf("stream missing initial state: %q", body)
	}
}

func TestKeysWebsocket(t *testing.T) {
	e := newTestEnv(t, "")
	id := e.newSession(t)
	base := "/api/sessions/" + id
	e.call(t, http.MethodPost, base+"/words", WordsRequest{Words: "cat,dog"}, "")
	e.call(t, http.MethodPost, base+"/start", nil, "")

	srv := httptest.NewServer(e.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + base + "/keys"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(KeyRequest{Key: "ArrowRight"}); err != nil {
		t.Fatal(err)
	}
	var st SessionState
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatal(err)
	}
	if st.Current != "/cards/dog.jpg" {
		t.Errorf("after ArrowRight current = %q", st.Current)
	}

	if err := conn.WriteJSON(KeyRequest{Key: " "}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatal(err)
	}
	if st.Current != "/cards/cat.png" {
		t.Errorf("after Space current = %q", st.Current)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatal(err)
	}
	var bad errResponse
	if err := conn.ReadJSON(&bad); err != nil {
		t.Fatal(err)
	}
	if bad.Error == "" {
		t.Error("expected error frame for invalid JSON")
	}
}

// Card tests.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/cards", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServeCard(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.call(t, http.MethodGet, "/cards/Owl.PNG", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("serve = %d", w.Code)
	}
	if w.Body.String() != "owl-bytes" {
		t.Errorf("body = %q", w.Body.String())
	}

	if w := e.call(t, http.MethodGet, "/cards/missing.png", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing card = %d, want 404", w.Code)
	}
}

func TestUploadCard(t *testing.T) {
	e := newTestEnv(t, "")

	w := uploadFile(t, e.router, "fox.png", []byte("fox-bytes"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp CardUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.URL != "/cards/fox.png" || resp.Size != int64(len("fox-bytes")) {
		t.Errorf("resp = %+v", resp)
	}

	data, err := afero.ReadFile(e.fs, "fox.png")
	if err != nil || string(data) != "fox-bytes" {
		t.Fatalf("file not stored: %v %q", err, data)
	}

	id := e.newSession(t)
	w = e.call(t, http.MethodPost, "/api/sessions/"+id+"/words", WordsRequest{Words: "fox"}, "")
	if st := decodeState(t, w.Body.Bytes()); len(st.Deck) != 1 || st.Deck[0] != "/cards/fox.png" {
		t.Errorf("uploaded card not resolvable: %+v", st)
	}
}

func TestUploadCard_Rejected(t *testing.T) {
	e := newTestEnv(t, "")

	if w := uploadFile(t, e.router, "notes.md", []byte("# hi")); w.Code != http.StatusBadRequest {
		t.Errorf("non-image upload = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/cards", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart upload = %d, want 400", w.Code)
	}
}

func TestCards_RemoteSource(t *testing.T) {
	e := newTestEnvWithCards(t, "", false)

	if w := uploadFile(t, e.router, "fox.png", []byte("x")); w.Code != http.StatusNotImplemented {
		t.Errorf("upload without local store = %d, want 501", w.Code)
	}
	if w := e.call(t, http.MethodGet, "/cards/cat.png", nil, ""); w.Code != http.StatusNotImplemented {
		t.Errorf("serve without local store = %d, want 501", w.Code)
	}
}
