package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dhruvmehra/jyotiline/internal/brain"
	"github.com/dhruvmehra/jyotiline/internal/catalog"
	"github.com/dhruvmehra/jyotiline/internal/config"
	"github.com/dhruvmehra/jyotiline/internal/consult"
	"github.com/dhruvmehra/jyotiline/internal/observability"
	"github.com/dhruvmehra/jyotiline/internal/playback"
	"github.com/dhruvmehra/jyotiline/internal/pooja"
	"github.com/dhruvmehra/jyotiline/internal/protocol"
	"github.com/dhruvmehra/jyotiline/internal/session"
	"github.com/dhruvmehra/jyotiline/internal/speech"
)

var metricsSeq atomic.Int64

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("httpapi_test_%d", metricsSeq.Add(1)))
}

type testEnv struct {
	server  *Server
	ts      *httptest.Server
	element *playback.RemoteElement
	player  *playback.Controller
	brain   *brain.MockClient
}

func newTestEnv(t *testing.T, replies ...brain.MockReply) *testEnv {
	t.Helper()

	m := newTestMetrics()
	cat := catalog.New()
	element := playback.NewRemoteElement()
	player := playback.NewController(element, m)
	client := brain.NewMockClient(replies...)
	rec := speech.NewMockRecognizer()
	rec.AutoResultEvery = 25
	synth := speech.NewMockSynthesizer()
	synth.AutoFinish = true

	srv := New(config.Config{}, Deps{
		Catalog:  cat,
		Sessions: session.NewManager(time.Minute),
		Metrics:  m,
		Player:   player,
		Element:  element,
		Pooja:    pooja.NewService(cat, player, m),
		Voice: consult.VoiceDeps{
			Brain:       client,
			Recognizer:  rec,
			Synthesizer: synth,
			Guard:       consult.NewResourceGuard(),
			Metrics:     m,
		},
		Chat: consult.ChatDeps{
			Brain:   client,
			Metrics: m,
		},
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		player.Shutdown()
	})
	return &testEnv{server: srv, ts: ts, element: element, player: player, brain: client}
}

// attachAckingElement wires a fake audio element that acknowledges every
// play command, so the controller sees playback start.
func (e *testEnv) attachAckingElement() *commandRecorder {
	rec := &commandRecorder{}
	e.element.Attach(func(cmd protocol.PlayerCommand) error {
		rec.mu.Lock()
		rec.cmds = append(rec.cmds, cmd.Command)
		rec.mu.Unlock()
		if cmd.Command == protocol.PlayerCommandPlay {
			go e.element.HandleEvent(protocol.PlayerEvent{
				Type:   protocol.TypePlayerEvent,
				Kind:   protocol.PlayerEventPlayResult,
				PlayID: cmd.PlayID,
			})
		}
		return nil
	})
	return rec
}

type commandRecorder struct {
	mu   sync.Mutex
	cmds []string
}

func (r *commandRecorder) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.cmds))
	copy(out, r.cmds)
	return out
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("GET %s: decode: %v", url, err)
	}
	return resp.StatusCode, body
}

func postJSON(t *testing.T, url, payload string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("POST %s: decode: %v", url, err)
	}
	return resp.StatusCode, body
}

func TestHealthAndCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, body := getJSON(t, env.ts.URL+"/healthz")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", status, body)
	}

	status, body = getJSON(t, env.ts.URL+"/v1/astrologers")
	if status != http.StatusOK {
		t.Fatalf("astrologers status = %d", status)
	}
	if got := len(body["astrologers"].([]any)); got != 4 {
		t.Fatalf("astrologers = %d, want 4", got)
	}

	status, body = getJSON(t, env.ts.URL+"/v1/astrologers/astro1")
	if status != http.StatusOK || body["name"] != "Tenzin Choedon" {
		t.Fatalf("astro1 = %d %v", status, body)
	}

	status, body = getJSON(t, env.ts.URL+"/v1/astrologers/astro999")
	if status != http.StatusNotFound || body["code"] != "astrologer_not_found" {
		t.Fatalf("unknown astrologer = %d %v", status, body)
	}

	status, body = getJSON(t, env.ts.URL+"/v1/bhajans")
	if status != http.StatusOK || len(body["tracks"].([]any)) == 0 {
		t.Fatalf("bhajans = %d %v", status, body)
	}

	status, body = getJSON(t, env.ts.URL+"/v1/deities")
	if status != http.StatusOK || len(body["deities"].([]any)) != 6 {
		t.Fatalf("deities = %d %v", status, body)
	}

	status, body = getJSON(t, env.ts.URL+"/v1/sessions")
	if status != http.StatusOK || len(body["sessions"].([]any)) != 0 {
		t.Fatalf("sessions = %d %v", status, body)
	}
}

func TestPlayerRESTFlow(t *testing.T) {
	env := newTestEnv(t)
	rec := env.attachAckingElement()

	status, body := postJSON(t, env.ts.URL+"/v1/player/playlist", `{"track_ids":["1","2"],"start_index":0}`)
	if status != http.StatusOK {
		t.Fatalf("playlist status = %d %v", status, body)
	}
	if body["track_id"] != "1" || body["playing"] != true {
		t.Fatalf("state after playlist = %v", body)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/player/next", "")
	if status != http.StatusOK || body["track_id"] != "2" {
		t.Fatalf("state after next = %d %v", status, body)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/player/toggle", "")
	if status != http.StatusOK || body["playing"] != false {
		t.Fatalf("state after toggle = %d %v", status, body)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/player/seek", `{"position_seconds":42}`)
	if status != http.StatusOK {
		t.Fatalf("seek status = %d %v", status, body)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/player/close", "")
	if status != http.StatusOK || body["track_id"] != nil || body["playing"] != false {
		t.Fatalf("state after close = %d %v", status, body)
	}

	cmds := rec.commands()
	if len(cmds) == 0 || cmds[0] != protocol.PlayerCommandLoad {
		t.Fatalf("element commands = %v, want load first", cmds)
	}
}

func TestPlayerPlaylistValidation(t *testing.T) {
	env := newTestEnv(t)

	status, body := postJSON(t, env.ts.URL+"/v1/player/playlist", `{"track_ids":[]}`)
	if status != http.StatusBadRequest || body["code"] != "empty_playlist" {
		t.Fatalf("empty playlist = %d %v", status, body)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/player/playlist", `{"track_ids":["1"],"start_index":3}`)
	if status != http.StatusBadRequest || body["code"] != "invalid_start_index" {
		t.Fatalf("bad index = %d %v", status, body)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/player/playlist", `{"track_ids":["does-not-exist"]}`)
	if status != http.StatusNotFound || body["code"] != "track_not_found" {
		t.Fatalf("unknown track = %d %v", status, body)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/player/playlist", ``)
	if status != http.StatusBadRequest {
		t.Fatalf("empty body = %d %v", status, body)
	}
}

func TestPoojaEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.attachAckingElement()

	status, body := postJSON(t, env.ts.URL+"/v1/pooja/offer", "")
	if status != http.StatusConflict || body["code"] != "no_ritual" {
		t.Fatalf("offer without ritual = %d %v", status, body)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/pooja/start", `{"deity":"Zeus"}`)
	if status != http.StatusNotFound || body["code"] != "deity_not_found" {
		t.Fatalf("unknown deity = %d %v", status, body)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/pooja/start", `{"deity":"Ganesha"}`)
	if status != http.StatusOK || body["active"] != true {
		t.Fatalf("start = %d %v", status, body)
	}
	if deity := body["deity"].(map[string]any); deity["name"] != "Ganesha" {
		t.Fatalf("deity = %v", deity)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/pooja/offer", "")
	if status != http.StatusOK || body["offerings"] != float64(1) {
		t.Fatalf("offer = %d %v", status, body)
	}

	// The aarti went through the shared player.
	status, body = getJSON(t, env.ts.URL+"/v1/player")
	if status != http.StatusOK || body["track_id"] != "aarti-ganesha" {
		t.Fatalf("player during pooja = %d %v", status, body)
	}

	status, body = postJSON(t, env.ts.URL+"/v1/pooja/stop", "")
	if status != http.StatusOK || body["active"] != false {
		t.Fatalf("stop = %d %v", status, body)
	}

	status, body = getJSON(t, env.ts.URL+"/v1/pooja")
	if status != http.StatusOK || body["active"] != false {
		t.Fatalf("state after stop = %d %v", status, body)
	}
}
