package httpapi

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dhruvmehra/jyotiline/internal/brain"
)

func dialWS(t *testing.T, env *testEnv, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until pred accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, what string, pred func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		if pred(msg) {
			return msg
		}
	}
	t.Fatalf("timed out waiting for %s", what)
	return nil
}

func TestChatWSConversation(t *testing.T) {
	env := newTestEnv(t,
		brain.MockReply{Text: "Namaste, main aapki kya seva kar sakti hoon?"},
		brain.MockReply{Chunks: []string{"Aapke sitare ", "anukool hain."}},
	)

	conn := dialWS(t, env, "/v1/chat/ws?astrologer_id=astro1")

	greeting := readUntil(t, conn, "greeting entry", func(m map[string]any) bool {
		return m["type"] == "transcript_entry" && m["complete"] == true && m["speaker"] == "assistant"
	})
	if greeting["text"] != "Namaste, main aapki kya seva kar sakti hoon?" {
		t.Fatalf("greeting = %v", greeting["text"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "chat_message", "text": "Mera bhavishya batao"}); err != nil {
		t.Fatal(err)
	}

	// The user's own entry is echoed back first.
	readUntil(t, conn, "user echo", func(m map[string]any) bool {
		return m["type"] == "transcript_entry" && m["speaker"] == "user" && m["text"] == "Mera bhavishya batao"
	})

	// The streamed reply arrives as an announced entry plus deltas, then
	// the completed entry.
	var entryID string
	readUntil(t, conn, "streaming entry", func(m map[string]any) bool {
		if m["type"] == "transcript_entry" && m["speaker"] == "assistant" && m["complete"] == false {
			entryID, _ = m["entry_id"].(string)
			return true
		}
		return false
	})
	reply := readUntil(t, conn, "completed reply", func(m map[string]any) bool {
		return m["type"] == "transcript_entry" && m["entry_id"] == entryID && m["complete"] == true
	})
	if reply["text"] != "Aapke sitare anukool hain." {
		t.Fatalf("reply = %v", reply["text"])
	}

	// A voice-channel payload on the chat socket is refused.
	if err := conn.WriteJSON(map[string]any{
		"type": "client_audio_chunk", "pcm16_base64": "AAAA", "sample_rate": 16000,
	}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, "wrong_channel error", func(m map[string]any) bool {
		return m["type"] == "error_event" && m["code"] == "wrong_channel"
	})

	if err := conn.WriteJSON(map[string]any{"type": "call_control", "action": "end"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, "ended state", func(m map[string]any) bool {
		return m["type"] == "call_state" && m["state"] == "ended"
	})
}

func TestChatWSRequiresKnownAstrologer(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/v1/chat/ws?astrologer_id=astro999")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPlayerWSDrivesElement(t *testing.T) {
	env := newTestEnv(t)

	conn := dialWS(t, env, "/v1/player/ws")

	// Give the handler a beat to attach before issuing commands.
	time.Sleep(100 * time.Millisecond)

	status, body := postJSON(t, env.ts.URL+"/v1/player/playlist", `{"track_ids":["1"],"start_index":0}`)
	if status != http.StatusOK {
		t.Fatalf("playlist = %d %v", status, body)
	}

	load := readUntil(t, conn, "load command", func(m map[string]any) bool {
		return m["type"] == "player_command" && m["command"] == "load"
	})
	if src, _ := load["src"].(string); !strings.HasSuffix(src, "SoundHelix-Song-1.mp3") {
		t.Fatalf("load src = %v", load["src"])
	}

	play := readUntil(t, conn, "play command", func(m map[string]any) bool {
		return m["type"] == "player_command" && m["command"] == "play"
	})
	playID := play["play_id"].(float64)

	// Acknowledge playback; a non-timeupdate event echoes the state.
	if err := conn.WriteJSON(map[string]any{
		"type": "player_event", "kind": "play_result", "play_id": playID,
	}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(map[string]any{
		"type": "player_event", "kind": "durationchange", "duration_seconds": 275.0,
	}); err != nil {
		t.Fatal(err)
	}
	state := readUntil(t, conn, "player state echo", func(m map[string]any) bool {
		return m["type"] == "player_state" && m["playing"] == true
	})
	if state["track_id"] != "1" {
		t.Fatalf("state = %v", state)
	}

	// A malformed payload gets an error event, not a dropped connection.
	if err := conn.WriteJSON(map[string]any{"type": "player_event", "kind": "stalled"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, "invalid message error", func(m map[string]any) bool {
		return m["type"] == "error_event" && m["code"] == "invalid_client_message"
	})
}
