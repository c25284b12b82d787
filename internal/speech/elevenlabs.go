package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

type ElevenLabsConfig struct {
	APIKey       string
	WSBaseURL    string
	VoiceID      string
	ModelID      string
	OutputFormat string
}

// ElevenLabsSynthesizer speaks through the ElevenLabs stream-input
// websocket. One utterance is in flight at a time; a new Speak cancels
// the previous one before dialing.
type ElevenLabsSynthesizer struct {
	cfg ElevenLabsConfig

	mu      sync.Mutex
	current *elevenUtterance
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) *ElevenLabsSynthesizer {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	return &ElevenLabsSynthesizer{cfg: cfg}
}

func (p *ElevenLabsSynthesizer) Speak(ctx context.Context, text string) (Utterance, error) {
	p.Cancel()

	if strings.TrimSpace(p.cfg.VoiceID) == "" {
		return nil, fmt.Errorf("voice_id is required")
	}

	u, err := url.Parse(strings.TrimRight(p.cfg.WSBaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(p.cfg.VoiceID) + "/stream-input")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("model_id", p.cfg.ModelID)
	q.Set("output_format", p.cfg.OutputFormat)
	q.Set("auto_mode", "true")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", p.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("dial synthesis websocket: %w", err)
	}

	utt := &elevenUtterance{
		conn:   conn,
		format: p.cfg.OutputFormat,
		audio:  make(chan AudioChunk, 512),
		done:   make(chan bool, 1),
	}

	// Prime the stream as documented for TTS websocket flows, then send the
	// whole utterance and close input.
	if err := utt.writeJSON(map[string]any{"text": " "}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("prime synthesis stream: %w", err)
	}
	if err := utt.writeJSON(map[string]any{"text": text, "try_trigger_generation": true}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send synthesis text: %w", err)
	}
	_ = utt.writeJSON(map[string]any{"text": ""})

	go utt.readLoop()

	p.mu.Lock()
	p.current = utt
	p.mu.Unlock()
	return utt, nil
}

func (p *ElevenLabsSynthesizer) Cancel() {
	p.mu.Lock()
	prev := p.current
	p.current = nil
	p.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
}

type elevenUtterance struct {
	conn      *websocket.Conn
	format    string
	writeMu   sync.Mutex
	audio     chan AudioChunk
	done      chan bool
	cancelled atomic.Bool
	finOnce   sync.Once
}

func (u *elevenUtterance) Audio() <-chan AudioChunk { return u.audio }
func (u *elevenUtterance) Done() <-chan bool        { return u.done }

func (u *elevenUtterance) cancel() {
	u.cancelled.Store(true)
	_ = u.conn.Close()
	u.finish(false)
}

func (u *elevenUtterance) writeJSON(payload map[string]any) error {
	u.writeMu.Lock()
	defer u.writeMu.Unlock()
	return u.conn.WriteJSON(payload)
}

func (u *elevenUtterance) readLoop() {
	defer u.finish(false)
	for {
		_, data, err := u.conn.ReadMessage()
		if err != nil {
			return
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}

		if audio, _ := raw["audio"].(string); audio != "" {
			select {
			case u.audio <- AudioChunk{Base64: audio, Format: u.format}:
			default:
				// Slow consumer; dropping audio beats stalling the read loop.
			}
		}
		if isFinal(raw) {
			u.finish(true)
			_ = u.conn.Close()
			return
		}
		if errMsg, _ := raw["error"].(string); errMsg != "" {
			_ = u.conn.Close()
			return
		}
	}
}

func (u *elevenUtterance) finish(ok bool) {
	u.finOnce.Do(func() {
		if u.cancelled.Load() {
			ok = false
		}
		close(u.audio)
		u.done <- ok
		close(u.done)
	})
}

func isFinal(raw map[string]any) bool {
	if b, ok := raw["isFinal"].(bool); ok && b {
		return true
	}
	if b, ok := raw["is_final"].(bool); ok && b {
		return true
	}
	return false
}
