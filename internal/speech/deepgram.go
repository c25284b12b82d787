package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type DeepgramConfig struct {
	APIKey    string
	WSBaseURL string
	Model     string
	Language  string
	// SilenceTimeout bounds one activation: if no final transcript arrives
	// within it, the activation ends with no result (the recognizer's own
	// silence timeout, recovered from by the session's restart loop).
	SilenceTimeout time.Duration
}

// DeepgramRecognizer captures one utterance per activation over the
// Deepgram realtime websocket.
type DeepgramRecognizer struct {
	cfg    DeepgramConfig
	active atomic.Bool
}

func NewDeepgramRecognizer(cfg DeepgramConfig) *DeepgramRecognizer {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.deepgram.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "nova-2-general"
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = "en-IN"
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = 8 * time.Second
	}
	return &DeepgramRecognizer{cfg: cfg}
}

func (r *DeepgramRecognizer) Start(ctx context.Context) (Recognition, <-chan RecognitionEvent, error) {
	if !r.active.CompareAndSwap(false, true) {
		return nil, nil, ErrRecognizerBusy
	}

	u, err := url.Parse(strings.TrimRight(r.cfg.WSBaseURL, "/") + "/v1/listen")
	if err != nil {
		r.active.Store(false)
		return nil, nil, err
	}
	q := u.Query()
	q.Set("model", r.cfg.Model)
	q.Set("language", r.cfg.Language)
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		r.active.Store(false)
		return nil, nil, fmt.Errorf("dial recognizer websocket: %w", err)
	}

	events := make(chan RecognitionEvent, 16)
	rec := &deepgramRecognition{
		owner:  r,
		conn:   conn,
		events: events,
	}
	rec.quiet = time.AfterFunc(r.cfg.SilenceTimeout, rec.silence)
	go rec.readLoop()
	return rec, events, nil
}

type deepgramResponse struct {
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
		IsFinal bool `json:"is_final"`
	} `json:"channel"`
}

type deepgramRecognition struct {
	owner   *DeepgramRecognizer
	conn    *websocket.Conn
	writeMu sync.Mutex
	events  chan RecognitionEvent
	quiet   *time.Timer

	aborted atomic.Bool
	expired atomic.Bool
	endOnce sync.Once
}

func (s *deepgramRecognition) SendAudio(_ context.Context, pcm16Base64 string, _ int) error {
	data, err := base64.StdEncoding.DecodeString(pcm16Base64)
	if err != nil {
		return fmt.Errorf("decode audio chunk: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *deepgramRecognition) Abort() error {
	s.aborted.Store(true)
	s.quiet.Stop()
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "abort"))
	s.writeMu.Unlock()
	return s.conn.Close()
}

func (s *deepgramRecognition) silence() {
	s.expired.Store(true)
	_ = s.conn.Close()
}

func (s *deepgramRecognition) readLoop() {
	defer s.finish()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.aborted.Load() && !s.expired.Load() {
				s.events <- RecognitionEvent{Kind: RecognitionError, Code: "read_error", Detail: err.Error()}
			}
			return
		}

		var resp deepgramResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if !resp.Channel.IsFinal || len(resp.Channel.Alternatives) == 0 {
			continue
		}
		text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
		if text == "" {
			continue
		}

		s.quiet.Stop()
		s.events <- RecognitionEvent{Kind: RecognitionResult, Text: text}
		_ = s.conn.Close()
		return
	}
}

func (s *deepgramRecognition) finish() {
	s.endOnce.Do(func() {
		s.quiet.Stop()
		_ = s.conn.Close()
		s.events <- RecognitionEvent{Kind: RecognitionEnd}
		close(s.events)
		s.owner.active.Store(false)
	})
}
