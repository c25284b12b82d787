package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Client -> server.
	TypeCallControl      MessageType = "call_control"
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeChatMessage      MessageType = "chat_message"
	TypePlayerEvent      MessageType = "player_event"

	// Server -> client.
	TypeCallState           MessageType = "call_state"
	TypeTranscriptEntry     MessageType = "transcript_entry"
	TypeTranscriptDelta     MessageType = "transcript_delta"
	TypeAssistantAudioChunk MessageType = "assistant_audio_chunk"
	TypePlayerCommand       MessageType = "player_command"
	TypePlayerState         MessageType = "player_state"
	TypeErrorEvent          MessageType = "error_event"
)

// Call control actions.
const (
	ActionEnd    = "end"
	ActionMute   = "mute"
	ActionUnmute = "unmute"
)

// Player event kinds reported by the remote audio element.
const (
	PlayerEventPlayResult     = "play_result"
	PlayerEventTimeUpdate     = "timeupdate"
	PlayerEventDurationChange = "durationchange"
	PlayerEventEnded          = "ended"
)

// Player commands sent to the remote audio element.
const (
	PlayerCommandLoad  = "load"
	PlayerCommandPlay  = "play"
	PlayerCommandPause = "pause"
	PlayerCommandSeek  = "seek"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type CallControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Action    string      `json:"action"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id,omitempty"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	TSMs        int64       `json:"ts_ms"`
}

type ChatMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Text      string      `json:"text"`
}

type PlayerEvent struct {
	Type            MessageType `json:"type"`
	Kind            string      `json:"kind"`
	PlayID          int64       `json:"play_id,omitempty"`
	Code            string      `json:"code,omitempty"`
	PositionSeconds float64     `json:"position_seconds,omitempty"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
}

type CallState struct {
	Type           MessageType `json:"type"`
	SessionID      string      `json:"session_id"`
	State          string      `json:"state"`
	Muted          bool        `json:"muted"`
	ElapsedSeconds int64       `json:"elapsed_seconds"`
	Detail         string      `json:"detail,omitempty"`
}

type TranscriptEntry struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	EntryID   string      `json:"entry_id"`
	Speaker   string      `json:"speaker"`
	Text      string      `json:"text"`
	Complete  bool        `json:"complete"`
}

type TranscriptDelta struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	EntryID   string      `json:"entry_id"`
	TextDelta string      `json:"text_delta"`
}

type AssistantAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

type PlayerCommand struct {
	Type            MessageType `json:"type"`
	Command         string      `json:"command"`
	Src             string      `json:"src,omitempty"`
	PlayID          int64       `json:"play_id,omitempty"`
	PositionSeconds float64     `json:"position_seconds,omitempty"`
}

type PlayerState struct {
	Type            MessageType `json:"type"`
	TrackID         string      `json:"track_id,omitempty"`
	Playing         bool        `json:"playing"`
	PositionSeconds float64     `json:"position_seconds"`
	DurationSeconds float64     `json:"duration_seconds"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates an inbound client payload.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeCallControl:
		var msg CallControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Action {
		case ActionEnd, ActionMute, ActionUnmute:
		default:
			return nil, fmt.Errorf("invalid call_control action %q", msg.Action)
		}
		return msg, nil
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeChatMessage:
		var msg ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("invalid chat_message: empty text")
		}
		return msg, nil
	case TypePlayerEvent:
		var msg PlayerEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Kind {
		case PlayerEventPlayResult, PlayerEventTimeUpdate, PlayerEventDurationChange, PlayerEventEnded:
		default:
			return nil, fmt.Errorf("invalid player_event kind %q", msg.Kind)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
