package consult

// TurnState tracks which party holds the right to produce the next
// utterance in a consultation session.
type TurnState string

const (
	StateIdle                       TurnState = "idle"
	StateConnecting                 TurnState = "connecting"
	StateAwaitingUserInput          TurnState = "awaiting_user_input"
	StateCapturingUserInput         TurnState = "capturing_user_input"
	StateAwaitingAssistantResponse  TurnState = "awaiting_assistant_response"
	StatePlayingAssistantResponse   TurnState = "playing_assistant_response"
	StateAwaitingUserSubmit         TurnState = "awaiting_user_submit"
	StateStreamingAssistantResponse TurnState = "streaming_assistant_response"
	StateEnded                      TurnState = "ended"
	StateErrored                    TurnState = "errored"
)

// Active reports whether the session counts elapsed time in this state.
func (s TurnState) Active() bool {
	switch s {
	case StateIdle, StateConnecting, StateEnded, StateErrored:
		return false
	default:
		return true
	}
}

// Terminal states discard the session object; it is never reused.
func (s TurnState) Terminal() bool {
	return s == StateEnded || s == StateErrored
}

type voiceEventKind string

const (
	evStart             voiceEventKind = "start"
	evChannelReady      voiceEventKind = "channel_ready"
	evAssistantText     voiceEventKind = "assistant_text"
	evSynthDone         voiceEventKind = "synth_done"
	evSynthDoneMuted    voiceEventKind = "synth_done_muted"
	evRecognized        voiceEventKind = "recognized"
	evRecognitionEnded  voiceEventKind = "recognition_ended"
	evRecognitionRetry  voiceEventKind = "recognition_retry"
	evMute              voiceEventKind = "mute"
	evUnmute            voiceEventKind = "unmute"
	evEnd               voiceEventKind = "end"
	evFatal             voiceEventKind = "fatal"
	evChannelFailed     voiceEventKind = "channel_failed"
	evRecognitionFailed voiceEventKind = "recognition_failed"
)

// voiceTransition is the single guard for the voice state machine: it
// returns the next state for (state, event) and whether the transition is
// legal. Side effects stay in the session loop; illegal combinations are
// dropped there.
func voiceTransition(s TurnState, ev voiceEventKind) (TurnState, bool) {
	if s.Terminal() {
		return s, false
	}

	switch ev {
	case evEnd:
		return StateEnded, true
	case evFatal, evChannelFailed:
		return StateErrored, true
	}

	switch s {
	case StateIdle:
		if ev == evStart {
			return StateConnecting, true
		}
	case StateConnecting:
		if ev == evChannelReady {
			return StateAwaitingAssistantResponse, true
		}
	case StateAwaitingAssistantResponse:
		if ev == evAssistantText {
			return StatePlayingAssistantResponse, true
		}
	case StatePlayingAssistantResponse:
		switch ev {
		case evSynthDone:
			return StateCapturingUserInput, true
		case evSynthDoneMuted:
			return StateAwaitingUserInput, true
		}
	case StateCapturingUserInput:
		switch ev {
		case evRecognized:
			return StateAwaitingAssistantResponse, true
		case evRecognitionEnded, evRecognitionRetry:
			return StateCapturingUserInput, true
		case evMute, evRecognitionFailed:
			return StateAwaitingUserInput, true
		case evUnmute:
			return s, true
		}
	case StateAwaitingUserInput:
		switch ev {
		case evUnmute:
			return StateCapturingUserInput, true
		case evMute, evRecognitionEnded:
			return s, true
		}
	}

	// Mute flips in place anywhere else; the capture-state moves above take
	// precedence. The turn itself is resolved when the current phase ends.
	if ev == evMute || ev == evUnmute {
		return s, true
	}
	return s, false
}
