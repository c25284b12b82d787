package consult

import "testing"

func TestVoiceTransitionTable(t *testing.T) {
	cases := []struct {
		state TurnState
		ev    voiceEventKind
		want  TurnState
		ok    bool
	}{
		{StateIdle, evStart, StateConnecting, true},
		{StateConnecting, evChannelReady, StateAwaitingAssistantResponse, true},
		{StateAwaitingAssistantResponse, evAssistantText, StatePlayingAssistantResponse, true},
		{StatePlayingAssistantResponse, evSynthDone, StateCapturingUserInput, true},
		{StatePlayingAssistantResponse, evSynthDoneMuted, StateAwaitingUserInput, true},
		{StateCapturingUserInput, evRecognized, StateAwaitingAssistantResponse, true},
		{StateCapturingUserInput, evRecognitionEnded, StateCapturingUserInput, true},
		{StateCapturingUserInput, evMute, StateAwaitingUserInput, true},
		{StateCapturingUserInput, evRecognitionFailed, StateAwaitingUserInput, true},
		{StateAwaitingUserInput, evUnmute, StateCapturingUserInput, true},

		// Ending and hard failure win from anywhere non-terminal.
		{StateConnecting, evEnd, StateEnded, true},
		{StateCapturingUserInput, evEnd, StateEnded, true},
		{StateAwaitingAssistantResponse, evFatal, StateErrored, true},
		{StateConnecting, evChannelFailed, StateErrored, true},

		// Mute flips in place outside the capture states.
		{StateConnecting, evMute, StateConnecting, true},
		{StatePlayingAssistantResponse, evMute, StatePlayingAssistantResponse, true},
		{StateAwaitingAssistantResponse, evUnmute, StateAwaitingAssistantResponse, true},

		// Out-of-order resource callbacks are dropped.
		{StateConnecting, evAssistantText, StateConnecting, false},
		{StateAwaitingAssistantResponse, evSynthDone, StateAwaitingAssistantResponse, false},
		{StateAwaitingUserInput, evRecognized, StateAwaitingUserInput, false},
		{StateIdle, evChannelReady, StateIdle, false},

		// Terminal states accept nothing.
		{StateEnded, evEnd, StateEnded, false},
		{StateEnded, evAssistantText, StateEnded, false},
		{StateErrored, evChannelReady, StateErrored, false},
	}

	for _, tc := range cases {
		got, ok := voiceTransition(tc.state, tc.ev)
		if got != tc.want || ok != tc.ok {
			t.Errorf("voiceTransition(%s, %s) = (%s, %v), want (%s, %v)",
				tc.state, tc.ev, got, ok, tc.want, tc.ok)
		}
	}
}

func TestActiveStates(t *testing.T) {
	active := []TurnState{
		StateAwaitingUserInput, StateCapturingUserInput,
		StateAwaitingAssistantResponse, StatePlayingAssistantResponse,
		StateAwaitingUserSubmit, StateStreamingAssistantResponse,
	}
	for _, s := range active {
		if !s.Active() {
			t.Errorf("%s.Active() = false, want true", s)
		}
	}
	for _, s := range []TurnState{StateIdle, StateConnecting, StateEnded, StateErrored} {
		if s.Active() {
			t.Errorf("%s.Active() = true, want false", s)
		}
	}
}
