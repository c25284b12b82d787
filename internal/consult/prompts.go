package consult

import (
	"fmt"
	"strings"

	"github.com/dhruvmehra/jyotiline/internal/brain"
	"github.com/dhruvmehra/jyotiline/internal/catalog"
	"github.com/dhruvmehra/jyotiline/internal/history"
)

// Fixed user-facing strings. The Hinglish wording is part of the product
// voice; do not "fix" the phrasing.
const (
	voiceApology = "Maaf kijiye, cosmic signals me kuch gadbad hai. Kripya apna prashna dohraayein."
	chatApology  = "My apologies, I am facing some disturbance in cosmic signals. Please repeat your question."

	missingCredentialMessage = "I am unable to connect at this time. Please try again later."
	connectFailureMessage    = "Sorry, I am unable to connect right now. Please try again later."

	voiceGreetingPrompt = "Start the conversation with a warm Hinglish greeting for a voice call and ask how you can help."
	chatGreetingPrompt  = "Start the conversation with a warm Hinglish greeting and ask how you can help."
)

func systemInstruction(a catalog.Astrologer) string {
	return fmt.Sprintf(
		"You are %s, a renowned Vedic astrologer specializing in %s. %s "+
			"You speak in Hinglish (a natural mix of Hindi and English) with warmth and authority. "+
			"Keep replies short and conversational, two to three sentences, as in a live consultation. "+
			"Guide the seeker with astrological insight; ask for birth details when a reading needs them.",
		a.Name, strings.Join(a.Specialties, ", "), a.Bio)
}

// buildPersona assembles the brain persona for an astrologer, folding in
// recent transcript lines from earlier consultations when available.
func buildPersona(a catalog.Astrologer, recent []history.Utterance) brain.Persona {
	inst := systemInstruction(a)
	if len(recent) > 0 {
		var b strings.Builder
		b.WriteString(inst)
		b.WriteString("\n\nFrom earlier consultations with this seeker:\n")
		for _, u := range recent {
			fmt.Fprintf(&b, "%s: %s\n", u.Speaker, u.Text)
		}
		inst = b.String()
	}
	return brain.Persona{ID: a.ID, Name: a.Name, SystemInstruction: inst}
}
