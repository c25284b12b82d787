package consult

import "testing"

func TestTranscriptGrowsMonotonically(t *testing.T) {
	tr := NewTranscript()

	a := tr.Append(SpeakerUser, "pehla sawaal")
	b := tr.Start(SpeakerAssistant)

	if a.ID == b.ID {
		t.Fatalf("entry IDs collide")
	}
	if !a.Complete || b.Complete {
		t.Fatalf("completeness flags wrong: %+v %+v", a, b)
	}

	prev := ""
	for _, delta := range []string{"Aapke ", "graha ", "anukool hain."} {
		updated, ok := tr.AppendDelta(b.ID, delta)
		if !ok {
			t.Fatalf("AppendDelta rejected live entry")
		}
		if len(updated.Text) <= len(prev) || updated.Text[:len(prev)] != prev {
			t.Fatalf("entry text shrank or rewrote: %q -> %q", prev, updated.Text)
		}
		prev = updated.Text
	}

	final, ok := tr.Finalize(b.ID, "")
	if !ok || !final.Complete || final.Text != "Aapke graha anukool hain." {
		t.Fatalf("finalized entry = %+v", final)
	}

	// Completed entries are frozen.
	if _, ok := tr.AppendDelta(b.ID, "more"); ok {
		t.Fatalf("AppendDelta accepted a completed entry")
	}
	if _, ok := tr.Finalize(b.ID, "again"); ok {
		t.Fatalf("Finalize accepted a completed entry")
	}

	entries := tr.Entries()
	if len(entries) != 2 || entries[0].ID != a.ID || entries[1].ID != b.ID {
		t.Fatalf("entries out of order: %+v", entries)
	}
}

func TestTranscriptFinalizeOverrideReplacesText(t *testing.T) {
	tr := NewTranscript()
	e := tr.Start(SpeakerAssistant)
	tr.AppendDelta(e.ID, "partial answer that never fini")

	final, ok := tr.Finalize(e.ID, chatApology)
	if !ok || final.Text != chatApology || !final.Complete {
		t.Fatalf("finalized entry = %+v, want apology text", final)
	}
}

func TestTranscriptDeltaAgainstUnknownEntry(t *testing.T) {
	tr := NewTranscript()
	if _, ok := tr.AppendDelta("nope", "x"); ok {
		t.Fatalf("AppendDelta accepted unknown entry")
	}
	if tr.Len() != 0 {
		t.Fatalf("Len = %d, want 0", tr.Len())
	}
}
