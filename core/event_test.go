package core

import "testing"

func TestEvent_Constructors(t *testing.T) {
	e := NewEvent("sess-1", KindSearchFailed)
	if e.SessionID != "sess-1" || e.Kind != KindSearchFailed || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	mv := NewMoveAppliedEvent("sess-1", "g1f3", "Nf3", SourceEngine, "after")
	if mv.Kind != KindMoveApplied || mv.Move != "g1f3" || mv.SAN != "Nf3" || mv.Source != SourceEngine || mv.Position != "after" {
		t.Fatalf("NewMoveAppliedEvent malformed: %+v", mv)
	}

	th := NewComputerThinkingEvent("sess-1", true)
	if th.Kind != KindComputerThinking || !th.Thinking {
		t.Fatalf("NewComputerThinkingEvent malformed: %+v", th)
	}

	sf := NewSearchFailedEvent("sess-1", "engine exited")
	if sf.Kind != KindSearchFailed || sf.Reason != "engine exited" {
		t.Fatalf("NewSearchFailedEvent malformed: %+v", sf)
	}

	hr := NewHintReadyEvent("sess-1", "e2e4", "e4", SourceBook, "before")
	if hr.Kind != KindHintReady || hr.Move != "e2e4" || hr.SAN != "e4" || hr.Source != SourceBook || hr.Position != "before" {
		t.Fatalf("NewHintReadyEvent malformed: %+v", hr)
	}

	if NewID() == NewID() {
		t.Error("expected unique IDs")
	}
}

func TestGameMode_StringAndParse(t *testing.T) {
	for _, m := range []GameMode{HumanVsHuman, HumanVsComputer, ComputerVsComputer} {
		parsed, err := ParseGameMode(m.String())
		if err != nil || parsed != m {
			t.Errorf("round trip of %v failed: %v %v", m, parsed, err)
		}
		if !m.Valid() {
			t.Errorf("%v should be valid", m)
		}
	}
	if m, err := ParseGameMode("CVC"); err != nil || m != ComputerVsComputer {
		t.Errorf("short form not accepted: %v %v", m, err)
	}
	if _, err := ParseGameMode("chaos"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if GameMode(9).Valid() {
		t.Error("out of range mode should be invalid")
	}
}

func TestMoveSource_String(t *testing.T) {
	if SourceBook.String() != "book" || SourceEngine.String() != "engine" || SourceHuman.String() != "human" || MoveSource(0).String() != "unknown" {
		t.Error("unexpected MoveSource names")
	}
}
