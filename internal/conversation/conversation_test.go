package conversation

import "testing"

func TestCompactMessagesLeavesExactlyPreserveCount(t *testing.T) {
	store := NewStore(1000, 0.8, 3)
	conv := store.Get("session-1")
	for i := 0; i < 10; i++ {
		conv.AddUserText("message")
	}

	dropped := store.CompactMessages(conv)
	if len(dropped) != 7 {
		t.Fatalf("expected 7 dropped turns, got %d", len(dropped))
	}
	if len(conv.Turns) != 3 {
		t.Fatalf("expected exactly preserveCount=3 turns to remain, got %d", len(conv.Turns))
	}
}

func TestCompactMessagesFloorsPreserveCountAtOne(t *testing.T) {
	store := NewStore(1000, 0.8, 0)
	conv := store.Get("session-1")
	conv.AddUserText("only message")

	dropped := store.CompactMessages(conv)
	if len(dropped) != 0 {
		t.Fatalf("expected nothing dropped when turns == preserveCount, got %d", len(dropped))
	}
	if len(conv.Turns) != 1 {
		t.Fatalf("expected max(preserveCount,1)=1 turn to remain, got %d", len(conv.Turns))
	}
}

func TestCompactMessagesIsNoOpBelowPreserveCount(t *testing.T) {
	store := NewStore(1000, 0.8, 5)
	conv := store.Get("session-1")
	conv.AddUserText("one")
	conv.AddAssistantText("two")

	dropped := store.CompactMessages(conv)
	if dropped != nil {
		t.Fatalf("expected no turns dropped, got %d", len(dropped))
	}
	if len(conv.Turns) != 2 {
		t.Fatalf("expected conversation untouched at 2 turns, got %d", len(conv.Turns))
	}
}

func TestShouldCompactCrossesThresholdOnEstimatedSize(t *testing.T) {
	store := NewStore(10, 0.8, 5) // maxChars = max(2000, 10*8) = 2000
	conv := store.Get("session-1")

	if store.ShouldCompact(conv) {
		t.Fatal("an empty conversation should never need compaction")
	}

	conv.AddUserText(string(make([]byte, 2000)))
	if !store.ShouldCompact(conv) {
		t.Fatal("expected a conversation past the char-size threshold to need compaction")
	}
}
