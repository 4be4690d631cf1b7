package types

import (
	"testing"
	"time"
)

// TestStatus_Valid tests that only the four known states are valid
func TestStatus_Valid(t *testing.T) {
	for _, s := range AllStatuses {
		if !s.Valid() {
			t.Errorf("Status %q should be valid", s)
		}
	}

	invalid := []Status{"", "done", "open", "TODO", "in_progress"}
	for _, s := range invalid {
		if s.Valid() {
			t.Errorf("Status %q should be invalid", s)
		}
	}
}

// TestStatus_Advance tests the single-step forward cycle
func TestStatus_Advance(t *testing.T) {
	steps := map[Status]Status{
		StatusTodo:       StatusInProgress,
		StatusInProgress: StatusWaiting,
		StatusWaiting:    StatusCompleted,
		StatusCompleted:  StatusTodo,
	}

	for from, want := range steps {
		if got := from.Advance(); got != want {
			t.Errorf("%s.Advance() = %s, want %s", from, got, want)
		}
	}
}

// TestStatus_AdvanceCycle tests that N advances land on (index + N) mod 4
func TestStatus_AdvanceCycle(t *testing.T) {
	for _, start := range AllStatuses {
		s := start
		for n := 1; n <= 9; n++ {
			s = s.Advance()
			want := AllStatuses[(start.Index()+n)%len(AllStatuses)]
			if s != want {
				t.Fatalf("%s advanced %d times = %s, want %s", start, n, s, want)
			}
		}
	}
}

// TestStatus_AdvanceMultipleOfFour tests that a full cycle returns to start
func TestStatus_AdvanceMultipleOfFour(t *testing.T) {
	s := StatusWaiting
	for i := 0; i < 8; i++ {
		s = s.Advance()
	}
	if s != StatusWaiting {
		t.Errorf("8 advances from waiting = %s, want waiting", s)
	}
}

// TestTask_Validate tests required-field and range checks
func TestTask_Validate(t *testing.T) {
	valid := Task{
		ID:        "task_1",
		RoomID:    "room_1",
		Title:     "Afwas",
		Status:    StatusTodo,
		CreatedAt: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid task failed validation: %v", err)
	}

	missingTitle := valid
	missingTitle.Title = ""
	if err := missingTitle.Validate(); err == nil {
		t.Error("task without title should fail validation")
	}

	missingRoom := valid
	missingRoom.RoomID = ""
	if err := missingRoom.Validate(); err == nil {
		t.Error("task without roomId should fail validation")
	}

	badStatus := valid
	badStatus.Status = "done"
	if err := badStatus.Validate(); err == nil {
		t.Error("task with unknown status should fail validation")
	}

	zero := 0
	badDuration := valid
	badDuration.EstimatedDuration = &zero
	if err := badDuration.Validate(); err == nil {
		t.Error("task with non-positive estimatedDuration should fail validation")
	}
}

// TestRoom_Validate tests that rooms require a name
func TestRoom_Validate(t *testing.T) {
	room := Room{ID: "room_1", Name: "Keuken", Color: "#10b981"}
	if err := room.Validate(); err != nil {
		t.Errorf("valid room failed validation: %v", err)
	}

	room.Name = ""
	if err := room.Validate(); err == nil {
		t.Error("room without name should fail validation")
	}
}

// TestDate_RoundTrip tests JSON marshalling of calendar dates
func TestDate_RoundTrip(t *testing.T) {
	d, err := ParseDate("2025-03-14")
	if err != nil {
		t.Fatalf("ParseDate() failed: %v", err)
	}

	data, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() failed: %v", err)
	}
	if string(data) != `"2025-03-14"` {
		t.Errorf("MarshalJSON() = %s, want %q", data, `"2025-03-14"`)
	}

	var parsed Date
	if err := parsed.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON() failed: %v", err)
	}
	if !parsed.Equal(d.Time) {
		t.Errorf("round trip = %v, want %v", parsed, d)
	}
}

// TestDate_UnmarshalTimestamp tests that RFC3339 inputs truncate to a date
func TestDate_UnmarshalTimestamp(t *testing.T) {
	var d Date
	if err := d.UnmarshalJSON([]byte(`"2025-03-14T18:30:00Z"`)); err != nil {
		t.Fatalf("UnmarshalJSON() failed: %v", err)
	}
	if d.String() != "2025-03-14" {
		t.Errorf("truncated date = %s, want 2025-03-14", d)
	}
}
