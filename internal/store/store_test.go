package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mdejong/klusjes/internal/apperr"
	"github.com/mdejong/klusjes/internal/types"
)

// openTestStore creates a store backed by a temp database
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestInitSchema_Idempotent tests that schema creation is safe to repeat
func TestInitSchema_Idempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.InitSchema(context.Background()); err != nil {
		t.Errorf("second InitSchema() failed: %v", err)
	}
}

// TestCreateRoom_EmptyName tests that validation rejects nameless rooms
func TestCreateRoom_EmptyName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateRoom(ctx, "", "desc", "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("CreateRoom with empty name = %v, want validation error", err)
	}

	rooms, err := s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms() failed: %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("failed create left %d rooms behind", len(rooms))
	}
}

// TestRoom_CRUD tests the room lifecycle end to end
func TestRoom_CRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "Keuken", "Hart van het huis", "#10b981")
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	if room.ID == "" {
		t.Fatal("CreateRoom() returned empty id")
	}
	if room.CreatedAt.IsZero() {
		t.Error("CreateRoom() did not set createdAt")
	}

	updated, err := s.UpdateRoom(ctx, room.ID, "Keuken", "Opgeruimd", "#22c55e")
	if err != nil {
		t.Fatalf("UpdateRoom() failed: %v", err)
	}
	if updated.Description != "Opgeruimd" || updated.Color != "#22c55e" {
		t.Errorf("UpdateRoom() = %+v, want replaced fields", updated)
	}

	if _, err := s.UpdateRoom(ctx, "room_missing", "X", "", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UpdateRoom on unknown id = %v, want not found", err)
	}

	if _, err := s.DeleteRoom(ctx, room.ID); err != nil {
		t.Fatalf("DeleteRoom() failed: %v", err)
	}

	// Double-delete must fail, never silently succeed.
	if _, err := s.DeleteRoom(ctx, room.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second DeleteRoom = %v, want not found", err)
	}
}

// TestListRooms_CreationOrder tests ascending creation ordering
func TestListRooms_CreationOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	names := []string{"Woonkamer", "Keuken", "Slaapkamer"}
	for _, name := range names {
		if _, err := s.CreateRoom(ctx, name, "", ""); err != nil {
			t.Fatalf("CreateRoom(%s) failed: %v", name, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	rooms, err := s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms() failed: %v", err)
	}
	if len(rooms) != len(names) {
		t.Fatalf("ListRooms() returned %d rooms, want %d", len(rooms), len(names))
	}
	for i, name := range names {
		if rooms[i].Name != name {
			t.Errorf("rooms[%d].Name = %s, want %s", i, rooms[i].Name, name)
		}
	}
}

// TestCreateTask_Validation tests missing title/roomId and dead rooms
func TestCreateTask_Validation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "Keuken", "", "")
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}

	if _, err := s.CreateTask(ctx, TaskParams{RoomID: room.ID}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("CreateTask without title = %v, want validation error", err)
	}
	if _, err := s.CreateTask(ctx, TaskParams{Title: "Afwas"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("CreateTask without roomId = %v, want validation error", err)
	}
	if _, err := s.CreateTask(ctx, TaskParams{Title: "Afwas", RoomID: "room_missing"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("CreateTask with dead room = %v, want not found", err)
	}

	tasks, err := s.ListTasks(ctx, "")
	if err != nil {
		t.Fatalf("ListTasks() failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("failed creates left %d tasks behind", len(tasks))
	}
}

// TestListTasks_Ordering tests priority-desc then creation-asc ordering
func TestListTasks_Ordering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "Keuken", "", "")
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}

	create := func(title string, priority bool) {
		t.Helper()
		if _, err := s.CreateTask(ctx, TaskParams{Title: title, RoomID: room.ID, Priority: priority}); err != nil {
			t.Fatalf("CreateTask(%s) failed: %v", title, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	create("oud", false)
	create("belangrijk-oud", true)
	create("nieuw", false)
	create("belangrijk-nieuw", true)

	tasks, err := s.ListTasks(ctx, "")
	if err != nil {
		t.Fatalf("ListTasks() failed: %v", err)
	}

	want := []string{"belangrijk-oud", "belangrijk-nieuw", "oud", "nieuw"}
	if len(tasks) != len(want) {
		t.Fatalf("ListTasks() returned %d tasks, want %d", len(tasks), len(want))
	}
	for i, title := range want {
		if tasks[i].Title != title {
			t.Errorf("tasks[%d].Title = %s, want %s", i, tasks[i].Title, title)
		}
	}
}

// TestUpdateTask_CompletedAtRule tests the status/completedAt biconditional
func TestUpdateTask_CompletedAtRule(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	room, _ := s.CreateRoom(ctx, "Keuken", "", "")
	task, err := s.CreateTask(ctx, TaskParams{Title: "Afwas", RoomID: room.ID})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	if task.CompletedAt != nil {
		t.Error("new todo task should not carry completedAt")
	}

	// Advancing three times lands on completed and stamps completedAt.
	for i := 0; i < 3; i++ {
		task, err = s.AdvanceTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("AdvanceTask() failed: %v", err)
		}
	}
	if task.Status != types.StatusCompleted {
		t.Fatalf("status after 3 advances = %s, want completed", task.Status)
	}
	if task.CompletedAt == nil {
		t.Fatal("completed task missing completedAt")
	}

	stamp := *task.CompletedAt

	// Updating a completed task without changing status keeps the stamp.
	task, err = s.UpdateTask(ctx, task.ID, TaskParams{
		Title: "Afwas doen", Status: types.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("UpdateTask() failed: %v", err)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(stamp) {
		t.Errorf("completedAt changed on no-transition update: %v, want %v", task.CompletedAt, stamp)
	}

	// Wrapping back to todo clears the stamp.
	task, err = s.AdvanceTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("AdvanceTask() failed: %v", err)
	}
	if task.Status != types.StatusTodo {
		t.Fatalf("status after wrap = %s, want todo", task.Status)
	}
	if task.CompletedAt != nil {
		t.Error("completedAt not cleared after leaving completed")
	}
}

// TestUpdateTask_MovesBetweenRooms tests that a full update can relocate a
// task, and that unresolvable target rooms are rejected without side effects
func TestUpdateTask_MovesBetweenRooms(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	keuken, _ := s.CreateRoom(ctx, "Keuken", "", "")
	badkamer, _ := s.CreateRoom(ctx, "Badkamer", "", "")
	task, err := s.CreateTask(ctx, TaskParams{Title: "Dweilen", RoomID: keuken.ID})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}

	task, err = s.UpdateTask(ctx, task.ID, TaskParams{Title: "Dweilen", RoomID: badkamer.ID})
	if err != nil {
		t.Fatalf("UpdateTask() failed: %v", err)
	}
	if task.RoomID != badkamer.ID {
		t.Fatalf("room after move = %s, want %s", task.RoomID, badkamer.ID)
	}

	listed, err := s.ListTasks(ctx, badkamer.ID)
	if err != nil {
		t.Fatalf("ListTasks() failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != task.ID {
		t.Errorf("moved task not listed under its new room")
	}

	// A target room that does not resolve rejects the whole update.
	_, err = s.UpdateTask(ctx, task.ID, TaskParams{Title: "Dweilen", RoomID: "room_missing"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("UpdateTask to unknown room = %v, want not-found error", err)
	}
	task, err = s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() failed: %v", err)
	}
	if task.RoomID != badkamer.ID {
		t.Errorf("rejected move changed room to %s", task.RoomID)
	}

	// An empty RoomID keeps the task where it is.
	task, err = s.UpdateTask(ctx, task.ID, TaskParams{Title: "Dweilen"})
	if err != nil {
		t.Fatalf("UpdateTask() failed: %v", err)
	}
	if task.RoomID != badkamer.ID {
		t.Errorf("update without room changed room to %s", task.RoomID)
	}
}

// TestListTasks_CorruptTimestamp tests that unparseable stored timestamps
// surface as errors instead of silently producing zero-value times
func TestListTasks_CorruptTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	room, _ := s.CreateRoom(ctx, "Keuken", "", "")
	task, err := s.CreateTask(ctx, TaskParams{Title: "Afwas", RoomID: room.ID})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}

	_, err = s.conn.ExecContext(ctx,
		`UPDATE tasks SET created_at = 'gisteren' WHERE id = ?`, task.ID)
	if err != nil {
		t.Fatalf("failed to corrupt row: %v", err)
	}

	if _, err := s.ListTasks(ctx, ""); err == nil {
		t.Error("ListTasks() succeeded on a corrupt created_at, want error")
	}
	if _, err := s.GetTask(ctx, task.ID); err == nil {
		t.Error("GetTask() succeeded on a corrupt created_at, want error")
	}
}

// TestDeleteRoom_Cascade tests that no orphan tasks or photos survive
func TestDeleteRoom_Cascade(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	room, _ := s.CreateRoom(ctx, "Keuken", "", "")
	other, _ := s.CreateRoom(ctx, "Tuin", "", "")

	task, err := s.CreateTask(ctx, TaskParams{Title: "Afwas", RoomID: room.ID})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	keep, err := s.CreateTask(ctx, TaskParams{Title: "Gras maaien", RoomID: other.ID})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}

	photo, err := s.CreatePhoto(ctx, task.ID, "/uploads/afwas.jpg")
	if err != nil {
		t.Fatalf("CreatePhoto() failed: %v", err)
	}

	urls, err := s.DeleteRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("DeleteRoom() failed: %v", err)
	}
	if len(urls) != 1 || urls[0] != photo.URL {
		t.Errorf("DeleteRoom returned urls %v, want [%s]", urls, photo.URL)
	}

	tasks, err := s.ListTasks(ctx, "")
	if err != nil {
		t.Fatalf("ListTasks() failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Errorf("cascade left wrong tasks: %+v", tasks)
	}

	photos, err := s.ListPhotos(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListPhotos() failed: %v", err)
	}
	if len(photos) != 0 {
		t.Errorf("cascade left %d orphan photos", len(photos))
	}
}

// TestPhotos_Lifecycle tests photo creation, recency ordering and deletion
func TestPhotos_Lifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	room, _ := s.CreateRoom(ctx, "Keuken", "", "")
	task, _ := s.CreateTask(ctx, TaskParams{Title: "Afwas", RoomID: room.ID})

	if _, err := s.CreatePhoto(ctx, "task_missing", "/uploads/x.jpg"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("CreatePhoto with dead task = %v, want not found", err)
	}

	first, err := s.CreatePhoto(ctx, task.ID, "/uploads/first.jpg")
	if err != nil {
		t.Fatalf("CreatePhoto() failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := s.CreatePhoto(ctx, task.ID, "/uploads/second.jpg")
	if err != nil {
		t.Fatalf("CreatePhoto() failed: %v", err)
	}

	photos, err := s.ListPhotos(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListPhotos() failed: %v", err)
	}
	if len(photos) != 2 || photos[0].ID != second.ID {
		t.Errorf("ListPhotos ordering = %+v, want most recent first", photos)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() failed: %v", err)
	}
	if len(got.Photos) != 2 {
		t.Errorf("GetTask resolved %d photos, want 2", len(got.Photos))
	}

	url, err := s.DeletePhoto(ctx, first.ID)
	if err != nil {
		t.Fatalf("DeletePhoto() failed: %v", err)
	}
	if url != first.URL {
		t.Errorf("DeletePhoto returned %s, want %s", url, first.URL)
	}

	if _, err := s.DeletePhoto(ctx, first.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second DeletePhoto = %v, want not found", err)
	}
}

// TestWatermark_AdvancesOnMutation tests the change feed signal
func TestWatermark_AdvancesOnMutation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	before, err := s.Watermark(ctx, CollectionRooms)
	if err != nil {
		t.Fatalf("Watermark() failed: %v", err)
	}
	if !before.IsZero() {
		t.Errorf("untouched collection watermark = %v, want zero", before)
	}

	room, err := s.CreateRoom(ctx, "Keuken", "", "")
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}

	afterRoom, err := s.Watermark(ctx, CollectionRooms)
	if err != nil {
		t.Fatalf("Watermark() failed: %v", err)
	}
	if !afterRoom.After(before) {
		t.Error("room watermark did not advance after create")
	}

	task, err := s.CreateTask(ctx, TaskParams{Title: "Afwas", RoomID: room.ID})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	taskMark, err := s.Watermark(ctx, CollectionTasks)
	if err != nil {
		t.Fatalf("Watermark() failed: %v", err)
	}
	if taskMark.IsZero() {
		t.Fatal("task watermark not set after create")
	}

	// Photo mutations ride the tasks watermark.
	if _, err := s.CreatePhoto(ctx, task.ID, "/uploads/x.jpg"); err != nil {
		t.Fatalf("CreatePhoto() failed: %v", err)
	}
	photoMark, err := s.Watermark(ctx, CollectionTasks)
	if err != nil {
		t.Fatalf("Watermark() failed: %v", err)
	}
	if !photoMark.After(taskMark) {
		t.Error("tasks watermark did not advance after photo create")
	}
}

// TestGetStats_Counts tests the status command summary query
func TestGetStats_Counts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	room, _ := s.CreateRoom(ctx, "Keuken", "", "")
	s.CreateTask(ctx, TaskParams{Title: "a", RoomID: room.ID})
	s.CreateTask(ctx, TaskParams{Title: "b", RoomID: room.ID, Priority: true})
	s.CreateTask(ctx, TaskParams{Title: "c", RoomID: room.ID, Status: types.StatusCompleted, Priority: true})

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if stats.Rooms != 1 || stats.Tasks != 3 {
		t.Errorf("stats = %+v, want 1 room / 3 tasks", stats)
	}
	if stats.ByStatus["todo"] != 2 || stats.ByStatus["completed"] != 1 {
		t.Errorf("stats.ByStatus = %v", stats.ByStatus)
	}
	if stats.Priority != 1 {
		t.Errorf("stats.Priority = %d, want 1 (completed tasks excluded)", stats.Priority)
	}
}
