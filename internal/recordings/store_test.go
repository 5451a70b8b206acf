package recordings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "recordings.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec, err := store.Save(ctx, NewRecording{
		Title:           "Grocery list for the week",
		AudioPath:       "/data/audio/memo1.wav",
		TranscriptPath:  "/data/transcripts/memo1.md",
		TextPath:        "/data/transcripts/memo1.txt",
		DurationSeconds: 42,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("missing id")
	}

	got, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != rec.Title || got.AudioPath != rec.AudioPath || got.DurationSeconds != 42 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.TextPath != "/data/transcripts/memo1.txt" {
		t.Fatalf("text path = %q", got.TextPath)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("missing timestamps")
	}
}

func TestSaveWithoutTextPath(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec, err := store.Save(ctx, NewRecording{
		Title:          "Untitled",
		AudioPath:      "/data/audio/memo2.wav",
		TranscriptPath: "/data/transcripts/memo2.md",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.TextPath != "" {
		t.Fatalf("text path = %q, want empty", rec.TextPath)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		if _, err := store.Save(ctx, NewRecording{
			Title:          title,
			AudioPath:      "/a/" + title + ".wav",
			TranscriptPath: "/t/" + title + ".md",
		}); err != nil {
			t.Fatalf("Save %s: %v", title, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	if list[0].Title != "third" || list[2].Title != "first" {
		t.Fatalf("order = [%s %s %s], want newest first", list[0].Title, list[1].Title, list[2].Title)
	}
}

func TestRemove(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec, err := store.Save(ctx, NewRecording{
		Title: "gone soon", AudioPath: "/a.wav", TranscriptPath: "/t.md",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	removed, err := store.Remove(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed.AudioPath != "/a.wav" {
		t.Fatalf("removed record = %+v", removed)
	}

	if _, err := store.GetByID(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID after remove = %v, want ErrNotFound", err)
	}
	if _, err := store.Remove(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Remove = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 || stats.TotalDurationSeconds != 0 {
		t.Fatalf("empty stats = %+v", stats)
	}

	for _, dur := range []int64{10, 25} {
		if _, err := store.Save(ctx, NewRecording{
			Title: "memo", AudioPath: "/a.wav", TranscriptPath: "/t.md",
			DurationSeconds: dur,
		}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.TotalDurationSeconds != 35 {
		t.Fatalf("stats = %+v, want total 2 duration 35", stats)
	}
}
