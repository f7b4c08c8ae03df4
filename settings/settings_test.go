package settings_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/proseai/dbopen"
	"github.com/hazyhaar/proseai/platform"
	"github.com/hazyhaar/proseai/settings"
)

func newStore(t *testing.T) *settings.Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(settings.Schema))
	return settings.NewStore(db, nil)
}

func TestGet_Defaults(t *testing.T) {
	st, err := newStore(t).Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(settings.Defaults(), st); diff != "" {
		t.Errorf("fresh store (-want +got):\n%s", diff)
	}
	if st.LastUsedTone != "professional" || st.APIEndpoint != "http://localhost:3000" || st.OnboardingCompleted {
		t.Errorf("defaults = %+v", st)
	}
}

func TestSetters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.SetOnboardingCompleted(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSelectedPlatforms(ctx, []string{"whatsapp", " linkedin ", "whatsapp", ""}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLastUsedTone(ctx, "comedy"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAPIEndpoint(ctx, "https://rewrite.example.com/"); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := settings.Settings{
		SelectedPlatforms:   []string{"whatsapp", "linkedin"},
		LastUsedTone:        "comedy",
		APIEndpoint:         "https://rewrite.example.com",
		OnboardingCompleted: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings (-want +got):\n%s", diff)
	}
	if !got.Enabled("linkedin") || got.Enabled("telegram") {
		t.Errorf("Enabled mismatch for %v", got.SelectedPlatforms)
	}
}

func TestSet_Rejects(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.SetLastUsedTone(ctx, "grumpy"); err == nil {
		t.Error("unknown tone accepted")
	}
	if err := s.SetAPIEndpoint(ctx, "ftp://example.com"); err == nil {
		t.Error("ftp endpoint accepted")
	}
	if err := s.SetSelectedPlatforms(ctx, []string{"bad id!"}); err == nil {
		t.Error("invalid platform id accepted")
	}
	if err := s.SetString(ctx, "theme", "dark", nil); !errors.Is(err, settings.ErrUnknownKey) {
		t.Errorf("SetString unknown key = %v", err)
	}
}

func TestSetString(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	reg := platform.Default()

	if err := s.SetString(ctx, settings.KeyOnboardingCompleted, "true", reg); err != nil {
		t.Fatal(err)
	}
	if err := s.SetString(ctx, settings.KeySelectedApps, "telegram,whatsapp", reg); err != nil {
		t.Fatal(err)
	}
	if err := s.SetString(ctx, settings.KeySelectedApps, "telegram,myspace", reg); err == nil {
		t.Error("unknown platform accepted")
	}
	if err := s.SetString(ctx, settings.KeyOnboardingCompleted, "maybe", reg); err == nil {
		t.Error("non-bool accepted")
	}

	got, err := s.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got.OnboardingCompleted || len(got.SelectedPlatforms) != 2 || got.SelectedPlatforms[0] != "telegram" {
		t.Errorf("got %+v", got)
	}
}

func TestRev_IncreasesOnEveryWrite(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	r0, err := s.Rev(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.SetLastUsedTone(ctx, "casual")
	r1, _ := s.Rev(ctx)
	_ = s.SetLastUsedTone(ctx, "polite")
	r2, _ := s.Rev(ctx)
	if !(r0 < r1 && r1 < r2) {
		t.Errorf("revs = %d, %d, %d", r0, r1, r2)
	}
}

func TestWatch_SeesSameConnectionWrites(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen atomic.Value
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Watch(ctx, 10*time.Millisecond, func(_ context.Context, st settings.Settings) error {
			seen.Store(st)
			return nil
		})
	}()

	// Let the watcher read its initial revision before writing.
	time.Sleep(30 * time.Millisecond)
	if err := s.SetOnboardingCompleted(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := seen.Load().(settings.Settings); ok && st.OnboardingCompleted {
			cancel()
			<-done
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("watcher did not report the write")
}
