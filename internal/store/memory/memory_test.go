package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ediflysi/jetdesk/internal/authz"
	"github.com/ediflysi/jetdesk/internal/domain/repository"
)

func seed(t *testing.T, s *Store) *repository.Credential {
	t.Helper()
	c, err := s.Create(context.Background(), repository.CreateInput{
		Username:       "Pilot1",
		Name:           "Pilot One",
		PasswordDigest: "digest",
		Level:          authz.LevelForRole(authz.RoleCrewMember),
		Role:           authz.RoleCrewMember,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return c
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seed(t, s)

	// Username se normaliza a minúsculas.
	got, err := s.FindByUsername(ctx, "PILOT1")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if got.ID != c.ID || got.Username != "pilot1" || !got.Active {
		t.Fatalf("unexpected credential: %+v", got)
	}

	if _, err := s.FindByUsername(ctx, "ghost"); !repository.IsNotFound(err) {
		t.Fatalf("missing user: %v", err)
	}
	if _, err := s.Create(ctx, repository.CreateInput{Username: "pilot1", PasswordDigest: "x"}); !repository.IsConflict(err) {
		t.Fatalf("duplicate username: %v", err)
	}
	if _, err := s.Create(ctx, repository.CreateInput{Username: "", PasswordDigest: "x"}); err != repository.ErrInvalidInput {
		t.Fatalf("empty username: %v", err)
	}
}

func TestReadsAreSnapshots(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seed(t, s)

	snap, _ := s.FindByID(ctx, c.ID)
	snap.PasswordDigest = "mutated"
	snap.Lockout.FailedAttempts = 99

	fresh, _ := s.FindByID(ctx, c.ID)
	if fresh.PasswordDigest != "digest" || fresh.Lockout.FailedAttempts != 0 {
		t.Fatal("mutating a returned credential must not affect the store")
	}
}

func TestAddFailedAttempt_AtomicUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seed(t, s)

	const n = 50
	var wg sync.WaitGroup
	seen := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, err := s.AddFailedAttempt(ctx, c.ID, time.Now())
			if err != nil {
				t.Error(err)
				return
			}
			seen <- count
		}()
	}
	wg.Wait()
	close(seen)

	// increment-and-fetch: los n resultados son exactamente 1..n sin
	// duplicados.
	got := make(map[int]bool, n)
	for v := range seen {
		if got[v] {
			t.Fatalf("duplicate counter value %d observed", v)
		}
		got[v] = true
	}
	final, _ := s.FindByID(ctx, c.ID)
	if final.Lockout.FailedAttempts != n {
		t.Fatalf("final attempts = %d, want %d", final.Lockout.FailedAttempts, n)
	}
	if final.Lockout.LastFailedAt == nil {
		t.Fatal("last_failed_at not recorded")
	}
}

func TestLockoutLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seed(t, s)

	until := time.Now().Add(30 * time.Minute)
	if err := s.SetLock(ctx, c.ID, until); err != nil {
		t.Fatal(err)
	}
	locked, _ := s.FindByID(ctx, c.ID)
	if !locked.Lockout.LockedAt(time.Now()) {
		t.Fatal("expected locked state")
	}
	// El lock caduca solo por tiempo.
	if locked.Lockout.LockedAt(until.Add(time.Second)) {
		t.Fatal("lock must expire once now >= locked_until")
	}

	if err := s.ResetLockout(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	reset, _ := s.FindByID(ctx, c.ID)
	if reset.Lockout.FailedAttempts != 0 || reset.Lockout.LastFailedAt != nil || reset.Lockout.LockedUntil != nil {
		t.Fatalf("lockout not reset: %+v", reset.Lockout)
	}
}

func TestTwoFactorAndLastLogin(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seed(t, s)

	if err := s.SetTwoFactorSecret(ctx, c.ID, "enc-secret"); err != nil {
		t.Fatal(err)
	}
	pending, _ := s.FindByID(ctx, c.ID)
	if pending.TwoFactorSecretEnc != "enc-secret" || pending.TwoFactorEnabled {
		t.Fatalf("expected pending verification state: %+v", pending)
	}

	_ = s.SetTwoFactorEnabled(ctx, c.ID, true)
	enabled, _ := s.FindByID(ctx, c.ID)
	if !enabled.TwoFactorEnabled {
		t.Fatal("expected enabled")
	}

	at := time.Now().UTC().Truncate(time.Second)
	_ = s.UpdateLastLogin(ctx, c.ID, at)
	logged, _ := s.FindByID(ctx, c.ID)
	if logged.LastLogin == nil || !logged.LastLogin.Equal(at) {
		t.Fatalf("last login = %v, want %v", logged.LastLogin, at)
	}

	// Operaciones sobre ids inexistentes reportan ErrNotFound.
	if err := s.SetTwoFactorEnabled(ctx, "nope", true); !repository.IsNotFound(err) {
		t.Fatalf("unknown id: %v", err)
	}
}
