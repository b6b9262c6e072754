package captcha

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ediflysi/jetdesk/internal/cache"
)

func newStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	return New(cache.NewMemory("test"), ttl)
}

func TestCreate_ProducesSixDigitValueAndImage(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)

	ch, err := s.Create(ctx, "uid-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(ch.Value) != ValueLen {
		t.Fatalf("value %q, want %d digits", ch.Value, ValueLen)
	}
	for _, r := range ch.Value {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit in value %q", ch.Value)
		}
	}
	if !bytes.HasPrefix(ch.PNG, []byte("\x89PNG")) {
		t.Fatal("image is not a PNG")
	}
	if !strings.HasPrefix(ch.DataURI, "data:image/png;base64,") {
		t.Fatalf("unexpected data uri prefix: %.40s", ch.DataURI)
	}

	if _, err := s.Create(ctx, "  "); err == nil {
		t.Fatal("empty id must be rejected")
	}
}

func TestConsume_SingleUseRegardlessOfOutcome(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)

	// Caso éxito: el segundo consumo con el valor correcto falla expirado.
	ch, _ := s.Create(ctx, "uid-ok")
	if err := s.Consume(ctx, "uid-ok", ch.Value); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := s.Consume(ctx, "uid-ok", ch.Value); err != ErrExpired {
		t.Fatalf("second consume: got %v, want ErrExpired", err)
	}

	// Caso fallo: el intento errado también invalida.
	ch, _ = s.Create(ctx, "uid-bad")
	if err := s.Consume(ctx, "uid-bad", "000000"); err != ErrInvalid {
		t.Fatalf("wrong value: got %v, want ErrInvalid", err)
	}
	if err := s.Consume(ctx, "uid-bad", ch.Value); err != ErrExpired {
		t.Fatalf("retry after failed consume: got %v, want ErrExpired", err)
	}
}

func TestConsume_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)

	ch, err := s.Create(ctx, "uid-race")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const callers = 16
	var (
		start sync.WaitGroup
		done  sync.WaitGroup
		wins  atomic.Int32
	)
	start.Add(1)
	for i := 0; i < callers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			switch err := s.Consume(ctx, "uid-race", ch.Value); err {
			case nil:
				wins.Add(1)
			case ErrExpired:
			default:
				t.Errorf("unexpected consume error: %v", err)
			}
		}()
	}
	start.Done()
	done.Wait()

	// Un solo uso incluso bajo concurrencia: exactamente un ganador.
	if got := wins.Load(); got != 1 {
		t.Fatalf("winners = %d, want exactly 1", got)
	}
}

func TestConsume_MissingAndExpired(t *testing.T) {
	ctx := context.Background()

	s := newStore(t, 0)
	if err := s.Consume(ctx, "never-created", "123456"); err != ErrExpired {
		t.Fatalf("missing id: got %v, want ErrExpired", err)
	}

	fast := newStore(t, 30*time.Millisecond)
	ch, _ := fast.Create(ctx, "uid-ttl")
	time.Sleep(60 * time.Millisecond)
	if err := fast.Consume(ctx, "uid-ttl", ch.Value); err != ErrExpired {
		t.Fatalf("expired challenge: got %v, want ErrExpired", err)
	}
}

func TestCreate_OverwritesPendingChallenge(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 0)

	first, _ := s.Create(ctx, "uid-replace")
	second, err := s.Create(ctx, "uid-replace")
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}

	// El valor viejo quedó invalidado aunque coincida por azar una vez cada
	// 10^6; distinguimos por resultado del consumo del valor nuevo.
	if first.Value != second.Value {
		if err := s.Consume(ctx, "uid-replace", first.Value); err != ErrInvalid {
			t.Fatalf("stale value: got %v, want ErrInvalid", err)
		}
		// Y el consumo fallido ya invalidó el desafío nuevo también.
		if err := s.Consume(ctx, "uid-replace", second.Value); err != ErrExpired {
			t.Fatalf("after stale attempt: got %v, want ErrExpired", err)
		}
	} else {
		if err := s.Consume(ctx, "uid-replace", second.Value); err != nil {
			t.Fatalf("consume replacement: %v", err)
		}
	}
}

func TestRender_Deterministic(t *testing.T) {
	a, err := Render("123456")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Render("123456")
	if !bytes.Equal(a, b) {
		t.Fatal("same value must render identical image")
	}
	if _, err := Render("12a456"); err == nil {
		t.Fatal("non-digit value must fail")
	}
}
