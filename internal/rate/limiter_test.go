package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	base := time.Date(2026, 1, 1, 10, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	r, err := l.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	require.True(t, r.Allowed)
	require.Equal(t, int64(1), r.Remaining)

	r, _ = l.Allow(ctx, "login:1.2.3.4")
	require.True(t, r.Allowed)

	r, _ = l.Allow(ctx, "login:1.2.3.4")
	require.False(t, r.Allowed)
	require.Equal(t, int64(0), r.Remaining)
	require.Equal(t, 50*time.Second, r.RetryAfter)

	// otra clave no comparte contador
	r, _ = l.Allow(ctx, "login:5.6.7.8")
	require.True(t, r.Allowed)

	// ventana siguiente
	l.now = func() time.Time { return base.Add(time.Minute) }
	r, _ = l.Allow(ctx, "login:1.2.3.4")
	require.True(t, r.Allowed)
}

func TestNew_FallsBackToMemory(t *testing.T) {
	_, ok := New(struct{}{}, "rl:", 5, time.Minute).(*MemoryLimiter)
	require.True(t, ok)
}
