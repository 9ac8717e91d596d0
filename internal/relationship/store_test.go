package relationship

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/parley/internal/domain"
)

func TestStore_Clamping(t *testing.T) {
	tests := []struct {
		name  string
		set   float64
		delta float64
		want  float64
	}{
		{"within range", 40, 10, 50},
		{"above max", 95, 20, MaxValue},
		{"below min", 5, -30, MinValue},
		{"set above max", 250, 0, MaxValue},
		{"set below min", -10, 0, MinValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.SetRelationship("a", "b", domain.RelTrust, tt.set)
			got := s.ModifyRelationship("a", "b", domain.RelTrust, tt.delta)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, s.GetRelationship("a", "b", domain.RelTrust))
		})
	}
}

func TestStore_Directional(t *testing.T) {
	s := NewStore()
	s.SetRelationship("a", "b", domain.RelAffection, 80)

	assert.Equal(t, 80.0, s.GetRelationship("a", "b", domain.RelAffection))
	assert.Equal(t, 0.0, s.GetRelationship("b", "a", domain.RelAffection))
	assert.Equal(t, 0.0, s.GetRelationship("a", "b", domain.RelTrust))
}

func TestStore_Default(t *testing.T) {
	s := NewStore(WithDefault(50))
	assert.Equal(t, 50.0, s.GetRelationship("x", "y", domain.RelRespect))

	_, ok := s.Lookup("x", "y", domain.RelRespect)
	assert.False(t, ok)

	assert.Equal(t, 60.0, s.ModifyRelationship("x", "y", domain.RelRespect, 10))
}

func TestStore_Snapshot(t *testing.T) {
	s := NewStore()
	s.SetRelationship("b", "a", domain.RelTrust, 1)
	s.SetRelationship("a", "c", domain.RelTrust, 2)
	s.SetRelationship("a", "b", domain.RelTrust, 3)

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "a", snap[0].From)
	assert.Equal(t, "b", snap[0].To)
	assert.Equal(t, "c", snap[1].To)
	assert.Equal(t, "b", snap[2].From)

	s.Reset()
	assert.Empty(t, s.Snapshot())
}

func TestStore_ConcurrentModify(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.ModifyRelationship("a", "b", domain.RelTrust, 1)
		}()
		go func() {
			defer wg.Done()
			_ = s.GetRelationship("a", "b", domain.RelTrust)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50.0, s.GetRelationship("a", "b", domain.RelTrust))
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "rel.db")

	s, err := OpenSQLite(ctx, dsn, nil)
	require.NoError(t, err)
	s.SetRelationship("ash", "bryn", domain.RelTrust, 70)
	assert.Equal(t, 75.0, s.ModifyRelationship("ash", "bryn", domain.RelTrust, 5))
	s.SetRelationship("bryn", "ash", domain.RelFear, 150)
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, dsn, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 75.0, reopened.GetRelationship("ash", "bryn", domain.RelTrust))
	assert.Equal(t, MaxValue, reopened.GetRelationship("bryn", "ash", domain.RelFear))
	assert.Len(t, reopened.Snapshot(), 2)
}

func TestSQLiteStore_ConcurrentModifyPersists(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "rel.db")

	s, err := OpenSQLite(ctx, dsn, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ModifyRelationship("a", "b", domain.RelTrust, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50.0, s.GetRelationship("a", "b", domain.RelTrust))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, dsn, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 50.0, reopened.GetRelationship("a", "b", domain.RelTrust))
}

func TestSQLiteStore_ImplementsProvider(t *testing.T) {
	var _ Provider = (*SQLiteStore)(nil)
	var _ Provider = (*Store)(nil)
}
