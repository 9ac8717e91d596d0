package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/parley/internal/dialogue"
	"github.com/dotcommander/parley/internal/domain"
	"github.com/dotcommander/parley/internal/storage"
)

func TestAutoCast(t *testing.T) {
	knight := &domain.Character{ID: "knight", Traits: []string{"brave", "loyal"}}
	thief := &domain.Character{ID: "thief", Traits: []string{"sly"}}
	squire := &domain.Character{ID: "squire", Traits: []string{"brave"}}

	template := &domain.SceneTemplate{
		ID: "heist",
		Roles: []domain.Role{
			{ID: "leader", Affinities: []domain.TraitWeight{{TraitID: "brave", Weight: 1}, {TraitID: "loyal", Weight: 2}}},
			{ID: "second", RequiredTraits: []string{"brave"}},
			{ID: "lookout", ForbiddenTraits: []string{"brave"}},
		},
	}

	cast, err := AutoCast(template, []*domain.Character{squire, thief, knight})
	require.NoError(t, err)

	leader, _ := cast.Get("leader")
	second, _ := cast.Get("second")
	lookout, _ := cast.Get("lookout")
	assert.Same(t, knight, leader)
	assert.Same(t, squire, second)
	assert.Same(t, thief, lookout)
}

func TestAutoCast_TiesGoToFirst(t *testing.T) {
	a := &domain.Character{ID: "a"}
	b := &domain.Character{ID: "b"}
	template := &domain.SceneTemplate{ID: "s", Roles: []domain.Role{{ID: "r"}}}

	cast, err := AutoCast(template, []*domain.Character{a, b})
	require.NoError(t, err)
	got, _ := cast.Get("r")
	assert.Same(t, a, got)
}

func TestAutoCast_Unfillable(t *testing.T) {
	template := &domain.SceneTemplate{ID: "s", Roles: []domain.Role{{ID: "mage", RequiredTraits: []string{"arcane"}}}}
	_, err := AutoCast(template, []*domain.Character{{ID: "x"}})
	assert.ErrorIs(t, err, ErrRoleUnfilled)
	assert.Contains(t, err.Error(), "mage")

	_, err = AutoCast(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestTranscript_SaveLoad(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewFileSystem(t.TempDir())

	tr := NewTranscript(fs, "abc")
	tr.Append("scene", "beat", dialogue.Line{
		Text:     "Hello.",
		Fragment: &domain.DialogueFragment{ID: "hello"},
		Speaker:  &domain.Character{ID: "ada"},
	})
	require.NoError(t, tr.Save(ctx))
	assert.True(t, fs.Exists(ctx, "transcripts/abc.json"))

	data, err := fs.Load(ctx, tr.Path())
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "abc", raw["session_id"])

	loaded := NewTranscript(fs, "abc")
	require.NoError(t, loaded.Load(ctx))
	entries := loaded.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].FragmentID)
	assert.Equal(t, "ada", entries[0].SpeakerID)
	assert.Empty(t, entries[0].TargetID)

	fresh := NewTranscript(fs, "never-saved")
	assert.NoError(t, fresh.Load(ctx))
	assert.Empty(t, fresh.Entries())
}

type failingStorage struct{ err error }

func (f failingStorage) Save(context.Context, string, []byte) error { return f.err }

func (f failingStorage) Load(context.Context, string) ([]byte, error) { return nil, f.err }

func TestTranscript_LoadErrors(t *testing.T) {
	ctx := context.Background()

	denied := errors.New("permission denied")
	err := NewTranscript(failingStorage{err: denied}, "abc").Load(ctx)
	assert.ErrorIs(t, err, denied)
	assert.Contains(t, err.Error(), "loading transcript")

	err = NewTranscript(failingStorage{err: storage.ErrInvalidPath}, "abc").Load(ctx)
	assert.ErrorIs(t, err, storage.ErrInvalidPath)

	missing := fmt.Errorf("%w: transcripts/abc.json", storage.ErrNotFound)
	assert.NoError(t, NewTranscript(failingStorage{err: missing}, "abc").Load(ctx))

	fs := storage.NewFileSystem(t.TempDir())
	require.NoError(t, fs.Save(ctx, "transcripts/bad.json", []byte("{not json")))
	err = NewTranscript(fs, "bad").Load(ctx)
	assert.ErrorContains(t, err, "parsing transcript")
}
