package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/parley/internal/domain"
)

func TestSceneContext_TypedAccess(t *testing.T) {
	c := NewSceneContext()
	c.SetBool("door.open", true)
	c.SetFloat("gold", 12.5)
	c.SetString("mood", "tense")

	assert.True(t, c.GetBool("door.open", false))
	assert.Equal(t, 12.5, c.GetFloat("gold", 0))
	assert.Equal(t, "tense", c.GetString("mood", ""))

	assert.Equal(t, 3.0, c.GetFloat("missing", 3))
	assert.Equal(t, 7.0, c.GetFloat("mood", 7), "non-numeric falls back to default")
	assert.True(t, c.GetBool("missing", true))
	assert.Equal(t, "x", c.GetString("missing", "x"))

	assert.True(t, c.Has("gold"))
	assert.True(t, c.Remove("gold"))
	assert.False(t, c.Remove("gold"))
	assert.False(t, c.Has("gold"))
}

func TestSceneContext_Increment(t *testing.T) {
	c := NewSceneContext()
	assert.Equal(t, 1.0, c.Increment("count", 1))
	assert.Equal(t, 3.5, c.Increment("count", 2.5))

	c.SetString("label", "abc")
	assert.Equal(t, 2.0, c.Increment("label", 2), "non-numeric restarts at zero")
}

func TestSceneContext_KeysWithPrefix(t *testing.T) {
	c := NewSceneContext()
	c.SetBool("quest.b", true)
	c.SetBool("quest.a", true)
	c.SetBool("other", true)

	assert.Equal(t, []string{"quest.a", "quest.b"}, c.KeysWithPrefix("quest."))
	assert.Empty(t, c.KeysWithPrefix("none."))
}

func TestSceneContext_BeatVisits(t *testing.T) {
	c := NewSceneContext()
	c.RecordBeatVisit("intro", "", "hero")
	c.RecordBeatVisit("middle", "", "rival")
	c.RecordBeatVisit("intro", "intro_warm", "")
	c.RecordBeatVisit("intro", "", "")

	assert.True(t, c.WasBeatVisited("intro"))
	assert.False(t, c.WasBeatVisited("end"))

	frag, ok := c.GetFragmentAtBeat("intro")
	require.True(t, ok)
	assert.Equal(t, "intro_warm", frag)

	_, ok = c.GetFragmentAtBeat("middle")
	assert.False(t, ok)

	visits := c.VisitedBeats()
	require.Len(t, visits, 2)
	assert.Equal(t, "intro", visits[0].BeatID)
	assert.Equal(t, "hero", visits[0].SpeakerRoleID)
	assert.Equal(t, "middle", visits[1].BeatID)

	assert.Equal(t, "intro_warm", c.GetString(BeatFragmentKey("intro"), ""))
	assert.True(t, c.GetBool(BeatVisitedKey("middle"), false))
	assert.Equal(t, "rival", c.GetString(BeatSpeakerKey("middle"), ""))
}

func TestSceneContext_Apply(t *testing.T) {
	c := NewSceneContext()
	c.Apply(domain.ContextModifier{Key: "insulted", Value: "true"})
	c.Apply(domain.ContextModifier{Key: "tension", Op: domain.ContextIncrement, Value: "2"})
	c.Apply(domain.ContextModifier{Key: "tension", Op: domain.ContextIncrement})
	c.Apply(domain.ContextModifier{Key: "topic", Op: domain.ContextSet, Value: "harbor"})

	assert.True(t, c.GetBool("insulted", false))
	assert.Equal(t, 3.0, c.GetFloat("tension", 0))
	assert.Equal(t, "harbor", c.GetString("topic", ""))

	c.Apply(domain.ContextModifier{Key: "topic", Op: domain.ContextRemove})
	assert.False(t, c.Has("topic"))
}

func TestSceneContext_Clear(t *testing.T) {
	c := NewSceneContext()
	c.SetBool("x", true)
	c.RecordBeatVisit("a", "f", "r")
	c.Clear()

	assert.False(t, c.Has("x"))
	assert.False(t, c.WasBeatVisited("a"))
	assert.Empty(t, c.VisitedBeats())
}
