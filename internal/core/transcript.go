package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dotcommander/parley/internal/dialogue"
	"github.com/dotcommander/parley/internal/storage"
)

// TranscriptEntry is one presented line.
type TranscriptEntry struct {
	SceneID    string    `json:"scene_id"`
	BeatID     string    `json:"beat_id"`
	SpeakerID  string    `json:"speaker_id"`
	TargetID   string    `json:"target_id,omitempty"`
	FragmentID string    `json:"fragment_id"`
	Text       string    `json:"text"`
	Score      float64   `json:"score"`
	At         time.Time `json:"at"`
}

type transcriptFile struct {
	SessionID  string            `json:"session_id"`
	StartTime  time.Time         `json:"start_time"`
	LastUpdate time.Time         `json:"last_update"`
	Entries    []TranscriptEntry `json:"entries"`
}

// Transcript keeps every line presented in a session and persists it as
// JSON through a Storage.
type Transcript struct {
	storage   Storage
	sessionID string

	mu      sync.RWMutex
	started time.Time
	updated time.Time
	entries []TranscriptEntry
}

// NewTranscript creates an empty transcript. storage may be nil for an
// in-memory transcript.
func NewTranscript(storage Storage, sessionID string) *Transcript {
	now := time.Now()
	return &Transcript{
		storage:   storage,
		sessionID: sessionID,
		started:   now,
		updated:   now,
	}
}

// Path is where Save writes the transcript.
func (t *Transcript) Path() string {
	return fmt.Sprintf("transcripts/%s.json", t.sessionID)
}

// Append records line as spoken at beatID of sceneID.
func (t *Transcript) Append(sceneID, beatID string, line dialogue.Line) {
	entry := TranscriptEntry{
		SceneID: sceneID,
		BeatID:  beatID,
		Text:    line.Text,
		Score:   line.Result.Score,
		At:      time.Now(),
	}
	if line.Speaker != nil {
		entry.SpeakerID = line.Speaker.ID
	}
	if line.Target != nil {
		entry.TargetID = line.Target.ID
	}
	if line.Fragment != nil {
		entry.FragmentID = line.Fragment.ID
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	t.updated = entry.At
}

// Entries returns a copy of the recorded lines.
func (t *Transcript) Entries() []TranscriptEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Save writes the transcript to storage.
func (t *Transcript) Save(ctx context.Context) error {
	if t.storage == nil {
		return nil
	}

	t.mu.RLock()
	data, err := json.MarshalIndent(transcriptFile{
		SessionID:  t.sessionID,
		StartTime:  t.started,
		LastUpdate: t.updated,
		Entries:    t.entries,
	}, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling transcript: %w", err)
	}

	return t.storage.Save(ctx, t.Path(), data)
}

// Load replaces the in-memory entries with the saved transcript, if any.
func (t *Transcript) Load(ctx context.Context) error {
	if t.storage == nil {
		return nil
	}

	data, err := t.storage.Load(ctx, t.Path())
	if errors.Is(err, storage.ErrNotFound) {
		// Nothing saved yet.
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading transcript: %w", err)
	}

	var file transcriptFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing transcript: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = file.StartTime
	t.updated = file.LastUpdate
	t.entries = file.Entries
	return nil
}
