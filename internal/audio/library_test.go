package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrary_DefaultsWithoutMetadataFile(t *testing.T) {
	lib := NewLibrary(t.TempDir(), zerolog.Nop())

	assert.Equal(t, "system_down.aiff", lib.DefaultDownAlert())
	assert.Equal(t, "system_up.aiff", lib.DefaultUpAlert())
	assert.Empty(t, lib.Alerts())
}

func TestLibrary_LoadsMetadataFile(t *testing.T) {
	dir := t.TempDir()
	meta := `{
		"library_version": "1.0",
		"default_down_alert": "klaxon.wav",
		"default_up_alert": "chime.wav",
		"alerts": {
			"klaxon": {"id": "klaxon", "name": "Klaxon", "filename": "klaxon.wav", "category": "beeps"}
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audio_library.json"), []byte(meta), 0o644))

	lib := NewLibrary(dir, zerolog.Nop())
	assert.Equal(t, "klaxon.wav", lib.DefaultDownAlert())
	assert.Equal(t, "chime.wav", lib.DefaultUpAlert())

	alert, ok := lib.Alert("klaxon")
	require.True(t, ok)
	assert.Equal(t, "beeps", alert.Category)
	assert.Len(t, lib.AlertsByCategory("beeps"), 1)
}

func TestLibrary_AddRemoveAlert(t *testing.T) {
	lib := NewLibrary(t.TempDir(), zerolog.Nop())

	require.Error(t, lib.AddAlert(Alert{Name: "no id"}))
	require.NoError(t, lib.AddAlert(Alert{ID: "beep", Name: "Beep", Filename: "beep.wav", Category: "beeps"}))

	stats := lib.Stats()
	assert.Equal(t, 1, stats.TotalAlerts)
	assert.Equal(t, 1, stats.Categories["beeps"])

	require.NoError(t, lib.RemoveAlert("beep"))
	assert.Error(t, lib.RemoveAlert("beep"))

	// Changes were persisted; a fresh load sees the same catalog.
	fresh := NewLibrary(lib.soundsDir, zerolog.Nop())
	assert.Empty(t, fresh.Alerts())
}

func TestLibrary_ResolvePathRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.wav"), []byte("x"), 0o644))
	lib := NewLibrary(dir, zerolog.Nop())

	path, err := lib.ResolvePath("ok.wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ok.wav"), path)

	_, err = lib.ResolvePath("../secrets.txt")
	assert.Error(t, err)
	_, err = lib.ResolvePath(".hidden.wav")
	assert.Error(t, err)
	_, err = lib.ResolvePath("missing.wav")
	assert.Error(t, err)
}

func TestLibrary_ScanNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "known.wav"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	lib := NewLibrary(dir, zerolog.Nop())
	require.NoError(t, lib.AddAlert(Alert{ID: "known", Filename: "known.wav"}))

	files, err := lib.ScanNewFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"new.mp3"}, files)
}
