package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() RuntimeSettings {
	return RuntimeSettings{
		UploadURL: "https://docs.example.com/upload",
		SyncCron:  "* * * * *",
	}
}

func TestRuntimeSettings_Validate(t *testing.T) {
	require.NoError(t, validSettings().Validate())

	missing := validSettings()
	missing.UploadURL = ""
	require.Error(t, missing.Validate())

	badURL := validSettings()
	badURL.UploadURL = "not a url"
	require.Error(t, badURL.Validate())

	badCron := validSettings()
	badCron.SyncCron = "nope"
	require.Error(t, badCron.Validate())
}

func TestRuntimeSettingsFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	settings := validSettings()

	require.NoError(t, WriteRuntimeSettingsFile(path, settings))

	loaded, err := LoadRuntimeSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

func TestRuntimeSettingsStore_UpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	store, err := NewRuntimeSettingsStore(path, validSettings())
	require.NoError(t, err)

	next := validSettings()
	next.SyncCron = "*/5 * * * *"
	saved, err := store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", saved.SyncCron)

	loaded, err := LoadRuntimeSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, next, loaded)

	current, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, next, current)
}

func TestRuntimeSettingsStore_RejectsInvalidUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	store, err := NewRuntimeSettingsStore(path, validSettings())
	require.NoError(t, err)

	bad := validSettings()
	bad.SyncCron = "invalid"
	_, err = store.UpdateRuntimeSettings(bad)
	require.Error(t, err)

	current, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, validSettings(), current)
}
