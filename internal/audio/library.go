// Package audio manages the catalog of alert sounds served to browser
// clients. Metadata lives in a JSON file alongside the sound files.
package audio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	defaultDownAlert = "system_down.aiff"
	defaultUpAlert   = "system_up.aiff"
	libraryFilename  = "audio_library.json"
)

var audioExtensions = map[string]bool{
	".aiff": true,
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
}

var libraryCategories = []string{"beeps", "tones", "vocal", "professional"}

// Alert describes one catalogued sound.
type Alert struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Filename    string   `json:"filename"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	EventTypes  []string `json:"event_types,omitempty"`
}

// libraryData is the on-disk metadata format.
type libraryData struct {
	LibraryVersion   string            `json:"library_version"`
	DefaultDownAlert string            `json:"default_down_alert"`
	DefaultUpAlert   string            `json:"default_up_alert"`
	Categories       map[string]string `json:"categories"`
	Alerts           map[string]Alert  `json:"alerts"`
}

// Stats summarizes the catalog.
type Stats struct {
	TotalAlerts    int            `json:"total_alerts"`
	Categories     map[string]int `json:"categories"`
	LibraryVersion string         `json:"library_version"`
}

// Library is the audio catalog. Safe for concurrent use.
type Library struct {
	mu        sync.RWMutex
	soundsDir string
	data      libraryData
	log       zerolog.Logger
}

// NewLibrary loads the catalog from soundsDir, falling back to an empty
// default catalog when no metadata file exists.
func NewLibrary(soundsDir string, log zerolog.Logger) *Library {
	l := &Library{
		soundsDir: soundsDir,
		log:       log.With().Str("component", "audio_library").Logger(),
	}
	l.data = l.load()
	return l
}

func (l *Library) load() libraryData {
	path := filepath.Join(l.soundsDir, libraryFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Error().Err(err).Str("path", path).Msg("failed to read audio library")
		} else {
			l.log.Warn().Str("path", path).Msg("audio library file not found, using defaults")
		}
		return defaultLibrary()
	}

	var data libraryData
	if err := json.Unmarshal(raw, &data); err != nil {
		l.log.Error().Err(err).Str("path", path).Msg("failed to parse audio library")
		return defaultLibrary()
	}
	if data.DefaultDownAlert == "" {
		data.DefaultDownAlert = defaultDownAlert
	}
	if data.DefaultUpAlert == "" {
		data.DefaultUpAlert = defaultUpAlert
	}
	if data.Alerts == nil {
		data.Alerts = make(map[string]Alert)
	}
	if data.Categories == nil {
		data.Categories = make(map[string]string)
	}
	return data
}

func defaultLibrary() libraryData {
	return libraryData{
		LibraryVersion:   "1.0",
		DefaultDownAlert: defaultDownAlert,
		DefaultUpAlert:   defaultUpAlert,
		Categories:       make(map[string]string),
		Alerts:           make(map[string]Alert),
	}
}

// Reload rereads the catalog from disk.
func (l *Library) Reload() {
	fresh := l.load()
	l.mu.Lock()
	l.data = fresh
	l.mu.Unlock()
	l.log.Info().Msg("audio library reloaded")
}

// save writes the catalog back to disk. Caller holds the lock.
func (l *Library) saveLocked() error {
	raw, err := json.MarshalIndent(l.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode audio library: %w", err)
	}
	path := filepath.Join(l.soundsDir, libraryFilename)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write audio library: %w", err)
	}
	return nil
}

// DefaultDownAlert returns the filename sounded for down alerts without a
// per-target override.
func (l *Library) DefaultDownAlert() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.DefaultDownAlert
}

// DefaultUpAlert returns the filename sounded for recoveries without a
// per-target override.
func (l *Library) DefaultUpAlert() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.DefaultUpAlert
}

// Alerts returns all catalogued sounds.
func (l *Library) Alerts() map[string]Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Alert, len(l.data.Alerts))
	for id, a := range l.data.Alerts {
		out[id] = a
	}
	return out
}

// AlertsByCategory returns the sounds in one category.
func (l *Library) AlertsByCategory(category string) map[string]Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Alert)
	for id, a := range l.data.Alerts {
		if a.Category == category {
			out[id] = a
		}
	}
	return out
}

// Alert looks up one catalogued sound by ID.
func (l *Library) Alert(id string) (Alert, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.data.Alerts[id]
	return a, ok
}

// AddAlert adds or replaces a catalogued sound and persists the catalog.
func (l *Library) AddAlert(a Alert) error {
	if a.ID == "" {
		return fmt.Errorf("alert id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data.Alerts[a.ID] = a
	return l.saveLocked()
}

// RemoveAlert removes a catalogued sound and persists the catalog.
func (l *Library) RemoveAlert(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.data.Alerts[id]; !ok {
		return fmt.Errorf("alert %q not found", id)
	}
	delete(l.data.Alerts, id)
	return l.saveLocked()
}

// Categories returns the category names and descriptions.
func (l *Library) Categories() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.data.Categories))
	for k, v := range l.data.Categories {
		out[k] = v
	}
	return out
}

// ResolvePath returns the on-disk path for a sound filename, looking in the
// root sounds directory and then the category subdirectories. The filename
// is sanitized so clients cannot escape the sounds directory.
func (l *Library) ResolvePath(filename string) (string, error) {
	clean := filepath.Base(filename)
	if clean != filename || strings.HasPrefix(clean, ".") {
		return "", fmt.Errorf("invalid audio filename %q", filename)
	}

	root := filepath.Join(l.soundsDir, clean)
	if _, err := os.Stat(root); err == nil {
		return root, nil
	}
	for _, category := range libraryCategories {
		p := filepath.Join(l.soundsDir, "library", category, clean)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("audio file %q not found", filename)
}

// ScanNewFiles lists sound files on disk that are not yet in the catalog.
func (l *Library) ScanNewFiles() ([]string, error) {
	found := make([]string, 0)

	scanDir := func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if audioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				found = append(found, e.Name())
			}
		}
		return nil
	}

	if err := scanDir(l.soundsDir); err != nil {
		return nil, fmt.Errorf("failed to scan sounds directory: %w", err)
	}
	for _, category := range libraryCategories {
		if err := scanDir(filepath.Join(l.soundsDir, "library", category)); err != nil {
			return nil, fmt.Errorf("failed to scan sounds directory: %w", err)
		}
	}

	l.mu.RLock()
	known := make(map[string]bool, len(l.data.Alerts))
	for _, a := range l.data.Alerts {
		known[a.Filename] = true
	}
	l.mu.RUnlock()

	fresh := found[:0]
	for _, f := range found {
		if !known[f] {
			fresh = append(fresh, f)
		}
	}
	return fresh, nil
}

// Stats summarizes the catalog for the API.
func (l *Library) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	categories := make(map[string]int)
	for _, a := range l.data.Alerts {
		c := a.Category
		if c == "" {
			c = "uncategorized"
		}
		categories[c]++
	}
	return Stats{
		TotalAlerts:    len(l.data.Alerts),
		Categories:     categories,
		LibraryVersion: l.data.LibraryVersion,
	}
}
