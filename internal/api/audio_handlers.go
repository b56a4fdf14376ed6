package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fuomag9/webstatus/internal/audio"
)

// maxAudioUploadSize caps uploaded sound files at 10 MB.
const maxAudioUploadSize = 10 << 20

// HandleGetAudioLibrary returns the sound catalog.
func HandleGetAudioLibrary(lib *audio.Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"alerts":             lib.Alerts(),
			"categories":         lib.Categories(),
			"default_down_alert": lib.DefaultDownAlert(),
			"default_up_alert":   lib.DefaultUpAlert(),
			"stats":              lib.Stats(),
		})
	}
}

// HandleGetAudioByCategory returns the sounds in one category.
func HandleGetAudioByCategory(lib *audio.Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, lib.AlertsByCategory(chi.URLParam(r, "category")))
	}
}

// HandleScanAudioFiles lists sound files on disk not yet catalogued.
func HandleScanAudioFiles(lib *audio.Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := lib.ScanNewFiles()
		if err != nil {
			log.Error().Err(err).Msg("audio scan failed")
			respondError(w, http.StatusInternalServerError, "Failed to scan audio files")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"new_files": files})
	}
}

// HandleAddAudioAlert catalogs a sound.
func HandleAddAudioAlert(lib *audio.Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var alert audio.Alert
		if err := decodeAndValidate(r, &alert); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
		if err := lib.AddAlert(alert); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, alert)
	}
}

// HandleDeleteAudioAlert removes a sound from the catalog.
func HandleDeleteAudioAlert(lib *audio.Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := lib.RemoveAlert(chi.URLParam(r, "id")); err != nil {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleServeAudio streams one sound file.
func HandleServeAudio(lib *audio.Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := lib.ResolvePath(chi.URLParam(r, "filename"))
		if err != nil {
			respondError(w, http.StatusNotFound, "Audio file not found")
			return
		}
		http.ServeFile(w, r, path)
	}
}

// HandleUploadAudio accepts a multipart sound file upload into the sounds
// directory and reloads the catalog.
func HandleUploadAudio(lib *audio.Library, soundsDir string) http.HandlerFunc {
	allowed := map[string]bool{".aiff": true, ".wav": true, ".mp3": true, ".m4a": true, ".ogg": true}

	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAudioUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Missing file upload")
			return
		}
		defer file.Close()

		name := filepath.Base(header.Filename)
		ext := strings.ToLower(filepath.Ext(name))
		if !allowed[ext] || name != header.Filename || strings.HasPrefix(name, ".") {
			respondError(w, http.StatusBadRequest, "Unsupported audio file")
			return
		}

		dst, err := os.Create(filepath.Join(soundsDir, name))
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("failed to create audio file")
			respondError(w, http.StatusInternalServerError, "Failed to store audio file")
			return
		}
		defer dst.Close()

		if _, err := io.Copy(dst, file); err != nil {
			log.Error().Err(err).Str("file", name).Msg("failed to write audio file")
			respondError(w, http.StatusInternalServerError, "Failed to store audio file")
			return
		}

		lib.Reload()
		log.Info().Str("file", name).Msg("audio file uploaded")
		respondJSON(w, http.StatusCreated, map[string]string{"filename": name})
	}
}
