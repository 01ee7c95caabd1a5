package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mind-engage/detprep/internal/auth"
	"github.com/mind-engage/detprep/internal/round"
	"github.com/mind-engage/detprep/internal/storage"
)

const maxRecordingBytes = 20 << 20

var recordingExts = map[string]bool{".webm": true, ".ogg": true, ".mp3": true, ".wav": true, ".m4a": true}

// UploadRecordingHandler handles POST /api/recordings/{roundID}: a multipart
// "file" holding a speaking answer. The returned key is what the client
// submits as the answer.
func UploadRecordingHandler(bs storage.BlobStore, rounds *round.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := auth.SessionFromContext(r.Context())
		roundID := chi.URLParam(r, "roundID")
		rd, err := rounds.Get(sid, roundID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error(), "")
			return
		}
		if !rd.Module.Recording {
			writeError(w, http.StatusBadRequest, "module does not take recordings", rd.Module.ID)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRecordingBytes)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file required", err.Error())
			return
		}
		defer f.Close()

		ext := strings.ToLower(path.Ext(hdr.Filename))
		if !recordingExts[ext] {
			ext = ".webm"
		}
		key := "recordings/" + sid + "/" + roundID + "/" + uuid.NewString() + ext
		if _, err := bs.Put(key, f); err != nil {
			writeError(w, http.StatusInternalServerError, "store error", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"key": key, "url": "/assets/" + key})
	}
}

// MountAssets serves GET /assets/*: audio prompts, photos and recordings.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found", key)
				return
			}
			writeError(w, http.StatusBadRequest, "bad key", err.Error())
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	})
}
