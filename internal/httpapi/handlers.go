package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/bol"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/config"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/queue"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/syncer"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/pkg/icron"
)

// maxSubmissionBytes caps one multipart submission held in memory.
const maxSubmissionBytes = 64 << 20

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	metadata := bol.Metadata{
		Company:       r.FormValue("company"),
		DriverName:    r.FormValue("driver_name"),
		LoadNumber:    r.FormValue("load_number"),
		BOLNumber:     r.FormValue("bol_number"),
		PickupCity:    r.FormValue("pickup_city"),
		PickupState:   r.FormValue("pickup_state"),
		DeliveryCity:  r.FormValue("delivery_city"),
		DeliveryState: r.FormValue("delivery_state"),
		Description:   r.FormValue("description"),
		DocumentType:  r.FormValue("document_type"),
	}

	attachments, err := readAttachments(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.manager.Enqueue(r.Context(), metadata, attachments)
	if err != nil {
		var writeErr *queue.QueueWriteError
		if errors.As(err, &writeErr) {
			// The submission is NOT saved. The form must keep its state
			// and let the driver retry explicitly.
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":  writeErr.Error(),
				"queued": false,
			})
			return
		}
		var dup *bol.DuplicateAttachmentError
		if errors.As(err, &dup) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   dup.Error(),
				"warning": "duplicate_attachment",
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"queued":        true,
		"job_id":        job.ID,
		"load_id":       job.LoadID(),
		"pending_count": s.manager.PendingCount(),
		"message":       "saved, will upload in background",
	})
}

// readAttachments captures every uploaded file into memory. The optional
// last_modified form values line up with the files by position, as the form
// sends them.
func readAttachments(r *http.Request) ([]bol.Attachment, error) {
	if r.MultipartForm == nil {
		return nil, errors.New("multipart form is missing")
	}
	files := r.MultipartForm.File["files"]
	modified := r.MultipartForm.Value["last_modified"]

	attachments := make([]bol.Attachment, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, errors.New("could not read uploaded file " + fh.Filename)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, errors.New("could not read uploaded file " + fh.Filename)
		}

		att := bol.Attachment{
			Name:     fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Content:  content,
		}
		if i < len(modified) {
			if ms, err := strconv.ParseInt(modified[i], 10, 64); err == nil {
				att.LastModified = time.UnixMilli(ms)
			}
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}

type queueStatusResponse struct {
	PendingCount int            `json:"pending_count"`
	IsSyncing    bool           `json:"is_syncing"`
	LastSync     *syncer.Result `json:"last_sync,omitempty"`
	NextTimer    *time.Time     `json:"next_timer,omitempty"`
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.queueStatus())
}

func (s *Server) queueStatus() queueStatusResponse {
	status := queueStatusResponse{
		PendingCount: s.manager.PendingCount(),
		IsSyncing:    s.manager.IsSyncing(),
	}
	if res, ok := s.engine.LastRun(); ok {
		status.LastSync = &res
	}
	if s.settings != nil {
		if settings, err := s.settings.GetRuntimeSettings(); err == nil {
			if info, err := icron.GetTriggerInfo(settings.SyncCron, time.Now()); err == nil {
				status.NextTimer = &info.Next
			}
		}
	}
	return status
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	source := r.URL.Query().Get("source")
	if source != "wake" {
		source = "manual"
	}
	// The pass outlives the request that asked for it.
	go s.engine.Trigger(context.WithoutCancel(r.Context()), source)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":     true,
		"source": source,
	})
}

func (s *Server) handleCarriers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, bol.Carriers())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
