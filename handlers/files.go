package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"charsmith/knowledge"

	"go.uber.org/zap"
)

// ProcessFilesHandler turns uploaded text files into knowledge entries.
// Unsupported or unreadable files are skipped.
func (h *Handler) ProcessFilesHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
		files = r.MultipartForm.File["files"]
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	entries := []string{}
	for _, fh := range files {
		log := h.Logger.With(zap.String("file", fh.Filename))
		data, err := readUpload(fh)
		if err != nil {
			log.Error("Reading upload failed", zap.Error(err))
			continue
		}
		sentences, err := knowledge.FromFile(fh.Filename, data)
		if errors.Is(err, knowledge.ErrUnsupported) {
			log.Warn("Skipping unsupported file", zap.String("content_type", fh.Header.Get("Content-Type")))
			continue
		}
		if err != nil {
			log.Error("Processing file failed", zap.Error(err))
			continue
		}
		entries = append(entries, sentences...)
	}

	writeJSON(w, http.StatusOK, map[string][]string{"knowledge": entries})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
