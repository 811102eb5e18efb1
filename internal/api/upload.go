package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/image-annotator/pkg/analyzer"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/extractor"
	"github.com/menta2k/image-annotator/pkg/probe"
)

// multipart overhead allowed on top of the image limit
const formOverhead = 1 << 20

// measureWait bounds how long an upload response waits for the image size
const measureWait = 5 * time.Second

// ImportRequest is the JSON body of the import endpoint
type ImportRequest struct {
	DataURL string `json:"data_url"`
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if limit := s.analyzer.Config().MaxUploadBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, info, err := s.analyzer.InspectReader(file)
	if err != nil {
		writeError(w, uploadStatus(err), err.Error())
		return
	}

	if !sess.store.BeginLoading() {
		writeError(w, http.StatusConflict, "an upload is already in progress")
		return
	}

	imageURL := probe.EncodeDataURL(info.MimeType, data)
	measurement := sess.store.SetImage(context.WithoutCancel(r.Context()), imageURL)

	doc, err := s.outline.Outline(r.Context(), client.Request{
		Image:    data,
		Filename: header.Filename,
		MimeType: info.MimeType,
		Width:    info.Width,
		Height:   info.Height,
	})
	if err != nil {
		log.Printf("api: upload failed for session %s: %v", sess.id, err)
		sess.store.SetLoading(false)
		writeError(w, http.StatusBadGateway, "outline service failed: "+err.Error())
		return
	}

	res := extractor.ExtractString(doc)
	if !sess.store.CompleteLoading(imageURL, res.Annotations) {
		log.Printf("api: session %s changed image during upload, dropping %d outlines", sess.id, len(res.Annotations))
	}

	waitCtx, cancel := context.WithTimeout(r.Context(), measureWait)
	defer cancel()
	if size, err := measurement.Wait(waitCtx); err != nil {
		log.Printf("api: %v", err)
	} else {
		sess.observer.SetContent(size)
	}

	writeJSON(w, http.StatusOK, sess.store.Snapshot())
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, analyzer.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, analyzer.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) importOutlines(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var (
		res extractor.Result
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		res, err = importFile(r)
	} else {
		var req ImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		res, err = extractor.ExtractDataURL(req.DataURL)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess.store.ClearAnnotations()
	sess.store.SetAnnotations(res.Annotations)
	writeJSON(w, http.StatusOK, sess.store.Snapshot())
}

// importFile reads an uploaded outline file, either the SVG document itself
// or its data URL.
func importFile(r *http.Request) (extractor.Result, error) {
	file, _, err := r.FormFile("file")
	if err != nil {
		return extractor.Result{}, err
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return extractor.Result{}, err
	}
	doc := strings.TrimSpace(string(raw))
	if strings.HasPrefix(doc, "data:") {
		return extractor.ExtractDataURL(doc)
	}
	return extractor.ExtractString(doc), nil
}
