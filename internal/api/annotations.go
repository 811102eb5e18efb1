package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/menta2k/image-annotator/pkg/store"
)

// SelectedRequest is the body of the selection endpoints
type SelectedRequest struct {
	Selected bool `json:"selected"`
}

// LabelRequest is the body of the label endpoint
type LabelRequest struct {
	Label string `json:"label"`
}

func (s *Server) clearImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.store.Clear()
	writeJSON(w, http.StatusOK, sess.store.Snapshot())
}

func (s *Server) clearAnnotations(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.store.ClearAnnotations()
	writeJSON(w, http.StatusOK, sess.store.Snapshot())
}

func (s *Server) setSelected(w http.ResponseWriter, r *http.Request) {
	s.updateSelection(w, r, func(st *store.Store, index int, selected bool) error {
		return st.SetSelected(index, selected)
	})
}

func (s *Server) setManualSelected(w http.ResponseWriter, r *http.Request) {
	s.updateSelection(w, r, func(st *store.Store, index int, selected bool) error {
		return st.SetManualSelected(index, selected)
	})
}

func (s *Server) updateSelection(w http.ResponseWriter, r *http.Request, apply func(*store.Store, int, bool) error) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}

	var req SelectedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := apply(sess.store, index, req.Selected); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.store.Snapshot())
}

func (s *Server) editLabel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}

	var req LabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}

	if err := sess.store.EditLabel(index, req.Label); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.store.Snapshot())
}

func (s *Server) toggleOption(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	switch r.PathValue("name") {
	case "show-image-under":
		sess.store.ToggleShowImageUnder()
	case "edit-mode":
		sess.store.ToggleEditMode()
	case "drawing":
		sess.store.ToggleIsDrawing()
	default:
		writeError(w, http.StatusNotFound, "unknown option")
		return
	}
	writeJSON(w, http.StatusOK, sess.store.Snapshot())
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return 0, false
	}
	return index, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrIndexOutOfRange) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
