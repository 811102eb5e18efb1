package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"github.com/menta2k/image-annotator/pkg/export"
	"github.com/menta2k/image-annotator/pkg/types"
	"github.com/menta2k/image-annotator/pkg/viewport"
)

// ViewportRequest describes the browser container an image is shown in
type ViewportRequest struct {
	ContainerWidth  float64 `json:"container_width"`
	ContainerHeight float64 `json:"container_height"`
	ViewportWidth   float64 `json:"viewport_width"` // omitted: not a narrow viewport
	FitToWidth      bool    `json:"fit_to_width"`
	// Resize marks a container change after the first fit
	Resize bool `json:"resize"`
}

// PointerRequest is a pointer position in stage coordinates
type PointerRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointerResponse reports what a pointer event did
type PointerResponse struct {
	Accepted          bool   `json:"accepted"`
	State             string `json:"state"`
	ManualAnnotations int    `json:"manual_annotations"`
}

func (s *Server) exportSVG(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st := sess.store.Snapshot()

	var buf bytes.Buffer
	if err := export.SVG(&buf, st.ImageSize, st.Annotations, st.ManualAnnotations); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="annotations.svg"`)
	w.Write(buf.Bytes())
}

func (s *Server) exportJSON(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st := sess.store.Snapshot()

	w.Header().Set("Content-Disposition", `attachment; filename="annotations.json"`)
	writeJSON(w, http.StatusOK, export.JSON(st.ImageSize, st.Annotations, st.ManualAnnotations))
}

func (s *Server) setViewport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req ViewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := sess.store.Snapshot()
	if st.ImageSize.Empty() {
		writeError(w, http.StatusConflict, "image size is not known yet")
		return
	}
	box := viewport.Box{Width: req.ContainerWidth, Height: req.ContainerHeight}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if req.Resize && sess.laidOut == st.ImageURL {
		writeJSON(w, http.StatusOK, sess.observer.Notify(box))
		return
	}

	sess.observer.SetContent(st.ImageSize)
	in := viewport.InitialInput{
		Content:       st.ImageSize,
		ViewportWidth: req.ViewportWidth,
		FitToWidth:    req.FitToWidth,
	}
	if box.Width > 0 && box.Height > 0 {
		sess.observer.Notify(box)
		in.Container = &box
	}
	layout := s.scaler.Initial(in)
	sess.drawing.SetTransform(layout.StageTransform())
	sess.laidOut = st.ImageURL

	writeJSON(w, http.StatusOK, layout)
}

func (s *Server) pointer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req PointerRequest
	action := r.PathValue("action")
	if action != "up" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	p := types.Point{X: req.X, Y: req.Y}

	var accepted bool
	switch action {
	case "down":
		accepted = sess.drawing.PointerDown(p)
	case "move":
		accepted = sess.drawing.PointerMove(p)
	case "up":
		accepted = sess.drawing.PointerUp()
	default:
		writeError(w, http.StatusNotFound, "unknown pointer action")
		return
	}

	writeJSON(w, http.StatusOK, PointerResponse{
		Accepted:          accepted,
		State:             sess.drawing.State().String(),
		ManualAnnotations: len(sess.store.Snapshot().ManualAnnotations),
	})
}

func (s *Server) overlay(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st := sess.store.Snapshot()
	if st.ImageURL == "" {
		writeError(w, http.StatusNotFound, "no image")
		return
	}

	img, err := s.processor.LoadImageSmart(st.ImageURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := s.processor.DrawOverlay(img, st.Annotations, st.ManualAnnotations, st.Options.ShowImageUnder)
	b := out.Bounds()
	surface := s.processor.RenderSurface(out, s.scaler.CanvasDimensions(types.Size{Width: b.Dx(), Height: b.Dy()}))

	var buf bytes.Buffer
	if err := s.processor.EncodePNG(&buf, surface); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("api: failed to write overlay: %v", err)
	}
}
