package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/openclaw/qrgen/studio"
)

type artifactState struct {
	Kind      studio.ElementKind `json:"kind"`
	Src       string             `json:"src"`
	Animation string             `json:"animation,omitempty"`
}

// State is the page as the browser should draw it after an event.
type State struct {
	Artifact        *artifactState       `json:"artifact"`
	Notification    *studio.Notification `json:"notification"`
	Href            string               `json:"href,omitempty"`
	GenerateEnabled bool                 `json:"generate_enabled"`
	Focus           bool                 `json:"focus"`
	Size            int                  `json:"size"`
	Prevented       bool                 `json:"prevented,omitempty"`
}

// snapshotLocked must be called with s.mu held.
func (s *Session) snapshotLocked() State {
	st := State{
		Href:            s.link.Href,
		GenerateEnabled: s.button.Enabled,
		Focus:           s.text.TakeFocus(),
		Size:            s.ctrl.Size(),
	}
	if n := s.slot.Current(); n != nil {
		cp := *n
		st.Notification = &cp
	}

	children := s.container.Children()
	if len(children) == 0 {
		return st
	}
	switch el := children[0].(type) {
	case *studio.Image:
		st.Artifact = &artifactState{Kind: studio.KindImage, Src: el.Src, Animation: el.Animation()}
	case *studio.Surface:
		// Browsers get the surface as a data URL and paint it onto a canvas.
		if src, err := el.DataURL(); err == nil {
			st.Artifact = &artifactState{Kind: studio.KindSurface, Src: src, Animation: el.Animation()}
		}
	}
	return st
}

type textEvent struct {
	Text string `json:"text"`
}

type keyEvent struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type sizeEvent struct {
	Size int `json:"size"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess := s.Sessions.Acquire(w, r)
	writeJSON(w, http.StatusOK, sess.Do(nil))
}

func (s *Server) handleTextEdited(w http.ResponseWriter, r *http.Request) {
	var ev textEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := s.Sessions.Acquire(w, r)
	st := sess.Do(func(ctrl *studio.Controller) {
		sess.text.SetValue(ev.Text)
		ctrl.OnTextEdited(ev.Text)
	})
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleKeyPress(w http.ResponseWriter, r *http.Request) {
	var ev keyEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := s.Sessions.Acquire(w, r)
	var prevented bool
	st := sess.Do(func(ctrl *studio.Controller) {
		sess.text.SetValue(ev.Text)
		prevented = ctrl.OnKeyPress(ev.Key)
	})
	st.Prevented = prevented
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var ev textEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := s.Sessions.Acquire(w, r)
	st := sess.Do(func(ctrl *studio.Controller) {
		sess.text.SetValue(ev.Text)
		ctrl.OnGenerateClick()
	})
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSizeChange(w http.ResponseWriter, r *http.Request) {
	var ev sizeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := s.Sessions.Acquire(w, r)
	var err error
	st := sess.Do(func(ctrl *studio.Controller) {
		err = ctrl.OnSizeChange(ev.Size)
	})
	if errors.Is(err, studio.ErrUnsupportedSize) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Render failures are already reported through the notification.
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess := s.Sessions.Acquire(w, r)
	var ev studio.DownloadEvent
	st := sess.Do(func(ctrl *studio.Controller) {
		ev = ctrl.Download()
	})
	st.Prevented = ev.Prevented
	status := http.StatusOK
	if ev.Prevented {
		status = http.StatusConflict
	}
	writeJSON(w, status, st)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	sess := s.Sessions.Acquire(w, r)
	var ev studio.DownloadEvent
	sess.Run(func(ctrl *studio.Controller) {
		ev = ctrl.Download()
	})
	if ev.Prevented {
		writeError(w, http.StatusNotFound, studio.MsgNoArtifact)
		return
	}

	mime, data, err := studio.DecodeDataURL(ev.Target.Href)
	if err != nil {
		s.Log.Error("download target not decodable", "session", sess.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to prepare download")
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", `attachment; filename="qrcode.png"`)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
