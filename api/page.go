package api

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/openclaw/qrgen/studio"
)

//go:embed web/index.html
var webFS embed.FS

var pageTmpl = template.Must(template.ParseFS(webFS, "web/index.html"))

type sizeOption struct {
	Value    int
	Selected bool
}

type pageData struct {
	Version string
	Sizes   []sizeOption
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := s.Sessions.Acquire(w, r)

	var data pageData
	sess.Run(func(ctrl *studio.Controller) {
		for _, v := range ctrl.Sizes() {
			data.Sizes = append(data.Sizes, sizeOption{Value: v, Selected: v == ctrl.Size()})
		}
	})
	data.Version = s.Version

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := pageTmpl.Execute(w, data); err != nil {
		s.Log.Error("render page", "error", err)
	}
}
