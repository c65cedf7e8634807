package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/matzehuels/peergraph/pkg/buildinfo"
	"github.com/matzehuels/peergraph/pkg/depgraph"
	pgerrors "github.com/matzehuels/peergraph/pkg/errors"
	"github.com/matzehuels/peergraph/pkg/io"
	"github.com/matzehuels/peergraph/pkg/pipeline"
)

// graphResponse is the body of a successful build.
type graphResponse struct {
	RequestID string `json:"requestId"`
	Cached    bool   `json:"cached"`
	io.Report
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	RequestID string        `json:"requestId"`
	Code      pgerrors.Code `json:"code"`
	Message   string        `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	res, ok := s.build(w, r)
	if !ok {
		return
	}
	diags := res.Diagnostics
	if diags == nil {
		diags = []depgraph.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, graphResponse{
		RequestID: RequestIDFrom(r.Context()),
		Cached:    res.Cached,
		Report:    io.Report{Graph: res.Graph, Diagnostics: diags},
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := pipeline.RenderOptions{
		Format:  q.Get("format"),
		Rankdir: q.Get("rankdir"),
	}
	if opts.Format == "" {
		opts.Format = pipeline.FormatSVG
	}
	if v := q.Get("versions"); v != "" {
		show, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, pgerrors.Wrap(pgerrors.ErrCodeInvalidInput, err, "versions"))
			return
		}
		opts.HideVersions = !show
	}
	if err := opts.Validate(); err != nil {
		s.writeError(w, r, pgerrors.Wrap(pgerrors.ErrCodeInvalidInput, err, "render options"))
		return
	}

	res, ok := s.build(w, r)
	if !ok {
		return
	}
	data, _, err := s.runner.Render(r.Context(), res, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	contentType := "image/svg+xml"
	if opts.Format == pipeline.FormatDOT {
		contentType = "text/vnd.graphviz; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, pgerrors.New(pgerrors.ErrCodeNotFound, "no route for %s %s", r.Method, r.URL.Path))
}

// build decodes the request body and runs the build. On failure it writes the
// error response and returns false.
func (s *Server) build(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	opts := pipeline.Options{AllowMissingPeers: s.allowMissing}
	if v := r.URL.Query().Get("allowMissingPeers"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, pgerrors.Wrap(pgerrors.ErrCodeInvalidInput, err, "allowMissingPeers"))
			return nil, false
		}
		opts.AllowMissingPeers = allow
	}

	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	in, err := io.ReadInput(body, requestFormat(r))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}

	res, err := s.runner.Build(r.Context(), in, opts)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return res, true
}

// requestFormat picks the input decoder from the Content-Type header.
func requestFormat(r *http.Request) io.Format {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return io.FormatYAML
	default:
		return io.FormatJSON
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := pgerrors.GetCode(err)
	if code == "" {
		code = pgerrors.ErrCodeInternal
	}
	msg := pgerrors.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err, "request_id", RequestIDFrom(r.Context()))
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{
		RequestID: RequestIDFrom(r.Context()),
		Code:      code,
		Message:   msg,
	})
}

// statusFor maps an error to its HTTP status. Malformed requests are 400,
// well-formed inputs that cannot be built are 422.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch pgerrors.GetCode(err) {
	case pgerrors.ErrCodeInvalidInput, pgerrors.ErrCodeInvalidFormat,
		pgerrors.ErrCodeInvalidPackage, pgerrors.ErrCodeInvalidPath, pgerrors.ErrCodeUnsupported:
		return http.StatusBadRequest
	case pgerrors.ErrCodeNotFound:
		return http.StatusNotFound
	case pgerrors.ErrCodeInvalidManifest, pgerrors.ErrCodeUnresolvableDependency,
		pgerrors.ErrCodeUnmetPeerDependency:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
