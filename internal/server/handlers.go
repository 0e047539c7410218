package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmylchreest/huematch/internal/catalog"
	"github.com/jmylchreest/huematch/internal/colour"
	imgpkg "github.com/jmylchreest/huematch/internal/image"
	"github.com/jmylchreest/huematch/internal/matcher"
	"github.com/jmylchreest/huematch/internal/recommend"
)

const (
	maxPerPage    = 100
	maxTopN       = 100
	maxFieldBytes = 256
	imageField    = "image"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// catalogPage is the JSON shape of GET /api/catalog.
type catalogPage struct {
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
	Total   int           `json:"total"`
	Pages   int           `json:"pages"`
	InStock int           `json:"in_stock"`
	Colours []catalogItem `json:"colours"`
}

type catalogItem struct {
	Name    string `json:"name"`
	Hex     string `json:"hex"`
	URL     string `json:"url"`
	Stock   int    `json:"stock"`
	InStock bool   `json:"in_stock"`
}

type indexData struct {
	CatalogSize int
	MaxUpload   string
	Algorithms  []colour.Algorithm
	Metrics     []colour.Metric
	Defaults    recommend.Options
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.healthy.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "shutting down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"catalog_size": s.store.Snapshot().Len(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := indexData{
		CatalogSize: s.store.Snapshot().Len(),
		MaxUpload:   formatBytes(s.opts.MaxUploadBytes),
		Algorithms:  colour.ValidAlgorithms(),
		Metrics:     colour.ValidMetrics(),
		Defaults:    s.service.Options(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render index", "error", err)
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), 1, 1, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page: "+err.Error())
		return
	}
	perPage, err := intParam(q.Get("per_page"), catalog.DefaultPerPage, 1, maxPerPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "per_page: "+err.Error())
		return
	}

	cat := s.store.Snapshot()
	entries, pages := cat.Page(page, perPage)
	items := make([]catalogItem, len(entries))
	for i, e := range entries {
		items[i] = catalogItem{Name: e.Name, Hex: e.Hex, URL: e.URL, Stock: e.Stock, InStock: e.InStock()}
	}
	writeJSON(w, http.StatusOK, catalogPage{
		Page:    page,
		PerPage: perPage,
		Total:   cat.Len(),
		Pages:   pages,
		InStock: cat.InStock(),
		Colours: items,
	})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)

	data, req, err := s.readUpload(r)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	rec, err := s.service.Recommend(s.store.Snapshot(), data, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec.JSON())
	case errors.Is(err, imgpkg.ErrTooManyPixels):
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("image dimensions too large (limit %d megapixels)", imgpkg.MaxPixels/1_000_000))
	case recommend.IsInvalidImage(err):
		s.logger.Debug("rejected upload", "error", err)
		writeError(w, http.StatusUnprocessableEntity, recommend.InvalidImageMessage)
	case errors.Is(err, matcher.ErrEmptyCatalog):
		writeError(w, http.StatusServiceUnavailable, "catalog is empty")
	default:
		s.logger.Error("failed to compute recommendation", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute recommendation")
	}
}

// badRequest marks an error caused by the client's parameters.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string {
	return e.msg
}

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// readUpload streams the multipart body, keeping only the image bytes and the
// small option fields in memory.
func (s *Server) readUpload(r *http.Request) ([]byte, recommend.Request, error) {
	var req recommend.Request

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, req, badRequestf("expected a multipart/form-data upload")
	}

	var data []byte
	fields := map[string]string{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, req, fmt.Errorf("failed to read upload: %w", err)
		}

		name := part.FormName()
		switch {
		case name == imageField:
			if data != nil {
				_ = part.Close()
				return nil, req, badRequestf("only one image may be uploaded")
			}
			data, err = imgpkg.ReadAll(part, s.opts.MaxUploadBytes)
			if err != nil {
				_ = part.Close()
				return nil, req, err
			}
			if data == nil {
				data = []byte{}
			}
		case name != "":
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err != nil {
				_ = part.Close()
				return nil, req, fmt.Errorf("failed to read field %s: %w", name, err)
			}
			if len(value) > maxFieldBytes {
				_ = part.Close()
				return nil, req, badRequestf("field %s is too long", name)
			}
			fields[name] = strings.TrimSpace(string(value))
		}
		_ = part.Close()
	}

	if data == nil {
		return nil, req, badRequestf("missing %q file field", imageField)
	}

	req, err = parseRequest(fields)
	if err != nil {
		return nil, req, err
	}
	return data, req, nil
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	var br *badRequest
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &br):
		writeError(w, http.StatusBadRequest, br.msg)
	case errors.Is(err, imgpkg.ErrTooLarge), errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload too large (limit %s)", formatBytes(s.opts.MaxUploadBytes)))
	default:
		s.logger.Warn("failed to read upload", "error", err)
		writeError(w, http.StatusBadRequest, "malformed upload")
	}
}

// parseRequest converts the optional form fields into a request. Empty
// fields keep the service defaults.
func parseRequest(fields map[string]string) (recommend.Request, error) {
	var req recommend.Request
	var err error

	if req.TopN, err = intParam(fields["top"], 0, 1, maxTopN); err != nil {
		return req, badRequestf("top: %v", err)
	}
	if req.ColorCount, err = intParam(fields["colours"], 0, 1, 0); err != nil {
		return req, badRequestf("colours: %v", err)
	}
	if req.Quality, err = intParam(fields["quality"], 0, 1, 0); err != nil {
		return req, badRequestf("quality: %v", err)
	}

	if v := fields["algorithm"]; v != "" {
		req.Algorithm = colour.Algorithm(strings.ToLower(v))
		if !colour.IsValidAlgorithm(req.Algorithm) {
			return req, badRequestf("algorithm: unknown %q (valid: %v)", v, colour.ValidAlgorithms())
		}
	}
	if v := fields["metric"]; v != "" {
		req.Metric = colour.Metric(strings.ToLower(v))
		if _, err := colour.DistanceFor(req.Metric); err != nil {
			return req, badRequestf("metric: %v", err)
		}
	}

	// The extractor owns the palette size ceiling.
	if req.ColorCount > 0 {
		cfg := colour.DefaultExtractorConfig()
		cfg.ColorCount = req.ColorCount
		if err := cfg.Validate(); err != nil {
			return req, badRequestf("colours: %v", err)
		}
	}
	return req, nil
}

// intParam parses an optional integer. Empty returns def. A max of 0 means
// unbounded.
func intParam(raw string, def, minimum, maximum int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if v < minimum {
		return 0, fmt.Errorf("must be at least %d, got %d", minimum, v)
	}
	if maximum > 0 && v > maximum {
		return 0, fmt.Errorf("must be at most %d, got %d", maximum, v)
	}
	return v, nil
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MiB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KiB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
