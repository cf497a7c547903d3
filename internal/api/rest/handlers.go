package rest

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	app "linac-qc/internal/application"
	"linac-qc/internal/domain/entity"
)

const defaultReportLimit = 20

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) referenceProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.c.LeafPositionService.Profile())
}

func (a *api) identify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Images) == 0 {
		writeError(w, r, http.StatusBadRequest, "images must not be empty", nil)
		return
	}
	if err := assignUploadOrder(req.Images); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid upload_order", err)
		return
	}

	report, err := a.c.LeafPositionService.Identify(r.Context(), req.Operator, req.Images)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}

func (a *api) analyzeLeafPosition(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(a.maxUploadSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart form", err)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, r, http.StatusBadRequest, "no files uploaded", nil)
		return
	}

	files := make([]app.UploadedFile, 0, len(headers))
	for _, h := range headers {
		data, err := readUpload(h)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "failed to read upload", err)
			return
		}
		files = append(files, app.UploadedFile{Name: h.Filename, Data: data})
	}

	report, err := a.c.LeafPositionService.AnalyzeBatch(r.Context(), r.FormValue("operator"), files)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}

func (a *api) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.c.LeafPositionService.Report(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}

func (a *api) listReports(w http.ResponseWriter, r *http.Request) {
	limit := defaultReportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	reports, err := a.c.LeafPositionService.Recent(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]reportResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, toReportResponse(rep))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) analyzeField(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := a.singleUpload(w, r)
	if !ok {
		return
	}

	report, err := a.c.FieldService.Analyze(r.Context(), filename, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) analyzeSlit(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := a.singleUpload(w, r)
	if !ok {
		return
	}

	report, err := a.c.SlitService.Analyze(r.Context(), filename, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// singleUpload читает ровно один файл из поля "file"; при ошибке ответ уже записан.
func (a *api) singleUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if err := r.ParseMultipartForm(a.maxUploadSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart form", err)
		return "", nil, false
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) != 1 {
		writeError(w, r, http.StatusBadRequest, "exactly one file expected", nil)
		return "", nil, false
	}
	data, err := readUpload(headers[0])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read upload", err)
		return "", nil, false
	}
	return headers[0].Filename, data, true
}

// assignUploadOrder нумерует снимки по порядку, если upload_order не задан ни у одного.
// Иначе номера обязаны быть у всех, без повторов и в диапазоне 1..len(images).
func assignUploadOrder(images []entity.ImageSummary) error {
	given := 0
	for _, img := range images {
		if img.UploadOrder != 0 {
			given++
		}
	}
	if given == 0 {
		for i := range images {
			images[i].UploadOrder = i + 1
		}
		return nil
	}
	if given != len(images) {
		return errors.Errorf("upload_order is set for %d of %d images", given, len(images))
	}

	seen := make(map[int]bool, len(images))
	for _, img := range images {
		if img.UploadOrder < 1 || img.UploadOrder > len(images) {
			return errors.Errorf("upload_order %d is out of range 1..%d", img.UploadOrder, len(images))
		}
		if seen[img.UploadOrder] {
			return errors.Errorf("duplicate upload_order %d", img.UploadOrder)
		}
		seen[img.UploadOrder] = true
	}
	return nil
}

func readUpload(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case entity.IsImageRejected(err):
		writeError(w, r, http.StatusUnprocessableEntity, "image could not be analysed", err)
	case errors.Is(err, entity.ErrReportNotFound):
		writeError(w, r, http.StatusNotFound, "report not found", nil)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil && status < http.StatusInternalServerError {
		resp.Detail = err.Error()
	}

	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", r.URL.Path).Error(msg)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
