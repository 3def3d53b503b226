package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/pkg/logger"
)

// RidersHandler serves the rider registry.
type RidersHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRidersHandler creates a new riders handler.
func NewRidersHandler(deps Dependencies, l logger.Logger) *RidersHandler {
	return &RidersHandler{deps: deps, logger: l}
}

type importResponse struct {
	Imported int           `json:"imported"`
	Riders   []model.Rider `json:"riders"`
}

// HandleList handles GET /riders.
func (h *RidersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	riders, err := h.deps.ListRiders(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, riders)
}

// HandleCreate handles POST /riders. The id is derived from the name when
// omitted.
func (h *RidersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.Rider
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	rider, err := h.deps.CreateRider(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rider)
}

// HandleImport handles POST /riders/import. The body is either plain text
// with one "Name, Team, Nationality" line per rider or an xlsx workbook.
// Multipart uploads read the "file" part.
func (h *RidersHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	riders, err := h.deps.ImportRiders(r.Context(), data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{Imported: len(riders), Riders: riders})
}

// HandleDelete handles DELETE /riders/{riderID}.
func (h *RidersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteRider(r.Context(), chi.URLParam(r, "riderID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err == nil {
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.Join(ErrBadRequest, err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, errors.Join(ErrBadRequest, err)
		}
		return data, nil
	} else if !errors.Is(err, http.ErrNotMultipart) {
		return nil, errors.Join(ErrBadRequest, err)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Join(ErrBadRequest, err)
	}
	return data, nil
}
