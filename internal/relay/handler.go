package relay

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stagebox/service/internal/middleware"
	"github.com/stagebox/service/internal/pending"
	"github.com/stagebox/service/internal/response"
	"github.com/stagebox/service/internal/sink"
)

// Handler holds HTTP handlers for the upload relay.
type Handler struct {
	svc       *Service
	maxMemory int64
	maxBytes  int64
}

// NewHandler creates a new relay Handler. maxMemory bounds the multipart
// bytes kept in memory (the rest spills to temp files); maxBytes bounds the
// whole request body.
func NewHandler(svc *Service, maxMemory, maxBytes int64) *Handler {
	return &Handler{svc: svc, maxMemory: maxMemory, maxBytes: maxBytes}
}

// uploadResponse is the body of POST /api/upload.
type uploadResponse struct {
	Success bool     `json:"success"           example:"true"`
	Message string   `json:"message"           example:"Successfully uploaded 2 file(s)"`
	FileIDs []string `json:"fileIds,omitempty" example:"8c0f6d1e-3b7a-4a53-9d0c-4f1a2b3c4d5e.png"`
}

// Upload godoc
//
//	@Summary		Upload files
//	@Description	Relay one or more files (repeated multipart field "file") into object storage. At most UPLOAD_MAX_FILES (default 15) files per request.
//	@Tags			uploads
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload (repeatable)"
//	@Success		200		{object}	uploadResponse
//	@Failure		400		{object}	uploadResponse
//	@Failure		401		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		500		{object}	uploadResponse
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			response.TooLarge(w, fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit))
			return
		}
		response.JSON(w, http.StatusBadRequest, uploadResponse{Message: "No files uploaded"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[sink.FieldName]
	if len(headers) == 0 {
		response.JSON(w, http.StatusBadRequest, uploadResponse{Message: "No files uploaded"})
		return
	}
	if len(headers) > h.svc.MaxFiles() {
		response.JSON(w, http.StatusBadRequest, uploadResponse{
			Message: fmt.Sprintf("Too many files: at most %d per request", h.svc.MaxFiles()),
		})
		return
	}

	items := make([]pending.Item, 0, len(headers))
	for _, fh := range headers {
		it, err := readPart(fh)
		if err != nil {
			response.JSON(w, http.StatusBadRequest, uploadResponse{Message: fmt.Sprintf("Error: %v", err)})
			return
		}
		items = append(items, it)
	}

	res, err := h.svc.Relay(r.Context(), middleware.Client(r.Context()), items)
	if err != nil {
		body := uploadResponse{Message: fmt.Sprintf("Error: %v", err)}
		if res != nil {
			body.FileIDs = res.FileIDs
		}
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNoFiles) || errors.Is(err, ErrTooManyFiles) {
			status = http.StatusBadRequest
		}
		response.JSON(w, status, body)
		return
	}

	response.JSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully uploaded %d file(s)", len(res.FileIDs)),
		FileIDs: res.FileIDs,
	})
}

// Get godoc
//
//	@Summary		Get upload
//	@Description	Returns the ledger record of a relayed file, including its public URL. 404 when the ledger is disabled.
//	@Tags			uploads
//	@Produce		json
//	@Param			id	path		string	true	"File ID"
//	@Success		200	{object}	response.Envelope{data=Record}
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/upload/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "upload not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, rec)
}

// Delete godoc
//
//	@Summary		Delete upload
//	@Description	Removes a relayed file from object storage and from the ledger.
//	@Tags			uploads
//	@Produce		json
//	@Param			id	path		string	true	"File ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/upload/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "upload not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.Message(w, "upload deleted")
}

func readPart(fh *multipart.FileHeader) (pending.Item, error) {
	f, err := fh.Open()
	if err != nil {
		return pending.Item{}, fmt.Errorf("open %q: %w", fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return pending.Item{}, fmt.Errorf("read %q: %w", fh.Filename, err)
	}
	return pending.Item{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Content:  content,
	}, nil
}
