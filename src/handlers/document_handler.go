package handlers

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/username/fundsight/backend/src/config"
	"github.com/username/fundsight/backend/src/security/validation"
	"github.com/username/fundsight/backend/src/services"
	"github.com/username/fundsight/backend/src/utils"
)

type DocumentHandler struct {
	cfg       *config.AppConfig
	db        *sql.DB
	ingestion *services.IngestionService
	log       *slog.Logger
}

func NewDocumentHandler(cfg *config.AppConfig, db *sql.DB, ingestion *services.IngestionService, log *slog.Logger) *DocumentHandler {
	return &DocumentHandler{cfg: cfg, db: db, ingestion: ingestion, log: log}
}

// HandleProcessDocument accepts a multipart PDF upload plus an optional
// fund_id, stores the file, registers the document and runs the ingestion
// pipeline. The response is always the pipeline's structured result.
func (h *DocumentHandler) HandleProcessDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSizeBytes); err != nil {
		h.log.Warn("Failed to parse multipart form or request too large", "error", err, "limit", h.cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", h.cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		h.log.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > h.cfg.MaxUploadSizeBytes {
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", h.cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		h.log.Warn("Invalid client-declared file type", "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := validation.ValidateFileContentByMagicBytes(file); err != nil {
		h.log.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var fundID int64
	if v := r.FormValue("fund_id"); v != "" {
		fundID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			utils.SendJSONError(w, "fund_id must be an integer", http.StatusBadRequest)
			return
		}
	}

	storedPath, err := h.storeUpload(file)
	if err != nil {
		h.log.Error("Failed to store uploaded file", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, "An internal error occurred while storing the file.", http.StatusInternalServerError)
		return
	}

	documentID, err := h.registerDocument(fundID, fileHeader.Filename)
	if err != nil {
		h.log.Error("Failed to register document", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, "An internal error occurred while registering the document.", http.StatusInternalServerError)
		return
	}

	h.log.Info("Processing document", "documentID", documentID, "fundID", fundID, "filename", fileHeader.Filename)
	result := h.ingestion.ProcessDocument(r.Context(), storedPath, documentID, fundID)
	if result.Status == services.StatusFailed {
		if _, err := h.db.Exec(`UPDATE documents SET status = 'failed' WHERE id = ?`, documentID); err != nil {
			h.log.Error("Failed to mark document as failed", "documentID", documentID, "error", err)
		}
		utils.SendJSON(w, result, http.StatusUnprocessableEntity)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

// storeUpload copies the upload into the configured directory under a
// uuid-based name so parallel uploads of identically named files cannot
// collide.
func (h *DocumentHandler) storeUpload(file io.Reader) (string, error) {
	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}
	storedPath := filepath.Join(h.cfg.UploadDir, uuid.NewString()+".pdf")
	dst, err := os.Create(storedPath)
	if err != nil {
		return "", fmt.Errorf("creating stored file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("writing stored file: %w", err)
	}
	return storedPath, nil
}

func (h *DocumentHandler) registerDocument(fundID int64, fileName string) (int64, error) {
	var fund interface{}
	if fundID != 0 {
		fund = fundID
	}
	res, err := h.db.Exec(`INSERT INTO documents (fund_id, file_name, status, created_at) VALUES (?, ?, 'pending', ?)`, fund, fileName, time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
