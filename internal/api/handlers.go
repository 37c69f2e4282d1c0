package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bank-statement-processor/internal/models"
	"bank-statement-processor/pkg/errors"
)

// handleUpload accepts a multipart statement upload, stores the document
// and registers it as a pending statement. Processing is triggered
// separately via the process endpoint.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(r)
	if !ok {
		s.unauthorized(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.writeError(w, r, errors.ValidationError(errors.CodeOutOfRange, "file", "upload too large or malformed"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, badRequest("file", nil))
		return
	}
	defer file.Close()

	ext, allowed := models.FileTypeAllowed(header.Filename)
	if !allowed {
		s.writeError(w, r, errors.ValidationError(errors.CodeInvalidFileType, "file", header.Filename))
		return
	}

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		s.writeError(w, r, errors.InternalError("creating upload directory", err))
		return
	}

	// Stored under a fresh name; the original filename is recorded on the
	// statement, never trusted as a path.
	storedPath := filepath.Join(s.config.UploadDir, fmt.Sprintf("%s.%s", uuid.New(), ext))
	dst, err := os.Create(storedPath)
	if err != nil {
		s.writeError(w, r, errors.InternalError("storing upload", err))
		return
	}

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(storedPath)
		s.writeError(w, r, errors.InternalError("storing upload", err))
		return
	}
	dst.Close()

	stmt, err := s.processor.Submit(r.Context(), userID, storedPath)
	if err != nil {
		os.Remove(storedPath)
		s.writeError(w, r, err)
		return
	}

	// Keep the caller's filename for display
	stmt.OriginalFilename = header.Filename
	if err := s.repo.UpdateStatement(r.Context(), stmt); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, stmt)
}

// handleProcess runs the pipeline for one statement. The optional
// bank_code query parameter pins the bank profile; otherwise the bank is
// detected from the document text.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	stmt, ok := s.ownedStatement(w, r)
	if !ok {
		return
	}

	processed, err := s.processor.Process(r.Context(), stmt.ID, r.URL.Query().Get("bank_code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeResult(w, r, processed)
}

// handleReset returns a terminal statement to pending
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	stmt, ok := s.ownedStatement(w, r)
	if !ok {
		return
	}

	reset, err := s.processor.Reset(r.Context(), stmt.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, reset)
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	stmt, ok := s.ownedStatement(w, r)
	if !ok {
		return
	}
	s.writeResult(w, r, stmt)
}

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(r)
	if !ok {
		s.unauthorized(w, r)
		return
	}

	statements, err := s.repo.ListStatements(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"statements": statements,
		"count":      len(statements),
	})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	stmt, ok := s.ownedStatement(w, r)
	if !ok {
		return
	}

	txs, err := s.repo.ListTransactions(r.Context(), stmt.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	stmt, ok := s.ownedStatement(w, r)
	if !ok {
		return
	}

	logs, err := s.repo.ListLogs(r.Context(), stmt.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"processing_logs": logs,
		"count":           len(logs),
	})
}

// handleDeleteStatement removes a statement; transactions and log
// entries cascade with it, as does the stored document.
func (s *Server) handleDeleteStatement(w http.ResponseWriter, r *http.Request) {
	stmt, ok := s.ownedStatement(w, r)
	if !ok {
		return
	}

	if err := s.repo.DeleteStatement(r.Context(), stmt.ID); err != nil {
		s.writeError(w, r, err)
		return
	}

	if stmt.StoredPath != "" {
		if err := os.Remove(stmt.StoredPath); err != nil && !os.IsNotExist(err) {
			s.log.WithError(err).WithField("path", stmt.StoredPath).Warn("Could not remove stored document")
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// writeResult responds with the full result shape: statement, parsed
// transactions, processing log and the bounded raw text preview.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, stmt *models.Statement) {
	txs, err := s.repo.ListTransactions(r.Context(), stmt.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logs, err := s.repo.ListLogs(r.Context(), stmt.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.reports.Build(stmt, txs, logs))
}

// ownedStatement loads the statement addressed by the URL and verifies
// it belongs to the authenticated user. Statements of other users read
// as not found.
func (s *Server) ownedStatement(w http.ResponseWriter, r *http.Request) (*models.Statement, bool) {
	userID, ok := authenticatedUser(r)
	if !ok {
		s.unauthorized(w, r)
		return nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, errors.ValidationError(errors.CodeMissingField, "id", chi.URLParam(r, "id")))
		return nil, false
	}

	stmt, err := s.repo.GetStatement(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}

	if stmt.UserID != userID {
		s.writeError(w, r, errors.StorageError(errors.CodeNotFound, "statement", nil))
		return nil, false
	}

	return stmt, true
}
