package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bmlt-tools/naws-importer/internal/importer"
	"github.com/bmlt-tools/naws-importer/internal/sheet"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// readGrid resolves the request's spreadsheet: a multipart "file"
// upload, or an "s3_key" form value when S3 ingestion is configured.
func (s *Server) readGrid(r *http.Request) (*sheet.Grid, string, error) {
	if err := r.ParseMultipartForm(sheet.MaxFileSize); err != nil {
		return nil, "", fmt.Errorf("invalid multipart request: %w", err)
	}

	if key := r.FormValue("s3_key"); key != "" {
		if s.s3 == nil {
			return nil, "", errors.New("s3 ingestion is not configured")
		}
		grid, err := s.s3.FetchCSV(r.Context(), key)
		return grid, key, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("missing file upload")
	}
	defer file.Close()

	if err := sheet.CheckConstraints(header.Filename, header.Size); err != nil {
		return nil, "", err
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		return nil, "", errors.New("only CSV uploads are decoded; convert workbooks to CSV first")
	}

	grid, err := sheet.ReadCSV(file)
	return grid, header.Filename, err
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	grid, _, err := s.readGrid(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, importer.ValidateFile(grid))
}

func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	grid, fileName, err := s.readGrid(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := uuid.NewString()
	submittedBy := r.FormValue("submitted_by")

	initial := importer.JobStatus{
		JobID:     jobID,
		Phase:     importer.PhaseParsing,
		Message:   "Import queued",
		UpdatedAt: time.Now(),
	}
	if err := s.progress.Put(r.Context(), initial); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to register job")
		return
	}
	if s.audit != nil {
		if err := s.audit.Create(r.Context(), jobID, fileName, submittedBy); err != nil {
			log.Printf("[API] Failed to record audit row for job %s: %v", jobID, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancels.Store(jobID, cancel)
	go s.runImport(ctx, jobID, grid)

	respondJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

// runImport executes one job on its own goroutine, streaming progress
// into the store and finalizing the audit row when done.
func (s *Server) runImport(ctx context.Context, jobID string, grid *sheet.Grid) {
	defer s.cancels.Delete(jobID)

	// Store writes use a background context: a cancelled job must still
	// be able to persist its final status.
	storeCtx := context.Background()

	opts := importer.Options{
		BatchSize:         s.imports.BatchSize,
		BatchDelay:        s.imports.BatchDelay(),
		MaxStoredMeetings: s.imports.MaxStoredResults,
		MaxStoredErrors:   s.imports.MaxStoredErrors,
		DefaultLatitude:   s.imports.DefaultLatitude,
		DefaultLongitude:  s.imports.DefaultLongitude,
		Progress: func(ev importer.ProgressEvent) {
			status := importer.JobStatus{
				JobID:     jobID,
				Phase:     ev.Phase,
				Percent:   ev.Percent,
				Message:   ev.Message,
				UpdatedAt: time.Now(),
			}
			if err := s.progress.Put(storeCtx, status); err != nil {
				log.Printf("[API] Failed to store progress for job %s: %v", jobID, err)
			}
			if s.audit != nil {
				if err := s.audit.UpdatePhase(storeCtx, jobID, ev.Phase); err != nil {
					log.Printf("[API] Failed to update audit phase for job %s: %v", jobID, err)
				}
			}
		},
	}

	engine := importer.NewEngine(s.client, opts)
	outcome, err := engine.Run(ctx, grid)
	cancelled := errors.Is(err, importer.ErrImportCancelled)

	phase := importer.PhaseCompleted
	message := fmt.Sprintf("Import complete: %d created, %d failed, %d skipped",
		outcome.Succeeded, outcome.Failed, outcome.Skipped)
	switch {
	case cancelled:
		phase = importer.PhaseError
		message = fmt.Sprintf("Import cancelled after %d rows", outcome.Processed)
	case !outcome.Success:
		phase = importer.PhaseError
		message = "Import finished without creating any meetings"
	}

	final := importer.JobStatus{
		JobID:     jobID,
		Phase:     phase,
		Percent:   100,
		Message:   message,
		UpdatedAt: time.Now(),
		Done:      true,
		Cancelled: cancelled,
		Outcome:   outcome,
	}
	if err := s.progress.Put(storeCtx, final); err != nil {
		log.Printf("[API] Failed to store final status for job %s: %v", jobID, err)
	}
	if s.audit != nil {
		if err := s.audit.Complete(storeCtx, jobID, outcome, cancelled); err != nil {
			log.Printf("[API] Failed to finalize audit row for job %s: %v", jobID, err)
		}
	}

	log.Printf("[API] Job %s finished: %s", jobID, message)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	status, err := s.progress.Get(r.Context(), jobID)
	if errors.Is(err, importer.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "unknown job")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	status, err := s.progress.Get(r.Context(), jobID)
	if errors.Is(err, importer.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "unknown job")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !status.Done {
		respondJSON(w, http.StatusAccepted, map[string]interface{}{
			"done":    false,
			"phase":   status.Phase,
			"percent": status.Percent,
		})
		return
	}
	respondJSON(w, http.StatusOK, status.Outcome)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	v, ok := s.cancels.Load(jobID)
	if !ok {
		// Either unknown or already finished; the status endpoint
		// disambiguates.
		respondError(w, http.StatusConflict, "job is not running")
		return
	}
	v.(context.CancelFunc)()
	log.Printf("[API] Cancellation requested for job %s", jobID)
	respondJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID, "status": "cancelling"})
}

func (s *Server) handleRecentJobs(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		respondError(w, http.StatusNotFound, "job history is not configured")
		return
	}
	list, err := s.audit.Recent(r.Context(), 20)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, list)
}
