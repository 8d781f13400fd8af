package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nmalhotra/shopdesk/internal/export"
	"github.com/nmalhotra/shopdesk/internal/migrate"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// entityInfo describes one importable entity kind for the client.
type entityInfo struct {
	Kind            migrate.EntityKind `json:"kind"`
	Label           string             `json:"label"`
	RequiredColumns []string           `json:"required_columns"`
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	defs := migrate.All()
	infos := make([]entityInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, entityInfo{
			Kind:            def.Kind,
			Label:           def.Label,
			RequiredColumns: def.RequiredColumns,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": infos})
}

// handleStartMigration accepts a multipart CSV upload and starts the
// scan phase. Decode and header-validation errors surface here; batch
// progress streams separately.
func (s *Server) handleStartMigration(w http.ResponseWriter, r *http.Request) {
	kind := migrate.EntityKind(chi.URLParam(r, "kind"))

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFileSize)
	if err := r.ParseMultipartForm(s.opts.MaxFileSize); err != nil {
		s.respondError(w, r, fmt.Errorf("parse upload: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	runID, err := s.ctrl.Start(kind, header.Filename, string(data))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": runID,
		"phase":  migrate.PhaseScanning,
	})
}

func (s *Server) handleMigrationState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	dups, err := s.ctrl.Duplicates()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(dups),
		"duplicates": dups,
	})
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Back(); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

// importRequest carries the operator's duplicate decision.
type importRequest struct {
	SkipDuplicates bool `json:"skip_duplicates"`
}

func (s *Server) handleConfirmImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, r, fmt.Errorf("decode request: %w", err))
			return
		}
	}

	if err := s.ctrl.ConfirmImport(req.SkipDuplicates); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.ctrl.Snapshot())
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Retry(); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.ctrl.Snapshot())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Cancel(); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Acknowledge(); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

// handleProgress streams controller progress as server-sent events. The
// stream ends with a "complete" event when the background phase settles.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := s.ctrl.Subscribe()
	eventID := 0

	for {
		select {
		case progress, ok := <-ch:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			eventID++
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleExport streams the full record set for one entity kind as a CSV
// download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind := migrate.EntityKind(chi.URLParam(r, "kind"))
	ctx := r.Context()

	setCSVHeaders := func(name string) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}

	switch kind {
	case migrate.KindCustomer:
		customers, err := s.lister.ListCustomers(ctx)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		setCSVHeaders("customers_export.csv")
		if err := export.Customers(w, customers); err != nil {
			logExportError(r, err)
		}

	case migrate.KindInventory:
		products, err := s.lister.ListProducts(ctx)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		setCSVHeaders("inventory_export.csv")
		if err := export.Products(w, products); err != nil {
			logExportError(r, err)
		}

	case migrate.KindSupplier:
		suppliers, err := s.lister.ListSuppliers(ctx)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		setCSVHeaders("suppliers_export.csv")
		if err := export.Suppliers(w, suppliers); err != nil {
			logExportError(r, err)
		}

	default:
		s.respondError(w, r, fmt.Errorf("unknown entity kind: %s", kind))
	}
}
