package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/nadavnv/smart-home-core/internal/device"
)

// readBody reads the whole request body, reporting oversized bodies as a
// bad request.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeBadRequest(w, "request body too large")
		} else {
			writeBadRequest(w, "failed to read request body")
		}
		return nil, false
	}
	return body, true
}

// observe feeds a device read through the API into metrics. Failures are
// logged; they never fail the read.
func (s *Server) observe(ctx context.Context, d *device.Device) {
	if s.observer == nil {
		return
	}
	if err := s.observer.ObserveDevice(ctx, d); err != nil {
		s.logger.Warn("observing device for metrics", "device_id", d.ID, "error", err)
	}
}

// handleListIDs returns every device ID.
func (s *Server) handleListIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.registry.ListIDs(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// handleListDevices returns all devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	for i := range devices {
		s.observe(ctx, &devices[i])
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev, err := s.registry.GetDevice(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.observe(ctx, dev)
	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice validates and stores a new device. The registry
// notifies the bus and metrics observers.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	dev, err := device.DecodeDevice(body)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	created, err := s.registry.CreateDevice(r.Context(), dev)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateDevice applies a partial update. The stored device's type
// selects the parameter variant.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	existing, err := s.registry.GetDevice(ctx, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	update, err := device.DecodeUpdate(body, existing.Type)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if _, err := s.registry.UpdateDevice(ctx, id, update); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"success": "Device updated successfully"})
}

// handleDeleteDevice removes a device. Admin only; enforced by the router.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("device deleted via API", "device_id", id, "by", claimsFrom(r.Context()).Subject)
	writeJSON(w, http.StatusOK, map[string]string{"output": "Device was deleted from the database"})
}

// handleLivez reports that the process is up.
func (s *Server) handleLivez(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": s.version})
}

// handleReadyz runs every registered dependency check.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	var failing []string
	for name, check := range s.ready {
		if err := check(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "dependency", name, "error", err)
			failing = append(failing, name)
		}
	}

	if len(failing) > 0 {
		slices.Sort(failing)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failing": failing})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
