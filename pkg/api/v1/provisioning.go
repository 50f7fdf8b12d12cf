package v1

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/iotagent"
)

// ProvisioningRoutes defines the pass-through routes for IoT Agent
// provisioning. Payloads are protocol-specific agent documents, so they are
// relayed verbatim instead of being decoded into gateway types.
type ProvisioningRoutes struct {
	agent *iotagent.Client
}

// ProvisioningRouter creates the authenticated provisioning router.
func ProvisioningRouter(agent *iotagent.Client) http.Handler {
	routes := ProvisioningRoutes{agent: agent}

	r := chi.NewRouter()
	r.Post("/services", routes.createServiceGroup)
	r.Get("/services", routes.listServiceGroups)
	r.Put("/services", routes.updateServiceGroup)
	r.Delete("/services", routes.deleteServiceGroup)
	r.Post("/devices", routes.createDevices)
	r.Get("/devices", routes.listDevices)
	r.Get("/devices/{deviceId}", routes.getDevice)
	r.Put("/devices/{deviceId}", routes.updateDevice)
	r.Delete("/devices/{deviceId}", routes.deleteDevice)

	return r
}

// rawBody reads the request body for relaying. It enforces the same size
// cap as decodeJSON but keeps the document opaque.
func rawBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		return nil, errors.NewInvalidInputError("failed to read request body", err)
	}
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, errors.NewInvalidInputError("request body is not valid JSON", nil)
	}
	return body, nil
}

// writeRaw relays an agent response document without re-encoding it.
func writeRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	if body == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *ProvisioningRoutes) createServiceGroup(w http.ResponseWriter, r *http.Request) {
	body, err := rawBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.agent.CreateServiceGroup(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusCreated, resp)
}

func (s *ProvisioningRoutes) listServiceGroups(w http.ResponseWriter, r *http.Request) {
	resp, err := s.agent.ListServiceGroups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, resp)
}

func (s *ProvisioningRoutes) updateServiceGroup(w http.ResponseWriter, r *http.Request) {
	body, err := rawBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.agent.UpdateServiceGroup(r.Context(), body, r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, resp)
}

func (s *ProvisioningRoutes) deleteServiceGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.DeleteServiceGroup(r.Context(), r.URL.Query()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ProvisioningRoutes) createDevices(w http.ResponseWriter, r *http.Request) {
	body, err := rawBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.agent.CreateDevices(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusCreated, resp)
}

func (s *ProvisioningRoutes) listDevices(w http.ResponseWriter, r *http.Request) {
	resp, err := s.agent.ListDevices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, resp)
}

func (s *ProvisioningRoutes) getDevice(w http.ResponseWriter, r *http.Request) {
	resp, err := s.agent.GetDevice(r.Context(), chi.URLParam(r, "deviceId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, resp)
}

func (s *ProvisioningRoutes) updateDevice(w http.ResponseWriter, r *http.Request) {
	body, err := rawBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.agent.UpdateDevice(r.Context(), chi.URLParam(r, "deviceId"), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, resp)
}

func (s *ProvisioningRoutes) deleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.DeleteDevice(r.Context(), chi.URLParam(r, "deviceId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
