package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/auth"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/devices"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
)

// credentialWarning reminds operators that the secret in this response is
// the only copy they will ever see.
const credentialWarning = "IMPORTANT: Save these credentials! The password cannot be retrieved again."

// rotationWarning accompanies a rotated secret.
const rotationWarning = "IMPORTANT: Update the device with this new password!"

// DevicesRoutes defines the routes for device credential management.
type DevicesRoutes struct {
	manager *devices.Manager
}

// DevicesRouter creates the device credential router. The token route is
// exempt from the user-auth middleware: a device proves itself with its
// own secret, not with a user session. Everything else requires a valid
// local token.
func DevicesRouter(manager *devices.Manager, userAuth func(http.Handler) http.Handler) http.Handler {
	routes := DevicesRoutes{manager: manager}

	r := chi.NewRouter()
	r.Post("/token", routes.mintTrustToken)
	r.Group(func(r chi.Router) {
		r.Use(userAuth)
		r.Post("/", routes.createDevice)
		r.Get("/", routes.listDevices)
		r.Get("/{deviceId}", routes.getDevice)
		r.Patch("/{deviceId}/rotate", routes.rotateDevice)
		r.Delete("/{deviceId}", routes.deleteDevice)
	})

	return r
}

type credentialResponse struct {
	DeviceID string `json:"deviceId"`
	Secret   string `json:"secret"`
	Message  string `json:"message"`
}

type deviceListResponse struct {
	Devices []string `json:"devices"`
}

func (s *DevicesRoutes) createDevice(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewUnauthenticatedError("no authenticated identity", nil))
		return
	}

	credential, err := s.manager.Create(r.Context(), identity.Subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, credentialResponse{
		DeviceID: credential.DeviceID,
		Secret:   credential.Secret,
		Message:  credentialWarning,
	})
}

func (s *DevicesRoutes) listDevices(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewUnauthenticatedError("no authenticated identity", nil))
		return
	}

	ids, err := s.manager.List(r.Context(), identity.Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, deviceListResponse{Devices: ids})
}

func (s *DevicesRoutes) getDevice(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewUnauthenticatedError("no authenticated identity", nil))
		return
	}

	metadata, err := s.manager.Get(r.Context(), chi.URLParam(r, "deviceId"), identity.Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metadata)
}

func (s *DevicesRoutes) rotateDevice(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewUnauthenticatedError("no authenticated identity", nil))
		return
	}

	credential, err := s.manager.Rotate(r.Context(), chi.URLParam(r, "deviceId"), identity.Subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, credentialResponse{
		DeviceID: credential.DeviceID,
		Secret:   credential.Secret,
		Message:  rotationWarning,
	})
}

func (s *DevicesRoutes) deleteDevice(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewUnauthenticatedError("no authenticated identity", nil))
		return
	}

	if err := s.manager.Delete(r.Context(), chi.URLParam(r, "deviceId"), identity.Subject); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type trustTokenRequest struct {
	DeviceID string `json:"deviceId"`
	Secret   string `json:"secret"`
}

func (s *DevicesRoutes) mintTrustToken(w http.ResponseWriter, r *http.Request) {
	var req trustTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := s.manager.MintTrustToken(r.Context(), req.DeviceID, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}
