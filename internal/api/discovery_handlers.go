package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fuomag9/webstatus/internal/discovery"
	"github.com/fuomag9/webstatus/internal/models"
	"github.com/fuomag9/webstatus/internal/monitor"
	"github.com/fuomag9/webstatus/internal/store"
)

// SubnetScanRequest is the payload for a subnet sweep.
type SubnetScanRequest struct {
	Subnet    string `json:"subnet" validate:"required,cidr"`
	CheckHTTP bool   `json:"check_http"`
}

// HostScanRequest is the payload for probing one address.
type HostScanRequest struct {
	IP        string `json:"ip" validate:"required,ip"`
	CheckHTTP bool   `json:"check_http"`
}

// ImportDevicesRequest is the payload for creating targets from scan
// results.
type ImportDevicesRequest struct {
	Devices []discovery.Device `json:"devices" validate:"required,min=1,dive"`
}

// HandleDiscoverSubnet sweeps a subnet and returns the reachable devices.
func HandleDiscoverSubnet(scanner *discovery.Scanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubnetScanRequest
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}

		devices, err := scanner.ScanSubnet(r.Context(), req.Subnet, req.CheckHTTP)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"devices": devices,
			"count":   len(devices),
		})
	}
}

// HandleDiscoverHost probes one address.
func HandleDiscoverHost(scanner *discovery.Scanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HostScanRequest
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}

		device, err := scanner.ScanHost(r.Context(), req.IP, req.CheckHTTP)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if device == nil {
			respondError(w, http.StatusNotFound, "Host unreachable")
			return
		}
		respondJSON(w, http.StatusOK, device)
	}
}

// HandleImportDevices creates targets from discovered devices and starts
// monitoring them.
func HandleImportDevices(st *store.Store, mgr *monitor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportDevicesRequest
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}

		created := make([]models.Target, 0, len(req.Devices))
		for _, dev := range req.Devices {
			suggestion := discovery.Suggest(dev)
			target := &models.Target{
				Name:             suggestion.Name,
				Type:             suggestion.Type,
				Address:          suggestion.Address,
				DeviceType:       "other",
				CheckInterval:    suggestion.CheckInterval,
				FailureThreshold: suggestion.FailureThreshold,
				AudioBehavior:    models.AudioNormal,
				Status:           models.StatusUnknown,
				Enabled:          true,
			}
			if err := st.CreateTarget(r.Context(), target); err != nil {
				log.Error().Err(err).Str("address", target.Address).Msg("failed to import device")
				continue
			}
			mgr.StartTarget(target)
			created = append(created, *target)
		}

		log.Info().Int("imported", len(created)).Int("requested", len(req.Devices)).Msg("device import complete")
		respondJSON(w, http.StatusCreated, map[string]interface{}{
			"imported": len(created),
			"targets":  created,
		})
	}
}
