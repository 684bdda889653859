// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NYTimes/gziphandler"

	"github.com/hashicorp/marlin/agent/structs"
)

// rwcDefaultsResponse is the introspection view of the cached defaults: the
// record itself plus both timestamps, per-node flag and identity.
type rwcDefaultsResponse struct {
	Defaults structs.RWConcernDefaultAndTime

	ImplicitDefaultWriteConcernMajority bool
	NodeName                            string
}

// rwcDefaultsUpdateRequest carries candidate defaults. At least one field
// must be set.
type rwcDefaultsUpdateRequest struct {
	ReadConcern  *structs.ReadConcern
	WriteConcern *structs.WriteConcern
}

func (a *Agent) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/agent/rwc-defaults", a.rwcDefaultsEndpoint)
	mux.HandleFunc("/v1/agent/rwc-defaults/refresh", a.rwcDefaultsRefreshEndpoint)
	return gziphandler.GzipHandler(mux)
}

func (a *Agent) rwcDefaultsEndpoint(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		a.rwcDefaultsGet(w, req)
	case http.MethodPut:
		a.rwcDefaultsUpdate(w, req)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *Agent) rwcDefaultsGet(w http.ResponseWriter, req *http.Request) {
	def, err := a.defaults.GetDefault(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rwcDefaultsResponse{
		Defaults:                            def,
		ImplicitDefaultWriteConcernMajority: a.defaults.ImplicitDefaultWriteConcernMajority(),
		NodeName:                            a.config.NodeName,
	})
}

func (a *Agent) rwcDefaultsUpdate(w http.ResponseWriter, req *http.Request) {
	var body rwcDefaultsUpdateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "failed decoding request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := a.UpdateRWConcernDefaults(req.Context(), body.ReadConcern, body.WriteConcern)
	if err != nil {
		// Validation and contract failures are the caller's fault; only a
		// persistence failure is ours.
		status := http.StatusBadRequest
		var pe persistError
		if errors.As(err, &pe) {
			status = http.StatusInternalServerError
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *Agent) rwcDefaultsRefreshEndpoint(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := a.defaults.RefreshIfNecessary(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.Encode(v)
}
