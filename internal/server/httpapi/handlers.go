package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
	"github.com/dmitrijs2005/lakeadmin/internal/server/services"
	"github.com/go-chi/chi"
)

type tenantResponse struct {
	User     *models.Tenant    `json:"user"`
	Warnings services.Warnings `json:"warnings,omitempty"`
}

type warningsResponse struct {
	UID      string            `json:"uid"`
	Warnings services.Warnings `json:"warnings,omitempty"`
}

type documentResponse struct {
	Document models.Document   `json:"document"`
	Warnings services.Warnings `json:"warnings,omitempty"`
}

type idsResponse struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	uids, err := s.coord.ListTenants(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string][]string{"users": uids})
}

// handleCreateUser serves PUT /v1/users. A partly failed creation is still
// 201; the failed steps are listed under warnings.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var spec models.TenantSpec
	if err := decodeJSON(w, r, &spec); err != nil {
		s.respondError(w, r, err)
		return
	}
	tenant, warns, err := s.coord.CreateTenant(r.Context(), spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, tenantResponse{User: tenant, Warnings: warns})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.coord.GetTenant(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, tenantResponse{User: tenant})
}

func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	warns, err := s.coord.RemoveTenant(r.Context(), uid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, warningsResponse{UID: uid, Warnings: warns})
}

func (s *Server) handleSyncCredentials(w http.ResponseWriter, r *http.Request) {
	tenant, warns, err := s.coord.SyncCredentials(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, tenantResponse{User: tenant, Warnings: warns})
}

func (s *Server) handleActivateUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	warns, err := s.coord.ActivateTenantService(r.Context(), uid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, warningsResponse{UID: uid, Warnings: warns})
}

func (s *Server) handleActivateAll(w http.ResponseWriter, r *http.Request) {
	report, err := s.coord.ActivateAllTenantServices(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, report)
}

func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	cred, err := s.coord.GetCredential(r.Context(), chi.URLParam(r, "access_key"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, cred)
}

func (s *Server) handleListDAs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.coord.ListDAs(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, idsResponse{IDs: ids})
}

func (s *Server) handleGetDA(w http.ResponseWriter, r *http.Request) {
	doc, err := s.coord.GetDA(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, documentResponse{Document: doc})
}

func (s *Server) handlePutDA(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	stored, err := s.coord.CreateDA(r.Context(), doc)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, documentResponse{Document: stored})
}

func (s *Server) handleListArchiveJobs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.coord.ListArchiveJobs(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, idsResponse{IDs: ids})
}

func (s *Server) handleGetArchiveJob(w http.ResponseWriter, r *http.Request) {
	doc, err := s.coord.GetArchiveJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, documentResponse{Document: doc})
}

func (s *Server) handlePutArchiveJob(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	stored, warns, err := s.coord.CreateArchiveJob(r.Context(), doc)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, documentResponse{Document: stored, Warnings: warns})
}

// decodeDocument reads a document body. On the /{id} form the path id fills
// a missing body id and must match a present one.
func decodeDocument(w http.ResponseWriter, r *http.Request) (models.Document, error) {
	var doc models.Document
	if err := decodeJSON(w, r, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", common.ErrorValidation)
	}
	if id := chi.URLParam(r, "id"); id != "" {
		switch body := doc.ID(); {
		case body == "":
			doc["id"] = id
		case body != id:
			return nil, fmt.Errorf("%w: body id %q does not match path id %q", common.ErrorValidation, body, id)
		}
	}
	return doc, nil
}
