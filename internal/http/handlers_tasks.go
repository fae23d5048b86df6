package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/service/category"
	"github.com/splax/tasktracker/internal/service/task"
)

func (r *Router) handleListTasks(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	var status *domain.Status
	if raw := req.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseStatus(raw)
		if err != nil {
			r.serviceError(w, req, err)
			return
		}
		status = &parsed
	}
	views, err := r.tasks.List(req.Context(), caller, status)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponses(views))
}

func (r *Router) handleCreateTask(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	var payload taskRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, req, http.StatusBadRequest, "Malformed JSON request")
		return
	}
	view, err := r.tasks.Create(req.Context(), caller, payload.input())
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(view))
}

func (r *Router) handleGetTask(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	view, err := r.tasks.Get(req.Context(), caller, id)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(view))
}

func (r *Router) handleUpdateTask(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	var payload taskRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, req, http.StatusBadRequest, "Malformed JSON request")
		return
	}
	view, err := r.tasks.Update(req.Context(), caller, id, payload.input())
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(view))
}

func (r *Router) handleDeleteTask(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	if err := r.tasks.Delete(req.Context(), caller, id); err != nil {
		r.serviceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFilterTasks accepts status, categoryId and createdBefore query
// parameters and an optional AIP-160 filter expression. A field set both ways
// is rejected.
func (r *Router) handleFilterTasks(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	criteria, err := criteriaFromQuery(req)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	views, err := r.tasks.Filter(req.Context(), caller, criteria)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponses(views))
}

func (r *Router) handlePagedTasks(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	query := req.URL.Query()
	page, err := intParam(query.Get("page"), 0)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	size, err := intParam(query.Get("size"), task.DefaultPageSize)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	pageReq, err := task.NewPageRequest(page, size, query.Get("sort"))
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	result, err := r.tasks.Paginate(req.Context(), caller, pageReq)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(result, toTaskResponse))
}

func (r *Router) handleAdminTasks(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	views, err := r.tasks.ListAll(req.Context(), caller)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponses(views))
}

func (r *Router) handleListCategories(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	categories, err := r.categories.List(req.Context(), caller)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c, caller.Email))
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleCreateCategory(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	var payload categoryRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, req, http.StatusBadRequest, "Malformed JSON request")
		return
	}
	created, err := r.categories.Create(req.Context(), caller, category.Input{Name: payload.Name, Description: payload.Description})
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(*created, caller.Email))
}

func (r *Router) handleUpdateCategory(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	var payload categoryRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, req, http.StatusBadRequest, "Malformed JSON request")
		return
	}
	updated, err := r.categories.Update(req.Context(), caller, id, category.Input{Name: payload.Name, Description: payload.Description})
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(*updated, caller.Email))
}

func (r *Router) handleDeleteCategory(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	if err := r.categories.Delete(req.Context(), caller, id); err != nil {
		r.serviceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(req.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, req, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", domain.ErrMalformedRequest, raw)
	}
	return v, nil
}

func criteriaFromQuery(req *http.Request) (domain.TaskCriteria, error) {
	query := req.URL.Query()
	criteria, err := task.ParseFilter(query.Get("filter"))
	if err != nil {
		return domain.TaskCriteria{}, err
	}
	if raw := query.Get("status"); raw != "" {
		if criteria.Status != nil {
			return domain.TaskCriteria{}, fmt.Errorf("%w: status given twice", domain.ErrMalformedRequest)
		}
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return domain.TaskCriteria{}, err
		}
		criteria.Status = &status
	}
	if raw := query.Get("categoryId"); raw != "" {
		if criteria.CategoryID != nil {
			return domain.TaskCriteria{}, fmt.Errorf("%w: categoryId given twice", domain.ErrMalformedRequest)
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.TaskCriteria{}, fmt.Errorf("%w: categoryId %q is not an integer", domain.ErrMalformedRequest, raw)
		}
		criteria.CategoryID = &id
	}
	if raw := query.Get("createdBefore"); raw != "" {
		if criteria.CreatedBefore != nil {
			return domain.TaskCriteria{}, fmt.Errorf("%w: createdBefore given twice", domain.ErrMalformedRequest)
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			return domain.TaskCriteria{}, err
		}
		criteria.CreatedBefore = &ts
	}
	return criteria, nil
}

// parseTimestamp accepts RFC 3339 and zone-less ISO date-times, the latter read as UTC.
func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: createdBefore %q is not a timestamp", domain.ErrMalformedRequest, raw)
}
