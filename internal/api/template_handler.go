package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sungwon/post-office/internal/logger"
	"github.com/sungwon/post-office/internal/mail"
	"github.com/sungwon/post-office/internal/templates"
)

// TemplateStore persists templates.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *mail.Template) error
}

// TemplateInvalidator drops cached templates.
type TemplateInvalidator interface {
	Invalidate(ctx context.Context, name, language string)
}

// templateRequest is the JSON body for creating a template.
type templateRequest struct {
	Name              string `json:"name"`
	Language          string `json:"language"`
	Description       string `json:"description"`
	Subject           string `json:"subject"`
	Content           string `json:"content"`
	HTMLContent       string `json:"html_content"`
	DefaultTemplateID *int64 `json:"default_template_id"`
}

// templateResponse is the JSON response for a template.
type templateResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Language          string `json:"language"`
	Description       string `json:"description"`
	Subject           string `json:"subject"`
	Content           string `json:"content"`
	HTMLContent       string `json:"html_content"`
	DefaultTemplateID *int64 `json:"default_template_id,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// CreateTemplateHandler handles POST /api/v1/templates.
// Template sources are parsed before they are stored.
func CreateTemplateHandler(store TemplateStore, cache TemplateInvalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req templateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var errs []string
		if req.Name == "" {
			errs = append(errs, "name is required")
		}
		if req.Language != "" && req.DefaultTemplateID == nil {
			errs = append(errs, "default_template_id is required for a localized template")
		}
		if len(errs) > 0 {
			respondValidationErrors(w, errs)
			return
		}

		t := &mail.Template{
			Name:              req.Name,
			Language:          req.Language,
			Description:       req.Description,
			Subject:           req.Subject,
			Content:           req.Content,
			HTMLContent:       req.HTMLContent,
			DefaultTemplateID: req.DefaultTemplateID,
		}
		if err := templates.Check(t); err != nil {
			respondValidationErrors(w, []string{err.Error()})
			return
		}

		if err := store.CreateTemplate(r.Context(), t); err != nil {
			switch {
			case errors.Is(err, mail.ErrTemplateExists):
				respondError(w, http.StatusConflict, err.Error())
			case errors.Is(err, mail.ErrTemplateNotFound):
				respondError(w, http.StatusBadRequest, err.Error())
			default:
				l := logger.FromContext(r.Context())
				l.Error().Err(err).Str("template", req.Name).Msg("create template failed")
				respondError(w, http.StatusInternalServerError, "failed to create template")
			}
			return
		}
		if cache != nil {
			cache.Invalidate(r.Context(), t.Name, t.Language)
		}

		respondJSON(w, http.StatusCreated, templateResponse{
			ID:                t.ID,
			Name:              t.Name,
			Language:          t.Language,
			Description:       t.Description,
			Subject:           t.Subject,
			Content:           t.Content,
			HTMLContent:       t.HTMLContent,
			DefaultTemplateID: t.DefaultTemplateID,
			CreatedAt:         formatTime(t.CreatedAt),
		})
	}
}
