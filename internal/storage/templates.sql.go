package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const templateColumns = `id, name, description, subject, content, html_content, language,
    default_template_id, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (Template, error) {
	var i Template
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Subject,
		&i.Content,
		&i.HtmlContent,
		&i.Language,
		&i.DefaultTemplateID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createTemplate = `INSERT INTO templates (
    name, description, subject, content, html_content, language, default_template_id
) VALUES (
    $1, $2, $3, $4, $5, $6, $7
)
RETURNING ` + templateColumns

type CreateTemplateParams struct {
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	Subject           string      `json:"subject"`
	Content           string      `json:"content"`
	HtmlContent       string      `json:"html_content"`
	Language          string      `json:"language"`
	DefaultTemplateID pgtype.Int8 `json:"default_template_id"`
}

func (q *Queries) CreateTemplate(ctx context.Context, arg CreateTemplateParams) (Template, error) {
	row := q.db.QueryRow(ctx, createTemplate,
		arg.Name,
		arg.Description,
		arg.Subject,
		arg.Content,
		arg.HtmlContent,
		arg.Language,
		arg.DefaultTemplateID,
	)
	return scanTemplate(row)
}

const getTemplateByNameAndLanguage = `SELECT ` + templateColumns + `
FROM templates
WHERE name = $1 AND language = $2`

type GetTemplateByNameAndLanguageParams struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

func (q *Queries) GetTemplateByNameAndLanguage(ctx context.Context, arg GetTemplateByNameAndLanguageParams) (Template, error) {
	row := q.db.QueryRow(ctx, getTemplateByNameAndLanguage, arg.Name, arg.Language)
	return scanTemplate(row)
}
