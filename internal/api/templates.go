package api

import (
	"embed"
	"html/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lox/airquality/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	printer := message.NewPrinter(language.English)
	funcs := template.FuncMap{
		"num": func(n int) string {
			return printer.Sprintf("%d", n)
		},
		"coef": func(f *float64) string {
			if f == nil {
				return "n/a"
			}
			return printer.Sprintf("%.2f", *f)
		},
		"selected": func(p models.Pollutant, list []models.Pollutant) bool {
			for _, q := range list {
				if q == p {
					return true
				}
			}
			return false
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
