package display

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"election_board/pkg/config"
)

//go:embed templates/*.html
var templateFS embed.FS

type candidateCard struct {
	Candidate CandidateView
	Badge     string
}

var templates = template.Must(template.New("display").Funcs(template.FuncMap{
	"card": func(c CandidateView, badge string) candidateCard {
		return candidateCard{Candidate: c, Badge: badge}
	},
	"cssColor": cssColor,
}).ParseFS(templateFS, "templates/*.html"))

// cssColor marks a configured colour as safe for a style attribute. The
// escaper would otherwise reject rgb() and hsl() values.
func cssColor(c string) template.CSS {
	if config.ValidateColor(c) != nil {
		return template.CSS("transparent")
	}
	return template.CSS(c)
}

// Page is the standalone document served to browsers
type Page struct {
	View     View
	LivePath string
}

// Render writes the board fragment for v
func Render(w io.Writer, v View) error {
	if err := templates.ExecuteTemplate(w, "board", v); err != nil {
		return fmt.Errorf("rendering board: %w", err)
	}
	return nil
}

// RenderString is Render into a string
func RenderString(v View) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPage writes a full HTML document that keeps itself current over the
// websocket at p.LivePath.
func RenderPage(w io.Writer, p Page) error {
	if err := templates.ExecuteTemplate(w, "page", p); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	return nil
}

// Styles returns the board stylesheet as a <style> element
func Styles() (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "styles", nil); err != nil {
		return "", fmt.Errorf("rendering styles: %w", err)
	}
	return buf.String(), nil
}
