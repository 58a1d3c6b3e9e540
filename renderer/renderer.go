// Package renderer turns analyses, valuations and history into markdown.
//
// Rendering is split in two: a view model (Report, Portfolio, History) is built
// from the domain types with every number already formatted, then it is executed
// against the embedded templates.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/history"
)

//go:embed templates/*.md
var templatesFS embed.FS

var templates = must(fs.Sub(templatesFS, "templates"))

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

// RenderAnalysis renders the full analysis report. The same text is printed by
// the CLI and sent as the body of the summary prompt.
func RenderAnalysis(a *cryptofolio.Analysis) string {
	partials := map[string]string{
		"analysis_volatile":  "analysis_volatile.md",
		"analysis_stable":    "analysis_stable.md",
		"analysis_balance":   "analysis_balance.md",
		"analysis_rebalance": "analysis_rebalance.md",
	}
	return renderTemplate("analysis", "analysis.md", partials, NewReport(a))
}

// RenderValuation renders the priced holdings as a table.
func RenderValuation(v cryptofolio.Valuation) string {
	return renderTemplate("valuation", "valuation.md", nil, NewPortfolio(v))
}

// RenderHistory renders the valuation history, in the given order.
func RenderHistory(entries []history.Entry) string {
	return renderTemplate("history", "history.md", nil, NewHistory(entries))
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
