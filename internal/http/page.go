package http

import (
	"html/template"

	"github.com/kjstillabower/weather-lookup/internal/lookup"
	"github.com/kjstillabower/weather-lookup/internal/render"
)

type pageData struct {
	Title       string
	Placeholder string
	View        lookup.View
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"capitalize": render.Capitalize,
}).Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{- if .View.Loading}}
<meta http-equiv="refresh" content="1">
{{- end}}
<title>{{.Title}}</title>
<style>
  body { font-family: system-ui, sans-serif; display: flex; justify-content: center; padding: 3rem 1rem; background: #f3f6fa; }
  .card { background: #fff; border-radius: 12px; padding: 2rem; width: 100%; max-width: 420px; box-shadow: 0 4px 16px rgba(0,0,0,.08); }
  form { display: flex; gap: .5rem; margin-bottom: 1.25rem; }
  input { flex: 1; padding: .6rem .75rem; border: 1px solid #c9d2dc; border-radius: 8px; }
  button { padding: .6rem 1rem; border: 0; border-radius: 8px; background: #2563eb; color: #fff; }
  button:disabled { background: #93a8d6; }
  .hint { color: #667085; }
  .error { color: #b42318; background: #fef3f2; padding: .75rem; border-radius: 8px; }
  .temp { font-size: 2.5rem; margin: .25rem 0; }
</style>
</head>
<body>
<main class="card">
  <h1>{{.Title}}</h1>
  <form method="post" action="/">
    <input type="text" name="city" value="{{.View.Input}}" placeholder="{{.Placeholder}}" aria-label="City">
    <button type="submit"{{if .View.SubmitDisabled}} disabled{{end}}>{{.View.SubmitLabel}}</button>
  </form>
  {{- if .View.Result}}
  <section class="result">
    <h2>{{.View.Result.Location}}</h2>
    <p class="temp">{{.View.Result.Temperature}}</p>
    <p>Feels like: {{.View.Result.FeelsLike}}</p>
    <p>Humidity: {{.View.Result.Humidity}}</p>
    {{- if .View.Result.Description}}
    <p class="description">{{capitalize .View.Result.Description}}</p>
    {{- end}}
  </section>
  {{- else if .View.Error}}
  <p class="error">⚠️ {{.View.Error}}</p>
  {{- else if .View.Loading}}
  <p class="loading">Loading...</p>
  {{- else}}
  <p class="hint">{{.View.Hint}}</p>
  {{- end}}
</main>
</body>
</html>
`
