// Package views holds the server-rendered HTML pages.
package views

import (
	"embed"
	"html/template"
)

//go:embed *.html
var files embed.FS

const ReturnPage = "return.html"

// Templates parses every embedded page. It panics on a broken template since
// the files are compiled into the binary.
func Templates() *template.Template {
	return template.Must(template.ParseFS(files, "*.html"))
}
