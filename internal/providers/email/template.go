package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// LetterData feeds the letter template shared by every notification kind.
type LetterData struct {
	Title      string
	Recipient  string
	Reference  string
	Paragraphs []string
	Lines      []LetterLine
	Footer     string
}

type LetterLine struct {
	Label  string
	Amount string
}

func RenderLetter(data LetterData) (string, error) {
	return Render("letter", data)
}

func Render(name string, data any) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name+".html", data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return body.String(), nil
}
