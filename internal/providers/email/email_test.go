package email

import (
	"context"
	"strings"
	"testing"

	"github.com/smallbiznis/redevance/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderLetterEscapesContent(t *testing.T) {
	html, err := RenderLetter(LetterData{
		Title:      "Rappel",
		Reference:  "NT-2026-KIN-0001",
		Paragraphs: []string{"Montant dû <b>25.00</b>"},
		Lines:      []LetterLine{{Label: "Total", Amount: "25.00"}},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Réf. NT-2026-KIN-0001")
	assert.Contains(t, html, "&lt;b&gt;25.00&lt;/b&gt;")
	assert.Contains(t, html, "Service de la redevance audiovisuelle")
}

func TestBuildMIMEWithAttachment(t *testing.T) {
	raw, err := buildMIME("no-reply@redevance.local", Message{
		To:       []string{"tp@example.cd"},
		Subject:  "Mise en demeure",
		HTMLBody: "<p>hello</p>",
		Attachments: []Attachment{
			{Filename: "letter.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		},
	})
	require.NoError(t, err)

	msg := string(raw)
	assert.True(t, strings.HasPrefix(msg, "From: no-reply@redevance.local\r\n"))
	assert.Contains(t, msg, "To: tp@example.cd\r\n")
	assert.Contains(t, msg, "multipart/mixed")
	assert.Contains(t, msg, `filename="letter.pdf"`)
	assert.Contains(t, msg, "JVBERi0xLjQ=")
}

func TestBuildMIMERequiresRecipient(t *testing.T) {
	_, err := buildMIME("a@b.c", Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestNewFromConfigSelectsChannel(t *testing.T) {
	cfg := config.Config{Email: config.EmailConfig{Channel: "noop"}}
	provider, err := NewFromConfig(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &NoOpProvider{}, provider)
	assert.NoError(t, provider.Send(context.Background(), Message{}))

	cfg.Email.Channel = "smtp"
	provider, err = NewFromConfig(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SMTPProvider{}, provider)

	cfg.Email.Channel = "pigeon"
	_, err = NewFromConfig(cfg, zap.NewNop())
	assert.Error(t, err)
}
