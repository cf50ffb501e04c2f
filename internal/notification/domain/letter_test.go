package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComposeFinalNotice(t *testing.T) {
	letter := Compose(Notification{
		TemplateKind: TemplateFinalNotice,
		Variables: map[string]any{
			"taxpayer_name": "Hotel Memling",
			"note_number":   "NT-2026-KIN-0001",
			"amount_due":    "25.00",
		},
	})
	assert.Equal(t, "Mise en demeure : note NT-2026-KIN-0001", letter.Subject)
	assert.Equal(t, "Hotel Memling", letter.Addressee)
	assert.Equal(t, "25.00", letter.Total)
	assert.NotEmpty(t, letter.Signature)
}

func TestComposeDisputeDecision(t *testing.T) {
	accepted := Compose(Notification{
		TemplateKind: TemplateDisputeDecision,
		Variables:    map[string]any{"note_number": "NT-1", "decision": "accepted", "decision_text": "Appareils déjà déclarés."},
	})
	assert.Contains(t, accepted.Subject, "acceptée")
	assert.Len(t, accepted.Paragraphs, 2)

	rejected := Compose(Notification{
		TemplateKind: TemplateDisputeDecision,
		Variables:    map[string]any{"note_number": "NT-1", "decision": "rejected"},
	})
	assert.Contains(t, rejected.Subject, "rejetée")
	assert.Len(t, rejected.Paragraphs, 1)
}

func TestComposeReferralAddressesAuthority(t *testing.T) {
	letter := Compose(Notification{
		TemplateKind: TemplateReferral,
		Variables: map[string]any{
			"authority_name":    "Tribunal de commerce",
			"taxpayer_name":     "Hotel Memling",
			"dossier_reference": "DR-2026-01",
			"note_numbers":      "NT-2026-KIN-0001",
		},
	})
	assert.Equal(t, "Tribunal de commerce", letter.Addressee)
	assert.Equal(t, "DR-2026-01", letter.Reference)
}

func TestNextAttempt(t *testing.T) {
	at := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	key := "letters/a.pdf"

	sent := NextAttempt(Notification{Attempts: 1}, nil, &key, at, 5)
	assert.Equal(t, StatusSent, sent.Status)
	assert.Equal(t, 2, sent.Attempts)
	assert.Equal(t, &key, sent.ArtifactKey)
	assert.NotNil(t, sent.SentAt)
	assert.Nil(t, sent.LastError)

	retry := NextAttempt(Notification{Attempts: 1}, errors.New("smtp down"), nil, at, 5)
	assert.Equal(t, StatusPending, retry.Status)
	if assert.NotNil(t, retry.LastError) {
		assert.Equal(t, "smtp down", *retry.LastError)
	}

	exhausted := NextAttempt(Notification{Attempts: 4}, errors.New("smtp down"), nil, at, 5)
	assert.Equal(t, StatusFailed, exhausted.Status)
	assert.Equal(t, 5, exhausted.Attempts)
}

func TestNeedsDocument(t *testing.T) {
	assert.False(t, TemplateReminder.NeedsDocument())
	assert.False(t, TemplateWarning.NeedsDocument())
	assert.True(t, TemplateFinalNotice.NeedsDocument())
	assert.True(t, TemplateReferral.NeedsDocument())
}
