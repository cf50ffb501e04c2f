package domain

import (
	"fmt"
	"strings"
)

// Letter is the rendered wording of a notification, independent of channel.
type Letter struct {
	Subject    string
	Title      string
	Reference  string
	Addressee  string
	Paragraphs []string
	Lines      []LetterLine
	Total      string
	Signature  string
}

type LetterLine struct {
	Label  string
	Amount string
}

// Compose builds the letter for n from its template kind and variables.
func Compose(n Notification) Letter {
	v := variables(n.Variables)
	letter := Letter{
		Addressee: v.get("taxpayer_name"),
		Signature: "Le Directeur de la redevance",
	}

	switch n.TemplateKind {
	case TemplateReminder:
		letter.Subject = "Rappel : note " + v.get("note_number")
		letter.Title = "Rappel de paiement"
		letter.Reference = v.get("note_number")
		letter.Paragraphs = []string{
			fmt.Sprintf("Sauf erreur de notre part, la note de taxation %s arrivée à échéance le %s reste impayée.", v.get("note_number"), v.get("due_date")),
			"Nous vous invitons à régulariser votre situation dans les meilleurs délais.",
		}
		letter.Signature = ""
	case TemplateWarning:
		letter.Subject = "Avertissement : note " + v.get("note_number")
		letter.Title = "Avertissement"
		letter.Reference = v.get("note_number")
		letter.Paragraphs = []string{
			fmt.Sprintf("La note de taxation %s demeure impayée malgré notre rappel.", v.get("note_number")),
			"À défaut de paiement, une relance formelle vous sera adressée.",
		}
	case TemplateFormalNotice:
		letter.Subject = "Relance : note " + v.get("note_number")
		letter.Title = "Relance"
		letter.Reference = v.get("note_number")
		letter.Paragraphs = []string{
			fmt.Sprintf("Par la présente, nous vous relançons formellement au sujet de la note de taxation %s échue le %s.", v.get("note_number"), v.get("due_date")),
			"Le montant restant dû figure ci-dessous.",
		}
	case TemplateFinalNotice:
		letter.Subject = "Mise en demeure : note " + v.get("note_number")
		letter.Title = "Mise en demeure"
		letter.Reference = v.get("note_number")
		letter.Paragraphs = []string{
			fmt.Sprintf("Nous vous mettons en demeure de payer le solde de la note de taxation %s.", v.get("note_number")),
			"Sans paiement de votre part, le dossier sera transmis pour recouvrement forcé.",
		}
	case TemplateReferral:
		letter.Subject = "Transmission pour recouvrement forcé : dossier " + v.get("dossier_reference")
		letter.Title = "Transmission pour recouvrement forcé"
		letter.Reference = v.get("dossier_reference")
		letter.Addressee = v.get("authority_name")
		letter.Paragraphs = []string{
			fmt.Sprintf("Nous vous transmettons le dossier %s concernant %s, redevable défaillant.", v.get("dossier_reference"), v.get("taxpayer_name")),
			fmt.Sprintf("Note(s) concernée(s) : %s.", v.get("note_numbers")),
		}
	case TemplateDisputeDecision:
		letter.Title = "Décision sur réclamation"
		letter.Reference = v.get("note_number")
		if v.get("decision") == "accepted" {
			letter.Subject = "Réclamation acceptée : note " + v.get("note_number")
			letter.Paragraphs = []string{
				fmt.Sprintf("Votre réclamation contre la note de taxation %s est acceptée. La note est annulée.", v.get("note_number")),
			}
		} else {
			letter.Subject = "Réclamation rejetée : note " + v.get("note_number")
			letter.Paragraphs = []string{
				fmt.Sprintf("Votre réclamation contre la note de taxation %s est rejetée. La note reste exigible.", v.get("note_number")),
			}
		}
		if text := v.get("decision_text"); text != "" {
			letter.Paragraphs = append(letter.Paragraphs, text)
		}
	case TemplateRectificationNotice:
		letter.Subject = "Note de rectification " + v.get("rectification_number")
		letter.Title = "Note de rectification"
		letter.Reference = v.get("rectification_number")
		letter.Paragraphs = []string{
			fmt.Sprintf("Suite au contrôle effectué, une note de rectification est émise en complément de la note %s.", v.get("note_number")),
			"Motif : " + v.get("motif"),
		}
		letter.Lines = []LetterLine{
			{Label: "Écart constaté", Amount: v.get("gap_amount")},
			{Label: "Pénalité", Amount: v.get("penalty_amount")},
		}
	default:
		letter.Subject = "Notification"
		letter.Title = "Notification"
	}

	if amount := v.get("amount_due"); amount != "" {
		letter.Total = amount
	}
	if total := v.get("total"); total != "" {
		letter.Total = total
	}
	return letter
}

type variables map[string]any

func (v variables) get(key string) string {
	raw, ok := v[key]
	if !ok || raw == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}
