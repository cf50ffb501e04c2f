package domain

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	paymentdomain "github.com/smallbiznis/redevance/internal/payment/domain"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
)

type Status string

const (
	StatusNewTaxpayer                Status = "NEW_TAXPAYER"
	StatusCompliant                  Status = "COMPLIANT"
	StatusAwaitingConfirmation       Status = "AWAITING_CONFIRMATION"
	StatusOverdue                    Status = "OVERDUE"
	StatusPaymentPending             Status = "PAYMENT_PENDING"
	StatusRenewalRequired            Status = "RENEWAL_REQUIRED"
	StatusInitialDeclarationRequired Status = "INITIAL_DECLARATION_REQUIRED"
)

// Snapshot holds the persisted facts the resolver reads. Taxpayer is nil when no profile exists.
type Snapshot struct {
	Taxpayer *taxpayerdomain.Taxpayer
	Notes    []notedomain.TaxationNote
	Payments []paymentdomain.Payment
}

type Result struct {
	Status         Status          `json:"status"`
	FiscalYear     int             `json:"fiscal_year"`
	NoteID         *snowflake.ID   `json:"note_id,omitempty"`
	NoteNumber     string          `json:"note_number,omitempty"`
	TotalDue       decimal.Decimal `json:"total_due"`
	ConfirmedPaid  decimal.Decimal `json:"confirmed_paid"`
	PendingPaid    decimal.Decimal `json:"pending_paid"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	TaxpayerStatus string          `json:"taxpayer_status,omitempty"`
}

// Resolve derives the compliance status of one taxpayer. The first matching rule wins.
func Resolve(snap Snapshot, today time.Time) Result {
	year := today.Year()
	result := Result{
		Status:        StatusNewTaxpayer,
		FiscalYear:    year,
		TotalDue:      decimal.Zero,
		ConfirmedPaid: decimal.Zero,
		PendingPaid:   decimal.Zero,
		Outstanding:   decimal.Zero,
	}
	if snap.Taxpayer == nil {
		return result
	}
	result.TaxpayerStatus = string(snap.Taxpayer.Status)

	if current := authoritativeNote(snap.Notes, year); current != nil {
		confirmed, pending := paidAmounts(snap.Payments, current.ID)
		id := current.ID
		due := current.DueDate
		result.NoteID = &id
		result.NoteNumber = current.Number
		result.TotalDue = current.TotalDue
		result.ConfirmedPaid = confirmed
		result.PendingPaid = pending
		result.DueDate = &due
		if outstanding := current.TotalDue.Sub(confirmed); outstanding.IsPositive() {
			result.Outstanding = outstanding
		}

		switch {
		case confirmed.GreaterThanOrEqual(current.TotalDue):
			result.Status = StatusCompliant
		case pending.IsPositive():
			result.Status = StatusAwaitingConfirmation
		case today.After(current.DueDate):
			result.Status = StatusOverdue
		default:
			result.Status = StatusPaymentPending
		}
		return result
	}

	if prior := authoritativeNote(snap.Notes, year-1); prior != nil {
		confirmed, _ := paidAmounts(snap.Payments, prior.ID)
		if confirmed.GreaterThanOrEqual(prior.TotalDue) {
			result.Status = StatusRenewalRequired
			return result
		}
	}

	if snap.Taxpayer.ProfileComplete {
		result.Status = StatusInitialDeclarationRequired
		return result
	}
	return result
}

// authoritativeNote returns the most recently created live note of the year.
// Drafts and voided notes are history and never authoritative.
func authoritativeNote(notes []notedomain.TaxationNote, year int) *notedomain.TaxationNote {
	candidates := make([]notedomain.TaxationNote, 0, len(notes))
	for _, n := range notes {
		if n.FiscalYear != year || n.Status == notedomain.StatusDraft || n.Status == notedomain.StatusVoid {
			continue
		}
		candidates = append(candidates, n)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].ID > candidates[j].ID
	})
	return &candidates[0]
}

func paidAmounts(payments []paymentdomain.Payment, noteID snowflake.ID) (confirmed, pending decimal.Decimal) {
	confirmed, pending = decimal.Zero, decimal.Zero
	for _, p := range payments {
		if p.TargetKind != paymentdomain.TargetTaxationNote || p.TargetID != noteID {
			continue
		}
		switch p.Status {
		case paymentdomain.StatusConfirmed:
			confirmed = confirmed.Add(p.Amount)
		case paymentdomain.StatusPending:
			pending = pending.Add(p.Amount)
		}
	}
	return confirmed, pending
}
