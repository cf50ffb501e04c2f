package domains

import (
	"github.com/smallbiznis/redevance/internal/audit"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/compliance"
	"github.com/smallbiznis/redevance/internal/control"
	"github.com/smallbiznis/redevance/internal/declaration"
	"github.com/smallbiznis/redevance/internal/dispute"
	"github.com/smallbiznis/redevance/internal/escalation"
	"github.com/smallbiznis/redevance/internal/note"
	"github.com/smallbiznis/redevance/internal/notification"
	"github.com/smallbiznis/redevance/internal/payment"
	"github.com/smallbiznis/redevance/internal/providers"
	"github.com/smallbiznis/redevance/internal/ratelimit"
	"github.com/smallbiznis/redevance/internal/recovery"
	"github.com/smallbiznis/redevance/internal/rectification"
	"github.com/smallbiznis/redevance/internal/tariff"
	"github.com/smallbiznis/redevance/internal/taxpayer"
	"go.uber.org/fx"
)

// Module bundles every enforcement domain together with the providers they deliver through.
// Both the HTTP server and the scheduler worker start from it.
var Module = fx.Module("domains",
	authorization.Module,
	audit.Module,
	providers.Module,
	ratelimit.Module,
	taxpayer.Module,
	tariff.Module,
	note.Module,
	payment.Module,
	compliance.Module,
	declaration.Module,
	control.Module,
	rectification.Module,
	dispute.Module,
	notification.Module,
	recovery.Module,
	escalation.Module,
)
