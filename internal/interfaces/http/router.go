package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/feria-api/internal/application/cashsubmission"
	"github.com/jhoicas/feria-api/internal/application/identity"
	"github.com/jhoicas/feria-api/internal/application/ledger"
	"github.com/jhoicas/feria-api/internal/application/pin"
	"github.com/jhoicas/feria-api/internal/application/stats"
	"github.com/jhoicas/feria-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Resolver       *identity.Resolver
	PIN            *pin.Guard
	Engine         *ledger.Engine
	Submissions    *cashsubmission.Service
	Stats          *stats.Aggregator
	Limiter        Limiter // nil = sin límite
	RateLimit      RateLimitConfig
	RequestTimeout time.Duration
	Log            *logger.Logger
}

// Router registra las rutas de la API bajo /api/orgs/:orgId/events/:eventId.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.RateLimit.Scope == "" {
		deps.RateLimit.Scope = "value-moving"
	}

	tenant := app.Group("/api/orgs/:orgId/events/:eventId",
		RequestTimeout(deps.RequestTimeout),
		AuthMiddleware(deps.Resolver),
	)
	// Operaciones que mueven valor o cambian credenciales: limitadas por usuario.
	limited := RateLimit(deps.Limiter, deps.RateLimit, deps.Log)

	me := NewMeHandler(deps.Resolver, deps.PIN)
	tenant.Get("/me", me.Me)
	tenant.Post("/pin/verify", limited, me.VerifyPIN)
	tenant.Put("/pin", limited, me.SetPIN)

	ledgerHandler := NewLedgerHandler(deps.Engine)
	tenant.Post("/allocations", limited, ledgerHandler.Allocate)
	tenant.Post("/direct-sales", limited, ledgerHandler.DirectSale)
	tenant.Post("/seller-sales", limited, ledgerHandler.SellerSale)
	tenant.Post("/payments", limited, ledgerHandler.Payment)
	tenant.Post("/payments/:id/confirm", limited, ledgerHandler.ConfirmPayment)
	tenant.Post("/payments/:id/refund", limited, ledgerHandler.RefundPayment)
	tenant.Post("/payments/:id/cancel", limited, ledgerHandler.CancelPayment)

	cards := NewCardHandler(deps.Engine)
	tenant.Post("/point-cards", limited, cards.Issue)
	tenant.Post("/point-cards/:id/redeem", limited, cards.Redeem)
	tenant.Post("/point-cards/:id/destroy", limited, cards.Destroy)

	subs := NewCashSubmissionHandler(deps.Submissions)
	tenant.Post("/cash-submissions", limited, subs.Create)
	tenant.Get("/cash-submissions/pending", subs.Pending)
	tenant.Get("/cash-submissions/mine", subs.Mine)
	tenant.Get("/cash-submissions/:id", subs.GetByID)
	tenant.Post("/cash-submissions/:id/confirm", limited, subs.Confirm)
	tenant.Post("/cash-submissions/:id/dispute", limited, subs.Dispute)
	tenant.Post("/cash-submissions/:id/reject", limited, subs.Reject)

	statsHandler := NewStatsHandler(deps.Stats)
	tenant.Get("/stats/departments/:id", statsHandler.Department)
	tenant.Get("/stats/managers/:id", statsHandler.Manager)
}
