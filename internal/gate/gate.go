// Package gate authorises API requests: it verifies the bearer access token,
// resolves the acting principal on the shared connection and enforces the
// route's allowed roles.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/platform/httpx"
	"github.com/kis-labs/webbuilder/internal/principal"
	"github.com/kis-labs/webbuilder/internal/shared"
	"github.com/kis-labs/webbuilder/internal/token"
)

// Decision outcomes reported to the Observer.
const (
	OutcomeGranted               = "granted"
	OutcomeMissingToken          = "missing_token"
	OutcomeInvalidToken          = "invalid_token"
	OutcomeConnectionUnavailable = "connection_unavailable"
	OutcomePrincipalNotFound     = "principal_not_found"
	OutcomeAccessDenied          = "access_denied"
	OutcomeError                 = "error"
)

// Verifier verifies access tokens.
type Verifier interface {
	Verify(ctx context.Context, raw string, kind token.Kind) (token.Claims, error)
}

// Acquirer hands out the shared data store handle.
type Acquirer interface {
	Acquire(ctx context.Context) (db.Handle, error)
}

// PrincipalFinder resolves a principal by id.
type PrincipalFinder interface {
	FindByID(ctx context.Context, id int64) (*principal.Principal, error)
}

// FinderFactory binds a PrincipalFinder to a connection.
type FinderFactory func(conn db.Conn) PrincipalFinder

// Observer records gate decisions.
type Observer interface {
	ObserveGateDecision(outcome string)
}

// Grant is the result of a successful authorisation. Handlers use Conn for
// their own data access and never re-resolve the principal.
type Grant struct {
	Principal *principal.Principal
	Conn      db.Handle
}

// Option customises a Gate.
type Option func(*Gate)

// WithFinderFactory overrides how principals are looked up on the acquired
// connection.
func WithFinderFactory(f FinderFactory) Option {
	return func(g *Gate) {
		g.finders = f
	}
}

// WithObserver reports every decision to o.
func WithObserver(o Observer) Option {
	return func(g *Gate) {
		g.observer = o
	}
}

// Gate is the per-request authorisation entry point.
type Gate struct {
	verifier Verifier
	acquirer Acquirer
	finders  FinderFactory
	observer Observer
	logger   *slog.Logger
}

// New constructs a Gate.
func New(verifier Verifier, acquirer Acquirer, logger *slog.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		verifier: verifier,
		acquirer: acquirer,
		finders: func(conn db.Conn) PrincipalFinder {
			return principal.NewRepository(conn)
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize runs the checks for one request in order: bearer extraction,
// token verification, connection acquisition, principal lookup and role
// check. ADMIN principals pass any role check. Deactivation is not checked
// here, so a deactivated principal's access token keeps working until it
// expires.
func (g *Gate) Authorize(ctx context.Context, header string, allowed ...principal.Role) (Grant, error) {
	grant, outcome, err := g.authorize(ctx, header, allowed)
	if g.observer != nil {
		g.observer.ObserveGateDecision(outcome)
	}
	return grant, err
}

func (g *Gate) authorize(ctx context.Context, header string, allowed []principal.Role) (Grant, string, error) {
	raw, ok := bearer(header)
	if !ok {
		return Grant{}, OutcomeMissingToken, shared.ErrMissingToken
	}

	claims, err := g.verifier.Verify(ctx, raw, token.KindAccess)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Grant{}, OutcomeError, ctxErr
		}
		g.logger.Info("access token rejected", slog.String("reason", token.Reason(err)))
		return Grant{}, OutcomeInvalidToken, shared.ErrInvalidToken
	}

	conn, err := g.acquirer.Acquire(ctx)
	if err != nil {
		err = db.AcquireError(ctx, err)
		if errors.Is(err, shared.ErrConnectionUnavailable) {
			return Grant{}, OutcomeConnectionUnavailable, err
		}
		return Grant{}, OutcomeError, err
	}

	p, err := g.finders(conn).FindByID(ctx, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Grant{}, OutcomePrincipalNotFound, shared.ErrPrincipalNotFound
		}
		return Grant{}, OutcomeError, err
	}

	if !principal.HasAccess(p.Role, allowed) {
		return Grant{}, OutcomeAccessDenied, shared.ErrAccessDenied
	}
	return Grant{Principal: p, Conn: conn}, OutcomeGranted, nil
}

func bearer(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", false
	}
	return raw, true
}

type ctxKey struct{}

// Require returns middleware that authorises the request for the allowed
// roles and stores the Grant in the request context.
func (g *Gate) Require(allowed ...principal.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			grant, err := g.Authorize(r.Context(), r.Header.Get("Authorization"), allowed...)
			if err != nil {
				httpx.RespondError(w, r, g.logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithGrant(r.Context(), grant)))
		})
	}
}

// WithGrant stores grant in ctx.
func WithGrant(ctx context.Context, grant Grant) context.Context {
	return context.WithValue(ctx, ctxKey{}, grant)
}

// FromContext returns the Grant stored by Require.
func FromContext(ctx context.Context) (Grant, bool) {
	grant, ok := ctx.Value(ctxKey{}).(Grant)
	return grant, ok && grant.Principal != nil
}
