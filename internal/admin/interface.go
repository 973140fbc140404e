package admin

import (
	"context"

	"github.com/mauv0809/scoreline/internal/auth"
)

// Service manages the versioned admin PIN of each league and the claims
// derived from it. caller is the authenticated principal id.
type Service interface {
	SetPin(ctx context.Context, caller, leagueID, pin string) (*Grant, error)
	VerifyPin(ctx context.Context, caller, leagueID, pin string) (*Grant, error)
	ResetPin(ctx context.Context, caller, claim, leagueID, newPin string) (*Grant, error)
	ClearAdmin(ctx context.Context, caller, claim, leagueID string) error
	// Authorize checks that claim grants caller admin rights on leagueID right now.
	Authorize(ctx context.Context, caller, claim, leagueID string) (*auth.AdminClaims, error)
}
