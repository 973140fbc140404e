package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/itbasis/go-clock"
	"github.com/mauv0809/scoreline/internal/apperr"
	"github.com/mauv0809/scoreline/internal/auth"
	"github.com/mauv0809/scoreline/internal/metrics"
	"golang.org/x/crypto/argon2"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// New creates the credential service. Claims it grants expire after claimTTL
// unless cleared earlier.
func New(db *sql.DB, signer *auth.Signer, clk clock.Clock, claimTTL time.Duration, m metrics.Metrics, opts ...Option) Service {
	s := &service{
		db:       db,
		signer:   signer,
		clock:    clk,
		claimTTL: claimTTL,
		kdf:      DefaultKDF,
		metrics:  m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPin creates the first credential of a league.
func (s *service) SetPin(ctx context.Context, caller, leagueID, pin string) (grant *Grant, err error) {
	defer s.record("set", &err)
	if err := validate(caller, leagueID, &pin); err != nil {
		return nil, err
	}
	hash, salt, err := s.derive(pin)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "INSERT INTO leagues (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING", leagueID, now.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to create league %s: %w", leagueID, err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO admin_credentials (league_id, pin_hash, pin_salt, version, set_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(league_id) DO NOTHING`,
		leagueID, hash, salt, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to store admin credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.FailedPrecondition, "league %q already has an admin PIN", leagueID)
	}
	grant, err = s.grant(ctx, tx, caller, leagueID, 1)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit admin credential: %w", err)
	}
	log.Info("Admin PIN set", "leagueID", leagueID, "principal", caller)
	return grant, nil
}

// VerifyPin grants a claim when pin matches the stored credential.
func (s *service) VerifyPin(ctx context.Context, caller, leagueID, pin string) (grant *Grant, err error) {
	defer s.record("verify", &err)
	if err := validate(caller, leagueID, &pin); err != nil {
		return nil, err
	}

	var (
		hash, salt string
		version    int
	)
	err = s.db.QueryRowContext(ctx, "SELECT pin_hash, pin_salt, version FROM admin_credentials WHERE league_id = ?", leagueID).Scan(&hash, &salt, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "league %q has no admin PIN", leagueID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admin credential: %w", err)
	}
	ok, err := s.matches(pin, hash, salt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.PermissionDenied, "incorrect PIN")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	grant, err = s.grant(ctx, tx, caller, leagueID, version)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit admin session: %w", err)
	}
	return grant, nil
}

// ResetPin rotates the PIN. The caller's claim must be at the current
// version; the version moves up by exactly one.
func (s *service) ResetPin(ctx context.Context, caller, claim, leagueID, newPin string) (grant *Grant, err error) {
	defer s.record("reset", &err)
	if err := validate(caller, leagueID, &newPin); err != nil {
		return nil, err
	}
	claims, err := s.Authorize(ctx, caller, claim, leagueID)
	if err != nil {
		return nil, err
	}
	hash, salt, err := s.derive(newPin)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE admin_credentials
		SET pin_hash = ?, pin_salt = ?, version = version + 1, set_at = ?
		WHERE league_id = ? AND version = ?`,
		hash, salt, now.UnixMilli(), leagueID, claims.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate admin credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.PermissionDenied, "admin claim is stale")
	}
	grant, err = s.grant(ctx, tx, caller, leagueID, claims.Version+1)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit admin credential: %w", err)
	}
	log.Info("Admin PIN reset", "leagueID", leagueID, "principal", caller, "version", grant.Version)
	return grant, nil
}

// ClearAdmin revokes every admin claim of the caller, in every league.
func (s *service) ClearAdmin(ctx context.Context, caller, claim, leagueID string) (err error) {
	defer s.record("clear", &err)
	if err := validate(caller, leagueID, nil); err != nil {
		return err
	}
	if _, err := s.Authorize(ctx, caller, claim, leagueID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM admin_sessions WHERE principal_id = ?", caller)
	if err != nil {
		return fmt.Errorf("failed to revoke admin sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	log.Info("Admin claims cleared", "leagueID", leagueID, "principal", caller, "revoked", n)
	return nil
}

func (s *service) Authorize(ctx context.Context, caller, claim, leagueID string) (*auth.AdminClaims, error) {
	if err := validate(caller, leagueID, nil); err != nil {
		return nil, err
	}
	if claim == "" {
		return nil, apperr.New(apperr.PermissionDenied, "admin claim required")
	}
	claims, err := s.signer.ParseAdmin(claim)
	if err != nil {
		return nil, apperr.Wrap(apperr.PermissionDenied, err, "invalid admin claim")
	}
	if !claims.Admin || claims.Subject != caller || claims.LeagueID != leagueID {
		return nil, apperr.New(apperr.PermissionDenied, "admin claim does not match caller or league")
	}

	var expiresAt int64
	err = s.db.QueryRowContext(ctx,
		"SELECT expires_at FROM admin_sessions WHERE id = ? AND principal_id = ? AND league_id = ? AND version = ?",
		claims.ID, caller, leagueID, claims.Version).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.PermissionDenied, "admin claim was revoked")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admin session: %w", err)
	}
	if !s.clock.Now().Before(time.UnixMilli(expiresAt)) {
		return nil, apperr.New(apperr.PermissionDenied, "admin claim expired")
	}

	var current int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM admin_credentials WHERE league_id = ?", leagueID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.PermissionDenied, "league %q has no admin PIN", leagueID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admin credential: %w", err)
	}
	if current != claims.Version {
		return nil, apperr.New(apperr.PermissionDenied, "admin claim is stale")
	}
	return claims, nil
}

// grant records a session and signs the matching claim.
func (s *service) grant(ctx context.Context, tx *sql.Tx, caller, leagueID string, version int) (*Grant, error) {
	now := s.clock.Now().UTC()
	expiresAt := now.Add(s.claimTTL)
	sessionID := uuid.NewString()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO admin_sessions (id, principal_id, league_id, version, issued_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)",
		sessionID, caller, leagueID, version, now.UnixMilli(), expiresAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to store admin session: %w", err)
	}
	token, err := s.signer.SignAdmin(auth.AdminClaims{
		Admin:    true,
		LeagueID: leagueID,
		Version:  version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return nil, err
	}
	return &Grant{Version: version, Claim: token, ExpiresAt: expiresAt}, nil
}

func (s *service) derive(pin string) (hash string, salt string, err error) {
	raw := make([]byte, s.kdf.SaltLen)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(s.key(pin, raw)), hex.EncodeToString(raw), nil
}

func (s *service) matches(pin, hash, salt string) (bool, error) {
	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("corrupt PIN salt: %w", err)
	}
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false, fmt.Errorf("corrupt PIN hash: %w", err)
	}
	return subtle.ConstantTimeCompare(s.key(pin, rawSalt), want) == 1, nil
}

func (s *service) key(pin string, salt []byte) []byte {
	return argon2.IDKey([]byte(pin), salt, s.kdf.Time, s.kdf.Memory, s.kdf.Threads, s.kdf.KeyLen)
}

func (s *service) record(operation string, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = string(apperr.CodeOf(*err))
	}
	s.metrics.IncPinAttempt(operation, outcome)
}

// validate rejects bad input before any store access. pin is nil for
// operations that take none.
func validate(caller, leagueID string, pin *string) error {
	if caller == "" {
		return apperr.New(apperr.Unauthenticated, "caller is not authenticated")
	}
	if strings.TrimSpace(leagueID) == "" {
		return apperr.New(apperr.InvalidArgument, "league id must not be empty")
	}
	if pin != nil && !pinPattern.MatchString(*pin) {
		return apperr.New(apperr.InvalidArgument, "PIN must be exactly 4 digits")
	}
	return nil
}
