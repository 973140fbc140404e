package admin

import (
	"database/sql"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/mauv0809/scoreline/internal/auth"
	"github.com/mauv0809/scoreline/internal/metrics"
)

type service struct {
	db       *sql.DB
	signer   *auth.Signer
	clock    clock.Clock
	claimTTL time.Duration
	kdf      KDFParams
	metrics  metrics.Metrics
}

// KDFParams are the argon2id cost parameters used for PIN hashes.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultKDF is 64 MiB, one pass, four lanes.
var DefaultKDF = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}

// Grant is the result of a successful credential operation: a fresh admin
// claim at the credential's current version.
type Grant struct {
	Version   int       `json:"adminPinVersion"`
	Claim     string    `json:"claim"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Option configures the service.
type Option func(*service)

// WithKDF overrides the PIN hashing cost.
func WithKDF(p KDFParams) Option {
	return func(s *service) { s.kdf = p }
}
