package management

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenIssuer is the issuer stamped on action tokens when none is
// configured
const DefaultTokenIssuer = "gravitee-management-auth"

// TokenCodec signs and verifies action tokens
type TokenCodec interface {
	Sign(claims *ActionClaims, ttl time.Duration) (string, error)
	Verify(token string) (*ActionClaims, error)
}

// TokenCodecOption configures a JWTTokenCodec
type TokenCodecOption func(*JWTTokenCodec)

// WithTokenClock overrides the time source used for issuance and expiry.
func WithTokenClock(now func() time.Time) TokenCodecOption {
	return func(c *JWTTokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTokenLogger sets the logger used to report verification causes.
func WithTokenLogger(logger Logger) TokenCodecOption {
	return func(c *JWTTokenCodec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// JWTTokenCodec implements TokenCodec with compact HS256 JWTs
type JWTTokenCodec struct {
	signingKey []byte
	issuer     string
	logger     Logger
	now        func() time.Time
}

var _ TokenCodec = (*JWTTokenCodec)(nil)

// NewTokenCodec creates a codec for the given secret. An empty secret is
// accepted here and reported as a configuration error on use.
func NewTokenCodec(signingKey, issuer string, opts ...TokenCodecOption) *JWTTokenCodec {
	if issuer == "" {
		issuer = DefaultTokenIssuer
	}

	codec := &JWTTokenCodec{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(codec)
		}
	}

	return codec
}

// NewTokenCodecFromConfig reads the secret and issuer from config.
func NewTokenCodecFromConfig(config Config, opts ...TokenCodecOption) *JWTTokenCodec {
	if config == nil {
		return NewTokenCodec("", "", opts...)
	}
	return NewTokenCodec(config.GetSigningKey(), config.GetIssuer(), opts...)
}

// Sign stamps issuer, issued at, expiry and a fresh token id on a copy of
// claims and returns the signed token.
func (c *JWTTokenCodec) Sign(claims *ActionClaims, ttl time.Duration) (string, error) {
	if len(c.signingKey) == 0 {
		return "", NewConfigurationError("action token signing key is not configured")
	}
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}
	if ttl <= 0 {
		return "", NewConfigurationError("action token ttl must be positive").
			WithMetadata(map[string]any{"action": claims.Action, "ttl": ttl.String()})
	}

	now := c.now()
	signed := *claims
	signed.Issuer = c.issuer
	signed.IssuedAt = jwt.NewNumericDate(now)
	signed.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	signed.ID = uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &signed)
	out, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign action token")
	}

	return out, nil
}

// Verify parses and validates token. Every failure, expired tokens
// included, is reported as ErrInvalidToken.
func (c *JWTTokenCodec) Verify(token string) (*ActionClaims, error) {
	if len(c.signingKey) == 0 {
		return nil, NewConfigurationError("action token signing key is not configured")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &ActionClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.signingKey, nil
	})
	if err != nil {
		c.logger.Debug("action token rejected: %v", err)
		return nil, ErrInvalidToken
	}

	if !parsed.Valid || !claims.validPayload() {
		c.logger.Debug("action token rejected: invalid payload")
		return nil, ErrInvalidToken
	}

	return claims, nil
}
