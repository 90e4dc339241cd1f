package management

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

func normalizeFeatureGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return err
	}

	return errors.Wrap(err, errors.CategoryAuthz, "Feature gate check failed").
		WithCode(errors.CodeForbidden)
}

func requireFeatureGate(ctx context.Context, featureGate gate.FeatureGate, key string, disabledErr error) error {
	return guard.Require(ctx, featureGate, key,
		guard.WithDisabledError(disabledErr),
		guard.WithErrorMapper(normalizeFeatureGateError),
	)
}

// ConfigFeatureGate answers the user feature keys from static configuration.
// Keys it does not know are reported enabled.
type ConfigFeatureGate struct {
	config Config
}

var _ gate.FeatureGate = (*ConfigFeatureGate)(nil)

// NewConfigFeatureGate backs users.signup with Config.GetRegistrationEnabled.
func NewConfigFeatureGate(config Config) *ConfigFeatureGate {
	return &ConfigFeatureGate{config: config}
}

// Enabled implements gate.FeatureGate.
func (g *ConfigFeatureGate) Enabled(_ context.Context, key string, _ ...gate.ResolveOption) (bool, error) {
	switch key {
	case gate.FeatureUsersSignup:
		return g.config != nil && g.config.GetRegistrationEnabled(), nil
	default:
		return true, nil
	}
}
