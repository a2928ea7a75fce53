// Package credential holds OpenDental API credentials and stores them in the
// OS keyring, with an environment-variable fallback.
package credential

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Environments a credential may belong to.
const (
	EnvProduction = "production"
	EnvStaging    = "staging"
	EnvDev        = "dev"
)

// DefaultEnvironment is used when none is given or stored.
const DefaultEnvironment = EnvProduction

// Errors returned by the credential package.
var (
	ErrNotFound           = errors.New("no credentials configured")
	ErrInvalid            = errors.New("invalid credentials")
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

const masked = "***REDACTED***"

// Secret is a string that never prints its value.
type Secret string

// Value returns the secret in clear text.
func (s Secret) Value() string {
	return string(s)
}

func (s Secret) String() string {
	return masked
}

func (s Secret) GoString() string {
	return masked
}

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + masked + `"`), nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(masked), nil
}

// Credential authenticates requests to one OpenDental API deployment.
type Credential struct {
	BaseURL      string `json:"base_url" validate:"required,url"`
	DeveloperKey Secret `json:"developer_key" validate:"required"`
	CustomerKey  Secret `json:"customer_key" validate:"required"`
	Environment  string `json:"environment" validate:"omitempty,oneof=production staging dev"`
}

var validate = validator.New()

// Validate checks that both keys are present and BaseURL is an absolute
// http(s) URL.
func (c Credential) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base URL must be an absolute http or https URL", ErrInvalid)
	}
	return nil
}

// AuthorizationHeader returns the value of the Authorization header.
func (c Credential) AuthorizationHeader() string {
	return "ODFHIR " + c.DeveloperKey.Value() + "/" + c.CustomerKey.Value()
}

// EnvironmentOrDefault returns the credential's environment name.
func (c Credential) EnvironmentOrDefault() string {
	if c.Environment == "" {
		return DefaultEnvironment
	}
	return c.Environment
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (c Credential) MarshalZerologObject(e *zerolog.Event) {
	e.Str("environment", c.EnvironmentOrDefault()).
		Str("developer_key", masked).
		Str("customer_key", masked)
}

// describe names the failing fields without echoing their values.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("%s failed %q check", fe.Field(), fe.Tag())
}

// ValidEnvironment reports whether name is a known environment.
func ValidEnvironment(name string) bool {
	switch name {
	case EnvProduction, EnvStaging, EnvDev:
		return true
	}
	return false
}
