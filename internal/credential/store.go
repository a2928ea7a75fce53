package credential

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

// ServiceName is the keyring service under which credentials are stored.
const ServiceName = "opendental-audit-cli"

const currentEnvironmentKey = "current_environment"

// Source tells where a credential was loaded from.
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
)

// Store reads and writes credentials.
type Store struct {
	service string
	env     *viper.Viper
	logger  zerolog.Logger
}

// NewStore creates a store backed by the OS keyring. Environment variables
// OPENDENTAL_BASE_URL, OPENDENTAL_DEVELOPER_KEY, OPENDENTAL_CUSTOMER_KEY and
// OPENDENTAL_ENVIRONMENT are consulted when the keyring has no entry.
func NewStore(logger zerolog.Logger) *Store {
	v := viper.New()
	v.SetEnvPrefix("OPENDENTAL")
	v.SetDefault("environment", DefaultEnvironment)
	_ = v.BindEnv("base_url")
	_ = v.BindEnv("developer_key")
	_ = v.BindEnv("customer_key")
	_ = v.BindEnv("environment")

	return &Store{
		service: ServiceName,
		env:     v,
		logger:  logger,
	}
}

// Set validates c and stores it under its environment, which becomes the
// current environment.
func (s *Store) Set(c Credential) error {
	if err := c.Validate(); err != nil {
		return err
	}
	environment := c.EnvironmentOrDefault()

	entries := []struct{ key, value string }{
		{environment + "_base_url", c.BaseURL},
		{environment + "_developer_key", c.DeveloperKey.Value()},
		{environment + "_customer_key", c.CustomerKey.Value()},
		{currentEnvironmentKey, environment},
	}
	for _, e := range entries {
		if err := keyring.Set(s.service, e.key, e.value); err != nil {
			return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
		}
	}

	s.logger.Info().Str("environment", environment).Msg("credentials stored in keyring")
	return nil
}

// Get returns the credential for environment. An empty environment selects
// the stored current environment. The keyring is tried first; environment
// variables are the fallback.
func (s *Store) Get(environment string) (Credential, Source, error) {
	c, err := s.fromKeyring(environment)
	switch {
	case err == nil:
		if verr := c.Validate(); verr != nil {
			return Credential{}, SourceKeyring, verr
		}
		return c, SourceKeyring, nil
	case errors.Is(err, ErrNotFound):
	default:
		s.logger.Debug().Msg("keyring unavailable")
	}

	c, err = s.fromEnv()
	if err != nil {
		return Credential{}, "", err
	}
	s.logger.Warn().Msg("using environment variables for credentials, OS keyring is recommended")
	if err := c.Validate(); err != nil {
		return Credential{}, SourceEnvironment, err
	}
	return c, SourceEnvironment, nil
}

// Exists reports whether a credential is available for environment.
func (s *Store) Exists(environment string) bool {
	if _, err := s.fromKeyring(environment); err == nil {
		return true
	}
	_, err := s.fromEnv()
	return err == nil
}

// CurrentEnvironment returns the environment last stored with Set.
func (s *Store) CurrentEnvironment() (string, error) {
	environment, err := keyring.Get(s.service, currentEnvironmentKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return environment, nil
}

func (s *Store) fromKeyring(environment string) (Credential, error) {
	if environment == "" {
		current, err := s.CurrentEnvironment()
		if err != nil {
			return Credential{}, err
		}
		environment = current
	}

	values := make([]string, 3)
	for i, suffix := range []string{"_base_url", "_developer_key", "_customer_key"} {
		value, err := keyring.Get(s.service, environment+suffix)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return Credential{}, ErrNotFound
			}
			return Credential{}, fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
		}
		if value == "" {
			return Credential{}, ErrNotFound
		}
		values[i] = value
	}

	return Credential{
		BaseURL:      values[0],
		DeveloperKey: Secret(values[1]),
		CustomerKey:  Secret(values[2]),
		Environment:  environment,
	}, nil
}

func (s *Store) fromEnv() (Credential, error) {
	c := Credential{
		BaseURL:      s.env.GetString("base_url"),
		DeveloperKey: Secret(s.env.GetString("developer_key")),
		CustomerKey:  Secret(s.env.GetString("customer_key")),
		Environment:  s.env.GetString("environment"),
	}
	if c.BaseURL == "" || c.DeveloperKey == "" || c.CustomerKey == "" {
		return Credential{}, fmt.Errorf("%w: run 'odaudit config set-credentials' or set OPENDENTAL_BASE_URL, OPENDENTAL_DEVELOPER_KEY and OPENDENTAL_CUSTOMER_KEY", ErrNotFound)
	}
	return c, nil
}
