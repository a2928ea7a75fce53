package credential_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odaudit/odaudit/internal/credential"
)

func validCredential() credential.Credential {
	return credential.Credential{
		BaseURL:      "https://example.opendental.com/api/v1",
		DeveloperKey: "dev-key-123",
		CustomerKey:  "cust-key-456",
		Environment:  credential.EnvProduction,
	}
}

func TestCredential_AuthorizationHeader(t *testing.T) {
	c := validCredential()
	assert.Equal(t, "ODFHIR dev-key-123/cust-key-456", c.AuthorizationHeader())
}

func TestCredential_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *credential.Credential)
		wantErr bool
	}{
		{name: "valid", mutate: func(*credential.Credential) {}},
		{name: "empty environment", mutate: func(c *credential.Credential) { c.Environment = "" }},
		{name: "http allowed", mutate: func(c *credential.Credential) { c.BaseURL = "http://localhost:8080" }},
		{name: "missing developer key", mutate: func(c *credential.Credential) { c.DeveloperKey = "" }, wantErr: true},
		{name: "missing customer key", mutate: func(c *credential.Credential) { c.CustomerKey = "" }, wantErr: true},
		{name: "missing base url", mutate: func(c *credential.Credential) { c.BaseURL = "" }, wantErr: true},
		{name: "relative url", mutate: func(c *credential.Credential) { c.BaseURL = "/api/v1" }, wantErr: true},
		{name: "ftp scheme", mutate: func(c *credential.Credential) { c.BaseURL = "ftp://example.com" }, wantErr: true},
		{name: "unknown environment", mutate: func(c *credential.Credential) { c.Environment = "qa" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCredential()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, credential.ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCredential_ValidateDoesNotLeakKeys(t *testing.T) {
	c := validCredential()
	c.BaseURL = "not a url"

	err := c.Validate()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "dev-key-123")
	assert.NotContains(t, err.Error(), "cust-key-456")
}

func TestCredential_NeverPrintsKeys(t *testing.T) {
	c := validCredential()

	outputs := []string{
		fmt.Sprintf("%v", c),
		fmt.Sprintf("%+v", c),
		fmt.Sprintf("%#v", c),
		c.DeveloperKey.String(),
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)
	outputs = append(outputs, string(data))

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Object("credential", c).Msg("loaded")
	outputs = append(outputs, buf.String())

	for _, out := range outputs {
		assert.NotContains(t, out, "dev-key-123")
		assert.NotContains(t, out, "cust-key-456")
	}
	assert.Contains(t, string(data), "***REDACTED***")
}

func TestValidEnvironment(t *testing.T) {
	assert.True(t, credential.ValidEnvironment("production"))
	assert.True(t, credential.ValidEnvironment("staging"))
	assert.True(t, credential.ValidEnvironment("dev"))
	assert.False(t, credential.ValidEnvironment("prod"))
}
