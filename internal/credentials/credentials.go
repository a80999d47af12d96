// Package credentials loads the service-account identity used to sign token
// assertions.
package credentials

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boukath/cina/services/push_service/pkg/pusherr"
)

// ServiceAccountCredential is the immutable signing identity of the service.
// Its private key must never be logged or returned to callers.
type ServiceAccountCredential struct {
	Issuer            string
	ProjectIdentifier string
	KeyID             string
	// TokenURI is the token endpoint named by the key file, if any.
	TokenURI   string
	privateKey *rsa.PrivateKey
}

// serviceAccountFile mirrors the JSON key file issued by the cloud console.
type serviceAccountFile struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// Parse decodes a service-account JSON blob and imports its RSA key.
func Parse(raw []byte) (*ServiceAccountCredential, error) {
	var file serviceAccountFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, pusherr.Configuration("credentials.parse", fmt.Errorf("service account is not valid JSON: %w", err))
	}

	var missing []string
	if file.ClientEmail == "" {
		missing = append(missing, "client_email")
	}
	if file.PrivateKey == "" {
		missing = append(missing, "private_key")
	}
	if file.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if len(missing) > 0 {
		return nil, pusherr.Configuration("credentials.parse", fmt.Errorf("service account missing fields: %v", missing))
	}

	key, err := ParsePrivateKey(file.PrivateKey)
	if err != nil {
		return nil, err
	}

	return &ServiceAccountCredential{
		Issuer:            file.ClientEmail,
		ProjectIdentifier: file.ProjectID,
		KeyID:             file.PrivateKeyID,
		TokenURI:          file.TokenURI,
		privateKey:        key,
	}, nil
}

// New builds a credential from an already imported key.
func New(issuer, projectID string, key *rsa.PrivateKey) (*ServiceAccountCredential, error) {
	if issuer == "" || projectID == "" {
		return nil, pusherr.Configuration("credentials.new", fmt.Errorf("issuer and project id are required"))
	}
	if key == nil {
		return nil, pusherr.Credential("credentials.new", fmt.Errorf("private key is nil"))
	}
	return &ServiceAccountCredential{
		Issuer:            issuer,
		ProjectIdentifier: projectID,
		privateKey:        key,
	}, nil
}

// ParsePrivateKey imports a PEM encoded RSA key (PKCS#8 or PKCS#1).
// Keys copied through environment variables often arrive with escaped
// newlines, which are restored first.
func ParsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	if !strings.Contains(pemKey, "\n") && strings.Contains(pemKey, `\n`) {
		pemKey = strings.ReplaceAll(pemKey, `\n`, "\n")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, pusherr.Credential("credentials.key", err)
	}
	return key, nil
}

// PrivateKey returns the signing key.
func (c *ServiceAccountCredential) PrivateKey() *rsa.PrivateKey {
	return c.privateKey
}

// CacheKey identifies the credential for token caching.
func (c *ServiceAccountCredential) CacheKey() string {
	return c.Issuer + "|" + c.ProjectIdentifier
}

// String never prints the key.
func (c *ServiceAccountCredential) String() string {
	return fmt.Sprintf("ServiceAccount(%s, project=%s)", c.Issuer, c.ProjectIdentifier)
}
