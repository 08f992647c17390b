package bserver

import (
	"context"
	"crypto/tls"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// SecretReader abstracts secret retrieval for testability and flexibility.
type SecretReader interface {
	GetSecretString(ctx context.Context, secretID string) (string, error)
}

// AWSSecretReader implements SecretReader using AWS Secrets Manager caching client.
type AWSSecretReader struct {
	cache *secretcache.Cache
}

// NewAWSSecretReader creates a new AWSSecretReader using the provided AWS config.
func NewAWSSecretReader(cfg aws.Config) (*AWSSecretReader, error) {
	client := secretsmanager.NewFromConfig(cfg)

	cache, err := secretcache.New(
		func(c *secretcache.Cache) {
			c.Client = client
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create secret cache")
	}

	return &AWSSecretReader{cache: cache}, nil
}

// GetSecretString retrieves a secret value from AWS Secrets Manager with caching.
func (r *AWSSecretReader) GetSecretString(ctx context.Context, secretID string) (string, error) {
	secret, err := r.cache.GetSecretStringWithContext(ctx, secretID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to get secret %q", secretID)
	}

	return secret, nil
}

// secretFromReader retrieves a secret value, optionally extracting a JSON path.
// If jsonPath is empty, the raw secret string is returned.
func secretFromReader(ctx context.Context, reader SecretReader, secretID, jsonPath string) (string, error) {
	secret, err := reader.GetSecretString(ctx, secretID)
	if err != nil {
		return "", err
	}

	if jsonPath == "" {
		return secret, nil
	}

	result := gjson.Get(secret, jsonPath)
	if !result.Exists() {
		return "", errors.Errorf("secret path %q not found in secret %q", jsonPath, secretID)
	}

	return result.String(), nil
}

// lazySecretReader postpones creating the AWS client until a secret is read, so servers without
// secret-backed TLS never load AWS configuration.
type lazySecretReader struct {
	load func() (SecretReader, error)
}

func (r lazySecretReader) GetSecretString(ctx context.Context, secretID string) (string, error) {
	sr, err := r.load()
	if err != nil {
		return "", err
	}

	return sr.GetSecretString(ctx, secretID)
}

// LoadTLSConfig builds the server TLS configuration from the environment. It returns nil when no TLS
// material is configured. The certificate and key either come from files or from a secret.
func LoadTLSConfig(ctx context.Context, env Environment, secrets SecretReader) (*tls.Config, error) {
	e := env.base()

	var (
		cert tls.Certificate
		err  error
	)

	switch {
	case e.TLSCertFile != "":
		cert, err = tls.LoadX509KeyPair(e.TLSCertFile, e.TLSKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load key pair")
		}
	case e.TLSSecretID != "":
		certPEM, err := secretFromReader(ctx, secrets, e.TLSSecretID, e.TLSSecretCertKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read certificate")
		}

		keyPEM, err := secretFromReader(ctx, secrets, e.TLSSecretID, e.TLSSecretKeyKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read key")
		}

		cert, err = tls.X509KeyPair([]byte(certPEM), []byte(keyPEM))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse key pair from secret")
		}
	default:
		return nil, nil //nolint:nilnil
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
	}, nil
}
