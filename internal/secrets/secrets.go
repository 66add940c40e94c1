// Package secrets resolves sensitive configuration values — the wallet
// RPC basic-auth password, the webhook shared secret, the KV auth
// password — from either the process environment or AWS Secrets Manager,
// selected by config.SecretsConfig.Provider.
package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Provider resolves a named secret to its current value.
type Provider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvProvider reads secrets directly from the process environment — the
// default, requiring no external dependency for local and single-node
// deployments.
type EnvProvider struct{}

// NewEnvProvider builds an EnvProvider.
func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

// GetSecret returns the environment variable named name, or an error if unset.
func (p *EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", fmt.Errorf("secret %q not set in environment", name)
	}
	return v, nil
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// AWSSecretsManagerProvider resolves secrets from AWS Secrets Manager,
// prefixing every lookup and caching results for cacheTTL to bound the
// number of calls against a polling service's steady-state load.
type AWSSecretsManagerProvider struct {
	client   *secretsmanager.Client
	prefix   string
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cachedSecret
}

// NewAWSSecretsManagerProvider builds an AWSSecretsManagerProvider for the
// given region, prefixing every secret name with prefix.
func NewAWSSecretsManagerProvider(ctx context.Context, region, prefix string, cacheTTL time.Duration) (*AWSSecretsManagerProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AWSSecretsManagerProvider{
		client:   secretsmanager.NewFromConfig(cfg),
		prefix:   prefix,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedSecret),
	}, nil
}

// GetSecret returns the named secret's current string value, using the
// cache when still fresh.
func (p *AWSSecretsManagerProvider) GetSecret(ctx context.Context, name string) (string, error) {
	p.mu.RLock()
	if cached, ok := p.cache[name]; ok && time.Now().Before(cached.expiresAt) {
		p.mu.RUnlock()
		return cached.value, nil
	}
	p.mu.RUnlock()

	secretName := p.prefix + name
	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}

	var value string
	if result.SecretString != nil {
		value = *result.SecretString
	}

	p.mu.Lock()
	p.cache[name] = cachedSecret{value: value, expiresAt: time.Now().Add(p.cacheTTL)}
	p.mu.Unlock()

	return value, nil
}

// New selects a Provider by name ("aws" or anything else => env), per
// config.SecretsConfig.
func New(ctx context.Context, providerName, awsRegion string) (Provider, error) {
	if providerName == "aws" {
		return NewAWSSecretsManagerProvider(ctx, awsRegion, "zano/deposit-watcher/", 5*time.Minute)
	}
	return NewEnvProvider(), nil
}
