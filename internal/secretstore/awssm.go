package secretstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	kerrors "github.com/systmms/keyrotor/internal/errors"
	"github.com/systmms/keyrotor/internal/logging"
)

// SecretsManagerAPI is the subset of AWS Secrets Manager operations the
// store needs. Split out so tests can inject a fake.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// AWSSecretsManagerStore keeps the credential envelope as a JSON object
// in the secret string.
type AWSSecretsManagerStore struct {
	name   string
	client SecretsManagerAPI
	region string
	logger *logging.Logger
}

// AWSOption is a functional option for configuring the store.
type AWSOption func(*AWSSecretsManagerStore)

// WithSecretsManagerClient sets a custom client (for testing).
func WithSecretsManagerClient(client SecretsManagerAPI) AWSOption {
	return func(s *AWSSecretsManagerStore) {
		s.client = client
	}
}

// NewAWSSecretsManagerStore creates a store backed by AWS Secrets Manager.
// region, endpoint and static credentials are read from the raw config;
// endpoint and static credentials exist for LocalStack testing.
func NewAWSSecretsManagerStore(name string, storeConfig map[string]interface{}, logger *logging.Logger, opts ...AWSOption) (*AWSSecretsManagerStore, error) {
	region := "us-east-1"
	if r, ok := storeConfig["region"].(string); ok && r != "" {
		region = r
	}

	var endpoint string
	if e, ok := storeConfig["endpoint"].(string); ok && e != "" {
		endpoint = e
	}

	var accessKeyID, secretAccessKey string
	if ak, ok := storeConfig["access_key_id"].(string); ok && ak != "" {
		accessKeyID = ak
	}
	if sk, ok := storeConfig["secret_access_key"].(string); ok && sk != "" {
		secretAccessKey = sk
	}

	s := &AWSSecretsManagerStore{
		name:   name,
		region: region,
		logger: logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		configOpts = append(configOpts, awsconfig.WithRegion(region))

		if accessKeyID != "" && secretAccessKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
			))
		}

		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}

	return s, nil
}

// Name returns the store's configured name.
func (s *AWSSecretsManagerStore) Name() string {
	return s.name
}

// ReadCredential fetches and decodes the JSON envelope at the secret name.
func (s *AWSSecretsManagerStore) ReadCredential(ctx context.Context, path string) (map[string]string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, kerrors.NotFoundError{Store: s.name, Path: path}
		}
		return nil, kerrors.StoreError{Store: s.name, Path: path, Message: "GetSecretValue failed", Err: err}
	}
	if out.SecretString == nil {
		return nil, kerrors.StoreError{Store: s.name, Path: path, Message: "secret has no string value"}
	}

	var data map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &data); err != nil {
		return nil, kerrors.StoreError{
			Store:      s.name,
			Path:       path,
			Message:    "secret string is not a JSON object",
			Suggestion: "Store the credential as {\"access_key_id\": ..., \"secret_key\": ...}",
			Err:        err,
		}
	}
	return data, nil
}

// WriteCredential replaces the secret string with the JSON-encoded mapping.
func (s *AWSSecretsManagerStore) WriteCredential(ctx context.Context, path string, data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return kerrors.StoreError{Store: s.name, Path: path, Message: "failed to encode secret data", Err: err}
	}

	s.logger.Debug("updating secret %s in %s", path, s.region)

	_, err = s.client.UpdateSecret(ctx, &secretsmanager.UpdateSecretInput{
		SecretId:     aws.String(path),
		SecretString: aws.String(string(raw)),
	})
	if err != nil {
		return kerrors.StoreError{
			Store:      s.name,
			Path:       path,
			Message:    "UpdateSecret failed",
			Suggestion: "The identity service now holds two active keys; re-run the rotation once the store is healthy",
			Err:        err,
		}
	}
	return nil
}

// Validate checks the store is reachable with the configured credentials.
func (s *AWSSecretsManagerStore) Validate(ctx context.Context) error {
	_, err := s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("aws secrets manager store %s: %w", s.name, err)
	}
	return nil
}
