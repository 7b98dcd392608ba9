package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"

	"github.com/dropDatabas3/portero/internal/observability/logger"
)

// SecretGetter es el subconjunto de secretsmanager.Client que usamos.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadEnv carga el secreto JSON de AWS Secrets Manager (si hay
// AWS_SECRETS_MANAGER_SECRET_ID) y luego el archivo .env. Ninguno de los
// dos es obligatorio; los fallos se loguean y se sigue con el entorno actual.
func LoadEnv(ctx context.Context, envPath string) {
	log := logger.L().With(logger.Component("config"))

	if id := secretID(); id != "" {
		client, err := newSecretsClient(ctx)
		if err != nil {
			log.Warn("aws config unavailable, skipping secrets", logger.Err(err))
		} else if n, err := applySecret(ctx, client, id, overwriteFromEnv()); err != nil {
			log.Warn("secrets manager load failed", logger.String("secret_id", id), logger.Err(err))
		} else {
			log.Info("secrets manager loaded", logger.String("secret_id", id), logger.Int("applied", n))
		}
	}

	if envPath == "" {
		envPath = ".env"
	}
	if err := godotenv.Load(envPath); err != nil {
		log.Debug(".env not loaded", logger.String("path", envPath), logger.Err(err))
	}
}

func secretID() string {
	if v := os.Getenv("AWS_SECRETS_MANAGER_SECRET_ID"); v != "" {
		return v
	}
	return os.Getenv("AWS_SECRET_ID")
}

func overwriteFromEnv() bool {
	return strings.EqualFold(os.Getenv("AWS_SECRETS_MANAGER_OVERWRITE"), "true")
}

func newSecretsClient(ctx context.Context) (*secretsmanager.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := os.Getenv("AWS_SECRETS_MANAGER_REGION"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// applySecret lee un secreto JSON plano {"KEY":"value"} y lo vuelca al
// entorno. Sin overwrite no pisa variables ya definidas. Retorna cuántas aplicó.
func applySecret(ctx context.Context, client SecretGetter, id string, overwrite bool) (int, error) {
	stage := os.Getenv("AWS_SECRETS_MANAGER_VERSION_STAGE")
	if stage == "" {
		stage = "AWSCURRENT"
	}
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(id),
		VersionStage: aws.String(stage),
	})
	if err != nil {
		return 0, fmt.Errorf("fetch secret %s: %w", id, err)
	}

	var payload []byte
	switch {
	case out.SecretString != nil:
		payload = []byte(*out.SecretString)
	case len(out.SecretBinary) > 0:
		payload = out.SecretBinary
	default:
		return 0, fmt.Errorf("secret %s has no payload", id)
	}

	var kv map[string]any
	if err := json.Unmarshal(payload, &kv); err != nil {
		return 0, fmt.Errorf("secret %s is not a JSON object: %w", id, err)
	}

	applied := 0
	for k, v := range kv {
		if !overwrite && os.Getenv(k) != "" {
			continue
		}
		if err := os.Setenv(k, fmt.Sprint(v)); err != nil {
			return applied, fmt.Errorf("set env %s: %w", k, err)
		}
		applied++
	}
	return applied, nil
}
