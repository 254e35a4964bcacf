package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms/bedrock"

	"github.com/raphaelgruber/recap/internal/models"
)

type bedrockProvider struct {
	cfg ProviderConfig
}

func newBedrock(cfg ProviderConfig) (Provider, error) {
	return &bedrockProvider{cfg: cfg}, nil
}

// Chat implements Provider using AWS Bedrock. A credential of the form
// "ACCESS_KEY_ID:SECRET" is used as static credentials; otherwise the AWS
// default chain applies.
func (p *bedrockProvider) Chat(ctx context.Context, messages []models.ChatMessage) (Reply, error) {
	awsCfg, err := p.loadConfig(ctx)
	if err != nil {
		return Reply{}, err
	}

	model, err := bedrock.New(
		bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
		bedrock.WithModel(p.cfg.Model),
	)
	if err != nil {
		return Reply{}, providerError(Bedrock, fmt.Errorf("create model: %w", err))
	}
	return generate(ctx, Bedrock, model, messages)
}

func (p *bedrockProvider) loadConfig(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if p.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(p.cfg.Region))
	}
	if p.cfg.APIKey != "" {
		id, secret, ok := strings.Cut(p.cfg.APIKey, ":")
		if !ok || id == "" || secret == "" {
			return aws.Config{}, fmt.Errorf("%w: bedrock credential must be ACCESS_KEY_ID:SECRET", ErrCredentialMissing)
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(id, secret, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, providerError(Bedrock, fmt.Errorf("load aws config: %w", err))
	}
	return awsCfg, nil
}
