package eventbridge

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
)

// NewClient creates an EventBridge client from the ambient AWS configuration
func NewClient(ctx context.Context, region string) (*eventbridge.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return eventbridge.NewFromConfig(awsCfg), nil
}
