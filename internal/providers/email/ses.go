package email

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type SESProvider struct {
	client *sesv2.Client
	from   string
}

func NewSES(ctx context.Context, region, from string) (*SESProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return &SESProvider{client: sesv2.NewFromConfig(cfg), from: from}, nil
}

// Send ships the raw MIME message so attachments travel with it.
func (p *SESProvider) Send(ctx context.Context, msg Message) error {
	raw, err := buildMIME(p.from, msg)
	if err != nil {
		return err
	}
	_, err = p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &p.from,
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}
