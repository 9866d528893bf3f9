// Package sms delivers text messages through Amazon SNS.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const (
	senderIDAttribute = "AWS.SNS.SMS.SenderID"
	smsTypeAttribute  = "AWS.SNS.SMS.SMSType"
	transactional     = "Transactional"
)

// snsAPI is the minimal SNS interface required by Sender.
// *sns.Client satisfies this interface.
type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender publishes transactional SMS messages.
type Sender struct {
	api      snsAPI
	senderID string
}

// New creates a Sender. senderID is optional and shown as the message
// origin where carriers support it.
func New(api snsAPI, senderID string) (*Sender, error) {
	if api == nil {
		return nil, errors.New("sms: api must not be nil")
	}
	return &Sender{api: api, senderID: strings.TrimSpace(senderID)}, nil
}

// Send delivers message to phone, an E.164 number.
func (s *Sender) Send(ctx context.Context, message, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return errors.New("sms: phone number is required")
	}
	if message == "" {
		return errors.New("sms: message is required")
	}

	attrs := map[string]types.MessageAttributeValue{
		smsTypeAttribute: {DataType: aws.String("String"), StringValue: aws.String(transactional)},
	}
	if s.senderID != "" {
		attrs[senderIDAttribute] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}

	if _, err := s.api.Publish(ctx, &sns.PublishInput{
		Message:           aws.String(message),
		PhoneNumber:       aws.String(phone),
		MessageAttributes: attrs,
	}); err != nil {
		return fmt.Errorf("sms: publish: %w", err)
	}
	return nil
}
