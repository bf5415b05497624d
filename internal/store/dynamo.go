package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ignite/feedback-processor/internal/domain"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Item is the single-table key wrapper for records stored as JSON blobs.
type Item struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
	TTL       int64  `dynamodbav:"TTL,omitempty"`
}

// DynamoStore implements Store on a single DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// NewDynamoStore creates a store on the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}
}

func deliveryKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "DELIVERY#" + id},
		"SK": &types.AttributeValueMemberS{Value: "RECORD"},
	}
}

func subscriberKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "SUBSCRIBER#" + id},
		"SK": &types.AttributeValueMemberS{Value: "RECORD"},
	}
}

// GetDelivery loads a delivery record stored as native attributes.
func (s *DynamoStore) GetDelivery(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       deliveryKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("getting delivery from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var rec domain.DeliveryRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("%w: delivery %s: %v", ErrCorruptRecord, id, err)
	}
	rec.ID = id
	return &rec, nil
}

// UpsertDelivery patches the delivery record with the event's field set.
// CreatedAt is written through if_not_exists so the first writer wins; every
// other listed field is overwritten unconditionally.
func (s *DynamoStore) UpsertDelivery(ctx context.Context, id string, fields DeliveryFields) error {
	expr, names, values := buildDeliveryUpdate(fields, s.now().UTC())

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       deliveryKey(id),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("upserting delivery %s: %w", id, err)
	}
	return nil
}

// statusTimestampAttr maps a delivery status to the attribute holding its
// transition time. Statuses this pipeline never writes return "".
func statusTimestampAttr(status domain.DeliveryStatus) string {
	switch status {
	case domain.DeliverySent:
		return "SentAt"
	case domain.DeliveryDelivered:
		return "DeliveredAt"
	case domain.DeliveryBounced:
		return "BouncedAt"
	case domain.DeliveryComplained:
		return "ComplainedAt"
	case domain.DeliveryRejected:
		return "RejectedAt"
	}
	return ""
}

func buildDeliveryUpdate(fields DeliveryFields, now time.Time) (string, map[string]string, map[string]types.AttributeValue) {
	parts := []string{
		"CreatedAt = if_not_exists(CreatedAt, :now)",
		"UpdatedAt = :now",
		"#status = :status",
	}
	names := map[string]string{"#status": "Status"}
	values := map[string]types.AttributeValue{
		":now":    &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":status": &types.AttributeValueMemberS{Value: string(fields.Status)},
	}

	if attr := statusTimestampAttr(fields.Status); attr != "" {
		parts = append(parts, attr+" = :statusAt")
		values[":statusAt"] = &types.AttributeValueMemberS{Value: fields.StatusAt.UTC().Format(time.RFC3339)}
	}
	if fields.CampaignID != "" {
		parts = append(parts, "CampaignID = :campaign")
		values[":campaign"] = &types.AttributeValueMemberS{Value: fields.CampaignID}
	}
	if fields.SubscriberID != "" {
		parts = append(parts, "SubscriberID = :subscriber")
		values[":subscriber"] = &types.AttributeValueMemberS{Value: fields.SubscriberID}
	}
	if fields.BounceReason != "" {
		parts = append(parts, "BounceReason = :reason")
		values[":reason"] = &types.AttributeValueMemberS{Value: fields.BounceReason}
	}
	if fields.AttemptCount != nil {
		parts = append(parts, "AttemptCount = :attempts")
		values[":attempts"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", *fields.AttemptCount)}
	}
	if fields.ProviderMessageID != "" {
		parts = append(parts, "ProviderMessageID = :messageId")
		values[":messageId"] = &types.AttributeValueMemberS{Value: fields.ProviderMessageID}
	}

	return "SET " + strings.Join(parts, ", "), names, values
}

// GetSubscriber loads a subscriber record stored as a JSON blob.
func (s *DynamoStore) GetSubscriber(ctx context.Context, id string) (*domain.Subscriber, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       subscriberKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("getting subscriber from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item Item
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("%w: subscriber %s: %v", ErrCorruptRecord, id, err)
	}
	var sub domain.Subscriber
	if err := json.Unmarshal([]byte(item.Data), &sub); err != nil {
		return nil, fmt.Errorf("%w: subscriber %s: %v", ErrCorruptRecord, id, err)
	}
	return &sub, nil
}

// PutSubscriber overwrites the subscriber record.
func (s *DynamoStore) PutSubscriber(ctx context.Context, sub *domain.Subscriber) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshaling subscriber: %w", err)
	}

	item := Item{
		PK:        "SUBSCRIBER#" + sub.ID,
		SK:        "RECORD",
		Data:      string(data),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	return s.putItem(ctx, item, "subscriber")
}

// PutAuditEvents appends audit trail records, one item per event, keyed by
// the entity they concern and sorted by occurrence time.
func (s *DynamoStore) PutAuditEvents(ctx context.Context, events []domain.AuditEvent) error {
	for _, evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshaling audit event: %w", err)
		}

		item := Item{
			PK:        fmt.Sprintf("AUDIT#%s#%s", evt.EntityType, evt.EntityID),
			SK:        fmt.Sprintf("%s#%s", evt.OccurredAt.UTC().Format(time.RFC3339), evt.ID),
			Data:      string(data),
			Timestamp: evt.OccurredAt.UTC().Format(time.RFC3339),
		}
		if err := s.putItem(ctx, item, "audit event"); err != nil {
			return err
		}
	}
	return nil
}

// PutEngagementEvents appends engagement telemetry records with a retention
// expiry computed at write time. The table's TTL attribute handles purging.
func (s *DynamoStore) PutEngagementEvents(ctx context.Context, events []domain.EngagementEvent, ttlDays int) error {
	for _, evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshaling engagement event: %w", err)
		}

		item := Item{
			PK:        "ENGAGEMENT#" + evt.SubscriberID,
			SK:        fmt.Sprintf("%s#%s", evt.OccurredAt.UTC().Format(time.RFC3339), evt.ID),
			Data:      string(data),
			Timestamp: evt.OccurredAt.UTC().Format(time.RFC3339),
			TTL:       evt.OccurredAt.Add(time.Duration(ttlDays) * 24 * time.Hour).Unix(),
		}
		if err := s.putItem(ctx, item, "engagement event"); err != nil {
			return err
		}
	}
	return nil
}

func (s *DynamoStore) putItem(ctx context.Context, item Item, kind string) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling %s item: %w", kind, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting %s to DynamoDB: %w", kind, err)
	}
	return nil
}
