package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ClaimMessage records an inbound message id for senderID. It returns false
// when the id was already recorded, meaning the delivery is a retry.
func (c *Client) ClaimMessage(ctx context.Context, senderID, messageID string) (bool, error) {
	if strings.TrimSpace(senderID) == "" || strings.TrimSpace(messageID) == "" {
		return false, errors.New("repository: ClaimMessage: sender and message id are required")
	}
	now := c.now().UTC()
	item := key(senderPK(senderID), msgSK(messageID))
	item["receivedAt"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(messageTTL).Unix(), 10)}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           c.table(),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("repository: ClaimMessage: %w", err)
	}
	return true, nil
}
