package conversation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"agent-widget-platform/internal/database"
	"agent-widget-platform/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("conversation repository: not found")

type Repository interface {
	GetAgent(ctx context.Context, agentID string) (model.AgentItem, error)
	UpdateAgentStatus(ctx context.Context, agentID string, status model.AgentStatus, updatedAt string) error
	GetCredits(ctx context.Context, tenantID string) (model.CreditsItem, error)
	GetVisitor(ctx context.Context, agentID, visitorID string) (model.VisitorItem, error)
	PutVisitor(ctx context.Context, visitor model.VisitorItem) error
	CreateConversation(ctx context.Context, conversation model.ConversationItem) error
	GetConversation(ctx context.Context, agentID, conversationID string) (model.ConversationItem, error)
	LatestConversation(ctx context.Context, agentID, visitorID string) (model.ConversationItem, error)
	UpdateConversationStatus(ctx context.Context, agentID, conversationID string, status model.ConversationStatus, takenOverBy, updatedAt string) error
	UpdateConversationActivity(ctx context.Context, agentID, conversationID, updatedAt, lastMessageAt string) error
	CreateMessage(ctx context.Context, message model.MessageItem) error
	ListMessages(ctx context.Context, agentID, conversationID string, limit int) ([]model.MessageItem, error)
	CreateUsageLog(ctx context.Context, usage model.UsageLogItem) error
	GetAppSetting(ctx context.Context, name string) (model.AppSettingItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetAgent(ctx context.Context, agentID string) (model.AgentItem, error) {
	var agent model.AgentItem
	err := r.db.Client.GetItem(
		ctx,
		model.AgentsTable,
		map[string]types.AttributeValue{
			"agentId": &types.AttributeValueMemberS{Value: agentID},
		},
		&agent,
	)
	if err != nil {
		if isNotFound(err) {
			return model.AgentItem{}, ErrNotFound
		}
		return model.AgentItem{}, err
	}
	return agent, nil
}

func (r *DynamoRepository) UpdateAgentStatus(ctx context.Context, agentID string, status model.AgentStatus, updatedAt string) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.AgentsTable,
		map[string]types.AttributeValue{
			"agentId": &types.AttributeValueMemberS{Value: agentID},
		},
		"SET #status = :status, #updatedAt = :updatedAt",
		map[string]types.AttributeValue{
			":status":    &types.AttributeValueMemberS{Value: string(status)},
			":updatedAt": &types.AttributeValueMemberS{Value: updatedAt},
		},
		map[string]string{
			"#status":    "status",
			"#updatedAt": "updatedAt",
		},
		nil,
	)
}

func (r *DynamoRepository) GetCredits(ctx context.Context, tenantID string) (model.CreditsItem, error) {
	var credits model.CreditsItem
	err := r.db.Client.GetItem(
		ctx,
		model.CreditsTable,
		map[string]types.AttributeValue{
			"tenantId": &types.AttributeValueMemberS{Value: tenantID},
		},
		&credits,
	)
	if err != nil {
		if isNotFound(err) {
			return model.CreditsItem{}, ErrNotFound
		}
		return model.CreditsItem{}, err
	}
	return credits, nil
}

func (r *DynamoRepository) GetVisitor(ctx context.Context, agentID, visitorID string) (model.VisitorItem, error) {
	var visitor model.VisitorItem
	err := r.db.Client.GetItem(
		ctx,
		model.VisitorsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.VisitorPK(agentID, visitorID)},
		},
		&visitor,
	)
	if err != nil {
		if isNotFound(err) {
			return model.VisitorItem{}, ErrNotFound
		}
		return model.VisitorItem{}, err
	}
	return visitor, nil
}

func (r *DynamoRepository) PutVisitor(ctx context.Context, visitor model.VisitorItem) error {
	return r.db.Client.PutItem(ctx, model.VisitorsTable, visitor)
}

func (r *DynamoRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	return r.db.Client.PutItem(ctx, model.ConversationsTable, conversation)
}

func (r *DynamoRepository) GetConversation(ctx context.Context, agentID, conversationID string) (model.ConversationItem, error) {
	var conversation model.ConversationItem
	err := r.db.Client.GetItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ConversationPK(agentID, conversationID)},
		},
		&conversation,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ConversationItem{}, ErrNotFound
		}
		return model.ConversationItem{}, err
	}
	return conversation, nil
}

// LatestConversation fetches the newest conversation of an (agent, visitor)
// pair from the byVisitor index, falling back to a scan when the index is
// absent (local dynamodb started without GSIs).
func (r *DynamoRepository) LatestConversation(ctx context.Context, agentID, visitorID string) (model.ConversationItem, error) {
	scanForward := false
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ConversationsTable,
		aws.String("byVisitor"),
		"visitorPk = :visitorPk",
		map[string]types.AttributeValue{
			":visitorPk": &types.AttributeValueMemberS{Value: model.VisitorPK(agentID, visitorID)},
		},
		nil,
		&scanForward,
		1,
	)
	if err != nil && !isIndexNotFound(err) {
		return model.ConversationItem{}, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.ConversationsTable,
			"visitorPk = :visitorPk",
			map[string]types.AttributeValue{
				":visitorPk": &types.AttributeValueMemberS{Value: model.VisitorPK(agentID, visitorID)},
			},
			nil,
		)
		if err != nil {
			return model.ConversationItem{}, err
		}
	}

	if len(items) == 0 {
		return model.ConversationItem{}, ErrNotFound
	}

	conversations := make([]model.ConversationItem, 0, len(items))
	for _, item := range items {
		var conversation model.ConversationItem
		if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
			return model.ConversationItem{}, err
		}
		conversations = append(conversations, conversation)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt > conversations[j].LastMessageAt
	})

	return conversations[0], nil
}

func (r *DynamoRepository) UpdateConversationStatus(ctx context.Context, agentID, conversationID string, status model.ConversationStatus, takenOverBy, updatedAt string) error {
	updateExpr := "SET #status = :status, #updatedAt = :updatedAt"
	exprValues := map[string]types.AttributeValue{
		":status":    &types.AttributeValueMemberS{Value: string(status)},
		":updatedAt": &types.AttributeValueMemberS{Value: updatedAt},
	}
	attrNames := map[string]string{
		"#status":    "status",
		"#updatedAt": "updatedAt",
	}

	if takenOverBy != "" {
		updateExpr += ", #takenOverBy = :takenOverBy"
		exprValues[":takenOverBy"] = &types.AttributeValueMemberS{Value: takenOverBy}
		attrNames["#takenOverBy"] = "takenOverBy"
	}

	return r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ConversationPK(agentID, conversationID)},
		},
		updateExpr,
		exprValues,
		attrNames,
		nil,
	)
}

func (r *DynamoRepository) UpdateConversationActivity(ctx context.Context, agentID, conversationID, updatedAt, lastMessageAt string) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ConversationPK(agentID, conversationID)},
		},
		"SET #updatedAt = :updatedAt, #lastMessageAt = :lastMessageAt",
		map[string]types.AttributeValue{
			":updatedAt":     &types.AttributeValueMemberS{Value: updatedAt},
			":lastMessageAt": &types.AttributeValueMemberS{Value: lastMessageAt},
		},
		map[string]string{
			"#updatedAt":     "updatedAt",
			"#lastMessageAt": "lastMessageAt",
		},
		nil,
	)
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

func (r *DynamoRepository) ListMessages(ctx context.Context, agentID, conversationID string, limit int) ([]model.MessageItem, error) {
	scanForward := true
	items, err := r.db.Client.QueryItems(
		ctx,
		model.MessagesTable,
		aws.String("byConversation"),
		"conversationId = :conversationId",
		map[string]types.AttributeValue{
			":conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		nil,
		&scanForward,
		0,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.MessagesTable,
			"conversationId = :conversationId",
			map[string]types.AttributeValue{
				":conversationId": &types.AttributeValueMemberS{Value: conversationID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		if message.AgentID != "" && message.AgentID != agentID {
			continue
		}
		messages = append(messages, message)
	}

	sort.Slice(messages, func(i, j int) bool {
		ti := parseTime(messages[i].CreatedAt)
		tj := parseTime(messages[j].CreatedAt)
		return ti.Before(tj)
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}

func (r *DynamoRepository) CreateUsageLog(ctx context.Context, usage model.UsageLogItem) error {
	return r.db.Client.PutItem(ctx, model.UsageLogsTable, usage)
}

func (r *DynamoRepository) GetAppSetting(ctx context.Context, name string) (model.AppSettingItem, error) {
	var setting model.AppSettingItem
	err := r.db.Client.GetItem(
		ctx,
		model.AppSettingsTable,
		map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
		&setting,
	)
	if err != nil {
		if isNotFound(err) {
			return model.AppSettingItem{}, ErrNotFound
		}
		return model.AppSettingItem{}, err
	}
	return setting, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}

func isIndexNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index") && strings.Contains(msg, "not") && strings.Contains(msg, "found")
}

func parseTime(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
