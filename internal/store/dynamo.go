package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-to-post/internal/post"
)

// DynamoDB key constants for the single-table design. Stage partitions hold
// one record per post; the archive partitions hold published posts keyed by
// publish year/month. Attempt records live under a dedicated partition so
// they can be created and discarded independently of the post record.
const (
	stagePKPrefix   = "STAGE#"
	archivePKPrefix = "ARCHIVE#"
	attemptPK       = "ATTEMPTS"
	postSKPrefix    = "POST#"
)

// DynamoStore implements PostStore using AWS DynamoDB.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// Compile-time interface check.
var _ PostStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// --- Key helpers ---

func stagePK(status post.Status) string {
	return stagePKPrefix + string(status)
}

func archivePK(year int, month time.Month) string {
	return fmt.Sprintf("%s%04d-%02d", archivePKPrefix, year, int(month))
}

// postPK returns the partition a post record lives in for its current
// status. Published posts are archived by actual publish time, not
// scheduled time.
func postPK(p *post.Post) string {
	if p.Status == post.StatusPublished && p.PublishedAt != nil {
		return archivePK(p.PublishedAt.Year(), p.PublishedAt.Month())
	}
	return stagePK(p.Status)
}

// --- Internal helpers ---

func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

func (s *DynamoStore) deleteItem(ctx context.Context, pk, sk string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return fmt.Errorf("DeleteItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// queryPartition returns all post records in one partition, following
// pagination — DynamoDB returns up to 1MB per Query call.
func (s *DynamoStore) queryPartition(ctx context.Context, pk string) ([]*post.Post, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: pk},
			":skPrefix": &types.AttributeValueMemberS{Value: postSKPrefix},
		},
	}

	var posts []*post.Post
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s: %w", pk, err)
		}
		for _, item := range result.Items {
			var p post.Post
			if err := attributevalue.UnmarshalMap(item, &p); err != nil {
				log.Warn().Err(err).Str("pk", pk).Msg("Failed to unmarshal post record, skipping")
				continue
			}
			if skAttr, ok := item["SK"].(*types.AttributeValueMemberS); ok {
				p.ID = strings.TrimPrefix(skAttr.Value, postSKPrefix)
			}
			posts = append(posts, &p)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return posts, nil
}

// --- Post operations ---

func (s *DynamoStore) CreatePost(ctx context.Context, p *post.Post) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if err := s.putItem(ctx, postPK(p), postSKPrefix+p.ID, p); err != nil {
		return fmt.Errorf("create post %s: %w", p.ID, err)
	}
	log.Debug().Str("postId", p.ID).Str("status", string(p.Status)).Msg("Post persisted to DynamoDB")
	return nil
}

func (s *DynamoStore) GetPost(ctx context.Context, id string) (*post.Post, error) {
	for _, stage := range []post.Status{post.StatusDraft, post.StatusApproved, post.StatusScheduled, post.StatusFailed} {
		var p post.Post
		found, err := s.getItem(ctx, stagePK(stage), postSKPrefix+id, &p)
		if err != nil {
			return nil, fmt.Errorf("get post %s: %w", id, err)
		}
		if found {
			p.ID = id
			return &p, nil
		}
	}

	// Published posts live under archive partitions; walk the recent window.
	now := time.Now()
	for i := 0; i < ArchiveWindowMonths; i++ {
		at := now.AddDate(0, -i, 0)
		var p post.Post
		found, err := s.getItem(ctx, archivePK(at.Year(), at.Month()), postSKPrefix+id, &p)
		if err != nil {
			return nil, fmt.Errorf("get archived post %s: %w", id, err)
		}
		if found {
			p.ID = id
			return &p, nil
		}
	}
	return nil, nil
}

func (s *DynamoStore) ListByStatus(ctx context.Context, status post.Status) ([]*post.Post, error) {
	if status != post.StatusPublished {
		return s.queryPartition(ctx, stagePK(status))
	}

	var all []*post.Post
	now := time.Now()
	for i := ArchiveWindowMonths - 1; i >= 0; i-- {
		at := now.AddDate(0, -i, 0)
		posts, err := s.queryPartition(ctx, archivePK(at.Year(), at.Month()))
		if err != nil {
			return nil, err
		}
		all = append(all, posts...)
	}
	return all, nil
}

func (s *DynamoStore) SavePost(ctx context.Context, p *post.Post) error {
	if err := s.putItem(ctx, postPK(p), postSKPrefix+p.ID, p); err != nil {
		return fmt.Errorf("save post %s: %w", p.ID, err)
	}
	log.Debug().Str("postId", p.ID).Str("status", string(p.Status)).Msg("Post record updated")
	return nil
}

func (s *DynamoStore) UpdateStatus(ctx context.Context, p *post.Post, to post.Status) error {
	oldPK := postPK(p)
	if err := p.Transition(to); err != nil {
		return err
	}

	if err := s.putItem(ctx, postPK(p), postSKPrefix+p.ID, p); err != nil {
		return fmt.Errorf("move post %s to %s: %w", p.ID, to, err)
	}
	if err := s.deleteItem(ctx, oldPK, postSKPrefix+p.ID); err != nil {
		return fmt.Errorf("remove post %s from %s: %w", p.ID, oldPK, err)
	}

	log.Info().
		Str("postId", p.ID).
		Str("status", string(to)).
		Str("partition", postPK(p)).
		Msg("Post moved between stage partitions")
	return nil
}

func (s *DynamoStore) ListArchive(ctx context.Context, year int, month time.Month) ([]*post.Post, error) {
	return s.queryPartition(ctx, archivePK(year, month))
}

// --- Publish attempt operations ---

func (s *DynamoStore) GetAttempt(ctx context.Context, postID string) (*post.PublishAttempt, error) {
	var a post.PublishAttempt
	found, err := s.getItem(ctx, attemptPK, postSKPrefix+postID, &a)
	if err != nil {
		return nil, fmt.Errorf("get attempt %s: %w", postID, err)
	}
	if !found {
		return nil, nil
	}
	a.PostID = postID
	return &a, nil
}

func (s *DynamoStore) PutAttempt(ctx context.Context, a *post.PublishAttempt) error {
	if err := s.putItem(ctx, attemptPK, postSKPrefix+a.PostID, a); err != nil {
		return fmt.Errorf("put attempt %s: %w", a.PostID, err)
	}
	log.Debug().
		Str("postId", a.PostID).
		Str("phase", string(a.Phase)).
		Int("staged", a.StagedCount()).
		Int("photos", len(a.Photos)).
		Msg("Publish attempt persisted")
	return nil
}

func (s *DynamoStore) DeleteAttempt(ctx context.Context, postID string) error {
	if err := s.deleteItem(ctx, attemptPK, postSKPrefix+postID); err != nil {
		return fmt.Errorf("delete attempt %s: %w", postID, err)
	}
	log.Debug().Str("postId", postID).Msg("Publish attempt discarded")
	return nil
}
