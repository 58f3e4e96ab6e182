package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dcr-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Drafts outlive sessions but not a reporting season; 30 days is generous
// for a form that is normally submitted the next morning.
const draftTTL = 30 * 24 * time.Hour

const draftKeyFmt = "draft:%s:%s"

// RedisStore keeps drafts in Redis under draft:<project>:<date> keys.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func draftKey(project, dateKey string) string {
	return fmt.Sprintf(draftKeyFmt, project, dateKey)
}

func (s *RedisStore) Save(ctx context.Context, project, dateKey string, data *models.ReportData) error {
	if s.client == nil {
		return fmt.Errorf("draft store unavailable")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, draftKey(project, dateKey), payload, draftTTL).Err()
}

func (s *RedisStore) Load(ctx context.Context, project, dateKey string) (*models.ReportData, bool) {
	if s.client == nil {
		return nil, false
	}
	payload, err := s.client.Get(ctx, draftKey(project, dateKey)).Bytes()
	if err != nil {
		return nil, false
	}
	var data models.ReportData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, false
	}
	return &data, true
}

func (s *RedisStore) Remove(ctx context.Context, project, dateKey string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, draftKey(project, dateKey)).Err()
}
