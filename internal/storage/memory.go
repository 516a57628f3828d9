package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nvoskov/outreach-bot/internal/models"
)

// MemoryStorage is an in-memory Storage used for development and tests.
type MemoryStorage struct {
	mu         sync.RWMutex
	clients    map[string]*models.Client
	messages   map[int64][]*models.Message
	activities []*models.AccountActivity
	nextID     int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		clients:  make(map[string]*models.Client),
		messages: make(map[int64][]*models.Message),
		nextID:   1,
	}
}

func clientKey(platform, platformID string) string {
	return platform + ":" + platformID
}

func (s *MemoryStorage) GetOrCreateClient(ctx context.Context, platform, platformID string, profile models.UserProfile) (*models.Client, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := clientKey(platform, platformID)
	if client, exists := s.clients[key]; exists {
		if profile.Username != "" {
			client.Username = profile.Username
		}
		if profile.FirstName != "" {
			client.FirstName = profile.FirstName
		}
		if profile.LastName != "" {
			client.LastName = profile.LastName
		}
		client.LastActivity = time.Now()
		copied := *client
		return &copied, false, nil
	}

	client := &models.Client{
		ID:           s.nextID,
		Platform:     platform,
		PlatformID:   platformID,
		Username:     profile.Username,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Status:       models.StatusNew,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
	}
	s.nextID++
	s.clients[key] = client

	copied := *client
	return &copied, true, nil
}

func (s *MemoryStorage) UpdateClientStatus(ctx context.Context, clientID int64, status models.ClientStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, client := range s.clients {
		if client.ID == clientID {
			client.Status = status
			client.LastActivity = time.Now()
			return nil
		}
	}
	return fmt.Errorf("client not found")
}

func (s *MemoryStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	copied := *msg
	s.messages[msg.ClientID] = append(s.messages[msg.ClientID], &copied)
	return nil
}

func (s *MemoryStorage) RecentMessages(ctx context.Context, clientID int64, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[clientID]
	sorted := make([]*models.Message, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}

	result := make([]*models.Message, len(sorted))
	for i, msg := range sorted {
		copied := *msg
		result[i] = &copied
	}
	return result, nil
}

func (s *MemoryStorage) RecordActivity(ctx context.Context, activity *models.AccountActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}
	activity.ID = int64(len(s.activities) + 1)
	copied := *activity
	s.activities = append(s.activities, &copied)
	return nil
}

func (s *MemoryStorage) CountActivity(ctx context.Context, platform, account, action string, since, until time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, activity := range s.activities {
		if activity.Platform == platform &&
			activity.AccountName == account &&
			activity.ActionType == action &&
			!activity.Timestamp.Before(since) &&
			activity.Timestamp.Before(until) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) LastActivity(ctx context.Context, platform, account, action string) (*models.AccountActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *models.AccountActivity
	for _, activity := range s.activities {
		if activity.Platform != platform ||
			activity.AccountName != account ||
			activity.ActionType != action {
			continue
		}
		if last == nil || activity.Timestamp.After(last.Timestamp) {
			last = activity
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := *last
	return &copied, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
