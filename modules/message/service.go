package message

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/keenpaul29/secure-chat/domain/message"
	"github.com/keenpaul29/secure-chat/modules/cache"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

var (
	// ErrEmptyContent is returned when a message has no content.
	ErrEmptyContent = errors.New("message content cannot be empty")

	// ErrContentTooLong is returned when content exceeds the limit.
	ErrContentTooLong = fmt.Errorf("message content exceeds %d characters", domain.MaxContentLength)
)

const (
	// DefaultHistoryLimit is used when a history request omits the limit.
	DefaultHistoryLimit = 50

	// MaxHistoryLimit caps how many messages one history call returns.
	MaxHistoryLimit = 100

	// TimestampSkew is how far a client-supplied timestamp may drift
	// from server time before the server timestamp wins.
	TimestampSkew = 5 * time.Minute
)

// MessageService validates and stores chat messages and serves room
// history, optionally through a Redis read cache.
type MessageService struct {
	repo         *MessageRepository
	historyCache *cache.Cache
	logger       types.Logger
}

// NewMessageService creates a new MessageService. historyCache may be
// nil, in which case every history read goes to the database.
func NewMessageService(repo *MessageRepository, historyCache *cache.Cache, logger types.Logger) *MessageService {
	return &MessageService{
		repo:         repo,
		historyCache: historyCache,
		logger:       logger,
	}
}

// Save validates a message, assigns the server-side identity fields and
// appends it to the log. The stored message is returned so callers
// broadcast exactly what was persisted.
func (s *MessageService) Save(roomID, sender, content string, encrypted bool, clientTime time.Time) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > domain.MaxContentLength {
		return nil, ErrContentTooLong
	}

	now := time.Now().UTC()
	ts := now
	if !clientTime.IsZero() {
		drift := now.Sub(clientTime)
		if drift < 0 {
			drift = -drift
		}
		if drift <= TimestampSkew {
			ts = clientTime.UTC()
		}
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Sender:    sender,
		Content:   content,
		Timestamp: ts,
		Kind:      domain.KindUser,
		Encrypted: encrypted,
	}

	if err := s.repo.Insert(msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	s.invalidateHistory(roomID)
	return msg, nil
}

// SaveSystem appends a system notice to a room's log.
func (s *MessageService) SaveSystem(roomID, content string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Sender:    "system",
		Content:   content,
		Timestamp: time.Now().UTC(),
		Kind:      domain.KindSystem,
	}
	if err := s.repo.Insert(msg); err != nil {
		return nil, fmt.Errorf("failed to save system message: %w", err)
	}
	s.invalidateHistory(roomID)
	return msg, nil
}

// History returns the most recent messages for a room, oldest first.
// Results for the default limit are served through the cache when one
// is configured.
func (s *MessageService) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	if s.historyCache == nil || limit != DefaultHistoryLimit {
		return s.repo.Recent(roomID, limit)
	}

	raw, err := s.historyCache.GetOrLoad(ctx, historyKey(roomID), func(context.Context) (any, error) {
		return s.repo.Recent(roomID, limit)
	})
	if err != nil {
		// Cache trouble must not break reads.
		s.logger.WithError(err).Warn("history cache unavailable, reading from database")
		return s.repo.Recent(roomID, limit)
	}

	var messages []domain.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode cached history: %w", err)
	}
	return messages, nil
}

// Fingerprint returns a hex SHA-256 digest over the ordered IDs of the
// messages a history call with the same arguments would return. Two
// equal fingerprints mean the visible history has not changed.
func (s *MessageService) Fingerprint(ctx context.Context, roomID string, limit int) (string, error) {
	messages, err := s.History(ctx, roomID, limit)
	if err != nil {
		return "", err
	}
	return HistoryFingerprint(messages), nil
}

// HistoryFingerprint computes the digest for an already loaded history
// page.
func HistoryFingerprint(messages []domain.Message) string {
	h := sha256.New()
	for i := range messages {
		h.Write([]byte(messages[i].ID))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *MessageService) invalidateHistory(roomID string) {
	if s.historyCache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.historyCache.Delete(ctx, historyKey(roomID)); err != nil {
		s.logger.WithError(err).Warn("failed to invalidate history cache")
	}
}

func historyKey(roomID string) string {
	return "history:" + roomID
}
