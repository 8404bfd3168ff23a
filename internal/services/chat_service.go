package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/metrics"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

const (
	MaxMessageLength = 2000

	DefaultChatsLimit    = 20
	MaxChatsLimit        = 50
	DefaultMessagesLimit = 30
	MaxMessagesLimit     = 100
)

var (
	ErrConversationNotFound = apperrors.NotFound("conversation not found")
	ErrNotParticipant       = apperrors.Forbidden("you are not a participant in this conversation")
)

type ChatService struct {
	db       *database.DB
	realtime Realtime
	log      *logrus.Logger
}

func NewChatService(db *database.DB, realtime Realtime, log *logrus.Logger) *ChatService {
	return &ChatService{db: db, realtime: realtime, log: log}
}

const conversationColumns = `id, client_user_id, provider_user_id, created_at, last_message_at`

func scanConversation(row rowScanner) (models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.ClientUserID, &c.ProviderUserID, &c.CreatedAt, &c.LastMessageAt)
	return c, err
}

// requireParticipant loads the conversation and checks that userID is one of its two parties.
func requireParticipant(ctx context.Context, q database.Querier, conversationID, userID uuid.UUID) (models.Conversation, error) {
	c, err := scanConversation(q.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, conversationID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	if !c.HasParticipant(userID) {
		return models.Conversation{}, ErrNotParticipant
	}
	return c, nil
}

// CreateOrGet returns the conversation between the calling guest and providerUserID,
// creating it on first contact. Repeated calls return the same row untouched.
func (s *ChatService) CreateOrGet(ctx context.Context, caller models.Identity, providerUserID uuid.UUID) (models.Conversation, error) {
	if !caller.Role.CanInitiateChat() {
		return models.Conversation{}, apperrors.Forbidden("only guests can start a conversation")
	}

	var conv models.Conversation
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var role models.Role
		err := tx.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, providerUserID).Scan(&role)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if role != models.RoleProvider {
			return apperrors.Field("provider_user_id", "target user is not a provider")
		}

		// The no-op DO UPDATE makes RETURNING yield the existing row without touching last_message_at.
		conv, err = scanConversation(tx.QueryRowContext(ctx, `
			INSERT INTO conversations (client_user_id, provider_user_id)
			VALUES ($1, $2)
			ON CONFLICT (client_user_id, provider_user_id)
			DO UPDATE SET client_user_id = EXCLUDED.client_user_id
			RETURNING `+conversationColumns,
			caller.UserID, providerUserID))
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_reads (conversation_id, user_id, last_read_at)
			VALUES ($1, $2, NOW()), ($1, $3, NOW())
			ON CONFLICT (conversation_id, user_id) DO NOTHING
		`, conv.ID, conv.ClientUserID, conv.ProviderUserID)
		return err
	})
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// List returns the caller's inbox, most recently active first, with the total conversation count.
func (s *ChatService) List(ctx context.Context, userID uuid.UUID, page models.Page) ([]models.ChatSummary, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversations WHERE client_user_id = $1 OR provider_user_id = $1
	`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	// A missing read row counts every message from the other party as unread.
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.client_user_id, c.provider_user_id, c.last_message_at,
		       ou.id, ou.role, COALESCE(pp.display_name, ou.display_name),
		       av.url,
		       lm.content, lm.created_at,
		       (SELECT COUNT(*) FROM messages m
		         WHERE m.conversation_id = c.id
		           AND m.sender_id <> $1
		           AND (cr.last_read_at IS NULL OR m.created_at > cr.last_read_at))
		FROM conversations c
		JOIN users ou
		  ON ou.id = CASE WHEN c.client_user_id = $1 THEN c.provider_user_id ELSE c.client_user_id END
		LEFT JOIN provider_profiles pp ON pp.user_id = ou.id AND ou.role = 'PROVIDER'
		LEFT JOIN LATERAL (
			SELECT url FROM provider_media
			WHERE provider_id = pp.id AND is_avatar = TRUE
			ORDER BY created_at DESC LIMIT 1
		) av ON TRUE
		LEFT JOIN LATERAL (
			SELECT content, created_at FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC LIMIT 1
		) lm ON TRUE
		LEFT JOIN conversation_reads cr ON cr.conversation_id = c.id AND cr.user_id = $1
		WHERE c.client_user_id = $1 OR c.provider_user_id = $1
		ORDER BY c.last_message_at DESC
		LIMIT $2 OFFSET $3
	`, userID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	chats := []models.ChatSummary{}
	for rows.Next() {
		var cs models.ChatSummary
		if err := rows.Scan(
			&cs.ID, &cs.ClientUserID, &cs.ProviderUserID, &cs.UpdatedAt,
			&cs.OtherParty.UserID, &cs.OtherParty.Role, &cs.OtherParty.DisplayName,
			&cs.OtherParty.AvatarURL,
			&cs.LastMessage, &cs.LastMessageAt,
			&cs.UnreadCount,
		); err != nil {
			return nil, 0, err
		}
		chats = append(chats, cs)
	}
	return chats, total, rows.Err()
}

// Messages returns one page of a conversation. Pages are cut newest-first and each
// page is returned oldest-to-newest.
func (s *ChatService) Messages(ctx context.Context, conversationID, callerID uuid.UUID, page models.Page) ([]models.Message, error) {
	if _, err := requireParticipant(ctx, s.db, conversationID, callerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, conversationID, page.Limit, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Send stores a message and advances the conversation's last activity in one transaction.
func (s *ChatService) Send(ctx context.Context, conversationID, senderID uuid.UUID, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, apperrors.Field("content", "content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return models.Message{}, apperrors.Field("content", "content must be at most 2000 characters")
	}

	var (
		conv models.Conversation
		msg  models.Message
	)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		conv, err = requireParticipant(ctx, tx, conversationID, senderID)
		if err != nil {
			return err
		}

		msg = models.Message{ConversationID: conversationID, SenderID: senderID, Content: content}
		if err = tx.QueryRowContext(ctx, `
			INSERT INTO messages (conversation_id, sender_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`, conversationID, senderID, content).Scan(&msg.ID, &msg.CreatedAt); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE conversations SET last_message_at = GREATEST(last_message_at, $2) WHERE id = $1
		`, conversationID, msg.CreatedAt)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}

	metrics.RecordMessageSent()
	s.publish(ctx, []uuid.UUID{conv.ClientUserID, conv.ProviderUserID}, ChatEvent{
		Type:           EventMessageNew,
		ConversationID: conversationID,
		UserID:         senderID,
		Message:        &msg,
	})
	return msg, nil
}

// MarkRead moves the caller's read marker to now. It always overwrites.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, callerID uuid.UUID) (time.Time, error) {
	conv, err := requireParticipant(ctx, s.db, conversationID, callerID)
	if err != nil {
		return time.Time{}, err
	}

	var readAt time.Time
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO conversation_reads (conversation_id, user_id, last_read_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (conversation_id, user_id)
		DO UPDATE SET last_read_at = EXCLUDED.last_read_at
		RETURNING last_read_at
	`, conversationID, callerID).Scan(&readAt); err != nil {
		return time.Time{}, err
	}

	s.publish(ctx, []uuid.UUID{conv.OtherParty(callerID)}, ChatEvent{
		Type:           EventConversationRead,
		ConversationID: conversationID,
		UserID:         callerID,
		ReadAt:         &readAt,
	})
	return readAt, nil
}

func (s *ChatService) publish(ctx context.Context, recipients []uuid.UUID, event ChatEvent) {
	if s.realtime == nil {
		return
	}
	if err := s.realtime.Publish(ctx, recipients, event); err != nil {
		metrics.RecordPublishFailure()
		s.log.WithError(err).WithFields(logrus.Fields{
			"conversation_id": event.ConversationID,
			"event":           event.Type,
		}).Warn("Failed to publish chat event")
	}
}
