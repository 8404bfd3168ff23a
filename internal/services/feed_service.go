package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

const (
	MaxPostLength    = 5000
	MaxPostMedia     = 10
	MaxCommentLength = 1000

	DefaultFeedLimit = 20
	MaxFeedLimit     = 50
)

var ErrPostNotFound = apperrors.NotFound("post not found")

type CreatePostInput struct {
	Content   string   `json:"content" validate:"required,max=5000"`
	MediaURLs []string `json:"media_urls" validate:"omitempty,max=10,dive,required,url"`
}

type AddCommentInput struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type FeedService struct {
	db *database.DB
}

func NewFeedService(db *database.DB) *FeedService {
	return &FeedService{db: db}
}

// postSelect expects the viewer id (possibly NULL) as $1.
const postSelect = `
	SELECT f.id, f.provider_id, p.display_name,
	       (SELECT url FROM provider_media WHERE provider_id = p.id AND is_avatar = TRUE ORDER BY created_at DESC LIMIT 1),
	       f.content, f.media_urls,
	       (SELECT COUNT(*) FROM feed_likes l WHERE l.post_id = f.id),
	       (SELECT COUNT(*) FROM feed_comments c WHERE c.post_id = f.id),
	       EXISTS (SELECT 1 FROM feed_likes l WHERE l.post_id = f.id AND l.user_id = $1),
	       f.created_at
	FROM feed_posts f
	JOIN provider_profiles p ON p.id = f.provider_id`

func scanPost(row rowScanner) (models.FeedPost, error) {
	var fp models.FeedPost
	var media pq.StringArray
	err := row.Scan(&fp.ID, &fp.ProviderID, &fp.ProviderName, &fp.AvatarURL, &fp.Content, &media,
		&fp.LikeCount, &fp.CommentCount, &fp.LikedByMe, &fp.CreatedAt)
	fp.MediaURLs = []string(media)
	if fp.MediaURLs == nil {
		fp.MediaURLs = []string{}
	}
	return fp, err
}

func viewerArg(viewer *uuid.UUID) uuid.NullUUID {
	if viewer == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *viewer, Valid: true}
}

// List returns posts of publicly visible providers, newest first. viewer is nil for anonymous callers.
func (s *FeedService) List(ctx context.Context, viewer *uuid.UUID, page models.Page) ([]models.FeedPost, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM feed_posts f
		JOIN provider_profiles p ON p.id = f.provider_id
		WHERE `+visibleClause,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, postSelect+`
		WHERE `+visibleClause+`
		ORDER BY f.created_at DESC, f.id DESC
		LIMIT $2 OFFSET $3
	`, viewerArg(viewer), page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := []models.FeedPost{}
	for rows.Next() {
		fp, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, fp)
	}
	return posts, total, rows.Err()
}

func (s *FeedService) Create(ctx context.Context, caller models.Identity, in CreatePostInput) (models.FeedPost, error) {
	if !caller.Role.CanPostFeed() {
		return models.FeedPost{}, apperrors.Forbidden("only providers can post to the feed")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return models.FeedPost{}, apperrors.Field("content", "content is required")
	}
	if utf8.RuneCountInString(content) > MaxPostLength {
		return models.FeedPost{}, apperrors.Field("content", "content must be at most 5000 characters")
	}
	if len(in.MediaURLs) > MaxPostMedia {
		return models.FeedPost{}, apperrors.Field("media_urls", "at most 10 media items are allowed")
	}

	p, err := profileByUserID(ctx, s.db, caller.UserID, false)
	if err != nil {
		return models.FeedPost{}, err
	}

	media := in.MediaURLs
	if media == nil {
		media = []string{}
	}
	post := models.FeedPost{ProviderID: p.ID, ProviderName: p.DisplayName, Content: content, MediaURLs: media}
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO feed_posts (provider_id, content, media_urls)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, p.ID, content, pq.StringArray(media)).Scan(&post.ID, &post.CreatedAt); err != nil {
		return models.FeedPost{}, err
	}
	return post, nil
}

func requirePost(ctx context.Context, q database.Querier, postID uuid.UUID) error {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM feed_posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrPostNotFound
	}
	return nil
}

func (s *FeedService) LikeState(ctx context.Context, postID uuid.UUID, viewer *uuid.UUID) (models.LikeState, error) {
	if err := requirePost(ctx, s.db, postID); err != nil {
		return models.LikeState{}, err
	}
	return s.likeState(ctx, postID, viewerArg(viewer))
}

func (s *FeedService) likeState(ctx context.Context, postID uuid.UUID, viewer uuid.NullUUID) (models.LikeState, error) {
	st := models.LikeState{PostID: postID}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(BOOL_OR(user_id = $2), FALSE)
		FROM feed_likes WHERE post_id = $1
	`, postID, viewer).Scan(&st.LikeCount, &st.LikedByMe)
	return st, err
}

// Like is idempotent: liking twice leaves a single like.
func (s *FeedService) Like(ctx context.Context, postID, userID uuid.UUID) (models.LikeState, error) {
	if err := requirePost(ctx, s.db, postID); err != nil {
		return models.LikeState{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_likes (post_id, user_id) VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`, postID, userID); err != nil {
		// The post can disappear between the check and the insert.
		if database.IsForeignKeyViolation(err) {
			return models.LikeState{}, ErrPostNotFound
		}
		return models.LikeState{}, err
	}
	return s.likeState(ctx, postID, uuid.NullUUID{UUID: userID, Valid: true})
}

func (s *FeedService) Unlike(ctx context.Context, postID, userID uuid.UUID) (models.LikeState, error) {
	if err := requirePost(ctx, s.db, postID); err != nil {
		return models.LikeState{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM feed_likes WHERE post_id = $1 AND user_id = $2`, postID, userID); err != nil {
		return models.LikeState{}, err
	}
	return s.likeState(ctx, postID, uuid.NullUUID{UUID: userID, Valid: true})
}

const commentSelect = `
	SELECT c.id, c.post_id, c.user_id, COALESCE(pp.display_name, u.display_name), c.content, c.created_at
	FROM feed_comments c
	JOIN users u ON u.id = c.user_id
	LEFT JOIN provider_profiles pp ON pp.user_id = u.id`

func scanComment(row rowScanner) (models.FeedComment, error) {
	var c models.FeedComment
	err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.DisplayName, &c.Content, &c.CreatedAt)
	return c, err
}

// Comments returns a page of a post's comments, oldest first.
func (s *FeedService) Comments(ctx context.Context, postID uuid.UUID, page models.Page) ([]models.FeedComment, int, error) {
	if err := requirePost(ctx, s.db, postID); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feed_comments WHERE post_id = $1`, postID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, commentSelect+`
		WHERE c.post_id = $1
		ORDER BY c.created_at, c.id
		LIMIT $2 OFFSET $3
	`, postID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	comments := []models.FeedComment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		comments = append(comments, c)
	}
	return comments, total, rows.Err()
}

func (s *FeedService) AddComment(ctx context.Context, postID, userID uuid.UUID, content string) (models.FeedComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.FeedComment{}, apperrors.Field("content", "content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return models.FeedComment{}, apperrors.Field("content", "content must be at most 1000 characters")
	}
	if err := requirePost(ctx, s.db, postID); err != nil {
		return models.FeedComment{}, err
	}

	var id uuid.UUID
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO feed_comments (post_id, user_id, content) VALUES ($1, $2, $3) RETURNING id
	`, postID, userID, content).Scan(&id); err != nil {
		if database.IsForeignKeyViolation(err) {
			return models.FeedComment{}, ErrPostNotFound
		}
		return models.FeedComment{}, err
	}
	return scanComment(s.db.QueryRowContext(ctx, commentSelect+` WHERE c.id = $1`, id))
}
