package database

import (
	"context"
	"fmt"
	"strings"
)

func enumType(name string, values ...string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return fmt.Sprintf(`DO $$ BEGIN
		CREATE TYPE %s AS ENUM (%s);
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`, name, strings.Join(quoted, ", "))
}

// SchemaStatements returns the idempotent DDL applied at startup, in order.
func SchemaStatements() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

		enumType("user_role", "GUEST", "PROVIDER", "ADMIN"),
		enumType("verification_status", "NOT_SUBMITTED", "PENDING", "APPROVED", "REJECTED"),
		enumType("media_type", "IMAGE", "VIDEO", "VERIFICATION"),
		enumType("report_target", "USER", "PROVIDER", "POST"),
		enumType("report_status", "OPEN", "REVIEWED", "DISMISSED"),
		enumType("subscription_event_type", "ACTIVATED", "EXTENDED", "EXPIRED", "CANCELLED"),

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role user_role NOT NULL,
			display_name VARCHAR(100) NOT NULL,
			phone VARCHAR(30),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS provider_profiles (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			display_name VARCHAR(100) NOT NULL,
			state VARCHAR(100),
			city VARCHAR(100),
			bio TEXT,
			services TEXT[] NOT NULL DEFAULT '{}',
			stats JSONB NOT NULL DEFAULT '{}'::jsonb,
			rates JSONB NOT NULL DEFAULT '{}'::jsonb,
			date_of_birth DATE,
			verification_status verification_status NOT NULL DEFAULT 'NOT_SUBMITTED',
			rejection_reason TEXT,
			is_suspended BOOLEAN NOT NULL DEFAULT FALSE,
			suspension_reason TEXT,
			subscription_expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Cover/avatar are not unique per provider; readers pick the latest flagged row.
		`CREATE TABLE IF NOT EXISTS provider_media (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			provider_id UUID NOT NULL REFERENCES provider_profiles(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			media_type media_type NOT NULL DEFAULT 'IMAGE',
			is_cover BOOLEAN NOT NULL DEFAULT FALSE,
			is_avatar BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			client_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_message_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(client_user_id, provider_user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_reads (
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			last_read_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (conversation_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS feed_posts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			provider_id UUID NOT NULL REFERENCES provider_profiles(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			media_urls TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS feed_likes (
			post_id UUID NOT NULL REFERENCES feed_posts(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (post_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS feed_comments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			post_id UUID NOT NULL REFERENCES feed_posts(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS favorites (
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider_id UUID NOT NULL REFERENCES provider_profiles(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, provider_id)
		)`,

		`CREATE TABLE IF NOT EXISTS blacklist_entries (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			reporter_provider_id UUID NOT NULL REFERENCES provider_profiles(id) ON DELETE CASCADE,
			phone VARCHAR(30),
			name VARCHAR(150),
			notes TEXT NOT NULL DEFAULT '',
			evidence_urls TEXT[] NOT NULL DEFAULT '{}',
			risk_level VARCHAR(10) NOT NULL DEFAULT 'LOW',
			verification_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (phone IS NOT NULL OR name IS NOT NULL)
		)`,

		`CREATE TABLE IF NOT EXISTS blacklist_verifications (
			entry_id UUID NOT NULL REFERENCES blacklist_entries(id) ON DELETE CASCADE,
			admin_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (entry_id, admin_id)
		)`,

		`CREATE TABLE IF NOT EXISTS password_reset_tokens (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash VARCHAR(64) NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			used_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS admin_audit_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			admin_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			action VARCHAR(50) NOT NULL,
			target_type VARCHAR(30) NOT NULL,
			target_id UUID NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS reports (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			reporter_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			target_type report_target NOT NULL,
			target_id UUID NOT NULL,
			reason TEXT NOT NULL,
			status report_status NOT NULL DEFAULT 'OPEN',
			resolved_by UUID REFERENCES users(id) ON DELETE SET NULL,
			resolved_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS subscription_events (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			provider_id UUID NOT NULL REFERENCES provider_profiles(id) ON DELETE CASCADE,
			event_type subscription_event_type NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_by UUID REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS revoked_tokens (
			jti VARCHAR(64) PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_provider_profiles_status ON provider_profiles(verification_status)`,
		`CREATE INDEX IF NOT EXISTS idx_provider_media_provider ON provider_media(provider_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_client ON conversations(client_user_id, last_message_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_provider ON conversations(provider_user_id, last_message_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_posts_created ON feed_posts(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_comments_post ON feed_comments(post_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_blacklist_phone ON blacklist_entries(phone)`,
		`CREATE INDEX IF NOT EXISTS idx_blacklist_name_lower ON blacklist_entries(LOWER(name))`,
		`CREATE INDEX IF NOT EXISTS idx_password_reset_tokens_user ON password_reset_tokens(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_admin_audit_logs_created ON admin_audit_logs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status)`,
		`CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires ON revoked_tokens(expires_at)`,
	}
}

// Migrate applies SchemaStatements in order, stopping at the first failure.
func Migrate(ctx context.Context, db Querier) error {
	for i, stmt := range SchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
