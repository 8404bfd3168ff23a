package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/logger"
)

var testLog = logger.Discard()

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		sqlDB.Close()
	})
	return database.Wrap(sqlDB, time.Second), mock
}

type published struct {
	recipients []uuid.UUID
	event      ChatEvent
}

// recordingRealtime captures published events.
type recordingRealtime struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (r *recordingRealtime) Publish(_ context.Context, recipients []uuid.UUID, event ChatEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{recipients: recipients, event: event})
	return r.err
}

func (r *recordingRealtime) Subscribe(context.Context, uuid.UUID) (<-chan ChatEvent, func()) {
	ch := make(chan ChatEvent)
	return ch, func() { close(ch) }
}
