package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"codentor-backend/internal/task/domain"
	"codentor-backend/pkg/database"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresSuite runs the reminder claim against a real Postgres so the
// compare-and-swap is checked under true concurrency.
type PostgresSuite struct {
	suite.Suite
	ctx       context.Context
	container testcontainers.Container
	db        *gorm.DB
	repo      TaskRepository
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration tests in short mode")
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "codentor",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=codentor sslmode=disable", host, port.Port())
	s.db, err = database.Open(postgres.Open(dsn))
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.db.AutoMigrate(&domain.Task{}))
	s.repo = NewGormTaskRepository(s.db)
}

func (s *PostgresSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresSuite) SetupTest() {
	require.NoError(s.T(), s.db.Exec("TRUNCATE TABLE tasks").Error)
}

func (s *PostgresSuite) TestConcurrentClaimsHaveOneWinner() {
	due := time.Now().Add(30 * time.Minute)
	task := &domain.Task{UserID: "u1", Title: "race", DueDate: &due, Status: domain.TaskStatusPending}
	s.Require().NoError(s.repo.Create(task))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.repo.ClaimReminder(task.ID, domain.StageNotDue, domain.StageDue1h)
			s.NoError(err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, wins)
}

func (s *PostgresSuite) TestCandidatesAfterClaim() {
	due := time.Now().Add(30 * time.Minute)
	task := &domain.Task{UserID: "u1", Title: "once", DueDate: &due, Status: domain.TaskStatusPending}
	s.Require().NoError(s.repo.Create(task))

	got, err := s.repo.FindReminderCandidates(time.Now())
	s.Require().NoError(err)
	s.Len(got, 1)

	won, err := s.repo.ClaimReminder(task.ID, domain.StageNotDue, domain.StageDue1h)
	s.Require().NoError(err)
	s.True(won)

	got, err = s.repo.FindReminderCandidates(time.Now())
	s.Require().NoError(err)
	s.Empty(got)
}
