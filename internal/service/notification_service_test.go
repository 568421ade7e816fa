package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/missionboard/internal/database"
	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/repository"
	"github.com/mtlprog/missionboard/internal/service"
	"github.com/stretchr/testify/suite"
)

// NotificationServiceTestSuite is the test suite for NotificationService.
type NotificationServiceTestSuite struct {
	suite.Suite
	pool         *pgxpool.Pool
	notifService *service.NotificationService
	taskRepo     *repository.TaskRepository
	eventRepo    *repository.CollabEventRepository
	notifRepo    *repository.NotificationRepository
}

// SetupSuite runs once before all tests.
func (s *NotificationServiceTestSuite) SetupSuite() {
	ctx := context.Background()

	db, err := database.New(ctx, testDatabaseURL())
	s.Require().NoError(err, "failed to connect to database")
	s.pool = db.Pool()

	err = database.RunMigrations(ctx, s.pool)
	s.Require().NoError(err, "failed to run migrations")

	s.taskRepo = repository.NewTaskRepository(s.pool)
	s.eventRepo = repository.NewCollabEventRepository(s.pool)
	s.notifRepo = repository.NewNotificationRepository(s.pool)
	s.notifService = service.NewNotificationService(s.pool, s.taskRepo, s.eventRepo, s.notifRepo, testRules())
}

// SetupTest runs before each test.
func (s *NotificationServiceTestSuite) SetupTest() {
	ctx := context.Background()

	_, err := s.pool.Exec(ctx, "TRUNCATE agents, tasks, comments, collaboration_events, notifications CASCADE")
	s.Require().NoError(err, "failed to truncate tables")
}

// TearDownSuite runs once after all tests.
func (s *NotificationServiceTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func TestNotificationServiceSuite(t *testing.T) {
	suite.Run(t, new(NotificationServiceTestSuite))
}

// createAgedTask inserts a task and backdates updated_at by the given number
// of minutes so TimeInStatus crosses or misses the threshold.
func (s *NotificationServiceTestSuite) createAgedTask(ctx context.Context, status domain.TaskStatus, minutesAgo int) string {
	task, err := s.taskRepo.Create(ctx, &domain.Task{
		Title:       "Aged task",
		Status:      status,
		AssigneeIDs: []string{"tony"},
	})
	s.Require().NoError(err)

	_, err = s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE tasks SET updated_at = NOW() - INTERVAL '%d minutes' WHERE id = $1", minutesAgo),
		task.ID,
	)
	s.Require().NoError(err)

	return task.ID
}

func (s *NotificationServiceTestSuite) TestDetectStuckTasks() {
	ctx := context.Background()
	taskID := s.createAgedTask(ctx, domain.TaskStatusBlocked, 15)

	result, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Scanned)
	s.Equal(1, result.Detected)
	s.Equal(0, result.AlreadyNotified)
	s.Empty(result.Errors)

	pending, err := s.notifRepo.ListByStatus(ctx, domain.NotificationStatusPending, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(taskID, pending[0].TaskID)
	s.Equal(domain.NotificationTypeBlocked, pending[0].Type)
	s.Equal("Aged task", pending[0].TaskTitle)
	s.Equal([]string{"tony"}, pending[0].AssigneeIDs)

	// Detection stamps the task so the episode is not re-detected.
	task, err := s.taskRepo.GetByID(ctx, taskID)
	s.Require().NoError(err)
	s.Require().NotNil(task.NotifiedAt)
	s.Require().NotNil(task.NotifiedType)
	s.Equal(domain.NotificationTypeBlocked, *task.NotifiedType)
}

func (s *NotificationServiceTestSuite) TestDetectStuckTasks_SecondSweepSuppressed() {
	ctx := context.Background()
	s.createAgedTask(ctx, domain.TaskStatusDone, 15)

	_, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)

	result, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Scanned)
	s.Equal(0, result.Detected)
	s.Equal(1, result.AlreadyNotified)
}

func (s *NotificationServiceTestSuite) TestDetectStuckTasks_FreshTaskSkipped() {
	ctx := context.Background()
	s.createAgedTask(ctx, domain.TaskStatusBlocked, 5)

	result, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Scanned)
	s.Equal(0, result.Detected)
	s.Equal(0, result.AlreadyNotified)
}

func (s *NotificationServiceTestSuite) TestDetectStuckTasks_ActiveStatusesIgnored() {
	ctx := context.Background()
	s.createAgedTask(ctx, domain.TaskStatusInProgress, 60)
	s.createAgedTask(ctx, domain.TaskStatusReview, 60)

	result, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)
	s.Equal(0, result.Scanned)
	s.Equal(0, result.Detected)
}

func (s *NotificationServiceTestSuite) TestDetectStuckTasks_DuplicatePendingNotCreated() {
	ctx := context.Background()
	taskID := s.createAgedTask(ctx, domain.TaskStatusBlocked, 15)

	_, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)

	// Clear the task stamp to simulate a sweep racing with the first one.
	// The partial unique index still blocks the second pending row.
	_, err = s.pool.Exec(ctx, "UPDATE tasks SET notified_at = NULL, notified_type = NULL WHERE id = $1", taskID)
	s.Require().NoError(err)

	result, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)
	s.Equal(0, result.Detected)
	s.Equal(1, result.AlreadyNotified)

	pending, err := s.notifRepo.ListByStatus(ctx, domain.NotificationStatusPending, 10)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *NotificationServiceTestSuite) TestProcessPending() {
	ctx := context.Background()
	taskID := s.createAgedTask(ctx, domain.TaskStatusBlocked, 15)

	_, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)

	result, err := s.notifService.ProcessPending(ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(0, result.Failed)

	// The alert landed in the task's event log, authored by the alert agent.
	events, err := s.eventRepo.ListByTask(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(domain.EventTypeBlocker, events[0].Type)
	s.Equal("loki", events[0].AgentID)
	s.Contains(events[0].Message, "📱 WhatsApp Alert:")
	s.Contains(events[0].Message, "Aged task")
	s.Require().NotNil(events[0].Severity)
	s.Equal(domain.SeverityHigh, *events[0].Severity)
	s.Equal("blocked", events[0].Metadata["notificationType"])

	sent, err := s.notifRepo.ListByStatus(ctx, domain.NotificationStatusSent, 10)
	s.Require().NoError(err)
	s.Require().Len(sent, 1)
	s.NotNil(sent[0].SentAt)

	pending, err := s.notifRepo.ListByStatus(ctx, domain.NotificationStatusPending, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *NotificationServiceTestSuite) TestProcessPending_DoneAlertMediumSeverity() {
	ctx := context.Background()
	taskID := s.createAgedTask(ctx, domain.TaskStatusDone, 15)

	_, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)
	_, err = s.notifService.ProcessPending(ctx)
	s.Require().NoError(err)

	events, err := s.eventRepo.ListByTask(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Require().NotNil(events[0].Severity)
	s.Equal(domain.SeverityMedium, *events[0].Severity)
}

func (s *NotificationServiceTestSuite) TestProcessPending_RunTwiceNoDuplicateAlert() {
	ctx := context.Background()
	taskID := s.createAgedTask(ctx, domain.TaskStatusBlocked, 15)

	_, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)
	_, err = s.notifService.ProcessPending(ctx)
	s.Require().NoError(err)

	result, err := s.notifService.ProcessPending(ctx)
	s.Require().NoError(err)
	s.Equal(0, result.Processed)

	// Sending and status flip are one transaction, so the event log carries
	// exactly one alert no matter how many processor runs follow.
	events, err := s.eventRepo.ListByTask(ctx, taskID)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *NotificationServiceTestSuite) TestProcessPending_Empty() {
	ctx := context.Background()

	result, err := s.notifService.ProcessPending(ctx)
	s.Require().NoError(err)
	s.Equal(0, result.Processed)
	s.Equal(0, result.Failed)
}

func (s *NotificationServiceTestSuite) TestSendAlert() {
	ctx := context.Background()
	s.createAgedTask(ctx, domain.TaskStatusBlocked, 15)

	_, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)

	pending, err := s.notifRepo.ListByStatus(ctx, domain.NotificationStatusPending, 1)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)

	message, err := s.notifService.SendAlert(ctx, pending[0].ID)
	s.Require().NoError(err)
	s.Contains(message, "Aged task")
	s.Contains(message, "🚨")
}

func (s *NotificationServiceTestSuite) TestSendAlert_NotFound() {
	ctx := context.Background()

	_, err := s.notifService.SendAlert(ctx, "00000000-0000-0000-0000-000000000000")
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrNotificationNotFound)
}

func (s *NotificationServiceTestSuite) TestCleanupOld() {
	ctx := context.Background()
	s.createAgedTask(ctx, domain.TaskStatusBlocked, 15)

	_, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)
	_, err = s.notifService.ProcessPending(ctx)
	s.Require().NoError(err)

	// Age the sent notification past the retention window.
	_, err = s.pool.Exec(ctx, "UPDATE notifications SET detected_at = NOW() - INTERVAL '48 hours'")
	s.Require().NoError(err)

	deleted, err := s.notifService.CleanupOld(ctx, 0)
	s.Require().NoError(err)
	s.Equal(1, deleted)

	stats, err := s.notifService.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(0, stats.Total)
}

func (s *NotificationServiceTestSuite) TestCleanupOld_KeepsRecentAndPending() {
	ctx := context.Background()
	s.createAgedTask(ctx, domain.TaskStatusBlocked, 15)
	s.createAgedTask(ctx, domain.TaskStatusDone, 15)

	_, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)

	// Both are pending and both are old. Cleanup only touches sent alerts.
	_, err = s.pool.Exec(ctx, "UPDATE notifications SET detected_at = NOW() - INTERVAL '48 hours'")
	s.Require().NoError(err)

	deleted, err := s.notifService.CleanupOld(ctx, 0)
	s.Require().NoError(err)
	s.Equal(0, deleted)
}

func (s *NotificationServiceTestSuite) TestStats() {
	ctx := context.Background()
	s.createAgedTask(ctx, domain.TaskStatusBlocked, 15)
	s.createAgedTask(ctx, domain.TaskStatusDone, 15)

	_, err := s.notifService.DetectStuckTasks(ctx)
	s.Require().NoError(err)
	_, err = s.notifService.ProcessPending(ctx)
	s.Require().NoError(err)

	stats, err := s.notifService.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.Total)
	s.Equal(0, stats.Pending)
	s.Equal(2, stats.Sent)
	s.Equal(0, stats.Failed)
	s.Equal(1, stats.DoneAlerts)
	s.Equal(1, stats.BlockedAlerts)
}
