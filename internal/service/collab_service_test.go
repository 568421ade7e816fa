package service_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/missionboard/internal/database"
	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/repository"
	"github.com/mtlprog/missionboard/internal/service"
	"github.com/stretchr/testify/suite"
)

// CollabServiceTestSuite is the test suite for CollabService.
type CollabServiceTestSuite struct {
	suite.Suite
	pool          *pgxpool.Pool
	collabService *service.CollabService
	taskRepo      *repository.TaskRepository
	eventRepo     *repository.CollabEventRepository
	commentRepo   *repository.CommentRepository
}

// SetupSuite runs once before all tests.
func (s *CollabServiceTestSuite) SetupSuite() {
	ctx := context.Background()

	db, err := database.New(ctx, testDatabaseURL())
	s.Require().NoError(err, "failed to connect to database")
	s.pool = db.Pool()

	err = database.RunMigrations(ctx, s.pool)
	s.Require().NoError(err, "failed to run migrations")

	s.taskRepo = repository.NewTaskRepository(s.pool)
	s.eventRepo = repository.NewCollabEventRepository(s.pool)
	s.commentRepo = repository.NewCommentRepository(s.pool)
	agentRepo := repository.NewAgentRepository(s.pool)
	s.collabService = service.NewCollabService(s.pool, s.taskRepo, agentRepo, s.eventRepo, s.commentRepo, testRules())
}

// SetupTest runs before each test.
func (s *CollabServiceTestSuite) SetupTest() {
	ctx := context.Background()

	_, err := s.pool.Exec(ctx, "TRUNCATE agents, tasks, comments, collaboration_events, notifications CASCADE")
	s.Require().NoError(err, "failed to truncate tables")

	_, err = s.pool.Exec(ctx, `
		INSERT INTO agents (name, role, status, session_key)
		VALUES
			('fury', 'coordinator', 'idle', 'key-fury'),
			('tony', 'engineer', 'idle', 'key-tony'),
			('steve', 'engineer', 'idle', 'key-steve')
	`)
	s.Require().NoError(err, "failed to create agents")
}

// TearDownSuite runs once after all tests.
func (s *CollabServiceTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func TestCollabServiceSuite(t *testing.T) {
	suite.Run(t, new(CollabServiceTestSuite))
}

func (s *CollabServiceTestSuite) createTask(ctx context.Context) string {
	task, err := s.taskRepo.Create(ctx, &domain.Task{
		Title:  "Test task",
		Status: domain.TaskStatusInProgress,
	})
	s.Require().NoError(err)
	return task.ID
}

func (s *CollabServiceTestSuite) TestPingAgent() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	event, err := s.collabService.PingAgent(ctx, taskID, "tony", "Steve", "can you review this?")
	s.Require().NoError(err)
	s.Equal(domain.EventTypePing, event.Type)
	s.Equal("tony", event.AgentID)
	s.Require().NotNil(event.TargetAgentID)
	s.Equal("steve", *event.TargetAgentID)
	s.Require().NotNil(event.Responded)
	s.False(*event.Responded)
}

func (s *CollabServiceTestSuite) TestPingAgent_UnknownTarget() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	_, err := s.collabService.PingAgent(ctx, taskID, "tony", "nobody", "hello?")
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrAgentNotFound)
}

func (s *CollabServiceTestSuite) TestPingAgent_AntiLoop() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	// steve pinged tony and tony has not answered.
	_, err := s.collabService.PingAgent(ctx, taskID, "steve", "tony", "status?")
	s.Require().NoError(err)

	// tony must answer before pinging steve back.
	_, err = s.collabService.PingAgent(ctx, taskID, "tony", "steve", "you first")
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrAntiLoopViolation)
}

func (s *CollabServiceTestSuite) TestPingAgent_AllowedAfterResponse() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	ping, err := s.collabService.PingAgent(ctx, taskID, "steve", "tony", "status?")
	s.Require().NoError(err)

	_, err = s.collabService.RespondToPing(ctx, ping.ID, nil)
	s.Require().NoError(err)

	// The reverse ping was answered, the loop guard no longer applies.
	_, err = s.collabService.PingAgent(ctx, taskID, "tony", "steve", "done, your turn")
	s.Require().NoError(err)
}

func (s *CollabServiceTestSuite) TestPingAgent_RateLimit() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	var firstPing *domain.CollaborationEvent
	for i := 0; i < 3; i++ {
		ping, err := s.collabService.PingAgent(ctx, taskID, "tony", "steve", "nudge")
		s.Require().NoError(err)
		if firstPing == nil {
			firstPing = ping
		}
	}

	_, err := s.collabService.PingAgent(ctx, taskID, "tony", "steve", "one more")
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrRateLimitExceeded)

	// Answering does not refund the quota: the count is per lifetime of the
	// task, not per open ping.
	_, err = s.collabService.RespondToPing(ctx, firstPing.ID, nil)
	s.Require().NoError(err)

	_, err = s.collabService.PingAgent(ctx, taskID, "tony", "steve", "still one more")
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrRateLimitExceeded)
}

func (s *CollabServiceTestSuite) TestRespondToPing_CreatesComment() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	ping, err := s.collabService.PingAgent(ctx, taskID, "tony", "steve", "thoughts?")
	s.Require().NoError(err)

	response := "looks good to me"
	event, err := s.collabService.RespondToPing(ctx, ping.ID, &response)
	s.Require().NoError(err)
	s.Require().NotNil(event.Responded)
	s.True(*event.Responded)
	s.NotNil(event.RespondedAt)

	comments, err := s.commentRepo.ListByTask(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(comments, 1)
	s.Equal("steve", comments[0].Author)
	s.Equal(response, comments[0].Text)
}

func (s *CollabServiceTestSuite) TestRespondToPing_OnlyOnce() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	ping, err := s.collabService.PingAgent(ctx, taskID, "tony", "steve", "thoughts?")
	s.Require().NoError(err)

	_, err = s.collabService.RespondToPing(ctx, ping.ID, nil)
	s.Require().NoError(err)

	_, err = s.collabService.RespondToPing(ctx, ping.ID, nil)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrAlreadyResponded)
}

func (s *CollabServiceTestSuite) TestRespondToPing_NotAPing() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	event, err := s.collabService.LogThought(ctx, taskID, "tony", "thinking out loud")
	s.Require().NoError(err)

	_, err = s.collabService.RespondToPing(ctx, event.ID, nil)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrNotRespondable)
}

func (s *CollabServiceTestSuite) TestResolveMention() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	result, err := s.collabService.AddComment(ctx, taskID, "tony", "@steve please take a look")
	s.Require().NoError(err)
	s.Require().Len(result.Mentions, 1)
	s.Require().False(result.Mentions[0].Skipped)

	event, err := s.collabService.ResolveMention(ctx, result.Mentions[0].EventID)
	s.Require().NoError(err)
	s.Require().NotNil(event.Responded)
	s.True(*event.Responded)

	_, err = s.collabService.ResolveMention(ctx, result.Mentions[0].EventID)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrAlreadyResponded)
}

func (s *CollabServiceTestSuite) TestAddComment_MentionFanOut() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	result, err := s.collabService.AddComment(ctx, taskID, "tony", "@Steve and @nobody check this out")
	s.Require().NoError(err)
	s.NotEmpty(result.Comment.ID)
	s.Require().Len(result.Mentions, 2)

	s.Equal("steve", result.Mentions[0].Handle)
	s.False(result.Mentions[0].Skipped)
	s.NotEmpty(result.Mentions[0].EventID)

	s.Equal("nobody", result.Mentions[1].Handle)
	s.True(result.Mentions[1].Skipped)
	s.Equal("unknown agent", result.Mentions[1].Reason)

	// Only the known agent got a pending mention.
	count, err := s.collabService.CountPendingPings(ctx, "steve")
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *CollabServiceTestSuite) TestAddComment_MentionOverQuotaSkipped() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	for i := 0; i < 3; i++ {
		_, err := s.collabService.PingAgent(ctx, taskID, "tony", "steve", "nudge")
		s.Require().NoError(err)
	}

	result, err := s.collabService.AddComment(ctx, taskID, "fury", "@steve still waiting")
	s.Require().NoError(err)
	s.Require().Len(result.Mentions, 1)
	s.True(result.Mentions[0].Skipped)
	s.Equal("rate limit reached", result.Mentions[0].Reason)

	// The comment itself still landed.
	comments, err := s.commentRepo.ListByTask(ctx, taskID)
	s.Require().NoError(err)
	s.Len(comments, 1)
}

func (s *CollabServiceTestSuite) TestCreateEvent_RejectsDirectedTypes() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	_, err := s.collabService.CreateEvent(ctx, service.CreateEventParams{
		TaskID:  taskID,
		Type:    domain.EventTypePing,
		AgentID: "tony",
		Message: "sneaking past the guards",
	})
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrInvalidEventType)
}

func (s *CollabServiceTestSuite) TestReportBlocker() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	event, err := s.collabService.ReportBlocker(ctx, taskID, "tony", "staging database is down", domain.SeverityHigh)
	s.Require().NoError(err)
	s.Equal(domain.EventTypeBlocker, event.Type)
	s.Require().NotNil(event.Severity)
	s.Equal(domain.SeverityHigh, *event.Severity)
}

func (s *CollabServiceTestSuite) TestRecordDesignDecision() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	rationale := "simpler to operate"
	event, err := s.collabService.RecordDesignDecision(ctx, taskID, "tony", "use a single queue", &rationale)
	s.Require().NoError(err)
	s.Equal(domain.EventTypeDesignDecision, event.Type)
	s.Equal("simpler to operate", event.Metadata["rationale"])
}

func (s *CollabServiceTestSuite) TestUnifiedFeed() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	_, err := s.collabService.AddComment(ctx, taskID, "tony", "starting on this")
	s.Require().NoError(err)
	_, err = s.collabService.LogThought(ctx, taskID, "tony", "the parser needs a rewrite")
	s.Require().NoError(err)
	_, err = s.collabService.PingAgent(ctx, taskID, "tony", "steve", "can you pair?")
	s.Require().NoError(err)

	feed, err := s.collabService.UnifiedFeed(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(feed, 3)

	kinds := make(map[string]int)
	for _, entry := range feed {
		kinds[entry.Kind]++
	}
	s.Equal(1, kinds["comment"])
	s.Equal(1, kinds["thought_log"])
	s.Equal(1, kinds["ping"])

	// Newest first.
	for i := 1; i < len(feed); i++ {
		s.False(feed[i].CreatedAt.After(feed[i-1].CreatedAt))
	}
}

func (s *CollabServiceTestSuite) TestPendingPings() {
	ctx := context.Background()
	taskID := s.createTask(ctx)

	ping, err := s.collabService.PingAgent(ctx, taskID, "tony", "steve", "first")
	s.Require().NoError(err)
	_, err = s.collabService.PingAgent(ctx, taskID, "fury", "steve", "second")
	s.Require().NoError(err)

	pending, err := s.collabService.PendingPings(ctx, "STEVE")
	s.Require().NoError(err)
	s.Len(pending, 2)

	_, err = s.collabService.RespondToPing(ctx, ping.ID, nil)
	s.Require().NoError(err)

	count, err := s.collabService.CountPendingPings(ctx, "steve")
	s.Require().NoError(err)
	s.Equal(1, count)
}
