package mesh

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/discovery"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/mesh/middleware"
)

// fakeBackend answers any unary method with canned replies. It stands
// in for every platform service at once.
type fakeBackend struct {
	mu        sync.Mutex
	requests  map[string]map[string]interface{}
	metadatas map[string]metadata.MD
	replies   map[string]interface{}
	errs      map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		requests:  make(map[string]map[string]interface{}),
		metadatas: make(map[string]metadata.MD),
		replies:   make(map[string]interface{}),
		errs:      make(map[string]error),
	}
}

func (b *fakeBackend) reply(method string, resp interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[method] = resp
}

func (b *fakeBackend) fail(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[method] = err
}

func (b *fakeBackend) request(method string) map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[method]
}

func (b *fakeBackend) incomingMetadata(method string) metadata.MD {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metadatas[method]
}

func (b *fakeBackend) handle(_ interface{}, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	md, _ := metadata.FromIncomingContext(stream.Context())

	var req map[string]interface{}
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	b.mu.Lock()
	b.requests[method] = req
	b.metadatas[method] = md
	resp, ok := b.replies[method]
	failErr := b.errs[method]
	b.mu.Unlock()

	if failErr != nil {
		return failErr
	}
	if !ok {
		return status.Errorf(codes.Unimplemented, "no reply configured for %s", method)
	}
	return stream.SendMsg(resp)
}

// startFakeBackend serves every platform service from one listener and
// returns a manager pointed at it.
func startFakeBackend(t *testing.T, opts ...ManagerOption) (*fakeBackend, *Manager) {
	t.Helper()

	backend := newFakeBackend()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer(grpc.UnknownServiceHandler(backend.handle))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	addr := lis.Addr().(*net.TCPAddr)
	endpoint := discovery.Endpoint{Host: "127.0.0.1", Port: addr.Port}

	services := make(map[string]discovery.Endpoint, len(KnownServices()))
	for _, service := range KnownServices() {
		services[service] = endpoint
	}

	managerOpts := append([]ManagerOption{WithDefaultTimeout(5 * time.Second)}, opts...)

	mgr, err := NewManager(services, managerOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })

	return backend, mgr
}

func TestKnownServices(t *testing.T) {
	t.Parallel()

	services := KnownServices()

	assert.Equal(t, []string{
		ServiceAuth,
		ServiceProjects,
		ServiceAI,
		ServiceCollaboration,
		ServiceFiles,
	}, services)
}

func TestAuthClient_ValidateToken(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodValidateToken, &TokenValidation{
		Valid:  true,
		UserID: "user-1",
		Email:  "dev@zoptal.com",
		Role:   "developer",
	})

	verdict, err := mgr.Auth().ValidateToken(context.Background(), "token-abc")
	require.NoError(t, err)

	assert.True(t, verdict.Valid)
	assert.Equal(t, "user-1", verdict.UserID)
	assert.Equal(t, "developer", verdict.Role)

	req := backend.request(methodValidateToken)
	assert.Equal(t, "token-abc", req["token"])
}

func TestAuthClient_ValidateToken_Empty(t *testing.T) {
	t.Parallel()

	_, mgr := startFakeBackend(t)

	_, err := mgr.Auth().ValidateToken(context.Background(), "")

	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAuthClient_GetUser(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodGetUser, &User{
		ID:    "user-9",
		Email: "owner@zoptal.com",
		Role:  "admin",
	})

	user, err := mgr.Auth().GetUser(context.Background(), "user-9")
	require.NoError(t, err)

	assert.Equal(t, "user-9", user.ID)
	assert.Equal(t, "owner@zoptal.com", user.Email)

	req := backend.request(methodGetUser)
	assert.Equal(t, "user-9", req["user_id"])
}

func TestProjectsClient_Get(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodGetProject, &Project{
		ID:     "proj-1",
		Name:   "demo",
		Status: "active",
	})

	project, err := mgr.Projects().Get(context.Background(), "proj-1")
	require.NoError(t, err)

	assert.Equal(t, "proj-1", project.ID)
	assert.Equal(t, "demo", project.Name)

	req := backend.request(methodGetProject)
	assert.Equal(t, "proj-1", req["project_id"])
}

func TestProjectsClient_Get_EmptyID(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)

	_, err := mgr.Projects().Get(context.Background(), "")

	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	// Validation failures never reach the wire.
	assert.Nil(t, backend.request(methodGetProject))
}

func TestProjectsClient_List(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodListProjects, &ProjectList{
		Projects: []Project{
			{ID: "proj-1", Name: "one"},
			{ID: "proj-2", Name: "two"},
		},
		Total: 2,
		Page:  1,
		Pages: 1,
	})

	list, err := mgr.Projects().List(context.Background(), &ListProjectsRequest{
		Page:   1,
		Limit:  20,
		Search: "o",
	})
	require.NoError(t, err)

	require.Len(t, list.Projects, 2)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "proj-2", list.Projects[1].ID)

	// JSON numbers arrive as float64 on the untyped side.
	req := backend.request(methodListProjects)
	assert.Equal(t, float64(20), req["limit"])
	assert.Equal(t, "o", req["search"])
}

func TestProjectsClient_List_NilRequest(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodListProjects, &ProjectList{Page: 1, Pages: 1})

	list, err := mgr.Projects().List(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, list.Projects)
	assert.Equal(t, 1, list.Page)
}

func TestProjectsClient_Create(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodCreateProject, &Project{
		ID:       "proj-3",
		Name:     "api",
		Template: "node",
	})

	project, err := mgr.Projects().Create(context.Background(), &CreateProjectRequest{
		Name:       "api",
		Template:   "node",
		Visibility: "team",
	})
	require.NoError(t, err)

	assert.Equal(t, "proj-3", project.ID)

	req := backend.request(methodCreateProject)
	assert.Equal(t, "api", req["name"])
	assert.Equal(t, "node", req["template"])
	assert.Equal(t, "team", req["visibility"])
}

func TestProjectsClient_Create_RequiresName(t *testing.T) {
	t.Parallel()

	_, mgr := startFakeBackend(t)

	_, err := mgr.Projects().Create(context.Background(), &CreateProjectRequest{})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = mgr.Projects().Create(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestProjectsClient_Delete(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodDeleteProject, &struct{}{})

	err := mgr.Projects().Delete(context.Background(), "proj-1", true)
	require.NoError(t, err)

	req := backend.request(methodDeleteProject)
	assert.Equal(t, "proj-1", req["project_id"])
	assert.Equal(t, true, req["force"])
}

func TestAIClient_GenerateCode(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodGenerateCode, &GenerateCodeResponse{
		Code:        "package main",
		Explanation: "a minimal program",
		Language:    "go",
	})

	out, err := mgr.AI().GenerateCode(context.Background(), &GenerateCodeRequest{
		Prompt:   "minimal go program",
		Language: "go",
		Model:    "claude",
	})
	require.NoError(t, err)

	assert.Equal(t, "package main", out.Code)
	assert.Equal(t, "go", out.Language)

	req := backend.request(methodGenerateCode)
	assert.Equal(t, "minimal go program", req["prompt"])
	assert.Equal(t, "claude", req["model"])
}

func TestAIClient_GenerateCode_RequiresPrompt(t *testing.T) {
	t.Parallel()

	_, mgr := startFakeBackend(t)

	_, err := mgr.AI().GenerateCode(context.Background(), &GenerateCodeRequest{Language: "go"})

	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAIClient_AnalyzeCode(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodAnalyzeCode, &AnalyzeCodeResponse{
		Issues: []CodeIssue{
			{Severity: "warning", Line: 3, Message: "unused variable"},
		},
		Suggestions: []string{"remove the variable"},
	})

	out, err := mgr.AI().AnalyzeCode(context.Background(), &AnalyzeCodeRequest{
		Code:     "var unused int",
		Language: "go",
	})
	require.NoError(t, err)

	require.Len(t, out.Issues, 1)
	assert.Equal(t, "unused variable", out.Issues[0].Message)
	assert.Equal(t, 3, out.Issues[0].Line)
}

func TestAIClient_AnalyzeCode_Validation(t *testing.T) {
	t.Parallel()

	_, mgr := startFakeBackend(t)

	_, err := mgr.AI().AnalyzeCode(context.Background(), &AnalyzeCodeRequest{Language: "go"})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = mgr.AI().AnalyzeCode(context.Background(), &AnalyzeCodeRequest{Code: "x := 1"})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCollaborationClient_GetSession(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodGetSession, &Session{
		ID:        "sess-1",
		ProjectID: "proj-1",
		Active:    true,
		Participants: []Participant{
			{UserID: "user-1", Online: true},
		},
	})

	session, err := mgr.Collaboration().GetSession(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", session.ID)
	assert.True(t, session.Active)
	require.Len(t, session.Participants, 1)
	assert.Equal(t, "user-1", session.Participants[0].UserID)

	req := backend.request(methodGetSession)
	assert.Equal(t, "sess-1", req["session_id"])
}

func TestCollaborationClient_ListParticipants(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodListParticipants, map[string]interface{}{
		"participants": []Participant{
			{UserID: "user-1", Role: "editor", Online: true},
			{UserID: "user-2", Role: "viewer"},
		},
	})

	participants, err := mgr.Collaboration().ListParticipants(context.Background(), "sess-1")
	require.NoError(t, err)

	require.Len(t, participants, 2)
	assert.Equal(t, "user-1", participants[0].UserID)
	assert.True(t, participants[0].Online)
	assert.Equal(t, "viewer", participants[1].Role)
}

func TestFilesClient_GetMetadata(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodGetFileMetadata, &FileMetadata{
		ID:          "file-1",
		ProjectID:   "proj-1",
		Path:        "src/main.go",
		Size:        2048,
		ContentType: "text/x-go",
	})

	meta, err := mgr.Files().GetMetadata(context.Background(), "file-1")
	require.NoError(t, err)

	assert.Equal(t, "src/main.go", meta.Path)
	assert.Equal(t, int64(2048), meta.Size)

	req := backend.request(methodGetFileMetadata)
	assert.Equal(t, "file-1", req["file_id"])
}

func TestFilesClient_Delete(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.reply(methodDeleteFile, &struct{}{})

	err := mgr.Files().Delete(context.Background(), "file-1")
	require.NoError(t, err)

	req := backend.request(methodDeleteFile)
	assert.Equal(t, "file-1", req["file_id"])
}

func TestClients_ServerErrorPropagates(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t)
	backend.fail(methodGetProject, status.Error(codes.NotFound, "project missing"))

	_, err := mgr.Projects().Get(context.Background(), "proj-404")

	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Contains(t, err.Error(), "project missing")
}

func TestManager_Invoke_RecordsSuccessOutcome(t *testing.T) {
	t.Parallel()

	breaker := &fakeBreaker{allow: true}

	backend, mgr := startFakeBackend(t, WithBreaker(breaker))
	backend.reply(methodGetUser, &User{ID: "user-3", Email: "u3@zoptal.com"})

	_, err := mgr.Auth().GetUser(context.Background(), "user-3")
	require.NoError(t, err)

	assert.Equal(t, []string{ServiceAuth}, breaker.allowedServices())
	assert.Equal(t, []bool{true}, breaker.outcomes())
}

func TestManager_ChainAttachesToManagedChannels(t *testing.T) {
	t.Parallel()

	backend, mgr := startFakeBackend(t, WithChain(&middleware.Chain{}))
	backend.reply(methodGetProject, &Project{ID: "proj-1"})

	_, err := mgr.Projects().Get(context.Background(), "proj-1")
	require.NoError(t, err)

	// The request id interceptor runs on every managed channel, so
	// the backend sees the stamped header.
	md := backend.incomingMetadata(methodGetProject)
	assert.NotEmpty(t, md.Get(middleware.RequestIDHeader))
}
