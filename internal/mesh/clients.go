package mesh

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Platform service names. The mesh manages exactly this set; Invoke
// rejects anything else.
const (
	ServiceAuth          = "auth"
	ServiceProjects      = "projects"
	ServiceAI            = "ai"
	ServiceCollaboration = "collaboration"
	ServiceFiles         = "files"
)

// KnownServices returns the platform service names, in dial order.
func KnownServices() []string {
	return []string{
		ServiceAuth,
		ServiceProjects,
		ServiceAI,
		ServiceCollaboration,
		ServiceFiles,
	}
}

// Full method paths per service.
const (
	methodValidateToken = "/zoptal.auth.v1.AuthService/ValidateToken"
	methodGetUser       = "/zoptal.auth.v1.AuthService/GetUser"

	methodGetProject    = "/zoptal.projects.v1.ProjectsService/GetProject"
	methodListProjects  = "/zoptal.projects.v1.ProjectsService/ListProjects"
	methodCreateProject = "/zoptal.projects.v1.ProjectsService/CreateProject"
	methodDeleteProject = "/zoptal.projects.v1.ProjectsService/DeleteProject"

	methodGenerateCode = "/zoptal.ai.v1.AIService/GenerateCode"
	methodAnalyzeCode  = "/zoptal.ai.v1.AIService/AnalyzeCode"

	methodGetSession       = "/zoptal.collaboration.v1.CollaborationService/GetSession"
	methodListParticipants = "/zoptal.collaboration.v1.CollaborationService/ListParticipants"

	methodGetFileMetadata = "/zoptal.files.v1.FilesService/GetMetadata"
	methodDeleteFile      = "/zoptal.files.v1.FilesService/DeleteFile"
)

// TokenValidation is the auth service's verdict on a token.
type TokenValidation struct {
	Valid       bool      `json:"valid"`
	UserID      string    `json:"user_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	Role        string    `json:"role,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// User is an account record from the auth service.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is a workspace on the platform.
type Project struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Template    string                 `json:"template,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Visibility  string                 `json:"visibility,omitempty"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// ListProjectsRequest filters and paginates a project listing.
type ListProjectsRequest struct {
	Page     int    `json:"page,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Search   string `json:"search,omitempty"`
	Status   string `json:"status,omitempty"`
	Template string `json:"template,omitempty"`
}

// ProjectList is one page of projects.
type ProjectList struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
}

// CreateProjectRequest describes a project to create.
type CreateProjectRequest struct {
	Name        string                 `json:"name"`
	Template    string                 `json:"template,omitempty"`
	Description string                 `json:"description,omitempty"`
	Visibility  string                 `json:"visibility,omitempty"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
}

// GenerateCodeRequest asks the AI service to write code.
type GenerateCodeRequest struct {
	Prompt    string                 `json:"prompt"`
	Language  string                 `json:"language,omitempty"`
	Framework string                 `json:"framework,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Model     string                 `json:"model,omitempty"`
}

// GenerateCodeResponse carries generated code and its explanation.
type GenerateCodeResponse struct {
	Code        string   `json:"code"`
	Explanation string   `json:"explanation,omitempty"`
	Language    string   `json:"language,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Tests       string   `json:"tests,omitempty"`
}

// AnalyzeCodeRequest asks the AI service to review code.
type AnalyzeCodeRequest struct {
	Code               string `json:"code"`
	Language           string `json:"language"`
	AnalysisType       string `json:"analysis_type,omitempty"`
	IncludeSuggestions bool   `json:"include_suggestions,omitempty"`
}

// CodeIssue is one finding from code analysis.
type CodeIssue struct {
	Severity string `json:"severity,omitempty"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
}

// AnalyzeCodeResponse is the AI service's review of a code sample.
type AnalyzeCodeResponse struct {
	Issues           []CodeIssue        `json:"issues,omitempty"`
	Suggestions      []string           `json:"suggestions,omitempty"`
	Metrics          map[string]float64 `json:"metrics,omitempty"`
	SecurityWarnings []string           `json:"security_warnings,omitempty"`
	PerformanceTips  []string           `json:"performance_tips,omitempty"`
}

// Participant is one member of a collaboration session.
type Participant struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name,omitempty"`
	Role     string    `json:"role,omitempty"`
	Online   bool      `json:"online"`
	JoinedAt time.Time `json:"joined_at"`
}

// Session is a live collaboration session on a project.
type Session struct {
	ID           string        `json:"id"`
	ProjectID    string        `json:"project_id"`
	Active       bool          `json:"active"`
	Participants []Participant `json:"participants,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// FileMetadata describes a stored file without its contents.
type FileMetadata struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuthClient calls the auth service through the mesh.
type AuthClient struct {
	m *Manager
}

// Auth returns a typed client for the auth service.
func (m *Manager) Auth() *AuthClient {
	return &AuthClient{m: m}
}

// ValidateToken asks the auth service whether a token is valid.
func (c *AuthClient) ValidateToken(ctx context.Context, token string) (*TokenValidation, error) {
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	req := struct {
		Token string `json:"token"`
	}{Token: token}

	var out TokenValidation
	if err := c.m.Invoke(ctx, ServiceAuth, methodValidateToken, &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUser fetches an account record.
func (c *AuthClient) GetUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}

	req := struct {
		UserID string `json:"user_id"`
	}{UserID: userID}

	var out User
	if err := c.m.Invoke(ctx, ServiceAuth, methodGetUser, &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProjectsClient calls the projects service through the mesh.
type ProjectsClient struct {
	m *Manager
}

// Projects returns a typed client for the projects service.
func (m *Manager) Projects() *ProjectsClient {
	return &ProjectsClient{m: m}
}

// Get fetches one project.
func (c *ProjectsClient) Get(ctx context.Context, projectID string) (*Project, error) {
	if projectID == "" {
		return nil, status.Error(codes.InvalidArgument, "project id is required")
	}

	req := struct {
		ProjectID string `json:"project_id"`
	}{ProjectID: projectID}

	var out Project
	if err := c.m.Invoke(ctx, ServiceProjects, methodGetProject, &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns one page of projects. A nil request lists the first
// page with server-side defaults.
func (c *ProjectsClient) List(ctx context.Context, req *ListProjectsRequest) (*ProjectList, error) {
	if req == nil {
		req = &ListProjectsRequest{}
	}

	var out ProjectList
	if err := c.m.Invoke(ctx, ServiceProjects, methodListProjects, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create makes a new project.
func (c *ProjectsClient) Create(ctx context.Context, req *CreateProjectRequest) (*Project, error) {
	if req == nil || req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "project name is required")
	}

	var out Project
	if err := c.m.Invoke(ctx, ServiceProjects, methodCreateProject, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a project. With force the project is destroyed
// instead of moved to trash.
func (c *ProjectsClient) Delete(ctx context.Context, projectID string, force bool) error {
	if projectID == "" {
		return status.Error(codes.InvalidArgument, "project id is required")
	}

	req := struct {
		ProjectID string `json:"project_id"`
		Force     bool   `json:"force,omitempty"`
	}{ProjectID: projectID, Force: force}

	var out struct{}
	return c.m.Invoke(ctx, ServiceProjects, methodDeleteProject, &req, &out)
}

// AIClient calls the ai service through the mesh.
type AIClient struct {
	m *Manager
}

// AI returns a typed client for the ai service.
func (m *Manager) AI() *AIClient {
	return &AIClient{m: m}
}

// GenerateCode asks the AI service to write code from a prompt.
func (c *AIClient) GenerateCode(ctx context.Context, req *GenerateCodeRequest) (*GenerateCodeResponse, error) {
	if req == nil || req.Prompt == "" {
		return nil, status.Error(codes.InvalidArgument, "prompt is required")
	}

	var out GenerateCodeResponse
	if err := c.m.Invoke(ctx, ServiceAI, methodGenerateCode, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeCode asks the AI service to review a code sample.
func (c *AIClient) AnalyzeCode(ctx context.Context, req *AnalyzeCodeRequest) (*AnalyzeCodeResponse, error) {
	if req == nil || req.Code == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}
	if req.Language == "" {
		return nil, status.Error(codes.InvalidArgument, "language is required")
	}

	var out AnalyzeCodeResponse
	if err := c.m.Invoke(ctx, ServiceAI, methodAnalyzeCode, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CollaborationClient calls the collaboration service through the mesh.
type CollaborationClient struct {
	m *Manager
}

// Collaboration returns a typed client for the collaboration service.
func (m *Manager) Collaboration() *CollaborationClient {
	return &CollaborationClient{m: m}
}

// GetSession fetches a collaboration session.
func (c *CollaborationClient) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session id is required")
	}

	req := struct {
		SessionID string `json:"session_id"`
	}{SessionID: sessionID}

	var out Session
	if err := c.m.Invoke(ctx, ServiceCollaboration, methodGetSession, &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListParticipants returns the members of a session.
func (c *CollaborationClient) ListParticipants(ctx context.Context, sessionID string) ([]Participant, error) {
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session id is required")
	}

	req := struct {
		SessionID string `json:"session_id"`
	}{SessionID: sessionID}

	var out struct {
		Participants []Participant `json:"participants"`
	}
	if err := c.m.Invoke(ctx, ServiceCollaboration, methodListParticipants, &req, &out); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

// FilesClient calls the files service through the mesh.
type FilesClient struct {
	m *Manager
}

// Files returns a typed client for the files service.
func (m *Manager) Files() *FilesClient {
	return &FilesClient{m: m}
}

// GetMetadata fetches a file's metadata without its contents.
func (c *FilesClient) GetMetadata(ctx context.Context, fileID string) (*FileMetadata, error) {
	if fileID == "" {
		return nil, status.Error(codes.InvalidArgument, "file id is required")
	}

	req := struct {
		FileID string `json:"file_id"`
	}{FileID: fileID}

	var out FileMetadata
	if err := c.m.Invoke(ctx, ServiceFiles, methodGetFileMetadata, &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a file.
func (c *FilesClient) Delete(ctx context.Context, fileID string) error {
	if fileID == "" {
		return status.Error(codes.InvalidArgument, "file id is required")
	}

	req := struct {
		FileID string `json:"file_id"`
	}{FileID: fileID}

	var out struct{}
	return c.m.Invoke(ctx, ServiceFiles, methodDeleteFile, &req, &out)
}
