package handlers

import (
	"time"

	"github.com/tick42/quicksilver/internal/models"
)

type registerRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=20"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type createExtensionRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
	Version     string `json:"version" validate:"required,max=30"`
	GithubLink  string `json:"github_link" validate:"omitempty,url"`
}

type updateExtensionRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Version     *string `json:"version" validate:"omitempty,max=30"`
	GithubLink  *string `json:"github_link" validate:"omitempty,url"`
}

type userResponse struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	State        string    `json:"state"`
	ProfileImage *string   `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:           user.ID,
		Username:     user.Username,
		Role:         user.Role,
		State:        user.State,
		ProfileImage: user.ProfileImage,
		CreatedAt:    user.CreatedAt,
	}
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type githubResponse struct {
	Link         string     `json:"link"`
	LastCommit   *time.Time `json:"last_commit,omitempty"`
	OpenIssues   int        `json:"open_issues"`
	PullRequests int        `json:"pull_requests"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFail     *time.Time `json:"last_fail,omitempty"`
	FailMessage  *string    `json:"fail_message,omitempty"`
}

type extensionResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Version     string          `json:"version"`
	OwnerID     int64           `json:"owner_id"`
	OwnerName   string          `json:"owner_name"`
	State       string          `json:"state"`
	Featured    bool            `json:"featured"`
	Downloads   int64           `json:"downloads"`
	Logo        *string         `json:"logo,omitempty"`
	Cover       *string         `json:"cover,omitempty"`
	File        *string         `json:"file,omitempty"`
	GitHub      *githubResponse `json:"github,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// newExtensionResponse is the single projection from the stored record to
// its wire shape; every endpoint goes through it.
func newExtensionResponse(ext *models.Extension) extensionResponse {
	resp := extensionResponse{
		ID:          ext.ID,
		Name:        ext.Name,
		Description: ext.Description,
		Version:     ext.Version,
		OwnerID:     ext.OwnerID,
		OwnerName:   ext.OwnerName,
		State:       ext.State,
		Featured:    ext.Featured,
		Downloads:   ext.Downloads,
		Logo:        ext.Logo,
		Cover:       ext.Cover,
		File:        ext.File,
		CreatedAt:   ext.CreatedAt,
		UpdatedAt:   ext.UpdatedAt,
	}

	if ext.GitHub != nil {
		resp.GitHub = &githubResponse{
			Link:         ext.GitHub.Link,
			LastCommit:   ext.GitHub.LastCommit,
			OpenIssues:   ext.GitHub.OpenIssues,
			PullRequests: ext.GitHub.PullRequests,
			LastSuccess:  ext.GitHub.LastSuccess,
			LastFail:     ext.GitHub.LastFail,
			FailMessage:  ext.GitHub.FailMessage,
		}
	}

	return resp
}

func newExtensionResponses(extensions []*models.Extension) []extensionResponse {
	responses := make([]extensionResponse, 0, len(extensions))
	for _, ext := range extensions {
		responses = append(responses, newExtensionResponse(ext))
	}
	return responses
}

func newExtensionPage(page *models.PageResult[*models.Extension]) *models.PageResult[extensionResponse] {
	return &models.PageResult[extensionResponse]{
		Items:        newExtensionResponses(page.Items),
		CurrentPage:  page.CurrentPage,
		TotalPages:   page.TotalPages,
		TotalResults: page.TotalResults,
	}
}

type profileResponse struct {
	userResponse
	Extensions []extensionResponse `json:"extensions"`
}
