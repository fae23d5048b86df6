package httpx

import (
	"time"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/service/task"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type profileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type userResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func toUserResponse(i domain.Identity) userResponse {
	return userResponse{ID: i.ID, FirstName: i.FirstName, LastName: i.LastName, Email: i.Email, Role: string(i.Role)}
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type categoryResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UserEmail   string `json:"userEmail"`
}

func toCategoryResponse(c domain.Category, ownerEmail string) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Description: c.Description, UserEmail: ownerEmail}
}

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CategoryID  int64  `json:"categoryId"`
}

func (t taskRequest) input() task.Input {
	return task.Input{Title: t.Title, Description: t.Description, Status: t.Status, CategoryID: t.CategoryID}
}

type taskResponse struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	UserEmail    string    `json:"userEmail"`
	CategoryName string    `json:"categoryName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toTaskResponse(v task.View) taskResponse {
	return taskResponse{
		ID:           v.ID,
		Title:        v.Title,
		Description:  v.Description,
		Status:       string(v.Status),
		UserEmail:    v.OwnerEmail,
		CategoryName: v.CategoryName,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

func toTaskResponses(views []task.View) []taskResponse {
	out := make([]taskResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toTaskResponse(v))
	}
	return out
}

type pageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func toPageResponse[T, U any](p domain.Page[T], fn func(T) U) pageResponse[U] {
	mapped := domain.MapPage(p, fn)
	return pageResponse[U]{
		Content:       mapped.Items,
		Page:          mapped.Page,
		Size:          mapped.Size,
		TotalElements: mapped.Total,
		TotalPages:    mapped.TotalPages(),
	}
}
