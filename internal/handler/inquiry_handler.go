package handler

import (
	"context"
	"net/http"

	"github.com/snoozies/dreamyhaven/internal/inquiry"
	"github.com/snoozies/dreamyhaven/internal/model"
)

// InquiryService はフォーム受付ハンドラーが必要とするサービスインターフェース。
type InquiryService interface {
	SubmitContact(ctx context.Context, in inquiry.ContactInput) (*model.ContactMessage, error)
	SubmitSuggestion(ctx context.Context, in inquiry.SuggestionInput) (*model.StorySuggestion, error)
}

// NewsletterService はニュースレター登録ハンドラーが必要とするサービスインターフェース。
type NewsletterService interface {
	Signup(ctx context.Context, email string) (*model.NewsletterSignup, error)
}

// FormHandler は公開フォーム（お問い合わせ、ストーリー提案、ニュースレター）を扱う。
type FormHandler struct {
	inquiries  InquiryService
	newsletter NewsletterService
}

// NewFormHandler はFormHandlerを生成する。
func NewFormHandler(inquiries InquiryService, newsletter NewsletterService) *FormHandler {
	return &FormHandler{inquiries: inquiries, newsletter: newsletter}
}

type contactRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

type suggestionRequest struct {
	ParentName        string `json:"parent_name"`
	Email             string `json:"email"`
	ChildName         string `json:"child_name"`
	ChildAge          string `json:"child_age"`
	StoryIdea         string `json:"story_idea"`
	Themes            string `json:"themes"`
	Characters        string `json:"characters"`
	AdditionalDetails string `json:"additional_details"`
}

type newsletterRequest struct {
	Email string `json:"email"`
}

// Contact はお問い合わせを受け付ける。
// POST /api/contact
func (h *FormHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.inquiries.SubmitContact(r.Context(), inquiry.ContactInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Subject:   req.Subject,
		Message:   req.Message,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":      msg.ID,
		"message": "Thanks for reaching out! We'll get back to you soon.",
	})
}

// Suggestion はストーリー提案を受け付ける。
// POST /api/suggestions
func (h *FormHandler) Suggestion(w http.ResponseWriter, r *http.Request) {
	var req suggestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.inquiries.SubmitSuggestion(r.Context(), inquiry.SuggestionInput{
		ParentName:        req.ParentName,
		Email:             req.Email,
		ChildName:         req.ChildName,
		ChildAge:          req.ChildAge,
		StoryIdea:         req.StoryIdea,
		Themes:            req.Themes,
		Characters:        req.Characters,
		AdditionalDetails: req.AdditionalDetails,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":      s.ID,
		"message": "Thank you for your story idea! Our storytellers will take a look.",
	})
}

// Newsletter はニュースレターの購読を登録する。
// POST /api/newsletter
func (h *FormHandler) Newsletter(w http.ResponseWriter, r *http.Request) {
	var req newsletterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	signup, err := h.newsletter.Signup(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"email":  signup.Email,
		"status": string(signup.Status),
	})
}
