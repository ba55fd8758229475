// Package model はドメインモデルを定義する。
package model

import "time"

// ContactSubjects はお問い合わせフォームで選択できる件名。
var ContactSubjects = []string{
	"General Question",
	"Technical Support",
	"Billing & Subscription",
	"Story Suggestion",
	"Partnership Inquiry",
	"Other",
}

// ContactMessage はお問い合わせフォームから送信されたメッセージを表す。
type ContactMessage struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Subject   string
	Message   string
	CreatedAt time.Time
}

// StorySuggestion は保護者から寄せられたストーリーのアイデアを表す。
type StorySuggestion struct {
	ID                string
	ParentName        string
	Email             string
	ChildName         string
	ChildAge          string
	StoryIdea         string
	Themes            string
	Characters        string
	AdditionalDetails string
	CreatedAt         time.Time
}

// SignupStatus はニュースレター登録の状態を表す。
type SignupStatus string

const (
	// SignupStatusSubscribed は配信サービスへの登録が完了した状態。
	SignupStatusSubscribed SignupStatus = "subscribed"
	// SignupStatusPending は配信サービス未設定のため保留中の状態。
	SignupStatusPending SignupStatus = "pending"
	// SignupStatusFailed は配信サービスへの登録に失敗した状態。
	SignupStatusFailed SignupStatus = "failed"
)

// NewsletterSignup はニュースレター登録の記録を表す。
type NewsletterSignup struct {
	ID           string
	Email        string
	Status       SignupStatus
	SubscriberID string // 配信サービス側の購読者ID
	CreatedAt    time.Time
}
