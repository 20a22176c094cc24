package notification

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/learningcloud/backend/core"
)

var ErrNotFound = errors.New("notification not found")

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotificationByID(ctx context.Context, id int) (Notification, error)
		FilterNotifications(ctx context.Context, userID int, filter QueryFilter, page core.Pagination) ([]Notification, int, error)
		UnreadCount(ctx context.Context, userID int) (int, error)
		// MarkRead flips the read flag; a no-op on an already-read notification.
		MarkRead(ctx context.Context, id int, at time.Time) error
		MarkAllRead(ctx context.Context, userID int, at time.Time) error
	}

	// AddressResolver looks up where a recipient's emails should go.
	AddressResolver interface {
		RecipientEmail(ctx context.Context, userID int) (mail.Address, error)
	}

	Service struct {
		repo     Repository
		mail     core.EmailService
		resolver AddressResolver
		log      core.Logger
	}
)

func NewService(repo Repository, mailSvc core.EmailService, resolver AddressResolver, log core.Logger) *Service {
	return &Service{repo: repo, mail: mailSvc, resolver: resolver, log: log}
}

// Create stores a notification and dispatches a best-effort email copy.
func (svc *Service) Create(ctx context.Context, n Notification) (Notification, error) {
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	n.CreatedAt = time.Now().UTC()

	n, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		return Notification{}, err
	}
	svc.dispatchEmail(ctx, n)
	return n, nil
}

// NotifyQuizResult satisfies the quiz engine's Notifier contract.
func (svc *Service) NotifyQuizResult(ctx context.Context, studentID int, quizTitle string, score float64, passed bool) {
	verdict := "did not pass"
	if passed {
		verdict = "passed"
	}
	n := Notification{
		UserID:   studentID,
		Type:     TypeQuizResult,
		Priority: PriorityMedium,
		Title:    "Quiz result: " + quizTitle,
		Message:  fmt.Sprintf("You scored %.1f%% and %s.", score, verdict),
		Data:     map[string]interface{}{"quiz_title": quizTitle, "score": score, "is_passed": passed},
	}
	if _, err := svc.Create(ctx, n); err != nil {
		svc.log.Error("creating quiz result notification", err)
	}
}

// NotifyAchievement satisfies the progress tracker's Notifier contract.
func (svc *Service) NotifyAchievement(ctx context.Context, studentID int, title, message string) {
	n := Notification{
		UserID:   studentID,
		Type:     TypeAchievement,
		Priority: PriorityHigh,
		Title:    "Achievement unlocked: " + title,
		Message:  message,
		Data:     map[string]interface{}{"achievement": title},
	}
	if _, err := svc.Create(ctx, n); err != nil {
		svc.log.Error("creating achievement notification", err)
	}
}

func (svc *Service) GetByID(ctx context.Context, userID, id int) (Notification, error) {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != userID {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (svc *Service) Filter(ctx context.Context, userID int, filter QueryFilter, page core.Pagination) ([]Notification, int, error) {
	return svc.repo.FilterNotifications(ctx, userID, filter, page)
}

func (svc *Service) UnreadCount(ctx context.Context, userID int) (int, error) {
	return svc.repo.UnreadCount(ctx, userID)
}

func (svc *Service) MarkRead(ctx context.Context, userID, id int) error {
	if _, err := svc.GetByID(ctx, userID, id); err != nil {
		return err
	}
	return svc.repo.MarkRead(ctx, id, time.Now().UTC())
}

func (svc *Service) MarkAllRead(ctx context.Context, userID int) error {
	return svc.repo.MarkAllRead(ctx, userID, time.Now().UTC())
}

func (svc *Service) dispatchEmail(ctx context.Context, n Notification) {
	if svc.mail == nil || svc.resolver == nil {
		return
	}
	addr, err := svc.resolver.RecipientEmail(ctx, n.UserID)
	if err != nil || addr.Address == "" {
		return // recipient has nowhere to receive email; not an error
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{addr},
		Subject: n.Title,
		BodyStr: n.Message,
	})
}
