package handlers

import (
	"log"

	"github.com/orbita-social/backend/internal/models"
	"github.com/orbita-social/backend/internal/repositories"
)

// notifyActivity creates a notification as a best-effort side effect of a
// post/comment/follow mutation. Self-notifications are suppressed and
// failures are logged, never surfaced to the caller.
func notifyActivity(notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository, notif *models.Notification, verb string) {
	if notifRepo == nil || notif.ActorID == notif.RecipientID {
		return
	}

	if actor, err := userRepo.GetUserByID(notif.ActorID); err == nil {
		notif.Message = actor.DisplayName + " " + verb
	}

	if err := notifRepo.CreateNotification(notif); err != nil {
		log.Printf("failed to create %s notification for user %d: %v", notif.Type, notif.RecipientID, err)
	}
}
