package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"immunization_bot/internal/app"
	"immunization_bot/internal/domain/vaccination"
	idb "immunization_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const uniqueNotificationRead = "notification_read"

// btnNotificationRead is the endpoint of the inbox "읽음" buttons; its payload is a notification ID.
var btnNotificationRead = telebot.Btn{Unique: uniqueNotificationRead}

type inboxService interface {
	ListInbox(ctx context.Context, parentTelegramID int64) ([]*vaccination.ParentNotification, error)
	MarkRead(ctx context.Context, parentTelegramID, notificationID int64) (*vaccination.Notification, error)
}

// RegisterNotificationHandlers registers the notification inbox command and its read callback.
func RegisterNotificationHandlers(
	ctx context.Context,
	b *telebot.Bot,
	notificationService app.NotificationService,
	baseLogger *logrus.Entry,
) {
	b.Handle("/notifications", inboxHandler(ctx, notificationService, baseLogger))
	b.Handle(&btnNotificationRead, notificationReadHandler(ctx, notificationService, b.OnError, baseLogger))
}

func inboxHandler(ctx context.Context, svc inboxService, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		log := baseLogger.WithFields(logrus.Fields{
			"handler":   "/notifications",
			"sender_id": c.Sender().ID,
		})

		list, err := svc.ListInbox(ctx, c.Sender().ID)
		if err != nil {
			log.WithError(err).Error("Failed to list notifications")
			return c.Send("알림을 불러오는 중 오류가 발생했습니다.")
		}

		log.WithField("notifications_count", len(list)).Info("Successfully retrieved notifications")
		if len(list) == 0 {
			return c.Send(formatInbox(list))
		}
		return c.Send(formatInbox(list), inboxMarkup(list))
	}
}

func notificationReadHandler(ctx context.Context, svc inboxService, onError func(error, telebot.Context), baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		log := baseLogger.WithFields(logrus.Fields{
			"handler":   uniqueNotificationRead,
			"sender_id": c.Sender().ID,
		})
		data := c.Callback().Data

		notificationID, err := strconv.ParseInt(data, 10, 64)
		if err != nil {
			onError(fmt.Errorf("invalid notification ID '%s' in callback: %w", data, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "잘못된 요청입니다."})
		}
		log = log.WithField("notification_id", notificationID)

		if _, err := svc.MarkRead(ctx, c.Sender().ID, notificationID); err != nil {
			switch {
			case errors.Is(err, idb.ErrNotificationNotFound), errors.Is(err, app.ErrNotChildOwner):
				log.WithError(err).Warn("Stale or foreign read callback")
				return c.Respond(&telebot.CallbackResponse{Text: "알림을 찾을 수 없습니다."})
			case errors.Is(err, app.ErrNotificationNotDue):
				log.WithError(err).Warn("Read callback for a pending notification")
				return c.Respond(&telebot.CallbackResponse{Text: "아직 알림 날짜가 되지 않았습니다."})
			default:
				onError(fmt.Errorf("error marking notification %d read: %w", notificationID, err), c)
				return c.Respond(&telebot.CallbackResponse{Text: "오류가 발생했습니다."})
			}
		}

		if err := c.Respond(&telebot.CallbackResponse{Text: "읽음으로 표시했습니다."}); err != nil {
			log.WithError(err).Warn("Failed to answer callback")
		}

		list, err := svc.ListInbox(ctx, c.Sender().ID)
		if err != nil {
			log.WithError(err).Error("Failed to refresh notifications")
			return nil
		}
		return c.Edit(formatInbox(list), inboxMarkup(list))
	}
}
