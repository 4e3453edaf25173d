package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"immunization_bot/internal/app"
	"immunization_bot/internal/domain/immunization"
	"immunization_bot/internal/domain/vaccination"
	idb "immunization_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const uniqueVaccinationDone = "vaccination_done"

// btnVaccinationDone is the endpoint of the "접종 완료" inline button; its payload is a schedule ID.
var btnVaccinationDone = telebot.Btn{Unique: uniqueVaccinationDone}

// RegisterScheduleHandlers registers the schedule query commands and the completion callback.
func RegisterScheduleHandlers(
	ctx context.Context,
	b *telebot.Bot,
	childService *app.ChildService,
	scheduleService *app.ScheduleService,
	upcomingDays int,
	now app.Clock,
	baseLogger *logrus.Entry,
) {
	handlerLogger := func(c telebot.Context, command string) *logrus.Entry {
		return baseLogger.WithFields(logrus.Fields{
			"handler":   command,
			"sender_id": c.Sender().ID,
		})
	}

	b.Handle("/schedule", func(c telebot.Context) error {
		log := handlerLogger(c, "/schedule")
		target, reply := resolveChild(ctx, c, childService, "사용법: /schedule <아이ID> [all]", log)
		if target == nil {
			return c.Send(reply)
		}

		args := c.Args()
		includeOptional := len(args) > 1 && strings.EqualFold(args[1], "all")
		entries, err := scheduleService.ChildSchedule(target, includeOptional)
		if err != nil {
			log.WithError(err).Error("Failed to compute schedule")
			return c.Send("접종 일정을 계산하지 못했습니다.")
		}
		return c.Send(formatSchedule(target, entries, includeOptional))
	})

	b.Handle("/upcoming", func(c telebot.Context) error {
		log := handlerLogger(c, "/upcoming")
		usage := "사용법: /upcoming <아이ID> [일수]"
		target, reply := resolveChild(ctx, c, childService, usage, log)
		if target == nil {
			return c.Send(reply)
		}
		days, err := parseDays(c.Args(), 1, upcomingDays)
		if err != nil {
			return c.Send(err.Error() + "\n" + usage)
		}

		entries, err := scheduleService.Upcoming(ctx, target, days)
		if err != nil {
			log.WithError(err).Error("Failed to compute upcoming vaccinations")
			return c.Send("다가오는 접종을 계산하지 못했습니다.")
		}
		return c.Send(formatUpcoming(target, entries, days))
	})

	b.Handle("/overdue", func(c telebot.Context) error {
		log := handlerLogger(c, "/overdue")
		target, reply := resolveChild(ctx, c, childService, "사용법: /overdue <아이ID>", log)
		if target == nil {
			return c.Send(reply)
		}

		entries, err := scheduleService.Overdue(ctx, target)
		if err != nil {
			log.WithError(err).Error("Failed to compute overdue vaccinations")
			return c.Send("지난 접종을 계산하지 못했습니다.")
		}
		return c.Send(formatOverdue(target, entries))
	})

	b.Handle("/stats", func(c telebot.Context) error {
		log := handlerLogger(c, "/stats")
		target, reply := resolveChild(ctx, c, childService, "사용법: /stats <아이ID>", log)
		if target == nil {
			return c.Send(reply)
		}

		st, err := scheduleService.Stats(ctx, target.ID, upcomingDays)
		if err != nil {
			log.WithError(err).WithField("child_id", target.ID).Error("Failed to compute stats")
			return c.Send("접종 현황을 불러오지 못했습니다.")
		}
		return c.Send(formatStats(target, st, upcomingDays))
	})

	b.Handle("/next", func(c telebot.Context) error {
		log := handlerLogger(c, "/next")
		target, reply := resolveChild(ctx, c, childService, "사용법: /next <아이ID>", log)
		if target == nil {
			return c.Send(reply)
		}

		next, err := scheduleService.NextPending(ctx, target.ID)
		if err != nil {
			log.WithError(err).WithField("child_id", target.ID).Error("Failed to load next schedule")
			return c.Send("다음 접종을 불러오지 못했습니다.")
		}
		text := formatNextPending(target, next, now())
		if next == nil {
			return c.Send(text)
		}

		replyMarkup := &telebot.ReplyMarkup{}
		btnDone := replyMarkup.Data("접종 완료", uniqueVaccinationDone, strconv.FormatInt(next.ID, 10))
		replyMarkup.Inline(replyMarkup.Row(btnDone))
		return c.Send(text, replyMarkup)
	})

	b.Handle(&btnVaccinationDone, vaccinationDoneHandler(ctx, scheduleService, b.OnError, baseLogger))
}

type completionMarker interface {
	MarkCompleted(ctx context.Context, parentTelegramID, scheduleID int64, on immunization.Date) (*vaccination.Schedule, error)
}

func vaccinationDoneHandler(ctx context.Context, svc completionMarker, onError func(error, telebot.Context), baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		log := baseLogger.WithFields(logrus.Fields{
			"handler":   uniqueVaccinationDone,
			"sender_id": c.Sender().ID,
		})
		data := c.Callback().Data

		scheduleID, err := strconv.ParseInt(data, 10, 64)
		if err != nil {
			onError(fmt.Errorf("invalid schedule ID '%s' in callback: %w", data, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "잘못된 요청입니다."})
		}
		log = log.WithField("schedule_id", scheduleID)

		completed, err := svc.MarkCompleted(ctx, c.Sender().ID, scheduleID, immunization.Date{})
		if err != nil {
			switch {
			case errors.Is(err, idb.ErrScheduleNotFound), errors.Is(err, app.ErrNotChildOwner):
				log.WithError(err).Warn("Stale or foreign completion callback")
				return c.Respond(&telebot.CallbackResponse{Text: "접종 일정을 찾을 수 없습니다."})
			default:
				onError(fmt.Errorf("error marking schedule %d completed: %w", scheduleID, err), c)
				return c.Respond(&telebot.CallbackResponse{Text: "오류가 발생했습니다."})
			}
		}

		if err := c.Respond(&telebot.CallbackResponse{Text: "완료로 기록했습니다!"}); err != nil {
			log.WithError(err).Warn("Failed to answer callback")
		}
		return c.Edit(formatCompleted(completed))
	}
}
