package telegram

import (
	"context"
	"errors"
	"fmt"

	"immunization_bot/internal/app"
	"immunization_bot/internal/domain/child"
	"immunization_bot/internal/domain/immunization"
	idb "immunization_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterChildHandlers registers handlers for registering and listing children.
func RegisterChildHandlers(
	ctx context.Context,
	b *telebot.Bot,
	childService *app.ChildService,
	scheduleService *app.ScheduleService,
	now app.Clock,
	baseLogger *logrus.Entry,
) {
	b.Handle("/add_child", addChildHandler(ctx, childService, scheduleService, baseLogger))

	b.Handle("/children", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/children",
			"sender_id": c.Sender().ID,
		})

		children, err := childService.ListChildren(ctx, c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list children")
			return c.Send("아이 목록을 불러오는 중 오류가 발생했습니다.")
		}

		handlerLogger.WithField("children_count", len(children)).Info("Successfully retrieved children list")
		return c.Send(formatChildren(children, now()))
	})
}

type childRegistrar interface {
	AddChild(ctx context.Context, parentTelegramID int64, name string, birth immunization.Date, gender immunization.Gender) (*child.Child, error)
}

type scheduleCreator interface {
	CreateVaccinationSchedules(ctx context.Context, childID int64) (int, error)
}

func addChildHandler(ctx context.Context, children childRegistrar, schedules scheduleCreator, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/add_child",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		// Expected format: /add_child <Name> <YYYY-MM-DD> [male|female]
		args, err := parseAddChildArgs(c.Args())
		if err != nil {
			handlerLogger.WithField("args_count", len(c.Args())).Warn("Invalid command format")
			return c.Send(err.Error() + "\n" + usageAddChild)
		}

		newChild, err := children.AddChild(ctx, c.Sender().ID, args.Name, args.Birth, args.Gender)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrInvalidChildName):
				logWithError.Warn("Invalid child name")
				return c.Send("이름은 1자 이상 50자 이하로 입력해 주세요.")
			case errors.Is(err, app.ErrBirthDateInFuture):
				logWithError.Warn("Birth date in the future")
				return c.Send("생년월일이 미래 날짜입니다. 날짜를 확인해 주세요.")
			default:
				logWithError.Error("Failed to add child")
				return c.Send("아이를 등록하는 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요.")
			}
		}
		handlerLogger = handlerLogger.WithField("child_id", newChild.ID)

		created, err := schedules.CreateVaccinationSchedules(ctx, newChild.ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Child added but schedule creation failed")
			return c.Send(fmt.Sprintf("%s (ID %d) 등록은 되었지만 접종 일정을 만들지 못했습니다. /schedule %d 로 계산된 일정은 확인할 수 있습니다.", newChild.Name, newChild.ID, newChild.ID))
		}

		handlerLogger.WithField("schedules", created).Info("Child added successfully")
		return c.Send(formatChildAdded(newChild, created))
	}
}

// resolveChild reads the child ID argument and loads the sender's child. On failure it returns
// the reply to send instead.
func resolveChild(ctx context.Context, c telebot.Context, childService *app.ChildService, usage string, log *logrus.Entry) (*child.Child, string) {
	childID, err := parseChildID(c.Args())
	if err != nil {
		log.WithField("args", c.Args()).Warn("Invalid child ID argument")
		return nil, err.Error() + "\n" + usage
	}

	found, err := childService.GetChild(ctx, c.Sender().ID, childID)
	if err != nil {
		logWithError := log.WithError(err).WithField("child_id", childID)
		switch {
		case errors.Is(err, idb.ErrChildNotFound), errors.Is(err, app.ErrNotChildOwner):
			logWithError.Warn("Child not available to sender")
			return nil, fmt.Sprintf("ID %d 인 아이를 찾을 수 없습니다. /children 으로 등록된 아이를 확인하세요.", childID)
		default:
			logWithError.Error("Failed to load child")
			return nil, "아이 정보를 불러오는 중 오류가 발생했습니다."
		}
	}
	return found, ""
}
