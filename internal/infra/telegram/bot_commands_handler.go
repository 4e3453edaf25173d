// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"

	"immunization_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	childService *app.ChildService,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		children, err := childService.ListChildren(ctx, senderID)
		if err != nil {
			logCtx.WithError(err).Error("Error listing children for /start command")
			return c.Send("아이 정보를 확인하는 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요.")
		}

		if len(children) > 0 {
			logCtx.WithField("children_count", len(children)).Info("User identified as registered parent")
			return c.Send(fmt.Sprintf("안녕하세요, %s님! 등록된 아이가 %d명 있습니다. /children 으로 목록을 보고 /help 로 명령어를 확인하세요.", c.Sender().FirstName, len(children)))
		}

		logCtx.Info("User has no registered children")
		return c.Send(fmt.Sprintf("안녕하세요, %s님! 예방접종 일정 도우미입니다.\n\n%s\n로 아이를 등록하면 국가필수 예방접종 일정을 계산해 드립니다.", c.Sender().FirstName, usageAddChild))
	})

	b.Handle("/help", func(c telebot.Context) error {
		startHelpLogger.WithField("command", "/help").WithField("sender_id", c.Sender().ID).Info("Processing /help command")
		return c.Send(helpText())
	})
}
