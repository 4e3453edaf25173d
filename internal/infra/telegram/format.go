// internal/infra/telegram/format.go
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"immunization_bot/internal/app"
	"immunization_bot/internal/domain/child"
	"immunization_bot/internal/domain/immunization"
	"immunization_bot/internal/domain/vaccination"

	"gopkg.in/telebot.v3"
)

const (
	usageAddChild   = "사용법: /add_child <이름> <YYYY-MM-DD> [male|female]"
	maxUpcomingDays = 365
)

// argError is a user-facing explanation of malformed command arguments.
type argError string

func (e argError) Error() string { return string(e) }

const errArgCount argError = "인자 개수가 맞지 않습니다."

// addChildArgs is the parsed form of /add_child.
type addChildArgs struct {
	Name   string
	Birth  immunization.Date
	Gender immunization.Gender
}

func parseAddChildArgs(args []string) (addChildArgs, error) {
	if len(args) < 2 || len(args) > 3 {
		return addChildArgs{}, errArgCount
	}
	birth, err := immunization.ParseDate(args[1])
	if err != nil {
		return addChildArgs{}, argError("생년월일은 YYYY-MM-DD 형식이어야 합니다.")
	}
	parsed := addChildArgs{Name: strings.TrimSpace(args[0]), Birth: birth}
	if len(args) == 3 {
		parsed.Gender, err = immunization.ParseGender(args[2])
		if err != nil {
			return addChildArgs{}, argError("성별은 male 또는 female 이어야 합니다.")
		}
	}
	return parsed, nil
}

func parseChildID(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, errArgCount
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, argError("아이 ID는 양의 정수여야 합니다.")
	}
	return id, nil
}

// parseDays reads an optional window argument, falling back to def.
func parseDays(args []string, idx, def int) (int, error) {
	if len(args) <= idx {
		return def, nil
	}
	days, err := strconv.Atoi(args[idx])
	if err != nil || days < 0 || days > maxUpcomingDays {
		return 0, argError(fmt.Sprintf("기간은 0에서 %d 사이의 일수여야 합니다.", maxUpcomingDays))
	}
	return days, nil
}

func genderLabel(g immunization.Gender) string {
	switch g {
	case immunization.GenderMale:
		return "남아"
	case immunization.GenderFemale:
		return "여아"
	default:
		return "성별 미지정"
	}
}

// ageLabel renders a child's age at now as 생후 N개월 (or N일 under a month).
func ageLabel(birth immunization.Date, now time.Time) string {
	today := immunization.DateOf(now)
	months := (today.Year-birth.Year)*12 + int(today.Month-birth.Month)
	if birth.AddMonths(months).After(today) {
		months--
	}
	if months < 1 {
		days := int(today.In(time.UTC).Sub(birth.In(time.UTC)).Hours() / 24)
		return fmt.Sprintf("생후 %d일", days)
	}
	return fmt.Sprintf("생후 %d개월", months)
}

func formatChildren(children []*child.Child, now time.Time) string {
	if len(children) == 0 {
		return "등록된 아이가 없습니다. /add_child 로 아이를 등록해 주세요."
	}
	var b strings.Builder
	b.WriteString("👶 등록된 아이 목록\n")
	for _, c := range children {
		fmt.Fprintf(&b, "\nID %d: %s (%s, %s생, %s)", c.ID, c.Name, genderLabel(c.Gender), c.BirthDate, ageLabel(c.BirthDate, now))
	}
	return b.String()
}

func formatChildAdded(c *child.Child, created int) string {
	return fmt.Sprintf("%s (ID %d) 등록 완료! 필수 예방접종 %d건의 일정을 만들었습니다.\n/schedule %d 로 일정을 확인하세요.",
		c.Name, c.ID, created, c.ID)
}

func entryLine(e immunization.ScheduleEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s %d차 (%s)", e.VaccinationDate, e.VaccineName, e.DoseNumber, e.AgeDescription)
	if !e.Mandatory {
		b.WriteString(" [선택]")
	}
	if e.Annual {
		b.WriteString(" [매년]")
	}
	if e.Overdue {
		b.WriteString(" ⚠️ 접종일 지남")
	}
	fmt.Fprintf(&b, "\n    %s · 알림 %s", e.Disease, e.NotificationDate)
	return b.String()
}

func formatSchedule(c *child.Child, entries []immunization.ScheduleEntry, includeOptional bool) string {
	scope := "국가필수"
	if includeOptional {
		scope = "전체"
	}
	if len(entries) == 0 {
		return fmt.Sprintf("%s의 %s 예방접종 일정이 없습니다.", c.Name, scope)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s의 %s 예방접종 일정 (%d건)\n", c.Name, scope, len(entries))
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(entryLine(e))
	}
	return b.String()
}

func formatUpcoming(c *child.Child, entries []immunization.ScheduleEntry, days int) string {
	if len(entries) == 0 {
		return fmt.Sprintf("앞으로 %d일 안에 %s의 예정된 접종이 없습니다.", days, c.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s의 %d일 이내 예정 접종 (%d건)\n", c.Name, days, len(entries))
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(entryLine(e))
	}
	return b.String()
}

func formatOverdue(c *child.Child, entries []immunization.ScheduleEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("%s의 지난 필수 접종이 없습니다. 👍", c.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ %s의 접종일이 지난 필수 접종 (%d건)\n", c.Name, len(entries))
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(entryLine(e))
	}
	b.WriteString("\n\n이미 접종했다면 /next 로 완료 처리할 수 있습니다.")
	return b.String()
}

func formatStats(c *child.Child, st *app.Stats, days int) string {
	return fmt.Sprintf("📊 %s의 접종 현황\n\n전체: %d건\n완료: %d건 (%.1f%%)\n%d일 이내 예정: %d건\n지연: %d건",
		c.Name, st.Total, st.Completed, st.CompletionRate, days, st.Upcoming, st.Overdue)
}

func formatNextPending(c *child.Child, s *vaccination.Schedule, now time.Time) string {
	if s == nil {
		return fmt.Sprintf("🎉 %s의 저장된 접종 일정을 모두 완료했습니다.", c.Name)
	}
	e := s.Entry(now)
	return fmt.Sprintf("💉 %s의 다음 접종\n\n%s\n\n접종을 마쳤다면 아래 버튼을 눌러 주세요.", c.Name, entryLine(e))
}

func formatCompleted(s *vaccination.Schedule) string {
	on := ""
	if s.CompletedDate != nil {
		on = s.CompletedDate.String()
	}
	return fmt.Sprintf("✅ %s %d차 접종을 %s 완료로 기록했습니다.", s.VaccineName, s.DoseNumber, on)
}

// maxInboxButtons caps the read buttons attached to one /notifications reply.
const maxInboxButtons = 10

func formatInbox(list []*vaccination.ParentNotification) string {
	if len(list) == 0 {
		return "새 접종 알림이 없습니다."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 확인하지 않은 접종 알림 (%d건)\n", len(list))
	for i, n := range list {
		fmt.Fprintf(&b, "\n%d. %s: %s %d차, 접종일 %s (알림 %s)", i+1, n.ChildName, n.VaccineName, n.DoseNumber, n.VaccinationDate, n.NotificationDate)
	}
	if len(list) > maxInboxButtons {
		fmt.Fprintf(&b, "\n\n앞의 %d건만 읽음 버튼이 표시됩니다.", maxInboxButtons)
	}
	return b.String()
}

func inboxMarkup(list []*vaccination.ParentNotification) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	rows := make([]telebot.Row, 0, maxInboxButtons)
	for i, n := range list {
		if i == maxInboxButtons {
			break
		}
		label := fmt.Sprintf("%d. 읽음", i+1)
		rows = append(rows, markup.Row(markup.Data(label, uniqueNotificationRead, strconv.FormatInt(n.ID, 10))))
	}
	markup.Inline(rows...)
	return markup
}

func helpText() string {
	var b strings.Builder
	b.WriteString("사용 가능한 명령어\n\n")
	b.WriteString(usageAddChild + "\n - 아이를 등록하고 필수 접종 일정을 만듭니다.\n\n")
	b.WriteString("/children\n - 등록한 아이 목록을 봅니다.\n\n")
	b.WriteString("/schedule <아이ID> [all]\n - 접종 일정을 봅니다. all 을 붙이면 선택 접종도 포함합니다.\n\n")
	b.WriteString("/upcoming <아이ID> [일수]\n - 다가오는 접종을 봅니다.\n\n")
	b.WriteString("/overdue <아이ID>\n - 접종일이 지난 필수 접종을 봅니다.\n\n")
	b.WriteString("/stats <아이ID>\n - 접종 현황을 봅니다.\n\n")
	b.WriteString("/next <아이ID>\n - 다음 접종을 보고 완료 처리합니다.\n\n")
	b.WriteString("/notifications\n - 확인하지 않은 접종 알림을 보고 읽음 처리합니다.\n\n")
	b.WriteString("/help\n - 이 도움말을 봅니다.")
	return b.String()
}
