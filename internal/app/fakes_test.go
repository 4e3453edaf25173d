package app

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"immunization_bot/internal/domain/child"
	"immunization_bot/internal/domain/immunization"
	"immunization_bot/internal/domain/vaccination"
	idb "immunization_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeChildRepo struct {
	mu       sync.Mutex
	nextID   int64
	children map[int64]*child.Child
}

func newFakeChildRepo() *fakeChildRepo {
	return &fakeChildRepo{children: map[int64]*child.Child{}}
}

func (r *fakeChildRepo) Create(_ context.Context, c *child.Child) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.children[c.ID] = &cp
	return nil
}

func (r *fakeChildRepo) GetByID(_ context.Context, id int64) (*child.Child, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.children[id]
	if !ok {
		return nil, idb.ErrChildNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeChildRepo) ListByParent(_ context.Context, parentID int64) ([]*child.Child, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*child.Child
	for _, c := range r.children {
		if c.ParentTelegramID == parentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeVaccinationRepo struct {
	mu            sync.Mutex
	nextID        int64
	schedules     []*vaccination.Schedule
	notifications []*vaccination.Notification
	failList      error
	children      *fakeChildRepo // resolves parents for notification queries
}

func (r *fakeVaccinationRepo) CreateSchedules(_ context.Context, schedules []*vaccination.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schedules {
		r.nextID++
		s.ID = r.nextID
		cp := *s
		r.schedules = append(r.schedules, &cp)
		r.notifications = append(r.notifications, &vaccination.Notification{
			ID:               s.ID,
			ScheduleID:       s.ID,
			NotificationDate: s.NotificationDate,
			Status:           vaccination.StatusPending,
		})
	}
	return nil
}

func (r *fakeVaccinationRepo) ListSchedulesByChild(_ context.Context, childID int64) ([]*vaccination.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList != nil {
		return nil, r.failList
	}
	var out []*vaccination.Schedule
	for _, s := range r.schedules {
		if s.ChildID == childID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].VaccinationDate.Before(out[j].VaccinationDate) })
	return out, nil
}

func (r *fakeVaccinationRepo) CountSchedulesByChild(ctx context.Context, childID int64) (int, error) {
	list, err := r.ListSchedulesByChild(ctx, childID)
	return len(list), err
}

func (r *fakeVaccinationRepo) DeleteSchedulesByChild(_ context.Context, childID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*vaccination.Schedule
	var deleted int64
	for _, s := range r.schedules {
		if s.ChildID == childID {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	r.schedules = kept
	return deleted, nil
}

func (r *fakeVaccinationRepo) GetScheduleByID(_ context.Context, id int64) (*vaccination.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.schedules {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, idb.ErrScheduleNotFound
}

func (r *fakeVaccinationRepo) MarkScheduleCompleted(_ context.Context, id int64, on immunization.Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.schedules {
		if s.ID == id {
			s.Completed = true
			d := on
			s.CompletedDate = &d
			return nil
		}
	}
	return idb.ErrScheduleNotFound
}

func (r *fakeVaccinationRepo) ListPendingNotificationsDue(_ context.Context, onOrBefore immunization.Date) ([]*vaccination.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*vaccination.Notification
	for _, n := range r.notifications {
		if n.Status == vaccination.StatusPending && !n.NotificationDate.After(onOrBefore) {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeVaccinationRepo) UpdateNotificationStatuses(_ context.Context, ids []int64, status vaccination.Status) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for _, notif := range r.notifications {
		if want[notif.ID] {
			notif.Status = status
			n++
		}
	}
	return n, nil
}

func (r *fakeVaccinationRepo) GetNotificationByID(_ context.Context, id int64) (*vaccination.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, idb.ErrNotificationNotFound
}

func (r *fakeVaccinationRepo) ListNotificationsByParent(ctx context.Context, parentID int64, statuses []vaccination.Status) ([]*vaccination.ParentNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[vaccination.Status]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	var out []*vaccination.ParentNotification
	for _, n := range r.notifications {
		if !want[n.Status] {
			continue
		}
		for _, s := range r.schedules {
			if s.ID != n.ScheduleID {
				continue
			}
			c, err := r.children.GetByID(ctx, s.ChildID)
			if err != nil || c.ParentTelegramID != parentID {
				continue
			}
			out = append(out, &vaccination.ParentNotification{
				Notification:    *n,
				ChildID:         c.ID,
				ChildName:       c.Name,
				VaccineName:     s.VaccineName,
				DoseNumber:      s.DoseNumber,
				VaccinationDate: s.VaccinationDate,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NotificationDate.Before(out[j].NotificationDate) })
	return out, nil
}

func (r *fakeVaccinationRepo) MarkNotificationRead(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			n.Status = vaccination.StatusRead
			n.ReadAt.Valid = true
			return nil
		}
	}
	return idb.ErrNotificationNotFound
}

func (r *fakeVaccinationRepo) statusCounts() map[vaccination.Status]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[vaccination.Status]int{}
	for _, n := range r.notifications {
		out[n.Status]++
	}
	return out
}

const serviceTableJSON = `{
  "notification_settings": {"default_advance_days": 7},
  "vaccinations": [
    {"id": 1, "vaccine_name": "BCG", "disease": "결핵", "vaccine_type": "국가필수",
     "schedules": [{"dose_number": 1, "age_in_months": 0, "max_age_in_weeks": 4, "is_mandatory": true}]},
    {"id": 2, "vaccine_name": "DTaP", "disease": "디프테리아", "vaccine_type": "국가필수",
     "schedules": [
       {"dose_number": 1, "age_in_months": 2, "is_mandatory": true},
       {"dose_number": 2, "age_in_months": 4, "is_mandatory": true},
       {"dose_number": 3, "age_in_months": 6, "is_mandatory": true}
     ]},
    {"id": 3, "vaccine_name": "HPV", "disease": "자궁경부암", "vaccine_type": "국가필수",
     "schedules": [{"dose_number": 1, "age_in_months": 3, "gender": "female", "is_mandatory": true}]},
    {"id": 4, "vaccine_name": "MenACWY", "disease": "수막구균", "vaccine_type": "기타",
     "schedules": [{"dose_number": 1, "age_in_months": 3, "is_mandatory": false}]}
  ]
}`

// fixedNow is 2024-05-20 10:00 in Seoul: BCG and DTaP 1-2 are past, DTaP 3 is on 2024-07-15.
var seoul = time.FixedZone("KST", 9*60*60)
var fixedNow = time.Date(2024, time.May, 20, 10, 0, 0, 0, seoul)

func fixedClock() time.Time { return fixedNow }

func testCalculators(t *testing.T) CalculatorProvider {
	t.Helper()
	table, err := immunization.ParseReferenceTable([]byte(serviceTableJSON), immunization.FormatJSON)
	if err != nil {
		t.Fatalf("ParseReferenceTable error: %v", err)
	}
	calc, err := immunization.NewCalculator(table, immunization.WithClock(fixedClock))
	if err != nil {
		t.Fatalf("NewCalculator error: %v", err)
	}
	return StaticCalculator{Calculator: calc}
}

func testLog() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

var testBirth = immunization.NewDate(2024, time.January, 15)
