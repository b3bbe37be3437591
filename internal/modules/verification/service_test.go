package verification

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Jabakyo/next-class/internal/config"
	"github.com/Jabakyo/next-class/internal/contextx"
	"github.com/Jabakyo/next-class/internal/lock"
	"github.com/Jabakyo/next-class/internal/modules/user"
	"github.com/Jabakyo/next-class/internal/notification"
	"github.com/Jabakyo/next-class/internal/notification/templates"
	"github.com/Jabakyo/next-class/internal/store"
	"github.com/Jabakyo/next-class/internal/token"
	"github.com/Jabakyo/next-class/internal/upload"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func png() io.Reader { return bytes.NewReader(pngHeader) }

var (
	admin = contextx.Principal{ID: "admin-1", Role: string(user.RoleAdmin)}
	owner = contextx.Principal{ID: "owner-1", Role: string(user.RoleOwner)}
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notification.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *recordingNotifier) last() notification.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messages[len(n.messages)-1]
}

type fixture struct {
	svc      Service
	users    user.Service
	userRepo user.Repository
	store    store.Store
	uploads  *upload.Disk
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.NewFile(t.TempDir(), 2*time.Second, log)
	require.NoError(t, err)
	disk, err := upload.NewDisk(t.TempDir())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Upload.MaxBytes = 1024
	cfg.Notify.AdminEmail = "review@school.edu"
	cfg.Server.BaseURL = "https://next-class.test"

	f := &fixture{
		userRepo: user.NewRepository(s),
		store:    s,
		uploads:  disk,
		notifier: &recordingNotifier{},
	}
	locker := lock.NewLocal(2 * time.Second)

	svc := NewService(&Config{
		Users:    f.userRepo,
		Requests: NewRepository(s),
		Store:    s,
		Locker:   locker,
		Uploads:  disk,
		Notifier: f.notifier,
		Logger:   log,
		Config:   cfg,
	})
	// Strictly increasing clock so newest-first ordering is deterministic.
	var tick atomic.Int64
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.(*service).now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Minute)
	}
	f.svc = svc

	f.users = user.NewService(&user.Config{
		Repo:     f.userRepo,
		Store:    s,
		Locker:   locker,
		Notifier: f.notifier,
		Schedule: svc,
		Logger:   log,
		Config:   cfg,
	})
	return f
}

func (f *fixture) seed(t *testing.T, id string, status user.Status) user.User {
	t.Helper()
	u := user.User{
		ID:                         id,
		Email:                      id + "@school.edu",
		Name:                       "Student " + id,
		StudentID:                  "S-" + id,
		Role:                       user.RoleStudent,
		Classes:                    []user.SelectedClass{user.SelectedClass{Subject: "CS", CourseNumber: "101", Section: "A"}.Normalized()},
		ScheduleVerificationStatus: status,
	}
	err := f.userRepo.Transact(context.Background(), func(_ store.Tx, users *user.Collection) error {
		return users.Add(u)
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) user(t *testing.T, id string) *user.User {
	t.Helper()
	u, err := f.userRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) fileExists(t *testing.T, ref string) bool {
	t.Helper()
	rc, err := f.uploads.Open(context.Background(), ref)
	if err != nil {
		require.ErrorIs(t, err, upload.ErrNotFound)
		return false
	}
	rc.Close()
	return true
}

func TestVerificationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "ada", user.StatusNone)

	first, err := f.svc.Submit(ctx, "ada", png())
	require.NoError(t, err)
	require.Equal(t, RequestPending, first.Status)
	require.Equal(t, "ada@school.edu", first.UserEmail)
	require.Len(t, first.CurrentClasses, 1)

	u := f.user(t, "ada")
	require.Equal(t, user.StatusPending, u.ScheduleVerificationStatus)
	require.NotNil(t, u.VerificationScreenshot)
	require.Equal(t, first.ScreenshotURL, *u.VerificationScreenshot)
	require.NotNil(t, u.VerificationSubmittedAt)

	admins := f.notifier.last()
	require.Equal(t, notification.KindAdminNotification, admins.Kind)
	require.Equal(t, "review@school.edu", admins.Recipient)
	require.Equal(t, templates.AdminEventSubmitted, admins.Data.(templates.AdminNotificationData).Event)

	approved, err := f.svc.Decide(ctx, admin, first.ID, Approve, "")
	require.NoError(t, err)
	require.Equal(t, RequestApproved, approved.Status)
	require.Equal(t, "admin-1", approved.ReviewedBy)
	require.NotNil(t, approved.ReviewedAt)

	u = f.user(t, "ada")
	require.Equal(t, user.StatusVerified, u.ScheduleVerificationStatus)
	require.NotNil(t, u.VerificationApprovedAt)
	require.Equal(t, notification.KindVerificationApproved, f.notifier.last().Kind)

	_, err = f.svc.Submit(ctx, "ada", png())
	require.ErrorIs(t, err, ErrAlreadyVerified)

	// Editing a verified schedule sends the user back to none.
	_, err = f.users.AddClass(ctx, "ada", user.SelectedClass{Subject: "MATH", CourseNumber: "200", Section: "B"})
	require.NoError(t, err)
	u = f.user(t, "ada")
	require.Equal(t, user.StatusNone, u.ScheduleVerificationStatus)
	require.Len(t, u.PreviousClasses, 1)
	require.Nil(t, u.VerificationScreenshot)

	second, err := f.svc.Submit(ctx, "ada", png())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Len(t, second.CurrentClasses, 2)
	require.Len(t, second.PreviousClasses, 1)
	require.NotNil(t, second.ClassesChangedAt)

	history, err := f.svc.ListForUser(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.ID, history[0].ID)
	require.Equal(t, RequestPending, history[0].Status)
	require.Equal(t, RequestApproved, history[1].Status)

	// The approved request keeps its screenshot for the audit trail.
	require.True(t, f.fileExists(t, first.ScreenshotURL))
}

func TestSubmitTwiceKeepsSinglePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "bob", user.StatusNone)

	_, err := f.svc.Submit(ctx, "bob", png())
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "bob", png())
	require.ErrorIs(t, err, ErrAlreadyPending)

	pending, err := f.svc.List(ctx, RequestPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestConcurrentSubmitCreatesOneRequest(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cy", user.StatusNone)

	var (
		g         errgroup.Group
		succeeded atomic.Int32
	)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.svc.Submit(context.Background(), "cy", png())
			if err == nil {
				succeeded.Add(1)
				return nil
			}
			if errors.Is(err, ErrAlreadyPending) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, succeeded.Load())

	all, err := f.svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSubmitRejectsInvalidImage(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "dee", user.StatusNone)

	_, err := f.svc.Submit(context.Background(), "dee", strings.NewReader("%PDF-1.7\n"))
	require.ErrorIs(t, err, upload.ErrInvalidImage)

	require.Equal(t, user.StatusNone, f.user(t, "dee").ScheduleVerificationStatus)
	all, err := f.svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestRejectThenResubmitReplacesScreenshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "eve", user.StatusNone)

	first, err := f.svc.Submit(ctx, "eve", png())
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, admin, first.ID, Reject, "   ")
	require.ErrorIs(t, err, ErrReasonRequired)
	_, err = f.svc.Decide(ctx, admin, first.ID, Decision("maybe"), "")
	require.ErrorIs(t, err, ErrInvalidDecision)

	rejected, err := f.svc.Decide(ctx, admin, first.ID, Reject, "screenshot is cropped")
	require.NoError(t, err)
	require.Equal(t, "screenshot is cropped", rejected.RejectionReason)

	u := f.user(t, "eve")
	require.Equal(t, user.StatusRejected, u.ScheduleVerificationStatus)
	require.Equal(t, "screenshot is cropped", u.RejectionReason)

	msg := f.notifier.last()
	require.Equal(t, notification.KindVerificationRejected, msg.Kind)
	require.Equal(t, "screenshot is cropped", msg.Data.(templates.VerificationRejectedData).Reason)

	_, err = f.svc.Decide(ctx, admin, first.ID, Approve, "")
	require.ErrorIs(t, err, ErrAlreadyReviewed)

	second, err := f.svc.Submit(ctx, "eve", png())
	require.NoError(t, err)
	require.False(t, f.fileExists(t, first.ScreenshotURL))
	require.True(t, f.fileExists(t, second.ScreenshotURL))

	u = f.user(t, "eve")
	require.Equal(t, user.StatusPending, u.ScheduleVerificationStatus)
	require.Empty(t, u.RejectionReason)
}

func TestDecideRequiresReviewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "fay", user.StatusNone)

	req, err := f.svc.Submit(ctx, "fay", png())
	require.NoError(t, err)

	student := contextx.Principal{ID: "fay", Role: string(user.RoleStudent)}
	_, err = f.svc.Decide(ctx, student, req.ID, Approve, "")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Decide(ctx, admin, "missing", Approve, "")
	require.ErrorIs(t, err, ErrRequestNotFound)

	_, err = f.svc.Decide(ctx, owner, req.ID, Approve, "")
	require.NoError(t, err)
}

func TestPendingEditFlagsRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "gus", user.StatusNone)

	req, err := f.svc.Submit(ctx, "gus", png())
	require.NoError(t, err)

	require.NoError(t, f.users.RemoveClass(ctx, "gus", "CS-101-A"))

	require.Equal(t, user.StatusPending, f.user(t, "gus").ScheduleVerificationStatus)
	got, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequestPending, got.Status)
	require.NotNil(t, got.ScheduleChangedAt)
	// The submission snapshot is left as it was reviewed.
	require.Len(t, got.CurrentClasses, 1)

	msg := f.notifier.last()
	require.Equal(t, notification.KindAdminNotification, msg.Kind)
	data := msg.Data.(templates.AdminNotificationData)
	require.Equal(t, templates.AdminEventScheduleChanged, data.Event)
	require.Equal(t, req.ID, data.RequestID)
}

func TestListFiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"h1", "h2", "h3"} {
		f.seed(t, id, user.StatusNone)
	}

	r1, err := f.svc.Submit(ctx, "h1", png())
	require.NoError(t, err)
	r2, err := f.svc.Submit(ctx, "h2", png())
	require.NoError(t, err)
	r3, err := f.svc.Submit(ctx, "h3", png())
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, admin, r2.ID, Approve, "")
	require.NoError(t, err)

	all, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{r3.ID, r2.ID, r1.ID}, ids(all))

	pending, err := f.svc.List(ctx, RequestPending)
	require.NoError(t, err)
	require.Equal(t, []string{r3.ID, r1.ID}, ids(pending))

	_, err = f.svc.List(ctx, RequestStatus("lost"))
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOpenScreenshotAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "ivy", user.StatusNone)

	req, err := f.svc.Submit(ctx, "ivy", png())
	require.NoError(t, err)

	for _, p := range []contextx.Principal{{ID: "ivy", Role: string(user.RoleStudent)}, admin} {
		rc, contentType, err := f.svc.OpenScreenshot(ctx, p, req.ID)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		require.Equal(t, pngHeader, data)
		require.Equal(t, "image/png", contentType)
	}

	_, _, err = f.svc.OpenScreenshot(ctx, contextx.Principal{ID: "other", Role: string(user.RoleStudent)}, req.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteAccountCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "jo", user.StatusNone)
	f.seed(t, "kim", user.StatusNone)

	req, err := f.svc.Submit(ctx, "jo", png())
	require.NoError(t, err)
	other, err := f.svc.Submit(ctx, "kim", png())
	require.NoError(t, err)

	resets := token.New[user.ResetRequest](f.store, store.ResetTokens, time.Hour)
	raw, err := resets.Issue(ctx, "jo@school.edu", "jo", user.ResetRequest{}, token.IssueOptions{})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.DeleteAccount(ctx, admin, "jo"), ErrForbidden)
	require.NoError(t, f.svc.DeleteAccount(ctx, owner, "jo"))

	_, err = f.userRepo.FindByID(ctx, "jo")
	require.ErrorIs(t, err, user.ErrNotFound)
	_, err = f.svc.Get(ctx, req.ID)
	require.ErrorIs(t, err, ErrRequestNotFound)
	require.False(t, f.fileExists(t, req.ScreenshotURL))
	_, err = resets.Redeem(ctx, raw)
	require.ErrorIs(t, err, token.ErrNotFound)

	// Other users are untouched.
	_, err = f.svc.Get(ctx, other.ID)
	require.NoError(t, err)
	require.True(t, f.fileExists(t, other.ScreenshotURL))

	require.ErrorIs(t, f.svc.DeleteAccount(ctx, owner, "jo"), user.ErrNotFound)
}

func ids(requests []Request) []string {
	out := make([]string, 0, len(requests))
	for _, r := range requests {
		out = append(out, r.ID)
	}
	return out
}
