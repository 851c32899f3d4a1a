package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcom/phoneotp/internal/config"
	"github.com/qcom/phoneotp/internal/events"
	"github.com/qcom/phoneotp/internal/models"
	"github.com/qcom/phoneotp/internal/repository"
)

const testPhone = "+491234567890"

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

type sentMessage struct {
	to   string
	body string
}

func (f *fakeSender) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return nil
}

type fakePublisher struct {
	err    error
	events []events.OTPEvent
}

func (f *fakePublisher) Publish(_ context.Context, e events.OTPEvent) error {
	f.events = append(f.events, e)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type failingRepo struct{ err error }

func (r failingRepo) Upsert(context.Context, models.OTPRecord) error { return r.err }

func (r failingRepo) FindByPhoneAndCode(context.Context, string, string) (*models.OTPRecord, error) {
	return nil, r.err
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(t *testing.T) (*OTPService, *repository.MemoryOTPRepository, *fakeSender, *fakePublisher, *clock) {
	t.Helper()
	repo := repository.NewMemoryOTPRepository()
	sender := &fakeSender{}
	pub := &fakePublisher{}
	clk := &clock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	cfg := &config.OTPConfig{ValidFor: time.Minute}
	svc := NewOTPService(repo, sender, cfg, testLogger(), WithClock(clk.Now), WithPublisher(pub))
	return svc, repo, sender, pub, clk
}

func TestIssue_ReturnsSixDigitCodeAndSendsIt(t *testing.T) {
	svc, repo, sender, pub, _ := newTestService(t)

	code, err := svc.Issue(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Regexp(t, sixDigits, code)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, testPhone, sender.sent[0].to)
	assert.Equal(t, "Your Verification Otp is "+code, sender.sent[0].body)
	assert.Equal(t, 1, repo.Len())

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOTPIssued, pub.events[0].Type)
	assert.Equal(t, testPhone, pub.events[0].PhoneNumber)
}

func TestIssue_OverwritesPriorCode(t *testing.T) {
	svc, repo, _, _, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, testPhone)
	require.NoError(t, err)

	clk.Advance(10 * time.Second)
	var second string
	// Retry until the codes differ so the assertion on the old code is meaningful.
	for i := 0; i < 20; i++ {
		second, err = svc.Issue(ctx, testPhone)
		require.NoError(t, err)
		if second != first {
			break
		}
	}
	require.NotEqual(t, first, second)

	assert.Equal(t, 1, repo.Len())
	assert.ErrorIs(t, svc.Verify(ctx, testPhone, first), ErrInvalidOTP)
	assert.NoError(t, svc.Verify(ctx, testPhone, second))
}

func TestIssue_SendFailureSurfacesAndKeepsRecord(t *testing.T) {
	svc, repo, sender, pub, _ := newTestService(t)
	sender.err = errors.New("provider down")

	code, err := svc.Issue(context.Background(), testPhone)
	require.Error(t, err)
	assert.Empty(t, code)
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Contains(t, err.Error(), "provider down")
	assert.Equal(t, 1, repo.Len())
	assert.Empty(t, pub.events)
}

func TestIssue_StoreFailureIsNotSendFailure(t *testing.T) {
	sender := &fakeSender{}
	svc := NewOTPService(failingRepo{err: errors.New("store down")}, sender, &config.OTPConfig{ValidFor: time.Minute}, testLogger())

	_, err := svc.Issue(context.Background(), testPhone)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSendFailed)
	assert.Empty(t, sender.sent)
}

func TestIssue_PublishFailureDoesNotFailRequest(t *testing.T) {
	svc, _, _, pub, _ := newTestService(t)
	pub.err = errors.New("broker down")

	_, err := svc.Issue(context.Background(), testPhone)
	assert.NoError(t, err)
}

func TestVerify_WithinWindowSucceeds(t *testing.T) {
	svc, _, _, pub, clk := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, testPhone)
	require.NoError(t, err)

	clk.Advance(59 * time.Second)
	require.NoError(t, svc.Verify(ctx, testPhone, code))

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.TypeOTPVerified, pub.events[1].Type)
}

func TestVerify_ExactlyAtWindowSucceeds(t *testing.T) {
	svc, _, _, _, clk := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, testPhone)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	assert.NoError(t, svc.Verify(ctx, testPhone, code))
}

func TestVerify_AfterWindowIsExpired(t *testing.T) {
	svc, _, _, _, clk := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, testPhone)
	require.NoError(t, err)

	clk.Advance(61 * time.Second)
	assert.ErrorIs(t, svc.Verify(ctx, testPhone, code), ErrOTPExpired)

	clk.Advance(24 * time.Hour)
	assert.ErrorIs(t, svc.Verify(ctx, testPhone, code), ErrOTPExpired)
}

func TestVerify_MismatchIsInvalidNotExpired(t *testing.T) {
	svc, _, _, _, clk := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, testPhone)
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	clk.Advance(5 * time.Minute)
	assert.ErrorIs(t, svc.Verify(ctx, testPhone, wrong), ErrInvalidOTP)
	assert.ErrorIs(t, svc.Verify(ctx, "+49000", code), ErrInvalidOTP)
}

func TestVerify_ReplayWithinWindowSucceeds(t *testing.T) {
	svc, _, _, _, clk := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, testPhone)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		clk.Advance(10 * time.Second)
		assert.NoError(t, svc.Verify(ctx, testPhone, code))
	}
}

func TestVerify_FutureIssueTimeAgesByAbsoluteDifference(t *testing.T) {
	repo := repository.NewMemoryOTPRepository()
	clk := &clock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	svc := NewOTPService(repo, &fakeSender{}, &config.OTPConfig{ValidFor: time.Minute}, testLogger(), WithClock(clk.Now))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, models.OTPRecord{PhoneNumber: testPhone, Code: "123456", IssuedAt: clk.t.Add(30 * time.Second)}))
	assert.NoError(t, svc.Verify(ctx, testPhone, "123456"))

	require.NoError(t, repo.Upsert(ctx, models.OTPRecord{PhoneNumber: testPhone, Code: "123456", IssuedAt: clk.t.Add(2 * time.Minute)}))
	assert.ErrorIs(t, svc.Verify(ctx, testPhone, "123456"), ErrOTPExpired)
}

func TestVerify_StoreErrorPassesThrough(t *testing.T) {
	storeErr := errors.New("store down")
	svc := NewOTPService(failingRepo{err: storeErr}, &fakeSender{}, &config.OTPConfig{ValidFor: time.Minute}, testLogger())

	err := svc.Verify(context.Background(), testPhone, "123456")
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrInvalidOTP)
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode(6)
		require.NoError(t, err)
		require.Regexp(t, sixDigits, code)
	}

	code, err := generateCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 8)
}
