package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"homeservices/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	customer *models.User
	provider *models.ProviderProfile
	service  *models.Service
}

func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()

	customer := &models.User{Name: "Alice", Email: "alice@example.com", Role: models.RoleCustomer, IsActive: true}
	require.NoError(t, db.CreateUser(ctx, customer))

	providerUser := &models.User{Name: "Bob", Email: "bob@example.com", Role: models.RoleProvider, IsActive: true}
	require.NoError(t, db.CreateUser(ctx, providerUser))

	provider := &models.ProviderProfile{UserID: providerUser.ID, IsAvailable: true, Verified: true}
	require.NoError(t, db.CreateProvider(ctx, provider))

	svc := &models.Service{CategoryID: 1, Name: "Plumbing", BasePrice: 60, DurationMinutes: 60, IsActive: true}
	require.NoError(t, db.CreateService(ctx, svc))

	return fixture{customer: customer, provider: provider, service: svc}
}

func newBooking(t *testing.T, db *DB, f fixture) *models.Booking {
	t.Helper()
	b := &models.Booking{
		CustomerID:    f.customer.ID,
		ServiceID:     f.service.ID,
		Status:        models.StatusPending,
		ScheduledDate: "2026-11-01",
		ScheduledTime: "10:00",
		Address:       "1 Main St",
		TotalPrice:    f.service.BasePrice,
		PaymentStatus: models.PaymentStatusPending,
	}
	require.NoError(t, db.CreateBooking(context.Background(), b))
	return b
}

func TestNewDB_Migrations(t *testing.T) {
	db := setupTestDB(t)
	version, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, ":memory:", db.Path())
}

func TestBookings(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		b := newBooking(t, db, f)
		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Nil(t, got.ProviderID)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, 60.0, got.TotalPrice)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := db.GetBooking(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("AcceptThenTransition", func(t *testing.T) {
		b := newBooking(t, db, f)
		require.NoError(t, db.AcceptBooking(ctx, b.ID, f.provider.ID))

		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, got.Status)
		assert.True(t, got.AssignedTo(f.provider.ID))
		assert.Equal(t, int64(2), got.Version)

		assert.ErrorIs(t, db.AcceptBooking(ctx, b.ID, f.provider.ID), ErrConcurrentModification)

		now := time.Now()
		require.NoError(t, db.TransitionBooking(ctx, models.BookingTransition{
			BookingID: b.ID, Version: got.Version,
			From: models.StatusAccepted, To: models.StatusInProgress, StartedAt: &now,
		}))

		stale := models.BookingTransition{
			BookingID: b.ID, Version: got.Version,
			From: models.StatusInProgress, To: models.StatusCompleted,
		}
		assert.ErrorIs(t, db.TransitionBooking(ctx, stale), ErrConcurrentModification)

		got, err = db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, got.Status)
		assert.NotNil(t, got.StartedAt)
		assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)

		done := time.Now()
		require.NoError(t, db.TransitionBooking(ctx, models.BookingTransition{
			BookingID: b.ID, Version: got.Version,
			From: models.StatusInProgress, To: models.StatusCompleted,
			CompletedAt: &done, PaymentStatus: models.PaymentStatusPaid,
		}))
		got, err = db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, got.Status)
		assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
		assert.NotNil(t, got.StartedAt)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("AcceptAssignedToOther", func(t *testing.T) {
		b := newBooking(t, db, f)
		other := f.provider.ID + 100
		b.ProviderID = &other
		_, err := db.ExecContext(ctx, `UPDATE bookings SET provider_id = ? WHERE id = ?`, other, b.ID)
		require.NoError(t, err)

		assert.ErrorIs(t, db.AcceptBooking(ctx, b.ID, f.provider.ID), ErrConcurrentModification)
	})
}

func TestListBookings_Pagination(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		newBooking(t, db, f)
	}

	page, total, err := db.ListBookings(ctx, models.BookingFilter{CustomerID: f.customer.ID}, models.PageQuery{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Len(t, page, 5)

	last, _, err := db.ListBookings(ctx, models.BookingFilter{CustomerID: f.customer.ID}, models.PageQuery{Page: 3, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, last, 2)

	none, total, err := db.ListBookings(ctx, models.BookingFilter{ProviderID: f.provider.ID}, models.PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, none)

	pending, total, err := db.ListBookings(ctx, models.BookingFilter{Status: models.StatusPending}, models.PageQuery{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Len(t, pending, 12)
}

func TestAcceptBooking_ConcurrentProviders(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "race.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	f := seed(t, db)
	ctx := context.Background()
	b := newBooking(t, db, f)

	providers := []int64{f.provider.ID}
	for i := 0; i < 4; i++ {
		u := &models.User{Name: "P", Email: "p" + string(rune('a'+i)) + "@example.com", Role: models.RoleProvider, IsActive: true}
		require.NoError(t, db.CreateUser(ctx, u))
		p := &models.ProviderProfile{UserID: u.ID, IsAvailable: true, Verified: true}
		require.NoError(t, db.CreateProvider(ctx, p))
		providers = append(providers, p.ID)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for _, pid := range providers {
		wg.Add(1)
		go func(pid int64) {
			defer wg.Done()
			if err := db.AcceptBooking(ctx, b.ID, pid); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrConcurrentModification)
			}
		}(pid)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	require.NotNil(t, got.ProviderID)
	assert.Contains(t, providers, *got.ProviderID)
}

func TestPayments(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	t.Run("FailThenRetryThenComplete", func(t *testing.T) {
		b := newBooking(t, db, f)
		p := &models.Payment{BookingID: b.ID, Amount: b.TotalPrice, Method: models.MethodCard, GatewayOrderID: "order_1"}
		require.NoError(t, db.StartPaymentAttempt(ctx, p))
		assert.Equal(t, models.PaymentProcessing, p.Status)
		assert.NotZero(t, p.ID)
		firstID := p.ID

		require.NoError(t, db.ResolvePayment(ctx, models.PaymentResolution{PaymentID: p.ID, BookingID: b.ID, Success: false}))
		got, err := db.GetPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentFailed, got.Status)
		booking, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusFailed, booking.PaymentStatus)

		retry := &models.Payment{BookingID: b.ID, Amount: b.TotalPrice, Method: models.MethodUPI, GatewayOrderID: "order_2"}
		require.NoError(t, db.StartPaymentAttempt(ctx, retry))
		assert.Equal(t, firstID, retry.ID)
		assert.Equal(t, models.PaymentProcessing, retry.Status)
		assert.Equal(t, models.MethodUPI, retry.Method)
		assert.Equal(t, "order_2", retry.GatewayOrderID)

		paidAt := time.Now()
		require.NoError(t, db.ResolvePayment(ctx, models.PaymentResolution{
			PaymentID: retry.ID, BookingID: b.ID, Success: true, TransactionID: "TXN_ABC", PaidAt: paidAt,
		}))
		got, err = db.GetPaymentByBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentCompleted, got.Status)
		require.NotNil(t, got.TransactionID)
		assert.Equal(t, "TXN_ABC", *got.TransactionID)
		assert.NotNil(t, got.PaidAt)

		booking, err = db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPaid, booking.PaymentStatus)

		again := &models.Payment{BookingID: b.ID, Amount: b.TotalPrice, Method: models.MethodCard}
		assert.ErrorIs(t, db.StartPaymentAttempt(ctx, again), ErrPaymentCompleted)

		assert.ErrorIs(t, db.ResolvePayment(ctx, models.PaymentResolution{PaymentID: retry.ID, BookingID: b.ID}), ErrConcurrentModification)
	})

	t.Run("FailureKeepsCompletedBookingPaid", func(t *testing.T) {
		b := newBooking(t, db, f)
		_, err := db.ExecContext(ctx, `UPDATE bookings SET status = ?, payment_status = ? WHERE id = ?`,
			models.StatusCompleted, models.PaymentStatusPaid, b.ID)
		require.NoError(t, err)

		p := &models.Payment{BookingID: b.ID, Amount: b.TotalPrice, Method: models.MethodCard}
		require.NoError(t, db.StartPaymentAttempt(ctx, p))
		require.NoError(t, db.ResolvePayment(ctx, models.PaymentResolution{PaymentID: p.ID, BookingID: b.ID, Success: false}))

		booking, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPaid, booking.PaymentStatus)
	})

	t.Run("Refund", func(t *testing.T) {
		b := newBooking(t, db, f)
		p := &models.Payment{BookingID: b.ID, Amount: b.TotalPrice, Method: models.MethodWallet}
		require.NoError(t, db.StartPaymentAttempt(ctx, p))

		assert.ErrorIs(t, db.RefundPayment(ctx, p.ID), ErrConcurrentModification)

		require.NoError(t, db.ResolvePayment(ctx, models.PaymentResolution{
			PaymentID: p.ID, BookingID: b.ID, Success: true, TransactionID: "TXN_R", PaidAt: time.Now(),
		}))
		require.NoError(t, db.RefundPayment(ctx, p.ID))

		got, err := db.GetPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentRefunded, got.Status)
		booking, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusRefunded, booking.PaymentStatus)

		assert.ErrorIs(t, db.RefundPayment(ctx, p.ID), ErrConcurrentModification)
		assert.ErrorIs(t, db.RefundPayment(ctx, 9999), ErrNotFound)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := db.GetPayment(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = db.GetPaymentByBooking(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReviews(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	ratings := []int{5, 3}
	for _, rating := range ratings {
		b := newBooking(t, db, f)
		r := &models.Review{BookingID: b.ID, CustomerID: f.customer.ID, ProviderID: f.provider.ID, Rating: rating}
		require.NoError(t, db.CreateReview(ctx, r))
		assert.NotZero(t, r.ID)

		dup := &models.Review{BookingID: b.ID, CustomerID: f.customer.ID, ProviderID: f.provider.ID, Rating: 1}
		assert.ErrorIs(t, db.CreateReview(ctx, dup), ErrDuplicate)
	}

	avg, count, err := db.ProviderRatingStats(ctx, f.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.InDelta(t, 4.0, avg, 0.0001)

	list, total, err := db.ListProviderReviews(ctx, f.provider.ID, models.PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, "Alice", list[0].CustomerName)

	got, err := db.GetReviewByBooking(ctx, list[0].BookingID)
	require.NoError(t, err)
	assert.Equal(t, list[0].ID, got.ID)

	_, err = db.GetReviewByBooking(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	avg, count, err = db.ProviderRatingStats(ctx, 9999)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, avg)
}

func TestProvidersAndCatalog(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	p, err := db.GetAvailableVerifiedProvider(ctx, f.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, f.provider.UserID, p.UserID)

	byUser, err := db.GetProviderByUserID(ctx, f.provider.UserID)
	require.NoError(t, err)
	assert.Equal(t, f.provider.ID, byUser.ID)

	require.NoError(t, db.SetProviderAvailability(ctx, f.provider.ID, false, true))
	_, err = db.GetAvailableVerifiedProvider(ctx, f.provider.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.IncrementTotalJobs(ctx, f.provider.ID))
	require.NoError(t, db.SetRating(ctx, f.provider.ID, 4.5))
	got, err := db.GetProvider(ctx, f.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalJobs)
	assert.Equal(t, 4.5, got.Rating)
	assert.ErrorIs(t, db.SetRating(ctx, 9999, 1), ErrNotFound)

	dup := &models.ProviderProfile{UserID: f.provider.UserID}
	assert.ErrorIs(t, db.CreateProvider(ctx, dup), ErrDuplicate)

	svc, err := db.GetActiveService(ctx, f.service.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plumbing", svc.Name)

	svc.BasePrice = 75
	require.NoError(t, db.UpdateService(ctx, svc))
	svc, err = db.GetActiveService(ctx, f.service.ID)
	require.NoError(t, err)
	assert.Equal(t, 75.0, svc.BasePrice)

	user, err := db.GetUser(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	require.NoError(t, db.LinkTelegramChat(ctx, user.ID, 42))
	user, err = db.GetUser(ctx, f.customer.ID)
	require.NoError(t, err)
	require.NotNil(t, user.TelegramChatID)
	assert.Equal(t, int64(42), *user.TelegramChatID)

	dupUser := &models.User{Name: "Alice 2", Email: "alice@example.com", Role: models.RoleCustomer}
	assert.ErrorIs(t, db.CreateUser(ctx, dupUser), ErrDuplicate)
}

func TestSeedLookups(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	svc, err := db.GetServiceByName(ctx, "Plumbing")
	require.NoError(t, err)
	assert.Equal(t, f.service.ID, svc.ID)

	svc.BasePrice = 90
	svc.DurationMinutes = 45
	svc.IsActive = false
	require.NoError(t, db.UpdateService(ctx, svc))
	_, err = db.GetActiveService(ctx, svc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := db.GetServiceByName(ctx, "Plumbing")
	require.NoError(t, err)
	assert.Equal(t, 90.0, got.BasePrice)
	assert.Equal(t, 45, got.DurationMinutes)

	_, err = db.GetServiceByName(ctx, "Roofing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateService(ctx, &models.Service{ID: 9999}), ErrNotFound)

	user, err := db.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, f.customer.ID, user.ID)
	_, err = db.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.LinkTelegramChat(ctx, user.ID, 777))
	linked, err := db.GetUserByTelegramChat(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, user.ID, linked.ID)
	_, err = db.GetUserByTelegramChat(ctx, 778)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotifications(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	ref := int64(7)
	for i := 0; i < 3; i++ {
		n := &models.Notification{UserID: f.customer.ID, Title: "Booking Accepted", Body: "body", Type: models.NotificationBookingAccepted, ReferenceID: &ref}
		require.NoError(t, db.CreateNotification(ctx, n))
	}

	count, err := db.CountUnreadNotifications(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	list, total, err := db.ListNotifications(ctx, f.customer.ID, false, models.PageQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, list, 2)

	require.NoError(t, db.MarkNotificationRead(ctx, list[0].ID))
	got, err := db.GetNotification(ctx, list[0].ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.ErrorIs(t, db.MarkNotificationRead(ctx, 9999), ErrNotFound)

	unread, total, err := db.ListNotifications(ctx, f.customer.ID, true, models.PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, unread, 2)

	changed, err := db.MarkAllNotificationsRead(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	count, err = db.CountUnreadNotifications(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOutbox(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.OutboxTask{TaskType: "push_notification", ReferenceID: 1, Payload: `{"user_id":1}`}
	require.NoError(t, db.CreateOutboxTask(ctx, task))
	assert.Equal(t, models.TaskStatusPending, task.Status)

	pending, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	future := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusRetry, "boom", &future))
	pending, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := db.GetOutboxTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "boom", *got.LastError)

	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil))
	got, err = db.GetOutboxTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)
}

func TestListBookingsForExport(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	b := newBooking(t, db, f)
	rows, err := db.ListBookingsForExport(ctx, models.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b.ID, rows[0].ID)
	assert.Equal(t, "Plumbing", rows[0].ServiceName)
	assert.Equal(t, "Alice", rows[0].CustomerName)

	row, err := db.GetBookingForExport(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", row.CustomerName)
}

func TestClosedDB(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ctx := context.Background()
	_, _, err = db.ListBookings(ctx, models.BookingFilter{}, models.PageQuery{})
	assert.Error(t, err)
	assert.Error(t, db.CreateBooking(ctx, &models.Booking{}))
	assert.Error(t, db.RefundPayment(ctx, 1))
	_, err = db.GetPendingOutboxTasks(ctx, 1)
	assert.Error(t, err)
}
