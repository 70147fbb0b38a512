package service

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelf-labs/library-service/internal/domain"
	"github.com/bookshelf-labs/library-service/internal/repository/repotest"
)

type reviewFixture struct {
	svc     *ReviewService
	users   *repotest.Users
	books   *repotest.Books
	reviews *repotest.Reviews
	bookID  string
	alice   *domain.Principal
	bob     *domain.Principal
	admin   *domain.Principal
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	ctx := context.Background()
	users := repotest.NewUsers()
	books := repotest.NewBooks()
	reviews := repotest.NewReviews(books)

	for _, u := range []domain.User{
		{ID: uuid.NewString(), Email: "alice@example.com", Role: domain.RoleUser},
		{ID: uuid.NewString(), Email: "bob@example.com", Role: domain.RoleUser},
		{ID: uuid.NewString(), Email: "root@example.com", Role: domain.RoleAdmin},
	} {
		u := u
		require.NoError(t, users.Create(ctx, &u))
	}
	book := &domain.Book{ID: uuid.NewString(), Title: "Dune", Author: "Frank Herbert"}
	require.NoError(t, books.Create(ctx, book))

	return &reviewFixture{
		svc:     NewReviewService(reviews, books, users, nil),
		users:   users,
		books:   books,
		reviews: reviews,
		bookID:  book.ID,
		alice:   &domain.Principal{Subject: "alice@example.com", Role: domain.RoleUser},
		bob:     &domain.Principal{Subject: "bob@example.com", Role: domain.RoleUser},
		admin:   &domain.Principal{Subject: "root@example.com", Role: domain.RoleAdmin},
	}
}

func (f *reviewFixture) rating(t *testing.T) (float64, int) {
	t.Helper()
	book, err := f.books.GetByID(context.Background(), f.bookID)
	require.NoError(t, err)
	return book.AverageRating, book.RatingCount
}

func TestReviewService_RecomputesAverage(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)

	first, err := f.svc.AddReview(ctx, f.alice, f.bookID, 5, "  loved it ")
	require.NoError(t, err)
	assert.Equal(t, "loved it", first.Comment)
	assert.Equal(t, "alice@example.com", first.UserEmail)

	_, err = f.svc.AddReview(ctx, f.bob, f.bookID, 2, "")
	require.NoError(t, err)
	avg, count := f.rating(t)
	assert.Equal(t, 3.5, avg)
	assert.Equal(t, 2, count)

	again, err := f.svc.AddReview(ctx, f.alice, f.bookID, 3, "on reflection")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "second review by the same user replaces the first")
	avg, count = f.rating(t)
	assert.Equal(t, 2.5, avg)
	assert.Equal(t, 2, count)

	_, err = f.svc.AddReview(ctx, f.admin, f.bookID, 3, "")
	require.NoError(t, err)
	avg, count = f.rating(t)
	assert.Equal(t, 2.67, avg)
	assert.Equal(t, 3, count)

	listed, err := f.svc.ListReviews(ctx, f.bookID)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestReviewService_ConcurrentReviewsKeepAverageInSync(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)

	const reviewers = 40
	principals := make([]*domain.Principal, reviewers)
	for i := range principals {
		email := fmt.Sprintf("reader%d@example.com", i)
		require.NoError(t, f.users.Create(ctx, &domain.User{ID: uuid.NewString(), Email: email, Role: domain.RoleUser}))
		principals[i] = &domain.Principal{Subject: email, Role: domain.RoleUser}
	}

	var wg sync.WaitGroup
	errs := make(chan error, reviewers)
	for i, p := range principals {
		wg.Add(1)
		go func(p *domain.Principal, rating int) {
			defer wg.Done()
			_, err := f.svc.AddReview(ctx, p, f.bookID, rating, "")
			errs <- err
		}(p, i%5+1)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.svc.ListReviews(ctx, f.bookID)
	require.NoError(t, err)
	require.Len(t, stored, reviewers)
	sum := 0
	for _, r := range stored {
		sum += r.Rating
	}

	avg, count := f.rating(t)
	assert.Equal(t, reviewers, count)
	assert.Equal(t, math.Round(float64(sum)/reviewers*100)/100, avg)
}

func TestReviewService_AddValidation(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)

	_, err := f.svc.AddReview(ctx, nil, f.bookID, 4, "")
	requireStatus(t, err, http.StatusUnauthorized)

	for _, rating := range []int{0, 6, -1} {
		_, err = f.svc.AddReview(ctx, f.alice, f.bookID, rating, "")
		requireStatus(t, err, http.StatusBadRequest)
	}

	_, err = f.svc.AddReview(ctx, f.alice, uuid.NewString(), 4, "")
	requireStatus(t, err, http.StatusNotFound)

	_, err = f.svc.AddReview(ctx, f.alice, "not-a-uuid", 4, "")
	requireStatus(t, err, http.StatusNotFound)

	_, err = f.svc.AddReview(ctx, &domain.Principal{Subject: "ghost@example.com", Role: domain.RoleUser}, f.bookID, 4, "")
	requireStatus(t, err, http.StatusUnauthorized)

	_, count := f.rating(t)
	assert.Zero(t, count)
}

func TestReviewService_DeletePermissions(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)

	aliceReview, err := f.svc.AddReview(ctx, f.alice, f.bookID, 4, "")
	require.NoError(t, err)
	bobReview, err := f.svc.AddReview(ctx, f.bob, f.bookID, 2, "")
	require.NoError(t, err)

	err = f.svc.DeleteReview(ctx, f.bob, aliceReview.ID)
	requireStatus(t, err, http.StatusForbidden)

	err = f.svc.DeleteReview(ctx, nil, aliceReview.ID)
	requireStatus(t, err, http.StatusUnauthorized)

	require.NoError(t, f.svc.DeleteReview(ctx, f.alice, aliceReview.ID))
	avg, count := f.rating(t)
	assert.Equal(t, 2.0, avg)
	assert.Equal(t, 1, count)

	require.NoError(t, f.svc.DeleteReview(ctx, f.admin, bobReview.ID))
	avg, count = f.rating(t)
	assert.Zero(t, avg)
	assert.Zero(t, count)

	err = f.svc.DeleteReview(ctx, f.admin, bobReview.ID)
	requireStatus(t, err, http.StatusNotFound)

	err = f.svc.DeleteReview(ctx, f.admin, "nope")
	requireStatus(t, err, http.StatusNotFound)
}

func TestReviewService_ListUnknownBook(t *testing.T) {
	f := newReviewFixture(t)
	_, err := f.svc.ListReviews(context.Background(), uuid.NewString())
	requireStatus(t, err, http.StatusNotFound)

	reviews, err := f.svc.ListReviews(context.Background(), f.bookID)
	require.NoError(t, err)
	assert.NotNil(t, reviews)
	assert.Empty(t, reviews)
}
