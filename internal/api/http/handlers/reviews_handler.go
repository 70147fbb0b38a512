package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bookshelf-labs/library-service/internal/api/dto"
	"github.com/bookshelf-labs/library-service/internal/auth"
	"github.com/bookshelf-labs/library-service/internal/service"
	apperrors "github.com/bookshelf-labs/library-service/pkg/util/errorutil"
)

// ReviewsHandler exposes rating and review endpoints.
type ReviewsHandler struct {
	reviews *service.ReviewService
}

// NewReviewsHandler constructs handler.
func NewReviewsHandler(reviewService *service.ReviewService) *ReviewsHandler {
	return &ReviewsHandler{reviews: reviewService}
}

// List GET /api/books/:id/reviews.
func (h *ReviewsHandler) List(c *fiber.Ctx) error {
	reviews, err := h.reviews.ListReviews(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ReviewResponse, 0, len(reviews))
	for i := range reviews {
		items = append(items, dto.NewReviewResponse(&reviews[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Add POST /api/books/:id/reviews.
func (h *ReviewsHandler) Add(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.AddReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	review, err := h.reviews.AddReview(c.UserContext(), principal, c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewReviewResponse(review)})
}

// Delete DELETE /api/reviews/:id.
func (h *ReviewsHandler) Delete(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.reviews.DeleteReview(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
