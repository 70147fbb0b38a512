package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bookshelf-labs/library-service/internal/api/dto"
	"github.com/bookshelf-labs/library-service/internal/domain"
	"github.com/bookshelf-labs/library-service/internal/service"
	apperrors "github.com/bookshelf-labs/library-service/pkg/util/errorutil"
)

// BooksHandler exposes catalog endpoints.
type BooksHandler struct {
	books *service.BookService
}

// NewBooksHandler constructs handler.
func NewBooksHandler(bookService *service.BookService) *BooksHandler {
	return &BooksHandler{books: bookService}
}

// List GET /api/books?q=&page=&size=.
func (h *BooksHandler) List(c *fiber.Ctx) error {
	page, err := h.books.List(c.UserContext(), domain.BookQuery{
		Search: c.Query("q"),
		Page:   c.QueryInt("page", 1),
		Size:   c.QueryInt("size", 20),
	})
	if err != nil {
		return err
	}
	items := make([]dto.BookResponse, 0, len(page.Books))
	for i := range page.Books {
		items = append(items, dto.NewBookResponse(&page.Books[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": dto.PageMeta{Page: page.Page, Size: page.Size, Total: page.Total},
	})
}

// Get GET /api/books/:id.
func (h *BooksHandler) Get(c *fiber.Ctx) error {
	book, err := h.books.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBookResponse(book)})
}

// Create POST /api/books.
func (h *BooksHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateBookRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	book, err := h.books.Create(c.UserContext(), service.CreateBookInput{
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		PublishedYear: req.PublishedYear,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewBookResponse(book)})
}

// Delete DELETE /api/books/:id.
func (h *BooksHandler) Delete(c *fiber.Ctx) error {
	if err := h.books.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// UploadPDF POST /api/books/:id/pdf (multipart field "file").
func (h *BooksHandler) UploadPDF(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", nil)
	}
	f, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer f.Close()

	book, err := h.books.AttachPDF(c.UserContext(), c.Params("id"), header.Filename, f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBookResponse(book)})
}

// Download GET /api/books/:id/download.
func (h *BooksHandler) Download(c *fiber.Ctx) error {
	path, name, err := h.books.OpenPDF(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Download(path, name)
}
