package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/service"
)

// ReviewHandler serves the review ledger.
type ReviewHandler struct {
	Reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{Reviews: reviews}
}

type reviewReq struct {
	Book       uint64 `json:"book"`
	ReviewText string `json:"review_text"`
	Rating     int    `json:"rating"`
}

type reviewPatchReq struct {
	ReviewText *string `json:"review_text"`
	Rating     *int    `json:"rating"`
}

// List handles GET /reviews?book=&user=&ordering=.
func (h *ReviewHandler) List(c echo.Context) error {
	bookID, err := queryID(c, "book")
	if err != nil {
		return err
	}
	userID, err := queryID(c, "user")
	if err != nil {
		return err
	}
	reviews, err := h.Reviews.List(c.Request().Context(), model.ReviewFilter{
		BookID:   bookID,
		UserID:   userID,
		Ordering: c.QueryParam("ordering"),
	})
	if err != nil {
		return err
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	return c.JSON(http.StatusOK, reviews)
}

func (h *ReviewHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id", apperr.ErrReviewNotFound)
	if err != nil {
		return err
	}
	r, err := h.Reviews.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Create handles POST /reviews.  A second submission for the same book
// updates the caller's review and answers 200 instead of 201.
func (h *ReviewHandler) Create(c echo.Context) error {
	var req reviewReq
	if err := bind(c, &req); err != nil {
		return err
	}
	r, created, err := h.Reviews.Submit(c.Request().Context(), caller(c), service.ReviewInput{
		BookID:     req.Book,
		ReviewText: req.ReviewText,
		Rating:     req.Rating,
	})
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, r)
}

// Update handles PUT and PATCH /reviews/:id by the author or staff.
func (h *ReviewHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id", apperr.ErrReviewNotFound)
	if err != nil {
		return err
	}
	var req reviewPatchReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if c.Request().Method == http.MethodPut {
		if req.ReviewText == nil {
			return apperr.Validation("review_text", "This field is required.")
		}
		if req.Rating == nil {
			return apperr.Validation("rating", "This field is required.")
		}
	}
	r, err := h.Reviews.Update(c.Request().Context(), caller(c), id, service.ReviewPatch{
		ReviewText: req.ReviewText,
		Rating:     req.Rating,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id", apperr.ErrReviewNotFound)
	if err != nil {
		return err
	}
	if _, err := h.Reviews.Delete(c.Request().Context(), caller(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
