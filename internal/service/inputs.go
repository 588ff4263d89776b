package service

import (
	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/validation"
)

// inputs checks the scalar arguments services receive outside a bound
// request body.  Rule failures with a documented code map to it.
var inputs = validation.New()

type ratingInput struct {
	Rating int `json:"rating" validate:"gte=1,lte=5"`
}

type reviewTextInput struct {
	ReviewText string `json:"review_text" validate:"notblank"`
}

// MaxBroadcastLength bounds a broadcast message, counted in characters.
const MaxBroadcastLength = 255

type messageInput struct {
	Message string `json:"message" validate:"notblank"`
}

type broadcastInput struct {
	Message string `json:"message" validate:"notblank,max=255"`
}

type accountInput struct {
	Username string `json:"username" validate:"notblank,max=150"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required"`
}

var (
	ratingCodes = validation.Codes{
		"rating.gte": apperr.ErrInvalidRating,
		"rating.lte": apperr.ErrInvalidRating,
	}
	messageCodes = validation.Codes{
		"message.notblank": apperr.ErrEmptyMessage,
		"message.max":      apperr.ErrMessageLength,
	}
)

func validateMessage(message string) error {
	return inputs.ValidateCoded(messageInput{Message: message}, messageCodes)
}

func validateBroadcast(message string) error {
	return inputs.ValidateCoded(broadcastInput{Message: message}, messageCodes)
}
