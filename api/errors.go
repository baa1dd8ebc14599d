package api

import (
	"errors"
	"net/http"

	"lootledger/domain/entities"

	log "github.com/sirupsen/logrus"
)

// writeError maps a domain error to its HTTP status. Anything the caller did not
// cause is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation   *entities.ValidationError
		insufficient *entities.InsufficientBalanceError
		boxNotFound  *entities.BoxNotFoundError
		emptyBox     *entities.EmptyBoxError
		verification *entities.VerificationFailedError
		inactive     *entities.AccountInactiveError
		userNotFound *entities.UserNotFoundError
		outcomeNF    *entities.OutcomeNotFoundError
		txNotFound   *entities.TransactionNotFoundError
		sameAccount  *entities.SameAccountTransferError
		conflict     *entities.StorageConflictError
	)

	switch {
	case errors.As(err, &validation):
		details := map[string]any{}
		if validation.Field != "" {
			details[validation.Field] = validation.Message
		}
		FailWithDetails(w, http.StatusUnprocessableEntity, CodeValidation, validation.Error(), details)
	case errors.As(err, &insufficient):
		FailWithDetails(w, http.StatusUnprocessableEntity, CodeInsufficientBalance, insufficient.Error(), map[string]any{
			"bucket":    insufficient.Bucket,
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.As(err, &sameAccount):
		FailWithDetails(w, http.StatusUnprocessableEntity, CodeValidation, sameAccount.Error(), nil)
	case errors.As(err, &emptyBox):
		Fail(w, http.StatusUnprocessableEntity, CodeValidation, emptyBox.Error())
	case errors.As(err, &boxNotFound), errors.As(err, &userNotFound),
		errors.As(err, &outcomeNF), errors.As(err, &txNotFound):
		Fail(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.As(err, &verification):
		Fail(w, http.StatusNotFound, CodeVerificationFailed, verification.Error())
	case errors.As(err, &inactive):
		Fail(w, http.StatusForbidden, CodeForbidden, inactive.Error())
	case errors.Is(err, entities.ErrNotOutcomeOwner), errors.Is(err, entities.ErrForbidden):
		Fail(w, http.StatusForbidden, CodeForbidden, err.Error())
	case errors.Is(err, entities.ErrAlreadyResold):
		Fail(w, http.StatusConflict, CodeConflict, err.Error())
	case errors.As(err, &conflict):
		// Retries were exhausted; the client may try again
		log.WithError(err).WithField("request_id", GetRequestID(r.Context())).Warn("Storage conflict surfaced to client")
		Fail(w, http.StatusConflict, CodeConflict, "Request conflicted with a concurrent update, please retry")
	default:
		log.WithError(err).WithFields(log.Fields{
			"request_id": GetRequestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("Request failed")
		Fail(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}
