package adapter

import (
	"errors"

	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
)

// partnerErrors maps BidMachine error codes to mediation error codes
var partnerErrors = map[partner.ErrorCode]mediation.ErrorCode{
	partner.ErrorCodeNoConnection:    mediation.ErrLoadNoConnectivity,
	partner.ErrorCodeBadContent:      mediation.ErrLoadInvalidAdRequest,
	partner.ErrorCodeServer:          mediation.ErrLoadServerError,
	partner.ErrorCodeAlreadyShown:    mediation.ErrLoadAdAlreadyShown,
	partner.ErrorCodeExpired:         mediation.ErrLoadAdExpired,
	partner.ErrorCodeDestroyed:       mediation.ErrLoadAdExpired,
	partner.ErrorCodeNoContent:       mediation.ErrLoadNoFill,
	partner.ErrorCodeTimeout:         mediation.ErrLoadTimeout,
	partner.ErrorCodeInternalUnknown: mediation.ErrLoadUnknown,
}

// MediationErrorCode translates a partner failure. Codes outside the table, and errors that
// are not partner errors, map to ErrPartnerError.
func MediationErrorCode(err error) mediation.ErrorCode {
	var pe *partner.Error
	if !errors.As(err, &pe) || pe == nil {
		return mediation.ErrPartnerError
	}
	if code, ok := partnerErrors[pe.Code]; ok {
		return code
	}
	return mediation.ErrPartnerError
}

// translateError wraps a partner failure into a mediation error
func translateError(err *partner.Error) *mediation.Error {
	if err == nil {
		return mediation.NewError(mediation.ErrLoadUnknown)
	}
	return mediation.WrapError(MediationErrorCode(err), err)
}
