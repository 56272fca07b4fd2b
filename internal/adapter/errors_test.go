package adapter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
)

func TestMediationErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want mediation.ErrorCode
	}{
		{name: "no connection", err: partner.NewError(partner.ErrorCodeNoConnection, ""), want: mediation.ErrLoadNoConnectivity},
		{name: "bad content", err: partner.NewError(partner.ErrorCodeBadContent, ""), want: mediation.ErrLoadInvalidAdRequest},
		{name: "server", err: partner.NewError(partner.ErrorCodeServer, ""), want: mediation.ErrLoadServerError},
		{name: "already shown", err: partner.NewError(partner.ErrorCodeAlreadyShown, ""), want: mediation.ErrLoadAdAlreadyShown},
		{name: "expired", err: partner.NewError(partner.ErrorCodeExpired, ""), want: mediation.ErrLoadAdExpired},
		{name: "destroyed", err: partner.NewError(partner.ErrorCodeDestroyed, ""), want: mediation.ErrLoadAdExpired},
		{name: "no content", err: partner.NewError(partner.ErrorCodeNoContent, ""), want: mediation.ErrLoadNoFill},
		{name: "timeout", err: partner.NewError(partner.ErrorCodeTimeout, ""), want: mediation.ErrLoadTimeout},
		{name: "internal unknown", err: partner.NewError(partner.ErrorCodeInternalUnknown, ""), want: mediation.ErrLoadUnknown},
		{name: "unmapped partner code", err: partner.NewError(partner.ErrorCode(999), ""), want: mediation.ErrPartnerError},
		{name: "wrapped partner error", err: fmt.Errorf("load: %w", partner.NewError(partner.ErrorCodeTimeout, "")), want: mediation.ErrLoadTimeout},
		{name: "not a partner error", err: errors.New("boom"), want: mediation.ErrPartnerError},
		{name: "nil error", err: nil, want: mediation.ErrPartnerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MediationErrorCode(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTranslateError(t *testing.T) {
	pe := partner.NewError(partner.ErrorCodeNoContent, "nothing to serve")
	err := translateError(pe)

	if err.Code != mediation.ErrLoadNoFill {
		t.Errorf("expected no fill, got %s", err.Code)
	}
	if !errors.Is(err, pe) {
		t.Error("expected the partner error to be the cause")
	}

	if got := translateError(nil); got.Code != mediation.ErrLoadUnknown {
		t.Errorf("expected unknown load error for nil partner error, got %s", got.Code)
	}
}
