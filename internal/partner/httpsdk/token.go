package httpsdk

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
)

// bidToken is the opaque blob the platform forwards to the BidMachine auction
type bidToken struct {
	Session   string            `json:"session"`
	SourceID  string            `json:"source_id"`
	Format    partner.AdsFormat `json:"format"`
	Timestamp int64             `json:"ts"`
	Test      bool              `json:"test,omitempty"`
}

func encodeBidToken(t bidToken) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeBidToken(s string) (bidToken, error) {
	var t bidToken
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return t, fmt.Errorf("decode bid token: %w", err)
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse bid token: %w", err)
	}
	return t, nil
}
