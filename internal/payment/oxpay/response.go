package oxpay

import (
	"encoding/json"
	"fmt"
)

// Version identifies the vendor API generation.
type Version string

const (
	V1 Version = "v1"
	V2 Version = "v2"
)

// VendorResponse is either a V1Response or a V2Response. The two generations use
// incompatible envelopes: v1 discriminates on respCode, v2 on status_code.
type VendorResponse interface {
	Version() Version
	OK() bool
	VendorMessage() string
}

// V1Response is the envelope of the first API generation.
type V1Response struct {
	RespCode string `json:"respCode"`
	RespMsg  string `json:"respMsg"`
	Data     struct {
		ReferenceNo      string `json:"referenceNo"`
		PaymentURL       string `json:"paymentUrl"`
		TransactionID    string `json:"transactionId"`
		TransactionState string `json:"transactionState"`
	} `json:"data"`
}

func (r *V1Response) Version() Version      { return V1 }
func (r *V1Response) OK() bool              { return r.RespCode == "00" }
func (r *V1Response) VendorMessage() string { return r.RespMsg }

// V2Response is the envelope of the second API generation.
type V2Response struct {
	StatusCode json.Number `json:"status_code"`
	Message    string      `json:"message"`
	Data       struct {
		SessionID         string `json:"session_id"`
		PaymentURL        string `json:"payment_url"`
		ReferenceNo       string `json:"reference_no"`
		MerchantReference string `json:"merchant_reference"`
		TransactionID     string `json:"transaction_id"`
		Status            string `json:"status"`
	} `json:"data"`
}

func (r *V2Response) Version() Version      { return V2 }
func (r *V2Response) OK() bool              { return r.StatusCode.String() == "200" }
func (r *V2Response) VendorMessage() string { return r.Message }

// DecodeResponse picks the envelope by its discriminant field.
func DecodeResponse(body []byte) (VendorResponse, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("invalid vendor response: %w", err)
	}

	switch {
	case probe["respCode"] != nil:
		var r V1Response
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("invalid v1 response: %w", err)
		}
		return &r, nil
	case probe["status_code"] != nil:
		var r V2Response
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("invalid v2 response: %w", err)
		}
		return &r, nil
	default:
		return nil, fmt.Errorf("vendor response has neither respCode nor status_code")
	}
}
