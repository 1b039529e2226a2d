package oxpay

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/payment"
)

// ParseNotification verifies and decodes a server-to-server callback. The
// generation is recognised by shape: v1 reports transactionState, v2 status.
// The signature is taken from the X-Signature header, or from the body's
// signature field when the header is absent.
func (c *Client) ParseNotification(header http.Header, body []byte) (*payment.Notification, error) {
	fields, err := decodeFields(body)
	if err != nil {
		return nil, apperror.Validation("malformed notification payload")
	}

	signature := strings.TrimSpace(header.Get(SignatureHeader))
	if signature == "" {
		signature = fields[SignatureField]
	}
	if signature == "" {
		return nil, apperror.Authentication("missing notification signature")
	}

	var (
		version Version
		n       = &payment.Notification{Raw: body}
	)
	switch {
	case fields["transactionState"] != "":
		version = V1
		n.Reference = fields["referenceNo"]
		n.VendorTxnID = fields["transactionId"]
		n.Token = fields["transactionState"]
	case fields["status"] != "":
		version = V2
		n.Reference = fields["merchant_reference"]
		n.VendorTxnID = fields["transaction_id"]
		n.Token = fields["status"]
	default:
		return nil, apperror.Validation("notification carries no transaction state")
	}

	if !Verify(version, c.cfg.SecretKey, fields, signature) {
		c.logger.Warn("notification signature mismatch", zap.String("reference", n.Reference))
		return nil, apperror.Authentication("invalid notification signature")
	}

	if n.Reference == "" {
		return nil, apperror.Validation("notification has no merchant reference")
	}
	state, ok := ParseState(version, n.Token)
	if !ok {
		return nil, apperror.Validation("unknown transaction state %q", n.Token)
	}
	n.State = state

	if raw := fields["amount"]; raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, apperror.Validation("invalid notification amount %q", raw)
		}
		n.Amount = &amount
	}
	return n, nil
}

// decodeFields flattens a JSON object into the string form it was signed in.
// Numbers keep their literal text, nulls are dropped and nested values are
// rendered as compact JSON.
func decodeFields(body []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			nested, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			fields[k] = string(nested)
		}
	}
	return fields, nil
}
