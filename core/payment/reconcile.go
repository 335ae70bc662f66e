package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elearnhub/elearn-api/api/web"
	"github.com/elearnhub/elearn-api/api/weberr"
	"github.com/elearnhub/elearn-api/payos"
	"github.com/jmoiron/sqlx"
)

// Callback is the provider's settlement notification. Data carries the
// transaction outcome; Signature is the checksum over Data.
type Callback struct {
	Code      string        `json:"code"`
	Desc      string        `json:"desc"`
	Data      *CallbackData `json:"data"`
	Signature string        `json:"signature"`
}

type CallbackData struct {
	OrderCode           int64  `json:"orderCode"`
	Amount              int64  `json:"amount"`
	Description         string `json:"description"`
	Reference           string `json:"reference"`
	TransactionDateTime string `json:"transactionDateTime"`
	Code                string `json:"code"`
	Desc                string `json:"desc"`
}

const transactionTimeLayout = "2006-01-02 15:04:05"

// settle maps a callback outcome onto a target status. The third case
// deliberately reports no transition: a success code with an
// unrecognized description must not flip a pending payment either way.
func settle(code string, desc string) (Status, bool) {
	d := strings.ToLower(strings.TrimSpace(desc))

	switch {
	case code == payos.CodeSuccess && d == "success":
		return Success, true
	case code != payos.CodeSuccess || strings.Contains(d, "cancel"):
		return Failed, true
	}

	return "", false
}

// HandleWebhook settles payments from provider callbacks. Malformed or
// unverifiable payloads and unknown order codes are permanent
// rejections; failures applying a recognized transition are transient
// and reported so the provider redelivers. Replays are acknowledged
// without new side effects.
func HandleWebhook(db *sqlx.DB, client *payos.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		var cb Callback
		if err := json.Unmarshal(body, &cb); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode callback: %w", err))
		}

		if cb.Data == nil {
			return weberr.BadRequest(errors.New("callback carries no data object"))
		}
		if cb.Data.OrderCode == 0 || cb.Data.Code == "" || cb.Data.Desc == "" {
			return weberr.BadRequest(errors.New("callback data misses order code or result"))
		}

		if cb.Signature == "" {
			return weberr.BadRequest(errors.New("callback is not signed"))
		}

		raw, err := rawData(body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode callback data: %w", err))
		}
		if !client.Verify(raw, cb.Signature) {
			err := errors.New("callback signature mismatch")
			return weberr.BadRequest(err, weberr.WithFields(map[string]interface{}{
				"order_code": cb.Data.OrderCode,
			}))
		}

		pay, err := FetchByOrderCode(ctx, db, cb.Data.OrderCode)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(fmt.Errorf("no payment for order[%d]: %w", cb.Data.OrderCode, err))
			}
			return weberr.Unavailable(fmt.Errorf("resolving order[%d]: %w", cb.Data.OrderCode, err))
		}

		target, ok := settle(cb.Data.Code, cb.Data.Desc)
		if !ok {
			return web.Respond(ctx, w, acknowledged(), http.StatusOK)
		}

		var transactionID *string
		if cb.Data.Reference != "" {
			transactionID = &cb.Data.Reference
		}

		paidAt := time.Now().UTC()
		if t, err := time.Parse(transactionTimeLayout, cb.Data.TransactionDateTime); err == nil {
			paidAt = t.UTC()
		}

		if _, err := transition(ctx, db, pay, target, transactionID, &paidAt); err != nil {
			return weberr.Unavailable(fmt.Errorf("settling payment[%s]: %w", pay.ID, err))
		}

		return web.Respond(ctx, w, acknowledged(), http.StatusOK)
	}
}

// rawData re-decodes the callback's data object generically so the
// checksum is computed over exactly the fields the provider sent.
func rawData(body []byte) (map[string]any, error) {
	var envelope struct {
		Data map[string]any `json:"data"`
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&envelope); err != nil {
		return nil, err
	}

	return envelope.Data, nil
}

func acknowledged() any {
	return struct {
		Success bool `json:"success"`
	}{Success: true}
}
