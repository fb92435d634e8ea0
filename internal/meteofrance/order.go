package meteofrance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderState is the lifecycle of a climatology order.
//
//	SUBMITTED --(202 + id)--> PENDING --(201)--> READY
//	PENDING --(204)--> PENDING, up to the poll budget
//	PENDING --(budget exhausted)--> TIMED_OUT
//	SUBMITTED/PENDING --(any other status)--> FAILED
type OrderState string

const (
	OrderSubmitted OrderState = "SUBMITTED"
	OrderPending   OrderState = "PENDING"
	OrderReady     OrderState = "READY"
	OrderTimedOut  OrderState = "TIMED_OUT"
	OrderFailed    OrderState = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s OrderState) Terminal() bool {
	return s == OrderReady || s == OrderTimedOut || s == OrderFailed
}

// PollConfig bounds the recovery loop.
type PollConfig struct {
	Attempts int
	Delay    time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{Attempts: 5, Delay: 10 * time.Second}
}

// OrderRequest describes the bulk extraction to order.
type OrderRequest struct {
	StationID   string
	Start       time.Time
	End         time.Time
	Granularity Granularity
}

// Order tracks one extraction from submission to recovery.
type Order struct {
	ID       string
	Request  OrderRequest
	State    OrderState
	Attempts int

	// TraceID correlates log lines of the same order.
	TraceID     string
	SubmittedAt time.Time
}

var errEmptyOrderID = errors.New("order response has no id")

// SubmitOrder places an order and returns it in the PENDING state.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	order := &Order{
		Request: req,
		State:   OrderSubmitted,
		TraceID: uuid.NewString(),
	}

	endpoint, err := req.Granularity.Endpoint()
	if err != nil {
		order.State = OrderFailed
		return order, err
	}
	rawURL, params, err := c.urls.buildRequest(endpoint, Query{
		StationID: req.StationID,
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		order.State = OrderFailed
		return order, err
	}

	resp, err := c.Request(ctx, http.MethodGet, rawURL, params)
	if err != nil {
		order.State = OrderFailed
		return order, err
	}
	if resp.StatusCode != http.StatusAccepted {
		order.State = OrderFailed
		return order, &OrderSubmissionError{
			StationID:  req.StationID,
			StatusCode: resp.StatusCode,
			Reason:     resp.Reason(),
		}
	}

	id, err := decodeOrderID(resp.Body)
	if err != nil {
		order.State = OrderFailed
		return order, &DecodeError{Source: "order submission", Err: err}
	}

	order.ID = id
	order.State = OrderPending
	order.SubmittedAt = time.Now().UTC()
	c.logger.Info("order submitted",
		"order_id", id,
		"trace_id", order.TraceID,
		"station", req.StationID,
		"granularity", string(req.Granularity),
	)
	return order, nil
}

// Recover polls the recovery endpoint until the order file is ready, the
// poll budget is spent or ctx is done. The delay separates attempts and is
// never applied after the last one.
func (c *Client) Recover(ctx context.Context, order *Order) ([]byte, error) {
	if order == nil || order.ID == "" {
		return nil, errEmptyOrderID
	}

	params := url.Values{}
	params.Set("id-cmde", order.ID)

	var last *Response
	for attempt := 1; attempt <= c.poll.Attempts; attempt++ {
		order.Attempts = attempt

		resp, err := c.Request(ctx, http.MethodGet, c.urls.Recovery, params)
		if err != nil {
			order.State = OrderFailed
			return nil, err
		}
		last = resp

		switch resp.StatusCode {
		case http.StatusCreated:
			order.State = OrderReady
			c.logger.Info("order ready", "order_id", order.ID, "trace_id", order.TraceID, "attempts", attempt)
			return resp.Body, nil
		case http.StatusNoContent, http.StatusAccepted:
			c.logger.Debug("order not ready", "order_id", order.ID, "attempt", attempt, "status", resp.StatusCode)
		default:
			order.State = OrderFailed
			return nil, &OrderRecoveryError{
				OrderID:    order.ID,
				StatusCode: resp.StatusCode,
				Reason:     resp.Reason(),
				Attempts:   attempt,
			}
		}

		if attempt == c.poll.Attempts || c.poll.Delay <= 0 {
			continue
		}
		timer := time.NewTimer(c.poll.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			order.State = OrderFailed
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	order.State = OrderTimedOut
	c.logger.Warn("order timed out", "order_id", order.ID, "trace_id", order.TraceID, "attempts", order.Attempts)
	return nil, &OrderRecoveryError{
		OrderID:    order.ID,
		StatusCode: last.StatusCode,
		Reason:     last.Reason(),
		Attempts:   order.Attempts,
		TimedOut:   true,
	}
}

// FetchClimatology submits an order and waits for its file.
func (c *Client) FetchClimatology(ctx context.Context, req OrderRequest) ([]byte, error) {
	order, err := c.SubmitOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Recover(ctx, order)
}

// decodeOrderID reads elaboreProduitAvecDemandeResponse.return, which the
// service sends either as a string or as a bare number.
func decodeOrderID(body []byte) (string, error) {
	var payload struct {
		Response struct {
			Return json.RawMessage `json:"return"`
		} `json:"elaboreProduitAvecDemandeResponse"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	raw := bytes.TrimSpace(payload.Response.Return)
	if len(raw) == 0 || string(raw) == "null" {
		return "", errEmptyOrderID
	}

	var id string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		id = n.String()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errEmptyOrderID
	}
	return id, nil
}
