package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/airchains-network/devchain/api"
	"github.com/airchains-network/devchain/metrics"
	"github.com/airchains-network/devchain/types"
	"github.com/sirupsen/logrus"
)

// Handler executes one JSON-RPC call
type Handler interface {
	Handle(ctx context.Context, method string, params []byte) (interface{}, error)
}

type rpcRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     json.RawMessage
	Result interface{}
	Error  *rpcError
}

// MarshalJSON always emits result on success, null included
func (r *rpcResponse) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			Jsonrpc string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *rpcError       `json:"error"`
		}{"2.0", id, r.Error})
	}
	return json.Marshal(struct {
		Jsonrpc string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  interface{}     `json:"result"`
	}{"2.0", id, r.Result})
}

func errorResponse(id json.RawMessage, code int, message string) *rpcResponse {
	return &rpcResponse{ID: id, Error: &rpcError{Code: code, Message: message}}
}

// dispatcher turns request bodies into responses. It is shared by the HTTP
// and the WebSocket servers.
type dispatcher struct {
	handler Handler
	metrics *metrics.Metrics
	log     *logrus.Logger
}

// call serves one decoded request
func (d *dispatcher) call(ctx context.Context, req *rpcRequest) *rpcResponse {
	if req.Method == "" {
		return errorResponse(req.ID, api.CodeInvalidRequest, "missing method")
	}
	result, err := d.handler.Handle(ctx, req.Method, req.Params)
	if err != nil {
		label := req.Method
		if errors.Is(err, types.ErrMethodNotFound) {
			label = "unknown"
		}
		d.metrics.RPCRequest(label, true)
		code := api.ErrorCode(err)
		if code == api.CodeInternal {
			d.log.Errorf("Failed to serve %s: %v", req.Method, err)
		} else {
			d.log.Debugf("Request %s failed: %v", req.Method, err)
		}
		return errorResponse(req.ID, code, err.Error())
	}
	d.metrics.RPCRequest(req.Method, false)
	return &rpcResponse{ID: req.ID, Result: result}
}

// serve answers a single request or a batch. The returned value is ready
// to be marshalled.
func (d *dispatcher) serve(ctx context.Context, body []byte) interface{} {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			return errorResponse(nil, api.CodeParseError, "parse error")
		}
		if len(batch) == 0 {
			return errorResponse(nil, api.CodeInvalidRequest, "empty batch")
		}
		out := make([]*rpcResponse, 0, len(batch))
		for _, raw := range batch {
			var req rpcRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				out = append(out, errorResponse(nil, api.CodeInvalidRequest, "invalid request"))
				continue
			}
			out = append(out, d.call(ctx, &req))
		}
		return out
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errorResponse(nil, api.CodeParseError, "parse error")
	}
	return d.call(ctx, &req)
}
