package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// Invoke returns a Lambda handler that counts one view per event and returns the new count.
// Errors are returned to the Lambda runtime as is.
func Invoke(c Counter) func(ctx context.Context, payload json.RawMessage) (int64, error) {
	return func(ctx context.Context, payload json.RawMessage) (int64, error) {
		return c.HandleRequest(ctx, payload)
	}
}

// APIGateway returns a Lambda handler for API Gateway proxy events.
// POST increments, GET reads, OPTIONS answers the CORS preflight without touching the store.
func APIGateway(c Counter, logger *zap.Logger) func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		var n int64
		var err error
		switch req.HTTPMethod {
		case http.MethodGet:
			n, err = c.Read(ctx)
		case http.MethodPost:
			n, err = c.HandleRequest(ctx, req)
		case http.MethodOptions:
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusNoContent,
				Headers:    corsHeaders(),
			}, nil
		default:
			res, err := jsonResponse(http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
			if err == nil {
				res.Headers["Allow"] = allowedMethods
			}
			return res, err
		}

		if err != nil {
			logger.Error("count failed", zap.String("method", req.HTTPMethod), zap.String("requestId", req.RequestContext.RequestID), zap.Error(err))
			return jsonResponse(StatusCode(err), ErrorResponse{Error: err.Error()})
		}
		return jsonResponse(http.StatusOK, CountResponse{Count: n})
	}
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
}

func jsonResponse(code int, v any) (events.APIGatewayProxyResponse, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(b),
	}, nil
}
