// Package handler adapts API Gateway proxy requests carrying an SMS webhook
// form to the message service.
package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type MessageHandler interface {
	HandleMessage(ctx context.Context, in usecase.MessageInput) (usecase.MessageOutput, error)
}

type Handler struct {
	svc    MessageHandler
	logger *slog.Logger
}

func NewHandler(svc MessageHandler, logger *slog.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: message service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}, nil
}

// Handle decodes the webhook form (From, Body, MessageSid) and replies with
// the XML envelope. Malformed requests get a 4xx; everything else is a 200
// so the SMS provider does not redeliver.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID)

	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodPost {
		return textResponse(http.StatusMethodNotAllowed, "method not allowed", correlationID), nil
	}

	form, err := parseForm(req)
	if err != nil {
		logger.WarnContext(ctx, "invalid webhook body", "err", err)
		return textResponse(http.StatusBadRequest, "invalid form body", correlationID), nil
	}

	out, err := h.svc.HandleMessage(ctx, usecase.MessageInput{
		SenderID:  form.Get("From"),
		Text:      form.Get("Body"),
		MessageID: form.Get("MessageSid"),
	})
	if err != nil {
		if domain.IsCode(err, domain.ErrorValidation) {
			logger.WarnContext(ctx, "rejected webhook", "err", err)
			return textResponse(http.StatusBadRequest, domain.UserMessage(err, "bad request"), correlationID), nil
		}
		logger.ErrorContext(ctx, "message handling failed", "err", err)
		return xmlResponse(usecase.FormatEnvelope(""), correlationID), nil
	}

	logger.InfoContext(ctx, "message handled", "intent", out.Intent, "duplicate", out.Duplicate)
	return xmlResponse(out.Envelope, correlationID), nil
}

func parseForm(req events.APIGatewayProxyRequest) (url.Values, error) {
	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, err
		}
		body = string(raw)
	}
	return url.ParseQuery(body)
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func xmlResponse(body, correlationID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":    "text/xml",
			correlationHeader: correlationID,
		},
		Body: body,
	}
}

func textResponse(status int, body, correlationID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "text/plain",
			correlationHeader: correlationID,
		},
		Body: body,
	}
}
