package handlers

import (
	"context"
	"strings"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/intent"
)

var helpText = strings.Join([]string{
	"Things you can text me:",
	"- page 120 / 40% (log progress)",
	"- started Dune / finished Dune",
	"- rate Dune 4 stars",
	"- unread fantasy under 300 pages",
	"- what am I reading",
	"- how many books did I read this year",
	"- recommend a mystery",
	"- add Dune by Frank Herbert",
	"Reply NEXT/BACK to page results or a number to pick one.",
}, "\n")

type helpHandler struct{}

func (helpHandler) Handle(context.Context, intent.Params, *domain.ConversationContext) Response {
	return Response{Success: true, Message: helpText}
}

type unknownHandler struct{}

func (unknownHandler) Handle(context.Context, intent.Params, *domain.ConversationContext) Response {
	return Response{Message: "Sorry, I didn't understand that. Text HELP to see what I can do."}
}
