package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/handlers"
	"book-sms-agent/internal/intent"
	"book-sms-agent/internal/resolver"
)

const (
	defaultMaxReplyLength = 1600
	genericErrorMessage   = "Sorry, something went wrong. Please try again."
	cancelledMessage      = "Cancelled. No changes were made."
	firstPageMessage      = "You're already at the first page."
	noSearchMessage       = "There's no search to page through. Try something like \"unread fantasy\"."
)

type Classifier interface {
	Classify(ctx context.Context, text string) intent.ClassificationResult
}

type Dispatcher interface {
	Dispatch(ctx context.Context, params intent.Params, conv *domain.ConversationContext) handlers.Response
	Confirm(ctx context.Context, pending domain.PendingAction) handlers.Response
}

type ContextStore interface {
	Get(senderID string) (domain.ConversationContext, bool)
	Update(senderID string, u domain.ContextUpdate) domain.ConversationContext
	Clear(senderID string)
	Lock(senderID string) func()
}

// MessageLog records inbound message ids. ClaimMessage returns false when
// the id was already claimed.
type MessageLog interface {
	ClaimMessage(ctx context.Context, senderID, messageID string) (bool, error)
}

type MessageService struct {
	classifier Classifier
	dispatcher Dispatcher
	contexts   ContextStore
	messages   MessageLog
	logger     *slog.Logger
	maxReply   int
}

type MessageInput struct {
	SenderID  string
	Text      string
	MessageID string
}

type MessageOutput struct {
	Message   string
	Envelope  string
	Intent    domain.Intent
	Duplicate bool
}

// NewMessageService wires the pipeline. messages may be nil to disable
// duplicate detection.
func NewMessageService(c Classifier, d Dispatcher, store ContextStore, messages MessageLog, logger *slog.Logger, maxReply int) (*MessageService, error) {
	if c == nil {
		return nil, errors.New("usecase: classifier must not be nil")
	}
	if d == nil {
		return nil, errors.New("usecase: dispatcher must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: context store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxReply <= 0 {
		maxReply = defaultMaxReplyLength
	}
	return &MessageService{
		classifier: c,
		dispatcher: d,
		contexts:   store,
		messages:   messages,
		logger:     logger,
		maxReply:   maxReply,
	}, nil
}

// HandleMessage runs one inbound message through the pipeline. The only
// error is a validation error for a missing sender; every other failure
// becomes a safe reply.
func (s *MessageService) HandleMessage(ctx context.Context, in MessageInput) (out MessageOutput, err error) {
	sender := NormalizeSender(in.SenderID)
	if sender == "" {
		return MessageOutput{}, domain.NewError(domain.ErrorValidation, "missing_sender", "Missing sender.", nil)
	}
	logger := s.logger.With("sender", sender)

	if s.messages != nil && strings.TrimSpace(in.MessageID) != "" {
		claimed, err := s.messages.ClaimMessage(ctx, sender, strings.TrimSpace(in.MessageID))
		if err != nil {
			logger.WarnContext(ctx, "message log unavailable", "err", err)
		} else if !claimed {
			logger.InfoContext(ctx, "duplicate delivery skipped", "message_id", in.MessageID)
			return MessageOutput{Envelope: FormatEnvelope(""), Duplicate: true}, nil
		}
	}

	unlock := s.contexts.Lock(sender)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "message pipeline panic", "err", fmt.Sprint(r))
			out = s.reply(genericErrorMessage, domain.IntentUnknown)
			err = nil
		}
	}()

	return s.process(ctx, logger, sender, in.Text), nil
}

func (s *MessageService) process(ctx context.Context, logger *slog.Logger, sender, text string) MessageOutput {
	conv := s.lookup(sender)

	if conv != nil && conv.AwaitingConfirmation && conv.PendingAction != nil {
		pending := *conv.PendingAction
		switch {
		case isAffirmative(text):
			resp := s.dispatcher.Confirm(ctx, pending)
			patch := domain.ConfirmationResolved()
			if resp.UpdatedContext != nil {
				patch = patch.Merge(*resp.UpdatedContext)
			}
			patch.LastIntent = domain.Ptr(pending.Intent)
			s.contexts.Update(sender, patch)
			logger.InfoContext(ctx, "pending action confirmed", "intent", pending.Intent, "success", resp.Success)
			return s.reply(resp.Message, pending.Intent)
		case isNegative(text):
			s.contexts.Clear(sender)
			logger.InfoContext(ctx, "pending action cancelled", "intent", pending.Intent)
			return s.reply(cancelledMessage, pending.Intent)
		default:
			updated := s.contexts.Update(sender, domain.ConfirmationResolved())
			conv = &updated
		}
	}

	var pending *domain.PendingRequest
	if conv != nil && conv.PendingRequest != nil {
		p := *conv.PendingRequest
		pending = &p
	}

	var result intent.ClassificationResult
	if p, ok := fillPending(pending, text); ok {
		result = intent.ResultFor(text, p)
		logger.InfoContext(ctx, "pending request completed", "intent", result.Intent)
	} else {
		result = s.classifier.Classify(ctx, text)
		logger.InfoContext(ctx, "message classified", "intent", result.Intent, "confidence", result.Confidence)
	}

	params, resolved, msg := s.resolveFollowUp(result.Params, text, conv, pending)
	if msg != "" {
		return s.reply(msg, result.Intent)
	}
	if params == nil {
		params = &intent.UnknownParams{}
	}

	var patch domain.ContextUpdate
	if resolved != nil {
		patch = domain.LastBookUpdate(resolved.BookID, resolved.Title)
	}
	patch.ClearPendingRequest = pending != nil

	question := ""
	if result.NeedsMoreInfo {
		question = result.FollowUpQuestion
	}
	if params != result.Params {
		question = intent.MissingSlotQuestion(params)
	}
	if question != "" {
		patch.LastIntent = domain.Ptr(params.Intent())
		if req, ok := intent.RequestFor(params); ok {
			patch.PendingRequest = &req
		}
		s.contexts.Update(sender, patch)
		return s.reply(question, params.Intent())
	}

	resp := s.dispatcher.Dispatch(ctx, params, conv)
	effective := params.Intent()
	if resp.UpdatedContext != nil {
		patch = patch.Merge(*resp.UpdatedContext)
	}
	patch.LastIntent = domain.Ptr(effective)
	s.contexts.Update(sender, patch)

	if !resp.Success {
		logger.InfoContext(ctx, "handler declined", "intent", effective)
	}
	return s.reply(resp.Message, effective)
}

// fillPending completes a held request when text is only the value it is
// missing.
func fillPending(pending *domain.PendingRequest, text string) (intent.Params, bool) {
	if pending == nil {
		return nil, false
	}
	return intent.FillRequest(*pending, text)
}

func (s *MessageService) lookup(sender string) *domain.ConversationContext {
	c, ok := s.contexts.Get(sender)
	if !ok {
		return nil
	}
	return &c
}

// resolveFollowUp turns list references and pagination into concrete
// intents and resolves pronoun or ordinal book references. A held request
// without a book takes the picked book, or an unrecognised reply as the
// title. A non-empty message means resolution failed and should be sent as
// is.
func (s *MessageService) resolveFollowUp(params intent.Params, text string, conv *domain.ConversationContext, pending *domain.PendingRequest) (intent.Params, *resolver.Resolution, string) {
	var resolved *resolver.Resolution

	switch p := params.(type) {
	case *intent.ListReferenceParams:
		r, err := resolver.ResolveListReference(p.Reference, conv)
		if err != nil {
			return nil, nil, domain.UserMessage(err, genericErrorMessage)
		}
		if pending != nil && !pending.HasBook() {
			req := *pending
			req.BookID, req.BookTitle = r.BookID, r.Title
			return intent.ParamsForRequest(req), r, ""
		}
		return &intent.BookDetailsParams{Book: intent.BookRef{ID: r.BookID, Title: r.Title}}, r, ""
	case *intent.UnknownParams:
		if pending == nil {
			break
		}
		if named, ok := intent.NameBook(*pending, text); ok {
			params = named
		}
	case *intent.PaginationParams:
		if conv == nil || conv.LastFilters == nil {
			return nil, nil, noSearchMessage
		}
		page := conv.LastResultsPage - 1
		if p.Next {
			page = conv.LastResultsPage + 1
		}
		if page < 0 {
			return nil, nil, firstPageMessage
		}
		return &intent.SearchBooksParams{Filters: conv.LastFilters.Clone(), Page: page}, nil, ""
	}

	br, ok := params.(intent.BookReferrer)
	if !ok {
		return params, nil, ""
	}
	for _, ref := range br.BookRefs() {
		if ref.ID > 0 || strings.TrimSpace(ref.Title) == "" {
			continue
		}
		var (
			r   *resolver.Resolution
			err error
		)
		switch {
		case resolver.IsPronoun(ref.Title):
			r, err = resolver.ResolvePronoun(ref.Title, conv)
		case resolver.IsListReference(ref.Title):
			r, err = resolver.ResolveListReference(ref.Title, conv)
		default:
			continue
		}
		if err != nil {
			return nil, nil, domain.UserMessage(err, genericErrorMessage)
		}
		ref.ID, ref.Title = r.BookID, r.Title
		resolved = r
	}
	return params, resolved, ""
}

func (s *MessageService) reply(message string, in domain.Intent) MessageOutput {
	message = truncateReply(strings.TrimSpace(message), s.maxReply)
	return MessageOutput{Message: message, Envelope: FormatEnvelope(message), Intent: in}
}

func truncateReply(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
