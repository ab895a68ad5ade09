package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"finbot/internal/dto"
	"finbot/internal/models"
	"finbot/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxToolRounds bounds the tool loop; the last round is sent without tools so
// the model has to answer in text.
const maxToolRounds = 3

const defaultVisionPrompt = "Extract the transactions from this receipt."

type Attachment struct {
	Data     []byte
	MimeType string
	FileName string
}

// Request is one inbound user message after transport decoding.
type Request struct {
	UserID     string
	Text       string
	Attachment *Attachment
}

// AssistantDeps groups the pipeline stages AssistantService runs in order.
type AssistantDeps struct {
	Guardrail *Guardrail
	Cache     *ResponseCache
	Retriever *ContextRetriever
	Memory    *ConversationMemory
	Prompts   *PromptSelector
	Router    *ModelRouter
	Engine    *CompletionEngine
	Tools     *ToolDispatcher
	Processor *DataProcessor
	HITL      *HITLReconciler
	Uploader  FileUploader
	Location  *time.Location
}

type AssistantService struct {
	guardrail *Guardrail
	cache     *ResponseCache
	retriever *ContextRetriever
	memory    *ConversationMemory
	prompts   *PromptSelector
	router    *ModelRouter
	engine    *CompletionEngine
	tools     *ToolDispatcher
	processor *DataProcessor
	hitl      *HITLReconciler
	uploader  FileUploader
	location  *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

func NewAssistantService(deps AssistantDeps, logger *zap.Logger) *AssistantService {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &AssistantService{
		guardrail: deps.Guardrail,
		cache:     deps.Cache,
		retriever: deps.Retriever,
		memory:    deps.Memory,
		prompts:   deps.Prompts,
		router:    deps.Router,
		engine:    deps.Engine,
		tools:     deps.Tools,
		processor: deps.Processor,
		hitl:      deps.HITL,
		uploader:  deps.Uploader,
		location:  loc,
		now:       time.Now,
		logger:    logger,
	}
}

// turn carries the state of one Execute call between stages.
type turn struct {
	req       Request
	variant   PromptVariant
	usedTools bool
}

// Execute runs the whole pipeline for one message and always returns a
// response to send.
func (s *AssistantService) Execute(ctx context.Context, req Request) *dto.AssistantResponse {
	if s.guardrail.IsMalicious(req.UserID, req.Text) {
		return dto.TextResponse(MsgRefusal)
	}

	cacheable := req.Attachment == nil
	if cacheable {
		if cached, ok := s.cache.Get(ctx, req.Text); ok {
			s.logger.Debug("Answered from cache", logger.User(req.UserID))
			return cached
		}
	}

	var (
		grounding string
		history   []models.ConversationTurn
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		grounding = s.retriever.BuildContext(gctx, req.UserID, req.Text)
		return nil
	})
	g.Go(func() error {
		history = s.memory.History(gctx, req.UserID)
		return nil
	})
	_ = g.Wait()

	t := &turn{req: req, variant: s.prompts.Select()}
	system := s.prompts.Build(t.variant, PromptInput{
		Now:     s.now().In(s.location),
		Context: grounding,
	})

	tier := s.router.Route(req.Text, RouteContext{HasAttachment: req.Attachment != nil})
	model := s.router.Model(tier)

	userMsg, err := s.userMessage(ctx, req)
	if err != nil {
		s.logger.Error("Failed to upload attachment", logger.User(req.UserID), zap.Error(err))
		return dto.TextResponse(MsgTechnicalError)
	}

	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: ChatRoleSystem, Content: system})
	for _, h := range history {
		role := ChatRoleUser
		if h.Role == models.RoleAssistant {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: h.Content})
	}
	messages = append(messages, userMsg)

	s.logger.Info("Running completion",
		logger.User(req.UserID),
		zap.String("model", model),
		zap.String("prompt_version", string(t.variant)),
		zap.Bool("attachment", req.Attachment != nil),
	)

	raw, media, fallback := s.complete(ctx, t, messages, model)
	if fallback != "" {
		// provider failures leave memory and cache untouched
		return dto.TextResponse(fallback)
	}
	if media != nil {
		resp := dto.MediaResponse(media)
		resp.PromptVersion = string(t.variant)
		s.memory.Append(ctx, req.UserID, req.Text, media.Caption)
		return resp
	}

	interpretation := Interpret(raw)
	reply := s.respond(ctx, t, interpretation, raw)

	resp := dto.TextResponse(reply)
	resp.PromptVersion = string(t.variant)

	s.memory.Append(ctx, req.UserID, req.Text, reply)
	if _, ok := interpretation.(FreeText); ok && cacheable && !t.usedTools {
		s.cache.Put(ctx, req.Text, resp)
	}
	return resp
}

func (s *AssistantService) userMessage(ctx context.Context, req Request) (ChatMessage, error) {
	msg := ChatMessage{Role: ChatRoleUser, Content: req.Text}
	if req.Attachment == nil {
		return msg, nil
	}

	fileID, err := s.uploader.UploadFile(ctx, req.Attachment.Data, req.Attachment.FileName, req.Attachment.MimeType)
	if err != nil {
		return msg, err
	}
	if strings.TrimSpace(msg.Content) == "" {
		msg.Content = defaultVisionPrompt
	}
	msg.Attachments = []string{fileID}
	return msg, nil
}

// complete runs the tool loop. It returns the final model text, or the first
// media produced by a tool, or a non-empty fallback message.
func (s *AssistantService) complete(ctx context.Context, t *turn, messages []ChatMessage, model string) (string, *dto.MediaPayload, string) {
	definitions := s.tools.Definitions()

	for round := 0; ; round++ {
		var tools []ToolDefinition
		if round < maxToolRounds {
			tools = definitions
		}

		result := s.engine.Complete(ctx, messages, tools, model)
		if result.Fallback {
			msg := result.Message
			if msg == "" {
				msg = MsgUnavailable
			}
			return "", nil, msg
		}

		resp := result.Response
		if len(resp.ToolCalls) == 0 || tools == nil {
			return resp.Content, nil, ""
		}

		t.usedTools = true
		messages = append(messages, ChatMessage{
			Role:      ChatRoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			out := s.tools.Run(ctx, call, t.req.UserID)
			if out.Media != nil {
				// remaining calls of this round are not executed
				return "", out.Media, ""
			}
			messages = append(messages, ChatMessage{
				Role:       ChatRoleTool,
				Content:    out.Content,
				ToolName:   call.Name,
				ToolCallID: call.ID,
			})
		}
	}
}

// respond turns an interpretation into the reply text, persisting
// extractions on the way.
func (s *AssistantService) respond(ctx context.Context, t *turn, interpretation Interpretation, raw string) string {
	userID := t.req.UserID

	switch in := interpretation.(type) {
	case FreeText:
		if strings.TrimSpace(in.Text) == "" {
			return MsgConfused
		}
		return in.Text

	case Question:
		return in.Text

	case NoOp:
		if in.Reply == "" {
			return "Ok 👍"
		}
		return in.Reply

	case TechnicalError:
		s.logger.Error("Model returned unparseable transaction output",
			logger.User(userID),
			zap.String("raw", in.Raw),
			zap.Error(in.Err),
		)
		return MsgTechnicalError

	case InvalidPayload:
		s.logger.Warn("Model returned an invalid transaction payload",
			logger.User(userID),
			zap.String("raw", in.Raw),
			zap.Error(in.Err),
		)
		return MsgConfused

	case Extraction:
		result, err := s.processor.Process(ctx, userID, in.Payload, in.Raw, string(t.variant))
		switch {
		case errors.Is(err, ErrNoLineItems):
			return MsgNoAmount
		case err != nil:
			return MsgSaveFailed
		}
		if result.Status == ProcessPendingReview {
			return s.hitl.Open(ctx, userID, t.req.Text, result)
		}
		return result.Message

	default:
		s.logger.Error("Unhandled interpretation", logger.User(userID), zap.String("raw", raw))
		return MsgTechnicalError
	}
}
