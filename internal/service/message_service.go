package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"finbot/internal/dto"
	"finbot/pkg/logger"

	"go.uber.org/zap"
)

// MessageService handles one inbound WhatsApp message end to end.
type MessageService struct {
	assistant  *AssistantService
	hitl       *HITLReconciler
	statements *StatementService
	messenger  Messenger
	logger     *zap.Logger
}

func NewMessageService(
	assistant *AssistantService,
	hitl *HITLReconciler,
	statements *StatementService,
	messenger Messenger,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		assistant:  assistant,
		hitl:       hitl,
		statements: statements,
		messenger:  messenger,
		logger:     logger,
	}
}

// Handle never panics and always tries to answer the sender.
func (s *MessageService) Handle(ctx context.Context, msg dto.WhatsAppMessage) {
	userID := msg.From

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while handling message",
				logger.User(userID),
				zap.String("message_id", msg.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			s.sendText(ctx, userID, MsgInternalError)
		}
	}()

	text := strings.TrimSpace(msg.Body())
	if media := msg.Media(); media != nil {
		s.handleMedia(ctx, msg, media, text)
		return
	}
	if text == "" {
		s.logger.Debug("Ignoring message without text", logger.User(userID), zap.String("type", msg.Type))
		return
	}

	// rejected text must not reach the correction flow either
	if s.assistant.guardrail.IsMalicious(userID, text) {
		s.sendText(ctx, userID, MsgRefusal)
		return
	}

	outcome := s.hitl.Resolve(ctx, userID, text)
	switch outcome.Action {
	case HITLConfirmed, HITLAskResend, HITLFailed:
		s.sendText(ctx, userID, outcome.Reply)
		return
	case HITLReprocess:
		text = outcome.Input
	}

	s.reply(ctx, userID, s.assistant.Execute(ctx, Request{UserID: userID, Text: text}))
}

func (s *MessageService) handleMedia(ctx context.Context, msg dto.WhatsAppMessage, media *dto.MediaObject, caption string) {
	userID := msg.From
	fileName := media.Filename
	if fileName == "" {
		fileName = media.ID
	}

	isImage := msg.Image != nil || strings.HasPrefix(media.MimeType, "image/")
	isStatement := msg.Document != nil && s.statements.Supports(fileName, media.MimeType)
	if !isImage && !isStatement {
		s.sendText(ctx, userID, MsgUnsupportedMedia)
		return
	}

	data, mimeType, err := s.messenger.DownloadMedia(ctx, media.ID)
	if err != nil {
		s.logger.Error("Failed to download media", logger.User(userID), zap.String("media_id", media.ID), zap.Error(err))
		s.sendText(ctx, userID, MsgMediaDownload)
		return
	}
	if mimeType == "" {
		mimeType = media.MimeType
	}

	if isStatement {
		s.sendText(ctx, userID, s.importStatement(ctx, userID, fileName, mimeType, data))
		return
	}

	s.reply(ctx, userID, s.assistant.Execute(ctx, Request{
		UserID: userID,
		Text:   caption,
		Attachment: &Attachment{
			Data:     data,
			MimeType: mimeType,
			FileName: fileName,
		},
	}))
}

func (s *MessageService) importStatement(ctx context.Context, userID, fileName, mimeType string, data []byte) string {
	result, err := s.statements.Import(ctx, userID, fileName, mimeType, data)
	switch {
	case errors.Is(err, ErrNoLineItems):
		return MsgEmptyStatement
	case errors.Is(err, ErrPersistence):
		return MsgSaveFailed
	case errors.Is(err, ErrUnsupportedDocument):
		return MsgUnsupportedMedia
	case err != nil:
		s.logger.Warn("Failed to import statement", logger.User(userID), zap.String("file", fileName), zap.Error(err))
		return fmt.Sprintf("I couldn't read %s. Please check that it is a valid OFX or CSV statement.", fileName)
	}

	if result.Status == ProcessPendingReview {
		return s.hitl.Open(ctx, userID, fileName, result)
	}
	return result.Message
}

func (s *MessageService) reply(ctx context.Context, userID string, resp *dto.AssistantResponse) {
	if resp.Type == dto.ResponseTypeMedia && resp.Media != nil {
		if err := s.messenger.SendMedia(ctx, userID, resp.Media); err != nil {
			s.logger.Error("Failed to send media reply", logger.User(userID), zap.Error(err))
			s.sendText(ctx, userID, MsgToolFailed)
		}
		return
	}
	s.sendText(ctx, userID, resp.Content)
}

func (s *MessageService) sendText(ctx context.Context, userID, body string) {
	if err := s.messenger.SendText(ctx, userID, body); err != nil {
		s.logger.Error("Failed to send reply", logger.User(userID), zap.Error(err))
	}
}
