package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/config"
	"github.com/zhouzirui/aura/backend/internal/model/chat"
	catalog "github.com/zhouzirui/aura/backend/internal/model/prompt"
)

// Service answers chat requests with an LLM chain and emits one text block
// per paragraph of the reply.
type Service struct {
	chain     compose.Runnable[map[string]any, *schema.Message]
	streaming bool
	prompts   catalog.Store
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string
}

// NewService creates a new AI service instance on the configured ark model.
func NewService(ctx context.Context, cfg config.AIConfig, prompts catalog.Store, logger zerolog.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.StreamResponse, prompts, logger)
}

// NewServiceWithModel builds the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, streaming bool, prompts catalog.Store, logger zerolog.Logger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chain:     runnable,
		streaming: streaming,
		prompts:   prompts,
		log:       logger.With().Str("component", "llm_responder").Logger(),
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

func (s *Service) Name() string { return "llm" }

// Respond runs the chain and emits the reply.
func (s *Service) Respond(ctx context.Context, req chat.StreamRequest, emit Emitter) error {
	input := map[string]any{
		"system": BuildSystemPrompt(req.Attachments),
		"query":  req.Message,
	}

	if err := emitMeta(emit, s.newID(), s.now()); err != nil {
		return err
	}

	var (
		paragraphs int
		err        error
	)
	if s.streaming {
		paragraphs, err = s.streamParagraphs(ctx, input, emit)
	} else {
		paragraphs, err = s.generateParagraphs(ctx, input, emit)
	}
	if err != nil {
		return err
	}

	s.log.Info().Int("paragraphs", paragraphs).Int("attachments", len(req.Attachments)).Msg("generated response")

	if err := emit.Emit(chat.EventFollowups, followupsFor(s.prompts, req.Message)); err != nil {
		return err
	}
	return emitDone(emit)
}

func (s *Service) generateParagraphs(ctx context.Context, input map[string]any, emit Emitter) (int, error) {
	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("failed to run AI chain: %w", err)
	}

	var splitter paragraphSplitter
	return splitter.flush(response.Content, emit)
}

func (s *Service) streamParagraphs(ctx context.Context, input map[string]any, emit Emitter) (int, error) {
	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	var splitter paragraphSplitter
	emitted := 0
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return emitted, recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		n, err := splitter.feed(chunk.Content, emit)
		emitted += n
		if err != nil {
			return emitted, err
		}
	}

	n, err := splitter.flush("", emit)
	return emitted + n, err
}

// paragraphSplitter turns streamed text into one text block per blank-line
// separated paragraph.
type paragraphSplitter struct {
	pending strings.Builder
}

func (p *paragraphSplitter) feed(text string, emit Emitter) (int, error) {
	p.pending.WriteString(text)
	buf := p.pending.String()

	emitted := 0
	for {
		idx := strings.Index(buf, "\n\n")
		if idx < 0 {
			break
		}
		if para := strings.TrimSpace(buf[:idx]); para != "" {
			if err := emitBlock(emit, chat.BlockText, "", para); err != nil {
				return emitted, err
			}
			emitted++
		}
		buf = buf[idx+2:]
	}

	p.pending.Reset()
	p.pending.WriteString(buf)
	return emitted, nil
}

func (p *paragraphSplitter) flush(text string, emit Emitter) (int, error) {
	n, err := p.feed(text, emit)
	if err != nil {
		return n, err
	}
	rest := strings.TrimSpace(p.pending.String())
	p.pending.Reset()
	if rest == "" {
		return n, nil
	}
	if err := emitBlock(emit, chat.BlockText, "", rest); err != nil {
		return n, err
	}
	return n + 1, nil
}
