package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tutorverse-go/internal/config"
	"tutorverse-go/internal/model"
	"tutorverse-go/internal/repository"
	"tutorverse-go/pkg/log"
)

// ClientErrorText 是一轮问答无法完成时占位符被替换成的内容。
const ClientErrorText = "Oh no! Something went a bit wobbly. Please try asking again."

var (
	ErrEmptyQuery   = errors.New("query is empty")
	ErrTurnInFlight = errors.New("a turn is already in progress for this conversation")
)

// ConversationService 管理服务端保存的会话记录，并把每次提问交给 TutorService。
type ConversationService interface {
	Start(ctx context.Context) (*model.Transcript, error)
	// GetOrStart 返回已有会话，不存在时以该 ID 新建。
	GetOrStart(ctx context.Context, sessionID string) (*model.Transcript, error)
	// Submit 追加用户消息和占位符，调用 onPending 后执行问答，并原地替换占位符。
	Submit(ctx context.Context, sessionID, query string, onPending func(model.Message)) (model.Message, error)
	Reset(ctx context.Context, sessionID string) (*model.Transcript, error)
}

type conversationService struct {
	repo  repository.ConversationRepository
	tutor TutorService
	cfg   config.ConversationConfig
	now   func() time.Time
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository, tutor TutorService, cfg config.ConversationConfig) ConversationService {
	return &conversationService{repo: repo, tutor: tutor, cfg: cfg, now: time.Now}
}

func (s *conversationService) Start(ctx context.Context) (*model.Transcript, error) {
	return s.create(ctx, uuid.NewString())
}

func (s *conversationService) create(ctx context.Context, sessionID string) (*model.Transcript, error) {
	t := model.NewTranscript(sessionID, s.cfg.Greeting, s.now())
	if err := s.repo.SaveTranscript(ctx, t); err != nil {
		return nil, err
	}
	log.Infof("新会话已创建: %s", sessionID)
	return t, nil
}

func (s *conversationService) GetOrStart(ctx context.Context, sessionID string) (*model.Transcript, error) {
	t, err := s.repo.GetTranscript(ctx, sessionID)
	if errors.Is(err, repository.ErrConversationNotFound) {
		return s.create(ctx, sessionID)
	}
	return t, err
}

// Reset 需要拿到会话锁，有问答进行中时返回 ErrTurnInFlight。
func (s *conversationService) Reset(ctx context.Context, sessionID string) (*model.Transcript, error) {
	release, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.repo.DeleteTranscript(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.create(ctx, sessionID)
}

// lock 获取会话锁，返回的 release 即使请求已取消也会执行。
func (s *conversationService) lock(ctx context.Context, sessionID string) (func(), error) {
	token, acquired, err := s.repo.AcquireTurnLock(ctx, sessionID, s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrTurnInFlight
	}
	bg := context.WithoutCancel(ctx)
	return func() {
		if err := s.repo.ReleaseTurnLock(bg, sessionID, token); err != nil {
			log.Warnw("释放会话锁失败", "session_id", sessionID, "error", err)
		}
	}, nil
}

func (s *conversationService) Submit(ctx context.Context, sessionID, query string, onPending func(model.Message)) (model.Message, error) {
	if strings.TrimSpace(query) == "" {
		return model.Message{}, ErrEmptyQuery
	}

	release, err := s.lock(ctx, sessionID)
	if err != nil {
		return model.Message{}, err
	}
	defer release()

	t, err := s.GetOrStart(ctx, sessionID)
	if err != nil {
		return model.Message{}, err
	}

	// 1. 追加用户消息和占位符
	history, placeholder, err := t.BeginTurn(query, s.now())
	if errors.Is(err, model.ErrReplyPending) {
		// 锁已经拿到，说明上一轮的占位符是进程中断遗留的
		s.resolveStale(t)
		history, placeholder, err = t.BeginTurn(query, s.now())
	}
	if err != nil {
		return model.Message{}, err
	}
	t.Trim(s.cfg.MaxMessages)
	if err := s.repo.SaveTranscript(ctx, t); err != nil {
		return model.Message{}, err
	}
	if onPending != nil {
		onPending(placeholder)
	}

	// 2. 执行问答
	resp := s.process(WithSessionID(ctx, sessionID), query, history)

	// 3. 原地替换占位符并保存
	reply, err := t.ResolveTurn(placeholder.ID, resp, s.now())
	if err != nil {
		return model.Message{}, err
	}
	s.saveReply(context.WithoutCancel(ctx), t, placeholder.ID)
	return reply, nil
}

// saveReply 在回写前重新读取会话：会话已被重置或占位符已不在时放弃回写。
// 回复已经生成，保存失败只记录日志。
func (s *conversationService) saveReply(ctx context.Context, t *model.Transcript, placeholderID string) {
	current, err := s.repo.GetTranscript(ctx, t.SessionID)
	if errors.Is(err, repository.ErrConversationNotFound) {
		log.Warnw("会话已被删除，放弃回写", "session_id", t.SessionID)
		return
	}
	if err != nil {
		log.Errorf("保存前读取会话记录失败: session=%s, err=%v", t.SessionID, err)
		return
	}
	if current.Generation != t.Generation || !hasPending(current, placeholderID) {
		log.Warnw("会话已被重置或占位符已被替换，放弃回写", "session_id", t.SessionID, "message_id", placeholderID)
		return
	}
	if err := s.repo.SaveTranscript(ctx, t); err != nil {
		log.Errorf("保存会话记录失败: session=%s, err=%v", t.SessionID, err)
	}
}

func hasPending(t *model.Transcript, id string) bool {
	p := t.Pending()
	return p != nil && p.ID == id
}

// process 调用 TutorService；任何意外都转为面向用户的通用错误提示。
func (s *conversationService) process(ctx context.Context, query string, history []model.HistoryItem) (resp model.ProcessedResponse) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("问答处理出现 panic", "query", query, "panic", fmt.Sprint(r))
			resp = model.ProcessedResponse{Intent: model.IntentError, Text: ClientErrorText}
		}
	}()
	return s.tutor.ProcessQuery(ctx, query, history)
}

func (s *conversationService) resolveStale(t *model.Transcript) {
	p := t.Pending()
	if p == nil {
		return
	}
	log.Warnw("发现遗留的占位消息", "session_id", t.SessionID, "message_id", p.ID)
	_, _ = t.ResolveTurn(p.ID, model.ProcessedResponse{Intent: model.IntentError, Text: ClientErrorText}, s.now())
}
