package mailer

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"dormdesk/backend/config"
)

// Message 一封待投递的邮件
type Message struct {
	To      string
	Subject string
	Body    string // HTML 正文
}

// Mailer 邮件投递接口
// 投递是尽力而为的旁路通知：Enqueue 永不阻塞调用方，
// 失败只记日志，绝不影响触发它的业务请求结果
type Mailer interface {
	Enqueue(msg Message)
}

// SMTPMailer 基于 SMTP 的异步邮件投递器
// 内部单 worker 消费队列，失败按指数退避重试
type SMTPMailer struct {
	dialer      *gomail.Dialer
	from        string
	queue       chan Message
	logger      *zap.Logger
	wg          sync.WaitGroup
	maxAttempts int
	baseBackoff time.Duration
}

// NewSMTPMailer 创建并启动 SMTP 投递器
func NewSMTPMailer(cfg *config.MailConfig, logger *zap.Logger) *SMTPMailer {
	m := &SMTPMailer{
		dialer:      gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		from:        cfg.From,
		queue:       make(chan Message, 128),
		logger:      logger,
		maxAttempts: 3,
		baseBackoff: time.Second,
	}

	m.wg.Add(1)
	go m.worker()

	return m
}

// Enqueue 将邮件放入投递队列
// 队列满时直接丢弃并记日志，不阻塞业务请求
func (m *SMTPMailer) Enqueue(msg Message) {
	select {
	case m.queue <- msg:
	default:
		m.logger.Warn("邮件队列已满，丢弃邮件",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
		)
	}
}

// Close 停止接收新邮件并等待队列清空
func (m *SMTPMailer) Close() {
	close(m.queue)
	m.wg.Wait()
}

func (m *SMTPMailer) worker() {
	defer m.wg.Done()

	for msg := range m.queue {
		m.deliver(msg)
	}
}

// deliver 投递单封邮件，失败按 1s/2s/4s 退避重试
func (m *SMTPMailer) deliver(msg Message) {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.Body)

	backoff := m.baseBackoff
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err := m.dialer.DialAndSend(gm)
		if err == nil {
			m.logger.Info("邮件投递成功",
				zap.String("to", msg.To),
				zap.String("subject", msg.Subject),
			)
			return
		}

		m.logger.Warn("邮件投递失败",
			zap.String("to", msg.To),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < m.maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	m.logger.Error("邮件投递最终失败，放弃",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
}
