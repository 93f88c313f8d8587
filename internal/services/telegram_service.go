package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/navalha/internal/models"
)

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
	logger      *zap.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, logger *zap.Logger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.logger.Debug("telegram bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("telegram send failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("telegram unexpected status", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		s.logger.Debug("telegram admin chat not configured")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice renders a BRL amount as "R$ 1.234,56".
func FormatPrice(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	length := len(intPart)
	for i, digit := range intPart {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(".")
		}
		result.WriteRune(digit)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + "R$ " + result.String() + "," + frac
}

// NotifyPaymentSettled tells the admin chat that a payment was settled.
func (s *TelegramService) NotifyPaymentSettled(ctx context.Context, event PaymentSettledEvent) error {
	if s.adminChatID == "" {
		return nil
	}

	title := "<b>✅ PAGAMENTO CONFIRMADO!</b>"
	switch event.Status {
	case models.PaymentStatusExpired:
		title = "<b>⌛ PAGAMENTO EXPIRADO</b>"
	case models.PaymentStatusRejected:
		title = "<b>❌ PAGAMENTO RECUSADO</b>"
	}

	methodText := "PIX"
	if event.Method == models.PaymentMethodBitcoin {
		methodText = "Bitcoin"
	}

	scheduled := "-"
	if event.ScheduledAt != nil {
		scheduled = event.ScheduledAt.Format("02/01/2006 15:04")
	}

	message := fmt.Sprintf(`%s
<b>👤 Cliente:</b> %s
<b>📞 Telefone:</b> %s
<b>✂️ Serviço:</b> %s
<b>💈 Profissional:</b> %s
<b>📅 Horário:</b> %s
<b>💰 Valor:</b> %s
<b>💳 Método:</b> %s
<b>🧾 Pagamento:</b> %s
━━━━━━━━━━━━━━━━━━`,
		title,
		html.EscapeString(event.ClientName),
		html.EscapeString(event.ClientPhone),
		html.EscapeString(event.ServiceName),
		html.EscapeString(event.ProfessionalName),
		scheduled,
		FormatPrice(event.Amount),
		methodText,
		event.PaymentID,
	)

	return s.SendMessage(ctx, s.adminChatID, strings.TrimSpace(message))
}
