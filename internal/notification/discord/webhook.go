package discord

import (
	"fmt"
	"time"

	"github.com/assist-by/mirror/internal/notification"
)

// SendCopyResult는 복제 주문 결과 알림을 전송합니다
func (c *Client) SendCopyResult(result notification.CopyResult) error {
	var title string
	if result.Success {
		title = fmt.Sprintf("✅ 복제 완료: %s", result.Symbol)
	} else {
		title = fmt.Sprintf("❌ 복제 실패: %s", result.Symbol)
	}

	embed := NewEmbed().
		SetTitle(title).
		SetDescription(fmt.Sprintf(
			"**팔로워**: %s\n**방향**: %s\n**유형**: %s\n**수량**: %.8f\n**레버리지**: %dx",
			result.FollowerName, result.Side, result.OrderType, result.Quantity, result.Leverage,
		)).
		SetColor(notification.GetColorForResult(result.Success)).
		SetFooter("Assist by Mirror 🪞").
		SetTimestamp(time.Now())

	if result.OrderID != "" {
		embed.AddField("주문 ID", result.OrderID, true)
	}

	return c.sendToWebhook(c.tradeWebhook, WebhookMessage{
		Embeds: []Embed{*embed},
	})
}

// SendError는 에러 알림을 전송합니다
func (c *Client) SendError(err error) error {
	embed := NewEmbed().
		SetTitle("에러 발생").
		SetDescription(fmt.Sprintf("```%v```", err)).
		SetColor(notification.ColorError).
		SetFooter("Assist by Mirror 🪞").
		SetTimestamp(time.Now())

	return c.sendToWebhook(c.errorWebhook, WebhookMessage{
		Embeds: []Embed{*embed},
	})
}

// SendInfo는 일반 정보 알림을 전송합니다
func (c *Client) SendInfo(message string) error {
	embed := NewEmbed().
		SetDescription(message).
		SetColor(notification.ColorInfo).
		SetFooter("Assist by Mirror 🪞").
		SetTimestamp(time.Now())

	return c.sendToWebhook(c.infoWebhook, WebhookMessage{
		Embeds: []Embed{*embed},
	})
}
