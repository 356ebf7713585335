// Package notifier delivers new-arrival announcements to the messaging channel.
package notifier

import (
	"context"
	"fmt"
	"strings"
)

// Notification is a single new-arrival announcement
type Notification struct {
	ItemURL  string
	Title    string
	Price    string
	ImageURL string
}

// Notifier sends notifications. Implementations return an error on transport
// or platform failure; callers treat it as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

const (
	messageHeader = "🆕 *Новинка від видавництва Підручники і посібники*"
	buttonLabel   = "Детальніше"
)

var markdownEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// FormatMessage renders the message body for a notification
func FormatMessage(title, price string) string {
	return fmt.Sprintf("%s\n\n*Назва:* %s\n*Ціна:* %s",
		messageHeader,
		markdownEscaper.Replace(title),
		markdownEscaper.Replace(price),
	)
}
