package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

// alertTitle renders the headline shared by the chat-style senders.
func alertTitle(record domain.AlertRecord) string {
	return fmt.Sprintf("[%s] %s", record.Severity, strings.ReplaceAll(string(record.Type), "_", " "))
}

// alertBody renders the message body shared by the chat-style senders.
func alertBody(pos domain.Position, record domain.AlertRecord) string {
	var b strings.Builder
	b.WriteString(record.Message)

	if pos.MarketQuestion != "" {
		fmt.Fprintf(&b, "\nMarket: %s", pos.MarketQuestion)
	} else {
		fmt.Fprintf(&b, "\nMarket: %s", record.MarketKey)
	}
	fmt.Fprintf(&b, "\nSide: %s | Invested: $%.2f | PnL: %+.2f (%+.1f%%)",
		pos.Side, pos.Invested, pos.PnL, pos.PnLPercent)

	return b.String()
}
