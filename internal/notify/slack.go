package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/sony/gobreaker"

	"hopwatch/internal/domain"
)

// transportEmoji picks the header emoji from the transaction description.
var transportEmoji = []struct {
	keyword string
	emoji   string
}{
	{"Bus", ":bus:"},
	{"Train", ":train:"},
	{"Ferry", ":ferry:"},
}

// SlackNotifier posts one Block Kit message per new transaction. A circuit
// breaker stops it hammering a dead Slack endpoint: after five consecutive
// delivery failures further attempts fail fast for a minute before one is
// let through again.
type SlackNotifier struct {
	client  *slack.Client
	channel string
	breaker *gobreaker.CircuitBreaker
}

// NewSlack builds a notifier for the given bot token and channel.
func NewSlack(token, channel string, log zerolog.Logger, opts ...slack.Option) *SlackNotifier {
	settings := gobreaker.Settings{
		Name:    "slack",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("notifier circuit breaker state changed")
		},
	}
	return &SlackNotifier{
		client:  slack.New(token, opts...),
		channel: channel,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (n *SlackNotifier) Notify(ctx context.Context, t *domain.Transaction) error {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.post(ctx, t)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

func (n *SlackNotifier) post(ctx context.Context, t *domain.Transaction) error {
	fallback := fmt.Sprintf("New HOP transaction: %s at %s", t.Description, t.Location)
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(buildBlocks(t)...),
		slack.MsgOptionIconEmoji(":robot_face:"),
	)
	return err
}

func buildBlocks(t *domain.Transaction) []slack.Block {
	emoji := ":credit_card:"
	for _, e := range transportEmoji {
		if strings.Contains(t.Description, e.keyword) {
			emoji = e.emoji
			break
		}
	}

	cardDisplay := "HOP Card"
	if t.CardName != "" {
		cardDisplay = fmt.Sprintf("%s's Card", t.CardName)
	}

	amount := t.ValueDisplay
	if amount == "" {
		if t.Value != nil {
			amount = fmt.Sprintf("$%.2f", *t.Value)
		} else {
			amount = "N/A"
		}
	}

	mrkdwn := func(label, value string) *slack.TextBlockObject {
		return slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*%s:*\n%s", label, value), false, false)
	}

	return []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType,
			fmt.Sprintf("%s New HOP Transaction", emoji), true, false)),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			mrkdwn("Card", cardDisplay),
			mrkdwn("Date/Time", t.TransactionDateTime),
		}, nil),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			mrkdwn("Description", t.Description),
			mrkdwn("Location", t.Location),
		}, nil),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			mrkdwn("Amount", amount),
			mrkdwn("Balance", t.BalanceDisplay),
		}, nil),
		slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("Transaction ID: %s | Type: %s", t.CardTransactionID, t.TypeDescription),
				false, false)),
		slack.NewDividerBlock(),
	}
}
