// Package flow implements the conversation state machine: it interprets
// inbound commands and button presses, consults the session store and the
// balance oracle, and produces abstract replies for the transport to render.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"solbot/internal/domain"
	"solbot/internal/metrics"
	"solbot/internal/payment"
	"solbot/internal/wallet"
)

// Callback payloads wired to the inline keyboards.
const (
	cbConnect      = "connect"
	cbMagic        = "magic"
	cbPay          = "pay"
	cbCheckBalance = "check_balance"
)

const connectUsage = "Usage:\n" +
	"`/connectwallet YOUR_SOLANA_ADDRESS`\n\n" +
	"Example:\n" +
	"`/connectwallet 9xYourSolanaAddressHere...`"

// Controller drives the per-user conversation flow. It holds no state of
// its own: the user's position in the flow is derived each turn from the
// event kind and whether the session store has a wallet for them.
type Controller struct {
	sessions  domain.SessionStore
	oracle    domain.BalanceOracle
	intents   *payment.Builder
	validator wallet.Validator
	history   domain.HistoryStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Config holds the controller's collaborators.
type Config struct {
	Sessions  domain.SessionStore
	Oracle    domain.BalanceOracle
	Intents   *payment.Builder
	Validator wallet.Validator
	History   domain.HistoryStore
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func NewController(cfg Config) *Controller {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		sessions:  cfg.Sessions,
		oracle:    cfg.Oracle,
		intents:   cfg.Intents,
		validator: cfg.Validator,
		history:   cfg.History,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Handle processes one inbound event and returns the reply to render.
// Command replies append a new message; callback replies edit the message
// that carried the keyboard.
func (c *Controller) Handle(ctx context.Context, ev domain.Event) domain.Reply {
	switch ev.Kind {
	case domain.KindCommand:
		return c.handleCommand(ctx, ev)
	case domain.KindCallback:
		return c.handleCallback(ctx, ev)
	default:
		c.logger.Warn("event with unknown kind", "kind", ev.Kind, "user", ev.UserID)
		return c.reply(ev, "Sorry, I didn't understand that.")
	}
}

func (c *Controller) handleCommand(ctx context.Context, ev domain.Event) domain.Reply {
	switch ev.Name {
	case "start":
		return c.startReply(ev)
	case "connectwallet":
		return c.connectWallet(ctx, ev)
	default:
		return c.reply(ev, "Unknown command. Send /start to begin.")
	}
}

func (c *Controller) startReply(ev domain.Event) domain.Reply {
	r := c.reply(ev,
		"✨ *Welcome to the Solana Magic Bot!* ✨\n\n"+
			"Please follow these steps to get started:\n\n"+
			"🔹 *Step 1:* Connect your wallet\n"+
			"🔹 *Step 2:* Click *Start the Magic*\n\n"+
			"Choose an option below to continue:")
	r.Keyboard = [][]domain.Button{
		{{Label: "Connect Your Wallet", Data: cbConnect}},
		{{Label: "Start the Magic", Data: cbMagic}},
	}
	return r
}

// connectWallet validates and stores the wallet binding, then reads the
// balance best-effort. A failed balance read never rolls the binding back;
// binding and balance reporting are independent.
func (c *Controller) connectWallet(ctx context.Context, ev domain.Event) domain.Reply {
	if len(ev.Args) != 1 {
		return c.reply(ev, connectUsage)
	}

	address := wallet.Normalize(ev.Args[0])
	if !c.validator.Valid(address) {
		c.logger.Info("rejected wallet address", "user", ev.UserID, "len", len(address))
		return c.reply(ev,
			"This doesn't look like a valid Solana address. "+
				"Please double-check and try again.")
	}

	c.sessions.SetWallet(ev.UserID, address)
	if err := c.history.RecordBinding(ctx, ev.UserID, address); err != nil {
		c.logger.Warn("failed to record binding", "user", ev.UserID, "err", err)
	}
	c.logger.Info("wallet bound", "user", ev.UserID)

	sol, err := c.queryBalance(ctx, ev.UserID, address)
	if err != nil {
		return c.reply(ev, fmt.Sprintf(
			"Your wallet has been saved:\n`%s`\n\n"+
				"However, I couldn't read the balance right now. Please try again later.",
			address))
	}
	return c.reply(ev, fmt.Sprintf(
		"Your wallet has been saved:\n`%s`\n\n"+
			"Estimated balance: *%.6f SOL*",
		address, sol))
}

func (c *Controller) handleCallback(ctx context.Context, ev domain.Event) domain.Reply {
	switch ev.Name {
	case cbConnect:
		return c.edit(ev,
			"To connect your wallet, please send the following command:\n\n"+
				connectUsage+"\n\n"+
				"_Never share your seed phrase or private key. "+
				"I only need your public address._")

	case cbMagic:
		sess, ok := c.sessions.Get(ev.UserID)
		if !ok {
			return c.edit(ev,
				"✨ The magic is almost ready, but I don't see your wallet yet.\n\n"+
					"Please connect your wallet first:\n"+
					"`/connectwallet YOUR_SOLANA_ADDRESS`")
		}
		r := c.edit(ev, fmt.Sprintf(
			"✨ Magic mode activated!\n\n"+
				"Your connected wallet:\n`%s`\n\n"+
				"What would you like to do next?",
			sess.WalletAddress))
		r.Keyboard = [][]domain.Button{
			{{Label: "Pay with Phantom", Data: cbPay}},
			{{Label: "Check Wallet Balance", Data: cbCheckBalance}},
		}
		return r

	case cbPay:
		intent := c.intents.Build()
		c.logger.Info("payment intent issued",
			"ref", intent.Reference,
			"amount", intent.Amount,
			"asset", intent.Asset,
		)
		r := c.edit(ev, fmt.Sprintf(
			"Please click the button below to open Phantom and complete the payment.\n\n"+
				"Receiver wallet:\n`%s`\n\n"+
				"_Always verify the address inside Phantom before approving the transaction._",
			intent.Receiver))
		r.Keyboard = [][]domain.Button{
			{{Label: "Open Phantom", URL: intent.DeepLink()}},
		}
		return r

	case cbCheckBalance:
		sess, ok := c.sessions.Get(ev.UserID)
		if !ok {
			return c.edit(ev,
				"You don't have a connected wallet yet.\n\n"+
					"Please connect your wallet with:\n"+
					"`/connectwallet YOUR_SOLANA_ADDRESS`")
		}
		sol, err := c.queryBalance(ctx, ev.UserID, sess.WalletAddress)
		if err != nil {
			return c.edit(ev, fmt.Sprintf(
				"I couldn't read the balance for:\n`%s`\n\n"+
					"Please try again later.",
				sess.WalletAddress))
		}
		return c.edit(ev, fmt.Sprintf(
			"Your connected wallet:\n`%s`\n\n"+
				"Current SOL balance: *%.6f SOL*",
			sess.WalletAddress, sol))

	default:
		c.logger.Warn("unrecognized callback payload", "payload", ev.Name, "user", ev.UserID)
		return c.edit(ev, "Sorry, I don't recognize that action. Send /start to begin again.")
	}
}

// queryBalance runs one oracle call, updates metrics, the session's cached
// balance, and the audit history. The returned error is already normalized
// by the oracle; only the outcome matters to callers.
func (c *Controller) queryBalance(ctx context.Context, userID int64, address string) (float64, error) {
	start := time.Now()
	sol, err := c.oracle.GetBalance(ctx, address)
	c.metrics.QueryDuration.Observe(time.Since(start).Seconds())

	rec := domain.QueryRecord{Address: address, Sol: sol, OK: err == nil}
	if err != nil {
		c.metrics.BalanceQueries.WithLabelValues("unreachable").Inc()
		rec.Detail = err.Error()
		c.logger.Warn("balance query failed", "user", userID, "err", err)
	} else {
		c.metrics.BalanceQueries.WithLabelValues("ok").Inc()
		c.sessions.SetBalance(userID, sol)
	}
	if herr := c.history.RecordQuery(ctx, rec); herr != nil {
		c.logger.Warn("failed to record balance query", "err", herr)
	}
	return sol, err
}

// reply builds an appending reply for command events.
func (c *Controller) reply(ev domain.Event, text string) domain.Reply {
	return domain.Reply{ChatID: ev.ChatID, MessageID: ev.MessageID, Text: text}
}

// edit builds an in-place reply for callback events.
func (c *Controller) edit(ev domain.Event, text string) domain.Reply {
	return domain.Reply{ChatID: ev.ChatID, MessageID: ev.MessageID, Text: text, Edit: true}
}
