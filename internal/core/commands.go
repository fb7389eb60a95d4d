package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	kit "publibot/internal/transport"
	logx "publibot/pkg/logx"
)

// commandLoop consumes Telegram updates and dispatches admin commands.
// Jobs triggered from chat run inline here; they are rare and operator-paced,
// so blocking the command loop for one publication is acceptable.
func (a *App) commandLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-a.updates:
			if !ok {
				return
			}
			if up.Message == nil || up.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, up.Message)
		}
	}
}

func (a *App) isAdmin(fromID int64) bool {
	for _, id := range a.sched.AdminIDs() {
		if id == fromID {
			return true
		}
	}
	return false
}

func (a *App) reply(ctx context.Context, chatID int64, text string) {
	if _, err := a.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, nil); err != nil {
		a.log.Warn("command reply failed", logx.Err(err))
	}
}

func (a *App) handleMessage(ctx context.Context, msg *kit.Message) {
	if !strings.HasPrefix(msg.Text, "/") {
		return
	}
	cmd, args, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")
	cmd, _, _ = strings.Cut(cmd, "@") // strip /cmd@botname addressing
	args = strings.TrimSpace(args)

	if !a.isAdmin(msg.FromID) {
		a.log.Warn("command from non-admin ignored",
			logx.Int64("from", msg.FromID),
			logx.String("cmd", cmd))
		return
	}

	log := a.log.With(logx.String("cmd", cmd), logx.Int64("from", msg.FromID))
	log.Info("command received")

	switch cmd {
	case "/reload":
		a.cmdReload(ctx, msg.ChatID)
	case "/publish":
		a.cmdPublish(ctx, msg.ChatID, args)
	case "/schedule":
		a.cmdSchedule(ctx, msg.ChatID)
	case "/status":
		a.cmdStatus(ctx, msg.ChatID)
	case "/audit":
		a.cmdAudit(ctx, msg.ChatID)
	case "/caption":
		a.cmdCaption(ctx, msg.ChatID, args)
	case "/help", "/start":
		a.reply(ctx, msg.ChatID, helpText)
	default:
		a.reply(ctx, msg.ChatID, "unknown command; try /help")
	}
}

const helpText = `/reload - refetch schedule and directives from Drive
/publish <agency> - publish an agency now
/schedule - show today's schedule and what already went out
/status - recent runs and uptime
/audit - run the folder color audit now
/caption <agency> <text> - set the agency caption document`

func (a *App) cmdReload(ctx context.Context, chatID int64) {
	snap, err := a.sched.ForceReload(ctx)
	if err != nil {
		a.reply(ctx, chatID, fmt.Sprintf("reload failed: %v", err))
		return
	}
	a.reply(ctx, chatID, fmt.Sprintf("reloaded: %d schedule entries, %d admins",
		len(snap.Schedule), len(snap.Directives.Admins)))
}

func (a *App) cmdPublish(ctx context.Context, chatID int64, agency string) {
	if agency == "" {
		a.reply(ctx, chatID, "usage: /publish <agency>")
		return
	}
	if err := a.sched.ForcePublish(ctx, agency); err != nil {
		a.reply(ctx, chatID, fmt.Sprintf("publish %s failed: %v", agency, err))
		return
	}
	a.reply(ctx, chatID, fmt.Sprintf("%s published", agency))
}

func (a *App) cmdSchedule(ctx context.Context, chatID int64) {
	entries := a.sched.Schedule()
	if len(entries) == 0 {
		a.reply(ctx, chatID, "no schedule loaded")
		return
	}
	done := map[string]bool{}
	for _, name := range a.sched.Published() {
		done[name] = true
	}
	var b strings.Builder
	b.WriteString("schedule:\n")
	for _, e := range entries {
		mark := " "
		if done[e.Agency] {
			mark = "✓"
		}
		fmt.Fprintf(&b, "%s %s  %s\n", mark, e.At, e.Agency)
	}
	a.reply(ctx, chatID, strings.TrimRight(b.String(), "\n"))
}

func (a *App) cmdStatus(ctx context.Context, chatID int64) {
	var b strings.Builder
	fmt.Fprintf(&b, "up %s, %d published today",
		time.Since(a.started).Round(time.Second), len(a.sched.Published()))

	runs, err := a.sched.RecentRuns(ctx, 5)
	if err != nil {
		fmt.Fprintf(&b, "\nrun history unavailable: %v", err)
	}
	for _, r := range runs {
		state := "ok"
		if !r.OK {
			state = "FAIL " + r.Error
		}
		kind := ""
		if r.Test {
			kind = " (test)"
		} else if r.Forced {
			kind = " (forced)"
		}
		fmt.Fprintf(&b, "\n%s %s%s %s", r.At.Format("15:04"), r.Agency, kind, state)
	}
	a.reply(ctx, chatID, b.String())
}

func (a *App) cmdAudit(ctx context.Context, chatID int64) {
	report, err := a.sched.RunAudit(ctx)
	if err != nil {
		a.reply(ctx, chatID, fmt.Sprintf("audit failed: %v", err))
		return
	}
	a.reply(ctx, chatID, report)
}

func (a *App) cmdCaption(ctx context.Context, chatID int64, args string) {
	agency, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	if agency == "" || text == "" {
		a.reply(ctx, chatID, "usage: /caption <agency> <text>")
		return
	}
	if err := a.SaveCaption(ctx, agency, text); err != nil {
		a.reply(ctx, chatID, fmt.Sprintf("caption: %v", err))
		return
	}
	a.reply(ctx, chatID, fmt.Sprintf("caption for %s updated", agency))
}

// SaveCaption upserts the caption document in the agency folder so the
// operator can fix a typo from chat without opening Drive.
func (a *App) SaveCaption(ctx context.Context, agency, text string) error {
	folderID, err := a.store.FindByName(ctx, a.rootID, agency, true)
	if err != nil {
		return err
	}
	if folderID == "" {
		return fmt.Errorf("agency %q not found", agency)
	}
	return a.store.WriteText(ctx, folderID, "caption.txt", text)
}
