// ABOUTME: Slash-command shell driving the notification coordinator
// ABOUTME: Parses input lines and renders conversations, toasts and thread messages

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/2389/house-notify/internal/conversation"
	"github.com/2389/house-notify/internal/event"
	"github.com/2389/house-notify/internal/notify"
	"github.com/2389/house-notify/internal/toast"
	"github.com/2389/house-notify/internal/transport"
)

var errQuit = errors.New("quit")

// command is one parsed input line.
type command struct {
	name string
	arg  string
}

func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{}, fmt.Errorf("commands start with /, try /help")
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	switch name {
	case "list", "close", "toasts", "refresh", "status", "quit", "help":
		return command{name: name}, nil
	case "open", "ticket", "dismiss":
		if arg == "" || strings.ContainsAny(arg, " \t") {
			return command{}, fmt.Errorf("/%s takes exactly one id", name)
		}
		return command{name: name, arg: arg}, nil
	case "send", "support":
		if arg == "" {
			return command{}, fmt.Errorf("/%s needs message text", name)
		}
		return command{name: name, arg: arg}, nil
	}
	return command{}, fmt.Errorf("unknown command /%s", name)
}

const helpText = `Commands:
  /list             Conversations, most recent first
  /open <id>        Focus a conversation and follow its thread
  /close            Leave the focused conversation and ticket
  /ticket <id>      Focus a support ticket and follow its thread
  /send <text>      Send to the focused conversation
  /support <text>   Send to the focused ticket
  /toasts           Show live notifications
  /dismiss <id>     Dismiss a notification
  /refresh          Reload conversations from the server
  /status           Connection state and unread total
  /quit             Exit
`

// shell owns the terminal output and the focused thread ids.
type shell struct {
	coord *notify.Coordinator

	mu      sync.Mutex
	out     io.Writer
	contact string
	ticket  string
}

func newShell(coord *notify.Coordinator, out io.Writer) *shell {
	return &shell{coord: coord, out: out}
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// run reads commands from in until EOF, /quit or ctx is cancelled.
func (s *shell) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := parseCommand(line)
			if err != nil {
				s.printf("%s %v\n", color.RedString("!"), err)
				continue
			}
			if err := s.execute(ctx, cmd); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				s.printf("%s %v\n", color.RedString("!"), err)
			}
		}
	}
}

func (s *shell) execute(ctx context.Context, cmd command) error {
	switch cmd.name {
	case "":
		return nil
	case "help":
		s.printf("%s", helpText)
	case "quit":
		return errQuit
	case "list":
		s.printConversations()
	case "open":
		return s.open(cmd.arg)
	case "close":
		s.closeFocus()
	case "ticket":
		return s.openTicket(cmd.arg)
	case "send":
		s.mu.Lock()
		id := s.contact
		s.mu.Unlock()
		if id == "" {
			return errors.New("no conversation open, use /open <id>")
		}
		return s.coord.SendChat(id, cmd.arg, nil)
	case "support":
		s.mu.Lock()
		id := s.ticket
		s.mu.Unlock()
		if id == "" {
			return errors.New("no ticket open, use /ticket <id>")
		}
		return s.coord.SendSupport(id, cmd.arg, nil)
	case "toasts":
		toasts := s.coord.Toasts()
		if len(toasts) == 0 {
			s.printf("no notifications\n")
		}
		for _, t := range toasts {
			s.printf("%s\n", formatToast(t))
		}
	case "dismiss":
		id, err := strconv.ParseUint(cmd.arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid notification id %q", cmd.arg)
		}
		if !s.coord.DismissToast(id) {
			return fmt.Errorf("notification %d is gone", id)
		}
	case "refresh":
		if err := s.coord.RefreshConversations(ctx); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		s.printConversations()
	case "status":
		s.printf("status: %s  unread: %d  tickets to refresh: %s\n",
			s.coord.Status(), s.coord.UnreadTotal(), strings.Join(s.coord.TicketsNeedingRefresh(), ","))
	}
	return nil
}

func (s *shell) open(id string) error {
	if err := s.coord.OpenConversation(id); err != nil {
		return err
	}
	s.mu.Lock()
	prev := s.contact
	s.contact = id
	s.mu.Unlock()
	if prev != "" && prev != id {
		s.coord.UnsubscribeConversation(prev)
	}

	if err := s.coord.SubscribeConversation(id, func(m event.ChatMessage) {
		s.printf("%s %s\n", color.CyanString("[%s] %s:", id, firstNonEmpty(m.SenderName, m.SenderID.String())), m.Content)
	}); err != nil {
		return fmt.Errorf("follow conversation %s: %w", id, err)
	}
	conv, _ := s.coord.Conversation(id)
	s.printf("opened %s (%s with %s)\n", id, conv.HouseTitle, conv.PartnerName)
	return nil
}

// closeFocus leaves both the conversation and the ticket, so neither keeps
// suppressing its toasts.
func (s *shell) closeFocus() {
	s.mu.Lock()
	contact, ticket := s.contact, s.ticket
	s.contact, s.ticket = "", ""
	s.mu.Unlock()

	s.coord.CloseConversation()
	s.coord.CloseTicket()
	if contact != "" {
		s.coord.UnsubscribeConversation(contact)
	}
	if ticket != "" {
		s.coord.UnsubscribeTicket(ticket)
	}
}

func (s *shell) openTicket(id string) error {
	s.mu.Lock()
	prev := s.ticket
	s.ticket = id
	s.mu.Unlock()
	if prev != "" && prev != id {
		s.coord.UnsubscribeTicket(prev)
	}

	s.coord.OpenTicket(id)
	if err := s.coord.SubscribeTicket(id, func(m event.SupportMessage) {
		s.printf("%s %s\n", color.MagentaString("[ticket %s] %s:", id, firstNonEmpty(m.SenderName, m.SenderID.String())), m.Content)
	}); err != nil {
		return fmt.Errorf("follow ticket %s: %w", id, err)
	}
	s.printf("opened ticket %s\n", id)
	return nil
}

func (s *shell) printConversations() {
	convs := s.coord.Conversations()
	if len(convs) == 0 {
		s.printf("no conversations\n")
		return
	}
	for _, c := range convs {
		s.printf("%s\n", formatConversation(c))
	}
}

// watch renders coordinator events until ctx is cancelled.
func (s *shell) watch(ctx context.Context) {
	for ev := range s.coord.Events(ctx) {
		switch ev.Type {
		case conversation.EventToastAdded:
			for _, t := range s.coord.Toasts() {
				if t.ID == ev.ToastID {
					s.printf("%s\n", formatToast(t))
				}
			}
		case conversation.EventStatusChanged:
			s.printf("%s\n", formatStatus(transport.Status(ev.Status)))
		case conversation.EventTicketRefresh:
			s.printf("%s\n", color.HiBlackString("ticket %s has new activity", ev.TicketID))
		}
	}
}

func formatConversation(c conversation.Conversation) string {
	unread := "  "
	if c.Unread > 0 {
		unread = color.New(color.FgYellow, color.Bold).Sprintf("%d ", c.Unread)
	}
	when := "-"
	if c.LastMessageAt != nil {
		when = c.LastMessageAt.Local().Format("Jan 2 15:04")
	}
	return fmt.Sprintf("%s%-6s %-24s %-16s %-12s %s", unread, c.ContactID, c.HouseTitle, c.PartnerName, when, c.LastMessage)
}

func formatToast(t toast.Toast) string {
	var tag string
	switch t.Category {
	case toast.CategorySupport:
		tag = color.MagentaString("support")
	case toast.CategoryCertification:
		tag = color.BlueString("certification")
	default:
		tag = color.GreenString("chat")
	}

	subject := t.Subject
	if t.Status != "" {
		subject = strings.TrimSpace(subject + " " + t.Status)
	}
	line := fmt.Sprintf("#%d %s %s: %s", t.ID, tag, color.New(color.Bold).Sprint(t.SenderName), t.Preview)
	if subject != "" {
		line += color.HiBlackString(" (%s)", subject)
	}
	if left := time.Until(t.ExpiresAt); left > 0 {
		line += color.HiBlackString(" %ds", int(left.Round(time.Second)/time.Second))
	}
	return line
}

func formatStatus(st transport.Status) string {
	switch st {
	case transport.StatusConnected:
		return color.GreenString("● connected")
	case transport.StatusConnecting:
		return color.YellowString("● connecting")
	case transport.StatusError:
		return color.RedString("● connection lost, retrying")
	}
	return color.HiBlackString("● %s", st)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
