package admin

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/supportiq/internal/cli"
	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/cloo-solutions/supportiq/internal/service"
)

func TicketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Operate on tickets",
		Long:  "Create tickets and drive them through their lifecycle as a requester or an agent",
	}

	cmd.PersistentFlags().String("actor", "", "ID of the acting user (required)")
	cmd.PersistentFlags().String("role", string(domain.RoleRequester), "Role of the acting user (REQUESTER or AGENT)")
	_ = cmd.MarkPersistentFlagRequired("actor")
	cli.AddOutputFlag(cmd, true)

	cmd.AddCommand(ticketCreateCmd())
	cmd.AddCommand(ticketActionCmd("message <ticket-id> <body>", "Post a message", cobra.ExactArgs(2), lifecycleOnly, runTicketMessage))
	cmd.AddCommand(ticketActionCmd("assign <ticket-id>", "Claim a ticket as an agent", cobra.ExactArgs(1), lifecycleOnly, runTicketAssign))
	cmd.AddCommand(ticketActionCmd("close <ticket-id>", "Close a ticket", cobra.ExactArgs(1), lifecycleOnly, runTicketClose))
	cmd.AddCommand(ticketActionCmd("draft <ticket-id>", "Draft an agent reply without sending it", cobra.ExactArgs(1), withAssistant, runTicketDraft))
	cmd.AddCommand(ticketActionCmd("show <ticket-id>", "Show a ticket and its conversation", cobra.ExactArgs(1), lifecycleOnly, runTicketShow))

	return cmd
}

// Only create and draft need the knowledge index and the LLM. The other
// subcommands run against the ticket store alone.
const (
	lifecycleOnly = false
	withAssistant = true

	assistantAnnotation = "supportiq/assistant"
)

type ticketAction func(ctx context.Context, svc *service.TicketService, actor domain.Actor, args []string, format cli.Format) error

func ticketCreateCmd() *cobra.Command {
	var title string

	cmd := ticketActionCmd("create <description>", "Create a ticket", cobra.ExactArgs(1), withAssistant,
		func(ctx context.Context, svc *service.TicketService, actor domain.Actor, args []string, format cli.Format) error {
			return runTicketCreate(ctx, svc, actor, title, args[0], format)
		})
	cmd.Flags().StringVar(&title, "title", "", "Ticket title")

	return cmd
}

func ticketActionCmd(use, short string, args cobra.PositionalArgs, assistant bool, action ticketAction) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			actor, err := actorFromFlags(cmd)
			if err != nil {
				return err
			}
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.ticketService(ctx, needsAssistant(cmd))
			if err != nil {
				return err
			}
			return action(ctx, svc, actor, args, format)
		},
	}
	if assistant {
		cmd.Annotations = map[string]string{assistantAnnotation: "true"}
	}
	return cmd
}

func needsAssistant(cmd *cobra.Command) bool {
	return cmd.Annotations[assistantAnnotation] == "true"
}

func actorFromFlags(cmd *cobra.Command) (domain.Actor, error) {
	id, _ := cmd.Flags().GetString("actor")
	role, _ := cmd.Flags().GetString("role")
	if id == "" {
		return domain.Actor{}, fmt.Errorf("--actor is required")
	}

	r := domain.Role(strings.ToUpper(role))
	if r != domain.RoleRequester && r != domain.RoleAgent {
		return domain.Actor{}, fmt.Errorf("--role must be REQUESTER or AGENT, got %q", role)
	}
	return domain.Actor{ID: id, Role: r}, nil
}

func runTicketCreate(ctx context.Context, svc *service.TicketService, actor domain.Actor, title, description string, format cli.Format) error {
	result, err := svc.Create(ctx, actor, service.CreateTicketInput{Title: title, Description: description})
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return printTicket(result.Ticket, messagesOf(result.Message), format)
}

func runTicketMessage(ctx context.Context, svc *service.TicketService, actor domain.Actor, args []string, format cli.Format) error {
	result, err := svc.PostMessage(ctx, actor, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return printTicket(result.Ticket, messagesOf(result.Message), format)
}

func runTicketAssign(ctx context.Context, svc *service.TicketService, actor domain.Actor, args []string, format cli.Format) error {
	ticket, err := svc.Assign(ctx, actor, args[0])
	if err != nil {
		return fmt.Errorf("failed to assign ticket: %w", err)
	}
	return printTicket(ticket, nil, format)
}

func runTicketClose(ctx context.Context, svc *service.TicketService, actor domain.Actor, args []string, format cli.Format) error {
	ticket, err := svc.Close(ctx, actor, args[0])
	if err != nil {
		return fmt.Errorf("failed to close ticket: %w", err)
	}
	return printTicket(ticket, nil, format)
}

func runTicketDraft(ctx context.Context, svc *service.TicketService, actor domain.Actor, args []string, format cli.Format) error {
	draft, err := svc.DraftReply(ctx, actor, args[0])
	if err != nil {
		return fmt.Errorf("failed to draft reply: %w", err)
	}

	if format == cli.FormatJSON {
		return cli.PrintJSON(os.Stdout, map[string]interface{}{"ticket_id": args[0], "draft": draft})
	}
	fmt.Println(draft)
	return nil
}

func runTicketShow(ctx context.Context, svc *service.TicketService, actor domain.Actor, args []string, format cli.Format) error {
	ticket, err := svc.Get(ctx, actor, args[0])
	if err != nil {
		return fmt.Errorf("failed to get ticket: %w", err)
	}
	msgs, err := svc.ListMessages(ctx, actor, args[0])
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}
	return printTicket(ticket, msgs, format)
}

func messagesOf(m *domain.Message) []*domain.Message {
	if m == nil {
		return nil
	}
	return []*domain.Message{m}
}

func printTicket(t *domain.Ticket, msgs []*domain.Message, format cli.Format) error {
	if format == cli.FormatJSON {
		messages := make([]map[string]interface{}, len(msgs))
		for i, m := range msgs {
			messages[i] = map[string]interface{}{
				"id":          m.ID,
				"sender_id":   m.SenderID,
				"sender_role": m.SenderRole,
				"body":        m.Body,
				"created_at":  m.CreatedAt,
			}
		}
		data := map[string]interface{}{
			"id":           t.ID,
			"requester_id": t.RequesterID,
			"assignee_id":  t.AssigneeID,
			"title":        t.Title,
			"description":  t.Description,
			"status":       t.Status,
			"signals": map[string]interface{}{
				"category":   t.Signals.Category,
				"priority":   t.Signals.Priority,
				"sentiment":  t.Signals.Sentiment,
				"risk":       t.Signals.Risk,
				"confidence": t.Signals.Confidence,
				"summary":    t.Signals.Summary,
				"fallback":   t.Signals.Fallback,
			},
			"messages":   messages,
			"created_at": t.CreatedAt,
			"updated_at": t.UpdatedAt,
		}
		return cli.PrintJSON(os.Stdout, data)
	}

	fmt.Printf("Ticket %s [%s]\n", t.ID, t.Status)
	fmt.Printf("  %s / %s / %s / risk %s (confidence %.2f)\n", t.Signals.Category, t.Signals.Priority, t.Signals.Sentiment, t.Signals.Risk, t.Signals.Confidence)
	fmt.Printf("  %s\n", t.Signals.Summary)
	if t.AssigneeID != "" {
		fmt.Printf("  assigned to %s\n", t.AssigneeID)
	}
	for _, m := range msgs {
		fmt.Printf("\n%s (%s):\n%s\n", m.SenderRole, m.CreatedAt.Format("2006-01-02 15:04:05"), m.Body)
	}
	return nil
}
