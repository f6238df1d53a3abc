package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"denuncia/backend/internal/api/handler"
	"denuncia/backend/internal/app"
	"denuncia/backend/internal/complaint"
	"denuncia/backend/internal/config"
	"denuncia/backend/internal/models"
	"denuncia/backend/internal/storage"
)

const usage = `Usage: admin <command> [flags]

Commands:
  migrate                               create or update the schema
  seed-categories [name ...]            add categories (defaults when none given)
  add-staff -name N -email E -role R [-telegram CHAT_ID]
  issue-token <staff_id>                print a bearer token for the staff API
  set-status -id ID -status S [-actor ID] [-assignee ID] [-note TEXT]
  delete -protocol P [-actor ID] [-reason TEXT]
  stats                                 print dashboard statistics as JSON
`

var defaultCategories = []string{
	"Assédio moral",
	"Assédio sexual",
	"Discriminação",
	"Fraude",
	"Corrupção",
	"Conflito de interesses",
	"Segurança do trabalho",
	"Outros",
}

func main() {
	_ = godotenv.Load()
	cfg, cfgErr := config.FromEnv()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if cfgErr != nil {
		logger.Warn("invalid configuration values replaced by defaults", "error", cfgErr)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	core, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	if err := runCommand(ctx, core, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		core.Close()
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, core *app.Core, cmd string, args []string, out io.Writer) error {
	repo := core.Repository()

	switch cmd {
	case "migrate":
		if err := storage.Migrate(core.Storage.DB); err != nil {
			return err
		}
		fmt.Fprintln(out, "schema up to date")
		return nil

	case "seed-categories":
		names := args
		if len(names) == 0 {
			names = defaultCategories
		}
		for _, name := range names {
			c, err := repo.CreateCategory(ctx, name)
			if err != nil {
				fmt.Fprintf(out, "skip %q: %v\n", name, err)
				continue
			}
			fmt.Fprintf(out, "category %d: %s\n", c.ID, c.Name)
		}
		return nil

	case "add-staff":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "e-mail")
		role := fs.String("role", "viewer", "admin, manager, analyst or viewer")
		chat := fs.Int64("telegram", 0, "telegram chat id (see the bot's /id command)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		var chatID *int64
		if *chat != 0 {
			chatID = chat
		}
		s, err := core.Directory.CreateStaff(ctx, *name, *email, *role, chatID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "staff %d: %s <%s> (%s)\n", s.ID, s.Name, s.Email, s.Role)
		return nil

	case "issue-token":
		if len(args) != 1 {
			return errors.New("usage: admin issue-token <staff_id>")
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid staff id %q", args[0])
		}
		s, err := core.Directory.FindByID(ctx, uint(id))
		if err != nil {
			return err
		}
		if !s.Active {
			return fmt.Errorf("staff %d is inactive", s.ID)
		}
		token, err := handler.NewTokens(core.Config.JWTSecret, 0).Issue(s.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, token)
		return nil

	case "set-status":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		id := fs.Uint("id", 0, "complaint id")
		status := fs.String("status", "", "target status")
		actor := fs.Uint("actor", 0, "acting staff id")
		assignee := fs.Uint("assignee", 0, "assign to staff id")
		note := fs.String("note", "", "note (resolution when concluding)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		st, err := models.ParseStatus(*status)
		if err != nil {
			return err
		}
		v, err := repo.ApplyTransition(ctx, complaint.TransitionRequest{
			ComplaintID: *id,
			Status:      st,
			ActorID:     optionalID(*actor),
			AssigneeID:  optionalID(*assignee),
			Note:        *note,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s\n", v.Protocol, v.StatusLabel)
		return nil

	case "delete":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		code := fs.String("protocol", "", "complaint protocol")
		actor := fs.Uint("actor", 0, "acting staff id")
		reason := fs.String("reason", "", "reason recorded in the audit log")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := repo.Delete(ctx, *code, optionalID(*actor), *reason); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s deleted\n", *code)
		return nil

	case "stats":
		stats, err := repo.DashboardStats(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)

	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func optionalID(v uint) *uint {
	if v == 0 {
		return nil
	}
	return &v
}
