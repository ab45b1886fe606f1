package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"meetslot/internal/config"
	"meetslot/internal/google"
	"meetslot/internal/icloud"
	"meetslot/internal/planner"
	"meetslot/internal/scheduler"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "meetslot",
		Usage: "Find a meeting slot that works for everyone across time zones.",
		Commands: []*cli.Command{
			authCommand(),
			calendarsCommand(),
			findCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := "token-" + accountName + ".json"

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the calendars of every authenticated Google account.",
		Action: func(c *cli.Context) error {
			logger := setupLogger(envLogLevel())

			accounts, err := google.GetTokenAccounts(".")
			if err != nil {
				return fmt.Errorf("could not list google accounts: %w", err)
			}
			if len(accounts) == 0 {
				return fmt.Errorf("no google accounts found. Run the 'auth' command first")
			}

			for _, acc := range accounts {
				client, err := google.NewClient(c.Context, logger, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), acc)
				if err != nil {
					return fmt.Errorf("failed to create google client for account %s: %w", acc, err)
				}
				ids, err := client.DiscoverGoogleCalendars(c.Context)
				if err != nil {
					return err
				}
				fmt.Printf("%s:\n", acc)
				for _, id := range ids {
					fmt.Printf("  %s\n", id)
				}
			}
			return nil
		},
	}
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:  "find",
		Usage: "Search for a meeting slot and optionally book it.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "roster", Aliases: []string{"r"}, Value: "roster.yaml", Usage: "Roster file listing the attendees."},
			&cli.StringFlag{Name: "from", Required: true, Usage: "Start of the timeframe (RFC 3339 or 'YYYY-MM-DD HH:MM' in the roster timezone)."},
			&cli.StringFlag{Name: "to", Required: true, Usage: "End of the timeframe."},
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Value: time.Hour, Usage: "Meeting length."},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 5, Usage: "Maximum number of proposals."},
			&cli.DurationFlag{Name: "granularity", Usage: "Step between proposal starts. Overrides the roster."},
			&cli.StringFlag{Name: "book", Usage: "Book the best slot into this CalDAV calendar."},
			&cli.StringFlag{Name: "ics-out", Usage: "Write the best slot as a meeting to this .ics file."},
			&cli.StringFlag{Name: "title", Value: "Meeting", Usage: "Title of the booked meeting."},
			&cli.StringFlag{Name: "state", Usage: "Booking ledger file (default booking-state.json)."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be booked without making changes."},
			&cli.BoolFlag{Name: "strict", Usage: "Fail when any calendar cannot be read."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(envLogLevel())

			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. No changes will be made.")
			}

			roster, err := config.Load(c.String("roster"))
			if err != nil {
				return err
			}
			tzStr := os.Getenv("PRIMARY_TIMEZONE")
			if tzStr == "" {
				tzStr = roster.Timezone
			}
			loc, err := config.LoadLocation(tzStr)
			if err != nil {
				return err
			}
			from, err := config.ParseTime(c.String("from"), loc)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := config.ParseTime(c.String("to"), loc)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			granularity := roster.Granularity
			if c.IsSet("granularity") {
				granularity = c.Duration("granularity")
			}
			sched, err := scheduler.New(scheduler.WithGranularity(granularity), scheduler.WithLogger(logger))
			if err != nil {
				return err
			}
			logger.Debug("Scheduler ready.", "granularity", sched.Granularity(), "timezone", loc)

			sources := []planner.Source{planner.FileSource{}}
			var publisher planner.Publisher

			if usesGoogle(roster) {
				gSource, err := googleSource(c, logger)
				if err != nil {
					return err
				}
				sources = append(sources, gSource)
			}

			if usesCalDAV(roster) || c.String("book") != "" {
				username := os.Getenv("ICLOUD_USERNAME")
				if username == "" {
					return fmt.Errorf("ICLOUD_USERNAME environment variable not set")
				}
				iClient, err := icloud.NewClient(logger, os.Getenv("CALDAV_ENDPOINT"), username, os.Getenv("ICLOUD_APP_SPECIFIC_PASSWORD"))
				if err != nil {
					return fmt.Errorf("failed to create caldav client: %w", err)
				}
				sources = append(sources, planner.NewCalDAVSource(iClient))
				publisher = iClient
			}

			p, err := planner.New(logger, sched, sources, planner.Options{
				Strict:    c.Bool("strict"),
				DryRun:    c.Bool("dry-run"),
				Publisher: publisher,
				StatePath: c.String("state"),
			})
			if err != nil {
				return fmt.Errorf("failed to create planner: %w", err)
			}

			plan, err := p.Plan(c.Context, planner.Request{
				Roster:   roster,
				From:     from,
				To:       to,
				Duration: c.Duration("duration"),
				Count:    c.Int("count"),
			})
			if err != nil {
				return err
			}
			printPlan(plan, loc)

			if plan.Unschedulable() || (c.String("book") == "" && c.String("ics-out") == "") {
				return nil
			}
			event, created, err := p.Book(c.Context, plan, planner.BookingRequest{
				Title:    c.String("title"),
				Calendar: c.String("book"),
				ICSPath:  c.String("ics-out"),
			})
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Booked %s (%s)\n", event.StartTime.In(loc).Format("Mon 2006-01-02 15:04 MST"), event.UID)
			}
			return nil
		},
	}
}

// googleSource creates one client per authenticated account.
func googleSource(c *cli.Context, logger *slog.Logger) (*planner.GoogleSource, error) {
	accounts, err := google.GetTokenAccounts(".")
	if err != nil {
		return nil, fmt.Errorf("could not find any google accounts, did you run auth command? %w", err)
	}
	readers := make(map[string]planner.CalendarReader, len(accounts))
	for _, acc := range accounts {
		gClient, err := google.NewClient(c.Context, logger, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), acc)
		if err != nil {
			return nil, fmt.Errorf("failed to create google client for account %s: %w", acc, err)
		}
		readers[gClient.Account()] = gClient
	}
	logger.Info("Initialized Google clients for all accounts.", "count", len(readers))
	return planner.NewGoogleSource(readers), nil
}

func usesGoogle(r *config.Roster) bool {
	for _, a := range r.Attendees {
		if a.Google != nil {
			return true
		}
	}
	return false
}

func usesCalDAV(r *config.Roster) bool {
	for _, a := range r.Attendees {
		if a.CalDAVCalendar != "" {
			return true
		}
	}
	return false
}

func printPlan(plan *planner.Plan, loc *time.Location) {
	const layout = "Mon 2006-01-02 15:04"
	switch {
	case len(plan.Proposals) > 0:
		fmt.Printf("Slots where all %d attendees are free:\n", len(plan.Attendees))
		for i, slot := range plan.Proposals {
			fmt.Printf("%2d. %s - %s %s\n", i+1, slot.Start.In(loc).Format(layout), slot.End.In(loc).Format("15:04"), loc)
		}
	case plan.Fallback != nil:
		var names []string
		for _, a := range plan.Fallback.Attendees {
			names = append(names, a.Name)
		}
		slot := plan.Fallback.Slot
		fmt.Printf("No slot works for everyone. Best option, %d of %d attendees:\n", len(plan.Fallback.Attendees), len(plan.Attendees))
		fmt.Printf("    %s - %s %s\n", slot.Start.In(loc).Format(layout), slot.End.In(loc).Format("15:04"), loc)
		fmt.Printf("    %s\n", strings.Join(names, ", "))
	default:
		fmt.Println("No suitable slot found.")
	}
}

func envLogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return level
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
