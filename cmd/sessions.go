package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
	"github.com/Enigma-Deez/Roll-Call/internal/config"
	"github.com/Enigma-Deez/Roll-Call/internal/constants"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded attendance sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session with its attendance",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)

	sessionsListCmd.Flags().Int("limit", constants.DefaultSessionListLimit, "Maximum number of sessions to show (0 for all)")
	sessionsListCmd.Flags().Bool("active", false, "Only show sessions still marked active")
}

func loadStoreFromEnv(ctx context.Context) (database.Store, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	return openStore(ctx, cfg)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	activeOnly := mustGetBool(cmd, "active")

	ctx := context.Background()
	store, err := loadStoreFromEnv(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tENDED\tLECTURER\tREASON")
	shown := 0
	for _, s := range sessions {
		if activeOnly && !s.Active {
			continue
		}
		lecturer := s.LecturerID
		if lecturer == "" {
			lecturer = "-"
		}
		reason := s.EndReason
		if s.Active {
			reason = "active"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, formatTime(&s.StartTime), formatTime(s.EndTime), lecturer, reason)
		shown++
	}
	w.Flush()
	fmt.Printf("\n%d session(s)\n", shown)
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := loadStoreFromEnv(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	detail, err := attendance.LoadSessionDetail(ctx, store, args[0])
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	fmt.Printf("Session:  %s\n", detail.ID)
	fmt.Printf("Started:  %s\n", formatTime(&detail.StartTime))
	fmt.Printf("Ended:    %s\n", formatTime(detail.EndTime))
	if detail.EndReason != "" {
		fmt.Printf("Reason:   %s\n", detail.EndReason)
	}
	if detail.LecturerID != "" {
		fmt.Printf("Lecturer: %s (%s)\n", detail.LecturerName, detail.LecturerID)
	} else {
		fmt.Println("Lecturer: -")
	}

	fmt.Printf("\nAttendance (%d):\n", len(detail.Attendance))
	if len(detail.Attendance) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tREF\tFIRST SEEN\tLAST SEEN\tSTATUS")
	for _, a := range detail.Attendance {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.Name, a.ExternalRef, formatTime(&a.FirstSeen), formatTime(&a.LastSeen), a.Status)
	}
	return w.Flush()
}
