package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/fentz26/worklog/internal/models"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show productivity statistics",
	RunE:  runStats,
}

var (
	statsWindow int
	statsFor    string
)

func init() {
	statsCmd.Flags().IntVar(&statsWindow, "window", 0, "Window in days (0 uses the daemon default)")
	statsCmd.Flags().StringVar(&statsFor, "for", "", "User whose stats to show (admin)")
}

func runStats(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if statsWindow > 0 {
		q.Set("window", strconv.Itoa(statsWindow))
	}
	if statsFor != "" {
		q.Set("user", statsFor)
	}
	path := "/stats"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var s models.ProductivityStats
	if err := apiGet(path, &s); err != nil {
		return err
	}

	fmt.Printf("User:        %s\n", s.UserID)
	fmt.Printf("Window:      %d days\n", s.WindowDays)
	fmt.Printf("Total:       %.2f h\n", s.TotalHours)
	fmt.Printf("Daily avg:   %.2f h\n", s.AverageDailyHours)
	fmt.Printf("Streak:      %d days\n", s.StreakDays)
	fmt.Printf("Utilization: %.2f%%\n", s.UtilizationPercent)
	return nil
}
