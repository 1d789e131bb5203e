package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/civicreport/internal/domain"
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatMaybeRating(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func printReports(items []domain.Report) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ReportNumber,
			item.Title,
			string(item.Category),
			string(item.Priority),
			string(item.Status),
			item.AssignedDepartment,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"NUMBER", "TITLE", "CATEGORY", "PRIORITY", "STATUS", "DEPARTMENT", "CREATED_AT"}, rows)
}

func printReport(item domain.Report) {
	printKV([][2]string{
		{"id", item.ID},
		{"number", item.ReportNumber},
		{"title", item.Title},
		{"description", item.Description},
		{"location", item.LocationText},
		{"category", string(item.Category)},
		{"priority", string(item.Priority)},
		{"status", string(item.Status)},
		{"department", item.AssignedDepartment},
		{"rating", formatMaybeRating(item.CitizenRating)},
		{"created_at", formatTime(item.CreatedAt)},
		{"updated_at", formatTime(item.UpdatedAt)},
	})
}

func printUpdates(items []domain.ReportUpdate) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			string(item.Status),
			item.Message,
			item.UpdatedBy,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"STATUS", "MESSAGE", "UPDATED_BY", "AT"}, rows)
}

func printProfiles(items []domain.Profile) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.UserID,
			item.FullName,
			string(item.Role),
			item.Department,
			strconv.FormatBool(item.IsVerified),
		})
	}
	printTable([]string{"USER_ID", "FULL_NAME", "ROLE", "DEPARTMENT", "VERIFIED"}, rows)
}

func printAuditRecords(items []domain.AuditRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Action,
			item.TargetType,
			item.TargetID,
			item.ActorEmail,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "ACTION", "TARGET_TYPE", "TARGET_ID", "ACTOR", "AT"}, rows)
}

func printStats(stats domain.ReportStats) {
	rows := [][2]string{{"total", strconv.FormatInt(stats.Total, 10)}}
	for _, s := range domain.Statuses {
		if count, ok := stats.ByStatus[s]; ok {
			rows = append(rows, [2]string{"status." + string(s), strconv.FormatInt(count, 10)})
		}
	}
	for _, p := range domain.Priorities {
		if count, ok := stats.ByPriority[p]; ok {
			rows = append(rows, [2]string{"priority." + string(p), strconv.FormatInt(count, 10)})
		}
	}
	for _, c := range domain.Categories {
		if count, ok := stats.ByCategory[c]; ok {
			rows = append(rows, [2]string{"category." + string(c), strconv.FormatInt(count, 10)})
		}
	}
	printKV(rows)
}
