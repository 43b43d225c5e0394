package main

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"conference-portal/models"
	"conference-portal/services"
	"conference-portal/views"

	"github.com/spf13/cobra"
)

func attendanceCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Inspect recorded attendance",
	}

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "Show attendance newest first, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			svc := services.NewAttendanceService(db, nil, nil, e.logger)
			records, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			shown := views.FilterAttendance(records, search)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, views.AttendanceTable(shown, time.Local))
			fmt.Fprintln(out, views.StatsSummary(services.ComputeAttendanceStats(records)))
			if strings.TrimSpace(search) != "" {
				fmt.Fprintf(out, "%s match %q\n", views.CountLabel(len(shown), "record"), search)
			}
			return nil
		},
	}
	list.Flags().StringVarP(&search, "search", "s", "", "Filter by name, ticket code or email")

	var upload bool
	export := &cobra.Command{
		Use:   "export",
		Short: "Write attendance as CSV to stdout, or upload it with --upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			svc := services.NewAttendanceService(db, nil, nil, e.logger)
			records, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			if !upload {
				return views.WriteAttendanceCSV(cmd.OutOrStdout(), records)
			}

			var buf bytes.Buffer
			if err := views.WriteAttendanceCSV(&buf, records); err != nil {
				return err
			}
			store, err := e.objectStore(cmd.Context())
			if err != nil {
				return err
			}
			key := fmt.Sprintf("exports/attendance-%s.csv", time.Now().UTC().Format("20060102-150405"))
			url, err := store.Put(cmd.Context(), key, buf.Bytes(), "text/csv")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", views.CountLabel(len(records), "record"), url)
			return nil
		},
	}
	export.Flags().BoolVar(&upload, "upload", false, "Upload to object storage instead of writing to stdout")

	cmd.AddCommand(list, export)
	return cmd
}

func registrationsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registrations",
		Short: "Inspect registrations",
	}

	var search, status string
	list := &cobra.Command{
		Use:   "list",
		Short: "Show registrations newest first, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			svc := services.NewRegistrationService(db, nil, nil, nil, nil, e.cfg.EventTag, e.logger)
			regs, err := svc.List(cmd.Context(), models.RegistrationStatus(strings.ToLower(status)))
			if err != nil {
				return err
			}
			shown := views.FilterRegistrations(regs, search)
			fmt.Fprintln(cmd.OutOrStdout(), views.RegistrationTable(shown))
			fmt.Fprintln(cmd.OutOrStdout(), views.CountLabel(len(shown), "registration"))
			return nil
		},
	}
	list.Flags().StringVarP(&search, "search", "s", "", "Filter by name, ticket code or email")
	list.Flags().StringVar(&status, "status", "", "Only pending, confirmed or rejected")

	cmd.AddCommand(list)
	return cmd
}
