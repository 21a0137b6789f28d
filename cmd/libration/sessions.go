package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skytether/libration/internal/database"
	gormstorage "github.com/skytether/libration/internal/storage/gorm"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [dump.db...]",
	Short: "List sessions recorded in SQLite dumps",
	Long: `Lists the sessions stored in SQLite dump files. Without arguments every
.db file next to storage.sqlite.dumpPath is read.`,
	RunE: runSessionsList,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		dir := filepath.Dir(viper.GetString("storage.sqlite.dumpPath"))
		var err error
		paths, err = database.DumpPaths(dir)
		if err != nil {
			return fmt.Errorf("failed to list dumps in %s: %w", dir, err)
		}
	}
	if len(paths) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded sessions found.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSESSION\tBODIES\tSTART\tEND")
	for _, path := range paths {
		db, err := database.GetSqliteDB(path)
		if err != nil {
			return err
		}
		sessions, err := gormstorage.New(gormstorage.Dependencies{DB: db, Logger: Logger}).Sessions()
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, s := range sessions {
			end := "-"
			if !s.EndTime.IsZero() {
				end = s.EndTime.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%s\t%s\n",
				filepath.Base(path), s.ID, s.BodyA, s.BodyB,
				s.StartTime.Format("2006-01-02 15:04:05"), end)
		}
	}
	return tw.Flush()
}
