package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/store"
)

func init() {
	snapCmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect snapshot history (sqlite driver)",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List retained snapshots, newest first",
		Run:   runSnapshotsList,
	}
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a retained snapshot",
		Args:  cobra.ExactArgs(1),
		Run:   runSnapshotsShow,
	}
	rollbackCmd := &cobra.Command{
		Use:   "rollback <id>",
		Short: "Restore a retained snapshot and save it as the newest",
		Args:  cobra.ExactArgs(1),
		Run:   runSnapshotsRollback,
	}
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show snapshot database statistics",
		Run:   runSnapshotsStats,
	}

	snapCmd.AddCommand(listCmd, showCmd, rollbackCmd, statsCmd)
	RootCmd.AddCommand(snapCmd)
}

func openSnapshotDB() *store.SQLiteStore {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	if cfg.Persistence.Driver != store.DriverSQLite {
		exitErr("snapshots", fmt.Errorf("snapshot history needs the sqlite driver, configured driver is %q", cfg.Persistence.Driver))
	}
	s, err := store.NewSQLiteStore(cfg.Persistence.Path, cfg.Persistence.History)
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

func runSnapshotsList(cmd *cobra.Command, args []string) {
	s := openSnapshotDB()
	defer s.Close()

	infos, err := s.List(cmd.Context())
	if err != nil {
		exitErr("list snapshots", err)
	}
	if formatFlag == "text" {
		for _, info := range infos {
			fmt.Printf("%s\t%s\t%d\n", info.ID, info.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), info.SizeBytes)
		}
		return
	}
	if len(infos) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(infos)
}

func runSnapshotsShow(cmd *cobra.Command, args []string) {
	s := openSnapshotDB()
	defer s.Close()

	data, err := s.LoadByID(cmd.Context(), args[0])
	if err != nil {
		exitErr("show snapshot", err)
	}
	fmt.Println(string(data))
}

func runSnapshotsRollback(cmd *cobra.Command, args []string) {
	db := openSnapshotDB()
	data, err := db.LoadByID(cmd.Context(), args[0])
	db.Close()
	if err != nil {
		exitErr("load snapshot", err)
	}

	s := openManager(cmd, false)
	defer s.close()

	if err := s.mgr.Restore(data); err != nil {
		exitErr("rollback", err)
	}
	fmt.Printf(`{"ok":true,"id":%q,"restored":%d}`+"\n", args[0], s.mgr.Stats().DurableItems)
}

func runSnapshotsStats(cmd *cobra.Command, args []string) {
	s := openSnapshotDB()
	defer s.Close()

	st, err := s.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(st)
}
