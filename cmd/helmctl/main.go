// Command helmctl is the operator tool. It reads and adjusts the persisted
// world directly and talks to a running server over its HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/OCAP2/helmsync/internal/api"
	"github.com/OCAP2/helmsync/internal/catalog"
	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/internal/database"
	"github.com/OCAP2/helmsync/internal/economy"
	"github.com/OCAP2/helmsync/internal/journal"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/mission"
	"github.com/OCAP2/helmsync/internal/storage"
	gormstorage "github.com/OCAP2/helmsync/internal/storage/gorm"
	"github.com/OCAP2/helmsync/pkg/core"
)

const usage = `usage: helmctl <command> [args]

commands:
  health                               check the server
  vessels [space]                      list persisted vessels
  profile <user>                       show an economy profile
  credit <user> <credits> [reason]     adjust a user's credits
  assign <space> <user> <vessel> <mission>
                                       assign a catalog mission
  missions [space]                     list active assignments
  export <space> <file.json.gz>        save a live snapshot
  journal [file]                       print admin journal entries`

func main() {
	configDir := os.Getenv("HELMSYNC_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}
	if err := config.Load(configDir); err != nil {
		config.SetDefaults()
	}
	core.StartingCredits = config.GetRulesConfig().StartingCredits

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Println(usage)
		os.Exit(2)
	}
	if err := runCommand(strings.ToLower(args[0]), args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "helmctl %s: %v\n", args[0], err)
		os.Exit(1)
	}
}

func runCommand(cmd string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "health":
		h, err := apiClient().Healthcheck()
		if err != nil {
			return err
		}
		fmt.Printf("%s, %d connections\n", h.Status, h.Connections)
		return nil

	case "export":
		if len(args) < 2 {
			return fmt.Errorf("need <space> <file>")
		}
		n, err := apiClient().Export(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes to %s\n", n, args[1])
		return nil

	case "journal":
		return printJournal(args)

	case "vessels", "profile", "credit", "assign", "missions":
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer store.Close()
		return runStorageCommand(ctx, store, cmd, args)

	default:
		fmt.Println(usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runStorageCommand(ctx context.Context, store storage.Backend, cmd string, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	switch cmd {
	case "vessels":
		space := ""
		if len(args) > 0 {
			space = args[0]
		}
		vessels, err := store.LoadVessels(ctx, space)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tSPACE\tNAME\tMODE\tOWNER\tHELM\tLAT\tLON")
		for _, v := range vessels {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.5f\t%.5f\n",
				v.ID, v.SpaceID, v.Name, v.Mode, v.OwnerID, v.HelmUserID, v.Position.Lat, v.Position.Lon)
		}

	case "profile":
		if len(args) < 1 {
			return fmt.Errorf("need <user>")
		}
		p, err := economy.NewService(store).Profile(ctx, args[0])
		if err != nil {
			return err
		}
		printProfile(w, p)

	case "credit":
		if len(args) < 2 {
			return fmt.Errorf("need <user> <credits>")
		}
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("credits: %w", err)
		}
		reason := "operator adjustment"
		if len(args) > 2 {
			reason = strings.Join(args[2:], " ")
		}
		p, err := economy.NewService(store).Adjust(ctx, args[0], core.Adjustment{Credits: amount, Reason: reason})
		if err != nil {
			return err
		}
		printProfile(w, p)

	case "assign":
		if len(args) < 4 {
			return fmt.Errorf("need <space> <user> <vessel> <mission>")
		}
		world, err := catalog.Load(config.GetMissionConfig().Catalog)
		if err != nil {
			return fmt.Errorf("load world: %w", err)
		}
		tracker := mission.NewTracker(mission.Dependencies{Store: store, Catalog: world}, mission.DefaultConfig())
		actor := core.Actor{UserID: args[1], SpaceID: args[0], Roles: []string{core.RoleAdmin}}
		a, m, err := tracker.Assign(ctx, actor, args[2], args[3])
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "assigned\t%s\nmission\t%s (%s)\nreward\t%d credits\n", a.ID, m.ID, m.Name, m.RewardCredits)

	case "missions":
		space := ""
		if len(args) > 0 {
			space = args[0]
		}
		active, err := store.ActiveAssignments(ctx, space)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tSPACE\tUSER\tVESSEL\tMISSION\tSTATUS\tSTAGE")
		for _, a := range active {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				a.ID, a.SpaceID, a.UserID, a.VesselID, a.MissionID, a.Status, a.Stage)
		}
	}
	return nil
}

func printProfile(w *tabwriter.Writer, p core.EconomyProfile) {
	fmt.Fprintf(w, "user\t%s\ncredits\t%d\nexperience\t%d\nrank\t%d\nsafety\t%.2f\n",
		p.UserID, p.Credits, p.Experience, p.Rank, p.SafetyScore)
}

func printJournal(args []string) error {
	files := args
	if len(files) == 0 {
		var err error
		files, err = journal.Files(config.GetJournalConfig().Dir)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	for _, f := range files {
		entries, err := journal.ReadFile(f)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func apiClient() *api.Client {
	return api.New(config.GetClientConfig().APIURL, viper.GetString("client.userId"))
}

// openStorage connects to the configured database. The in-memory backend
// holds nothing between runs, so helmctl always needs a database.
func openStorage() (storage.Backend, error) {
	cfg := config.GetStorageConfig()
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	dbm := database.NewManager(zlog)
	if err := dbm.Connect(cfg); err != nil {
		return nil, err
	}
	logManager := logging.NewSlogManager()
	logManager.Setup("warn", logging.Sinks{File: os.Stderr})

	b := gormstorage.New(gormstorage.Dependencies{
		DB:         dbm.DB,
		LogManager: logManager,
		LockRows:   !dbm.ShouldSaveLocal,
	})
	if err := b.Init(); err != nil {
		return nil, err
	}
	return b, nil
}
