// Package main is the entrypoint for mirror-remote.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/morezero/mirror-remote/internal/config"
	"github.com/morezero/mirror-remote/internal/server"
	"github.com/morezero/mirror-remote/pkg/store"
)

const usage = `Usage: mirror-remote [command]

Commands:
  (default)   Start the remote control server (NATS, HTTP API, dispatcher).
  backup      Print the current config document to stdout.
  restore     Restore the most recent config backup and print it.
  saves       List available config backup timestamps.

Environment: COMMS_URL, HTTP_PORT, REMOTE_API_KEY, REMOTE_DATA_DIR,
MIRROR_DIR, MODULES_DIR.
`

// exitCodeRestart tells the supervisor to bring the process back up.
const exitCodeRestart = 3

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "backup":
		if err := runBackup(); err != nil {
			log.Fatalf("mirror-remote backup: %v", err)
		}
		return
	case "restore":
		if err := runRestore(); err != nil {
			log.Fatalf("mirror-remote restore: %v", err)
		}
		return
	case "saves":
		if err := runSaves(); err != nil {
			log.Fatalf("mirror-remote saves: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "":
		// fall through to server
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	restart, err := server.Run()
	if err != nil {
		log.Fatalf("mirror-remote: fatal error: %v", err)
	}
	if restart {
		os.Exit(exitCodeRestart)
	}
}

func openStore() (*store.Store, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.Open(cfg.DataDir)
}

func runBackup() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	cfg, err := st.Config()
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var pretty json.RawMessage = cfg
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runRestore() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	restored, err := st.Undo()
	if err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	fmt.Println(string(restored))
	return nil
}

func runSaves() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	saves, err := st.Saves()
	if err != nil {
		return fmt.Errorf("list saves: %w", err)
	}
	for _, ts := range saves {
		fmt.Println(ts)
	}
	return nil
}
