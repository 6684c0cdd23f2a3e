package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrlite/mrlite/pkg/agent"
	"github.com/mrlite/mrlite/pkg/log"
)

var agentCmd = &cobra.Command{
	Use:    "agent",
	Short:  "Run the per-rank agent (launched remotely by the scheduler)",
	Hidden: true,
	RunE:   runAgent,
}

func init() {
	agentCmd.Flags().StringP("server", "s", "", "Scheduler IPv4 address")
	agentCmd.Flags().IntP("port", "p", 0, "Scheduler control port")
	agentCmd.Flags().IntP("rank", "r", -1, "Rank of this agent's task")
	agentCmd.Flags().StringP("dir", "d", "", "Host tmp directory")
	_ = agentCmd.MarkFlagRequired("server")
	_ = agentCmd.MarkFlagRequired("port")
	_ = agentCmd.MarkFlagRequired("rank")
	_ = agentCmd.MarkFlagRequired("dir")
}

func runAgent(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	port, _ := cmd.Flags().GetInt("port")
	rank, _ := cmd.Flags().GetInt("rank")
	dir, _ := cmd.Flags().GetString("dir")

	// Tee logs into a per-rank file in the tmp dir so a failed run leaves
	// evidence on this host after the scheduler is gone.
	logPath := filepath.Join(dir, fmt.Sprintf("log-mrlite-rank-%d.txt", rank))
	if f, err := os.Create(logPath); err == nil {
		defer f.Close()
		log.Init(log.Config{
			Level:  log.DebugLevel,
			Output: io.MultiWriter(os.Stderr, f),
		})
	}

	a, err := agent.Dial(agent.Options{
		ServerIP:   server,
		ServerPort: port,
		Rank:       rank,
		TmpDir:     dir,
	}, nil)
	if err != nil {
		return err
	}

	// The scheduler's kill-all path sends TERM to this process: kill the
	// worker child, drop the deployed artifacts and exit nonzero.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Logger.Debug().Msg("Interrupted by SIGTERM")
		a.KillChild()
		a.Quit()
		os.Exit(1)
	}()

	if err := a.CheckPaths(); err != nil {
		a.Quit()
		return err
	}
	if err := a.Run(); err != nil {
		a.KillChild()
		a.Quit()
		return err
	}
	return nil
}
