// cmd/chronicle/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"chronicle/internal/archive"
	"chronicle/internal/config"
	"chronicle/internal/index"
	"chronicle/internal/paths"
	"chronicle/internal/store"
	"chronicle/internal/watcher"
)

const usageText = `Usage: chronicle <command> [flags]

Commands:
  list <workspace>                  List sessions for a workspace
  show <workspace> <session-id>     Print one page of a session transcript
  history <workspace>               Print deduplicated prompt history
  export <workspace> <session-id>   Export a session to a compressed archive
  watch <workspace>                 Watch the session directory for changes
`

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Chronicle] Failed to load config: %v", err)
	}

	s := store.New(cfg.ClaudeDir)
	s.SetOptions(store.Options{
		PageLimit:        cfg.Settings.PageLimit,
		SummaryRetries:   cfg.Settings.SummaryRetries,
		SummaryDelay:     time.Duration(cfg.Settings.SummaryRetryDelayMS) * time.Millisecond,
		SummaryScanDepth: cfg.Settings.SummaryScanDepth,
	})

	if !cfg.Settings.DisableListCache {
		if cache, err := index.Open(cfg.CachePath); err == nil {
			defer cache.Close()
			s.SetListCache(cache)
		} else {
			log.Printf("[Chronicle] Listing cache unavailable: %v", err)
		}
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "list":
		err = runList(s, args)
	case "show":
		err = runShow(s, args)
	case "history":
		err = runHistory(s, args)
	case "export":
		err = runExport(s, cfg, args)
	case "watch":
		err = runWatch(cfg, args)
	default:
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("[Chronicle] %v", err)
	}
}

func runList(s *store.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chronicle list <workspace>")
	}
	sessions, err := s.ListSessions(args[0])
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		title := sess.CustomTitle
		if title == "" {
			title = sess.Preview
		}
		fmt.Printf("%s  %s  %4d msgs  %s\n", sess.ID, sess.Timestamp.Format(time.RFC3339), sess.MessageCount, title)
	}
	return nil
}

func runShow(s *store.Store, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	offset := fs.Int("offset", 0, "messages already consumed from the newest end")
	limit := fs.Int("limit", 0, "page size (0 = default)")
	leaf := fs.String("leaf", "", "uuid to use as the branch leaf")
	asJSON := fs.Bool("json", false, "print the raw result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: chronicle show <workspace> <session-id>")
	}

	result, err := s.LoadSession(fs.Arg(0), fs.Arg(1), store.LoadOptions{
		Offset: *offset,
		Limit:  *limit,
		Leaf:   *leaf,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if result.CompactInfo != nil {
		fmt.Printf("-- compacted (%s, %d tokens) at %s --\n",
			result.CompactInfo.Trigger, result.CompactInfo.PreTokens, result.CompactInfo.Timestamp)
	}
	for _, e := range result.Entries {
		fmt.Printf("[%s] %s: %s\n", e.Timestamp, e.Type, e.Message.TextContent())
	}
	fmt.Printf("-- %d/%d shown, hasMore=%v, nextOffset=%d --\n",
		len(result.Entries), result.TotalCount, result.HasMore, result.NextOffset)
	return nil
}

func runHistory(s *store.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chronicle history <workspace>")
	}
	history, err := s.ExtractCommandHistory(args[0], 0)
	if err != nil {
		return err
	}
	for _, prompt := range history {
		fmt.Println(prompt)
	}
	return nil
}

func runExport(s *store.Store, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: chronicle export <workspace> <session-id>")
	}
	workspace, sessionID := args[0], args[1]

	dir, err := paths.ProjectDir(cfg.ClaudeDir, workspace)
	if err != nil {
		return err
	}
	sessionPath, err := paths.SessionFilePath(dir, sessionID)
	if err != nil {
		return err
	}

	result, err := s.LoadSession(workspace, sessionID, store.LoadOptions{Limit: 1})
	if err != nil {
		return err
	}
	agentPaths := make(map[string]string)
	for _, agentID := range result.SubagentCorrelations {
		agentPaths[agentID] = paths.AgentLogPath(dir, sessionID, agentID)
	}

	arch := archive.New(cfg.ArchiveDir, 3)
	manifest, err := arch.Export(sessionID, sessionPath, agentPaths)
	if err != nil {
		return err
	}
	fmt.Printf("exported %s (%d agent logs) to %s\n", manifest.SessionID, len(manifest.AgentIDs), cfg.ArchiveDir)
	return nil
}

func runWatch(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chronicle watch <workspace>")
	}
	dir, err := paths.ProjectDir(cfg.ClaudeDir, args[0])
	if err != nil {
		return err
	}

	w, err := watcher.New(dir, 250*time.Millisecond, func(e watcher.Event) {
		if e.AgentID != "" {
			fmt.Printf("%s agent %s (session %s)\n", e.Type, e.AgentID, e.SessionID)
			return
		}
		fmt.Printf("%s session %s\n", e.Type, e.SessionID)
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	return nil
}
