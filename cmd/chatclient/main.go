package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-chatclient/internal/auth"
	"github.com/npezzotti/go-chatclient/internal/chat"
	"github.com/npezzotti/go-chatclient/internal/config"
	"github.com/npezzotti/go-chatclient/internal/history"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/types"
)

var (
	serverURL   string
	historyURL  string
	sessionFile string
	debugAddr   string
)

func main() {
	logger := log.New(os.Stderr, "[chat-client] ", log.LstdFlags)

	env, err := config.FromEnv()
	if err != nil {
		logger.Fatal("env:", err)
	}

	flag.StringVar(&serverURL, "server", env.ServerURL, "chat service base URL")
	flag.StringVar(&historyURL, "history-url", env.HistoryURL, "history endpoint base URL (defaults to the server URL)")
	flag.StringVar(&sessionFile, "session-file", env.SessionFile, "path to the session credential file")
	flag.StringVar(&debugAddr, "debug-addr", env.DebugAddr, "address for the metrics endpoint (disabled when empty)")
	flag.Parse()

	cfg, err := config.NewConfig(serverURL, historyURL, sessionFile, debugAddr)
	if err != nil {
		logger.Fatal("config:", err)
	}

	creds, err := auth.Load(cfg.SessionFile)
	if err != nil {
		logger.Fatal("credentials:", err)
	}

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	var debugSrv *http.Server
	if cfg.DebugAddr != "" {
		debugSrv = &http.Server{
			Addr:    cfg.DebugAddr,
			Handler: handlers.LoggingHandler(os.Stderr, mux),
		}
		go func() {
			if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Println("debug server:", err)
			}
		}()
	}

	loader := history.NewLoader(cfg.HistoryURL, creds.Token, logger)

	sess, err := chat.NewSession(chat.SessionContext{
		Identity: creds.User,
		Token:    creds.Token,
	}, cfg, loader, statsUpdater, logger)
	if err != nil {
		logger.Fatal("session:", err)
	}

	if err := sess.Open(); err != nil {
		logger.Fatal("open session:", err)
	}

	color.New(color.Bold).Printf("connected as %s\n", creds.User.Username)
	fmt.Println("commands: /users, /select <user>, /stats, /quit")

	r := &renderer{sess: sess}
	go func() {
		for range sess.Updates() {
			r.render()
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case sig := <-sigs:
			logger.Printf("received signal: %s\n", sig)
			break loop
		case <-sess.Done():
			logger.Println("connection lost, shutting down")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if !handleLine(sess, statsUpdater, line) {
				break loop
			}
		}
	}

	sess.Close()

	if debugSrv != nil {
		shutDownCtx, cancel := context.WithTimeout(
			context.Background(),
			10*time.Second,
		)
		defer cancel()

		if err := debugSrv.Shutdown(shutDownCtx); err != nil {
			logger.Println("debug server shutdown:", err)
		}
	}

	logger.Println("shutdown complete")
}

func handleLine(sess *chat.Session, su *stats.StatsUpdater, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "/quit":
		return false
	case line == "/users":
		printRoster(sess)
	case line == "/stats":
		printStats(su)
	case strings.HasPrefix(line, "/select "):
		selectPeer(sess, strings.TrimSpace(strings.TrimPrefix(line, "/select ")))
	default:
		sess.Send(line)
	}

	return true
}

func printStats(su *stats.StatsUpdater) {
	snapshot := su.Snapshot()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	color.New(color.Bold).Println("session counters")
	for _, name := range names {
		fmt.Printf("  %s: %d\n", name, snapshot[name])
	}
}

func printRoster(sess *chat.Session) {
	roster := sess.Roster()
	color.New(color.Bold).Printf("online users (%d)\n", len(roster))
	for i, peer := range roster {
		fmt.Printf("  %d. %s <%s>\n", i+1, peer.Username, peer.Email)
	}
}

func selectPeer(sess *chat.Session, target string) {
	roster := sess.Roster()

	if n, err := strconv.Atoi(target); err == nil && n >= 1 && n <= len(roster) {
		sess.Select(roster[n-1])
		color.New(color.Bold).Printf("chatting with %s\n", roster[n-1].Username)
		return
	}

	for _, peer := range roster {
		if peer.Username == target {
			sess.Select(peer)
			color.New(color.Bold).Printf("chatting with %s\n", peer.Username)
			return
		}
	}

	fmt.Printf("no online user %q\n", target)
}

// renderer prints messages of the active conversation as they land in the
// store and reports peer messages as visible so read receipts fire.
type renderer struct {
	sess    *chat.Session
	peerId  string
	printed int
}

func (r *renderer) render() {
	peer, ok := r.sess.ActivePeer()
	if !ok {
		return
	}

	if peer.UserId != r.peerId {
		r.peerId = peer.UserId
		r.printed = 0
	}

	msgs := r.sess.Conversation(peer.UserId)
	if len(msgs) < r.printed {
		// history replacement shrank the conversation
		r.printed = 0
	}

	for _, msg := range msgs[r.printed:] {
		if msg.From == r.sess.Identity().Id {
			tick := "✓"
			if msg.Status == types.StatusRead {
				tick = "✓✓"
			}
			color.New(color.FgGreen).Printf("you: %s %s\n", msg.Content, tick)
		} else {
			color.New(color.FgCyan).Printf("%s: %s\n", peer.Username, msg.Content)
			r.sess.MarkVisible(msg)
		}
	}
	r.printed = len(msgs)
}
