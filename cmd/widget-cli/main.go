package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"agent-widget-platform/internal/widget"
)

// widget-cli hosts the conversation engine in a terminal, playing the role
// the embedding page plays in a browser.
func main() {
	var (
		serverURL    = flag.String("server", "http://localhost:82", "widget-server base URL")
		agentID      = flag.String("agent", "", "agent identifier (required)")
		identityPath = flag.String("identity", "", "override path of the visitor identity file")
		pollInterval = flag.Duration("poll", widget.DefaultPollInterval, "history poll interval")
		verbose      = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *agentID == "" {
		fmt.Fprintln(os.Stderr, "usage: widget-cli -agent <agentId> [-server URL]")
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	printer := &messagePrinter{}
	engine := widget.NewEngine(widget.Options{
		AgentID:      *agentID,
		Backend:      widget.NewHTTPBackend(*serverURL),
		Identity:     widget.NewIdentityStore(*identityPath),
		PollInterval: *pollInterval,
		Logger:       logger,
	})
	defer engine.Close()

	ctx := context.Background()
	if err := engine.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}

	stdin := bufio.NewScanner(os.Stdin)

	if config, ok := engine.Config(); ok && config.WelcomeMessage != "" {
		fmt.Printf("[%s] %s\n", config.Name, config.WelcomeMessage)
	}

	if engine.Phase() == widget.PhasePreChat {
		if err := runPreChat(engine, stdin); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	printer.flush(engine)

	if engine.Phase() == widget.PhaseOutOfService {
		printOutOfService(engine)
		return
	}

	fmt.Println("Type a message and press enter. Ctrl-D to quit.")

	// Poll results arrive on the engine's poller goroutine; a ticker keeps
	// the terminal view in sync with them.
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				printer.flush(engine)
			}
		}
	}()
	defer close(stop)

	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return
		}
		text := strings.TrimSpace(stdin.Text())
		if text == "" {
			continue
		}

		if err := engine.Send(ctx, text); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
		}
		printer.flush(engine)

		if engine.Phase() == widget.PhaseOutOfService {
			printOutOfService(engine)
			return
		}
	}
}

func runPreChat(engine *widget.Engine, stdin *bufio.Scanner) error {
	config, _ := engine.Config()
	for {
		var name, email string
		if config.RequireVisitorInfo {
			fmt.Print("Your name: ")
			if !stdin.Scan() {
				return fmt.Errorf("aborted")
			}
			name = strings.TrimSpace(stdin.Text())
			fmt.Print("Your email: ")
			if !stdin.Scan() {
				return fmt.Errorf("aborted")
			}
			email = strings.TrimSpace(stdin.Text())
		}

		err := engine.SubmitVisitorInfo(name, email)
		if err == nil {
			return nil
		}
		if err == widget.ErrVisitorInfoRequired {
			fmt.Println("Name and email are required.")
			continue
		}
		return err
	}
}

func printOutOfService(engine *widget.Engine) {
	config, ok := engine.Config()
	if ok && config.FallbackEmail != "" {
		fmt.Printf("The agent is unavailable. Contact: %s\n", config.FallbackEmail)
		return
	}
	fmt.Println("The agent is unavailable.")
}

// messagePrinter prints only messages it has not shown yet. A poll can
// replace the whole list, so it re-prints from scratch when the list shrank.
type messagePrinter struct {
	mu    sync.Mutex
	shown int
}

func (p *messagePrinter) flush(engine *widget.Engine) {
	messages := engine.Messages()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(messages) < p.shown {
		p.shown = 0
	}
	for _, msg := range messages[p.shown:] {
		speaker := "you"
		if msg.Role == widget.RoleAgent {
			speaker = "agent"
		}
		fmt.Printf("[%s] %s\n", speaker, msg.Content)
	}
	p.shown = len(messages)
}
