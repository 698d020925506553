package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/cube-builder/internal/config"
	"github.com/ramonehamilton/cube-builder/internal/resolve"
	"github.com/ramonehamilton/cube-builder/internal/storage"
	"github.com/ramonehamilton/cube-builder/internal/suggest"
)

const promptHelp = `Commands:
  ?<text>               suggest card names
  show <name>           preview a card
  add [qty] <name>      add a card (English or Italian name)
  qty <id> <n>          set a quantity
  rm <id>               remove a card
  ls                    show the cube
  backups               list backup slots
  restore <slot>        replace the cube with a backup slot
  save                  snapshot the cube into a backup slot now
  quit                  leave`

// prompt is one interactive session reading commands line by line.
type prompt struct {
	c       *cli
	in      *bufio.Scanner
	out     io.Writer
	suggest *suggest.Suggester
	results chan suggest.Result

	quitArmed bool
}

func (c *cli) runInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := config.Watch(ctx, c.configPath, c.logger, func(cfg *config.Config) {
			c.app.session.SetPolicy(backupPolicy(cfg))
		})
		if err != nil {
			c.logger.Debug("Config watch disabled", "error", err)
		}
	}()

	if interval, err := c.cfg.GetFileBackupInterval(); err == nil && interval > 0 {
		scheduler, err := storage.NewBackupScheduler(c.app.db, storage.SchedulerConfig{
			Interval: interval,
			Keep:     c.cfg.Backup.FileKeep,
			Logger:   c.logger,
		})
		if err == nil && scheduler.Start(ctx) == nil {
			defer func() { _ = scheduler.Stop() }()
		}
	}

	p := &prompt{
		c:       c,
		in:      bufio.NewScanner(cmd.InOrStdin()),
		out:     cmd.OutOrStdout(),
		results: make(chan suggest.Result, 1),
	}
	p.suggest = suggest.New(c.app.client, p.deliver, suggest.Options{
		Debounce:  debounceOf(c.cfg),
		MinPrefix: c.cfg.Search.MinPrefix,
		Logger:    c.logger,
	})
	defer p.suggest.Close()

	fmt.Fprintf(p.out, "%s (%d cards). Type help for commands.\n",
		titleStyle.Render("cube-builder"), len(c.app.session.Entries()))
	return p.loop(ctx)
}

// deliver keeps only the newest result.
func (p *prompt) deliver(r suggest.Result) {
	select {
	case <-p.results:
	default:
	}
	p.results <- r
}

func (p *prompt) loop(ctx context.Context) error {
	for {
		fmt.Fprint(p.out, "> ")
		line, ok := p.readLine()
		if !ok {
			fmt.Fprintln(p.out)
			return p.in.Err()
		}
		if line == "" {
			continue
		}

		done, err := p.handle(ctx, line)
		if err != nil {
			fmt.Fprintln(p.out, warnStyle.Render("Error: "+err.Error()))
		}
		if done {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (p *prompt) readLine() (string, bool) {
	if !p.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

func (p *prompt) handle(ctx context.Context, line string) (bool, error) {
	if strings.HasPrefix(line, "?") {
		return false, p.suggestNames(ctx, line[1:])
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	if verb != "quit" && verb != "exit" {
		p.quitArmed = false
	}

	session := p.c.app.session
	switch verb {
	case "help":
		fmt.Fprintln(p.out, promptHelp)
	case "show":
		out, err := p.resolve(ctx, rest)
		if err != nil || out == nil {
			return false, err
		}
		printPreview(p.out, out)
	case "add":
		return false, p.add(ctx, rest)
	case "qty":
		id, value, ok := strings.Cut(rest, " ")
		if !ok {
			return false, errors.New("usage: qty <id> <n>")
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false, fmt.Errorf("quantity %q is not a number", value)
		}
		entry, err := session.SetQuantity(ctx, id, n)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(p.out, "%s is now %d\n", entry.Name, entry.Qty)
	case "rm":
		removed, err := session.Remove(ctx, rest)
		if err != nil {
			return false, err
		}
		printRemoved(p.out, rest, removed)
	case "ls", "list":
		printEntries(p.out, session.Entries())
	case "backups":
		infos, err := session.Backups(ctx)
		if err != nil {
			return false, err
		}
		printBackups(p.out, infos)
	case "restore":
		entries, err := session.Restore(ctx, rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(p.out, "Restored %d cards from slot %s\n", len(entries), rest)
	case "save":
		info, err := session.Checkpoint(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(p.out, "Saved %d cards to slot %d\n", info.Cards, info.Slot)
	case "quit", "exit":
		if session.Dirty() && !p.quitArmed {
			p.quitArmed = true
			since := "No backup slot was written this session."
			if last := session.LastCheckpoint(); !last.IsZero() {
				since = "Last snapshot at " + last.Local().Format("15:04:05") + "."
			}
			fmt.Fprintln(p.out, warnStyle.Render("Recent changes are not in a backup slot yet. "+since+" Type save, or quit again to leave."))
			return false, nil
		}
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q (type help)", verb)
	}
	return false, nil
}

func (p *prompt) suggestNames(ctx context.Context, text string) error {
	p.suggest.Request(text)
	r, err := waitResult(ctx, p.results)
	if err != nil {
		return err
	}
	if r.Err != nil {
		return r.Err
	}
	if len(r.Names) == 0 {
		fmt.Fprintln(p.out, "No suggestions.")
		return nil
	}
	for _, name := range r.Names {
		fmt.Fprintln(p.out, " ", name)
	}
	return nil
}

// resolve looks up name and asks the user to choose when it is ambiguous.
// A nil outcome with a nil error means the user cancelled.
func (p *prompt) resolve(ctx context.Context, name string) (*resolve.Outcome, error) {
	out, err := p.c.app.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if out.Kind == resolve.Resolved {
		return out, nil
	}

	printCandidates(p.out, out.Candidates)
	fmt.Fprintf(p.out, "Pick 1-%d (empty to cancel): ", len(out.Candidates))
	line, ok := p.readLine()
	if !ok || line == "" {
		fmt.Fprintln(p.out, "Cancelled.")
		return nil, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(out.Candidates) {
		return nil, fmt.Errorf("%q is not a candidate number", line)
	}
	return p.c.app.resolver.Pick(ctx, out.Candidates[n-1])
}

func (p *prompt) add(ctx context.Context, rest string) error {
	qty := 1
	if first, name, ok := strings.Cut(rest, " "); ok {
		if n, err := strconv.Atoi(first); err == nil {
			qty = n
			rest = strings.TrimSpace(name)
		}
	}

	out, err := p.resolve(ctx, rest)
	if errors.Is(err, resolve.ErrNotFound) {
		if names, ok := p.suggest.Cached(rest); ok && len(names) > 0 {
			fmt.Fprintln(p.out, "Did you mean:", strings.Join(names, ", "))
		}
	}
	if err != nil || out == nil {
		return err
	}
	printPreview(p.out, out)

	entry, err := p.c.app.session.Add(ctx, out, qty)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "%s %s (now %d)\n", okStyle.Render("Added"), entry.Name, entry.Qty)
	return nil
}
