package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/pterm/pterm"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/application"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/discovery"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/domain/rps"
)

const (
	actionOffer     = "Create offer"
	actionAccept    = "Accept signal"
	actionDiscover  = "Accept discovered signal"
	actionCommit    = "Commit hand"
	actionReveal    = "Reveal hand"
	actionNextRound = "Next round"
	actionState     = "Show state"
	actionLog       = "Show event log"
	actionQuit      = "Quit"
)

// lobby drives the game from the terminal. Events are printed by a separate
// goroutine so proofs and peers keep flowing while the menu waits for input.
type lobby struct {
	g   *application.GameOrchestrator
	log *slog.Logger
	d   *discovery.Discover

	stop chan struct{}

	mu         sync.Mutex
	discovered map[string]string
	lastResult *rps.Result
}

func newLobby(g *application.GameOrchestrator, log *slog.Logger) *lobby {
	return &lobby{g: g, log: log, discovered: map[string]string{}, stop: make(chan struct{})}
}

func (l *lobby) startDiscovery(room string, start, end uint16) error {
	d, err := discovery.NewWithOptions(room,
		discovery.WithPortRange(start, end),
		discovery.WithAttempts(0),
		discovery.WithLogger(l.log),
	)
	if err != nil {
		return err
	}
	l.d = d
	pterm.Info.Printfln("Announcing signals on localhost:%d", d.Port())
	go func() {
		for {
			select {
			case e := <-d.Entries:
				l.mu.Lock()
				l.discovered[e.Blob] = pterm.Sprintf("port %d", e.Port)
				l.mu.Unlock()
				l.log.Info("discovered signal", "port", e.Port)
			case <-l.stop:
				return
			}
		}
	}()
	return nil
}

func (l *lobby) run(ctx context.Context) error {
	defer close(l.stop)
	go l.printEvents(l.stop)
	if l.d != nil {
		defer l.d.Close()
	}

	for ctx.Err() == nil {
		action, err := pterm.DefaultInteractiveSelect.WithOptions([]string{
			actionOffer, actionAccept, actionDiscover, actionCommit,
			actionReveal, actionNextRound, actionState, actionLog, actionQuit,
		}).Show()
		if err != nil {
			return err
		}
		if action == actionQuit {
			return nil
		}
		if err := l.do(ctx, action); err != nil {
			pterm.Error.Println(err.Error())
		}
	}
	return nil
}

func (l *lobby) do(ctx context.Context, action string) error {
	switch action {
	case actionOffer:
		spinner, _ := pterm.DefaultSpinner.Start("Gathering ICE candidates ...")
		id, err := l.g.CreateOffer(ctx)
		if err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success("Offer ready for connection " + short(id))
	case actionAccept:
		blob, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("Paste the signal").Show()
		pterm.Println()
		return l.accept(ctx, blob)
	case actionDiscover:
		blob, err := l.pickDiscovered()
		if err != nil {
			return err
		}
		return l.accept(ctx, blob)
	case actionCommit:
		name, err := pterm.DefaultInteractiveSelect.WithOptions([]string{
			rps.Rock.String(), rps.Paper.String(), rps.Scissors.String(),
		}).Show()
		if err != nil {
			return err
		}
		m, err := rps.ParseMove(name)
		if err != nil {
			return err
		}
		return l.g.Commit(ctx, m)
	case actionReveal:
		return l.g.Reveal(ctx)
	case actionNextRound:
		return l.g.NextRound(ctx)
	case actionState:
		v, err := l.g.State(ctx)
		if err != nil {
			return err
		}
		l.mu.Lock()
		res := l.lastResult
		l.mu.Unlock()
		printState(v, res)
	case actionLog:
		return l.showLog(ctx)
	}
	return nil
}

const (
	logThisRound = "This round"
	logSession   = "Whole session"
	logDone      = "Done"
)

// showLog renders the audit ledger and lets the user open single blocks.
func (l *lobby) showLog(ctx context.Context) error {
	scope, err := pterm.DefaultInteractiveSelect.WithOptions([]string{logThisRound, logSession}).Show()
	if err != nil {
		return err
	}
	bc := l.g.Ledger()
	blocks := bc.Entries()
	if scope == logThisRound {
		v, err := l.g.State(ctx)
		if err != nil {
			return err
		}
		blocks = bc.Round(v.Round)
	}
	panel, err := ledgerPanel(blocks, bc.GetLatest(), bc.Len(), bc.Verify())
	if err != nil {
		return err
	}
	panel.Render()
	if len(blocks) == 0 {
		return nil
	}

	options := []string{logDone}
	for _, b := range blocks {
		options = append(options, strconv.Itoa(b.Index))
	}
	for {
		choice, err := pterm.DefaultInteractiveSelect.WithDefaultText("Inspect block").WithOptions(options).Show()
		if err != nil || choice == logDone {
			return err
		}
		idx, err := strconv.Atoi(choice)
		if err != nil {
			return err
		}
		b, err := bc.GetByIndex(idx)
		if err != nil {
			return err
		}
		blockPanel(b).Render()
	}
}

func (l *lobby) accept(ctx context.Context, blob string) error {
	spinner, _ := pterm.DefaultSpinner.Start("Processing signal ...")
	if err := l.g.AcceptSignal(ctx, blob); err != nil {
		spinner.Fail()
		if errors.Is(err, application.ErrOwnSignal) {
			return errors.New("you cannot accept your own signal")
		}
		return err
	}
	spinner.Success()
	return nil
}

func (l *lobby) pickDiscovered() (string, error) {
	l.mu.Lock()
	byLabel := make(map[string]string, len(l.discovered))
	var labels []string
	for blob, origin := range l.discovered {
		label := origin + " " + short(blob)
		byLabel[label] = blob
		labels = append(labels, label)
	}
	l.mu.Unlock()
	if len(labels) == 0 {
		return "", errors.New("no signal discovered yet (start with --discover)")
	}
	label, err := pterm.DefaultInteractiveSelect.WithOptions(labels).Show()
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	delete(l.discovered, byLabel[label])
	l.mu.Unlock()
	return byLabel[label], nil
}

func (l *lobby) printEvents(done <-chan struct{}) {
	for {
		select {
		case e := <-l.g.Events():
			l.printEvent(e)
		case <-done:
			return
		}
	}
}

func (l *lobby) printEvent(e application.Event) {
	switch e.Kind {
	case application.EventSignal:
		if l.d != nil {
			l.d.Publish(e.Blob)
		}
		signalPanel(e).Render()
	case application.EventPeerUpdate:
		pterm.Info.Printfln("[round %d] %s: %s", e.Round, short(e.Peer), e.Message)
	case application.EventProofStatus:
		pterm.Info.Printfln("[round %d] proof: %s", e.Round, e.Message)
	case application.EventAlert:
		pterm.Warning.Printfln("[round %d] %s: %s", e.Round, short(e.Peer), e.Message)
	case application.EventResult:
		l.mu.Lock()
		l.lastResult = e.Result
		l.mu.Unlock()
		if e.Result != nil {
			resultPanel(*e.Result).Render()
		}
	case application.EventRoundAdvanced:
		pterm.Success.Printfln("Round %d started (%s)", e.Round, e.Message)
	}
}

func short(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
