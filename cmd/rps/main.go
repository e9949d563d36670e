package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	cli "github.com/urfave/cli/v2"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/application"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/network"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/zk"
)

// Set through -ldflags "-X main.version=..."
var version = "dev"

var (
	roomFlag = &cli.StringFlag{
		Name:    "room",
		Usage:   "Room id shared by the players",
		Value:   application.DefaultConfig().RoomID,
		EnvVars: []string{"RPS_ROOM"},
	}
	nameFlag = &cli.StringFlag{
		Name:    "name",
		Usage:   "Name announced to the other players",
		EnvVars: []string{"RPS_NAME"},
	}
	stunFlag = &cli.StringSliceFlag{
		Name:    "stun",
		Usage:   "STUN server, host[:port] or stun: url (repeatable, empty disables)",
		Value:   cli.NewStringSlice(network.DefaultSTUNServer),
		EnvVars: []string{"RPS_STUN"},
	}
	gatherFlag = &cli.DurationFlag{
		Name:    "gather-timeout",
		Usage:   "Upper bound on ICE gathering before a partial signal is produced",
		Value:   network.DefaultGatherTimeout,
		EnvVars: []string{"RPS_GATHER_TIMEOUT"},
	}
	circuitFlag = &cli.StringFlag{
		Name:    "circuit",
		Usage:   "Compiled circuit, path or http(s) url",
		Value:   application.DefaultConfig().Artifacts.Circuit,
		EnvVars: []string{"RPS_CIRCUIT"},
	}
	provingKeyFlag = &cli.StringFlag{
		Name:    "proving-key",
		Usage:   "Groth16 proving key, path or http(s) url",
		Value:   application.DefaultConfig().Artifacts.ProvingKey,
		EnvVars: []string{"RPS_PROVING_KEY"},
	}
	verifyingKeyFlag = &cli.StringFlag{
		Name:    "verifying-key",
		Usage:   "Verifying key document, path or http(s) url",
		Value:   application.DefaultConfig().Artifacts.VerifyingKey,
		EnvVars: []string{"RPS_VERIFYING_KEY"},
	}
	discoverFlag = &cli.BoolFlag{
		Name:    "discover",
		Usage:   "Exchange signal blobs with players on this machine automatically",
		EnvVars: []string{"RPS_DISCOVER"},
	}
	portsFlag = &cli.StringFlag{
		Name:    "discover-ports",
		Usage:   "Local port range used by --discover",
		Value:   "9000-9010",
		EnvVars: []string{"RPS_DISCOVER_PORTS"},
	}
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Log debug messages",
		EnvVars: []string{"RPS_VERBOSE"},
	}
	outFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "Directory receiving the generated artifacts",
		Value: "artifacts",
	}
)

func main() {
	app := &cli.App{
		Name:     "rps",
		Version:  version,
		Usage:    "peer-to-peer rock/paper/scissors with committed, provable hands",
		Commands: []*cli.Command{playCmd, setupCmd},
	}
	if err := app.Run(os.Args); err != nil {
		pterm.Error.Printfln("%v", err)
		os.Exit(1)
	}
}

func newLogger(cctx *cli.Context) *slog.Logger {
	logger := pterm.DefaultLogger
	if cctx.Bool(verboseFlag.Name) {
		logger = *logger.WithLevel(pterm.LogLevelDebug)
	}
	return slog.New(pterm.NewSlogHandler(&logger))
}

func configFromFlags(cctx *cli.Context, name string) (application.Config, error) {
	cfg := application.DefaultConfig()
	cfg.RoomID = cctx.String(roomFlag.Name)
	cfg.Description = name
	cfg.GatherTimeout = cctx.Duration(gatherFlag.Name)
	cfg.Artifacts = zk.Source{
		Circuit:      cctx.String(circuitFlag.Name),
		ProvingKey:   cctx.String(provingKeyFlag.Name),
		VerifyingKey: cctx.String(verifyingKeyFlag.Name),
	}
	servers, err := iceServers(cctx.StringSlice(stunFlag.Name))
	if err != nil {
		return cfg, err
	}
	cfg.ICEServers = servers
	return cfg, nil
}

var playCmd = &cli.Command{
	Name:  "play",
	Usage: "join a room and play",
	Flags: []cli.Flag{
		roomFlag, nameFlag, stunFlag, gatherFlag,
		circuitFlag, provingKeyFlag, verifyingKeyFlag,
		discoverFlag, portsFlag, verboseFlag,
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger(cctx)
		slog.SetDefault(logger)

		pterm.DefaultBigText.WithLetters(
			putils.LettersFromStringWithStyle("R", pterm.FgRed.ToStyle()),
			putils.LettersFromStringWithStyle("P", pterm.FgDarkGray.ToStyle()),
			putils.LettersFromStringWithStyle("S", pterm.FgRed.ToStyle()),
		).Render()

		name := cctx.String(nameFlag.Name)
		if name == "" {
			name, _ = pterm.DefaultInteractiveTextInput.WithDefaultText("Enter your username").WithDefaultValue("player").Show()
			pterm.Println()
		}
		cfg, err := configFromFlags(cctx, name)
		if err != nil {
			return err
		}
		cfg.Logger = logger

		prover, verifier, err := loadProofSystem(ctx, cfg.Artifacts)
		if err != nil {
			return err
		}
		g, err := application.NewGameOrchestrator(cfg, prover, verifier)
		if err != nil {
			return err
		}
		defer g.Close()
		pterm.Info.Printfln("Your id: %s (room %s)", g.SelfID(), cfg.RoomID)

		l := newLobby(g, logger)
		if cctx.Bool(discoverFlag.Name) {
			start, end, err := parsePortRange(cctx.String(portsFlag.Name))
			if err != nil {
				return err
			}
			if err := l.startDiscovery(cfg.RoomID, start, end); err != nil {
				return fmt.Errorf("discovery: %w", err)
			}
		}
		return l.run(ctx)
	},
}

func loadProofSystem(ctx context.Context, src zk.Source) (*zk.Prover, *zk.Verifier, error) {
	spinner, _ := pterm.DefaultSpinner.Start("Loading proof artifacts ...")
	a, err := src.Load(ctx)
	if err != nil {
		spinner.Fail()
		return nil, nil, fmt.Errorf("loading artifacts (run `rps setup` for a development set): %w", err)
	}
	prover, err := zk.NewProver(a)
	if err != nil {
		spinner.Fail()
		return nil, nil, err
	}
	verifier := zk.NewVerifierFromDocument(a.VerifyingKey)
	if err := verifier.Err(); err != nil {
		spinner.Fail()
		return nil, nil, err
	}
	spinner.Success()
	return prover, verifier, nil
}

var setupCmd = &cli.Command{
	Name:  "setup",
	Usage: "generate development proof artifacts with a single-party setup (insecure)",
	Flags: []cli.Flag{outFlag},
	Action: func(cctx *cli.Context) error {
		dir := cctx.String(outFlag.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		spinner, _ := pterm.DefaultSpinner.Start("Compiling circuit and running Groth16 setup ...")
		a, err := zk.Setup()
		if err != nil {
			spinner.Fail()
			return err
		}
		def := application.DefaultConfig().Artifacts
		src := zk.Source{
			Circuit:      filepath.Join(dir, filepath.Base(def.Circuit)),
			ProvingKey:   filepath.Join(dir, filepath.Base(def.ProvingKey)),
			VerifyingKey: filepath.Join(dir, filepath.Base(def.VerifyingKey)),
		}
		if err := a.WriteFiles(src); err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success()
		pterm.Warning.Println("These keys come from a single-party setup: whoever ran it can forge proofs.")
		pterm.Info.Printfln("Wrote %s, %s and %s", src.Circuit, src.ProvingKey, src.VerifyingKey)
		return nil
	},
}
