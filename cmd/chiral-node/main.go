// Command chiral-node runs a headless Chiral Network host process: DHT
// participation, reachability probing, relay/hole-punch management and
// file publish/download, driven entirely by flags and signals (no
// interactive shell).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chiral-network/chiral-network/pkg/node"
)

const (
	exitSuccess       = 0
	exitStartupError  = 1
	exitConfigInvalid = 2
	exitBootstrapFail = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load() // optional; missing .env is not an error

	var (
		headless          bool
		dhtPort           int
		logLevel          string
		showMultiaddr     bool
		showReachability  bool
		bootstrapAddrs    []string
		pureClientMode    bool
		bootstrapRole     bool
		enableRelayServer bool
		dataDir           string
	)

	cmd := &cobra.Command{
		Use:   "chiral-node",
		Short: "Run a Chiral Network node",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.SetLogLevel("*", logLevel); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}

			cfg := node.DefaultConfig()
			cfg.DHTPort = dhtPort
			cfg.BootstrapAddrs = bootstrapAddrs
			cfg.PureClientMode = pureClientMode
			cfg.BootstrapRole = bootstrapRole
			cfg.EnableRelayServer = enableRelayServer
			cfg.DataDir = dataDir
			if os.Getenv("CHIRAL_ENABLE_AUTONAT") == "1" {
				cfg.EnableAutoNAT = true
			}

			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return errConfigInvalid
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			n, peerID, err := node.StartNode(ctx, cfg)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				if nodeErr, ok := err.(*node.Error); ok {
					switch nodeErr.Kind {
					case node.KindConfigInvalid:
						return errConfigInvalid
					case node.KindNetworkTimeout:
						return errBootstrapFailed
					}
				}
				return errStartup
			}
			defer n.StopNode()

			if showMultiaddr {
				fmt.Printf("peer_id=%s\n", peerID)
			}
			if showReachability {
				state, confidence := n.ReachabilityState()
				fmt.Printf("reachability=%s confidence=%s\n", state, confidence)
			}

			_ = headless // headless is the only supported mode; flag kept for interface compatibility

			<-ctx.Done()
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&headless, "headless", true, "run without an interactive shell")
	flags.IntVar(&dhtPort, "dht-port", 4001, "listen port for DHT/transport")
	flags.StringVar(&logLevel, "log-level", "info", "trace|debug|info|warn|error")
	flags.BoolVar(&showMultiaddr, "show-multiaddr", false, "print this node's peer id on startup")
	flags.BoolVar(&showReachability, "show-reachability", false, "print reachability state on startup")
	flags.StringSliceVar(&bootstrapAddrs, "bootstrap", nil, "bootstrap peer multiaddrs")
	flags.BoolVar(&pureClientMode, "pure-client", false, "never publish or relay; download only")
	flags.BoolVar(&bootstrapRole, "bootstrap-role", false, "act as a DHT bootstrap node (fast refresh, always advertised)")
	flags.BoolVar(&enableRelayServer, "relay-server", false, "offer this node as a circuit relay")
	flags.StringVar(&dataDir, "data-dir", "./chiral-data", "persistent state directory")

	if err := cmd.Execute(); err != nil {
		switch err {
		case errConfigInvalid:
			return exitConfigInvalid
		case errBootstrapFailed:
			return exitBootstrapFail
		default:
			return exitStartupError
		}
	}
	return exitSuccess
}

var (
	errConfigInvalid   = fmt.Errorf("configuration invalid")
	errBootstrapFailed = fmt.Errorf("bootstrap failed after retry cap")
	errStartup         = fmt.Errorf("startup error")
)
