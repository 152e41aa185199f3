package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vrrb-sim/synnergy-node/core"
	"github.com/vrrb-sim/synnergy-node/pkg/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load() // .env is optional; VRRB_* variables may come from it
	core.ConfigureLogging()

	root := &cobra.Command{Use: "synnergy"}
	root.AddCommand(nodeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = 1
		}
		return exitCode
	}
	return exitCode
}

// exitCode is set by subcommands since cobra.Command.Run does not return
// a value; node run/info/stop exit 0 on graceful stop, 1 on startup
// failure, 2 on invalid configuration.
var exitCode int

func nodeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "node"}
	cmd.AddCommand(nodeRunCmd(), nodeInfoCmd(), nodeStopCmd())
	return cmd
}

func nodeRunCmd() *cobra.Command {
	var id, dataDir, genesisPath, httpAddr, gossipAddr string
	var bootstrapAddrs []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a node until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataDir == "" {
				exitCode = 2
				return fmt.Errorf("--data-dir is required")
			}
			kp, err := core.LoadOrCreateKeyPair(dataDir)
			if err != nil {
				exitCode = 1
				return err
			}

			nodeID := id
			if nodeID == "" {
				addr := kp.Address()
				nodeID = new(big.Int).SetBytes(addr[:]).String()
			}

			cfg := core.NodeConfig{
				ID:                     nodeID,
				DataDir:                dataDir,
				DBPath:                 filepath.Join(dataDir, "kv"),
				UDPGossipAddress:       gossipAddr,
				HTTPAPIAddress:         httpAddr,
				Bootstrap:              len(bootstrapAddrs) == 0,
				BootstrapNodeAddresses: bootstrapAddrs,
				NodeType:               core.NodeValidator,
				Keypair:                kp,
			}

			distribution := map[core.Address]uint64{kp.Address(): 0}
			if genesisPath != "" {
				gen, err := config.LoadGenesis(genesisPath)
				if err != nil {
					exitCode = 2
					return err
				}
				parsed, err := parseDistribution(gen.Distribution)
				if err != nil {
					exitCode = 2
					return err
				}
				if len(parsed) > 0 {
					distribution = parsed
				}
			}

			store, err := core.OpenFileSnapshotStore(cfg.DBPath)
			if err != nil {
				exitCode = 1
				return fmt.Errorf("open snapshot store: %w", err)
			}
			defer store.Close()

			bus := core.NewBus(256)
			mempool := core.NewMempool()
			state := core.NewStateStore()

			core.Log.WithFields(map[string]interface{}{
				"id":        cfg.ID,
				"data_dir":  cfg.DataDir,
				"bootstrap": cfg.Bootstrap,
			}).Info("starting node")

			self := core.NodeID(cfg.ID)
			engines, err := core.BootstrapLocalQuorum([]core.NodeID{self}, core.NodeValidator, core.ThresholdConfig{Threshold: 0, Total: 1})
			if err != nil {
				exitCode = 1
				return fmt.Errorf("bootstrap local quorum: %w", err)
			}
			dkg := engines[self]

			dag := core.NewDAG(core.NewQuorumSignatureEngine(dkg, 1))
			genesis := core.NewGenesisBlock(0, 0, distribution)
			if err := dag.AppendGenesis(genesis); err != nil {
				exitCode = 1
				return fmt.Errorf("append genesis: %w", err)
			}
			seed := make([]core.AccountUpdateArgs, 0, len(distribution))
			for addr, credits := range distribution {
				seed = append(seed, core.AccountUpdateArgs{Address: addr, CreditsDelta: credits})
			}
			if err := state.ConvergenceApply(genesis.Header.Hash, seed, nil, nil); err != nil {
				exitCode = 1
				return fmt.Errorf("seed genesis state: %w", err)
			}

			allocator := core.NewAllocator(cfg.Bootstrap, core.DefaultAllocationRatios)
			if cfg.Bootstrap {
				if _, err := allocator.Assign(self); err != nil {
					exitCode = 1
					return fmt.Errorf("assign self to quorum: %w", err)
				}
			}

			farmer := core.NewFarmer(self, core.FarmerConfig{SkewWindow: time.Minute, NonceMode: core.NonceStrictEqual}, dkg, mempool, core.QuorumID("farmer-"+cfg.ID), 1).
				WithContractRunner(core.NewWasmRunner())
			harvester := core.NewHarvester(self, 1, dkg, dag, core.NewDefaultRewardFunc(core.DefaultSplit))
			miner := core.NewMiner(self, mempool, dag)

			rt := core.NewRuntime(cfg, bus, mempool, state, dag, dkg, farmer, harvester, miner, allocator)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			transport, err := core.NewGossipNode(ctx, cfg, "")
			if err != nil {
				exitCode = 1
				return fmt.Errorf("start gossip transport: %w", err)
			}
			defer transport.Close()
			go bridgeTransport(ctx, transport, bus, allocator, cfg.Bootstrap)

			if cfg.HTTPAPIAddress != "" {
				api := core.NewAPIServer(cfg.HTTPAPIAddress, bus, func() core.NodeInfo {
					account, tx, claim := state.Roots()
					return core.NodeInfo{
						ID:            cfg.ID,
						Address:       kp.Address().Hex(),
						NodeType:      "validator",
						LastConfirmed: dag.LastConfirmed().Hex(),
						AccountRoot:   account.Hex(),
						TxRoot:        tx.Hex(),
						ClaimRoot:     claim.Hex(),
						MempoolSize:   len(mempool.SnapshotBy(nil)),
					}
				})
				go func() {
					if err := api.Serve(ctx); err != nil {
						core.Log.WithField("err", err).Error("api server failed")
					}
				}()
			}

			// remote stop control via the json-rpc-api-control topic
			controlEvents := bus.Subscribe(core.TopicJSONRPCControl)
			go func() {
				for ev := range controlEvents {
					if ev.Kind == core.EventStop {
						cancel()
						return
					}
				}
			}()

			rt.Start(ctx)
			<-ctx.Done()
			rt.Stop()

			persistCtx, persistCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer persistCancel()
			if err := store.PersistHead(persistCtx, dag.LastConfirmed(), state); err != nil {
				core.Log.WithField("err", err).Error("persist head failed")
			}

			core.Log.Info("node stopped")
			exitCode = 0
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "node id (derived from keypair if unset)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "per-node data directory")
	cmd.Flags().StringArrayVar(&bootstrapAddrs, "bootstrap", nil, "bootstrap peer multiaddr (repeatable)")
	cmd.Flags().StringVar(&genesisPath, "genesis", "", "genesis YAML file (distribution + quorum shape)")
	cmd.Flags().StringVar(&httpAddr, "http-api", "", "HTTP control/info listen address")
	cmd.Flags().StringVar(&gossipAddr, "gossip-addr", "", "gossip listen multiaddr")
	return cmd
}

// bridgeTransport feeds transport messages onto the in-process bus: peer
// joins go to the allocator on the bootstrap node, everything else lands
// on the network topic for component handlers.
func bridgeTransport(ctx context.Context, transport *core.GossipNode, bus *core.Bus, allocator *core.Allocator, isBootstrap bool) {
	msgs, err := transport.Subscribe(ctx)
	if err != nil {
		core.Log.WithField("err", err).Error("transport subscribe failed")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if msg.Kind == core.MsgPeerJoined {
				peer := core.NodeID(msg.Payload)
				if isBootstrap {
					if kind, err := allocator.Assign(peer); err == nil {
						core.Log.WithFields(map[string]interface{}{"peer": peer, "quorum": kind.String()}).Info("peer assigned")
					}
				}
				bus.Publish(core.TopicRuntime, core.Event{Kind: core.EventPeerJoined, Payload: peer})
				continue
			}
			bus.Publish(core.TopicNetwork, core.Event{Kind: core.EventKind(msg.Kind), Payload: msg.Payload})
		}
	}
}

func parseDistribution(raw map[string]uint64) (map[core.Address]uint64, error) {
	out := make(map[core.Address]uint64, len(raw))
	for hexAddr, credits := range raw {
		trimmed := hexAddr
		if len(trimmed) >= 2 && trimmed[:2] == "0x" {
			trimmed = trimmed[2:]
		}
		b, err := hex.DecodeString(trimmed)
		if err != nil || len(b) != 20 {
			return nil, fmt.Errorf("genesis: bad address %q", hexAddr)
		}
		var addr core.Address
		copy(addr[:], b)
		out[addr] = credits
	}
	return out, nil
}

func nodeInfoCmd() *cobra.Command {
	var dataDir, apiAddr string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "print this node's identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiAddr != "" {
				resp, err := http.Get("http://" + apiAddr + "/info")
				if err != nil {
					exitCode = 1
					return err
				}
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				if err != nil {
					exitCode = 1
					return err
				}
				fmt.Println(string(body))
				exitCode = 0
				return nil
			}
			if dataDir == "" {
				exitCode = 2
				return fmt.Errorf("--data-dir or --api is required")
			}
			kp, err := core.LoadOrCreateKeyPair(dataDir)
			if err != nil {
				exitCode = 1
				return err
			}
			fmt.Printf("address: %s\n", kp.Address().Hex())
			exitCode = 0
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "per-node data directory")
	cmd.Flags().StringVar(&apiAddr, "api", "", "running node's HTTP control address")
	return cmd
}

func nodeStopCmd() *cobra.Command {
	var apiAddr string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "signal a running node to stop gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiAddr == "" {
				exitCode = 2
				return fmt.Errorf("--api is required")
			}
			resp, err := http.Post("http://"+apiAddr+"/control/stop", "", nil)
			if err != nil {
				exitCode = 1
				return err
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted {
				exitCode = 1
				return fmt.Errorf("stop rejected: %s", resp.Status)
			}
			exitCode = 0
			return nil
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", "", "running node's HTTP control address")
	return cmd
}
